package tracker

import (
	"context"
	"fmt"
	"io"
	"sort"
	"sync"
	"time"

	"github.com/sirupsen/logrus"

	"fleet-journeys/internal/config"
	"fleet-journeys/internal/metrics"
	"fleet-journeys/internal/models"
)

// fakeStore is an in-memory JourneyStore for state-machine tests.
type fakeStore struct {
	mu       sync.Mutex
	loc      *time.Location
	journeys map[string]*models.Journey
	samples  map[string][]models.PositionSample
}

func newFakeStore() *fakeStore {
	return &fakeStore{
		loc:      time.UTC,
		journeys: make(map[string]*models.Journey),
		samples:  make(map[string][]models.PositionSample),
	}
}

func (f *fakeStore) GetActiveJourney(_ context.Context, vehicleID string) (*models.Journey, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	for _, j := range f.journeys {
		if j.VehicleID == vehicleID && j.Status == models.JourneyStatusActive {
			cp := *j
			return &cp, nil
		}
	}
	return nil, nil
}

func (f *fakeStore) CreateJourney(ctx context.Context, vehicleID string, startTime int64) (*models.Journey, error) {
	if existing, _ := f.GetActiveJourney(ctx, vehicleID); existing != nil {
		return existing, nil
	}
	f.mu.Lock()
	defer f.mu.Unlock()
	j := &models.Journey{
		JourneyID:     models.JourneyID(vehicleID, startTime),
		VehicleID:     vehicleID,
		DepartureDate: time.Unix(startTime, 0).In(f.loc).Format("2006-01-02"),
		StartTime:     startTime,
		Status:        models.JourneyStatusActive,
	}
	f.journeys[j.JourneyID] = j
	return j, nil
}

func (f *fakeStore) EndJourney(_ context.Context, journeyID string, endTime int64) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	j, ok := f.journeys[journeyID]
	if !ok {
		return fmt.Errorf("no journey %s", journeyID)
	}
	if j.Status == models.JourneyStatusActive {
		j.Status = models.JourneyStatusEnded
		j.EndTime = endTime
	}
	return nil
}

func (f *fakeStore) AppendSample(_ context.Context, journeyID string, s models.PositionSample) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	if _, ok := f.journeys[journeyID]; !ok {
		return fmt.Errorf("no journey %s", journeyID)
	}
	f.samples[journeyID] = append(f.samples[journeyID], s)
	return nil
}

func (f *fakeStore) ActiveJourneys(_ context.Context) ([]models.Journey, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	var out []models.Journey
	for _, j := range f.journeys {
		if j.Status == models.JourneyStatusActive {
			out = append(out, *j)
		}
	}
	sort.Slice(out, func(i, k int) bool { return out[i].StartTime < out[k].StartTime })
	return out, nil
}

func (f *fakeStore) LastActivity(_ context.Context, j models.Journey) (int64, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	last := j.StartTime
	for _, s := range f.samples[j.JourneyID] {
		if s.Timestamp > last {
			last = s.Timestamp
		}
	}
	return last, nil
}

func (f *fakeStore) VehicleIDs(_ context.Context) ([]string, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	seen := make(map[string]bool)
	var out []string
	for _, j := range f.journeys {
		if !seen[j.VehicleID] {
			seen[j.VehicleID] = true
			out = append(out, j.VehicleID)
		}
	}
	sort.Strings(out)
	return out, nil
}

func (f *fakeStore) JourneysByVehicle(_ context.Context, vehicleID string) ([]models.Journey, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	var out []models.Journey
	for _, j := range f.journeys {
		if j.VehicleID == vehicleID {
			out = append(out, *j)
		}
	}
	sort.Slice(out, func(i, k int) bool { return out[i].StartTime < out[k].StartTime })
	return out, nil
}

func (f *fakeStore) MergeJourneys(_ context.Context, keepID, absorbID string) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	keep, ok := f.journeys[keepID]
	if !ok {
		return fmt.Errorf("no journey %s", keepID)
	}
	absorb, ok := f.journeys[absorbID]
	if !ok {
		return fmt.Errorf("no journey %s", absorbID)
	}
	f.samples[keepID] = append(f.samples[keepID], f.samples[absorbID]...)
	delete(f.samples, absorbID)
	keep.EndTime = absorb.EndTime
	keep.Status = absorb.Status
	delete(f.journeys, absorbID)
	return nil
}

func (f *fakeStore) journeyCount() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return len(f.journeys)
}

func (f *fakeStore) sampleCount() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	n := 0
	for _, s := range f.samples {
		n += len(s)
	}
	return n
}

func (f *fakeStore) activeCount(vehicleID string) int {
	f.mu.Lock()
	defer f.mu.Unlock()
	n := 0
	for _, j := range f.journeys {
		if j.VehicleID == vehicleID && j.Status == models.JourneyStatusActive {
			n++
		}
	}
	return n
}

func testTrackingConfig() config.Tracking {
	return config.Tracking{
		IdleRadiusMeters:     300,
		MovementThresholdKmh: 5,
		IdleEndAfter:         time.Hour,
		StaleAfter:           time.Hour,
		JanitorInterval:      10 * time.Minute,
		NightWindowEndHour:   6,
		MaxMergeGap:          15 * time.Minute,
	}
}

func testLogger() *logrus.Logger {
	log := logrus.New()
	log.SetOutput(io.Discard)
	return log
}

func newTestTracker(store JourneyStore) *Tracker {
	return NewTracker(store, testTrackingConfig(), metrics.NewCollector(), testLogger())
}
