package tracker

import (
	"context"
	"sync"
	"time"

	"github.com/sirupsen/logrus"

	"fleet-journeys/internal/config"
	"fleet-journeys/internal/metrics"
	"fleet-journeys/internal/models"
	"fleet-journeys/internal/spatial"
)

// JourneyStore is the persistence surface the tracking components need. It
// is satisfied by repository.JourneyRepository.
type JourneyStore interface {
	GetActiveJourney(ctx context.Context, vehicleID string) (*models.Journey, error)
	CreateJourney(ctx context.Context, vehicleID string, startTime int64) (*models.Journey, error)
	EndJourney(ctx context.Context, journeyID string, endTime int64) error
	AppendSample(ctx context.Context, journeyID string, s models.PositionSample) error
	ActiveJourneys(ctx context.Context) ([]models.Journey, error)
	LastActivity(ctx context.Context, j models.Journey) (int64, error)
	VehicleIDs(ctx context.Context) ([]string, error)
	JourneysByVehicle(ctx context.Context, vehicleID string) ([]models.Journey, error)
	MergeJourneys(ctx context.Context, keepID, absorbID string) error
}

type point struct {
	lat, lon float64
}

// session is the transient per-vehicle state used for idle/movement
// detection. It is rebuilt empty on restart; the store remains the source of
// truth for whether a journey is active.
type session struct {
	mu sync.Mutex

	idleStart  int64  // when the vehicle was first observed stationary
	idleAnchor *point // where it was first observed stationary
	last       *point
	lastSeen   int64
}

func (s *session) clearAnchor() {
	s.idleStart = 0
	s.idleAnchor = nil
}

// Tracker is the per-vehicle journey-segmentation state machine. Each
// vehicle's session is exclusively owned while a sample is processed, so
// samples for one vehicle are never interleaved.
type Tracker struct {
	store JourneyStore
	cfg   config.Tracking
	coll  *metrics.Collector
	log   *logrus.Logger

	mu       sync.Mutex
	sessions map[string]*session
}

// NewTracker creates the state machine over the given store.
func NewTracker(store JourneyStore, cfg config.Tracking, coll *metrics.Collector, log *logrus.Logger) *Tracker {
	return &Tracker{
		store:    store,
		cfg:      cfg,
		coll:     coll,
		log:      log,
		sessions: make(map[string]*session),
	}
}

func (t *Tracker) session(vehicleID string) *session {
	t.mu.Lock()
	defer t.mu.Unlock()
	s, ok := t.sessions[vehicleID]
	if !ok {
		s = &session{}
		t.sessions[vehicleID] = s
	}
	return s
}

// ResetSession clears a vehicle's idle anchor so the next sample starts a
// clean evaluation. The janitor calls this when it force-closes a journey.
func (t *Tracker) ResetSession(vehicleID string) {
	s := t.session(vehicleID)
	s.mu.Lock()
	defer s.mu.Unlock()
	s.clearAnchor()
}

// Process runs one position sample through the state machine.
//
// The active journey is re-read from the store on every sample rather than
// cached: a journey the janitor closed while the feed was down must not be
// silently continued. The idle timer is measured against the first stopped
// position (the anchor), not the previous sample, so GPS drift between
// successive pings cannot keep resetting it.
func (t *Tracker) Process(ctx context.Context, sample models.PositionSample) error {
	sess := t.session(sample.VehicleID)
	sess.mu.Lock()
	defer sess.mu.Unlock()

	journey, err := t.store.GetActiveJourney(ctx, sample.VehicleID)
	if err != nil {
		return err
	}

	var dist float64
	switch {
	case sess.idleAnchor != nil:
		dist = spatial.HaversineDistance(sess.idleAnchor.lat, sess.idleAnchor.lon, sample.Lat, sample.Lon)
	case sess.last != nil:
		dist = spatial.HaversineDistance(sess.last.lat, sess.last.lon, sample.Lat, sample.Lon)
	}

	if dist <= t.cfg.IdleRadiusMeters {
		if sess.idleAnchor == nil {
			sess.idleStart = sample.Timestamp
			sess.idleAnchor = &point{lat: sample.Lat, lon: sample.Lon}
		}
		if journey != nil && sample.Timestamp-sess.idleStart >= int64(t.cfg.IdleEndAfter/time.Second) {
			if err := t.store.EndJourney(ctx, journey.JourneyID, sample.Timestamp); err != nil {
				return err
			}
			t.log.WithFields(logrus.Fields{
				"vehicle": sample.VehicleID,
				"journey": journey.JourneyID,
				"idle_s":  sample.Timestamp - sess.idleStart,
			}).Info("journey ended after idle")
			t.coll.JourneysEnded.WithLabelValues("idle").Inc()
			sess.clearAnchor()
			journey = nil
		}
	} else {
		// genuine movement resets the idle timer
		sess.clearAnchor()
	}

	if journey == nil {
		if sample.Speed <= t.cfg.MovementThresholdKmh {
			// parked with no journey: persisting nothing avoids
			// zero-length journeys made of parking noise
			t.coll.SamplesDropped.Inc()
			sess.last = &point{lat: sample.Lat, lon: sample.Lon}
			sess.lastSeen = sample.Timestamp
			return nil
		}
		journey, err = t.store.CreateJourney(ctx, sample.VehicleID, sample.Timestamp)
		if err != nil {
			return err
		}
		t.log.WithFields(logrus.Fields{
			"vehicle": sample.VehicleID,
			"journey": journey.JourneyID,
		}).Info("journey started")
		t.coll.JourneysStarted.Inc()
	}

	if err := t.store.AppendSample(ctx, journey.JourneyID, sample); err != nil {
		return err
	}
	sess.last = &point{lat: sample.Lat, lon: sample.Lon}
	sess.lastSeen = sample.Timestamp
	return nil
}
