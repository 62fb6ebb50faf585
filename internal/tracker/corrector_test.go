package tracker

import (
	"context"
	"testing"
	"time"

	"fleet-journeys/internal/metrics"
	"fleet-journeys/internal/models"
)

func newTestCorrector(store JourneyStore) *Corrector {
	return NewCorrector(store, testTrackingConfig(), time.UTC, metrics.NewCollector(), testLogger())
}

func utc(year int, month time.Month, day, hour, min int) int64 {
	return time.Date(year, month, day, hour, min, 0, 0, time.UTC).Unix()
}

// endedJourney seeds a closed journey directly into the fake store.
func endedJourney(t *testing.T, store *fakeStore, vehicle string, start, end int64) models.Journey {
	t.Helper()
	ctx := context.Background()
	j, err := store.CreateJourney(ctx, vehicle, start)
	if err != nil {
		t.Fatal(err)
	}
	if err := store.EndJourney(ctx, j.JourneyID, end); err != nil {
		t.Fatal(err)
	}
	j.EndTime = end
	j.Status = models.JourneyStatusEnded
	return *j
}

func TestCorrectorMergesDayBoundarySplit(t *testing.T) {
	ctx := context.Background()
	store := newFakeStore()
	corrector := newTestCorrector(store)

	// one physical overnight trip, cut at the day boundary
	a := endedJourney(t, store, "KA-01",
		utc(2024, time.January, 1, 20, 0),
		utc(2024, time.January, 2, 1, 10))
	b := endedJourney(t, store, "KA-01",
		utc(2024, time.January, 2, 1, 18),
		utc(2024, time.January, 2, 3, 0))

	for i, ts := range []int64{b.StartTime, b.StartTime + 60, b.StartTime + 120} {
		_ = store.AppendSample(ctx, b.JourneyID, positionSample("KA-01", ts, 12.9+float64(i)*0.01, 77.5, 40))
	}

	candidates, err := corrector.Run(ctx, true)
	if err != nil {
		t.Fatalf("Run failed: %v", err)
	}

	if len(candidates) != 1 {
		t.Fatalf("candidates = %d, want 1", len(candidates))
	}
	if candidates[0].KeepID != a.JourneyID || candidates[0].AbsorbID != b.JourneyID {
		t.Errorf("candidate = keep %s absorb %s, want keep %s absorb %s",
			candidates[0].KeepID, candidates[0].AbsorbID, a.JourneyID, b.JourneyID)
	}
	if candidates[0].GapSeconds != 480 {
		t.Errorf("gap = %d, want 480", candidates[0].GapSeconds)
	}

	journeys, _ := store.JourneysByVehicle(ctx, "KA-01")
	if len(journeys) != 1 {
		t.Fatalf("journeys after merge = %d, want 1", len(journeys))
	}
	merged := journeys[0]
	if merged.JourneyID != a.JourneyID {
		t.Errorf("surviving journey = %s, want %s", merged.JourneyID, a.JourneyID)
	}
	if merged.EndTime != b.EndTime {
		t.Errorf("merged end = %d, want %d", merged.EndTime, b.EndTime)
	}
	if merged.DepartureDate != "2024-01-01" {
		t.Errorf("merged departure date = %s, want 2024-01-01", merged.DepartureDate)
	}

	samples := store.samples[a.JourneyID]
	if len(samples) != 3 {
		t.Errorf("samples on surviving journey = %d, want 3", len(samples))
	}
	if _, ok := store.samples[b.JourneyID]; ok {
		t.Error("absorbed journey still owns samples")
	}
}

func TestCorrectorDryRunDoesNotMutate(t *testing.T) {
	ctx := context.Background()
	store := newFakeStore()
	corrector := newTestCorrector(store)

	endedJourney(t, store, "KA-01",
		utc(2024, time.January, 1, 20, 0),
		utc(2024, time.January, 2, 1, 10))
	endedJourney(t, store, "KA-01",
		utc(2024, time.January, 2, 1, 18),
		utc(2024, time.January, 2, 3, 0))

	candidates, err := corrector.Run(ctx, false)
	if err != nil {
		t.Fatalf("Run failed: %v", err)
	}
	if len(candidates) != 1 {
		t.Fatalf("candidates = %d, want 1", len(candidates))
	}
	if got := store.journeyCount(); got != 2 {
		t.Errorf("journeys after dry run = %d, want 2", got)
	}
}

func TestCorrectorRejectsNonSplits(t *testing.T) {
	cases := []struct {
		name           string
		aStart, aEnd   int64
		bStart, bEnd   int64
	}{
		{
			"gap too long",
			utc(2024, time.January, 1, 20, 0), utc(2024, time.January, 2, 1, 10),
			utc(2024, time.January, 2, 1, 30), utc(2024, time.January, 2, 3, 0),
		},
		{
			"end outside night window",
			utc(2024, time.January, 1, 20, 0), utc(2024, time.January, 2, 7, 0),
			utc(2024, time.January, 2, 7, 10), utc(2024, time.January, 2, 9, 0),
		},
		{
			"same departure date",
			utc(2024, time.January, 2, 0, 30), utc(2024, time.January, 2, 1, 10),
			utc(2024, time.January, 2, 1, 18), utc(2024, time.January, 2, 3, 0),
		},
	}

	for _, c := range cases {
		t.Run(c.name, func(t *testing.T) {
			store := newFakeStore()
			corrector := newTestCorrector(store)

			endedJourney(t, store, "KA-01", c.aStart, c.aEnd)
			endedJourney(t, store, "KA-01", c.bStart, c.bEnd)

			candidates, err := corrector.Run(context.Background(), true)
			if err != nil {
				t.Fatalf("Run failed: %v", err)
			}
			if len(candidates) != 0 {
				t.Errorf("candidates = %d, want 0", len(candidates))
			}
			if got := store.journeyCount(); got != 2 {
				t.Errorf("journeys = %d, want 2", got)
			}
		})
	}
}

func TestCorrectorChainsMerges(t *testing.T) {
	ctx := context.Background()
	store := newFakeStore()
	corrector := newTestCorrector(store)

	// one trip split twice across the same night
	a := endedJourney(t, store, "KA-01",
		utc(2024, time.January, 1, 22, 0),
		utc(2024, time.January, 2, 0, 30))
	endedJourney(t, store, "KA-01",
		utc(2024, time.January, 2, 0, 35),
		utc(2024, time.January, 2, 1, 10))
	c := endedJourney(t, store, "KA-01",
		utc(2024, time.January, 2, 1, 18),
		utc(2024, time.January, 2, 3, 0))

	candidates, err := corrector.Run(ctx, true)
	if err != nil {
		t.Fatalf("Run failed: %v", err)
	}

	if len(candidates) != 2 {
		t.Fatalf("candidates = %d, want 2", len(candidates))
	}
	for _, cand := range candidates {
		if cand.KeepID != a.JourneyID {
			t.Errorf("keep = %s, want %s", cand.KeepID, a.JourneyID)
		}
	}

	journeys, _ := store.JourneysByVehicle(ctx, "KA-01")
	if len(journeys) != 1 {
		t.Fatalf("journeys after chained merge = %d, want 1", len(journeys))
	}
	if journeys[0].EndTime != c.EndTime {
		t.Errorf("end = %d, want %d", journeys[0].EndTime, c.EndTime)
	}
}
