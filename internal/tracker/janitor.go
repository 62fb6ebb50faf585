package tracker

import (
	"context"
	"time"

	"github.com/sirupsen/logrus"

	"fleet-journeys/internal/config"
	"fleet-journeys/internal/metrics"
	"fleet-journeys/internal/models"
)

// SessionResetter clears a vehicle's in-memory idle state. Implemented by
// Tracker.
type SessionResetter interface {
	ResetSession(vehicleID string)
}

// Janitor periodically force-closes journeys abandoned by their vehicle's
// feed. A journey is stale when its most recent activity is older than the
// staleness window; it is closed at that last-activity time, never at sweep
// time, so duration and distance stay correct however late the sweep runs.
type Janitor struct {
	store    JourneyStore
	sessions SessionResetter
	cfg      config.Tracking
	coll     *metrics.Collector
	log      *logrus.Logger
}

// NewJanitor creates a janitor over the given store.
func NewJanitor(store JourneyStore, sessions SessionResetter, cfg config.Tracking, coll *metrics.Collector, log *logrus.Logger) *Janitor {
	return &Janitor{store: store, sessions: sessions, cfg: cfg, coll: coll, log: log}
}

// Run sweeps on the configured cadence until the context is canceled.
func (j *Janitor) Run(ctx context.Context) {
	ticker := time.NewTicker(j.cfg.JanitorInterval)
	defer ticker.Stop()

	j.log.WithField("interval", j.cfg.JanitorInterval).Info("janitor started")
	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			if _, err := j.Sweep(ctx, time.Now(), true); err != nil {
				j.log.WithError(err).Error("janitor sweep failed")
			}
		}
	}
}

// Sweep inspects every active journey and returns the stale ones. With
// apply=false it only reports; with apply=true it closes them and resets the
// vehicles' sessions. Sweeping twice with no new samples changes nothing the
// second time: closed journeys are no longer active.
func (j *Janitor) Sweep(ctx context.Context, now time.Time, apply bool) ([]models.StaleJourney, error) {
	active, err := j.store.ActiveJourneys(ctx)
	if err != nil {
		return nil, err
	}

	cutoff := now.Unix() - int64(j.cfg.StaleAfter/time.Second)

	var stale []models.StaleJourney
	for _, journey := range active {
		last, err := j.store.LastActivity(ctx, journey)
		if err != nil {
			j.log.WithError(err).WithField("journey", journey.JourneyID).Error("failed to read last activity")
			continue
		}
		if last >= cutoff {
			continue
		}

		stale = append(stale, models.StaleJourney{
			JourneyID:    journey.JourneyID,
			VehicleID:    journey.VehicleID,
			LastActivity: last,
		})
		if !apply {
			continue
		}

		if err := j.store.EndJourney(ctx, journey.JourneyID, last); err != nil {
			j.log.WithError(err).WithField("journey", journey.JourneyID).Error("failed to close stale journey")
			continue
		}
		j.sessions.ResetSession(journey.VehicleID)
		j.coll.JourneysEnded.WithLabelValues("stale").Inc()
		j.log.WithFields(logrus.Fields{
			"vehicle":       journey.VehicleID,
			"journey":       journey.JourneyID,
			"last_activity": last,
		}).Info("closed stale journey")
	}

	return stale, nil
}
