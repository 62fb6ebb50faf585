package tracker

import (
	"context"
	"time"

	"github.com/sirupsen/logrus"

	"fleet-journeys/internal/config"
	"fleet-journeys/internal/metrics"
	"fleet-journeys/internal/models"
)

// Corrector repairs journeys that were artificially split at a calendar-day
// boundary: a journey ending in the early-morning window followed after a
// short gap by one with a different departure date is a single physical
// overnight trip. It runs as a batch job over historical data, never on the
// live ingestion path.
type Corrector struct {
	store JourneyStore
	cfg   config.Tracking
	loc   *time.Location
	coll  *metrics.Collector
	log   *logrus.Logger
}

// NewCorrector creates a corrector over the given store.
func NewCorrector(store JourneyStore, cfg config.Tracking, loc *time.Location, coll *metrics.Collector, log *logrus.Logger) *Corrector {
	return &Corrector{store: store, cfg: cfg, loc: loc, coll: coll, log: log}
}

// Run scans every vehicle's journeys in chronological order and returns the
// merge candidates found. With apply=false nothing is mutated; with
// apply=true each pair is merged in its own transaction. When a pair merges,
// scanning continues with the surviving journey carrying the absorbed end
// fields, so a trip split more than once across one night collapses fully.
func (c *Corrector) Run(ctx context.Context, apply bool) ([]models.MergeCandidate, error) {
	vehicles, err := c.store.VehicleIDs(ctx)
	if err != nil {
		return nil, err
	}

	var candidates []models.MergeCandidate
	for _, vehicleID := range vehicles {
		journeys, err := c.store.JourneysByVehicle(ctx, vehicleID)
		if err != nil {
			return nil, err
		}
		if len(journeys) < 2 {
			continue
		}

		cur := journeys[0]
		for _, next := range journeys[1:] {
			if !c.isSplit(cur, next) {
				cur = next
				continue
			}

			cand := models.MergeCandidate{
				VehicleID:  vehicleID,
				KeepID:     cur.JourneyID,
				AbsorbID:   next.JourneyID,
				KeepDate:   cur.DepartureDate,
				AbsorbDate: next.DepartureDate,
				GapSeconds: next.StartTime - cur.EndTime,
			}
			candidates = append(candidates, cand)

			if apply {
				if err := c.store.MergeJourneys(ctx, cur.JourneyID, next.JourneyID); err != nil {
					return candidates, err
				}
				c.coll.JourneysMerged.Inc()
				c.log.WithFields(logrus.Fields{
					"vehicle": vehicleID,
					"keep":    cur.JourneyID,
					"absorb":  next.JourneyID,
				}).Info("merged split journey")
			}

			// the survivor takes over the absorbed end fields either way,
			// so chained splits are detected in one pass
			cur.EndTime = next.EndTime
			cur.Status = next.Status
		}
	}

	return candidates, nil
}

// isSplit reports whether (cur, next) carries the day-boundary signature: an
// end inside the early-morning window, differing departure dates, and a gap
// too short to be a genuine stop.
func (c *Corrector) isSplit(cur, next models.Journey) bool {
	if cur.EndTime == 0 {
		return false
	}
	if time.Unix(cur.EndTime, 0).In(c.loc).Hour() >= c.cfg.NightWindowEndHour {
		return false
	}
	if next.DepartureDate == cur.DepartureDate {
		return false
	}
	gap := next.StartTime - cur.EndTime
	return gap >= 0 && gap < int64(c.cfg.MaxMergeGap/time.Second)
}
