package tracker

import (
	"context"
	"sync"
	"time"

	"github.com/sirupsen/logrus"

	"fleet-journeys/internal/config"
	"fleet-journeys/internal/feed"
	"fleet-journeys/internal/metrics"
	"fleet-journeys/internal/models"
)

// Poller fetches one vehicle's current position. Implemented by
// feed.TrackAppClient; (nil, nil) means "nothing this cycle".
type Poller interface {
	Fetch(ctx context.Context, v models.VehicleConfig) (*models.PositionSample, error)
}

// Manager runs the ingestion workers: a single ticker driving all polled
// vehicles each interval and one long-lived listener per push vehicle.
// Failures are isolated per vehicle per cycle.
type Manager struct {
	cfg     *config.Config
	fleet   []models.VehicleConfig
	tracker *Tracker
	poller  Poller
	coll    *metrics.Collector
	log     *logrus.Logger
}

// NewManager wires the ingestion side together.
func NewManager(cfg *config.Config, fleet []models.VehicleConfig, tracker *Tracker, poller Poller, coll *metrics.Collector, log *logrus.Logger) *Manager {
	return &Manager{
		cfg:     cfg,
		fleet:   fleet,
		tracker: tracker,
		poller:  poller,
		coll:    coll,
		log:     log,
	}
}

// Run starts all workers and blocks until the context is canceled. Fleet
// configuration assigns exactly one feed per vehicle, so no vehicle is ever
// driven by two workers.
func (m *Manager) Run(ctx context.Context) {
	var polled []models.VehicleConfig
	for _, v := range m.fleet {
		switch v.FeedType {
		case models.FeedWebSocket:
			if v.ServiceNo == "" {
				m.log.Warn("skipping websocket vehicle with no serviceNo")
				continue
			}
			listener := feed.NewPushListener(m.cfg.Feeds, v, m.cfg.Location, m.tracker, m.coll, m.log)
			go listener.Run(ctx)
		default:
			polled = append(polled, v)
		}
	}

	m.log.WithFields(logrus.Fields{
		"polled": len(polled),
		"push":   len(m.fleet) - len(polled),
	}).Info("ingestion started")

	if len(polled) == 0 {
		<-ctx.Done()
		return
	}

	ticker := time.NewTicker(m.cfg.Feeds.PollInterval)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			m.pollCycle(ctx, polled)
		}
	}
}

// pollCycle fetches every polled vehicle concurrently so one slow or failing
// vehicle cannot stall the rest of the cycle.
func (m *Manager) pollCycle(ctx context.Context, polled []models.VehicleConfig) {
	var wg sync.WaitGroup
	for _, v := range polled {
		wg.Add(1)
		go func(v models.VehicleConfig) {
			defer wg.Done()

			callCtx, cancel := context.WithTimeout(ctx, m.cfg.Feeds.RequestTimeout)
			defer cancel()

			sample, err := m.poller.Fetch(callCtx, v)
			if err != nil {
				m.coll.FeedErrors.WithLabelValues(models.FeedTrackApp).Inc()
				m.log.WithError(err).WithField("vehicle", v.BusNo).Warn("poll failed")
				return
			}
			if sample == nil {
				return
			}

			m.coll.SamplesIngested.WithLabelValues(models.FeedTrackApp).Inc()
			if err := m.tracker.Process(ctx, *sample); err != nil {
				// dropped; the next cycle re-evaluates from store truth
				m.log.WithError(err).WithField("vehicle", v.BusNo).Error("failed to process sample")
			}
		}(v)
	}
	wg.Wait()
}
