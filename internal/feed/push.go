package feed

import (
	"context"
	"encoding/json"
	"time"

	"github.com/gorilla/websocket"
	"github.com/sirupsen/logrus"

	"fleet-journeys/internal/config"
	"fleet-journeys/internal/metrics"
	"fleet-journeys/internal/models"
	"fleet-journeys/internal/spatial"
)

// PushListener is the push feed adapter: one persistent websocket connection
// per vehicle, reconnected with a fixed delay for as long as the context
// lives. Malformed or partial frames are ignored without terminating the
// connection.
type PushListener struct {
	url     string
	vehicle models.VehicleConfig
	sink    SampleSink
	delay   time.Duration
	loc     *time.Location
	coll    *metrics.Collector
	now     func() time.Time
	log     *logrus.Entry

	// previous accepted position, used to derive speed; the vendor sends
	// none. Owned by the single listener goroutine.
	lastLat, lastLon float64
	lastTS           int64
}

// NewPushListener creates a listener for one websocket-tracked vehicle.
func NewPushListener(cfg config.Feeds, vehicle models.VehicleConfig, loc *time.Location, sink SampleSink, coll *metrics.Collector, log *logrus.Logger) *PushListener {
	return &PushListener{
		url:     cfg.PushURL,
		vehicle: vehicle,
		sink:    sink,
		delay:   cfg.ReconnectDelay,
		loc:     loc,
		coll:    coll,
		now:     time.Now,
		log:     log.WithField("vehicle", vehicle.ServiceNo),
	}
}

// Run connects and consumes frames until the context is canceled. Each
// disconnect waits the fixed reconnect delay and tries again; there is no
// retry limit and no recursion.
func (l *PushListener) Run(ctx context.Context) {
	for {
		if err := l.listenOnce(ctx); err != nil {
			l.log.WithError(err).Warn("push feed disconnected")
		}

		select {
		case <-ctx.Done():
			return
		case <-time.After(l.delay):
		}
	}
}

type subscribeFrame struct {
	ServiceNo    string `json:"serviceNo"`
	DOJ          string `json:"doj"`
	TrackingType string `json:"trackingType"`
}

type pushFrame struct {
	Success     bool `json:"success"`
	VehicleInfo struct {
		RegistrationNumber string `json:"registrationNumber"`
		Position           struct {
			Latitude  json.Number `json:"latitude"`
			Longitude json.Number `json:"longitude"`
		} `json:"position"`
	} `json:"vehicleInfo"`
}

func (l *PushListener) listenOnce(ctx context.Context) error {
	conn, _, err := websocket.DefaultDialer.DialContext(ctx, l.url, nil)
	if err != nil {
		return err
	}
	defer conn.Close()

	// unblock ReadMessage when the context is canceled
	done := make(chan struct{})
	defer close(done)
	go func() {
		select {
		case <-ctx.Done():
			conn.Close()
		case <-done:
		}
	}()

	sub := subscribeFrame{
		ServiceNo:    l.vehicle.ServiceNo,
		DOJ:          l.now().In(l.loc).Format("2006-01-02"),
		TrackingType: "full-tracking",
	}
	if err := conn.WriteJSON(sub); err != nil {
		return err
	}

	l.coll.PushConnected.Inc()
	defer l.coll.PushConnected.Dec()
	l.log.Info("push feed connected")

	for {
		_, data, err := conn.ReadMessage()
		if err != nil {
			return err
		}

		sample, ok := l.parseFrame(data, l.now().Unix())
		if !ok {
			continue
		}

		l.coll.SamplesIngested.WithLabelValues(models.FeedWebSocket).Inc()
		if err := l.sink.Process(ctx, sample); err != nil {
			// store truth is re-read on the next sample; drop this one
			l.log.WithError(err).Error("failed to process push sample")
		}
	}
}

// parseFrame normalizes one vendor frame into a PositionSample. Frames that
// are malformed, unsuccessful, or missing the position field report ok=false
// and are ignored. Speed is derived from ground distance over elapsed time
// since the previous accepted frame.
func (l *PushListener) parseFrame(data []byte, now int64) (models.PositionSample, bool) {
	var frame pushFrame
	if err := json.Unmarshal(data, &frame); err != nil {
		l.log.WithError(err).Debug("ignoring malformed push frame")
		return models.PositionSample{}, false
	}
	if !frame.Success {
		return models.PositionSample{}, false
	}
	if frame.VehicleInfo.Position.Latitude == "" || frame.VehicleInfo.Position.Longitude == "" {
		return models.PositionSample{}, false
	}

	lat, err1 := frame.VehicleInfo.Position.Latitude.Float64()
	lon, err2 := frame.VehicleInfo.Position.Longitude.Float64()
	if err1 != nil || err2 != nil {
		return models.PositionSample{}, false
	}

	var speed float64
	if l.lastTS > 0 && now > l.lastTS {
		meters := spatial.HaversineDistance(l.lastLat, l.lastLon, lat, lon)
		speed = (meters / 1000) / (float64(now-l.lastTS) / 3600)
	}
	l.lastLat, l.lastLon, l.lastTS = lat, lon, now

	return models.PositionSample{
		VehicleID: l.vehicle.ServiceNo,
		Timestamp: now,
		Lat:       lat,
		Lon:       lon,
		Speed:     speed,
	}, true
}
