package feed

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"time"

	"github.com/sirupsen/logrus"

	"fleet-journeys/internal/config"
	"fleet-journeys/internal/models"
)

// SampleSink consumes normalized position samples. Implemented by
// tracker.Tracker.
type SampleSink interface {
	Process(ctx context.Context, sample models.PositionSample) error
}

// TrackAppClient is the polling feed adapter. It asks the vendor for one
// vehicle's current position per call; the ingestion manager drives it once
// per vehicle per poll interval.
type TrackAppClient struct {
	url    string
	client *http.Client
	now    func() time.Time
	log    *logrus.Logger
}

// NewTrackAppClient creates the polling adapter.
func NewTrackAppClient(cfg config.Feeds, log *logrus.Logger) *TrackAppClient {
	return &TrackAppClient{
		url:    cfg.TrackAppURL,
		client: &http.Client{Timeout: cfg.RequestTimeout},
		now:    time.Now,
		log:    log,
	}
}

type trackAppRequest struct {
	Operator string `json:"o"`
	Vehicle  string `json:"v"`
	Device   string `json:"g"`
}

// The vendor sends coordinates as strings; json.Number tolerates both.
type trackAppResponse struct {
	Msg  string `json:"msg"`
	Data struct {
		Lat   json.Number `json:"lt"`
		Lon   json.Number `json:"lg"`
		Speed json.Number `json:"sp"`
	} `json:"data"`
}

// Fetch polls the vendor for one vehicle. A vendor status other than "Ok"
// returns (nil, nil): the vehicle is skipped for this cycle, not failed.
func (c *TrackAppClient) Fetch(ctx context.Context, v models.VehicleConfig) (*models.PositionSample, error) {
	if v.DeviceID == "" || v.Auth == "" {
		return nil, nil
	}

	body, err := json.Marshal(trackAppRequest{Operator: v.Operator, Vehicle: v.BusNo, Device: v.DeviceID})
	if err != nil {
		return nil, fmt.Errorf("failed to encode request: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.url, bytes.NewReader(body))
	if err != nil {
		return nil, fmt.Errorf("failed to create request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("Authentication", v.Auth)

	resp, err := c.client.Do(req)
	if err != nil {
		return nil, fmt.Errorf("failed to call feed: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("feed returned status %d", resp.StatusCode)
	}

	var payload trackAppResponse
	if err := json.NewDecoder(resp.Body).Decode(&payload); err != nil {
		return nil, fmt.Errorf("failed to decode feed response: %w", err)
	}

	if payload.Msg != "Ok" {
		c.log.WithFields(logrus.Fields{"vehicle": v.BusNo, "msg": payload.Msg}).Debug("vehicle not tracking this cycle")
		return nil, nil
	}

	lat, err1 := payload.Data.Lat.Float64()
	lon, err2 := payload.Data.Lon.Float64()
	speed, err3 := payload.Data.Speed.Float64()
	if err1 != nil || err2 != nil || err3 != nil {
		return nil, fmt.Errorf("malformed position for %s", v.BusNo)
	}

	return &models.PositionSample{
		VehicleID: v.BusNo,
		Timestamp: c.now().Unix(),
		Lat:       lat,
		Lon:       lon,
		Speed:     speed,
	}, nil
}
