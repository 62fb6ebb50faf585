package routematch

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/sirupsen/logrus"
	"github.com/twpayne/go-polyline"

	"fleet-journeys/internal/config"
	"fleet-journeys/internal/models"
)

// Matcher snaps one batch of raw positions onto the road network.
type Matcher interface {
	Match(ctx context.Context, samples []models.PositionSample) ([]models.RoutePoint, error)
}

// OSRMClient calls the OSRM /match service. Responses carry geometry as an
// encoded polyline with 1e-5 coordinate precision, the go-polyline default.
type OSRMClient struct {
	baseURL string
	radius  float64
	client  *http.Client
	log     *logrus.Logger
}

// NewOSRMClient creates a map-matching client.
func NewOSRMClient(cfg config.Matching, log *logrus.Logger) *OSRMClient {
	return &OSRMClient{
		baseURL: strings.TrimRight(cfg.OSRMBaseURL, "/"),
		radius:  cfg.SearchRadiusMeters,
		client:  &http.Client{Timeout: cfg.RequestTimeout},
		log:     log,
	}
}

type osrmMatchResponse struct {
	Code      string `json:"code"`
	Matchings []struct {
		Geometry string `json:"geometry"`
	} `json:"matchings"`
}

// Match submits one batch with per-point timestamps and search radius. Any
// non-success response is an error; the caller treats it like a network
// failure and falls back to raw points.
func (c *OSRMClient) Match(ctx context.Context, samples []models.PositionSample) ([]models.RoutePoint, error) {
	if len(samples) < 2 {
		return nil, fmt.Errorf("need at least 2 points to match, got %d", len(samples))
	}

	var coords, stamps, radii strings.Builder
	for i, s := range samples {
		if i > 0 {
			coords.WriteByte(';')
			stamps.WriteByte(';')
			radii.WriteByte(';')
		}
		// OSRM wants lon,lat order
		coords.WriteString(strconv.FormatFloat(s.Lon, 'f', 6, 64))
		coords.WriteByte(',')
		coords.WriteString(strconv.FormatFloat(s.Lat, 'f', 6, 64))
		stamps.WriteString(strconv.FormatInt(s.Timestamp, 10))
		radii.WriteString(strconv.FormatFloat(c.radius, 'f', 0, 64))
	}

	url := fmt.Sprintf("%s/match/v1/driving/%s?overview=full&geometries=polyline&gaps=ignore&tidy=true&timestamps=%s&radiuses=%s",
		c.baseURL, coords.String(), stamps.String(), radii.String())

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, url, nil)
	if err != nil {
		return nil, fmt.Errorf("failed to create match request: %w", err)
	}

	start := time.Now()
	resp, err := c.client.Do(req)
	if err != nil {
		return nil, fmt.Errorf("failed to call match service: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("match service returned status %d", resp.StatusCode)
	}

	var payload osrmMatchResponse
	if err := json.NewDecoder(resp.Body).Decode(&payload); err != nil {
		return nil, fmt.Errorf("failed to decode match response: %w", err)
	}
	if payload.Code != "Ok" || len(payload.Matchings) == 0 {
		return nil, fmt.Errorf("match service returned code %q with %d matchings", payload.Code, len(payload.Matchings))
	}

	var points []models.RoutePoint
	for _, m := range payload.Matchings {
		coords, _, err := polyline.DecodeCoords([]byte(m.Geometry))
		if err != nil {
			return nil, fmt.Errorf("failed to decode geometry: %w", err)
		}
		for _, c := range coords {
			points = append(points, models.RoutePoint{Lat: c[0], Lon: c[1]})
		}
	}
	if len(points) == 0 {
		return nil, fmt.Errorf("match service returned empty geometry")
	}

	c.log.WithFields(logrus.Fields{
		"points":  len(samples),
		"matched": len(points),
		"took":    time.Since(start),
	}).Debug("batch matched")
	return points, nil
}
