package routematch

import (
	"context"
	"time"

	"github.com/sirupsen/logrus"

	"fleet-journeys/internal/config"
	"fleet-journeys/internal/metrics"
	"fleet-journeys/internal/models"
	"fleet-journeys/internal/spatial"
)

// Reconstructor turns a journey's raw samples into road-matched route
// geometry. Matching is best effort: a batch that cannot be matched
// contributes its raw points instead, so the route is degraded rather than
// truncated.
type Reconstructor struct {
	matcher Matcher
	cfg     config.Matching
	coll    *metrics.Collector
	log     *logrus.Logger
}

// NewReconstructor creates a reconstructor over the given matcher.
func NewReconstructor(matcher Matcher, cfg config.Matching, coll *metrics.Collector, log *logrus.Logger) *Reconstructor {
	return &Reconstructor{matcher: matcher, cfg: cfg, coll: coll, log: log}
}

// Route reconstructs the path for ordered raw samples:
//
//  1. drop jitter (points closer than the jitter radius to the last kept one)
//  2. split at sample gaps too long to be continuous driving
//  3. chunk each segment into service-sized batches overlapping by one point
//  4. map-match each batch, substituting raw points on any failure
//  5. concatenate in order
func (r *Reconstructor) Route(ctx context.Context, samples []models.PositionSample) []models.RoutePoint {
	filtered := filterJitter(samples, r.cfg.JitterMeters)

	var route []models.RoutePoint
	for _, segment := range splitGaps(filtered, r.cfg.MaxSampleGap) {
		for _, batch := range batches(segment, r.cfg.BatchSize) {
			points, err := r.matcher.Match(ctx, batch)
			if err != nil || len(points) == 0 {
				if err != nil {
					r.log.WithError(err).WithField("points", len(batch)).Warn("map matching failed, using raw points")
				}
				r.coll.MatchRequests.WithLabelValues("fallback").Inc()
				points = rawPoints(batch)
			} else {
				r.coll.MatchRequests.WithLabelValues("ok").Inc()
			}
			route = append(route, points...)
		}
	}
	return route
}

// DistanceKm measures the ground distance covered by the samples, preferring
// matched geometry and falling back to the raw path where matching is
// unavailable.
func (r *Reconstructor) DistanceKm(ctx context.Context, samples []models.PositionSample) float64 {
	route := r.Route(ctx, samples)
	if len(route) < 2 {
		route = rawPoints(samples)
	}

	path := make([][2]float64, len(route))
	for i, p := range route {
		path[i] = [2]float64{p.Lat, p.Lon}
	}
	return spatial.PathLengthMeters(path) / 1000
}

// filterJitter keeps a point only when it is farther than minMeters from the
// last kept point, collapsing the noise cluster a stationary vehicle emits.
func filterJitter(samples []models.PositionSample, minMeters float64) []models.PositionSample {
	if len(samples) == 0 {
		return nil
	}

	kept := []models.PositionSample{samples[0]}
	for _, s := range samples[1:] {
		last := kept[len(kept)-1]
		if spatial.HaversineDistance(last.Lat, last.Lon, s.Lat, s.Lon) > minMeters {
			kept = append(kept, s)
		}
	}
	return kept
}

// splitGaps cuts the sequence wherever consecutive samples are separated by
// more than maxGap. Each piece is matched independently so the matcher never
// draws a road across a real connectivity gap.
func splitGaps(samples []models.PositionSample, maxGap time.Duration) [][]models.PositionSample {
	if len(samples) == 0 {
		return nil
	}

	gap := int64(maxGap / time.Second)
	var segments [][]models.PositionSample
	start := 0
	for i := 1; i < len(samples); i++ {
		if samples[i].Timestamp-samples[i-1].Timestamp > gap {
			segments = append(segments, samples[start:i])
			start = i
		}
	}
	return append(segments, samples[start:])
}

// batches chunks a segment into at most size points per batch, with adjacent
// batches sharing one boundary point so the matched path stays contiguous.
func batches(segment []models.PositionSample, size int) [][]models.PositionSample {
	if len(segment) == 0 {
		return nil
	}
	if len(segment) <= size {
		return [][]models.PositionSample{segment}
	}

	var out [][]models.PositionSample
	for start := 0; start < len(segment)-1; start += size - 1 {
		end := start + size
		if end > len(segment) {
			end = len(segment)
		}
		out = append(out, segment[start:end])
		if end == len(segment) {
			break
		}
	}
	return out
}

func rawPoints(samples []models.PositionSample) []models.RoutePoint {
	points := make([]models.RoutePoint, len(samples))
	for i, s := range samples {
		points[i] = models.RoutePoint{Lat: s.Lat, Lon: s.Lon}
	}
	return points
}
