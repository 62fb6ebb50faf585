package service

import (
	"context"
	"fmt"

	"fleet-journeys/internal/models"
	"fleet-journeys/internal/repository"
	"fleet-journeys/internal/routematch"
)

// JourneyService handles the read-side business logic behind the query API.
type JourneyService struct {
	repo  *repository.JourneyRepository
	recon *routematch.Reconstructor
}

// NewJourneyService creates a new journey service.
func NewJourneyService(repo *repository.JourneyRepository, recon *routematch.Reconstructor) *JourneyService {
	return &JourneyService{repo: repo, recon: recon}
}

// Journeys lists a vehicle's journeys, optionally restricted to one
// departure date.
func (s *JourneyService) Journeys(ctx context.Context, vehicleID, date string) ([]models.Journey, error) {
	if date != "" {
		return s.repo.JourneysForDate(ctx, vehicleID, date)
	}
	return s.repo.JourneysByVehicle(ctx, vehicleID)
}

// Dates lists a vehicle's departure dates, newest first.
func (s *JourneyService) Dates(ctx context.Context, vehicleID string) ([]string, error) {
	return s.repo.DatesForVehicle(ctx, vehicleID)
}

// AllDates lists every departure date across the fleet, newest first.
func (s *JourneyService) AllDates(ctx context.Context) ([]string, error) {
	return s.repo.AllDates(ctx)
}

// RawRoute returns the ordered raw samples of all of a vehicle's journeys on
// one date.
func (s *JourneyService) RawRoute(ctx context.Context, vehicleID, date string) ([]models.PositionSample, error) {
	return s.repo.SamplesForDate(ctx, vehicleID, date)
}

// MatchedRoute returns road-matched geometry for a vehicle's journeys on one
// date, degrading to raw points where matching fails.
func (s *JourneyService) MatchedRoute(ctx context.Context, vehicleID, date string) ([]models.RoutePoint, error) {
	samples, err := s.repo.SamplesForDate(ctx, vehicleID, date)
	if err != nil {
		return nil, err
	}
	return s.recon.Route(ctx, samples), nil
}

// Measure computes distance and duration over a time window of one vehicle's
// day, reusing matched geometry when available.
func (s *JourneyService) Measure(ctx context.Context, vehicleID, date string, startTS, endTS int64) (*models.Measurement, error) {
	if endTS < startTS {
		return nil, fmt.Errorf("end_ts %d before start_ts %d", endTS, startTS)
	}

	samples, err := s.repo.SamplesInWindow(ctx, vehicleID, date, startTS, endTS)
	if err != nil {
		return nil, err
	}

	elapsed := endTS - startTS
	return &models.Measurement{
		DistanceKm: s.recon.DistanceKm(ctx, samples),
		Hours:      elapsed / 3600,
		Minutes:    (elapsed % 3600) / 60,
	}, nil
}
