package repository

import (
	"context"
	"database/sql"
	"fmt"
	"sync"
	"time"

	"fleet-journeys/internal/database"
	"fleet-journeys/internal/models"
)

// JourneyRepository handles all journey and sample persistence. It owns the
// "at most one active journey per vehicle" invariant: journey creation is a
// check-then-act operation serialized per vehicle, so concurrent writers for
// the same vehicle cannot both open a journey. Cross-vehicle operations
// proceed in parallel.
type JourneyRepository struct {
	db  *sql.DB
	loc *time.Location

	mu           sync.Mutex
	vehicleLocks map[string]*sync.Mutex
}

// NewJourneyRepository creates a new journey repository. loc is the fixed
// local time zone used to derive departure dates.
func NewJourneyRepository(db *sql.DB, loc *time.Location) *JourneyRepository {
	return &JourneyRepository{
		db:           db,
		loc:          loc,
		vehicleLocks: make(map[string]*sync.Mutex),
	}
}

func (r *JourneyRepository) vehicleLock(vehicleID string) *sync.Mutex {
	r.mu.Lock()
	defer r.mu.Unlock()
	l, ok := r.vehicleLocks[vehicleID]
	if !ok {
		l = &sync.Mutex{}
		r.vehicleLocks[vehicleID] = l
	}
	return l
}

const journeyColumns = "journey_id, vehicle_id, departure_date, start_timestamp, end_timestamp, status"

func scanJourney(row interface{ Scan(...interface{}) error }) (*models.Journey, error) {
	var j models.Journey
	var end sql.NullInt64
	if err := row.Scan(&j.JourneyID, &j.VehicleID, &j.DepartureDate, &j.StartTime, &end, &j.Status); err != nil {
		return nil, err
	}
	if end.Valid {
		j.EndTime = end.Int64
	}
	return &j, nil
}

// GetActiveJourney returns the vehicle's active journey, or nil when it has
// none.
func (r *JourneyRepository) GetActiveJourney(ctx context.Context, vehicleID string) (*models.Journey, error) {
	row := r.db.QueryRowContext(ctx,
		"SELECT "+journeyColumns+" FROM journeys WHERE vehicle_id = ? AND status = ?",
		vehicleID, models.JourneyStatusActive)

	j, err := scanJourney(row)
	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get active journey: %w", err)
	}
	return j, nil
}

// CreateJourney opens a journey for the vehicle starting at startTime. If a
// concurrent writer already opened one, that journey is returned instead, so
// the call is safe to race.
func (r *JourneyRepository) CreateJourney(ctx context.Context, vehicleID string, startTime int64) (*models.Journey, error) {
	l := r.vehicleLock(vehicleID)
	l.Lock()
	defer l.Unlock()

	existing, err := r.GetActiveJourney(ctx, vehicleID)
	if err != nil {
		return nil, err
	}
	if existing != nil {
		return existing, nil
	}

	j := &models.Journey{
		JourneyID:     models.JourneyID(vehicleID, startTime),
		VehicleID:     vehicleID,
		DepartureDate: time.Unix(startTime, 0).In(r.loc).Format("2006-01-02"),
		StartTime:     startTime,
		Status:        models.JourneyStatusActive,
	}

	_, err = r.db.ExecContext(ctx, `
		INSERT INTO journeys (journey_id, vehicle_id, departure_date, start_timestamp, status)
		VALUES (?, ?, ?, ?, ?)`,
		j.JourneyID, j.VehicleID, j.DepartureDate, j.StartTime, j.Status)
	if err != nil {
		return nil, fmt.Errorf("failed to create journey: %w", err)
	}
	return j, nil
}

// EndJourney closes a journey at the given timestamp. Ending an already
// ended journey is a no-op, which keeps janitor sweeps idempotent.
func (r *JourneyRepository) EndJourney(ctx context.Context, journeyID string, endTime int64) error {
	_, err := r.db.ExecContext(ctx, `
		UPDATE journeys SET status = ?, end_timestamp = ?
		WHERE journey_id = ? AND status = ?`,
		models.JourneyStatusEnded, endTime, journeyID, models.JourneyStatusActive)
	if err != nil {
		return fmt.Errorf("failed to end journey %s: %w", journeyID, err)
	}
	return nil
}

// AppendSample records one position sample against a journey.
func (r *JourneyRepository) AppendSample(ctx context.Context, journeyID string, s models.PositionSample) error {
	_, err := r.db.ExecContext(ctx, `
		INSERT INTO samples (journey_id, timestamp, lat, lon, speed)
		VALUES (?, ?, ?, ?, ?)`,
		journeyID, s.Timestamp, s.Lat, s.Lon, s.Speed)
	if err != nil {
		return fmt.Errorf("failed to append sample: %w", err)
	}
	return nil
}

// ActiveJourneys returns every active journey across the fleet.
func (r *JourneyRepository) ActiveJourneys(ctx context.Context) ([]models.Journey, error) {
	return r.queryJourneys(ctx,
		"SELECT "+journeyColumns+" FROM journeys WHERE status = ? ORDER BY vehicle_id, start_timestamp",
		models.JourneyStatusActive)
}

// JourneysByVehicle returns all of a vehicle's journeys in chronological
// order.
func (r *JourneyRepository) JourneysByVehicle(ctx context.Context, vehicleID string) ([]models.Journey, error) {
	return r.queryJourneys(ctx,
		"SELECT "+journeyColumns+" FROM journeys WHERE vehicle_id = ? ORDER BY start_timestamp",
		vehicleID)
}

// JourneysForDate returns a vehicle's journeys for one departure date.
func (r *JourneyRepository) JourneysForDate(ctx context.Context, vehicleID, date string) ([]models.Journey, error) {
	return r.queryJourneys(ctx,
		"SELECT "+journeyColumns+" FROM journeys WHERE vehicle_id = ? AND departure_date = ? ORDER BY start_timestamp",
		vehicleID, date)
}

func (r *JourneyRepository) queryJourneys(ctx context.Context, query string, args ...interface{}) ([]models.Journey, error) {
	rows, err := r.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("failed to query journeys: %w", err)
	}
	defer rows.Close()

	var journeys []models.Journey
	for rows.Next() {
		j, err := scanJourney(rows)
		if err != nil {
			return nil, fmt.Errorf("failed to scan journey: %w", err)
		}
		journeys = append(journeys, *j)
	}
	return journeys, rows.Err()
}

// LastActivity returns the timestamp of a journey's most recent sample, or
// its start time when it has none.
func (r *JourneyRepository) LastActivity(ctx context.Context, j models.Journey) (int64, error) {
	var last int64
	err := r.db.QueryRowContext(ctx,
		"SELECT COALESCE(MAX(timestamp), ?) FROM samples WHERE journey_id = ?",
		j.StartTime, j.JourneyID).Scan(&last)
	if err != nil {
		return 0, fmt.Errorf("failed to get last activity for %s: %w", j.JourneyID, err)
	}
	return last, nil
}

// VehicleIDs returns every vehicle that has at least one journey.
func (r *JourneyRepository) VehicleIDs(ctx context.Context) ([]string, error) {
	return r.queryStrings(ctx, "SELECT DISTINCT vehicle_id FROM journeys ORDER BY vehicle_id")
}

// DatesForVehicle returns the distinct departure dates of one vehicle,
// newest first.
func (r *JourneyRepository) DatesForVehicle(ctx context.Context, vehicleID string) ([]string, error) {
	return r.queryStrings(ctx,
		"SELECT DISTINCT departure_date FROM journeys WHERE vehicle_id = ? ORDER BY departure_date DESC",
		vehicleID)
}

// AllDates returns every departure date across the fleet, newest first.
func (r *JourneyRepository) AllDates(ctx context.Context) ([]string, error) {
	return r.queryStrings(ctx, "SELECT DISTINCT departure_date FROM journeys ORDER BY departure_date DESC")
}

func (r *JourneyRepository) queryStrings(ctx context.Context, query string, args ...interface{}) ([]string, error) {
	rows, err := r.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("failed to query: %w", err)
	}
	defer rows.Close()

	var out []string
	for rows.Next() {
		var s string
		if err := rows.Scan(&s); err != nil {
			return nil, fmt.Errorf("failed to scan: %w", err)
		}
		out = append(out, s)
	}
	return out, rows.Err()
}

// SamplesForDate returns the ordered samples of all of a vehicle's journeys
// on one departure date.
func (r *JourneyRepository) SamplesForDate(ctx context.Context, vehicleID, date string) ([]models.PositionSample, error) {
	return r.querySamples(ctx, `
		SELECT j.vehicle_id, s.timestamp, s.lat, s.lon, s.speed
		FROM samples s
		JOIN journeys j ON s.journey_id = j.journey_id
		WHERE j.vehicle_id = ? AND j.departure_date = ?
		ORDER BY s.timestamp`,
		vehicleID, date)
}

// SamplesInWindow returns a vehicle's ordered samples for one departure date
// restricted to [startTS, endTS].
func (r *JourneyRepository) SamplesInWindow(ctx context.Context, vehicleID, date string, startTS, endTS int64) ([]models.PositionSample, error) {
	return r.querySamples(ctx, `
		SELECT j.vehicle_id, s.timestamp, s.lat, s.lon, s.speed
		FROM samples s
		JOIN journeys j ON s.journey_id = j.journey_id
		WHERE j.vehicle_id = ? AND j.departure_date = ? AND s.timestamp BETWEEN ? AND ?
		ORDER BY s.timestamp`,
		vehicleID, date, startTS, endTS)
}

// SamplesForJourney returns one journey's samples in timestamp order.
func (r *JourneyRepository) SamplesForJourney(ctx context.Context, journeyID string) ([]models.PositionSample, error) {
	return r.querySamples(ctx, `
		SELECT j.vehicle_id, s.timestamp, s.lat, s.lon, s.speed
		FROM samples s
		JOIN journeys j ON s.journey_id = j.journey_id
		WHERE s.journey_id = ?
		ORDER BY s.timestamp`,
		journeyID)
}

func (r *JourneyRepository) querySamples(ctx context.Context, query string, args ...interface{}) ([]models.PositionSample, error) {
	rows, err := r.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("failed to query samples: %w", err)
	}
	defer rows.Close()

	var samples []models.PositionSample
	for rows.Next() {
		var s models.PositionSample
		if err := rows.Scan(&s.VehicleID, &s.Timestamp, &s.Lat, &s.Lon, &s.Speed); err != nil {
			return nil, fmt.Errorf("failed to scan sample: %w", err)
		}
		samples = append(samples, s)
	}
	return samples, rows.Err()
}

// MergeJourneys collapses the absorbed journey into the kept one in a single
// transaction: samples are repointed, the kept journey takes over the
// absorbed end fields, and the absorbed row is deleted. A partial failure
// rolls everything back.
func (r *JourneyRepository) MergeJourneys(ctx context.Context, keepID, absorbID string) error {
	return database.Transaction(r.db, func(tx *sql.Tx) error {
		var end sql.NullInt64
		var status string
		err := tx.QueryRowContext(ctx,
			"SELECT end_timestamp, status FROM journeys WHERE journey_id = ?",
			absorbID).Scan(&end, &status)
		if err != nil {
			return fmt.Errorf("failed to load journey %s: %w", absorbID, err)
		}

		if _, err := tx.ExecContext(ctx,
			"UPDATE samples SET journey_id = ? WHERE journey_id = ?",
			keepID, absorbID); err != nil {
			return fmt.Errorf("failed to repoint samples: %w", err)
		}

		if _, err := tx.ExecContext(ctx,
			"UPDATE journeys SET end_timestamp = ?, status = ? WHERE journey_id = ?",
			end, status, keepID); err != nil {
			return fmt.Errorf("failed to update journey %s: %w", keepID, err)
		}

		if _, err := tx.ExecContext(ctx,
			"DELETE FROM journeys WHERE journey_id = ?", absorbID); err != nil {
			return fmt.Errorf("failed to delete journey %s: %w", absorbID, err)
		}
		return nil
	})
}
