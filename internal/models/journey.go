package models

import "fmt"

// Journey status constants
const (
	JourneyStatusActive = "active"
	JourneyStatusEnded  = "ended"
)

// Journey represents one contiguous vehicle trip, bounded by a start and
// (eventually) an end event. At most one journey per vehicle may be active
// at any time; the repository enforces this.
type Journey struct {
	JourneyID     string `json:"journey_id" db:"journey_id"`
	VehicleID     string `json:"vehicle_id" db:"vehicle_id"`
	DepartureDate string `json:"departure_date" db:"departure_date"` // YYYY-MM-DD in the configured time zone
	StartTime     int64  `json:"start_timestamp" db:"start_timestamp"`
	EndTime       int64  `json:"end_timestamp,omitempty" db:"end_timestamp"` // 0 while active
	Status        string `json:"status" db:"status"`
}

// Active reports whether the journey is still open.
func (j *Journey) Active() bool {
	return j.Status == JourneyStatusActive
}

// JourneyID generates the deterministic journey identifier for a vehicle and
// start timestamp. Deterministic ids make creation retries idempotent.
func JourneyID(vehicleID string, startTime int64) string {
	return fmt.Sprintf("%s_%d", vehicleID, startTime)
}

// MergeCandidate is a pair of consecutive journeys that the corrector judges
// to be a single physical trip cut at a calendar-day boundary.
type MergeCandidate struct {
	VehicleID  string `json:"vehicle_id"`
	KeepID     string `json:"keep_journey_id"`
	AbsorbID   string `json:"absorb_journey_id"`
	KeepDate   string `json:"keep_departure_date"`
	AbsorbDate string `json:"absorb_departure_date"`
	GapSeconds int64  `json:"gap_seconds"`
}

// StaleJourney is a janitor finding: an active journey whose vehicle stopped
// reporting without a clean end event.
type StaleJourney struct {
	JourneyID    string `json:"journey_id"`
	VehicleID    string `json:"vehicle_id"`
	LastActivity int64  `json:"last_activity"` // becomes the end timestamp on close
}
