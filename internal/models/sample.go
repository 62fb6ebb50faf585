package models

// PositionSample is the canonical unit produced by every feed adapter:
// one timestamped position+speed observation for a vehicle.
type PositionSample struct {
	VehicleID string  `json:"vehicle_id" db:"vehicle_id"`
	Timestamp int64   `json:"timestamp" db:"timestamp"` // Unix seconds
	Lat       float64 `json:"lat" db:"lat"`
	Lon       float64 `json:"lon" db:"lon"`
	Speed     float64 `json:"speed" db:"speed"` // km/h
}

// RoutePoint is one vertex of reconstructed route geometry.
type RoutePoint struct {
	Lat float64 `json:"lat"`
	Lon float64 `json:"lon"`
}

// Measurement is the result of a distance/duration query over a time window.
type Measurement struct {
	DistanceKm float64 `json:"distance_km"`
	Hours      int64   `json:"hours"`
	Minutes    int64   `json:"minutes"`
}
