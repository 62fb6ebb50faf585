package models

import (
	"encoding/json"
	"fmt"
	"os"
)

// Feed type constants
const (
	FeedTrackApp  = "trackapp"
	FeedWebSocket = "websocket"
)

// VehicleConfig describes one fleet vehicle and the feed that tracks it.
// Field names follow the fleet file format.
type VehicleConfig struct {
	FeedType  string `json:"tracking_type"` // "trackapp" (default) or "websocket"
	BusNo     string `json:"bus_no"`        // trackapp identity
	ServiceNo string `json:"serviceNo"`     // websocket identity
	DeviceID  string `json:"device_id"`
	Auth      string `json:"auth"`
	Operator  string `json:"operator"`
}

// ID returns the stable vehicle key used to partition journeys and session
// state: the registration number for polled vehicles, the service number for
// push vehicles.
func (v VehicleConfig) ID() string {
	if v.FeedType == FeedWebSocket {
		return v.ServiceNo
	}
	return v.BusNo
}

// LoadFleet reads the vehicle descriptor file. It is read once at startup;
// hot reload is not supported.
func LoadFleet(path string) ([]VehicleConfig, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read fleet file: %w", err)
	}

	var fleet []VehicleConfig
	if err := json.Unmarshal(data, &fleet); err != nil {
		return nil, fmt.Errorf("failed to parse fleet file %s: %w", path, err)
	}

	for i := range fleet {
		if fleet[i].FeedType == "" {
			fleet[i].FeedType = FeedTrackApp
		}
	}
	return fleet, nil
}
