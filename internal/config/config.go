package config

import (
	"fmt"
	"os"
	"strconv"
	"time"

	"github.com/joho/godotenv"
)

// Config is the full application configuration.
type Config struct {
	Port      string
	DBPath    string
	FleetPath string
	LogLevel  string
	LogFile   string // empty = stderr only

	// Location is the fixed local time zone used to derive departure dates
	// and the corrector's night window.
	Location *time.Location

	Feeds    Feeds
	Tracking Tracking
	Matching Matching
}

// Feeds configures the two feed adapters.
type Feeds struct {
	TrackAppURL    string
	PushURL        string
	PollInterval   time.Duration
	RequestTimeout time.Duration
	ReconnectDelay time.Duration
}

// Tracking consolidates the journey-segmentation thresholds. They are
// injected into the state machine, janitor and corrector rather than
// hard-coded at the use sites.
type Tracking struct {
	// IdleRadiusMeters is how far a vehicle may drift from its idle anchor
	// and still count as stationary.
	IdleRadiusMeters float64
	// MovementThresholdKmh gates journey creation: at or below it a vehicle
	// with no active journey is considered parked and its samples dropped.
	MovementThresholdKmh float64
	// IdleEndAfter is how long a vehicle must sit inside the idle radius
	// before its journey is ended.
	IdleEndAfter time.Duration
	// StaleAfter is the janitor's staleness window: an active journey with
	// no activity for this long is force-closed.
	StaleAfter time.Duration
	// JanitorInterval is the sweep cadence.
	JanitorInterval time.Duration
	// NightWindowEndHour bounds the corrector's early-morning window
	// [00:00, NightWindowEndHour:00) in local time.
	NightWindowEndHour int
	// MaxMergeGap is the largest gap between two journeys the corrector
	// will still treat as a day-boundary artifact.
	MaxMergeGap time.Duration
}

// Matching configures the route reconstructor and its OSRM client.
type Matching struct {
	OSRMBaseURL        string
	SearchRadiusMeters float64
	JitterMeters       float64
	MaxSampleGap       time.Duration
	BatchSize          int
	RequestTimeout     time.Duration
}

// Load builds the configuration from the environment, reading .env first if
// present. Only malformed values are errors; everything has a default.
func Load() (*Config, error) {
	_ = godotenv.Load()

	cfg := &Config{
		Port:      getenvDefault("PORT", ":8080"),
		DBPath:    getenvDefault("DB_PATH", "./data/fleet.db"),
		FleetPath: getenvDefault("FLEET_PATH", "./vehicles.json"),
		LogLevel:  getenvDefault("LOG_LEVEL", "info"),
		LogFile:   os.Getenv("LOG_FILE"),
	}

	tzName := getenvDefault("TZ", "Asia/Kolkata")
	loc, err := time.LoadLocation(tzName)
	if err != nil {
		return nil, fmt.Errorf("invalid TZ: %w", err)
	}
	cfg.Location = loc

	cfg.Feeds = Feeds{
		TrackAppURL:    getenvDefault("TRACKAPP_URL", "https://reports.yourbus.in/ci/trackApp"),
		PushURL:        getenvDefault("PUSH_FEED_URL", "wss://reports.yourbus.in:1029"),
		PollInterval:   10 * time.Second,
		RequestTimeout: 10 * time.Second,
		ReconnectDelay: 5 * time.Second,
	}
	if cfg.Feeds.PollInterval, err = durationSeconds("POLL_INTERVAL_SEC", cfg.Feeds.PollInterval); err != nil {
		return nil, err
	}

	cfg.Tracking = Tracking{
		IdleRadiusMeters:     300,
		MovementThresholdKmh: 5,
		IdleEndAfter:         time.Hour,
		StaleAfter:           time.Hour,
		JanitorInterval:      10 * time.Minute,
		NightWindowEndHour:   6,
		MaxMergeGap:          15 * time.Minute,
	}
	if cfg.Tracking.JanitorInterval, err = durationSeconds("JANITOR_INTERVAL_SEC", cfg.Tracking.JanitorInterval); err != nil {
		return nil, err
	}

	cfg.Matching = Matching{
		OSRMBaseURL:        getenvDefault("OSRM_URL", "http://router.project-osrm.org"),
		SearchRadiusMeters: 30,
		JitterMeters:       20,
		MaxSampleGap:       10 * time.Minute,
		BatchSize:          100,
		RequestTimeout:     15 * time.Second,
	}

	return cfg, nil
}

func getenvDefault(k, def string) string {
	if v := os.Getenv(k); v != "" {
		return v
	}
	return def
}

func durationSeconds(key string, def time.Duration) (time.Duration, error) {
	v := os.Getenv(key)
	if v == "" {
		return def, nil
	}
	sec, err := strconv.Atoi(v)
	if err != nil || sec <= 0 {
		return 0, fmt.Errorf("invalid %s: %q", key, v)
	}
	return time.Duration(sec) * time.Second, nil
}
