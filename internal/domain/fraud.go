package domain

import (
	"time"

	"github.com/google/uuid"
)

// AlertType identifies which fraud check produced an alert.
type AlertType string

const (
	AlertImpossibleTravel   AlertType = "impossible_travel"
	AlertLocationAnomaly    AlertType = "location_anomaly"
	AlertConcurrentCheckIns AlertType = "concurrent_checkins"
	AlertDeviceAnomaly      AlertType = "device_anomaly"
)

// Severity grades a fraud alert.
type Severity string

const (
	SeverityLow      Severity = "low"
	SeverityMedium   Severity = "medium"
	SeverityHigh     Severity = "high"
	SeverityCritical Severity = "critical"
)

// AlertDetails is the typed payload of a FraudAlert. Exactly one concrete
// type exists per AlertType.
type AlertDetails interface {
	alertDetails()
}

// FraudAlert is an advisory signal produced by one fraud check. Alerts never
// block an attempt on their own; callers surface them as warnings.
type FraudAlert struct {
	Type              AlertType    `json:"alert_type"`
	Severity          Severity     `json:"severity"`
	Confidence        float64      `json:"confidence"`
	Details           AlertDetails `json:"details"`
	Message           string       `json:"message"`
	RecommendedAction string       `json:"recommended_action"`
}

// ImpossibleTravelDetails documents a required travel speed above the
// configured maximum.
type ImpossibleTravelDetails struct {
	DistanceKm            float64   `json:"distance_km"`
	ElapsedMinutes        float64   `json:"time_elapsed_minutes"`
	RequiredSpeedKmh      float64   `json:"required_speed_kmh"`
	MaxReasonableSpeedKmh float64   `json:"max_reasonable_speed_kmh"`
	SpeedRatio            float64   `json:"speed_ratio"`
	LastCheckInAt         time.Time `json:"last_check_in_time"`
	LastLocation          GeoPoint  `json:"last_location"`
	CurrentLocation       GeoPoint  `json:"current_location"`
}

func (ImpossibleTravelDetails) alertDetails() {}

// LocationAnomalyDetails documents a check-in statistically far from the
// employee's historical centroid.
type LocationAnomalyDetails struct {
	ZScore                float64  `json:"z_score"`
	ZScoreThreshold       float64  `json:"z_score_threshold"`
	AvgDistanceMeters     float64  `json:"avg_distance_meters"`
	StdDistanceMeters     float64  `json:"std_distance_meters"`
	CurrentDistanceMeters float64  `json:"current_distance_meters"`
	HistoricalCheckIns    int      `json:"total_historical_checkins"`
	LookbackDays          int      `json:"lookback_days"`
	TypicalLocation       GeoPoint `json:"typical_location"`
	CurrentLocation       GeoPoint `json:"current_location"`
}

func (LocationAnomalyDetails) alertDetails() {}

// ConcurrentCheckInsDetails documents multiple open sessions.
type ConcurrentCheckInsDetails struct {
	ActiveSessions int           `json:"total_active_checkins"`
	WindowMinutes  int           `json:"time_window_minutes"`
	Sessions       []OpenSession `json:"locations"`
}

func (ConcurrentCheckInsDetails) alertDetails() {}

// DeviceAnomalyDetails documents suspicious device switching.
type DeviceAnomalyDetails struct {
	UniqueDevices int  `json:"unique_devices_count"`
	TotalCheckIns int  `json:"total_checkins"`
	LookbackDays  int  `json:"lookback_days"`
	CurrentKnown  bool `json:"current_device_known"`
	NewDevice     bool `json:"new_device_after_consistent_use"`
}

func (DeviceAnomalyDetails) alertDetails() {}

// History read models consumed by the fraud checks. All are produced by the
// attendance store and never mutated here.

// CheckInEvent is the most recent check-in inside a trailing window.
type CheckInEvent struct {
	At    time.Time
	Point GeoPoint
}

// HistoricalCheckIn is one past check-in used for pattern statistics.
type HistoricalCheckIn struct {
	At                time.Time
	Point             *GeoPoint
	DeviceFingerprint string
}

// OpenSession is a checked-in, not-yet-checked-out attendance record.
type OpenSession struct {
	RecordID          uuid.UUID `json:"record_id"`
	CheckInAt         time.Time `json:"check_in_time"`
	Point             *GeoPoint `json:"point,omitempty"`
	DeviceFingerprint string    `json:"device_fingerprint,omitempty"`
}
