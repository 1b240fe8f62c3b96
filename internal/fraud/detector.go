// Package fraud implements statistical fraud-pattern detection over
// historical attendance data.
//
// Four independent checks run per attempt: impossible travel, location
// pattern anomaly, concurrent check-ins, and device pattern anomaly. Each
// produces a severity-graded advisory alert; none of them ever blocks an
// attempt by itself, because false positives on these heuristics must not
// stop legitimate attendance.
package fraud

import (
	"context"
	"fmt"
	"math"
	"time"

	"github.com/google/uuid"
	"golang.org/x/sync/errgroup"

	"github.com/saturnino-fabrica-de-software/ponto/internal/domain"
	"github.com/saturnino-fabrica-de-software/ponto/internal/geo"
)

// HistoryStore is the read-only view of past attendance the checks consume.
type HistoryStore interface {
	// RecentCheckIn returns the newest check-in inside the trailing window,
	// or nil when there is none.
	RecentCheckIn(ctx context.Context, employeeID uuid.UUID, within time.Duration) (*domain.CheckInEvent, error)

	// HistoricalCheckIns returns check-ins from the lookback period, newest
	// first. Entries may lack a point or a device fingerprint.
	HistoricalCheckIns(ctx context.Context, employeeID uuid.UUID, lookbackDays int) ([]domain.HistoricalCheckIn, error)

	// OpenSessions returns checked-in, not-checked-out records started
	// inside the window.
	OpenSessions(ctx context.Context, employeeID uuid.UUID, within time.Duration) ([]domain.OpenSession, error)
}

// Config holds the tunables for all four checks.
type Config struct {
	MaxReasonableSpeedKmh   float64
	TravelWindowMinutes     int
	LocationLookbackDays    int
	ZScoreThreshold         float64
	DeviceLookbackDays      int
	DeviceCountThreshold    int
	ConcurrentWindowMinutes int
}

func DefaultConfig() Config {
	return Config{
		MaxReasonableSpeedKmh:   80,
		TravelWindowMinutes:     60,
		LocationLookbackDays:    30,
		ZScoreThreshold:         3.0,
		DeviceLookbackDays:      30,
		DeviceCountThreshold:    3,
		ConcurrentWindowMinutes: 5,
	}
}

// Detector runs the fraud checks against a history store.
type Detector struct {
	history HistoryStore
	cfg     Config
}

func NewDetector(history HistoryStore, cfg Config) *Detector {
	return &Detector{history: history, cfg: cfg}
}

// Check runs every applicable detection concurrently and returns the alerts
// in a fixed order (travel, concurrent, location, device). The checks are
// read-only and independent, so they fan out; a store failure aborts the
// whole attempt.
func (d *Detector) Check(
	ctx context.Context,
	employeeID uuid.UUID,
	point *domain.GeoPoint,
	deviceFingerprint string,
	isCheckIn bool,
) ([]domain.FraudAlert, error) {
	var results [4]*domain.FraudAlert

	g, ctx := errgroup.WithContext(ctx)

	if point != nil {
		g.Go(func() error {
			alert, err := d.DetectImpossibleTravel(ctx, employeeID, *point)
			results[0] = alert
			return err
		})
		g.Go(func() error {
			alert, err := d.DetectLocationAnomaly(ctx, employeeID, *point)
			results[2] = alert
			return err
		})
	}
	if isCheckIn {
		g.Go(func() error {
			alert, err := d.DetectConcurrentCheckIns(ctx, employeeID)
			results[1] = alert
			return err
		})
	}
	if deviceFingerprint != "" {
		g.Go(func() error {
			alert, err := d.DetectDeviceAnomaly(ctx, employeeID, deviceFingerprint)
			results[3] = alert
			return err
		})
	}

	if err := g.Wait(); err != nil {
		return nil, fmt.Errorf("fraud detection: %w", err)
	}

	var alerts []domain.FraudAlert
	for _, alert := range results {
		if alert != nil {
			alerts = append(alerts, *alert)
		}
	}
	return alerts, nil
}

// DetectImpossibleTravel flags a check-in whose distance from the previous
// one would require traveling faster than the configured maximum speed.
func (d *Detector) DetectImpossibleTravel(ctx context.Context, employeeID uuid.UUID, current domain.GeoPoint) (*domain.FraudAlert, error) {
	window := time.Duration(d.cfg.TravelWindowMinutes) * time.Minute

	last, err := d.history.RecentCheckIn(ctx, employeeID, window)
	if err != nil {
		return nil, fmt.Errorf("recent check-in: %w", err)
	}
	if last == nil {
		// No recent check-in, nothing to compare against.
		return nil, nil
	}

	distanceKm := geo.Distance(last.Point, current) / 1000
	elapsedMinutes := time.Since(last.At).Minutes()
	if elapsedMinutes < 1 {
		elapsedMinutes = 1
	}

	requiredSpeedKmh := (distanceKm / elapsedMinutes) * 60
	ratio := requiredSpeedKmh / d.cfg.MaxReasonableSpeedKmh
	if ratio <= 1.0 {
		return nil, nil
	}

	var (
		severity   domain.Severity
		confidence float64
		action     string
	)
	switch {
	case ratio > 3.0:
		severity, confidence = domain.SeverityCritical, 0.99
		action = "Block check-in immediately, investigate account"
	case ratio > 2.0:
		severity, confidence = domain.SeverityHigh, 0.95
		action = "Block check-in, send alert to supervisor"
	case ratio > 1.5:
		severity, confidence = domain.SeverityMedium, 0.85
		action = "Allow but flag for review"
	default:
		severity, confidence = domain.SeverityLow, 0.70
		action = "Log for audit trail"
	}

	return &domain.FraudAlert{
		Type:       domain.AlertImpossibleTravel,
		Severity:   severity,
		Confidence: confidence,
		Details: domain.ImpossibleTravelDetails{
			DistanceKm:            round2(distanceKm),
			ElapsedMinutes:        round1(elapsedMinutes),
			RequiredSpeedKmh:      round1(requiredSpeedKmh),
			MaxReasonableSpeedKmh: d.cfg.MaxReasonableSpeedKmh,
			SpeedRatio:            round2(ratio),
			LastCheckInAt:         last.At,
			LastLocation:          last.Point,
			CurrentLocation:       current,
		},
		Message: fmt.Sprintf(
			"Impossible travel detected: %.1fkm in %.0f minutes requires %.0fkm/h (max reasonable: %.0fkm/h)",
			distanceKm, elapsedMinutes, requiredSpeedKmh, d.cfg.MaxReasonableSpeedKmh),
		RecommendedAction: action,
	}, nil
}

// DetectLocationAnomaly flags a check-in statistically far from the
// employee's historical centroid, using a z-score over distances.
func (d *Detector) DetectLocationAnomaly(ctx context.Context, employeeID uuid.UUID, current domain.GeoPoint) (*domain.FraudAlert, error) {
	history, err := d.history.HistoricalCheckIns(ctx, employeeID, d.cfg.LocationLookbackDays)
	if err != nil {
		return nil, fmt.Errorf("historical check-ins: %w", err)
	}

	var points []domain.GeoPoint
	for _, h := range history {
		if h.Point != nil {
			points = append(points, *h.Point)
		}
	}

	// Require at least 5 check-ins for statistical significance.
	if len(points) < 5 {
		return nil, nil
	}

	centroid := centroid(points)

	distances := make([]float64, len(points))
	var sum float64
	for i, p := range points {
		distances[i] = geo.Distance(p, centroid)
		sum += distances[i]
	}
	mean := sum / float64(len(distances))

	var sq float64
	for _, dist := range distances {
		diff := dist - mean
		sq += diff * diff
	}
	std := math.Sqrt(sq / float64(len(distances)-1))
	if std < 1.0 {
		// Floor to avoid division by zero on perfectly regular histories.
		std = 1.0
	}

	currentDistance := geo.Distance(current, centroid)
	zScore := (currentDistance - mean) / std
	if zScore <= d.cfg.ZScoreThreshold {
		return nil, nil
	}

	var (
		severity   domain.Severity
		confidence float64
		action     string
	)
	switch {
	case zScore > d.cfg.ZScoreThreshold*2:
		severity, confidence = domain.SeverityCritical, 0.98
		action = "Block check-in, require supervisor approval"
	case zScore > d.cfg.ZScoreThreshold*1.5:
		severity, confidence = domain.SeverityHigh, 0.92
		action = "Flag for manual review, send alert"
	default:
		severity, confidence = domain.SeverityMedium, 0.85
		action = "Log anomaly, allow but monitor"
	}

	return &domain.FraudAlert{
		Type:       domain.AlertLocationAnomaly,
		Severity:   severity,
		Confidence: confidence,
		Details: domain.LocationAnomalyDetails{
			ZScore:                round2(zScore),
			ZScoreThreshold:       d.cfg.ZScoreThreshold,
			AvgDistanceMeters:     round2(mean),
			StdDistanceMeters:     round2(std),
			CurrentDistanceMeters: round2(currentDistance),
			HistoricalCheckIns:    len(points),
			LookbackDays:          d.cfg.LocationLookbackDays,
			TypicalLocation:       centroid,
			CurrentLocation:       current,
		},
		Message: fmt.Sprintf(
			"Location anomaly: %.1f standard deviations from normal pattern (%.1f threshold)",
			zScore, d.cfg.ZScoreThreshold),
		RecommendedAction: action,
	}, nil
}

// DetectConcurrentCheckIns flags more than one open session inside a short
// window. Being in two places at once is unambiguous, so the alert is
// always critical.
func (d *Detector) DetectConcurrentCheckIns(ctx context.Context, employeeID uuid.UUID) (*domain.FraudAlert, error) {
	window := time.Duration(d.cfg.ConcurrentWindowMinutes) * time.Minute

	sessions, err := d.history.OpenSessions(ctx, employeeID, window)
	if err != nil {
		return nil, fmt.Errorf("open sessions: %w", err)
	}
	if len(sessions) <= 1 {
		return nil, nil
	}

	return &domain.FraudAlert{
		Type:       domain.AlertConcurrentCheckIns,
		Severity:   domain.SeverityCritical,
		Confidence: 0.99,
		Details: domain.ConcurrentCheckInsDetails{
			ActiveSessions: len(sessions),
			WindowMinutes:  d.cfg.ConcurrentWindowMinutes,
			Sessions:       sessions,
		},
		Message: fmt.Sprintf(
			"Multiple concurrent check-ins detected: %d active sessions", len(sessions)),
		RecommendedAction: "Block check-in, investigate account for credential sharing",
	}, nil
}

// DetectDeviceAnomaly flags suspicious device switching: too many distinct
// devices in the lookback window, or a never-seen device after a long
// single-device history.
func (d *Detector) DetectDeviceAnomaly(ctx context.Context, employeeID uuid.UUID, fingerprint string) (*domain.FraudAlert, error) {
	history, err := d.history.HistoricalCheckIns(ctx, employeeID, d.cfg.DeviceLookbackDays)
	if err != nil {
		return nil, fmt.Errorf("historical check-ins: %w", err)
	}

	devices := make(map[string]int)
	total := 0
	for _, h := range history {
		if h.DeviceFingerprint == "" {
			continue
		}
		devices[h.DeviceFingerprint]++
		total++
	}

	if total < 3 {
		// Insufficient data for a meaningful pattern.
		return nil, nil
	}

	known := devices[fingerprint] > 0

	if len(devices) > d.cfg.DeviceCountThreshold {
		severity := domain.SeverityMedium
		if len(devices) > 5 {
			severity = domain.SeverityHigh
		}
		return &domain.FraudAlert{
			Type:       domain.AlertDeviceAnomaly,
			Severity:   severity,
			Confidence: 0.80,
			Details: domain.DeviceAnomalyDetails{
				UniqueDevices: len(devices),
				TotalCheckIns: total,
				LookbackDays:  d.cfg.DeviceLookbackDays,
				CurrentKnown:  known,
			},
			Message: fmt.Sprintf(
				"Suspicious device pattern: %d different devices in %d days",
				len(devices), d.cfg.DeviceLookbackDays),
			RecommendedAction: "Monitor closely, possible credential sharing",
		}, nil
	}

	if !known && total > 10 {
		return &domain.FraudAlert{
			Type:       domain.AlertDeviceAnomaly,
			Severity:   domain.SeverityMedium,
			Confidence: 0.75,
			Details: domain.DeviceAnomalyDetails{
				UniqueDevices: len(devices),
				TotalCheckIns: total,
				LookbackDays:  d.cfg.DeviceLookbackDays,
				CurrentKnown:  false,
				NewDevice:     true,
			},
			Message:           "New device detected after consistent single-device usage",
			RecommendedAction: "Verify employee identity, possible account compromise",
		}, nil
	}

	return nil, nil
}

// centroid is the arithmetic mean of the coordinates. Good enough at
// geofence scales; matches what a geometric collect-and-center would give.
func centroid(points []domain.GeoPoint) domain.GeoPoint {
	var lat, lon float64
	for _, p := range points {
		lat += p.Latitude
		lon += p.Longitude
	}
	n := float64(len(points))
	return domain.GeoPoint{Latitude: lat / n, Longitude: lon / n}
}

func round1(v float64) float64 { return math.Round(v*10) / 10 }
func round2(v float64) float64 { return math.Round(v*100) / 100 }
