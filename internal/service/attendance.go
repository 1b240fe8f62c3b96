package service

import (
	"context"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"github.com/google/uuid"

	"github.com/saturnino-fabrica-de-software/ponto/internal/domain"
	"github.com/saturnino-fabrica-de-software/ponto/internal/geo"
	"github.com/saturnino-fabrica-de-software/ponto/internal/identity"
	"github.com/saturnino-fabrica-de-software/ponto/internal/repository"
)

// LivenessVerifier gates a verification attempt on multi-frame
// anti-spoofing analysis.
type LivenessVerifier interface {
	Verify(ctx context.Context, frames []string) (*domain.LivenessResult, error)
}

// FraudChecker runs the fraud-pattern detections for one attempt.
type FraudChecker interface {
	Check(ctx context.Context, employeeID uuid.UUID, point *domain.GeoPoint, deviceFingerprint string, isCheckIn bool) ([]domain.FraudAlert, error)
}

// AttendanceRepositoryInterface is the attendance store the orchestrator
// writes through.
type AttendanceRepositoryInterface interface {
	GetByDate(ctx context.Context, employeeID uuid.UUID, date time.Time) (*domain.AttendanceRecord, error)
	CreateCheckIn(ctx context.Context, rec *domain.AttendanceRecord) (bool, error)
	SetCheckOut(ctx context.Context, rec *domain.AttendanceRecord) error
	List(ctx context.Context, f repository.ListFilter) ([]domain.AttendanceRecord, error)
}

// SiteRepositoryInterface resolves the employee's assigned geofence site.
type SiteRepositoryInterface interface {
	GetAssignedSite(ctx context.Context, employeeID uuid.UUID) (*domain.Site, error)
}

// Config holds the orchestrator's own tunables.
type Config struct {
	GeoValidationEnabled bool
	IdentityTimeout      time.Duration
}

func DefaultConfig() Config {
	return Config{
		GeoValidationEnabled: true,
		IdentityTimeout:      10 * time.Second,
	}
}

// CheckRequest is one inbound check-in or check-out attempt.
type CheckRequest struct {
	Frames    []string
	DeviceID  string
	Latitude  *float64
	Longitude *float64
}

// Point returns the reported coordinate, or nil when not supplied.
func (r CheckRequest) Point() *domain.GeoPoint {
	if r.Latitude == nil || r.Longitude == nil {
		return nil
	}
	return &domain.GeoPoint{Latitude: *r.Latitude, Longitude: *r.Longitude}
}

// CheckResult is the outcome of a successful (possibly idempotent) attempt.
type CheckResult struct {
	Record         *domain.AttendanceRecord
	EmployeeID     uuid.UUID
	EmployeeName   string
	Confidence     float64
	LivenessScore  float64
	GeoValidated   bool
	DistanceMeters *float64
	Warnings       []string
	Message        string
	Duplicate      bool
}

// AttendanceService sequences the anti-fraud pipeline around the per-day
// attendance state machine: NoRecord -> CheckedIn -> CheckedOut.
//
// Liveness and identity are hard gates. Geofence and fraud results are
// advisory only; they are stored and surfaced as warnings but never block
// an attempt, because a false positive must not stop legitimate attendance.
type AttendanceService struct {
	attendance AttendanceRepositoryInterface
	sites      SiteRepositoryInterface
	liveness   LivenessVerifier
	matcher    identity.Matcher
	fraud      FraudChecker
	cfg        Config
	logger     *slog.Logger
	now        func() time.Time
}

func NewAttendanceService(
	attendance AttendanceRepositoryInterface,
	sites SiteRepositoryInterface,
	livenessVerifier LivenessVerifier,
	matcher identity.Matcher,
	fraudChecker FraudChecker,
	cfg Config,
	logger *slog.Logger,
) *AttendanceService {
	return &AttendanceService{
		attendance: attendance,
		sites:      sites,
		liveness:   livenessVerifier,
		matcher:    matcher,
		fraud:      fraudChecker,
		cfg:        cfg,
		logger:     logger,
		now:        time.Now,
	}
}

// CheckIn runs the full pipeline for a check-in attempt. The attendance
// write happens only after every gating check passed, so an aborted attempt
// never leaves a partial record behind.
func (s *AttendanceService) CheckIn(ctx context.Context, req CheckRequest) (*CheckResult, error) {
	match, liveness, err := s.gate(ctx, req)
	if err != nil {
		return nil, err
	}

	point := req.Point()
	geoResult := s.validateGeofence(ctx, match.EmployeeID, point)
	warnings, err := s.runFraudChecks(ctx, match.EmployeeID, point, req.DeviceID, true)
	if err != nil {
		return nil, err
	}

	now := s.now().UTC()
	today := dateOf(now)

	existing, err := s.attendance.GetByDate(ctx, match.EmployeeID, today)
	if err != nil {
		return nil, err
	}
	if existing != nil && existing.CheckIn != nil {
		return s.duplicateResult(existing, match, liveness,
			fmt.Sprintf("Already checked in at %s", existing.CheckIn.Format("15:04"))), nil
	}

	rec := &domain.AttendanceRecord{
		EmployeeID:               match.EmployeeID,
		RecordDate:               today,
		CheckIn:                  &now,
		Status:                   domain.StatusPresent,
		CheckInPoint:             point,
		CheckInDistanceMeters:    geoResult.DistanceMeters,
		CheckInConfidence:        &match.Confidence,
		CheckInLivenessScore:     &liveness.AvgScore,
		CheckInDeviceFingerprint: deviceFingerprint(req.DeviceID),
		GeoValidated:             geoResult.IsValid,
	}

	created, err := s.attendance.CreateCheckIn(ctx, rec)
	if err != nil {
		return nil, err
	}
	if !created {
		// Lost the race for today's record; report the winner's check-in.
		existing, err := s.attendance.GetByDate(ctx, match.EmployeeID, today)
		if err != nil {
			return nil, err
		}
		if existing == nil || existing.CheckIn == nil {
			return nil, domain.ErrInternal.WithError(fmt.Errorf("attendance record vanished for employee %s", match.EmployeeID))
		}
		return s.duplicateResult(existing, match, liveness,
			fmt.Sprintf("Already checked in at %s", existing.CheckIn.Format("15:04"))), nil
	}

	message := s.buildMessage(
		fmt.Sprintf("Welcome, %s! Check-in at %s", match.EmployeeName, now.Format("15:04")),
		match.Confidence, liveness.AvgScore, geoResult, point, warnings)

	return &CheckResult{
		Record:         rec,
		EmployeeID:     match.EmployeeID,
		EmployeeName:   match.EmployeeName,
		Confidence:     match.Confidence,
		LivenessScore:  liveness.AvgScore,
		GeoValidated:   geoResult.IsValid,
		DistanceMeters: geoResult.DistanceMeters,
		Warnings:       warnings,
		Message:        message,
	}, nil
}

// CheckOut closes the day's record. A check-out whose location fails the
// geofence revokes an already granted geo_validated flag; it never
// re-grants one.
func (s *AttendanceService) CheckOut(ctx context.Context, req CheckRequest) (*CheckResult, error) {
	match, liveness, err := s.gate(ctx, req)
	if err != nil {
		return nil, err
	}

	point := req.Point()
	geoResult := s.validateGeofence(ctx, match.EmployeeID, point)
	warnings, err := s.runFraudChecks(ctx, match.EmployeeID, point, req.DeviceID, false)
	if err != nil {
		return nil, err
	}

	now := s.now().UTC()
	today := dateOf(now)

	existing, err := s.attendance.GetByDate(ctx, match.EmployeeID, today)
	if err != nil {
		return nil, err
	}
	if existing == nil || existing.CheckIn == nil {
		return nil, domain.ErrNoOpenCheckIn
	}
	if existing.CheckOut != nil {
		return s.duplicateResult(existing, match, liveness,
			fmt.Sprintf("Already checked out at %s", existing.CheckOut.Format("15:04"))), nil
	}

	existing.CheckOut = &now
	existing.CheckOutPoint = point
	existing.CheckOutDistanceMeters = geoResult.DistanceMeters
	existing.CheckOutConfidence = &match.Confidence
	existing.CheckOutLivenessScore = &liveness.AvgScore
	existing.CheckOutDeviceFingerprint = deviceFingerprint(req.DeviceID)

	// Overall-day validity survives only when check-out also validates.
	if existing.GeoValidated && !geoResult.IsValid {
		existing.GeoValidated = false
	}

	if err := s.attendance.SetCheckOut(ctx, existing); err != nil {
		return nil, err
	}

	message := s.buildMessage(
		fmt.Sprintf("Goodbye, %s! Check-out at %s", match.EmployeeName, now.Format("15:04")),
		match.Confidence, liveness.AvgScore, geoResult, point, warnings)

	return &CheckResult{
		Record:         existing,
		EmployeeID:     match.EmployeeID,
		EmployeeName:   match.EmployeeName,
		Confidence:     match.Confidence,
		LivenessScore:  liveness.AvgScore,
		GeoValidated:   existing.GeoValidated,
		DistanceMeters: geoResult.DistanceMeters,
		Warnings:       warnings,
		Message:        message,
	}, nil
}

// List exposes attendance records for reporting.
func (s *AttendanceService) List(ctx context.Context, f repository.ListFilter) ([]domain.AttendanceRecord, error) {
	return s.attendance.List(ctx, f)
}

// ListToday returns today's records.
func (s *AttendanceService) ListToday(ctx context.Context) ([]domain.AttendanceRecord, error) {
	today := dateOf(s.now().UTC())
	return s.attendance.List(ctx, repository.ListFilter{Date: &today})
}

// gate runs the hard gates shared by check-in and check-out: frames must be
// present, liveness must pass, and identity must resolve.
func (s *AttendanceService) gate(ctx context.Context, req CheckRequest) (*identity.Match, *domain.LivenessResult, error) {
	if len(req.Frames) == 0 {
		return nil, nil, domain.ErrNoFramesProvided
	}

	liveness, err := s.liveness.Verify(ctx, req.Frames)
	if err != nil {
		return nil, nil, err
	}
	if !liveness.IsReal {
		err := domain.ErrLivenessFailed
		if liveness.ErrorMessage != "" {
			err = err.WithMessage(liveness.ErrorMessage)
		}
		return nil, nil, err
	}

	best := req.Frames[0]
	if liveness.BestFrameIndex >= 0 && liveness.BestFrameIndex < len(req.Frames) {
		best = req.Frames[liveness.BestFrameIndex]
	}

	ictx, cancel := context.WithTimeout(ctx, s.cfg.IdentityTimeout)
	defer cancel()

	match, err := s.matcher.Resolve(ictx, best)
	if err != nil {
		return nil, nil, err
	}

	return match, liveness, nil
}

// validateGeofence resolves the assigned site and checks containment. A
// site lookup failure degrades to "cannot validate" with a log line rather
// than failing the attempt: geofencing is advisory.
func (s *AttendanceService) validateGeofence(ctx context.Context, employeeID uuid.UUID, point *domain.GeoPoint) geo.Result {
	if !s.cfg.GeoValidationEnabled || point == nil {
		return geo.Result{}
	}

	site, err := s.sites.GetAssignedSite(ctx, employeeID)
	if err != nil {
		s.logger.Warn("site lookup failed, skipping geo validation",
			slog.String("employee_id", employeeID.String()),
			slog.Any("error", err),
		)
		return geo.Result{}
	}

	return geo.Validate(point, site)
}

// runFraudChecks maps fraud alerts into user-facing warnings. Store errors
// are fatal for the attempt; alerts themselves never are.
func (s *AttendanceService) runFraudChecks(ctx context.Context, employeeID uuid.UUID, point *domain.GeoPoint, deviceID string, isCheckIn bool) ([]string, error) {
	fingerprint := ""
	if fp := deviceFingerprint(deviceID); fp != nil {
		fingerprint = *fp
	}

	alerts, err := s.fraud.Check(ctx, employeeID, point, fingerprint, isCheckIn)
	if err != nil {
		return nil, domain.ErrInternal.WithError(err)
	}

	var warnings []string
	for _, alert := range alerts {
		s.logger.Warn("fraud alert",
			slog.String("employee_id", employeeID.String()),
			slog.String("type", string(alert.Type)),
			slog.String("severity", string(alert.Severity)),
			slog.Float64("confidence", alert.Confidence),
		)
		warnings = append(warnings, alert.Message)
	}

	return warnings, nil
}

func (s *AttendanceService) duplicateResult(rec *domain.AttendanceRecord, match *identity.Match, liveness *domain.LivenessResult, message string) *CheckResult {
	return &CheckResult{
		Record:         rec,
		EmployeeID:     match.EmployeeID,
		EmployeeName:   match.EmployeeName,
		Confidence:     match.Confidence,
		LivenessScore:  liveness.AvgScore,
		GeoValidated:   rec.GeoValidated,
		DistanceMeters: rec.CheckInDistanceMeters,
		Message:        message,
		Duplicate:      true,
	}
}

// buildMessage assembles the user-facing summary: greeting, confidence,
// liveness, geo status, then every fraud warning, joined with " | ".
func (s *AttendanceService) buildMessage(greeting string, confidence, livenessScore float64, geoResult geo.Result, point *domain.GeoPoint, warnings []string) string {
	parts := []string{
		greeting,
		fmt.Sprintf("Confidence: %.1f%%", confidence*100),
		fmt.Sprintf("Liveness: %.1f%%", livenessScore*100),
	}

	if !geoResult.IsValid && point != nil {
		if geoResult.DistanceMeters != nil {
			parts = append(parts, fmt.Sprintf("Outside allowed area: %.0fm", *geoResult.DistanceMeters))
		} else {
			parts = append(parts, "No location assigned")
		}
	}

	parts = append(parts, warnings...)

	return strings.Join(parts, " | ")
}

// deviceFingerprint derives the stored fingerprint from the inbound device
// identifier. The identifier is opaque; it is compared, never interpreted.
func deviceFingerprint(deviceID string) *string {
	if deviceID == "" {
		return nil
	}
	return &deviceID
}

// dateOf truncates a timestamp to its UTC calendar day.
func dateOf(t time.Time) time.Time {
	return time.Date(t.Year(), t.Month(), t.Day(), 0, 0, 0, 0, time.UTC)
}
