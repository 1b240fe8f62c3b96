package repository

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"

	"github.com/saturnino-fabrica-de-software/ponto/internal/domain"
)

// AttendanceRepository persists one attendance record per employee per
// calendar day. The unique constraint on (employee_id, record_date) is the
// serialization point for concurrent attempts: only one writer can create
// the day's record, everyone else observes it.
type AttendanceRepository struct {
	pool PgxPool
}

func NewAttendanceRepository(pool PgxPool) *AttendanceRepository {
	return &AttendanceRepository{pool: pool}
}

const attendanceColumns = `
	id, employee_id, record_date, check_in, check_out, status,
	check_in_latitude, check_in_longitude, check_out_latitude, check_out_longitude,
	check_in_distance_meters, check_out_distance_meters,
	check_in_confidence, check_out_confidence,
	check_in_liveness_score, check_out_liveness_score,
	check_in_device_fingerprint, check_out_device_fingerprint,
	geo_validated, created_at, updated_at`

// GetByDate returns the record for (employee, day), or nil when the day has
// no record yet. Absence is a normal state, not an error.
func (r *AttendanceRepository) GetByDate(ctx context.Context, employeeID uuid.UUID, date time.Time) (*domain.AttendanceRecord, error) {
	query := `SELECT` + attendanceColumns + `
		FROM attendance_records
		WHERE employee_id = $1 AND record_date = $2`

	rec, err := scanRecord(r.pool.QueryRow(ctx, query, employeeID, date))
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("get attendance by date: %w", err)
	}

	return rec, nil
}

// CreateCheckIn inserts the day's record. Returns created=false when
// another writer already created it (the caller re-reads and treats the
// attempt as a duplicate).
func (r *AttendanceRepository) CreateCheckIn(ctx context.Context, rec *domain.AttendanceRecord) (bool, error) {
	query := `
		INSERT INTO attendance_records (
			id, employee_id, record_date, check_in, status,
			check_in_latitude, check_in_longitude,
			check_in_distance_meters, check_in_confidence,
			check_in_liveness_score, check_in_device_fingerprint,
			geo_validated, created_at, updated_at
		)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12, NOW(), NOW())
		ON CONFLICT (employee_id, record_date) DO NOTHING
		RETURNING created_at, updated_at
	`

	if rec.ID == uuid.Nil {
		rec.ID = uuid.New()
	}

	var lat, lon *float64
	if rec.CheckInPoint != nil {
		lat, lon = &rec.CheckInPoint.Latitude, &rec.CheckInPoint.Longitude
	}

	err := r.pool.QueryRow(ctx, query,
		rec.ID,
		rec.EmployeeID,
		rec.RecordDate,
		rec.CheckIn,
		rec.Status,
		lat,
		lon,
		rec.CheckInDistanceMeters,
		rec.CheckInConfidence,
		rec.CheckInLivenessScore,
		rec.CheckInDeviceFingerprint,
		rec.GeoValidated,
	).Scan(&rec.CreatedAt, &rec.UpdatedAt)

	if errors.Is(err, pgx.ErrNoRows) {
		// Conflict: the day's record already exists.
		return false, nil
	}
	if err != nil {
		if isUniqueViolation(err) {
			return false, nil
		}
		return false, fmt.Errorf("create check-in: %w", err)
	}

	return true, nil
}

// SetCheckOut closes the day's record with the check-out data, including a
// possibly revoked geo_validated flag.
func (r *AttendanceRepository) SetCheckOut(ctx context.Context, rec *domain.AttendanceRecord) error {
	query := `
		UPDATE attendance_records
		SET check_out = $3,
			check_out_latitude = $4,
			check_out_longitude = $5,
			check_out_distance_meters = $6,
			check_out_confidence = $7,
			check_out_liveness_score = $8,
			check_out_device_fingerprint = $9,
			geo_validated = $10,
			updated_at = NOW()
		WHERE employee_id = $1 AND record_date = $2
		RETURNING updated_at
	`

	var lat, lon *float64
	if rec.CheckOutPoint != nil {
		lat, lon = &rec.CheckOutPoint.Latitude, &rec.CheckOutPoint.Longitude
	}

	err := r.pool.QueryRow(ctx, query,
		rec.EmployeeID,
		rec.RecordDate,
		rec.CheckOut,
		lat,
		lon,
		rec.CheckOutDistanceMeters,
		rec.CheckOutConfidence,
		rec.CheckOutLivenessScore,
		rec.CheckOutDeviceFingerprint,
		rec.GeoValidated,
	).Scan(&rec.UpdatedAt)

	if errors.Is(err, pgx.ErrNoRows) {
		return domain.ErrNoOpenCheckIn
	}
	if err != nil {
		return fmt.Errorf("set check-out: %w", err)
	}

	return nil
}

// ListFilter narrows attendance listings.
type ListFilter struct {
	Date       *time.Time
	DateFrom   *time.Time
	DateTo     *time.Time
	EmployeeID *uuid.UUID
	Status     string
	Offset     int
	Limit      int
}

// List returns attendance records matching the filter, newest day first.
func (r *AttendanceRepository) List(ctx context.Context, f ListFilter) ([]domain.AttendanceRecord, error) {
	query := `SELECT` + attendanceColumns + ` FROM attendance_records WHERE 1=1`
	var args []interface{}

	add := func(clause string, arg interface{}) {
		args = append(args, arg)
		query += fmt.Sprintf(clause, len(args))
	}

	if f.Date != nil {
		add(" AND record_date = $%d", *f.Date)
	}
	if f.DateFrom != nil {
		add(" AND record_date >= $%d", *f.DateFrom)
	}
	if f.DateTo != nil {
		add(" AND record_date <= $%d", *f.DateTo)
	}
	if f.EmployeeID != nil {
		add(" AND employee_id = $%d", *f.EmployeeID)
	}
	if f.Status != "" {
		add(" AND status = $%d", f.Status)
	}

	limit := f.Limit
	if limit <= 0 {
		limit = 100
	}
	add(" ORDER BY record_date DESC, check_in DESC LIMIT $%d", limit)
	add(" OFFSET $%d", f.Offset)

	rows, err := r.pool.Query(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("list attendance: %w", err)
	}
	defer rows.Close()

	var records []domain.AttendanceRecord
	for rows.Next() {
		rec, err := scanRecord(rows)
		if err != nil {
			return nil, fmt.Errorf("scan attendance: %w", err)
		}
		records = append(records, *rec)
	}

	return records, rows.Err()
}

// RecentCheckIn implements fraud.HistoryStore. Only check-ins that carry a
// coordinate are usable for travel analysis.
func (r *AttendanceRepository) RecentCheckIn(ctx context.Context, employeeID uuid.UUID, within time.Duration) (*domain.CheckInEvent, error) {
	query := `
		SELECT check_in, check_in_latitude, check_in_longitude
		FROM attendance_records
		WHERE employee_id = $1
			AND check_in IS NOT NULL
			AND check_in_latitude IS NOT NULL
			AND check_in_longitude IS NOT NULL
			AND check_in >= $2
		ORDER BY check_in DESC
		LIMIT 1
	`

	cutoff := time.Now().UTC().Add(-within)

	var event domain.CheckInEvent
	err := r.pool.QueryRow(ctx, query, employeeID, cutoff).
		Scan(&event.At, &event.Point.Latitude, &event.Point.Longitude)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("recent check-in: %w", err)
	}

	return &event, nil
}

// HistoricalCheckIns implements fraud.HistoryStore.
func (r *AttendanceRepository) HistoricalCheckIns(ctx context.Context, employeeID uuid.UUID, lookbackDays int) ([]domain.HistoricalCheckIn, error) {
	query := `
		SELECT check_in, check_in_latitude, check_in_longitude, check_in_device_fingerprint
		FROM attendance_records
		WHERE employee_id = $1
			AND check_in IS NOT NULL
			AND record_date >= $2
		ORDER BY check_in DESC
	`

	cutoff := time.Now().UTC().AddDate(0, 0, -lookbackDays)

	rows, err := r.pool.Query(ctx, query, employeeID, cutoff)
	if err != nil {
		return nil, fmt.Errorf("historical check-ins: %w", err)
	}
	defer rows.Close()

	var history []domain.HistoricalCheckIn
	for rows.Next() {
		var (
			h           domain.HistoricalCheckIn
			lat, lon    *float64
			fingerprint *string
		)
		if err := rows.Scan(&h.At, &lat, &lon, &fingerprint); err != nil {
			return nil, fmt.Errorf("scan historical check-in: %w", err)
		}
		if lat != nil && lon != nil {
			h.Point = &domain.GeoPoint{Latitude: *lat, Longitude: *lon}
		}
		if fingerprint != nil {
			h.DeviceFingerprint = *fingerprint
		}
		history = append(history, h)
	}

	return history, rows.Err()
}

// OpenSessions implements fraud.HistoryStore.
func (r *AttendanceRepository) OpenSessions(ctx context.Context, employeeID uuid.UUID, within time.Duration) ([]domain.OpenSession, error) {
	query := `
		SELECT id, check_in, check_in_latitude, check_in_longitude, check_in_device_fingerprint
		FROM attendance_records
		WHERE employee_id = $1
			AND check_in IS NOT NULL
			AND check_out IS NULL
			AND check_in >= $2
		ORDER BY check_in DESC
	`

	cutoff := time.Now().UTC().Add(-within)

	rows, err := r.pool.Query(ctx, query, employeeID, cutoff)
	if err != nil {
		return nil, fmt.Errorf("open sessions: %w", err)
	}
	defer rows.Close()

	var sessions []domain.OpenSession
	for rows.Next() {
		var (
			s           domain.OpenSession
			lat, lon    *float64
			fingerprint *string
		)
		if err := rows.Scan(&s.RecordID, &s.CheckInAt, &lat, &lon, &fingerprint); err != nil {
			return nil, fmt.Errorf("scan open session: %w", err)
		}
		if lat != nil && lon != nil {
			s.Point = &domain.GeoPoint{Latitude: *lat, Longitude: *lon}
		}
		if fingerprint != nil {
			s.DeviceFingerprint = *fingerprint
		}
		sessions = append(sessions, s)
	}

	return sessions, rows.Err()
}

// scanRecord reads a full attendance row.
func scanRecord(row pgx.Row) (*domain.AttendanceRecord, error) {
	var (
		rec            domain.AttendanceRecord
		inLat, inLon   *float64
		outLat, outLon *float64
	)

	err := row.Scan(
		&rec.ID,
		&rec.EmployeeID,
		&rec.RecordDate,
		&rec.CheckIn,
		&rec.CheckOut,
		&rec.Status,
		&inLat,
		&inLon,
		&outLat,
		&outLon,
		&rec.CheckInDistanceMeters,
		&rec.CheckOutDistanceMeters,
		&rec.CheckInConfidence,
		&rec.CheckOutConfidence,
		&rec.CheckInLivenessScore,
		&rec.CheckOutLivenessScore,
		&rec.CheckInDeviceFingerprint,
		&rec.CheckOutDeviceFingerprint,
		&rec.GeoValidated,
		&rec.CreatedAt,
		&rec.UpdatedAt,
	)
	if err != nil {
		return nil, err
	}

	if inLat != nil && inLon != nil {
		rec.CheckInPoint = &domain.GeoPoint{Latitude: *inLat, Longitude: *inLon}
	}
	if outLat != nil && outLon != nil {
		rec.CheckOutPoint = &domain.GeoPoint{Latitude: *outLat, Longitude: *outLon}
	}

	return &rec, nil
}
