package domain

import (
	"time"

	"github.com/google/uuid"
)

// GeoPoint is a WGS84 coordinate.
type GeoPoint struct {
	Latitude  float64 `json:"latitude"`
	Longitude float64 `json:"longitude"`
}

// Site is a registered work location with a geofence radius.
type Site struct {
	ID           uuid.UUID `json:"id"`
	Name         string    `json:"name"`
	Point        GeoPoint  `json:"point"`
	RadiusMeters int       `json:"radius_meters"`
	IsActive     bool      `json:"is_active"`
}

// Employee is the minimal read model the attendance flow needs.
type Employee struct {
	ID         uuid.UUID  `json:"id"`
	FullName   string     `json:"full_name"`
	LocationID *uuid.UUID `json:"location_id,omitempty"`
	IsActive   bool       `json:"is_active"`
}

// AttendanceRecord is one record per employee per calendar day.
// Created on the first check-in; mutated once on check-out.
type AttendanceRecord struct {
	ID         uuid.UUID  `json:"id"`
	EmployeeID uuid.UUID  `json:"employee_id"`
	RecordDate time.Time  `json:"record_date"`
	CheckIn    *time.Time `json:"check_in,omitempty"`
	CheckOut   *time.Time `json:"check_out,omitempty"`
	Status     string     `json:"status"`

	CheckInPoint           *GeoPoint `json:"check_in_point,omitempty"`
	CheckOutPoint          *GeoPoint `json:"check_out_point,omitempty"`
	CheckInDistanceMeters  *float64  `json:"check_in_distance_meters,omitempty"`
	CheckOutDistanceMeters *float64  `json:"check_out_distance_meters,omitempty"`

	CheckInConfidence     *float64 `json:"check_in_confidence,omitempty"`
	CheckOutConfidence    *float64 `json:"check_out_confidence,omitempty"`
	CheckInLivenessScore  *float64 `json:"check_in_liveness_score,omitempty"`
	CheckOutLivenessScore *float64 `json:"check_out_liveness_score,omitempty"`

	CheckInDeviceFingerprint  *string `json:"-"`
	CheckOutDeviceFingerprint *string `json:"-"`

	// GeoValidated is true only while every recorded movement passed the
	// geofence. A failed check-out revokes it; nothing re-grants it.
	GeoValidated bool `json:"geo_validated"`

	CreatedAt time.Time `json:"created_at"`
	UpdatedAt time.Time `json:"updated_at"`
}

// Attendance status values.
const (
	StatusPresent = "present"
	StatusAbsent  = "absent"
)
