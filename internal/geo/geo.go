// Package geo implements geofence validation over great-circle distances.
//
// Distances are computed in-process with the haversine formula. A
// PostGIS-backed implementation would be contract-equivalent; the
// computation engine is an implementation detail.
package geo

import (
	"math"

	"github.com/saturnino-fabrica-de-software/ponto/internal/domain"
)

// earthRadiusMeters is the mean Earth radius used by the haversine formula.
const earthRadiusMeters = 6371000.0

// Distance returns the great-circle distance in meters between two points.
func Distance(a, b domain.GeoPoint) float64 {
	phi1 := a.Latitude * math.Pi / 180
	phi2 := b.Latitude * math.Pi / 180
	dPhi := (b.Latitude - a.Latitude) * math.Pi / 180
	dLambda := (b.Longitude - a.Longitude) * math.Pi / 180

	h := math.Sin(dPhi/2)*math.Sin(dPhi/2) +
		math.Cos(phi1)*math.Cos(phi2)*math.Sin(dLambda/2)*math.Sin(dLambda/2)
	c := 2 * math.Atan2(math.Sqrt(h), math.Sqrt(1-h))

	return earthRadiusMeters * c
}

// Result is the outcome of validating a reported position against a site.
type Result struct {
	// IsValid is true when the point lies within the site's radius
	// (inclusive). It is false both when the point is too far and when
	// validation was not possible; DistanceMeters distinguishes the two.
	IsValid bool `json:"is_valid"`

	// DistanceMeters is nil when validation was not possible (no site
	// assigned or no coordinates supplied).
	DistanceMeters *float64 `json:"distance_meters,omitempty"`

	SiteName      string `json:"site_name,omitempty"`
	AllowedRadius *int   `json:"allowed_radius,omitempty"`
}

// Validate checks whether a reported point falls inside a site's geofence.
//
// A nil point, nil site, or inactive site yields an informational
// "cannot validate" result (IsValid=false, DistanceMeters unset) rather
// than an error: missing assignments must not block attendance.
func Validate(point *domain.GeoPoint, site *domain.Site) Result {
	if point == nil || site == nil || !site.IsActive {
		return Result{}
	}

	distance := math.Round(Distance(*point, site.Point)*100) / 100
	radius := site.RadiusMeters

	return Result{
		IsValid:        distance <= float64(radius),
		DistanceMeters: &distance,
		SiteName:       site.Name,
		AllowedRadius:  &radius,
	}
}
