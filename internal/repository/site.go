package repository

import (
	"context"
	"errors"
	"fmt"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"

	"github.com/saturnino-fabrica-de-software/ponto/internal/domain"
)

// SiteRepository resolves the work location assigned to an employee.
type SiteRepository struct {
	pool PgxPool
}

func NewSiteRepository(pool PgxPool) *SiteRepository {
	return &SiteRepository{pool: pool}
}

// GetAssignedSite returns the employee's active location, or nil when the
// employee has no location assigned (or it is inactive). Having no site is
// a normal degraded state, not an error: the geofence check reports
// "cannot validate" for it.
func (r *SiteRepository) GetAssignedSite(ctx context.Context, employeeID uuid.UUID) (*domain.Site, error) {
	query := `
		SELECT l.id, l.name, l.latitude, l.longitude, l.radius_meters, l.is_active
		FROM employees e
		INNER JOIN locations l ON l.id = e.location_id
		WHERE e.id = $1 AND l.is_active = true
	`

	var site domain.Site
	err := r.pool.QueryRow(ctx, query, employeeID).Scan(
		&site.ID,
		&site.Name,
		&site.Point.Latitude,
		&site.Point.Longitude,
		&site.RadiusMeters,
		&site.IsActive,
	)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("get assigned site: %w", err)
	}

	return &site, nil
}
