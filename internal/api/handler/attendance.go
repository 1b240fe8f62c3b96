package handler

import (
	"context"
	"errors"
	"log/slog"
	"time"

	"github.com/gofiber/fiber/v2"
	"github.com/google/uuid"

	"github.com/saturnino-fabrica-de-software/ponto/internal/domain"
	"github.com/saturnino-fabrica-de-software/ponto/internal/repository"
	"github.com/saturnino-fabrica-de-software/ponto/internal/service"
)

// AttendanceService interface for the service
type AttendanceService interface {
	CheckIn(ctx context.Context, req service.CheckRequest) (*service.CheckResult, error)
	CheckOut(ctx context.Context, req service.CheckRequest) (*service.CheckResult, error)
	List(ctx context.Context, f repository.ListFilter) ([]domain.AttendanceRecord, error)
	ListToday(ctx context.Context) ([]domain.AttendanceRecord, error)
}

// AttendanceHandler handles attendance requests
type AttendanceHandler struct {
	service AttendanceService
	logger  *slog.Logger
}

func NewAttendanceHandler(service AttendanceService, logger *slog.Logger) *AttendanceHandler {
	return &AttendanceHandler{
		service: service,
		logger:  logger,
	}
}

// CheckRequest is the JSON body for check-in and check-out. Image is the
// legacy single-frame field kept for older kiosk clients; Images is the
// multi-frame burst the anti-spoofing pipeline expects.
type CheckRequest struct {
	Image     string   `json:"image,omitempty"`
	Images    []string `json:"images,omitempty"`
	DeviceID  string   `json:"device_id,omitempty"`
	Latitude  *float64 `json:"latitude,omitempty"`
	Longitude *float64 `json:"longitude,omitempty"`
}

func (r CheckRequest) frames() []string {
	if len(r.Images) > 0 {
		return r.Images
	}
	if r.Image != "" {
		return []string{r.Image}
	}
	return nil
}

// CheckResponse is the outcome of a check-in or check-out
type CheckResponse struct {
	ID             string   `json:"id"`
	EmployeeID     string   `json:"employee_id"`
	EmployeeName   string   `json:"employee_name"`
	RecordDate     string   `json:"record_date"`
	CheckIn        *string  `json:"check_in"`
	CheckOut       *string  `json:"check_out"`
	Status         string   `json:"status"`
	Confidence     float64  `json:"confidence"`
	LivenessScore  float64  `json:"liveness_score"`
	GeoValidated   bool     `json:"geo_validated"`
	DistanceMeters *float64 `json:"distance_meters,omitempty"`
	Warnings       []string `json:"warnings,omitempty"`
	Message        string   `json:"message"`
}

// RecordResponse is one attendance record in a listing
type RecordResponse struct {
	ID                string   `json:"id"`
	EmployeeID        string   `json:"employee_id"`
	RecordDate        string   `json:"record_date"`
	CheckIn           *string  `json:"check_in"`
	CheckOut          *string  `json:"check_out"`
	Status            string   `json:"status"`
	GeoValidated      bool     `json:"geo_validated"`
	CheckInConfidence *float64 `json:"check_in_confidence,omitempty"`
}

// CheckIn POST /v1/attendance/check-in
func (h *AttendanceHandler) CheckIn(c *fiber.Ctx) error {
	req, err := parseCheckRequest(c)
	if err != nil {
		return err
	}

	result, err := h.service.CheckIn(c.Context(), req)
	if err != nil {
		return err
	}

	status := fiber.StatusCreated
	if result.Duplicate {
		status = fiber.StatusOK
	}
	return c.Status(status).JSON(toCheckResponse(result))
}

// CheckOut POST /v1/attendance/check-out
func (h *AttendanceHandler) CheckOut(c *fiber.Ctx) error {
	req, err := parseCheckRequest(c)
	if err != nil {
		return err
	}

	result, err := h.service.CheckOut(c.Context(), req)
	if err != nil {
		return err
	}

	return c.JSON(toCheckResponse(result))
}

// List GET /v1/attendance
func (h *AttendanceHandler) List(c *fiber.Ctx) error {
	filter, err := parseListFilter(c)
	if err != nil {
		return err
	}

	records, err := h.service.List(c.Context(), filter)
	if err != nil {
		return err
	}

	return c.JSON(toRecordResponses(records))
}

// ListToday GET /v1/attendance/today
func (h *AttendanceHandler) ListToday(c *fiber.Ctx) error {
	records, err := h.service.ListToday(c.Context())
	if err != nil {
		return err
	}

	return c.JSON(toRecordResponses(records))
}

func parseCheckRequest(c *fiber.Ctx) (service.CheckRequest, error) {
	var body CheckRequest
	if err := c.BodyParser(&body); err != nil {
		return service.CheckRequest{}, domain.ErrBadRequest.WithError(err)
	}

	frames := body.frames()
	if len(frames) == 0 {
		return service.CheckRequest{}, domain.ErrNoFramesProvided
	}

	if err := validateCoordinates(body.Latitude, body.Longitude); err != nil {
		return service.CheckRequest{}, err
	}

	return service.CheckRequest{
		Frames:    frames,
		DeviceID:  body.DeviceID,
		Latitude:  body.Latitude,
		Longitude: body.Longitude,
	}, nil
}

func validateCoordinates(lat, lon *float64) error {
	if (lat == nil) != (lon == nil) {
		return domain.ErrValidationFailed.WithError(errors.New("latitude and longitude must be provided together"))
	}
	if lat != nil && (*lat < -90 || *lat > 90) {
		return domain.ErrValidationFailed.WithError(errors.New("latitude must be between -90 and 90"))
	}
	if lon != nil && (*lon < -180 || *lon > 180) {
		return domain.ErrValidationFailed.WithError(errors.New("longitude must be between -180 and 180"))
	}
	return nil
}

func parseListFilter(c *fiber.Ctx) (repository.ListFilter, error) {
	var filter repository.ListFilter

	if v := c.Query("date"); v != "" {
		d, err := time.Parse("2006-01-02", v)
		if err != nil {
			return filter, domain.ErrValidationFailed.WithError(errors.New("date must be YYYY-MM-DD"))
		}
		filter.Date = &d
	}
	if v := c.Query("date_from"); v != "" {
		d, err := time.Parse("2006-01-02", v)
		if err != nil {
			return filter, domain.ErrValidationFailed.WithError(errors.New("date_from must be YYYY-MM-DD"))
		}
		filter.DateFrom = &d
	}
	if v := c.Query("date_to"); v != "" {
		d, err := time.Parse("2006-01-02", v)
		if err != nil {
			return filter, domain.ErrValidationFailed.WithError(errors.New("date_to must be YYYY-MM-DD"))
		}
		filter.DateTo = &d
	}
	if v := c.Query("employee_id"); v != "" {
		id, err := uuid.Parse(v)
		if err != nil {
			return filter, domain.ErrValidationFailed.WithError(errors.New("employee_id must be a UUID"))
		}
		filter.EmployeeID = &id
	}
	if v := c.Query("status"); v != "" {
		filter.Status = v
	}
	filter.Offset = c.QueryInt("offset", 0)
	filter.Limit = c.QueryInt("limit", 0)

	return filter, nil
}

func toCheckResponse(result *service.CheckResult) CheckResponse {
	rec := result.Record
	return CheckResponse{
		ID:             rec.ID.String(),
		EmployeeID:     result.EmployeeID.String(),
		EmployeeName:   result.EmployeeName,
		RecordDate:     rec.RecordDate.Format("2006-01-02"),
		CheckIn:        formatTime(rec.CheckIn),
		CheckOut:       formatTime(rec.CheckOut),
		Status:         rec.Status,
		Confidence:     result.Confidence,
		LivenessScore:  result.LivenessScore,
		GeoValidated:   result.GeoValidated,
		DistanceMeters: result.DistanceMeters,
		Warnings:       result.Warnings,
		Message:        result.Message,
	}
}

func toRecordResponses(records []domain.AttendanceRecord) []RecordResponse {
	out := make([]RecordResponse, 0, len(records))
	for _, rec := range records {
		out = append(out, RecordResponse{
			ID:                rec.ID.String(),
			EmployeeID:        rec.EmployeeID.String(),
			RecordDate:        rec.RecordDate.Format("2006-01-02"),
			CheckIn:           formatTime(rec.CheckIn),
			CheckOut:          formatTime(rec.CheckOut),
			Status:            rec.Status,
			GeoValidated:      rec.GeoValidated,
			CheckInConfidence: rec.CheckInConfidence,
		})
	}
	return out
}

func formatTime(t *time.Time) *string {
	if t == nil {
		return nil
	}
	s := t.UTC().Format(time.RFC3339)
	return &s
}
