package docs

import (
	"github.com/go-swagno/swagno"
	"github.com/go-swagno/swagno/components/endpoint"
	"github.com/go-swagno/swagno/components/http/response"
	"github.com/go-swagno/swagno/components/mime"
	"github.com/go-swagno/swagno/components/parameter"
)

// CheckRequestBody represents a check-in or check-out attempt
type CheckRequestBody struct {
	Image     string   `json:"image,omitempty" example:"data:image/jpeg;base64,/9j/4AAQ..."`
	Images    []string `json:"images" example:"[\"data:image/jpeg;base64,/9j/4AAQ...\"]"`
	DeviceID  string   `json:"device_id,omitempty" example:"kiosk-lobby-01"`
	Latitude  float64  `json:"latitude,omitempty" example:"-23.5505"`
	Longitude float64  `json:"longitude,omitempty" example:"-46.6333"`
}

// CheckResponseBody represents the outcome of an attendance attempt
type CheckResponseBody struct {
	ID             string   `json:"id" example:"550e8400-e29b-41d4-a716-446655440000"`
	EmployeeID     string   `json:"employee_id" example:"7c9e6679-7425-40de-944b-e07fc1f90ae7"`
	EmployeeName   string   `json:"employee_name" example:"Maria Silva"`
	RecordDate     string   `json:"record_date" example:"2025-09-01"`
	CheckIn        string   `json:"check_in" example:"2025-09-01T11:58:03Z"`
	CheckOut       string   `json:"check_out,omitempty" example:"2025-09-01T21:02:11Z"`
	Status         string   `json:"status" example:"present"`
	Confidence     float64  `json:"confidence" example:"0.94"`
	LivenessScore  float64  `json:"liveness_score" example:"0.81"`
	GeoValidated   bool     `json:"geo_validated" example:"true"`
	DistanceMeters float64  `json:"distance_meters,omitempty" example:"42.17"`
	Warnings       []string `json:"warnings,omitempty"`
	Message        string   `json:"message" example:"Welcome, Maria Silva! Check-in at 08:58"`
}

// AttendanceRecordBody represents one record in a listing
type AttendanceRecordBody struct {
	ID           string `json:"id" example:"550e8400-e29b-41d4-a716-446655440000"`
	EmployeeID   string `json:"employee_id" example:"7c9e6679-7425-40de-944b-e07fc1f90ae7"`
	RecordDate   string `json:"record_date" example:"2025-09-01"`
	CheckIn      string `json:"check_in" example:"2025-09-01T11:58:03Z"`
	CheckOut     string `json:"check_out,omitempty" example:"2025-09-01T21:02:11Z"`
	Status       string `json:"status" example:"present"`
	GeoValidated bool   `json:"geo_validated" example:"true"`
}

// ErrorResponse represents a standard error response
type ErrorResponse struct {
	Code    string `json:"code" example:"LIVENESS_FAILED"`
	Message string `json:"message" example:"Liveness check failed"`
}

// HealthResponse represents the health check payload
type HealthResponse struct {
	Status  string `json:"status" example:"ok"`
	Version string `json:"version,omitempty" example:"0.1.0"`
}

func NewSwagger() *swagno.Swagger {
	sw := swagno.New(swagno.Config{
		Title:       "Ponto Attendance API",
		Version:     "v1.0.0",
		Description: "Biometric attendance tracking with anti-spoofing, geofence validation and fraud-pattern detection",
		Host:        "localhost:3000",
		Path:        "/v1",
	})

	checkErrors := []response.Response{
		response.New(ErrorResponse{Code: "NO_FRAMES_PROVIDED", Message: "At least one image frame is required"}, "400", "Bad Request"),
		response.New(ErrorResponse{Code: "LIVENESS_FAILED", Message: "Liveness check failed"}, "403", "Forbidden"),
		response.New(ErrorResponse{Code: "EMPLOYEE_NOT_FOUND", Message: "No matching employee found"}, "404", "Not Found"),
		response.New(ErrorResponse{Code: "INVALID_IMAGE", Message: "Image could not be decoded"}, "422", "Unprocessable Entity"),
		response.New(ErrorResponse{Code: "NO_FACE_DETECTED", Message: "No face detected in image"}, "422", "Unprocessable Entity"),
		response.New(ErrorResponse{Code: "INTERNAL_ERROR", Message: "An unexpected error occurred"}, "500", "Internal Server Error"),
	}

	endpoints := []*endpoint.EndPoint{
		// POST /v1/attendance/check-in
		endpoint.New(
			endpoint.POST,
			"/attendance/check-in",
			endpoint.WithTags("Attendance"),
			endpoint.WithSummary("Check in"),
			endpoint.WithDescription("Runs the anti-fraud pipeline (liveness, identity, geofence, fraud patterns) and opens the employee's attendance record for today. Repeated attempts on the same day return the original check-in."),
			endpoint.WithBody(CheckRequestBody{}),
			endpoint.WithConsume([]mime.MIME{mime.JSON}),
			endpoint.WithProduce([]mime.MIME{mime.JSON}),
			endpoint.WithSuccessfulReturns([]response.Response{
				response.New(CheckResponseBody{}, "201", "Checked in"),
				response.New(CheckResponseBody{}, "200", "Already checked in today"),
			}),
			endpoint.WithErrors(checkErrors),
		),

		// POST /v1/attendance/check-out
		endpoint.New(
			endpoint.POST,
			"/attendance/check-out",
			endpoint.WithTags("Attendance"),
			endpoint.WithSummary("Check out"),
			endpoint.WithDescription("Closes today's attendance record. Fails when no open check-in exists; repeated attempts return the original check-out."),
			endpoint.WithBody(CheckRequestBody{}),
			endpoint.WithConsume([]mime.MIME{mime.JSON}),
			endpoint.WithProduce([]mime.MIME{mime.JSON}),
			endpoint.WithSuccessfulReturns([]response.Response{
				response.New(CheckResponseBody{}, "200", "Checked out"),
			}),
			endpoint.WithErrors(append([]response.Response{
				response.New(ErrorResponse{Code: "NO_OPEN_CHECK_IN", Message: "No open check-in found for today"}, "400", "Bad Request"),
			}, checkErrors...)),
		),

		// GET /v1/attendance
		endpoint.New(
			endpoint.GET,
			"/attendance",
			endpoint.WithTags("Attendance"),
			endpoint.WithSummary("List attendance records"),
			endpoint.WithDescription("Lists attendance records filtered by date, date range, employee or status"),
			endpoint.WithProduce([]mime.MIME{mime.JSON}),
			endpoint.WithParams(
				parameter.StrParam("date", parameter.Query, parameter.WithDescription("Exact day (YYYY-MM-DD)")),
				parameter.StrParam("date_from", parameter.Query, parameter.WithDescription("Range start (YYYY-MM-DD)")),
				parameter.StrParam("date_to", parameter.Query, parameter.WithDescription("Range end (YYYY-MM-DD)")),
				parameter.StrParam("employee_id", parameter.Query, parameter.WithDescription("Employee UUID")),
				parameter.StrParam("status", parameter.Query, parameter.WithDescription("Record status (present, absent)")),
				parameter.IntParam("offset", parameter.Query, parameter.WithDescription("Pagination offset")),
				parameter.IntParam("limit", parameter.Query, parameter.WithDescription("Page size (default 100)")),
			),
			endpoint.WithSuccessfulReturns([]response.Response{
				response.New([]AttendanceRecordBody{}, "200", "Records"),
			}),
			endpoint.WithErrors([]response.Response{
				response.New(ErrorResponse{Code: "VALIDATION_FAILED", Message: "Request validation failed"}, "422", "Unprocessable Entity"),
				response.New(ErrorResponse{Code: "INTERNAL_ERROR", Message: "An unexpected error occurred"}, "500", "Internal Server Error"),
			}),
		),

		// GET /v1/attendance/today
		endpoint.New(
			endpoint.GET,
			"/attendance/today",
			endpoint.WithTags("Attendance"),
			endpoint.WithSummary("List today's records"),
			endpoint.WithProduce([]mime.MIME{mime.JSON}),
			endpoint.WithSuccessfulReturns([]response.Response{
				response.New([]AttendanceRecordBody{}, "200", "Records"),
			}),
			endpoint.WithErrors([]response.Response{
				response.New(ErrorResponse{Code: "INTERNAL_ERROR", Message: "An unexpected error occurred"}, "500", "Internal Server Error"),
			}),
		),

		// GET /health
		endpoint.New(
			endpoint.GET,
			"/health",
			endpoint.WithTags("Health"),
			endpoint.WithSummary("Liveness probe"),
			endpoint.WithProduce([]mime.MIME{mime.JSON}),
			endpoint.WithSuccessfulReturns([]response.Response{
				response.New(HealthResponse{}, "200", "Service is up"),
			}),
		),
	}

	sw.AddEndpoints(endpoints)

	return sw
}
