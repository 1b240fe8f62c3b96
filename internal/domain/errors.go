package domain

import (
	"fmt"
)

type AppError struct {
	Code       string `json:"code"`
	Message    string `json:"message"`
	StatusCode int    `json:"-"`
	Err        error  `json:"-"`
}

func (e *AppError) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("%s: %v", e.Message, e.Err)
	}
	return e.Message
}

func (e *AppError) Unwrap() error {
	return e.Err
}

func (e *AppError) WithError(err error) *AppError {
	return &AppError{
		Code:       e.Code,
		Message:    e.Message,
		StatusCode: e.StatusCode,
		Err:        err,
	}
}

// WithMessage replaces the generic message with a specific, actionable one.
// Code and status are preserved so callers can still match on the base error.
func (e *AppError) WithMessage(message string) *AppError {
	return &AppError{
		Code:       e.Code,
		Message:    message,
		StatusCode: e.StatusCode,
		Err:        e.Err,
	}
}

// Is lets errors.Is match a derived error (WithError/WithMessage) against its base.
func (e *AppError) Is(target error) bool {
	t, ok := target.(*AppError)
	if !ok {
		return false
	}
	return e.Code == t.Code
}

// Pre-defined errors
var (
	ErrInternal = &AppError{
		Code:       "INTERNAL_ERROR",
		Message:    "An unexpected error occurred",
		StatusCode: 500,
	}

	ErrBadRequest = &AppError{
		Code:       "BAD_REQUEST",
		Message:    "Invalid request",
		StatusCode: 400,
	}

	ErrNotFound = &AppError{
		Code:       "NOT_FOUND",
		Message:    "Resource not found",
		StatusCode: 404,
	}

	ErrValidationFailed = &AppError{
		Code:       "VALIDATION_FAILED",
		Message:    "Request validation failed",
		StatusCode: 422,
	}

	ErrNoFramesProvided = &AppError{
		Code:       "NO_FRAMES_PROVIDED",
		Message:    "No images provided. Please provide 3-5 frames for liveness detection",
		StatusCode: 400,
	}

	ErrInsufficientFrames = &AppError{
		Code:       "INSUFFICIENT_FRAMES",
		Message:    "Not enough frames for liveness detection",
		StatusCode: 400,
	}

	ErrInvalidImage = &AppError{
		Code:       "INVALID_IMAGE",
		Message:    "Invalid image format or corrupted file",
		StatusCode: 422,
	}

	ErrLivenessFailed = &AppError{
		Code:       "LIVENESS_FAILED",
		Message:    "Liveness check failed, possible spoofing attempt",
		StatusCode: 403,
	}

	ErrNoFaceDetected = &AppError{
		Code:       "NO_FACE_DETECTED",
		Message:    "No face detected in the image",
		StatusCode: 422,
	}

	ErrMultipleFaces = &AppError{
		Code:       "MULTIPLE_FACES",
		Message:    "Multiple faces detected, please provide image with single face",
		StatusCode: 422,
	}

	ErrFaceTooSmall = &AppError{
		Code:       "FACE_TOO_SMALL",
		Message:    "Face too small, please move closer to the camera",
		StatusCode: 422,
	}

	ErrFaceNotCentered = &AppError{
		Code:       "FACE_NOT_CENTERED",
		Message:    "Face not centered, please position your face in the middle of the frame",
		StatusCode: 422,
	}

	ErrEncodingFailed = &AppError{
		Code:       "ENCODING_FAILED",
		Message:    "Could not extract face features from the image",
		StatusCode: 422,
	}

	ErrEmployeeNotFound = &AppError{
		Code:       "EMPLOYEE_NOT_FOUND",
		Message:    "No matching employee found. Please ensure your face is registered",
		StatusCode: 404,
	}

	ErrNoOpenCheckIn = &AppError{
		Code:       "NO_OPEN_CHECK_IN",
		Message:    "No check-in record found for today. Please check in first",
		StatusCode: 400,
	}
)
