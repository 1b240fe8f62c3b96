// Package identity resolves who is in front of the camera.
//
// The attendance core treats identity matching as an opaque external
// capability: given the best frame of a verification attempt, return an
// employee plus a confidence, or report that no one matched. The similarity
// metric and index behind a Matcher are implementation details.
package identity

import (
	"context"

	"github.com/google/uuid"
)

// Match is a resolved identity.
type Match struct {
	EmployeeID   uuid.UUID
	EmployeeName string
	Confidence   float64
}

// Matcher resolves an identity from a single base64-encoded frame.
//
// Implementations return domain.ErrEmployeeNotFound when nothing matches
// above their threshold, and the face-validation errors (ErrNoFaceDetected,
// ErrMultipleFaces, ErrFaceTooSmall, ErrFaceNotCentered, ErrEncodingFailed)
// when the frame cannot be used.
type Matcher interface {
	Resolve(ctx context.Context, frame string) (*Match, error)
}

// Embedder turns a frame into a face embedding vector. It is the boundary
// to the external face-recognition capability.
type Embedder interface {
	Embed(ctx context.Context, frame string) ([]float64, error)
}
