package identity

import (
	"context"
	"image"
)

// Verification is the result of comparing a probe image against one
// reference image.
type Verification struct {
	Verified bool    `json:"verified"`
	Distance float64 `json:"distance"`
}

// Verifier compares a face crop against a single reference image.
type Verifier interface {
	// Verify reports whether the probe and reference show the same subject.
	Verify(ctx context.Context, probe, reference image.Image) (Verification, error)

	// IsHealthy reports whether the verification backend is operational.
	IsHealthy() bool
}
