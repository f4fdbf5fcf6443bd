package identity

import (
	"context"
	"image"
	"log"

	"github.com/disintegration/imaging"
)

// Sentinel identities distinguishing the three unresolved states:
// a region awaiting its first resolution cycle, a subject resolved
// against the gallery without a match, and resolution that was never
// attempted (empty gallery or no verifier).
const (
	IdentityScanning    = "SCANNING..."
	IdentityUnknown     = "UNKNOWN"
	IdentityUnavailable = "N/A"
)

// DefaultCropPadding is the margin in pixels added around a bounding box
// before the crop is handed to the verifier.
const DefaultCropPadding = 10

// Outcome classifies a single verification attempt against one gallery entry.
type Outcome int

const (
	OutcomeMatched Outcome = iota
	OutcomeNotMatched
	OutcomeError
)

// Resolution is the result of resolving one probe crop against the gallery.
// Attempted is false when no verification ran at all, which is distinct
// from a probe that was checked and matched nothing.
type Resolution struct {
	Identity   string
	Confidence float64
	Known      bool
	Attempted  bool
}

// NotAttempted returns the sentinel resolution for a probe that was never
// verified.
func NotAttempted() Resolution {
	return Resolution{Identity: IdentityUnavailable, Attempted: false}
}

// Scanning returns the placeholder resolution shown until a region's first
// resolution cycle completes.
func Scanning() Resolution {
	return Resolution{Identity: IdentityScanning, Attempted: false}
}

// ReferenceSource supplies the current reference set in verification order.
type ReferenceSource interface {
	Entries() []Entry
}

// Resolver verifies probe crops against a gallery of named references.
type Resolver struct {
	gallery  ReferenceSource
	verifier Verifier
}

// NewResolver creates a resolver over the given gallery and verifier.
// verifier may be nil, in which case every resolution is not-attempted.
func NewResolver(gallery ReferenceSource, verifier Verifier) *Resolver {
	return &Resolver{gallery: gallery, verifier: verifier}
}

// Resolve verifies the probe against each gallery entry in name order and
// stops at the first match. A verification error against one entry counts
// as a non-match for that entry only; iteration continues. With an empty
// gallery or no verifier the probe is reported as not attempted.
func (r *Resolver) Resolve(ctx context.Context, probe image.Image) Resolution {
	if r.verifier == nil {
		return NotAttempted()
	}

	entries := r.gallery.Entries()
	if len(entries) == 0 {
		return NotAttempted()
	}

	for _, entry := range entries {
		outcome, verification := r.verifyEntry(ctx, probe, entry)
		if outcome == OutcomeMatched {
			return Resolution{
				Identity:   entry.Name,
				Confidence: 1 - verification.Distance,
				Known:      true,
				Attempted:  true,
			}
		}
	}

	return Resolution{Identity: IdentityUnknown, Attempted: true}
}

func (r *Resolver) verifyEntry(ctx context.Context, probe image.Image, entry Entry) (Outcome, Verification) {
	verification, err := r.verifier.Verify(ctx, probe, entry.Image)
	if err != nil {
		log.Printf("[Resolver] Verification against %q failed: %v", entry.Name, err)
		return OutcomeError, Verification{}
	}
	if verification.Verified {
		return OutcomeMatched, verification
	}
	return OutcomeNotMatched, verification
}

// PadCrop extracts the region (x1,y1)-(x2,y2) from frame padded by pad
// pixels on every side, clamped to the frame bounds.
func PadCrop(frame image.Image, x1, y1, x2, y2, pad int) image.Image {
	bounds := frame.Bounds()

	rect := image.Rect(x1-pad, y1-pad, x2+pad, y2+pad).Intersect(bounds)
	if rect.Empty() {
		rect = bounds
	}

	return imaging.Crop(frame, rect)
}
