package capture

import (
	"errors"
	"image"
	"time"
)

// ErrNoFrame reports a transient read failure. Callers log it and request
// the next frame; it never terminates the processing loop.
var ErrNoFrame = errors.New("no frame available")

// Frame is a single captured video frame decoded for processing.
type Frame struct {
	Image     *image.RGBA
	Seq       uint64
	Timestamp time.Time
}

// FrameSource supplies raw frames on demand.
//
// Open acquires the underlying device; failure to acquire is fatal to the
// run. Read blocks until the next frame; a transient failure returns
// ErrNoFrame. Release frees the device and must be safe to call once after
// a successful Open on every exit path.
type FrameSource interface {
	Open() error
	Read() (*Frame, error)
	Release() error
}
