package detect

import (
	"context"
	"image"
)

// ClassPerson is the detection class this system acts on. All other
// classes returned by a detector are discarded by the scheduler.
const ClassPerson = "person"

// Object is a single detection returned by a Detector.
// Coordinates are pixel values in the source frame.
type Object struct {
	Class      string  `json:"class"`
	X1         int     `json:"x1"`
	Y1         int     `json:"y1"`
	X2         int     `json:"x2"`
	Y2         int     `json:"y2"`
	Confidence float64 `json:"confidence"`
}

// Detector runs stateless per-frame object detection.
type Detector interface {
	// Detect runs inference on a frame and returns all detected objects.
	Detect(ctx context.Context, frame image.Image) ([]Object, error)

	// IsHealthy reports whether the detection backend is operational.
	IsHealthy() bool
}
