package pipeline

// Defaults for the two independent skip cadences and the spatial cache.
const (
	// DefaultDetectEvery runs full inference every Nth frame.
	DefaultDetectEvery = 5
	// DefaultResolveEvery attempts identity resolution on every Nth frame,
	// applied globally to all boxes of an inference cycle.
	DefaultResolveEvery = 10
	// DefaultBucketSize is the spatial quantization of the identity cache
	// in pixels.
	DefaultBucketSize = 50
)

// Detection is one detected subject for one inference cycle. Values are
// immutable once produced; a new inference cycle replaces the whole set.
type Detection struct {
	X1, Y1, X2, Y2     int     `json:"-"`
	Confidence         float64 `json:"confidence"`
	Identity           string  `json:"identity"`
	IdentityConfidence float64 `json:"identity_confidence"`
	Known              bool    `json:"is_known"`
}

// Status is a derived snapshot of the pipeline, computed from the current
// detection set and counters.
type Status struct {
	State            string `json:"state"`
	PersonPresent    bool   `json:"person_present"`
	IdentifiedCount  int    `json:"identified_count"`
	FrameIndex       uint64 `json:"frame_index"`
	ActiveDetections int    `json:"active_detections"`
}

// FrameSink receives encoded output frames from the engine. A slow sink
// must not block the processing loop.
type FrameSink interface {
	Publish(seq uint64, frame []byte)
}
