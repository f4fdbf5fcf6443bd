package pipeline

import (
	"bytes"
	"context"
	"fmt"
	"image/jpeg"
	"log"
	"sync"

	"godseye/internal/annotate"
	"godseye/internal/capture"
	"godseye/internal/eventlog"
)

// State is the engine lifecycle state.
type State int32

const (
	StateStopped State = iota
	StateStarting
	StateRunning
	StateStopping
)

func (s State) String() string {
	switch s {
	case StateStarting:
		return "starting"
	case StateRunning:
		return "running"
	case StateStopping:
		return "stopping"
	default:
		return "stopped"
	}
}

// GallerySizer reports the current gallery size for the HUD overlay.
type GallerySizer interface {
	Size() int
}

// Engine composes the frame source, scheduler, event log and output sinks
// into the continuous processing loop, and exposes status and log
// snapshots to concurrent readers.
type Engine struct {
	source  capture.FrameSource
	sched   *Scheduler
	events  *eventlog.Log
	bus     *EventBus
	gallery GallerySizer
	sinks   []FrameSink
	quality int

	// mu guards the state and the last-observed snapshot fields so a
	// reader never sees values from two different cycles mixed together.
	mu         sync.Mutex
	state      State
	lastSet    []Detection
	frameIndex uint64
}

// EngineConfig wires the engine's collaborators.
type EngineConfig struct {
	Source      capture.FrameSource
	Scheduler   *Scheduler
	Events      *eventlog.Log
	Bus         *EventBus
	Gallery     GallerySizer
	Sinks       []FrameSink
	JPEGQuality int
}

// NewEngine creates a stopped engine.
func NewEngine(config EngineConfig) *Engine {
	quality := config.JPEGQuality
	if quality <= 0 {
		quality = 80
	}
	return &Engine{
		source:  config.Source,
		sched:   config.Scheduler,
		events:  config.Events,
		bus:     config.Bus,
		gallery: config.Gallery,
		sinks:   config.Sinks,
		quality: quality,
	}
}

// Run drives the capture/inference/render loop until ctx is cancelled.
// Failure to acquire the frame source is fatal and returned to the caller;
// the source is never released in that case because it was never acquired.
// After a successful acquisition the source is released on every exit
// path. Transient capture failures are logged and the loop continues.
func (e *Engine) Run(ctx context.Context) error {
	e.mu.Lock()
	if e.state != StateStopped {
		e.mu.Unlock()
		return fmt.Errorf("engine already %s", e.state)
	}
	e.state = StateStarting
	e.mu.Unlock()

	if err := e.source.Open(); err != nil {
		e.setState(StateStopped)
		return fmt.Errorf("failed to acquire frame source: %w", err)
	}

	defer func() {
		if err := e.source.Release(); err != nil {
			log.Printf("[Engine] Release failed: %v", err)
		}
		e.setState(StateStopped)
	}()

	e.setState(StateRunning)
	log.Printf("[Engine] Processing loop started")

	for {
		// The stop signal is observed between frames, never mid-inference.
		select {
		case <-ctx.Done():
			e.setState(StateStopping)
			log.Printf("[Engine] Stop requested")
			return nil
		default:
		}

		frame, err := e.source.Read()
		if err != nil {
			log.Printf("[Engine] Frame capture failed, retrying: %v", err)
			continue
		}

		e.processFrame(ctx, frame)
	}
}

func (e *Engine) processFrame(ctx context.Context, frame *capture.Frame) {
	detections, ran := e.sched.Process(ctx, frame.Image)

	if ran && len(detections) > 0 {
		ev := buildEvent(frame, detections)
		if err := e.events.Append(ev); err != nil {
			// In-memory availability takes priority over durability.
			log.Printf("[Engine] Warning: event not persisted: %v", err)
		}
		if e.bus != nil {
			e.bus.Publish(ev)
		}
	}

	e.mu.Lock()
	e.lastSet = detections
	e.frameIndex = e.sched.FrameIndex()
	e.mu.Unlock()

	gallerySize := 0
	if e.gallery != nil {
		gallerySize = e.gallery.Size()
	}
	annotate.Annotate(frame.Image, toOverlay(detections), annotate.HUD{
		Timestamp:   frame.Timestamp,
		GallerySize: gallerySize,
		FrameIndex:  e.sched.FrameIndex(),
	})

	var buf bytes.Buffer
	if err := jpeg.Encode(&buf, frame.Image, &jpeg.Options{Quality: e.quality}); err != nil {
		log.Printf("[Engine] Frame encode failed: %v", err)
		return
	}
	for _, sink := range e.sinks {
		sink.Publish(frame.Seq, buf.Bytes())
	}
}

func buildEvent(frame *capture.Frame, detections []Detection) eventlog.Event {
	var names []string
	for _, det := range detections {
		if det.Known {
			names = append(names, det.Identity)
		}
	}
	return eventlog.Event{
		Timestamp:       frame.Timestamp,
		NumPersons:      len(detections),
		IdentifiedCount: len(names),
		Names:           names,
	}
}

func toOverlay(detections []Detection) []annotate.Detection {
	out := make([]annotate.Detection, 0, len(detections))
	for _, det := range detections {
		out = append(out, annotate.Detection{
			X1:         det.X1,
			Y1:         det.Y1,
			X2:         det.X2,
			Y2:         det.Y2,
			Identity:   det.Identity,
			Confidence: det.IdentityConfidence,
			Known:      det.Known,
		})
	}
	return out
}

func (e *Engine) setState(s State) {
	e.mu.Lock()
	e.state = s
	e.mu.Unlock()
}

// State returns the current lifecycle state.
func (e *Engine) State() State {
	e.mu.Lock()
	defer e.mu.Unlock()
	return e.state
}

// Status returns a consistent snapshot derived from the last processed
// cycle.
func (e *Engine) Status() Status {
	e.mu.Lock()
	defer e.mu.Unlock()

	identified := 0
	for _, det := range e.lastSet {
		if det.Known {
			identified++
		}
	}
	return Status{
		State:            e.state.String(),
		PersonPresent:    len(e.lastSet) > 0,
		IdentifiedCount:  identified,
		FrameIndex:       e.frameIndex,
		ActiveDetections: len(e.lastSet),
	}
}

// Logs returns the most recent limit detection events in chronological
// order.
func (e *Engine) Logs(limit int) []eventlog.Event {
	e.mu.Lock()
	defer e.mu.Unlock()
	return e.events.ReadTail(limit)
}
