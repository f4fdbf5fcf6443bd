package pipeline

import (
	"context"
	"errors"
	"image"
	"path/filepath"
	"sync"
	"testing"
	"time"

	"godseye/internal/capture"
	"godseye/internal/detect"
	"godseye/internal/eventlog"
)

type fakeSource struct {
	mu       sync.Mutex
	openErr  error
	opened   bool
	released bool

	failFirst int // initial reads that fail before frames flow
	reads     int
	maxFrames int // reads after this fail with a transient error
}

func (s *fakeSource) Open() error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.openErr != nil {
		return s.openErr
	}
	s.opened = true
	return nil
}

func (s *fakeSource) Read() (*capture.Frame, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.reads++
	if s.reads <= s.failFirst {
		return nil, capture.ErrNoFrame
	}
	if s.maxFrames > 0 && s.reads > s.failFirst+s.maxFrames {
		time.Sleep(time.Millisecond)
		return nil, capture.ErrNoFrame
	}
	return &capture.Frame{
		Image:     image.NewRGBA(image.Rect(0, 0, 64, 48)),
		Seq:       uint64(s.reads),
		Timestamp: time.Now(),
	}, nil
}

func (s *fakeSource) Release() error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.released = true
	return nil
}

func (s *fakeSource) wasReleased() bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.released
}

type fakeSink struct {
	mu     sync.Mutex
	frames int
}

func (s *fakeSink) Publish(seq uint64, frame []byte) {
	s.mu.Lock()
	s.frames++
	s.mu.Unlock()
}

func (s *fakeSink) count() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.frames
}

func newTestEngine(t *testing.T, source capture.FrameSource, detector detect.Detector, sink FrameSink) *Engine {
	t.Helper()

	events, err := eventlog.New(filepath.Join(t.TempDir(), "events.csv"), 100)
	if err != nil {
		t.Fatalf("event log: %v", err)
	}

	sched := NewScheduler(detector, nil, SchedulerConfig{DetectEvery: 1, ResolveEvery: 10})
	return NewEngine(EngineConfig{
		Source:    source,
		Scheduler: sched,
		Events:    events,
		Sinks:     []FrameSink{sink},
	})
}

func waitForState(t *testing.T, engine *Engine, want State) {
	t.Helper()
	deadline := time.After(2 * time.Second)
	for engine.State() != want {
		select {
		case <-deadline:
			t.Fatalf("engine state = %v, want %v", engine.State(), want)
		case <-time.After(5 * time.Millisecond):
		}
	}
}

func TestEngineOpenFailureIsFatal(t *testing.T) {
	source := &fakeSource{openErr: errors.New("device busy")}
	engine := newTestEngine(t, source, &fakeDetector{}, &fakeSink{})

	err := engine.Run(context.Background())
	if err == nil {
		t.Fatal("Run() = nil, want acquisition error")
	}
	if source.wasReleased() {
		t.Error("Release called for a source that was never acquired")
	}
	if engine.State() != StateStopped {
		t.Errorf("state = %v, want stopped after fatal open", engine.State())
	}
}

func TestEngineRetriesTransientReadFailures(t *testing.T) {
	source := &fakeSource{failFirst: 10, maxFrames: 3}
	sink := &fakeSink{}
	engine := newTestEngine(t, source, &fakeDetector{}, sink)

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan error, 1)
	go func() { done <- engine.Run(ctx) }()

	waitForState(t, engine, StateRunning)

	// Frames must flow despite the ten leading capture failures.
	deadline := time.After(2 * time.Second)
	for sink.count() < 3 {
		select {
		case <-deadline:
			t.Fatalf("sink received %d frames, want 3", sink.count())
		case <-time.After(5 * time.Millisecond):
		}
	}

	cancel()
	if err := <-done; err != nil {
		t.Fatalf("Run() = %v, want nil on cancellation", err)
	}
	if !source.wasReleased() {
		t.Error("source not released on shutdown")
	}
	waitForState(t, engine, StateStopped)
}

func TestEngineLogsEventsAndUpdatesStatus(t *testing.T) {
	detector := &fakeDetector{objects: []detect.Object{personAt(100, 100, 200, 300)}}
	source := &fakeSource{maxFrames: 5}
	engine := newTestEngine(t, source, detector, &fakeSink{})

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan error, 1)
	go func() { done <- engine.Run(ctx) }()

	deadline := time.After(2 * time.Second)
	for len(engine.Logs(10)) < 5 {
		select {
		case <-deadline:
			t.Fatalf("events logged = %d, want 5", len(engine.Logs(10)))
		case <-time.After(5 * time.Millisecond):
		}
	}

	status := engine.Status()
	if !status.PersonPresent {
		t.Error("status.PersonPresent = false, want true")
	}
	if status.ActiveDetections != 1 {
		t.Errorf("status.ActiveDetections = %d, want 1", status.ActiveDetections)
	}

	events := engine.Logs(10)
	if events[0].NumPersons != 1 {
		t.Errorf("event NumPersons = %d, want 1", events[0].NumPersons)
	}

	cancel()
	<-done
}

func TestEngineRejectsDoubleRun(t *testing.T) {
	source := &fakeSource{maxFrames: 1}
	engine := newTestEngine(t, source, &fakeDetector{}, &fakeSink{})

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	done := make(chan error, 1)
	go func() { done <- engine.Run(ctx) }()

	waitForState(t, engine, StateRunning)

	if err := engine.Run(ctx); err == nil {
		t.Error("second Run() = nil, want already-running error")
	}

	cancel()
	<-done
}
