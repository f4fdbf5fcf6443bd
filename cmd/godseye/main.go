package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"log"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"godseye/internal/capture"
	"godseye/internal/database"
	"godseye/internal/detect"
	"godseye/internal/eventlog"
	"godseye/internal/identity"
	"godseye/internal/pipeline"
	"godseye/internal/server"
	"godseye/internal/stream"
	"godseye/internal/ws"
)

// Config holds the validated command line configuration.
type Config struct {
	Addr         string
	Device       string
	FPS          int
	Width        int
	Height       int
	DetectorURL  string
	VerifierURL  string
	GalleryDir   string
	DBPath       string
	EventCSV     string
	DetectEvery  int
	ResolveEvery int
}

func parseFlags() (*Config, error) {
	cfg := &Config{}

	fs := flag.NewFlagSet("godseye", flag.ContinueOnError)
	fs.StringVar(&cfg.Addr, "addr", ":8000", "HTTP listen address")
	fs.StringVar(&cfg.Device, "device", "/dev/video0", "camera device path or stream URL")
	fs.IntVar(&cfg.FPS, "fps", 30, "capture frame rate")
	fs.IntVar(&cfg.Width, "width", 640, "capture frame width")
	fs.IntVar(&cfg.Height, "height", 480, "capture frame height")
	fs.StringVar(&cfg.DetectorURL, "detector", "http://localhost:9001", "object detection service endpoint")
	fs.StringVar(&cfg.VerifierURL, "verifier", "", "face verification service endpoint (empty disables identification)")
	fs.StringVar(&cfg.GalleryDir, "gallery-dir", "known_faces", "directory holding gallery reference images")
	fs.StringVar(&cfg.DBPath, "db", "godseye.db", "SQLite database path")
	fs.StringVar(&cfg.EventCSV, "event-log", "detection_history.csv", "detection event CSV path")
	fs.IntVar(&cfg.DetectEvery, "detect-every", pipeline.DefaultDetectEvery, "run inference every Nth frame")
	fs.IntVar(&cfg.ResolveEvery, "resolve-every", pipeline.DefaultResolveEvery, "attempt identification every Nth frame")
	if err := fs.Parse(os.Args[1:]); err != nil {
		return nil, err
	}

	if cfg.Device == "" {
		return nil, errors.New("device is required")
	}
	if cfg.DetectorURL == "" {
		return nil, errors.New("detector endpoint is required")
	}
	if cfg.FPS <= 0 || cfg.Width <= 0 || cfg.Height <= 0 {
		return nil, errors.New("fps, width and height must be positive")
	}
	if cfg.DetectEvery <= 0 || cfg.ResolveEvery <= 0 {
		return nil, errors.New("detect-every and resolve-every must be positive")
	}
	return cfg, nil
}

func main() {
	cfg, err := parseFlags()
	if err != nil {
		fmt.Fprintf(os.Stderr, "invalid configuration: %v\n", err)
		os.Exit(2)
	}

	logger := log.New(os.Stderr, "[godseye] ", log.Ltime)

	store, err := database.New(cfg.DBPath)
	if err != nil {
		logger.Fatalf("database: %v", err)
	}
	defer store.Close()

	if err := store.Migrate(); err != nil {
		logger.Fatalf("database migrations: %v", err)
	}

	gallery, err := identity.NewGallery(cfg.GalleryDir, store)
	if err != nil {
		logger.Fatalf("gallery: %v", err)
	}
	if err := gallery.Reload(); err != nil {
		logger.Fatalf("gallery load: %v", err)
	}

	detector := detect.NewHTTPDetector(detect.HTTPDetectorConfig{Endpoint: cfg.DetectorURL})
	if err := detector.CheckHealth(); err != nil {
		logger.Printf("warning: detector not reachable yet: %v", err)
	}

	var resolver pipeline.Resolver
	if cfg.VerifierURL != "" {
		verifier := identity.NewHTTPVerifier(identity.HTTPVerifierConfig{Endpoint: cfg.VerifierURL})
		if err := verifier.CheckHealth(); err != nil {
			logger.Printf("warning: verifier not reachable yet: %v", err)
		}
		resolver = identity.NewResolver(gallery, verifier)
	} else {
		resolver = identity.NewResolver(gallery, nil)
	}

	events, err := eventlog.New(cfg.EventCSV, eventlog.DefaultTailCapacity)
	if err != nil {
		logger.Fatalf("event log: %v", err)
	}

	broadcaster := stream.NewBroadcaster()
	hub := ws.NewHub()
	bus := pipeline.NewEventBus()
	unsubscribe := bus.Subscribe(hub)
	defer unsubscribe()

	source := capture.NewFFmpegSource(capture.FFmpegSourceConfig{
		Device: cfg.Device,
		FPS:    cfg.FPS,
		Width:  cfg.Width,
		Height: cfg.Height,
	})

	scheduler := pipeline.NewScheduler(detector, resolver, pipeline.SchedulerConfig{
		DetectEvery:  cfg.DetectEvery,
		ResolveEvery: cfg.ResolveEvery,
	})

	engine := pipeline.NewEngine(pipeline.EngineConfig{
		Source:    source,
		Scheduler: scheduler,
		Events:    events,
		Bus:       bus,
		Gallery:   gallery,
		Sinks:     []pipeline.FrameSink{broadcaster},
	})

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	errc := make(chan error, 1)

	go func() {
		c := make(chan os.Signal, 1)
		signal.Notify(c, syscall.SIGINT, syscall.SIGTERM)
		errc <- fmt.Errorf("%s", <-c)
	}()

	go func() {
		if err := engine.Run(ctx); err != nil {
			errc <- fmt.Errorf("engine: %w", err)
		}
	}()

	srv := &http.Server{
		Addr:    cfg.Addr,
		Handler: server.New(engine, gallery, broadcaster, ws.NewHandler(hub), detector).Router(),
	}
	go func() {
		logger.Printf("listening on %s", cfg.Addr)
		if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			errc <- fmt.Errorf("http server: %w", err)
		}
	}()

	logger.Printf("exiting (%v)", <-errc)

	cancel()

	shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer shutdownCancel()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		logger.Printf("http shutdown: %v", err)
	}

	// Give the engine a moment to observe cancellation and release the camera.
	deadline := time.After(5 * time.Second)
	for engine.State() != pipeline.StateStopped {
		select {
		case <-deadline:
			logger.Println("exited (engine still stopping)")
			return
		case <-time.After(50 * time.Millisecond):
		}
	}
	logger.Println("exited")
}
