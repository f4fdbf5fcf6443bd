package server

import (
	"encoding/json"
	"io"
	"log"
	"net/http"
	"strconv"

	"github.com/gorilla/mux"

	"godseye/internal/identity"
	"godseye/internal/pipeline"
	"godseye/internal/stream"
	"godseye/internal/ws"
)

// maxUploadBytes bounds gallery reference uploads.
const maxUploadBytes = 10 << 20

// HealthReporter reports whether an external model service passed its last
// health check.
type HealthReporter interface {
	IsHealthy() bool
}

// Server exposes the pipeline over HTTP: the MJPEG feed, status and log
// snapshots, and gallery management.
type Server struct {
	engine      *pipeline.Engine
	gallery     *identity.Gallery
	broadcaster *stream.Broadcaster
	wsHandler   *ws.Handler
	detector    HealthReporter
}

// New creates the HTTP server facade. detector may be nil.
func New(engine *pipeline.Engine, gallery *identity.Gallery, broadcaster *stream.Broadcaster, wsHandler *ws.Handler, detector HealthReporter) *Server {
	return &Server{
		engine:      engine,
		gallery:     gallery,
		broadcaster: broadcaster,
		wsHandler:   wsHandler,
		detector:    detector,
	}
}

// Router builds the route table.
func (s *Server) Router() *mux.Router {
	r := mux.NewRouter()

	r.HandleFunc("/healthz", s.handleHealth).Methods(http.MethodGet)
	r.HandleFunc("/status", s.handleStatus).Methods(http.MethodGet)
	r.HandleFunc("/logs", s.handleLogs).Methods(http.MethodGet)

	r.Handle("/video_feed", s.broadcaster).Methods(http.MethodGet)
	r.Handle("/snapshot", stream.NewSnapshotHandler(s.broadcaster)).Methods(http.MethodGet)
	r.Handle("/ws/events", s.wsHandler).Methods(http.MethodGet)

	r.HandleFunc("/gallery", s.handleGalleryList).Methods(http.MethodGet)
	r.HandleFunc("/gallery", s.handleGalleryAdd).Methods(http.MethodPost)
	r.HandleFunc("/gallery/{name}", s.handleGalleryRemove).Methods(http.MethodDelete)

	return r
}

func (s *Server) handleHealth(w http.ResponseWriter, r *http.Request) {
	respondJSON(w, http.StatusOK, map[string]any{
		"status":           "ok",
		"engine_state":     s.engine.State().String(),
		"detector_healthy": s.detector != nil && s.detector.IsHealthy(),
		"gallery_size":     s.gallery.Size(),
		"stream_clients":   s.broadcaster.ClientCount(),
	})
}

func (s *Server) handleStatus(w http.ResponseWriter, r *http.Request) {
	respondJSON(w, http.StatusOK, s.engine.Status())
}

func (s *Server) handleLogs(w http.ResponseWriter, r *http.Request) {
	limit := 50
	if v := r.URL.Query().Get("limit"); v != "" {
		n, err := strconv.Atoi(v)
		if err != nil || n <= 0 {
			respondError(w, http.StatusBadRequest, "limit must be a positive integer")
			return
		}
		limit = n
	}

	events := s.engine.Logs(limit)
	respondJSON(w, http.StatusOK, map[string]any{
		"count":  len(events),
		"events": events,
	})
}

func (s *Server) handleGalleryList(w http.ResponseWriter, r *http.Request) {
	respondJSON(w, http.StatusOK, map[string]any{
		"count": s.gallery.Size(),
		"names": s.gallery.Names(),
	})
}

func (s *Server) handleGalleryAdd(w http.ResponseWriter, r *http.Request) {
	if err := r.ParseMultipartForm(maxUploadBytes); err != nil {
		respondError(w, http.StatusBadRequest, "expected multipart form upload")
		return
	}

	file, header, err := r.FormFile("file")
	if err != nil {
		respondError(w, http.StatusBadRequest, "missing file field")
		return
	}
	defer file.Close()

	data, err := io.ReadAll(io.LimitReader(file, maxUploadBytes))
	if err != nil {
		respondError(w, http.StatusBadRequest, "failed to read upload")
		return
	}

	name, err := s.gallery.Add(header.Filename, data)
	if err != nil {
		log.Printf("[Server] Gallery add failed: %v", err)
		respondError(w, http.StatusInternalServerError, err.Error())
		return
	}

	respondJSON(w, http.StatusCreated, map[string]any{
		"name":  name,
		"count": s.gallery.Size(),
	})
}

func (s *Server) handleGalleryRemove(w http.ResponseWriter, r *http.Request) {
	name := mux.Vars(r)["name"]

	if err := s.gallery.Remove(name); err != nil {
		respondError(w, http.StatusNotFound, err.Error())
		return
	}

	respondJSON(w, http.StatusOK, map[string]any{
		"removed": name,
		"count":   s.gallery.Size(),
	})
}

func respondJSON(w http.ResponseWriter, status int, payload any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(payload); err != nil {
		log.Printf("[Server] Failed to encode response: %v", err)
	}
}

func respondError(w http.ResponseWriter, status int, message string) {
	respondJSON(w, status, map[string]string{"error": message})
}
