package stream

import (
	"fmt"
	"log"
	"net/http"
	"sync"
)

// Broadcaster fans processed JPEG frames out to any number of connected
// MJPEG clients. The producer never blocks: a slow client's frames are
// dropped at this boundary.
type Broadcaster struct {
	clients   map[chan []byte]bool
	clientsMu sync.RWMutex

	currentFrame []byte
	frameSeq     uint64
	frameMu      sync.RWMutex
}

// NewBroadcaster creates an empty broadcaster.
func NewBroadcaster() *Broadcaster {
	return &Broadcaster{
		clients: make(map[chan []byte]bool),
	}
}

// Publish stores the frame as the current snapshot and broadcasts it to
// all connected clients. Implements the engine's frame sink.
func (b *Broadcaster) Publish(seq uint64, frame []byte) {
	if len(frame) == 0 {
		return
	}

	b.frameMu.Lock()
	b.currentFrame = frame
	b.frameSeq = seq
	b.frameMu.Unlock()

	b.clientsMu.RLock()
	for ch := range b.clients {
		select {
		case ch <- frame:
		default:
			// Client is slow, skip frame
		}
	}
	b.clientsMu.RUnlock()
}

// CurrentFrame returns the most recently published frame, or nil.
func (b *Broadcaster) CurrentFrame() []byte {
	b.frameMu.RLock()
	defer b.frameMu.RUnlock()
	return b.currentFrame
}

// CurrentSeq returns the sequence number of the most recent frame.
func (b *Broadcaster) CurrentSeq() uint64 {
	b.frameMu.RLock()
	defer b.frameMu.RUnlock()
	return b.frameSeq
}

// ClientCount returns the number of connected stream clients.
func (b *Broadcaster) ClientCount() int {
	b.clientsMu.RLock()
	defer b.clientsMu.RUnlock()
	return len(b.clients)
}

// ServeHTTP streams frames to the client as multipart/x-mixed-replace
// until the client disconnects.
func (b *Broadcaster) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	w.Header().Set("Content-Type", "multipart/x-mixed-replace; boundary=frame")
	w.Header().Set("Cache-Control", "no-cache")
	w.Header().Set("Connection", "keep-alive")
	w.Header().Set("X-Accel-Buffering", "no")

	flusher, ok := w.(http.Flusher)
	if !ok {
		http.Error(w, "Streaming not supported", http.StatusInternalServerError)
		return
	}

	clientCh := make(chan []byte, 5)
	b.clientsMu.Lock()
	b.clients[clientCh] = true
	b.clientsMu.Unlock()

	defer func() {
		b.clientsMu.Lock()
		delete(b.clients, clientCh)
		b.clientsMu.Unlock()
	}()

	log.Printf("[Stream] Client connected from %s", r.RemoteAddr)

	for {
		select {
		case <-r.Context().Done():
			log.Printf("[Stream] Client disconnected from %s", r.RemoteAddr)
			return
		case frame := <-clientCh:
			fmt.Fprintf(w, "--frame\r\n")
			fmt.Fprintf(w, "Content-Type: image/jpeg\r\n")
			fmt.Fprintf(w, "Content-Length: %d\r\n\r\n", len(frame))
			w.Write(frame)
			fmt.Fprintf(w, "\r\n")
			flusher.Flush()
		}
	}
}

// SnapshotHandler serves the most recent frame as a single JPEG.
type SnapshotHandler struct {
	broadcaster *Broadcaster
}

// NewSnapshotHandler creates a snapshot handler over the broadcaster.
func NewSnapshotHandler(broadcaster *Broadcaster) *SnapshotHandler {
	return &SnapshotHandler{broadcaster: broadcaster}
}

// ServeHTTP serves a single JPEG snapshot.
func (h *SnapshotHandler) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	frame := h.broadcaster.CurrentFrame()
	if frame == nil {
		http.Error(w, "No frame available", http.StatusServiceUnavailable)
		return
	}

	w.Header().Set("Content-Type", "image/jpeg")
	w.Header().Set("Content-Length", fmt.Sprintf("%d", len(frame)))
	w.Write(frame)
}
