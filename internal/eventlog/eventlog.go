package eventlog

import (
	"encoding/csv"
	"fmt"
	"os"
	"strconv"
	"strings"
	"sync"
	"time"
)

// DefaultTailCapacity is the number of events kept in memory for live
// status queries.
const DefaultTailCapacity = 1000

// Event records one inference cycle that found subjects.
type Event struct {
	Timestamp       time.Time `json:"timestamp"`
	NumPersons      int       `json:"num_persons"`
	IdentifiedCount int       `json:"identified_count"`
	Names           []string  `json:"names"`
}

// Log is a durable append-only detection record with a bounded in-memory
// tail. Appends go to the CSV file and the tail under one lock; a failed
// durable write keeps the event in memory so live queries stay complete.
type Log struct {
	path string
	mu   sync.Mutex
	ring *Ring
}

var csvHeader = []string{"timestamp", "num_persons", "identified_count", "names"}

// New opens the event log at path, creating the CSV with its header row
// if it does not exist yet. capacity <= 0 uses DefaultTailCapacity.
func New(path string, capacity int) (*Log, error) {
	if capacity <= 0 {
		capacity = DefaultTailCapacity
	}

	l := &Log{
		path: path,
		ring: NewRing(capacity),
	}

	if _, err := os.Stat(path); os.IsNotExist(err) {
		if err := l.writeRow(csvHeader); err != nil {
			return nil, fmt.Errorf("failed to initialize event log: %w", err)
		}
	}

	return l, nil
}

// Append records the event in the in-memory tail and writes it to durable
// storage. A durable-write failure is returned but the event stays in the
// tail; callers treat the error as a warning.
func (l *Log) Append(ev Event) error {
	l.mu.Lock()
	defer l.mu.Unlock()

	l.ring.Append(ev)

	names := strings.Join(ev.Names, ",")
	if names == "" {
		names = "UNKNOWN"
	}

	row := []string{
		ev.Timestamp.Format(time.RFC3339),
		strconv.Itoa(ev.NumPersons),
		strconv.Itoa(ev.IdentifiedCount),
		names,
	}
	if err := l.writeRow(row); err != nil {
		return fmt.Errorf("failed to persist event: %w", err)
	}
	return nil
}

// ReadTail returns the most recent limit events in chronological order,
// served from memory only.
func (l *Log) ReadTail(limit int) []Event {
	l.mu.Lock()
	defer l.mu.Unlock()
	return l.ring.Tail(limit)
}

// Len returns the number of events currently held in memory.
func (l *Log) Len() int {
	l.mu.Lock()
	defer l.mu.Unlock()
	return l.ring.Len()
}

// writeRow appends a single CSV row, syncing so the record is crash-durable
// up to the last completed write.
func (l *Log) writeRow(row []string) error {
	f, err := os.OpenFile(l.path, os.O_APPEND|os.O_CREATE|os.O_WRONLY, 0o644)
	if err != nil {
		return err
	}
	defer f.Close()

	w := csv.NewWriter(f)
	if err := w.Write(row); err != nil {
		return err
	}
	w.Flush()
	if err := w.Error(); err != nil {
		return err
	}
	return f.Sync()
}
