package eventlog

import (
	"encoding/csv"
	"os"
	"path/filepath"
	"strconv"
	"testing"
	"time"
)

func testEvent(i int, names ...string) Event {
	return Event{
		Timestamp:       time.Date(2026, 8, 27, 12, 0, i, 0, time.UTC),
		NumPersons:      1,
		IdentifiedCount: len(names),
		Names:           names,
	}
}

func TestNewWritesHeaderOnce(t *testing.T) {
	path := filepath.Join(t.TempDir(), "events.csv")

	if _, err := New(path, 10); err != nil {
		t.Fatalf("New() error: %v", err)
	}
	// Reopening an existing file must not duplicate the header.
	if _, err := New(path, 10); err != nil {
		t.Fatalf("New() on existing file error: %v", err)
	}

	rows := readCSV(t, path)
	if len(rows) != 1 {
		t.Fatalf("rows = %d, want header only", len(rows))
	}
	if rows[0][0] != "timestamp" || rows[0][3] != "names" {
		t.Errorf("unexpected header %v", rows[0])
	}
}

func TestAppendPersistsRows(t *testing.T) {
	path := filepath.Join(t.TempDir(), "events.csv")
	log, err := New(path, 10)
	if err != nil {
		t.Fatalf("New() error: %v", err)
	}

	if err := log.Append(testEvent(1, "Alice", "Bob")); err != nil {
		t.Fatalf("Append() error: %v", err)
	}
	if err := log.Append(testEvent(2)); err != nil {
		t.Fatalf("Append() error: %v", err)
	}

	rows := readCSV(t, path)
	if len(rows) != 3 {
		t.Fatalf("rows = %d, want header plus 2 events", len(rows))
	}
	if rows[1][3] != "Alice,Bob" {
		t.Errorf("names column = %q, want %q", rows[1][3], "Alice,Bob")
	}
	if rows[2][3] != "UNKNOWN" {
		t.Errorf("names column = %q, want UNKNOWN for unidentified event", rows[2][3])
	}
}

func TestReadTailOrderAndLimit(t *testing.T) {
	path := filepath.Join(t.TempDir(), "events.csv")
	log, err := New(path, 10)
	if err != nil {
		t.Fatalf("New() error: %v", err)
	}

	for i := 0; i < 5; i++ {
		if err := log.Append(testEvent(i, "P"+strconv.Itoa(i))); err != nil {
			t.Fatalf("Append() error: %v", err)
		}
	}

	tail := log.ReadTail(3)
	if len(tail) != 3 {
		t.Fatalf("tail length = %d, want 3", len(tail))
	}
	for i, want := range []string{"P2", "P3", "P4"} {
		if tail[i].Names[0] != want {
			t.Errorf("tail[%d] = %q, want %q", i, tail[i].Names[0], want)
		}
	}
}

func TestTailEvictsOldestAtCapacity(t *testing.T) {
	path := filepath.Join(t.TempDir(), "events.csv")
	log, err := New(path, 1000)
	if err != nil {
		t.Fatalf("New() error: %v", err)
	}

	for i := 0; i < 1001; i++ {
		if err := log.Append(testEvent(i%60, "P"+strconv.Itoa(i))); err != nil {
			t.Fatalf("Append() error: %v", err)
		}
	}

	if log.Len() != 1000 {
		t.Fatalf("Len() = %d, want 1000", log.Len())
	}

	tail := log.ReadTail(1000)
	if tail[0].Names[0] != "P1" {
		t.Errorf("oldest retained = %q, want P1 (P0 evicted)", tail[0].Names[0])
	}
	if tail[999].Names[0] != "P1000" {
		t.Errorf("newest retained = %q, want P1000", tail[999].Names[0])
	}
}

func TestAppendKeepsEventInMemoryOnWriteFailure(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "events.csv")
	log, err := New(path, 10)
	if err != nil {
		t.Fatalf("New() error: %v", err)
	}

	// Replace the file with a directory so the durable write fails.
	if err := os.Remove(path); err != nil {
		t.Fatal(err)
	}
	if err := os.Mkdir(path, 0o755); err != nil {
		t.Fatal(err)
	}

	if err := log.Append(testEvent(1, "Alice")); err == nil {
		t.Fatal("Append() = nil, want durable-write error")
	}

	tail := log.ReadTail(10)
	if len(tail) != 1 || tail[0].Names[0] != "Alice" {
		t.Errorf("tail = %+v, want the unpersisted event retained in memory", tail)
	}
}

func TestRingTailEdgeCases(t *testing.T) {
	r := NewRing(3)

	if got := r.Tail(5); got != nil {
		t.Errorf("Tail() on empty ring = %v, want nil", got)
	}

	r.Append(testEvent(1, "A"))
	if got := r.Tail(0); got != nil {
		t.Errorf("Tail(0) = %v, want nil", got)
	}
	if got := r.Tail(5); len(got) != 1 {
		t.Errorf("Tail(5) length = %d, want 1", len(got))
	}

	for _, n := range []string{"B", "C", "D"} {
		r.Append(testEvent(1, n))
	}
	got := r.Tail(3)
	for i, want := range []string{"B", "C", "D"} {
		if got[i].Names[0] != want {
			t.Errorf("Tail()[%d] = %q, want %q", i, got[i].Names[0], want)
		}
	}
}

func readCSV(t *testing.T, path string) [][]string {
	t.Helper()
	f, err := os.Open(path)
	if err != nil {
		t.Fatalf("open csv: %v", err)
	}
	defer f.Close()

	rows, err := csv.NewReader(f).ReadAll()
	if err != nil {
		t.Fatalf("read csv: %v", err)
	}
	return rows
}
