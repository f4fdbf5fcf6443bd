package identity

import (
	"fmt"
	"image"
	"log"
	"os"
	"path/filepath"
	"sort"
	"strings"
	"sync"

	"github.com/disintegration/imaging"

	"godseye/internal/database"
)

// Entry is a single named reference image loaded into memory.
type Entry struct {
	Name  string
	Path  string
	Image image.Image
}

// Gallery holds the set of named reference images used for identity
// verification. Records live in the database, image files in dir.
// Entries are kept sorted by name so verification order is deterministic.
type Gallery struct {
	dir     string
	store   *database.Store
	mu      sync.RWMutex
	entries []Entry
}

// NewGallery creates a gallery backed by the given image directory and store.
func NewGallery(dir string, store *database.Store) (*Gallery, error) {
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return nil, fmt.Errorf("failed to create gallery dir: %w", err)
	}
	return &Gallery{dir: dir, store: store}, nil
}

// Reload re-reads all records from the store and loads their images.
// Records whose image file cannot be read are skipped with a warning.
func (g *Gallery) Reload() error {
	records, err := g.store.ListFaces()
	if err != nil {
		return fmt.Errorf("failed to load gallery records: %w", err)
	}

	entries := make([]Entry, 0, len(records))
	for _, record := range records {
		img, err := imaging.Open(record.Path)
		if err != nil {
			log.Printf("[Gallery] Warning: skipping %q, cannot read %s: %v", record.Name, record.Path, err)
			continue
		}
		entries = append(entries, Entry{Name: record.Name, Path: record.Path, Image: img})
	}

	sort.Slice(entries, func(i, j int) bool { return entries[i].Name < entries[j].Name })

	g.mu.Lock()
	g.entries = entries
	g.mu.Unlock()

	log.Printf("[Gallery] Loaded %d reference images", len(entries))
	return nil
}

// Entries returns a snapshot of the loaded reference set in name order.
func (g *Gallery) Entries() []Entry {
	g.mu.RLock()
	defer g.mu.RUnlock()

	snapshot := make([]Entry, len(g.entries))
	copy(snapshot, g.entries)
	return snapshot
}

// Size returns the number of loaded reference images.
func (g *Gallery) Size() int {
	g.mu.RLock()
	defer g.mu.RUnlock()
	return len(g.entries)
}

// Names returns the names of all loaded references in order.
func (g *Gallery) Names() []string {
	g.mu.RLock()
	defer g.mu.RUnlock()

	names := make([]string, 0, len(g.entries))
	for _, e := range g.entries {
		names = append(names, e.Name)
	}
	return names
}

// Add stores a new reference image under the display name derived from
// filename (basename without extension) and reloads the gallery.
func (g *Gallery) Add(filename string, data []byte) (string, error) {
	name := NameFromFilename(filename)
	if name == "" {
		return "", fmt.Errorf("cannot derive a name from filename %q", filename)
	}

	path := filepath.Join(g.dir, filepath.Base(filename))
	if err := os.WriteFile(path, data, 0o644); err != nil {
		return "", fmt.Errorf("failed to write reference image: %w", err)
	}

	if _, err := g.store.SaveFace(name, path); err != nil {
		os.Remove(path)
		return "", err
	}

	if err := g.Reload(); err != nil {
		return "", err
	}
	return name, nil
}

// Remove deletes a reference image by name and reloads the gallery.
func (g *Gallery) Remove(name string) error {
	record, err := g.store.GetFace(name)
	if err != nil {
		return err
	}

	if err := g.store.DeleteFace(name); err != nil {
		return err
	}

	if err := os.Remove(record.Path); err != nil && !os.IsNotExist(err) {
		log.Printf("[Gallery] Warning: failed to remove %s: %v", record.Path, err)
	}

	return g.Reload()
}

// NameFromFilename derives a display name from an image filename.
func NameFromFilename(filename string) string {
	base := filepath.Base(filename)
	return strings.TrimSuffix(base, filepath.Ext(base))
}
