package database

import (
	"database/sql"
	"fmt"
	"time"

	"github.com/google/uuid"
	_ "modernc.org/sqlite"
)

// Store handles SQLite database operations.
type Store struct {
	db *sql.DB
}

// FaceRecord represents a known-face gallery entry stored in the database.
type FaceRecord struct {
	ID        string
	Name      string
	Path      string
	CreatedAt time.Time
}

// New creates a new database connection.
func New(dbPath string) (*Store, error) {
	db, err := sql.Open("sqlite", dbPath)
	if err != nil {
		return nil, fmt.Errorf("failed to open database: %w", err)
	}

	// Enable WAL mode for better concurrent access
	if _, err := db.Exec("PRAGMA journal_mode=WAL"); err != nil {
		db.Close()
		return nil, fmt.Errorf("failed to enable WAL mode: %w", err)
	}

	return &Store{db: db}, nil
}

// Close closes the database connection.
func (s *Store) Close() error {
	return s.db.Close()
}

// Migrate runs database migrations.
func (s *Store) Migrate() error {
	migrations := []string{
		`CREATE TABLE IF NOT EXISTS known_faces (
			id TEXT PRIMARY KEY,
			name TEXT NOT NULL UNIQUE,
			path TEXT NOT NULL,
			created_at DATETIME DEFAULT CURRENT_TIMESTAMP
		)`,
		`CREATE INDEX IF NOT EXISTS idx_known_faces_name ON known_faces(name)`,
	}

	for _, migration := range migrations {
		if _, err := s.db.Exec(migration); err != nil {
			return fmt.Errorf("migration failed: %w", err)
		}
	}

	return nil
}

// SaveFace inserts or replaces a known-face record. The reference image for
// an existing name is overwritten, keeping at most one record per name.
func (s *Store) SaveFace(name, path string) (*FaceRecord, error) {
	record := &FaceRecord{
		ID:        uuid.NewString(),
		Name:      name,
		Path:      path,
		CreatedAt: time.Now(),
	}

	query := `INSERT INTO known_faces (id, name, path, created_at)
		VALUES (?, ?, ?, ?)
		ON CONFLICT(name) DO UPDATE SET
			path = excluded.path`

	if _, err := s.db.Exec(query, record.ID, record.Name, record.Path, record.CreatedAt); err != nil {
		return nil, fmt.Errorf("failed to save face %q: %w", name, err)
	}
	return record, nil
}

// GetFace retrieves a known-face record by name.
func (s *Store) GetFace(name string) (*FaceRecord, error) {
	query := `SELECT id, name, path, created_at FROM known_faces WHERE name = ?`

	var record FaceRecord
	err := s.db.QueryRow(query, name).Scan(&record.ID, &record.Name, &record.Path, &record.CreatedAt)
	if err == sql.ErrNoRows {
		return nil, fmt.Errorf("face %q not found", name)
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get face %q: %w", name, err)
	}
	return &record, nil
}

// DeleteFace removes a known-face record by name.
func (s *Store) DeleteFace(name string) error {
	result, err := s.db.Exec(`DELETE FROM known_faces WHERE name = ?`, name)
	if err != nil {
		return fmt.Errorf("failed to delete face %q: %w", name, err)
	}

	rows, err := result.RowsAffected()
	if err != nil {
		return fmt.Errorf("failed to check delete result: %w", err)
	}
	if rows == 0 {
		return fmt.Errorf("face %q not found", name)
	}
	return nil
}

// ListFaces returns all known-face records ordered by name.
func (s *Store) ListFaces() ([]*FaceRecord, error) {
	rows, err := s.db.Query(`SELECT id, name, path, created_at FROM known_faces ORDER BY name`)
	if err != nil {
		return nil, fmt.Errorf("failed to list faces: %w", err)
	}
	defer rows.Close()

	var records []*FaceRecord
	for rows.Next() {
		var record FaceRecord
		if err := rows.Scan(&record.ID, &record.Name, &record.Path, &record.CreatedAt); err != nil {
			return nil, fmt.Errorf("failed to scan face record: %w", err)
		}
		records = append(records, &record)
	}
	return records, rows.Err()
}
