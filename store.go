package main

import (
	"database/sql"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"time"

	"github.com/google/uuid"
	_ "modernc.org/sqlite"
)

// TabRecord is an uploaded tab file kept in the library.
type TabRecord struct {
	ID        string
	Filename  string
	Format    string
	Data      []byte
	CreatedAt time.Time
}

// TabStore is a SQLite-backed library of uploaded tab files.
type TabStore struct {
	db *sql.DB
}

// OpenTabStore opens (creating if needed) the tab library at path.
func OpenTabStore(path string) (*TabStore, error) {
	if dir := filepath.Dir(path); dir != "." {
		if err := os.MkdirAll(dir, 0755); err != nil {
			return nil, fmt.Errorf("failed to create data directory: %w", err)
		}
	}

	db, err := sql.Open("sqlite", path)
	if err != nil {
		return nil, fmt.Errorf("failed to open database: %w", err)
	}

	createTableSQL := `
	CREATE TABLE IF NOT EXISTS tabs (
		id TEXT PRIMARY KEY,
		filename TEXT NOT NULL,
		format TEXT NOT NULL,
		data BLOB NOT NULL,
		created_at INTEGER NOT NULL
	);
	CREATE INDEX IF NOT EXISTS idx_tabs_created_at ON tabs(created_at);
	`

	if _, err := db.Exec(createTableSQL); err != nil {
		db.Close()
		return nil, fmt.Errorf("failed to create table: %w", err)
	}

	return &TabStore{db: db}, nil
}

func (s *TabStore) Close() error {
	return s.db.Close()
}

// Put stores a tab file under a new id and returns the stored record. The
// format is taken from the file extension, which must be one OpenTabSource
// understands.
func (s *TabStore) Put(filename string, data []byte) (*TabRecord, error) {
	format := formatOf(filename)
	if format == "" {
		return nil, fmt.Errorf("%w: %s", ErrUnsupportedFormat, filename)
	}

	record := &TabRecord{
		ID:        uuid.NewString(),
		Filename:  filepath.Base(filename),
		Format:    format,
		Data:      data,
		CreatedAt: time.Now().Truncate(time.Second),
	}

	_, err := s.db.Exec(`INSERT INTO tabs (id, filename, format, data, created_at) VALUES (?, ?, ?, ?, ?)`,
		record.ID, record.Filename, record.Format, record.Data, record.CreatedAt.Unix())
	if err != nil {
		return nil, fmt.Errorf("failed to store tab: %w", err)
	}

	return record, nil
}

// Get loads a tab by id. Missing ids return ErrTabNotFound.
func (s *TabStore) Get(id string) (*TabRecord, error) {
	var record TabRecord
	var createdAt int64

	row := s.db.QueryRow(`SELECT id, filename, format, data, created_at FROM tabs WHERE id = ?`, id)
	err := row.Scan(&record.ID, &record.Filename, &record.Format, &record.Data, &createdAt)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, fmt.Errorf("%w: %s", ErrTabNotFound, id)
	}
	if err != nil {
		return nil, fmt.Errorf("failed to load tab: %w", err)
	}

	record.CreatedAt = time.Unix(createdAt, 0)
	return &record, nil
}

// List returns every stored tab, newest first, without file contents.
func (s *TabStore) List() ([]TabRecord, error) {
	rows, err := s.db.Query(`SELECT id, filename, format, created_at FROM tabs ORDER BY created_at DESC, filename`)
	if err != nil {
		return nil, fmt.Errorf("failed to list tabs: %w", err)
	}
	defer rows.Close()

	var records []TabRecord
	for rows.Next() {
		var record TabRecord
		var createdAt int64
		if err := rows.Scan(&record.ID, &record.Filename, &record.Format, &createdAt); err != nil {
			return nil, fmt.Errorf("failed to scan tab: %w", err)
		}
		record.CreatedAt = time.Unix(createdAt, 0)
		records = append(records, record)
	}

	return records, rows.Err()
}

// Source parses the stored file.
func (r *TabRecord) Source() (TabSource, error) {
	return OpenTabSource(r.Filename, r.Data)
}
