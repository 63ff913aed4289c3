// Package store persists bundle manifests in SQLite. Only the manifest is
// stored (file list with paths and languages plus bundle metadata);
// content lives in sibling files owned by the bundle source.
package store

import (
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/frameloom-labs/frameloom/pkg/component"
	"github.com/google/uuid"
	_ "modernc.org/sqlite"
)

// SQLiteStore implements component.Store over a SQLite database.
type SQLiteStore struct {
	db     *sql.DB
	path   string
	logger *slog.Logger
}

// New creates a store instance. Open must be called before use.
func New(logger *slog.Logger) *SQLiteStore {
	if logger == nil {
		logger = slog.New(slog.DiscardHandler)
	}
	return &SQLiteStore{logger: logger}
}

// Open opens the SQLite database at path (":memory:" for tests).
func (s *SQLiteStore) Open(path string) error {
	dsn := path
	if path != ":memory:" {
		dsn = fmt.Sprintf("file:%s?_pragma=foreign_keys(1)&_pragma=journal_mode(WAL)", path)
	} else {
		dsn = ":memory:?_pragma=foreign_keys(1)"
	}

	db, err := sql.Open("sqlite", dsn)
	if err != nil {
		return fmt.Errorf("failed to open store: %w", err)
	}
	if err := db.Ping(); err != nil {
		_ = db.Close()
		return fmt.Errorf("failed to ping store: %w", err)
	}

	s.db = db
	s.path = path
	return nil
}

// Close closes the database connection.
func (s *SQLiteStore) Close() error {
	if s.db != nil {
		return s.db.Close()
	}
	return nil
}

// SaveBundle inserts or wholesale-replaces a bundle manifest. A bundle
// without an id is assigned one.
func (s *SQLiteStore) SaveBundle(b *component.Bundle) error {
	if s.db == nil {
		return fmt.Errorf("store not opened")
	}
	if b.ID == "" {
		b.ID = uuid.New().String()
	}
	now := time.Now().UTC()
	if b.CreatedAt.IsZero() {
		b.CreatedAt = now
	}
	if b.UpdatedAt.IsZero() {
		b.UpdatedAt = now
	}

	deps, err := json.Marshal(b.Dependencies)
	if err != nil {
		return fmt.Errorf("failed to serialize dependencies: %w", err)
	}
	meta, err := json.Marshal(b.Meta)
	if err != nil {
		return fmt.Errorf("failed to serialize meta: %w", err)
	}
	errs, err := json.Marshal(b.Errors)
	if err != nil {
		return fmt.Errorf("failed to serialize errors: %w", err)
	}

	tx, err := s.db.Begin()
	if err != nil {
		return fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer func() { _ = tx.Rollback() }()

	_, err = tx.Exec(`
		INSERT INTO bundles (id, name, description, entry_point, dependencies, meta, status, errors, source, created_at, updated_at)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)
		ON CONFLICT(id) DO UPDATE SET
			name = excluded.name,
			description = excluded.description,
			entry_point = excluded.entry_point,
			dependencies = excluded.dependencies,
			meta = excluded.meta,
			status = excluded.status,
			errors = excluded.errors,
			source = excluded.source,
			updated_at = excluded.updated_at`,
		b.ID, b.Name, b.Description, b.EntryPoint, string(deps), string(meta),
		string(b.Status), string(errs), string(b.Source), b.CreatedAt, b.UpdatedAt)
	if err != nil {
		return fmt.Errorf("failed to save bundle %s: %w", b.ID, err)
	}

	if _, err := tx.Exec(`DELETE FROM bundle_files WHERE bundle_id = ?`, b.ID); err != nil {
		return fmt.Errorf("failed to clear bundle files: %w", err)
	}
	for i, f := range b.Files {
		_, err := tx.Exec(`INSERT INTO bundle_files (bundle_id, position, path, language) VALUES (?, ?, ?, ?)`,
			b.ID, i, f.Path, string(f.Language))
		if err != nil {
			return fmt.Errorf("failed to save bundle file %s: %w", f.Path, err)
		}
	}

	return tx.Commit()
}

// GetBundle returns the manifest for id, or nil when absent. File entries
// come back without content.
func (s *SQLiteStore) GetBundle(id string) (*component.Bundle, error) {
	if s.db == nil {
		return nil, fmt.Errorf("store not opened")
	}
	row := s.db.QueryRow(`
		SELECT id, name, description, entry_point, dependencies, meta, status, errors, source, created_at, updated_at
		FROM bundles WHERE id = ?`, id)

	b, err := scanBundle(row)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("failed to load bundle %s: %w", id, err)
	}

	rows, err := s.db.Query(`SELECT path, language FROM bundle_files WHERE bundle_id = ? ORDER BY position`, id)
	if err != nil {
		return nil, fmt.Errorf("failed to load bundle files: %w", err)
	}
	defer func() { _ = rows.Close() }()
	for rows.Next() {
		var path, lang string
		if err := rows.Scan(&path, &lang); err != nil {
			return nil, fmt.Errorf("failed to scan bundle file: %w", err)
		}
		b.Files = append(b.Files, component.File{Path: path, Language: component.Language(lang)})
	}
	return b, rows.Err()
}

// ListBundles returns all manifests ordered by name, without file lists.
func (s *SQLiteStore) ListBundles() ([]*component.Bundle, error) {
	if s.db == nil {
		return nil, fmt.Errorf("store not opened")
	}
	rows, err := s.db.Query(`
		SELECT id, name, description, entry_point, dependencies, meta, status, errors, source, created_at, updated_at
		FROM bundles ORDER BY name`)
	if err != nil {
		return nil, fmt.Errorf("failed to list bundles: %w", err)
	}
	defer func() { _ = rows.Close() }()

	var out []*component.Bundle
	for rows.Next() {
		b, err := scanBundle(rows)
		if err != nil {
			return nil, fmt.Errorf("failed to scan bundle: %w", err)
		}
		out = append(out, b)
	}
	return out, rows.Err()
}

// DeleteBundle removes a manifest and its file list.
func (s *SQLiteStore) DeleteBundle(id string) error {
	if s.db == nil {
		return fmt.Errorf("store not opened")
	}
	if _, err := s.db.Exec(`DELETE FROM bundle_files WHERE bundle_id = ?`, id); err != nil {
		return fmt.Errorf("failed to delete bundle files: %w", err)
	}
	if _, err := s.db.Exec(`DELETE FROM bundles WHERE id = ?`, id); err != nil {
		return fmt.Errorf("failed to delete bundle %s: %w", id, err)
	}
	return nil
}

// SetStatus records a compile outcome.
func (s *SQLiteStore) SetStatus(id string, status component.BundleStatus, errs []component.CompileError) error {
	if s.db == nil {
		return fmt.Errorf("store not opened")
	}
	raw, err := json.Marshal(errs)
	if err != nil {
		return fmt.Errorf("failed to serialize errors: %w", err)
	}
	_, err = s.db.Exec(`UPDATE bundles SET status = ?, errors = ?, updated_at = ? WHERE id = ?`,
		string(status), string(raw), time.Now().UTC(), id)
	if err != nil {
		return fmt.Errorf("failed to set status for %s: %w", id, err)
	}
	return nil
}

// scanner abstracts *sql.Row and *sql.Rows.
type scanner interface {
	Scan(dest ...any) error
}

func scanBundle(row scanner) (*component.Bundle, error) {
	var b component.Bundle
	var deps, meta, errs, status, src string
	if err := row.Scan(&b.ID, &b.Name, &b.Description, &b.EntryPoint,
		&deps, &meta, &status, &errs, &src, &b.CreatedAt, &b.UpdatedAt); err != nil {
		return nil, err
	}
	b.Status = component.BundleStatus(status)
	b.Source = component.BundleSource(src)
	if err := json.Unmarshal([]byte(deps), &b.Dependencies); err != nil {
		return nil, fmt.Errorf("malformed dependencies: %w", err)
	}
	if err := json.Unmarshal([]byte(meta), &b.Meta); err != nil {
		return nil, fmt.Errorf("malformed meta: %w", err)
	}
	if err := json.Unmarshal([]byte(errs), &b.Errors); err != nil {
		return nil, fmt.Errorf("malformed errors: %w", err)
	}
	return &b, nil
}
