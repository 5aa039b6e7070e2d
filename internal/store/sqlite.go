package store

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"path/filepath"
	"sync"
	"time"

	_ "modernc.org/sqlite"
)

// SQLiteStore implements Store using an embedded SQLite database.
// It uses modernc.org/sqlite which is pure Go (no CGO).
type SQLiteStore struct {
	db *sql.DB
	mu sync.RWMutex // serializes writes (SQLite is single-writer)
}

var _ Store = (*SQLiteStore)(nil)

// NewSQLiteStore opens or creates a SQLite database at dataDir/recorder.db
// and runs schema migrations.
func NewSQLiteStore(dataDir string) (*SQLiteStore, error) {
	dbPath := filepath.Join(dataDir, "recorder.db")
	db, err := sql.Open("sqlite", dbPath+"?_journal_mode=WAL&_busy_timeout=5000")
	if err != nil {
		return nil, fmt.Errorf("opening sqlite: %w", err)
	}

	// Single connection for writes to avoid SQLITE_BUSY.
	db.SetMaxOpenConns(1)

	s := &SQLiteStore{db: db}
	if err := s.migrate(); err != nil {
		db.Close()
		return nil, fmt.Errorf("migrating sqlite: %w", err)
	}
	return s, nil
}

func (s *SQLiteStore) migrate() error {
	migrations := []string{
		`CREATE TABLE IF NOT EXISTS events (
			name TEXT PRIMARY KEY,
			camera INTEGER NOT NULL,
			pending INTEGER NOT NULL DEFAULT 1,
			created_at DATETIME NOT NULL
		)`,
		`CREATE TABLE IF NOT EXISTS event_fields (
			event TEXT NOT NULL REFERENCES events(name) ON DELETE CASCADE,
			key TEXT NOT NULL,
			value TEXT NOT NULL,
			PRIMARY KEY (event, key)
		)`,
		`CREATE INDEX IF NOT EXISTS idx_events_pending ON events(pending) WHERE pending = 1`,
		`CREATE TABLE IF NOT EXISTS bookmarks (
			id INTEGER PRIMARY KEY AUTOINCREMENT,
			camera INTEGER NOT NULL,
			event TEXT NOT NULL DEFAULT '',
			created_at DATETIME NOT NULL
		)`,
		`CREATE TABLE IF NOT EXISTS settings (
			namespace TEXT NOT NULL,
			key TEXT NOT NULL,
			value TEXT NOT NULL,
			PRIMARY KEY (namespace, key)
		)`,
	}

	for _, m := range migrations {
		if _, err := s.db.Exec(m); err != nil {
			return fmt.Errorf("executing migration: %w", err)
		}
	}
	return nil
}

// --- Events ---

func (s *SQLiteStore) EventCreate(ctx context.Context, ev Event) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if ev.CreatedAt.IsZero() {
		ev.CreatedAt = time.Now().UTC()
	}

	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("beginning transaction: %w", err)
	}
	defer tx.Rollback()

	if _, err := tx.ExecContext(ctx,
		`INSERT INTO events (name, camera, pending, created_at) VALUES (?, ?, ?, ?)`,
		ev.Name, ev.Camera, ev.Pending, ev.CreatedAt,
	); err != nil {
		return fmt.Errorf("inserting event %s: %w", ev.Name, err)
	}
	if err := putFields(ctx, tx, ev.Name, ev.Fields); err != nil {
		return err
	}
	return tx.Commit()
}

func (s *SQLiteStore) EventGet(ctx context.Context, name string) (*Event, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	ev := Event{Name: name, Fields: map[string]string{}}
	err := s.db.QueryRowContext(ctx,
		`SELECT camera, pending, created_at FROM events WHERE name = ?`, name,
	).Scan(&ev.Camera, &ev.Pending, &ev.CreatedAt)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("reading event %s: %w", name, err)
	}

	rows, err := s.db.QueryContext(ctx,
		`SELECT key, value FROM event_fields WHERE event = ?`, name)
	if err != nil {
		return nil, fmt.Errorf("reading event fields: %w", err)
	}
	defer rows.Close()
	for rows.Next() {
		var k, v string
		if err := rows.Scan(&k, &v); err != nil {
			return nil, err
		}
		ev.Fields[k] = v
	}
	return &ev, rows.Err()
}

func (s *SQLiteStore) EventModify(ctx context.Context, name string, fields map[string]string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("beginning transaction: %w", err)
	}
	defer tx.Rollback()

	var exists int
	err = tx.QueryRowContext(ctx, `SELECT 1 FROM events WHERE name = ?`, name).Scan(&exists)
	if errors.Is(err, sql.ErrNoRows) {
		return fmt.Errorf("event %s: %w", name, ErrNotFound)
	}
	if err != nil {
		return fmt.Errorf("reading event %s: %w", name, err)
	}
	if err := putFields(ctx, tx, name, fields); err != nil {
		return err
	}
	return tx.Commit()
}

func putFields(ctx context.Context, tx *sql.Tx, event string, fields map[string]string) error {
	for k, v := range fields {
		if _, err := tx.ExecContext(ctx,
			`INSERT INTO event_fields (event, key, value) VALUES (?, ?, ?)
			 ON CONFLICT (event, key) DO UPDATE SET value = excluded.value`,
			event, k, v,
		); err != nil {
			return fmt.Errorf("writing field %s of %s: %w", k, event, err)
		}
	}
	return nil
}

func (s *SQLiteStore) EventList(ctx context.Context) ([]string, error) {
	return s.names(ctx, `SELECT name FROM events ORDER BY name`)
}

func (s *SQLiteStore) EventPending(ctx context.Context) ([]string, error) {
	return s.names(ctx, `SELECT name FROM events WHERE pending = 1 ORDER BY name`)
}

func (s *SQLiteStore) names(ctx context.Context, query string) ([]string, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	rows, err := s.db.QueryContext(ctx, query)
	if err != nil {
		return nil, fmt.Errorf("listing events: %w", err)
	}
	defer rows.Close()

	names := []string{}
	for rows.Next() {
		var n string
		if err := rows.Scan(&n); err != nil {
			return nil, err
		}
		names = append(names, n)
	}
	return names, rows.Err()
}

func (s *SQLiteStore) EventMarkUploaded(ctx context.Context, name string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	res, err := s.db.ExecContext(ctx, `UPDATE events SET pending = 0 WHERE name = ?`, name)
	if err != nil {
		return fmt.Errorf("marking %s uploaded: %w", name, err)
	}
	if n, _ := res.RowsAffected(); n == 0 {
		return fmt.Errorf("event %s: %w", name, ErrNotFound)
	}
	return nil
}

// --- Bookmarks ---

func (s *SQLiteStore) BookmarkAdd(ctx context.Context, b Bookmark) (int64, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if b.CreatedAt.IsZero() {
		b.CreatedAt = time.Now().UTC()
	}
	res, err := s.db.ExecContext(ctx,
		`INSERT INTO bookmarks (camera, event, created_at) VALUES (?, ?, ?)`,
		b.Camera, b.Event, b.CreatedAt,
	)
	if err != nil {
		return 0, fmt.Errorf("inserting bookmark: %w", err)
	}
	return res.LastInsertId()
}

// BookmarkList returns the bookmarks of camera, oldest first. A negative
// camera lists every camera.
func (s *SQLiteStore) BookmarkList(ctx context.Context, camera int) ([]Bookmark, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	query := `SELECT id, camera, event, created_at FROM bookmarks`
	var args []any
	if camera >= 0 {
		query += ` WHERE camera = ?`
		args = append(args, camera)
	}
	query += ` ORDER BY id`

	rows, err := s.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("listing bookmarks: %w", err)
	}
	defer rows.Close()

	var out []Bookmark
	for rows.Next() {
		var b Bookmark
		if err := rows.Scan(&b.ID, &b.Camera, &b.Event, &b.CreatedAt); err != nil {
			return nil, err
		}
		out = append(out, b)
	}
	return out, rows.Err()
}

// --- Settings ---

func (s *SQLiteStore) SettingSet(ctx context.Context, namespace, key, value string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	_, err := s.db.ExecContext(ctx,
		`INSERT INTO settings (namespace, key, value) VALUES (?, ?, ?)
		 ON CONFLICT (namespace, key) DO UPDATE SET value = excluded.value`,
		namespace, key, value,
	)
	if err != nil {
		return fmt.Errorf("writing setting %s/%s: %w", namespace, key, err)
	}
	return nil
}

func (s *SQLiteStore) SettingGet(ctx context.Context, namespace, key string) (string, bool, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	var v string
	err := s.db.QueryRowContext(ctx,
		`SELECT value FROM settings WHERE namespace = ? AND key = ?`, namespace, key,
	).Scan(&v)
	if errors.Is(err, sql.ErrNoRows) {
		return "", false, nil
	}
	if err != nil {
		return "", false, fmt.Errorf("reading setting %s/%s: %w", namespace, key, err)
	}
	return v, true, nil
}

func (s *SQLiteStore) SettingList(ctx context.Context, namespace string) (map[string]string, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	rows, err := s.db.QueryContext(ctx,
		`SELECT key, value FROM settings WHERE namespace = ?`, namespace)
	if err != nil {
		return nil, fmt.Errorf("listing settings %s: %w", namespace, err)
	}
	defer rows.Close()

	out := map[string]string{}
	for rows.Next() {
		var k, v string
		if err := rows.Scan(&k, &v); err != nil {
			return nil, err
		}
		out[k] = v
	}
	return out, rows.Err()
}

func (s *SQLiteStore) Close() error {
	return s.db.Close()
}
