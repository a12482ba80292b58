package repository

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"strings"
	"sync"
	"time"

	msqlite "modernc.org/sqlite"
	sqlite3lib "modernc.org/sqlite/lib"

	"github.com/okian/openrpg/internal/adapters/repository/migrations"
	"github.com/okian/openrpg/pkg/logger"
	"github.com/okian/openrpg/pkg/metrics"
)

// ErrBusy is returned when SQLite stays locked past the busy timeout.
var ErrBusy = errors.New("database busy")

// SQLiteStore keeps sheet fields in a SQLite database, one row per
// (resource, field) holding the JSON-encoded value.
type SQLiteStore struct {
	db          *sql.DB
	logger      logger.Logger
	busyTimeout time.Duration
	now         func() time.Time

	closeOnce sync.Once
	closeErr  error
}

var _ Store = (*SQLiteStore)(nil)

// Open opens (creating if needed) the database at path and applies
// migrations. Use ":memory:" for a private in-memory database.
func Open(ctx context.Context, path string, opts ...Option) (*SQLiteStore, error) {
	path = strings.TrimSpace(path)
	if path == "" {
		return nil, errors.New("storage path is required")
	}

	s := &SQLiteStore{
		logger:      logger.Get().Named("repository"),
		busyTimeout: 5 * time.Second,
		now:         time.Now,
	}
	for _, opt := range opts {
		opt(s)
	}

	db, err := sql.Open("sqlite", dsn(path, s.busyTimeout))
	if err != nil {
		return nil, fmt.Errorf("open sqlite store: %w", err)
	}
	// SQLite serializes writers; a single connection also keeps an
	// in-memory database alive for the life of the store.
	db.SetMaxOpenConns(1)

	if err := db.PingContext(ctx); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("ping sqlite store: %w", err)
	}
	if err := applyMigrations(ctx, db, migrations.FS); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("migrate sqlite store: %w", err)
	}
	s.db = db

	s.logger.Info(ctx, "sqlite store opened", logger.String("path", path))
	return s, nil
}

func dsn(path string, busy time.Duration) string {
	pragmas := fmt.Sprintf("_pragma=busy_timeout(%d)&_pragma=foreign_keys(1)", busy.Milliseconds())
	if path == ":memory:" {
		return "file::memory:?" + pragmas
	}
	return "file:" + path + "?" + pragmas + "&_pragma=journal_mode(WAL)&_pragma=synchronous(NORMAL)"
}

// Write normalizes value for fieldKey and upserts it.
func (s *SQLiteStore) Write(ctx context.Context, resourceID, fieldKey string, value any) (any, error) {
	if err := s.ready(ctx); err != nil {
		return nil, err
	}
	if strings.TrimSpace(resourceID) == "" {
		return nil, errors.New("resource id is required")
	}
	stored, err := Normalize(fieldKey, value)
	if err != nil {
		return nil, err
	}
	raw, err := json.Marshal(stored)
	if err != nil {
		return nil, fmt.Errorf("encode %s: %w", fieldKey, err)
	}

	start := time.Now()
	_, err = s.db.ExecContext(ctx, `
INSERT INTO sheet_fields (resource_id, field_key, value, updated_at)
VALUES (?, ?, ?, ?)
ON CONFLICT (resource_id, field_key) DO UPDATE SET
    value = excluded.value,
    updated_at = excluded.updated_at`,
		resourceID, fieldKey, string(raw), s.now().UTC().UnixMilli(),
	)
	metrics.RecordRepositoryUpdateLatency(float64(time.Since(start).Milliseconds()))
	if err != nil {
		metrics.RecordErrorByComponent("repository", "write")
		return nil, fmt.Errorf("write %s/%s: %w", resourceID, fieldKey, classify(err))
	}

	s.logger.Debug(ctx, "field stored",
		logger.String("resource_id", resourceID),
		logger.String("field", fieldKey))
	return stored, nil
}

// Read returns the stored value for fieldKey or ErrNotFound.
func (s *SQLiteStore) Read(ctx context.Context, resourceID, fieldKey string) (any, error) {
	if err := s.ready(ctx); err != nil {
		return nil, err
	}

	start := time.Now()
	var raw string
	err := s.db.QueryRowContext(ctx,
		`SELECT value FROM sheet_fields WHERE resource_id = ? AND field_key = ?`,
		resourceID, fieldKey,
	).Scan(&raw)
	metrics.RecordRepositoryQueryLatency(float64(time.Since(start).Milliseconds()))
	if errors.Is(err, sql.ErrNoRows) {
		return nil, fmt.Errorf("%w: %s/%s", ErrNotFound, resourceID, fieldKey)
	}
	if err != nil {
		return nil, fmt.Errorf("read %s/%s: %w", resourceID, fieldKey, classify(err))
	}
	return decode(fieldKey, raw)
}

// Snapshot returns all stored fields of resourceID. An unknown resource
// yields an empty map.
func (s *SQLiteStore) Snapshot(ctx context.Context, resourceID string) (map[string]any, error) {
	if err := s.ready(ctx); err != nil {
		return nil, err
	}

	start := time.Now()
	rows, err := s.db.QueryContext(ctx,
		`SELECT field_key, value FROM sheet_fields WHERE resource_id = ? ORDER BY field_key`,
		resourceID,
	)
	if err != nil {
		return nil, fmt.Errorf("snapshot %s: %w", resourceID, classify(err))
	}
	defer rows.Close()

	out := make(map[string]any)
	for rows.Next() {
		var key, raw string
		if err := rows.Scan(&key, &raw); err != nil {
			return nil, fmt.Errorf("scan snapshot row: %w", err)
		}
		v, err := decode(key, raw)
		if err != nil {
			s.logger.Warn(ctx, "skipping undecodable field",
				logger.String("resource_id", resourceID),
				logger.String("field", key),
				logger.Error(err))
			continue
		}
		out[key] = v
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate snapshot: %w", err)
	}
	metrics.RecordRepositoryQueryLatency(float64(time.Since(start).Milliseconds()))
	return out, nil
}

// Count returns the number of stored field values.
func (s *SQLiteStore) Count(ctx context.Context) (int, error) {
	if err := s.ready(ctx); err != nil {
		return 0, err
	}
	var n int
	if err := s.db.QueryRowContext(ctx, `SELECT COUNT(*) FROM sheet_fields`).Scan(&n); err != nil {
		return 0, fmt.Errorf("count fields: %w", classify(err))
	}
	metrics.UpdateRepositoryRecordsTotal(n)
	return n, nil
}

// Close closes the underlying database. Later calls are no-ops.
func (s *SQLiteStore) Close() error {
	if s == nil || s.db == nil {
		return nil
	}
	s.closeOnce.Do(func() {
		s.closeErr = s.db.Close()
	})
	return s.closeErr
}

func (s *SQLiteStore) ready(ctx context.Context) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	if s == nil || s.db == nil {
		return ErrClosed
	}
	return nil
}

func decode(fieldKey, raw string) (any, error) {
	var v any
	if err := json.Unmarshal([]byte(raw), &v); err != nil {
		return nil, fmt.Errorf("decode %s: %w", fieldKey, err)
	}
	// JSON numbers come back as float64; restore the typed value.
	return Normalize(fieldKey, v)
}

func classify(err error) error {
	if errors.Is(err, sql.ErrConnDone) {
		return fmt.Errorf("%w: %w", ErrClosed, err)
	}
	if strings.Contains(err.Error(), "database is closed") {
		return fmt.Errorf("%w: %w", ErrClosed, err)
	}
	var sqliteErr *msqlite.Error
	if errors.As(err, &sqliteErr) {
		switch sqliteErr.Code() & 0xff {
		case sqlite3lib.SQLITE_BUSY, sqlite3lib.SQLITE_LOCKED:
			return fmt.Errorf("%w: %w", ErrBusy, err)
		}
	}
	return err
}
