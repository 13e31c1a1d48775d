package memory

import (
	"context"
	"database/sql"
	"embed"
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strconv"
	"time"

	"github.com/pressly/goose/v3"
	_ "modernc.org/sqlite" // SQLite driver (pure Go)
)

//go:embed migrations/*.sql
var migrations embed.FS

// SQLiteBackend stores the snapshot in a SQLite database: one row per
// record, one row per log entry and a key/value meta table for counters.
type SQLiteBackend struct {
	path string
	db   *sql.DB
}

// NewSQLiteBackend returns a SQLite backend at path. The database is opened
// and migrated on first use.
func NewSQLiteBackend(path string) *SQLiteBackend {
	return &SQLiteBackend{path: path}
}

func (b *SQLiteBackend) Name() string { return BackendSQLite }
func (b *SQLiteBackend) Path() string { return b.path }

// Close closes the database connection.
func (b *SQLiteBackend) Close() error {
	if b.db == nil {
		return nil
	}
	err := b.db.Close()
	b.db = nil
	return err
}

func (b *SQLiteBackend) open(ctx context.Context) error {
	if b.db != nil {
		return nil
	}
	if err := os.MkdirAll(filepath.Dir(b.path), 0o755); err != nil {
		return fmt.Errorf("failed to create %s: %w", filepath.Dir(b.path), err)
	}

	db, err := sql.Open("sqlite", b.path)
	if err != nil {
		return fmt.Errorf("failed to open sqlite database: %w", err)
	}
	if _, err := db.ExecContext(ctx, "PRAGMA busy_timeout = 5000"); err != nil {
		_ = db.Close()
		return fmt.Errorf("failed to configure sqlite database: %w", err)
	}
	if err := migrate(db); err != nil {
		_ = db.Close()
		return err
	}
	b.db = db
	return nil
}

// migrate runs all pending schema migrations.
func migrate(db *sql.DB) error {
	goose.SetBaseFS(migrations)
	goose.SetLogger(goose.NopLogger())

	if err := goose.SetDialect("sqlite"); err != nil {
		return fmt.Errorf("failed to set dialect: %w", err)
	}
	if err := goose.Up(db, "migrations"); err != nil {
		return fmt.Errorf("failed to run migrations: %w", err)
	}
	return nil
}

// Load reads the snapshot. A database that cannot be opened, migrated or
// decoded is reported as corrupt.
func (b *SQLiteBackend) Load(ctx context.Context) (*Snapshot, error) {
	if _, err := os.Stat(b.path); os.IsNotExist(err) {
		return nil, nil
	}
	if err := b.open(ctx); err != nil {
		return nil, &CorruptionError{Path: b.path, Err: err}
	}

	s, err := b.load(ctx)
	if err != nil {
		var corrupt *CorruptionError
		if errors.As(err, &corrupt) {
			return nil, err
		}
		return nil, fmt.Errorf("failed to load %s: %w", b.path, err)
	}
	return s, nil
}

func (b *SQLiteBackend) load(ctx context.Context) (*Snapshot, error) {
	meta, err := b.loadMeta(ctx)
	if err != nil {
		return nil, err
	}
	if len(meta) == 0 {
		return nil, nil
	}

	s := &Snapshot{InstanceID: meta["instance_id"]}
	if err := parseMeta(meta, s); err != nil {
		return nil, &CorruptionError{Path: b.path, Err: err}
	}

	rows, err := b.db.QueryContext(ctx, "SELECT body FROM records ORDER BY seq")
	if err != nil {
		return nil, err
	}
	defer func() { _ = rows.Close() }()
	for rows.Next() {
		var body string
		if err := rows.Scan(&body); err != nil {
			return nil, err
		}
		var r Record
		if err := json.Unmarshal([]byte(body), &r); err != nil {
			return nil, &CorruptionError{Path: b.path, Err: fmt.Errorf("record: %w", err)}
		}
		s.Records = append(s.Records, r)
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}

	logRows, err := b.db.QueryContext(ctx, "SELECT timestamp, kind, payload FROM learning_log ORDER BY id")
	if err != nil {
		return nil, err
	}
	defer func() { _ = logRows.Close() }()
	for logRows.Next() {
		var ts, kind, payload string
		if err := logRows.Scan(&ts, &kind, &payload); err != nil {
			return nil, err
		}
		e := LogEntry{Kind: LogKind(kind)}
		if e.Timestamp, err = time.Parse(time.RFC3339Nano, ts); err != nil {
			return nil, &CorruptionError{Path: b.path, Err: fmt.Errorf("log timestamp: %w", err)}
		}
		if err := json.Unmarshal([]byte(payload), &e.Payload); err != nil {
			return nil, &CorruptionError{Path: b.path, Err: fmt.Errorf("log payload: %w", err)}
		}
		s.Log = append(s.Log, e)
	}
	if err := logRows.Err(); err != nil {
		return nil, err
	}

	if err := s.validate(); err != nil {
		return nil, &CorruptionError{Path: b.path, Err: err}
	}
	return s, nil
}

func (b *SQLiteBackend) loadMeta(ctx context.Context) (map[string]string, error) {
	rows, err := b.db.QueryContext(ctx, "SELECT key, value FROM meta")
	if err != nil {
		return nil, err
	}
	defer func() { _ = rows.Close() }()

	meta := make(map[string]string)
	for rows.Next() {
		var k, v string
		if err := rows.Scan(&k, &v); err != nil {
			return nil, err
		}
		meta[k] = v
	}
	return meta, rows.Err()
}

func parseMeta(meta map[string]string, s *Snapshot) error {
	ints := []struct {
		key string
		dst *int64
	}{
		{"total_learnings", &s.TotalLearnings},
		{"updates_pushed", &s.UpdatesPushed},
		{"dirty", &s.Dirty},
	}
	for _, f := range ints {
		n, err := strconv.ParseInt(meta[f.key], 10, 64)
		if err != nil {
			return fmt.Errorf("meta %s: %w", f.key, err)
		}
		*f.dst = n
	}
	version, err := strconv.Atoi(meta["version"])
	if err != nil {
		return fmt.Errorf("meta version: %w", err)
	}
	s.Version = version
	if v := meta["saved_at"]; v != "" {
		if s.SavedAt, err = time.Parse(time.RFC3339Nano, v); err != nil {
			return fmt.Errorf("meta saved_at: %w", err)
		}
	}
	return nil
}

// Save replaces the stored snapshot in a single transaction.
func (b *SQLiteBackend) Save(ctx context.Context, s *Snapshot) error {
	if err := b.open(ctx); err != nil {
		return err
	}

	tx, err := b.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer func() { _ = tx.Rollback() }()

	for _, table := range []string{"meta", "records", "learning_log"} {
		if _, err := tx.ExecContext(ctx, "DELETE FROM "+table); err != nil {
			return fmt.Errorf("failed to clear %s: %w", table, err)
		}
	}

	meta := map[string]string{
		"version":         strconv.Itoa(s.Version),
		"instance_id":     s.InstanceID,
		"total_learnings": strconv.FormatInt(s.TotalLearnings, 10),
		"updates_pushed":  strconv.FormatInt(s.UpdatesPushed, 10),
		"dirty":           strconv.FormatInt(s.Dirty, 10),
		"saved_at":        s.SavedAt.UTC().Format(time.RFC3339Nano),
	}
	for k, v := range meta {
		if _, err := tx.ExecContext(ctx, "INSERT INTO meta (key, value) VALUES (?, ?)", k, v); err != nil {
			return fmt.Errorf("failed to write meta %s: %w", k, err)
		}
	}

	for i := range s.Records {
		r := &s.Records[i]
		body, err := json.Marshal(r)
		if err != nil {
			return fmt.Errorf("failed to encode record: %w", err)
		}
		_, err = tx.ExecContext(ctx, `
			INSERT INTO records (signature, kind, seq, frequency, confidence, updated_at, body)
			VALUES (?, ?, ?, ?, ?, ?, ?)`,
			string(r.Signature()), string(r.Kind), r.Seq, r.Frequency, r.Confidence,
			r.UpdatedAt.UTC().Format(time.RFC3339Nano), string(body))
		if err != nil {
			return fmt.Errorf("failed to write record %s: %w", r.Label(), err)
		}
	}

	for _, e := range s.Log {
		payload, err := json.Marshal(e.Payload)
		if err != nil {
			return fmt.Errorf("failed to encode log payload: %w", err)
		}
		_, err = tx.ExecContext(ctx,
			"INSERT INTO learning_log (timestamp, kind, payload) VALUES (?, ?, ?)",
			e.Timestamp.UTC().Format(time.RFC3339Nano), string(e.Kind), string(payload))
		if err != nil {
			return fmt.Errorf("failed to write log entry: %w", err)
		}
	}

	if err := tx.Commit(); err != nil {
		return fmt.Errorf("failed to commit snapshot: %w", err)
	}
	return nil
}

// Quarantine closes the database and renames it, with its journal files,
// out of the way.
func (b *SQLiteBackend) Quarantine() (string, error) {
	_ = b.Close()
	dst := quarantineName(b.path, time.Now())
	if err := os.Rename(b.path, dst); err != nil {
		return "", fmt.Errorf("failed to quarantine %s: %w", b.path, err)
	}
	for _, suffix := range []string{"-wal", "-shm", "-journal"} {
		_ = os.Rename(b.path+suffix, dst+suffix)
	}
	return dst, nil
}
