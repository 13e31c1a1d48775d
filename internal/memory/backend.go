package memory

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"time"
)

// Backend persists snapshots. Load returns (nil, nil) when nothing has been
// saved yet and a *CorruptionError when the stored data cannot be decoded.
type Backend interface {
	Name() string
	Path() string
	Load(ctx context.Context) (*Snapshot, error)
	Save(ctx context.Context, s *Snapshot) error
	// Quarantine moves the stored data aside and returns its new location.
	Quarantine() (string, error)
	Close() error
}

// Backend names.
const (
	BackendJSON   = "json"
	BackendSQLite = "sqlite"
)

// Snapshot file names inside the memory directory.
const (
	JSONFileName    = "collective_memory.json"
	SQLiteFileName  = "collective_memory.db"
	LockFileName    = "collective_memory.lock"
	SummaryFileName = "memory_summary.md"
)

// NewBackend returns the named backend rooted in dir.
func NewBackend(name, dir string) (Backend, error) {
	switch name {
	case "", BackendJSON:
		return NewFileBackend(filepath.Join(dir, JSONFileName)), nil
	case BackendSQLite:
		return NewSQLiteBackend(filepath.Join(dir, SQLiteFileName)), nil
	default:
		return nil, fmt.Errorf("unknown memory backend %q (want %s or %s)", name, BackendJSON, BackendSQLite)
	}
}

// FileBackend stores the snapshot as one JSON document.
type FileBackend struct {
	path string
}

// NewFileBackend returns a JSON document backend at path.
func NewFileBackend(path string) *FileBackend {
	return &FileBackend{path: path}
}

func (b *FileBackend) Name() string { return BackendJSON }
func (b *FileBackend) Path() string { return b.path }
func (b *FileBackend) Close() error { return nil }

// Load reads and decodes the snapshot file.
func (b *FileBackend) Load(_ context.Context) (*Snapshot, error) {
	data, err := os.ReadFile(b.path)
	if os.IsNotExist(err) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("failed to read %s: %w", b.path, err)
	}
	s, err := Deserialize(data)
	if err != nil {
		return nil, &CorruptionError{Path: b.path, Err: err}
	}
	return s, nil
}

// Save writes the snapshot to a temporary file and renames it into place,
// so readers never observe a partial document.
func (b *FileBackend) Save(_ context.Context, s *Snapshot) error {
	data, err := Serialize(s)
	if err != nil {
		return err
	}
	return WriteFileAtomic(b.path, data)
}

// Quarantine renames the snapshot file out of the way.
func (b *FileBackend) Quarantine() (string, error) {
	dst := quarantineName(b.path, time.Now())
	if err := os.Rename(b.path, dst); err != nil {
		return "", fmt.Errorf("failed to quarantine %s: %w", b.path, err)
	}
	return dst, nil
}

// WriteFileAtomic replaces path with data through a synced temp file and a
// rename, so readers never see a partial file.
func WriteFileAtomic(path string, data []byte) error {
	dir := filepath.Dir(path)
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return fmt.Errorf("failed to create %s: %w", dir, err)
	}
	tmp, err := os.CreateTemp(dir, "."+filepath.Base(path)+".tmp-*")
	if err != nil {
		return fmt.Errorf("failed to create temp file: %w", err)
	}
	tmpName := tmp.Name()
	defer func() { _ = os.Remove(tmpName) }()

	if _, err := tmp.Write(data); err != nil {
		_ = tmp.Close()
		return fmt.Errorf("failed to write %s: %w", tmpName, err)
	}
	if err := tmp.Sync(); err != nil {
		_ = tmp.Close()
		return fmt.Errorf("failed to sync %s: %w", tmpName, err)
	}
	if err := tmp.Close(); err != nil {
		return fmt.Errorf("failed to close %s: %w", tmpName, err)
	}
	if err := os.Rename(tmpName, path); err != nil {
		return fmt.Errorf("failed to replace %s: %w", path, err)
	}
	return nil
}
