package memsync

import (
	"context"
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"time"

	"github.com/leapstack-labs/gz/internal/memory"
)

// Shared directory file names.
const (
	sharedSnapshotName = "shared_memory.json"
	sharedLockName     = "shared_memory.lock"
)

// DirRemote keeps the shared snapshot as a JSON file in a directory that
// every instance can reach, such as a network mount.
type DirRemote struct {
	dir  string
	lock *memory.FileLock
}

// NewDirRemote returns a remote in dir. lockTimeout bounds lock acquisition.
func NewDirRemote(dir string, lockTimeout time.Duration) *DirRemote {
	return &DirRemote{
		dir:  dir,
		lock: memory.NewFileLock(filepath.Join(dir, sharedLockName), lockTimeout),
	}
}

// Path returns the shared snapshot path.
func (r *DirRemote) Path() string {
	return filepath.Join(r.dir, sharedSnapshotName)
}

// Lock takes the shared directory lock.
func (r *DirRemote) Lock(ctx context.Context) (memory.UnlockFunc, error) {
	if err := os.MkdirAll(r.dir, 0o755); err != nil {
		return nil, fmt.Errorf("failed to create %s: %w", r.dir, err)
	}
	return r.lock.Lock(ctx)
}

func (r *DirRemote) Pull(_ context.Context) ([]byte, error) {
	data, err := os.ReadFile(r.Path())
	if errors.Is(err, fs.ErrNotExist) {
		return nil, nil
	}
	return data, err
}

func (r *DirRemote) Push(_ context.Context, data []byte) error {
	return memory.WriteFileAtomic(r.Path(), data)
}
