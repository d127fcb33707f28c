package clients

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"sync"
)

const defaultFileMode os.FileMode = 0600

// FileBackend stores records in a human-editable flat file. Writers are
// serialized by a process mutex plus an advisory lock on a sibling .lock
// file, and the data file is replaced atomically by rename.
type FileBackend struct {
	path string
	mu   sync.Mutex
}

// NewFileBackend returns a backend for the file at path. The file is created
// on the first write if it does not exist.
func NewFileBackend(path string) *FileBackend {
	return &FileBackend{path: path}
}

func (b *FileBackend) Update(ctx context.Context, fn func(*Set) error) error {
	b.mu.Lock()
	defer b.mu.Unlock()

	if err := ctx.Err(); err != nil {
		return err
	}

	if err := os.MkdirAll(filepath.Dir(b.path), 0755); err != nil {
		return storeError("create clients directory", err)
	}
	unlock, err := lockFile(b.path + ".lock")
	if err != nil {
		return storeError("lock clients file", err)
	}
	defer unlock()

	mode := defaultFileMode
	data, err := os.ReadFile(b.path)
	switch {
	case os.IsNotExist(err):
		data = nil
	case err != nil:
		return storeError("read clients file", err)
	default:
		if info, statErr := os.Stat(b.path); statErr == nil {
			mode = info.Mode().Perm()
		}
	}

	set, err := ParseSet(data)
	if err != nil {
		return storeError("parse clients file", err)
	}
	warnMalformed(ctx, set)
	if err := fn(set); err != nil {
		return err
	}
	if !set.Dirty() {
		return nil
	}

	if err := writeAtomic(b.path, set.Render(), mode); err != nil {
		return storeError("write clients file", err)
	}
	return nil
}

// writeAtomic writes data to a temp file in the same directory and renames it over path
func writeAtomic(path string, data []byte, mode os.FileMode) error {
	dir := filepath.Dir(path)
	if err := os.MkdirAll(dir, 0755); err != nil {
		return fmt.Errorf("create directory: %w", err)
	}

	tmp, err := os.CreateTemp(dir, "."+filepath.Base(path)+".*.tmp")
	if err != nil {
		return fmt.Errorf("create temp file: %w", err)
	}
	tmpName := tmp.Name()
	defer os.Remove(tmpName) // no-op after a successful rename

	if _, err := tmp.Write(data); err != nil {
		tmp.Close()
		return fmt.Errorf("write temp file: %w", err)
	}
	if err := tmp.Sync(); err != nil {
		tmp.Close()
		return fmt.Errorf("sync temp file: %w", err)
	}
	if err := tmp.Close(); err != nil {
		return fmt.Errorf("close temp file: %w", err)
	}
	if err := os.Chmod(tmpName, mode); err != nil {
		return fmt.Errorf("chmod temp file: %w", err)
	}
	if err := os.Rename(tmpName, path); err != nil {
		return fmt.Errorf("rename temp file: %w", err)
	}
	return nil
}

func storeError(op string, err error) error {
	return fmt.Errorf("%w: %s: %w", ErrStore, op, err)
}
