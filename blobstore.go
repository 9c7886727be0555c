package main

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
)

// BlobStore is content-keyed, write-once persistence for one namespace.
// Put never overwrites: re-ingestion of a known key is a no-op that returns
// the existing canonical path (the content is trusted to be identical).
type BlobStore interface {
	Put(ctx context.Context, name string, data []byte) (path string, created bool, err error)
	Exists(ctx context.Context, name string) (bool, error)
}

// diskBlobStore stores blobs as plain files under a single directory.
type diskBlobStore struct {
	dir string
}

// newDiskBlobStore creates the namespace directory if needed.
func newDiskBlobStore(dir string) (*diskBlobStore, error) {
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return nil, fmt.Errorf("create blob dir %s: %w", dir, err)
	}
	return &diskBlobStore{dir: dir}, nil
}

func (s *diskBlobStore) path(name string) (string, error) {
	abs, err := filepath.Abs(filepath.Join(s.dir, name))
	if err != nil {
		return "", fmt.Errorf("resolve blob path for %s: %w", name, err)
	}
	return abs, nil
}

func (s *diskBlobStore) Put(_ context.Context, name string, data []byte) (string, bool, error) {
	dest, err := s.path(name)
	if err != nil {
		return "", false, err
	}

	// O_EXCL gives the write-once guarantee even when two requests race on
	// the same key: the loser sees EEXIST and reuses the canonical path.
	f, err := os.OpenFile(dest, os.O_WRONLY|os.O_CREATE|os.O_EXCL, 0o644)
	if err != nil {
		if os.IsExist(err) {
			return dest, false, nil
		}
		return "", false, fmt.Errorf("create blob %s: %w", dest, err)
	}

	// Never leave a truncated blob claiming the key.
	discard := func(stage string, err error) (string, bool, error) {
		_ = f.Close()
		_ = os.Remove(dest)
		return "", false, fmt.Errorf("%s blob %s: %w", stage, dest, err)
	}

	if _, err := f.Write(data); err != nil {
		return discard("write", err)
	}
	if err := f.Sync(); err != nil {
		return discard("sync", err)
	}
	if err := f.Close(); err != nil {
		_ = os.Remove(dest)
		return "", false, fmt.Errorf("close blob %s: %w", dest, err)
	}

	return dest, true, nil
}

func (s *diskBlobStore) Exists(_ context.Context, name string) (bool, error) {
	dest, err := s.path(name)
	if err != nil {
		return false, err
	}
	if _, err := os.Stat(dest); err != nil {
		if os.IsNotExist(err) {
			return false, nil
		}
		return false, fmt.Errorf("stat blob %s: %w", dest, err)
	}
	return true, nil
}
