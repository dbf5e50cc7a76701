/* Copyright © 2025-2026 Mike Brown. All Rights Reserved.
 *
 * See LICENSE file at the root of this repository for license terms
 */
package artifact

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
)

// LocalStore writes artifacts into a directory, typically one served by a
// web server or synced elsewhere.
type LocalStore struct {
	dir        string
	publicBase string
}

func NewLocalStore(dir, publicBase string) *LocalStore {
	return &LocalStore{dir: dir, publicBase: publicBase}
}

func (s *LocalStore) Check(ctx context.Context) error {
	if err := os.MkdirAll(s.dir, 0o755); err != nil {
		return fmt.Errorf("artifact.local: creating %v: %w", s.dir, err)
	}
	f, err := os.CreateTemp(s.dir, ".check-*")
	if err != nil {
		return fmt.Errorf("artifact.local: %v is not writable: %w", s.dir, err)
	}
	f.Close()
	return os.Remove(f.Name())
}

// Publish replaces the file atomically so readers never see a partial
// image. isNew makes no difference locally.
func (s *LocalStore) Publish(ctx context.Context, key string, data []byte,
	isNew bool) error {

	if err := os.MkdirAll(s.dir, 0o755); err != nil {
		return fmt.Errorf("artifact.local: creating %v: %w", s.dir, err)
	}
	tmp, err := os.CreateTemp(s.dir, "."+key+"-*")
	if err != nil {
		return fmt.Errorf("artifact.local: creating temp file: %w", err)
	}
	defer os.Remove(tmp.Name())

	if _, err := tmp.Write(data); err != nil {
		tmp.Close()
		return fmt.Errorf("artifact.local: writing %v: %w", key, err)
	}
	if err := tmp.Close(); err != nil {
		return fmt.Errorf("artifact.local: closing %v: %w", key, err)
	}
	if err := os.Chmod(tmp.Name(), 0o644); err != nil {
		return fmt.Errorf("artifact.local: chmod %v: %w", key, err)
	}
	if err := os.Rename(tmp.Name(), filepath.Join(s.dir, key)); err != nil {
		return fmt.Errorf("artifact.local: renaming %v: %w", key, err)
	}

	return nil
}

func (s *LocalStore) PublicURL(key string) string {
	if s.publicBase != "" {
		return publicURL(s.publicBase, key)
	}
	abs, err := filepath.Abs(filepath.Join(s.dir, key))
	if err != nil {
		abs = filepath.Join(s.dir, key)
	}
	return "file://" + filepath.ToSlash(abs)
}
