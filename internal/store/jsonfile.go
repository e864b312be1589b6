// Package store provides durable snapshot persistence for registries.
package store

import (
	"context"
	"errors"
	"fmt"
	"io/fs"
	"log/slog"
	"os"
	"path/filepath"

	"guildkeep/pkg/guildkeep"
)

// Option mutates JSON file store configuration.
type Option func(*JSONFile)

// WithLogger injects a logger for save diagnostics.
func WithLogger(logger *slog.Logger) Option {
	return func(s *JSONFile) {
		if logger != nil {
			s.logger = logger
		}
	}
}

// JSONFile persists one registry snapshot as a single JSON document on disk.
//
// Save writes a temporary file in the target directory and renames it over
// the destination, so a failed save never truncates the prior snapshot.
// Absence of the file is equivalent to an empty registry.
type JSONFile struct {
	path   string
	logger *slog.Logger
}

// NewJSONFile creates a file-backed snapshot store.
func NewJSONFile(path string, options ...Option) (*JSONFile, error) {
	if path == "" {
		return nil, fmt.Errorf("new json file store: empty path")
	}

	s := &JSONFile{
		path:   path,
		logger: slog.Default(),
	}
	for _, option := range options {
		option(s)
	}

	return s, nil
}

// Path returns the backing file location.
func (s *JSONFile) Path() string {
	return s.path
}

// Load returns the last persisted snapshot.
//
// A missing file reports found=false with a nil error.
func (s *JSONFile) Load(ctx context.Context) (guildkeep.Snapshot, bool, error) {
	if err := ctx.Err(); err != nil {
		return nil, false, fmt.Errorf("load snapshot: %w", err)
	}

	data, err := os.ReadFile(s.path)
	if err != nil {
		if errors.Is(err, fs.ErrNotExist) {
			return nil, false, nil
		}

		return nil, false, &guildkeep.StoreError{Op: "load", Path: s.path, Cause: err}
	}

	return guildkeep.Snapshot(data), true, nil
}

// Save atomically replaces the persisted snapshot.
func (s *JSONFile) Save(ctx context.Context, snapshot guildkeep.Snapshot) error {
	if err := ctx.Err(); err != nil {
		return fmt.Errorf("save snapshot: %w", err)
	}

	dir := filepath.Dir(s.path)
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return &guildkeep.StoreError{Op: "save", Path: s.path, Cause: err}
	}

	tmp, err := os.CreateTemp(dir, filepath.Base(s.path)+".tmp-*")
	if err != nil {
		return &guildkeep.StoreError{Op: "save", Path: s.path, Cause: err}
	}
	tmpPath := tmp.Name()

	if err := writeAndClose(tmp, snapshot); err != nil {
		removeErr := os.Remove(tmpPath)
		if removeErr != nil {
			s.logger.Warn("remove temp snapshot failed", "path", tmpPath, "error", removeErr)
		}

		return &guildkeep.StoreError{Op: "save", Path: s.path, Cause: err}
	}

	if err := os.Rename(tmpPath, s.path); err != nil {
		removeErr := os.Remove(tmpPath)
		if removeErr != nil {
			s.logger.Warn("remove temp snapshot failed", "path", tmpPath, "error", removeErr)
		}

		return &guildkeep.StoreError{Op: "save", Path: s.path, Cause: err}
	}

	return nil
}

func writeAndClose(file *os.File, snapshot guildkeep.Snapshot) error {
	if _, err := file.Write(snapshot); err != nil {
		closeErr := file.Close()
		if closeErr != nil {
			return errors.Join(err, closeErr)
		}

		return err
	}
	if err := file.Sync(); err != nil {
		closeErr := file.Close()
		if closeErr != nil {
			return errors.Join(err, closeErr)
		}

		return err
	}

	return file.Close()
}

var _ guildkeep.SnapshotStore = (*JSONFile)(nil)
