package storage

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"sync"

	logx "ytnotify/pkg/logx"
)

// fileStore keeps the state as one JSON document.
//
// Save writes a temp file in the same directory, fsyncs it, renames it over
// the target and fsyncs the directory, so a crash leaves either the old or
// the new record on disk, never a torn one.
type fileStore struct {
	log  logx.Logger
	path string

	mu     sync.Mutex
	closed bool
}

func openFile(cfg Config, log logx.Logger) (Store, error) {
	dir := filepath.Dir(cfg.Path)
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return nil, fmt.Errorf("storage dir: %w", err)
	}
	return &fileStore{log: log, path: cfg.Path}, nil
}

func (s *fileStore) Load(ctx context.Context) (State, error) {
	_ = ctx
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.closed {
		return State{}, ErrClosed
	}

	b, err := os.ReadFile(s.path)
	if errors.Is(err, fs.ErrNotExist) {
		s.log.Info("no state file; starting cold", logx.String("path", s.path))
		return State{}, nil
	}
	if err != nil {
		return State{}, fmt.Errorf("read state %s: %w", s.path, err)
	}
	var r record
	if err := json.Unmarshal(b, &r); err != nil {
		return State{}, fmt.Errorf("decode state %s: %w", s.path, err)
	}
	return fromRecord(r), nil
}

func (s *fileStore) Save(ctx context.Context, st State) error {
	_ = ctx
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.closed {
		return ErrClosed
	}

	b, err := MarshalState(st)
	if err != nil {
		return err
	}
	b = append(b, '\n')

	dir := filepath.Dir(s.path)
	tmp, err := os.CreateTemp(dir, "."+filepath.Base(s.path)+".*.tmp")
	if err != nil {
		return fmt.Errorf("create temp: %w", err)
	}
	tmpName := tmp.Name()
	committed := false
	defer func() {
		if !committed {
			_ = os.Remove(tmpName)
		}
	}()

	if _, err := tmp.Write(b); err != nil {
		_ = tmp.Close()
		return fmt.Errorf("write state: %w", err)
	}
	if err := tmp.Sync(); err != nil {
		_ = tmp.Close()
		return fmt.Errorf("sync state: %w", err)
	}
	if err := tmp.Close(); err != nil {
		return fmt.Errorf("close state: %w", err)
	}
	if err := os.Rename(tmpName, s.path); err != nil {
		return fmt.Errorf("replace state: %w", err)
	}
	committed = true

	if err := syncDir(dir); err != nil {
		// The rename already happened; only durability of the directory entry is in doubt.
		s.log.Warn("state dir sync failed", logx.String("dir", dir), logx.Err(err))
	}
	return nil
}

func (s *fileStore) Close() error {
	s.mu.Lock()
	s.closed = true
	s.mu.Unlock()
	return nil
}

func syncDir(dir string) error {
	d, err := os.Open(dir)
	if err != nil {
		return err
	}
	defer d.Close()
	return d.Sync()
}
