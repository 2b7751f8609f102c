package session

import (
	"encoding/json"
	"errors"
	"log/slog"
	"os"
	"path/filepath"
	"sync/atomic"

	"github.com/fsnotify/fsnotify"
)

// Slot is the single shared persisted session record. Concurrent
// writers are not coordinated: last writer wins, and a reader that
// finds the slot changed under it treats that as an external event.
type Slot interface {
	Load() (*Record, error)
	Save(Record) error
	Clear() error

	// TakeDirty reports (and resets) whether the slot changed since the
	// last load, e.g. another process logged out.
	TakeDirty() bool
}

// FileSlot persists the session record as one JSON file, written via
// temp file + rename so a crash never leaves a torn record behind.
type FileSlot struct {
	path    string
	log     *slog.Logger
	watcher *fsnotify.Watcher
	dirty   atomic.Bool
}

func NewFileSlot(path string, log *slog.Logger) *FileSlot {
	if log == nil {
		log = slog.Default()
	}
	return &FileSlot{path: path, log: log}
}

// Path returns the slot's backing file path.
func (s *FileSlot) Path() string { return s.path }

func (s *FileSlot) Load() (*Record, error) {
	data, err := os.ReadFile(s.path)

	if err != nil {
		if errors.Is(err, os.ErrNotExist) {
			return nil, nil
		}
		return nil, err
	}

	var rec Record

	if err := json.Unmarshal(data, &rec); err != nil {
		// a corrupt slot is indistinguishable from an external logout;
		// fail safe and treat it as absent
		s.log.Warn("session slot is corrupt, treating as absent", "path", s.path, "err", err)
		return nil, nil
	}

	if rec.AccessToken == "" || rec.User.Role == "" {
		return nil, nil
	}

	return &rec, nil
}

func (s *FileSlot) Save(rec Record) error {
	dir := filepath.Dir(s.path)

	if err := os.MkdirAll(dir, 0o700); err != nil {
		return err
	}

	data, err := json.Marshal(rec)
	if err != nil {
		return err
	}

	tmp, err := os.CreateTemp(dir, ".session-*")
	if err != nil {
		return err
	}

	tmpName := tmp.Name()

	if _, err := tmp.Write(data); err != nil {
		tmp.Close()
		os.Remove(tmpName)
		return err
	}

	if err := tmp.Close(); err != nil {
		os.Remove(tmpName)
		return err
	}

	if err := os.Chmod(tmpName, 0o600); err != nil {
		os.Remove(tmpName)
		return err
	}

	return os.Rename(tmpName, s.path)
}

func (s *FileSlot) Clear() error {
	err := os.Remove(s.path)

	if err != nil && !errors.Is(err, os.ErrNotExist) {
		return err
	}

	return nil
}

func (s *FileSlot) TakeDirty() bool {
	return s.dirty.CompareAndSwap(true, false)
}

// Watch marks the slot dirty whenever the file changes on disk, so the
// store notices a logout performed by another process. Watching the
// directory (not the file) survives the remove/rename cycle.
func (s *FileSlot) Watch() error {
	dir := filepath.Dir(s.path)

	if err := os.MkdirAll(dir, 0o700); err != nil {
		return err
	}

	w, err := fsnotify.NewWatcher()
	if err != nil {
		return err
	}

	if err := w.Add(dir); err != nil {
		w.Close()
		return err
	}

	s.watcher = w

	go func() {
		for {
			select {
			case ev, ok := <-w.Events:
				if !ok {
					return
				}
				if ev.Name != s.path {
					continue
				}
				if ev.Op&(fsnotify.Write|fsnotify.Create|fsnotify.Remove|fsnotify.Rename) != 0 {
					s.dirty.Store(true)
				}
			case err, ok := <-w.Errors:
				if !ok {
					return
				}
				s.log.Warn("session slot watcher error", "err", err)
			}
		}
	}()

	return nil
}

func (s *FileSlot) Close() error {
	if s.watcher == nil {
		return nil
	}
	return s.watcher.Close()
}
