package persist

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"sync"

	"github.com/fsnotify/fsnotify"
	"github.com/sirupsen/logrus"
	"gopkg.in/yaml.v3"

	"github.com/dshills/debugstate/internal/integration/debug"
)

// FileStore keeps the state in a YAML file.
type FileStore struct {
	path string
	log  logrus.FieldLogger

	mu          sync.Mutex
	lastWritten []byte
}

// NewFileStore creates a store backed by the YAML file at path. The file
// and its directory are created on first Save.
func NewFileStore(path string, opts ...Option) (*FileStore, error) {
	if path == "" {
		return nil, errors.New("file store path is required")
	}
	o := buildOptions(opts)
	return &FileStore{
		path: filepath.Clean(path),
		log:  o.log.WithField("store", "file"),
	}, nil
}

// Path returns the file location.
func (s *FileStore) Path() string {
	return s.path
}

// Load reads the file. A missing or empty file yields an empty state.
func (s *FileStore) Load(ctx context.Context) (debug.PersistedState, error) {
	if err := ctx.Err(); err != nil {
		return debug.PersistedState{}, err
	}
	data, err := os.ReadFile(s.path)
	if errors.Is(err, os.ErrNotExist) {
		return debug.PersistedState{}, nil
	}
	if err != nil {
		return debug.PersistedState{}, fmt.Errorf("read %s: %w", s.path, err)
	}
	return decodeState(data, s.path)
}

func decodeState(data []byte, path string) (debug.PersistedState, error) {
	var st debug.PersistedState
	if len(bytes.TrimSpace(data)) == 0 {
		return st, nil
	}
	if err := yaml.Unmarshal(data, &st); err != nil {
		return debug.PersistedState{}, fmt.Errorf("parse %s: %w", path, err)
	}
	return st, nil
}

// Save writes the state atomically: a temp file in the same directory is
// written, synced and renamed over the target.
func (s *FileStore) Save(ctx context.Context, st debug.PersistedState) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	data, err := yaml.Marshal(normalize(st))
	if err != nil {
		return fmt.Errorf("encode state: %w", err)
	}

	dir := filepath.Dir(s.path)
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return fmt.Errorf("create %s: %w", dir, err)
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	tmp, err := os.CreateTemp(dir, "."+filepath.Base(s.path)+".*.tmp")
	if err != nil {
		return fmt.Errorf("create temp file: %w", err)
	}
	tmpName := tmp.Name()
	defer func() {
		if err != nil {
			_ = os.Remove(tmpName)
		}
	}()

	if _, err = tmp.Write(data); err != nil {
		_ = tmp.Close()
		return fmt.Errorf("write temp file: %w", err)
	}
	if err = tmp.Sync(); err != nil {
		_ = tmp.Close()
		return fmt.Errorf("sync temp file: %w", err)
	}
	if err = tmp.Close(); err != nil {
		return fmt.Errorf("close temp file: %w", err)
	}
	if err = os.Rename(tmpName, s.path); err != nil {
		return fmt.Errorf("replace %s: %w", s.path, err)
	}

	s.lastWritten = data
	s.log.WithField("path", s.path).Debug("saved debug state")
	return nil
}

// Close does nothing; the file is not held open.
func (s *FileStore) Close() error {
	return nil
}

// Watch calls fn with the reloaded state whenever the file is changed by
// someone else. It watches the parent directory so that editors replacing
// the file are noticed. Changes produced by this store's own Save are
// skipped. Watching stops when ctx is done.
func (s *FileStore) Watch(ctx context.Context, fn func(debug.PersistedState)) error {
	dir := filepath.Dir(s.path)
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return fmt.Errorf("create %s: %w", dir, err)
	}

	w, err := fsnotify.NewWatcher()
	if err != nil {
		return fmt.Errorf("create watcher: %w", err)
	}
	if err := w.Add(dir); err != nil {
		_ = w.Close()
		return fmt.Errorf("watch %s: %w", dir, err)
	}

	go s.watchLoop(ctx, w, fn)
	return nil
}

func (s *FileStore) watchLoop(ctx context.Context, w *fsnotify.Watcher, fn func(debug.PersistedState)) {
	defer w.Close()
	for {
		select {
		case <-ctx.Done():
			return
		case ev, ok := <-w.Events:
			if !ok {
				return
			}
			if filepath.Clean(ev.Name) != s.path {
				continue
			}
			if !ev.Has(fsnotify.Write) && !ev.Has(fsnotify.Create) {
				continue
			}
			s.reload(fn)
		case err, ok := <-w.Errors:
			if !ok {
				return
			}
			s.log.WithError(err).Warn("debug state watcher error")
		}
	}
}

func (s *FileStore) reload(fn func(debug.PersistedState)) {
	data, err := os.ReadFile(s.path)
	if err != nil {
		if !errors.Is(err, os.ErrNotExist) {
			s.log.WithError(err).Warn("reload debug state")
		}
		return
	}

	// Truncated files show up between an editor's truncate and write.
	if len(bytes.TrimSpace(data)) == 0 {
		return
	}
	s.mu.Lock()
	own := bytes.Equal(data, s.lastWritten)
	s.mu.Unlock()
	if own {
		return
	}

	st, err := decodeState(data, s.path)
	if err != nil {
		// Partially written by an editor; the next event will retry.
		s.log.WithError(err).Debug("skip unreadable debug state")
		return
	}
	s.log.WithField("path", s.path).Info("debug state changed on disk")
	fn(st)
}
