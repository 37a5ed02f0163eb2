package settings

import (
	"context"
	"path/filepath"
	"sync"
	"sync/atomic"
	"time"

	"github.com/fsnotify/fsnotify"
	"github.com/systmms/apivault/internal/logging"
)

const defaultDebounce = 200 * time.Millisecond

// Store holds the current settings and reloads them from disk
type Store struct {
	path     string
	dirPath  string
	baseName string
	debounce time.Duration
	logger   *logging.Logger

	current atomic.Pointer[Settings]

	mu          sync.Mutex
	subscribers []func(Settings)
}

// StoreOption configures a Store
type StoreOption func(*Store)

// WithDebounce sets how long Watch waits for writes to settle
func WithDebounce(d time.Duration) StoreOption {
	return func(s *Store) {
		s.debounce = d
	}
}

// WithLogger sets the logger used for reload messages
func WithLogger(logger *logging.Logger) StoreOption {
	return func(s *Store) {
		s.logger = logger
	}
}

// NewStore loads path and returns a Store holding the result
func NewStore(path string, opts ...StoreOption) (*Store, error) {
	s := &Store{
		path:     path,
		dirPath:  filepath.Dir(path),
		baseName: filepath.Base(path),
		debounce: defaultDebounce,
		logger:   logging.Discard(),
	}
	for _, opt := range opts {
		opt(s)
	}

	loaded, err := Load(path)
	if err != nil {
		return nil, err
	}
	s.current.Store(&loaded)
	return s, nil
}

// Path returns the settings file path
func (s *Store) Path() string {
	return s.path
}

// Current returns a snapshot of the settings
func (s *Store) Current() Settings {
	return *s.current.Load()
}

// Subscribe registers fn to run after every successful reload
func (s *Store) Subscribe(fn func(Settings)) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.subscribers = append(s.subscribers, fn)
}

// Reload rereads the file. On error the last good settings are kept.
func (s *Store) Reload() error {
	loaded, err := Load(s.path)
	if err != nil {
		return err
	}
	s.current.Store(&loaded)

	s.mu.Lock()
	subscribers := append([]func(Settings){}, s.subscribers...)
	s.mu.Unlock()

	for _, fn := range subscribers {
		fn(loaded)
	}
	return nil
}

// Watch reloads the settings whenever the file changes until ctx is done.
// The directory is watched so editors that replace the file are handled.
func (s *Store) Watch(ctx context.Context) error {
	w, err := fsnotify.NewWatcher()
	if err != nil {
		return err
	}

	if err := w.Add(s.dirPath); err != nil {
		_ = w.Close()
		return err
	}

	go func() {
		defer w.Close()

		var timer *time.Timer
		trigger := func() {
			if timer != nil {
				timer.Stop()
			}
			timer = time.AfterFunc(s.debounce, func() {
				if err := s.Reload(); err != nil {
					s.logger.Warn("Settings reload failed, keeping last known good: %v", err)
					return
				}
				s.logger.Debug("Settings reloaded from %s", s.path)
			})
		}

		for {
			select {
			case <-ctx.Done():
				if timer != nil {
					timer.Stop()
				}
				return
			case ev, ok := <-w.Events:
				if !ok {
					return
				}
				if filepath.Base(ev.Name) == s.baseName && ev.Op&(fsnotify.Write|fsnotify.Create|fsnotify.Rename) != 0 {
					trigger()
				}
			case err, ok := <-w.Errors:
				if !ok {
					return
				}
				s.logger.Warn("Settings watcher error: %v", err)
			}
		}
	}()

	return nil
}
