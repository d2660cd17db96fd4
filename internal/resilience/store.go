// Package resilience gates requests to the posts API through a circuit
// breaker and a token bucket shared across postbrowser processes. Shared
// state lives in a JSON file guarded by an advisory file lock.
package resilience

import (
	"context"
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"runtime"
	"time"

	"github.com/gofrs/flock"
)

const (
	// StateFileName is the state file name inside the store directory.
	StateFileName = "state.json"

	// DefaultDirName is the subdirectory within the cache dir.
	DefaultDirName = "resilience"

	appDirName = "postbrowser"
)

// LockTimeout is the maximum time to wait for the file lock. When it
// elapses the operation proceeds unlocked rather than hanging the CLI.
const LockTimeout = 100 * time.Millisecond

// Store reads and writes State under an exclusive file lock.
type Store struct {
	dir string
}

// NewStore creates a store rooted at dir.
// If dir is empty, the user cache directory is used
// (~/.cache/postbrowser/resilience on Linux).
func NewStore(dir string) *Store {
	if dir == "" {
		dir = DefaultDir()
	}
	return &Store{dir: dir}
}

// DefaultDir returns the default state directory.
func DefaultDir() string {
	if cacheDir := os.Getenv("XDG_CACHE_HOME"); cacheDir != "" {
		return filepath.Join(cacheDir, appDirName, DefaultDirName)
	}
	if cacheDir, err := os.UserCacheDir(); err == nil && cacheDir != "" {
		return filepath.Join(cacheDir, appDirName, DefaultDirName)
	}
	if home, err := os.UserHomeDir(); err == nil && home != "" {
		return filepath.Join(home, ".cache", appDirName, DefaultDirName)
	}
	return filepath.Join(os.TempDir(), appDirName, DefaultDirName)
}

// Dir returns the state directory path.
func (s *Store) Dir() string {
	return s.dir
}

// Path returns the full path to the state file.
func (s *Store) Path() string {
	return filepath.Join(s.dir, StateFileName)
}

func (s *Store) lockPath() string {
	return filepath.Join(s.dir, ".lock")
}

// lock acquires the directory lock. A nil unlock func with a nil error
// means the lock timed out and the caller proceeds without it.
func (s *Store) lock() (func(), error) {
	if err := os.MkdirAll(s.dir, 0700); err != nil {
		return nil, err
	}

	fl := flock.New(s.lockPath())
	ctx, cancel := context.WithTimeout(context.Background(), LockTimeout)
	defer cancel()

	locked, err := fl.TryLockContext(ctx, 10*time.Millisecond)
	if err != nil {
		if ctx.Err() == context.DeadlineExceeded {
			return nil, nil
		}
		return nil, err
	}
	if !locked {
		return nil, nil
	}
	return func() { _ = fl.Unlock() }, nil
}

func (s *Store) withLock(fn func() error) error {
	unlock, err := s.lock()
	if err != nil {
		return err
	}
	if unlock != nil {
		defer unlock()
	}
	return fn()
}

// Load reads the state. A missing or corrupt file yields a fresh State.
func (s *Store) Load() (*State, error) {
	var state *State
	err := s.withLock(func() error {
		var err error
		state, err = s.read()
		return err
	})
	return state, err
}

func (s *Store) read() (*State, error) {
	data, err := os.ReadFile(s.Path())
	if err != nil {
		if os.IsNotExist(err) {
			return NewState(), nil
		}
		return nil, err
	}

	var state State
	if err := json.Unmarshal(data, &state); err != nil {
		return NewState(), nil
	}
	return &state, nil
}

// Save writes the state atomically.
func (s *Store) Save(state *State) error {
	return s.withLock(func() error { return s.write(state) })
}

func (s *Store) write(state *State) error {
	if err := os.MkdirAll(s.dir, 0700); err != nil {
		return err
	}
	state.Version = StateVersion

	data, err := json.MarshalIndent(state, "", "  ")
	if err != nil {
		return err
	}

	// Unique temp name so unlocked writers never share a file.
	tmpPath := fmt.Sprintf("%s.%d.%d.tmp", s.Path(), os.Getpid(), time.Now().UnixNano())
	if err := os.WriteFile(tmpPath, data, 0600); err != nil {
		return err
	}
	if runtime.GOOS == "windows" {
		_ = os.Remove(s.Path())
	}
	if err := os.Rename(tmpPath, s.Path()); err != nil {
		_ = os.Remove(tmpPath)
		return err
	}
	return nil
}

// Update loads, modifies and saves the state while holding the lock for
// the whole read-modify-write cycle.
func (s *Store) Update(fn func(*State) error) error {
	return s.withLock(func() error {
		state, err := s.read()
		if err != nil {
			return err
		}
		if err := fn(state); err != nil {
			return err
		}
		return s.write(state)
	})
}

// Clear removes the state file.
func (s *Store) Clear() error {
	return s.withLock(func() error {
		err := os.Remove(s.Path())
		if os.IsNotExist(err) {
			return nil
		}
		return err
	})
}

// Exists returns true if a state file exists.
func (s *Store) Exists() bool {
	_, err := os.Stat(s.Path())
	return err == nil
}
