// Package recents remembers the posts a user opened most recently.
package recents

import (
	"encoding/json"
	"os"
	"path/filepath"
	"slices"
	"sync"
	"time"
)

// DefaultMax is how many posts the store keeps.
const DefaultMax = 20

// Item is one recently viewed post.
type Item struct {
	ID       int64     `json:"id"`
	Title    string    `json:"title"`
	UserID   int64     `json:"user_id,omitempty"`
	ViewedAt time.Time `json:"viewed_at"`
}

// Store persists recently viewed posts to <dir>/recents.json.
type Store struct {
	mu        sync.RWMutex
	items     []Item // most recent first
	maxItems  int
	path      string
	now       func() time.Time
	lastError error
}

// NewStore opens the store in dir, loading any saved items.
func NewStore(dir string) *Store {
	s := &Store{
		maxItems: DefaultMax,
		path:     filepath.Join(dir, "recents.json"),
		now:      time.Now,
	}
	s.load()
	return s
}

// Path returns the backing file.
func (s *Store) Path() string { return s.path }

// Add records item as viewed now, moving it to the front.
func (s *Store) Add(item Item) {
	var snapshot []Item
	func() {
		s.mu.Lock()
		defer s.mu.Unlock()

		item.ViewedAt = s.now()
		items := slices.DeleteFunc(slices.Clone(s.items), func(existing Item) bool {
			return existing.ID == item.ID
		})
		items = append([]Item{item}, items...)
		if len(items) > s.maxItems {
			items = items[:s.maxItems]
		}
		s.items = items
		snapshot = slices.Clone(items)
	}()

	// Write outside the lock so readers never wait on I/O.
	s.save(snapshot)
}

// List returns up to limit items, most recent first. limit <= 0 returns all.
func (s *Store) List(limit int) []Item {
	s.mu.RLock()
	defer s.mu.RUnlock()
	items := slices.Clone(s.items)
	if limit > 0 && len(items) > limit {
		items = items[:limit]
	}
	return items
}

// Clear forgets every item.
func (s *Store) Clear() {
	s.mu.Lock()
	s.items = nil
	s.mu.Unlock()
	s.save([]Item{})
}

func (s *Store) load() {
	data, err := os.ReadFile(s.path) //nolint:gosec // G304: Path is from trusted config
	if err != nil {
		return
	}
	var items []Item
	if err := json.Unmarshal(data, &items); err != nil {
		return
	}
	if len(items) > s.maxItems {
		items = items[:s.maxItems]
	}
	s.items = items
}

// save writes items to disk. Failures are kept in lastError; recents are
// not worth failing a command over.
func (s *Store) save(items []Item) {
	err := func() error {
		if err := os.MkdirAll(filepath.Dir(s.path), 0o750); err != nil {
			return err
		}
		data, err := json.MarshalIndent(items, "", "  ")
		if err != nil {
			return err
		}
		return os.WriteFile(s.path, data, 0o600)
	}()

	s.mu.Lock()
	s.lastError = err
	s.mu.Unlock()
}

// LastError returns the error from the last save, if any.
func (s *Store) LastError() error {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.lastError
}
