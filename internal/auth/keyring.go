package auth

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"runtime"
	"time"

	"github.com/zalando/go-keyring"
	"go.uber.org/zap"
)

const serviceName = "postbrowser"

// Credentials is a stored bearer token.
type Credentials struct {
	AccessToken string    `json:"access_token"`
	CreatedAt   time.Time `json:"created_at"`
}

// Store keeps credentials per API origin, preferring the system keyring and
// falling back to a 0600 file in fallbackDir.
type Store struct {
	useKeyring  bool
	fallbackDir string
}

// NewStore probes the system keyring and returns a store backed by it when
// usable. POSTBROWSER_NO_KEYRING forces the file backend.
func NewStore(fallbackDir string, logger *zap.Logger) *Store {
	if logger == nil {
		logger = zap.NewNop()
	}
	if os.Getenv("POSTBROWSER_NO_KEYRING") != "" {
		return &Store{fallbackDir: fallbackDir}
	}

	probe := key("probe")
	if err := keyring.Set(serviceName, probe, "probe"); err == nil {
		_ = keyring.Delete(serviceName, probe)
		return &Store{useKeyring: true, fallbackDir: fallbackDir}
	}
	logger.Warn("system keyring unavailable, storing credentials in plaintext",
		zap.String("path", filepath.Join(fallbackDir, "credentials.json")))
	return &Store{fallbackDir: fallbackDir}
}

func key(origin string) string {
	return fmt.Sprintf("postbrowser::%s", origin)
}

// UsingKeyring reports whether the system keyring backs the store.
func (s *Store) UsingKeyring() bool { return s.useKeyring }

// Load retrieves credentials for origin.
func (s *Store) Load(origin string) (*Credentials, error) {
	if s.useKeyring {
		data, err := keyring.Get(serviceName, key(origin))
		if err != nil {
			return nil, fmt.Errorf("credentials not found: %w", err)
		}
		var creds Credentials
		if err := json.Unmarshal([]byte(data), &creds); err != nil {
			return nil, fmt.Errorf("invalid credentials: %w", err)
		}
		return &creds, nil
	}

	all, err := s.loadAll()
	if err != nil {
		return nil, err
	}
	creds, ok := all[origin]
	if !ok {
		return nil, fmt.Errorf("credentials not found for %s", origin)
	}
	return creds, nil
}

// Save stores credentials for origin.
func (s *Store) Save(origin string, creds *Credentials) error {
	if s.useKeyring {
		data, err := json.Marshal(creds)
		if err != nil {
			return err
		}
		return keyring.Set(serviceName, key(origin), string(data))
	}

	all, err := s.loadAll()
	if err != nil {
		return err
	}
	all[origin] = creds
	return s.saveAll(all)
}

// Delete removes credentials for origin. Deleting missing credentials is not an error.
func (s *Store) Delete(origin string) error {
	if s.useKeyring {
		if err := keyring.Delete(serviceName, key(origin)); err != nil && err != keyring.ErrNotFound {
			return err
		}
		return nil
	}

	all, err := s.loadAll()
	if err != nil {
		return err
	}
	if _, ok := all[origin]; !ok {
		return nil
	}
	delete(all, origin)
	return s.saveAll(all)
}

func (s *Store) path() string {
	return filepath.Join(s.fallbackDir, "credentials.json")
}

func (s *Store) loadAll() (map[string]*Credentials, error) {
	data, err := os.ReadFile(s.path())
	if err != nil {
		if os.IsNotExist(err) {
			return make(map[string]*Credentials), nil
		}
		return nil, err
	}
	var all map[string]*Credentials
	if err := json.Unmarshal(data, &all); err != nil {
		return nil, fmt.Errorf("invalid credentials file %s: %w", s.path(), err)
	}
	if all == nil {
		all = make(map[string]*Credentials)
	}
	return all, nil
}

// saveAll writes through a temp file and rename so readers never see a
// partial file.
func (s *Store) saveAll(all map[string]*Credentials) error {
	if err := os.MkdirAll(s.fallbackDir, 0o700); err != nil {
		return err
	}
	data, err := json.MarshalIndent(all, "", "  ")
	if err != nil {
		return err
	}

	tmp, err := os.CreateTemp(s.fallbackDir, "credentials-*.json.tmp")
	if err != nil {
		return err
	}
	tmpPath := tmp.Name()
	if _, err := tmp.Write(data); err != nil {
		tmp.Close()
		os.Remove(tmpPath)
		return err
	}
	if err := tmp.Chmod(0o600); err != nil {
		tmp.Close()
		os.Remove(tmpPath)
		return err
	}
	if err := tmp.Close(); err != nil {
		os.Remove(tmpPath)
		return err
	}

	dest := s.path()
	if err := os.Rename(tmpPath, dest); err != nil {
		// Windows refuses to rename over an existing file.
		if runtime.GOOS == "windows" {
			_ = os.Remove(dest)
			return os.Rename(tmpPath, dest)
		}
		os.Remove(tmpPath)
		return err
	}
	return nil
}
