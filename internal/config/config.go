// Package config provides layered configuration loading.
package config

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"strconv"
	"strings"
	"time"

	"gopkg.in/yaml.v3"

	"github.com/basecamp/postbrowser/internal/hostutil"
	"github.com/basecamp/postbrowser/internal/query"
)

// DefaultBaseURL is the public posts API the browser reads from.
const DefaultBaseURL = "https://jsonplaceholder.typicode.com"

// Config holds the resolved configuration.
type Config struct {
	// API settings
	BaseURL  string `json:"base_url" yaml:"base_url" validate:"required,http_url"`
	PageSize int    `json:"page_size" yaml:"page_size" validate:"min=1,max=100"`

	// Query settings
	FreshTTL           time.Duration `json:"fresh_ttl" yaml:"fresh_ttl" validate:"gte=0"`
	ExpiryTTL          time.Duration `json:"expiry_ttl" yaml:"expiry_ttl" validate:"gte=0"`
	MaxRetries         int           `json:"max_retries" yaml:"max_retries" validate:"min=0,max=10"`
	RetryBase          time.Duration `json:"retry_base" yaml:"retry_base" validate:"gte=0"`
	RetryMax           time.Duration `json:"retry_max" yaml:"retry_max" validate:"gtefield=RetryBase"`
	RefetchOnFocus     bool          `json:"refetch_on_focus" yaml:"refetch_on_focus"`
	RefetchOnReconnect bool          `json:"refetch_on_reconnect" yaml:"refetch_on_reconnect"`
	KeepPrevious       bool          `json:"keep_previous" yaml:"keep_previous"`
	AutoPrefetch       bool          `json:"auto_prefetch" yaml:"auto_prefetch"`

	// Local state
	CacheDir string `json:"cache_dir" yaml:"cache_dir" validate:"required"`

	// Output settings
	Format string `json:"format" yaml:"format" validate:"oneof=auto styled json markdown quiet ids count"`
	Theme  string `json:"theme,omitempty" yaml:"theme,omitempty"`

	// Behavior preferences, overridable by flags
	Stats   *bool `json:"stats,omitempty" yaml:"stats,omitempty"`
	Verbose *int  `json:"verbose,omitempty" yaml:"verbose,omitempty" validate:"omitempty,min=0,max=2"`

	// Sources tracks where each value came from (for debugging).
	Sources map[string]string `json:"-" yaml:"-"`
}

// Source indicates where a config value came from.
type Source string

const (
	SourceDefault Source = "default"
	SourceSystem  Source = "system"
	SourceGlobal  Source = "global"
	SourceRepo    Source = "repo"
	SourceLocal   Source = "local"
	SourceEnv     Source = "env"
	SourceFlag    Source = "flag"
	SourcePrompt  Source = "prompt"
)

// FlagOverrides holds command-line flag values. Zero values are unset.
type FlagOverrides struct {
	BaseURL  string
	PageSize int
	CacheDir string
	Format   string
	Theme    string
}

// Default returns the default configuration.
func Default() *Config {
	cacheDir := os.Getenv("XDG_CACHE_HOME")
	if cacheDir == "" {
		home, _ := os.UserHomeDir()
		cacheDir = filepath.Join(home, ".cache")
	}

	q := query.DefaultOptions()
	return &Config{
		BaseURL:            DefaultBaseURL,
		PageSize:           10,
		FreshTTL:           q.FreshTTL,
		ExpiryTTL:          q.ExpiryTTL,
		MaxRetries:         q.MaxRetries,
		RetryBase:          q.RetryBase,
		RetryMax:           q.RetryMax,
		RefetchOnFocus:     q.RefetchOnFocus,
		RefetchOnReconnect: q.RefetchOnReconnect,
		KeepPrevious:       q.KeepPrevious,
		AutoPrefetch:       true,
		CacheDir:           filepath.Join(cacheDir, "postbrowser"),
		Format:             "auto",
		Sources:            make(map[string]string),
	}
}

// Load loads configuration from all sources with proper precedence and
// validates the result.
// Precedence: flags > env > local > repo > global > system > defaults
func Load(overrides FlagOverrides) (*Config, error) {
	cfg := Default()

	for _, f := range Files() {
		loadFromFile(cfg, f.Path, f.Source)
	}

	LoadFromEnv(cfg)
	ApplyOverrides(cfg, overrides)
	cfg.BaseURL = NormalizeBaseURL(cfg.BaseURL)

	if err := cfg.Validate(); err != nil {
		return cfg, err
	}
	return cfg, nil
}

// File is one config file layer.
type File struct {
	Path   string
	Source Source
}

// Files returns the config files Load reads, lowest precedence first.
// Only files that exist are returned.
func Files() []File {
	var files []File
	if p := findConfig(systemConfigDir()); p != "" {
		files = append(files, File{p, SourceSystem})
	}
	if p := findConfig(GlobalConfigDir()); p != "" {
		files = append(files, File{p, SourceGlobal})
	}
	repo := repoConfigPath()
	if repo != "" {
		files = append(files, File{repo, SourceRepo})
	}
	for _, p := range localConfigPaths(repo) {
		files = append(files, File{p, SourceLocal})
	}
	return files
}

// configNames are the file names tried in each config directory, in order.
var configNames = []string{"config.json", "config.yaml", "config.yml"}

func findConfig(dir string) string {
	for _, name := range configNames {
		p := filepath.Join(dir, name)
		if _, err := os.Stat(p); err == nil {
			return p
		}
	}
	return ""
}

func parseFile(path string) (map[string]any, error) {
	data, err := os.ReadFile(path) //nolint:gosec // G304: Path is from trusted config locations
	if err != nil {
		return nil, err
	}
	var fileCfg map[string]any
	switch filepath.Ext(path) {
	case ".yaml", ".yml":
		err = yaml.Unmarshal(data, &fileCfg)
	default:
		err = json.Unmarshal(data, &fileCfg)
	}
	if err != nil {
		return nil, err
	}
	if fileCfg == nil {
		fileCfg = map[string]any{}
	}
	return fileCfg, nil
}

func loadFromFile(cfg *Config, path string, source Source) {
	fileCfg, err := parseFile(path)
	if err != nil {
		if !os.IsNotExist(err) {
			fmt.Fprintf(os.Stderr, "warning: skipping malformed config at %s: %v\n", path, err)
		}
		return
	}

	set := func(key string) { cfg.Sources[key] = string(source) }

	// base_url decides where the bearer token is sent. A config file in a
	// cloned repo or parent directory must not be able to redirect it.
	untrusted := source == SourceLocal || source == SourceRepo

	if v, ok := fileCfg["base_url"].(string); ok && v != "" {
		if untrusted {
			fmt.Fprintf(os.Stderr, "warning: ignoring base_url %q from %s config at %s (authority keys are not trusted from local/repo config)\n", v, source, path)
		} else {
			cfg.BaseURL = v
			set("base_url")
		}
	}
	if v, ok := getInt(fileCfg, "page_size"); ok {
		cfg.PageSize = v
		set("page_size")
	}
	if v, ok := getInt(fileCfg, "max_retries"); ok {
		cfg.MaxRetries = v
		set("max_retries")
	}
	for key, dst := range map[string]*time.Duration{
		"fresh_ttl":  &cfg.FreshTTL,
		"expiry_ttl": &cfg.ExpiryTTL,
		"retry_base": &cfg.RetryBase,
		"retry_max":  &cfg.RetryMax,
	} {
		if _, present := fileCfg[key]; !present {
			continue
		}
		d, err := getDuration(fileCfg, key)
		if err != nil {
			fmt.Fprintf(os.Stderr, "warning: ignoring %s in %s: %v\n", key, path, err)
			continue
		}
		*dst = d
		set(key)
	}
	for key, dst := range map[string]*bool{
		"refetch_on_focus":     &cfg.RefetchOnFocus,
		"refetch_on_reconnect": &cfg.RefetchOnReconnect,
		"keep_previous":        &cfg.KeepPrevious,
		"auto_prefetch":        &cfg.AutoPrefetch,
	} {
		if v, ok := fileCfg[key].(bool); ok {
			*dst = v
			set(key)
		}
	}
	if v, ok := fileCfg["cache_dir"].(string); ok && v != "" {
		cfg.CacheDir = v
		set("cache_dir")
	}
	if v, ok := fileCfg["format"].(string); ok && v != "" {
		cfg.Format = v
		set("format")
	}
	if v, ok := fileCfg["theme"].(string); ok && v != "" {
		cfg.Theme = v
		set("theme")
	}
	if v, ok := fileCfg["stats"].(bool); ok {
		cfg.Stats = &v
		set("stats")
	}
	if v, ok := getInt(fileCfg, "verbose"); ok && v >= 0 && v <= 2 {
		cfg.Verbose = &v
		set("verbose")
	}
}

// getInt reads a whole number. JSON numbers decode as float64, YAML as int.
func getInt(m map[string]any, key string) (int, bool) {
	switch v := m[key].(type) {
	case int:
		return v, true
	case int64:
		return int(v), true
	case float64:
		if v == float64(int(v)) {
			return int(v), true
		}
	case string:
		if n, err := strconv.Atoi(v); err == nil {
			return n, true
		}
	}
	return 0, false
}

// getDuration reads "90s"-style strings, or a bare number of seconds.
func getDuration(m map[string]any, key string) (time.Duration, error) {
	switch v := m[key].(type) {
	case string:
		return time.ParseDuration(v)
	case int:
		return time.Duration(v) * time.Second, nil
	case float64:
		return time.Duration(v * float64(time.Second)), nil
	default:
		return 0, fmt.Errorf("expected a duration, got %T", v)
	}
}

// envPrefix prefixes every environment variable the config reads.
const envPrefix = "POSTBROWSER_"

// LoadFromEnv loads configuration from POSTBROWSER_* environment variables.
// Unparseable values are ignored.
func LoadFromEnv(cfg *Config) {
	env := func(key string) (string, bool) {
		v := os.Getenv(envPrefix + strings.ToUpper(key))
		if v == "" {
			return "", false
		}
		cfg.Sources[key] = string(SourceEnv)
		return v, true
	}

	if v, ok := env("base_url"); ok {
		cfg.BaseURL = v
	}
	if v, ok := env("cache_dir"); ok {
		cfg.CacheDir = v
	}
	if v, ok := env("format"); ok {
		cfg.Format = v
	}
	if v, ok := env("theme"); ok {
		cfg.Theme = v
	}
	for key, dst := range map[string]*int{"page_size": &cfg.PageSize, "max_retries": &cfg.MaxRetries} {
		if v, ok := env(key); ok {
			if n, err := strconv.Atoi(v); err == nil {
				*dst = n
			} else {
				delete(cfg.Sources, key)
			}
		}
	}
	for key, dst := range map[string]*time.Duration{
		"fresh_ttl":  &cfg.FreshTTL,
		"expiry_ttl": &cfg.ExpiryTTL,
		"retry_base": &cfg.RetryBase,
		"retry_max":  &cfg.RetryMax,
	} {
		if v, ok := env(key); ok {
			if d, err := time.ParseDuration(v); err == nil {
				*dst = d
			} else {
				delete(cfg.Sources, key)
			}
		}
	}
	for key, dst := range map[string]*bool{
		"refetch_on_focus":     &cfg.RefetchOnFocus,
		"refetch_on_reconnect": &cfg.RefetchOnReconnect,
		"keep_previous":        &cfg.KeepPrevious,
		"auto_prefetch":        &cfg.AutoPrefetch,
	} {
		if v, ok := env(key); ok {
			if b, ok := parseEnvBool(v); ok {
				*dst = b
			} else {
				delete(cfg.Sources, key)
			}
		}
	}
	if v, ok := env("stats"); ok {
		if b, ok := parseEnvBool(v); ok {
			cfg.Stats = &b
		} else {
			delete(cfg.Sources, "stats")
		}
	}
}

// parseEnvBool parses a boolean environment variable strictly.
// Returns (value, true) for recognized values, (false, false) for unrecognized.
func parseEnvBool(v string) (bool, bool) {
	switch strings.ToLower(v) {
	case "true", "1", "yes", "on":
		return true, true
	case "false", "0", "no", "off":
		return false, true
	default:
		return false, false
	}
}

// ApplyOverrides applies non-empty flag overrides to cfg.
func ApplyOverrides(cfg *Config, o FlagOverrides) {
	if o.BaseURL != "" {
		cfg.BaseURL = o.BaseURL
		cfg.Sources["base_url"] = string(SourceFlag)
	}
	if o.PageSize != 0 {
		cfg.PageSize = o.PageSize
		cfg.Sources["page_size"] = string(SourceFlag)
	}
	if o.CacheDir != "" {
		cfg.CacheDir = o.CacheDir
		cfg.Sources["cache_dir"] = string(SourceFlag)
	}
	if o.Format != "" {
		cfg.Format = o.Format
		cfg.Sources["format"] = string(SourceFlag)
	}
	if o.Theme != "" {
		cfg.Theme = o.Theme
		cfg.Sources["theme"] = string(SourceFlag)
	}
}

// QueryOptions returns the query defaults this config describes.
func (cfg *Config) QueryOptions() query.Options {
	o := query.DefaultOptions()
	o.FreshTTL = cfg.FreshTTL
	o.ExpiryTTL = cfg.ExpiryTTL
	o.MaxRetries = cfg.MaxRetries
	o.RetryBase = cfg.RetryBase
	o.RetryMax = cfg.RetryMax
	o.RefetchOnFocus = cfg.RefetchOnFocus
	o.RefetchOnReconnect = cfg.RefetchOnReconnect
	o.KeepPrevious = cfg.KeepPrevious
	return o
}

// Source returns where key was set, "default" when it never was.
func (cfg *Config) Source(key string) string {
	if s, ok := cfg.Sources[key]; ok {
		return s
	}
	return string(SourceDefault)
}

// Path helpers

func systemConfigDir() string {
	return "/etc/postbrowser"
}

// GlobalConfigDir returns the global config directory path.
func GlobalConfigDir() string {
	configDir := os.Getenv("XDG_CONFIG_HOME")
	if configDir == "" {
		home, _ := os.UserHomeDir()
		configDir = filepath.Join(home, ".config")
	}
	return filepath.Join(configDir, "postbrowser")
}

// GlobalConfigPath returns the file `config set` style edits should go to:
// the existing global config, or config.json in the global directory.
func GlobalConfigPath() string {
	if p := findConfig(GlobalConfigDir()); p != "" {
		return p
	}
	return filepath.Join(GlobalConfigDir(), "config.json")
}

func repoConfigPath() string {
	// Walk up to find .git, then look for .postbrowser/config.*.
	// Bounded by $HOME: if CWD is outside it, no repo config is trusted.
	dir, err := os.Getwd()
	if err != nil {
		return ""
	}
	resolved, err := filepath.EvalSymlinks(dir)
	if err != nil {
		return ""
	}
	dir = resolved
	home, _ := os.UserHomeDir()
	if resolved, err := filepath.EvalSymlinks(home); err == nil {
		home = resolved
	}
	if home != "" && !isInsideDir(dir, home) {
		return ""
	}

	for {
		if _, err := os.Stat(filepath.Join(dir, ".git")); err == nil {
			return findConfig(filepath.Join(dir, ".postbrowser"))
		}
		parent := filepath.Dir(dir)
		if parent == dir || (home != "" && dir == home) {
			return ""
		}
		dir = parent
	}
}

// isInsideDir reports whether child is the same as or a subdirectory of parent.
// Both paths must be absolute and already cleaned/resolved.
func isInsideDir(child, parent string) bool {
	if child == parent {
		return true
	}
	prefix := parent
	if !strings.HasSuffix(prefix, string(filepath.Separator)) {
		prefix += string(filepath.Separator)
	}
	return strings.HasPrefix(child, prefix)
}

// localConfigPaths returns .postbrowser/config.* paths within the trust
// boundary, excluding the repo config. Paths run from furthest ancestor to
// closest, so closer configs override.
//
// Trust boundary:
//   - Inside a git repo: only paths at or below the repo root
//   - Outside a git repo: only the current working directory
func localConfigPaths(repoConfigPath string) []string {
	dir, err := os.Getwd()
	if err != nil {
		return nil
	}
	resolved, err := filepath.EvalSymlinks(dir)
	if err != nil {
		return nil
	}
	dir = resolved

	boundary := dir
	if repoConfigPath != "" {
		boundary = filepath.Dir(filepath.Dir(repoConfigPath))
	}
	if resolved, err := filepath.EvalSymlinks(boundary); err == nil {
		boundary = resolved
	}

	var paths []string
	for {
		if p := findConfig(filepath.Join(dir, ".postbrowser")); p != "" && p != repoConfigPath {
			paths = append(paths, p)
		}
		parent := filepath.Dir(dir)
		if parent == dir || dir == boundary {
			break
		}
		dir = parent
	}

	for i, j := 0, len(paths)-1; i < j; i, j = i+1, j-1 {
		paths[i], paths[j] = paths[j], paths[i]
	}
	return paths
}

// NormalizeBaseURL ensures consistent URL format: a scheme and no trailing
// slash.
func NormalizeBaseURL(url string) string {
	return hostutil.Normalize(url)
}
