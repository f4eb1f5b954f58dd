// Package config loads Dewey's configuration from built-in defaults,
// a project-local dewey.yaml, and environment variables, in that
// increasing order of precedence (CLI flags, applied by the cmd
// package, outrank all of it).
package config

import (
	"fmt"
	"os"
	"path/filepath"
	"time"

	"gopkg.in/yaml.v3"

	"github.com/dewey-index/dewey/internal/splitter"
)

// Config is Dewey's full runtime configuration (SPEC_FULL.md,
// "Configuration").
type Config struct {
	// DeweyHome is the root directory persisted files live under:
	// vectors.bin/.meta, sources.log, graph.bin, the process lock, and
	// logs.
	DeweyHome string `yaml:"dewey_home"`

	// Dimensions is D, the embedding vector width. Fixed at index
	// creation; later changes require a full reindex.
	Dimensions int `yaml:"dimensions"`

	HNSW      HNSWConfig      `yaml:"hnsw"`
	Cache     CacheConfig     `yaml:"cache"`
	Embedding EmbeddingConfig `yaml:"embedding"`
	Logging   LoggingConfig   `yaml:"logging"`

	// SplitRules is the rule table C4 uses to decide how each file is
	// chunked. Empty means splitter.DefaultTable().
	SplitRules splitter.Table `yaml:"split_rules,omitempty"`

	// MaxFileSize is the largest file, in bytes, the coordinator will
	// read and split during reindex; larger files are skipped with a
	// warning.
	MaxFileSize int64 `yaml:"max_file_size"`
}

// HNSWConfig mirrors hnsw.Config; kept separate so config stays
// import-light and so YAML tags don't leak into the graph package.
type HNSWConfig struct {
	M               int `yaml:"m"`
	M0              int `yaml:"m0"`
	EfConstruction  int `yaml:"ef_construction"`
	EfSearchDefault int `yaml:"ef_search_default"`
}

// CacheConfig configures C2, the embedding cache.
type CacheConfig struct {
	// Capacity is the maximum number of vectors the cache may hold.
	// Zero or negative disables caching.
	Capacity int `yaml:"capacity"`
}

// EmbeddingConfig configures C5, the embedding client.
type EmbeddingConfig struct {
	Endpoint        string        `yaml:"endpoint"`
	Model           string        `yaml:"model"`
	APIKey          string        `yaml:"api_key"`
	BatchByteBudget int           `yaml:"batch_byte_budget"`
	Timeout         time.Duration `yaml:"timeout"`
	MaxRetries      int           `yaml:"max_retries"`
}

// LoggingConfig configures the structured log sink.
type LoggingConfig struct {
	Level         string `yaml:"level"`
	WriteToStderr bool   `yaml:"write_to_stderr"`
	MaxSizeMB     int    `yaml:"max_size_mb"`
	MaxFiles      int    `yaml:"max_files"`
}

// Default returns Dewey's built-in configuration: the bottom of the
// precedence stack.
func Default() Config {
	home := DefaultDeweyHome()
	return Config{
		DeweyHome:  home,
		Dimensions: 768,
		HNSW: HNSWConfig{
			M:               16,
			M0:              32,
			EfConstruction:  200,
			EfSearchDefault: 50,
		},
		Cache: CacheConfig{Capacity: 10000},
		Embedding: EmbeddingConfig{
			Endpoint:        "http://localhost:11434/api/embed",
			Model:           "nomic-embed-text",
			BatchByteBudget: 1 << 20, // 1 MiB
			Timeout:         60 * time.Second,
			MaxRetries:      3,
		},
		Logging: LoggingConfig{
			Level:     "info",
			MaxSizeMB: 20,
			MaxFiles:  5,
		},
		SplitRules:  splitter.DefaultTable(),
		MaxFileSize: 10 << 20, // 10 MiB
	}
}

// DefaultDeweyHome returns $DEWEY_HOME if set, else ~/.dewey.
func DefaultDeweyHome() string {
	if v := os.Getenv("DEWEY_HOME"); v != "" {
		return v
	}
	home, err := os.UserHomeDir()
	if err != nil {
		return filepath.Join(os.TempDir(), ".dewey")
	}
	return filepath.Join(home, ".dewey")
}

// Load builds a Config by layering, lowest precedence first: built-in
// defaults, a project-local dewey.yaml found by walking up from dir,
// then environment variables (DEWEY_HOME, EMBED_API_KEY,
// EMBED_ENDPOINT, EMBED_MODEL). CLI flags are applied by callers on
// top of the returned Config, the highest tier.
func Load(dir string) (Config, error) {
	cfg := Default()

	path, found, err := findProjectConfig(dir)
	if err != nil {
		return Config{}, err
	}
	if found {
		if err := mergeYAMLFile(&cfg, path); err != nil {
			return Config{}, fmt.Errorf("loading %s: %w", path, err)
		}
	}

	applyEnvOverrides(&cfg)

	return cfg, nil
}

// findProjectConfig walks upward from dir looking for dewey.yaml,
// stopping at the filesystem root.
func findProjectConfig(dir string) (string, bool, error) {
	abs, err := filepath.Abs(dir)
	if err != nil {
		return "", false, err
	}
	for {
		candidate := filepath.Join(abs, "dewey.yaml")
		if _, err := os.Stat(candidate); err == nil {
			return candidate, true, nil
		}
		parent := filepath.Dir(abs)
		if parent == abs {
			return "", false, nil
		}
		abs = parent
	}
}

func mergeYAMLFile(cfg *Config, path string) error {
	data, err := os.ReadFile(path)
	if err != nil {
		return err
	}
	return yaml.Unmarshal(data, cfg)
}

func applyEnvOverrides(cfg *Config) {
	if v := os.Getenv("DEWEY_HOME"); v != "" {
		cfg.DeweyHome = v
	}
	if v := os.Getenv("EMBED_API_KEY"); v != "" {
		cfg.Embedding.APIKey = v
	}
	if v := os.Getenv("EMBED_ENDPOINT"); v != "" {
		cfg.Embedding.Endpoint = v
	}
	if v := os.Getenv("EMBED_MODEL"); v != "" {
		cfg.Embedding.Model = v
	}
}

// WriteYAML writes cfg to path as YAML, creating parent directories as
// needed.
func WriteYAML(cfg Config, path string) error {
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return err
	}
	data, err := yaml.Marshal(cfg)
	if err != nil {
		return err
	}
	return os.WriteFile(path, data, 0o644)
}

// Validate checks cfg for values that would misbehave rather than
// fail loudly later.
func (c Config) Validate() error {
	if c.Dimensions <= 0 {
		return fmt.Errorf("dimensions must be positive, got %d", c.Dimensions)
	}
	if c.HNSW.M <= 0 {
		return fmt.Errorf("hnsw.m must be positive, got %d", c.HNSW.M)
	}
	if c.HNSW.M0 <= 0 {
		return fmt.Errorf("hnsw.m0 must be positive, got %d", c.HNSW.M0)
	}
	if c.Embedding.Endpoint == "" {
		return fmt.Errorf("embedding.endpoint must not be empty")
	}
	if c.Embedding.BatchByteBudget <= 0 {
		return fmt.Errorf("embedding.batch_byte_budget must be positive, got %d", c.Embedding.BatchByteBudget)
	}
	return nil
}

// SplitTable returns c.SplitRules, falling back to
// splitter.DefaultTable() if the config left it empty (e.g. a
// dewey.yaml that overrides only other sections).
func (c Config) SplitTable() splitter.Table {
	if len(c.SplitRules) == 0 {
		return splitter.DefaultTable()
	}
	return c.SplitRules
}

// GetUserConfigDir returns DeweyHome, which RestoreUserConfig creates
// before writing. Backups themselves are written beside the project
// config file (see BackupUserConfig), not in this directory.
func GetUserConfigDir() string {
	return DefaultDeweyHome()
}

// GetUserConfigPath returns the path to the project config file this
// process would load/save, defaulting to ./dewey.yaml in the current
// working directory.
func GetUserConfigPath() string {
	wd, err := os.Getwd()
	if err != nil {
		return "dewey.yaml"
	}
	path, found, err := findProjectConfig(wd)
	if err == nil && found {
		return path
	}
	return filepath.Join(wd, "dewey.yaml")
}

// UserConfigExists reports whether GetUserConfigPath() names an
// existing file.
func UserConfigExists() bool {
	_, err := os.Stat(GetUserConfigPath())
	return err == nil
}
