package config

import (
	"fmt"
	"os"
	"path/filepath"
	"time"

	"gopkg.in/yaml.v3"
)

// StoreConfig represents result store configuration
type StoreConfig struct {
	// DBPath is the path to the SQLite results database
	DBPath string `yaml:"db_path"`

	// MaxRecordBytes is the hard ceiling the store enforces per result document
	MaxRecordBytes int `yaml:"max_record_bytes"`

	// SafeLimitBytes is the size the size guard keeps results under
	SafeLimitBytes int `yaml:"safe_limit_bytes"`
}

// BrowserConfig represents headless browser configuration
type BrowserConfig struct {
	// Headless runs the browser without a window
	Headless bool `yaml:"headless"`

	// StepTimeout is the default timeout of one setup script step
	StepTimeout time.Duration `yaml:"step_timeout"`

	// ExecPath overrides the browser executable; empty uses the default lookup
	ExecPath string `yaml:"exec_path"`

	ViewportWidth  int `yaml:"viewport_width"`
	ViewportHeight int `yaml:"viewport_height"`
}

// FixturesConfig represents fixture harness configuration
type FixturesConfig struct {
	// Dir holds the fixture documents
	Dir string `yaml:"dir"`

	// MapPath is where the check enablement map is persisted
	MapPath string `yaml:"map_path"`

	// DebugOverride runs every check regardless of fixture results. Results
	// produced this way are marked unaudited.
	DebugOverride bool `yaml:"debug_override"`
}

// ScreenshotsConfig represents screenshot storage configuration
type ScreenshotsConfig struct {
	// Dir stores screenshots as files. An explicit empty dir embeds them in
	// results as data URIs, which the size guard may drop.
	Dir string `yaml:"dir"`
}

// SecretsConfig represents secret resolution configuration
type SecretsConfig struct {
	// EnvPrefix is prepended to NAME when resolving ${ENV:NAME}
	EnvPrefix string `yaml:"env_prefix"`
}

// Config represents auto-a11y configuration options
type Config struct {
	// LogLevel sets the logging verbosity (trace, debug, info, warn, error)
	LogLevel string `yaml:"log_level"`

	// MaxConcurrency is the maximum number of pages tested at once (0 = one per page)
	MaxConcurrency int `yaml:"max_concurrency"`

	// PageTimeout bounds one page's multi-state run (0 = no timeout)
	PageTimeout time.Duration `yaml:"page_timeout"`

	// MultiState runs setup scripts and tests the states they reach
	MultiState bool `yaml:"multi_state"`

	Store       StoreConfig       `yaml:"store"`
	Browser     BrowserConfig     `yaml:"browser"`
	Fixtures    FixturesConfig    `yaml:"fixtures"`
	Screenshots ScreenshotsConfig `yaml:"screenshots"`
	Secrets     SecretsConfig     `yaml:"secrets"`
}

// DefaultConfig returns a Config with sensible default values
func DefaultConfig() *Config {
	return &Config{
		LogLevel:       "info",
		MaxConcurrency: 4,
		PageTimeout:    5 * time.Minute,
		MultiState:     true,
		Store: StoreConfig{
			DBPath:         filepath.Join(HomeDirName, "results.db"),
			MaxRecordBytes: 16 << 20,
			SafeLimitBytes: 15 << 20,
		},
		Browser: BrowserConfig{
			Headless:       true,
			StepTimeout:    10 * time.Second,
			ViewportWidth:  1280,
			ViewportHeight: 800,
		},
		Fixtures: FixturesConfig{
			Dir:     filepath.Join(HomeDirName, "fixtures"),
			MapPath: filepath.Join(HomeDirName, "enablement.json"),
		},
		Screenshots: ScreenshotsConfig{
			Dir: filepath.Join(HomeDirName, "screenshots"),
		},
		Secrets: SecretsConfig{
			EnvPrefix: "A11Y_",
		},
	}
}

// yamlConfig mirrors Config with durations as strings.
type yamlConfig struct {
	LogLevel       string      `yaml:"log_level"`
	MaxConcurrency int         `yaml:"max_concurrency"`
	PageTimeout    string      `yaml:"page_timeout"`
	MultiState     bool        `yaml:"multi_state"`
	Store          StoreConfig `yaml:"store"`
	Browser        struct {
		Headless       bool   `yaml:"headless"`
		StepTimeout    string `yaml:"step_timeout"`
		ExecPath       string `yaml:"exec_path"`
		ViewportWidth  int    `yaml:"viewport_width"`
		ViewportHeight int    `yaml:"viewport_height"`
	} `yaml:"browser"`
	Fixtures    FixturesConfig    `yaml:"fixtures"`
	Screenshots ScreenshotsConfig `yaml:"screenshots"`
	Secrets     SecretsConfig     `yaml:"secrets"`
}

// LoadConfig loads configuration from the specified file path
// If the file doesn't exist, returns default configuration without error
// If the file exists but is malformed, returns an error
func LoadConfig(path string) (*Config, error) {
	cfg := DefaultConfig()

	if _, err := os.Stat(path); os.IsNotExist(err) {
		return cfg, nil
	}

	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read config file: %w", err)
	}

	var yamlCfg yamlConfig
	if err := yaml.Unmarshal(data, &yamlCfg); err != nil {
		return nil, fmt.Errorf("failed to parse config file: %w", err)
	}
	// A second pass tells explicitly set keys apart from zero values.
	var rawMap map[string]interface{}
	if err := yaml.Unmarshal(data, &rawMap); err != nil {
		return nil, fmt.Errorf("failed to parse config file: %w", err)
	}

	if yamlCfg.LogLevel != "" {
		cfg.LogLevel = yamlCfg.LogLevel
	}
	if has(rawMap, "max_concurrency") {
		cfg.MaxConcurrency = yamlCfg.MaxConcurrency
	}
	if yamlCfg.PageTimeout != "" {
		d, err := time.ParseDuration(yamlCfg.PageTimeout)
		if err != nil {
			return nil, fmt.Errorf("invalid page_timeout format %q: %w", yamlCfg.PageTimeout, err)
		}
		cfg.PageTimeout = d
	}
	if has(rawMap, "multi_state") {
		cfg.MultiState = yamlCfg.MultiState
	}

	if store := section(rawMap, "store"); store != nil {
		if yamlCfg.Store.DBPath != "" {
			cfg.Store.DBPath = yamlCfg.Store.DBPath
		}
		if has(store, "max_record_bytes") {
			cfg.Store.MaxRecordBytes = yamlCfg.Store.MaxRecordBytes
		}
		if has(store, "safe_limit_bytes") {
			cfg.Store.SafeLimitBytes = yamlCfg.Store.SafeLimitBytes
		}
	}

	if browser := section(rawMap, "browser"); browser != nil {
		b := yamlCfg.Browser
		if has(browser, "headless") {
			cfg.Browser.Headless = b.Headless
		}
		if b.StepTimeout != "" {
			d, err := time.ParseDuration(b.StepTimeout)
			if err != nil {
				return nil, fmt.Errorf("invalid browser.step_timeout format %q: %w", b.StepTimeout, err)
			}
			cfg.Browser.StepTimeout = d
		}
		if has(browser, "exec_path") {
			cfg.Browser.ExecPath = b.ExecPath
		}
		if has(browser, "viewport_width") {
			cfg.Browser.ViewportWidth = b.ViewportWidth
		}
		if has(browser, "viewport_height") {
			cfg.Browser.ViewportHeight = b.ViewportHeight
		}
	}

	if fixtures := section(rawMap, "fixtures"); fixtures != nil {
		if yamlCfg.Fixtures.Dir != "" {
			cfg.Fixtures.Dir = yamlCfg.Fixtures.Dir
		}
		if yamlCfg.Fixtures.MapPath != "" {
			cfg.Fixtures.MapPath = yamlCfg.Fixtures.MapPath
		}
		if has(fixtures, "debug_override") {
			cfg.Fixtures.DebugOverride = yamlCfg.Fixtures.DebugOverride
		}
	}

	if section(rawMap, "screenshots") != nil {
		cfg.Screenshots.Dir = yamlCfg.Screenshots.Dir
	}
	if secrets := section(rawMap, "secrets"); secrets != nil && has(secrets, "env_prefix") {
		cfg.Secrets.EnvPrefix = yamlCfg.Secrets.EnvPrefix
	}

	return cfg, nil
}

func has(m map[string]interface{}, key string) bool {
	_, ok := m[key]
	return ok
}

func section(m map[string]interface{}, key string) map[string]interface{} {
	s, _ := m[key].(map[string]interface{})
	return s
}

// LoadConfigFromDir loads configuration from .a11y/config.yaml in the specified directory
// and resolves relative paths against that directory
func LoadConfigFromDir(dir string) (*Config, error) {
	cfg, err := LoadConfig(filepath.Join(dir, HomeDirName, "config.yaml"))
	if err != nil {
		return nil, err
	}
	cfg.ResolvePaths(dir)
	return cfg, nil
}

// ResolvePaths makes every relative path in the configuration relative to base
func (c *Config) ResolvePaths(base string) {
	for _, p := range []*string{&c.Store.DBPath, &c.Fixtures.Dir, &c.Fixtures.MapPath, &c.Screenshots.Dir} {
		if *p == "" || *p == ":memory:" || filepath.IsAbs(*p) {
			continue
		}
		*p = filepath.Join(base, *p)
	}
}

// MergeWithFlags merges CLI flags into the configuration
// Non-nil flag values override configuration values
// This allows CLI flags to take precedence over config file settings
func (c *Config) MergeWithFlags(maxConcurrency *int, pageTimeout *time.Duration, logLevel *string, debugOverride *bool, multiState *bool) {
	if maxConcurrency != nil {
		c.MaxConcurrency = *maxConcurrency
	}
	if pageTimeout != nil {
		c.PageTimeout = *pageTimeout
	}
	if logLevel != nil {
		c.LogLevel = *logLevel
	}
	if debugOverride != nil {
		c.Fixtures.DebugOverride = *debugOverride
	}
	if multiState != nil {
		c.MultiState = *multiState
	}
}

// Validate validates the configuration values
// Returns an error if any values are invalid
func (c *Config) Validate() error {
	if c.MaxConcurrency < 0 {
		return fmt.Errorf("max_concurrency must be >= 0, got %d", c.MaxConcurrency)
	}

	validLevels := map[string]bool{
		"trace": true,
		"debug": true,
		"info":  true,
		"warn":  true,
		"error": true,
	}
	if !validLevels[c.LogLevel] {
		return fmt.Errorf("invalid log_level %q, must be one of: trace, debug, info, warn, error", c.LogLevel)
	}

	// PageTimeout can be 0 (no timeout) or positive, negative is invalid
	if c.PageTimeout < 0 {
		return fmt.Errorf("page_timeout must be >= 0, got %v", c.PageTimeout)
	}

	if c.Store.DBPath == "" {
		return fmt.Errorf("store.db_path cannot be empty")
	}
	if c.Store.MaxRecordBytes <= 0 {
		return fmt.Errorf("store.max_record_bytes must be > 0, got %d", c.Store.MaxRecordBytes)
	}
	if c.Store.SafeLimitBytes <= 0 {
		return fmt.Errorf("store.safe_limit_bytes must be > 0, got %d", c.Store.SafeLimitBytes)
	}
	if c.Store.SafeLimitBytes >= c.Store.MaxRecordBytes {
		return fmt.Errorf("store.safe_limit_bytes (%d) must be below store.max_record_bytes (%d)",
			c.Store.SafeLimitBytes, c.Store.MaxRecordBytes)
	}

	if c.Browser.StepTimeout <= 0 {
		return fmt.Errorf("browser.step_timeout must be > 0, got %v", c.Browser.StepTimeout)
	}
	if c.Browser.ViewportWidth <= 0 || c.Browser.ViewportHeight <= 0 {
		return fmt.Errorf("browser viewport must be positive, got %dx%d", c.Browser.ViewportWidth, c.Browser.ViewportHeight)
	}

	if c.Fixtures.MapPath == "" {
		return fmt.Errorf("fixtures.map_path cannot be empty")
	}

	return nil
}
