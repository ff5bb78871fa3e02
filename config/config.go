package config

import (
	_ "embed"
	"errors"
	"fmt"
	"log"
	"net"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/pelletier/go-toml/v2"
	"gopkg.in/yaml.v3"

	"webtoondl/parser"
)

//go:embed sample_config.toml
var sampleConfig string

// Server contains the HTTP surface configuration.
type Server struct {
	Bind                 string   `toml:"bind" yaml:"bind"`
	StaticDir            string   `toml:"static_dir" yaml:"static_dir"`
	MaxConcurrent        int      `toml:"max_concurrent" yaml:"max_concurrent"`
	ProgressIntervalMS   int      `toml:"progress_interval_ms" yaml:"progress_interval_ms"`
	ProgressIdleSeconds  int      `toml:"progress_idle_seconds" yaml:"progress_idle_seconds"`
	TaskRetentionSeconds int      `toml:"task_retention_seconds" yaml:"task_retention_seconds"`
	CORSOrigins          []string `toml:"cors_origins" yaml:"cors_origins"`
}

// Browser contains headless Chrome settings.
type Browser struct {
	Headless                 bool   `toml:"headless" yaml:"headless"`
	NoSandbox                bool   `toml:"no_sandbox" yaml:"no_sandbox"`
	ExecPath                 string `toml:"exec_path" yaml:"exec_path"`
	UserAgent                string `toml:"user_agent" yaml:"user_agent"`
	AcceptLanguage           string `toml:"accept_language" yaml:"accept_language"`
	NavigationTimeoutSeconds int    `toml:"navigation_timeout_seconds" yaml:"navigation_timeout_seconds"`
	WaitTimeoutSeconds       int    `toml:"wait_timeout_seconds" yaml:"wait_timeout_seconds"`
}

// Site selects the catalog plugin.
type Site struct {
	Name       string `toml:"name" yaml:"name"`
	BaseURL    string `toml:"base_url" yaml:"base_url"`
	SearchMode string `toml:"search_mode" yaml:"search_mode"`
}

// Fetch contains image download settings.
type Fetch struct {
	UserAgent      string `toml:"user_agent" yaml:"user_agent"`
	Referer        string `toml:"referer" yaml:"referer"`
	TimeoutSeconds int    `toml:"timeout_seconds" yaml:"timeout_seconds"`
	Workers        int    `toml:"workers" yaml:"workers"`
	IntervalMS     int    `toml:"interval_ms" yaml:"interval_ms"`
}

// Output contains packaging settings.
type Output struct {
	Dir          string `toml:"dir" yaml:"dir"`
	Format       string `toml:"format" yaml:"format"`
	MaxPageWidth int    `toml:"max_page_width" yaml:"max_page_width"`
	JPEGQuality  int    `toml:"jpeg_quality" yaml:"jpeg_quality"`
}

// Logging contains log file settings.
type Logging struct {
	Dir        string `toml:"dir" yaml:"dir"`
	File       string `toml:"file" yaml:"file"`
	MaxSizeMB  int    `toml:"max_size_mb" yaml:"max_size_mb"`
	MaxBackups int    `toml:"max_backups" yaml:"max_backups"`
}

// Config is the full application configuration.
type Config struct {
	Server  Server  `toml:"server" yaml:"server"`
	Browser Browser `toml:"browser" yaml:"browser"`
	Site    Site    `toml:"site" yaml:"site"`
	Fetch   Fetch   `toml:"fetch" yaml:"fetch"`
	Output  Output  `toml:"output" yaml:"output"`
	Logging Logging `toml:"logging" yaml:"logging"`
}

// DefaultPath returns ~/.config/webtoondl/config.toml with ~ expanded.
func DefaultPath() (string, error) {
	dir, err := parser.ExpandPath(defaultConfigDir)
	if err != nil {
		return "", fmt.Errorf("cannot resolve configuration directory: %w", err)
	}
	return filepath.Join(dir, "config.toml"), nil
}

// Load reads the configuration file at path. An empty path means the default
// location; a missing default file is not an error and yields defaults.
// The returned string is the path that was actually read (empty if none).
func Load(path string) (Config, string, error) {
	cfg := Default()

	explicit := path != ""
	if !explicit {
		p, err := DefaultPath()
		if err != nil {
			return cfg, "", err
		}
		path = p
	}

	expanded, err := parser.ExpandPath(path)
	if err != nil {
		return cfg, "", err
	}

	data, err := os.ReadFile(expanded)
	switch {
	case errors.Is(err, os.ErrNotExist) && !explicit:
		log.Printf("[Config] No config file at %s, using defaults", expanded)
		expanded = ""
	case err != nil:
		return cfg, "", fmt.Errorf("error reading config file %s: %w", expanded, err)
	default:
		if err := decode(expanded, data, &cfg); err != nil {
			return cfg, "", fmt.Errorf("error parsing config file %s: %w", expanded, err)
		}
		log.Printf("[Config] Loaded %s", expanded)
	}

	cfg.applyEnv()
	if err := cfg.normalize(); err != nil {
		return cfg, "", err
	}
	if err := cfg.Validate(); err != nil {
		return cfg, "", err
	}
	return cfg, expanded, nil
}

func decode(path string, data []byte, cfg *Config) error {
	switch strings.ToLower(filepath.Ext(path)) {
	case ".yaml", ".yml":
		return yaml.Unmarshal(data, cfg)
	default:
		return toml.Unmarshal(data, cfg)
	}
}

// applyEnv lets PORT override the port of the bind address.
func (c *Config) applyEnv() {
	port := strings.TrimSpace(os.Getenv("PORT"))
	if port == "" {
		return
	}
	host, _, err := net.SplitHostPort(c.Server.Bind)
	if err != nil {
		host = c.Server.Bind
	}
	c.Server.Bind = net.JoinHostPort(host, port)
}

func (c *Config) normalize() error {
	var err error
	if c.Output.Dir, err = parser.ExpandPath(c.Output.Dir); err != nil {
		return fmt.Errorf("output dir: %w", err)
	}
	if c.Logging.Dir, err = parser.ExpandPath(c.Logging.Dir); err != nil {
		return fmt.Errorf("logging dir: %w", err)
	}
	if c.Server.StaticDir, err = parser.ExpandPath(c.Server.StaticDir); err != nil {
		return fmt.Errorf("static dir: %w", err)
	}

	c.Site.BaseURL = strings.TrimRight(strings.TrimSpace(c.Site.BaseURL), "/")
	c.Site.SearchMode = strings.ToLower(strings.TrimSpace(c.Site.SearchMode))
	c.Output.Format = strings.ToLower(strings.TrimSpace(c.Output.Format))

	if c.Fetch.Workers < 1 {
		c.Fetch.Workers = 1
	}
	if c.Fetch.UserAgent == "" {
		c.Fetch.UserAgent = c.Browser.UserAgent
	}
	return nil
}

// Validate reports the first invalid setting.
func (c Config) Validate() error {
	if c.Server.Bind == "" {
		return errors.New("server.bind must be set")
	}
	if c.Server.MaxConcurrent < 1 {
		return fmt.Errorf("server.max_concurrent must be >= 1 (got %d)", c.Server.MaxConcurrent)
	}
	if c.Server.ProgressIntervalMS <= 0 {
		return fmt.Errorf("server.progress_interval_ms must be > 0 (got %d)", c.Server.ProgressIntervalMS)
	}
	if c.Site.Name == "" {
		return errors.New("site.name must be set")
	}
	if !strings.HasPrefix(c.Site.BaseURL, "http://") && !strings.HasPrefix(c.Site.BaseURL, "https://") {
		return fmt.Errorf("site.base_url must be an http(s) URL (got %q)", c.Site.BaseURL)
	}
	if c.Site.SearchMode != SearchModeBrowser && c.Site.SearchMode != SearchModeHTTP {
		return fmt.Errorf("site.search_mode must be %q or %q (got %q)", SearchModeBrowser, SearchModeHTTP, c.Site.SearchMode)
	}
	if c.Browser.NavigationTimeoutSeconds <= 0 || c.Browser.WaitTimeoutSeconds <= 0 {
		return errors.New("browser timeouts must be > 0")
	}
	if c.Fetch.TimeoutSeconds <= 0 {
		return fmt.Errorf("fetch.timeout_seconds must be > 0 (got %d)", c.Fetch.TimeoutSeconds)
	}
	if c.Fetch.IntervalMS < 0 {
		return fmt.Errorf("fetch.interval_ms must be >= 0 (got %d)", c.Fetch.IntervalMS)
	}
	if c.Output.Dir == "" {
		return errors.New("output.dir must be set")
	}
	if c.Output.MaxPageWidth <= 0 {
		return fmt.Errorf("output.max_page_width must be > 0 (got %d)", c.Output.MaxPageWidth)
	}
	return nil
}

// ProgressInterval is the SSE poll interval.
func (s Server) ProgressInterval() time.Duration {
	return time.Duration(s.ProgressIntervalMS) * time.Millisecond
}

// ProgressIdle is how long a progress stream waits for an unknown task.
func (s Server) ProgressIdle() time.Duration {
	return time.Duration(s.ProgressIdleSeconds) * time.Second
}

// TaskRetention is how long finished tasks stay visible to progress streams.
func (s Server) TaskRetention() time.Duration {
	return time.Duration(s.TaskRetentionSeconds) * time.Second
}

func (b Browser) NavigationTimeout() time.Duration {
	return time.Duration(b.NavigationTimeoutSeconds) * time.Second
}

func (b Browser) WaitTimeout() time.Duration {
	return time.Duration(b.WaitTimeoutSeconds) * time.Second
}

func (f Fetch) Timeout() time.Duration {
	return time.Duration(f.TimeoutSeconds) * time.Second
}

func (f Fetch) Interval() time.Duration {
	return time.Duration(f.IntervalMS) * time.Millisecond
}

// LogPath is the absolute path of the main log file.
func (l Logging) LogPath() string {
	return filepath.Join(l.Dir, l.File)
}

// SampleConfig returns the annotated sample configuration.
func SampleConfig() string {
	return sampleConfig
}

// WriteSample writes the sample configuration to path, creating parent
// directories. An existing file is left untouched unless overwrite is set.
func WriteSample(path string, overwrite bool) error {
	expanded, err := parser.ExpandPath(path)
	if err != nil {
		return err
	}

	if _, err := os.Stat(expanded); err == nil && !overwrite {
		return fmt.Errorf("config file %s already exists", expanded)
	}

	if err := os.MkdirAll(filepath.Dir(expanded), 0755); err != nil {
		return fmt.Errorf("error creating directory %s: %w", filepath.Dir(expanded), err)
	}

	return os.WriteFile(expanded, []byte(sampleConfig), 0644)
}
