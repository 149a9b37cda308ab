package config

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strconv"
	"strings"
	"time"

	"github.com/joho/godotenv"
	"gopkg.in/yaml.v3"
)

// Config holds all configuration options for the document scraper
type Config struct {
	// Source site and login credentials
	Site SiteConfig `yaml:"site" json:"site"`

	// Headless browser settings
	Browser BrowserConfig `yaml:"browser" json:"browser"`

	// Iteration settings
	Scrape ScrapeConfig `yaml:"scrape" json:"scrape"`

	// Output settings
	Output OutputConfig `yaml:"output" json:"output"`

	// Prometheus endpoint
	Metrics MetricsConfig `yaml:"metrics" json:"metrics"`

	// Logging configuration
	Logging LoggingConfig `yaml:"logging" json:"logging"`
}

// SiteConfig describes the legacy web application and how to log in to it
type SiteConfig struct {
	Origin           string `yaml:"origin" json:"origin"`
	Username         string `yaml:"username" json:"username"`
	Password         string `yaml:"password" json:"-"`
	UsernameSelector string `yaml:"username_selector" json:"username_selector"`
	PasswordSelector string `yaml:"password_selector" json:"password_selector"`
	SubmitSelector   string `yaml:"submit_selector" json:"submit_selector"`
	LoginURLPattern  string `yaml:"login_url_pattern" json:"login_url_pattern"`
}

// BrowserConfig holds the render-surface settings
type BrowserConfig struct {
	Headless          bool          `yaml:"headless" json:"headless"`
	RemoteURL         string        `yaml:"remote_url" json:"remote_url"`
	Bin               string        `yaml:"bin" json:"bin"`
	Stealth           bool          `yaml:"stealth" json:"stealth"`
	IgnoreCertErrors  bool          `yaml:"ignore_cert_errors" json:"ignore_cert_errors"`
	ResourceBlocking  []string      `yaml:"resource_blocking" json:"resource_blocking"`
	NavigationTimeout time.Duration `yaml:"navigation_timeout" json:"navigation_timeout"`
	FrameProbeTimeout time.Duration `yaml:"frame_probe_timeout" json:"frame_probe_timeout"`
	MarkerTimeout     time.Duration `yaml:"marker_timeout" json:"marker_timeout"`
	LoginTimeout      time.Duration `yaml:"login_timeout" json:"login_timeout"`
	// DocumentTimeout bounds all work on one ID; zero derives it from the
	// navigation, probe and marker timeouts
	DocumentTimeout   time.Duration `yaml:"document_timeout" json:"document_timeout"`
	MaxFrameDepth     int           `yaml:"max_frame_depth" json:"max_frame_depth"`
}

// ScrapeConfig holds the iteration settings
type ScrapeConfig struct {
	Types        []string `yaml:"types" json:"types"`
	StartID      *int     `yaml:"start_id,omitempty" json:"start_id,omitempty"`
	EndID        *int     `yaml:"end_id,omitempty" json:"end_id,omitempty"`
	RecycleEvery int      `yaml:"recycle_every" json:"recycle_every"`
}

// Range returns the inclusive ID range. ok is false until both ends are set;
// zero is a valid document ID.
func (s ScrapeConfig) Range() (start, end int, ok bool) {
	if s.StartID == nil || s.EndID == nil {
		return 0, 0, false
	}
	return *s.StartID, *s.EndID, true
}

// OutputConfig holds output directory configuration
type OutputConfig struct {
	BaseDirectory string `yaml:"base_directory" json:"base_directory"`
	Format        string `yaml:"format" json:"format"`
	Timestamped   bool   `yaml:"timestamped" json:"timestamped"`
}

// MetricsConfig holds the Prometheus exposition settings
type MetricsConfig struct {
	Enabled bool   `yaml:"enabled" json:"enabled"`
	Addr    string `yaml:"addr" json:"addr"`
}

// LoggingConfig holds logging configuration
type LoggingConfig struct {
	Level string `yaml:"level" json:"level"`
	File  string `yaml:"file" json:"file"`
	JSON  bool   `yaml:"json" json:"json"`
}

// DefaultConfig returns a Config instance with sensible defaults
func DefaultConfig() *Config {
	return &Config{
		Site: SiteConfig{
			Origin:           "https://maa-m.onlinepo.com",
			UsernameSelector: "#tbUserName",
			PasswordSelector: "#tbPassword",
			SubmitSelector:   "#btnLogin",
			LoginURLPattern:  "Login",
		},
		Browser: BrowserConfig{
			Headless:          true,
			Stealth:           false,
			IgnoreCertErrors:  false,
			ResourceBlocking:  []string{"images", "fonts", "media"},
			NavigationTimeout: 15 * time.Second,
			FrameProbeTimeout: 5 * time.Second,
			MarkerTimeout:     10 * time.Second,
			LoginTimeout:      15 * time.Second,
			DocumentTimeout:   45 * time.Second,
			MaxFrameDepth:     3,
		},
		Scrape: ScrapeConfig{
			RecycleEvery: 50,
		},
		Output: OutputConfig{
			BaseDirectory: "./downloads",
			Format:        "csv",
			Timestamped:   true,
		},
		Metrics: MetricsConfig{
			Enabled: false,
			Addr:    ":9090",
		},
		Logging: LoggingConfig{
			Level: "info",
		},
	}
}

// LoadFromEnv loads configuration from environment variables
func (c *Config) LoadFromEnv() error {
	// The legacy deployment only knew CPS_USERNAME / CPS_PASSWORD
	if username := firstEnv("POSCRAPER_USERNAME", "CPS_USERNAME"); username != "" {
		c.Site.Username = username
	}
	if password := firstEnv("POSCRAPER_PASSWORD", "CPS_PASSWORD"); password != "" {
		c.Site.Password = password
	}
	if origin := os.Getenv("POSCRAPER_ORIGIN"); origin != "" {
		c.Site.Origin = origin
	}

	if remote := os.Getenv("POSCRAPER_BROWSER_REMOTE"); remote != "" {
		c.Browser.RemoteURL = remote
	}
	if headless := os.Getenv("POSCRAPER_HEADLESS"); headless != "" {
		c.Browser.Headless = strings.ToLower(headless) != "false"
	}

	if recycle := os.Getenv("POSCRAPER_RECYCLE_EVERY"); recycle != "" {
		val, err := strconv.Atoi(recycle)
		if err != nil {
			return fmt.Errorf("invalid POSCRAPER_RECYCLE_EVERY: %w", err)
		}
		c.Scrape.RecycleEvery = val
	}

	if timeout := os.Getenv("POSCRAPER_DOCUMENT_TIMEOUT"); timeout != "" {
		val, err := time.ParseDuration(timeout)
		if err != nil {
			return fmt.Errorf("invalid POSCRAPER_DOCUMENT_TIMEOUT: %w", err)
		}
		c.Browser.DocumentTimeout = val
	}

	if outputDir := os.Getenv("POSCRAPER_OUTPUT_DIR"); outputDir != "" {
		c.Output.BaseDirectory = outputDir
	}
	if format := os.Getenv("POSCRAPER_OUTPUT_FORMAT"); format != "" {
		c.Output.Format = format
	}

	if addr := os.Getenv("POSCRAPER_METRICS_ADDR"); addr != "" {
		c.Metrics.Enabled = true
		c.Metrics.Addr = addr
	}

	if logLevel := os.Getenv("POSCRAPER_LOG_LEVEL"); logLevel != "" {
		c.Logging.Level = logLevel
	}

	return nil
}

func firstEnv(keys ...string) string {
	for _, key := range keys {
		if v := os.Getenv(key); v != "" {
			return v
		}
	}
	return ""
}

// LoadFromFile loads configuration from a YAML file
func (c *Config) LoadFromFile(path string) error {
	// If path is empty, try default locations
	if path == "" {
		path = c.findConfigFile()
		if path == "" {
			return nil // No config file found, not an error
		}
	}

	data, err := os.ReadFile(path)
	if err != nil {
		return fmt.Errorf("failed to read config file: %w", err)
	}

	if err := yaml.Unmarshal(data, c); err != nil {
		return fmt.Errorf("failed to parse config file: %w", err)
	}

	return nil
}

// findConfigFile searches for config file in standard locations
func (c *Config) findConfigFile() string {
	home := os.Getenv("HOME")
	locations := []string{
		".poscraper.yaml",
		".poscraper.yml",
		filepath.Join(home, ".config", "poscraper", "config.yaml"),
		filepath.Join(home, ".config", "poscraper", "config.yml"),
	}

	for _, loc := range locations {
		if _, err := os.Stat(loc); err == nil {
			return loc
		}
	}

	return ""
}

// Validate checks if the configuration is valid
func (c *Config) Validate() error {
	var errs []error

	if c.Site.Origin == "" {
		errs = append(errs, errors.New("site origin is required"))
	} else if !strings.HasPrefix(c.Site.Origin, "http://") && !strings.HasPrefix(c.Site.Origin, "https://") {
		errs = append(errs, errors.New("site origin must start with http:// or https://"))
	}
	if c.Site.UsernameSelector == "" || c.Site.PasswordSelector == "" || c.Site.SubmitSelector == "" {
		errs = append(errs, errors.New("login selectors are required"))
	}

	if c.Scrape.RecycleEvery <= 0 {
		errs = append(errs, errors.New("recycle_every must be positive"))
	}
	if (c.Scrape.StartID != nil && *c.Scrape.StartID < 0) || (c.Scrape.EndID != nil && *c.Scrape.EndID < 0) {
		errs = append(errs, errors.New("document IDs cannot be negative"))
	}
	if start, end, ok := c.Scrape.Range(); ok && start > end {
		errs = append(errs, errors.New("start_id must not exceed end_id"))
	}

	for name, d := range map[string]time.Duration{
		"navigation_timeout":  c.Browser.NavigationTimeout,
		"frame_probe_timeout": c.Browser.FrameProbeTimeout,
		"marker_timeout":      c.Browser.MarkerTimeout,
		"login_timeout":       c.Browser.LoginTimeout,
	} {
		if d <= 0 {
			errs = append(errs, fmt.Errorf("%s must be positive", name))
		}
	}
	if c.Browser.DocumentTimeout < 0 {
		errs = append(errs, errors.New("document_timeout cannot be negative"))
	}
	if c.Browser.MaxFrameDepth < 1 {
		errs = append(errs, errors.New("max_frame_depth must be at least 1"))
	}

	if c.Output.BaseDirectory == "" {
		errs = append(errs, errors.New("output directory is required"))
	}
	validFormats := map[string]bool{"csv": true, "json": true}
	if !validFormats[strings.ToLower(c.Output.Format)] {
		errs = append(errs, errors.New("output format must be csv or json"))
	}

	if c.Metrics.Enabled && c.Metrics.Addr == "" {
		errs = append(errs, errors.New("metrics address is required when metrics are enabled"))
	}

	validLogLevels := map[string]bool{
		"debug": true, "info": true, "warn": true, "error": true,
	}
	if !validLogLevels[strings.ToLower(c.Logging.Level)] {
		errs = append(errs, errors.New("invalid log level"))
	}

	if len(errs) > 0 {
		return errors.Join(errs...)
	}

	return nil
}

// Save saves the configuration to a file
func (c *Config) Save(path string) error {
	data, err := yaml.Marshal(c)
	if err != nil {
		return fmt.Errorf("failed to marshal config: %w", err)
	}

	dir := filepath.Dir(path)
	if err := os.MkdirAll(dir, 0755); err != nil {
		return fmt.Errorf("failed to create config directory: %w", err)
	}

	if err := os.WriteFile(path, data, 0600); err != nil {
		return fmt.Errorf("failed to write config file: %w", err)
	}

	return nil
}

// MergeCommandLineFlags merges command line flags into the configuration
func (c *Config) MergeCommandLineFlags(flags map[string]interface{}) {
	if origin, ok := flags["origin"].(string); ok && origin != "" {
		c.Site.Origin = origin
	}
	if types, ok := flags["types"].([]string); ok && len(types) > 0 {
		c.Scrape.Types = types
	}
	if start, ok := flags["start"].(int); ok {
		c.Scrape.StartID = &start
	}
	if end, ok := flags["end"].(int); ok {
		c.Scrape.EndID = &end
	}
	if recycle, ok := flags["recycle-every"].(int); ok && recycle > 0 {
		c.Scrape.RecycleEvery = recycle
	}
	if headful, ok := flags["headful"].(bool); ok && headful {
		c.Browser.Headless = false
	}
	if remote, ok := flags["remote"].(string); ok && remote != "" {
		c.Browser.RemoteURL = remote
	}
	if outputDir, ok := flags["output"].(string); ok && outputDir != "" {
		c.Output.BaseDirectory = outputDir
	}
	if format, ok := flags["format"].(string); ok && format != "" {
		c.Output.Format = format
	}
	if addr, ok := flags["metrics-addr"].(string); ok && addr != "" {
		c.Metrics.Enabled = true
		c.Metrics.Addr = addr
	}
	if logLevel, ok := flags["log-level"].(string); ok && logLevel != "" {
		c.Logging.Level = logLevel
	}
}

// Load loads configuration from all sources with proper precedence
// Precedence order: Command line flags > Environment variables > .env file > Config file > Defaults
func Load(configPath string, flags map[string]interface{}) (*Config, error) {
	_ = godotenv.Load(".env")
	_ = godotenv.Load(filepath.Join(os.Getenv("HOME"), ".poscraper.env"))

	config := DefaultConfig()

	if err := config.LoadFromFile(configPath); err != nil {
		return nil, fmt.Errorf("failed to load config file: %w", err)
	}

	if err := config.LoadFromEnv(); err != nil {
		return nil, fmt.Errorf("failed to load environment variables: %w", err)
	}

	config.MergeCommandLineFlags(flags)

	if err := config.Validate(); err != nil {
		return nil, fmt.Errorf("configuration validation failed: %w", err)
	}

	return config, nil
}
