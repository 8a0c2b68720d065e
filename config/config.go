// Package config loads domdiff settings from a YAML file, then applies
// defaults and DOMDIFF_* environment overrides.
package config

import (
	"errors"
	"fmt"
	"io"
	"log/slog"
	"os"
	"strings"
	"time"

	"github.com/kelseyhightower/envconfig"
	"gopkg.in/yaml.v3"

	"github.com/hazyhaar/domdiff/evaluate"
	"github.com/hazyhaar/domdiff/report"
	"github.com/hazyhaar/domdiff/server"
	"github.com/hazyhaar/domdiff/sink"
	"github.com/hazyhaar/domdiff/source"
	"github.com/hazyhaar/domdiff/store"
)

// EnvPrefix prefixes every environment override, e.g. DOMDIFF_EVALUATE_API_KEY.
const EnvPrefix = "DOMDIFF"

// Config is the top-level domdiff configuration.
type Config struct {
	Fetch    FetchConfig    `yaml:"fetch"`
	Browser  BrowserConfig  `yaml:"browser"`
	Parse    ParseConfig    `yaml:"parse"`
	Evaluate EvaluateConfig `yaml:"evaluate"`
	Output   OutputConfig   `yaml:"output"`
	Store    StoreConfig    `yaml:"store"`
	Sinks    []SinkConfig   `yaml:"sinks" ignored:"true"`
	Server   ServerConfig   `yaml:"server"`
	Log      LogConfig      `yaml:"log"`
}

// FetchConfig controls document acquisition.
type FetchConfig struct {
	Mode         string        `yaml:"mode"` // http | browser | auto
	AllowPrivate bool          `yaml:"allow_private" split_words:"true"`
	MaxBytes     int64         `yaml:"max_bytes" split_words:"true"`
	Timeout      time.Duration `yaml:"timeout"`
	Retries      int           `yaml:"retries"` // -1 disables retries
	UserAgent    string        `yaml:"user_agent" split_words:"true"`
}

// BrowserConfig controls the Chrome renderer.
type BrowserConfig struct {
	Remote           string        `yaml:"remote"`
	Bin              string        `yaml:"bin"`
	Headful          bool          `yaml:"headful"`
	DisableStealth   bool          `yaml:"disable_stealth" split_words:"true"`
	ResourceBlocking []string      `yaml:"resource_blocking" split_words:"true"`
	NavTimeout       time.Duration `yaml:"nav_timeout" split_words:"true"`
	Settle           time.Duration `yaml:"settle"`
}

// ParseConfig sets the default scope of both documents.
type ParseConfig struct {
	Sanitize bool   `yaml:"sanitize"`
	Selector string `yaml:"selector"`
	XPath    string `yaml:"xpath"`
}

// EvaluateConfig points at an OpenAI-compatible chat completion server.
type EvaluateConfig struct {
	Endpoint    string        `yaml:"endpoint"`
	APIKey      string        `yaml:"api_key" split_words:"true"`
	Model       string        `yaml:"model"`
	Temperature float64       `yaml:"temperature"`
	MaxInput    int           `yaml:"max_input" split_words:"true"`
	Timeout     time.Duration `yaml:"timeout"`
}

// OutputConfig sets CLI rendering defaults.
type OutputConfig struct {
	Format string `yaml:"format"` // text | json | markdown
	Color  string `yaml:"color"`  // auto | always | never
}

// StoreConfig enables the comparison history when Path is set.
type StoreConfig struct {
	Path        string `yaml:"path"`
	BusyTimeout int    `yaml:"busy_timeout_ms"`
	Synchronous string `yaml:"synchronous"`
}

// SinkConfig defines an output backend.
type SinkConfig struct {
	Type    string        `yaml:"type"` // stdout | webhook
	URL     string        `yaml:"url"`
	Secret  string        `yaml:"secret"`
	Retries int           `yaml:"retries"` // -1 disables retries
	Timeout time.Duration `yaml:"timeout"` // per attempt, default 10s
}

// ServerConfig controls the HTTP API.
type ServerConfig struct {
	Addr      string  `yaml:"addr"`
	RateLimit float64 `yaml:"rate_limit" split_words:"true"` // compare requests per second, 0 = unlimited
	Burst     int     `yaml:"burst"`
	MaxBody   int64   `yaml:"max_body" split_words:"true"`
}

// LogConfig controls the process logger.
type LogConfig struct {
	Level  string `yaml:"level"`  // debug | info | warn | error
	Format string `yaml:"format"` // json | text
}

// Load reads path (skipped when empty), then applies environment overrides
// and defaults.
func Load(path string) (*Config, error) {
	var cfg Config
	if path != "" {
		data, err := os.ReadFile(path)
		if err != nil {
			return nil, fmt.Errorf("config: read: %w", err)
		}
		if err := yaml.Unmarshal(data, &cfg); err != nil {
			return nil, fmt.Errorf("config: parse %s: %w", path, err)
		}
	}
	if err := envconfig.Process(EnvPrefix, &cfg); err != nil {
		return nil, fmt.Errorf("config: env: %w", err)
	}
	cfg.applyDefaults()
	return &cfg, nil
}

// Default returns the built-in configuration.
func Default() *Config {
	var cfg Config
	cfg.applyDefaults()
	return &cfg
}

func (c *Config) applyDefaults() {
	if c.Fetch.Mode == "" {
		c.Fetch.Mode = string(source.ModeHTTP)
	}
	if c.Fetch.MaxBytes <= 0 {
		c.Fetch.MaxBytes = source.DefaultMaxBytes
	}
	if c.Fetch.Timeout <= 0 {
		c.Fetch.Timeout = 30 * time.Second
	}
	if c.Fetch.Retries == 0 {
		c.Fetch.Retries = 2
	}
	if c.Fetch.UserAgent == "" {
		c.Fetch.UserAgent = source.DefaultUserAgent
	}
	if c.Browser.NavTimeout <= 0 {
		c.Browser.NavTimeout = 30 * time.Second
	}
	if c.Browser.ResourceBlocking == nil {
		c.Browser.ResourceBlocking = []string{"image", "font", "media"}
	}
	if c.Evaluate.Timeout <= 0 {
		c.Evaluate.Timeout = 60 * time.Second
	}
	if c.Output.Format == "" {
		c.Output.Format = string(report.FormatText)
	}
	if c.Output.Color == "" {
		c.Output.Color = "auto"
	}
	for i := range c.Sinks {
		if c.Sinks[i].Retries == 0 {
			c.Sinks[i].Retries = 3
		}
	}
	if c.Server.Addr == "" {
		c.Server.Addr = ":8080"
	}
	if c.Server.Burst <= 0 {
		c.Server.Burst = 5
	}
	if c.Server.MaxBody <= 0 {
		c.Server.MaxBody = 16 << 20
	}
	if c.Log.Level == "" {
		c.Log.Level = "info"
	}
	if c.Log.Format == "" {
		c.Log.Format = "json"
	}
}

// Validate reports every invalid setting at once.
func (c *Config) Validate() error {
	var errs []error
	if _, err := source.ParseMode(c.Fetch.Mode); err != nil {
		errs = append(errs, err)
	}
	if _, err := report.ParseFormat(c.Output.Format); err != nil {
		errs = append(errs, err)
	}
	switch strings.ToLower(c.Output.Color) {
	case "auto", "always", "never":
	default:
		errs = append(errs, fmt.Errorf("config: output.color %q (want auto, always or never)", c.Output.Color))
	}
	if _, err := ParseLevel(c.Log.Level); err != nil {
		errs = append(errs, err)
	}
	if f := strings.ToLower(c.Log.Format); f != "json" && f != "text" {
		errs = append(errs, fmt.Errorf("config: log.format %q (want json or text)", c.Log.Format))
	}
	switch strings.ToUpper(c.Store.Synchronous) {
	case "", "OFF", "NORMAL", "FULL", "EXTRA":
	default:
		errs = append(errs, fmt.Errorf("config: store.synchronous %q (want OFF, NORMAL, FULL or EXTRA)", c.Store.Synchronous))
	}
	if c.Store.BusyTimeout < 0 {
		errs = append(errs, fmt.Errorf("config: store.busy_timeout_ms must not be negative"))
	}
	if c.Server.RateLimit < 0 {
		errs = append(errs, fmt.Errorf("config: server.rate_limit must not be negative"))
	}
	for i, s := range c.Sinks {
		switch s.Type {
		case "stdout":
		case "webhook":
			if s.URL == "" {
				errs = append(errs, fmt.Errorf("config: sinks[%d]: webhook needs a url", i))
			}
		default:
			errs = append(errs, fmt.Errorf("config: sinks[%d]: unknown type %q", i, s.Type))
		}
	}
	return errors.Join(errs...)
}

// StoreOptions converts the store section into store.Open options. Unset
// fields keep the store's own defaults.
func (c *Config) StoreOptions() []store.Option {
	var opts []store.Option
	if c.Store.BusyTimeout > 0 {
		opts = append(opts, store.WithBusyTimeout(c.Store.BusyTimeout))
	}
	if c.Store.Synchronous != "" {
		opts = append(opts, store.WithSynchronous(strings.ToUpper(c.Store.Synchronous)))
	}
	return opts
}

// ParseLevel maps a level name to a slog.Level.
func ParseLevel(s string) (slog.Level, error) {
	switch strings.ToLower(s) {
	case "debug":
		return slog.LevelDebug, nil
	case "", "info":
		return slog.LevelInfo, nil
	case "warn", "warning":
		return slog.LevelWarn, nil
	case "error":
		return slog.LevelError, nil
	default:
		return slog.LevelInfo, fmt.Errorf("config: unknown log level %q", s)
	}
}

// NewLogger builds the process logger writing to w.
func (c *Config) NewLogger(w io.Writer) *slog.Logger {
	level, _ := ParseLevel(c.Log.Level)
	opts := &slog.HandlerOptions{Level: level}
	if strings.EqualFold(c.Log.Format, "text") {
		return slog.New(slog.NewTextHandler(w, opts))
	}
	return slog.New(slog.NewJSONHandler(w, opts))
}

// SourceConfig converts the fetch and browser sections.
func (c *Config) SourceConfig(logger *slog.Logger) source.Config {
	mode, _ := source.ParseMode(c.Fetch.Mode)
	return source.Config{
		Mode:         mode,
		AllowPrivate: c.Fetch.AllowPrivate,
		MaxBytes:     c.Fetch.MaxBytes,
		Timeout:      c.Fetch.Timeout,
		Retries:      c.Fetch.Retries,
		UserAgent:    c.Fetch.UserAgent,
		Logger:       logger,
		Browser: source.BrowserConfig{
			RemoteURL:        c.Browser.Remote,
			Bin:              c.Browser.Bin,
			Headful:          c.Browser.Headful,
			DisableStealth:   c.Browser.DisableStealth,
			ResourceBlocking: c.Browser.ResourceBlocking,
			NavTimeout:       c.Browser.NavTimeout,
			Settle:           c.Browser.Settle,
		},
	}
}

// EvaluateConfig converts the evaluate section.
func (c *Config) EvaluateConfig(logger *slog.Logger) evaluate.Config {
	return evaluate.Config{
		Endpoint:    c.Evaluate.Endpoint,
		APIKey:      c.Evaluate.APIKey,
		Model:       c.Evaluate.Model,
		Temperature: c.Evaluate.Temperature,
		MaxInput:    c.Evaluate.MaxInput,
		Timeout:     c.Evaluate.Timeout,
		Logger:      logger,
	}
}

// ServerConfig converts the server section.
func (c *Config) ServerConfig(logger *slog.Logger) server.Config {
	return server.Config{
		Addr:      c.Server.Addr,
		RateLimit: c.Server.RateLimit,
		Burst:     c.Server.Burst,
		MaxBody:   c.Server.MaxBody,
		Logger:    logger,
	}
}

// BuildSinks creates the configured sinks behind a Router, or nil when
// none are configured.
func (c *Config) BuildSinks(stdout io.Writer, logger *slog.Logger) sink.Sink {
	if len(c.Sinks) == 0 {
		return nil
	}
	if logger == nil {
		logger = slog.Default()
	}
	var sinks []sink.Sink
	for _, s := range c.Sinks {
		switch s.Type {
		case "stdout":
			sinks = append(sinks, sink.NewStdout(stdout))
		case "webhook":
			opts := []sink.WebhookOption{
				sink.WithWebhookRetries(max(s.Retries, 0)),
				sink.WithWebhookLogger(logger),
			}
			if s.Secret != "" {
				opts = append(opts, sink.WithWebhookSecret(s.Secret))
			}
			if s.Timeout > 0 {
				opts = append(opts, sink.WithWebhookTimeout(s.Timeout))
			}
			sinks = append(sinks, sink.NewWebhook(s.URL, opts...))
		}
	}
	r := sink.NewRouter(logger, sinks...)
	if r.Len() == 0 {
		return nil
	}
	return r
}
