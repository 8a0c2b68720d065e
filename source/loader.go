// Package source acquires the two documents of a comparison: over HTTP,
// through a headless browser, or from local files.
package source

import (
	"context"
	"fmt"
	"log/slog"
	"net/url"
	"strings"
	"time"

	"github.com/hazyhaar/domdiff/snapshot"
	"github.com/hazyhaar/domdiff/source/internal/browser"
)

// Mode selects how URLs are acquired.
type Mode string

const (
	ModeHTTP    Mode = "http"    // plain GET only
	ModeBrowser Mode = "browser" // always render in Chrome
	ModeAuto    Mode = "auto"    // GET, render when the result looks like an SPA shell
)

// ParseMode validates a mode string. Empty means ModeHTTP.
func ParseMode(s string) (Mode, error) {
	switch m := Mode(strings.ToLower(strings.TrimSpace(s))); m {
	case "":
		return ModeHTTP, nil
	case ModeHTTP, ModeBrowser, ModeAuto:
		return m, nil
	default:
		return "", fmt.Errorf("source: unknown mode %q (want http, browser or auto)", s)
	}
}

// BrowserConfig configures the Chrome renderer.
type BrowserConfig struct {
	RemoteURL        string
	Bin              string
	Headful          bool
	DisableStealth   bool
	ResourceBlocking []string
	NavTimeout       time.Duration
	Settle           time.Duration
}

// Config configures a Loader.
type Config struct {
	Mode         Mode
	AllowPrivate bool // permit loopback/private URLs (local fixture servers)
	MaxBytes     int64
	Timeout      time.Duration
	Retries      int
	UserAgent    string
	Browser      BrowserConfig
	Logger       *slog.Logger
}

func (c *Config) defaults() {
	if c.Mode == "" {
		c.Mode = ModeHTTP
	}
	if c.MaxBytes <= 0 {
		c.MaxBytes = DefaultMaxBytes
	}
	if c.Timeout <= 0 {
		c.Timeout = 30 * time.Second
	}
	if c.Retries < 0 {
		c.Retries = 0
	}
	if c.UserAgent == "" {
		c.UserAgent = DefaultUserAgent
	}
	if c.Logger == nil {
		c.Logger = slog.Default()
	}
}

// Renderer renders a URL into a serialised DOM.
type Renderer interface {
	Render(ctx context.Context, pageURL string) ([]byte, error)
}

// Loader resolves a source reference (URL or path) into a Snapshot.
type Loader struct {
	cfg      Config
	fetcher  *Fetcher
	renderer Renderer
	browser  *browser.Manager
}

// NewLoader creates a Loader. Chrome is only launched on the first
// browser-mode load.
func NewLoader(cfg Config) *Loader {
	cfg.defaults()
	l := &Loader{
		cfg: cfg,
		fetcher: NewFetcher(
			WithRetries(cfg.Retries),
			WithTimeout(cfg.Timeout),
			WithUserAgent(cfg.UserAgent),
			WithMaxBytes(cfg.MaxBytes),
			WithAllowPrivate(cfg.AllowPrivate),
			WithFetchLogger(cfg.Logger),
		),
	}
	l.browser = browser.NewManager(browser.Config{
		RemoteURL:        cfg.Browser.RemoteURL,
		Bin:              cfg.Browser.Bin,
		Headful:          cfg.Browser.Headful,
		Stealth:          !cfg.Browser.DisableStealth,
		ResourceBlocking: cfg.Browser.ResourceBlocking,
		NavTimeout:       cfg.Browser.NavTimeout,
		Settle:           cfg.Browser.Settle,
		URLGuard:         guardFor(cfg.AllowPrivate),
		Logger:           cfg.Logger,
	})
	l.renderer = l.browser
	return l
}

// guardFor returns the browser's per-request check, nil when private
// targets are allowed.
func guardFor(allowPrivate bool) func(string) error {
	if allowPrivate {
		return nil
	}
	return func(rawURL string) error { return ValidateURL(rawURL, false) }
}

// SetRenderer replaces the Chrome renderer (tests, alternative engines).
func (l *Loader) SetRenderer(r Renderer) { l.renderer = r }

// Close releases the browser if one was started.
func (l *Loader) Close() error {
	return l.browser.Close()
}

// IsURL reports whether ref has a URL scheme other than file.
func IsURL(ref string) bool {
	u, err := url.Parse(ref)
	if err != nil || u.Scheme == "" || len(u.Scheme) == 1 { // C:\ paths
		return false
	}
	return !strings.EqualFold(u.Scheme, "file")
}

// Load acquires ref: http(s) URLs per the configured mode, file:// URLs and
// bare paths from disk.
func (l *Loader) Load(ctx context.Context, ref string) (*snapshot.Snapshot, error) {
	ref = strings.TrimSpace(ref)
	if ref == "" {
		return nil, fmt.Errorf("source: empty reference")
	}

	if !IsURL(ref) {
		path := ref
		if strings.HasPrefix(strings.ToLower(ref), "file://") {
			u, err := url.Parse(ref)
			if err != nil {
				return nil, fmt.Errorf("source: invalid file URL: %w", err)
			}
			path = u.Path
		}
		return ReadFile(path, l.cfg.MaxBytes)
	}

	if err := ValidateURL(ref, l.cfg.AllowPrivate); err != nil {
		return nil, err
	}

	switch l.cfg.Mode {
	case ModeBrowser:
		return l.render(ctx, ref)
	case ModeAuto:
		snap, err := l.fetcher.Fetch(ctx, ref)
		if err != nil {
			return nil, err
		}
		if IsSufficient(snap.HTML) {
			return snap, nil
		}
		l.cfg.Logger.Info("source: document looks client-rendered, escalating to browser", "url", ref)
		return l.render(ctx, ref)
	default:
		return l.fetcher.Fetch(ctx, ref)
	}
}

func (l *Loader) render(ctx context.Context, ref string) (*snapshot.Snapshot, error) {
	body, err := l.renderer.Render(ctx, ref)
	if err != nil {
		return nil, err
	}
	snap := snapshot.New(ref, snapshot.OriginBrowser, body)
	snap.ContentType = "text/html; charset=utf-8"
	return snap, nil
}
