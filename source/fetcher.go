package source

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"time"

	"github.com/hashicorp/go-retryablehttp"
	"golang.org/x/net/html/charset"

	"github.com/hazyhaar/domdiff/snapshot"
)

// DefaultMaxBytes caps fetched and read documents (10 MiB).
const DefaultMaxBytes int64 = 10 << 20

// MaxRedirects caps the redirect hops followed by a single GET.
const MaxRedirects = 5

// ErrTooManyRedirects is returned once a GET exceeds MaxRedirects hops.
var ErrTooManyRedirects = errors.New("source: too many redirects")

// DefaultUserAgent is sent with every GET.
const DefaultUserAgent = "Mozilla/5.0 (compatible; domdiff/1.0)"

// StatusError is returned when the server answers outside 2xx.
type StatusError struct {
	URL        string
	StatusCode int
}

func (e *StatusError) Error() string {
	return fmt.Sprintf("source: GET %s: HTTP %d", e.URL, e.StatusCode)
}

// Fetcher performs HTTP GETs with retries and produces Snapshots.
type Fetcher struct {
	client   *http.Client
	ua       string
	maxBytes int64
	logger   *slog.Logger
}

// FetcherOption configures a Fetcher.
type FetcherOption func(*fetcherConfig)

type fetcherConfig struct {
	retries      int
	timeout      time.Duration
	ua           string
	maxBytes     int64
	allowPrivate bool
	logger       *slog.Logger
}

// WithRetries sets the number of retries on transport errors and 5xx. Default: 2.
func WithRetries(n int) FetcherOption {
	return func(c *fetcherConfig) { c.retries = n }
}

// WithTimeout bounds each attempt. Default: 30s.
func WithTimeout(d time.Duration) FetcherOption {
	return func(c *fetcherConfig) { c.timeout = d }
}

// WithUserAgent sets the User-Agent header.
func WithUserAgent(ua string) FetcherOption {
	return func(c *fetcherConfig) { c.ua = ua }
}

// WithMaxBytes caps the body size.
func WithMaxBytes(n int64) FetcherOption {
	return func(c *fetcherConfig) { c.maxBytes = n }
}

// WithAllowPrivate lets redirects land on loopback or private addresses.
// Without it every redirect hop goes through ValidateURL.
func WithAllowPrivate(allow bool) FetcherOption {
	return func(c *fetcherConfig) { c.allowPrivate = allow }
}

// WithFetchLogger sets a custom logger.
func WithFetchLogger(l *slog.Logger) FetcherOption {
	return func(c *fetcherConfig) { c.logger = l }
}

// NewFetcher creates a Fetcher backed by a retrying HTTP client.
func NewFetcher(opts ...FetcherOption) *Fetcher {
	cfg := fetcherConfig{
		retries:  2,
		timeout:  30 * time.Second,
		ua:       DefaultUserAgent,
		maxBytes: DefaultMaxBytes,
		logger:   slog.Default(),
	}
	for _, o := range opts {
		o(&cfg)
	}

	rc := retryablehttp.NewClient()
	rc.RetryMax = cfg.retries
	rc.RetryWaitMin = 250 * time.Millisecond
	rc.RetryWaitMax = 5 * time.Second
	rc.HTTPClient.Timeout = cfg.timeout
	rc.HTTPClient.CheckRedirect = func(req *http.Request, via []*http.Request) error {
		if len(via) >= MaxRedirects {
			return fmt.Errorf("%w (%d)", ErrTooManyRedirects, len(via))
		}
		if err := ValidateURL(req.URL.String(), cfg.allowPrivate); err != nil {
			return fmt.Errorf("source: redirect to %s blocked: %w", req.URL.Redacted(), err)
		}
		return nil
	}
	rc.CheckRetry = checkRetry
	rc.Logger = nil
	// Hand the last response back so non-2xx becomes a StatusError.
	rc.ErrorHandler = retryablehttp.PassthroughErrorHandler

	return &Fetcher{
		client:   rc.StandardClient(),
		ua:       cfg.ua,
		maxBytes: cfg.maxBytes,
		logger:   cfg.logger,
	}
}

// checkRetry never retries a request the redirect guard refused.
func checkRetry(ctx context.Context, resp *http.Response, err error) (bool, error) {
	if errors.Is(err, ErrPrivateAddress) || errors.Is(err, ErrUnsafeScheme) || errors.Is(err, ErrTooManyRedirects) {
		return false, err
	}
	return retryablehttp.DefaultRetryPolicy(ctx, resp, err)
}

// Fetch GETs pageURL and returns its body decoded to UTF-8.
func (f *Fetcher) Fetch(ctx context.Context, pageURL string) (*snapshot.Snapshot, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, pageURL, nil)
	if err != nil {
		return nil, fmt.Errorf("source: new request: %w", err)
	}
	req.Header.Set("User-Agent", f.ua)
	req.Header.Set("Accept", "text/html,application/xhtml+xml,application/xml;q=0.9,*/*;q=0.8")
	req.Header.Set("Accept-Language", "en-US,en;q=0.5")

	resp, err := f.client.Do(req)
	if err != nil {
		return nil, fmt.Errorf("source: GET %s: %w", pageURL, err)
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		return nil, &StatusError{URL: pageURL, StatusCode: resp.StatusCode}
	}

	raw, err := readLimited(resp.Body, f.maxBytes)
	if err != nil {
		return nil, fmt.Errorf("source: read %s: %w", pageURL, err)
	}

	ct := resp.Header.Get("Content-Type")
	body, err := toUTF8(raw, ct)
	if err != nil {
		return nil, fmt.Errorf("source: decode %s: %w", pageURL, err)
	}

	snap := snapshot.New(pageURL, snapshot.OriginHTTP, body)
	snap.ContentType = ct
	snap.StatusCode = resp.StatusCode

	f.logger.Debug("source: fetched",
		"url", pageURL, "status", resp.StatusCode, "size", len(body))
	return snap, nil
}

// toUTF8 transcodes raw using the charset from the Content-Type header or
// the document's own <meta> declaration.
func toUTF8(raw []byte, contentType string) ([]byte, error) {
	r, err := charset.NewReader(bytes.NewReader(raw), contentType)
	if err != nil {
		return nil, err
	}
	var buf bytes.Buffer
	if _, err := buf.ReadFrom(r); err != nil {
		return nil, err
	}
	return buf.Bytes(), nil
}
