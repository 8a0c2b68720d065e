package sink

import (
	"context"
	"crypto/hmac"
	"crypto/sha256"
	"encoding/hex"
	"encoding/json"
	"fmt"
	"log/slog"
	"net/http"
	"time"

	"github.com/hashicorp/go-retryablehttp"

	"github.com/hazyhaar/domdiff/report"
)

// SignatureHeader carries "sha256=<hex HMAC of the body>" when a secret is set.
const SignatureHeader = "X-Domdiff-Signature"

// Webhook POSTs JSON to a URL through a retrying client with exponential
// backoff. The signature is computed once; the body is identical on every
// attempt.
type Webhook struct {
	url    string
	client *retryablehttp.Client
	secret []byte
	logger *slog.Logger
}

// WebhookOption configures a Webhook sink.
type WebhookOption func(*webhookConfig)

type webhookConfig struct {
	retries int
	backoff time.Duration
	timeout time.Duration
	secret  []byte
	logger  *slog.Logger
}

// WithWebhookRetries sets the maximum number of retries. Default: 3.
func WithWebhookRetries(n int) WebhookOption {
	return func(c *webhookConfig) { c.retries = n }
}

// WithWebhookBackoff sets the first retry delay; it doubles per attempt. Default: 1s.
func WithWebhookBackoff(d time.Duration) WebhookOption {
	return func(c *webhookConfig) { c.backoff = d }
}

// WithWebhookSecret signs every body with HMAC-SHA256.
func WithWebhookSecret(secret string) WebhookOption {
	return func(c *webhookConfig) { c.secret = []byte(secret) }
}

// WithWebhookTimeout sets the per-attempt timeout. Default: 10s.
func WithWebhookTimeout(d time.Duration) WebhookOption {
	return func(c *webhookConfig) { c.timeout = d }
}

// WithWebhookLogger sets a custom logger.
func WithWebhookLogger(l *slog.Logger) WebhookOption {
	return func(c *webhookConfig) { c.logger = l }
}

// NewWebhook creates a Webhook sink targeting the given URL.
func NewWebhook(url string, opts ...WebhookOption) *Webhook {
	cfg := webhookConfig{
		retries: 3,
		backoff: time.Second,
		timeout: 10 * time.Second,
		logger:  slog.Default(),
	}
	for _, o := range opts {
		o(&cfg)
	}
	if cfg.retries < 0 {
		cfg.retries = 0
	}
	if cfg.backoff <= 0 {
		cfg.backoff = time.Second
	}

	logger := cfg.logger
	rc := retryablehttp.NewClient()
	rc.RetryMax = cfg.retries
	rc.RetryWaitMin = cfg.backoff
	rc.RetryWaitMax = cfg.backoff << uint(max(cfg.retries, 1))
	rc.HTTPClient.Timeout = cfg.timeout
	rc.Logger = nil
	rc.RequestLogHook = func(_ retryablehttp.Logger, req *http.Request, retry int) {
		if retry > 0 {
			logger.Warn("webhook: retrying", "url", req.URL.Redacted(), "attempt", retry+1)
		}
	}
	rc.ResponseLogHook = func(_ retryablehttp.Logger, resp *http.Response) {
		if resp.StatusCode < 200 || resp.StatusCode > 299 {
			logger.Warn("webhook: bad status", "url", resp.Request.URL.Redacted(), "status", resp.StatusCode)
		}
	}

	return &Webhook{url: url, client: rc, secret: cfg.secret, logger: logger}
}

func (w *Webhook) Send(ctx context.Context, rep *report.Report) error {
	body, err := json.Marshal(envelope{Type: "report", Data: rep})
	if err != nil {
		return fmt.Errorf("webhook: marshal: %w", err)
	}

	req, err := retryablehttp.NewRequestWithContext(ctx, http.MethodPost, w.url, body)
	if err != nil {
		return fmt.Errorf("webhook: new request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")
	if len(w.secret) > 0 {
		req.Header.Set(SignatureHeader, Sign(w.secret, body))
	}

	resp, err := w.client.Do(req)
	if err != nil {
		return fmt.Errorf("webhook: %w", err)
	}
	resp.Body.Close()
	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		return fmt.Errorf("webhook: status %d", resp.StatusCode)
	}
	return nil
}

func (w *Webhook) Close() error {
	w.client.HTTPClient.CloseIdleConnections()
	return nil
}

// Sign returns the signature header value for body.
func Sign(secret, body []byte) string {
	mac := hmac.New(sha256.New, secret)
	mac.Write(body)
	return "sha256=" + hex.EncodeToString(mac.Sum(nil))
}
