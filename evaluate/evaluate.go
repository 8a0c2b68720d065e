// Package evaluate turns a textual diff into a short semantic assessment
// through any OpenAI-compatible chat completion server (vLLM, Ollama,
// OpenAI itself).
//
// Usage:
//
//	ev := evaluate.New(evaluate.Config{
//	    Endpoint: "http://localhost:11434",
//	    Model:    "llama3.1",
//	})
//	res, err := ev.Evaluate(ctx, diff.Describe(result), "")
package evaluate

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"
)

var (
	// ErrNotConfigured is returned by the evaluator built without an endpoint.
	ErrNotConfigured = errors.New("evaluate: no evaluation endpoint configured")

	// ErrBadResponse is returned when the server answers 2xx but the payload
	// carries no usable assessment.
	ErrBadResponse = errors.New("evaluate: malformed evaluation response")
)

// UpstreamError is returned when the evaluation server answers outside 2xx.
type UpstreamError struct {
	StatusCode int
	Body       string
}

func (e *UpstreamError) Error() string {
	return fmt.Sprintf("evaluate: upstream HTTP %d: %s", e.StatusCode, e.Body)
}

// Evaluation is the semantic assessment of a diff.
type Evaluation struct {
	Summary          string   `json:"summary"`
	ChangeTypes      []string `json:"change_types"`
	ImpactedSections []string `json:"impacted_sections"`
	LikelyIntent     string   `json:"likely_intent"`
	Model            string   `json:"model,omitempty"`
}

// Evaluator assesses a flattened diff. model overrides the configured
// default when non-empty.
type Evaluator interface {
	Evaluate(ctx context.Context, diffText, model string) (*Evaluation, error)
}

// Func adapts a plain function to Evaluator.
type Func func(ctx context.Context, diffText, model string) (*Evaluation, error)

func (f Func) Evaluate(ctx context.Context, diffText, model string) (*Evaluation, error) {
	return f(ctx, diffText, model)
}

// Config configures the evaluation client.
type Config struct {
	// Endpoint is the base URL of the server (e.g. "http://localhost:11434").
	// If empty, New returns an evaluator that fails with ErrNotConfigured.
	Endpoint string `json:"endpoint" yaml:"endpoint"`

	// APIKey is sent as a bearer token when set.
	APIKey string `json:"-" yaml:"api_key"`

	// Model is the default model name.
	Model string `json:"model" yaml:"model"`

	// Temperature for sampling. Default: 0.
	Temperature float64 `json:"temperature" yaml:"temperature"`

	// MaxInput caps the diff text sent upstream, in bytes. Default: 32 KiB.
	MaxInput int `json:"max_input" yaml:"max_input"`

	// Timeout per HTTP request. Default: 60s.
	Timeout time.Duration `json:"timeout" yaml:"timeout"`

	Logger *slog.Logger `json:"-" yaml:"-"`
}

func (c *Config) defaults() {
	if c.Model == "" {
		c.Model = "gpt-4o-mini"
	}
	if c.MaxInput <= 0 {
		c.MaxInput = 32 << 10
	}
	if c.Timeout <= 0 {
		c.Timeout = 60 * time.Second
	}
	if c.Logger == nil {
		c.Logger = slog.Default()
	}
}

// New creates an Evaluator from config.
func New(cfg Config) Evaluator {
	cfg.defaults()
	if cfg.Endpoint == "" {
		return notConfigured{}
	}
	return newChatClient(cfg)
}

type notConfigured struct{}

func (notConfigured) Evaluate(context.Context, string, string) (*Evaluation, error) {
	return nil, ErrNotConfigured
}
