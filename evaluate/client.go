package evaluate

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"strings"
	"unicode/utf8"
)

const systemPrompt = `You review structural changes between two versions of a web page.
The user message lists change records (JSON, one per line) followed by a
human-readable summary, and optionally a Markdown rendering of the new page.
Answer with a single JSON object and nothing else, with exactly these fields:
  "summary": one or two sentences describing what changed,
  "change_types": short labels such as "content", "layout", "navigation", "metadata", "styling",
  "impacted_sections": the page areas affected, named by role (header, footer, article body, ...),
  "likely_intent": the most plausible reason for the change.
Paths use the form /TAG[i] where i is the child position under TAG.`

// chatClient implements Evaluator using the OpenAI /v1/chat/completions format.
type chatClient struct {
	endpoint string
	client   *http.Client
	cfg      Config
}

func newChatClient(cfg Config) *chatClient {
	return &chatClient{
		endpoint: strings.TrimRight(cfg.Endpoint, "/"),
		client:   &http.Client{Timeout: cfg.Timeout},
		cfg:      cfg,
	}
}

type chatMessage struct {
	Role    string `json:"role"`
	Content string `json:"content"`
}

type chatRequest struct {
	Model          string         `json:"model"`
	Messages       []chatMessage  `json:"messages"`
	Temperature    float64        `json:"temperature"`
	ResponseFormat map[string]any `json:"response_format,omitempty"`
}

type chatResponse struct {
	Model   string `json:"model"`
	Choices []struct {
		Message chatMessage `json:"message"`
	} `json:"choices"`
}

func (c *chatClient) Evaluate(ctx context.Context, diffText, model string) (*Evaluation, error) {
	if model == "" {
		model = c.cfg.Model
	}
	body, err := json.Marshal(chatRequest{
		Model: model,
		Messages: []chatMessage{
			{Role: "system", Content: systemPrompt},
			{Role: "user", Content: truncate(diffText, c.cfg.MaxInput)},
		},
		Temperature:    c.cfg.Temperature,
		ResponseFormat: map[string]any{"type": "json_object"},
	})
	if err != nil {
		return nil, fmt.Errorf("evaluate: marshal request: %w", err)
	}

	url := c.endpoint + "/v1/chat/completions"
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, url, bytes.NewReader(body))
	if err != nil {
		return nil, fmt.Errorf("evaluate: new request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")
	if c.cfg.APIKey != "" {
		req.Header.Set("Authorization", "Bearer "+c.cfg.APIKey)
	}

	resp, err := c.client.Do(req)
	if err != nil {
		return nil, fmt.Errorf("evaluate: POST %s: %w", url, err)
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		respBody, _ := io.ReadAll(io.LimitReader(resp.Body, 512))
		return nil, &UpstreamError{StatusCode: resp.StatusCode, Body: strings.TrimSpace(string(respBody))}
	}

	var out chatResponse
	if err := json.NewDecoder(resp.Body).Decode(&out); err != nil {
		return nil, fmt.Errorf("%w: decode: %v", ErrBadResponse, err)
	}
	if len(out.Choices) == 0 {
		return nil, fmt.Errorf("%w: no choices", ErrBadResponse)
	}

	ev, err := parseEvaluation(out.Choices[0].Message.Content)
	if err != nil {
		return nil, err
	}
	ev.Model = out.Model
	if ev.Model == "" {
		ev.Model = model
	}
	c.cfg.Logger.Debug("evaluate: done", "model", ev.Model, "change_types", ev.ChangeTypes)
	return ev, nil
}

// parseEvaluation decodes the assistant content. Some servers wrap JSON in a
// Markdown code fence even when asked not to.
func parseEvaluation(content string) (*Evaluation, error) {
	s := strings.TrimSpace(content)
	if strings.HasPrefix(s, "```") {
		s = strings.TrimPrefix(s, "```json")
		s = strings.TrimPrefix(s, "```")
		s = strings.TrimSuffix(strings.TrimSpace(s), "```")
	}
	if s == "" {
		return nil, fmt.Errorf("%w: empty content", ErrBadResponse)
	}
	var ev Evaluation
	if err := json.Unmarshal([]byte(s), &ev); err != nil {
		return nil, fmt.Errorf("%w: content is not JSON: %v", ErrBadResponse, err)
	}
	if ev.Summary == "" && len(ev.ChangeTypes) == 0 && ev.LikelyIntent == "" {
		return nil, fmt.Errorf("%w: no assessment fields", ErrBadResponse)
	}
	return &ev, nil
}

// truncate cuts s to at most n bytes without splitting a rune.
func truncate(s string, n int) string {
	if len(s) <= n {
		return s
	}
	cut := n
	for cut > 0 && !utf8.RuneStart(s[cut]) {
		cut--
	}
	return s[:cut] + "\n[truncated]"
}
