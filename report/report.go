// Package report assembles the outcome of one comparison and renders it as
// terminal text, JSON or Markdown.
package report

import (
	"fmt"
	"io"
	"os"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/muesli/termenv"

	"github.com/hazyhaar/domdiff/diff"
	"github.com/hazyhaar/domdiff/evaluate"
)

// Report is a finished comparison.
type Report struct {
	ID         string               `json:"id"`
	SourceA    string               `json:"source_a"`
	SourceB    string               `json:"source_b"`
	HashA      string               `json:"hash_a"`
	HashB      string               `json:"hash_b"`
	Result     diff.Result          `json:"result"`
	Evaluation *evaluate.Evaluation `json:"evaluation,omitempty"`
	CreatedAt  int64                `json:"created_at"` // epoch milliseconds
}

// New stamps a report with a UUIDv7 and the current time.
func New(sourceA, sourceB string, res diff.Result) *Report {
	return &Report{
		ID:        uuid.Must(uuid.NewV7()).String(),
		SourceA:   sourceA,
		SourceB:   sourceB,
		Result:    res,
		CreatedAt: time.Now().UnixMilli(),
	}
}

// Format is an output rendering.
type Format string

const (
	FormatText     Format = "text"
	FormatJSON     Format = "json"
	FormatMarkdown Format = "markdown"
)

// ParseFormat validates a format name. Empty means FormatText.
func ParseFormat(s string) (Format, error) {
	switch f := Format(strings.ToLower(strings.TrimSpace(s))); f {
	case "":
		return FormatText, nil
	case "md":
		return FormatMarkdown, nil
	case FormatText, FormatJSON, FormatMarkdown:
		return f, nil
	default:
		return "", fmt.Errorf("report: unknown format %q (want text, json or markdown)", s)
	}
}

// ColorEnabled resolves a color mode (auto, always, never) for w. Mode names
// are case-insensitive. In auto mode color is used only when w is a terminal
// whose environment allows it (NO_COLOR, CLICOLOR, CLICOLOR_FORCE).
func ColorEnabled(mode string, w io.Writer) (bool, error) {
	switch strings.ToLower(strings.TrimSpace(mode)) {
	case "always":
		return true, nil
	case "never":
		return false, nil
	case "", "auto":
		f, ok := w.(*os.File)
		if !ok || f == nil {
			return false, nil
		}
		return termenv.NewOutput(f).EnvColorProfile() != termenv.Ascii, nil
	default:
		return false, fmt.Errorf("report: unknown color mode %q (want auto, always or never)", mode)
	}
}
