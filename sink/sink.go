// Package sink defines output backends for finished comparison reports.
package sink

import (
	"context"

	"github.com/hazyhaar/domdiff/report"
)

// Sink delivers reports to a backend (stdout, webhook, in-process callback).
type Sink interface {
	Send(ctx context.Context, rep *report.Report) error
	Close() error
}

type envelope struct {
	Type string `json:"type"`
	Data any    `json:"data"`
}
