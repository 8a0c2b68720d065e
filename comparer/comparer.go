// Package comparer runs a full comparison: acquire both documents, scope and
// parse them, diff the trees, optionally ask an evaluator for a semantic
// reading, then persist and dispatch the report.
package comparer

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"github.com/JohannesKaufmann/html-to-markdown/v2/converter"
	"github.com/JohannesKaufmann/html-to-markdown/v2/plugin/base"
	"github.com/JohannesKaufmann/html-to-markdown/v2/plugin/commonmark"
	"github.com/JohannesKaufmann/html-to-markdown/v2/plugin/table"
	"golang.org/x/net/html"
	"golang.org/x/sync/errgroup"

	"github.com/hazyhaar/domdiff/diff"
	"github.com/hazyhaar/domdiff/evaluate"
	"github.com/hazyhaar/domdiff/report"
	"github.com/hazyhaar/domdiff/sink"
	"github.com/hazyhaar/domdiff/snapshot"
	"github.com/hazyhaar/domdiff/store"
	"github.com/hazyhaar/domdiff/tree"
)

// ContextLimit caps the Markdown excerpt appended to the evaluator input, in runes.
const ContextLimit = 4000

var (
	// ErrInvalidRequest is returned when a request cannot be run as given.
	ErrInvalidRequest = errors.New("comparer: invalid request")

	// ErrNoStore is returned by history lookups when no store is configured.
	ErrNoStore = errors.New("comparer: no history store configured")
)

// Loader acquires one document. *source.Loader implements it.
type Loader interface {
	Load(ctx context.Context, ref string) (*snapshot.Snapshot, error)
}

// Request describes one comparison. Inline HTML takes precedence over the
// source reference of the same side.
type Request struct {
	SourceA  string `json:"source_a,omitempty"`
	SourceB  string `json:"source_b,omitempty"`
	HTMLA    string `json:"html_a,omitempty"`
	HTMLB    string `json:"html_b,omitempty"`
	Selector string `json:"selector,omitempty"`
	XPath    string `json:"xpath,omitempty"`
	Sanitize bool   `json:"sanitize,omitempty"`
	Evaluate bool   `json:"evaluate,omitempty"`
	Model    string `json:"model,omitempty"`
	Context  bool   `json:"context,omitempty"` // add a Markdown excerpt of side B to the evaluator input
}

func (r Request) ref(side int) (source, inline string) {
	if side == 1 {
		return r.SourceA, r.HTMLA
	}
	return r.SourceB, r.HTMLB
}

// Comparer wires acquisition, diffing, evaluation and delivery.
type Comparer struct {
	loader    Loader
	evaluator evaluate.Evaluator
	store     *store.Store
	sinks     sink.Sink
	sanitize  bool
	md        *converter.Converter
	logger    *slog.Logger
}

// Option configures a Comparer.
type Option func(*Comparer)

// WithEvaluator sets the evaluator used when a request asks for one.
func WithEvaluator(e evaluate.Evaluator) Option { return func(c *Comparer) { c.evaluator = e } }

// WithStore persists every successful report.
func WithStore(s *store.Store) Option { return func(c *Comparer) { c.store = s } }

// WithSink dispatches every successful report.
func WithSink(s sink.Sink) Option { return func(c *Comparer) { c.sinks = s } }

// WithSanitize sanitizes every document, whatever the request says.
func WithSanitize(on bool) Option { return func(c *Comparer) { c.sanitize = on } }

// WithLogger sets a custom logger.
func WithLogger(l *slog.Logger) Option { return func(c *Comparer) { c.logger = l } }

// New creates a Comparer around loader.
func New(loader Loader, opts ...Option) *Comparer {
	c := &Comparer{
		loader:    loader,
		evaluator: evaluate.New(evaluate.Config{}),
		logger:    slog.Default(),
		md: converter.NewConverter(
			converter.WithPlugins(
				base.NewBasePlugin(),
				commonmark.NewCommonmarkPlugin(),
				table.NewTablePlugin(),
			),
		),
	}
	for _, o := range opts {
		o(c)
	}
	return c
}

type side struct {
	snap *snapshot.Snapshot
	root *html.Node
}

// Compare runs req. With req.Evaluate set, an evaluation failure fails the
// call but the report built so far is returned with the error.
func (c *Comparer) Compare(ctx context.Context, req Request) (*report.Report, error) {
	if err := validate(req); err != nil {
		return nil, err
	}
	start := time.Now()

	var sides [2]side
	g, gctx := errgroup.WithContext(ctx)
	for i := range sides {
		n := i + 1
		g.Go(func() error {
			snap, err := c.acquire(gctx, req, n)
			if err != nil {
				return &StageError{Side: n, Stage: StageFetch, Err: err}
			}
			root, err := tree.ParseHTML(bytes.NewReader(snap.HTML), c.parseOptions(req)...)
			if err != nil {
				return &StageError{Side: n, Stage: StageParse, Err: err}
			}
			sides[i] = side{snap: snap, root: root}
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		c.logger.Warn("comparer: failed", "error", err)
		return nil, err
	}

	var res diff.Result
	if sides[0].snap.SameContent(sides[1].snap) {
		c.logger.Debug("comparer: byte-identical sources, skipping tree walk", "hash", sides[0].snap.HTMLHash)
		res = diff.NewResult(nil)
	} else {
		res = diff.Diff(tree.FromHTML(sides[0].root), tree.FromHTML(sides[1].root))
	}
	rep := report.New(sides[0].snap.Source, sides[1].snap.Source, res)
	rep.HashA = sides[0].snap.HTMLHash
	rep.HashB = sides[1].snap.HTMLHash

	if req.Evaluate {
		text := diff.Describe(res)
		if req.Context {
			text += c.contextExcerpt(sides[1])
		}
		ev, err := c.evaluator.Evaluate(ctx, text, req.Model)
		if err != nil {
			c.logger.Warn("comparer: evaluation failed", "id", rep.ID, "error", err)
			return rep, &StageError{Stage: StageEvaluate, Err: err}
		}
		rep.Evaluation = ev
	}

	c.deliver(ctx, rep)
	c.logger.Info("comparer: done",
		"id", rep.ID, "source_a", rep.SourceA, "source_b", rep.SourceB,
		"count", res.Count, "duration_ms", time.Since(start).Milliseconds())
	return rep, nil
}

func validate(req Request) error {
	for n := 1; n <= 2; n++ {
		src, inline := req.ref(n)
		if strings.TrimSpace(src) == "" && inline == "" {
			return fmt.Errorf("%w: source %d needs a reference or inline HTML", ErrInvalidRequest, n)
		}
	}
	return nil
}

func (c *Comparer) acquire(ctx context.Context, req Request, n int) (*snapshot.Snapshot, error) {
	src, inline := req.ref(n)
	if inline != "" {
		if src == "" {
			src = fmt.Sprintf("inline:%d", n)
		}
		return snapshot.Inline(src, inline), nil
	}
	return c.loader.Load(ctx, src)
}

func (c *Comparer) parseOptions(req Request) []tree.ParseOption {
	var opts []tree.ParseOption
	if req.Sanitize || c.sanitize {
		opts = append(opts, tree.SanitizeUGC())
	}
	if req.Selector != "" {
		opts = append(opts, tree.WithSelector(req.Selector))
	}
	if req.XPath != "" {
		opts = append(opts, tree.WithXPath(req.XPath))
	}
	return opts
}

// contextExcerpt renders the scoped new document as Markdown. Conversion
// failures only drop the excerpt.
func (c *Comparer) contextExcerpt(s side) string {
	raw, err := tree.Render(s.root)
	if err != nil {
		c.logger.Debug("comparer: render context failed", "error", err)
		return ""
	}
	var md string
	switch s.snap.Origin {
	case snapshot.OriginHTTP, snapshot.OriginBrowser:
		md, err = c.md.ConvertString(raw, converter.WithDomain(s.snap.Source))
	default:
		md, err = c.md.ConvertString(raw)
	}
	if err != nil {
		c.logger.Debug("comparer: markdown context failed", "error", err)
		return ""
	}
	md = strings.TrimSpace(md)
	if md == "" {
		return ""
	}
	if r := []rune(md); len(r) > ContextLimit {
		md = string(r[:ContextLimit]) + "\n[truncated]"
	}
	return "\nNew document (Markdown):\n" + md + "\n"
}

// deliver persists and dispatches rep. Failures are logged, never returned.
func (c *Comparer) deliver(ctx context.Context, rep *report.Report) {
	if c.store != nil {
		if err := c.store.Save(ctx, rep); err != nil {
			c.logger.Error("comparer: save failed", "id", rep.ID, "error", err)
		}
	}
	if c.sinks != nil {
		if err := c.sinks.Send(ctx, rep); err != nil {
			c.logger.Warn("comparer: sink failed", "id", rep.ID, "error", err)
		}
	}
}

// History lists stored comparisons, newest first.
func (c *Comparer) History(ctx context.Context, limit int) ([]store.Entry, error) {
	if c.store == nil {
		return nil, ErrNoStore
	}
	return c.store.List(ctx, limit)
}

// Lookup returns a stored report, or nil, nil when id is unknown.
func (c *Comparer) Lookup(ctx context.Context, id string) (*report.Report, error) {
	if c.store == nil {
		return nil, ErrNoStore
	}
	return c.store.Get(ctx, id)
}
