// Command domdiff compares two HTML documents and reports their structural
// differences.
//
// Usage:
//
//	domdiff old.html new.html                       # local files
//	domdiff -mode auto https://a.test https://b.test # fetch, render SPA shells
//	domdiff -selector main -format markdown a b      # scope both sides
//	domdiff -evaluate -context a b                   # add a model's reading
//	domdiff -serve :8080                             # HTTP API
//	domdiff -mcp                                     # MCP over stdio
//
// Exit status: 0 when the documents are identical, 1 when they differ,
// 2 on error.
package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"io"
	"log/slog"
	"os"
	"os/signal"
	"syscall"

	"github.com/modelcontextprotocol/go-sdk/mcp"

	"github.com/hazyhaar/domdiff/comparer"
	"github.com/hazyhaar/domdiff/config"
	"github.com/hazyhaar/domdiff/evaluate"
	"github.com/hazyhaar/domdiff/report"
	"github.com/hazyhaar/domdiff/server"
	"github.com/hazyhaar/domdiff/source"
	"github.com/hazyhaar/domdiff/store"
)

const version = "1.0.0"

const (
	exitIdentical = 0
	exitDifferent = 1
	exitError     = 2
)

func main() {
	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	code := run(ctx, os.Args[1:], os.Stdout, os.Stderr)
	stop()
	os.Exit(code)
}

type options struct {
	configPath string
	serve      string
	mcp        bool
	evaluate   bool
	context    bool
	model      string
	set        map[string]string
}

// apply copies explicitly set flags onto the loaded configuration.
func (o *options) apply(cfg *config.Config) {
	for name, v := range o.set {
		switch name {
		case "format":
			cfg.Output.Format = v
		case "color":
			cfg.Output.Color = v
		case "mode":
			cfg.Fetch.Mode = v
		case "selector":
			cfg.Parse.Selector = v
		case "xpath":
			cfg.Parse.XPath = v
		case "sanitize":
			cfg.Parse.Sanitize = v == "true"
		case "store":
			cfg.Store.Path = v
		case "log-level":
			cfg.Log.Level = v
		case "allow-private":
			cfg.Fetch.AllowPrivate = v == "true"
		}
	}
}

func run(ctx context.Context, args []string, stdout, stderr io.Writer) int {
	fs := flag.NewFlagSet("domdiff", flag.ContinueOnError)
	fs.SetOutput(stderr)
	var o options
	fs.StringVar(&o.configPath, "config", "", "path to domdiff.yaml config file")
	fs.String("format", "text", "output format: text, json, markdown")
	fs.String("color", "auto", "color: auto, always, never")
	fs.String("mode", "http", "URL acquisition: http, browser, auto")
	fs.String("selector", "", "CSS selector scoping both documents")
	fs.String("xpath", "", "XPath expression scoping both documents")
	fs.Bool("sanitize", false, "strip scripts and unsafe attributes before comparing")
	fs.BoolVar(&o.evaluate, "evaluate", false, "ask the configured model for a semantic evaluation")
	fs.StringVar(&o.model, "model", "", "model hint for -evaluate")
	fs.BoolVar(&o.context, "context", false, "include a Markdown excerpt of the new document in the evaluation")
	fs.String("store", "", "SQLite history database path")
	fs.String("log-level", "info", "log level: debug, info, warn, error")
	fs.Bool("allow-private", false, "allow loopback and private network URLs")
	fs.StringVar(&o.serve, "serve", "", "serve the HTTP API on this address instead of comparing")
	fs.BoolVar(&o.mcp, "mcp", false, "serve MCP over stdio instead of comparing")
	fs.Usage = func() {
		fmt.Fprintln(stderr, "usage: domdiff [flags] <source1> <source2>")
		fmt.Fprintln(stderr, "       domdiff -serve :8080 | -mcp")
		fs.PrintDefaults()
	}
	if err := fs.Parse(args); err != nil {
		if errors.Is(err, flag.ErrHelp) {
			return exitIdentical
		}
		return exitError
	}
	o.set = map[string]string{}
	fs.Visit(func(f *flag.Flag) { o.set[f.Name] = f.Value.String() })

	cfg, err := config.Load(o.configPath)
	if err != nil {
		fmt.Fprintln(stderr, "domdiff:", err)
		return exitError
	}
	o.apply(cfg)
	if err := cfg.Validate(); err != nil {
		fmt.Fprintln(stderr, "domdiff:", err)
		return exitError
	}
	logger := cfg.NewLogger(stderr)

	if o.serve == "" && !o.mcp && fs.NArg() != 2 {
		fs.Usage()
		return exitError
	}

	loader := source.NewLoader(cfg.SourceConfig(logger))
	defer loader.Close()

	copts := []comparer.Option{
		comparer.WithLogger(logger),
		comparer.WithEvaluator(evaluate.New(cfg.EvaluateConfig(logger))),
	}
	if cfg.Store.Path != "" {
		st, err := store.Open(cfg.Store.Path, cfg.StoreOptions()...)
		if err != nil {
			logger.Error("domdiff: open store", "error", err)
			return exitError
		}
		defer st.Close()
		copts = append(copts, comparer.WithStore(st))
	}
	if sinks := cfg.BuildSinks(stdout, logger); sinks != nil {
		defer sinks.Close()
		copts = append(copts, comparer.WithSink(sinks))
	}
	cmp := comparer.New(loader, copts...)

	switch {
	case o.serve != "":
		scfg := cfg.ServerConfig(logger)
		scfg.Addr = o.serve
		if err := server.New(cmp, scfg).ListenAndServe(ctx); err != nil {
			logger.Error("domdiff: serve", "error", err)
			return exitError
		}
		return exitIdentical
	case o.mcp:
		srv := mcp.NewServer(&mcp.Implementation{Name: "domdiff", Version: version}, nil)
		comparer.RegisterMCP(srv, cmp)
		if err := srv.Run(ctx, &mcp.StdioTransport{}); err != nil && ctx.Err() == nil {
			logger.Error("domdiff: mcp", "error", err)
			return exitError
		}
		return exitIdentical
	}

	return compare(ctx, cmp, cfg, o, fs.Arg(0), fs.Arg(1), stdout, stderr, logger)
}

func compare(ctx context.Context, cmp *comparer.Comparer, cfg *config.Config, o options,
	a, b string, stdout, stderr io.Writer, logger *slog.Logger) int {
	format, _ := report.ParseFormat(cfg.Output.Format)
	color, _ := report.ColorEnabled(cfg.Output.Color, stdout)

	rep, err := cmp.Compare(ctx, comparer.Request{
		SourceA:  a,
		SourceB:  b,
		Selector: cfg.Parse.Selector,
		XPath:    cfg.Parse.XPath,
		Sanitize: cfg.Parse.Sanitize,
		Evaluate: o.evaluate,
		Model:    o.model,
		Context:  o.context,
	})
	if rep != nil {
		if werr := report.Write(stdout, rep, format, report.Options{Color: color}); werr != nil {
			logger.Error("domdiff: write report", "error", werr)
			return exitError
		}
	}
	if err != nil {
		fmt.Fprintln(stderr, "domdiff:", err)
		return exitError
	}
	if rep.Result.Identical() {
		return exitIdentical
	}
	return exitDifferent
}
