package config

import (
	"bytes"
	"context"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/hazyhaar/domdiff/diff"
	"github.com/hazyhaar/domdiff/report"
	"github.com/hazyhaar/domdiff/source"
)

func writeConfig(t *testing.T, body string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "domdiff.yaml")
	if err := os.WriteFile(path, []byte(body), 0o644); err != nil {
		t.Fatal(err)
	}
	return path
}

func TestLoad_Defaults(t *testing.T) {
	cfg, err := Load("")
	if err != nil {
		t.Fatal(err)
	}
	if cfg.Fetch.Mode != "http" || cfg.Fetch.Retries != 2 || cfg.Fetch.Timeout != 30*time.Second {
		t.Errorf("fetch: got %+v", cfg.Fetch)
	}
	if cfg.Output.Format != "text" || cfg.Output.Color != "auto" || cfg.Log.Level != "info" {
		t.Errorf("output/log: got %+v %+v", cfg.Output, cfg.Log)
	}
	if err := cfg.Validate(); err != nil {
		t.Fatalf("defaults should validate: %v", err)
	}
}

func TestLoad_File(t *testing.T) {
	path := writeConfig(t, `
fetch:
  mode: auto
  timeout: 5s
  retries: -1
parse:
  selector: main
evaluate:
  endpoint: http://localhost:11434
  model: llama3.1
store:
  path: /tmp/domdiff.db
sinks:
  - type: webhook
    url: https://hooks.example.test/domdiff
    secret: s3cret
    timeout: 3s
server:
  rate_limit: 2.5
log:
  level: debug
  format: text
`)
	cfg, err := Load(path)
	if err != nil {
		t.Fatal(err)
	}
	if cfg.Fetch.Mode != "auto" || cfg.Fetch.Timeout != 5*time.Second || cfg.Fetch.Retries != -1 {
		t.Errorf("fetch: got %+v", cfg.Fetch)
	}
	if cfg.Parse.Selector != "main" || cfg.Evaluate.Model != "llama3.1" || cfg.Store.Path != "/tmp/domdiff.db" {
		t.Errorf("sections: got %+v %+v %+v", cfg.Parse, cfg.Evaluate, cfg.Store)
	}
	if len(cfg.Sinks) != 1 || cfg.Sinks[0].Retries != 3 || cfg.Sinks[0].Timeout != 3*time.Second {
		t.Errorf("sinks: got %+v", cfg.Sinks)
	}
	if cfg.Server.RateLimit != 2.5 || cfg.Server.Addr != ":8080" {
		t.Errorf("server: got %+v", cfg.Server)
	}
	if err := cfg.Validate(); err != nil {
		t.Fatal(err)
	}

	sc := cfg.SourceConfig(nil)
	if sc.Mode != source.ModeAuto || sc.Retries != -1 {
		t.Errorf("source config: got %+v", sc)
	}
	if cfg.BuildSinks(nil, nil) == nil {
		t.Error("sinks not built")
	}
}

func TestBuildSinks_WebhookTimeout(t *testing.T) {
	release := make(chan struct{})
	srv := httptest.NewServer(http.HandlerFunc(func(http.ResponseWriter, *http.Request) { <-release }))
	defer srv.Close()
	defer close(release)

	cfg := Default()
	cfg.Sinks = []SinkConfig{{Type: "webhook", URL: srv.URL, Retries: -1, Timeout: 20 * time.Millisecond}}
	s := cfg.BuildSinks(nil, nil)
	if s == nil {
		t.Fatal("sinks not built")
	}
	start := time.Now()
	if err := s.Send(context.Background(), report.New("a", "b", diff.NewResult(nil))); err == nil {
		t.Fatal("expected timeout error")
	}
	if time.Since(start) > 2*time.Second {
		t.Fatalf("timeout not applied: took %v", time.Since(start))
	}

	cfg.Sinks = nil
	if cfg.BuildSinks(nil, nil) != nil {
		t.Fatal("no sinks should build a nil sink")
	}
}

func TestLoad_EnvOverrides(t *testing.T) {
	path := writeConfig(t, "evaluate:\n  model: from-file\n")
	t.Setenv("DOMDIFF_EVALUATE_API_KEY", "sk-env")
	t.Setenv("DOMDIFF_EVALUATE_MODEL", "from-env")
	t.Setenv("DOMDIFF_FETCH_ALLOW_PRIVATE", "true")
	t.Setenv("DOMDIFF_BROWSER_RESOURCE_BLOCKING", "image,font")
	t.Setenv("DOMDIFF_SERVER_ADDR", ":9999")

	cfg, err := Load(path)
	if err != nil {
		t.Fatal(err)
	}
	if cfg.Evaluate.APIKey != "sk-env" || cfg.Evaluate.Model != "from-env" {
		t.Errorf("evaluate: got %+v", cfg.Evaluate)
	}
	if !cfg.Fetch.AllowPrivate || cfg.Server.Addr != ":9999" {
		t.Errorf("fetch/server: got %+v %+v", cfg.Fetch, cfg.Server)
	}
	if strings.Join(cfg.Browser.ResourceBlocking, ",") != "image,font" {
		t.Errorf("blocking: got %v", cfg.Browser.ResourceBlocking)
	}
}

func TestLoad_Errors(t *testing.T) {
	if _, err := Load(filepath.Join(t.TempDir(), "missing.yaml")); err == nil {
		t.Fatal("missing file should fail")
	}
	if _, err := Load(writeConfig(t, "fetch: [not a map")); err == nil {
		t.Fatal("bad yaml should fail")
	}
}

func TestValidate(t *testing.T) {
	cfg := Default()
	cfg.Fetch.Mode = "curl"
	cfg.Output.Format = "pdf"
	cfg.Log.Level = "loud"
	cfg.Sinks = []SinkConfig{{Type: "webhook"}, {Type: "nats"}}
	cfg.Store.Synchronous = "sometimes"
	err := cfg.Validate()
	if err == nil {
		t.Fatal("expected errors")
	}
	for _, want := range []string{"curl", "pdf", "loud", "needs a url", "nats", "sometimes"} {
		if !strings.Contains(err.Error(), want) {
			t.Errorf("missing %q in %v", want, err)
		}
	}
}

func TestStoreOptions(t *testing.T) {
	cfg := Default()
	if got := cfg.StoreOptions(); len(got) != 0 {
		t.Fatalf("defaults: got %d options, want 0", len(got))
	}
	cfg.Store.BusyTimeout = 2500
	cfg.Store.Synchronous = "full"
	if got := cfg.StoreOptions(); len(got) != 2 {
		t.Fatalf("got %d options, want 2", len(got))
	}
	if err := cfg.Validate(); err != nil {
		t.Fatalf("validate: %v", err)
	}
}

func TestNewLogger(t *testing.T) {
	cfg := Default()
	cfg.Log.Level = "warn"
	var buf bytes.Buffer
	logger := cfg.NewLogger(&buf)
	logger.Info("hidden")
	logger.Warn("shown", "k", "v")
	out := buf.String()
	if strings.Contains(out, "hidden") || !strings.Contains(out, `"msg":"shown"`) {
		t.Fatalf("got %q", out)
	}
}
