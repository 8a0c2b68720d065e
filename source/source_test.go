package source

import (
	"context"
	"errors"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/hazyhaar/domdiff/snapshot"
)

type stubRenderer struct {
	calls int
	html  string
}

func (s *stubRenderer) Render(_ context.Context, _ string) ([]byte, error) {
	s.calls++
	return []byte(s.html), nil
}

func article() string {
	return "<html><body><article><p>" + strings.Repeat("Plenty of server rendered words here. ", 20) + "</p></article></body></html>"
}

func TestValidateURL(t *testing.T) {
	tests := []struct {
		url     string
		private bool
		want    error
	}{
		{"ftp://example.com/x", false, ErrUnsafeScheme},
		{"javascript:alert(1)", false, ErrUnsafeScheme},
		{"http://127.0.0.1:8080/", false, ErrPrivateAddress},
		{"http://10.1.2.3/", false, ErrPrivateAddress},
		{"http://[::1]/", false, ErrPrivateAddress},
		{"http://localhost/", false, ErrPrivateAddress},
		{"http://169.254.169.254/latest", false, ErrPrivateAddress},
		{"http://127.0.0.1:8080/", true, nil},
		{"https://93.184.216.34/", false, nil},
	}
	for _, tt := range tests {
		err := ValidateURL(tt.url, tt.private)
		if tt.want == nil && err != nil {
			t.Errorf("ValidateURL(%q): unexpected %v", tt.url, err)
		}
		if tt.want != nil && !errors.Is(err, tt.want) {
			t.Errorf("ValidateURL(%q): got %v, want %v", tt.url, err, tt.want)
		}
	}
	if err := ValidateURL("http:///nohost", true); err == nil {
		t.Error("missing host should fail")
	}
}

func TestFetch_OK(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.Header.Get("User-Agent") != DefaultUserAgent {
			t.Errorf("user agent: got %q", r.Header.Get("User-Agent"))
		}
		w.Header().Set("Content-Type", "text/html; charset=utf-8")
		w.Write([]byte("<p>hello</p>"))
	}))
	defer srv.Close()

	snap, err := NewFetcher(WithRetries(0)).Fetch(context.Background(), srv.URL)
	if err != nil {
		t.Fatal(err)
	}
	if string(snap.HTML) != "<p>hello</p>" || snap.Origin != snapshot.OriginHTTP || snap.StatusCode != 200 {
		t.Fatalf("got %+v", snap)
	}
}

func TestFetch_DecodesLatin1(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		w.Header().Set("Content-Type", "text/html; charset=iso-8859-1")
		w.Write([]byte("<p>caf\xe9</p>"))
	}))
	defer srv.Close()

	snap, err := NewFetcher(WithRetries(0)).Fetch(context.Background(), srv.URL)
	if err != nil {
		t.Fatal(err)
	}
	if string(snap.HTML) != "<p>café</p>" {
		t.Fatalf("got %q", string(snap.HTML))
	}
}

func TestFetch_StatusError(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		http.Error(w, "nope", http.StatusNotFound)
	}))
	defer srv.Close()

	_, err := NewFetcher(WithRetries(0)).Fetch(context.Background(), srv.URL)
	var se *StatusError
	if !errors.As(err, &se) || se.StatusCode != 404 {
		t.Fatalf("got %v, want StatusError 404", err)
	}
}

func TestFetch_RetriesServerErrors(t *testing.T) {
	calls := 0
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		calls++
		if calls == 1 {
			http.Error(w, "boom", http.StatusBadGateway)
			return
		}
		w.Write([]byte("<p>ok</p>"))
	}))
	defer srv.Close()

	snap, err := NewFetcher(WithRetries(1)).Fetch(context.Background(), srv.URL)
	if err != nil {
		t.Fatal(err)
	}
	if calls != 2 || string(snap.HTML) != "<p>ok</p>" {
		t.Fatalf("calls %d, body %q", calls, string(snap.HTML))
	}
}

func TestFetch_RedirectToPrivateBlocked(t *testing.T) {
	hits := 0
	internal := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		hits++
		w.Write([]byte("<html><body><p>INTERNAL SECRET</p></body></html>"))
	}))
	defer internal.Close()
	front := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		http.Redirect(w, r, internal.URL+"/admin", http.StatusFound)
	}))
	defer front.Close()

	snap, err := NewFetcher(WithRetries(2)).Fetch(context.Background(), front.URL)
	if !errors.Is(err, ErrPrivateAddress) {
		t.Fatalf("got %v (snapshot %v), want ErrPrivateAddress", err, snap)
	}
	if hits != 0 {
		t.Fatalf("internal server reached %d times", hits)
	}

	snap, err = NewFetcher(WithRetries(0), WithAllowPrivate(true)).Fetch(context.Background(), front.URL)
	if err != nil {
		t.Fatal(err)
	}
	if !strings.Contains(string(snap.HTML), "INTERNAL SECRET") {
		t.Fatalf("allowed redirect: got %q", snap.HTML)
	}
}

func TestFetch_RedirectLoopCapped(t *testing.T) {
	calls := 0
	var srv *httptest.Server
	srv = httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		calls++
		http.Redirect(w, r, srv.URL+"/again", http.StatusFound)
	}))
	defer srv.Close()

	_, err := NewFetcher(WithRetries(2), WithAllowPrivate(true)).Fetch(context.Background(), srv.URL)
	if !errors.Is(err, ErrTooManyRedirects) {
		t.Fatalf("got %v, want ErrTooManyRedirects", err)
	}
	if calls != MaxRedirects {
		t.Fatalf("calls: got %d, want %d (no retries)", calls, MaxRedirects)
	}
}

func TestFetch_TooLarge(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		w.Write([]byte(strings.Repeat("x", 100)))
	}))
	defer srv.Close()

	_, err := NewFetcher(WithRetries(0), WithMaxBytes(10)).Fetch(context.Background(), srv.URL)
	if !errors.Is(err, ErrTooLarge) {
		t.Fatalf("got %v, want ErrTooLarge", err)
	}
}

func TestReadFile(t *testing.T) {
	dir := t.TempDir()
	page := filepath.Join(dir, "page.html")
	if err := os.WriteFile(page, []byte("<!doctype html><html><body><p>x</p></body></html>"), 0o644); err != nil {
		t.Fatal(err)
	}
	snap, err := ReadFile(page, DefaultMaxBytes)
	if err != nil {
		t.Fatal(err)
	}
	if snap.Origin != snapshot.OriginFile || snap.Source != page || !strings.Contains(snap.ContentType, "text/html") {
		t.Fatalf("got %+v", snap)
	}

	bin := filepath.Join(dir, "img.png")
	png := []byte("\x89PNG\r\n\x1a\n\x00\x00\x00\rIHDR\x00\x00\x00\x01\x00\x00\x00\x01\x08\x02\x00\x00\x00")
	if err := os.WriteFile(bin, png, 0o644); err != nil {
		t.Fatal(err)
	}
	if _, err := ReadFile(bin, DefaultMaxBytes); !errors.Is(err, ErrNotHTML) {
		t.Fatalf("png: got %v, want ErrNotHTML", err)
	}

	if _, err := ReadFile(filepath.Join(dir, "missing.html"), DefaultMaxBytes); !errors.Is(err, os.ErrNotExist) {
		t.Fatalf("missing: got %v", err)
	}
}

func TestIsSufficient(t *testing.T) {
	if !IsSufficient([]byte(article())) {
		t.Fatal("server-rendered article should be sufficient")
	}
	shell := `<html><head><script src="/app.js"></script></head><body><div id="root"></div>` +
		strings.Repeat(" ", 300) + `</body></html>`
	if IsSufficient([]byte(shell)) {
		t.Fatal("SPA shell should not be sufficient")
	}
	if IsSufficient([]byte("<p>tiny</p>")) {
		t.Fatal("tiny document should not be sufficient")
	}
	scripty := "<html><body><script>" + strings.Repeat("var a = 1; ", 200) + "</script><p>hi</p></body></html>"
	if IsSufficient([]byte(scripty)) {
		t.Fatal("script text must not count as visible text")
	}
}

func TestIsURL(t *testing.T) {
	tests := map[string]bool{
		"https://example.com":  true,
		"http://127.0.0.1:80/": true,
		"file:///tmp/a.html":   false,
		"./page.html":          false,
		"/abs/page.html":       false,
		`C:\pages\a.html`:      false,
	}
	for ref, want := range tests {
		if got := IsURL(ref); got != want {
			t.Errorf("IsURL(%q): got %v, want %v", ref, got, want)
		}
	}
}

func TestParseMode(t *testing.T) {
	if m, err := ParseMode(""); err != nil || m != ModeHTTP {
		t.Fatalf("empty: got %q %v", m, err)
	}
	if m, err := ParseMode("AUTO"); err != nil || m != ModeAuto {
		t.Fatalf("AUTO: got %q %v", m, err)
	}
	if _, err := ParseMode("curl"); err == nil {
		t.Fatal("unknown mode should fail")
	}
}

func TestLoader_Modes(t *testing.T) {
	var body string
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		w.Write([]byte(body))
	}))
	defer srv.Close()

	stub := &stubRenderer{html: "<p>rendered</p>"}
	l := NewLoader(Config{Mode: ModeAuto, AllowPrivate: true, Retries: 0})
	l.SetRenderer(stub)
	defer l.Close()
	ctx := context.Background()

	body = article()
	snap, err := l.Load(ctx, srv.URL)
	if err != nil {
		t.Fatal(err)
	}
	if snap.Origin != snapshot.OriginHTTP || stub.calls != 0 {
		t.Fatalf("sufficient page: origin %s, renders %d", snap.Origin, stub.calls)
	}

	body = `<html><body><div id="app"></div></body></html>`
	snap, err = l.Load(ctx, srv.URL)
	if err != nil {
		t.Fatal(err)
	}
	if snap.Origin != snapshot.OriginBrowser || string(snap.HTML) != "<p>rendered</p>" || stub.calls != 1 {
		t.Fatalf("shell page: got %+v, renders %d", snap, stub.calls)
	}
}

func TestLoader_PrivateBlocked(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		w.Write([]byte("<p>x</p>"))
	}))
	defer srv.Close()

	l := NewLoader(Config{})
	defer l.Close()
	if _, err := l.Load(context.Background(), srv.URL); !errors.Is(err, ErrPrivateAddress) {
		t.Fatalf("got %v, want ErrPrivateAddress", err)
	}
}

func TestLoader_FileURL(t *testing.T) {
	dir := t.TempDir()
	page := filepath.Join(dir, "a.html")
	if err := os.WriteFile(page, []byte("<html><body><p>file</p></body></html>"), 0o644); err != nil {
		t.Fatal(err)
	}
	l := NewLoader(Config{})
	defer l.Close()

	for _, ref := range []string{page, "file://" + page} {
		snap, err := l.Load(context.Background(), ref)
		if err != nil {
			t.Fatalf("%s: %v", ref, err)
		}
		if !strings.Contains(string(snap.HTML), "<p>file</p>") {
			t.Fatalf("%s: got %q", ref, string(snap.HTML))
		}
	}
	if _, err := l.Load(context.Background(), "  "); err == nil {
		t.Fatal("empty ref should fail")
	}
}
