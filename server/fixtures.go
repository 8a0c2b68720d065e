package server

import (
	"embed"
	"errors"
	"io/fs"
	"net/http"
	"os"

	"github.com/go-chi/chi/v5"
)

//go:embed fixtures/*.html
var fixtureFiles embed.FS

// Fixtures returns the embedded sample pages (v1.html, v2.html, spa.html).
func Fixtures() fs.FS {
	sub, err := fs.Sub(fixtureFiles, "fixtures")
	if err != nil {
		panic(err)
	}
	return sub
}

// overlayFS serves the first layer that has the requested file.
type overlayFS []fs.FS

func (o overlayFS) Open(name string) (fs.File, error) {
	var firstErr error
	for _, layer := range o {
		f, err := layer.Open(name)
		if err == nil {
			return f, nil
		}
		if firstErr == nil || !errors.Is(err, fs.ErrNotExist) {
			firstErr = err
		}
	}
	return nil, firstErr
}

// FixtureHandler serves the embedded sample pages, then files under dir
// when dir is non-empty. Used for manual end-to-end runs of the CLI.
func FixtureHandler(dir string) http.Handler {
	layers := overlayFS{Fixtures()}
	if dir != "" {
		layers = append(layers, os.DirFS(dir))
	}

	r := chi.NewRouter()
	r.Use(SecurityHeaders)
	r.Get("/health", func(w http.ResponseWriter, _ *http.Request) {
		writeJSON(w, http.StatusOK, map[string]string{"status": "ok"})
	})
	r.Handle("/*", http.FileServerFS(layers))
	return r
}
