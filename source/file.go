package source

import (
	"errors"
	"fmt"
	"os"

	"github.com/gabriel-vasile/mimetype"

	"github.com/hazyhaar/domdiff/snapshot"
)

// ErrNotHTML is returned when a local file does not look like markup or text.
var ErrNotHTML = errors.New("source: file is not HTML")

// htmlTypes are the sniffed MIME types accepted for local files.
var htmlTypes = []string{
	"text/html",
	"application/xhtml+xml",
	"text/xml",
	"text/plain",
}

// ReadFile loads a local document, refusing binaries and anything over
// maxBytes.
func ReadFile(path string, maxBytes int64) (*snapshot.Snapshot, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("source: open: %w", err)
	}
	defer f.Close()

	raw, err := readLimited(f, maxBytes)
	if err != nil {
		return nil, fmt.Errorf("source: read %s: %w", path, err)
	}

	mt := mimetype.Detect(raw)
	if !isHTMLType(mt) {
		return nil, fmt.Errorf("%w: %s is %s", ErrNotHTML, path, mt.String())
	}

	body, err := toUTF8(raw, mt.String())
	if err != nil {
		return nil, fmt.Errorf("source: decode %s: %w", path, err)
	}

	snap := snapshot.New(path, snapshot.OriginFile, body)
	snap.ContentType = mt.String()
	return snap, nil
}

func isHTMLType(mt *mimetype.MIME) bool {
	for m := mt; m != nil; m = m.Parent() {
		for _, t := range htmlTypes {
			if m.Is(t) {
				return true
			}
		}
	}
	return false
}
