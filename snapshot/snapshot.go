// Package snapshot holds the raw documents fed to a comparison.
//
// A Snapshot is an immutable photo of one side: the bytes exactly as they
// were acquired, their SHA-256 and where they came from. Parsing happens
// later so the same snapshot can be compared under different scopes.
package snapshot

import (
	"crypto/sha256"
	"encoding/hex"
	"time"

	"github.com/google/uuid"
)

// Origin records how a snapshot was acquired.
type Origin string

const (
	OriginHTTP    Origin = "http"    // plain GET
	OriginBrowser Origin = "browser" // rendered by headless Chrome
	OriginFile    Origin = "file"    // read from disk
	OriginInline  Origin = "inline"  // supplied by the caller
)

// Snapshot is one acquired document.
type Snapshot struct {
	ID          string `json:"id"`     // UUIDv7
	Source      string `json:"source"` // URL, path or caller label
	Origin      Origin `json:"origin"`
	HTML        []byte `json:"html"`
	HTMLHash    string `json:"html_hash"` // SHA-256 hex
	ContentType string `json:"content_type,omitempty"`
	StatusCode  int    `json:"status_code,omitempty"`
	Timestamp   int64  `json:"timestamp"` // epoch milliseconds
}

// New stamps a snapshot with an id, hash and timestamp.
func New(source string, origin Origin, html []byte) *Snapshot {
	return &Snapshot{
		ID:        uuid.Must(uuid.NewV7()).String(),
		Source:    source,
		Origin:    origin,
		HTML:      html,
		HTMLHash:  HashHTML(html),
		Timestamp: time.Now().UnixMilli(),
	}
}

// Inline wraps caller-supplied markup.
func Inline(label, html string) *Snapshot {
	if label == "" {
		label = "inline"
	}
	s := New(label, OriginInline, []byte(html))
	s.ContentType = "text/html; charset=utf-8"
	return s
}

// SameContent reports whether two snapshots carry byte-identical HTML.
func (s *Snapshot) SameContent(o *Snapshot) bool {
	return s != nil && o != nil && s.HTMLHash == o.HTMLHash
}

// HashHTML returns the SHA-256 hex digest of raw HTML bytes.
func HashHTML(html []byte) string {
	h := sha256.Sum256(html)
	return hex.EncodeToString(h[:])
}
