package snapshot

import (
	"testing"

	"github.com/google/uuid"
)

func TestNew(t *testing.T) {
	s := New("https://example.com", OriginHTTP, []byte("<p>x</p>"))
	u, err := uuid.Parse(s.ID)
	if err != nil {
		t.Fatalf("id: %v", err)
	}
	if u.Version() != 7 {
		t.Fatalf("id version: got %d, want 7", u.Version())
	}
	if s.HTMLHash != HashHTML([]byte("<p>x</p>")) {
		t.Fatalf("hash mismatch")
	}
	if s.Timestamp == 0 {
		t.Fatal("timestamp not set")
	}
}

func TestHashHTML_Known(t *testing.T) {
	// sha256("") is a well-known constant.
	const empty = "e3b0c44298fc1c149afbf4c8996fb92427ae41e4649b934ca495991b7852b855"
	if got := HashHTML(nil); got != empty {
		t.Fatalf("got %s", got)
	}
}

func TestInlineAndSameContent(t *testing.T) {
	a := Inline("", "<p>same</p>")
	b := Inline("b", "<p>same</p>")
	if a.Source != "inline" || a.Origin != OriginInline {
		t.Fatalf("inline: got %+v", a)
	}
	if a.ID == b.ID {
		t.Fatal("ids should differ")
	}
	if !a.SameContent(b) {
		t.Fatal("same markup should hash equal")
	}
	if a.SameContent(Inline("c", "<p>other</p>")) {
		t.Fatal("different markup should not hash equal")
	}
}
