package tree

import (
	"errors"
	"strings"
	"testing"
)

func TestParse_BodyRoot(t *testing.T) {
	n, err := ParseString(`<!doctype html><html><head><title>x</title></head><body class="main"><h1>Title</h1><!-- note --></body></html>`)
	if err != nil {
		t.Fatal(err)
	}
	if n.Kind != KindElement || n.TagName != "BODY" {
		t.Fatalf("root: got %v %q, want BODY element", n.Kind, n.TagName)
	}
	if v, ok := n.Attr("class"); !ok || v != "main" {
		t.Fatalf("class: got %q %v", v, ok)
	}
	if len(n.Children) != 2 {
		t.Fatalf("children: got %d, want 2", len(n.Children))
	}
	if n.Children[0].TagName != "H1" || n.Children[0].TextContent() != "Title" {
		t.Fatalf("h1: got %+v", n.Children[0])
	}
	if n.Children[1].Name() != "#comment" || n.Children[1].Text != " note " {
		t.Fatalf("comment: got %+v", n.Children[1])
	}
}

func TestParse_FragmentGetsBody(t *testing.T) {
	n, err := ParseString(`<p>loose</p>`)
	if err != nil {
		t.Fatal(err)
	}
	if n.TagName != "BODY" || len(n.Children) != 1 || n.Children[0].TagName != "P" {
		t.Fatalf("got %+v", n)
	}
}

func TestParse_FramesetFallsBackToHTML(t *testing.T) {
	n, err := ParseString(`<!doctype html><html><head><title>f</title></head><frameset cols="50%,50%"><frame src="a.html"><frame src="b.html"></frameset></html>`)
	if err != nil {
		t.Fatal(err)
	}
	if n.Kind != KindElement || n.TagName != "HTML" {
		t.Fatalf("root: got %v %q, want HTML element", n.Kind, n.TagName)
	}
	var frameset *Node
	for _, c := range n.Children {
		if c.TagName == "FRAMESET" {
			frameset = c
		}
	}
	if frameset == nil || len(frameset.Children) != 2 {
		t.Fatalf("frameset not kept under root: %+v", n.Children)
	}
	if v, _ := frameset.Children[1].Attr("src"); v != "b.html" {
		t.Fatalf("frame src: got %q", v)
	}
}

func TestParse_EmptyElementHasNonNilChildren(t *testing.T) {
	n, err := ParseString(`<body><br></body>`)
	if err != nil {
		t.Fatal(err)
	}
	if n.Children[0].Children == nil {
		t.Fatal("element children should be an empty slice, not nil")
	}
}

func TestParse_Selector(t *testing.T) {
	doc := `<body><nav>menu</nav><main id="content"><p>a</p></main></body>`
	n, err := ParseString(doc, WithSelector("main#content"))
	if err != nil {
		t.Fatal(err)
	}
	if n.TagName != "MAIN" {
		t.Fatalf("root: got %q, want MAIN", n.TagName)
	}

	_, err = ParseString(doc, WithSelector("article"))
	if !errors.Is(err, ErrScopeNotFound) {
		t.Fatalf("missing selector: got %v, want ErrScopeNotFound", err)
	}
}

func TestParse_XPath(t *testing.T) {
	doc := `<body><div><p class="x">one</p><p class="y">two</p></div></body>`
	n, err := ParseString(doc, WithXPath(`//p[@class="y"]`))
	if err != nil {
		t.Fatal(err)
	}
	if n.TagName != "P" || n.TextContent() != "two" {
		t.Fatalf("got %+v", n)
	}

	if _, err := ParseString(doc, WithXPath(`//table`)); !errors.Is(err, ErrScopeNotFound) {
		t.Fatalf("no match: got %v", err)
	}
	if _, err := ParseString(doc, WithXPath(`//p[`)); err == nil || errors.Is(err, ErrScopeNotFound) {
		t.Fatalf("invalid xpath: got %v", err)
	}
}

func TestParse_Sanitize(t *testing.T) {
	doc := `<body><p onclick="evil()">hi</p><script>alert(1)</script></body>`
	n, err := ParseString(doc, SanitizeUGC())
	if err != nil {
		t.Fatal(err)
	}
	for _, c := range n.Children {
		if c.TagName == "SCRIPT" {
			t.Fatal("script survived sanitizing")
		}
		if _, ok := c.Attr("onclick"); ok {
			t.Fatal("onclick survived sanitizing")
		}
	}
	if !strings.Contains(n.TextContent(), "hi") {
		t.Fatalf("text lost: %q", n.TextContent())
	}
}

func TestEffectiveKind(t *testing.T) {
	tests := []struct {
		n    *Node
		want Kind
	}{
		{nil, KindOther},
		{&Node{}, KindOther},
		{&Node{Kind: KindElement}, KindOther},
		{&Node{Kind: KindElement, TagName: "P"}, KindElement},
		{&Node{Kind: KindText}, KindText},
		{&Node{Kind: Kind(9)}, KindOther},
	}
	for i, tt := range tests {
		if got := EffectiveKind(tt.n); got != tt.want {
			t.Errorf("case %d: got %v, want %v", i, got, tt.want)
		}
	}
}

func TestTextContent(t *testing.T) {
	n := Element("div", nil,
		TextNode("a "),
		Element("b", nil, TextNode("bold")),
		Comment("hidden"),
		TextNode(" c"),
	)
	if got := n.TextContent(); got != "a bold c" {
		t.Fatalf("got %q", got)
	}
	if got := Comment("data").TextContent(); got != "data" {
		t.Fatalf("comment: got %q", got)
	}
}

func TestCloneAndEqual(t *testing.T) {
	n := Element("div", []Attr{{Name: "id", Value: "x"}}, TextNode("t"))
	c := n.Clone()
	if !Equal(n, c) {
		t.Fatal("clone should be equal")
	}
	c.Attributes[0].Value = "y"
	if Equal(n, c) {
		t.Fatal("clone shares attribute storage")
	}
	if n.Attributes[0].Value != "x" {
		t.Fatal("original mutated")
	}
}
