package tree

import (
	"errors"
	"fmt"
	"io"
	"strings"

	"github.com/PuerkitoBio/goquery"
	"github.com/antchfx/htmlquery"
	"github.com/microcosm-cc/bluemonday"
	"golang.org/x/net/html"
	"golang.org/x/net/html/atom"
)

// ErrScopeNotFound is returned when a selector or XPath scope matches nothing.
var ErrScopeNotFound = errors.New("tree: scope matched no element")

type parseConfig struct {
	policy   *bluemonday.Policy
	selector string
	xpath    string
}

// ParseOption configures Parse.
type ParseOption func(*parseConfig)

// WithSanitizer runs the raw HTML through a bluemonday policy before parsing.
func WithSanitizer(p *bluemonday.Policy) ParseOption {
	return func(c *parseConfig) { c.policy = p }
}

// SanitizeUGC strips scripts, styles, event handlers and other active
// content using bluemonday's user-generated-content policy.
func SanitizeUGC() ParseOption {
	return WithSanitizer(bluemonday.UGCPolicy())
}

// WithSelector scopes the returned root to the first element matching a CSS
// selector instead of <body>.
func WithSelector(css string) ParseOption {
	return func(c *parseConfig) { c.selector = strings.TrimSpace(css) }
}

// WithXPath scopes the returned root to the first node matching an XPath
// expression. Applied after WithSelector when both are set.
func WithXPath(expr string) ParseOption {
	return func(c *parseConfig) { c.xpath = strings.TrimSpace(expr) }
}

// ParseString is Parse over a string.
func ParseString(s string, opts ...ParseOption) (*Node, error) {
	return Parse(strings.NewReader(s), opts...)
}

// Parse reads a complete HTML document and returns its comparison root:
// the <body> element, or the scoped element when a selector or XPath is set.
func Parse(r io.Reader, opts ...ParseOption) (*Node, error) {
	root, err := ParseHTML(r, opts...)
	if err != nil {
		return nil, err
	}
	return FromHTML(root), nil
}

// ParseHTML is Parse without the conversion step: it returns the scoped
// x/net/html node so callers can render or query it further.
func ParseHTML(r io.Reader, opts ...ParseOption) (*html.Node, error) {
	var cfg parseConfig
	for _, o := range opts {
		o(&cfg)
	}

	if cfg.policy != nil {
		raw, err := io.ReadAll(r)
		if err != nil {
			return nil, fmt.Errorf("tree: read: %w", err)
		}
		r = strings.NewReader(cfg.policy.Sanitize(string(raw)))
	}

	doc, err := html.Parse(r)
	if err != nil {
		return nil, fmt.Errorf("tree: parse: %w", err)
	}

	root := documentRoot(doc)

	if cfg.selector != "" {
		sel := goquery.NewDocumentFromNode(doc).Find(cfg.selector).First()
		if sel.Length() == 0 {
			return nil, fmt.Errorf("%w: selector %q", ErrScopeNotFound, cfg.selector)
		}
		root = sel.Nodes[0]
	}

	if cfg.xpath != "" {
		n, err := htmlquery.Query(root, cfg.xpath)
		if err != nil {
			return nil, fmt.Errorf("tree: xpath %q: %w", cfg.xpath, err)
		}
		if n == nil {
			return nil, fmt.Errorf("%w: xpath %q", ErrScopeNotFound, cfg.xpath)
		}
		root = n
	}

	return root, nil
}

// documentRoot picks the default comparison root: <body>, or <html> for
// documents without one (framesets).
func documentRoot(doc *html.Node) *html.Node {
	if b := findElement(doc, atom.Body); b != nil {
		return b
	}
	if h := findElement(doc, atom.Html); h != nil {
		return h
	}
	return doc
}

// findElement returns the first element of type a under n, depth first.
func findElement(n *html.Node, a atom.Atom) *html.Node {
	if n.Type == html.ElementNode && n.DataAtom == a {
		return n
	}
	for c := n.FirstChild; c != nil; c = c.NextSibling {
		if e := findElement(c, a); e != nil {
			return e
		}
	}
	return nil
}

// FromHTML converts an x/net/html node and its subtree.
func FromHTML(n *html.Node) *Node {
	if n == nil {
		return nil
	}
	switch n.Type {
	case html.ElementNode:
		out := &Node{
			Kind:    KindElement,
			TagName: strings.ToUpper(n.Data),
		}
		if len(n.Attr) > 0 {
			out.Attributes = make([]Attr, 0, len(n.Attr))
			for _, a := range n.Attr {
				name := a.Key
				if a.Namespace != "" {
					name = a.Namespace + ":" + a.Key
				}
				out.Attributes = append(out.Attributes, Attr{Name: name, Value: a.Val})
			}
		}
		out.Children = []*Node{}
		for c := n.FirstChild; c != nil; c = c.NextSibling {
			out.Children = append(out.Children, FromHTML(c))
		}
		return out
	case html.TextNode:
		return &Node{Kind: KindText, Text: n.Data}
	case html.CommentNode:
		return &Node{Kind: KindOther, NodeName: "#comment", Text: n.Data}
	case html.DoctypeNode:
		return &Node{Kind: KindOther, NodeName: "#doctype", Text: n.Data}
	case html.DocumentNode:
		return &Node{Kind: KindOther, NodeName: "#document"}
	default:
		return &Node{Kind: KindOther, Text: n.Data}
	}
}

// Render serialises an x/net/html node back to markup.
func Render(n *html.Node) (string, error) {
	var b strings.Builder
	if err := html.Render(&b, n); err != nil {
		return "", fmt.Errorf("tree: render: %w", err)
	}
	return b.String(), nil
}
