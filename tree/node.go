// Package tree is the document model consumed by the diff engine.
//
// A Node is a read-only view of one DOM node: an element with a tag name,
// attributes and ordered children, a text run, or anything else (comments,
// doctypes, CDATA). Nodes are built by Parse or FromHTML and are never
// mutated afterwards.
package tree

import "strings"

// Kind classifies a Node. The zero value is KindOther so that a node whose
// kind was never set degrades to "other" instead of failing.
type Kind int

const (
	KindOther Kind = iota
	KindElement
	KindText
)

// String returns the kind name used in replace_node records.
func (k Kind) String() string {
	switch k {
	case KindElement:
		return "Element"
	case KindText:
		return "Text"
	default:
		return "Other"
	}
}

// Attr is a single name/value attribute pair.
type Attr struct {
	Name  string `json:"name"`
	Value string `json:"value"`
}

// Node is one position in a document tree.
type Node struct {
	Kind Kind `json:"kind"`

	// TagName is set for elements only, uppercase (DIV, P, BODY).
	TagName string `json:"tag_name,omitempty"`

	// Text holds the character content of text nodes. Other nodes may keep
	// their raw data here (comment body) for previews.
	Text string `json:"text,omitempty"`

	// NodeName overrides the DOM node name of Other nodes (#comment, #doctype).
	NodeName string `json:"node_name,omitempty"`

	Attributes []Attr  `json:"attributes,omitempty"`
	Children   []*Node `json:"children,omitempty"`
}

// Element builds an element node. Tag is uppercased.
func Element(tag string, attrs []Attr, children ...*Node) *Node {
	return &Node{
		Kind:       KindElement,
		TagName:    strings.ToUpper(tag),
		Attributes: attrs,
		Children:   children,
	}
}

// TextNode builds a text node.
func TextNode(s string) *Node {
	return &Node{Kind: KindText, Text: s}
}

// Comment builds an Other node carrying comment data.
func Comment(s string) *Node {
	return &Node{Kind: KindOther, NodeName: "#comment", Text: s}
}

// EffectiveKind returns the kind the comparator should use for n. Nil
// nodes, elements without a tag and unknown kind values are KindOther.
func EffectiveKind(n *Node) Kind {
	if n == nil {
		return KindOther
	}
	switch n.Kind {
	case KindElement:
		if n.TagName == "" {
			return KindOther
		}
		return KindElement
	case KindText:
		return KindText
	default:
		return KindOther
	}
}

// Name returns the DOM node name: the tag for elements, #text for text runs
// and NodeName (or #other) for everything else.
func (n *Node) Name() string {
	switch EffectiveKind(n) {
	case KindElement:
		return n.TagName
	case KindText:
		return "#text"
	}
	if n != nil && n.NodeName != "" {
		return n.NodeName
	}
	return "#other"
}

// Attr returns the value of the first attribute called name.
func (n *Node) Attr(name string) (string, bool) {
	if n == nil {
		return "", false
	}
	for _, a := range n.Attributes {
		if a.Name == name {
			return a.Value, true
		}
	}
	return "", false
}

// AttrMap returns the attributes as a map. When a name repeats, the first
// occurrence wins, matching how browsers resolve duplicate attributes.
func (n *Node) AttrMap() map[string]string {
	m := make(map[string]string, len(n.Attributes))
	for _, a := range n.Attributes {
		if _, ok := m[a.Name]; !ok {
			m[a.Name] = a.Value
		}
	}
	return m
}

// TextContent concatenates the text of n and all of its descendants, like
// the DOM textContent property. Comments contribute their own data only
// when they are the node asked about.
func (n *Node) TextContent() string {
	if n == nil {
		return ""
	}
	switch EffectiveKind(n) {
	case KindText:
		return n.Text
	case KindOther:
		return n.Text
	}
	var b strings.Builder
	var walk func(*Node)
	walk = func(c *Node) {
		switch EffectiveKind(c) {
		case KindText:
			b.WriteString(c.Text)
		case KindElement:
			for _, gc := range c.Children {
				walk(gc)
			}
		}
	}
	walk(n)
	return b.String()
}

// Equal reports whether a and b are structurally identical, attribute order
// included. Used by tests and callers that want a cheap short-circuit.
func Equal(a, b *Node) bool {
	if a == nil || b == nil {
		return a == b
	}
	if a.Kind != b.Kind || a.TagName != b.TagName || a.Text != b.Text || a.NodeName != b.NodeName {
		return false
	}
	if len(a.Attributes) != len(b.Attributes) || len(a.Children) != len(b.Children) {
		return false
	}
	for i := range a.Attributes {
		if a.Attributes[i] != b.Attributes[i] {
			return false
		}
	}
	for i := range a.Children {
		if !Equal(a.Children[i], b.Children[i]) {
			return false
		}
	}
	return true
}

// Clone returns a deep copy of n.
func (n *Node) Clone() *Node {
	if n == nil {
		return nil
	}
	c := *n
	if n.Attributes != nil {
		c.Attributes = append([]Attr(nil), n.Attributes...)
	}
	if n.Children != nil {
		c.Children = make([]*Node, len(n.Children))
		for i, ch := range n.Children {
			c.Children[i] = ch.Clone()
		}
	}
	return &c
}
