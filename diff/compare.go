package diff

import (
	"strconv"
	"strings"
	"unicode/utf8"

	"github.com/hazyhaar/domdiff/tree"
)

// PreviewLen caps the content preview of added and removed children, in runes.
const PreviewLen = 50

// Diff compares two document roots and returns the full result.
func Diff(a, b *tree.Node) Result {
	return NewResult(Compare(a, b, ""))
}

// Compare walks a and b in lock-step and returns the change records in
// depth-first pre-order over A's shape. path is the location of a and b;
// callers start from the document roots with "".
func Compare(a, b *tree.Node, path string) []ChangeRecord {
	var out []ChangeRecord
	compareInto(&out, a, b, path)
	return out
}

func compareInto(out *[]ChangeRecord, a, b *tree.Node, path string) {
	ka, kb := tree.EffectiveKind(a), tree.EffectiveKind(b)
	if ka != kb {
		*out = append(*out, ChangeRecord{
			Action:   ReplaceNode,
			Path:     path,
			OldValue: ka.String(),
			NewValue: kb.String(),
		})
		return
	}

	switch ka {
	case tree.KindText:
		compareText(out, a, b, path)
	case tree.KindElement:
		compareElement(out, a, b, path)
	}
}

// compareText reports a modification only when both trimmed sides are
// non-empty: a run that becomes empty or whitespace-only is not reported.
func compareText(out *[]ChangeRecord, a, b *tree.Node, path string) {
	ta := strings.TrimSpace(a.Text)
	tb := strings.TrimSpace(b.Text)
	if ta == "" || tb == "" || ta == tb {
		return
	}
	*out = append(*out, ChangeRecord{
		Action:   ModifyText,
		Path:     path,
		OldValue: ta,
		NewValue: tb,
	})
}

func compareElement(out *[]ChangeRecord, a, b *tree.Node, path string) {
	if a.TagName != b.TagName {
		*out = append(*out, ChangeRecord{
			Action:   ReplaceElement,
			Path:     path,
			OldValue: a.TagName,
			NewValue: b.TagName,
		})
		return
	}

	compareAttributes(out, a, b, path)

	n := len(a.Children)
	if len(b.Children) > n {
		n = len(b.Children)
	}
	for i := 0; i < n; i++ {
		childPath := path + "/" + a.TagName + "[" + strconv.Itoa(i) + "]"
		switch {
		case i >= len(a.Children):
			c := b.Children[i]
			*out = append(*out, ChangeRecord{
				Action:  AddChild,
				Path:    childPath,
				Element: c.Name(),
				Content: Preview(c),
			})
		case i >= len(b.Children):
			c := a.Children[i]
			*out = append(*out, ChangeRecord{
				Action:  RemoveChild,
				Path:    childPath,
				Element: c.Name(),
				Content: Preview(c),
			})
		default:
			compareInto(out, a.Children[i], b.Children[i], childPath)
		}
	}
}

// compareAttributes emits additions and modifications in B's attribute
// order, then removals in A's attribute order.
func compareAttributes(out *[]ChangeRecord, a, b *tree.Node, path string) {
	am, bm := a.AttrMap(), b.AttrMap()

	seen := make(map[string]bool, len(b.Attributes))
	for _, attr := range b.Attributes {
		if seen[attr.Name] {
			continue
		}
		seen[attr.Name] = true
		nv := bm[attr.Name]
		ov, ok := am[attr.Name]
		switch {
		case !ok:
			*out = append(*out, ChangeRecord{
				Action:  AddAttribute,
				Path:    path,
				Element: a.TagName,
				Content: formatAttr(attr.Name, nv),
			})
		case ov != nv:
			*out = append(*out, ChangeRecord{
				Action:   ModifyAttribute,
				Path:     path,
				Element:  a.TagName,
				OldValue: formatAttr(attr.Name, ov),
				NewValue: formatAttr(attr.Name, nv),
			})
		}
	}

	clear(seen)
	for _, attr := range a.Attributes {
		if seen[attr.Name] {
			continue
		}
		seen[attr.Name] = true
		if _, ok := bm[attr.Name]; !ok {
			*out = append(*out, ChangeRecord{
				Action:  RemoveAttribute,
				Path:    path,
				Element: a.TagName,
				Content: formatAttr(attr.Name, am[attr.Name]),
			})
		}
	}
}

func formatAttr(name, value string) string {
	return name + `="` + value + `"`
}

// Preview returns the trimmed text content of n cut to PreviewLen runes.
func Preview(n *tree.Node) string {
	s := strings.TrimSpace(n.TextContent())
	if utf8.RuneCountInString(s) <= PreviewLen {
		return s
	}
	r := []rune(s)
	return string(r[:PreviewLen])
}
