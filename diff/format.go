package diff

import (
	"encoding/json"
	"fmt"
	"strings"
)

// Line prefixes per action family.
const (
	SymbolAdd     = "+"
	SymbolRemove  = "-"
	SymbolModify  = "~"
	SymbolReplace = "↔"
	SymbolUnknown = "?"
)

// Symbol returns the prefix used when rendering a record with action a.
func Symbol(a Action) string {
	switch a {
	case AddAttribute, AddChild:
		return SymbolAdd
	case RemoveAttribute, RemoveChild:
		return SymbolRemove
	case ModifyText, ModifyAttribute:
		return SymbolModify
	case ReplaceNode, ReplaceElement:
		return SymbolReplace
	default:
		return SymbolUnknown
	}
}

// lineBreaks keeps attribute values with embedded newlines on one line.
var lineBreaks = strings.NewReplacer("\r", `\r`, "\n", `\n`)

// displayPath renders the root path as "/".
func displayPath(p string) string {
	if p == "" {
		return "/"
	}
	return p
}

// FormatRecord renders one record as a single summary line. Records with an
// unknown action render as an explicit "unknown action" line.
func FormatRecord(r ChangeRecord) string {
	p := displayPath(r.Path)
	switch r.Action {
	case ReplaceNode:
		return fmt.Sprintf("%s Replaced node at %s: %s → %s", SymbolReplace, p, r.OldValue, r.NewValue)
	case ReplaceElement:
		return fmt.Sprintf("%s Replaced element at %s: <%s> → <%s>", SymbolReplace, p, r.OldValue, r.NewValue)
	case ModifyText:
		return fmt.Sprintf("%s Modified text at %s: %q → %q", SymbolModify, p, r.OldValue, r.NewValue)
	case AddAttribute:
		return fmt.Sprintf("%s Added attribute to <%s> at %s: %s", SymbolAdd, r.Element, p, lineBreaks.Replace(r.Content))
	case RemoveAttribute:
		return fmt.Sprintf("%s Removed attribute from <%s> at %s: %s", SymbolRemove, r.Element, p, lineBreaks.Replace(r.Content))
	case ModifyAttribute:
		return fmt.Sprintf("%s Modified attribute on <%s> at %s: %s → %s", SymbolModify, r.Element, p,
			lineBreaks.Replace(r.OldValue), lineBreaks.Replace(r.NewValue))
	case AddChild:
		return fmt.Sprintf("%s Added <%s> at %s: %q", SymbolAdd, r.Element, p, r.Content)
	case RemoveChild:
		return fmt.Sprintf("%s Removed <%s> at %s: %q", SymbolRemove, r.Element, p, r.Content)
	default:
		return fmt.Sprintf("%s Unknown action %q at %s", SymbolUnknown, string(r.Action), p)
	}
}

// Summarize renders every record, one line each, in order.
func Summarize(records []ChangeRecord) string {
	lines := make([]string, len(records))
	for i, r := range records {
		lines[i] = FormatRecord(r)
	}
	return strings.Join(lines, "\n")
}

// Describe flattens a result into the plain-text block handed to an
// evaluator: one JSON record per line, a blank line, then the summary.
func Describe(r Result) string {
	var b strings.Builder
	fmt.Fprintf(&b, "Structural differences: %d\n\n", r.Count)
	if r.Count == 0 {
		b.WriteString("The two documents are structurally identical.\n")
		return b.String()
	}
	b.WriteString("Records:\n")
	for _, d := range r.Diffs {
		data, err := json.Marshal(d)
		if err != nil {
			continue
		}
		b.Write(data)
		b.WriteByte('\n')
	}
	b.WriteString("\nSummary:\n")
	b.WriteString(r.Summary)
	b.WriteByte('\n')
	return b.String()
}
