// Package diff is the positional tree comparator.
//
// Two trees are walked in lock-step from their roots. Children are aligned
// strictly by index: an insertion early in a sibling list shows up as a run
// of modifications followed by a trailing add_child, never as a single
// insertion. Every difference becomes a ChangeRecord; the comparator has no
// error path.
package diff

import "strings"

// Action is the kind of a ChangeRecord.
type Action string

const (
	ReplaceNode     Action = "replace_node"     // node kinds differ
	ReplaceElement  Action = "replace_element"  // tag names differ
	ModifyText      Action = "modify_text"      // trimmed text differs
	AddAttribute    Action = "add_attribute"    // attribute only in B
	RemoveAttribute Action = "remove_attribute" // attribute only in A
	ModifyAttribute Action = "modify_attribute" // attribute value differs
	AddChild        Action = "add_child"        // child slot only in B
	RemoveChild     Action = "remove_child"     // child slot only in A
)

// Actions lists every known action in declaration order.
var Actions = []Action{
	ReplaceNode, ReplaceElement, ModifyText,
	AddAttribute, RemoveAttribute, ModifyAttribute,
	AddChild, RemoveChild,
}

// Known reports whether a is one of the declared actions.
func (a Action) Known() bool {
	for _, k := range Actions {
		if a == k {
			return true
		}
	}
	return false
}

// ChangeRecord is one reported difference. Path locates the node in tree A.
type ChangeRecord struct {
	Action   Action `json:"action"`
	Path     string `json:"path"`
	Element  string `json:"element,omitempty"`
	OldValue string `json:"old_value,omitempty"`
	NewValue string `json:"new_value,omitempty"`
	Content  string `json:"content,omitempty"`
}

// Result is the outcome of one comparison.
type Result struct {
	Diffs   []ChangeRecord `json:"diffs"`
	Count   int            `json:"count"`
	Summary string         `json:"summary"`
}

// NewResult wraps records, filling Count and Summary from them.
func NewResult(records []ChangeRecord) Result {
	if records == nil {
		records = []ChangeRecord{}
	}
	return Result{
		Diffs:   records,
		Count:   len(records),
		Summary: Summarize(records),
	}
}

// Identical reports whether the comparison found no differences.
func (r Result) Identical() bool { return r.Count == 0 }

// CountByAction tallies records per action.
func (r Result) CountByAction() map[Action]int {
	m := make(map[Action]int)
	for _, d := range r.Diffs {
		m[d.Action]++
	}
	return m
}

// SummaryLines splits Summary back into its per-record lines.
func (r Result) SummaryLines() []string {
	if r.Summary == "" {
		return nil
	}
	return strings.Split(r.Summary, "\n")
}
