package diff

import (
	"strings"
	"testing"
)

func TestFormatRecord(t *testing.T) {
	tests := []struct {
		rec  ChangeRecord
		want string
	}{
		{ChangeRecord{Action: ReplaceNode, OldValue: "Element", NewValue: "Text"},
			"↔ Replaced node at /: Element → Text"},
		{ChangeRecord{Action: ReplaceElement, Path: "/BODY[0]", OldValue: "DIV", NewValue: "SECTION"},
			"↔ Replaced element at /BODY[0]: <DIV> → <SECTION>"},
		{ChangeRecord{Action: ModifyText, Path: "/BODY[0]/P[0]", OldValue: "Hello", NewValue: "Hello there"},
			`~ Modified text at /BODY[0]/P[0]: "Hello" → "Hello there"`},
		{ChangeRecord{Action: AddAttribute, Path: "/BODY[0]", Element: "A", Content: `target="_blank"`},
			`+ Added attribute to <A> at /BODY[0]: target="_blank"`},
		{ChangeRecord{Action: RemoveAttribute, Path: "/BODY[0]", Element: "A", Content: `target="_blank"`},
			`- Removed attribute from <A> at /BODY[0]: target="_blank"`},
		{ChangeRecord{Action: ModifyAttribute, Path: "/BODY[0]", Element: "IMG", OldValue: `src="a"`, NewValue: `src="b"`},
			`~ Modified attribute on <IMG> at /BODY[0]: src="a" → src="b"`},
		{ChangeRecord{Action: AddChild, Path: "/BODY[1]", Element: "P", Content: "New paragraph"},
			`+ Added <P> at /BODY[1]: "New paragraph"`},
		{ChangeRecord{Action: RemoveChild, Path: "/BODY[1]", Element: "P", Content: "Gone"},
			`- Removed <P> at /BODY[1]: "Gone"`},
		{ChangeRecord{Action: "move_child", Path: "/BODY[2]"},
			`? Unknown action "move_child" at /BODY[2]`},
	}
	for _, tt := range tests {
		if got := FormatRecord(tt.rec); got != tt.want {
			t.Errorf("FormatRecord(%s): got %q, want %q", tt.rec.Action, got, tt.want)
		}
	}
}

func TestSymbol(t *testing.T) {
	if Symbol(AddChild) != "+" || Symbol(RemoveAttribute) != "-" || Symbol(ModifyText) != "~" || Symbol(ReplaceNode) != "↔" {
		t.Fatal("unexpected symbol mapping")
	}
	if Symbol(Action("bogus")) != "?" {
		t.Fatalf("unknown symbol: got %q", Symbol(Action("bogus")))
	}
}

func TestNewResult_CountConsistency(t *testing.T) {
	records := []ChangeRecord{
		{Action: AddChild, Path: "/BODY[1]", Element: "P", Content: "x"},
		{Action: ModifyAttribute, Path: "", Element: "BODY", OldValue: "class=\"a\nb\"", NewValue: `class="c"`},
		{Action: "future_action", Path: "/X[0]"},
	}
	res := NewResult(records)
	if res.Count != len(res.Diffs) {
		t.Fatalf("count: got %d, want %d", res.Count, len(res.Diffs))
	}
	lines := res.SummaryLines()
	if len(lines) != res.Count {
		t.Fatalf("summary lines: got %d, want %d: %q", len(lines), res.Count, res.Summary)
	}
	for i, l := range lines {
		if strings.TrimSpace(l) == "" {
			t.Fatalf("line %d is empty", i)
		}
		if l != FormatRecord(records[i]) {
			t.Fatalf("line %d: got %q, want %q", i, l, FormatRecord(records[i]))
		}
	}
}

func TestNewResult_Empty(t *testing.T) {
	res := NewResult(nil)
	if res.Count != 0 || res.Summary != "" || res.Diffs == nil || !res.Identical() {
		t.Fatalf("empty result: got %+v", res)
	}
	if res.SummaryLines() != nil {
		t.Fatalf("summary lines: got %q", res.SummaryLines())
	}
}

func TestDescribe(t *testing.T) {
	res := NewResult([]ChangeRecord{{Action: AddChild, Path: "/BODY[1]", Element: "P", Content: "New paragraph"}})
	text := Describe(res)
	for _, want := range []string{
		"Structural differences: 1",
		`{"action":"add_child","path":"/BODY[1]","element":"P","content":"New paragraph"}`,
		`+ Added <P> at /BODY[1]: "New paragraph"`,
	} {
		if !strings.Contains(text, want) {
			t.Fatalf("Describe missing %q:\n%s", want, text)
		}
	}

	if got := Describe(NewResult(nil)); !strings.Contains(got, "identical") {
		t.Fatalf("Describe(empty): got %q", got)
	}
}

func TestCountByAction(t *testing.T) {
	res := NewResult([]ChangeRecord{{Action: AddChild}, {Action: AddChild}, {Action: ModifyText}})
	m := res.CountByAction()
	if m[AddChild] != 2 || m[ModifyText] != 1 {
		t.Fatalf("CountByAction: got %v", m)
	}
}
