package report

import (
	"encoding/json"
	"fmt"
	"io"
	"strings"
	"time"

	"github.com/charmbracelet/lipgloss"
	"github.com/muesli/termenv"

	"github.com/hazyhaar/domdiff/diff"
)

// Basic ANSI palette so colors survive 16-color terminals.
var (
	addColor     = lipgloss.Color("2")
	removeColor  = lipgloss.Color("1")
	modifyColor  = lipgloss.Color("3")
	replaceColor = lipgloss.Color("5")
)

// Options tunes the text renderer.
type Options struct {
	Color bool
}

// textStyles holds the lipgloss styles of one WriteText call, bound to a
// renderer whose profile follows Options.Color.
type textStyles struct {
	header lipgloss.Style
	plain  lipgloss.Style
	byKind map[string]lipgloss.Style
}

func newTextStyles(w io.Writer, color bool) textStyles {
	r := lipgloss.NewRenderer(w)
	if color {
		r.SetColorProfile(termenv.ANSI)
	} else {
		r.SetColorProfile(termenv.Ascii)
	}
	base := r.NewStyle().TabWidth(lipgloss.NoTabConversion)
	return textStyles{
		header: base.Bold(true),
		plain:  base,
		byKind: map[string]lipgloss.Style{
			diff.SymbolAdd:     base.Foreground(addColor),
			diff.SymbolRemove:  base.Foreground(removeColor),
			diff.SymbolModify:  base.Foreground(modifyColor),
			diff.SymbolReplace: base.Foreground(replaceColor),
		},
	}
}

func (s textStyles) line(a diff.Action) lipgloss.Style {
	if st, ok := s.byKind[diff.Symbol(a)]; ok {
		return st
	}
	return s.plain
}

// Write renders rep in format f.
func Write(w io.Writer, rep *Report, f Format, opts Options) error {
	switch f {
	case FormatJSON:
		return WriteJSON(w, rep)
	case FormatMarkdown:
		return WriteMarkdown(w, rep)
	default:
		return WriteText(w, rep, opts)
	}
}

// WriteText renders the summary for a terminal, one line per record.
func WriteText(w io.Writer, rep *Report, opts Options) error {
	var b strings.Builder
	st := newTextStyles(w, opts.Color)
	bold := st.header.Render

	fmt.Fprintf(&b, "%s %s\n", bold("---"), rep.SourceA)
	fmt.Fprintf(&b, "%s %s\n", bold("+++"), rep.SourceB)
	if rep.Result.Identical() {
		b.WriteString("No structural differences.\n")
	} else {
		for _, d := range rep.Result.Diffs {
			b.WriteString(st.line(d.Action).Render(diff.FormatRecord(d)))
			b.WriteByte('\n')
		}
		fmt.Fprintf(&b, "\n%s\n", bold(fmt.Sprintf("%d structural difference(s)", rep.Result.Count)))
	}

	if ev := rep.Evaluation; ev != nil {
		fmt.Fprintf(&b, "\n%s\n", bold("Evaluation"))
		fmt.Fprintf(&b, "  Summary:  %s\n", ev.Summary)
		if len(ev.ChangeTypes) > 0 {
			fmt.Fprintf(&b, "  Types:    %s\n", strings.Join(ev.ChangeTypes, ", "))
		}
		if len(ev.ImpactedSections) > 0 {
			fmt.Fprintf(&b, "  Sections: %s\n", strings.Join(ev.ImpactedSections, ", "))
		}
		if ev.LikelyIntent != "" {
			fmt.Fprintf(&b, "  Intent:   %s\n", ev.LikelyIntent)
		}
	}

	_, err := io.WriteString(w, b.String())
	return err
}

// WriteJSON renders rep as indented JSON.
func WriteJSON(w io.Writer, rep *Report) error {
	enc := json.NewEncoder(w)
	enc.SetIndent("", "  ")
	enc.SetEscapeHTML(false)
	return enc.Encode(rep)
}

// WriteMarkdown renders rep as a Markdown document.
func WriteMarkdown(w io.Writer, rep *Report) error {
	var b strings.Builder
	b.WriteString("# DOM comparison\n\n")
	fmt.Fprintf(&b, "| | Source | SHA-256 |\n|---|---|---|\n")
	fmt.Fprintf(&b, "| A | %s | `%s` |\n", mdCell(rep.SourceA), short(rep.HashA))
	fmt.Fprintf(&b, "| B | %s | `%s` |\n\n", mdCell(rep.SourceB), short(rep.HashB))
	if rep.CreatedAt > 0 {
		fmt.Fprintf(&b, "Compared %s.\n\n", time.UnixMilli(rep.CreatedAt).UTC().Format(time.RFC3339))
	}

	fmt.Fprintf(&b, "## Differences (%d)\n\n", rep.Result.Count)
	if rep.Result.Identical() {
		b.WriteString("The documents are structurally identical.\n")
	} else {
		b.WriteString("```diff\n")
		b.WriteString(rep.Result.Summary)
		b.WriteString("\n```\n")
	}

	if ev := rep.Evaluation; ev != nil {
		b.WriteString("\n## Evaluation\n\n")
		b.WriteString(ev.Summary)
		b.WriteString("\n\n")
		if len(ev.ChangeTypes) > 0 {
			fmt.Fprintf(&b, "- **Change types:** %s\n", strings.Join(ev.ChangeTypes, ", "))
		}
		if len(ev.ImpactedSections) > 0 {
			fmt.Fprintf(&b, "- **Impacted sections:** %s\n", strings.Join(ev.ImpactedSections, ", "))
		}
		if ev.LikelyIntent != "" {
			fmt.Fprintf(&b, "- **Likely intent:** %s\n", ev.LikelyIntent)
		}
		if ev.Model != "" {
			fmt.Fprintf(&b, "- **Model:** %s\n", ev.Model)
		}
	}

	_, err := io.WriteString(w, b.String())
	return err
}

func mdCell(s string) string {
	return strings.ReplaceAll(s, "|", `\|`)
}

func short(hash string) string {
	if len(hash) > 12 {
		return hash[:12]
	}
	return hash
}
