package render

import (
	"encoding/json"
	"fmt"
	"io"
	"strings"

	"github.com/charmbracelet/lipgloss"
	"github.com/mattn/go-runewidth"
	"github.com/muesli/reflow/wordwrap"

	"go.withmatt.com/mailcode/internal/config"
	"go.withmatt.com/mailcode/internal/extract"
)

const (
	snippetWidth = 200
	bodyWidth    = 100
	wrapWidth    = 72
	labelWidth   = 9
)

const (
	noMessages = "No messages found."
	notFound   = "[not found]"
)

// Options controls how results are written.
type Options struct {
	Format  string
	Pattern string
}

// Results writes results to w in the requested format.
func Results(w io.Writer, results []extract.Result, opts Options) error {
	switch opts.Format {
	case "", config.FormatText:
		return Text(w, results, opts.Pattern)
	case config.FormatJSON:
		return JSON(w, results)
	case config.FormatCode:
		return Codes(w, results)
	default:
		return fmt.Errorf("unknown format %q", opts.Format)
	}
}

type styles struct {
	label   lipgloss.Style
	subject lipgloss.Style
	code    lipgloss.Style
	missing lipgloss.Style
	rule    lipgloss.Style
}

func newStyles(w io.Writer) styles {
	r := lipgloss.NewRenderer(w)
	return styles{
		label:   r.NewStyle().Width(labelWidth).Foreground(lipgloss.Color("8")),
		subject: r.NewStyle().Bold(true),
		code:    r.NewStyle().Bold(true).Foreground(lipgloss.Color("10")),
		missing: r.NewStyle().Faint(true),
		rule:    r.NewStyle().Foreground(lipgloss.Color("8")),
	}
}

// Text writes one block per result. The snippet and body are shortened for
// display; the pattern ran against the full text.
func Text(w io.Writer, results []extract.Result, pattern string) error {
	if len(results) == 0 {
		_, err := fmt.Fprintln(w, noMessages)
		return err
	}

	s := newStyles(w)
	var b strings.Builder
	for i, res := range results {
		if i > 0 {
			b.WriteString(s.rule.Render(strings.Repeat("─", wrapWidth)))
			b.WriteString("\n")
		}
		field := func(name, value string) {
			b.WriteString(s.label.Render(name + ":"))
			b.WriteString(value)
			b.WriteString("\n")
		}

		field("id", res.ID)
		field("date", res.Date)
		field("from", res.From)
		field("to", res.To)
		field("subject", s.subject.Render(res.Subject))
		field("snippet", Truncate(res.Snippet, snippetWidth))
		field("body", indent(wordwrap.String(Truncate(res.Text, bodyWidth), wrapWidth-labelWidth)))
		field("pattern", pattern)
		if res.Code != nil {
			field("code", s.code.Render(*res.Code))
		} else {
			field("code", s.missing.Render(notFound))
		}
	}

	_, err := io.WriteString(w, b.String())
	return err
}

// JSON writes results as an indented JSON array.
func JSON(w io.Writer, results []extract.Result) error {
	if results == nil {
		results = []extract.Result{}
	}
	enc := json.NewEncoder(w)
	enc.SetIndent("", "  ")
	return enc.Encode(results)
}

// Codes writes each matched code on its own line.
func Codes(w io.Writer, results []extract.Result) error {
	for _, res := range results {
		if res.Code == nil {
			continue
		}
		if _, err := fmt.Fprintln(w, *res.Code); err != nil {
			return err
		}
	}
	return nil
}

// Truncate shortens s to at most width display columns, collapsing
// whitespace runs to a single space first.
func Truncate(s string, width int) string {
	s = strings.Join(strings.Fields(s), " ")
	return runewidth.Truncate(s, width, "…")
}

func indent(s string) string {
	return strings.ReplaceAll(s, "\n", "\n"+strings.Repeat(" ", labelWidth))
}
