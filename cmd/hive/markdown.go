package main

import (
	"fmt"
	"io"
	"os"
	"strings"
	"text/tabwriter"

	"github.com/charmbracelet/glamour"
	"github.com/charmbracelet/lipgloss"
	"golang.org/x/term"

	"hive/internal/present"
)

const defaultWrapWidth = 100

var chartTitleStyle = lipgloss.NewStyle().Bold(true).Underline(true)

// renderer formats assistant responses for the terminal: markdown through
// glamour, extracted charts as aligned tables.
type renderer struct {
	markdown *glamour.TermRenderer
	out      io.Writer
}

func newRenderer(out io.Writer) *renderer {
	width := defaultWrapWidth
	if w, _, err := term.GetSize(int(os.Stdout.Fd())); err == nil && w > 20 {
		width = w - 2
	}
	md, err := glamour.NewTermRenderer(
		glamour.WithAutoStyle(),
		glamour.WithWordWrap(width),
	)
	if err != nil {
		md = nil
	}
	return &renderer{markdown: md, out: out}
}

// Markdown renders text as terminal markdown, falling back to plain text.
func (r *renderer) Markdown(text string) {
	if r.markdown != nil {
		if out, err := r.markdown.Render(text); err == nil {
			fmt.Fprint(r.out, out)
			return
		}
	}
	fmt.Fprintln(r.out, text)
}

// Charts prints each extracted chart as a titled table built from its
// normalized dataset.
func (r *renderer) Charts(charts []present.Chart) {
	for _, chart := range charts {
		dataset := chart.Dataset()
		if len(dataset) == 0 {
			continue
		}
		title := chart.Title
		if title == "" {
			title = capitalize(chart.Type) + " chart"
		}
		fmt.Fprintf(r.out, "\n%s\n", chartTitleStyle.Render(title))

		tw := tabwriter.NewWriter(r.out, 2, 4, 2, ' ', 0)
		for i, row := range dataset {
			cells := make([]string, 0, len(row))
			for _, cell := range row {
				cells = append(cells, formatCell(cell))
			}
			fmt.Fprintln(tw, strings.Join(cells, "\t"))
			if i == 0 {
				underline := make([]string, len(cells))
				for j, cell := range cells {
					underline[j] = strings.Repeat("-", len(cell))
				}
				fmt.Fprintln(tw, strings.Join(underline, "\t"))
			}
		}
		tw.Flush()
	}
}

func capitalize(s string) string {
	if s == "" {
		return s
	}
	return strings.ToUpper(s[:1]) + s[1:]
}

func formatCell(v any) string {
	switch n := v.(type) {
	case float64:
		if n == float64(int64(n)) {
			return fmt.Sprintf("%d", int64(n))
		}
		return fmt.Sprintf("%.2f", n)
	default:
		return fmt.Sprintf("%v", v)
	}
}
