package main

import (
	"fmt"
	"io"
	"time"

	"capsolve/internal/logging"
	"capsolve/internal/types"

	"github.com/charmbracelet/lipgloss"
)

// Semantic colors
var (
	colorSuccess     = lipgloss.Color("#8BC34A") // Lime Green
	colorDestructive = lipgloss.Color("#e53935") // Red
	colorWarning     = lipgloss.Color("#FFC107") // Yellow
	colorInfo        = lipgloss.Color("#2196F3") // Blue
	colorMuted       = lipgloss.Color("#6b7280")
)

var (
	titleStyle = lipgloss.NewStyle().Bold(true)
	mutedStyle = lipgloss.NewStyle().Foreground(colorMuted)
	passStyle  = lipgloss.NewStyle().Foreground(colorSuccess).Bold(true)
	failStyle  = lipgloss.NewStyle().Foreground(colorDestructive).Bold(true)
	indent     = lipgloss.NewStyle().PaddingLeft(4)

	outcomeStyles = map[string]lipgloss.Style{
		"proven":      lipgloss.NewStyle().Foreground(colorSuccess),
		"ambiguous":   lipgloss.NewStyle().Foreground(colorWarning),
		"overflow":    lipgloss.NewStyle().Foreground(colorInfo),
		"no_solution": lipgloss.NewStyle().Foreground(colorDestructive),
		"error":       lipgloss.NewStyle().Foreground(colorDestructive).Bold(true),
	}
)

func outcome(s string) string {
	if st, ok := outcomeStyles[s]; ok {
		return st.Render(s)
	}
	return s
}

// renderResults prints one block per goal and a summary line.
func renderResults(out io.Writer, results []goalResult, withCandidates bool) {
	for _, r := range results {
		mark := passStyle.Render("ok  ")
		if r.Mismatch() {
			mark = failStyle.Render("FAIL")
		}
		meta := r.Elapsed.Round(time.Microsecond).String()
		if logging.IsDebugMode() {
			// Correlates the block with the goal's log entries.
			meta += " req=" + r.RequestID
		}
		fmt.Fprintf(out, "%s %s %s %s\n", mark, titleStyle.Render(r.Name), outcome(r.Outcome()), mutedStyle.Render(meta))
		if r.Goal != "" {
			fmt.Fprintln(out, indent.Render(mutedStyle.Render(r.Goal)))
		}
		if r.Err != nil {
			fmt.Fprintln(out, indent.Render(failStyle.Render(r.Err.Error())))
		}
		if r.Expected != "" && r.Mismatch() && r.Err == nil {
			fmt.Fprintln(out, indent.Render("expected "+outcome(r.Expected)))
		}
		for _, b := range r.Bindings {
			fmt.Fprintln(out, indent.Render(b))
		}
		if withCandidates {
			renderCandidates(out, r.Candidates)
		}
	}

	failed := countMismatches(results)
	summary := fmt.Sprintf("%d goals, %d failed", len(results), failed)
	if failed > 0 {
		fmt.Fprintln(out, failStyle.Render(summary))
	} else {
		fmt.Fprintln(out, passStyle.Render(summary))
	}
}

func renderCandidates(out io.Writer, cands []types.Candidate) {
	if len(cands) == 0 {
		fmt.Fprintln(out, indent.Render(mutedStyle.Render("no candidates")))
		return
	}
	for i, c := range cands {
		fmt.Fprintln(out, indent.Render(fmt.Sprintf("#%d %s => %s", i, c.Origin, outcome(c.Response.Certainty.String()))))
		if c.Response.HasConstraints() {
			fmt.Fprintln(out, indent.Render(mutedStyle.Render("   "+c.Response.String())))
		}
	}
}
