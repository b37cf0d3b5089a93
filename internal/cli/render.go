package cli

import (
	"fmt"
	"io"
	"strings"
	"time"

	"github.com/charmbracelet/lipgloss"
	"golang.org/x/text/language"
	"golang.org/x/text/message"

	"github.com/rshade/rowprompt/internal/engine"
	"github.com/rshade/rowprompt/internal/output"
)

const (
	summaryBoxWidth     = 56
	summaryTitlePadding = 4
)

// boxBorderColor returns the lipgloss.Color used for summary box borders.
func boxBorderColor() lipgloss.Color { return lipgloss.Color("240") }

// boxTitleColor returns the Lip Gloss color used for summary box titles.
func boxTitleColor() lipgloss.Color { return lipgloss.Color("39") }

func colorOK() lipgloss.Color { return lipgloss.Color("42") }

func colorFailed() lipgloss.Color { return lipgloss.Color("196") }

// renderSummary writes the run summary to w, styled on a terminal and as
// plain text otherwise.
func renderSummary(w io.Writer, res *engine.Result, art output.Artifacts) error {
	if isWriterTerminal(w) {
		return renderStyledSummary(w, res, art)
	}
	return renderPlainSummary(w, res, art)
}

// summaryLines returns the label/value pairs shared by both renderings.
func summaryLines(p *message.Printer, res *engine.Result, art output.Artifacts) [][2]string {
	lines := [][2]string{
		{"Rows in input", p.Sprintf("%d", res.TotalRows)},
		{"Processed", p.Sprintf("%d", res.Processed)},
		{"Succeeded", p.Sprintf("%d", res.Succeeded)},
		{"Failed", p.Sprintf("%d", res.Failed)},
		{"Skipped (already done)", p.Sprintf("%d", res.Skipped)},
		{"Ignored", p.Sprintf("%d", res.Ignored)},
		{"Duration", res.Duration.Round(time.Millisecond).String()},
	}
	if res.RecordErrors > 0 {
		lines = append(lines, [2]string{"Progress not saved", p.Sprintf("%d", res.RecordErrors)})
	}
	lines = append(lines, [2]string{"Output", art.CSVPath})
	if art.LogPath != "" {
		lines = append(lines, [2]string{"Error log", art.LogPath})
	}
	return lines
}

// renderPlainSummary writes the summary as aligned plain text.
func renderPlainSummary(w io.Writer, res *engine.Result, art output.Artifacts) error {
	p := message.NewPrinter(language.English)

	if _, err := fmt.Fprintln(w, "RUN SUMMARY"); err != nil {
		return err
	}
	if _, err := fmt.Fprintln(w, strings.Repeat("=", len("RUN SUMMARY"))); err != nil {
		return err
	}
	for _, line := range summaryLines(p, res, art) {
		if _, err := fmt.Fprintf(w, "%-24s %s\n", line[0]+":", line[1]); err != nil {
			return err
		}
	}
	if res.Cancelled {
		if _, err := fmt.Fprintln(w, "Run interrupted: remaining rows will be processed on the next run."); err != nil {
			return err
		}
	}
	return nil
}

// renderStyledSummary writes the summary inside a rounded Lip Gloss box.
func renderStyledSummary(w io.Writer, res *engine.Result, art output.Artifacts) error {
	p := message.NewPrinter(language.English)

	titleStyle := lipgloss.NewStyle().
		Bold(true).
		Foreground(boxTitleColor())
	labelStyle := lipgloss.NewStyle().Width(24)
	borderStyle := lipgloss.NewStyle().
		BorderStyle(lipgloss.RoundedBorder()).
		BorderForeground(boxBorderColor()).
		Padding(0, 1).
		Width(summaryBoxWidth)

	status := lipgloss.NewStyle().Bold(true).Foreground(colorOK()).Render("COMPLETE")
	switch {
	case res.Cancelled:
		status = lipgloss.NewStyle().Bold(true).Foreground(colorFailed()).Render("INTERRUPTED")
	case res.Failed > 0:
		status = lipgloss.NewStyle().Bold(true).Foreground(colorFailed()).
			Render(p.Sprintf("%d ROW(S) FAILED", res.Failed))
	}

	var content strings.Builder
	content.WriteString(titleStyle.Render("RUN SUMMARY"))
	content.WriteString("  ")
	content.WriteString(status)
	content.WriteString("\n")
	content.WriteString(strings.Repeat("═", summaryBoxWidth-summaryTitlePadding))
	content.WriteString("\n")
	for _, line := range summaryLines(p, res, art) {
		content.WriteString(labelStyle.Render(line[0]))
		content.WriteString(line[1])
		content.WriteString("\n")
	}

	_, err := fmt.Fprintln(w, borderStyle.Render(strings.TrimSuffix(content.String(), "\n")))
	return err
}

// newProgressPrinter returns a progress callback that redraws a single
// status line on w.
func newProgressPrinter(w io.Writer) engine.ProgressCallback {
	p := message.NewPrinter(language.English)
	return func(s engine.ProgressSnapshot) {
		line := p.Sprintf("\r%5.1f%%  %d/%d rows  %d failed  %.1f rows/s",
			s.PercentComplete, s.CompletedRows, s.TotalRows, s.FailedRows, s.RowsPerSecond)
		if s.ETA > 0 {
			line += "  ETA " + s.ETA.Round(time.Second).String()
		}
		if s.CompletedRows >= s.TotalRows {
			line += "\n"
		}
		_, _ = fmt.Fprint(w, line)
	}
}
