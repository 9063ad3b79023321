package cli

import (
	"fmt"
	"io"
	"log/slog"

	"github.com/schollz/progressbar/v3"

	"github.com/lukewarren/ledgerflow/internal/rules"
)

// RunProgress renders a progress bar for bulk rule runs.
type RunProgress struct {
	bar    *progressbar.ProgressBar
	writer io.Writer
}

// NewRunProgress creates a progress bar sized to the run.
func NewRunProgress(writer io.Writer, total int, description string) *RunProgress {
	bar := progressbar.NewOptions(total,
		progressbar.OptionSetWriter(writer),
		progressbar.OptionEnableColorCodes(true),
		progressbar.OptionShowCount(),
		progressbar.OptionShowElapsedTimeOnFinish(),
		progressbar.OptionSetWidth(40),
		progressbar.OptionSetDescription("[cyan]"+description+"[reset]"),
		progressbar.OptionSetTheme(progressbar.Theme{
			Saucer:        "[green]=[reset]",
			SaucerHead:    "[green]>[reset]",
			SaucerPadding: " ",
			BarStart:      "[",
			BarEnd:        "]",
		}),
		progressbar.OptionOnCompletion(func() {
			if _, err := fmt.Fprintln(writer); err != nil {
				slog.Warn("failed to write newline after progress bar", "error", err)
			}
		}),
	)
	return &RunProgress{bar: bar, writer: writer}
}

// Update implements rules.ProgressFunc.
func (p *RunProgress) Update(progress rules.Progress) {
	if err := p.bar.Set(progress.Processed); err != nil {
		slog.Warn("failed to update progress bar", "error", err)
	}
}

// Finish completes the bar regardless of the final processed count.
func (p *RunProgress) Finish() {
	if err := p.bar.Finish(); err != nil {
		slog.Warn("failed to finish progress bar", "error", err)
	}
}

// Summarize renders the aggregate outcome of a bulk run.
func Summarize(writer io.Writer, summary *rules.RunSummary) {
	line := fmt.Sprintf("%d applied, %d failed", summary.Succeeded, summary.Failed)
	if summary.Failed > 0 {
		fmt.Fprintln(writer, WarningStyle.Render(line))
		for _, failure := range summary.Failures {
			fmt.Fprintln(writer, ErrorStyle.Render(
				fmt.Sprintf("  %s: %s", failure.TransactionID, failure.Reason)))
		}
		return
	}
	fmt.Fprintln(writer, SuccessStyle.Render(line))
	fmt.Fprintln(writer, SubtleStyle.Render(
		fmt.Sprintf("  %d of %d transactions matched at least one rule",
			summary.Matched, summary.Processed)))
}
