package ui

import (
	"fmt"
	"time"

	"github.com/jedib0t/go-pretty/v6/table"
	"github.com/jedib0t/go-pretty/v6/text"

	"fanslydl/pkg/scraper"
)

var statsHeader = table.Row{"Creator", "Pictures", "Videos", "Audio", "Duplicates", "Previews skipped", "Failed", "Size", "Time", "Status"}

// RenderStats renders the per-creator statistics of a run as a table
func RenderStats(run *scraper.RunStats) string {
	tw := table.NewWriter()
	tw.SetStyle(table.StyleRounded)
	tw.AppendHeader(statsHeader)

	for _, c := range run.Creators {
		tw.AppendRow(statsRow(c, status(c)))
	}
	if len(run.Creators) > 1 {
		total := run.Totals()
		tw.AppendFooter(statsRow(&total, fmt.Sprintf("%d ok / %d failed", run.Processed, run.Failed)))
	}

	configs := make([]table.ColumnConfig, 0, len(statsHeader))
	for i := range statsHeader {
		align := text.AlignRight
		if i == 0 || i == len(statsHeader)-1 {
			align = text.AlignLeft
		}
		configs = append(configs, table.ColumnConfig{Number: i + 1, Align: align, AlignHeader: text.AlignLeft})
	}
	tw.SetColumnConfigs(configs)

	return tw.Render()
}

func statsRow(c *scraper.CreatorStats, state string) table.Row {
	return table.Row{
		c.Creator,
		c.Pictures,
		c.Videos,
		c.Audio,
		c.Duplicates,
		c.PreviewsSkipped,
		c.Failed,
		FormatBytes(c.Bytes),
		FormatDuration(c.Elapsed),
		state,
	}
}

func status(c *scraper.CreatorStats) string {
	if c.Err != nil {
		return "failed: " + c.Err.Error()
	}
	return "ok"
}

// PrintStats writes the statistics table to the console
func PrintStats(run *scraper.RunStats) {
	if IsQuietMode() {
		return
	}
	printf("\n%s\n", RenderStats(run))
}

// FormatDuration formats a duration in a human-readable way
func FormatDuration(d time.Duration) string {
	switch {
	case d < time.Minute:
		return fmt.Sprintf("%ds", int(d.Seconds()))
	case d < time.Hour:
		return fmt.Sprintf("%dm%ds", int(d.Minutes()), int(d.Seconds())%60)
	default:
		return fmt.Sprintf("%dh%dm", int(d.Hours()), int(d.Minutes())%60)
	}
}

// FormatBytes formats bytes in a human-readable way
func FormatBytes(bytes int64) string {
	const unit = 1024
	if bytes < unit {
		return fmt.Sprintf("%d B", bytes)
	}

	div, exp := int64(unit), 0
	for n := bytes / unit; n >= unit; n /= unit {
		div *= unit
		exp++
	}
	return fmt.Sprintf("%.1f %cB", float64(bytes)/float64(div), "KMGTPE"[exp])
}
