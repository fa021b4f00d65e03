package ui

import (
	"fmt"
	"strings"
	"sync"
	"time"

	"fanslydl/pkg/fetcher"
	"fanslydl/pkg/media"
	"fanslydl/pkg/scraper"
)

// ProgressDisplay prints a single updating progress line per creator.
// It implements scraper.Observer.
type ProgressDisplay struct {
	mu         sync.Mutex
	creator    string
	source     media.Source
	written    int
	duplicates int
	skipped    int
	errors     int
	bytes      int64
	startTime  time.Time
	isDebug    bool
}

var _ scraper.Observer = (*ProgressDisplay)(nil)

// NewProgressDisplay creates a progress display; in debug mode every item gets its own line
func NewProgressDisplay(debug bool) *ProgressDisplay {
	return &ProgressDisplay{isDebug: debug}
}

// CreatorStarted resets the counters for a new creator
func (p *ProgressDisplay) CreatorStarted(creator string) {
	p.mu.Lock()
	defer p.mu.Unlock()

	p.creator = creator
	p.source = ""
	p.written, p.duplicates, p.skipped, p.errors = 0, 0, 0, 0
	p.bytes = 0
	p.startTime = time.Now()

	if !IsQuietMode() {
		printf("\n%s %s\n", Magenta("→"), Cyan("@"+creator))
	}
}

// SourceStarted notes which source is being walked
func (p *ProgressDisplay) SourceStarted(creator string, source media.Source) {
	p.mu.Lock()
	defer p.mu.Unlock()

	p.source = source
	if p.isDebug && !IsQuietMode() {
		printf("\n%s Scanning %s...\n", Magenta("→"), source)
	}
}

// ItemDone records one fetch result
func (p *ProgressDisplay) ItemDone(creator string, d media.Descriptor, r fetcher.Result) {
	p.mu.Lock()
	defer p.mu.Unlock()

	switch r.Outcome {
	case fetcher.OutcomeWritten:
		p.written++
		p.bytes += r.Size
	case fetcher.OutcomeDuplicate:
		p.duplicates++
	case fetcher.OutcomeSkippedPreview:
		p.skipped++
	default:
		p.errors++
	}

	if IsQuietMode() {
		return
	}
	if p.isDebug {
		p.printDebugItem(d, r)
		return
	}
	printf("%s", p.line())
}

// CreatorFinished prints the creator summary
func (p *ProgressDisplay) CreatorFinished(stats *scraper.CreatorStats) {
	p.mu.Lock()
	defer p.mu.Unlock()

	if stats.Err != nil {
		printf("\n%s %s: %v\n", Red("✗"), stats.Creator, stats.Err)
		return
	}
	if IsQuietMode() {
		return
	}
	printf("\n%s %d new files from @%s • %s in %s\n",
		Green("✓"),
		stats.Written(),
		stats.Creator,
		FormatBytes(stats.Bytes),
		FormatDuration(stats.Elapsed),
	)
	if stats.Failed > 0 {
		printf("  %s %d downloads failed\n", Dim("•"), stats.Failed)
	}
}

// line renders the progress line, starting with a carriage return
func (p *ProgressDisplay) line() string {
	elapsed := time.Since(p.startTime)
	rate := 0.0
	if m := elapsed.Minutes(); m > 0 {
		rate = float64(p.written) / m
	}

	line := fmt.Sprintf("%s [%s] %d new • %d dup • %.1f/min • %s",
		Cyan(p.creator),
		p.source,
		p.written,
		p.duplicates,
		rate,
		FormatBytes(p.bytes),
	)
	if p.skipped > 0 {
		line += fmt.Sprintf(" • %d previews skipped", p.skipped)
	}
	if p.errors > 0 {
		line += fmt.Sprintf(" • %s", Red(fmt.Sprintf("%d errors", p.errors)))
	}
	return "\r" + strings.Repeat(" ", 100) + "\r" + line
}

func (p *ProgressDisplay) printDebugItem(d media.Descriptor, r fetcher.Result) {
	switch r.Outcome {
	case fetcher.OutcomeWritten:
		printf("%s %s %s • %s\n", Green("✓"), d.Kind, d.ID, FormatBytes(r.Size))
	case fetcher.OutcomeFailed:
		printf("%s %s %s - %v\n", Red("✗"), d.Kind, d.ID, r.Err)
	default:
		printf("%s %s %s (%s)\n", Dim("•"), d.Kind, d.ID, r.Outcome)
	}
}
