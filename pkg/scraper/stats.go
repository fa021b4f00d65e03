package scraper

import (
	stderrors "errors"
	"fmt"
	"time"

	errs "fanslydl/pkg/errors"
	"fanslydl/pkg/fetcher"
	"fanslydl/pkg/media"
	"fanslydl/pkg/traversal"
)

// CreatorStats accumulates the outcome of one creator's pipeline
type CreatorStats struct {
	Creator         string
	Pictures        int
	Videos          int
	Audio           int
	Duplicates      int
	PreviewsSkipped int
	Failed          int
	Bytes           int64
	Elapsed         time.Duration
	Sources         []traversal.Summary
	// Err is set when the creator could not be processed to the end
	Err error
}

// Add records the result of one fetch
func (s *CreatorStats) Add(d media.Descriptor, r fetcher.Result) {
	switch r.Outcome {
	case fetcher.OutcomeWritten:
		switch d.Kind {
		case media.KindImage:
			s.Pictures++
		case media.KindVideo:
			s.Videos++
		case media.KindAudio:
			s.Audio++
		}
		s.Bytes += r.Size
	case fetcher.OutcomeDuplicate:
		s.Duplicates++
	case fetcher.OutcomeSkippedPreview:
		s.PreviewsSkipped++
	default:
		s.Failed++
	}
}

// Written is the number of new files
func (s *CreatorStats) Written() int {
	return s.Pictures + s.Videos + s.Audio
}

// RunStats aggregates a whole run
type RunStats struct {
	Creators  []*CreatorStats
	Processed int
	Failed    int
	Elapsed   time.Duration
}

// Totals sums the per-creator counters
func (r *RunStats) Totals() CreatorStats {
	total := CreatorStats{Creator: "total", Elapsed: r.Elapsed}
	for _, c := range r.Creators {
		total.Pictures += c.Pictures
		total.Videos += c.Videos
		total.Audio += c.Audio
		total.Duplicates += c.Duplicates
		total.PreviewsSkipped += c.PreviewsSkipped
		total.Failed += c.Failed
		total.Bytes += c.Bytes
	}
	return total
}

// Err summarises creator failures as a single error.
// Some-but-not-all failing creators yield a partial failure; when every
// creator failed the first failure decides the category.
func (r *RunStats) Err() error {
	if r.Failed == 0 {
		return nil
	}

	var failures []error
	for _, c := range r.Creators {
		if c.Err != nil {
			failures = append(failures, fmt.Errorf("%s: %w", c.Creator, c.Err))
		}
	}
	if r.Processed > 0 {
		return &PartialFailure{Failed: r.Failed, Total: r.Failed + r.Processed, Err: stderrors.Join(failures...)}
	}
	if len(failures) == 1 {
		return failures[0]
	}
	return fmt.Errorf("%w (and %d more)", failures[0], len(failures)-1)
}

// PartialFailure means at least one creator succeeded and at least one failed
type PartialFailure struct {
	Failed int
	Total  int
	Err    error
}

func (p *PartialFailure) Error() string {
	return fmt.Sprintf("%d of %d creators failed", p.Failed, p.Total)
}

func (p *PartialFailure) Unwrap() error { return p.Err }

// ExitCode maps a run error to a process exit code
func ExitCode(err error) int {
	var partial *PartialFailure
	if stderrors.As(err, &partial) {
		return errs.ExitSomeUsersFailed
	}
	return errs.ExitCode(err)
}
