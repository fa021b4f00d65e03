package traversal

import (
	"context"
	"fmt"
	"time"

	"fanslydl/pkg/checkpoint"
	"fanslydl/pkg/logger"
	"fanslydl/pkg/media"
	"fanslydl/pkg/ratelimit"
)

// Target identifies the creator being walked
type Target struct {
	Name string
	ID   string
}

// Visitor receives the descriptors of each non-empty page in order.
// Returning stop ends the walk early without error.
type Visitor func(ctx context.Context, descriptors []media.Descriptor) (stop bool, err error)

// Options configure a Walker
type Options struct {
	// EmptyRetries is how many times an empty page is re-requested before the source is declared done
	EmptyRetries int
	// EmptyDelay is the wait before each re-request
	EmptyDelay time.Duration
	// Pacer spaces out page requests; nil disables pacing
	Pacer *ratelimit.Pacer
	// Checkpoints enables resume support for cursor-paged sources
	Checkpoints *checkpoint.Manager
}

// Summary reports what a walk did
type Summary struct {
	Source      media.Source
	Requests    int
	Pages       int
	Descriptors int
	Resumed     bool
	Stopped     bool
}

// Walker drives a PageSource to the end
type Walker struct {
	opts   Options
	logger logger.Logger
	sleep  func(ctx context.Context, d time.Duration) error
}

// NewWalker creates a walker
func NewWalker(opts Options, log logger.Logger) *Walker {
	if log == nil {
		log = logger.GetLogger()
	}
	if opts.EmptyRetries < 0 {
		opts.EmptyRetries = 0
	}
	return &Walker{opts: opts, logger: log, sleep: sleep}
}

// Walk fetches pages from src until it is exhausted, an empty page survives
// the configured retries, or visit asks to stop
func (w *Walker) Walk(ctx context.Context, target Target, src PageSource, visit Visitor) (Summary, error) {
	summary := Summary{Source: src.Source()}
	log := w.logger.WithFields(map[string]interface{}{
		"creator": target.Name,
		"source":  string(src.Source()),
	})

	cursor, err := src.Start(ctx)
	if err != nil {
		return summary, fmt.Errorf("%s: %w", src.Source(), err)
	}
	if cursor.Exhausted {
		return summary, nil
	}

	cp := w.loadCheckpoint(target, src.Source())
	if cp != nil && cp.Cursor != "" {
		cursor.Token = cp.Cursor
		summary.Resumed = true
		log.InfoWithFields("Resuming from checkpoint", map[string]interface{}{"cursor": cp.Cursor})
	}

	empty := 0
	for !cursor.Exhausted {
		if w.opts.Pacer != nil {
			if err := w.opts.Pacer.Wait(ctx); err != nil {
				return summary, err
			}
		}

		summary.Requests++
		page, err := src.Fetch(ctx, cursor)
		if err != nil {
			return summary, fmt.Errorf("%s page %s: %w", src.Source(), cursor.Token, err)
		}

		if page.Empty() {
			empty++
			if empty > w.opts.EmptyRetries {
				log.DebugWithFields("No more content", map[string]interface{}{"attempts": empty})
				break
			}
			log.DebugWithFields("Empty page, retrying", map[string]interface{}{
				"attempt": empty,
				"delay":   w.opts.EmptyDelay.String(),
			})
			if err := w.sleep(ctx, w.opts.EmptyDelay); err != nil {
				return summary, err
			}
			continue
		}
		empty = 0
		summary.Pages++
		summary.Descriptors += len(page.Descriptors)

		if len(page.Descriptors) > 0 {
			stop, err := visit(ctx, page.Descriptors)
			if err != nil {
				return summary, err
			}
			if stop {
				summary.Stopped = true
				break
			}
		}

		cursor = page.Next
		if cp != nil && !cursor.Exhausted {
			if err := w.opts.Checkpoints.Advance(cp, cursor.Token); err != nil {
				log.WithError(err).Warn("Failed to save checkpoint")
			}
		}
	}

	if cp != nil {
		if err := w.opts.Checkpoints.Clear(target.Name, src.Source()); err != nil {
			log.WithError(err).Warn("Failed to clear checkpoint")
		}
	}
	return summary, nil
}

// loadCheckpoint returns the checkpoint to maintain, or nil when resume is off
// or the source is not cursor-paged
func (w *Walker) loadCheckpoint(target Target, source media.Source) *checkpoint.Checkpoint {
	if w.opts.Checkpoints == nil {
		return nil
	}
	if source != media.SourceTimeline && source != media.SourceMessages {
		return nil
	}

	cp, err := w.opts.Checkpoints.Load(target.Name, source)
	if err != nil {
		w.logger.WithError(err).Warn("Ignoring unreadable checkpoint")
		cp = nil
	}
	if cp == nil || cp.CreatorID != target.ID {
		cp = checkpoint.New(target.Name, target.ID, source)
	}
	return cp
}

func sleep(ctx context.Context, d time.Duration) error {
	if d <= 0 {
		return ctx.Err()
	}
	timer := time.NewTimer(d)
	defer timer.Stop()

	select {
	case <-timer.C:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}
