package downloader

import (
	"context"
	"fmt"
	"time"

	"golang.org/x/sync/errgroup"

	"fanslydl/pkg/logger"
	"fanslydl/pkg/ratelimit"
	"fanslydl/pkg/retry"
)

// DefaultWorkers is the segment download concurrency
const DefaultWorkers = 4

// SegmentJob is one stream segment to fetch into Dest
type SegmentJob struct {
	Index int
	URL   string
	Dest  string
}

// SegmentResult is the outcome of a segment job
type SegmentResult struct {
	Job      SegmentJob
	Size     int64
	Attempts int
	Error    error
	Duration time.Duration
}

// SegmentFetcher downloads a single segment to a file
type SegmentFetcher interface {
	FetchSegment(ctx context.Context, url, dest string) (int64, error)
}

// WorkerPool runs segment jobs with bounded concurrency
type WorkerPool struct {
	numWorkers  int
	maxAttempts int
	backoff     retry.BackoffStrategy
	fetcher     SegmentFetcher
	rateLimiter ratelimit.Limiter
	logger      logger.Logger
}

// NewWorkerPool creates a new segment worker pool
func NewWorkerPool(
	numWorkers int,
	maxAttempts int,
	fetcher SegmentFetcher,
	rateLimiter ratelimit.Limiter,
	log logger.Logger,
) *WorkerPool {
	if log == nil {
		log = logger.GetLogger()
	}
	if numWorkers <= 0 {
		numWorkers = DefaultWorkers
	}
	if maxAttempts <= 0 {
		maxAttempts = 3
	}
	if rateLimiter == nil {
		rateLimiter = ratelimit.Nop{}
	}

	return &WorkerPool{
		numWorkers:  numWorkers,
		maxAttempts: maxAttempts,
		backoff:     retry.DefaultExponentialBackoff(),
		fetcher:     fetcher,
		rateLimiter: rateLimiter,
		logger:      log,
	}
}

// SetBackoff replaces the delay policy between segment attempts
func (wp *WorkerPool) SetBackoff(b retry.BackoffStrategy) {
	wp.backoff = b
}

// Run fetches every job and returns results in job order.
// The first job that exhausts its attempts cancels the rest.
func (wp *WorkerPool) Run(ctx context.Context, jobs []SegmentJob) ([]SegmentResult, error) {
	wp.logger.DebugWithFields("starting segment pool", map[string]interface{}{
		"num_workers": wp.numWorkers,
		"jobs":        len(jobs),
	})

	g, ctx := errgroup.WithContext(ctx)
	g.SetLimit(wp.numWorkers)

	results := make([]SegmentResult, len(jobs))
	for i, job := range jobs {
		i, job := i, job
		g.Go(func() error {
			results[i] = wp.processJob(ctx, job)
			return results[i].Error
		})
	}

	err := g.Wait()
	return results, err
}

// processJob handles a single segment with retries
func (wp *WorkerPool) processJob(ctx context.Context, job SegmentJob) SegmentResult {
	start := time.Now()
	result := SegmentResult{Job: job}

	size, err := retry.DoWithResult(func() (int64, error) {
		result.Attempts++
		if err := wp.rateLimiter.Wait(ctx); err != nil {
			return 0, err
		}
		return wp.fetcher.FetchSegment(ctx, job.URL, job.Dest)
	}, &retry.Config{
		MaxAttempts: wp.maxAttempts,
		Backoff:     wp.backoff,
		RetryIf:     retry.DefaultRetryIf,
		Context:     ctx,
		Logger:      wp.logger,
	})

	result.Duration = time.Since(start)
	if err != nil {
		result.Error = fmt.Errorf("segment %d: %w", job.Index, err)
		wp.logger.ErrorWithFields("segment download failed", map[string]interface{}{
			"segment":  job.Index,
			"attempts": result.Attempts,
			"error":    err.Error(),
			"duration": result.Duration,
		})
		return result
	}

	result.Size = size
	wp.logger.DebugWithFields("segment downloaded", map[string]interface{}{
		"segment":  job.Index,
		"size":     size,
		"duration": result.Duration,
	})
	return result
}
