package fetcher

import (
	"context"
	"fmt"
	"io"
	"net/http"
	"path/filepath"
	"time"

	"fanslydl/pkg/dedup"
	errs "fanslydl/pkg/errors"
	"fanslydl/pkg/logger"
	"fanslydl/pkg/media"
	"fanslydl/pkg/ratelimit"
	"fanslydl/pkg/retry"
	"fanslydl/pkg/storage"
)

// Outcome is what happened to one descriptor
type Outcome int

const (
	OutcomeWritten Outcome = iota
	OutcomeDuplicate
	OutcomeSkippedPreview
	OutcomeFailed
)

func (o Outcome) String() string {
	switch o {
	case OutcomeWritten:
		return "written"
	case OutcomeDuplicate:
		return "skipped-duplicate"
	case OutcomeSkippedPreview:
		return "skipped-preview"
	default:
		return "failed"
	}
}

// Result describes a finished Fetch
type Result struct {
	Outcome  Outcome
	Path     string
	Hash     string
	Size     int64
	Attempts int
	Err      error
}

// Opener starts a download of a CDN URL
type Opener interface {
	OpenMedia(ctx context.Context, url string, cookies map[string]string) (*http.Response, error)
}

// Assembler materialises an HLS stream at dest
type Assembler interface {
	Assemble(ctx context.Context, playlistURL string, cookies map[string]string, dest string) (int64, error)
}

// Options configure a Fetcher
type Options struct {
	Layout           storage.Layout
	DownloadPreviews bool
	// ItemRetries is the number of attempts per item
	ItemRetries int
	// Pacer spaces out consecutive downloads; nil disables pacing
	Pacer *ratelimit.Pacer
}

// Fetcher turns descriptors into files on disk
type Fetcher struct {
	opener    Opener
	assembler Assembler
	storage   *storage.Manager
	dedup     *dedup.Engine
	opts      Options
	backoff   retry.BackoffStrategy
	logger    logger.Logger
}

// New creates a fetcher. assembler may be nil when no HLS content is expected.
func New(opener Opener, assembler Assembler, store *storage.Manager, engine *dedup.Engine, opts Options, log logger.Logger) *Fetcher {
	if log == nil {
		log = logger.GetLogger()
	}
	if opts.ItemRetries <= 0 {
		opts.ItemRetries = 3
	}
	return &Fetcher{
		opener:    opener,
		assembler: assembler,
		storage:   store,
		dedup:     engine,
		opts:      opts,
		backoff:   retry.DefaultExponentialBackoff(),
		logger:    log,
	}
}

// SetBackoff replaces the delay policy between item attempts
func (f *Fetcher) SetBackoff(b retry.BackoffStrategy) {
	f.backoff = b
}

// Fetch materialises one descriptor found in source for creator.
// Nothing appears under the final name unless the whole transfer succeeded.
func (f *Fetcher) Fetch(ctx context.Context, creator string, source media.Source, d media.Descriptor) Result {
	log := f.logger.WithFields(map[string]interface{}{
		"creator":  creator,
		"media_id": d.ID,
		"kind":     d.Kind.String(),
	})

	if d.Preview && !f.opts.DownloadPreviews {
		logger.LogDownload(log, creator, d.ID, d.Kind.String(), OutcomeSkippedPreview.String(), nil)
		return Result{Outcome: OutcomeSkippedPreview}
	}
	if f.dedup.SeenID(d) {
		logger.LogDownload(log, creator, d.ID, d.Kind.String(), OutcomeDuplicate.String(), nil)
		return Result{Outcome: OutcomeDuplicate}
	}

	dest, err := f.opts.Layout.Path(creator, source, d, d.Filename())
	if err != nil {
		return Result{Outcome: OutcomeFailed, Err: err}
	}

	if f.opts.Pacer != nil {
		if err := f.opts.Pacer.Wait(ctx); err != nil {
			return Result{Outcome: OutcomeFailed, Err: err}
		}
	}

	var res Result
	err = retry.Do(func() error {
		res.Attempts++
		var attemptErr error
		if d.IsHLS() {
			attemptErr = f.fetchStream(ctx, d, dest, &res)
		} else {
			attemptErr = f.fetchDirect(ctx, d, dest, &res)
		}
		return attemptErr
	}, &retry.Config{
		MaxAttempts: f.opts.ItemRetries,
		Backoff:     f.backoff,
		RetryIf:     retry.DefaultRetryIf,
		Context:     ctx,
		Logger:      log,
	})
	if err != nil {
		res.Outcome = OutcomeFailed
		res.Err = fmt.Errorf("media %s: %w", d.ID, err)
	}

	logger.LogDownload(log, creator, d.ID, d.Kind.String(), res.Outcome.String(), res.Err)
	return res
}

func (f *Fetcher) fetchDirect(ctx context.Context, d media.Descriptor, dest string, res *Result) error {
	resp, err := f.opener.OpenMedia(ctx, d.URL, d.Metadata)
	if err != nil {
		return err
	}
	defer resp.Body.Close()

	pending, err := f.storage.Create(dest)
	if err != nil {
		return err
	}

	hasher := dedup.NewHasher(d.Kind)
	expected := d.Size
	if expected == 0 && resp.ContentLength > 0 {
		expected = resp.ContentLength
	}

	start := time.Now()
	n, err := io.Copy(io.MultiWriter(pending, hasher), resp.Body)
	if err != nil {
		pending.Abort()
		if ctxErr := ctx.Err(); ctxErr != nil {
			return ctxErr
		}
		return errs.Wrap(errs.ErrorTypeDownload, err, "transfer interrupted")
	}
	if expected > 0 && n != expected {
		pending.Abort()
		return errs.New(errs.ErrorTypeDownload, fmt.Sprintf("short transfer: got %d of %d bytes", n, expected))
	}
	if err := pending.Close(); err != nil {
		pending.Abort()
		return err
	}

	hash, err := hasher.Sum()
	if err != nil {
		// an undecodable image is still kept, identified by id only
		f.logger.WarnWithFields("could not hash media", map[string]interface{}{
			"media_id": d.ID,
			"error":    err.Error(),
		})
		hash = ""
	}

	if hash != "" && f.dedup.IsDuplicate(d, hash) {
		pending.Abort()
		f.dedup.Record(d, "", "")
		res.Outcome = OutcomeDuplicate
		res.Hash = hash
		return nil
	}

	final := filepath.Join(filepath.Dir(dest), d.FilenameWithHash(hash))
	if err := pending.Commit(final); err != nil {
		return err
	}
	f.dedup.Record(d, hash, filepath.Base(final))

	f.logger.DebugWithFields("media written", map[string]interface{}{
		"media_id": d.ID,
		"path":     final,
		"size":     n,
		"duration": time.Since(start),
	})
	*res = Result{Outcome: OutcomeWritten, Path: final, Hash: hash, Size: n, Attempts: res.Attempts}
	return nil
}

func (f *Fetcher) fetchStream(ctx context.Context, d media.Descriptor, dest string, res *Result) error {
	if f.assembler == nil {
		return errs.ErrFFmpegNotFound
	}
	if err := f.storage.EnsureDir(filepath.Dir(dest)); err != nil {
		return err
	}

	tmp := storage.TempPath(dest)
	n, err := f.assembler.Assemble(ctx, d.URL, d.Metadata, tmp)
	if err != nil {
		f.storage.Remove(tmp)
		return err
	}

	hash, err := dedup.HashFile(f.storage.Fs(), tmp, d.Kind)
	if err != nil {
		f.storage.Remove(tmp)
		return errs.Wrap(errs.ErrorTypeFilesystem, err, "failed to hash stream")
	}

	if f.dedup.IsDuplicate(d, hash) {
		f.storage.Remove(tmp)
		f.dedup.Record(d, "", "")
		res.Outcome = OutcomeDuplicate
		res.Hash = hash
		return nil
	}

	final := filepath.Join(filepath.Dir(dest), d.FilenameWithHash(hash))
	if err := f.storage.Promote(tmp, final); err != nil {
		return err
	}
	f.dedup.Record(d, hash, filepath.Base(final))
	*res = Result{Outcome: OutcomeWritten, Path: final, Hash: hash, Size: n, Attempts: res.Attempts}
	return nil
}
