package scraper

import (
	"context"
	stderrors "errors"
	"fmt"
	"time"

	"fanslydl/pkg/config"
	"fanslydl/pkg/dedup"
	errs "fanslydl/pkg/errors"
	"fanslydl/pkg/fansly"
	"fanslydl/pkg/fetcher"
	"fanslydl/pkg/logger"
	"fanslydl/pkg/media"
	"fanslydl/pkg/ratelimit"
	"fanslydl/pkg/storage"
	"fanslydl/pkg/traversal"
)

// collectionsName labels the account-wide collection pipeline
const collectionsName = "Collections"

// Client is the platform API as used by the orchestrator
type Client interface {
	traversal.API
	Start(ctx context.Context) error
	AccountByUsername(ctx context.Context, username string) (*fansly.Account, error)
	AccountByID(ctx context.Context, id string) (*fansly.Account, error)
}

// Options configure a Scraper
type Options struct {
	Mode   config.Mode
	PostID string
	Layout storage.Layout

	DownloadPreviews bool
	ItemRetries      int
	// DuplicateThreshold stops a source after this many consecutive duplicates; 0 disables it
	DuplicateThreshold int
	Dedup              dedup.Options

	Walk          traversal.Options
	DownloadPacer *ratelimit.Pacer
	Observer      Observer
}

// OptionsFromConfig maps the user configuration onto orchestrator options
func OptionsFromConfig(cfg *config.Config) Options {
	o := cfg.Options
	opts := Options{
		Mode:   o.Mode,
		PostID: cfg.Targets.PostID,
		Layout: storage.Layout{
			Root:             o.DownloadDir,
			UseFolderSuffix:  o.UseFolderSuffix,
			SeparateTimeline: o.SeparateTimeline,
			SeparateMessages: o.SeparateMessages,
			SeparatePreviews: o.SeparatePreviews,
		},
		DownloadPreviews: o.DownloadPreviews,
		ItemRetries:      o.ItemRetries,
		Dedup: dedup.Options{
			Perceptual:     o.UsePerceptualMatch,
			ImageThreshold: o.PHashThreshold,
		},
		Walk: traversal.Options{
			EmptyRetries: o.TimelineRetries,
			EmptyDelay:   o.TimelineDelay(),
			Pacer:        ratelimit.PageDelay(),
		},
		DownloadPacer: ratelimit.DownloadDelay(),
	}
	if o.UseDuplicateThreshold {
		opts.DuplicateThreshold = o.DuplicateThreshold
	}
	return opts
}

// Scraper runs the download pipeline one creator at a time
type Scraper struct {
	client    Client
	opener    fetcher.Opener
	assembler fetcher.Assembler
	storage   *storage.Manager
	opts      Options
	observer  Observer
	logger    logger.Logger
}

// New creates an orchestrator. assembler may be nil when ffmpeg is unavailable.
func New(client Client, opener fetcher.Opener, assembler fetcher.Assembler, store *storage.Manager, opts Options, log logger.Logger) *Scraper {
	if log == nil {
		log = logger.GetLogger()
	}
	if store == nil {
		store = storage.NewManager(nil)
	}
	observer := opts.Observer
	if observer == nil {
		observer = nopObserver{}
	}
	return &Scraper{
		client:    client,
		opener:    opener,
		assembler: assembler,
		storage:   store,
		opts:      opts,
		observer:  observer,
		logger:    log,
	}
}

// Run processes every creator in order. Per-creator failures are recorded
// in the returned stats; the error is non-nil only when the run could not
// start or was cancelled.
func (s *Scraper) Run(ctx context.Context, usernames []string) (*RunStats, error) {
	start := time.Now()
	run := &RunStats{}

	if err := s.client.Start(ctx); err != nil {
		return run, fmt.Errorf("session setup failed: %w", err)
	}

	targets, err := s.targets(usernames)
	if err != nil {
		return run, err
	}

	for _, name := range targets {
		if ctx.Err() != nil {
			break
		}
		stats := s.processCreator(ctx, name)
		run.Creators = append(run.Creators, stats)
		if stats.Err != nil {
			run.Failed++
		} else {
			run.Processed++
		}
	}

	run.Elapsed = time.Since(start)
	if err := ctx.Err(); err != nil {
		return run, err
	}
	return run, nil
}

// targets lists the pipelines to run; single and collection modes are not per creator
func (s *Scraper) targets(usernames []string) ([]string, error) {
	switch s.opts.Mode {
	case config.ModeCollection:
		return []string{collectionsName}, nil
	case config.ModeSingle:
		return []string{""}, nil
	}
	if len(usernames) == 0 {
		return nil, errs.New(errs.ErrorTypeConfig, "no creators to download")
	}
	return usernames, nil
}

func (s *Scraper) processCreator(ctx context.Context, name string) *CreatorStats {
	start := time.Now()
	stats := &CreatorStats{Creator: name}
	defer func() {
		stats.Elapsed = time.Since(start)
		s.observer.CreatorFinished(stats)
	}()

	account, drivers, err := s.plan(ctx, name)
	if err != nil {
		stats.Err = err
		s.logger.WithError(err).WithField("creator", name).Error("Failed to resolve creator")
		return stats
	}
	if account != nil {
		name = account.Username
		stats.Creator = name
	}
	s.observer.CreatorStarted(name)

	log := s.logger.WithField("creator", name)
	log.Info("Processing creator")

	var dir string
	if s.opts.Mode == config.ModeCollection {
		dir = s.opts.Layout.CollectionsDir()
	} else if dir, err = s.opts.Layout.CreatorDir(name); err != nil {
		stats.Err = err
		return stats
	}
	if err := s.storage.EnsureDir(dir); err != nil {
		stats.Err = err
		return stats
	}

	lock, err := storage.LockCreator(dir)
	if err != nil {
		stats.Err = err
		log.WithError(err).Error("Creator directory is locked")
		return stats
	}
	defer lock.Unlock()

	if n, err := s.storage.CleanTemp(dir); err != nil {
		log.WithError(err).Warn("Failed to clean temporary files")
	} else if n > 0 {
		log.WithField("removed", n).Info("Removed leftover temporary files")
	}

	engine := dedup.NewEngine(s.opts.Dedup)
	seeded, err := engine.Bootstrap(s.storage.Fs(), dir)
	if err != nil {
		stats.Err = errs.Wrap(errs.ErrorTypeFilesystem, err, "failed to scan existing files")
		return stats
	}
	log.WithField("known_files", seeded).Debug("Dedup state seeded from disk")

	f := fetcher.New(s.opener, s.assembler, s.storage, engine, fetcher.Options{
		Layout:           s.opts.Layout,
		DownloadPreviews: s.opts.DownloadPreviews,
		ItemRetries:      s.opts.ItemRetries,
		Pacer:            s.opts.DownloadPacer,
	}, log)

	target := traversal.Target{Name: name}
	if account != nil {
		target.ID = account.ID
	}
	walker := traversal.NewWalker(s.opts.Walk, log)

	for _, drv := range drivers {
		s.observer.SourceStarted(name, drv.Source())
		summary, err := walker.Walk(ctx, target, drv, s.visitor(name, drv.Source(), f, stats))
		stats.Sources = append(stats.Sources, summary)
		if summary.Stopped {
			log.WithField("source", string(drv.Source())).Info("Duplicate threshold reached, stopping source")
		}
		if err == nil {
			continue
		}
		if ctx.Err() == nil && s.opts.Mode == config.ModeNormal && drv.Source() == media.SourceMessages {
			log.WithError(err).Warn("Messages download failed")
			continue
		}
		stats.Err = err
		log.WithError(err).Error("Source failed")
		return stats
	}

	log.InfoWithFields("Creator finished", map[string]interface{}{
		"written":    stats.Written(),
		"duplicates": stats.Duplicates,
		"failed":     stats.Failed,
		"bytes":      stats.Bytes,
	})
	return stats
}

// plan resolves the account and the drivers for the configured mode
func (s *Scraper) plan(ctx context.Context, name string) (*fansly.Account, []traversal.PageSource, error) {
	if err := s.client.Start(ctx); err != nil {
		return nil, nil, err
	}

	switch s.opts.Mode {
	case config.ModeCollection:
		return nil, []traversal.PageSource{traversal.NewCollection(s.client)}, nil
	case config.ModeSingle:
		postID, err := traversal.ParsePostID(s.opts.PostID)
		if err != nil {
			return nil, nil, err
		}
		account, err := s.postAuthor(ctx, postID)
		if err != nil {
			return nil, nil, err
		}
		return account, []traversal.PageSource{traversal.NewSinglePost(s.client, postID)}, nil
	}

	account, err := s.client.AccountByUsername(ctx, name)
	if err != nil {
		return nil, nil, err
	}

	timeline := traversal.NewTimeline(s.client, account.ID)
	messages := traversal.NewMessages(s.client, account.ID, s.logger)
	switch s.opts.Mode {
	case config.ModeTimeline:
		return account, []traversal.PageSource{timeline}, nil
	case config.ModeMessages:
		return account, []traversal.PageSource{messages}, nil
	default:
		return account, []traversal.PageSource{timeline, messages}, nil
	}
}

func (s *Scraper) postAuthor(ctx context.Context, postID string) (*fansly.Account, error) {
	resp, err := s.client.Post(ctx, postID)
	if err != nil {
		return nil, err
	}
	if len(resp.Posts) == 0 {
		return nil, errs.New(errs.ErrorTypeNotFound, fmt.Sprintf("post not found: %s", postID))
	}
	return s.client.AccountByID(ctx, resp.Posts[0].AccountID)
}

// visitor fetches each descriptor and decides whether the source should stop
func (s *Scraper) visitor(creator string, source media.Source, f *fetcher.Fetcher, stats *CreatorStats) traversal.Visitor {
	var breaker *dedup.Breaker
	if s.opts.DuplicateThreshold > 0 {
		breaker = dedup.NewBreaker(s.opts.DuplicateThreshold)
	}

	return func(ctx context.Context, descriptors []media.Descriptor) (bool, error) {
		for _, d := range descriptors {
			r := f.Fetch(ctx, creator, source, d)
			stats.Add(d, r)
			s.observer.ItemDone(creator, d, r)

			if r.Outcome == fetcher.OutcomeFailed {
				if err := fatalItemError(ctx, r.Err); err != nil {
					return false, err
				}
			}
			if breaker != nil && breaker.Observe(r.Outcome == fetcher.OutcomeDuplicate) {
				return true, nil
			}
		}
		return false, nil
	}
}

// fatalItemError returns the error when an item failure must end the creator
func fatalItemError(ctx context.Context, err error) error {
	switch {
	case ctx.Err() != nil:
		return ctx.Err()
	case stderrors.Is(err, errs.ErrFFmpegNotFound):
		return err
	case errs.IsType(err, errs.ErrorTypeFilesystem):
		return err
	}
	return nil
}
