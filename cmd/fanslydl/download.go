package main

import (
	"context"
	"os"
	"os/signal"
	"strings"
	"syscall"
	"time"

	"github.com/spf13/afero"
	"github.com/spf13/cobra"

	"fanslydl/pkg/auth"
	"fanslydl/pkg/checkpoint"
	"fanslydl/pkg/config"
	errs "fanslydl/pkg/errors"
	"fanslydl/pkg/fansly"
	"fanslydl/pkg/hls"
	"fanslydl/pkg/logger"
	"fanslydl/pkg/ratelimit"
	"fanslydl/pkg/scraper"
	"fanslydl/pkg/storage"
	"fanslydl/pkg/ui"
)

var (
	downloadMode       string
	postID             string
	outputDir          string
	downloadPreviews   bool
	resumeDownload     bool
	duplicateThreshold int
	timelineRetries    int
	timelineDelay      int
	accountName        string
)

var downloadCmd = &cobra.Command{
	Use:     "download [usernames...]",
	Aliases: []string{"dl"},
	Short:   "Download media from one or more creators",
	Long: `Download media from creators into the download directory.

Modes:
  normal      timeline, then direct messages (default)
  timeline    timeline only
  messages    direct messages only
  single      one post, given with --post
  collection  everything you purchased, into Collections/

Credentials are taken from, in order: --account, the config file or
FANSLYDL_TOKEN, then the stored default account ('fanslydl auth login').`,
	Example: `  # Timeline and messages of two creators
  fanslydl download alice_01 bob_02

  # Timeline only, resuming an interrupted run
  fanslydl download alice_01 --mode timeline --resume

  # A single post by URL
  fanslydl download --mode single --post https://fansly.com/post/1234567890123

  # Stop a creator's source after 20 duplicates in a row
  fanslydl download alice_01 --duplicate-threshold 20`,
	RunE: runDownload,
}

func init() {
	rootCmd.AddCommand(downloadCmd)

	f := downloadCmd.Flags()
	f.StringVarP(&downloadMode, "mode", "m", "", "download mode (normal, timeline, messages, single, collection)")
	f.StringVar(&postID, "post", "", "post id or URL for single mode")
	f.StringVarP(&outputDir, "output", "o", "", "download directory")
	f.BoolVar(&downloadPreviews, "previews", true, "download previews of locked media")
	f.BoolVar(&resumeDownload, "resume", false, "resume timeline and message traversal from the last checkpoint")
	f.IntVar(&duplicateThreshold, "duplicate-threshold", 0, "stop a source after this many consecutive duplicates")
	f.IntVar(&timelineRetries, "timeline-retries", 0, "extra attempts when a page comes back empty")
	f.IntVar(&timelineDelay, "timeline-delay", 0, "seconds to wait between empty page attempts")
	f.StringVarP(&accountName, "account", "a", "", "use a specific stored account")
}

// downloadFlags collects the flags the user actually set
func downloadFlags(cmd *cobra.Command, args []string) (map[string]interface{}, error) {
	flags := globalFlags()
	f := cmd.Flags()

	if len(args) > 0 {
		flags["usernames"] = args
	}
	if f.Changed("mode") {
		mode, err := config.ParseMode(downloadMode)
		if err != nil {
			return nil, errs.Wrap(errs.ErrorTypeConfig, err, "invalid --mode")
		}
		flags["mode"] = mode
	}
	if postID != "" {
		flags["post"] = postID
		if !f.Changed("mode") {
			flags["mode"] = config.ModeSingle
		}
	}
	if outputDir != "" {
		flags["output"] = outputDir
	}
	if f.Changed("previews") {
		flags["previews"] = downloadPreviews
	}
	if f.Changed("resume") {
		flags["resume"] = resumeDownload
	}
	if f.Changed("duplicate-threshold") {
		flags["duplicate-threshold"] = duplicateThreshold
	}
	if f.Changed("timeline-retries") {
		flags["timeline-retries"] = timelineRetries
	}
	if f.Changed("timeline-delay") {
		flags["timeline-delay"] = timelineDelay
	}
	return flags, nil
}

func runDownload(cmd *cobra.Command, args []string) error {
	flags, err := downloadFlags(cmd, args)
	if err != nil {
		return err
	}

	var resolvers []config.Resolver
	var usedAccount string
	credManager, credErr := auth.NewManager()
	if credErr == nil {
		resolvers = append(resolvers, credManager.Resolver(accountName, &usedAccount))
	} else if accountName != "" {
		return configError(credErr)
	}

	cfg, err := config.Load(configFile, flags, resolvers...)
	if err != nil {
		if strings.Contains(err.Error(), "token is required") {
			auth.ShowQuickTokenGuide(os.Stderr)
		}
		return configError(err)
	}

	log, err := initLogging(cfg)
	if err != nil {
		return err
	}
	if credErr != nil {
		log.WarnWithFields("credential store unavailable", map[string]interface{}{"error": credErr.Error()})
	}
	log.WithField("version", version).Info("fanslydl starting")

	ffmpegPath, err := hls.FindFFmpeg()
	if err != nil {
		return err
	}

	client := newClient(cfg, log, func(id string, at time.Time) {
		persistDeviceID(credManager, usedAccount, id, at, log)
	})
	assembler := hls.NewAssembler(client, ffmpegPath, hls.Options{}, log)

	opts := scraper.OptionsFromConfig(cfg)
	if cfg.Options.Resume {
		checkpoints, err := checkpoint.NewManager(log)
		if err != nil {
			return errs.Wrap(errs.ErrorTypeFilesystem, err, "checkpoint directory unavailable")
		}
		opts.Walk.Checkpoints = checkpoints
	}
	opts.Observer = ui.NewProgressDisplay(strings.EqualFold(cfg.Logging.Level, "debug"))

	s := scraper.New(client, client, assembler, storage.NewManager(afero.NewOsFs()), opts, log)

	ctx, stop := signal.NotifyContext(commandContext(cmd), os.Interrupt, syscall.SIGTERM)
	defer stop()

	if usedAccount != "" {
		ui.PrintInfo("Account", usedAccount)
	}
	ui.PrintInfo("Mode", string(cfg.Options.Mode))
	ui.PrintInfo("Output", cfg.Options.DownloadDir)

	run, err := s.Run(ctx, cfg.Targets.Usernames)
	if run != nil && len(run.Creators) > 0 {
		ui.PrintStats(run)
	}
	if err != nil {
		log.WithError(err).Error("download run aborted")
		return err
	}
	if err := run.Err(); err != nil {
		return err
	}
	ui.PrintSuccess("All creators processed")
	return nil
}

// newClient builds the signed API client for cfg
func newClient(cfg *config.Config, log logger.Logger, onDeviceID func(string, time.Time)) *fansly.Client {
	creds := fansly.Credentials{
		Token:     cfg.Account.Token,
		UserAgent: cfg.Account.UserAgent,
		CheckKey:  cfg.Account.CheckKey,
		DeviceID:  cfg.Account.DeviceID,
	}
	if cfg.Account.DeviceIDTimestamp > 0 {
		creds.DeviceIDAt = time.UnixMilli(cfg.Account.DeviceIDTimestamp)
	}

	return fansly.NewClient(fansly.NewSession(creds, nil), fansly.Options{
		Timeout:    cfg.Options.RequestTimeout,
		Limiter:    ratelimit.PerMinute(cfg.Options.RequestsPerMinute),
		OnDeviceID: onDeviceID,
	}, log)
}

// persistDeviceID caches a refreshed device id on the stored account it
// belongs to. Tokens from the config file or environment are not written back.
func persistDeviceID(m *auth.Manager, account, id string, at time.Time, log logger.Logger) {
	if m == nil || account == "" || account == auth.EnvironmentAccount {
		log.Debug("device id not persisted")
		return
	}
	if err := m.UpdateDeviceID(account, id, at); err != nil {
		log.WarnWithFields("failed to persist device id", map[string]interface{}{
			"account": account,
			"error":   err.Error(),
		})
	}
}

// commandContext is the context verify and download run under
func commandContext(cmd *cobra.Command) context.Context {
	if ctx := cmd.Context(); ctx != nil {
		return ctx
	}
	return context.Background()
}
