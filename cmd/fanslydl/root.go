package main

import (
	"context"
	stderrors "errors"
	"fmt"
	"os"
	"runtime"

	"github.com/spf13/cobra"

	"fanslydl/pkg/config"
	errs "fanslydl/pkg/errors"
	"fanslydl/pkg/logger"
	"fanslydl/pkg/scraper"
	"fanslydl/pkg/ui"
)

var (
	// Version information, set at build time
	version   = "1.0.0"
	gitCommit = "unknown"
	buildDate = "unknown"

	// Global flags
	configFile string
	logLevel   string
	noColor    bool
	quiet      bool
	verbose    bool
)

var rootCmd = &cobra.Command{
	Use:   "fanslydl",
	Short: "Download and deduplicate media from creators you follow",
	Long: `fanslydl downloads pictures, videos and audio from creator timelines,
direct messages, single posts and purchased collections.

Features:
  - Token storage in the system keychain or an encrypted file
  - Perceptual and content hashing to skip media you already have
  - HLS stream download with ffmpeg reassembly
  - Request pacing and automatic retry with backoff
  - Resume of interrupted timeline and message traversals`,
	Version:       fmt.Sprintf("%s (commit: %s, built: %s)", version, gitCommit, buildDate),
	SilenceErrors: true,
	SilenceUsage:  true,
	PersistentPreRun: func(cmd *cobra.Command, args []string) {
		if noColor {
			ui.SetColor(false)
		}
		if quiet {
			ui.SetQuiet(true)
		}
		if cmd.Name() != "version" && cmd.Name() != "help" && !quiet {
			ui.PrintBanner()
		}
	},
}

// Execute runs the root command and exits with the code matching the outcome
func Execute() {
	err := rootCmd.Execute()
	if err == nil {
		return
	}
	ui.PrintError("fanslydl failed", err.Error())
	os.Exit(exitCode(err))
}

func exitCode(err error) int {
	if stderrors.Is(err, context.Canceled) {
		return errs.ExitAbort
	}
	return scraper.ExitCode(err)
}

func init() {
	rootCmd.PersistentFlags().StringVarP(&configFile, "config", "c", "", "config file (default is ./.fanslydl.yaml or ~/.config/fanslydl/config.yaml)")
	rootCmd.PersistentFlags().StringVar(&logLevel, "log-level", "", "log level (debug, info, warn, error)")
	rootCmd.PersistentFlags().BoolVar(&noColor, "no-color", false, "disable colored output")
	rootCmd.PersistentFlags().BoolVarP(&quiet, "quiet", "q", false, "suppress all output except errors")
	rootCmd.PersistentFlags().BoolVarP(&verbose, "verbose", "v", false, "debug logging and one line per downloaded item")

	rootCmd.SetFlagErrorFunc(func(cmd *cobra.Command, err error) error {
		return errs.Wrap(errs.ErrorTypeConfig, err, "invalid flags")
	})

	rootCmd.SetVersionTemplate(`fanslydl {{.Version}}
Go Version: ` + runtime.Version() + `
OS/Arch: ` + runtime.GOOS + `/` + runtime.GOARCH + `
`)

	rootCmd.CompletionOptions.DisableDefaultCmd = true
}

// globalFlags returns the persistent flags as config overrides
func globalFlags() map[string]interface{} {
	flags := make(map[string]interface{})
	switch {
	case verbose:
		flags["log-level"] = "debug"
	case quiet:
		flags["log-level"] = "error"
	case logLevel != "":
		flags["log-level"] = logLevel
	}
	if noColor {
		flags["no-color"] = true
	}
	return flags
}

// initLogging installs the global logger for cfg
func initLogging(cfg *config.Config) (logger.Logger, error) {
	if err := logger.Initialize(&cfg.Logging); err != nil {
		return nil, errs.Wrap(errs.ErrorTypeConfig, err, "failed to initialize logging")
	}
	return logger.GetLogger(), nil
}

// configError marks a configuration load failure for the exit code
func configError(err error) error {
	if err == nil {
		return nil
	}
	if errs.TypeOf(err) != errs.ErrorTypeUnknown {
		return err
	}
	return errs.Wrap(errs.ErrorTypeConfig, err, "configuration error")
}
