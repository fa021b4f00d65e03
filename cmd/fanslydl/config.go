package main

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"
	"gopkg.in/yaml.v3"

	"fanslydl/pkg/auth"
	"fanslydl/pkg/config"
	errs "fanslydl/pkg/errors"
	"fanslydl/pkg/hls"
	"fanslydl/pkg/ui"
)

var configCmd = &cobra.Command{
	Use:   "config",
	Short: "Manage configuration files",
	Long: `Manage fanslydl configuration files.

Configuration is loaded from, highest priority first:
  - Command line flags
  - Environment variables (FANSLYDL_*, .env files included)
  - Configuration file
  - Default values`,
}

var initCmd = &cobra.Command{
	Use:   "init",
	Short: "Create a commented configuration file",
	Long: `Create a configuration file with every option and its default.

The file is written to .fanslydl.yaml unless --config names another path.`,
	RunE: runConfigInit,
}

var showCmd = &cobra.Command{
	Use:   "show",
	Short: "Show the effective configuration with the token masked",
	RunE:  runConfigShow,
}

var validateCmd = &cobra.Command{
	Use:   "validate",
	Short: "Validate the effective configuration",
	RunE:  runConfigValidate,
}

func init() {
	rootCmd.AddCommand(configCmd)
	configCmd.AddCommand(initCmd, showCmd, validateCmd)
}

func runConfigInit(cmd *cobra.Command, args []string) error {
	path := configFile
	if path == "" {
		path = ".fanslydl.yaml"
	}

	if _, err := os.Stat(path); err == nil {
		return errs.New(errs.ErrorTypeConfig, fmt.Sprintf("configuration file already exists: %s", path))
	}
	if err := os.WriteFile(path, []byte(config.SampleConfig), 0600); err != nil {
		return errs.Wrap(errs.ErrorTypeFilesystem, err, "failed to create configuration file")
	}

	ui.PrintSuccess("Configuration file created: " + path)
	fmt.Println("\nNext steps:")
	fmt.Println("1. Store your token with 'fanslydl auth login' or set it in the file")
	fmt.Println("2. Add creators under targets.usernames")
	fmt.Println("3. Run 'fanslydl config validate'")
	return nil
}

// loadUnvalidated merges file, environment and global flags without validating
func loadUnvalidated() (*config.Config, error) {
	config.LoadEnvFiles()
	cfg := config.DefaultConfig()
	if err := cfg.LoadFromFile(configFile); err != nil {
		return nil, configError(err)
	}
	if err := cfg.LoadFromEnv(); err != nil {
		return nil, configError(err)
	}
	cfg.MergeCommandLineFlags(globalFlags())
	return cfg, nil
}

func runConfigShow(cmd *cobra.Command, args []string) error {
	cfg, err := loadUnvalidated()
	if err != nil {
		return err
	}

	display := *cfg
	if display.Account.Token != "" {
		display.Account.Token = auth.MaskToken(display.Account.Token)
	}

	data, err := yaml.Marshal(&display)
	if err != nil {
		return fmt.Errorf("failed to format configuration: %w", err)
	}

	ui.PrintHighlight("Current Configuration")
	fmt.Println()
	fmt.Print(string(data))

	fmt.Println("\nConfiguration sources (in order of priority):")
	fmt.Println("1. Command line flags")
	fmt.Println("2. Environment variables (FANSLYDL_*)")
	switch found := config.FindConfigFile(); {
	case configFile != "":
		fmt.Printf("3. Configuration file: %s\n", configFile)
	case found != "":
		fmt.Printf("3. Configuration file: %s\n", found)
	default:
		fmt.Println("3. Configuration file: (none found)")
	}
	fmt.Println("4. Default values")
	return nil
}

func runConfigValidate(cmd *cobra.Command, args []string) error {
	var resolvers []config.Resolver
	if manager, err := auth.NewManager(); err == nil {
		resolvers = append(resolvers, manager.Resolver("", nil))
	}

	cfg, err := config.Load(configFile, globalFlags(), resolvers...)
	if err != nil {
		return configError(err)
	}

	var warnings []string
	if _, err := hls.FindFFmpeg(); err != nil {
		warnings = append(warnings, "ffmpeg not found in PATH; downloads will refuse to start")
	}
	if err := os.MkdirAll(cfg.Options.DownloadDir, 0755); err != nil {
		return errs.Wrap(errs.ErrorTypeFilesystem, err, "cannot create download directory")
	}

	for _, w := range warnings {
		ui.PrintWarning("Warning", w)
	}
	ui.PrintSuccess("Configuration is valid")

	fmt.Println("\nConfiguration summary:")
	fmt.Printf("  Download directory: %s\n", cfg.Options.DownloadDir)
	fmt.Printf("  Mode: %s\n", cfg.Options.Mode)
	fmt.Printf("  Creators: %v\n", cfg.Targets.Usernames)
	fmt.Printf("  Previews: %t\n", cfg.Options.DownloadPreviews)
	fmt.Printf("  Rate limit: %d requests/minute\n", cfg.Options.RequestsPerMinute)
	fmt.Printf("  Log level: %s\n", cfg.Logging.Level)
	return nil
}
