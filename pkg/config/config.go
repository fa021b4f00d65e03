package config

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"regexp"
	"strconv"
	"strings"
	"time"

	"github.com/joho/godotenv"
	"gopkg.in/yaml.v3"
)

const (
	// DefaultCheckKey is the platform's public signing key
	DefaultCheckKey = "qybZy9-fyszis-bybxyf"
	// DefaultUserAgent is used when no user agent is configured
	DefaultUserAgent = "Mozilla/5.0 (Macintosh; Intel Mac OS X 10_15_7) AppleWebKit/537.36 (KHTML, like Gecko) Chrome/144.0.0.0 Safari/537.36"

	minTokenLength     = 50
	minUserAgentLength = 40
)

var usernamePattern = regexp.MustCompile(`^[a-zA-Z0-9_-]{4,30}$`)

// Mode selects which content sources are downloaded
type Mode string

const (
	ModeNormal     Mode = "normal"
	ModeTimeline   Mode = "timeline"
	ModeMessages   Mode = "messages"
	ModeSingle     Mode = "single"
	ModeCollection Mode = "collection"
)

// ParseMode converts a string into a Mode
func ParseMode(s string) (Mode, error) {
	switch m := Mode(strings.ToLower(strings.TrimSpace(s))); m {
	case ModeNormal, ModeTimeline, ModeMessages, ModeSingle, ModeCollection:
		return m, nil
	case "":
		return ModeNormal, nil
	default:
		return "", fmt.Errorf("unknown download mode: %s", s)
	}
}

// Config holds all configuration options for fanslydl
type Config struct {
	Account AccountConfig `yaml:"account" json:"account"`
	Targets TargetsConfig `yaml:"targets" json:"targets"`
	Options OptionsConfig `yaml:"options" json:"options"`
	Logging LoggingConfig `yaml:"logging" json:"logging"`
}

// AccountConfig holds the credentials used to sign API requests
type AccountConfig struct {
	Token     string `yaml:"token" json:"token"`
	UserAgent string `yaml:"user_agent" json:"user_agent"`
	CheckKey  string `yaml:"check_key" json:"check_key"`
	DeviceID  string `yaml:"device_id,omitempty" json:"device_id,omitempty"`
	// DeviceIDTimestamp is the unix time in milliseconds the device id was obtained
	DeviceIDTimestamp int64 `yaml:"device_id_timestamp,omitempty" json:"device_id_timestamp,omitempty"`
}

// TargetsConfig lists what to download
type TargetsConfig struct {
	Usernames []string `yaml:"usernames" json:"usernames"`
	PostID    string   `yaml:"post_id,omitempty" json:"post_id,omitempty"`
}

// OptionsConfig holds download behaviour
type OptionsConfig struct {
	DownloadDir           string        `yaml:"download_dir" json:"download_dir"`
	Mode                  Mode          `yaml:"mode" json:"mode"`
	DownloadPreviews      bool          `yaml:"download_previews" json:"download_previews"`
	SeparateMessages      bool          `yaml:"separate_messages" json:"separate_messages"`
	SeparateTimeline      bool          `yaml:"separate_timeline" json:"separate_timeline"`
	SeparatePreviews      bool          `yaml:"separate_previews" json:"separate_previews"`
	UseFolderSuffix       bool          `yaml:"use_folder_suffix" json:"use_folder_suffix"`
	UseDuplicateThreshold bool          `yaml:"use_duplicate_threshold" json:"use_duplicate_threshold"`
	DuplicateThreshold    int           `yaml:"duplicate_threshold" json:"duplicate_threshold"`
	UsePerceptualMatch    bool          `yaml:"use_perceptual_match" json:"use_perceptual_match"`
	PHashThreshold        int           `yaml:"phash_threshold" json:"phash_threshold"`
	TimelineRetries       int           `yaml:"timeline_retries" json:"timeline_retries"`
	TimelineDelaySeconds  int           `yaml:"timeline_delay_seconds" json:"timeline_delay_seconds"`
	ItemRetries           int           `yaml:"item_retries" json:"item_retries"`
	RequestsPerMinute     int           `yaml:"requests_per_minute" json:"requests_per_minute"`
	RequestTimeout        time.Duration `yaml:"request_timeout" json:"request_timeout"`
	Resume                bool          `yaml:"resume" json:"resume"`
}

// LoggingConfig holds logging configuration
type LoggingConfig struct {
	Level   string `yaml:"level" json:"level"`
	File    string `yaml:"file" json:"file"`
	NoColor bool   `yaml:"no_color" json:"no_color"`
}

// TimelineDelay returns the empty-page retry delay as a duration
func (o OptionsConfig) TimelineDelay() time.Duration {
	return time.Duration(o.TimelineDelaySeconds) * time.Second
}

// DefaultConfig returns a Config instance with sensible defaults
func DefaultConfig() *Config {
	return &Config{
		Account: AccountConfig{
			UserAgent: DefaultUserAgent,
			CheckKey:  DefaultCheckKey,
		},
		Options: OptionsConfig{
			DownloadDir:          ".",
			Mode:                 ModeNormal,
			DownloadPreviews:     true,
			SeparateMessages:     true,
			SeparateTimeline:     true,
			UseFolderSuffix:      true,
			DuplicateThreshold:   50,
			UsePerceptualMatch:   true,
			PHashThreshold:       8,
			TimelineRetries:      1,
			TimelineDelaySeconds: 60,
			ItemRetries:          3,
			RequestsPerMinute:    60,
			RequestTimeout:       60 * time.Second,
		},
		Logging: LoggingConfig{
			Level: "info",
		},
	}
}

// LoadFromEnv loads configuration from FANSLYDL_* environment variables
func (c *Config) LoadFromEnv() error {
	if v := os.Getenv("FANSLYDL_TOKEN"); v != "" {
		c.Account.Token = v
	}
	if v := os.Getenv("FANSLYDL_USER_AGENT"); v != "" {
		c.Account.UserAgent = v
	}
	if v := os.Getenv("FANSLYDL_CHECK_KEY"); v != "" {
		c.Account.CheckKey = v
	}
	if v := os.Getenv("FANSLYDL_DEVICE_ID"); v != "" {
		c.Account.DeviceID = v
	}
	if v := os.Getenv("FANSLYDL_USERNAMES"); v != "" {
		c.Targets.Usernames = splitList(v)
	}
	if v := os.Getenv("FANSLYDL_DOWNLOAD_DIR"); v != "" {
		c.Options.DownloadDir = v
	}
	if v := os.Getenv("FANSLYDL_MODE"); v != "" {
		m, err := ParseMode(v)
		if err != nil {
			return err
		}
		c.Options.Mode = m
	}
	if v := os.Getenv("FANSLYDL_DOWNLOAD_PREVIEWS"); v != "" {
		b, err := strconv.ParseBool(v)
		if err != nil {
			return fmt.Errorf("FANSLYDL_DOWNLOAD_PREVIEWS: %w", err)
		}
		c.Options.DownloadPreviews = b
	}
	if v := os.Getenv("FANSLYDL_TIMELINE_RETRIES"); v != "" {
		n, err := strconv.Atoi(v)
		if err != nil {
			return fmt.Errorf("FANSLYDL_TIMELINE_RETRIES: %w", err)
		}
		c.Options.TimelineRetries = n
	}
	if v := os.Getenv("FANSLYDL_LOG_LEVEL"); v != "" {
		c.Logging.Level = v
	}
	return nil
}

func splitList(s string) []string {
	var out []string
	for _, part := range strings.FieldsFunc(s, func(r rune) bool { return r == ',' || r == ' ' }) {
		if part = strings.TrimSpace(part); part != "" {
			out = append(out, part)
		}
	}
	return out
}

// LoadFromFile loads configuration from a YAML file
func (c *Config) LoadFromFile(path string) error {
	if path == "" {
		path = FindConfigFile()
		if path == "" {
			return nil
		}
	}

	data, err := os.ReadFile(path)
	if err != nil {
		return fmt.Errorf("failed to read config file: %w", err)
	}
	if err := yaml.Unmarshal(data, c); err != nil {
		return fmt.Errorf("failed to parse config file: %w", err)
	}
	return nil
}

// FindConfigFile searches for a config file in the standard locations
func FindConfigFile() string {
	home := os.Getenv("HOME")
	locations := []string{
		".fanslydl.yaml",
		".fanslydl.yml",
		filepath.Join(home, ".config", "fanslydl", "config.yaml"),
		filepath.Join(home, ".config", "fanslydl", "config.yml"),
		filepath.Join(home, ".fanslydl.yaml"),
	}

	for _, loc := range locations {
		if _, err := os.Stat(loc); err == nil {
			return loc
		}
	}
	return ""
}

// NormalizeUsername strips whitespace and a leading @
func NormalizeUsername(name string) string {
	return strings.TrimLeft(strings.TrimSpace(name), "@")
}

// Validate checks if the configuration is valid
func (c *Config) Validate() error {
	var errs []error

	errs = append(errs, validateToken(c.Account.Token)...)
	switch {
	case c.Account.UserAgent == "":
		errs = append(errs, errors.New("user_agent is required"))
	case len(c.Account.UserAgent) < minUserAgentLength:
		errs = append(errs, fmt.Errorf("user_agent must be at least %d characters (got %d)", minUserAgentLength, len(c.Account.UserAgent)))
	case isPlaceholder(c.Account.UserAgent, "replaceme", "your_user_agent"):
		errs = append(errs, errors.New("user_agent appears to be a placeholder"))
	}
	if c.Account.CheckKey == "" {
		errs = append(errs, errors.New("check_key is required"))
	}

	if c.Options.Mode == ModeSingle {
		if c.Targets.PostID == "" {
			errs = append(errs, errors.New("single mode requires a post id"))
		}
	} else if c.Options.Mode != ModeCollection {
		errs = append(errs, ValidateUsernames(c.Targets.Usernames)...)
	}
	if _, err := ParseMode(string(c.Options.Mode)); err != nil {
		errs = append(errs, err)
	}

	if c.Options.DownloadDir == "" {
		errs = append(errs, errors.New("download_dir is required"))
	}
	if c.Options.TimelineRetries < 0 {
		errs = append(errs, errors.New("timeline_retries cannot be negative"))
	}
	if c.Options.TimelineDelaySeconds < 0 {
		errs = append(errs, errors.New("timeline_delay_seconds cannot be negative"))
	}
	if c.Options.ItemRetries < 0 {
		errs = append(errs, errors.New("item_retries cannot be negative"))
	}
	if c.Options.UseDuplicateThreshold && c.Options.DuplicateThreshold <= 0 {
		errs = append(errs, errors.New("duplicate_threshold must be positive when enabled"))
	}
	if c.Options.PHashThreshold < 0 || c.Options.PHashThreshold > 64 {
		errs = append(errs, errors.New("phash_threshold must be between 0 and 64"))
	}
	if c.Options.RequestsPerMinute <= 0 {
		errs = append(errs, errors.New("requests_per_minute must be positive"))
	}

	if _, ok := map[string]bool{"debug": true, "info": true, "warn": true, "error": true}[strings.ToLower(c.Logging.Level)]; !ok {
		errs = append(errs, fmt.Errorf("invalid log level: %s", c.Logging.Level))
	}

	return errors.Join(errs...)
}

// ValidateToken checks the shape of an authorization token
func ValidateToken(token string) error {
	return errors.Join(validateToken(token)...)
}

func validateToken(token string) []error {
	switch {
	case token == "":
		return []error{errors.New("token is required")}
	case len(token) < minTokenLength:
		return []error{fmt.Errorf("token must be at least %d characters (got %d)", minTokenLength, len(token))}
	case isPlaceholder(token, "replaceme", "your_token"):
		return []error{errors.New("token appears to be a placeholder")}
	}
	return nil
}

// ValidateUsernames checks creator usernames for shape and placeholders
func ValidateUsernames(usernames []string) []error {
	if len(usernames) == 0 {
		return []error{errors.New("at least one creator username is required")}
	}

	var errs []error
	for _, raw := range usernames {
		name := NormalizeUsername(raw)
		if !usernamePattern.MatchString(name) {
			errs = append(errs, fmt.Errorf("invalid username %q: must be 4-30 characters of letters, digits, '_' or '-'", raw))
			continue
		}
		switch strings.ToLower(name) {
		case "replaceme", "username", "creator":
			errs = append(errs, fmt.Errorf("username %q appears to be a placeholder", raw))
		}
	}
	return errs
}

func isPlaceholder(value string, markers ...string) bool {
	lower := strings.ToLower(value)
	for _, m := range markers {
		if strings.Contains(lower, m) {
			return true
		}
	}
	return false
}

// Save saves the configuration to a file
func (c *Config) Save(path string) error {
	data, err := yaml.Marshal(c)
	if err != nil {
		return fmt.Errorf("failed to marshal config: %w", err)
	}
	if err := os.MkdirAll(filepath.Dir(path), 0755); err != nil {
		return fmt.Errorf("failed to create config directory: %w", err)
	}
	if err := os.WriteFile(path, data, 0600); err != nil {
		return fmt.Errorf("failed to write config file: %w", err)
	}
	return nil
}

// MergeCommandLineFlags merges command line flags into the configuration
func (c *Config) MergeCommandLineFlags(flags map[string]interface{}) {
	if v, ok := flags["token"].(string); ok && v != "" {
		c.Account.Token = v
	}
	if v, ok := flags["user-agent"].(string); ok && v != "" {
		c.Account.UserAgent = v
	}
	if v, ok := flags["usernames"].([]string); ok && len(v) > 0 {
		c.Targets.Usernames = v
	}
	if v, ok := flags["post"].(string); ok && v != "" {
		c.Targets.PostID = v
	}
	if v, ok := flags["output"].(string); ok && v != "" {
		c.Options.DownloadDir = v
	}
	if v, ok := flags["mode"].(Mode); ok && v != "" {
		c.Options.Mode = v
	}
	if v, ok := flags["previews"].(bool); ok {
		c.Options.DownloadPreviews = v
	}
	if v, ok := flags["resume"].(bool); ok {
		c.Options.Resume = v
	}
	if v, ok := flags["duplicate-threshold"].(int); ok && v > 0 {
		c.Options.UseDuplicateThreshold = true
		c.Options.DuplicateThreshold = v
	}
	if v, ok := flags["timeline-retries"].(int); ok && v >= 0 {
		c.Options.TimelineRetries = v
	}
	if v, ok := flags["timeline-delay"].(int); ok && v >= 0 {
		c.Options.TimelineDelaySeconds = v
	}
	if v, ok := flags["log-level"].(string); ok && v != "" {
		c.Logging.Level = v
	}
	if v, ok := flags["no-color"].(bool); ok && v {
		c.Logging.NoColor = true
	}
}

// LoadEnvFiles loads .env files without overriding variables already set
func LoadEnvFiles() {
	home := os.Getenv("HOME")
	_ = godotenv.Load(".env")
	_ = godotenv.Load(filepath.Join(home, ".fanslydl.env"))
}

// Resolver adjusts a loaded configuration before it is validated
type Resolver func(*Config) error

// Load loads configuration from all sources with proper precedence.
// Precedence: flags > environment (.env included) > config file > defaults.
// Resolvers run after flags, in order, before validation.
func Load(configPath string, flags map[string]interface{}, resolvers ...Resolver) (*Config, error) {
	LoadEnvFiles()

	cfg := DefaultConfig()
	if err := cfg.LoadFromFile(configPath); err != nil {
		return nil, fmt.Errorf("failed to load config file: %w", err)
	}
	if err := cfg.LoadFromEnv(); err != nil {
		return nil, fmt.Errorf("failed to load environment variables: %w", err)
	}
	cfg.MergeCommandLineFlags(flags)
	for _, resolve := range resolvers {
		if err := resolve(cfg); err != nil {
			return nil, err
		}
	}

	for i, name := range cfg.Targets.Usernames {
		cfg.Targets.Usernames[i] = NormalizeUsername(name)
	}

	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("configuration validation failed: %w", err)
	}
	return cfg, nil
}
