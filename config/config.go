// Package config provides CLI configuration management for the vidtwin command-line tool.
// It supports loading configuration from YAML files, .env files, environment variables,
// and command-line flags.
package config

import (
	"errors"
	"fmt"
	"io/fs"
	"net/url"
	"os"
	"path/filepath"
	"strconv"
	"strings"
	"time"

	"github.com/joho/godotenv"
	"gopkg.in/yaml.v3"
)

// OutputFormat defines the supported output formats for CLI results.
type OutputFormat string

const (
	// OutputFormatText is human-readable plain text output.
	OutputFormatText OutputFormat = "text"
	// OutputFormatJSON is JSON-formatted output for machine processing.
	OutputFormatJSON OutputFormat = "json"
	// OutputFormatYAML is YAML-formatted output for machine processing.
	OutputFormatYAML OutputFormat = "yaml"
)

// PlayerKind selects the playback surface used by interactive sessions.
type PlayerKind string

const (
	// PlayerMPV drives a local mpv process over its JSON IPC socket.
	PlayerMPV PlayerKind = "mpv"
	// PlayerURL prints a deep link to the video at the requested offset.
	PlayerURL PlayerKind = "url"
	// PlayerNone disables playback; seek requests are ignored.
	PlayerNone PlayerKind = "none"
)

// Default configuration values.
const (
	DefaultServerURL          = "http://localhost:5000"
	DefaultTimeout            = 5 * time.Minute
	DefaultOutputFormat       = OutputFormatText
	DefaultSearchTopK         = 5
	DefaultPlayer             = PlayerURL
	DefaultPlayerBinary       = "mpv"
	DefaultPlayerPollInterval = 500 * time.Millisecond
	DefaultPlayerMaxWait      = 30 * time.Second
	DefaultStatusTTL          = 5 * time.Second
	DefaultConfigDir          = ".vidtwin"
	DefaultConfigFile         = "config.yaml"
	DefaultEnvFile            = ".env"
)

// TLSConfig holds client TLS settings.
type TLSConfig struct {
	// Enabled indicates whether a custom TLS configuration should be used.
	Enabled bool `yaml:"enabled"`

	// CACert is the path to the CA certificate for verifying the server.
	CACert string `yaml:"ca_cert"`

	// ClientCert is the path to the client certificate for mTLS authentication.
	ClientCert string `yaml:"client_cert"`

	// ClientKey is the path to the client private key for mTLS authentication.
	ClientKey string `yaml:"client_key"`

	// CertDir is a directory containing ca.crt, client.crt, and client.key files.
	// If set, it provides default paths for CACert, ClientCert, and ClientKey.
	CertDir string `yaml:"cert_dir"`

	// SkipVerify disables server certificate verification (insecure, for testing only).
	SkipVerify bool `yaml:"skip_verify"`
}

// ResolvePaths expands ~ in paths and sets defaults from CertDir if configured.
func (c *TLSConfig) ResolvePaths() {
	if c.CertDir != "" {
		c.CertDir = expandPath(c.CertDir)
		if c.CACert == "" {
			c.CACert = filepath.Join(c.CertDir, "ca.crt")
		}
		if c.ClientCert == "" {
			c.ClientCert = filepath.Join(c.CertDir, "client.crt")
		}
		if c.ClientKey == "" {
			c.ClientKey = filepath.Join(c.CertDir, "client.key")
		}
	} else {
		c.CACert = expandPath(c.CACert)
		c.ClientCert = expandPath(c.ClientCert)
		c.ClientKey = expandPath(c.ClientKey)
	}
}

// expandPath expands ~ to the user's home directory.
func expandPath(path string) string {
	if strings.HasPrefix(path, "~/") {
		home, err := os.UserHomeDir()
		if err != nil {
			return path
		}
		return filepath.Join(home, path[2:])
	}
	return path
}

// PlayerConfig holds playback settings for interactive sessions.
type PlayerConfig struct {
	// Kind selects the player implementation (mpv, url, none).
	Kind PlayerKind `yaml:"kind"`

	// Binary is the mpv executable to launch when Kind is mpv.
	Binary string `yaml:"binary,omitempty"`

	// PollInterval is how often availability of the player is checked.
	PollInterval time.Duration `yaml:"-"`

	// MaxWait bounds how long the client waits for the player to become available.
	MaxWait time.Duration `yaml:"-"`
}

// CLIConfig holds the CLI configuration settings.
type CLIConfig struct {
	// ServerURL is the base URL of the transcript service.
	ServerURL string `yaml:"server_url"`

	// Timeout bounds every request to the service.
	Timeout time.Duration `yaml:"timeout"`

	// OutputFormat specifies the default output format for commands.
	OutputFormat OutputFormat `yaml:"output_format"`

	// SearchTopK is the number of hits requested per transcript search.
	SearchTopK int `yaml:"top_k"`

	// StatusTTL is how long status banners stay visible.
	StatusTTL time.Duration `yaml:"status_ttl"`

	// Player holds playback settings.
	Player PlayerConfig `yaml:"player"`

	// Debug enables verbose debug logging.
	Debug bool `yaml:"debug,omitempty"`

	// Insecure disables TLS verification (for development only).
	Insecure bool `yaml:"insecure,omitempty"`

	// TLS contains the TLS/mTLS configuration settings.
	TLS TLSConfig `yaml:"tls"`
}

// DefaultConfig returns a CLIConfig with default values.
func DefaultConfig() *CLIConfig {
	return &CLIConfig{
		ServerURL:    DefaultServerURL,
		Timeout:      DefaultTimeout,
		OutputFormat: DefaultOutputFormat,
		SearchTopK:   DefaultSearchTopK,
		StatusTTL:    DefaultStatusTTL,
		Player: PlayerConfig{
			Kind:         DefaultPlayer,
			Binary:       DefaultPlayerBinary,
			PollInterval: DefaultPlayerPollInterval,
			MaxWait:      DefaultPlayerMaxWait,
		},
	}
}

// ConfigDir returns the configuration directory path.
// Uses $VIDTWIN_CONFIG_DIR if set, otherwise ~/.vidtwin
func ConfigDir() (string, error) {
	if dir := os.Getenv("VIDTWIN_CONFIG_DIR"); dir != "" {
		return dir, nil
	}

	home, err := os.UserHomeDir()
	if err != nil {
		return "", fmt.Errorf("getting home directory: %w", err)
	}

	return filepath.Join(home, DefaultConfigDir), nil
}

// ConfigPath returns the full path to the configuration file.
func ConfigPath() (string, error) {
	dir, err := ConfigDir()
	if err != nil {
		return "", err
	}
	return filepath.Join(dir, DefaultConfigFile), nil
}

// LoadConfig loads the CLI configuration from file and environment variables.
// Configuration is loaded in this order (later sources override earlier):
// 1. Default values
// 2. Config file (~/.vidtwin/config.yaml or $VIDTWIN_CONFIG_DIR/config.yaml)
// 3. A .env file in the working directory (never overrides variables already set)
// 4. Environment variables (VIDTWIN_SERVER_URL, VIDTWIN_TIMEOUT, ...)
func LoadConfig() (*CLIConfig, error) {
	cfg := DefaultConfig()

	configPath, err := ConfigPath()
	if err != nil {
		return nil, fmt.Errorf("getting config path: %w", err)
	}

	if _, err := os.Stat(configPath); err == nil {
		if err := loadFromFile(cfg, configPath); err != nil {
			return nil, fmt.Errorf("loading config file: %w", err)
		}
	}

	if err := loadEnvFile(DefaultEnvFile); err != nil {
		return nil, err
	}

	loadFromEnv(cfg)

	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("validating config: %w", err)
	}

	return cfg, nil
}

// loadEnvFile loads KEY=value pairs from path into the process environment.
// A missing file is not an error.
func loadEnvFile(path string) error {
	if err := godotenv.Load(path); err != nil {
		if errors.Is(err, fs.ErrNotExist) {
			return nil
		}
		return fmt.Errorf("loading %s: %w", path, err)
	}
	return nil
}

// configFile is the on-disk shape, with durations as strings.
type configFile struct {
	ServerURL    string       `yaml:"server_url"`
	Timeout      string       `yaml:"timeout"`
	OutputFormat OutputFormat `yaml:"output_format"`
	SearchTopK   int          `yaml:"top_k,omitempty"`
	StatusTTL    string       `yaml:"status_ttl,omitempty"`
	Player       playerFile   `yaml:"player,omitempty"`
	Debug        bool         `yaml:"debug,omitempty"`
	Insecure     bool         `yaml:"insecure,omitempty"`
	TLS          TLSConfig    `yaml:"tls,omitempty"`
}

type playerFile struct {
	Kind         PlayerKind `yaml:"kind,omitempty"`
	Binary       string     `yaml:"binary,omitempty"`
	PollInterval string     `yaml:"poll_interval,omitempty"`
	MaxWait      string     `yaml:"max_wait,omitempty"`
}

// loadFromFile loads configuration from a YAML file.
func loadFromFile(cfg *CLIConfig, path string) error {
	data, err := os.ReadFile(path)
	if err != nil {
		return fmt.Errorf("reading config file: %w", err)
	}

	var fileCfg configFile
	if err := yaml.Unmarshal(data, &fileCfg); err != nil {
		return fmt.Errorf("parsing config file: %w", err)
	}

	if fileCfg.ServerURL != "" {
		cfg.ServerURL = fileCfg.ServerURL
	}
	if err := parseDurationInto(&cfg.Timeout, "timeout", fileCfg.Timeout); err != nil {
		return err
	}
	if fileCfg.OutputFormat != "" {
		cfg.OutputFormat = fileCfg.OutputFormat
	}
	if fileCfg.SearchTopK != 0 {
		cfg.SearchTopK = fileCfg.SearchTopK
	}
	if err := parseDurationInto(&cfg.StatusTTL, "status_ttl", fileCfg.StatusTTL); err != nil {
		return err
	}
	if fileCfg.Player.Kind != "" {
		cfg.Player.Kind = fileCfg.Player.Kind
	}
	if fileCfg.Player.Binary != "" {
		cfg.Player.Binary = fileCfg.Player.Binary
	}
	if err := parseDurationInto(&cfg.Player.PollInterval, "player.poll_interval", fileCfg.Player.PollInterval); err != nil {
		return err
	}
	if err := parseDurationInto(&cfg.Player.MaxWait, "player.max_wait", fileCfg.Player.MaxWait); err != nil {
		return err
	}
	cfg.Debug = fileCfg.Debug
	cfg.Insecure = fileCfg.Insecure
	cfg.TLS = fileCfg.TLS

	return nil
}

func parseDurationInto(dst *time.Duration, name, value string) error {
	if value == "" {
		return nil
	}
	d, err := time.ParseDuration(value)
	if err != nil {
		return fmt.Errorf("parsing %s: %w", name, err)
	}
	*dst = d
	return nil
}

// loadFromEnv overlays environment variables onto the configuration.
func loadFromEnv(cfg *CLIConfig) {
	if v := os.Getenv("VIDTWIN_SERVER_URL"); v != "" {
		cfg.ServerURL = v
	}

	envDuration(&cfg.Timeout, "VIDTWIN_TIMEOUT")

	if v := os.Getenv("VIDTWIN_OUTPUT_FORMAT"); v != "" {
		cfg.OutputFormat = OutputFormat(v)
	}

	if v := os.Getenv("VIDTWIN_DEBUG"); v == "true" || v == "1" {
		cfg.Debug = true
	}

	if v := os.Getenv("VIDTWIN_INSECURE"); v == "true" || v == "1" {
		cfg.Insecure = true
	}

	if v := os.Getenv("VIDTWIN_TOP_K"); v != "" {
		if n, err := strconv.Atoi(v); err == nil {
			cfg.SearchTopK = n
		}
	}

	envDuration(&cfg.StatusTTL, "VIDTWIN_STATUS_TTL")

	// Player environment variables.
	if v := os.Getenv("VIDTWIN_PLAYER"); v != "" {
		cfg.Player.Kind = PlayerKind(v)
	}

	if v := os.Getenv("VIDTWIN_PLAYER_BINARY"); v != "" {
		cfg.Player.Binary = v
	}

	envDuration(&cfg.Player.PollInterval, "VIDTWIN_PLAYER_POLL_INTERVAL")
	envDuration(&cfg.Player.MaxWait, "VIDTWIN_PLAYER_MAX_WAIT")

	// TLS environment variables.
	if v := os.Getenv("VIDTWIN_TLS_ENABLED"); v == "true" || v == "1" {
		cfg.TLS.Enabled = true
	}

	if v := os.Getenv("VIDTWIN_TLS_CA_CERT"); v != "" {
		cfg.TLS.CACert = v
	}

	if v := os.Getenv("VIDTWIN_TLS_CLIENT_CERT"); v != "" {
		cfg.TLS.ClientCert = v
	}

	if v := os.Getenv("VIDTWIN_TLS_CLIENT_KEY"); v != "" {
		cfg.TLS.ClientKey = v
	}

	if v := os.Getenv("VIDTWIN_TLS_CERT_DIR"); v != "" {
		cfg.TLS.CertDir = v
	}

	if v := os.Getenv("VIDTWIN_TLS_SKIP_VERIFY"); v == "true" || v == "1" {
		cfg.TLS.SkipVerify = true
	}
}

// envDuration parses a duration from the named variable; unparseable values are ignored.
func envDuration(dst *time.Duration, name string) {
	if v := os.Getenv(name); v != "" {
		if d, err := time.ParseDuration(v); err == nil {
			*dst = d
		}
	}
}

// Validate checks that the configuration is valid.
func (c *CLIConfig) Validate() error {
	if c.ServerURL == "" {
		return fmt.Errorf("server_url is required")
	}

	u, err := url.Parse(c.ServerURL)
	if err != nil || (u.Scheme != "http" && u.Scheme != "https") || u.Host == "" {
		return fmt.Errorf("invalid server_url: %q (must be an http or https URL)", c.ServerURL)
	}

	if c.Timeout <= 0 {
		return fmt.Errorf("timeout must be positive")
	}

	if !c.OutputFormat.IsValid() {
		return fmt.Errorf("invalid output_format: %q (must be text, json, or yaml)", c.OutputFormat)
	}

	if c.SearchTopK <= 0 {
		return fmt.Errorf("top_k must be positive")
	}

	if c.StatusTTL <= 0 {
		return fmt.Errorf("status_ttl must be positive")
	}

	if !c.Player.Kind.IsValid() {
		return fmt.Errorf("invalid player: %q (must be mpv, url, or none)", c.Player.Kind)
	}

	if c.Player.PollInterval <= 0 {
		return fmt.Errorf("player poll_interval must be positive")
	}

	if c.Player.MaxWait < c.Player.PollInterval {
		return fmt.Errorf("player max_wait must be at least poll_interval")
	}

	return nil
}

// Set assigns a configuration value by its file key, validating the value.
func (c *CLIConfig) Set(key, value string) error {
	switch key {
	case "server_url":
		c.ServerURL = value
	case "timeout":
		d, err := time.ParseDuration(value)
		if err != nil {
			return fmt.Errorf("invalid timeout value: %w", err)
		}
		c.Timeout = d
	case "output_format":
		format := OutputFormat(value)
		if !format.IsValid() {
			return fmt.Errorf("invalid output format: %s (must be text, json, or yaml)", value)
		}
		c.OutputFormat = format
	case "top_k":
		n, err := strconv.Atoi(value)
		if err != nil || n <= 0 {
			return fmt.Errorf("invalid top_k value: %s (must be a positive integer)", value)
		}
		c.SearchTopK = n
	case "status_ttl":
		d, err := time.ParseDuration(value)
		if err != nil {
			return fmt.Errorf("invalid status_ttl value: %w", err)
		}
		c.StatusTTL = d
	case "player":
		kind := PlayerKind(value)
		if !kind.IsValid() {
			return fmt.Errorf("invalid player: %s (must be mpv, url, or none)", value)
		}
		c.Player.Kind = kind
	case "player_binary":
		c.Player.Binary = value
	case "debug":
		b, err := parseBool("debug", value)
		if err != nil {
			return err
		}
		c.Debug = b
	case "insecure":
		b, err := parseBool("insecure", value)
		if err != nil {
			return err
		}
		c.Insecure = b
	default:
		return fmt.Errorf("unknown configuration key: %s", key)
	}
	return nil
}

func parseBool(key, value string) (bool, error) {
	switch value {
	case "true", "1":
		return true, nil
	case "false", "0":
		return false, nil
	default:
		return false, fmt.Errorf("invalid %s value: %s (must be true or false)", key, value)
	}
}

// IsValid checks if the output format is valid.
func (f OutputFormat) IsValid() bool {
	switch f {
	case OutputFormatText, OutputFormatJSON, OutputFormatYAML:
		return true
	default:
		return false
	}
}

// String returns the string representation of the output format.
func (f OutputFormat) String() string {
	return string(f)
}

// IsValid checks if the player kind is known.
func (k PlayerKind) IsValid() bool {
	switch k {
	case PlayerMPV, PlayerURL, PlayerNone:
		return true
	default:
		return false
	}
}

// SaveConfig saves the configuration to the config file.
func SaveConfig(cfg *CLIConfig) error {
	configDir, err := ConfigDir()
	if err != nil {
		return fmt.Errorf("getting config directory: %w", err)
	}

	if err := os.MkdirAll(configDir, 0700); err != nil {
		return fmt.Errorf("creating config directory: %w", err)
	}

	configPath := filepath.Join(configDir, DefaultConfigFile)

	fileCfg := configFile{
		ServerURL:    cfg.ServerURL,
		Timeout:      cfg.Timeout.String(),
		OutputFormat: cfg.OutputFormat,
		SearchTopK:   cfg.SearchTopK,
		StatusTTL:    cfg.StatusTTL.String(),
		Player: playerFile{
			Kind:         cfg.Player.Kind,
			Binary:       cfg.Player.Binary,
			PollInterval: cfg.Player.PollInterval.String(),
			MaxWait:      cfg.Player.MaxWait.String(),
		},
		Debug:    cfg.Debug,
		Insecure: cfg.Insecure,
		TLS:      cfg.TLS,
	}

	data, err := yaml.Marshal(&fileCfg)
	if err != nil {
		return fmt.Errorf("marshaling config: %w", err)
	}

	if err := os.WriteFile(configPath, data, 0600); err != nil {
		return fmt.Errorf("writing config file: %w", err)
	}

	return nil
}

// EnsureConfigDir creates the configuration directory if it doesn't exist.
func EnsureConfigDir() error {
	dir, err := ConfigDir()
	if err != nil {
		return err
	}
	return os.MkdirAll(dir, 0700)
}

// ExpandPath expands ~ to the user's home directory.
func ExpandPath(path string) (string, error) {
	if path == "" {
		return "", nil
	}
	if path[0] == '~' {
		home, err := os.UserHomeDir()
		if err != nil {
			return "", fmt.Errorf("getting home directory: %w", err)
		}
		return filepath.Join(home, path[1:]), nil
	}
	return path, nil
}
