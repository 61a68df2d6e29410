// Package cmd provides CLI commands for the vidtwin tool.
package cmd

import (
	"encoding/json"
	"fmt"
	"io"
	"os"
	"strings"

	"github.com/atotto/clipboard"
	"gopkg.in/yaml.v3"

	"github.com/otherjamesbrown/vidtwin-cli/client"
	"github.com/otherjamesbrown/vidtwin-cli/config"
	"github.com/otherjamesbrown/vidtwin-cli/pkg/logging"
	"github.com/otherjamesbrown/vidtwin-cli/pkg/observability"
	"github.com/otherjamesbrown/vidtwin-cli/pkg/playback"
)

// CommandDeps holds the dependencies shared by vidtwin commands.
type CommandDeps struct {
	Config *config.CLIConfig

	LoadConfig    func() (*config.CLIConfig, error)
	InitClient    func(*config.CLIConfig, logging.Logger, *observability.Metrics) (*client.Client, error)
	NewLogger     func(*config.CLIConfig, io.Writer) logging.Logger
	NewFactory    func(*config.CLIConfig, io.Writer, logging.Logger) playback.Factory
	ReadClipboard func() (string, error)

	Stdin  io.Reader
	Stdout io.Writer
	Stderr io.Writer
}

// DefaultDeps returns the default dependencies for production use.
func DefaultDeps() *CommandDeps {
	return &CommandDeps{
		LoadConfig:    config.LoadConfig,
		InitClient:    client.NewFromConfig,
		NewLogger:     newCLILogger,
		NewFactory:    newPlayerFactory,
		ReadClipboard: clipboard.ReadAll,
		Stdin:         os.Stdin,
		Stdout:        os.Stdout,
		Stderr:        os.Stderr,
	}
}

// withDefaults fills unset fields so tests only supply what they need.
func (d *CommandDeps) withDefaults() *CommandDeps {
	if d == nil {
		return DefaultDeps()
	}
	def := DefaultDeps()
	if d.LoadConfig == nil {
		d.LoadConfig = def.LoadConfig
	}
	if d.InitClient == nil {
		d.InitClient = def.InitClient
	}
	if d.NewLogger == nil {
		d.NewLogger = def.NewLogger
	}
	if d.NewFactory == nil {
		d.NewFactory = def.NewFactory
	}
	if d.ReadClipboard == nil {
		d.ReadClipboard = def.ReadClipboard
	}
	if d.Stdin == nil {
		d.Stdin = def.Stdin
	}
	if d.Stdout == nil {
		d.Stdout = def.Stdout
	}
	if d.Stderr == nil {
		d.Stderr = def.Stderr
	}
	return d
}

// load resolves configuration and a logger for a command run.
func (d *CommandDeps) load() (*config.CLIConfig, logging.Logger, error) {
	cfg, err := d.LoadConfig()
	if err != nil {
		return nil, nil, fmt.Errorf("loading configuration: %w", err)
	}
	d.Config = cfg
	return cfg, d.NewLogger(cfg, d.Stderr), nil
}

func newCLILogger(cfg *config.CLIConfig, out io.Writer) logging.Logger {
	lc := logging.DefaultConfig()
	lc.Output = out
	if cfg.Debug {
		lc.Level = logging.LevelDebug
	}
	if lv := os.Getenv("VIDTWIN_LOG_LEVEL"); lv != "" {
		lc.Level = logging.ParseLevel(lv)
	}
	lc.JSONFormat = cfg.OutputFormat == config.OutputFormatJSON
	lc.NoColor = !isTerminal(out)
	return logging.NewLogger(lc)
}

// newPlayerFactory maps the configured player kind to a factory. PlayerNone
// yields nil, which disables seeking.
func newPlayerFactory(cfg *config.CLIConfig, out io.Writer, logger logging.Logger) playback.Factory {
	switch cfg.Player.Kind {
	case config.PlayerMPV:
		return &playback.MPVFactory{Binary: cfg.Player.Binary, Logger: logger}
	case config.PlayerNone:
		return nil
	default:
		return playback.URLFactory{}
	}
}

// resolveFormat returns the configured output format, defaulting to text.
func resolveFormat(cfg *config.CLIConfig) (config.OutputFormat, error) {
	format := cfg.OutputFormat
	if format == "" {
		format = config.OutputFormatText
	}
	if !format.IsValid() {
		return "", fmt.Errorf("invalid output format: %s (must be text, json, or yaml)", format)
	}
	return format, nil
}

// writeStructured writes v as JSON or YAML.
func writeStructured(w io.Writer, format config.OutputFormat, v interface{}) error {
	switch format {
	case config.OutputFormatJSON:
		enc := json.NewEncoder(w)
		enc.SetIndent("", "  ")
		return enc.Encode(v)
	case config.OutputFormatYAML:
		enc := yaml.NewEncoder(w)
		defer enc.Close()
		return enc.Encode(v)
	default:
		return fmt.Errorf("unsupported structured format: %s", format)
	}
}

// truncate shortens s to max runes, marking the cut with "...".
func truncate(s string, max int) string {
	s = strings.TrimSpace(s)
	if max <= 3 {
		return s
	}
	r := []rune(s)
	if len(r) <= max {
		return s
	}
	return string(r[:max-3]) + "..."
}
