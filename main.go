// Package main provides the vidtwin CLI entry point.
// vidtwin lets you chat with a video's transcript and jump to what it cites.
package main

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/spf13/cobra"
	"gopkg.in/yaml.v3"

	"github.com/otherjamesbrown/vidtwin-cli/cmd"
	"github.com/otherjamesbrown/vidtwin-cli/config"
	"github.com/otherjamesbrown/vidtwin-cli/pkg/buildinfo"
	vterrors "github.com/otherjamesbrown/vidtwin-cli/pkg/errors"
)

// Global flags and state.
var (
	cfgDir       string
	serverURL    string
	timeout      time.Duration
	outputFormat string
	debug        bool
	insecure     bool

	// cfg holds the loaded configuration.
	cfg *config.CLIConfig

	// deps are shared by every subcommand.
	deps = cmd.DefaultDeps()
)

// rootCmd represents the base command when called without any subcommands.
var rootCmd = &cobra.Command{
	Use:   "vidtwin",
	Short: "Chat with a video's transcript",
	Long: `vidtwin processes a YouTube video through a transcript service and lets
you chat about it, search its transcript, and jump a player to any
timestamp the assistant cites.

COMMON WORKFLOWS:
  Interactive:      vidtwin watch <url>
  One question:     vidtwin ask <url> "What is this about?"
  Search:           vidtwin search <url> "topic"
  Full transcript:  vidtwin transcript <url> --filter "phrase"
  Check service:    vidtwin status

Commands support --output json|yaml for structured data.`,
	SilenceUsage:  true,
	SilenceErrors: true,
	PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
		// Skip initialization for commands that don't need it.
		switch cmd.Name() {
		case "version", "help", "completion", "init", "set":
			return nil
		}

		loaded, err := loadConfig()
		if err != nil {
			return err
		}
		cfg = loaded
		deps.Config = cfg
		deps.LoadConfig = func() (*config.CLIConfig, error) { return cfg, nil }
		return nil
	},
}

// loadConfig loads configuration and applies the global flags over it.
func loadConfig() (*config.CLIConfig, error) {
	if cfgDir != "" {
		if err := os.Setenv("VIDTWIN_CONFIG_DIR", cfgDir); err != nil {
			return nil, fmt.Errorf("setting config dir: %w", err)
		}
	}

	loaded, err := config.LoadConfig()
	if err != nil {
		return nil, fmt.Errorf("loading configuration: %w", err)
	}

	// Override with command-line flags.
	if serverURL != "" {
		loaded.ServerURL = serverURL
	}
	if timeout != 0 {
		loaded.Timeout = timeout
	}
	if outputFormat != "" {
		loaded.OutputFormat = config.OutputFormat(outputFormat)
	}
	if debug {
		loaded.Debug = true
	}
	if insecure {
		loaded.Insecure = true
	}

	if err := loaded.Validate(); err != nil {
		return nil, err
	}
	return loaded, nil
}

// versionCmd prints version information.
var versionCmd = &cobra.Command{
	Use:   "version",
	Short: "Print version information",
	Long: `Print the version, commit hash, and build time of the vidtwin CLI.

Use --output json or --output yaml for machine-readable output.`,
	RunE: func(cmd *cobra.Command, args []string) error {
		info := buildinfo.Get(buildinfo.ServiceName)
		out := cmd.OutOrStdout()

		switch config.OutputFormat(outputFormat) {
		case config.OutputFormatJSON:
			return outputJSON(out, info)
		case config.OutputFormatYAML:
			return outputYAML(out, info)
		}

		fmt.Fprintf(out, "vidtwin version %s\n", info.Version)
		fmt.Fprintf(out, "  commit:     %s\n", info.Commit)
		fmt.Fprintf(out, "  built:      %s\n", info.BuildTime)
		fmt.Fprintf(out, "  go:         %s\n", info.GoVersion)
		return nil
	},
}

// configCmd manages CLI configuration.
var configCmd = &cobra.Command{
	Use:   "config",
	Short: "Manage CLI configuration",
	Long:  `View and modify the vidtwin CLI configuration settings.`,
}

// configShowCmd displays current configuration.
var configShowCmd = &cobra.Command{
	Use:   "show",
	Short: "Show current configuration",
	Long:  `Display the effective CLI configuration, after environment and flag overrides.`,
	RunE: func(cmd *cobra.Command, args []string) error {
		if cfg == nil {
			var err error
			if cfg, err = loadConfig(); err != nil {
				return err
			}
		}
		out := cmd.OutOrStdout()

		switch cfg.OutputFormat {
		case config.OutputFormatJSON:
			return outputJSON(out, cfg)
		case config.OutputFormatYAML:
			return outputYAML(out, cfg)
		}

		configPath, _ := config.ConfigPath()

		fmt.Fprintln(out, "Current configuration:")
		fmt.Fprintf(out, "  Config file:    %s\n", configPath)
		fmt.Fprintf(out, "  Server URL:     %s\n", cfg.ServerURL)
		fmt.Fprintf(out, "  Timeout:        %s\n", cfg.Timeout)
		fmt.Fprintf(out, "  Output format:  %s\n", cfg.OutputFormat)
		fmt.Fprintf(out, "  Search top-k:   %d\n", cfg.SearchTopK)
		fmt.Fprintf(out, "  Status TTL:     %s\n", cfg.StatusTTL)
		fmt.Fprintf(out, "  Player:         %s\n", cfg.Player.Kind)
		fmt.Fprintf(out, "  Player binary:  %s\n", valueOrDefault(cfg.Player.Binary, "(not set)"))
		fmt.Fprintf(out, "  Debug:          %t\n", cfg.Debug)
		fmt.Fprintf(out, "  Insecure:       %t\n", cfg.Insecure)
		return nil
	},
}

// configInitCmd initializes configuration.
var configInitCmd = &cobra.Command{
	Use:   "init",
	Short: "Initialize configuration file",
	Long:  `Create a new configuration file with default values if one doesn't exist.`,
	RunE: func(cmd *cobra.Command, args []string) error {
		if cfgDir != "" {
			if err := os.Setenv("VIDTWIN_CONFIG_DIR", cfgDir); err != nil {
				return fmt.Errorf("setting config dir: %w", err)
			}
		}
		out := cmd.OutOrStdout()

		configPath, err := config.ConfigPath()
		if err != nil {
			return fmt.Errorf("getting config path: %w", err)
		}

		if _, err := os.Stat(configPath); err == nil {
			fmt.Fprintf(out, "Configuration file already exists: %s\n", configPath)
			fmt.Fprintln(out, "Use 'vidtwin config show' to view current settings.")
			return nil
		}

		defaultCfg := config.DefaultConfig()
		if err := config.SaveConfig(defaultCfg); err != nil {
			return fmt.Errorf("saving configuration: %w", err)
		}

		fmt.Fprintf(out, "Created configuration file: %s\n", configPath)
		fmt.Fprintln(out, "\nDefault settings:")
		fmt.Fprintf(out, "  Server URL:     %s\n", defaultCfg.ServerURL)
		fmt.Fprintf(out, "  Timeout:        %s\n", defaultCfg.Timeout)
		fmt.Fprintf(out, "  Output format:  %s\n", defaultCfg.OutputFormat)
		fmt.Fprintf(out, "  Player:         %s\n", defaultCfg.Player.Kind)
		return nil
	},
}

// configSetCmd sets a configuration value.
var configSetCmd = &cobra.Command{
	Use:   "set <key> <value>",
	Short: "Set a configuration value",
	Long: `Set a configuration value in the config file.

Available keys:
  server_url     - Transcript service base URL (http or https)
  timeout        - Request timeout (e.g., 30s, 5m)
  output_format  - Default output format (text, json, yaml)
  top_k          - Number of search hits to request
  status_ttl     - How long status messages stay visible (e.g., 5s)
  player         - Player for seeking (url, mpv, none)
  player_binary  - mpv executable path
  debug          - Enable debug mode (true/false)
  insecure       - Disable TLS verification (true/false)

Examples:
  vidtwin config set server_url http://localhost:5000
  vidtwin config set timeout 2m
  vidtwin config set player mpv`,
	Args: cobra.ExactArgs(2),
	RunE: func(cmd *cobra.Command, args []string) error {
		key, value := args[0], args[1]

		if cfgDir != "" {
			if err := os.Setenv("VIDTWIN_CONFIG_DIR", cfgDir); err != nil {
				return fmt.Errorf("setting config dir: %w", err)
			}
		}

		// If config doesn't load, start with defaults.
		currentCfg, err := config.LoadConfig()
		if err != nil {
			currentCfg = config.DefaultConfig()
		}

		if err := currentCfg.Set(key, value); err != nil {
			return err
		}
		if err := currentCfg.Validate(); err != nil {
			return err
		}

		if err := config.SaveConfig(currentCfg); err != nil {
			return fmt.Errorf("saving configuration: %w", err)
		}

		fmt.Fprintf(cmd.OutOrStdout(), "Set %s = %s\n", key, value)
		return nil
	},
}

// completionCmd generates shell completion scripts.
var completionCmd = &cobra.Command{
	Use:   "completion [bash|zsh|fish|powershell]",
	Short: "Generate shell completion scripts",
	Long: `Generate shell completion scripts for vidtwin.

To load completions:

Bash:
  $ source <(vidtwin completion bash)

Zsh:
  $ vidtwin completion zsh > "${fpath[1]}/_vidtwin"

Fish:
  $ vidtwin completion fish | source

PowerShell:
  PS> vidtwin completion powershell | Out-String | Invoke-Expression
`,
	DisableFlagsInUseLine: true,
	ValidArgs:             []string{"bash", "zsh", "fish", "powershell"},
	Args:                  cobra.MatchAll(cobra.ExactArgs(1), cobra.OnlyValidArgs),
	RunE: func(cmd *cobra.Command, args []string) error {
		out := cmd.OutOrStdout()
		switch args[0] {
		case "bash":
			return rootCmd.GenBashCompletion(out)
		case "zsh":
			return rootCmd.GenZshCompletion(out)
		case "fish":
			return rootCmd.GenFishCompletion(out, true)
		case "powershell":
			return rootCmd.GenPowerShellCompletionWithDesc(out)
		}
		return nil
	},
}

func outputJSON(w io.Writer, v interface{}) error {
	enc := json.NewEncoder(w)
	enc.SetIndent("", "  ")
	return enc.Encode(v)
}

func outputYAML(w io.Writer, v interface{}) error {
	enc := yaml.NewEncoder(w)
	defer enc.Close()
	return enc.Encode(v)
}

// printError writes a command failure and, for failed service calls, a hint.
func printError(w io.Writer, err error) {
	fmt.Fprintf(w, "Error: %v\n", err)
	if hint := vterrors.Hint(err); hint != "" {
		fmt.Fprintf(w, "Hint: %s\n", hint)
	}
}

func valueOrDefault(value, defaultValue string) string {
	if value == "" {
		return defaultValue
	}
	return value
}

func init() {
	// Global flags.
	rootCmd.PersistentFlags().StringVar(&cfgDir, "config", "", "config directory (default is ~/.vidtwin)")
	rootCmd.PersistentFlags().StringVar(&serverURL, "server", "", "transcript service base URL")
	rootCmd.PersistentFlags().DurationVar(&timeout, "timeout", 0, "request timeout (e.g., 30s, 5m)")
	rootCmd.PersistentFlags().StringVarP(&outputFormat, "output", "o", "", "output format: text, json, yaml")
	rootCmd.PersistentFlags().BoolVar(&debug, "debug", false, "enable debug logging")
	rootCmd.PersistentFlags().BoolVar(&insecure, "insecure", false, "disable TLS verification")

	// Add command groups for organized help output.
	rootCmd.AddGroup(
		&cobra.Group{ID: "video", Title: "Video:"},
		&cobra.Group{ID: "setup", Title: "Setup:"},
	)

	for _, c := range []*cobra.Command{
		cmd.NewWatchCommand(deps),
		cmd.NewAskCommand(deps),
		cmd.NewSearchCommand(deps),
		cmd.NewTranscriptCommand(deps),
	} {
		c.GroupID = "video"
		rootCmd.AddCommand(c)
	}

	statusCmd := cmd.NewStatusCommand(deps)
	statusCmd.GroupID = "setup"
	rootCmd.AddCommand(statusCmd)

	configCmd.GroupID = "setup"
	configCmd.AddCommand(configShowCmd)
	configCmd.AddCommand(configInitCmd)
	configCmd.AddCommand(configSetCmd)
	rootCmd.AddCommand(configCmd)

	rootCmd.AddCommand(completionCmd)
	rootCmd.AddCommand(versionCmd)
}

func main() {
	// Set up signal handling for graceful shutdown.
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	sigChan := make(chan os.Signal, 1)
	signal.Notify(sigChan, syscall.SIGINT, syscall.SIGTERM)

	go func() {
		<-sigChan
		fmt.Fprintln(os.Stderr, "\nReceived interrupt signal, shutting down...")
		cancel()
		// A blocked stdin read in watch cannot observe ctx.
		time.Sleep(500 * time.Millisecond)
		os.Exit(0)
	}()

	if err := rootCmd.ExecuteContext(ctx); err != nil {
		printError(os.Stderr, err)
		os.Exit(1)
	}
}
