package cmd

import (
	"context"
	"fmt"
	"io"
	"strings"
	"time"

	"github.com/spf13/cobra"

	"github.com/otherjamesbrown/vidtwin-cli/config"
	"github.com/otherjamesbrown/vidtwin-cli/pkg/buildinfo"
	vterrors "github.com/otherjamesbrown/vidtwin-cli/pkg/errors"
)

// statusTimeout bounds the health check unless the configured timeout is shorter.
const statusTimeout = 10 * time.Second

// StatusOutput is the result of the status command.
type StatusOutput struct {
	Server    string    `json:"server" yaml:"server"`
	Status    string    `json:"status" yaml:"status"`
	Healthy   bool      `json:"healthy" yaml:"healthy"`
	Message   string    `json:"message,omitempty" yaml:"message,omitempty"`
	LatencyMs int64     `json:"latency_ms" yaml:"latency_ms"`
	Error     string    `json:"error,omitempty" yaml:"error,omitempty"`
	Client    string    `json:"client" yaml:"client"`
	Timestamp time.Time `json:"timestamp" yaml:"timestamp"`
}

// NewStatusCommand creates the status command.
func NewStatusCommand(deps *CommandDeps) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "status",
		Short: "Check the transcript service connection",
		Long: `Check that the transcript service is reachable and healthy.

Queries the service's /health endpoint and reports its status and the
round-trip time. Exits non-zero when the service is unreachable or unhealthy.`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			d := deps.withDefaults()
			cfg, logger, err := d.load()
			if err != nil {
				return err
			}
			format, err := resolveFormat(cfg)
			if err != nil {
				return err
			}
			gw, err := d.InitClient(cfg, logger, nil)
			if err != nil {
				return fmt.Errorf("creating client: %w", err)
			}

			timeout := statusTimeout
			if cfg.Timeout > 0 && cfg.Timeout < timeout {
				timeout = cfg.Timeout
			}
			ctx, cancel := context.WithTimeout(cmd.Context(), timeout)
			defer cancel()

			start := time.Now()
			health, err := gw.Health(ctx)
			result := StatusOutput{
				Server:    gw.BaseURL(),
				LatencyMs: time.Since(start).Milliseconds(),
				Client:    buildinfo.UserAgent(),
				Timestamp: time.Now().UTC(),
			}
			if err != nil {
				result.Status = "unreachable"
				result.Error = vterrors.UserMessage(err)
			} else {
				result.Status = health.Status
				result.Message = health.Message
				result.Healthy = health.Healthy()
			}

			if format != config.OutputFormatText {
				if werr := writeStructured(d.Stdout, format, result); werr != nil {
					return werr
				}
			} else {
				outputStatusHuman(d.Stdout, result, isTerminal(d.Stdout))
			}

			if err != nil {
				return fmt.Errorf("checking service health: %w", err)
			}
			if !result.Healthy {
				return fmt.Errorf("service is %s", result.Status)
			}
			return nil
		},
	}


	return cmd
}

func outputStatusHuman(w io.Writer, s StatusOutput, color bool) {
	label := "UNHEALTHY"
	code := ansiRed
	if s.Healthy {
		label = "HEALTHY"
		code = ansiGreen
	}
	if color {
		label = code + label + ansiReset
	}

	fmt.Fprintf(w, "Connection status: %s\n", label)
	fmt.Fprintf(w, "Server: %s\n", s.Server)
	if s.Status != "" {
		fmt.Fprintf(w, "Service status: %s\n", strings.ToLower(s.Status))
	}
	if s.Message != "" {
		fmt.Fprintf(w, "Message: %s\n", s.Message)
	}
	if s.Error != "" {
		fmt.Fprintf(w, "Error: %s\n", s.Error)
	}
	fmt.Fprintf(w, "Response Time: %dms\n", s.LatencyMs)
	fmt.Fprintf(w, "Client: %s\n", s.Client)
}
