package cmd

import (
	"bufio"
	"context"
	"errors"
	"fmt"
	"net"
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/spf13/cobra"

	"github.com/otherjamesbrown/vidtwin-cli/config"
	"github.com/otherjamesbrown/vidtwin-cli/pkg/buildinfo"
	"github.com/otherjamesbrown/vidtwin-cli/pkg/logging"
	"github.com/otherjamesbrown/vidtwin-cli/pkg/observability"
	"github.com/otherjamesbrown/vidtwin-cli/pkg/playback"
	"github.com/otherjamesbrown/vidtwin-cli/pkg/session"
	"github.com/otherjamesbrown/vidtwin-cli/pkg/timecode"
)

const watchHelp = `Commands:
  /open <url>           Process a video and start a new conversation
  /search <query>       Highlight transcript segments matching query
  /transcript [phrase]  List transcript segments, optionally filtered
  /seek <time>          Jump the player to a time (90, 1:30, 1:02:03)
  /segment <n>          Jump to transcript segment n
  /ref <n>              Jump to timestamp n of the last answer
  /source <n>           Jump to source n of the last answer
  /suggest <n>          Ask welcome suggestion n
  /clear                Clear the conversation
  /status               Show session state
  /help                 Show this help
  /quit                 Exit
Anything else is sent as a chat message.
`

// NewWatchCommand creates the interactive session command.
func NewWatchCommand(deps *CommandDeps) *cobra.Command {
	var (
		playerKind  string
		metricsAddr string
	)

	cmd := &cobra.Command{
		Use:   "watch [video-url]",
		Short: "Chat with a video's transcript interactively",
		Long: `Start an interactive session about a video.

The video is processed by the transcript service, its transcript is loaded,
and you can then ask questions, search the transcript, and jump the player to
any timestamp mentioned in an answer.

When no URL is given and the clipboard holds a YouTube link, that link is used.

Players:
  url   Print a deep link (https://youtu.be/<id>?t=<s>) for every seek (default)
  mpv   Drive a local mpv window over its IPC socket
  none  Disable seeking

Examples:
  vidtwin watch https://www.youtube.com/watch?v=dQw4w9WgXcQ
  vidtwin watch --player mpv https://youtu.be/dQw4w9WgXcQ
  vidtwin watch --metrics-addr :9090`,
		Args: cobra.MaximumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			d := deps.withDefaults()
			cfg, logger, err := d.load()
			if err != nil {
				return err
			}
			if playerKind != "" {
				if err := cfg.Set("player", playerKind); err != nil {
					return err
				}
			}

			url := ""
			if len(args) == 1 {
				url = args[0]
			} else if clip, err := d.ReadClipboard(); err == nil && playback.VideoIDFromURL(clip) != "" {
				url = strings.TrimSpace(clip)
				fmt.Fprintf(d.Stdout, "Using URL from clipboard: %s\n", url)
			}

			return runWatch(cmd.Context(), d, cfg, logger, url, metricsAddr)
		},
	}

	cmd.Flags().StringVar(&playerKind, "player", "", "Player: url, mpv, none (overrides config)")
	cmd.Flags().StringVar(&metricsAddr, "metrics-addr", "", "Serve Prometheus metrics on this address (e.g. :9090)")

	return cmd
}

// watchSession wires a controller to a terminal for one interactive run.
type watchSession struct {
	ctrl   *session.Controller
	bridge *playback.Bridge
	render *TerminalRenderer
}

func runWatch(ctx context.Context, d *CommandDeps, cfg *config.CLIConfig, logger logging.Logger, url, metricsAddr string) error {
	reg := prometheus.NewRegistry()
	metrics := observability.NewMetrics(reg)

	if metricsAddr != "" {
		srv, err := serveMetrics(metricsAddr, reg, logger)
		if err != nil {
			return err
		}
		defer func() {
			shutdownCtx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
			defer cancel()
			_ = srv.Shutdown(shutdownCtx)
		}()
		fmt.Fprintf(d.Stdout, "Metrics: http://%s/metrics\n", metricsAddr)
	}

	gw, err := d.InitClient(cfg, logger, metrics)
	if err != nil {
		return fmt.Errorf("creating client: %w", err)
	}

	ws := newWatchSession(cfg, gw, d, logger, metrics)
	defer ws.close()

	fmt.Fprintf(d.Stdout, "vidtwin %s, service %s\n", buildinfo.Version, gw.BaseURL())
	if url != "" {
		if err := ws.ctrl.Submit(ctx, url); err != nil {
			logger.Debug("initial submit rejected", logging.Err(err))
		}
	} else {
		fmt.Fprintln(d.Stdout, "Open a video with /open <url>, or /help for commands.")
	}

	return ws.loop(ctx, bufio.NewScanner(d.Stdin))
}

func newWatchSession(cfg *config.CLIConfig, gw session.Gateway, d *CommandDeps, logger logging.Logger, metrics *observability.Metrics) *watchSession {
	render := NewTerminalRenderer(d.Stdout)
	ws := &watchSession{render: render}

	ws.bridge = playback.NewBridge(d.NewFactory(cfg, d.Stdout, logger), playback.Options{
		PollInterval: cfg.Player.PollInterval,
		MaxWait:      cfg.Player.MaxWait,
		Target:       playback.Target{Out: d.Stdout},
		OnSeek:       func(s float64) { ws.ctrl.OnSeek(s) },
		OnError:      func(err error) { ws.ctrl.OnPlayerError(err) },
		Logger:       logger,
		Metrics:      metrics,
	})

	ws.ctrl = session.NewController(gw, ws.bridge, render, session.Options{
		TopK:      cfg.SearchTopK,
		StatusTTL: cfg.StatusTTL,
		Logger:    logger,
		Metrics:   metrics,
	})
	return ws
}

func (ws *watchSession) close() {
	ws.ctrl.Close()
	_ = ws.bridge.Close()
}

func (ws *watchSession) loop(ctx context.Context, sc *bufio.Scanner) error {
	for sc.Scan() {
		if ctx.Err() != nil {
			return nil
		}
		if quit := ws.handle(ctx, sc.Text()); quit {
			return nil
		}
	}
	if err := sc.Err(); err != nil {
		return fmt.Errorf("reading input: %w", err)
	}
	// Let in-flight replies print before exiting on EOF.
	ws.ctrl.Wait()
	return nil
}

// handle runs one input line and reports whether the session should end.
func (ws *watchSession) handle(ctx context.Context, line string) bool {
	line = strings.TrimSpace(line)
	if line == "" {
		return false
	}
	if !strings.HasPrefix(line, "/") {
		ws.chat(ctx, line)
		return false
	}

	name, arg, _ := strings.Cut(line[1:], " ")
	arg = strings.TrimSpace(arg)

	switch strings.ToLower(name) {
	case "quit", "exit", "q":
		return true
	case "help", "?":
		ws.render.Printf("%s", watchHelp)
	case "open":
		_ = ws.ctrl.Submit(ctx, arg)
	case "search":
		ws.search(ctx, arg)
	case "transcript":
		ws.render.PrintTranscript(ws.ctrl.Transcript(), ws.ctrl.Transcript().Filter(arg))
	case "seek":
		seconds, err := timecode.Parse(arg)
		if err != nil {
			ws.render.Printf("Usage: /seek <time>, e.g. /seek 1:30\n")
			return false
		}
		ws.seek(ws.ctrl.Seek(seconds))
	case "segment":
		n, ok := ws.index(arg, "segment")
		if ok {
			if !ws.ctrl.SeekSegment(n - 1) {
				ws.render.Printf("No segment %d, or no player attached.\n", n)
			}
		}
	case "ref":
		n, ok := ws.index(arg, "ref")
		if !ok {
			return false
		}
		ref, found := ws.render.Ref(n)
		if !found {
			ws.render.Printf("The last answer has no timestamp %d.\n", n)
			return false
		}
		ws.seek(ws.ctrl.SeekRef(ref))
	case "source":
		n, ok := ws.index(arg, "source")
		if !ok {
			return false
		}
		src, found := ws.render.Source(n)
		if !found {
			ws.render.Printf("The last answer has no source %d.\n", n)
			return false
		}
		ws.seek(ws.ctrl.Seek(src.StartSeconds))
	case "suggest":
		n, ok := ws.index(arg, "suggest")
		if ok && !ws.ctrl.Suggest(ctx, n) {
			ws.render.Printf("No suggestion %d, no video loaded, or a reply is pending.\n", n)
		}
	case "clear":
		ws.ctrl.ClearChat()
	case "status":
		ws.status()
	default:
		ws.render.Printf("Unknown command /%s. Type /help for commands.\n", name)
	}
	return false
}

func (ws *watchSession) chat(ctx context.Context, message string) {
	if ws.ctrl.Chat(ctx, message) {
		return
	}
	if _, ok := ws.ctrl.Session(); !ok {
		ws.render.Printf("No video loaded yet. Use /open <url>.\n")
		return
	}
	if ws.ctrl.Sending() {
		ws.render.Printf("Still waiting for the previous answer.\n")
	}
}

func (ws *watchSession) search(ctx context.Context, query string) {
	if ws.ctrl.Search(ctx, query) {
		return
	}
	switch {
	case strings.TrimSpace(query) == "":
		ws.render.Printf("Usage: /search <query>\n")
	case ws.ctrl.Searching():
		ws.render.Printf("A search is already running.\n")
	default:
		ws.render.Printf("No video loaded yet. Use /open <url>.\n")
	}
}

func (ws *watchSession) seek(ok bool) {
	if !ok {
		ws.render.Printf("No player attached.\n")
	}
}

func (ws *watchSession) index(arg, command string) (int, bool) {
	n, err := strconv.Atoi(arg)
	if err != nil || n < 1 {
		ws.render.Printf("Usage: /%s <n>\n", command)
		return 0, false
	}
	return n, true
}

func (ws *watchSession) status() {
	state := ws.ctrl.State()
	ws.render.Printf("State:      %s\n", state)
	if sess, ok := ws.ctrl.Session(); ok {
		ws.render.Printf("Video:      %s (%s)\n", sess.VideoID, sess.VideoURL)
		ws.render.Printf("Chunks:     %d\n", sess.ChunkCount)
		ws.render.Printf("Segments:   %d\n", ws.ctrl.Transcript().Len())
		ws.render.Printf("Highlights: %d\n", len(ws.ctrl.Transcript().Highlighted()))
		ws.render.Printf("Turns:      %d\n", len(ws.ctrl.Turns()))
	}
	if ws.bridge.Ready() {
		ws.render.Printf("Player:     ready\n")
	} else if ws.bridge.Attached() {
		ws.render.Printf("Player:     starting\n")
	}
}

// serveMetrics serves Prometheus metrics and build info on addr.
func serveMetrics(addr string, reg *prometheus.Registry, logger logging.Logger) (*http.Server, error) {
	reg.MustRegister(
		collectors.NewGoCollector(),
		collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}),
	)

	mux := http.NewServeMux()
	mux.Handle("/metrics", promhttp.HandlerFor(reg, promhttp.HandlerOpts{}))
	mux.Handle("/version", buildinfo.Handler(buildinfo.ServiceName))

	ln, err := net.Listen("tcp", addr)
	if err != nil {
		return nil, fmt.Errorf("listening on %s: %w", addr, err)
	}

	srv := &http.Server{Handler: mux, ReadHeaderTimeout: 5 * time.Second}
	go func() {
		if err := srv.Serve(ln); err != nil && !errors.Is(err, http.ErrServerClosed) {
			logger.Error("metrics server stopped", logging.Err(err))
		}
	}()
	return srv, nil
}
