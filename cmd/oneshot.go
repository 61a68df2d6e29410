package cmd

import (
	"context"
	"fmt"
	"io"
	"strings"

	"github.com/spf13/cobra"

	"github.com/otherjamesbrown/vidtwin-cli/config"
	"github.com/otherjamesbrown/vidtwin-cli/pkg/observability"
	"github.com/otherjamesbrown/vidtwin-cli/pkg/playback"
	"github.com/otherjamesbrown/vidtwin-cli/pkg/session"
	"github.com/otherjamesbrown/vidtwin-cli/pkg/timecode"
)

// SegmentOutput is one transcript segment in command output.
type SegmentOutput struct {
	Index       int     `json:"index" yaml:"index"`
	Timestamp   string  `json:"timestamp" yaml:"timestamp"`
	Start       float64 `json:"start" yaml:"start"`
	Duration    float64 `json:"duration,omitempty" yaml:"duration,omitempty"`
	Text        string  `json:"text" yaml:"text"`
	Highlighted bool    `json:"highlighted,omitempty" yaml:"highlighted,omitempty"`
}

// TranscriptOutput is the result of the transcript command.
type TranscriptOutput struct {
	Video    session.VideoSession `json:"video" yaml:"video"`
	Filter   string               `json:"filter,omitempty" yaml:"filter,omitempty"`
	Total    int                  `json:"total" yaml:"total"`
	Segments []SegmentOutput      `json:"segments" yaml:"segments"`
}

// HitOutput is one search hit and the transcript segments it correlates to.
type HitOutput struct {
	Rank       int     `json:"rank" yaml:"rank"`
	Timestamp  string  `json:"timestamp" yaml:"timestamp"`
	Start      float64 `json:"start" yaml:"start"`
	Text       string  `json:"text" yaml:"text"`
	Similarity float64 `json:"similarity,omitempty" yaml:"similarity,omitempty"`
	Segments   []int   `json:"segments" yaml:"segments"`
}

// SearchOutput is the result of the search command.
type SearchOutput struct {
	Video       session.VideoSession `json:"video" yaml:"video"`
	Query       string               `json:"query" yaml:"query"`
	Hits        []HitOutput          `json:"hits" yaml:"hits"`
	Highlighted []SegmentOutput      `json:"highlighted" yaml:"highlighted"`
}

// AskOutput is the result of the ask command.
type AskOutput struct {
	Video    session.VideoSession `json:"video" yaml:"video"`
	Question string               `json:"question" yaml:"question"`
	Answer   string               `json:"answer" yaml:"answer"`
	Refs     []timecode.Ref       `json:"refs,omitempty" yaml:"refs,omitempty"`
	Sources  []session.Source     `json:"sources,omitempty" yaml:"sources,omitempty"`
}

// oneShot runs a controller without a player for a single command.
type oneShot struct {
	ctrl   *session.Controller
	out    io.Writer
	format config.OutputFormat
}

func newOneShot(d *CommandDeps) (*oneShot, error) {
	cfg, logger, err := d.load()
	if err != nil {
		return nil, err
	}
	format, err := resolveFormat(cfg)
	if err != nil {
		return nil, err
	}
	gw, err := d.InitClient(cfg, logger, nil)
	if err != nil {
		return nil, fmt.Errorf("creating client: %w", err)
	}
	ctrl := session.NewController(gw, nil, nil, session.Options{
		TopK:      cfg.SearchTopK,
		StatusTTL: cfg.StatusTTL,
		Logger:    logger,
		Tracer:    observability.NewTracer(),
	})
	return &oneShot{ctrl: ctrl, out: d.Stdout, format: format}, nil
}

// open processes url and loads its transcript. A transcript failure is
// returned only when requireTranscript is set.
func (o *oneShot) open(ctx context.Context, url string, requireTranscript bool) (session.VideoSession, error) {
	if err := o.ctrl.Submit(ctx, url); err != nil {
		return session.VideoSession{}, err
	}
	o.ctrl.Wait()

	sess, ok := o.ctrl.Session()
	if !ok {
		if err := o.ctrl.Err(); err != nil {
			return session.VideoSession{}, fmt.Errorf("processing video: %w", err)
		}
		return session.VideoSession{}, fmt.Errorf("processing video: no session")
	}
	if requireTranscript && o.ctrl.Transcript().Len() == 0 {
		if err := o.ctrl.Err(); err != nil {
			return sess, fmt.Errorf("loading transcript: %w", err)
		}
	}
	return sess, nil
}

func (o *oneShot) segments(indices []int) []SegmentOutput {
	store := o.ctrl.Transcript()
	out := make([]SegmentOutput, 0, len(indices))
	for _, i := range indices {
		seg, ok := store.Segment(i)
		if !ok {
			continue
		}
		out = append(out, SegmentOutput{
			Index:       i + 1,
			Timestamp:   seg.Timestamp(),
			Start:       seg.StartSeconds,
			Duration:    seg.Duration,
			Text:        seg.Text,
			Highlighted: store.IsHighlighted(i),
		})
	}
	return out
}

// NewTranscriptCommand creates the transcript command.
func NewTranscriptCommand(deps *CommandDeps) *cobra.Command {
	var filter string

	cmd := &cobra.Command{
		Use:   "transcript <video-url>",
		Short: "Process a video and print its transcript",
		Long: `Process a video and print its timestamped transcript.

Use --filter to show only segments containing a phrase. Matching ignores
case and Unicode normalization differences.

Examples:
  vidtwin transcript https://youtu.be/dQw4w9WgXcQ
  vidtwin transcript https://youtu.be/dQw4w9WgXcQ --filter "never gonna"
  vidtwin transcript https://youtu.be/dQw4w9WgXcQ -o json`,
		Args: cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			o, err := newOneShot(deps.withDefaults())
			if err != nil {
				return err
			}
			defer o.ctrl.Close()
			return o.runTranscript(cmd.Context(), args[0], filter)
		},
	}

	cmd.Flags().StringVarP(&filter, "filter", "f", "", "Only show segments containing this phrase")
	return cmd
}

func (o *oneShot) runTranscript(ctx context.Context, url, filter string) error {
	sess, err := o.open(ctx, url, true)
	if err != nil {
		return err
	}

	result := TranscriptOutput{
		Video:    sess,
		Filter:   filter,
		Total:    o.ctrl.Transcript().Len(),
		Segments: o.segments(o.ctrl.Transcript().Filter(filter)),
	}

	if o.format != config.OutputFormatText {
		return writeStructured(o.out, o.format, result)
	}

	fmt.Fprintf(o.out, "Video %s: %d segments\n", sess.VideoID, result.Total)
	if filter != "" {
		fmt.Fprintf(o.out, "Filter %q: %d match(es)\n", filter, len(result.Segments))
	}
	fmt.Fprintln(o.out)
	for _, s := range result.Segments {
		fmt.Fprintf(o.out, "%5d [%s] %s\n", s.Index, s.Timestamp, s.Text)
	}
	return nil
}

// NewSearchCommand creates the search command.
func NewSearchCommand(deps *CommandDeps) *cobra.Command {
	var topK int

	cmd := &cobra.Command{
		Use:   "search <video-url> <query>",
		Short: "Search a video's transcript",
		Long: `Process a video, search its transcript, and print the hits in the
service's ranking order together with the transcript segments each hit
correlates to.

Examples:
  vidtwin search https://youtu.be/dQw4w9WgXcQ "give you up"
  vidtwin search https://youtu.be/dQw4w9WgXcQ "chorus" --top-k 10 -o yaml`,
		Args: cobra.MinimumNArgs(2),
		RunE: func(cmd *cobra.Command, args []string) error {
			d := deps.withDefaults()
			if topK > 0 {
				load := d.LoadConfig
				d.LoadConfig = func() (*config.CLIConfig, error) {
					cfg, err := load()
					if err == nil {
						cfg.SearchTopK = topK
					}
					return cfg, err
				}
			}
			o, err := newOneShot(d)
			if err != nil {
				return err
			}
			defer o.ctrl.Close()
			return o.runSearch(cmd.Context(), args[0], strings.Join(args[1:], " "))
		},
	}

	cmd.Flags().IntVarP(&topK, "top-k", "k", 0, "Maximum number of hits (default from config)")
	return cmd
}

func (o *oneShot) runSearch(ctx context.Context, url, query string) error {
	sess, err := o.open(ctx, url, false)
	if err != nil {
		return err
	}

	if !o.ctrl.Search(ctx, query) {
		return fmt.Errorf("search query is required")
	}
	o.ctrl.Wait()

	hits, err := o.ctrl.LastSearch()
	if err != nil {
		return fmt.Errorf("searching transcript: %w", err)
	}

	result := SearchOutput{
		Video:       sess,
		Query:       query,
		Hits:        make([]HitOutput, 0, len(hits)),
		Highlighted: o.segments(o.ctrl.Transcript().Highlighted()),
	}
	for i, h := range hits {
		segs := o.ctrl.Transcript().FindBySecond(h.StartSeconds)
		for j := range segs {
			segs[j]++
		}
		if segs == nil {
			segs = []int{}
		}
		result.Hits = append(result.Hits, HitOutput{
			Rank:       i + 1,
			Timestamp:  h.Timestamp(),
			Start:      h.StartSeconds,
			Text:       h.Text,
			Similarity: h.Similarity,
			Segments:   segs,
		})
	}

	if o.format != config.OutputFormatText {
		return writeStructured(o.out, o.format, result)
	}

	if len(result.Hits) == 0 {
		fmt.Fprintf(o.out, "No results for %q.\n", query)
		return nil
	}
	fmt.Fprintf(o.out, "Results for %q in %s:\n\n", query, sess.VideoID)
	for _, h := range result.Hits {
		fmt.Fprintf(o.out, "%2d. [%s] %s\n", h.Rank, h.Timestamp, truncate(h.Text, 100))
	}
	if len(result.Highlighted) > 0 {
		fmt.Fprintf(o.out, "\nMatching transcript segments:\n")
		for _, s := range result.Highlighted {
			fmt.Fprintf(o.out, "%5d [%s] %s\n", s.Index, s.Timestamp, truncate(s.Text, 100))
		}
	}
	return nil
}

// NewAskCommand creates the ask command.
func NewAskCommand(deps *CommandDeps) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "ask <video-url> <question>",
		Short: "Ask one question about a video",
		Long: `Process a video and ask the assistant one question about it.

Timestamps in the answer such as [1:05] are listed with their offsets so
they can be opened directly.

Examples:
  vidtwin ask https://youtu.be/dQw4w9WgXcQ "What is this video about?"
  vidtwin ask https://youtu.be/dQw4w9WgXcQ "Summarize the main points" -o json`,
		Args: cobra.MinimumNArgs(2),
		RunE: func(cmd *cobra.Command, args []string) error {
			o, err := newOneShot(deps.withDefaults())
			if err != nil {
				return err
			}
			defer o.ctrl.Close()
			return o.runAsk(cmd.Context(), args[0], strings.Join(args[1:], " "))
		},
	}

	return cmd
}

func (o *oneShot) runAsk(ctx context.Context, url, question string) error {
	sess, err := o.open(ctx, url, false)
	if err != nil {
		return err
	}

	if !o.ctrl.Chat(ctx, question) {
		return fmt.Errorf("question is required")
	}
	o.ctrl.Wait()

	if err := o.ctrl.ChatErr(); err != nil {
		return fmt.Errorf("asking question: %w", err)
	}

	turns := o.ctrl.Turns()
	if len(turns) < 2 {
		return fmt.Errorf("asking question: no answer received")
	}
	answer := turns[len(turns)-1]

	result := AskOutput{
		Video:    sess,
		Question: question,
		Answer:   answer.Text,
		Refs:     answer.Annotated.Refs(),
		Sources:  answer.Sources,
	}

	if o.format != config.OutputFormatText {
		return writeStructured(o.out, o.format, result)
	}

	fmt.Fprintln(o.out, result.Answer)
	if len(result.Refs) > 0 {
		fmt.Fprintln(o.out, "\nTimestamps:")
		for _, r := range result.Refs {
			fmt.Fprintf(o.out, "  %s  %s\n", r.Display, playback.DeepLink(sess.VideoID, float64(r.Seconds)))
		}
	}
	if len(result.Sources) > 0 {
		fmt.Fprintln(o.out, "\nSources:")
		for _, s := range result.Sources {
			fmt.Fprintf(o.out, "  [%s] %s\n", s.FormattedTime, truncate(s.Text, 100))
		}
	}
	return nil
}
