package cmd

import (
	"fmt"
	"io"
	"os"
	"strings"
	"sync"

	"golang.org/x/term"

	"github.com/otherjamesbrown/vidtwin-cli/pkg/session"
	"github.com/otherjamesbrown/vidtwin-cli/pkg/timecode"
	"github.com/otherjamesbrown/vidtwin-cli/pkg/transcript"
)

// ANSI styles.
const (
	ansiReset  = "\033[0m"
	ansiBold   = "\033[1m"
	ansiDim    = "\033[2m"
	ansiRed    = "\033[31m"
	ansiGreen  = "\033[32m"
	ansiYellow = "\033[33m"
	ansiCyan   = "\033[36m"
)

const defaultWidth = 100

// isTerminal reports whether w is a terminal.
func isTerminal(w io.Writer) bool {
	f, ok := w.(*os.File)
	return ok && term.IsTerminal(int(f.Fd()))
}

// terminalWidth returns the width of w, or defaultWidth when unknown.
func terminalWidth(w io.Writer) int {
	if f, ok := w.(*os.File); ok {
		if width, _, err := term.GetSize(int(f.Fd())); err == nil && width > 20 {
			return width
		}
	}
	return defaultWidth
}

// TerminalRenderer draws session output as lines of text. Output cannot be
// retracted, so dismissals and hidden placeholders print nothing.
type TerminalRenderer struct {
	mu       sync.Mutex
	out      io.Writer
	color    bool
	width    int
	segments []transcript.Segment
	// lastRefs are the references of the latest assistant turn, for /ref.
	lastRefs    []timecode.Ref
	lastSources []session.Source
}

// NewTerminalRenderer creates a renderer writing to out. Colors are used only
// when out is a terminal.
func NewTerminalRenderer(out io.Writer) *TerminalRenderer {
	return &TerminalRenderer{
		out:   out,
		color: isTerminal(out),
		width: terminalWidth(out),
	}
}

func (r *TerminalRenderer) style(code, s string) string {
	if !r.color {
		return s
	}
	return code + s + ansiReset
}

func (r *TerminalRenderer) println(s string) {
	fmt.Fprintln(r.out, s)
}

// RenderState announces pipeline progress.
func (r *TerminalRenderer) RenderState(state session.State) {
	r.mu.Lock()
	defer r.mu.Unlock()
	switch state {
	case session.StateProcessing:
		r.println(r.style(ansiDim, "Processing video..."))
	case session.StateTranscriptLoading:
		r.println(r.style(ansiDim, "Loading transcript..."))
	case session.StateReady:
		r.println(r.style(ansiDim, "Ready. Ask a question, or type /help."))
	}
}

// RenderBusy shows search progress. Chat progress uses RenderTyping.
func (r *TerminalRenderer) RenderBusy(action session.Action, busy bool) {
	if action != session.ActionSearch || !busy {
		return
	}
	r.mu.Lock()
	defer r.mu.Unlock()
	r.println(r.style(ansiDim, "Searching..."))
}

// RenderBanner prints a status message styled by level.
func (r *TerminalRenderer) RenderBanner(b session.Banner) {
	r.mu.Lock()
	defer r.mu.Unlock()
	switch b.Level {
	case session.LevelSuccess:
		r.println(r.style(ansiGreen, "✓ "+b.Message))
	case session.LevelError:
		r.println(r.style(ansiRed, "✗ "+b.Message))
	default:
		r.println(r.style(ansiCyan, "ℹ "+b.Message))
	}
}

// ClearBanner is a no-op for line output.
func (r *TerminalRenderer) ClearBanner() {}

// RenderView prints a panel header when the chat opens.
func (r *TerminalRenderer) RenderView(v session.View) {
	if v != session.ViewChat {
		return
	}
	r.mu.Lock()
	defer r.mu.Unlock()
	r.println(r.rule("Chat"))
}

func (r *TerminalRenderer) rule(title string) string {
	n := r.width - len(title) - 4
	if n < 4 {
		n = 4
	}
	return r.style(ansiBold, "── "+title+" "+strings.Repeat("─", n))
}

// RenderTranscript keeps the segments for later listings and prints a summary.
func (r *TerminalRenderer) RenderTranscript(segments []transcript.Segment) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.segments = segments
	if len(segments) == 0 {
		r.println(r.style(ansiDim, "No transcript available"))
		return
	}
	last := segments[len(segments)-1]
	r.println(fmt.Sprintf("Transcript loaded: %d segments, up to %s. Use /transcript to browse.",
		len(segments), last.Timestamp()))
}

// RenderTranscriptError prints the transcript empty-state.
func (r *TerminalRenderer) RenderTranscriptError(msg string) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.segments = nil
	r.println(r.style(ansiYellow, msg))
}

// RenderHighlights lists highlighted segments, marking the focused one.
func (r *TerminalRenderer) RenderHighlights(indices []int, focus int) {
	r.mu.Lock()
	defer r.mu.Unlock()
	if len(indices) == 0 {
		r.println("No matching transcript segments.")
		return
	}
	r.println(fmt.Sprintf("%d matching segment(s):", len(indices)))
	for _, i := range indices {
		if i < 0 || i >= len(r.segments) {
			continue
		}
		marker := " "
		if i == focus {
			marker = "→"
		}
		r.println(r.segmentLine(marker, i, r.segments[i], true))
	}
}

func (r *TerminalRenderer) segmentLine(marker string, i int, seg transcript.Segment, highlighted bool) string {
	ts := r.style(ansiCyan, "["+seg.Timestamp()+"]")
	text := truncate(seg.Text, r.width-20)
	if highlighted {
		text = r.style(ansiYellow, text)
	}
	return fmt.Sprintf("%s %4d %s %s", marker, i+1, ts, text)
}

// RenderWelcome prints the welcome placeholder with numbered suggestions.
func (r *TerminalRenderer) RenderWelcome(w session.Welcome) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.lastRefs, r.lastSources = nil, nil
	r.println(r.style(ansiBold, w.Title))
	r.println(w.Body)
	if len(w.Suggestions) > 0 {
		r.println("Try asking:")
		for i, s := range w.Suggestions {
			r.println(fmt.Sprintf("  /suggest %d  %s", i+1, s))
		}
	}
}

// RenderTurn prints a chat turn. Timestamp references are numbered for /ref.
func (r *TerminalRenderer) RenderTurn(turn session.ChatTurn) {
	r.mu.Lock()
	defer r.mu.Unlock()

	if turn.Role == session.RoleUser {
		r.println(r.style(ansiBold, "You: ") + turn.Text)
		return
	}

	text := turn.Annotated.Render(
		func(s string) string { return s },
		func(n int, ref timecode.Ref) string {
			return r.style(ansiCyan, fmt.Sprintf("%s⁽%d⁾", ref.Display, n+1))
		},
	)
	r.println(r.style(ansiBold, "Assistant: ") + text)

	r.lastRefs = turn.Annotated.Refs()
	r.lastSources = turn.Sources
	if len(turn.Sources) > 0 {
		r.println(r.style(ansiDim, "Sources:"))
		for i, s := range turn.Sources {
			r.println(fmt.Sprintf("  %d. %s %s", i+1,
				r.style(ansiCyan, "["+s.FormattedTime+"]"),
				truncate(s.Text, r.width-16)))
		}
	}
	if len(r.lastRefs) > 0 || len(turn.Sources) > 0 {
		r.println(r.style(ansiDim, "  (/ref n or /source n to jump)"))
	}
}

// RenderTyping shows the typing placeholder.
func (r *TerminalRenderer) RenderTyping(visible bool) {
	if !visible {
		return
	}
	r.mu.Lock()
	defer r.mu.Unlock()
	r.println(r.style(ansiDim, "Assistant is typing..."))
}

// Ref returns reference n (1-based) of the latest assistant turn.
func (r *TerminalRenderer) Ref(n int) (timecode.Ref, bool) {
	r.mu.Lock()
	defer r.mu.Unlock()
	if n < 1 || n > len(r.lastRefs) {
		return timecode.Ref{}, false
	}
	return r.lastRefs[n-1], true
}

// Source returns source n (1-based) of the latest assistant turn.
func (r *TerminalRenderer) Source(n int) (session.Source, bool) {
	r.mu.Lock()
	defer r.mu.Unlock()
	if n < 1 || n > len(r.lastSources) {
		return session.Source{}, false
	}
	return r.lastSources[n-1], true
}

// PrintTranscript lists segments by index, marking highlighted ones.
func (r *TerminalRenderer) PrintTranscript(store *transcript.Store, indices []int) {
	r.mu.Lock()
	defer r.mu.Unlock()
	if store.Len() == 0 {
		r.println(r.style(ansiDim, "No transcript loaded."))
		return
	}
	if len(indices) == 0 {
		r.println("No segments match.")
		return
	}
	for _, i := range indices {
		seg, ok := store.Segment(i)
		if !ok {
			continue
		}
		hl := store.IsHighlighted(i)
		marker := " "
		if hl {
			marker = "*"
		}
		r.println(r.segmentLine(marker, i, seg, hl))
	}
}

// Printf writes a plain line.
func (r *TerminalRenderer) Printf(format string, args ...interface{}) {
	r.mu.Lock()
	defer r.mu.Unlock()
	fmt.Fprintf(r.out, format, args...)
}
