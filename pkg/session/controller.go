// Package session coordinates a conversation about one processed video:
// submitting it, loading its transcript, searching, chatting, and seeking
// the player. Network results are applied asynchronously and results from a
// superseded submission are discarded.
package session

import (
	"context"
	"fmt"
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/otherjamesbrown/vidtwin-cli/client"
	vterrors "github.com/otherjamesbrown/vidtwin-cli/pkg/errors"
	"github.com/otherjamesbrown/vidtwin-cli/pkg/logging"
	"github.com/otherjamesbrown/vidtwin-cli/pkg/observability"
	"github.com/otherjamesbrown/vidtwin-cli/pkg/timecode"
	"github.com/otherjamesbrown/vidtwin-cli/pkg/transcript"
)

// User-facing messages.
const (
	MsgEnterURL         = "Please enter a YouTube URL"
	MsgSearchFailed     = "Search failed. Please try again."
	MsgChatFailed       = "Sorry, I encountered an error. Please try again."
	MsgTranscriptFailed = "Failed to load transcript"
)

// Defaults.
const (
	DefaultTopK      = 5
	DefaultStatusTTL = 5 * time.Second
)

// Result operation labels.
const (
	opProcess    = "process"
	opTranscript = "transcript"
	opSearch     = "search"
	opChat       = "chat"
)

// Options configures a Controller.
type Options struct {
	TopK      int
	StatusTTL time.Duration
	Welcome   *Welcome

	Logger  logging.Logger
	Metrics *observability.Metrics
	Tracer  *observability.Tracer
}

// Controller is the session state machine. All state is guarded by one
// mutex; gateway calls run on goroutines and re-enter to apply results.
type Controller struct {
	gw       Gateway
	playback Playback
	render   Renderer
	store    *transcript.Store

	topK    int
	ttl     time.Duration
	welcome Welcome
	logger  logging.Logger
	metrics *observability.Metrics
	tracer  *observability.Tracer

	mu        sync.Mutex
	state     State
	view      View
	gen       uint64
	pipeline  context.Context
	cancel    context.CancelFunc
	session   *VideoSession
	turns     []ChatTurn
	searching bool
	sending   bool

	banner      Banner
	bannerSeq   uint64
	bannerTimer *time.Timer

	processErr    error
	transcriptErr error
	searchErr     error
	chatErr       error
	lastHits      []client.SearchHit

	wg sync.WaitGroup
}

// NewController creates an idle controller. A nil playback disables seeking;
// a nil renderer discards output.
func NewController(gw Gateway, playback Playback, render Renderer, opts Options) *Controller {
	if opts.TopK <= 0 {
		opts.TopK = DefaultTopK
	}
	if opts.StatusTTL <= 0 {
		opts.StatusTTL = DefaultStatusTTL
	}
	logger := opts.Logger
	if logger == nil {
		logger = logging.NewNopLogger()
	}
	tracer := opts.Tracer
	if tracer == nil {
		tracer = observability.NewTracer()
	}
	welcome := DefaultWelcome
	if opts.Welcome != nil {
		welcome = *opts.Welcome
	}
	if render == nil {
		render = nopRenderer{}
	}

	return &Controller{
		gw:       gw,
		playback: playback,
		render:   render,
		store:    transcript.NewStore(),
		topK:     opts.TopK,
		ttl:      opts.StatusTTL,
		welcome:  welcome,
		logger:   logger.With(logging.F("component", "session")),
		metrics:  opts.Metrics,
		tracer:   tracer,
		state:    StateIdle,
		view:     ViewInput,
	}
}

// Submit starts processing videoURL, superseding any submission in flight.
// An empty URL is rejected without a network call and leaves state unchanged.
func (c *Controller) Submit(ctx context.Context, videoURL string) error {
	videoURL = strings.TrimSpace(videoURL)

	c.mu.Lock()
	defer c.mu.Unlock()

	if videoURL == "" {
		c.showBannerLocked(LevelError, MsgEnterURL)
		return fmt.Errorf("video url is required: %w", vterrors.ErrValidation)
	}

	c.gen++
	if c.cancel != nil {
		c.cancel()
	}
	pctx, cancel := context.WithCancel(ctx)
	c.pipeline, c.cancel = pctx, cancel

	c.session = nil
	c.store.Replace(nil)
	c.turns = nil
	c.lastHits = nil
	c.processErr, c.transcriptErr, c.searchErr, c.chatErr = nil, nil, nil, nil
	if c.searching {
		c.searching = false
		c.render.RenderBusy(ActionSearch, false)
	}
	if c.sending {
		c.sending = false
		c.render.RenderTyping(false)
		c.render.RenderBusy(ActionChat, false)
	}
	if c.playback != nil {
		c.playback.Detach()
	}

	c.setStateLocked(StateProcessing)
	c.render.RenderBusy(ActionProcess, true)

	gen := c.gen
	c.logger.Info("processing video", logging.F("video_url", videoURL), logging.F("generation", gen))

	c.wg.Add(1)
	go c.process(pctx, gen, videoURL)
	return nil
}

func (c *Controller) process(ctx context.Context, gen uint64, videoURL string) {
	defer c.wg.Done()

	ctx, span := c.tracer.StartSessionSpan(ctx, observability.SpanSubmit, "", gen)
	defer span.End()
	sh := observability.NewSpanHelper(span)

	res, err := c.gw.ProcessVideo(ctx, videoURL)

	c.mu.Lock()
	if !c.currentLocked(gen, opProcess) {
		c.mu.Unlock()
		return
	}
	c.render.RenderBusy(ActionProcess, false)

	if err != nil {
		c.processErr = err
		c.metrics.RecordResult(opProcess, observability.OutcomeError)
		sh.SetError(err, string(vterrors.CodeOf(err)))
		c.setStateLocked(StateIdle)
		if !vterrors.IsCancelled(err) {
			c.showBannerLocked(LevelError, vterrors.UserMessage(err))
		}
		c.logger.Warn("processing failed", logging.Err(err))
		c.mu.Unlock()
		return
	}

	sess := &VideoSession{
		ID:         uuid.New(),
		VideoID:    res.VideoID,
		VideoURL:   res.VideoURL,
		ChunkCount: res.ChunkCount,
		Message:    res.Message,
	}
	c.session = sess
	c.metrics.RecordResult(opProcess, observability.OutcomeSuccess)
	sh.SetVideo(sess.VideoID)
	c.showBannerLocked(LevelSuccess, processedMessage(res))
	c.setStateLocked(StateTranscriptLoading)

	ctx = logging.WithSessionID(ctx, sess.ID.String())

	// The player must be attached before the transcript is requested, and
	// under the lock so a newer Submit's Detach cannot be overtaken.
	if c.playback != nil {
		c.playback.Attach(ctx, sess.VideoID, sess.VideoURL)
	}
	c.mu.Unlock()

	c.logger.WithContext(ctx).Info("video processed",
		logging.F("video_id", sess.VideoID),
		logging.F("chunks", sess.ChunkCount),
	)

	segments, err := c.gw.FetchTranscript(ctx, sess.VideoID)

	c.mu.Lock()
	defer c.mu.Unlock()
	if !c.currentLocked(gen, opTranscript) {
		return
	}

	if err != nil {
		c.transcriptErr = err
		c.metrics.RecordResult(opTranscript, observability.OutcomeError)
		sh.SetError(err, string(vterrors.CodeOf(err)))
		c.store.Replace(nil)
		c.render.RenderTranscriptError(MsgTranscriptFailed)
		c.logger.WithContext(ctx).Warn("transcript load failed", logging.Err(err))
	} else {
		c.metrics.RecordResult(opTranscript, observability.OutcomeSuccess)
		sh.SetResults(len(segments))
		sh.SetSuccess()
		c.store.Replace(segments)
		c.render.RenderTranscript(c.store.Segments())
	}

	// Turns sent while the transcript was loading are kept.
	if len(c.turns) == 0 {
		c.render.RenderWelcome(c.welcome)
	}
	c.view = ViewChat
	c.render.RenderView(ViewChat)
	c.setStateLocked(StateReady)
}

// processedMessage builds the success banner. The service message is only
// used when no chunks were created, which is the already-processed reply.
func processedMessage(res *client.ProcessResult) string {
	if res.ChunkCount == 0 && res.Message != "" {
		return res.Message
	}
	return fmt.Sprintf("Video processed successfully! %d chunks created.", res.ChunkCount)
}

// Search asks the service for passages matching query and highlights every
// transcript segment that starts in the same second as a hit. It returns
// false without doing anything when query is empty, no video is loaded, or
// a search is already running.
func (c *Controller) Search(ctx context.Context, query string) bool {
	query = strings.TrimSpace(query)

	c.mu.Lock()
	defer c.mu.Unlock()

	if query == "" || c.session == nil || c.searching {
		return false
	}
	c.searching = true
	c.render.RenderBusy(ActionSearch, true)

	gen, videoID := c.gen, c.session.VideoID
	sessionID := c.session.ID.String()
	opCtx, cancel := c.opContextLocked(ctx)

	c.wg.Add(1)
	go func() {
		defer c.wg.Done()
		defer cancel()

		opCtx, span := c.tracer.StartSessionSpan(opCtx, observability.SpanSearch, sessionID, gen)
		defer span.End()
		sh := observability.NewSpanHelper(span)

		hits, err := c.gw.Search(opCtx, videoID, query, c.topK)

		c.mu.Lock()
		defer c.mu.Unlock()
		if !c.currentLocked(gen, opSearch) {
			return
		}
		c.searching = false
		c.render.RenderBusy(ActionSearch, false)

		if err != nil {
			c.searchErr = err
			c.metrics.RecordResult(opSearch, observability.OutcomeError)
			sh.SetError(err, string(vterrors.CodeOf(err)))
			c.logger.Warn("search failed", logging.F("query", query), logging.Err(err))
			c.showBannerLocked(LevelError, MsgSearchFailed)
			return
		}

		c.searchErr = nil
		c.lastHits = hits
		c.metrics.RecordResult(opSearch, observability.OutcomeSuccess)
		sh.SetResults(len(hits))
		sh.SetSuccess()
		c.applyHitsLocked(hits)
	}()
	return true
}

func (c *Controller) applyHitsLocked(hits []client.SearchHit) {
	c.store.ClearHighlights()

	var indices []int
	for _, h := range hits {
		indices = append(indices, c.store.FindBySecond(h.StartSeconds)...)
	}
	c.store.SetHighlights(indices)

	highlighted := c.store.Highlighted()
	focus := -1
	if len(highlighted) > 0 {
		focus = highlighted[0]
	}
	c.render.RenderHighlights(highlighted, focus)
}

// Chat sends message to the assistant. The user turn is appended at once;
// the reply, or a fallback turn on failure, follows asynchronously. It
// returns false when message is empty, no video is loaded, or a message is
// already being sent.
func (c *Controller) Chat(ctx context.Context, message string) bool {
	message = strings.TrimSpace(message)

	c.mu.Lock()
	defer c.mu.Unlock()

	if message == "" || c.session == nil || c.sending {
		return false
	}

	c.appendTurnLocked(newTurn(RoleUser, message, nil))
	c.sending = true
	c.render.RenderBusy(ActionChat, true)
	c.render.RenderTyping(true)

	gen, videoID := c.gen, c.session.VideoID
	sessionID := c.session.ID.String()
	opCtx, cancel := c.opContextLocked(ctx)

	c.wg.Add(1)
	go func() {
		defer c.wg.Done()
		defer cancel()

		opCtx, span := c.tracer.StartSessionSpan(opCtx, observability.SpanChat, sessionID, gen)
		defer span.End()
		sh := observability.NewSpanHelper(span)

		reply, err := c.gw.Chat(opCtx, videoID, message)

		c.mu.Lock()
		defer c.mu.Unlock()
		if !c.currentLocked(gen, opChat) {
			return
		}
		c.sending = false
		c.render.RenderTyping(false)
		c.render.RenderBusy(ActionChat, false)

		if err != nil {
			c.chatErr = err
			c.metrics.RecordResult(opChat, observability.OutcomeError)
			sh.SetError(err, string(vterrors.CodeOf(err)))
			c.logger.Warn("chat failed", logging.Err(err))
			c.appendTurnLocked(newTurn(RoleAssistant, MsgChatFailed, nil))
			return
		}

		c.chatErr = nil
		c.metrics.RecordResult(opChat, observability.OutcomeSuccess)
		sh.SetResults(len(reply.Sources))
		sh.SetSuccess()
		c.appendTurnLocked(newTurn(RoleAssistant, reply.Response, toSources(reply.Sources)))
	}()
	return true
}

func toSources(in []client.ChatSource) []Source {
	if len(in) == 0 {
		return nil
	}
	out := make([]Source, len(in))
	for i, s := range in {
		formatted := s.FormattedTime
		if formatted == "" {
			formatted = timecode.Format(s.StartSeconds)
		}
		out[i] = Source{
			StartSeconds:  s.StartSeconds,
			FormattedTime: formatted,
			Text:          s.Text,
			Similarity:    s.Similarity,
		}
	}
	return out
}

func (c *Controller) appendTurnLocked(turn ChatTurn) {
	c.turns = append(c.turns, turn)
	c.metrics.RecordChatTurn(string(turn.Role))
	c.render.RenderTurn(turn)
}

// Suggest sends welcome suggestion n (1-based) as a chat message.
func (c *Controller) Suggest(ctx context.Context, n int) bool {
	c.mu.Lock()
	suggestions := c.welcome.Suggestions
	c.mu.Unlock()

	if n < 1 || n > len(suggestions) {
		return false
	}
	return c.Chat(ctx, suggestions[n-1])
}

// ClearChat empties the conversation and shows the welcome placeholder. The
// video session and transcript are untouched.
func (c *Controller) ClearChat() {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.turns = nil
	c.render.RenderWelcome(c.welcome)
}

// Seek asks the player to jump to seconds.
func (c *Controller) Seek(seconds float64) bool {
	if c.playback == nil {
		return false
	}
	return c.playback.Seek(seconds)
}

// SeekSegment seeks to the start of transcript segment i.
func (c *Controller) SeekSegment(i int) bool {
	seg, ok := c.store.Segment(i)
	if !ok {
		return false
	}
	return c.Seek(seg.StartSeconds)
}

// SeekRef seeks to a timestamp reference from a chat turn.
func (c *Controller) SeekRef(ref timecode.Ref) bool {
	return c.Seek(float64(ref.Seconds))
}

// OnSeek shows the seek confirmation. It is the playback bridge's OnSeek hook.
func (c *Controller) OnSeek(seconds float64) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.showBannerLocked(LevelInfo, "Jumped to "+timecode.Format(seconds))
}

// OnPlayerError reports a playback failure. It is the bridge's OnError hook.
func (c *Controller) OnPlayerError(err error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.showBannerLocked(LevelError, "Player error: "+err.Error())
}

// opContextLocked derives a context for a search or chat request that ends
// when either ctx or the current pipeline ends.
func (c *Controller) opContextLocked(ctx context.Context) (context.Context, context.CancelFunc) {
	opCtx, cancel := context.WithCancel(ctx)
	if c.pipeline == nil {
		return opCtx, cancel
	}
	stop := context.AfterFunc(c.pipeline, cancel)
	return opCtx, func() {
		stop()
		cancel()
	}
}

// currentLocked reports whether gen is still the active generation and
// counts a stale result otherwise.
func (c *Controller) currentLocked(gen uint64, op string) bool {
	if gen == c.gen {
		return true
	}
	c.metrics.RecordResult(op, observability.OutcomeStale)
	c.logger.Debug("discarding stale result", logging.F("operation", op), logging.F("generation", gen))
	return false
}

func (c *Controller) setStateLocked(s State) {
	c.state = s
	c.metrics.RecordTransition(s.String())
	c.render.RenderState(s)
}

// Wait blocks until every dispatched request has been applied or discarded.
func (c *Controller) Wait() {
	c.wg.Wait()
}

// Close cancels in-flight work, waits for it, and stops the banner timer.
func (c *Controller) Close() {
	c.mu.Lock()
	c.gen++
	if c.cancel != nil {
		c.cancel()
		c.cancel = nil
	}
	if c.bannerTimer != nil {
		c.bannerTimer.Stop()
	}
	c.mu.Unlock()

	c.wg.Wait()
}

// State returns the pipeline state.
func (c *Controller) State() State {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.state
}

// View returns the current primary panel.
func (c *Controller) View() View {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.view
}

// Session returns the active video session, if any.
func (c *Controller) Session() (VideoSession, bool) {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.session == nil {
		return VideoSession{}, false
	}
	return *c.session, true
}

// Transcript returns the transcript store of the active session.
func (c *Controller) Transcript() *transcript.Store {
	return c.store
}

// Turns returns a copy of the conversation.
func (c *Controller) Turns() []ChatTurn {
	c.mu.Lock()
	defer c.mu.Unlock()
	out := make([]ChatTurn, len(c.turns))
	copy(out, c.turns)
	return out
}

// Welcome returns the welcome placeholder.
func (c *Controller) Welcome() Welcome {
	return c.welcome
}

// Searching reports whether a search is in flight.
func (c *Controller) Searching() bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.searching
}

// Sending reports whether a chat message is in flight.
func (c *Controller) Sending() bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.sending
}

// LastSearch returns the hits of the most recent successful search and the
// error of the most recent failed one since.
func (c *Controller) LastSearch() ([]client.SearchHit, error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.lastHits, c.searchErr
}

// ChatErr returns the error of the most recent chat turn, or nil when it
// was answered.
func (c *Controller) ChatErr() error {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.chatErr
}

// Err returns the first processing, transcript, or chat failure of the
// active session, or nil.
func (c *Controller) Err() error {
	c.mu.Lock()
	defer c.mu.Unlock()
	switch {
	case c.processErr != nil:
		return c.processErr
	case c.transcriptErr != nil:
		return c.transcriptErr
	default:
		return c.chatErr
	}
}
