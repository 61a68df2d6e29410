package playback

import (
	"context"
	"fmt"
	"sync"
	"time"

	vterrors "github.com/otherjamesbrown/vidtwin-cli/pkg/errors"
	"github.com/otherjamesbrown/vidtwin-cli/pkg/logging"
	"github.com/otherjamesbrown/vidtwin-cli/pkg/observability"
)

// Default readiness polling.
const (
	DefaultPollInterval = 500 * time.Millisecond
	DefaultMaxWait      = 30 * time.Second
)

// Seek outcome labels.
const (
	SeekPerformed = "performed"
	SeekBuffered  = "buffered"
	SeekIgnored   = "ignored"
	SeekFailed    = "failed"
)

// Options configures a Bridge.
type Options struct {
	// PollInterval is how often Factory.Available is checked while attaching.
	PollInterval time.Duration

	// MaxWait bounds the availability wait. Exhaustion is reported via OnError.
	MaxWait time.Duration

	// Target is passed to the factory for every player it builds.
	Target Target

	// OnSeek is called after a seek is performed.
	OnSeek func(seconds float64)

	// OnError is called when attaching or seeking fails.
	OnError func(err error)

	Logger  logging.Logger
	Metrics *observability.Metrics
}

// Bridge owns at most one player and forwards seek requests to it. Attach
// never blocks the caller; readiness is awaited on a background goroutine.
type Bridge struct {
	factory Factory
	opts    Options
	logger  logging.Logger

	mu       sync.Mutex
	gen      uint64
	videoID  string
	player   Player
	ready    bool
	failed   bool
	pending  *float64
	cancel   context.CancelFunc
	attachAt time.Time

	wg sync.WaitGroup
}

// NewBridge creates a bridge over factory. A nil factory yields a bridge that
// never attaches, so every Seek is a no-op.
func NewBridge(factory Factory, opts Options) *Bridge {
	if opts.PollInterval <= 0 {
		opts.PollInterval = DefaultPollInterval
	}
	if opts.MaxWait <= 0 {
		opts.MaxWait = DefaultMaxWait
	}
	logger := opts.Logger
	if logger == nil {
		logger = logging.NewNopLogger()
	}
	return &Bridge{
		factory: factory,
		opts:    opts,
		logger:  logger.With(logging.F("component", "playback")),
	}
}

// Attach replaces any current player with one for videoID. The previous
// player is closed first; the new one is built once the factory reports
// availability, polling every PollInterval for at most MaxWait.
func (b *Bridge) Attach(ctx context.Context, videoID, videoURL string) {
	b.mu.Lock()
	old := b.resetLocked()
	if b.factory == nil {
		b.mu.Unlock()
		closePlayer(old, b.logger)
		return
	}

	b.videoID = videoID
	b.attachAt = time.Now()
	attachCtx, cancel := context.WithCancel(ctx)
	b.cancel = cancel
	gen := b.gen

	target := b.opts.Target
	if videoURL != "" {
		target.VideoURL = videoURL
	}
	if target.VideoURL == "" {
		target.VideoURL = WatchURL(videoID)
	}

	b.wg.Add(1)
	b.mu.Unlock()

	closePlayer(old, b.logger)
	go b.attach(attachCtx, gen, videoID, target)
}

// Detach closes the current player and drops any buffered seek.
func (b *Bridge) Detach() {
	b.mu.Lock()
	old := b.resetLocked()
	b.mu.Unlock()
	closePlayer(old, b.logger)
}

// resetLocked invalidates the current attachment and returns the player to close.
func (b *Bridge) resetLocked() Player {
	b.gen++
	if b.cancel != nil {
		b.cancel()
		b.cancel = nil
	}
	old := b.player
	b.player = nil
	b.videoID = ""
	b.ready = false
	b.failed = false
	b.pending = nil
	return old
}

func (b *Bridge) attach(ctx context.Context, gen uint64, videoID string, target Target) {
	defer b.wg.Done()

	if err := b.waitAvailable(ctx); err != nil {
		if ctx.Err() != nil {
			return
		}
		b.fail(gen, fmt.Errorf("player for %s: %w", videoID, err))
		return
	}

	player, err := b.factory.New(ctx, target, videoID, func() { b.markReady(gen) })
	if err != nil {
		b.fail(gen, fmt.Errorf("starting player for %s: %w", videoID, err))
		return
	}

	b.mu.Lock()
	if gen != b.gen {
		b.mu.Unlock()
		closePlayer(player, b.logger)
		return
	}
	b.player = player
	pending := b.takePendingLocked()
	b.mu.Unlock()

	b.logger.Debug("player constructed", logging.F("video_id", videoID))
	if pending != nil {
		b.perform(gen, player, *pending)
	}
}

// waitAvailable polls the factory until it is available, ctx ends, or MaxWait elapses.
func (b *Bridge) waitAvailable(ctx context.Context) error {
	if b.factory.Available(ctx) {
		return nil
	}

	deadline := time.NewTimer(b.opts.MaxWait)
	defer deadline.Stop()
	ticker := time.NewTicker(b.opts.PollInterval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-deadline.C:
			return fmt.Errorf("not available after %s: %w", b.opts.MaxWait, vterrors.ErrUnavailable)
		case <-ticker.C:
			if b.factory.Available(ctx) {
				return nil
			}
		}
	}
}

func (b *Bridge) fail(gen uint64, err error) {
	b.mu.Lock()
	if gen != b.gen {
		b.mu.Unlock()
		return
	}
	b.failed = true
	b.pending = nil
	b.mu.Unlock()

	b.logger.Warn("player attach failed", logging.Err(err))
	b.opts.Metrics.RecordAttach(observability.OutcomeError, 0)
	if b.opts.OnError != nil {
		b.opts.OnError(err)
	}
}

func (b *Bridge) markReady(gen uint64) {
	b.mu.Lock()
	if gen != b.gen || b.ready {
		b.mu.Unlock()
		return
	}
	b.ready = true
	elapsed := time.Since(b.attachAt)
	player := b.player
	pending := b.takePendingLocked()
	b.mu.Unlock()

	b.logger.Debug("player ready", logging.F("elapsed", elapsed))
	b.opts.Metrics.RecordAttach(observability.OutcomeSuccess, elapsed.Seconds())
	if pending != nil {
		b.perform(gen, player, *pending)
	}
}

// takePendingLocked returns the buffered seek once a ready player exists.
func (b *Bridge) takePendingLocked() *float64 {
	if !b.ready || b.player == nil || b.pending == nil {
		return nil
	}
	p := b.pending
	b.pending = nil
	return p
}

// Seek requests playback at seconds. It returns false when nothing is
// attached, attaching failed, or the player cannot seek. Before the player
// is ready only the latest request is kept and flushed on readiness.
func (b *Bridge) Seek(seconds float64) bool {
	b.mu.Lock()
	if b.videoID == "" || b.failed {
		b.mu.Unlock()
		b.opts.Metrics.RecordSeek(SeekIgnored)
		return false
	}
	if !b.ready || b.player == nil {
		s := seconds
		b.pending = &s
		b.mu.Unlock()
		b.opts.Metrics.RecordSeek(SeekBuffered)
		return true
	}
	player, gen := b.player, b.gen
	b.mu.Unlock()

	if _, ok := player.(Seeker); !ok {
		b.opts.Metrics.RecordSeek(SeekIgnored)
		return false
	}
	return b.perform(gen, player, seconds)
}

func (b *Bridge) perform(gen uint64, player Player, seconds float64) bool {
	seeker, ok := player.(Seeker)
	if !ok {
		b.opts.Metrics.RecordSeek(SeekIgnored)
		return false
	}

	err := seeker.SeekTo(seconds, true)
	if err == nil {
		err = player.PlayVideo()
	}
	if err != nil {
		b.opts.Metrics.RecordSeek(SeekFailed)
		b.logger.Warn("seek failed", logging.F("seconds", seconds), logging.Err(err))
		if b.opts.OnError != nil {
			b.opts.OnError(fmt.Errorf("seek to %.0fs: %w", seconds, err))
		}
		return false
	}

	b.opts.Metrics.RecordSeek(SeekPerformed)
	b.mu.Lock()
	current := gen == b.gen
	b.mu.Unlock()
	if current && b.opts.OnSeek != nil {
		b.opts.OnSeek(seconds)
	}
	return true
}

// Attached reports whether a player is being attached or is attached.
func (b *Bridge) Attached() bool {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.videoID != "" && !b.failed
}

// Ready reports whether the current player accepts commands.
func (b *Bridge) Ready() bool {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.ready && b.player != nil
}

// Close detaches and waits for background attach work to finish.
func (b *Bridge) Close() error {
	b.Detach()
	b.wg.Wait()
	return nil
}

func closePlayer(p Player, logger logging.Logger) {
	if p == nil {
		return
	}
	if err := p.Close(); err != nil {
		logger.Warn("closing player", logging.Err(err))
	}
}
