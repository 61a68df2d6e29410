package playback

import (
	"context"
	"errors"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	vterrors "github.com/otherjamesbrown/vidtwin-cli/pkg/errors"
	"github.com/otherjamesbrown/vidtwin-cli/pkg/observability"
)

type fakePlayer struct {
	mu      sync.Mutex
	videoID string
	seeks   []float64
	plays   int
	closed  bool
	seekErr error
}

func (p *fakePlayer) SeekTo(seconds float64, allowSeekAhead bool) error {
	p.mu.Lock()
	defer p.mu.Unlock()
	if p.seekErr != nil {
		return p.seekErr
	}
	p.seeks = append(p.seeks, seconds)
	return nil
}

func (p *fakePlayer) PlayVideo() error {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.plays++
	return nil
}

func (p *fakePlayer) Close() error {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.closed = true
	return nil
}

func (p *fakePlayer) Seeks() []float64 {
	p.mu.Lock()
	defer p.mu.Unlock()
	return append([]float64(nil), p.seeks...)
}

func (p *fakePlayer) Closed() bool {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.closed
}

// playOnly cannot seek.
type playOnly struct{}

func (playOnly) PlayVideo() error { return nil }
func (playOnly) Close() error     { return nil }

type fakeFactory struct {
	available atomic.Bool
	// deferReady holds onReady until ready() is called.
	deferReady bool
	block      chan struct{}
	newErr     error
	seekErr    error
	nonSeeker  bool

	mu       sync.Mutex
	players  []*fakePlayer
	onReadys []func()
}

func newFakeFactory(available bool) *fakeFactory {
	f := &fakeFactory{}
	f.available.Store(available)
	return f
}

func (f *fakeFactory) Available(ctx context.Context) bool { return f.available.Load() }

func (f *fakeFactory) New(ctx context.Context, target Target, videoID string, onReady func()) (Player, error) {
	if f.block != nil {
		<-f.block
	}
	if f.newErr != nil {
		return nil, f.newErr
	}
	if f.nonSeeker {
		onReady()
		return playOnly{}, nil
	}

	p := &fakePlayer{videoID: videoID, seekErr: f.seekErr}
	f.mu.Lock()
	f.players = append(f.players, p)
	f.onReadys = append(f.onReadys, onReady)
	f.mu.Unlock()

	if !f.deferReady {
		onReady()
	}
	return p, nil
}

func (f *fakeFactory) player(i int) *fakePlayer {
	f.mu.Lock()
	defer f.mu.Unlock()
	if i >= len(f.players) {
		return nil
	}
	return f.players[i]
}

func (f *fakeFactory) count() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return len(f.players)
}

func (f *fakeFactory) ready(i int) {
	f.mu.Lock()
	fn := f.onReadys[i]
	f.mu.Unlock()
	fn()
}

func fastOptions() Options {
	return Options{PollInterval: 5 * time.Millisecond, MaxWait: time.Second}
}

func TestBridge_SeekWithoutAttach(t *testing.T) {
	b := NewBridge(newFakeFactory(true), fastOptions())
	defer b.Close()

	assert.False(t, b.Seek(10))
	assert.False(t, b.Attached())
}

func TestBridge_NilFactory(t *testing.T) {
	b := NewBridge(nil, fastOptions())
	defer b.Close()

	b.Attach(context.Background(), "abc", "")
	assert.False(t, b.Attached())
	assert.False(t, b.Seek(10))
}

func TestBridge_AttachAndSeek(t *testing.T) {
	factory := newFakeFactory(true)
	var seeked []float64
	var mu sync.Mutex
	opts := fastOptions()
	opts.OnSeek = func(s float64) {
		mu.Lock()
		seeked = append(seeked, s)
		mu.Unlock()
	}
	b := NewBridge(factory, opts)
	defer b.Close()

	b.Attach(context.Background(), "abc", "")
	require.Eventually(t, b.Ready, time.Second, 5*time.Millisecond)

	assert.True(t, b.Seek(75))
	p := factory.player(0)
	require.NotNil(t, p)
	assert.Equal(t, "abc", p.videoID)
	assert.Equal(t, []float64{75}, p.Seeks())
	assert.Equal(t, 1, p.plays)

	mu.Lock()
	defer mu.Unlock()
	assert.Equal(t, []float64{75}, seeked)
}

func TestBridge_BuffersLatestSeekUntilReady(t *testing.T) {
	factory := newFakeFactory(false)
	factory.deferReady = true
	b := NewBridge(factory, fastOptions())
	defer b.Close()

	b.Attach(context.Background(), "abc", "")
	assert.True(t, b.Attached())

	// Before the factory is available.
	assert.True(t, b.Seek(10))
	factory.available.Store(true)
	require.Eventually(t, func() bool { return factory.count() == 1 }, time.Second, 5*time.Millisecond)

	// Constructed but not ready.
	assert.True(t, b.Seek(20))
	assert.True(t, b.Seek(30))
	assert.Empty(t, factory.player(0).Seeks())

	factory.ready(0)
	require.Eventually(t, func() bool { return len(factory.player(0).Seeks()) > 0 }, time.Second, 5*time.Millisecond)
	assert.Equal(t, []float64{30}, factory.player(0).Seeks())
}

func TestBridge_ReadyBeforeNewReturnsFlushesPending(t *testing.T) {
	factory := newFakeFactory(false)
	b := NewBridge(factory, fastOptions())
	defer b.Close()

	b.Attach(context.Background(), "abc", "")
	assert.True(t, b.Seek(42))
	factory.available.Store(true)

	require.Eventually(t, func() bool {
		p := factory.player(0)
		return p != nil && len(p.Seeks()) == 1
	}, time.Second, 5*time.Millisecond)
	assert.Equal(t, []float64{42}, factory.player(0).Seeks())
}

func TestBridge_MaxWaitExhausted(t *testing.T) {
	factory := newFakeFactory(false)
	errCh := make(chan error, 1)
	opts := Options{
		PollInterval: 5 * time.Millisecond,
		MaxWait:      30 * time.Millisecond,
		OnError:      func(err error) { errCh <- err },
	}
	b := NewBridge(factory, opts)
	defer b.Close()

	b.Attach(context.Background(), "abc", "")
	b.Seek(12)

	select {
	case err := <-errCh:
		assert.True(t, vterrors.IsUnavailable(err))
		assert.Contains(t, err.Error(), "abc")
	case <-time.After(time.Second):
		t.Fatal("expected attach failure")
	}

	assert.False(t, b.Attached())
	assert.False(t, b.Seek(5))
	assert.Equal(t, 0, factory.count())
}

func TestBridge_AttachClosesPrevious(t *testing.T) {
	factory := newFakeFactory(true)
	b := NewBridge(factory, fastOptions())
	defer b.Close()

	b.Attach(context.Background(), "first", "")
	require.Eventually(t, b.Ready, time.Second, 5*time.Millisecond)
	first := factory.player(0)

	b.Attach(context.Background(), "second", "")
	assert.True(t, first.Closed())
	require.Eventually(t, func() bool { return factory.count() == 2 && b.Ready() }, time.Second, 5*time.Millisecond)

	assert.True(t, b.Seek(3))
	assert.Empty(t, first.Seeks())
	assert.Equal(t, []float64{3}, factory.player(1).Seeks())
}

func TestBridge_StaleConstructionDiscarded(t *testing.T) {
	factory := newFakeFactory(true)
	factory.block = make(chan struct{})
	b := NewBridge(factory, fastOptions())

	b.Attach(context.Background(), "abc", "")
	b.Detach()
	close(factory.block)
	require.NoError(t, b.Close())

	p := factory.player(0)
	require.NotNil(t, p)
	assert.True(t, p.Closed())
	assert.False(t, b.Ready())
}

func TestBridge_NonSeekerIgnored(t *testing.T) {
	factory := newFakeFactory(true)
	factory.nonSeeker = true
	b := NewBridge(factory, fastOptions())
	defer b.Close()

	b.Attach(context.Background(), "abc", "")
	require.Eventually(t, b.Ready, time.Second, 5*time.Millisecond)
	assert.False(t, b.Seek(10))
}

func TestBridge_FactoryErrorReported(t *testing.T) {
	factory := newFakeFactory(true)
	factory.newErr = errors.New("no display")
	errCh := make(chan error, 1)
	opts := fastOptions()
	opts.OnError = func(err error) { errCh <- err }
	b := NewBridge(factory, opts)
	defer b.Close()

	b.Attach(context.Background(), "abc", "")
	select {
	case err := <-errCh:
		assert.Contains(t, err.Error(), "no display")
	case <-time.After(time.Second):
		t.Fatal("expected factory error")
	}
	assert.False(t, b.Attached())
}

func TestBridge_SeekErrorReported(t *testing.T) {
	factory := newFakeFactory(true)
	factory.seekErr = errors.New("ipc closed")
	errCh := make(chan error, 1)
	opts := fastOptions()
	opts.OnError = func(err error) { errCh <- err }
	opts.OnSeek = func(float64) { t.Error("OnSeek must not fire on failure") }
	b := NewBridge(factory, opts)
	defer b.Close()

	b.Attach(context.Background(), "abc", "")
	require.Eventually(t, b.Ready, time.Second, 5*time.Millisecond)

	assert.False(t, b.Seek(10))
	err := <-errCh
	assert.Contains(t, err.Error(), "ipc closed")
}

func TestBridge_Metrics(t *testing.T) {
	reg := prometheus.NewRegistry()
	m := observability.NewMetrics(reg)
	factory := newFakeFactory(true)
	opts := fastOptions()
	opts.Metrics = m
	b := NewBridge(factory, opts)
	defer b.Close()

	b.Seek(1)
	b.Attach(context.Background(), "abc", "")
	require.Eventually(t, b.Ready, time.Second, 5*time.Millisecond)
	b.Seek(2)

	assert.Equal(t, float64(1), testutil.ToFloat64(m.PlayerSeeksTotal.WithLabelValues(SeekIgnored)))
	assert.Equal(t, float64(1), testutil.ToFloat64(m.PlayerSeeksTotal.WithLabelValues(SeekPerformed)))
	assert.Equal(t, float64(1), testutil.ToFloat64(m.PlayerAttachTotal.WithLabelValues(observability.OutcomeSuccess)))
}

func TestBridge_CloseCancelsPolling(t *testing.T) {
	factory := newFakeFactory(false)
	opts := Options{PollInterval: 5 * time.Millisecond, MaxWait: time.Minute}
	b := NewBridge(factory, opts)

	b.Attach(context.Background(), "abc", "")

	done := make(chan struct{})
	go func() {
		_ = b.Close()
		close(done)
	}()
	select {
	case <-done:
	case <-time.After(time.Second):
		t.Fatal("Close did not stop the attach goroutine")
	}
}
