package playback

import (
	"context"
	"fmt"
	"io"
	"os"
	"sync"
)

// URLFactory builds players that print a deep link for every seek. It is
// always available and ready immediately.
type URLFactory struct{}

// Available always reports true.
func (URLFactory) Available(ctx context.Context) bool { return true }

// New returns a URLPlayer writing to target.Out, or stdout when unset.
func (URLFactory) New(ctx context.Context, target Target, videoID string, onReady func()) (Player, error) {
	out := target.Out
	if out == nil {
		out = os.Stdout
	}
	p := &URLPlayer{videoID: videoID, out: out}
	if onReady != nil {
		onReady()
	}
	return p, nil
}

// URLPlayer renders playback as links that open the video at a position.
type URLPlayer struct {
	mu       sync.Mutex
	videoID  string
	out      io.Writer
	position float64
	closed   bool
}

// SeekTo records the position for the next PlayVideo.
func (p *URLPlayer) SeekTo(seconds float64, allowSeekAhead bool) error {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.position = seconds
	return nil
}

// PlayVideo writes the deep link for the current position.
func (p *URLPlayer) PlayVideo() error {
	p.mu.Lock()
	defer p.mu.Unlock()
	if p.closed {
		return nil
	}
	_, err := fmt.Fprintf(p.out, "  ▶ %s\n", DeepLink(p.videoID, p.position))
	return err
}

// Position returns the last sought position.
func (p *URLPlayer) Position() float64 {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.position
}

// Close stops further output.
func (p *URLPlayer) Close() error {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.closed = true
	return nil
}
