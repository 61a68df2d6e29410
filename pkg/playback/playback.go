// Package playback connects the session to an external media player. The
// player is reached only through its seek and play capabilities; how it is
// spawned and rendered belongs to a Factory.
package playback

import (
	"context"
	"fmt"
	"io"
	"net/url"
	"strings"
)

// Target describes where a player should render.
type Target struct {
	// VideoURL is the page or stream the player loads.
	VideoURL string

	// Out receives textual output from players that have no window of their own.
	Out io.Writer
}

// Player is a constructed player instance.
type Player interface {
	// PlayVideo starts or resumes playback.
	PlayVideo() error

	// Close releases the player and any process or connection behind it.
	Close() error
}

// Seeker is implemented by players that can jump to a position.
type Seeker interface {
	// SeekTo moves playback to seconds. allowSeekAhead permits seeking past
	// what the player has buffered.
	SeekTo(seconds float64, allowSeekAhead bool) error
}

// Factory creates players once its backing capability is available.
type Factory interface {
	// Available reports whether a player can be constructed right now.
	Available(ctx context.Context) bool

	// New constructs a player for videoID on target. onReady is invoked once
	// the player accepts commands; it may be called before New returns.
	New(ctx context.Context, target Target, videoID string, onReady func()) (Player, error)
}

// WatchURL returns the canonical page URL for a video id.
func WatchURL(videoID string) string {
	return "https://www.youtube.com/watch?v=" + url.QueryEscape(videoID)
}

// DeepLink returns a short link that opens videoID at the given offset.
func DeepLink(videoID string, seconds float64) string {
	if seconds < 0 {
		seconds = 0
	}
	return fmt.Sprintf("https://youtu.be/%s?t=%d", url.PathEscape(videoID), int64(seconds))
}

// VideoIDFromURL extracts the video id from common YouTube URL shapes.
// It returns "" when raw is not a recognizable video link.
func VideoIDFromURL(raw string) string {
	u, err := url.Parse(strings.TrimSpace(raw))
	if err != nil || u.Host == "" {
		return ""
	}

	host := strings.TrimPrefix(strings.ToLower(u.Host), "www.")
	host = strings.TrimPrefix(host, "m.")

	switch host {
	case "youtu.be":
		return strings.Trim(u.Path, "/")
	case "youtube.com", "music.youtube.com":
		if v := u.Query().Get("v"); v != "" {
			return v
		}
		for _, prefix := range []string{"/embed/", "/shorts/", "/live/", "/v/"} {
			if strings.HasPrefix(u.Path, prefix) {
				return strings.Trim(strings.TrimPrefix(u.Path, prefix), "/")
			}
		}
	}
	return ""
}
