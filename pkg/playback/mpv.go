package playback

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net"
	"os"
	"os/exec"
	"path/filepath"
	"sync"
	"time"

	"github.com/google/uuid"

	vterrors "github.com/otherjamesbrown/vidtwin-cli/pkg/errors"
	"github.com/otherjamesbrown/vidtwin-cli/pkg/logging"
)

// DefaultMPVBinary is looked up on PATH when MPVFactory.Binary is empty.
const DefaultMPVBinary = "mpv"

const (
	defaultIPCInterval = 100 * time.Millisecond
	mpvQuitGrace       = 2 * time.Second
)

// MPVFactory spawns mpv processes and drives them over the JSON IPC socket.
type MPVFactory struct {
	Binary string

	// SocketDir holds the IPC sockets. Defaults to os.TempDir().
	SocketDir string

	// IPCInterval is how often the socket is dialed until mpv accepts.
	IPCInterval time.Duration

	// ExtraArgs are appended before the video URL.
	ExtraArgs []string

	Logger logging.Logger
}

func (f *MPVFactory) binary() string {
	if f.Binary == "" {
		return DefaultMPVBinary
	}
	return f.Binary
}

// Available reports whether the mpv binary can be found.
func (f *MPVFactory) Available(ctx context.Context) bool {
	_, err := exec.LookPath(f.binary())
	return err == nil
}

// New starts mpv paused on target.VideoURL. onReady fires once the IPC socket
// accepts a connection.
func (f *MPVFactory) New(ctx context.Context, target Target, videoID string, onReady func()) (Player, error) {
	dir := f.SocketDir
	if dir == "" {
		dir = os.TempDir()
	}
	socket := filepath.Join(dir, "vidtwin-mpv-"+uuid.NewString()[:8]+".sock")

	videoURL := target.VideoURL
	if videoURL == "" {
		videoURL = WatchURL(videoID)
	}

	args := []string{
		"--input-ipc-server=" + socket,
		"--pause",
		"--force-window=yes",
		"--really-quiet",
	}
	args = append(args, f.ExtraArgs...)
	args = append(args, videoURL)

	cmd := exec.Command(f.binary(), args...)
	if err := cmd.Start(); err != nil {
		return nil, fmt.Errorf("starting %s: %w", f.binary(), err)
	}

	logger := f.Logger
	if logger == nil {
		logger = logging.NewNopLogger()
	}

	p := &MPVPlayer{
		cmd:    cmd,
		socket: socket,
		exited: make(chan struct{}),
		logger: logger.With(logging.F("player", "mpv"), logging.F("video_id", videoID)),
	}
	go func() {
		_ = cmd.Wait()
		close(p.exited)
	}()

	interval := f.IPCInterval
	if interval <= 0 {
		interval = defaultIPCInterval
	}
	go func() {
		conn, err := dialIPC(ctx, socket, interval, p.exited)
		if err != nil {
			p.logger.Debug("mpv ipc unavailable", logging.Err(err))
			return
		}
		if !p.attach(conn) {
			return
		}
		if onReady != nil {
			onReady()
		}
	}()

	return p, nil
}

// dialIPC dials socket every interval until it accepts, ctx ends, or done closes.
func dialIPC(ctx context.Context, socket string, interval time.Duration, done <-chan struct{}) (net.Conn, error) {
	var d net.Dialer
	for {
		conn, err := d.DialContext(ctx, "unix", socket)
		if err == nil {
			return conn, nil
		}

		select {
		case <-ctx.Done():
			return nil, ctx.Err()
		case <-done:
			return nil, errors.New("player exited before ipc was ready")
		case <-time.After(interval):
		}
	}
}

// MPVPlayer is a running mpv process.
type MPVPlayer struct {
	mu     sync.Mutex
	conn   net.Conn
	enc    *json.Encoder
	closed bool

	cmd    *exec.Cmd
	socket string
	exited chan struct{}
	logger logging.Logger
}

// newMPVPlayer wraps an established IPC connection with no owned process.
func newMPVPlayer(conn net.Conn, logger logging.Logger) *MPVPlayer {
	if logger == nil {
		logger = logging.NewNopLogger()
	}
	p := &MPVPlayer{logger: logger}
	p.attach(conn)
	return p
}

func (p *MPVPlayer) attach(conn net.Conn) bool {
	p.mu.Lock()
	defer p.mu.Unlock()
	if p.closed {
		conn.Close()
		return false
	}
	p.conn = conn
	p.enc = json.NewEncoder(conn)
	// mpv writes replies and events; they are not needed but must be drained.
	go func() { _, _ = io.Copy(io.Discard, conn) }()
	return true
}

type mpvCommand struct {
	Command []interface{} `json:"command"`
}

func (p *MPVPlayer) send(args ...interface{}) error {
	p.mu.Lock()
	defer p.mu.Unlock()
	if p.closed {
		return fmt.Errorf("mpv player closed: %w", vterrors.ErrInvalidState)
	}
	if p.enc == nil {
		return fmt.Errorf("mpv ipc not connected: %w", vterrors.ErrInvalidState)
	}
	if err := p.enc.Encode(mpvCommand{Command: args}); err != nil {
		return fmt.Errorf("mpv %v: %w", args[0], err)
	}
	return nil
}

// SeekTo seeks to an absolute position.
func (p *MPVPlayer) SeekTo(seconds float64, allowSeekAhead bool) error {
	mode := "absolute"
	if !allowSeekAhead {
		mode = "absolute+keyframes"
	}
	return p.send("seek", seconds, mode)
}

// PlayVideo unpauses playback.
func (p *MPVPlayer) PlayVideo() error {
	return p.send("set_property", "pause", false)
}

// Close asks mpv to quit, then kills it if it lingers.
func (p *MPVPlayer) Close() error {
	p.mu.Lock()
	if p.closed {
		p.mu.Unlock()
		return nil
	}
	if p.enc != nil {
		_ = p.enc.Encode(mpvCommand{Command: []interface{}{"quit"}})
	}
	p.closed = true
	conn := p.conn
	p.mu.Unlock()

	if conn != nil {
		conn.Close()
	}

	if p.cmd != nil && p.cmd.Process != nil {
		select {
		case <-p.exited:
		case <-time.After(mpvQuitGrace):
			if err := p.cmd.Process.Kill(); err != nil && !errors.Is(err, os.ErrProcessDone) {
				p.logger.Warn("killing mpv", logging.Err(err))
			}
			<-p.exited
		}
	}
	if p.socket != "" {
		_ = os.Remove(p.socket)
	}
	return nil
}
