package playback

import (
	"bufio"
	"bytes"
	"context"
	"encoding/json"
	"net"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	vterrors "github.com/otherjamesbrown/vidtwin-cli/pkg/errors"
)

func TestDeepLink(t *testing.T) {
	assert.Equal(t, "https://youtu.be/abc123?t=75", DeepLink("abc123", 75.9))
	assert.Equal(t, "https://youtu.be/abc123?t=0", DeepLink("abc123", -4))
}

func TestVideoIDFromURL(t *testing.T) {
	tests := []struct {
		raw  string
		want string
	}{
		{"https://www.youtube.com/watch?v=dQw4w9WgXcQ", "dQw4w9WgXcQ"},
		{"https://youtube.com/watch?v=abc&t=30s", "abc"},
		{"https://m.youtube.com/watch?v=abc", "abc"},
		{"https://youtu.be/abc", "abc"},
		{"https://www.youtube.com/embed/abc", "abc"},
		{"https://www.youtube.com/shorts/abc", "abc"},
		{"https://example.com/watch?v=abc", ""},
		{"not a url", ""},
		{"", ""},
	}
	for _, tt := range tests {
		t.Run(tt.raw, func(t *testing.T) {
			assert.Equal(t, tt.want, VideoIDFromURL(tt.raw))
		})
	}
}

func TestURLPlayer(t *testing.T) {
	var buf bytes.Buffer
	ready := false
	p, err := URLFactory{}.New(context.Background(), Target{Out: &buf}, "abc", func() { ready = true })
	require.NoError(t, err)
	assert.True(t, ready)
	assert.True(t, URLFactory{}.Available(context.Background()))

	seeker, ok := p.(Seeker)
	require.True(t, ok)
	require.NoError(t, seeker.SeekTo(125, true))
	require.NoError(t, p.PlayVideo())
	assert.Equal(t, "  ▶ https://youtu.be/abc?t=125\n", buf.String())

	require.NoError(t, p.Close())
	require.NoError(t, p.PlayVideo())
	assert.Equal(t, "  ▶ https://youtu.be/abc?t=125\n", buf.String())
}

func TestURLFactoryThroughBridge(t *testing.T) {
	var buf bytes.Buffer
	b := NewBridge(URLFactory{}, Options{Target: Target{Out: &buf}, PollInterval: 5 * time.Millisecond})
	defer b.Close()

	b.Attach(context.Background(), "abc", "")
	require.Eventually(t, b.Ready, time.Second, 5*time.Millisecond)
	assert.True(t, b.Seek(61))
	assert.Contains(t, buf.String(), "https://youtu.be/abc?t=61")
}

func TestMPVFactory_Available(t *testing.T) {
	f := &MPVFactory{Binary: "vidtwin-no-such-player-binary"}
	assert.False(t, f.Available(context.Background()))
}

// shortSocketPath keeps unix socket paths under the platform length limit.
func shortSocketPath(t *testing.T) string {
	dir, err := os.MkdirTemp("", "vt")
	require.NoError(t, err)
	t.Cleanup(func() { os.RemoveAll(dir) })
	return filepath.Join(dir, "mpv.sock")
}

func TestDialIPC_WaitsForListener(t *testing.T) {
	socket := shortSocketPath(t)

	lnCh := make(chan net.Listener, 1)
	go func() {
		time.Sleep(30 * time.Millisecond)
		ln, err := net.Listen("unix", socket)
		if err != nil {
			close(lnCh)
			return
		}
		lnCh <- ln
		conn, err := ln.Accept()
		if err == nil {
			conn.Close()
		}
	}()

	conn, err := dialIPC(context.Background(), socket, 5*time.Millisecond, nil)
	require.NoError(t, err)
	conn.Close()
	if ln, ok := <-lnCh; ok {
		ln.Close()
	}
}

func TestDialIPC_ProcessExited(t *testing.T) {
	done := make(chan struct{})
	close(done)
	_, err := dialIPC(context.Background(), shortSocketPath(t), 5*time.Millisecond, done)
	assert.Error(t, err)
}

func TestDialIPC_ContextCancelled(t *testing.T) {
	ctx, cancel := context.WithTimeout(context.Background(), 20*time.Millisecond)
	defer cancel()
	_, err := dialIPC(ctx, shortSocketPath(t), 5*time.Millisecond, nil)
	assert.ErrorIs(t, err, context.DeadlineExceeded)
}

func TestMPVPlayer_Commands(t *testing.T) {
	client, server := net.Pipe()
	defer server.Close()

	p := newMPVPlayer(client, nil)

	lines := make(chan string, 4)
	go func() {
		sc := bufio.NewScanner(server)
		for sc.Scan() {
			lines <- sc.Text()
		}
		close(lines)
	}()

	require.NoError(t, p.SeekTo(90.5, true))
	require.NoError(t, p.PlayVideo())
	require.NoError(t, p.Close())

	var got []mpvCommand
	for line := range lines {
		var cmd mpvCommand
		require.NoError(t, json.Unmarshal([]byte(line), &cmd))
		got = append(got, cmd)
	}

	require.Len(t, got, 3)
	assert.Equal(t, []interface{}{"seek", 90.5, "absolute"}, got[0].Command)
	assert.Equal(t, []interface{}{"set_property", "pause", false}, got[1].Command)
	assert.Equal(t, []interface{}{"quit"}, got[2].Command)

	err := p.SeekTo(1, true)
	assert.True(t, vterrors.IsInvalidState(err))
}

func TestMPVPlayer_NotConnected(t *testing.T) {
	p := &MPVPlayer{}
	err := p.PlayVideo()
	assert.True(t, vterrors.IsInvalidState(err))
	assert.NoError(t, p.Close())
}
