package cmd

import (
	"bytes"
	"encoding/json"
	"errors"
	"io"
	"net/http"
	"net/http/httptest"
	"sync"
	"testing"
	"time"

	"github.com/otherjamesbrown/vidtwin-cli/client"
	"github.com/otherjamesbrown/vidtwin-cli/config"
	"github.com/otherjamesbrown/vidtwin-cli/pkg/logging"
	"github.com/otherjamesbrown/vidtwin-cli/pkg/playback"
)

const testVideoURL = "https://www.youtube.com/watch?v=abc123"

const transcriptJSON = `{"transcript":[
	{"start":0,"duration":5,"text":"first words"},
	{"start":5,"duration":60,"text":"second part"},
	{"start":65.4,"duration":10,"text":"third section about Go"},
	{"start":125,"duration":4,"text":"closing remarks"}
]}`

const chatJSON = `{"response":"See [1:05] for details.","sources":[
	{"timestamp":65.4,"formatted_time":"01:05","text":"third section about Go","similarity":0.91}
]}`

// fakeService is an in-process transcript service.
type fakeService struct {
	*httptest.Server

	mu     sync.Mutex
	calls  []string
	bodies map[string]map[string]interface{}
	status map[string]int
	body   map[string]string
}

func newFakeService(t *testing.T) *fakeService {
	t.Helper()
	fs := &fakeService{
		bodies: map[string]map[string]interface{}{},
		status: map[string]int{},
		body: map[string]string{
			client.PathProcessVideo: `{"video_id":"abc123","chunks_count":7,"video_info":{"video_url":"` + testVideoURL + `"},"message":"Video processed successfully"}`,
			client.PathTranscript:   transcriptJSON,
			client.PathSearch:       `{"results":[{"start":65,"text":"third section about Go","similarity":0.9}]}`,
			client.PathChat:         chatJSON,
			client.PathHealth:       `{"status":"healthy"}`,
		},
	}
	fs.Server = httptest.NewServer(http.HandlerFunc(fs.serve))
	t.Cleanup(fs.Close)
	return fs
}

func (fs *fakeService) serve(w http.ResponseWriter, r *http.Request) {
	var body map[string]interface{}
	_ = json.NewDecoder(r.Body).Decode(&body)

	fs.mu.Lock()
	fs.calls = append(fs.calls, r.URL.Path)
	fs.bodies[r.URL.Path] = body
	status, ok := fs.status[r.URL.Path]
	if !ok {
		status = http.StatusOK
	}
	resp, found := fs.body[r.URL.Path]
	fs.mu.Unlock()

	if !found {
		http.NotFound(w, r)
		return
	}
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_, _ = io.WriteString(w, resp)
}

// respond overrides the reply for path.
func (fs *fakeService) respond(path string, status int, body string) {
	fs.mu.Lock()
	defer fs.mu.Unlock()
	fs.status[path] = status
	fs.body[path] = body
}

func (fs *fakeService) requestBody(path string) map[string]interface{} {
	fs.mu.Lock()
	defer fs.mu.Unlock()
	return fs.bodies[path]
}

func (fs *fakeService) called(path string) int {
	fs.mu.Lock()
	defer fs.mu.Unlock()
	n := 0
	for _, c := range fs.calls {
		if c == path {
			n++
		}
	}
	return n
}

// syncBuffer is a bytes.Buffer safe for concurrent writers.
type syncBuffer struct {
	mu  sync.Mutex
	buf bytes.Buffer
}

func (b *syncBuffer) Write(p []byte) (int, error) {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.buf.Write(p)
}

func (b *syncBuffer) String() string {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.buf.String()
}

func testConfig(serverURL string, format config.OutputFormat) *config.CLIConfig {
	cfg := config.DefaultConfig()
	cfg.ServerURL = serverURL
	cfg.OutputFormat = format
	cfg.Timeout = 5 * time.Second
	cfg.Player.PollInterval = 10 * time.Millisecond
	cfg.Player.MaxWait = time.Second
	return cfg
}

// testDeps wires commands to fs with output captured.
func testDeps(fs *fakeService, format config.OutputFormat) (*CommandDeps, *syncBuffer) {
	out := &syncBuffer{}
	return &CommandDeps{
		LoadConfig: func() (*config.CLIConfig, error) {
			return testConfig(fs.URL, format), nil
		},
		NewLogger: func(*config.CLIConfig, io.Writer) logging.Logger {
			return logging.NewNopLogger()
		},
		NewFactory: func(*config.CLIConfig, io.Writer, logging.Logger) playback.Factory {
			return playback.URLFactory{}
		},
		ReadClipboard: func() (string, error) {
			return "", errors.New("no clipboard")
		},
		Stdin:  bytes.NewReader(nil),
		Stdout: out,
		Stderr: io.Discard,
	}, out
}
