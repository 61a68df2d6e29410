package cmd

import (
	"context"
	"encoding/json"
	"net/http"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gopkg.in/yaml.v3"

	"github.com/otherjamesbrown/vidtwin-cli/client"
	"github.com/otherjamesbrown/vidtwin-cli/config"
)

func execute(t *testing.T, c interface {
	SetArgs([]string)
	ExecuteContext(context.Context) error
}, args ...string) error {
	t.Helper()
	c.SetArgs(args)
	return c.ExecuteContext(context.Background())
}

func TestTranscriptCommand_Text(t *testing.T) {
	fs := newFakeService(t)
	deps, out := testDeps(fs, config.OutputFormatText)

	err := execute(t, NewTranscriptCommand(deps), testVideoURL)
	require.NoError(t, err)

	output := out.String()
	assert.Contains(t, output, "Video abc123: 4 segments")
	assert.Contains(t, output, "[01:05] third section about Go")
	assert.Contains(t, output, "[02:05] closing remarks")
	assert.Equal(t, 1, fs.called(client.PathProcessVideo))
	assert.Equal(t, 1, fs.called(client.PathTranscript))
	assert.Equal(t, "abc123", fs.requestBody(client.PathTranscript)["video_id"])
}

func TestTranscriptCommand_FilterJSON(t *testing.T) {
	fs := newFakeService(t)
	deps, out := testDeps(fs, config.OutputFormatJSON)

	err := execute(t, NewTranscriptCommand(deps), testVideoURL, "--filter", "THIRD")
	require.NoError(t, err)

	var result TranscriptOutput
	require.NoError(t, json.Unmarshal([]byte(out.String()), &result), out.String())
	assert.Equal(t, "abc123", result.Video.VideoID)
	assert.Equal(t, 7, result.Video.ChunkCount)
	assert.Equal(t, 4, result.Total)
	require.Len(t, result.Segments, 1)
	assert.Equal(t, 3, result.Segments[0].Index)
	assert.Equal(t, "01:05", result.Segments[0].Timestamp)
}

func TestTranscriptCommand_ProcessFailure(t *testing.T) {
	fs := newFakeService(t)
	fs.respond(client.PathProcessVideo, http.StatusBadRequest, `{"error":"Invalid YouTube URL"}`)
	deps, _ := testDeps(fs, config.OutputFormatText)

	err := execute(t, NewTranscriptCommand(deps), "https://example.com/video")
	require.Error(t, err)
	assert.Contains(t, err.Error(), "processing video")
	assert.Equal(t, 0, fs.called(client.PathTranscript))
}

func TestTranscriptCommand_TranscriptFailure(t *testing.T) {
	fs := newFakeService(t)
	fs.respond(client.PathTranscript, http.StatusInternalServerError, `{"error":"boom"}`)
	deps, _ := testDeps(fs, config.OutputFormatText)

	err := execute(t, NewTranscriptCommand(deps), testVideoURL)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "loading transcript")
}

func TestSearchCommand_Text(t *testing.T) {
	fs := newFakeService(t)
	deps, out := testDeps(fs, config.OutputFormatText)

	err := execute(t, NewSearchCommand(deps), testVideoURL, "about", "go", "--top-k", "3")
	require.NoError(t, err)

	output := out.String()
	assert.Contains(t, output, `Results for "about go" in abc123`)
	assert.Contains(t, output, " 1. [01:05] third section about Go")
	assert.Contains(t, output, "Matching transcript segments:")

	body := fs.requestBody(client.PathSearch)
	assert.Equal(t, "about go", body["query"])
	assert.Equal(t, float64(3), body["top_k"])
}

func TestSearchCommand_YAMLCorrelatesSegments(t *testing.T) {
	fs := newFakeService(t)
	deps, out := testDeps(fs, config.OutputFormatYAML)

	err := execute(t, NewSearchCommand(deps), testVideoURL, "go")
	require.NoError(t, err)

	var result SearchOutput
	require.NoError(t, yaml.Unmarshal([]byte(out.String()), &result), out.String())
	require.Len(t, result.Hits, 1)
	assert.Equal(t, 1, result.Hits[0].Rank)
	assert.Equal(t, []int{3}, result.Hits[0].Segments)
	require.Len(t, result.Highlighted, 1)
	assert.Equal(t, 3, result.Highlighted[0].Index)
	assert.True(t, result.Highlighted[0].Highlighted)
}

func TestSearchCommand_NoResults(t *testing.T) {
	fs := newFakeService(t)
	fs.respond(client.PathSearch, http.StatusOK, `{"results":[]}`)
	deps, out := testDeps(fs, config.OutputFormatText)

	err := execute(t, NewSearchCommand(deps), testVideoURL, "nothing")
	require.NoError(t, err)
	assert.Contains(t, out.String(), `No results for "nothing".`)
}

func TestSearchCommand_Failure(t *testing.T) {
	fs := newFakeService(t)
	fs.respond(client.PathSearch, http.StatusInternalServerError, `{"error":"index offline"}`)
	deps, _ := testDeps(fs, config.OutputFormatText)

	err := execute(t, NewSearchCommand(deps), testVideoURL, "go")
	require.Error(t, err)
	assert.Contains(t, err.Error(), "searching transcript")
}

func TestAskCommand_Text(t *testing.T) {
	fs := newFakeService(t)
	deps, out := testDeps(fs, config.OutputFormatText)

	err := execute(t, NewAskCommand(deps), testVideoURL, "What", "about", "Go?")
	require.NoError(t, err)

	output := out.String()
	assert.Contains(t, output, "See [1:05] for details.")
	assert.Contains(t, output, "Timestamps:")
	assert.Contains(t, output, "[1:05]  https://youtu.be/abc123?t=65")
	assert.Contains(t, output, "Sources:")
	assert.Contains(t, output, "[01:05] third section about Go")
	assert.Equal(t, "What about Go?", fs.requestBody(client.PathChat)["message"])
}

func TestAskCommand_JSON(t *testing.T) {
	fs := newFakeService(t)
	deps, out := testDeps(fs, config.OutputFormatJSON)

	err := execute(t, NewAskCommand(deps), testVideoURL, "question")
	require.NoError(t, err)

	var result AskOutput
	require.NoError(t, json.Unmarshal([]byte(out.String()), &result), out.String())
	assert.Equal(t, "question", result.Question)
	assert.Equal(t, "See [1:05] for details.", result.Answer)
	require.Len(t, result.Refs, 1)
	assert.Equal(t, 65, result.Refs[0].Seconds)
	require.Len(t, result.Sources, 1)
	assert.InDelta(t, 65.4, result.Sources[0].StartSeconds, 0.001)
}

func TestAskCommand_ChatFailure(t *testing.T) {
	fs := newFakeService(t)
	fs.respond(client.PathChat, http.StatusInternalServerError, `{"error":"model unavailable"}`)
	deps, _ := testDeps(fs, config.OutputFormatText)

	err := execute(t, NewAskCommand(deps), testVideoURL, "question")
	require.Error(t, err)
	assert.Contains(t, err.Error(), "asking question")
}

func TestAskCommand_TranscriptFailureStillAnswers(t *testing.T) {
	fs := newFakeService(t)
	fs.respond(client.PathTranscript, http.StatusInternalServerError, `{"error":"boom"}`)
	deps, out := testDeps(fs, config.OutputFormatText)

	err := execute(t, NewAskCommand(deps), testVideoURL, "question")
	require.NoError(t, err)
	assert.Contains(t, out.String(), "See [1:05] for details.")
}

func TestOneShotCommands_InvalidOutputFormat(t *testing.T) {
	fs := newFakeService(t)
	deps, _ := testDeps(fs, config.OutputFormat("xml"))

	err := execute(t, NewTranscriptCommand(deps), testVideoURL)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "invalid output format")
	assert.Equal(t, 0, fs.called(client.PathProcessVideo))
}
