package session

import (
	"context"

	"github.com/google/uuid"

	"github.com/otherjamesbrown/vidtwin-cli/client"
	"github.com/otherjamesbrown/vidtwin-cli/pkg/timecode"
	"github.com/otherjamesbrown/vidtwin-cli/pkg/transcript"
)

// State is the session pipeline state.
type State int

const (
	StateIdle State = iota
	StateProcessing
	StateTranscriptLoading
	StateReady
)

func (s State) String() string {
	switch s {
	case StateIdle:
		return "idle"
	case StateProcessing:
		return "processing"
	case StateTranscriptLoading:
		return "transcript_loading"
	case StateReady:
		return "ready"
	default:
		return "unknown"
	}
}

// Action identifies a user action that can be busy.
type Action string

const (
	ActionProcess Action = "process"
	ActionSearch  Action = "search"
	ActionChat    Action = "chat"
)

// View is the primary panel shown to the user.
type View int

const (
	ViewInput View = iota
	ViewChat
)

// Level is the severity of a status banner.
type Level string

const (
	LevelSuccess Level = "success"
	LevelError   Level = "error"
	LevelInfo    Level = "info"
)

// Banner is a transient status message.
type Banner struct {
	Message string `json:"message" yaml:"message"`
	Level   Level  `json:"level" yaml:"level"`
}

// Role is the author of a chat turn.
type Role string

const (
	RoleUser      Role = "user"
	RoleAssistant Role = "assistant"
)

// Source is a transcript excerpt cited by an assistant turn.
type Source struct {
	StartSeconds  float64 `json:"timestamp" yaml:"timestamp"`
	FormattedTime string  `json:"formatted_time" yaml:"formatted_time"`
	Text          string  `json:"text" yaml:"text"`
	Similarity    float64 `json:"similarity,omitempty" yaml:"similarity,omitempty"`
}

// ChatTurn is one message in the conversation. Text is kept verbatim;
// Annotated carries its timestamp references.
type ChatTurn struct {
	Role      Role               `json:"role" yaml:"role"`
	Text      string             `json:"text" yaml:"text"`
	Annotated timecode.Annotated `json:"-" yaml:"-"`
	Sources   []Source           `json:"sources,omitempty" yaml:"sources,omitempty"`
}

func newTurn(role Role, text string, sources []Source) ChatTurn {
	return ChatTurn{Role: role, Text: text, Annotated: timecode.Linkify(text), Sources: sources}
}

// VideoSession is the processed video the conversation is about. A new
// session replaces the previous one; sessions are never mutated.
type VideoSession struct {
	ID         uuid.UUID `json:"id" yaml:"id"`
	VideoID    string    `json:"video_id" yaml:"video_id"`
	VideoURL   string    `json:"video_url" yaml:"video_url"`
	ChunkCount int       `json:"chunk_count" yaml:"chunk_count"`
	Message    string    `json:"message,omitempty" yaml:"message,omitempty"`
}

// Welcome is the placeholder shown while the conversation is empty.
type Welcome struct {
	Title       string   `json:"title" yaml:"title"`
	Body        string   `json:"body" yaml:"body"`
	Suggestions []string `json:"suggestions" yaml:"suggestions"`
}

// DefaultWelcome is shown after a transcript loads and after ClearChat.
var DefaultWelcome = Welcome{
	Title: "Hello! I'm your AI assistant.",
	Body:  "I've analyzed this video. Ask me anything about its content!",
	Suggestions: []string{
		"What is this video about?",
		"Summarize the main points",
		"What are the key takeaways?",
	},
}

// Renderer draws controller output. Calls arrive serialized while the
// controller holds its lock, so implementations must not call back into
// the controller synchronously.
type Renderer interface {
	RenderState(state State)
	RenderBusy(action Action, busy bool)
	RenderBanner(b Banner)
	ClearBanner()
	RenderView(v View)

	// RenderTranscript replaces the transcript panel.
	RenderTranscript(segments []transcript.Segment)
	// RenderTranscriptError shows the transcript empty-state with msg.
	RenderTranscriptError(msg string)
	// RenderHighlights marks indices; focus is the index to scroll to, or -1.
	RenderHighlights(indices []int, focus int)

	RenderWelcome(w Welcome)
	RenderTurn(turn ChatTurn)
	RenderTyping(visible bool)
}

// Gateway is the remote transcript service.
type Gateway interface {
	ProcessVideo(ctx context.Context, videoURL string) (*client.ProcessResult, error)
	FetchTranscript(ctx context.Context, videoID string) ([]transcript.Segment, error)
	Search(ctx context.Context, videoID, query string, topK int) ([]client.SearchHit, error)
	Chat(ctx context.Context, videoID, message string) (*client.ChatReply, error)
}

// Playback is the player connection the controller drives.
type Playback interface {
	Attach(ctx context.Context, videoID, videoURL string)
	Detach()
	Seek(seconds float64) bool
}
