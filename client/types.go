package client

import (
	"github.com/otherjamesbrown/vidtwin-cli/pkg/timecode"
	"github.com/otherjamesbrown/vidtwin-cli/pkg/transcript"
)

// Operation names used for metrics, spans, and error context.
const (
	OpProcessVideo = "process_video"
	OpTranscript   = "get_transcript"
	OpSearch       = "search_transcript"
	OpChat         = "chat"
	OpHealth       = "health"
)

// Service endpoints.
const (
	PathProcessVideo = "/api/process-video"
	PathTranscript   = "/api/get-transcript"
	PathSearch       = "/api/search-transcript"
	PathChat         = "/api/chat"
	PathHealth       = "/health"
)

// ProcessResult is the normalized outcome of processing a video.
type ProcessResult struct {
	VideoID    string `json:"video_id" yaml:"video_id"`
	ChunkCount int    `json:"chunks_count" yaml:"chunks_count"`
	VideoURL   string `json:"video_url" yaml:"video_url"`
	// Message is the service's status text, e.g. "Video already processed".
	Message string `json:"message,omitempty" yaml:"message,omitempty"`
}

// SearchHit is one ranked search result. Hits keep the service's order.
type SearchHit struct {
	StartSeconds float64 `json:"start" yaml:"start"`
	Duration     float64 `json:"duration,omitempty" yaml:"duration,omitempty"`
	Text         string  `json:"text" yaml:"text"`
	Similarity   float64 `json:"similarity,omitempty" yaml:"similarity,omitempty"`
}

// Timestamp returns the formatted start time of the hit.
func (h SearchHit) Timestamp() string {
	return timecode.Format(h.StartSeconds)
}

// ChatSource is a transcript excerpt cited by a chat answer.
type ChatSource struct {
	StartSeconds  float64 `json:"timestamp" yaml:"timestamp"`
	FormattedTime string  `json:"formatted_time" yaml:"formatted_time"`
	Text          string  `json:"text" yaml:"text"`
	Similarity    float64 `json:"similarity,omitempty" yaml:"similarity,omitempty"`
}

// ChatReply is the assistant's answer to one chat message.
type ChatReply struct {
	Response string       `json:"response" yaml:"response"`
	Sources  []ChatSource `json:"sources" yaml:"sources"`
}

// HealthStatus is the service's health report.
type HealthStatus struct {
	Status  string `json:"status" yaml:"status"`
	Message string `json:"message,omitempty" yaml:"message,omitempty"`
}

// Healthy reports whether the service described itself as healthy.
func (h HealthStatus) Healthy() bool {
	return h.Status == "healthy" || h.Status == "ok"
}

// Wire shapes.

type processRequest struct {
	VideoURL string `json:"video_url"`
}

type videoInfo struct {
	VideoID  string `json:"video_id,omitempty"`
	VideoURL string `json:"video_url"`
}

type processResponse struct {
	VideoID     string    `json:"video_id"`
	ChunksCount int       `json:"chunks_count"`
	VideoInfo   videoInfo `json:"video_info"`
	Message     string    `json:"message"`
}

type videoRequest struct {
	VideoID string `json:"video_id"`
}

type transcriptResponse struct {
	Transcript []transcript.Segment `json:"transcript"`
}

type searchRequest struct {
	VideoID string `json:"video_id"`
	Query   string `json:"query"`
	TopK    int    `json:"top_k"`
}

type searchResponse struct {
	Results []SearchHit `json:"results"`
}

type chatRequest struct {
	VideoID string `json:"video_id"`
	Message string `json:"message"`
}

type errorResponse struct {
	Error   string `json:"error"`
	Details string `json:"details"`
}
