// Package client provides the HTTP client for the vidtwin transcript service.
// It handles request construction, error classification, and instrumentation
// for the process, transcript, search, chat, and health operations.
package client

import (
	"bytes"
	"context"
	"crypto/tls"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/google/uuid"

	"github.com/otherjamesbrown/vidtwin-cli/config"
	vterrors "github.com/otherjamesbrown/vidtwin-cli/pkg/errors"
	"github.com/otherjamesbrown/vidtwin-cli/pkg/buildinfo"
	"github.com/otherjamesbrown/vidtwin-cli/pkg/logging"
	"github.com/otherjamesbrown/vidtwin-cli/pkg/observability"
	"github.com/otherjamesbrown/vidtwin-cli/pkg/transcript"
)

// Default client settings.
const (
	DefaultTimeout = config.DefaultTimeout

	// MaxResponseBytes caps how much of a response body is read.
	MaxResponseBytes = 32 << 20

	// RequestIDHeader carries the per-request correlation id.
	RequestIDHeader = "X-Request-ID"
)

// ClientOptions configures the Client behavior.
type ClientOptions struct {
	// Timeout bounds each request end to end.
	Timeout time.Duration

	// Insecure disables server certificate verification.
	Insecure bool

	// Debug enables verbose request logging.
	Debug bool

	// TLSConfig is the TLS configuration for https connections.
	TLSConfig *tls.Config

	// HTTPClient replaces the default transport when set.
	HTTPClient *http.Client

	// Logger receives request logs. Defaults to a no-op logger.
	Logger logging.Logger

	// Metrics records request counts and latency. Optional.
	Metrics *observability.Metrics

	// Tracer creates a span per request. Defaults to the global provider.
	Tracer *observability.Tracer
}

// DefaultOptions returns ClientOptions with default values.
func DefaultOptions() *ClientOptions {
	return &ClientOptions{
		Timeout: DefaultTimeout,
	}
}

// Client talks to the transcript service over HTTP with JSON bodies.
// Every call returns exactly one of a value or an error; nothing is retried.
type Client struct {
	baseURL *url.URL
	http    *http.Client
	options *ClientOptions
	logger  logging.Logger
	metrics *observability.Metrics
	tracer  *observability.Tracer
}

// NewClient creates a Client for the service at baseURL.
func NewClient(baseURL string, opts *ClientOptions) (*Client, error) {
	if opts == nil {
		opts = DefaultOptions()
	}

	u, err := url.Parse(strings.TrimRight(baseURL, "/"))
	if err != nil || (u.Scheme != "http" && u.Scheme != "https") || u.Host == "" {
		return nil, fmt.Errorf("invalid server url %q: %w", baseURL, vterrors.ErrValidation)
	}

	httpClient := opts.HTTPClient
	if httpClient == nil {
		timeout := opts.Timeout
		if timeout <= 0 {
			timeout = DefaultTimeout
		}
		transport := http.DefaultTransport.(*http.Transport).Clone()
		switch {
		case opts.TLSConfig != nil:
			transport.TLSClientConfig = opts.TLSConfig
		case opts.Insecure:
			transport.TLSClientConfig = &tls.Config{
				MinVersion:         tls.VersionTLS12,
				InsecureSkipVerify: true,
			}
		}
		httpClient = &http.Client{Timeout: timeout, Transport: transport}
	}

	logger := opts.Logger
	if logger == nil {
		logger = logging.NewNopLogger()
	}
	tracer := opts.Tracer
	if tracer == nil {
		tracer = observability.NewTracer()
	}

	return &Client{
		baseURL: u,
		http:    httpClient,
		options: opts,
		logger:  logger.With(logging.F("component", "gateway")),
		metrics: opts.Metrics,
		tracer:  tracer,
	}, nil
}

// NewFromConfig creates a Client using CLIConfig.
// This is the canonical way to create a client from CLI commands.
func NewFromConfig(cfg *config.CLIConfig, logger logging.Logger, metrics *observability.Metrics) (*Client, error) {
	opts := DefaultOptions()
	opts.Timeout = cfg.Timeout
	opts.Insecure = cfg.Insecure
	opts.Debug = cfg.Debug
	opts.Logger = logger
	opts.Metrics = metrics

	if !cfg.Insecure && cfg.TLS.Enabled {
		tlsConfig, err := LoadClientTLSConfig(&cfg.TLS)
		if err != nil {
			return nil, fmt.Errorf("loading TLS config: %w", err)
		}
		opts.TLSConfig = tlsConfig
	}

	return NewClient(cfg.ServerURL, opts)
}

// BaseURL returns the configured service URL.
func (c *Client) BaseURL() string {
	return c.baseURL.String()
}

// ProcessVideo asks the service to fetch, chunk, and index a video.
func (c *Client) ProcessVideo(ctx context.Context, videoURL string) (*ProcessResult, error) {
	var resp processResponse
	if err := c.post(ctx, OpProcessVideo, PathProcessVideo, processRequest{VideoURL: videoURL}, &resp); err != nil {
		return nil, err
	}
	if resp.VideoID == "" {
		return nil, vterrors.NewDecodeError(OpProcessVideo, http.StatusOK, fmt.Errorf("response missing video_id"))
	}

	result := &ProcessResult{
		VideoID:    resp.VideoID,
		ChunkCount: resp.ChunksCount,
		VideoURL:   resp.VideoInfo.VideoURL,
		Message:    resp.Message,
	}
	if result.VideoURL == "" {
		result.VideoURL = videoURL
	}
	return result, nil
}

// FetchTranscript returns the timestamped segments of a processed video.
func (c *Client) FetchTranscript(ctx context.Context, videoID string) ([]transcript.Segment, error) {
	var resp transcriptResponse
	if err := c.post(ctx, OpTranscript, PathTranscript, videoRequest{VideoID: videoID}, &resp); err != nil {
		return nil, err
	}
	if resp.Transcript == nil {
		return []transcript.Segment{}, nil
	}
	return resp.Transcript, nil
}

// Search returns up to topK hits for query, in the service's ranking order.
func (c *Client) Search(ctx context.Context, videoID, query string, topK int) ([]SearchHit, error) {
	var resp searchResponse
	req := searchRequest{VideoID: videoID, Query: query, TopK: topK}
	if err := c.post(ctx, OpSearch, PathSearch, req, &resp); err != nil {
		return nil, err
	}
	if resp.Results == nil {
		return []SearchHit{}, nil
	}
	return resp.Results, nil
}

// Chat sends one message about a video and returns the assistant's reply.
func (c *Client) Chat(ctx context.Context, videoID, message string) (*ChatReply, error) {
	var reply ChatReply
	if err := c.post(ctx, OpChat, PathChat, chatRequest{VideoID: videoID, Message: message}, &reply); err != nil {
		return nil, err
	}
	if reply.Sources == nil {
		reply.Sources = []ChatSource{}
	}
	return &reply, nil
}

// Health reports the service's health endpoint.
func (c *Client) Health(ctx context.Context) (*HealthStatus, error) {
	var status HealthStatus
	if err := c.do(ctx, OpHealth, http.MethodGet, PathHealth, nil, &status); err != nil {
		return nil, err
	}
	return &status, nil
}

func (c *Client) post(ctx context.Context, op, path string, body, out interface{}) error {
	return c.do(ctx, op, http.MethodPost, path, body, out)
}

// do performs one request and decodes a 2xx body into out. All failures are
// returned as *vterrors.GatewayError.
func (c *Client) do(ctx context.Context, op, method, path string, body, out interface{}) (err error) {
	requestID := uuid.NewString()
	ctx = logging.WithRequestID(ctx, requestID)
	log := c.logger.WithContext(ctx).With(logging.F("operation", op))

	ctx, span := c.tracer.StartGatewaySpan(ctx, op, requestID)
	defer span.End()
	spanHelper := observability.NewSpanHelper(span)

	start := time.Now()
	status := 0
	defer func() {
		outcome := observability.OutcomeSuccess
		if err != nil {
			outcome = observability.OutcomeError
			spanHelper.SetError(err, string(vterrors.CodeOf(err)))
			log.Debug("request failed",
				logging.F("status", status),
				logging.F("duration", time.Since(start)),
				logging.Err(err),
			)
		} else {
			spanHelper.SetSuccess()
			log.Debug("request completed",
				logging.F("status", status),
				logging.F("duration", time.Since(start)),
			)
		}
		c.metrics.RecordGatewayRequest(op, outcome, time.Since(start).Seconds())
	}()

	var reader io.Reader
	if body != nil {
		payload, merr := json.Marshal(body)
		if merr != nil {
			return &vterrors.GatewayError{Op: op, Code: vterrors.ErrTransport, Cause: fmt.Errorf("encoding request: %w", merr)}
		}
		reader = bytes.NewReader(payload)
	}

	endpoint := c.baseURL.JoinPath(path).String()
	req, rerr := http.NewRequestWithContext(ctx, method, endpoint, reader)
	if rerr != nil {
		return &vterrors.GatewayError{Op: op, Code: vterrors.ErrTransport, Cause: fmt.Errorf("building request: %w", rerr)}
	}
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}
	req.Header.Set("Accept", "application/json")
	req.Header.Set("User-Agent", buildinfo.UserAgent())
	req.Header.Set(RequestIDHeader, requestID)

	if c.options.Debug {
		log.Debug("sending request", logging.F("method", method), logging.F("url", endpoint))
	}

	resp, derr := c.http.Do(req)
	if derr != nil {
		return vterrors.ClassifyTransport(op, derr)
	}
	defer resp.Body.Close()
	status = resp.StatusCode
	spanHelper.SetStatusCode(status)

	data, rerr := io.ReadAll(io.LimitReader(resp.Body, MaxResponseBytes))
	if rerr != nil {
		return vterrors.ClassifyTransport(op, rerr)
	}

	if status < 200 || status > 299 {
		var errBody errorResponse
		// A body that is not JSON still yields a service error keyed on the status.
		_ = json.Unmarshal(data, &errBody)
		return vterrors.NewServiceError(op, status, errBody.Error, errBody.Details)
	}

	if out == nil {
		return nil
	}
	if uerr := json.Unmarshal(data, out); uerr != nil {
		return vterrors.NewDecodeError(op, status, uerr)
	}
	return nil
}
