// Package transcribe sends audio to a remote Whisper endpoint and merges the
// per-chunk results into a single transcript.
package transcribe

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"mime/multipart"
	"net/http"
	"strings"
	"time"

	"github.com/torarnehave1/aichat-vegvisr-sub000/internal/lang"
)

// DefaultModel is the Whisper variant requested from the endpoint.
const DefaultModel = "whisper-large-v3"

// defaultHTTPTimeout bounds a single transcription request. Large chunks on a
// cold endpoint can take minutes.
const defaultHTTPTimeout = 5 * time.Minute

// Result is the transcript of one transcription request.
type Result struct {
	// Text is the transcript.
	Text string
	// Language is the ISO 639-1 code the endpoint detected, "" when it did
	// not report one.
	Language string
}

// Transcriber sends one audio payload for transcription.
type Transcriber interface {
	Transcribe(ctx context.Context, data []byte, fileName, language string) (Result, error)
}

// httpDoer abstracts the HTTP client for testing.
type httpDoer interface {
	Do(req *http.Request) (*http.Response, error)
}

// Compile-time interface compliance check.
var _ Transcriber = (*Client)(nil)

// Client talks to the transcription endpoint over multipart HTTP. The caller
// identity token travels as a form field on every request, which is why
// construction refuses an empty one.
type Client struct {
	endpoint   string
	model      string
	token      string
	httpClient httpDoer
}

// ClientOption configures a Client.
type ClientOption func(*Client)

// WithModel overrides the model requested from the endpoint.
func WithModel(model string) ClientOption {
	return func(c *Client) {
		if model != "" {
			c.model = model
		}
	}
}

// WithHTTPClient sets a custom HTTP client (e.g., for testing).
func WithHTTPClient(client httpDoer) ClientOption {
	return func(c *Client) {
		if client != nil {
			c.httpClient = client
		}
	}
}

// WithTimeout sets the per-request timeout on the default HTTP client. It has
// no effect after WithHTTPClient.
func WithTimeout(timeout time.Duration) ClientOption {
	return func(c *Client) {
		if timeout <= 0 {
			return
		}
		if hc, ok := c.httpClient.(*http.Client); ok {
			hc.Timeout = timeout
		}
	}
}

// NewClient creates a Client for the given endpoint.
// Returns ErrIdentityMissing when token is empty.
func NewClient(endpoint, token string, opts ...ClientOption) (*Client, error) {
	if endpoint == "" {
		return nil, fmt.Errorf("%w: endpoint is empty", ErrTranscription)
	}
	if token == "" {
		return nil, ErrIdentityMissing
	}

	c := &Client{
		endpoint:   endpoint,
		model:      DefaultModel,
		token:      token,
		httpClient: &http.Client{Timeout: defaultHTTPTimeout},
	}
	for _, opt := range opts {
		opt(c)
	}
	return c, nil
}

// Transcribe posts one audio payload and returns its transcript. The language
// argument is an optional hint; regional variants are reduced to their base
// ISO 639-1 code before sending, and an empty hint omits the field so the
// endpoint auto-detects.
func (c *Client) Transcribe(ctx context.Context, data []byte, fileName, language string) (Result, error) {
	// Build multipart form
	var body bytes.Buffer
	writer := multipart.NewWriter(&body)

	part, err := writer.CreateFormFile("file", fileName)
	if err != nil {
		return Result{}, fmt.Errorf("failed to create form file: %w", err)
	}
	if _, err := part.Write(data); err != nil {
		return Result{}, fmt.Errorf("failed to write form file: %w", err)
	}

	if err := writer.WriteField("model", c.model); err != nil {
		return Result{}, fmt.Errorf("failed to write model field: %w", err)
	}
	if err := writer.WriteField("token", c.token); err != nil {
		return Result{}, fmt.Errorf("failed to write token field: %w", err)
	}
	if code := lang.BaseCode(language); code != "" {
		if err := writer.WriteField("language", code); err != nil {
			return Result{}, fmt.Errorf("failed to write language field: %w", err)
		}
	}

	if err := writer.Close(); err != nil {
		return Result{}, fmt.Errorf("failed to close multipart writer: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.endpoint, &body)
	if err != nil {
		return Result{}, fmt.Errorf("failed to create request: %w", err)
	}
	req.Header.Set("Content-Type", writer.FormDataContentType())

	resp, err := c.httpClient.Do(req)
	if err != nil {
		switch {
		case errors.Is(err, context.Canceled):
			// Preserve cancellation so callers can errors.Is against it.
			return Result{}, err
		case errors.Is(err, context.DeadlineExceeded):
			return Result{}, fmt.Errorf("%w: %v", ErrTimeout, err)
		default:
			return Result{}, fmt.Errorf("%w: %v", ErrTranscription, err)
		}
	}
	defer func() { _ = resp.Body.Close() }()

	respBody, err := io.ReadAll(resp.Body)
	if err != nil {
		return Result{}, fmt.Errorf("failed to read response: %w", err)
	}

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		return Result{}, newRequestError(resp.StatusCode, respBody)
	}

	return parseResult(respBody), nil
}

// parseResult interprets a success body. The endpoint normally replies with a
// JSON object carrying text and language, but some upstream Whisper hosts
// return the transcript as plain text; in that case the body itself is the
// transcript.
func parseResult(body []byte) Result {
	var resp struct {
		Text     string `json:"text"`
		Language string `json:"language"`
	}
	if err := json.Unmarshal(body, &resp); err != nil {
		return Result{Text: strings.TrimSpace(string(body))}
	}
	return Result{Text: resp.Text, Language: resp.Language}
}

// newRequestError builds a RequestError from a non-2xx response. The detail
// comes from the body's "error" field, then "message", then the raw body.
func newRequestError(statusCode int, body []byte) error {
	var errResp struct {
		Error   string `json:"error"`
		Message string `json:"message"`
	}

	detail := strings.TrimSpace(string(body))
	if err := json.Unmarshal(body, &errResp); err == nil {
		switch {
		case errResp.Error != "":
			detail = errResp.Error
		case errResp.Message != "":
			detail = errResp.Message
		}
	}
	if detail == "" {
		detail = http.StatusText(statusCode)
	}

	return &RequestError{StatusCode: statusCode, Detail: detail}
}

// isRetryableError reports whether err is transient enough to retry.
// Rejections like 400 or 401 will not improve on a second attempt.
func isRetryableError(err error) bool {
	if errors.Is(err, ErrTimeout) {
		return true
	}

	var reqErr *RequestError
	if errors.As(err, &reqErr) {
		switch {
		case reqErr.StatusCode == http.StatusTooManyRequests:
			return true
		case reqErr.StatusCode == http.StatusRequestTimeout:
			return true
		case reqErr.StatusCode >= 500:
			return true
		}
	}
	return false
}
