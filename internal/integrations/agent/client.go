package agent

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net"
	"net/http"
	"strings"
	"time"

	"whatsapp-bridge/internal/domain"
)

const DefaultTimeout = 120 * time.Second

var (
	// ErrNotConfigured means no agent base URL was provided.
	ErrNotConfigured = errors.New("agent: backend url not configured")
	// ErrTimeout means the agent did not answer within the client timeout.
	ErrTimeout = errors.New("agent: request timed out")
	// ErrUnsuccessful means the agent answered with success=false.
	ErrUnsuccessful = errors.New("agent: run reported success=false")
	// ErrEmptyResponse means the agent answered with an empty response text.
	ErrEmptyResponse = errors.New("agent: empty response")
)

// RunRequest is one conversational turn handed to the agent.
type RunRequest struct {
	UserID         string
	Message        string
	History        []domain.Turn
	MediaPaths     []string
	MediaType      string
	DraftListingID string
}

// RunResponse is the agent's answer.
type RunResponse struct {
	Success  bool   `json:"success"`
	Response string `json:"response"`
	Intent   string `json:"intent,omitempty"`
}

// runPayload is the wire shape of POST /agent/run. Optional fields are sent
// as null when unset.
type runPayload struct {
	UserID              string        `json:"user_id"`
	Message             string        `json:"message"`
	ConversationHistory []domain.Turn `json:"conversation_history"`
	MediaPaths          []string      `json:"media_paths"`
	MediaType           *string       `json:"media_type"`
	DraftListingID      *string       `json:"draft_listing_id"`
}

// HTTPStatusError captures non-2xx upstream responses with status-aware context.
type HTTPStatusError struct {
	StatusCode int
	URL        string
	Body       string
}

func (e *HTTPStatusError) Error() string {
	return fmt.Sprintf("agent: unexpected status %d from %s: %s", e.StatusCode, e.URL, e.Body)
}

func (e *HTTPStatusError) HTTPStatusCode() int {
	return e.StatusCode
}

// Client calls the downstream agent service.
type Client struct {
	baseURL    string
	httpClient *http.Client
}

type Option func(*Client)

func WithHTTPClient(httpClient *http.Client) Option {
	return func(c *Client) {
		c.httpClient = httpClient
	}
}

func WithTimeout(d time.Duration) Option {
	return func(c *Client) {
		if d > 0 {
			c.httpClient = &http.Client{Timeout: d}
		}
	}
}

// NewClient creates a Client for baseURL. An empty baseURL is accepted; Run
// then fails with ErrNotConfigured so the caller can answer the user.
func NewClient(baseURL string, opts ...Option) *Client {
	c := &Client{
		baseURL:    strings.TrimRight(strings.TrimSpace(baseURL), "/"),
		httpClient: &http.Client{Timeout: DefaultTimeout},
	}
	for _, opt := range opts {
		opt(c)
	}
	return c
}

func (c *Client) BaseURL() string {
	return c.baseURL
}

func (c *Client) resolvedHTTPClient() *http.Client {
	if c.httpClient != nil {
		return c.httpClient
	}
	return &http.Client{Timeout: DefaultTimeout}
}

func runURL(baseURL string) string {
	return strings.TrimRight(baseURL, "/") + "/agent/run"
}

func optional(s string) *string {
	if s == "" {
		return nil
	}
	return &s
}

func (c *Client) Run(ctx context.Context, in RunRequest) (RunResponse, error) {
	if c.baseURL == "" {
		return RunResponse{}, ErrNotConfigured
	}

	history := in.History
	if history == nil {
		history = []domain.Turn{}
	}
	var paths []string
	if len(in.MediaPaths) > 0 {
		paths = in.MediaPaths
	}
	body, err := json.Marshal(runPayload{
		UserID:              in.UserID,
		Message:             in.Message,
		ConversationHistory: history,
		MediaPaths:          paths,
		MediaType:           optional(in.MediaType),
		DraftListingID:      optional(in.DraftListingID),
	})
	if err != nil {
		return RunResponse{}, fmt.Errorf("agent: marshal request: %w", err)
	}

	url := runURL(c.baseURL)
	req, reqErr := http.NewRequestWithContext(ctx, http.MethodPost, url, bytes.NewReader(body))
	if reqErr != nil {
		return RunResponse{}, fmt.Errorf("agent: create request: %w", reqErr)
	}
	req.Header.Set("Content-Type", "application/json")

	raw, err := c.doJSONRequest(req, url)
	if err != nil {
		if isTimeout(err) {
			return RunResponse{}, fmt.Errorf("%w: %v", ErrTimeout, err)
		}
		return RunResponse{}, fmt.Errorf("agent: request failed: %w", err)
	}

	var out RunResponse
	if decErr := json.Unmarshal(raw, &out); decErr != nil {
		return RunResponse{}, fmt.Errorf("agent: decode response: %w", decErr)
	}
	if !out.Success {
		return out, ErrUnsuccessful
	}
	if strings.TrimSpace(out.Response) == "" {
		return out, ErrEmptyResponse
	}
	return out, nil
}

func (c *Client) doJSONRequest(req *http.Request, url string) ([]byte, error) {
	res, doErr := c.resolvedHTTPClient().Do(req)
	if doErr != nil {
		return nil, doErr
	}
	defer func() { _ = res.Body.Close() }()

	if res.StatusCode < 200 || res.StatusCode >= 300 {
		buf, _ := io.ReadAll(io.LimitReader(res.Body, 4096))
		return nil, &HTTPStatusError{
			StatusCode: res.StatusCode,
			URL:        url,
			Body:       string(buf),
		}
	}

	buf, err := io.ReadAll(io.LimitReader(res.Body, 4<<20))
	if err != nil {
		return nil, fmt.Errorf("read response body: %w", err)
	}
	return buf, nil
}

func isTimeout(err error) bool {
	if errors.Is(err, context.DeadlineExceeded) {
		return true
	}
	var ne net.Error
	return errors.As(err, &ne) && ne.Timeout()
}
