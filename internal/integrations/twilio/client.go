package twilio

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"
	"time"
)

const (
	DefaultBaseURL = "https://api.twilio.com"
	apiVersion     = "2010-04-01"
	channelPrefix  = "whatsapp:"
)

// ErrNotConfigured means the account sid or auth token is missing.
var ErrNotConfigured = errors.New("twilio: credentials not configured")

// HTTPStatusError captures non-2xx responses from the Twilio REST API.
type HTTPStatusError struct {
	StatusCode int
	URL        string
	Body       string
}

func (e *HTTPStatusError) Error() string {
	return fmt.Sprintf("twilio: unexpected status %d from %s: %s", e.StatusCode, e.URL, e.Body)
}

func (e *HTTPStatusError) HTTPStatusCode() int {
	return e.StatusCode
}

type mediaResource struct {
	URI string `json:"uri"`
}

type messageResource struct {
	SID    string `json:"sid"`
	Status string `json:"status"`
}

// Client talks to the Twilio Messages API for one WhatsApp sender number.
type Client struct {
	baseURL    string
	accountSID string
	authToken  string
	fromNumber string
	httpClient *http.Client
}

type Option func(*Client)

func WithBaseURL(baseURL string) Option {
	return func(c *Client) {
		if s := strings.TrimSpace(baseURL); s != "" {
			c.baseURL = strings.TrimRight(s, "/")
		}
	}
}

func WithHTTPClient(httpClient *http.Client) Option {
	return func(c *Client) {
		c.httpClient = httpClient
	}
}

// NewClient never fails; a client without credentials reports
// Configured() == false and every call returns ErrNotConfigured.
func NewClient(accountSID, authToken, fromNumber string, opts ...Option) *Client {
	c := &Client{
		baseURL:    DefaultBaseURL,
		accountSID: strings.TrimSpace(accountSID),
		authToken:  strings.TrimSpace(authToken),
		fromNumber: strings.TrimPrefix(strings.TrimSpace(fromNumber), channelPrefix),
		httpClient: &http.Client{Timeout: 30 * time.Second},
	}
	for _, opt := range opts {
		opt(c)
	}
	return c
}

func (c *Client) Configured() bool {
	return c.accountSID != "" && c.authToken != ""
}

// Credentials returns the basic-auth pair used for media downloads.
func (c *Client) Credentials() (string, string) {
	return c.accountSID, c.authToken
}

func (c *Client) accountURL(parts ...string) string {
	escaped := make([]string, 0, len(parts))
	for _, p := range parts {
		escaped = append(escaped, url.PathEscape(p))
	}
	return fmt.Sprintf("%s/%s/Accounts/%s/%s", c.baseURL, apiVersion, url.PathEscape(c.accountSID), strings.Join(escaped, "/"))
}

// ResolveMediaURL looks up the media resource of a message and returns its
// download URL.
func (c *Client) ResolveMediaURL(ctx context.Context, messageSID, mediaSID string) (string, error) {
	if !c.Configured() {
		return "", ErrNotConfigured
	}
	if messageSID == "" || mediaSID == "" {
		return "", errors.New("twilio: message sid and media sid are required")
	}
	endpoint := c.accountURL("Messages", messageSID, "Media", mediaSID+".json")
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, endpoint, nil)
	if err != nil {
		return "", fmt.Errorf("twilio: create request: %w", err)
	}

	raw, err := c.do(req, endpoint)
	if err != nil {
		return "", fmt.Errorf("twilio: fetch media resource: %w", err)
	}
	var m mediaResource
	if err := json.Unmarshal(raw, &m); err != nil {
		return "", fmt.Errorf("twilio: decode media resource: %w", err)
	}
	if m.URI == "" {
		return "", errors.New("twilio: media resource has no uri")
	}
	return c.baseURL + strings.TrimSuffix(m.URI, ".json"), nil
}

// SendMessage posts an outbound WhatsApp message to the user and returns the
// message sid.
func (c *Client) SendMessage(ctx context.Context, to, body string, mediaURLs []string) (string, error) {
	if !c.Configured() {
		return "", ErrNotConfigured
	}
	form := url.Values{}
	form.Set("From", channelPrefix+c.fromNumber)
	form.Set("To", channelPrefix+strings.TrimPrefix(to, channelPrefix))
	form.Set("Body", body)
	for _, u := range mediaURLs {
		form.Add("MediaUrl", u)
	}

	endpoint := c.accountURL("Messages.json")
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, endpoint, strings.NewReader(form.Encode()))
	if err != nil {
		return "", fmt.Errorf("twilio: create request: %w", err)
	}
	req.Header.Set("Content-Type", "application/x-www-form-urlencoded")

	raw, err := c.do(req, endpoint)
	if err != nil {
		return "", fmt.Errorf("twilio: send message: %w", err)
	}
	var m messageResource
	if err := json.Unmarshal(raw, &m); err != nil {
		return "", fmt.Errorf("twilio: decode message resource: %w", err)
	}
	return m.SID, nil
}

func (c *Client) do(req *http.Request, endpoint string) ([]byte, error) {
	req.SetBasicAuth(c.accountSID, c.authToken)
	req.Header.Set("Accept", "application/json")

	httpClient := c.httpClient
	if httpClient == nil {
		httpClient = &http.Client{Timeout: 30 * time.Second}
	}
	res, err := httpClient.Do(req)
	if err != nil {
		return nil, err
	}
	defer func() { _ = res.Body.Close() }()

	if res.StatusCode < 200 || res.StatusCode >= 300 {
		buf, _ := io.ReadAll(io.LimitReader(res.Body, 4096))
		return nil, &HTTPStatusError{StatusCode: res.StatusCode, URL: endpoint, Body: string(buf)}
	}
	buf, err := io.ReadAll(io.LimitReader(res.Body, 1<<20))
	if err != nil {
		return nil, fmt.Errorf("read response body: %w", err)
	}
	return buf, nil
}
