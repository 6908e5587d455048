package media

import (
	"context"
	"errors"
	"fmt"
	"io"
	"mime"
	"net/http"
	"strings"
	"time"

	"whatsapp-bridge/internal/domain"
)

// Media is a downloaded attachment.
type Media struct {
	Data        []byte
	ContentType string
}

// Credentials authenticate media downloads against the channel.
type Credentials struct {
	Username string
	Password string
}

func (c Credentials) configured() bool {
	return c.Username != "" && c.Password != ""
}

// FallbackResolver looks up a fresh download URL for a media item whose
// original URL has gone stale.
type FallbackResolver interface {
	ResolveMediaURL(ctx context.Context, messageID, mediaID string) (string, error)
}

// Fetcher downloads inbound attachments from the channel's media endpoint.
type Fetcher struct {
	creds      Credentials
	resolver   FallbackResolver
	httpClient *http.Client
	maxBytes   int64
}

type FetcherOption func(*Fetcher)

func WithFetchHTTPClient(c *http.Client) FetcherOption {
	return func(f *Fetcher) {
		if c != nil {
			f.httpClient = c
		}
	}
}

func WithMaxBytes(n int64) FetcherOption {
	return func(f *Fetcher) {
		if n > 0 {
			f.maxBytes = n
		}
	}
}

// NewFetcher builds a Fetcher. resolver may be nil, which disables the
// fallback lookup.
func NewFetcher(creds Credentials, resolver FallbackResolver, opts ...FetcherOption) *Fetcher {
	f := &Fetcher{
		creds:      creds,
		resolver:   resolver,
		httpClient: &http.Client{Timeout: 30 * time.Second},
		maxBytes:   MaxMediaBytes,
	}
	for _, opt := range opts {
		opt(f)
	}
	return f
}

// Fetch downloads item. A 404 on the original URL triggers one retry through
// the fallback resolver when the item carries message and media ids.
func (f *Fetcher) Fetch(ctx context.Context, item domain.MediaItem) (Media, error) {
	if strings.TrimSpace(item.SourceURL) == "" {
		return Media{}, errors.New("media: source url is required")
	}
	if !f.creds.configured() {
		return Media{}, ErrNotConfigured
	}

	url := item.SourceURL
	res, err := f.get(ctx, url)
	if err != nil {
		return Media{}, err
	}

	if res.StatusCode == http.StatusNotFound && f.resolver != nil && item.SourceMessageID != "" && item.SourceMediaID != "" {
		_ = res.Body.Close()
		url, err = f.resolver.ResolveMediaURL(ctx, item.SourceMessageID, item.SourceMediaID)
		if err != nil {
			return Media{}, fmt.Errorf("media: resolve fallback url: %w", err)
		}
		res, err = f.get(ctx, url)
		if err != nil {
			return Media{}, err
		}
	}
	defer func() { _ = res.Body.Close() }()

	if res.StatusCode < 200 || res.StatusCode >= 300 {
		buf, _ := io.ReadAll(io.LimitReader(res.Body, 512))
		return Media{}, &StatusError{StatusCode: res.StatusCode, URL: url, Body: string(buf)}
	}

	contentType := baseMediaType(res.Header.Get("Content-Type"))
	if contentType == "" {
		contentType = baseMediaType(item.ContentType)
	}
	if !strings.HasPrefix(contentType, "image/") {
		return Media{}, fmt.Errorf("%w: %q", ErrNotImage, contentType)
	}

	data, err := ReadAllWithLimit(res.Body, f.maxBytes)
	if err != nil {
		return Media{}, fmt.Errorf("media: read body: %w", err)
	}
	return Media{Data: data, ContentType: contentType}, nil
}

func (f *Fetcher) get(ctx context.Context, url string) (*http.Response, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, url, nil)
	if err != nil {
		return nil, fmt.Errorf("media: create request: %w", err)
	}
	req.SetBasicAuth(f.creds.Username, f.creds.Password)
	res, err := f.httpClient.Do(req)
	if err != nil {
		return nil, fmt.Errorf("media: request failed: %w", err)
	}
	return res, nil
}

func baseMediaType(v string) string {
	v = strings.TrimSpace(v)
	if v == "" {
		return ""
	}
	mt, _, err := mime.ParseMediaType(v)
	if err != nil {
		return strings.ToLower(v)
	}
	return mt
}
