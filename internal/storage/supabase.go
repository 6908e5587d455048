package storage

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"
)

// HTTPStatusError reports a rejected upload.
type HTTPStatusError struct {
	StatusCode int
	Body       string
}

func (e *HTTPStatusError) Error() string {
	return fmt.Sprintf("storage: upload failed with status %d: %s", e.StatusCode, e.Body)
}

func (e *HTTPStatusError) HTTPStatusCode() int {
	return e.StatusCode
}

// SupabaseClient uploads objects through the Supabase Storage REST API.
type SupabaseClient struct {
	baseURL    string
	serviceKey string
	bucket     string
	httpClient *http.Client
}

type SupabaseOption func(*SupabaseClient)

func WithHTTPClient(c *http.Client) SupabaseOption {
	return func(s *SupabaseClient) {
		if c != nil {
			s.httpClient = c
		}
	}
}

func NewSupabaseClient(baseURL, serviceKey, bucket string, opts ...SupabaseOption) (*SupabaseClient, error) {
	if strings.TrimSpace(baseURL) == "" {
		return nil, errors.New("storage: supabase url is required")
	}
	if strings.TrimSpace(serviceKey) == "" {
		return nil, errors.New("storage: supabase service key is required")
	}
	if strings.TrimSpace(bucket) == "" {
		return nil, errors.New("storage: bucket is required")
	}
	s := &SupabaseClient{
		baseURL:    strings.TrimRight(baseURL, "/"),
		serviceKey: serviceKey,
		bucket:     bucket,
		httpClient: &http.Client{Timeout: 30 * time.Second},
	}
	for _, opt := range opts {
		opt(s)
	}
	return s, nil
}

func (s *SupabaseClient) Upload(ctx context.Context, path string, data []byte, contentType string) error {
	if contentType == "" {
		contentType = "application/octet-stream"
	}
	url := fmt.Sprintf("%s/storage/v1/object/%s/%s", s.baseURL, s.bucket, strings.TrimLeft(path, "/"))
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, url, bytes.NewReader(data))
	if err != nil {
		return fmt.Errorf("storage: create request: %w", err)
	}
	req.Header.Set("Content-Type", contentType)
	req.Header.Set("Authorization", "Bearer "+s.serviceKey)
	req.Header.Set("apikey", s.serviceKey)

	res, err := s.httpClient.Do(req)
	if err != nil {
		return fmt.Errorf("storage: request failed: %w", err)
	}
	defer func() { _ = res.Body.Close() }()

	if res.StatusCode < 200 || res.StatusCode >= 300 {
		buf, _ := io.ReadAll(io.LimitReader(res.Body, 4096))
		return &HTTPStatusError{StatusCode: res.StatusCode, Body: string(buf)}
	}
	return nil
}
