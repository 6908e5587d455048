package media

import (
	"errors"
	"fmt"
	"io"
)

const (
	// MaxMediaBytes is the largest attachment the bridge will accept.
	MaxMediaBytes int64 = 10 * 1024 * 1024
	// MaxItemsPerMessage caps how many attachments of one message are processed.
	MaxItemsPerMessage = 10
)

var (
	// ErrNotConfigured indicates channel credentials are missing.
	ErrNotConfigured = errors.New("media: channel credentials not configured")
	// ErrNotImage indicates the attachment is not an image.
	ErrNotImage = errors.New("media: attachment is not an image")
	// ErrTooLarge indicates the attachment exceeds the byte ceiling.
	ErrTooLarge = errors.New("media: attachment too large")
	// ErrTooManyPixels indicates the image canvas exceeds the decode ceiling.
	ErrTooManyPixels = errors.New("media: image dimensions too large")
)

// StatusError reports a non-2xx response from the media endpoint.
type StatusError struct {
	StatusCode int
	URL        string
	Body       string
}

func (e *StatusError) Error() string {
	return fmt.Sprintf("media: unexpected status %d from %s: %s", e.StatusCode, e.URL, e.Body)
}

func (e *StatusError) HTTPStatusCode() int {
	return e.StatusCode
}

// ReadAllWithLimit reads from reader and rejects payloads larger than maxBytes.
func ReadAllWithLimit(reader io.Reader, maxBytes int64) ([]byte, error) {
	if reader == nil {
		return nil, errors.New("media: reader is required")
	}
	if maxBytes <= 0 {
		return nil, errors.New("media: max bytes must be greater than 0")
	}
	data, err := io.ReadAll(&io.LimitedReader{R: reader, N: maxBytes + 1})
	if err != nil {
		return nil, err
	}
	if int64(len(data)) > maxBytes {
		return nil, fmt.Errorf("%w: max %d bytes", ErrTooLarge, maxBytes)
	}
	return data, nil
}
