package storage

import (
	"context"
	"errors"
)

// ErrNotConfigured is returned by the disabled uploader.
var ErrNotConfigured = errors.New("storage: object store not configured")

// Uploader writes one object under path.
type Uploader interface {
	Upload(ctx context.Context, path string, data []byte, contentType string) error
}

// Disabled is used when no backend has credentials; every upload fails so
// attachments are skipped instead of crashing the request.
type Disabled struct{}

func (Disabled) Upload(context.Context, string, []byte, string) error {
	return ErrNotConfigured
}
