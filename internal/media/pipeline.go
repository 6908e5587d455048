package media

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strings"

	"github.com/google/uuid"
	"golang.org/x/sync/errgroup"

	"whatsapp-bridge/internal/domain"
)

var newObjectID = func() string { return uuid.NewString() }

type Downloader interface {
	Fetch(ctx context.Context, item domain.MediaItem) (Media, error)
}

type ImageNormalizer interface {
	Normalize(data []byte, contentType string) ([]byte, string, error)
}

type ObjectUploader interface {
	Upload(ctx context.Context, path string, data []byte, contentType string) error
}

// Pipeline turns inbound attachments into stored object references.
type Pipeline struct {
	fetcher     Downloader
	normalizer  ImageNormalizer
	uploader    ObjectUploader
	logger      *slog.Logger
	concurrency int
	maxItems    int
}

type PipelineOption func(*Pipeline)

func WithConcurrency(n int) PipelineOption {
	return func(p *Pipeline) {
		if n > 0 {
			p.concurrency = n
		}
	}
}

func WithMaxItems(n int) PipelineOption {
	return func(p *Pipeline) {
		if n > 0 {
			p.maxItems = n
		}
	}
}

func NewPipeline(fetcher Downloader, normalizer ImageNormalizer, uploader ObjectUploader, logger *slog.Logger, opts ...PipelineOption) (*Pipeline, error) {
	if fetcher == nil {
		return nil, errors.New("media: fetcher is required")
	}
	if uploader == nil {
		return nil, errors.New("media: uploader is required")
	}
	if logger == nil {
		logger = slog.Default()
	}
	p := &Pipeline{
		fetcher:     fetcher,
		normalizer:  normalizer,
		uploader:    uploader,
		logger:      logger.With(slog.String("service", "media")),
		concurrency: 3,
		maxItems:    MaxItemsPerMessage,
	}
	for _, opt := range opts {
		opt(p)
	}
	return p, nil
}

// Process fetches, normalizes and uploads one attachment and returns its
// storage path. Normalization failures fall back to the original bytes.
func (p *Pipeline) Process(ctx context.Context, ownerKey, draftID string, item domain.MediaItem) (string, error) {
	m, err := p.fetcher.Fetch(ctx, item)
	if err != nil {
		return "", err
	}

	data, contentType := m.Data, m.ContentType
	if p.normalizer != nil {
		out, ct, err := p.normalizer.Normalize(m.Data, m.ContentType)
		if err != nil {
			p.logger.Warn("normalize failed, uploading original",
				slog.String("content_type", m.ContentType),
				slog.Any("error", err),
			)
		} else {
			data, contentType = out, ct
		}
	}

	path := StoragePath(ownerKey, draftID, contentType)
	if err := p.uploader.Upload(ctx, path, data, contentType); err != nil {
		return "", fmt.Errorf("media: upload %s: %w", path, err)
	}
	return path, nil
}

// ProcessBatch processes items concurrently and returns the paths of the
// successful ones in input order. Failed items are logged and skipped.
func (p *Pipeline) ProcessBatch(ctx context.Context, ownerKey, draftID string, items []domain.MediaItem) []string {
	if len(items) > p.maxItems {
		items = items[:p.maxItems]
	}
	paths := make([]string, len(items))

	var g errgroup.Group
	g.SetLimit(p.concurrency)
	for i, item := range items {
		g.Go(func() error {
			path, err := p.Process(ctx, ownerKey, draftID, item)
			if err != nil {
				p.logger.Error("media item failed",
					slog.Int("index", i),
					slog.String("draft_id", draftID),
					slog.Any("error", err),
				)
				return nil
			}
			paths[i] = path
			return nil
		})
	}
	_ = g.Wait()

	out := make([]string, 0, len(paths))
	for _, path := range paths {
		if path != "" {
			out = append(out, path)
		}
	}
	return out
}

// StoragePath builds "<owner>/<draft>/<uuid>.<ext>" for an upload.
func StoragePath(ownerKey, draftID, contentType string) string {
	return fmt.Sprintf("%s/%s/%s.%s", SanitizeOwner(ownerKey), draftID, newObjectID(), extension(contentType))
}

// SanitizeOwner drops characters that do not belong in an object key prefix.
func SanitizeOwner(ownerKey string) string {
	s := strings.NewReplacer("+", "", " ", "").Replace(ownerKey)
	if s == "" {
		return "unknown"
	}
	return s
}

func extension(contentType string) string {
	ct := baseMediaType(contentType)
	if ct == "" {
		ct = "image/jpeg"
	}
	if i := strings.LastIndex(ct, "/"); i >= 0 {
		ct = ct[i+1:]
	}
	if ct == "" {
		return "jpg"
	}
	return ct
}
