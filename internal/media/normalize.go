package media

import (
	"bytes"
	"errors"
	"fmt"
	"image"
	_ "image/gif"
	"image/jpeg"
	_ "image/png"

	"golang.org/x/image/draw"
	_ "golang.org/x/image/webp"
)

const (
	defaultMaxSide      = 1600
	defaultTargetBytes  = 900_000
	defaultStartQuality = 85
	defaultMinQuality   = 50
	defaultMaxPixels    = 40_000_000
	qualityStep         = 10
)

// Normalizer shrinks images to a channel-friendly JPEG.
type Normalizer struct {
	MaxSide      int
	TargetBytes  int
	StartQuality int
	MinQuality   int
	// MaxPixels bounds the declared canvas checked before any pixel is decoded.
	MaxPixels int64
}

func NewNormalizer() *Normalizer {
	return &Normalizer{
		MaxSide:      defaultMaxSide,
		TargetBytes:  defaultTargetBytes,
		StartQuality: defaultStartQuality,
		MinQuality:   defaultMinQuality,
		MaxPixels:    defaultMaxPixels,
	}
}

// Normalize decodes data, flattens it to opaque RGB, downscales it when the
// longer edge exceeds MaxSide, and re-encodes it as JPEG with decreasing
// quality until it fits TargetBytes or MinQuality is reached. Callers keep
// the original bytes when an error is returned.
func (n *Normalizer) Normalize(data []byte, contentType string) ([]byte, string, error) {
	if len(data) == 0 {
		return nil, "", errors.New("media: empty image")
	}
	cfg, _, err := image.DecodeConfig(bytes.NewReader(data))
	if err != nil {
		return nil, "", fmt.Errorf("media: decode %s: %w", contentType, err)
	}
	if n.MaxPixels > 0 && int64(cfg.Width)*int64(cfg.Height) > n.MaxPixels {
		return nil, "", fmt.Errorf("%w: %dx%d", ErrTooManyPixels, cfg.Width, cfg.Height)
	}

	src, _, err := image.Decode(bytes.NewReader(data))
	if err != nil {
		return nil, "", fmt.Errorf("media: decode %s: %w", contentType, err)
	}

	w, h := scaledSize(src.Bounds().Dx(), src.Bounds().Dy(), n.MaxSide)
	dst := image.NewRGBA(image.Rect(0, 0, w, h))
	draw.Draw(dst, dst.Bounds(), image.White, image.Point{}, draw.Src)
	if w == src.Bounds().Dx() && h == src.Bounds().Dy() {
		draw.Draw(dst, dst.Bounds(), src, src.Bounds().Min, draw.Over)
	} else {
		draw.CatmullRom.Scale(dst, dst.Bounds(), src, src.Bounds(), draw.Over, nil)
	}

	quality := n.StartQuality
	var best []byte
	for {
		var buf bytes.Buffer
		if err := jpeg.Encode(&buf, dst, &jpeg.Options{Quality: quality}); err != nil {
			return nil, "", fmt.Errorf("media: encode jpeg q=%d: %w", quality, err)
		}
		best = buf.Bytes()
		if len(best) <= n.TargetBytes || quality <= n.MinQuality {
			break
		}
		quality -= qualityStep
		if quality < n.MinQuality {
			quality = n.MinQuality
		}
	}
	return best, "image/jpeg", nil
}

func scaledSize(w, h, maxSide int) (int, int) {
	longer := max(w, h)
	if maxSide <= 0 || longer <= maxSide {
		return w, h
	}
	ratio := float64(maxSide) / float64(longer)
	return max(1, int(float64(w)*ratio)), max(1, int(float64(h)*ratio))
}
