package imagegen

import (
	"context"
	"crypto/sha256"
	"encoding/hex"
	"fmt"
	"image"
	"time"

	// Registered decoders for DecodeConfig.
	_ "image/gif"
	_ "image/jpeg"
	_ "image/png"

	"github.com/patrickmn/go-cache"
	_ "golang.org/x/image/bmp"
	_ "golang.org/x/image/webp"
)

// Dimensions are the pixel size and detected format of a reference image.
type Dimensions struct {
	Width  int
	Height int
	Format string
}

// Probe detects the pixel dimensions of a reference image.
type Probe interface {
	Dimensions(ctx context.Context, ref ReferenceImage) (Dimensions, error)
}

// DecodeProbe reads image headers with image.DecodeConfig. It supports PNG,
// JPEG, GIF, BMP and WebP.
type DecodeProbe struct{}

// Dimensions implements Probe.
func (DecodeProbe) Dimensions(ctx context.Context, ref ReferenceImage) (Dimensions, error) {
	if err := ctx.Err(); err != nil {
		return Dimensions{}, err
	}
	r, err := ref.Reader()
	if err != nil {
		return Dimensions{}, err
	}
	cfg, format, err := image.DecodeConfig(r)
	if err != nil {
		return Dimensions{}, fmt.Errorf("imagegen: cannot read image dimensions: %w", err)
	}
	return Dimensions{Width: cfg.Width, Height: cfg.Height, Format: format}, nil
}

// CachingProbe memoizes another Probe by image content. Repeated size
// resolutions against the same reference do not decode it again.
type CachingProbe struct {
	next  Probe
	cache *cache.Cache
}

// NewCachingProbe wraps next with an expiring in-memory cache.
func NewCachingProbe(next Probe, ttl time.Duration) *CachingProbe {
	if next == nil {
		next = DecodeProbe{}
	}
	return &CachingProbe{
		next:  next,
		cache: cache.New(ttl, 2*ttl),
	}
}

// Dimensions implements Probe. Failures are not cached.
func (p *CachingProbe) Dimensions(ctx context.Context, ref ReferenceImage) (Dimensions, error) {
	key := contentKey(ref)
	if v, ok := p.cache.Get(key); ok {
		return v.(Dimensions), nil
	}
	dims, err := p.next.Dimensions(ctx, ref)
	if err != nil {
		return Dimensions{}, err
	}
	p.cache.SetDefault(key, dims)
	return dims, nil
}

// Len returns the number of cached entries.
func (p *CachingProbe) Len() int {
	return p.cache.ItemCount()
}

func contentKey(ref ReferenceImage) string {
	sum := sha256.Sum256([]byte(ref.DataURL))
	return hex.EncodeToString(sum[:])
}
