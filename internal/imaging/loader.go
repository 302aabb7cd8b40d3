package imaging

import (
	"bytes"
	"errors"
	"fmt"
	"image"
	_ "image/jpeg" // Register JPEG format decoder
	_ "image/png"  // Register PNG format decoder
	"os"
	"sync"

	"github.com/disintegration/imaging"
	"github.com/google/uuid"
)

var (
	// ErrUnsupportedFormat is returned for anything that is not JPEG or PNG.
	ErrUnsupportedFormat = errors.New("unsupported image format")

	// ErrImageNotFound is returned by Get for an unknown image ID.
	ErrImageNotFound = errors.New("image not found")
)

// ImageInfo contains metadata about a decoded image.
type ImageInfo struct {
	// ID is the cache key: the file path for disk loads, a UUID for uploads.
	ID string `json:"id"`

	// Width is the image width in pixels, after orientation is applied.
	Width int `json:"width"`

	// Height is the image height in pixels, after orientation is applied.
	Height int `json:"height"`

	// Format is "png" or "jpeg", detected from the file contents.
	Format string `json:"format"`

	// HasAlpha indicates whether the decoded image carries an alpha channel.
	HasAlpha bool `json:"has_alpha"`

	// SizeBytes is the encoded size of the image.
	SizeBytes int64 `json:"size_bytes"`
}

type cacheEntry struct {
	img  image.Image
	info ImageInfo
}

// ImageCache provides thread-safe storage of decoded images.
//
// Disk images are keyed by the path they were loaded from so repeated Load
// calls are served from memory. Uploaded images get a generated ID.
//
// Cached images remain in memory until Evict or Clear is called.
type ImageCache struct {
	mu     sync.RWMutex
	images map[string]cacheEntry
}

// NewImageCache creates an empty image cache.
func NewImageCache() *ImageCache {
	return &ImageCache{
		images: make(map[string]cacheEntry),
	}
}

// Load retrieves an image from the cache or decodes it from disk.
//
// The image is cached using the exact path string provided. Different paths to
// the same file (e.g., relative vs absolute) result in separate cache entries.
func (c *ImageCache) Load(path string) (image.Image, *ImageInfo, error) {
	c.mu.RLock()
	if e, ok := c.images[path]; ok {
		c.mu.RUnlock()
		info := e.info
		return e.img, &info, nil
	}
	c.mu.RUnlock()

	data, err := os.ReadFile(path)
	if err != nil {
		return nil, nil, fmt.Errorf("failed to open image: %w", err)
	}

	img, info, err := Decode(data)
	if err != nil {
		return nil, nil, err
	}
	info.ID = path

	c.mu.Lock()
	c.images[path] = cacheEntry{img: img, info: *info}
	c.mu.Unlock()

	return img, info, nil
}

// Put decodes uploaded bytes and stores them under a new ID.
func (c *ImageCache) Put(data []byte) (image.Image, *ImageInfo, error) {
	img, info, err := Decode(data)
	if err != nil {
		return nil, nil, err
	}
	info.ID = uuid.NewString()

	c.mu.Lock()
	c.images[info.ID] = cacheEntry{img: img, info: *info}
	c.mu.Unlock()

	return img, info, nil
}

// Get returns a previously loaded or uploaded image.
func (c *ImageCache) Get(id string) (image.Image, *ImageInfo, error) {
	c.mu.RLock()
	defer c.mu.RUnlock()

	e, ok := c.images[id]
	if !ok {
		return nil, nil, fmt.Errorf("%w: %s", ErrImageNotFound, id)
	}
	info := e.info
	return e.img, &info, nil
}

// Len returns the number of cached images.
func (c *ImageCache) Len() int {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return len(c.images)
}

// Clear removes all images from the cache.
func (c *ImageCache) Clear() {
	c.mu.Lock()
	c.images = make(map[string]cacheEntry)
	c.mu.Unlock()
}

// Evict removes a specific image from the cache. Unknown IDs are ignored.
func (c *ImageCache) Evict(id string) {
	c.mu.Lock()
	delete(c.images, id)
	c.mu.Unlock()
}

// Decode decodes a JPEG or PNG image, applying the JPEG orientation tag.
//
// The format is sniffed from the data, not from a file name, so an upload
// named "photo.png" that actually holds a GIF is still rejected.
func Decode(data []byte) (image.Image, *ImageInfo, error) {
	_, format, err := image.DecodeConfig(bytes.NewReader(data))
	if err != nil {
		if errors.Is(err, image.ErrFormat) {
			return nil, nil, ErrUnsupportedFormat
		}
		return nil, nil, fmt.Errorf("failed to decode image: %w", err)
	}
	if format != "jpeg" && format != "png" {
		return nil, nil, fmt.Errorf("%w: %s", ErrUnsupportedFormat, format)
	}

	img, err := imaging.Decode(bytes.NewReader(data), imaging.AutoOrientation(true))
	if err != nil {
		return nil, nil, fmt.Errorf("failed to decode image: %w", err)
	}

	hasAlpha := false
	switch img.(type) {
	case *image.RGBA, *image.NRGBA, *image.RGBA64, *image.NRGBA64:
		hasAlpha = true
	}

	bounds := img.Bounds()
	return img, &ImageInfo{
		Width:     bounds.Dx(),
		Height:    bounds.Dy(),
		Format:    format,
		HasAlpha:  hasAlpha,
		SizeBytes: int64(len(data)),
	}, nil
}
