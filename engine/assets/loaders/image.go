package loaders

import (
	"fmt"
	"image"
	_ "image/gif"
	_ "image/jpeg"
	_ "image/png"
	"os"

	_ "golang.org/x/image/bmp"

	"github.com/spaghettifunk/preloader/engine/core"
	"github.com/spaghettifunk/preloader/engine/systems"
)

// ImageResource is a decoded image and the format it was stored in.
type ImageResource struct {
	Format string
	Image  image.Image
}

func (r *ImageResource) Width() int {
	return r.Image.Bounds().Dx()
}

func (r *ImageResource) Height() int {
	return r.Image.Bounds().Dy()
}

// ImageCache decodes png, jpeg, gif and bmp files in the background.
type ImageCache struct {
	*cache[*ImageResource]
}

var _ systems.ImageCache = (*ImageCache)(nil)

func NewImageCache(base string, jobs *systems.JobSystem) *ImageCache {
	return &ImageCache{cache: newCache[*ImageResource]("image", base, jobs)}
}

func (ic *ImageCache) LoadAsync(path string, settle systems.SettleFunc) {
	ic.load(path, decodeImage, settle)
}

func (ic *ImageCache) Evict(path string) {
	if ic.evict(path) {
		core.LogDebug("image: evicted %s", path)
	}
}

// Image returns the decoded image for path, if it is loaded.
func (ic *ImageCache) Image(path string) (*ImageResource, bool) {
	return ic.lookup(path)
}

func decodeImage(full string) (*ImageResource, error) {
	f, err := os.Open(full)
	if err != nil {
		return nil, err
	}
	defer f.Close()

	img, format, err := image.Decode(f)
	if err != nil {
		return nil, fmt.Errorf("decode %s: %w", full, err)
	}
	return &ImageResource{Format: format, Image: img}, nil
}
