package loaders

import (
	"errors"
	"fmt"
	"os"
	"path"
	"path/filepath"
	"strings"
	"sync"

	"golang.org/x/image/font"
	"golang.org/x/image/font/opentype"
	"golang.org/x/image/font/sfnt"

	"github.com/spaghettifunk/preloader/engine/assets"
	"github.com/spaghettifunk/preloader/engine/core"
	"github.com/spaghettifunk/preloader/engine/systems"
)

var (
	ErrNoUsableFontSource = errors.New("no usable font source")
	ErrUnknownFamily      = errors.New("font family not registered")
)

// formats parsed by sfnt; anything else (woff, woff2, svg, eot) is skipped
var parsableFontFormats = map[string]bool{
	"truetype":     true,
	"opentype":     true,
	"truetype-aat": true,
	"collection":   true,
	"":             true,
}

// FontFamily is a registered family backed by the first source that parsed.
type FontFamily struct {
	Name   string
	Source string
	Font   *sfnt.Font
}

// FontRegistry parses font families synchronously so they are usable as soon
// as Register returns.
type FontRegistry struct {
	base string

	mu       sync.RWMutex
	families map[string]*FontFamily
}

var _ systems.FontRegistrar = (*FontRegistry)(nil)

func NewFontRegistry(base string) *FontRegistry {
	return &FontRegistry{
		base:     base,
		families: make(map[string]*FontFamily),
	}
}

// Register tries every source in order and keeps the first one that parses.
// settle is always called before Register returns.
func (fr *FontRegistry) Register(family string, sources []assets.FontSource, settle systems.SettleFunc) {
	fam, err := fr.parseFamily(family, sources)
	if err != nil {
		settle(err)
		return
	}
	if err := warm(fam.Font); err != nil {
		settle(fmt.Errorf("font %s: %w", family, err))
		return
	}

	fr.mu.Lock()
	fr.families[family] = fam
	fr.mu.Unlock()

	core.LogDebug("font: registered %s from %s", family, fam.Source)
	settle(nil)
}

func (fr *FontRegistry) Unregister(family string) {
	fr.mu.Lock()
	defer fr.mu.Unlock()
	delete(fr.families, family)
}

func (fr *FontRegistry) Family(name string) (*FontFamily, bool) {
	fr.mu.RLock()
	defer fr.mu.RUnlock()
	f, ok := fr.families[name]
	return f, ok
}

// Face builds a drawable face of the family at the given size in points.
func (fr *FontRegistry) Face(name string, size float64) (font.Face, error) {
	fam, ok := fr.Family(name)
	if !ok {
		return nil, fmt.Errorf("%w: %s", ErrUnknownFamily, name)
	}
	return opentype.NewFace(fam.Font, &opentype.FaceOptions{
		Size:    size,
		DPI:     72,
		Hinting: font.HintingFull,
	})
}

// Invalidate unregisters every family loaded from rel.
func (fr *FontRegistry) Invalidate(rel string) bool {
	rel = path.Clean(rel)
	fr.mu.Lock()
	defer fr.mu.Unlock()
	dropped := false
	for name, fam := range fr.families {
		if fam.Source == rel {
			delete(fr.families, name)
			dropped = true
		}
	}
	return dropped
}

func (fr *FontRegistry) parseFamily(family string, sources []assets.FontSource) (*FontFamily, error) {
	var errs []error
	for _, src := range sources {
		format := strings.ToLower(src.Format)
		if !parsableFontFormats[format] {
			continue
		}
		key, err := cleanKey(src.Src)
		if err != nil {
			errs = append(errs, err)
			continue
		}
		f, err := parseFontFile(filepath.Join(fr.base, filepath.FromSlash(key)))
		if err != nil {
			errs = append(errs, err)
			continue
		}
		return &FontFamily{Name: family, Source: key, Font: f}, nil
	}
	errs = append(errs, ErrNoUsableFontSource)
	return nil, fmt.Errorf("font %s: %w", family, errors.Join(errs...))
}

func parseFontFile(full string) (*sfnt.Font, error) {
	data, err := os.ReadFile(full)
	if err != nil {
		return nil, err
	}
	if strings.EqualFold(filepath.Ext(full), ".ttc") || strings.EqualFold(filepath.Ext(full), ".otc") {
		c, err := opentype.ParseCollection(data)
		if err != nil {
			return nil, err
		}
		return c.Font(0)
	}
	return opentype.Parse(data)
}

// warm lays out a single glyph so the first real draw does not pay for it.
func warm(f *sfnt.Font) error {
	face, err := opentype.NewFace(f, &opentype.FaceOptions{Size: 12, DPI: 72})
	if err != nil {
		return err
	}
	defer face.Close()
	if _, ok := face.GlyphAdvance('.'); !ok {
		return errors.New("font has no glyph for '.'")
	}
	return nil
}
