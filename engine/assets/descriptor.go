package assets

import (
	"fmt"

	"github.com/spaghettifunk/preloader/engine/core"
)

// FontSource is one file backing a font family, with its format hint
// ("truetype", "opentype", "woff", ...).
type FontSource struct {
	Src    string `yaml:"src"`
	Format string `yaml:"format"`
}

// Descriptor describes one loadable asset. Treat it as immutable once it has
// been handed to a session.
type Descriptor struct {
	// Src is the source locator, possibly carrying a query string.
	Src string `yaml:"src,omitempty"`
	// FontName marks the descriptor as a font family; it wins over Src.
	FontName string `yaml:"font,omitempty"`
	// Sources lists the files of a font family.
	Sources []FontSource `yaml:"sources,omitempty"`
	// Meta is passed through untouched to loaders.
	Meta map[string]any `yaml:"meta,omitempty"`
}

// Source builds a descriptor for a file-backed asset.
func Source(src string) Descriptor {
	return Descriptor{Src: src}
}

// Font builds a font family descriptor.
func Font(family string, sources ...FontSource) Descriptor {
	return Descriptor{FontName: family, Sources: sources}
}

// Key identifies the descriptor in a session's membership set: the source
// locator for ordinary assets, the family name for fonts.
func (d Descriptor) Key() string {
	if d.FontName != "" {
		return d.FontName
	}
	return d.Src
}

// Path is Src without its query string.
func (d Descriptor) Path() string {
	return StripQuery(d.Src)
}

func (d Descriptor) Validate() error {
	if d.FontName == "" && d.Src == "" {
		return fmt.Errorf("%w: neither src nor font name set", core.ErrInvalidDescriptor)
	}
	return nil
}

func (d Descriptor) String() string {
	if d.FontName != "" {
		return fmt.Sprintf("font %s (%d sources)", d.FontName, len(d.Sources))
	}
	return d.Src
}

// Flatten concatenates groups into one ordered list, one level deep.
func Flatten(groups ...[]Descriptor) []Descriptor {
	n := 0
	for _, g := range groups {
		n += len(g)
	}
	out := make([]Descriptor, 0, n)
	for _, g := range groups {
		out = append(out, g...)
	}
	return out
}
