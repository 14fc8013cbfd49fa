package loaders

import (
	"encoding/xml"
	"fmt"
	"os"
	"path"

	"github.com/fzipp/bmfont"

	"github.com/spaghettifunk/preloader/engine/core"
	"github.com/spaghettifunk/preloader/engine/systems"
)

// Node is one element of a parsed XML document.
type Node struct {
	XMLName  xml.Name
	Attrs    []xml.Attr `xml:",any,attr"`
	Content  string     `xml:",chardata"`
	Children []Node     `xml:",any"`
}

// Attr returns the value of the named attribute.
func (n *Node) Attr(name string) (string, bool) {
	for _, a := range n.Attrs {
		if a.Name.Local == name {
			return a.Value, true
		}
	}
	return "", false
}

// Find returns the first direct child with the given local name.
func (n *Node) Find(name string) (*Node, bool) {
	for i := range n.Children {
		if n.Children[i].XMLName.Local == name {
			return &n.Children[i], true
		}
	}
	return nil, false
}

/** @brief Summary of an AngelCode bitmap font. */
type BitmapFontInfo struct {
	Face       string
	Size       int
	LineHeight int
	Baseline   int
	Pages      int
	Glyphs     int
	Kernings   int
}

// Document is a loaded structured data file. Bitmap fonts (.fnt) fill Font,
// everything else fills Root.
type Document struct {
	Format string
	Root   *Node
	Font   *BitmapFontInfo
}

// DataLoader reads plist, xml, tmx, tsx and fnt files.
type DataLoader struct {
	*cache[*Document]
}

var _ systems.StructuredDataLoader = (*DataLoader)(nil)

func NewDataLoader(base string, jobs *systems.JobSystem) *DataLoader {
	return &DataLoader{cache: newCache[*Document]("data", base, jobs)}
}

func (dl *DataLoader) Preload(path string, settle systems.SettleFunc) {
	dl.load(path, readDocument, settle)
}

func (dl *DataLoader) Unload(path string) {
	if dl.evict(path) {
		core.LogDebug("data: unloaded %s", path)
	}
}

// Document returns the loaded document for path.
func (dl *DataLoader) Document(path string) (*Document, bool) {
	return dl.lookup(path)
}

func readDocument(full string) (*Document, error) {
	format := path.Ext(full)
	if len(format) > 0 {
		format = format[1:]
	}
	if format == "fnt" {
		return readBitmapFont(full)
	}

	data, err := os.ReadFile(full)
	if err != nil {
		return nil, err
	}
	root := &Node{}
	if err := xml.Unmarshal(data, root); err != nil {
		return nil, fmt.Errorf("parse %s: %w", full, err)
	}
	return &Document{Format: format, Root: root}, nil
}

func readBitmapFont(full string) (*Document, error) {
	font, err := bmfont.Load(full)
	if err != nil {
		return nil, err
	}
	d := font.Descriptor
	return &Document{
		Format: "fnt",
		Font: &BitmapFontInfo{
			Face:       d.Info.Face,
			Size:       int(d.Info.Size),
			LineHeight: int(d.Common.LineHeight),
			Baseline:   int(d.Common.Base),
			Pages:      len(d.Pages),
			Glyphs:     len(d.Chars),
			Kernings:   len(d.Kerning),
		},
	}, nil
}
