package assets

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestClassify(t *testing.T) {
	tests := []struct {
		src     string
		want    Kind
		wantExt string
	}{
		{"res/hello.png", KindImage, "png"},
		{"res/hello.jpeg", KindImage, "jpeg"},
		{"res/tiles.bmp", KindImage, "bmp"},
		{"res/hello.plist", KindXML, "plist"},
		{"res/map.tmx", KindXML, "tmx"},
		{"res/arial.fnt", KindXML, "fnt"},
		{"res/boom.mp3", KindSound, "mp3"},
		{"res/loop.aiff", KindSound, "aiff"},
		{"res/scene.ccbi", KindBinary, "ccbi"},
		{"res/data.json?v=2", KindText, "json"},
		{"res/anim.ExportJson", KindText, "ExportJson"},
		{"shaders/blur.fsh", KindText, "fsh"},
		{"res/file.xyz", KindUnknown, "xyz"},
		// extensions are case-sensitive
		{"res/HELLO.PNG", KindUnknown, "PNG"},
		{"res/anim.exportjson", KindUnknown, "exportjson"},
		{"README", KindUnknown, "README"},
	}
	for _, tt := range tests {
		t.Run(tt.src, func(t *testing.T) {
			kind, ext := Classify(Source(tt.src))
			assert.Equal(t, tt.want, kind)
			assert.Equal(t, tt.wantExt, ext)
		})
	}
}

func TestClassifyFontNameWins(t *testing.T) {
	d := Descriptor{Src: "res/hello.png", FontName: "PressStart"}
	kind, ext := Classify(d)
	assert.Equal(t, KindFont, kind)
	assert.Empty(t, ext)
	assert.Equal(t, "PressStart", d.Key())
}

func TestExtensionQueryHandling(t *testing.T) {
	assert.Equal(t, "json", Extension("a/b.json?x=1&y=2"))
	// a '?' directly after the dot is part of the extension
	assert.Equal(t, "?v=1", Extension("a/b.?v=1"))
	assert.Equal(t, "a/b.json", StripQuery("a/b.json?x=1"))
	assert.Equal(t, "a/b.json", Source("a/b.json?x=1").Path())
}

func TestKindString(t *testing.T) {
	assert.Equal(t, "image", KindImage.String())
	assert.Equal(t, "font", KindFont.String())
	assert.Equal(t, "invalid", Kind(99).String())
	assert.Equal(t, 7, KindCount)
	assert.Contains(t, Extensions(KindText), "ExportJson")
}

func TestFlattenOneLevel(t *testing.T) {
	menu := []Descriptor{Source("a.png"), Source("b.plist")}
	level := []Descriptor{Source("c.png")}

	got := Flatten(menu, level)
	assert.Equal(t, []Descriptor{Source("a.png"), Source("b.plist"), Source("c.png")}, got)
	assert.Empty(t, Flatten())
}

func TestDescriptorValidate(t *testing.T) {
	assert.Error(t, Descriptor{}.Validate())
	assert.NoError(t, Source("a.png").Validate())
	assert.NoError(t, Font("Mono").Validate())
}
