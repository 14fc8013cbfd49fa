package assets

import (
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const testManifest = `
version: 1
groups:
  - name: mainmenu
    resources:
      - src: res/hello.png
      - src: res/hello.plist
      - src: res/boom.mp3
  - name: level
    resources:
      - src: res/level01.png
      - font: PressStart
        sources:
          - src: res/fonts/PressStart.ttf
            format: truetype
        meta:
          size: 12
`

func TestParseManifest(t *testing.T) {
	m, err := ParseManifest(strings.NewReader(testManifest))
	require.NoError(t, err)
	assert.Equal(t, 1, m.Version)
	require.Len(t, m.Groups, 2)

	all, err := m.Select()
	require.NoError(t, err)
	require.Len(t, all, 2)
	assert.Len(t, Flatten(all...), 5)

	picked, err := m.Select("level", "mainmenu")
	require.NoError(t, err)
	font := picked[0][1]
	assert.Equal(t, "PressStart", font.FontName)
	assert.Equal(t, []FontSource{{Src: "res/fonts/PressStart.ttf", Format: "truetype"}}, font.Sources)
	assert.Equal(t, 12, font.Meta["size"])
	assert.Equal(t, "res/hello.png", picked[1][0].Src)

	_, err = m.Select("credits")
	assert.Error(t, err)
}

func TestParseManifestErrors(t *testing.T) {
	tests := map[string]string{
		"unnamed group":   "groups:\n  - resources: []\n",
		"duplicate group": "groups:\n  - name: a\n  - name: a\n",
		"empty resource":  "groups:\n  - name: a\n    resources:\n      - meta: {x: 1}\n",
		"unknown field":   "groups:\n  - name: a\n    files: []\n",
	}
	for name, data := range tests {
		t.Run(name, func(t *testing.T) {
			_, err := ParseManifest(strings.NewReader(data))
			assert.Error(t, err)
		})
	}
}

func TestParseManifestEmpty(t *testing.T) {
	m, err := ParseManifest(strings.NewReader(""))
	require.NoError(t, err)
	assert.Empty(t, m.Groups)
}

func TestLoadManifest(t *testing.T) {
	path := filepath.Join(t.TempDir(), "assets.yaml")
	require.NoError(t, os.WriteFile(path, []byte(testManifest), 0o644))

	m, err := LoadManifest(path)
	require.NoError(t, err)
	assert.Len(t, m.Groups, 2)

	_, err = LoadManifest(filepath.Join(t.TempDir(), "missing.yaml"))
	assert.Error(t, err)
}
