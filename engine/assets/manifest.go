package assets

import (
	"bytes"
	"errors"
	"fmt"
	"io"
	"os"

	"gopkg.in/yaml.v3"
)

// Manifest is a YAML file listing named groups of resources:
//
//	version: 1
//	groups:
//	  - name: mainmenu
//	    resources:
//	      - src: res/hello.png
//	      - src: res/boom.mp3
//	      - font: PressStart
//	        sources:
//	          - src: res/fonts/PressStart.ttf
//	            format: truetype
type Manifest struct {
	Version int     `yaml:"version"`
	Groups  []Group `yaml:"groups"`
}

// Group is a named, ordered list of descriptors preloaded together.
type Group struct {
	Name      string       `yaml:"name"`
	Resources []Descriptor `yaml:"resources"`
}

func LoadManifest(path string) (*Manifest, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, err
	}
	defer f.Close()

	m, err := ParseManifest(f)
	if err != nil {
		return nil, fmt.Errorf("manifest %s: %w", path, err)
	}
	return m, nil
}

func ParseManifest(r io.Reader) (*Manifest, error) {
	data, err := io.ReadAll(r)
	if err != nil {
		return nil, err
	}
	m := &Manifest{}
	dec := yaml.NewDecoder(bytes.NewReader(data))
	dec.KnownFields(true)
	if err := dec.Decode(m); err != nil && !errors.Is(err, io.EOF) {
		return nil, err
	}
	seen := make(map[string]bool, len(m.Groups))
	for i, g := range m.Groups {
		if g.Name == "" {
			return nil, fmt.Errorf("group %d has no name", i)
		}
		if seen[g.Name] {
			return nil, fmt.Errorf("duplicate group %q", g.Name)
		}
		seen[g.Name] = true
		for j, d := range g.Resources {
			if err := d.Validate(); err != nil {
				return nil, fmt.Errorf("group %q resource %d: %w", g.Name, j, err)
			}
		}
	}
	return m, nil
}

// Select returns the resources of the named groups, in the order asked for.
// With no names every group is returned in file order.
func (m *Manifest) Select(names ...string) ([][]Descriptor, error) {
	if len(names) == 0 {
		out := make([][]Descriptor, 0, len(m.Groups))
		for _, g := range m.Groups {
			out = append(out, g.Resources)
		}
		return out, nil
	}
	out := make([][]Descriptor, 0, len(names))
	for _, name := range names {
		g, ok := m.group(name)
		if !ok {
			return nil, fmt.Errorf("manifest has no group %q", name)
		}
		out = append(out, g.Resources)
	}
	return out, nil
}

func (m *Manifest) group(name string) (Group, bool) {
	for _, g := range m.Groups {
		if g.Name == name {
			return g, true
		}
	}
	return Group{}, false
}
