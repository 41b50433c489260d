package data

import (
	"fmt"
	"os"

	"gopkg.in/yaml.v3"
)

// Vec is a yaml-friendly 3D vector written as [x, y, z].
type Vec [3]float64

// PropEntry defines one prop to spawn at scene load.
type PropEntry struct {
	Name     string  `yaml:"name"`
	Position Vec     `yaml:"position"`
	Velocity Vec     `yaml:"velocity"`
	Collider *Vec    `yaml:"collider"` // half extents
	Renderer *Vec    `yaml:"renderer"` // half extents
	Count    int     `yaml:"count"`    // > 1 spawns a row of copies along X
	Spacing  float64 `yaml:"spacing"`
}

// SceneFile is the root document of a scene yaml.
type SceneFile struct {
	Name  string      `yaml:"name"`
	Props []PropEntry `yaml:"props"`
}

// SceneTable holds the expanded prop list of a scene.
type SceneTable struct {
	name  string
	props []PropEntry
}

// LoadScene loads a scene yaml.
func LoadScene(path string) (*SceneTable, error) {
	raw, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read scene: %w", err)
	}
	return ParseScene(raw)
}

// ParseScene decodes a scene document and expands Count rows.
func ParseScene(raw []byte) (*SceneTable, error) {
	var f SceneFile
	if err := yaml.Unmarshal(raw, &f); err != nil {
		return nil, fmt.Errorf("parse scene: %w", err)
	}
	t := &SceneTable{name: f.Name, props: make([]PropEntry, 0, len(f.Props))}
	for i, p := range f.Props {
		if p.Count < 0 {
			return nil, fmt.Errorf("prop %d (%s): negative count", i, p.Name)
		}
		if p.Count <= 1 {
			t.props = append(t.props, p)
			continue
		}
		for n := 0; n < p.Count; n++ {
			c := p
			c.Count = 1
			c.Name = fmt.Sprintf("%s#%d", p.Name, n)
			c.Position[0] += float64(n) * p.Spacing
			t.props = append(t.props, c)
		}
	}
	return t, nil
}

func (t *SceneTable) Name() string { return t.name }

// Props returns the expanded prop list.
func (t *SceneTable) Props() []PropEntry { return t.props }

// Count returns the number of props after expansion.
func (t *SceneTable) Count() int { return len(t.props) }
