package seed

import (
	_ "embed"
	"fmt"
	"strings"

	"gopkg.in/yaml.v3"

	"horse.fit/sentiflow/internal/db"
)

//go:embed sectors.yaml
var sectorsYAML []byte

type sectorsDocument struct {
	Sectors []struct {
		ID   int    `yaml:"id"`
		Name string `yaml:"name"`
	} `yaml:"sectors"`
}

// Sectors returns the built-in sector reference data.
func Sectors() ([]db.Sector, error) {
	return ParseSectors(sectorsYAML)
}

// ParseSectors decodes a sectors YAML document and rejects duplicate ids or names.
func ParseSectors(raw []byte) ([]db.Sector, error) {
	var doc sectorsDocument
	if err := yaml.Unmarshal(raw, &doc); err != nil {
		return nil, fmt.Errorf("decode sectors yaml: %w", err)
	}
	if len(doc.Sectors) == 0 {
		return nil, fmt.Errorf("sectors yaml lists no sectors")
	}

	out := make([]db.Sector, 0, len(doc.Sectors))
	ids := make(map[int]struct{}, len(doc.Sectors))
	names := make(map[string]struct{}, len(doc.Sectors))
	for _, s := range doc.Sectors {
		name := strings.TrimSpace(s.Name)
		if s.ID < 1 || name == "" {
			return nil, fmt.Errorf("sector %d %q: id must be positive and name non-blank", s.ID, s.Name)
		}
		if _, dup := ids[s.ID]; dup {
			return nil, fmt.Errorf("duplicate sector id %d", s.ID)
		}
		if _, dup := names[strings.ToLower(name)]; dup {
			return nil, fmt.Errorf("duplicate sector name %q", name)
		}
		ids[s.ID] = struct{}{}
		names[strings.ToLower(name)] = struct{}{}
		out = append(out, db.Sector{ID: s.ID, Name: name})
	}
	return out, nil
}
