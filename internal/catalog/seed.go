package catalog

import (
	"context"
	"fmt"
	"io"
	"os"

	"leadfunnel/internal/models"

	"gopkg.in/yaml.v3"
)

type seedFile struct {
	Templates []seedTemplate `yaml:"templates"`
}

type seedTemplate struct {
	Name     string   `yaml:"name"`
	Language string   `yaml:"language"`
	Category string   `yaml:"category"`
	Body     string   `yaml:"body"`
	Buttons  []string `yaml:"buttons"`
}

// ParseSeed reads a YAML template catalog.
func ParseSeed(r io.Reader) ([]models.Template, error) {
	var f seedFile
	if err := yaml.NewDecoder(r).Decode(&f); err != nil {
		return nil, fmt.Errorf("decode template catalog: %w", err)
	}
	out := make([]models.Template, 0, len(f.Templates))
	for i, st := range f.Templates {
		if st.Name == "" {
			return nil, fmt.Errorf("template %d: missing name", i)
		}
		out = append(out, models.Template{
			Name:     st.Name,
			Language: st.Language,
			Category: st.Category,
			Status:   "LOCAL",
			Body:     st.Body,
			Buttons:  EncodeButtons(st.Buttons),
		})
	}
	return out, nil
}

// SeedFile upserts every template in the YAML file at path.
func (c *Catalog) SeedFile(ctx context.Context, path string) (int, error) {
	f, err := os.Open(path)
	if err != nil {
		return 0, err
	}
	defer f.Close()

	templates, err := ParseSeed(f)
	if err != nil {
		return 0, err
	}
	for i := range templates {
		if err := c.Upsert(ctx, &templates[i]); err != nil {
			return i, fmt.Errorf("seed %s: %w", templates[i].Name, err)
		}
	}
	return len(templates), nil
}
