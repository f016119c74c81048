package catalog

import (
	"context"
	_ "embed"
	"fmt"
	"os"
	"strings"

	"gopkg.in/yaml.v3"
)

//go:embed default_catalog.yaml
var defaultCatalogYAML []byte

// Provider is the read-only bulk source the catalog is loaded from at startup.
type Provider interface {
	Load(ctx context.Context) (*Catalog, error)
}

// FileProvider loads a YAML catalog file. An empty Path selects the embedded
// default catalog.
type FileProvider struct {
	Path string
}

// Load reads and validates the catalog.
func (p FileProvider) Load(ctx context.Context) (*Catalog, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	path := strings.TrimSpace(p.Path)
	if path == "" {
		return Default()
	}
	return LoadFile(path)
}

type fileCatalog struct {
	Foods      []FoodEntity `yaml:"foods"`
	Vocabulary `yaml:",inline"`
}

// Parse decodes a YAML catalog document.
func Parse(data []byte) (*Catalog, error) {
	var fc fileCatalog
	if err := yaml.Unmarshal(data, &fc); err != nil {
		return nil, fmt.Errorf("parsing catalog: %w", err)
	}
	return New(fc.Foods, fc.Vocabulary)
}

// LoadFile reads a YAML catalog from disk.
func LoadFile(path string) (*Catalog, error) {
	b, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("reading %s: %w", path, err)
	}
	c, err := Parse(b)
	if err != nil {
		return nil, fmt.Errorf("%s: %w", path, err)
	}
	return c, nil
}

// Default returns the catalog compiled into the binary.
func Default() (*Catalog, error) {
	return Parse(defaultCatalogYAML)
}
