package catalog

import (
	_ "embed"
	"errors"
	"fmt"
	"os"
	"sort"
	"strings"

	"gopkg.in/yaml.v3"

	"github.com/ghalamif/PourFlow/internal/domain"
	"github.com/ghalamif/PourFlow/internal/ports"
)

//go:embed recipes.yaml
var defaultRecipes []byte

type document struct {
	Recipes []domain.Recipe `yaml:"recipes"`
}

// YAMLCatalog is an immutable recipe table loaded from YAML.
type YAMLCatalog struct {
	byName map[string]domain.Recipe
	sorted []domain.Recipe
}

// Default returns the catalog compiled into the binary.
func Default() *YAMLCatalog {
	c, err := Parse(defaultRecipes)
	if err != nil {
		panic(fmt.Sprintf("embedded catalog: %v", err))
	}
	return c
}

// Load reads a catalog file. An empty path yields the default catalog.
func Load(path string) (*YAMLCatalog, error) {
	if path == "" {
		return Default(), nil
	}
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read catalog: %w", err)
	}
	c, err := Parse(data)
	if err != nil {
		return nil, fmt.Errorf("catalog %s: %w", path, err)
	}
	return c, nil
}

func Parse(data []byte) (*YAMLCatalog, error) {
	var doc document
	if err := yaml.Unmarshal(data, &doc); err != nil {
		return nil, fmt.Errorf("parse catalog: %w", err)
	}
	return New(doc.Recipes)
}

// New validates recipes and builds a catalog from them.
func New(recipes []domain.Recipe) (*YAMLCatalog, error) {
	if len(recipes) == 0 {
		return nil, errors.New("catalog has no recipes")
	}
	c := &YAMLCatalog{byName: make(map[string]domain.Recipe, len(recipes))}
	for i, r := range recipes {
		if err := validateRecipe(r); err != nil {
			return nil, fmt.Errorf("recipe %d: %w", i, err)
		}
		if _, dup := c.byName[r.Name]; dup {
			return nil, fmt.Errorf("duplicate recipe %q", r.Name)
		}
		r.Steps = append([]domain.Step(nil), r.Steps...)
		c.byName[r.Name] = r
		c.sorted = append(c.sorted, r)
	}
	sort.Slice(c.sorted, func(i, j int) bool { return c.sorted[i].Name < c.sorted[j].Name })
	return c, nil
}

func validateRecipe(r domain.Recipe) error {
	if strings.TrimSpace(r.Name) == "" {
		return errors.New("name is required")
	}
	if len(r.Steps) == 0 {
		return fmt.Errorf("%s: at least one step is required", r.Name)
	}
	for j, s := range r.Steps {
		if s.Volume <= 0 {
			return fmt.Errorf("%s step %d: volume must be positive", r.Name, j+1)
		}
		if strings.TrimSpace(s.Ingredient) == "" {
			return fmt.Errorf("%s step %d: ingredient is required", r.Name, j+1)
		}
	}
	return nil
}

func (c *YAMLCatalog) Lookup(name string) (domain.Recipe, bool) {
	r, ok := c.byName[name]
	return r, ok
}

func (c *YAMLCatalog) Recipes() []domain.Recipe {
	return append([]domain.Recipe(nil), c.sorted...)
}

var _ ports.Catalog = (*YAMLCatalog)(nil)
