// Package menu works out what the current binding can serve.
package menu

import (
	"sort"

	"github.com/ghalamif/PourFlow/internal/domain"
	"github.com/ghalamif/PourFlow/internal/ports"
)

// Set is an unordered set of recipe names.
type Set map[string]struct{}

func (s Set) Has(name string) bool {
	_, ok := s[name]
	return ok
}

func (s Set) Sorted() []string {
	out := make([]string, 0, len(s))
	for name := range s {
		out = append(out, name)
	}
	sort.Strings(out)
	return out
}

// Available returns every catalog recipe whose ingredients are all bound to
// some channel. Quantities and channel identity do not matter.
func Available(b domain.Binding, cat ports.Catalog) Set {
	out := make(Set)
	for _, r := range cat.Recipes() {
		if satisfiable(b, r) {
			out[r.Name] = struct{}{}
		}
	}
	return out
}

func satisfiable(b domain.Binding, r domain.Recipe) bool {
	for _, step := range r.Steps {
		if !b.Contains(step.Ingredient) {
			return false
		}
	}
	return true
}

// ValidateKnownIngredients fails on the first bound ingredient that no recipe
// in the catalog uses. It is a startup sanity check for typos in the setup.
func ValidateKnownIngredients(b domain.Binding, cat ports.Catalog) error {
	known := make(map[string]struct{})
	for _, r := range cat.Recipes() {
		for _, step := range r.Steps {
			known[step.Ingredient] = struct{}{}
		}
	}
	for _, name := range b.Slots() {
		if name == "" {
			continue
		}
		if _, ok := known[name]; !ok {
			return &domain.UnknownIngredientError{Name: name}
		}
	}
	return nil
}

// Usage is how many recipes use an ingredient.
type Usage struct {
	Ingredient string
	Recipes    int
}

// IngredientUsage lists every ingredient in the catalog, sorted by name.
func IngredientUsage(cat ports.Catalog) []Usage {
	counts := make(map[string]int)
	for _, r := range cat.Recipes() {
		for _, name := range r.Ingredients() {
			counts[name]++
		}
	}
	out := make([]Usage, 0, len(counts))
	for name, n := range counts {
		out = append(out, Usage{Ingredient: name, Recipes: n})
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Ingredient < out[j].Ingredient })
	return out
}
