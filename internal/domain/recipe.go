package domain

// Step is one ingredient of a recipe. Volume is in millilitres.
type Step struct {
	Volume     float64 `yaml:"volume" json:"volume"`
	Ingredient string  `yaml:"ingredient" json:"ingredient"`
}

// Recipe is an immutable catalog entry. Note is free text read out once the
// drink is poured, e.g. a garnish.
type Recipe struct {
	Name  string `yaml:"name" json:"name"`
	Steps []Step `yaml:"steps" json:"steps"`
	Note  string `yaml:"note,omitempty" json:"note,omitempty"`
}

// Ingredients lists the distinct ingredients of the recipe in step order.
func (r Recipe) Ingredients() []string {
	seen := make(map[string]struct{}, len(r.Steps))
	out := make([]string, 0, len(r.Steps))
	for _, s := range r.Steps {
		if _, ok := seen[s.Ingredient]; ok {
			continue
		}
		seen[s.Ingredient] = struct{}{}
		out = append(out, s.Ingredient)
	}
	return out
}
