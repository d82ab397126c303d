package ports

import "github.com/ghalamif/PourFlow/internal/domain"

// Catalog is the read-only recipe table, loaded once before the controller
// starts.
type Catalog interface {
	Lookup(name string) (domain.Recipe, bool)
	Recipes() []domain.Recipe
}
