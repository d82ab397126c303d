package menu

import (
	"errors"
	"sort"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/ghalamif/PourFlow/internal/domain"
)

type staticCatalog []domain.Recipe

func (c staticCatalog) Lookup(name string) (domain.Recipe, bool) {
	for _, r := range c {
		if r.Name == name {
			return r, true
		}
	}
	return domain.Recipe{}, false
}

func (c staticCatalog) Recipes() []domain.Recipe {
	out := append([]domain.Recipe(nil), c...)
	sort.Slice(out, func(i, j int) bool { return out[i].Name < out[j].Name })
	return out
}

var testCatalog = staticCatalog{
	{Name: "DRY MARTINI", Steps: []domain.Step{{Volume: 60, Ingredient: "Gin"}, {Volume: 10, Ingredient: "Dry Vermouth"}}},
	{Name: "VESPER", Steps: []domain.Step{{Volume: 60, Ingredient: "Gin"}, {Volume: 15, Ingredient: "Vodka"}}, Note: "Add a dash of Lillet Blonde/Blanc"},
	{Name: "SCREWDRIVER", Steps: []domain.Step{{Volume: 50, Ingredient: "Vodka"}, {Volume: 100, Ingredient: "Orange Juice"}}},
	{Name: "SAZERAC", Steps: []domain.Step{{Volume: 50, Ingredient: "Cognac"}}},
}

func mustBind(t *testing.T, names ...string) domain.Binding {
	t.Helper()
	b, err := domain.PadBinding(names)
	require.NoError(t, err)
	return b
}

func TestAvailableEmptyBinding(t *testing.T) {
	got := Available(mustBind(t), testCatalog)
	assert.Empty(t, got)
}

func TestAvailableFullBinding(t *testing.T) {
	b := mustBind(t, "Gin", "Dry Vermouth", "Vodka", "Orange Juice", "Cognac")
	got := Available(b, testCatalog)
	assert.Equal(t, []string{"DRY MARTINI", "SAZERAC", "SCREWDRIVER", "VESPER"}, got.Sorted())
}

func TestAvailableRequiresEveryIngredient(t *testing.T) {
	b := mustBind(t, "", "", "Vodka", "Gin")
	got := Available(b, testCatalog)
	assert.True(t, got.Has("VESPER"))
	assert.False(t, got.Has("DRY MARTINI"))
	assert.False(t, got.Has("SCREWDRIVER"))
	assert.Len(t, got, 1)
}

func TestAvailableMissingVermouth(t *testing.T) {
	b := mustBind(t, "Gin")
	cat := staticCatalog{testCatalog[0]}
	assert.Empty(t, Available(b, cat))
}

func TestValidateKnownIngredients(t *testing.T) {
	require.NoError(t, ValidateKnownIngredients(mustBind(t, "Gin", "", "Vodka"), testCatalog))

	err := ValidateKnownIngredients(mustBind(t, "Gin", "Tonic", "Bitters"), testCatalog)
	var unknown *domain.UnknownIngredientError
	require.True(t, errors.As(err, &unknown))
	assert.Equal(t, "Tonic", unknown.Name)
}

func TestIngredientUsage(t *testing.T) {
	usage := IngredientUsage(testCatalog)
	require.Len(t, usage, 5)
	assert.Equal(t, Usage{Ingredient: "Cognac", Recipes: 1}, usage[0])

	counts := make(map[string]int)
	for _, u := range usage {
		counts[u.Ingredient] = u.Recipes
	}
	assert.Equal(t, 2, counts["Gin"])
	assert.Equal(t, 2, counts["Vodka"])
}
