package domain

import (
	"fmt"
	"strings"
)

// InvalidBindingError is returned when a binding does not have exactly one
// slot per channel. It is fatal at startup.
type InvalidBindingError struct {
	Got   int
	Names []string
}

func (e *InvalidBindingError) Error() string {
	return fmt.Sprintf("expected %d ingredients but had %d: %s", ChannelCount, e.Got, strings.Join(e.Names, ", "))
}

// UnknownIngredientError names an ingredient that is either not bound to any
// channel or not used by any recipe in the catalog.
type UnknownIngredientError struct {
	Name string
}

func (e *UnknownIngredientError) Error() string {
	return fmt.Sprintf("unknown ingredient: %q", e.Name)
}

type UnknownRecipeError struct {
	Name string
}

func (e *UnknownRecipeError) Error() string {
	return fmt.Sprintf("unknown recipe: %q", e.Name)
}

// MissingIngredientError is returned when a recipe needs an ingredient that no
// channel is bound to.
type MissingIngredientError struct {
	Recipe     string
	Ingredient string
}

func (e *MissingIngredientError) Error() string {
	return fmt.Sprintf("missing %s for %s", e.Ingredient, e.Recipe)
}

// HardwareFaultError wraps a failure of the channel driver. Op is "open" or
// "close".
type HardwareFaultError struct {
	Channel int
	Op      string
	Err     error
}

func (e *HardwareFaultError) Error() string {
	return fmt.Sprintf("channel %d %s: %v", e.Channel, e.Op, e.Err)
}

func (e *HardwareFaultError) Unwrap() error {
	return e.Err
}

type InvalidChannelConfigError struct {
	Index  int
	Reason string
}

func (e *InvalidChannelConfigError) Error() string {
	if e.Index < 0 {
		return "channel config: " + e.Reason
	}
	return fmt.Sprintf("channel %d: %s", e.Index, e.Reason)
}
