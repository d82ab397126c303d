package pourflow

import (
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/ghalamif/PourFlow/internal/domain"
)

const helpText = "Commands: mix <recipe>, pour <ingredient>, stop, menu, flush [duration], help"

// commandLoop executes commands until stop is closed. in is never closed by
// the runtime, so a source that is slow to notice Stop cannot panic on send.
func (r *Runtime) commandLoop(in <-chan domain.Command, stop <-chan struct{}, done chan<- struct{}) {
	defer close(done)
	for {
		select {
		case <-stop:
			return
		case cmd := <-in:
			r.Execute(cmd)
		}
	}
}

// Execute runs one operator command. Failures are announced, not returned,
// since the operator is the only one who can act on them.
func (r *Runtime) Execute(cmd Command) {
	r.obs.LogInfo("command", Field{Key: "verb", Value: cmd.Verb}, Field{Key: "arg", Value: cmd.Arg})

	var err error
	switch cmd.Verb {
	case "mix":
		_, err = r.Mix(cmd.Arg)
	case "pour":
		_, err = r.Pour(cmd.Arg)
	case "stop", "off":
		err = r.StopAll()
		if err == nil {
			r.announcer.Announce("Stopped")
		}
	case "menu", "available":
		if available := r.Available(); len(available) > 0 {
			r.announcer.Announce(fmt.Sprintf("Available drinks are: %s.", strings.Join(available, ", ")))
		} else {
			r.announcer.Announce("No cocktails for those ingredients")
		}
	case "flush":
		var d time.Duration
		if cmd.Arg != "" {
			if d, err = time.ParseDuration(cmd.Arg); err != nil {
				r.announcer.Announce(fmt.Sprintf("Bad flush duration: %s", cmd.Arg))
				return
			}
		}
		_, err = r.Flush(d)
	case "help":
		r.announcer.Announce(helpText)
	default:
		r.announcer.Announce(fmt.Sprintf("Unknown command: %s", cmd.Verb))
		return
	}

	if err != nil {
		r.announcer.Announce(rejection(err))
	}
}

// rejection phrases an error for the operator, naming the offending recipe
// or ingredient.
func rejection(err error) string {
	var (
		unknownRecipe *domain.UnknownRecipeError
		missing       *domain.MissingIngredientError
		unknownIngr   *domain.UnknownIngredientError
		fault         *domain.HardwareFaultError
	)
	switch {
	case errors.As(err, &unknownRecipe):
		return fmt.Sprintf("Unknown cocktail: %s", unknownRecipe.Name)
	case errors.As(err, &missing):
		return fmt.Sprintf("Missing %s", missing.Ingredient)
	case errors.As(err, &unknownIngr):
		if unknownIngr.Name == "" {
			return "Which ingredient?"
		}
		return fmt.Sprintf("No pump has %s", unknownIngr.Name)
	case errors.As(err, &fault):
		return fmt.Sprintf("Pump problem on channel %d", fault.Channel)
	default:
		return err.Error()
	}
}
