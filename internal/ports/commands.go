package ports

import "github.com/ghalamif/PourFlow/internal/domain"

// CommandSource streams operator commands (console, buttons, etc.) into the
// runtime.
type CommandSource interface {
	Start(out chan<- domain.Command) error
	Stop() error
}
