package dispense

import (
	"context"
	"errors"

	"github.com/google/uuid"

	"github.com/ghalamif/PourFlow/internal/domain"
)

// Result is the final state of one dispense.
type Result struct {
	Outcome domain.Outcome
	// Faults holds one *domain.HardwareFaultError per failed channel.
	Faults []error
}

func (r Result) Err() error {
	return errors.Join(r.Faults...)
}

// Handle is returned as soon as a dispense has been dispatched.
type Handle struct {
	ID      uuid.UUID
	Kind    domain.DispenseKind
	Name    string
	Epoch   uint64
	Targets []domain.Target

	done   chan struct{}
	result Result
}

func newHandle(kind domain.DispenseKind, name string, epoch uint64, targets []domain.Target) *Handle {
	return &Handle{
		ID:      uuid.New(),
		Kind:    kind,
		Name:    name,
		Epoch:   epoch,
		Targets: targets,
		done:    make(chan struct{}),
	}
}

// Done is closed once every actuation of the dispense has returned.
func (h *Handle) Done() <-chan struct{} {
	return h.done
}

// Result returns the outcome; ok is false while the dispense is running.
func (h *Handle) Result() (Result, bool) {
	select {
	case <-h.done:
		return h.result, true
	default:
		return Result{}, false
	}
}

func (h *Handle) Wait(ctx context.Context) (Result, error) {
	select {
	case <-h.done:
		return h.result, nil
	case <-ctx.Done():
		return Result{}, ctx.Err()
	}
}

func (h *Handle) finish(r Result) {
	h.result = r
	close(h.done)
}
