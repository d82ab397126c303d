package dispense

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"sync"
	"time"

	"github.com/ghalamif/PourFlow/internal/domain"
	"github.com/ghalamif/PourFlow/internal/ports"
)

const (
	DefaultPourAmount = 10.0
	ReadyMessage      = "Drink is ready!"
)

// Deps wires an Orchestrator. Recorder and Obs are optional.
type Deps struct {
	Registry  *domain.Registry
	Binding   domain.Binding
	Catalog   ports.Catalog
	Driver    ports.ChannelDriver
	Announcer ports.Announcer
	Recorder  ports.Recorder
	Obs       ports.Observability
	Timing    Timing
}

// Orchestrator turns recipes and pours into concurrent channel actuations.
type Orchestrator struct {
	registry  *domain.Registry
	binding   domain.Binding
	catalog   ports.Catalog
	announcer ports.Announcer
	recorder  ports.Recorder
	obs       ports.Observability

	epochs   *EpochController
	actuator *Actuator
	inflight inflight
}

func NewOrchestrator(d Deps) (*Orchestrator, error) {
	if d.Registry == nil {
		return nil, fmt.Errorf("channel registry is required")
	}
	if d.Catalog == nil {
		return nil, fmt.Errorf("catalog is required")
	}
	if d.Driver == nil {
		return nil, fmt.Errorf("channel driver is required")
	}
	if d.Announcer == nil {
		return nil, fmt.Errorf("announcer is required")
	}
	obs := d.Obs
	if obs == nil {
		obs = ports.NopObservability{}
	}
	epochs := NewEpochController(d.Driver, obs)
	return &Orchestrator{
		registry:  d.Registry,
		binding:   d.Binding,
		catalog:   d.Catalog,
		announcer: d.Announcer,
		recorder:  d.Recorder,
		obs:       obs,
		epochs:    epochs,
		actuator:  NewActuator(d.Driver, epochs, obs, d.Timing),
	}, nil
}

func (o *Orchestrator) Epochs() *EpochController { return o.epochs }

func (o *Orchestrator) Binding() domain.Binding { return o.binding }

// StopAll supersedes whatever is pouring and closes every channel.
func (o *Orchestrator) StopAll() error {
	_, err := o.stop()
	return err
}

// Wait blocks until every dispatched dispense has finished and handed its
// records to the recorder, or ctx ends.
func (o *Orchestrator) Wait(ctx context.Context) error {
	return o.inflight.wait(ctx)
}

// PlannedTarget is a target with the time its channel will stay open.
type PlannedTarget struct {
	domain.Target
	Duration time.Duration
}

// Plan resolves a recipe without touching any channel. It fails before
// anything is poured if the recipe is unknown or any of its ingredients is
// not bound.
func (o *Orchestrator) Plan(name string, scale float64) (domain.Recipe, []PlannedTarget, error) {
	if !(scale > 0) {
		return domain.Recipe{}, nil, fmt.Errorf("scale must be positive, got %v", scale)
	}
	recipe, ok := o.catalog.Lookup(name)
	if !ok {
		return domain.Recipe{}, nil, &domain.UnknownRecipeError{Name: name}
	}

	planned := make([]PlannedTarget, 0, len(recipe.Steps))
	for _, step := range recipe.Steps {
		idx, err := o.binding.Resolve(step.Ingredient)
		if err != nil {
			return domain.Recipe{}, nil, &domain.MissingIngredientError{Recipe: recipe.Name, Ingredient: step.Ingredient}
		}
		pt, err := o.plan(idx, step.Ingredient, step.Volume*scale)
		if err != nil {
			return domain.Recipe{}, nil, err
		}
		planned = append(planned, pt)
	}
	return recipe, planned, nil
}

func (o *Orchestrator) plan(idx int, ingredient string, volume float64) (PlannedTarget, error) {
	ch, err := o.registry.Channel(idx)
	if err != nil {
		return PlannedTarget{}, err
	}
	return PlannedTarget{
		Target:   domain.Target{Channel: idx, Ingredient: ingredient, Volume: volume},
		Duration: ch.DurationFor(o.actuator.Clamp(volume)),
	}, nil
}

// Mix supersedes any running dispense and pours the named recipe. It returns
// once the actuations are dispatched; the completion is announced later.
func (o *Orchestrator) Mix(name string, scale float64) (*Handle, error) {
	epoch, _ := o.stop()

	recipe, planned, err := o.Plan(name, scale)
	if err != nil {
		o.reject(domain.KindMix, name, err)
		return nil, err
	}

	parts := make([]string, 0, len(planned)+1)
	parts = append(parts, recipe.Name)
	for _, pt := range planned {
		parts = append(parts, fmt.Sprintf("%s %s", formatVolume(pt.Volume), pt.Ingredient))
	}
	o.announcer.Announce(strings.Join(parts, ", ") + ".")

	ready := recipe.Note
	if ready == "" {
		ready = ReadyMessage
	}
	return o.dispatch(domain.KindMix, recipe.Name, epoch, planned, ready), nil
}

// Pour supersedes any running dispense and pours amount of one ingredient.
func (o *Orchestrator) Pour(ingredient string, amount float64) (*Handle, error) {
	epoch, _ := o.stop()

	idx, err := o.binding.Resolve(ingredient)
	if err != nil {
		o.reject(domain.KindPour, ingredient, err)
		return nil, err
	}
	pt, err := o.plan(idx, ingredient, amount)
	if err != nil {
		o.reject(domain.KindPour, ingredient, err)
		return nil, err
	}

	o.announcer.Announce(fmt.Sprintf("%s %s", formatVolume(amount), ingredient))
	return o.dispatch(domain.KindPour, ingredient, epoch, []PlannedTarget{pt}, ReadyMessage), nil
}

// Flush opens every channel for d to rinse the lines.
func (o *Orchestrator) Flush(d time.Duration) (*Handle, error) {
	epoch, _ := o.stop()
	if d <= 0 {
		err := fmt.Errorf("flush duration must be positive, got %s", d)
		o.reject(domain.KindFlush, "flush", err)
		return nil, err
	}

	slots := o.binding.Slots()
	planned := make([]PlannedTarget, 0, domain.ChannelCount)
	for _, ch := range o.registry.Channels() {
		planned = append(planned, PlannedTarget{
			Target:   domain.Target{Channel: ch.Index, Ingredient: slots[ch.Index]},
			Duration: d,
		})
	}

	o.announcer.Announce(fmt.Sprintf("Flushing all channels for %s", d))
	return o.dispatch(domain.KindFlush, "flush", epoch, planned, "Flush complete"), nil
}

func (o *Orchestrator) stop() (uint64, error) {
	epoch, err := o.epochs.StopAll()
	if err != nil {
		o.obs.LogCritical("stop_all_failed", err, ports.Field{Key: "epoch", Value: epoch})
	}
	return epoch, err
}

func (o *Orchestrator) reject(kind domain.DispenseKind, name string, err error) {
	o.obs.IncCounter("pourflow_rejected_total", 1)
	o.obs.LogError("dispense_rejected", err,
		ports.Field{Key: "kind", Value: string(kind)},
		ports.Field{Key: "name", Value: name})
}

type actuation struct {
	outcome domain.Outcome
	err     error
	record  *domain.DispenseRecord
}

// dispatch fans out one actuation per target and hands the join to a
// supervisor goroutine.
func (o *Orchestrator) dispatch(kind domain.DispenseKind, name string, epoch uint64, planned []PlannedTarget, ready string) *Handle {
	targets := make([]domain.Target, len(planned))
	for i, pt := range planned {
		targets[i] = pt.Target
	}
	h := newHandle(kind, name, epoch, targets)
	o.inflight.add()

	o.obs.LogInfo("dispense_dispatched",
		ports.Field{Key: "id", Value: h.ID.String()},
		ports.Field{Key: "kind", Value: string(kind)},
		ports.Field{Key: "name", Value: name},
		ports.Field{Key: "epoch", Value: epoch},
		ports.Field{Key: "channels", Value: len(planned)})

	results := make([]actuation, len(planned))
	var wg sync.WaitGroup
	wg.Add(len(planned))
	for i, pt := range planned {
		go func(i int, pt PlannedTarget) {
			defer wg.Done()
			results[i] = o.actuate(h, pt)
		}(i, pt)
	}

	go o.supervise(h, &wg, results, ready)
	return h
}

func (o *Orchestrator) actuate(h *Handle, pt PlannedTarget) actuation {
	ch, err := o.registry.Channel(pt.Channel)
	if err != nil {
		return actuation{err: err}
	}

	started := time.Now()
	var outcome domain.Outcome
	if h.Kind == domain.KindFlush {
		outcome, err = o.actuator.RunFor(ch, pt.Duration, h.Epoch)
	} else {
		outcome, err = o.actuator.Run(ch, pt.Volume, h.Epoch)
	}
	finished := time.Now()

	o.obs.IncCounter("pourflow_actuations_total", 1)
	o.obs.ObserveLatency("pourflow_actuation_seconds", finished.Sub(started).Seconds())

	rec := &domain.DispenseRecord{
		DispenseID: h.ID.String(),
		Kind:       h.Kind,
		Name:       h.Name,
		Channel:    pt.Channel,
		Ingredient: pt.Ingredient,
		Volume:     pt.Volume,
		Planned:    pt.Duration,
		StartedAt:  started,
		FinishedAt: finished,
		Outcome:    outcome.String(),
	}
	if err != nil {
		rec.Outcome = "fault"
		rec.Fault = err.Error()
		o.obs.IncCounter("pourflow_hardware_faults_total", 1)
		o.obs.LogCritical("channel_fault", err,
			ports.Field{Key: "id", Value: h.ID.String()},
			ports.Field{Key: "channel", Value: pt.Channel})
	}
	return actuation{outcome: outcome, err: err, record: rec}
}

// supervise waits for every actuation, then announces the result unless a
// newer command superseded this dispense.
func (o *Orchestrator) supervise(h *Handle, wg *sync.WaitGroup, results []actuation, ready string) {
	defer o.inflight.done()
	wg.Wait()

	res := Result{Outcome: domain.Completed}
	for _, a := range results {
		if a.err != nil {
			res.Faults = append(res.Faults, a.err)
		}
	}

	switch {
	case !o.epochs.IsCurrent(h.Epoch):
		res.Outcome = domain.Superseded
		o.obs.IncCounter("pourflow_dispenses_superseded_total", 1)
	case len(res.Faults) > 0:
		o.obs.IncCounter("pourflow_dispenses_total", 1)
		o.announcer.Announce(fmt.Sprintf("Problem pouring %s: %v", h.Name, faultSummary(res.Faults)))
	default:
		o.obs.IncCounter("pourflow_dispenses_total", 1)
		o.announcer.Announce(ready)
	}

	o.obs.LogInfo("dispense_finished",
		ports.Field{Key: "id", Value: h.ID.String()},
		ports.Field{Key: "outcome", Value: res.Outcome.String()},
		ports.Field{Key: "faults", Value: len(res.Faults)})
	h.finish(res)

	if o.recorder == nil {
		return
	}
	for _, a := range results {
		if a.record == nil {
			continue
		}
		if err := o.recorder.Record(a.record); err != nil {
			o.obs.LogError("journal_record_failed", err, ports.Field{Key: "id", Value: h.ID.String()})
		}
	}
}

func faultSummary(faults []error) string {
	channels := make([]string, 0, len(faults))
	for _, err := range faults {
		var hw *domain.HardwareFaultError
		if errors.As(err, &hw) {
			channels = append(channels, fmt.Sprintf("channel %d", hw.Channel))
			continue
		}
		channels = append(channels, err.Error())
	}
	return strings.Join(channels, ", ") + " failed"
}

func formatVolume(v float64) string {
	return fmt.Sprintf("%g ml", float64(int64(v*10+0.5))/10)
}

// inflight counts dispenses whose supervisor has not returned yet. Unlike a
// WaitGroup it tolerates new dispatches racing a wait.
type inflight struct {
	mu   sync.Mutex
	n    int
	idle chan struct{}
}

func (f *inflight) add() {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.n == 0 {
		f.idle = make(chan struct{})
	}
	f.n++
}

func (f *inflight) done() {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.n--
	if f.n == 0 {
		close(f.idle)
	}
}

func (f *inflight) wait(ctx context.Context) error {
	f.mu.Lock()
	if f.n == 0 {
		f.mu.Unlock()
		return nil
	}
	idle := f.idle
	f.mu.Unlock()

	select {
	case <-idle:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}
