package dispense

import (
	"errors"
	"sync"
	"time"

	"github.com/ghalamif/PourFlow/internal/domain"
	"github.com/ghalamif/PourFlow/internal/ports"
)

const (
	DefaultPollInterval  = 100 * time.Millisecond
	DefaultMaxSinglePour = 100.0
)

// Timing tunes the actuator. Zero values fall back to the defaults.
type Timing struct {
	PollInterval  time.Duration
	MaxSinglePour float64
}

func (t Timing) withDefaults() Timing {
	if t.PollInterval <= 0 {
		t.PollInterval = DefaultPollInterval
	}
	if t.MaxSinglePour <= 0 {
		t.MaxSinglePour = DefaultMaxSinglePour
	}
	return t
}

// Actuator drives one channel at a time per channel index.
type Actuator struct {
	driver ports.ChannelDriver
	epochs *EpochController
	obs    ports.Observability
	timing Timing

	locks [domain.ChannelCount]sync.Mutex
}

func NewActuator(driver ports.ChannelDriver, epochs *EpochController, obs ports.Observability, timing Timing) *Actuator {
	if obs == nil {
		obs = ports.NopObservability{}
	}
	return &Actuator{
		driver: driver,
		epochs: epochs,
		obs:    obs,
		timing: timing.withDefaults(),
	}
}

// Clamp limits a single pour to [0, MaxSinglePour].
func (a *Actuator) Clamp(volume float64) float64 {
	if !(volume > 0) {
		return 0
	}
	if volume > a.timing.MaxSinglePour {
		return a.timing.MaxSinglePour
	}
	return volume
}

func (a *Actuator) PollInterval() time.Duration {
	return a.timing.PollInterval
}

// Run pours volume through ch unless the epoch moves past captured first.
func (a *Actuator) Run(ch domain.Channel, volume float64, captured uint64) (domain.Outcome, error) {
	return a.RunFor(ch, ch.DurationFor(a.Clamp(volume)), captured)
}

// RunFor keeps ch open for d. The channel is commanded closed exactly once
// before RunFor returns, whatever happened while it was open. Hardware
// failures come back as *domain.HardwareFaultError; supersession is not an
// error.
func (a *Actuator) RunFor(ch domain.Channel, d time.Duration, captured uint64) (outcome domain.Outcome, err error) {
	if ch.Index < 0 || ch.Index >= domain.ChannelCount {
		return domain.Completed, &domain.InvalidChannelConfigError{Index: ch.Index, Reason: "channel out of range"}
	}

	lock := &a.locks[ch.Index]
	lock.Lock()
	defer lock.Unlock()

	opened := false
	defer func() {
		if cerr := a.driver.SetLevel(ch.Index, false); cerr != nil {
			err = errors.Join(err, &domain.HardwareFaultError{Channel: ch.Index, Op: "close", Err: cerr})
		}
		if opened {
			a.obs.AddGauge("pourflow_channels_open", -1)
		}
	}()

	if !a.epochs.IsCurrent(captured) {
		return domain.Superseded, nil
	}
	if d <= 0 {
		return domain.Completed, nil
	}

	start := time.Now()
	attempted, current, oerr := a.epochs.openIfCurrent(captured, func() error {
		return a.driver.SetLevel(ch.Index, true)
	})
	if oerr != nil {
		return domain.Completed, &domain.HardwareFaultError{Channel: ch.Index, Op: "open", Err: oerr}
	}
	if !attempted {
		return domain.Superseded, nil
	}
	opened = true
	a.obs.AddGauge("pourflow_channels_open", 1)
	if !current {
		return domain.Superseded, nil
	}

	for {
		if !a.epochs.IsCurrent(captured) {
			return domain.Superseded, nil
		}
		remaining := d - time.Since(start)
		if remaining <= 0 {
			return domain.Completed, nil
		}
		if remaining > a.timing.PollInterval {
			remaining = a.timing.PollInterval
		}
		time.Sleep(remaining)
	}
}
