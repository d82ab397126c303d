package dispense

import (
	"errors"
	"sync/atomic"

	"github.com/ghalamif/PourFlow/internal/domain"
	"github.com/ghalamif/PourFlow/internal/ports"
)

// EpochController owns the dispense generation counter and the stop-all
// operation.
type EpochController struct {
	driver ports.ChannelDriver
	obs    ports.Observability
	epoch  atomic.Uint64
}

func NewEpochController(driver ports.ChannelDriver, obs ports.Observability) *EpochController {
	if obs == nil {
		obs = ports.NopObservability{}
	}
	return &EpochController{driver: driver, obs: obs}
}

// StopAll supersedes every in-flight actuation and commands all channels
// closed, whether or not anything was running. Every channel is attempted
// even if some of them fail. It returns the new epoch.
func (c *EpochController) StopAll() (uint64, error) {
	epoch := c.epoch.Add(1)

	var errs []error
	for i := 0; i < domain.ChannelCount; i++ {
		if err := c.driver.SetLevel(i, false); err != nil {
			errs = append(errs, &domain.HardwareFaultError{Channel: i, Op: "close", Err: err})
		}
	}

	c.obs.IncCounter("pourflow_stops_total", 1)
	c.obs.SetGauge("pourflow_epoch", float64(epoch))
	return epoch, errors.Join(errs...)
}

func (c *EpochController) Current() uint64 {
	return c.epoch.Load()
}

// IsCurrent reports whether no StopAll happened since captured was read.
func (c *EpochController) IsCurrent(captured uint64) bool {
	return c.epoch.Load() == captured
}

// openIfCurrent runs open only if captured is still the current epoch. No
// lock is held across open, so a driver call that hangs on one channel never
// delays StopAll. A stop that lands while open is running is reported as
// current=false; the caller then closes the channel straight away.
func (c *EpochController) openIfCurrent(captured uint64, open func() error) (opened, current bool, err error) {
	if !c.IsCurrent(captured) {
		return false, false, nil
	}
	err = open()
	return true, c.IsCurrent(captured), err
}
