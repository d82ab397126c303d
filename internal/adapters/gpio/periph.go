package gpio

import (
	"errors"
	"fmt"
	"sync"

	"periph.io/x/conn/v3/gpio"
	"periph.io/x/conn/v3/gpio/gpioreg"
	"periph.io/x/host/v3"

	"github.com/ghalamif/PourFlow/internal/domain"
	"github.com/ghalamif/PourFlow/internal/ports"
)

// DefaultPins is the BCM wiring of the reference relay board, channel 0 first.
var DefaultPins = []string{"GPIO27", "GPIO17", "GPIO18", "GPIO15", "GPIO14", "GPIO4", "GPIO3", "GPIO2"}

// Config selects the pins driving each relay.
type Config struct {
	Pins []string `yaml:"pins"`
	// Relay boards like the reference Kootek module switch on when the pin is
	// pulled low; ActiveHigh flips that.
	ActiveHigh bool `yaml:"active_high"`
}

func (c *Config) ApplyDefaults() {
	if len(c.Pins) == 0 {
		c.Pins = append([]string(nil), DefaultPins...)
	}
}

func (c *Config) Validate() error {
	if len(c.Pins) != domain.ChannelCount {
		return fmt.Errorf("expected %d pins, got %d", domain.ChannelCount, len(c.Pins))
	}
	seen := make(map[string]struct{}, len(c.Pins))
	for _, p := range c.Pins {
		if p == "" {
			return errors.New("pin name must not be empty")
		}
		if _, ok := seen[p]; ok {
			return fmt.Errorf("pin %s used twice", p)
		}
		seen[p] = struct{}{}
	}
	return nil
}

// PeriphDriver drives a relay board through periph.io GPIO pins.
type PeriphDriver struct {
	mu         sync.Mutex
	pins       [domain.ChannelCount]gpio.PinIO
	activeHigh bool
}

func NewPeriphDriver(cfg Config) (*PeriphDriver, error) {
	cfg.ApplyDefaults()
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	if _, err := host.Init(); err != nil {
		return nil, fmt.Errorf("periph host init: %w", err)
	}

	d := &PeriphDriver{activeHigh: cfg.ActiveHigh}
	for i, name := range cfg.Pins {
		pin := gpioreg.ByName(name)
		if pin == nil {
			return nil, fmt.Errorf("gpio pin %q not found", name)
		}
		d.pins[i] = pin
	}
	return d, nil
}

func (d *PeriphDriver) SetLevel(index int, flowing bool) error {
	if index < 0 || index >= domain.ChannelCount {
		return fmt.Errorf("channel %d out of range", index)
	}
	d.mu.Lock()
	defer d.mu.Unlock()
	return d.pins[index].Out(d.level(flowing))
}

func (d *PeriphDriver) level(flowing bool) gpio.Level {
	if d.activeHigh {
		return gpio.Level(flowing)
	}
	return gpio.Level(!flowing)
}

// Close leaves every relay in the closed position.
func (d *PeriphDriver) Close() error {
	var errs []error
	for i := range d.pins {
		if err := d.SetLevel(i, false); err != nil {
			errs = append(errs, err)
		}
	}
	return errors.Join(errs...)
}

var _ ports.ChannelDriver = (*PeriphDriver)(nil)
