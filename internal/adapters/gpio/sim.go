package gpio

import (
	"fmt"
	"sync"
	"time"

	"github.com/ghalamif/PourFlow/internal/domain"
	"github.com/ghalamif/PourFlow/internal/ports"
)

// LevelChange is one command seen by the SimDriver.
type LevelChange struct {
	Channel int
	Flowing bool
	At      time.Time
}

// SimDriver stands in for the relay board on a bench. It keeps the current
// level of every channel and a log of every command.
type SimDriver struct {
	mu      sync.Mutex
	levels  [domain.ChannelCount]bool
	history []LevelChange
	faults  map[int]error
	onSet   func(LevelChange)
}

func NewSimDriver() *SimDriver {
	return &SimDriver{faults: make(map[int]error)}
}

// OnSet registers a hook called after every command, e.g. to print it.
func (d *SimDriver) OnSet(fn func(LevelChange)) {
	d.mu.Lock()
	defer d.mu.Unlock()
	d.onSet = fn
}

// FailOpen makes every open of the channel fail with err. A nil err clears it.
func (d *SimDriver) FailOpen(index int, err error) {
	d.mu.Lock()
	defer d.mu.Unlock()
	if err == nil {
		delete(d.faults, index)
		return
	}
	d.faults[index] = err
}

func (d *SimDriver) SetLevel(index int, flowing bool) error {
	if index < 0 || index >= domain.ChannelCount {
		return fmt.Errorf("channel %d out of range", index)
	}
	d.mu.Lock()
	if err := d.faults[index]; err != nil && flowing {
		d.mu.Unlock()
		return err
	}
	change := LevelChange{Channel: index, Flowing: flowing, At: time.Now()}
	d.levels[index] = flowing
	d.history = append(d.history, change)
	hook := d.onSet
	d.mu.Unlock()

	if hook != nil {
		hook(change)
	}
	return nil
}

func (d *SimDriver) Level(index int) bool {
	d.mu.Lock()
	defer d.mu.Unlock()
	return d.levels[index]
}

func (d *SimDriver) History() []LevelChange {
	d.mu.Lock()
	defer d.mu.Unlock()
	return append([]LevelChange(nil), d.history...)
}

func (d *SimDriver) Close() error {
	d.mu.Lock()
	defer d.mu.Unlock()
	for i := range d.levels {
		d.levels[i] = false
	}
	return nil
}

var _ ports.ChannelDriver = (*SimDriver)(nil)
