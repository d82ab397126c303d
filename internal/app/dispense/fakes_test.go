package dispense

import (
	"sort"
	"sync"
	"time"

	"github.com/ghalamif/PourFlow/internal/domain"
)

type levelEvent struct {
	index   int
	flowing bool
	at      time.Time
}

type recordingDriver struct {
	mu       sync.Mutex
	events   []levelEvent
	failOpen map[int]error
}

func newRecordingDriver() *recordingDriver {
	return &recordingDriver{failOpen: make(map[int]error)}
}

func (d *recordingDriver) SetLevel(index int, flowing bool) error {
	d.mu.Lock()
	defer d.mu.Unlock()
	d.events = append(d.events, levelEvent{index: index, flowing: flowing, at: time.Now()})
	if flowing {
		if err := d.failOpen[index]; err != nil {
			return err
		}
	}
	return nil
}

func (d *recordingDriver) Close() error { return nil }

func (d *recordingDriver) snapshot() []levelEvent {
	d.mu.Lock()
	defer d.mu.Unlock()
	return append([]levelEvent(nil), d.events...)
}

func (d *recordingDriver) reset() {
	d.mu.Lock()
	defer d.mu.Unlock()
	d.events = nil
}

func (d *recordingDriver) opens() int {
	n := 0
	for _, e := range d.snapshot() {
		if e.flowing {
			n++
		}
	}
	return n
}

// onChannel returns the events of a single channel in order.
func (d *recordingDriver) onChannel(index int) []levelEvent {
	var out []levelEvent
	for _, e := range d.snapshot() {
		if e.index == index {
			out = append(out, e)
		}
	}
	return out
}

// openSpan is the time between the first open of a channel and the next
// close command on it.
func (d *recordingDriver) openSpan(index int) (time.Duration, bool) {
	events := d.onChannel(index)
	for i, e := range events {
		if !e.flowing {
			continue
		}
		for _, next := range events[i+1:] {
			if !next.flowing {
				return next.at.Sub(e.at), true
			}
		}
	}
	return 0, false
}

// lastOpenSpan is like openSpan but starts from the most recent open.
func (d *recordingDriver) lastOpenSpan(index int) (time.Duration, bool) {
	events := d.onChannel(index)
	for i := len(events) - 1; i >= 0; i-- {
		if !events[i].flowing {
			continue
		}
		for _, next := range events[i+1:] {
			if !next.flowing {
				return next.at.Sub(events[i].at), true
			}
		}
		return 0, false
	}
	return 0, false
}

// lastLevels reports the final commanded level of every channel.
func (d *recordingDriver) lastLevels() map[int]bool {
	out := make(map[int]bool)
	for _, e := range d.snapshot() {
		out[e.index] = e.flowing
	}
	return out
}

type recordingAnnouncer struct {
	mu    sync.Mutex
	lines []string
}

func (a *recordingAnnouncer) Announce(text string) {
	a.mu.Lock()
	defer a.mu.Unlock()
	a.lines = append(a.lines, text)
}

func (a *recordingAnnouncer) all() []string {
	a.mu.Lock()
	defer a.mu.Unlock()
	return append([]string(nil), a.lines...)
}

type recordingRecorder struct {
	mu      sync.Mutex
	records []*domain.DispenseRecord
	got     chan struct{}
}

func newRecordingRecorder() *recordingRecorder {
	return &recordingRecorder{got: make(chan struct{}, 64)}
}

func (r *recordingRecorder) Record(rec *domain.DispenseRecord) error {
	r.mu.Lock()
	r.records = append(r.records, rec)
	r.mu.Unlock()
	r.got <- struct{}{}
	return nil
}

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

func uniformRates(rate float64) []float64 {
	rates := make([]float64, domain.ChannelCount)
	for i := range rates {
		rates[i] = rate
	}
	return rates
}
