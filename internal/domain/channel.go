package domain

import (
	"fmt"
	"time"
)

// ChannelCount is the number of pump outputs on the relay board.
const ChannelCount = 8

// DefaultRates is the measured flow of each pump on the reference machine, in
// millilitres per second. Computed by timing how long it took to pump 100 ml.
var DefaultRates = []float64{
	100.0 / 55.0,
	100.0 / 56.0,
	100.0 / 60.0,
	100.0 / 62.0,
	100.0 / 55.0,
	100.0 / 57.0,
	100.0 / 55.0,
	100.0 / 63.0,
}

// Channel is one physical pump output.
type Channel struct {
	Index int
	Rate  float64
}

// DurationFor converts a volume into the time the channel has to stay open.
func (c Channel) DurationFor(volume float64) time.Duration {
	if volume <= 0 || c.Rate <= 0 {
		return 0
	}
	return time.Duration(volume / c.Rate * float64(time.Second))
}

// Registry is the fixed set of calibrated channels. It is never mutated after
// construction.
type Registry struct {
	channels [ChannelCount]Channel
}

func NewRegistry(rates []float64) (*Registry, error) {
	if len(rates) != ChannelCount {
		return nil, &InvalidChannelConfigError{Index: -1, Reason: fmt.Sprintf("expected %d rates, got %d", ChannelCount, len(rates))}
	}
	r := &Registry{}
	for i, rate := range rates {
		if !(rate > 0) {
			return nil, &InvalidChannelConfigError{Index: i, Reason: "rate must be positive"}
		}
		r.channels[i] = Channel{Index: i, Rate: rate}
	}
	return r, nil
}

func (r *Registry) Channel(index int) (Channel, error) {
	if index < 0 || index >= ChannelCount {
		return Channel{}, &InvalidChannelConfigError{Index: index, Reason: "channel out of range"}
	}
	return r.channels[index], nil
}

func (r *Registry) Channels() []Channel {
	out := make([]Channel, ChannelCount)
	copy(out, r.channels[:])
	return out
}
