package domain

import (
	"errors"
	"testing"
	"time"
)

func TestNewRegistryValidatesRates(t *testing.T) {
	if _, err := NewRegistry(DefaultRates); err != nil {
		t.Fatalf("default rates: %v", err)
	}

	var cfgErr *InvalidChannelConfigError
	if _, err := NewRegistry(DefaultRates[:7]); !errors.As(err, &cfgErr) {
		t.Fatalf("expected InvalidChannelConfigError for short rates, got %v", err)
	}

	rates := append([]float64(nil), DefaultRates...)
	rates[3] = 0
	if _, err := NewRegistry(rates); !errors.As(err, &cfgErr) || cfgErr.Index != 3 {
		t.Fatalf("expected error on channel 3, got %v", err)
	}
}

func TestChannelDurationFor(t *testing.T) {
	ch := Channel{Index: 5, Rate: 2.0}
	if got := ch.DurationFor(30); got != 15*time.Second {
		t.Fatalf("expected 15s, got %s", got)
	}
	if got := ch.DurationFor(0); got != 0 {
		t.Fatalf("expected zero duration, got %s", got)
	}
	if got := ch.DurationFor(-5); got != 0 {
		t.Fatalf("expected zero duration for negative volume, got %s", got)
	}
}

func TestRegistryChannelsAreCopies(t *testing.T) {
	reg, err := NewRegistry(DefaultRates)
	if err != nil {
		t.Fatalf("registry: %v", err)
	}
	chans := reg.Channels()
	chans[0].Rate = 999

	ch, err := reg.Channel(0)
	if err != nil {
		t.Fatalf("channel: %v", err)
	}
	if ch.Rate == 999 {
		t.Fatalf("registry must not be mutated through Channels()")
	}
	if _, err := reg.Channel(ChannelCount); err == nil {
		t.Fatalf("expected out of range error")
	}
}
