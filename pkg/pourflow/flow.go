package pourflow

import (
	"context"
	"fmt"
)

// Flow is a convenience builder that lets callers say Conf → Bind → Serve
// without touching the underlying hexagonal wiring.
type Flow struct {
	cfg  *Config
	opts []RuntimeOption
}

// FlowOption mutates the Flow after configuration is loaded.
type FlowOption func(*Flow)

// Conf loads YAML from disk, applies FlowOption values, and returns a Flow builder.
func Conf(path string, opts ...FlowOption) (*Flow, error) {
	cfg, err := LoadConfig(path)
	if err != nil {
		return nil, err
	}
	return ConfFromConfig(cfg, opts...)
}

// ConfFromConfig bootstraps a Flow from an in-memory Config.
func ConfFromConfig(cfg *Config, opts ...FlowOption) (*Flow, error) {
	if cfg == nil {
		return nil, fmt.Errorf("config is required")
	}
	f := &Flow{cfg: cfg}
	for _, opt := range opts {
		if opt != nil {
			opt(f)
		}
	}
	return f, nil
}

// Config returns the underlying configuration so callers can tweak it before building a runtime.
func (f *Flow) Config() *Config {
	if f == nil {
		return nil
	}
	return f.cfg
}

// Options appends raw RuntimeOption values to the builder for advanced scenarios.
func (f *Flow) Options(opts ...RuntimeOption) *Flow {
	if f == nil {
		return nil
	}
	f.appendOptions(opts...)
	return f
}

// Bind sets the ingredient on each channel, channel 0 first.
func (f *Flow) Bind(ingredients ...string) *Flow {
	if f == nil {
		return nil
	}
	f.cfg.Binding = append([]string(nil), ingredients...)
	return f
}

// Hardware swaps the pump driver, e.g. for a simulator.
func (f *Flow) Hardware(d ChannelDriver) *Flow {
	if f == nil {
		return nil
	}
	if d != nil {
		f.appendOptions(WithDriver(d))
	}
	return f
}

// AnnounceTo routes user-visible messages to fn.
func (f *Flow) AnnounceTo(fn AnnounceFunc) *Flow {
	if f == nil {
		return nil
	}
	f.appendOptions(WithAnnouncer(NewCallbackAnnouncer(fn)))
	return f
}

// Build validates the configuration and returns a Runtime ready to start.
func (f *Flow) Build() (*Runtime, error) {
	if f == nil {
		return nil, fmt.Errorf("flow is nil")
	}
	return NewRuntime(f.cfg, f.opts...)
}

// Serve is a shortcut for Build + runtime.Run.
func (f *Flow) Serve(ctx context.Context) error {
	rt, err := f.Build()
	if err != nil {
		return err
	}
	return rt.Run(ctx)
}

// WithFlowOptions appends RuntimeOption values during Conf.
func WithFlowOptions(opts ...RuntimeOption) FlowOption {
	return func(f *Flow) {
		if f != nil {
			f.appendOptions(opts...)
		}
	}
}

func (f *Flow) appendOptions(opts ...RuntimeOption) {
	for _, opt := range opts {
		if opt != nil {
			f.opts = append(f.opts, opt)
		}
	}
}
