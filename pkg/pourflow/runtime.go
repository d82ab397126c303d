package pourflow

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"os"
	"strings"
	"sync"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/ghalamif/PourFlow/internal/adapters/announce"
	"github.com/ghalamif/PourFlow/internal/adapters/catalog"
	"github.com/ghalamif/PourFlow/internal/adapters/gpio"
	"github.com/ghalamif/PourFlow/internal/adapters/journal"
	"github.com/ghalamif/PourFlow/internal/adapters/observability"
	"github.com/ghalamif/PourFlow/internal/adapters/opcua"
	"github.com/ghalamif/PourFlow/internal/adapters/queue"
	"github.com/ghalamif/PourFlow/internal/adapters/sink"
	"github.com/ghalamif/PourFlow/internal/app/dispense"
	"github.com/ghalamif/PourFlow/internal/app/menu"
	"github.com/ghalamif/PourFlow/internal/app/pipeline"
	"github.com/ghalamif/PourFlow/internal/domain"
	"github.com/ghalamif/PourFlow/internal/ports"
)

// JournalOff as journal.dir disables the dispense journal.
const JournalOff = "off"

// RuntimeOption customizes the dependencies used by Runtime.
type RuntimeOption func(*runtimeOverrides)

type runtimeOverrides struct {
	driver        ChannelDriver
	catalog       Catalog
	announcer     Announcer
	commands      CommandSource
	journal       Journal
	queue         RecordQueue
	sink          RecordSink
	observability Observability
	logger        *slog.Logger
}

// WithDriver injects the pump driver (a simulator, a custom relay board, etc.).
func WithDriver(d ChannelDriver) RuntimeOption {
	return func(o *runtimeOverrides) {
		o.driver = d
	}
}

// WithCatalog replaces the recipe catalog named in the config.
func WithCatalog(c Catalog) RuntimeOption {
	return func(o *runtimeOverrides) {
		o.catalog = c
	}
}

// WithAnnouncer routes user-visible messages somewhere other than stdout.
func WithAnnouncer(a Announcer) RuntimeOption {
	return func(o *runtimeOverrides) {
		o.announcer = a
	}
}

// WithCommandSource attaches an operator input such as the console.
func WithCommandSource(src CommandSource) RuntimeOption {
	return func(o *runtimeOverrides) {
		o.commands = src
	}
}

// WithJournal lets callers bring their own journal implementation.
func WithJournal(j Journal) RuntimeOption {
	return func(o *runtimeOverrides) {
		o.journal = j
	}
}

// WithRecordQueue injects a custom queue between journal and sink.
func WithRecordQueue(q RecordQueue) RuntimeOption {
	return func(o *runtimeOverrides) {
		o.queue = q
	}
}

// WithRecordSink sends dispense records to any database or API.
func WithRecordSink(s RecordSink) RuntimeOption {
	return func(o *runtimeOverrides) {
		o.sink = s
	}
}

// WithObservability plugs in a custom observability backend.
func WithObservability(obs Observability) RuntimeOption {
	return func(o *runtimeOverrides) {
		o.observability = obs
	}
}

// WithLogger sets the logger used by the default observability backend and
// the log sink.
func WithLogger(l *slog.Logger) RuntimeOption {
	return func(o *runtimeOverrides) {
		o.logger = l
	}
}

// Runtime wires the dispense orchestrator to its hardware, catalog and
// journal, and exposes lifecycle hooks for embedding PourFlow in any Go
// service.
type Runtime struct {
	cfg       *Config
	logger    *slog.Logger
	obs       ports.Observability
	gatherer  prometheus.Gatherer
	registry  *domain.Registry
	binding   domain.Binding
	catalog   ports.Catalog
	driver    ports.ChannelDriver
	announcer ports.Announcer
	commands  ports.CommandSource
	journal   ports.Journal
	queue     ports.RecordQueue
	sink      ports.RecordSink
	orch      *dispense.Orchestrator
	flusher   *pipeline.Flusher
	db        *sql.DB

	mu          sync.Mutex
	started     bool
	metricsSrv  *http.Server
	gaugeStopCh chan struct{}
	flushCancel context.CancelFunc
	flushDoneCh chan struct{}
	cmdStopCh   chan struct{}
	cmdDoneCh   chan struct{}
}

// NewRuntime builds the default adapters (driver per hardware.driver, YAML
// catalog, file journal, in-memory queue, SQL or log sink, Prometheus
// observability) and closes every pump. A binding that is not exactly eight
// slots, or names an ingredient no recipe uses, is fatal.
func NewRuntime(cfg *Config, opts ...RuntimeOption) (rt *Runtime, err error) {
	if cfg == nil {
		return nil, fmt.Errorf("config is required")
	}
	if err := cfg.Normalize(); err != nil {
		return nil, err
	}

	var overrides runtimeOverrides
	for _, opt := range opts {
		if opt != nil {
			opt(&overrides)
		}
	}

	r := &Runtime{cfg: cfg, logger: overrides.logger}
	if r.logger == nil {
		r.logger = slog.Default()
	}
	// release whatever was opened if a later step fails
	defer func() {
		if err != nil {
			_ = r.closeResources()
		}
	}()

	r.obs = overrides.observability
	if r.obs == nil {
		reg := prometheus.NewRegistry()
		reg.MustRegister(collectors.NewGoCollector(), collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}))
		r.obs = observability.NewPromObsWith(reg, r.logger)
		r.gatherer = reg
	}

	if r.registry, err = domain.NewRegistry(cfg.Channels.Rates); err != nil {
		return nil, err
	}
	if r.binding, err = domain.Bind(cfg.Binding); err != nil {
		return nil, err
	}

	r.catalog = overrides.catalog
	if r.catalog == nil {
		if r.catalog, err = catalog.Load(cfg.Catalog.Path); err != nil {
			return nil, err
		}
	}
	if err = menu.ValidateKnownIngredients(r.binding, r.catalog); err != nil {
		return nil, err
	}

	r.driver = overrides.driver
	if r.driver == nil {
		if r.driver, err = newDriver(cfg.Hardware); err != nil {
			return nil, err
		}
	}

	r.announcer = overrides.announcer
	if r.announcer == nil {
		r.announcer = announce.NewWriter(os.Stdout)
	}
	r.commands = overrides.commands

	var recorder ports.Recorder
	if overrides.journal != nil || cfg.Journal.Dir != JournalOff {
		if recorder, err = r.openJournal(cfg, overrides); err != nil {
			return nil, err
		}
	}

	r.orch, err = dispense.NewOrchestrator(dispense.Deps{
		Registry:  r.registry,
		Binding:   r.binding,
		Catalog:   r.catalog,
		Driver:    r.driver,
		Announcer: r.announcer,
		Recorder:  recorder,
		Obs:       r.obs,
		Timing: dispense.Timing{
			PollInterval:  cfg.Dispense.PollInterval,
			MaxSinglePour: cfg.Dispense.MaxSinglePour,
		},
	})
	if err != nil {
		return nil, err
	}

	// pumps may have been left running by a crash
	if err = r.orch.StopAll(); err != nil {
		return nil, fmt.Errorf("close pumps: %w", err)
	}

	if r.journal != nil {
		if _, err = pipeline.Replay(r.journal, r.queue, cfg.Policy, r.obs); err != nil {
			return nil, fmt.Errorf("journal replay: %w", err)
		}
	}

	if len(r.Available()) == 0 {
		r.obs.LogError("no_recipes_available", errors.New("no cocktails for those ingredients"),
			Field{Key: "binding", Value: strings.Join(r.binding.Ingredients(), ", ")})
	}
	return r, nil
}

func newDriver(hw HardwareConfig) (ports.ChannelDriver, error) {
	switch hw.Driver {
	case DriverGPIO:
		return gpio.NewPeriphDriver(hw.GPIO)
	case DriverOPCUA:
		d, err := opcua.NewDriver(hw.OPCUA)
		if err != nil {
			return nil, err
		}
		ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
		defer cancel()
		if err := d.Connect(ctx); err != nil {
			return nil, err
		}
		return d, nil
	default:
		return gpio.NewSimDriver(), nil
	}
}

func (r *Runtime) openJournal(cfg *Config, overrides runtimeOverrides) (ports.Recorder, error) {
	r.journal = overrides.journal
	if r.journal == nil {
		var jopts []journal.Option
		if cfg.Journal.SyncOnAppend {
			jopts = append(jopts, journal.WithSyncOnAppend())
		}
		fj, err := journal.NewFileJournal(cfg.Journal.Dir, jopts...)
		if err != nil {
			return nil, fmt.Errorf("open journal: %w", err)
		}
		r.journal = fj
	}

	r.queue = overrides.queue
	if r.queue == nil {
		r.queue = queue.NewMemQueue(cfg.Policy.MaxQueueLen)
	}

	r.sink = overrides.sink
	if r.sink == nil {
		switch cfg.Journal.Driver {
		case "":
			r.sink = sink.NewLogSink(r.logger)
		default:
			ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
			defer cancel()
			db, s, err := sink.Open(ctx, sink.Dialect(cfg.Journal.Driver), cfg.Journal.ConnString, cfg.Journal.Table)
			if err != nil {
				return nil, err
			}
			r.db = db
			r.sink = s
		}
	}

	r.flusher = pipeline.NewFlusher(r.journal, r.queue, r.sink, cfg.Policy, r.obs)
	return pipeline.NewJournalRecorder(r.journal, r.queue, cfg.Policy, r.obs), nil
}

// Available lists the recipes the current binding can make, sorted.
func (r *Runtime) Available() []string {
	return menu.Available(r.binding, r.catalog).Sorted()
}

// Binding returns the ingredient bound to each channel, channel 0 first.
func (r *Runtime) Binding() []string {
	return r.binding.Slots()
}

// Catalog exposes the recipe table in use.
func (r *Runtime) Catalog() Catalog {
	return r.catalog
}

// Mix pours a recipe at the configured scale.
func (r *Runtime) Mix(name string) (*Handle, error) {
	return r.orch.Mix(name, r.cfg.Dispense.Scale)
}

// MixScaled pours a recipe with every volume multiplied by scale.
func (r *Runtime) MixScaled(name string, scale float64) (*Handle, error) {
	return r.orch.Mix(name, scale)
}

// Pour dispenses the configured single-pour amount of one ingredient.
func (r *Runtime) Pour(ingredient string) (*Handle, error) {
	return r.orch.Pour(ingredient, r.cfg.Dispense.PourAmount)
}

// PourVolume dispenses ml of one ingredient.
func (r *Runtime) PourVolume(ingredient string, ml float64) (*Handle, error) {
	return r.orch.Pour(ingredient, ml)
}

// Flush runs every channel for d; zero uses dispense.flush_duration.
func (r *Runtime) Flush(d time.Duration) (*Handle, error) {
	if d == 0 {
		d = r.cfg.Dispense.FlushDuration
	}
	return r.orch.Flush(d)
}

// StopAll supersedes any running dispense and closes every pump.
func (r *Runtime) StopAll() error {
	return r.orch.StopAll()
}

// Plan resolves a recipe at the configured scale without pouring.
func (r *Runtime) Plan(name string) (Recipe, []PlannedTarget, error) {
	return r.orch.Plan(name, r.cfg.Dispense.Scale)
}

// Start launches the journal flusher, the metrics server and the command
// loop, then greets the operator. It returns immediately; call Run to block
// on a context instead.
func (r *Runtime) Start() error {
	if r == nil {
		return fmt.Errorf("runtime is nil")
	}
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.started {
		return fmt.Errorf("runtime already started")
	}

	if r.flusher != nil {
		ctx, cancel := context.WithCancel(context.Background())
		done := make(chan struct{})
		r.flushCancel, r.flushDoneCh = cancel, done
		go func() {
			r.flusher.Run(ctx)
			close(done)
		}()
	}

	if r.cfg.Metrics.Enabled() {
		r.startMetrics()
	}

	if r.commands != nil {
		in := make(chan domain.Command, 16)
		stop, done := make(chan struct{}), make(chan struct{})
		if err := r.commands.Start(in); err != nil {
			r.abortStartLocked()
			return fmt.Errorf("start command source: %w", err)
		}
		r.cmdStopCh, r.cmdDoneCh = stop, done
		go r.commandLoop(in, stop, done)
	}

	if available := r.Available(); len(available) > 0 {
		r.announcer.Announce(fmt.Sprintf("Available drinks are: %s.", strings.Join(available, ", ")))
	} else {
		r.announcer.Announce("No cocktails for those ingredients")
	}

	r.started = true
	r.announcer.Announce("Ready to serve!")
	return nil
}

// abortStartLocked stops the flusher and metrics server of a Start that
// failed half way. r.mu must be held.
func (r *Runtime) abortStartLocked() {
	if r.gaugeStopCh != nil {
		close(r.gaugeStopCh)
		r.gaugeStopCh = nil
	}
	if r.metricsSrv != nil {
		_ = r.metricsSrv.Close()
		r.metricsSrv = nil
	}
	if r.flushCancel != nil {
		r.flushCancel()
		<-r.flushDoneCh
		r.flushCancel, r.flushDoneCh = nil, nil
	}
}

// Run starts the runtime and blocks until the provided context is cancelled.
// Upon cancellation it attempts a graceful shutdown.
func (r *Runtime) Run(ctx context.Context) error {
	if err := r.Start(); err != nil {
		return err
	}
	<-ctx.Done()
	shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	return r.Shutdown(shutdownCtx)
}

// Shutdown closes every pump, stops the command source and metrics server,
// drains the journal and releases the driver and database.
func (r *Runtime) Shutdown(ctx context.Context) error {
	var errs []error

	r.mu.Lock()
	cmdStop, cmdDone := r.cmdStopCh, r.cmdDoneCh
	flushCancel, flushDone := r.flushCancel, r.flushDoneCh
	metricsSrv, gaugeStop := r.metricsSrv, r.gaugeStopCh
	r.cmdStopCh, r.cmdDoneCh = nil, nil
	r.flushCancel, r.flushDoneCh = nil, nil
	r.metricsSrv, r.gaugeStopCh = nil, nil
	r.started = false
	r.mu.Unlock()

	// no new commands once the pumps are being closed
	if cmdStop != nil {
		if err := r.commands.Stop(); err != nil {
			errs = append(errs, err)
		}
		close(cmdStop)
		<-cmdDone
	}

	if err := r.orch.StopAll(); err != nil {
		errs = append(errs, err)
	}
	if err := r.orch.Wait(ctx); err != nil {
		errs = append(errs, fmt.Errorf("waiting for dispenses: %w", err))
	}

	if gaugeStop != nil {
		close(gaugeStop)
	}
	if metricsSrv != nil {
		if err := metricsSrv.Shutdown(ctx); err != nil && !errors.Is(err, http.ErrServerClosed) {
			errs = append(errs, err)
		}
	}

	if flushCancel != nil {
		flushCancel()
		select {
		case <-flushDone:
		case <-ctx.Done():
			errs = append(errs, ctx.Err())
		}
	}
	if r.flusher != nil && !r.flusher.Drain() {
		errs = append(errs, errors.New("journal sink unavailable; records kept for replay"))
	}

	if err := r.closeResources(); err != nil {
		errs = append(errs, err)
	}
	return errors.Join(errs...)
}

func (r *Runtime) closeResources() error {
	var errs []error
	if r.driver != nil {
		if err := r.driver.Close(); err != nil {
			errs = append(errs, err)
		}
		r.driver = nil
	}
	if r.journal != nil {
		if err := r.journal.Close(); err != nil {
			errs = append(errs, err)
		}
		r.journal = nil
	}
	if r.db != nil {
		if err := r.db.Close(); err != nil {
			errs = append(errs, err)
		}
		r.db = nil
	}
	return errors.Join(errs...)
}

func (r *Runtime) startMetrics() {
	handler := promhttp.Handler()
	if r.gatherer != nil {
		handler = promhttp.HandlerFor(r.gatherer, promhttp.HandlerOpts{})
	}

	mux := http.NewServeMux()
	mux.Handle("/metrics", handler)
	mux.HandleFunc("/healthz", func(w http.ResponseWriter, _ *http.Request) {
		w.WriteHeader(http.StatusOK)
		_, _ = w.Write([]byte("ok"))
	})

	r.metricsSrv = &http.Server{
		Addr:              r.cfg.Metrics.Addr,
		Handler:           mux,
		ReadHeaderTimeout: 5 * time.Second,
	}

	srv := r.metricsSrv
	go func() {
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			r.obs.LogError("metrics_server_exited", err)
		}
	}()

	r.gaugeStopCh = make(chan struct{})
	go r.recordGauges(r.gaugeStopCh, time.Second, r.journal, r.queue)
}

func (r *Runtime) recordGauges(stop <-chan struct{}, interval time.Duration, j ports.Journal, q ports.RecordQueue) {
	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	for {
		select {
		case <-stop:
			return
		case <-ticker.C:
			r.obs.SetGauge("pourflow_epoch", float64(r.orch.Epochs().Current()))
			if j != nil {
				r.obs.SetGauge("pourflow_journal_size_bytes", float64(j.Stats().SizeBytes))
				r.obs.SetGauge("pourflow_queue_length", float64(q.Len()))
			}
		}
	}
}
