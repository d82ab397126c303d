package observability

import (
	"log/slog"

	"github.com/ghalamif/PourFlow/internal/domain"
	"github.com/ghalamif/PourFlow/internal/ports"
	"github.com/prometheus/client_golang/prometheus"
)

type PromObs struct {
	logger   *slog.Logger
	counters map[string]prometheus.Counter
	gauges   map[string]prometheus.Gauge
	histos   map[string]prometheus.Observer
}

// NewPromObs registers the pourflow metrics with the default registerer.
func NewPromObs(logger *slog.Logger) *PromObs {
	return NewPromObsWith(prometheus.DefaultRegisterer, logger)
}

func NewPromObsWith(reg prometheus.Registerer, logger *slog.Logger) *PromObs {
	if logger == nil {
		logger = slog.Default()
	}

	counter := func(name, help string) prometheus.Counter {
		return prometheus.NewCounter(prometheus.CounterOpts{Name: name, Help: help})
	}
	gauge := func(name, help string) prometheus.Gauge {
		return prometheus.NewGauge(prometheus.GaugeOpts{Name: name, Help: help})
	}

	dispenses := counter("pourflow_dispenses_total", "Mix, pour and flush commands accepted.")
	superseded := counter("pourflow_dispenses_superseded_total", "Dispenses cut short by a newer command or a stop.")
	rejected := counter("pourflow_rejected_total", "Commands rejected before any pump opened.")
	actuations := counter("pourflow_actuations_total", "Single-channel actuations finished.")
	faults := counter("pourflow_hardware_faults_total", "Actuations that hit a hardware fault.")
	stops := counter("pourflow_stops_total", "Stop-all commands issued.")
	recorded := counter("pourflow_journal_records_total", "Dispense records written to the journal sink.")
	dlq := counter("pourflow_dlq_total", "Dispense records the sink refused.")
	queueDrops := counter("pourflow_queue_dropped_total", "Dispense records lost due to queue backpressure policies.")

	epoch := gauge("pourflow_epoch", "Current dispense epoch.")
	open := gauge("pourflow_channels_open", "Pump channels currently flowing.")
	journalSize := gauge("pourflow_journal_size_bytes", "Size of the dispense journal on disk.")
	queueLen := gauge("pourflow_queue_length", "Dispense records buffered for the sink.")

	actuation := prometheus.NewHistogram(prometheus.HistogramOpts{
		Name:    "pourflow_actuation_seconds",
		Help:    "Time a pump channel stayed open.",
		Buckets: prometheus.ExponentialBuckets(0.1, 2, 10),
	})
	latency := prometheus.NewHistogram(prometheus.HistogramOpts{
		Name:    "pourflow_journal_sink_latency_seconds",
		Help:    "Latency from dequeued record to sink commit.",
		Buckets: prometheus.ExponentialBuckets(0.001, 2, 12),
	})

	reg.MustRegister(dispenses, superseded, rejected, actuations, faults, stops, recorded, dlq, queueDrops,
		epoch, open, journalSize, queueLen, actuation, latency)

	return &PromObs{
		logger: logger,
		counters: map[string]prometheus.Counter{
			"pourflow_dispenses_total":            dispenses,
			"pourflow_dispenses_superseded_total": superseded,
			"pourflow_rejected_total":             rejected,
			"pourflow_actuations_total":           actuations,
			"pourflow_hardware_faults_total":      faults,
			"pourflow_stops_total":                stops,
			"pourflow_journal_records_total":      recorded,
			"pourflow_dlq_total":                  dlq,
			"pourflow_queue_dropped_total":        queueDrops,
		},
		gauges: map[string]prometheus.Gauge{
			"pourflow_epoch":              epoch,
			"pourflow_channels_open":      open,
			"pourflow_journal_size_bytes": journalSize,
			"pourflow_queue_length":       queueLen,
		},
		histos: map[string]prometheus.Observer{
			"pourflow_actuation_seconds":            actuation,
			"pourflow_journal_sink_latency_seconds": latency,
		},
	}
}

func (p *PromObs) LogInfo(msg string, fields ...ports.Field) {
	p.logger.Info(msg, attrs(fields)...)
}

func (p *PromObs) LogError(msg string, err error, fields ...ports.Field) {
	if err != nil {
		p.logger.Error(msg, append(attrs(fields), "error", err)...)
	}
}

func (p *PromObs) LogCritical(msg string, err error, fields ...ports.Field) {
	if err != nil {
		p.logger.Error(msg, append(attrs(fields), "error", err, "critical", true)...)
	}
}

func (p *PromObs) IncCounter(name string, v float64) {
	if c, ok := p.counters[name]; ok {
		c.Add(v)
	}
}

func (p *PromObs) ObserveLatency(name string, seconds float64) {
	if h, ok := p.histos[name]; ok {
		h.Observe(seconds)
	}
}

func (p *PromObs) SetGauge(name string, v float64) {
	if g, ok := p.gauges[name]; ok {
		g.Set(v)
	}
}

func (p *PromObs) AddGauge(name string, v float64) {
	if g, ok := p.gauges[name]; ok {
		g.Add(v)
	}
}

func (p *PromObs) RecordDLQ(id ports.JournalEntryID, r *domain.DispenseRecord, err error) {
	p.IncCounter("pourflow_dlq_total", 1)
	if err == nil {
		return
	}
	if r == nil {
		p.logger.Error("dlq record", "journal_id", uint64(id), "error", err)
		return
	}
	p.logger.Error("dlq record",
		"journal_id", uint64(id),
		"dispense_id", r.DispenseID,
		"channel", r.Channel,
		"error", err)
}

func attrs(fields []ports.Field) []any {
	out := make([]any, 0, len(fields)*2)
	for _, f := range fields {
		out = append(out, f.Key, f.Value)
	}
	return out
}

var _ ports.Observability = (*PromObs)(nil)
