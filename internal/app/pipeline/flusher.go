package pipeline

import (
	"context"
	"errors"
	"time"

	"github.com/ghalamif/PourFlow/internal/domain"
	"github.com/ghalamif/PourFlow/internal/ports"
)

var errSinkUnavailable = errors.New("sink unavailable, record kept in journal")

// Flusher drains the record queue into a sink and advances the journal
// commit watermark after every accepted batch.
type Flusher struct {
	journal ports.Journal
	queue   ports.RecordQueue
	sink    ports.RecordSink
	pol     ports.Policy
	obs     ports.Observability
}

func NewFlusher(j ports.Journal, q ports.RecordQueue, s ports.RecordSink, pol ports.Policy, obs ports.Observability) *Flusher {
	if obs == nil {
		obs = ports.NopObservability{}
	}
	return &Flusher{journal: j, queue: q, sink: s, pol: pol, obs: obs}
}

// Run loops until ctx is cancelled, then makes one last pass over whatever
// is still queued. A batch the sink refuses is retried, never skipped, so
// the watermark only moves over records the sink has accepted.
func (f *Flusher) Run(ctx context.Context) {
	sleep := idleSleep(f.pol)
	var pending []ports.QueuedRecord

	for {
		if pending == nil {
			pending = f.queue.DequeueBatch(f.pol.MaxBatchSize)
			f.obs.SetGauge("pourflow_queue_length", float64(f.queue.Len()))
		}
		if len(pending) == 0 {
			pending = nil
			select {
			case <-ctx.Done():
				return
			case <-time.After(sleep):
			}
			continue
		}

		if f.flush(pending) {
			pending = nil
			continue
		}

		select {
		case <-ctx.Done():
			f.abandon(pending)
			return
		case <-time.After(sleep):
		}
	}
}

// Drain flushes everything currently queued once. Records the sink refuses
// stay in the journal.
func (f *Flusher) Drain() bool {
	for {
		batch := f.queue.DequeueBatch(f.pol.MaxBatchSize)
		if len(batch) == 0 {
			return true
		}
		if !f.flush(batch) {
			f.abandon(batch)
			return false
		}
	}
}

func (f *Flusher) flush(batch []ports.QueuedRecord) bool {
	var (
		out   = make([]*domain.DispenseRecord, 0, len(batch))
		maxID ports.JournalEntryID
	)
	for _, item := range batch {
		out = append(out, item.Record)
		if item.ID > maxID {
			maxID = item.ID
		}
	}

	start := time.Now()
	if err := f.sink.WriteBatch(out); err != nil {
		f.obs.LogError("sink_write_failed", err,
			ports.Field{Key: "sink", Value: f.sink.Name()},
			ports.Field{Key: "records", Value: len(out)})
		return false
	}
	f.obs.ObserveLatency("pourflow_journal_sink_latency_seconds", time.Since(start).Seconds())
	f.obs.IncCounter("pourflow_journal_records_total", float64(len(out)))

	if err := f.journal.Commit(maxID); err != nil {
		f.obs.LogError("journal_commit_failed", err)
		return true
	}
	f.compact()
	return true
}

// compact drops the committed prefix once the journal reaches half of
// MaxJournalSizeBytes.
func (f *Flusher) compact() {
	stats := f.journal.Stats()
	f.obs.SetGauge("pourflow_journal_size_bytes", float64(stats.SizeBytes))
	if f.pol.MaxJournalSizeBytes <= 0 || stats.SizeBytes < f.pol.MaxJournalSizeBytes/2 {
		return
	}
	if err := f.journal.TruncateCommitted(); err != nil {
		f.obs.LogError("journal_truncate_failed", err)
		return
	}
	f.obs.SetGauge("pourflow_journal_size_bytes", float64(f.journal.Stats().SizeBytes))
}

func (f *Flusher) abandon(batch []ports.QueuedRecord) {
	for _, item := range batch {
		f.obs.RecordDLQ(item.ID, item.Record, errSinkUnavailable)
	}
}
