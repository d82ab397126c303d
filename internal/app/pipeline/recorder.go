package pipeline

import (
	"errors"
	"fmt"
	"time"

	"github.com/ghalamif/PourFlow/internal/domain"
	"github.com/ghalamif/PourFlow/internal/ports"
)

var (
	ErrJournalFull = errors.New("journal full")
	ErrQueueFull   = errors.New("record queue full")
)

// JournalRecorder makes each dispense record durable in the journal before
// handing it to the flusher through the queue.
type JournalRecorder struct {
	journal ports.Journal
	queue   ports.RecordQueue
	pol     ports.Policy
	obs     ports.Observability
}

func NewJournalRecorder(j ports.Journal, q ports.RecordQueue, pol ports.Policy, obs ports.Observability) *JournalRecorder {
	if obs == nil {
		obs = ports.NopObservability{}
	}
	return &JournalRecorder{journal: j, queue: q, pol: pol, obs: obs}
}

func (r *JournalRecorder) Record(rec *domain.DispenseRecord) error {
	if !waitForJournalCapacity(r.journal, r.pol, r.obs) {
		return ErrJournalFull
	}

	id, err := r.journal.Append(rec)
	if err != nil {
		r.obs.LogCritical("journal_append_failed", err)
		return fmt.Errorf("journal append: %w", err)
	}
	r.obs.SetGauge("pourflow_journal_size_bytes", float64(r.journal.Stats().SizeBytes))

	if !enqueueWithPolicy(r.queue, id, rec, r.pol, r.obs) {
		// still in the journal; replayed on the next start
		r.obs.IncCounter("pourflow_queue_dropped_total", 1)
		return ErrQueueFull
	}
	r.obs.SetGauge("pourflow_queue_length", float64(r.queue.Len()))
	return nil
}

// Replay queues every uncommitted journal entry, e.g. after a crash.
func Replay(j ports.Journal, q ports.RecordQueue, pol ports.Policy, obs ports.Observability) (int, error) {
	if obs == nil {
		obs = ports.NopObservability{}
	}
	n := 0
	from := j.Stats().OldestUncommitted
	err := j.Iterate(from, func(id ports.JournalEntryID, rec *domain.DispenseRecord) error {
		if !enqueueWithPolicy(q, id, rec, pol, obs) {
			return ErrQueueFull
		}
		n++
		return nil
	})
	if n > 0 {
		obs.LogInfo("journal_replayed", ports.Field{Key: "records", Value: n}, ports.Field{Key: "from", Value: uint64(from)})
	}
	return n, err
}

func waitForJournalCapacity(j ports.Journal, pol ports.Policy, obs ports.Observability) bool {
	if pol.MaxJournalSizeBytes <= 0 {
		return true
	}
	sleep := idleSleep(pol)

	for {
		stats := j.Stats()
		if stats.SizeBytes < pol.MaxJournalSizeBytes {
			return true
		}

		switch pol.OnJournalFull {
		case "block":
			time.Sleep(sleep)
		case "drop":
			obs.LogError("journal_full_drop", fmt.Errorf("size=%d limit=%d", stats.SizeBytes, pol.MaxJournalSizeBytes))
			return false
		default:
			obs.LogError("journal_policy_invalid", fmt.Errorf("policy=%s", pol.OnJournalFull))
			return false
		}
	}
}

func enqueueWithPolicy(q ports.RecordQueue, id ports.JournalEntryID, rec *domain.DispenseRecord, pol ports.Policy, obs ports.Observability) bool {
	sleep := idleSleep(pol)

	for {
		if ok := q.Enqueue(id, rec); ok {
			return true
		}

		switch pol.OnQueueFull {
		case "block":
			time.Sleep(sleep)
		case "drop", "reject":
			obs.LogError("queue_full_drop", fmt.Errorf("queue length exceeded capacity %d", pol.MaxQueueLen))
			return false
		default:
			obs.LogError("queue_policy_invalid", fmt.Errorf("policy=%s", pol.OnQueueFull))
			return false
		}
	}
}

func idleSleep(pol ports.Policy) time.Duration {
	if pol.IdleSleep <= 0 {
		return 5 * time.Millisecond
	}
	return pol.IdleSleep
}

var _ ports.Recorder = (*JournalRecorder)(nil)
