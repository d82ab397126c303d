package queue

import (
	"sync"

	"github.com/ghalamif/PourFlow/internal/domain"
	"github.com/ghalamif/PourFlow/internal/ports"
)

// MemQueue is a bounded FIFO of journaled dispense records backed by a ring
// buffer.
type MemQueue struct {
	mu    sync.Mutex
	buf   []ports.QueuedRecord
	head  int
	count int
}

func NewMemQueue(capacity int) *MemQueue {
	if capacity < 1 {
		capacity = 1
	}
	return &MemQueue{buf: make([]ports.QueuedRecord, capacity)}
}

func (q *MemQueue) Enqueue(id ports.JournalEntryID, r *domain.DispenseRecord) bool {
	q.mu.Lock()
	defer q.mu.Unlock()
	if q.count == len(q.buf) {
		return false
	}
	q.buf[(q.head+q.count)%len(q.buf)] = ports.QueuedRecord{ID: id, Record: r}
	q.count++
	return true
}

func (q *MemQueue) DequeueBatch(max int) []ports.QueuedRecord {
	q.mu.Lock()
	defer q.mu.Unlock()
	if q.count == 0 {
		return nil
	}
	if max <= 0 || max > q.count {
		max = q.count
	}
	out := make([]ports.QueuedRecord, max)
	for i := range out {
		slot := (q.head + i) % len(q.buf)
		out[i] = q.buf[slot]
		q.buf[slot] = ports.QueuedRecord{}
	}
	q.head = (q.head + max) % len(q.buf)
	q.count -= max
	return out
}

func (q *MemQueue) Len() int {
	q.mu.Lock()
	defer q.mu.Unlock()
	return q.count
}

func (q *MemQueue) Cap() int {
	return len(q.buf)
}

var _ ports.RecordQueue = (*MemQueue)(nil)
