package ports

import "github.com/ghalamif/PourFlow/internal/domain"

type JournalEntryID uint64

// Journal is the local write-ahead log of dispense records. Entries stay
// uncommitted until a sink has accepted them.
type Journal interface {
	Append(r *domain.DispenseRecord) (JournalEntryID, error)
	Iterate(from JournalEntryID, fn func(id JournalEntryID, r *domain.DispenseRecord) error) error
	Commit(upto JournalEntryID) error
	TruncateCommitted() error
	Stats() JournalStats
	Close() error
}

type JournalStats struct {
	OldestUncommitted JournalEntryID
	LatestAppended    JournalEntryID
	SizeBytes         int64
}

// Recorder accepts finished actuations from the dispense orchestrator.
type Recorder interface {
	Record(r *domain.DispenseRecord) error
}
