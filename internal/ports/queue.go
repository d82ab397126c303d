package ports

import "github.com/ghalamif/PourFlow/internal/domain"

type QueuedRecord struct {
	ID     JournalEntryID
	Record *domain.DispenseRecord
}

type RecordQueue interface {
	Enqueue(id JournalEntryID, r *domain.DispenseRecord) bool
	DequeueBatch(max int) []QueuedRecord
	Len() int
}
