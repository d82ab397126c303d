package ports

import "github.com/ghalamif/PourFlow/internal/domain"

type RecordSink interface {
	WriteBatch(records []*domain.DispenseRecord) error
	Name() string
}
