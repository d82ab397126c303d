package sink

import (
	"log/slog"

	"github.com/ghalamif/PourFlow/internal/domain"
	"github.com/ghalamif/PourFlow/internal/ports"
)

// LogSink writes dispense records to a structured logger. It is the default
// when no database is configured.
type LogSink struct {
	logger *slog.Logger
}

func NewLogSink(logger *slog.Logger) *LogSink {
	if logger == nil {
		logger = slog.Default()
	}
	return &LogSink{logger: logger}
}

func (s *LogSink) Name() string { return "log" }

func (s *LogSink) WriteBatch(records []*domain.DispenseRecord) error {
	for _, r := range records {
		s.logger.Info("dispense_record",
			"dispense_id", r.DispenseID,
			"kind", string(r.Kind),
			"name", r.Name,
			"channel", r.Channel,
			"ingredient", r.Ingredient,
			"volume_ml", r.Volume,
			"planned", r.Planned,
			"elapsed", r.FinishedAt.Sub(r.StartedAt),
			"outcome", r.Outcome,
			"fault", r.Fault)
	}
	return nil
}

var _ ports.RecordSink = (*LogSink)(nil)
