package sink

import (
	"context"
	"database/sql"
	"fmt"
	"strings"
	"time"

	"github.com/ghalamif/PourFlow/internal/domain"
	"github.com/ghalamif/PourFlow/internal/ports"
)

// Dialect covers the placeholder and DDL differences between the supported
// databases.
type Dialect string

const (
	Postgres Dialect = "postgres"
	SQLite   Dialect = "sqlite3"
)

const recordColumns = "dispense_id, kind, name, channel, ingredient, volume_ml, planned_ms, started_at, finished_at, outcome, fault"

const columnCount = 11

// SQLSink writes dispense records into a relational table. Inserts are
// idempotent on (dispense_id, channel) so replaying the journal is harmless.
type SQLSink struct {
	db        *sql.DB
	dialect   Dialect
	tableName string
}

func NewSQLSink(db *sql.DB, dialect Dialect, table string) (*SQLSink, error) {
	switch dialect {
	case Postgres, SQLite:
	default:
		return nil, fmt.Errorf("unsupported sql dialect %q", dialect)
	}
	if table == "" {
		table = "dispense_records"
	}
	return &SQLSink{db: db, dialect: dialect, tableName: table}, nil
}

func (s *SQLSink) Name() string { return string(s.dialect) }

// EnsureSchema creates the records table if it does not exist yet.
func (s *SQLSink) EnsureSchema(ctx context.Context) error {
	ts := "TIMESTAMPTZ"
	if s.dialect == SQLite {
		ts = "TIMESTAMP"
	}
	ddl := fmt.Sprintf(`CREATE TABLE IF NOT EXISTS %s (
	dispense_id TEXT NOT NULL,
	kind TEXT NOT NULL,
	name TEXT NOT NULL,
	channel INTEGER NOT NULL,
	ingredient TEXT NOT NULL,
	volume_ml DOUBLE PRECISION NOT NULL,
	planned_ms BIGINT NOT NULL,
	started_at %s NOT NULL,
	finished_at %s NOT NULL,
	outcome TEXT NOT NULL,
	fault TEXT NOT NULL,
	PRIMARY KEY (dispense_id, channel)
)`, s.tableName, ts, ts)
	if _, err := s.db.ExecContext(ctx, ddl); err != nil {
		return fmt.Errorf("create %s: %w", s.tableName, err)
	}
	return nil
}

func (s *SQLSink) WriteBatch(records []*domain.DispenseRecord) error {
	if len(records) == 0 {
		return nil
	}

	var b strings.Builder
	b.WriteString("INSERT INTO ")
	b.WriteString(s.tableName)
	b.WriteString(" (")
	b.WriteString(recordColumns)
	b.WriteString(") VALUES ")

	args := make([]any, 0, len(records)*columnCount)
	for i, r := range records {
		if i > 0 {
			b.WriteString(",")
		}
		b.WriteString("(")
		for c := 0; c < columnCount; c++ {
			if c > 0 {
				b.WriteString(",")
			}
			b.WriteString(s.placeholder(len(args) + c + 1))
		}
		b.WriteString(")")

		args = append(args,
			r.DispenseID,
			string(r.Kind),
			r.Name,
			r.Channel,
			r.Ingredient,
			r.Volume,
			r.Planned.Milliseconds(),
			r.StartedAt.UTC(),
			r.FinishedAt.UTC(),
			r.Outcome,
			r.Fault,
		)
	}

	b.WriteString(" ON CONFLICT (dispense_id, channel) DO NOTHING")

	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	_, err := s.db.ExecContext(ctx, b.String(), args...)
	return err
}

func (s *SQLSink) placeholder(n int) string {
	if s.dialect == Postgres {
		return fmt.Sprintf("$%d", n)
	}
	return "?"
}

var _ ports.RecordSink = (*SQLSink)(nil)
