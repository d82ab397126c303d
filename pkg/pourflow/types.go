package pourflow

import (
	"github.com/ghalamif/PourFlow/internal/app/dispense"
	"github.com/ghalamif/PourFlow/internal/app/menu"
	"github.com/ghalamif/PourFlow/internal/domain"
	"github.com/ghalamif/PourFlow/internal/ports"
)

// ChannelDriver switches a pump channel on or off (GPIO, PLC, simulator).
type ChannelDriver = ports.ChannelDriver

// Catalog is the read-only recipe table.
type Catalog = ports.Catalog

// Announcer receives every user-visible message.
type Announcer = ports.Announcer

// CommandSource feeds operator commands into the runtime.
type CommandSource = ports.CommandSource

// Journal is the durable log of dispense records.
type Journal = ports.Journal

// JournalStats exposes journal metadata for observability.
type JournalStats = ports.JournalStats

// JournalEntryID uniquely identifies a journal entry.
type JournalEntryID = ports.JournalEntryID

// RecordQueue buffers journaled records for the sink.
type RecordQueue = ports.RecordQueue

// QueuedRecord represents an item buffered inside the bounded queue.
type QueuedRecord = ports.QueuedRecord

// RecordSink persists batches of dispense records to any downstream system.
type RecordSink = ports.RecordSink

// Observability emits metrics/logs about dispenses, faults and the journal.
type Observability = ports.Observability

// Field is a structured log/metric field used by Observability implementations.
type Field = ports.Field

type (
	Recipe         = domain.Recipe
	Step           = domain.Step
	Target         = domain.Target
	Command        = domain.Command
	DispenseRecord = domain.DispenseRecord
	DispenseKind   = domain.DispenseKind
	Outcome        = domain.Outcome
	Handle         = dispense.Handle
	Result         = dispense.Result
	PlannedTarget  = dispense.PlannedTarget
	IngredientUse  = menu.Usage
)

type (
	InvalidBindingError       = domain.InvalidBindingError
	UnknownIngredientError    = domain.UnknownIngredientError
	UnknownRecipeError        = domain.UnknownRecipeError
	MissingIngredientError    = domain.MissingIngredientError
	HardwareFaultError        = domain.HardwareFaultError
	InvalidChannelConfigError = domain.InvalidChannelConfigError
)

const (
	Completed  = domain.Completed
	Superseded = domain.Superseded

	KindMix   = domain.KindMix
	KindPour  = domain.KindPour
	KindFlush = domain.KindFlush

	ChannelCount = domain.ChannelCount
	ReadyMessage = dispense.ReadyMessage
)
