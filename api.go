package pourflow

import (
	base "github.com/ghalamif/PourFlow/pkg/pourflow"
)

// Re-exported errors for convenience.
var (
	ErrChannelAnnouncerClosed = base.ErrChannelAnnouncerClosed
)

// Type aliases so consumers can import github.com/ghalamif/PourFlow directly.
type (
	Config         = base.Config
	Policy         = base.Policy
	HardwareConfig = base.HardwareConfig
	GPIOConfig     = base.GPIOConfig
	OPCUAConfig    = base.OPCUAConfig
	ChannelsConfig = base.ChannelsConfig
	CatalogConfig  = base.CatalogConfig
	DispenseConfig = base.DispenseConfig
	MetricsConfig  = base.MetricsConfig
	JournalConfig  = base.JournalConfig
	Flow           = base.Flow
	FlowOption     = base.FlowOption
	Runtime        = base.Runtime
	RuntimeOption  = base.RuntimeOption
	ChannelDriver  = base.ChannelDriver
	Catalog        = base.Catalog
	Announcer      = base.Announcer
	AnnounceFunc   = base.AnnounceFunc
	CommandSource  = base.CommandSource
	Journal        = base.Journal
	JournalStats   = base.JournalStats
	JournalEntryID = base.JournalEntryID
	RecordQueue    = base.RecordQueue
	QueuedRecord   = base.QueuedRecord
	RecordSink     = base.RecordSink
	Observability  = base.Observability
	Field          = base.Field
	Recipe         = base.Recipe
	Step           = base.Step
	Target         = base.Target
	Command        = base.Command
	DispenseRecord = base.DispenseRecord
	Handle         = base.Handle
	Result         = base.Result
	PlannedTarget  = base.PlannedTarget

	ChannelAnnouncer       = base.ChannelAnnouncer
	InvalidBindingError    = base.InvalidBindingError
	UnknownIngredientError = base.UnknownIngredientError
	UnknownRecipeError     = base.UnknownRecipeError
	MissingIngredientError = base.MissingIngredientError
	HardwareFaultError     = base.HardwareFaultError
)

const (
	ChannelCount = base.ChannelCount
	ReadyMessage = base.ReadyMessage
	JournalOff   = base.JournalOff
)

// Config helpers.
func LoadConfig(path string) (*Config, error) {
	return base.LoadConfig(path)
}

func DefaultConfig() *Config {
	return base.DefaultConfig()
}

// Flow builder helpers.
func Conf(path string, opts ...FlowOption) (*Flow, error) {
	return base.Conf(path, opts...)
}

func ConfFromConfig(cfg *Config, opts ...FlowOption) (*Flow, error) {
	return base.ConfFromConfig(cfg, opts...)
}

func WithFlowOptions(opts ...RuntimeOption) FlowOption {
	return base.WithFlowOptions(opts...)
}

// Runtime and options.
func NewRuntime(cfg *Config, opts ...RuntimeOption) (*Runtime, error) {
	return base.NewRuntime(cfg, opts...)
}

func WithDriver(d ChannelDriver) RuntimeOption {
	return base.WithDriver(d)
}

func WithCatalog(c Catalog) RuntimeOption {
	return base.WithCatalog(c)
}

func WithAnnouncer(a Announcer) RuntimeOption {
	return base.WithAnnouncer(a)
}

func WithCommandSource(src CommandSource) RuntimeOption {
	return base.WithCommandSource(src)
}

func WithJournal(j Journal) RuntimeOption {
	return base.WithJournal(j)
}

func WithRecordQueue(q RecordQueue) RuntimeOption {
	return base.WithRecordQueue(q)
}

func WithRecordSink(s RecordSink) RuntimeOption {
	return base.WithRecordSink(s)
}

func WithObservability(obs Observability) RuntimeOption {
	return base.WithObservability(obs)
}

// Announcer adapters.
func NewCallbackAnnouncer(fn AnnounceFunc) Announcer {
	return base.NewCallbackAnnouncer(fn)
}

func NewChannelAnnouncer(buffer int) (*ChannelAnnouncer, <-chan string, func()) {
	return base.NewChannelAnnouncer(buffer)
}
