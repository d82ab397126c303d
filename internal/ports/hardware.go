package ports

// ChannelDriver drives the physical actuator of one pump channel. flowing=true
// opens the pump, false closes it. Implementations may return hardware faults.
type ChannelDriver interface {
	SetLevel(index int, flowing bool) error
	Close() error
}
