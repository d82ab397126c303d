package pourflow

import (
	"github.com/ghalamif/PourFlow/internal/adapters/gpio"
	"github.com/ghalamif/PourFlow/internal/adapters/opcua"
	"github.com/ghalamif/PourFlow/internal/app/config"
	"github.com/ghalamif/PourFlow/internal/ports"
)

// Config re-exports the root configuration struct so downstream projects can
// construct or modify it programmatically.
type Config = config.Config

type (
	// Policy controls journal/queue thresholds.
	Policy = ports.Policy
	// HardwareConfig selects and configures the pump driver.
	HardwareConfig = config.HardwareConfig
	// GPIOConfig maps channels to relay pins.
	GPIOConfig = gpio.Config
	// OPCUAConfig holds connection + per-channel node details.
	OPCUAConfig = opcua.Config
	// ChannelsConfig carries the per-channel flow rates.
	ChannelsConfig = config.ChannelsConfig
	// CatalogConfig points at a recipe file.
	CatalogConfig = config.CatalogConfig
	// DispenseConfig tunes polling, clamping and default amounts.
	DispenseConfig = config.DispenseConfig
	// MetricsConfig configures the metrics HTTP server.
	MetricsConfig = config.MetricsConfig
	// JournalConfig configures on-disk durability and the record sink.
	JournalConfig = config.JournalConfig
)

const (
	DriverSim     = config.DriverSim
	DriverGPIO    = config.DriverGPIO
	DriverOPCUA   = config.DriverOPCUA
	JournalDSNEnv = config.JournalDSNEnv
)

// LoadConfig loads YAML from disk using the internal config reader.
func LoadConfig(path string) (*Config, error) {
	return config.Load(path)
}

// DefaultConfig returns a simulated, fully defaulted configuration.
func DefaultConfig() *Config {
	return config.Default()
}
