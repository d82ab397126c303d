package config

import (
	"fmt"
	"os"
	"time"

	"github.com/ghalamif/PourFlow/internal/adapters/gpio"
	"github.com/ghalamif/PourFlow/internal/adapters/opcua"
	"github.com/ghalamif/PourFlow/internal/domain"
	"github.com/ghalamif/PourFlow/internal/ports"
	"gopkg.in/yaml.v3"
)

// JournalDSNEnv overrides journal.conn_string so credentials stay out of the
// config file.
const JournalDSNEnv = "POURFLOW_JOURNAL_DSN"

const (
	DriverSim   = "sim"
	DriverGPIO  = "gpio"
	DriverOPCUA = "opcua"
)

type Config struct {
	Hardware HardwareConfig `yaml:"hardware"`
	Channels ChannelsConfig `yaml:"channels"`
	Binding  []string       `yaml:"binding"`
	Catalog  CatalogConfig  `yaml:"catalog"`
	Dispense DispenseConfig `yaml:"dispense"`
	Metrics  MetricsConfig  `yaml:"metrics"`
	Journal  JournalConfig  `yaml:"journal"`
	Policy   ports.Policy   `yaml:"policy"`
}

type HardwareConfig struct {
	Driver string       `yaml:"driver"`
	GPIO   gpio.Config  `yaml:"gpio"`
	OPCUA  opcua.Config `yaml:"opcua"`
}

type ChannelsConfig struct {
	// Rates in ml/s, channel 0 first.
	Rates []float64 `yaml:"rates"`
}

type CatalogConfig struct {
	// Path to a recipes YAML file. Empty uses the built-in catalog.
	Path string `yaml:"path"`
}

type DispenseConfig struct {
	PollInterval  time.Duration `yaml:"poll_interval"`
	MaxSinglePour float64       `yaml:"max_single_pour"`
	PourAmount    float64       `yaml:"pour_amount"`
	Scale         float64       `yaml:"scale"`
	FlushDuration time.Duration `yaml:"flush_duration"`
}

type MetricsConfig struct {
	// Addr of the /metrics listener; "off" disables it.
	Addr string `yaml:"addr"`
}

func (m MetricsConfig) Enabled() bool { return m.Addr != "off" }

type JournalConfig struct {
	Dir string `yaml:"dir"`
	// Driver selects the record sink: "" logs records, "postgres" or
	// "sqlite3" writes them to a table.
	Driver       string `yaml:"driver"`
	ConnString   string `yaml:"conn_string"`
	Table        string `yaml:"table"`
	SyncOnAppend bool   `yaml:"sync_on_append"`
}

func Load(path string) (*Config, error) {
	raw, err := os.ReadFile(path)
	if err != nil {
		return nil, err
	}

	var cfg Config
	if err := yaml.Unmarshal(raw, &cfg); err != nil {
		return nil, err
	}
	if err := cfg.Normalize(); err != nil {
		return nil, err
	}
	return &cfg, nil
}

// Default is the configuration used when no file is given: simulated pumps,
// reference calibration, built-in catalog.
func Default() *Config {
	cfg := &Config{}
	if err := cfg.Normalize(); err != nil {
		panic(fmt.Sprintf("default config: %v", err))
	}
	return cfg
}

// Normalize fills in defaults, applies environment overrides and validates.
// It is idempotent, so programmatically built configs can go through it too.
func (c *Config) Normalize() error {
	c.applyDefaults()
	if dsn := os.Getenv(JournalDSNEnv); dsn != "" {
		c.Journal.ConnString = dsn
	}
	return c.validate()
}

func (c *Config) applyDefaults() {
	if c.Hardware.Driver == "" {
		c.Hardware.Driver = DriverSim
	}
	if len(c.Channels.Rates) == 0 {
		c.Channels.Rates = append([]float64(nil), domain.DefaultRates[:]...)
	}
	if c.Dispense.PollInterval == 0 {
		c.Dispense.PollInterval = 100 * time.Millisecond
	}
	if c.Dispense.MaxSinglePour == 0 {
		c.Dispense.MaxSinglePour = 100
	}
	if c.Dispense.PourAmount == 0 {
		c.Dispense.PourAmount = 10
	}
	if c.Dispense.Scale == 0 {
		c.Dispense.Scale = 1
	}
	if c.Dispense.FlushDuration == 0 {
		c.Dispense.FlushDuration = 15 * time.Second
	}
	if c.Policy.MaxJournalSizeBytes == 0 {
		c.Policy.MaxJournalSizeBytes = 64 << 20
	}
	if c.Policy.MaxQueueLen == 0 {
		c.Policy.MaxQueueLen = 1024
	}
	if c.Policy.MaxBatchSize == 0 {
		c.Policy.MaxBatchSize = 64
	}
	if c.Policy.IdleSleep == 0 {
		c.Policy.IdleSleep = 50 * time.Millisecond
	}
	if c.Policy.OnQueueFull == "" {
		c.Policy.OnQueueFull = "block"
	}
	if c.Policy.OnJournalFull == "" {
		c.Policy.OnJournalFull = "block"
	}
	if c.Metrics.Addr == "" {
		c.Metrics.Addr = ":9100"
	}
	if c.Journal.Dir == "" {
		c.Journal.Dir = "./data/journal"
	}
	if c.Journal.Table == "" {
		c.Journal.Table = "dispense_records"
	}

	c.Hardware.GPIO.ApplyDefaults()
	c.Hardware.OPCUA.ApplyDefaults()
}

func (c *Config) validate() error {
	switch c.Hardware.Driver {
	case DriverSim:
	case DriverGPIO:
		if err := c.Hardware.GPIO.Validate(); err != nil {
			return fmt.Errorf("hardware.gpio: %w", err)
		}
	case DriverOPCUA:
		if err := c.Hardware.OPCUA.Validate(); err != nil {
			return fmt.Errorf("hardware.opcua: %w", err)
		}
	default:
		return fmt.Errorf("hardware.driver must be sim, gpio or opcua, got %q", c.Hardware.Driver)
	}
	if _, err := domain.NewRegistry(c.Channels.Rates); err != nil {
		return fmt.Errorf("channels.rates: %w", err)
	}
	if len(c.Binding) > domain.ChannelCount {
		return fmt.Errorf("binding: %w", &domain.InvalidBindingError{Got: len(c.Binding), Names: c.Binding})
	}
	if c.Dispense.PollInterval < 0 {
		return fmt.Errorf("dispense.poll_interval must be positive")
	}
	if c.Dispense.MaxSinglePour < 0 || c.Dispense.PourAmount < 0 || c.Dispense.Scale < 0 {
		return fmt.Errorf("dispense volumes and scale must be positive")
	}
	if c.Dispense.FlushDuration < 0 {
		return fmt.Errorf("dispense.flush_duration must be positive")
	}
	switch c.Journal.Driver {
	case "":
	case "postgres", "sqlite3":
		if c.Journal.ConnString == "" {
			return fmt.Errorf("journal.conn_string is required for driver %s (or set %s)", c.Journal.Driver, JournalDSNEnv)
		}
	default:
		return fmt.Errorf("journal.driver must be postgres or sqlite3, got %q", c.Journal.Driver)
	}
	if c.Journal.Dir == "" {
		return fmt.Errorf("journal.dir is required")
	}
	if c.Policy.MaxQueueLen <= 0 || c.Policy.MaxBatchSize <= 0 {
		return fmt.Errorf("policy.max_queue_len and policy.max_batch_size must be > 0")
	}
	return nil
}
