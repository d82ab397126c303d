package opcua

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"sync"
	"time"

	"github.com/ghalamif/PourFlow/internal/domain"
	"github.com/ghalamif/PourFlow/internal/ports"

	"github.com/gopcua/opcua"
	"github.com/gopcua/opcua/ua"
)

// Config captures the runtime details required to open an OPC UA session
// against a PLC that owns the pump outputs.
type Config struct {
	Endpoint        string        `yaml:"endpoint"`
	Username        string        `yaml:"username"`
	Password        string        `yaml:"password"`
	SecurityMode    string        `yaml:"security_mode"`
	SecurityPolicy  string        `yaml:"security_policy"`
	ApplicationName string        `yaml:"application_name"`
	WriteTimeout    time.Duration `yaml:"write_timeout"`
	// Nodes holds one Boolean node id per channel, channel 0 first.
	Nodes []string `yaml:"nodes"`
}

func (c *Config) ApplyDefaults() {
	if c.SecurityMode == "" {
		c.SecurityMode = "None"
	}
	if c.SecurityPolicy == "" {
		c.SecurityPolicy = "None"
	}
	if c.ApplicationName == "" {
		c.ApplicationName = "PourFlow"
	}
	if c.WriteTimeout <= 0 {
		c.WriteTimeout = 2 * time.Second
	}
}

func (c *Config) Validate() error {
	if c.Endpoint == "" {
		return errors.New("endpoint is required")
	}
	if len(c.Nodes) != domain.ChannelCount {
		return fmt.Errorf("expected %d nodes, got %d", domain.ChannelCount, len(c.Nodes))
	}
	for i, n := range c.Nodes {
		if err := validNodeID(n); err != nil {
			return fmt.Errorf("channel %d node id %q: %w", i+1, n, err)
		}
	}
	return nil
}

// validNodeID accepts only the explicit "[ns=<n>;]<i|s|g|b>=<id>" form.
// ua.ParseNodeID falls back to a string node in namespace 0 for anything
// else, which would hide a typo until the first write.
func validNodeID(s string) error {
	rest := s
	if strings.HasPrefix(rest, "ns=") {
		ns, tail, ok := strings.Cut(rest[len("ns="):], ";")
		if !ok || ns == "" || strings.Trim(ns, "0123456789") != "" {
			return errors.New("bad namespace")
		}
		rest = tail
	}
	kind, id, ok := strings.Cut(rest, "=")
	if !ok || id == "" {
		return errors.New("expected i=, s=, g= or b= identifier")
	}
	switch kind {
	case "i", "s", "g", "b":
	default:
		return fmt.Errorf("unknown identifier type %q", kind)
	}
	_, err := ua.ParseNodeID(s)
	return err
}

// session is the slice of *opcua.Client the driver needs.
type session interface {
	Write(ctx context.Context, req *ua.WriteRequest) (*ua.WriteResponse, error)
	Close(ctx context.Context) error
}

// Driver sets one Boolean node per channel on a PLC.
type Driver struct {
	cfg   Config
	nodes [domain.ChannelCount]*ua.NodeID

	mu     sync.Mutex
	client session
}

func NewDriver(cfg Config) (*Driver, error) {
	cfg.ApplyDefaults()
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	d := &Driver{cfg: cfg}
	for i, n := range cfg.Nodes {
		id, err := ua.ParseNodeID(n)
		if err != nil {
			return nil, fmt.Errorf("parse node id %q: %w", n, err)
		}
		d.nodes[i] = id
	}
	return d, nil
}

// Connect opens the session. SetLevel fails until it succeeds.
func (d *Driver) Connect(ctx context.Context) error {
	d.mu.Lock()
	defer d.mu.Unlock()
	if d.client != nil {
		return fmt.Errorf("opcua driver already connected")
	}

	client, err := opcua.NewClient(d.cfg.Endpoint, d.buildClientOptions()...)
	if err != nil {
		return fmt.Errorf("opcua new client: %w", err)
	}
	if err := client.Connect(ctx); err != nil {
		return fmt.Errorf("opcua connect: %w", err)
	}
	d.client = client
	return nil
}

func (d *Driver) SetLevel(index int, flowing bool) error {
	if index < 0 || index >= domain.ChannelCount {
		return fmt.Errorf("channel %d out of range", index)
	}
	d.mu.Lock()
	client := d.client
	d.mu.Unlock()
	if client == nil {
		return errors.New("opcua driver not connected")
	}

	ctx, cancel := context.WithTimeout(context.Background(), d.cfg.WriteTimeout)
	defer cancel()

	req := &ua.WriteRequest{
		NodesToWrite: []*ua.WriteValue{{
			NodeID:      d.nodes[index],
			AttributeID: ua.AttributeIDValue,
			Value: &ua.DataValue{
				EncodingMask: ua.DataValueValue,
				Value:        ua.MustVariant(flowing),
			},
		}},
	}
	res, err := client.Write(ctx, req)
	if err != nil {
		return fmt.Errorf("write node %s: %w", d.nodes[index], err)
	}
	if len(res.Results) == 0 {
		return fmt.Errorf("write node %s failed: empty result", d.nodes[index])
	}
	if res.Results[0] != ua.StatusOK {
		return fmt.Errorf("write node %s failed: %s", d.nodes[index], res.Results[0])
	}
	return nil
}

// Close writes every channel closed, then ends the session.
func (d *Driver) Close() error {
	var err error
	for i := range d.nodes {
		if e := d.SetLevel(i, false); e != nil {
			err = errors.Join(err, e)
		}
	}

	d.mu.Lock()
	client := d.client
	d.client = nil
	d.mu.Unlock()
	if client == nil {
		return err
	}

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	if e := client.Close(ctx); e != nil && !errors.Is(e, context.Canceled) {
		err = errors.Join(err, e)
	}
	return err
}

func (d *Driver) buildClientOptions() []opcua.Option {
	opts := []opcua.Option{
		opcua.SecurityModeString(normalizeSecurityMode(d.cfg.SecurityMode)),
		opcua.SecurityPolicy(normalizeSecurityPolicy(d.cfg.SecurityPolicy)),
		opcua.ApplicationName(d.cfg.ApplicationName),
		opcua.AutoReconnect(true),
	}

	if d.cfg.Username != "" {
		opts = append(opts, opcua.AuthUsername(d.cfg.Username, d.cfg.Password))
	} else {
		opts = append(opts, opcua.AuthAnonymous())
	}
	return opts
}

func normalizeSecurityMode(mode string) string {
	switch strings.ToLower(mode) {
	case "sign":
		return "Sign"
	case "signandencrypt", "signencrypt", "sign_and_encrypt", "sign+encrypt":
		return "SignAndEncrypt"
	default:
		return "None"
	}
}

func normalizeSecurityPolicy(policy string) string {
	if policy == "" {
		return "None"
	}
	return policy
}

var _ ports.ChannelDriver = (*Driver)(nil)
