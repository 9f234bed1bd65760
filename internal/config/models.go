package config

import (
	"errors"
	"fmt"
	"os"
	"time"

	"github.com/muurk/lanprobe/internal/discovery"
	"github.com/muurk/lanprobe/internal/protocol"
)

// CurrentVersion is the config file schema version
const CurrentVersion = 1

// Config is the lanprobe configuration file
type Config struct {
	Version   int       `yaml:"version"`
	Network   Network   `yaml:"network"`
	Receive   Receive   `yaml:"receive"`
	Bind      Bind      `yaml:"bind"`
	Identity  Identity  `yaml:"identity"`
	Responder Responder `yaml:"responder"`
}

// Network holds socket settings
type Network struct {
	// Interface selects the directed broadcast address; empty for 255.255.255.255
	Interface     string `yaml:"interface,omitempty"`
	BindPort      uint16 `yaml:"bind_port"`
	BroadcastPort uint16 `yaml:"broadcast_port"`
	RecvWindow    int    `yaml:"recv_window"`
}

// Receive holds the reply wait policy
type Receive struct {
	TimeoutSeconds int `yaml:"timeout_seconds"`
	MaxAttempts    int `yaml:"max_attempts"`
}

// Bind holds the listener bind retry policy
type Bind struct {
	Attempts     int `yaml:"attempts"`
	RetryDelayMS int `yaml:"retry_delay_ms"`
}

// Identity is what a probe says about itself
type Identity struct {
	ComponentType string `yaml:"component_type"`
	Username      string `yaml:"username,omitempty"`
	UID           int32  `yaml:"uid"`
}

// Responder configures the answering peer
type Responder struct {
	ComponentType string `yaml:"component_type"`
	ComponentID   uint64 `yaml:"component_id"`
	// Hostname defaults to os.Hostname
	Hostname      string `yaml:"hostname,omitempty"`
	AdvertiseMDNS bool   `yaml:"advertise_mdns"`
	// MatchUID ignores queries from other users
	MatchUID      bool   `yaml:"match_uid"`
}

// Default returns a configuration with every value filled in.
func Default() *Config {
	return &Config{
		Version: CurrentVersion,
		Network: Network{
			BindPort:      discovery.DefaultBindPort,
			BroadcastPort: discovery.DefaultBroadcastPort,
			RecvWindow:    discovery.DefaultRecvWindow,
		},
		Receive: Receive{
			TimeoutSeconds: int(discovery.DefaultReceiveTimeout / time.Second),
			MaxAttempts:    discovery.DefaultMaxAttempts,
		},
		Bind: Bind{
			Attempts:     discovery.DefaultBindAttempts,
			RetryDelayMS: int(discovery.DefaultBindRetryDelay / time.Millisecond),
		},
		Identity: Identity{
			ComponentType: protocol.ComponentBots.String(),
			Username:      os.Getenv("USER"),
			UID:           int32(os.Getuid()),
		},
		Responder: Responder{
			ComponentType: protocol.ComponentMachine.String(),
			ComponentID:   1,
		},
	}
}

// Validate checks ranges and names. All problems are reported together.
func (c *Config) Validate() error {
	var errs []error

	if c.Version != CurrentVersion {
		errs = append(errs, fmt.Errorf("unsupported config version: %d (expected %d)", c.Version, CurrentVersion))
	}
	if c.Network.BindPort == 0 {
		errs = append(errs, errors.New("network.bind_port must be set"))
	}
	if c.Network.BroadcastPort == 0 {
		errs = append(errs, errors.New("network.broadcast_port must be set"))
	}
	if c.Network.RecvWindow < protocol.Overhead || c.Network.RecvWindow > 65507 {
		errs = append(errs, fmt.Errorf("network.recv_window %d out of range [%d, 65507]", c.Network.RecvWindow, protocol.Overhead))
	}
	if c.Receive.TimeoutSeconds <= 0 {
		errs = append(errs, errors.New("receive.timeout_seconds must be positive"))
	}
	if c.Receive.MaxAttempts <= 0 {
		errs = append(errs, errors.New("receive.max_attempts must be positive"))
	}
	if c.Bind.Attempts <= 0 {
		errs = append(errs, errors.New("bind.attempts must be positive"))
	}
	if c.Bind.RetryDelayMS < 0 {
		errs = append(errs, errors.New("bind.retry_delay_ms must not be negative"))
	}
	if _, err := protocol.ParseComponentType(c.Identity.ComponentType); err != nil {
		errs = append(errs, fmt.Errorf("identity.component_type: %w", err))
	}
	if _, err := protocol.ParseComponentType(c.Responder.ComponentType); err != nil {
		errs = append(errs, fmt.Errorf("responder.component_type: %w", err))
	}

	return errors.Join(errs...)
}

// EndpointConfig converts the file settings into discovery endpoint settings.
func (c *Config) EndpointConfig() discovery.Config {
	return discovery.Config{
		Interface:      c.Network.Interface,
		BindPort:       c.Network.BindPort,
		RecvWindow:     c.Network.RecvWindow,
		ReceiveTimeout: time.Duration(c.Receive.TimeoutSeconds) * time.Second,
		MaxAttempts:    c.Receive.MaxAttempts,
		BindAttempts:   c.Bind.Attempts,
		BindRetryDelay: time.Duration(c.Bind.RetryDelayMS) * time.Millisecond,
	}
}

// ProbeComponent returns the component type a probe identifies as.
func (c *Config) ProbeComponent() (protocol.ComponentType, error) {
	return protocol.ParseComponentType(c.Identity.ComponentType)
}

// ResponderComponent returns the component type the responder announces.
func (c *Config) ResponderComponent() (protocol.ComponentType, error) {
	return protocol.ParseComponentType(c.Responder.ComponentType)
}

// ResponderHostname returns the configured hostname or the system one.
func (c *Config) ResponderHostname() string {
	if c.Responder.Hostname != "" {
		return c.Responder.Hostname
	}
	if h, err := os.Hostname(); err == nil {
		return h
	}
	return "localhost"
}
