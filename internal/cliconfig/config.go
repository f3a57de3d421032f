// Package cliconfig merges the gnssrelay configuration from its three
// sources: the TOML config file, GNSSRELAY_* environment variables, and
// command-line flags, in ascending order of precedence.
package cliconfig

import (
	"fmt"
	"time"
)

// Source modes.
const (
	SourceSerial = "serial"
	SourceMesh   = "mesh"
)

// Mesh roles.
const (
	MeshOff      = "off"
	MeshSender   = "sender"
	MeshReceiver = "receiver"
)

// Config holds the runtime configuration for gnssrelay.
type Config struct {
	// Positioning source.
	SourceMode    string
	Device        string
	Baud          uint
	SetupCommands []string

	// Caster endpoint, shared by the client and server roles.
	CasterHost     string
	CasterPort     int
	CasterMount    string
	CasterUser     string
	CasterPassword string

	NtripClient bool
	NtripServer bool

	// RelayInterval is the GGA cadence toward the caster. This field is
	// the single source of truth for the relay loop.
	RelayInterval time.Duration

	// ReconnectInterval is the fixed delay between caster connection
	// attempts and the liveness poll period of the connection owners.
	ReconnectInterval time.Duration

	// Output sinks. A sink is enabled by its address/device being set,
	// except serial output which has an explicit switch to allow the
	// common device-plus-defaults case.
	SerialOut       bool
	SerialOutDevice string
	SerialOutBaud   uint
	UDPDest         string
	WSAddr          string

	// Mesh link, shared by the sink (sender) and source (receiver).
	MeshBroker   string
	MeshClientID string
	MeshTopic    string
	MeshRole     string

	// TransformEPE enables the PQTMEPE-to-GST rewrite.
	TransformEPE bool

	LogLevel        string
	ShutdownTimeout time.Duration
}

// DefaultConfig returns a Config with default values.
func DefaultConfig() Config {
	return Config{
		SourceMode:        SourceSerial,
		Baud:              115200,
		CasterPort:        2101,
		RelayInterval:     5 * time.Second,
		ReconnectInterval: 10 * time.Second,
		SerialOutBaud:     115200,
		MeshClientID:      "gnssrelay",
		MeshTopic:         "gnssrelay/sentences",
		MeshRole:          MeshOff,
		LogLevel:          "info",
		ShutdownTimeout:   10 * time.Second,
	}
}

// Validate checks the configuration for errors.
func (c *Config) Validate() error {
	switch c.SourceMode {
	case SourceSerial:
		if c.Device == "" {
			return fmt.Errorf("device is required with the serial source")
		}
	case SourceMesh:
		if c.MeshBroker == "" {
			return fmt.Errorf("mesh-broker is required with the mesh source")
		}
		if c.MeshRole != MeshReceiver {
			return fmt.Errorf("mesh source requires mesh-role=receiver")
		}
	default:
		return fmt.Errorf("unknown source mode %q", c.SourceMode)
	}

	if c.NtripClient || c.NtripServer {
		if c.CasterHost == "" {
			return fmt.Errorf("caster-host is required for NTRIP roles")
		}
		if c.CasterMount == "" {
			return fmt.Errorf("caster-mount is required for NTRIP roles")
		}
		if c.CasterPort <= 0 || c.CasterPort > 65535 {
			return fmt.Errorf("caster-port %d out of range", c.CasterPort)
		}
	}

	if c.SerialOut && c.SerialOutDevice == "" {
		return fmt.Errorf("serial-out-device is required when serial output is enabled")
	}

	switch c.MeshRole {
	case MeshOff, MeshSender, MeshReceiver:
	default:
		return fmt.Errorf("unknown mesh role %q", c.MeshRole)
	}
	if c.MeshRole != MeshOff && c.MeshBroker == "" {
		return fmt.Errorf("mesh-broker is required when the mesh role is %q", c.MeshRole)
	}

	if c.RelayInterval <= 0 {
		return fmt.Errorf("relay interval must be positive")
	}
	if c.ReconnectInterval <= 0 {
		return fmt.Errorf("reconnect interval must be positive")
	}
	if c.ShutdownTimeout <= 0 {
		return fmt.Errorf("shutdown timeout must be positive")
	}
	return nil
}
