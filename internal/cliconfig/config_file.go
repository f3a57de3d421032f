package cliconfig

import (
	"fmt"
	"os"
	"path/filepath"
	"time"

	toml "github.com/pelletier/go-toml/v2"
)

// FileConfig mirrors Config but uses strings for durations to keep the
// TOML friendly.
type FileConfig struct {
	SourceMode    string   `toml:"source_mode"`
	Device        string   `toml:"device"`
	Baud          uint     `toml:"baud"`
	SetupCommands []string `toml:"setup_commands"`

	CasterHost     string `toml:"caster_host"`
	CasterPort     int    `toml:"caster_port"`
	CasterMount    string `toml:"caster_mount"`
	CasterUser     string `toml:"caster_user"`
	CasterPassword string `toml:"caster_password"`

	NtripClient *bool `toml:"ntrip_client"`
	NtripServer *bool `toml:"ntrip_server"`

	RelayInterval     string `toml:"relay_interval"`
	ReconnectInterval string `toml:"reconnect_interval"`

	SerialOut       *bool  `toml:"serial_out"`
	SerialOutDevice string `toml:"serial_out_device"`
	SerialOutBaud   uint   `toml:"serial_out_baud"`
	UDPDest         string `toml:"udp_dest"`
	WSAddr          string `toml:"ws_addr"`

	MeshBroker   string `toml:"mesh_broker"`
	MeshClientID string `toml:"mesh_client_id"`
	MeshTopic    string `toml:"mesh_topic"`
	MeshRole     string `toml:"mesh_role"`

	TransformEPE *bool `toml:"transform_epe"`

	LogLevel        string `toml:"log_level"`
	ShutdownTimeout string `toml:"shutdown_timeout"`
}

// LoadFileConfig reads and parses a TOML config file.
func LoadFileConfig(path string) (FileConfig, error) {
	var fc FileConfig
	b, err := os.ReadFile(path)
	if err != nil {
		return fc, err
	}
	if err := toml.Unmarshal(b, &fc); err != nil {
		return fc, err
	}
	return fc, nil
}

// DefaultConfigPath returns ~/.gnssrelay/config.toml when the home
// directory is accessible, otherwise empty.
func DefaultConfigPath() string {
	if h, err := os.UserHomeDir(); err == nil {
		return filepath.Join(h, ".gnssrelay", "config.toml")
	}
	return ""
}

// FileExists checks if a file exists at the given path.
func FileExists(p string) bool {
	_, err := os.Stat(p)
	return err == nil
}

// ApplyFileConfig applies values from a file to the Config, skipping any
// key whose flag was set explicitly (tracked in changed).
func ApplyFileConfig(cfg *Config, fc FileConfig, changed map[string]bool) error {
	s := setter{changed: changed}

	s.str("source", fc.SourceMode, &cfg.SourceMode)
	s.str("device", fc.Device, &cfg.Device)
	s.uint("baud", fc.Baud, &cfg.Baud)
	if len(fc.SetupCommands) > 0 && !changed["setup-command"] {
		cfg.SetupCommands = fc.SetupCommands
	}

	s.str("caster-host", fc.CasterHost, &cfg.CasterHost)
	s.int("caster-port", fc.CasterPort, &cfg.CasterPort)
	s.str("caster-mount", fc.CasterMount, &cfg.CasterMount)
	s.str("caster-user", fc.CasterUser, &cfg.CasterUser)
	s.str("caster-password", fc.CasterPassword, &cfg.CasterPassword)

	s.boolp("ntrip-client", fc.NtripClient, &cfg.NtripClient)
	s.boolp("ntrip-server", fc.NtripServer, &cfg.NtripServer)

	if err := s.duration("relay-interval", fc.RelayInterval, &cfg.RelayInterval); err != nil {
		return err
	}
	if err := s.duration("reconnect-interval", fc.ReconnectInterval, &cfg.ReconnectInterval); err != nil {
		return err
	}

	s.boolp("serial-out", fc.SerialOut, &cfg.SerialOut)
	s.str("serial-out-device", fc.SerialOutDevice, &cfg.SerialOutDevice)
	s.uint("serial-out-baud", fc.SerialOutBaud, &cfg.SerialOutBaud)
	s.str("udp-dest", fc.UDPDest, &cfg.UDPDest)
	s.str("ws-addr", fc.WSAddr, &cfg.WSAddr)

	s.str("mesh-broker", fc.MeshBroker, &cfg.MeshBroker)
	s.str("mesh-client-id", fc.MeshClientID, &cfg.MeshClientID)
	s.str("mesh-topic", fc.MeshTopic, &cfg.MeshTopic)
	s.str("mesh-role", fc.MeshRole, &cfg.MeshRole)

	s.boolp("transform-epe", fc.TransformEPE, &cfg.TransformEPE)

	s.str("log-level", fc.LogLevel, &cfg.LogLevel)
	return s.duration("shutdown-timeout", fc.ShutdownTimeout, &cfg.ShutdownTimeout)
}

// setter applies file values unless the matching flag was changed.
type setter struct {
	changed map[string]bool
}

func (s setter) str(flag, v string, dst *string) {
	if v != "" && !s.changed[flag] {
		*dst = v
	}
}

func (s setter) int(flag string, v int, dst *int) {
	if v != 0 && !s.changed[flag] {
		*dst = v
	}
}

func (s setter) uint(flag string, v uint, dst *uint) {
	if v != 0 && !s.changed[flag] {
		*dst = v
	}
}

func (s setter) boolp(flag string, v *bool, dst *bool) {
	if v != nil && !s.changed[flag] {
		*dst = *v
	}
}

func (s setter) duration(flag, v string, dst *time.Duration) error {
	if v == "" || s.changed[flag] {
		return nil
	}
	d, err := time.ParseDuration(v)
	if err != nil {
		return fmt.Errorf("%s: %w", flag, err)
	}
	*dst = d
	return nil
}
