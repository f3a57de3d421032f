package cliconfig

import (
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"
)

const envPrefix = "GNSSRELAY_"

// ApplyEnvConfig applies GNSSRELAY_* environment variables to the Config.
// Environment values override the config file but lose to flags set on
// the command line (tracked in changed).
func ApplyEnvConfig(cfg *Config, changed map[string]bool) error {
	for _, e := range []struct {
		flag  string
		apply func(string) error
	}{
		{"source", envStr(&cfg.SourceMode)},
		{"device", envStr(&cfg.Device)},
		{"baud", envUint(&cfg.Baud)},
		{"setup-command", func(v string) error {
			cfg.SetupCommands = strings.Split(v, ";")
			return nil
		}},
		{"caster-host", envStr(&cfg.CasterHost)},
		{"caster-port", envInt(&cfg.CasterPort)},
		{"caster-mount", envStr(&cfg.CasterMount)},
		{"caster-user", envStr(&cfg.CasterUser)},
		{"caster-password", envStr(&cfg.CasterPassword)},
		{"ntrip-client", envBool(&cfg.NtripClient)},
		{"ntrip-server", envBool(&cfg.NtripServer)},
		{"relay-interval", envDuration(&cfg.RelayInterval)},
		{"reconnect-interval", envDuration(&cfg.ReconnectInterval)},
		{"serial-out", envBool(&cfg.SerialOut)},
		{"serial-out-device", envStr(&cfg.SerialOutDevice)},
		{"serial-out-baud", envUint(&cfg.SerialOutBaud)},
		{"udp-dest", envStr(&cfg.UDPDest)},
		{"ws-addr", envStr(&cfg.WSAddr)},
		{"mesh-broker", envStr(&cfg.MeshBroker)},
		{"mesh-client-id", envStr(&cfg.MeshClientID)},
		{"mesh-topic", envStr(&cfg.MeshTopic)},
		{"mesh-role", envStr(&cfg.MeshRole)},
		{"transform-epe", envBool(&cfg.TransformEPE)},
		{"log-level", envStr(&cfg.LogLevel)},
		{"shutdown-timeout", envDuration(&cfg.ShutdownTimeout)},
	} {
		if changed[e.flag] {
			continue
		}
		name := envName(e.flag)
		v, ok := os.LookupEnv(name)
		if !ok {
			continue
		}
		if err := e.apply(v); err != nil {
			return fmt.Errorf("%s: %w", name, err)
		}
	}
	return nil
}

func envName(flag string) string {
	return envPrefix + strings.ToUpper(strings.ReplaceAll(flag, "-", "_"))
}

func envStr(dst *string) func(string) error {
	return func(v string) error {
		*dst = v
		return nil
	}
}

func envInt(dst *int) func(string) error {
	return func(v string) error {
		n, err := strconv.Atoi(v)
		if err != nil {
			return err
		}
		*dst = n
		return nil
	}
}

func envUint(dst *uint) func(string) error {
	return func(v string) error {
		n, err := strconv.ParseUint(v, 10, 32)
		if err != nil {
			return err
		}
		*dst = uint(n)
		return nil
	}
}

func envBool(dst *bool) func(string) error {
	return func(v string) error {
		b, err := strconv.ParseBool(v)
		if err != nil {
			return err
		}
		*dst = b
		return nil
	}
}

func envDuration(dst *time.Duration) func(string) error {
	return func(v string) error {
		d, err := time.ParseDuration(v)
		if err != nil {
			return err
		}
		*dst = d
		return nil
	}
}
