package cliconfig

import (
	"testing"
	"time"
)

func TestApplyEnvConfig(t *testing.T) {
	t.Setenv("GNSSRELAY_DEVICE", "/dev/fromenv")
	t.Setenv("GNSSRELAY_CASTER_PORT", "2102")
	t.Setenv("GNSSRELAY_NTRIP_CLIENT", "true")
	t.Setenv("GNSSRELAY_RELAY_INTERVAL", "3s")
	t.Setenv("GNSSRELAY_SETUP_COMMAND", "PQTMCFGUART,W,460800;PQTMSAVEPAR")

	cfg := DefaultConfig()
	if err := ApplyEnvConfig(&cfg, nil); err != nil {
		t.Fatalf("ApplyEnvConfig() error = %v", err)
	}

	if cfg.Device != "/dev/fromenv" {
		t.Errorf("Device = %q", cfg.Device)
	}
	if cfg.CasterPort != 2102 {
		t.Errorf("CasterPort = %d", cfg.CasterPort)
	}
	if !cfg.NtripClient {
		t.Error("NtripClient = false, want true")
	}
	if cfg.RelayInterval != 3*time.Second {
		t.Errorf("RelayInterval = %v, want 3s", cfg.RelayInterval)
	}
	want := []string{"PQTMCFGUART,W,460800", "PQTMSAVEPAR"}
	if len(cfg.SetupCommands) != len(want) {
		t.Fatalf("SetupCommands = %v", cfg.SetupCommands)
	}
	for i := range want {
		if cfg.SetupCommands[i] != want[i] {
			t.Errorf("SetupCommands[%d] = %q, want %q", i, cfg.SetupCommands[i], want[i])
		}
	}
}

func TestApplyEnvConfigFlagsWin(t *testing.T) {
	t.Setenv("GNSSRELAY_DEVICE", "/dev/fromenv")

	cfg := DefaultConfig()
	cfg.Device = "/dev/fromflag"

	if err := ApplyEnvConfig(&cfg, map[string]bool{"device": true}); err != nil {
		t.Fatalf("ApplyEnvConfig() error = %v", err)
	}
	if cfg.Device != "/dev/fromflag" {
		t.Errorf("Device = %q, flag value should win", cfg.Device)
	}
}

func TestApplyEnvConfigBadValue(t *testing.T) {
	t.Setenv("GNSSRELAY_BAUD", "fast")

	cfg := DefaultConfig()
	if err := ApplyEnvConfig(&cfg, nil); err == nil {
		t.Fatal("ApplyEnvConfig() error = nil, want parse error")
	}
}
