package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"runtime"
	"runtime/debug"
	"syscall"

	"github.com/rs/zerolog"
	"github.com/spf13/cobra"
	pflag "github.com/spf13/pflag"

	"github.com/rtklabs/gnssrelay/internal/app"
	"github.com/rtklabs/gnssrelay/internal/cliconfig"
	"github.com/rtklabs/gnssrelay/pkg/log"
)

const longHelp = `
gnssrelay sits between a GNSS receiver and everything that wants its data.

It reads the receiver's mixed NMEA/RTCM stream and fans it out to serial,
UDP, websocket and MQTT consumers, pulls RTCM corrections from an NTRIP
caster into the receiver, and can publish the receiver's own corrections
back to a caster as a base station.

Configuration merges three sources, lowest to highest precedence: the TOML
config file, GNSSRELAY_* environment variables, and command-line flags.
`

const exampleUsage = `  gnssrelay --device /dev/ttyAMA0 --udp-dest 255.255.255.255:4352
  gnssrelay --device /dev/ttyS0 --ntrip-client --caster-host rtk2go.com --caster-mount MYBASE --caster-user u --caster-password p`

func getVersion() string {
	if info, ok := debug.ReadBuildInfo(); ok && info.Main.Version != "" {
		return info.Main.Version
	}
	return "dev"
}

func main() {
	cfg := cliconfig.DefaultConfig()
	var cfgPath string

	root := &cobra.Command{
		Use:     "gnssrelay",
		Short:   "Relay a GNSS receiver's sentence stream and NTRIP corrections",
		Long:    longHelp,
		Example: exampleUsage,
		Version: fmt.Sprintf("%s %s/%s", getVersion(), runtime.GOOS, runtime.GOARCH),
		RunE: func(cmd *cobra.Command, args []string) error {
			changed := map[string]bool{}
			cmd.Flags().Visit(func(f *pflag.Flag) { changed[f.Name] = true })

			cfgFile := cfgPath
			if cfgFile == "" {
				cfgFile = cliconfig.DefaultConfigPath()
			}
			if !cliconfig.FileExists(cfgFile) {
				cfgFile = ""
			}

			ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
			defer stop()

			// Snapshot of defaults plus flag overrides. Each run cycle
			// re-merges the file and environment on top so a config file
			// edit takes effect on restart.
			flagCfg := cfg

			var watcher *cliconfig.Watcher
			for {
				runCfg := flagCfg
				runCfg.SetupCommands = append([]string(nil), flagCfg.SetupCommands...)

				if cfgFile != "" {
					fc, err := cliconfig.LoadFileConfig(cfgFile)
					if err != nil {
						return fmt.Errorf("load config: %w", err)
					}
					if err := cliconfig.ApplyFileConfig(&runCfg, fc, changed); err != nil {
						return err
					}
				}
				if err := cliconfig.ApplyEnvConfig(&runCfg, changed); err != nil {
					return err
				}
				if err := runCfg.Validate(); err != nil {
					return err
				}

				level, err := zerolog.ParseLevel(runCfg.LogLevel)
				if err != nil {
					return fmt.Errorf("log-level: %w", err)
				}
				logger := log.NewConsole(level)

				if watcher == nil && cfgFile != "" {
					watcher = cliconfig.NewWatcher(cfgFile, logger)
					go func() {
						if err := watcher.Run(ctx); err != nil {
							logger.Warn("config watcher stopped", log.Err(err))
						}
					}()
				}

				logger.Info("starting",
					log.Str("source", runCfg.SourceMode),
					log.Str("device", runCfg.Device),
					log.Any("ntrip_client", runCfg.NtripClient),
					log.Any("ntrip_server", runCfg.NtripServer),
				)

				restart, err := runOnce(ctx, runCfg, logger, watcher)
				if err != nil {
					return err
				}
				if !restart {
					return nil
				}
				logger.Info("configuration changed, restarting")
			}
		},
	}

	root.Flags().StringVar(&cfgPath, "config", "", "path to config file (default: $HOME/.gnssrelay/config.toml)")

	root.Flags().StringVar(&cfg.SourceMode, "source", cfg.SourceMode, "positioning source: serial or mesh")
	root.Flags().StringVar(&cfg.Device, "device", cfg.Device, "receiver serial device")
	root.Flags().UintVar(&cfg.Baud, "baud", cfg.Baud, "receiver baud rate")
	root.Flags().StringArrayVar(&cfg.SetupCommands, "setup-command", nil, "NMEA command sent to the receiver at startup (repeatable, without $ and checksum)")

	root.Flags().StringVar(&cfg.CasterHost, "caster-host", cfg.CasterHost, "NTRIP caster hostname")
	root.Flags().IntVar(&cfg.CasterPort, "caster-port", cfg.CasterPort, "NTRIP caster port")
	root.Flags().StringVar(&cfg.CasterMount, "caster-mount", cfg.CasterMount, "NTRIP mountpoint")
	root.Flags().StringVar(&cfg.CasterUser, "caster-user", cfg.CasterUser, "NTRIP username")
	root.Flags().StringVar(&cfg.CasterPassword, "caster-password", cfg.CasterPassword, "NTRIP password")

	root.Flags().BoolVar(&cfg.NtripClient, "ntrip-client", cfg.NtripClient, "pull corrections from the caster into the receiver")
	root.Flags().BoolVar(&cfg.NtripServer, "ntrip-server", cfg.NtripServer, "publish the receiver's corrections to the caster")

	root.Flags().DurationVar(&cfg.RelayInterval, "relay-interval", cfg.RelayInterval, "interval between position fixes relayed to the caster")
	root.Flags().DurationVar(&cfg.ReconnectInterval, "reconnect-interval", cfg.ReconnectInterval, "delay between caster connection attempts")

	root.Flags().BoolVar(&cfg.SerialOut, "serial-out", cfg.SerialOut, "enable the serial output sink")
	root.Flags().StringVar(&cfg.SerialOutDevice, "serial-out-device", cfg.SerialOutDevice, "serial output device")
	root.Flags().UintVar(&cfg.SerialOutBaud, "serial-out-baud", cfg.SerialOutBaud, "serial output baud rate")
	root.Flags().StringVar(&cfg.UDPDest, "udp-dest", cfg.UDPDest, "UDP destination addr:port (broadcast allowed)")
	root.Flags().StringVar(&cfg.WSAddr, "ws-addr", cfg.WSAddr, "websocket listen addr:port")

	root.Flags().StringVar(&cfg.MeshBroker, "mesh-broker", cfg.MeshBroker, "MQTT broker URL for the mesh link")
	root.Flags().StringVar(&cfg.MeshClientID, "mesh-client-id", cfg.MeshClientID, "MQTT client ID")
	root.Flags().StringVar(&cfg.MeshTopic, "mesh-topic", cfg.MeshTopic, "MQTT topic carrying the sentence stream")
	root.Flags().StringVar(&cfg.MeshRole, "mesh-role", cfg.MeshRole, "mesh link role: off, sender or receiver")

	root.Flags().BoolVar(&cfg.TransformEPE, "transform-epe", cfg.TransformEPE, "rewrite PQTMEPE accuracy sentences as GST")

	root.Flags().StringVar(&cfg.LogLevel, "log-level", cfg.LogLevel, "log level: trace, debug, info, warn or error")
	root.Flags().DurationVar(&cfg.ShutdownTimeout, "shutdown-timeout", cfg.ShutdownTimeout, "grace period for tasks on shutdown")

	if err := root.Execute(); err != nil {
		fmt.Fprintf(os.Stderr, "gnssrelay: %v\n", err)
		os.Exit(1)
	}
}

// runOnce builds and runs the pipeline until the process is signaled or
// the config file changes. Returns restart=true on a config change.
func runOnce(ctx context.Context, cfg cliconfig.Config, logger log.Logger, watcher *cliconfig.Watcher) (restart bool, err error) {
	a, err := app.New(cfg, logger)
	if err != nil {
		return false, err
	}
	defer a.Close()

	runCtx, cancel := context.WithCancel(ctx)
	defer cancel()

	done := make(chan error, 1)
	go func() { done <- a.Run(runCtx) }()

	var changes <-chan struct{}
	if watcher != nil {
		changes = watcher.Changes()
	}

	select {
	case <-ctx.Done():
		logger.Info("shutting down")
		return false, <-done
	case <-changes:
		cancel()
		if err := <-done; err != nil {
			return false, err
		}
		return true, nil
	}
}
