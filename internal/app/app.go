// Package app assembles the gnssrelay pipeline from its configuration:
// the positioning source, the sentence router with its sinks, and the
// caster client and server roles.
package app

import (
	"context"
	"fmt"
	"io"

	"github.com/rtklabs/gnssrelay/internal/cliconfig"
	"github.com/rtklabs/gnssrelay/internal/router"
	"github.com/rtklabs/gnssrelay/internal/sinks"
	"github.com/rtklabs/gnssrelay/internal/source"
	"github.com/rtklabs/gnssrelay/pkg/lifecycle"
	"github.com/rtklabs/gnssrelay/pkg/log"
	"github.com/rtklabs/gnssrelay/pkg/ntrip"
)

// sentenceDepth bounds the pump channel. A full channel blocks the source
// reader, which is the intended flow control toward a slow router.
const sentenceDepth = 64

// App owns every component of a running gnssrelay instance.
type App struct {
	cfg    cliconfig.Config
	log    log.Logger
	wsAddr string

	src    source.Source
	pump   *router.Pump
	router *router.Router
	client *ntrip.Client
	server *ntrip.Server
	hub    *sinks.Hub

	closers []io.Closer
}

// New builds the pipeline described by cfg. The returned App holds open
// devices and broker connections; Close releases them.
func New(cfg cliconfig.Config, logger log.Logger) (*App, error) {
	if logger == nil {
		logger = log.Nop()
	}
	a := &App{cfg: cfg, log: logger, wsAddr: cfg.WSAddr}

	if err := a.openSource(); err != nil {
		a.Close()
		return nil, err
	}
	if err := a.buildRoles(); err != nil {
		a.Close()
		return nil, err
	}

	bindings, err := a.buildBindings()
	if err != nil {
		a.Close()
		return nil, err
	}

	var transform *router.GSTTransform
	if cfg.TransformEPE {
		transform = router.NewGSTTransform(logger)
	}
	var fixes router.FixConsumer
	if a.client != nil {
		fixes = a.client
	}
	a.router = router.New(bindings, fixes, transform, logger)
	a.pump = router.NewPump(a.src, sentenceDepth, logger)
	return a, nil
}

func (a *App) openSource() error {
	switch a.cfg.SourceMode {
	case cliconfig.SourceSerial:
		src, err := source.OpenSerial(a.cfg.Device, a.cfg.Baud, a.cfg.SetupCommands, a.log)
		if err != nil {
			return fmt.Errorf("open source %s: %w", a.cfg.Device, err)
		}
		a.src = src
	case cliconfig.SourceMesh:
		src, err := source.DialMesh(a.cfg.MeshBroker, a.cfg.MeshClientID, a.cfg.MeshTopic, a.log)
		if err != nil {
			return fmt.Errorf("dial mesh source: %w", err)
		}
		a.src = src
	default:
		return fmt.Errorf("unknown source mode %q", a.cfg.SourceMode)
	}
	a.closers = append(a.closers, a.src)
	return nil
}

// buildRoles creates the caster client and server sessions. Each role gets
// its own connection and its own fixed-interval retry schedule.
func (a *App) buildRoles() error {
	ep := ntrip.Endpoint{
		Host:     a.cfg.CasterHost,
		Port:     a.cfg.CasterPort,
		Mount:    a.cfg.CasterMount,
		Username: a.cfg.CasterUser,
		Password: a.cfg.CasterPassword,
	}

	if a.cfg.NtripClient {
		sess := ntrip.NewSession(ep, ntrip.RoleClient, lifecycle.Fixed(a.cfg.ReconnectInterval), a.log)
		a.client = ntrip.NewClient(sess, a.cfg.RelayInterval, a.cfg.ReconnectInterval, a.log)
	}
	if a.cfg.NtripServer {
		sess := ntrip.NewSession(ep, ntrip.RoleServer, lifecycle.Fixed(a.cfg.ReconnectInterval), a.log)
		a.server = ntrip.NewServer(sess, a.cfg.ReconnectInterval)
	}
	return nil
}

// buildBindings opens the configured sinks in their fan-out order: serial,
// websocket, UDP, mesh, then the caster server, which only ever sees
// opaque correction data.
func (a *App) buildBindings() ([]router.Binding, error) {
	var bindings []router.Binding

	if a.cfg.SerialOut {
		s, err := sinks.OpenSerial(a.cfg.SerialOutDevice, a.cfg.SerialOutBaud, a.log)
		if err != nil {
			return nil, fmt.Errorf("open serial sink %s: %w", a.cfg.SerialOutDevice, err)
		}
		a.closers = append(a.closers, s)
		bindings = append(bindings, router.Binding{Sink: s})
	}

	if a.wsAddr != "" {
		a.hub = sinks.NewHub(a.log)
		a.hub.SetReceiver(func(p []byte) {
			if _, err := a.src.Write(p); err != nil {
				a.log.Warn("source write failed", log.Err(err))
			}
		})
		bindings = append(bindings, router.Binding{Sink: a.hub})
	}

	if a.cfg.UDPDest != "" {
		u, err := sinks.OpenUDP(a.cfg.UDPDest)
		if err != nil {
			return nil, fmt.Errorf("open udp sink %s: %w", a.cfg.UDPDest, err)
		}
		a.closers = append(a.closers, u)
		bindings = append(bindings, router.Binding{Sink: u})
	}

	if a.cfg.MeshRole == cliconfig.MeshSender {
		m, err := sinks.DialMesh(a.cfg.MeshBroker, a.cfg.MeshClientID, a.cfg.MeshTopic, a.cfg.MeshRole, a.log)
		if err != nil {
			return nil, fmt.Errorf("dial mesh sink: %w", err)
		}
		a.closers = append(a.closers, m)
		bindings = append(bindings, router.Binding{Sink: m})
	}

	if a.server != nil {
		bindings = append(bindings, router.Binding{Sink: sinks.NewCaster(a.server), OpaqueOnly: true})
	}
	return bindings, nil
}

// Run drives the pipeline until ctx is canceled, then joins every task
// within the shutdown grace period.
func (a *App) Run(ctx context.Context) error {
	group := lifecycle.NewGroup(ctx, a.log)

	group.Go("pump", a.pump.Run)
	group.Go("route", a.route)

	if a.client != nil {
		group.Go("ntrip-client", a.client.Run)
		group.Go("gga-relay", a.client.RunRelay)
		group.Go("correction-feed", a.feedCorrections)
	}
	if a.server != nil {
		group.Go("ntrip-server", a.server.Run)
	}
	if a.hub != nil {
		group.Go("websocket", func(ctx context.Context) error {
			return a.hub.Serve(ctx, a.wsAddr)
		})
	}

	<-ctx.Done()
	return group.Stop(a.cfg.ShutdownTimeout)
}

// route consumes the pump and fans each line out to the sinks.
func (a *App) route(ctx context.Context) error {
	for {
		select {
		case <-ctx.Done():
			return ctx.Err()
		case line, ok := <-a.pump.Lines():
			if !ok {
				return nil
			}
			a.router.Route(line)
		}
	}
}

// feedCorrections pulls validated correction frames from the caster and
// writes them to the positioning receiver. Decode and connection errors
// only cost the current frame; the client reconnects underneath us.
func (a *App) feedCorrections(ctx context.Context) error {
	for {
		frame, err := a.client.NextFrame(ctx)
		if err != nil {
			select {
			case <-ctx.Done():
				return ctx.Err()
			default:
			}
			a.log.Warn("correction stream interrupted", log.Err(err))
			continue
		}
		if _, err := a.src.Write(frame.Raw); err != nil {
			a.log.Warn("correction write failed",
				log.Int("bytes", len(frame.Raw)),
				log.Err(err),
			)
		}
	}
}

// Close releases devices and network resources in reverse open order.
func (a *App) Close() {
	for i := len(a.closers) - 1; i >= 0; i-- {
		if err := a.closers[i].Close(); err != nil {
			a.log.Warn("close failed", log.Err(err))
		}
	}
	a.closers = nil
}
