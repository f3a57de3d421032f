package sinks

import "github.com/rtklabs/gnssrelay/pkg/ntrip"

// Caster adapts the server-role NTRIP session to the sink interface so the
// router can fan the receiver's opaque output into it.
type Caster struct {
	srv *ntrip.Server
}

func NewCaster(srv *ntrip.Server) *Caster { return &Caster{srv: srv} }

func (c *Caster) Name() string { return "ntrip-server" }

func (c *Caster) Ready() bool { return c.srv.Connected() }

func (c *Caster) Write(p []byte) error { return c.srv.Send(p) }
