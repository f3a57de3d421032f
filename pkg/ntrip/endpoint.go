// Package ntrip implements the client side of the NTRIP protocol: a caster
// session with handshake and reconnect, a correction client that pulls
// validated RTCM3 frames and relays position fixes, and a narrow server
// role that pushes a correction stream to a caster mount.
package ntrip

import (
	"net"
	"strconv"
)

// Endpoint identifies a mount on a caster. Immutable once a session is
// built around it.
type Endpoint struct {
	Host     string
	Port     int
	Mount    string
	Username string
	Password string
}

// Addr returns the host:port dial address.
func (e Endpoint) Addr() string {
	return net.JoinHostPort(e.Host, strconv.Itoa(e.Port))
}

// Role selects the handshake a session issues. Client sessions pull a
// correction stream with GET; server sessions push one with POST. The
// session itself is role-agnostic beyond the request method.
type Role struct {
	Name   string
	Method string
}

var (
	RoleClient = Role{Name: "client", Method: "GET"}
	RoleServer = Role{Name: "server", Method: "POST"}
)
