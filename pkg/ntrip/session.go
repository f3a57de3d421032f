package ntrip

import (
	"bytes"
	"context"
	"encoding/base64"
	"errors"
	"fmt"
	"net"
	"sync"
	"time"

	"github.com/rtklabs/gnssrelay/pkg/lifecycle"
	"github.com/rtklabs/gnssrelay/pkg/log"
)

const (
	// dialTimeout bounds both the TCP connect and the handshake exchange.
	dialTimeout = 10 * time.Second

	// responseLimit is how much of the handshake response is read before
	// scanning for the status line.
	responseLimit = 1024

	// UserAgent is sent on every handshake.
	UserAgent = "NTRIP gnssrelay/1.0"
)

var (
	// ErrNotConnected is returned by Write when no connection is up.
	ErrNotConnected = errors.New("ntrip: not connected")

	// ErrHandshakeRejected marks a response with no "200 OK" status line.
	ErrHandshakeRejected = errors.New("ntrip: handshake rejected")
)

// Session owns one TCP connection to a caster: it dials, completes the
// NTRIP handshake for its role, and retries with backoff until a usable
// connection exists. The connection is shared between the reading and
// writing tasks, so access goes through the session.
type Session struct {
	ep      Endpoint
	role    Role
	backoff *lifecycle.Backoff
	log     log.Logger

	mu   sync.Mutex
	conn net.Conn
}

// NewSession creates a session for the given endpoint and role. The backoff
// governs the delay between failed connection attempts.
func NewSession(ep Endpoint, role Role, backoff *lifecycle.Backoff, logger log.Logger) *Session {
	if logger == nil {
		logger = log.Nop()
	}
	return &Session{ep: ep, role: role, backoff: backoff, log: logger}
}

// Endpoint returns the caster endpoint the session was built for.
func (s *Session) Endpoint() Endpoint { return s.ep }

// Request builds the handshake request for the given mount, or for the
// endpoint's mount when empty.
func (s *Session) Request(mount string) []byte {
	if mount == "" {
		mount = s.ep.Mount
	}
	cred := base64.StdEncoding.EncodeToString([]byte(s.ep.Username + ":" + s.ep.Password))

	var b bytes.Buffer
	fmt.Fprintf(&b, "%s /%s HTTP/1.1\r\n", s.role.Method, mount)
	b.WriteString("Ntrip-Version: Ntrip/2.0\r\n")
	fmt.Fprintf(&b, "User-Agent: %s\r\n", UserAgent)
	fmt.Fprintf(&b, "Authorization: Basic %s\r\n", cred)
	b.WriteString("Connection: keep-alive\r\n")
	b.WriteString("\r\n")
	return b.Bytes()
}

// Connect dials and completes the handshake, retrying with the configured
// backoff until it succeeds or ctx is canceled. A rejected handshake is
// retried like any network failure: the caster gives no reliable way to
// tell a bad credential from a flaky route, so the session keeps trying
// either way and the distinction only shows up in the log.
func (s *Session) Connect(ctx context.Context) error {
	for {
		err := s.attempt(ctx)
		if err == nil {
			s.backoff.Reset()
			return nil
		}
		if ctx.Err() != nil {
			return ctx.Err()
		}
		s.log.Warn("caster connection failed",
			log.Str("addr", s.ep.Addr()),
			log.Str("mount", s.ep.Mount),
			log.Str("role", s.role.Name),
			log.Dur("retry_in", s.backoff.Current()),
			log.Err(err),
		)
		if err := s.backoff.Wait(ctx); err != nil {
			return err
		}
	}
}

func (s *Session) attempt(ctx context.Context) error {
	d := net.Dialer{Timeout: dialTimeout}
	conn, err := d.DialContext(ctx, "tcp", s.ep.Addr())
	if err != nil {
		return err
	}
	if err := s.handshake(conn); err != nil {
		_ = conn.Close()
		return err
	}

	s.mu.Lock()
	s.conn = conn
	s.mu.Unlock()
	s.log.Info("caster connected",
		log.Str("addr", s.ep.Addr()),
		log.Str("mount", s.ep.Mount),
		log.Str("role", s.role.Name),
	)
	return nil
}

// handshake sends the request and scans the response headers for a line
// ending in "200 OK". Both NTRIP 1 ("ICY 200 OK") and 2 ("HTTP/1.1 200 OK")
// casters pass this check.
func (s *Session) handshake(conn net.Conn) error {
	_ = conn.SetDeadline(time.Now().Add(dialTimeout))
	defer conn.SetDeadline(time.Time{})

	if _, err := conn.Write(s.Request("")); err != nil {
		return err
	}

	buf := make([]byte, responseLimit)
	n, err := conn.Read(buf)
	if err != nil {
		return err
	}
	for _, line := range bytes.Split(buf[:n], []byte("\r\n")) {
		if bytes.HasSuffix(line, []byte("200 OK")) {
			return nil
		}
	}
	status, _, _ := bytes.Cut(buf[:n], []byte("\r\n"))
	return fmt.Errorf("%w: %q", ErrHandshakeRejected, status)
}

// Connected reports whether a connection is currently up.
func (s *Session) Connected() bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.conn != nil
}

// Conn returns the live connection, or nil. Readers take the connection
// once and rebuild their decoder when it changes.
func (s *Session) Conn() net.Conn {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.conn
}

// Write sends p on the current connection.
func (s *Session) Write(p []byte) error {
	conn := s.Conn()
	if conn == nil {
		return ErrNotConnected
	}
	_, err := conn.Write(p)
	return err
}

// Drop closes the current connection, discarding close errors. The session
// reports not-connected afterwards; Connect builds the next one.
func (s *Session) Drop() {
	s.mu.Lock()
	conn := s.conn
	s.conn = nil
	s.mu.Unlock()
	if conn != nil {
		_ = conn.Close()
	}
}
