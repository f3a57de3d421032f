package ntrip

import (
	"context"
	"time"
)

// Server pushes the receiver's raw correction output to a caster mount
// using the server-role handshake. Only the connection lifecycle and the
// push path are implemented; gnssrelay never serves a source table or talks
// to subscribers itself.
type Server struct {
	session      *Session
	pollInterval time.Duration
}

// NewServer creates a server-role pusher over the given session.
func NewServer(session *Session, pollInterval time.Duration) *Server {
	return &Server{session: session, pollInterval: pollInterval}
}

// Run maintains the caster connection until ctx is done.
func (s *Server) Run(ctx context.Context) error {
	for {
		if err := s.session.Connect(ctx); err != nil {
			return err
		}
		for s.session.Connected() {
			select {
			case <-ctx.Done():
				s.session.Drop()
				return ctx.Err()
			case <-time.After(s.pollInterval):
			}
		}
	}
}

// Connected reports whether the push link is up.
func (s *Server) Connected() bool { return s.session.Connected() }

// Send writes one line of receiver output to the caster. A write failure
// drops the connection so Run can rebuild it.
func (s *Server) Send(p []byte) error {
	if err := s.session.Write(p); err != nil {
		s.session.Drop()
		return err
	}
	return nil
}
