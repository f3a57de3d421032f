package ntrip

import (
	"context"
	"net"
	"sync"
	"sync/atomic"
	"time"

	"github.com/rtklabs/gnssrelay/pkg/log"
	"github.com/rtklabs/gnssrelay/pkg/rtcm"
)

// notReadyPoll is how long NextFrame waits for a connection to appear
// before checking again.
const notReadyPoll = time.Second

// Client pulls a validated RTCM3 frame stream from a caster and relays the
// receiver's latest position fix back on a fixed cadence.
//
// Three tasks cooperate around one session: Run owns connection
// establishment, NextFrame consumes the open connection and signals loss by
// dropping it, and RunRelay writes the fix without ever triggering a
// reconnect itself.
type Client struct {
	session       *Session
	relayInterval time.Duration
	pollInterval  time.Duration
	log           log.Logger

	// fix holds the most recent GGA sentence as []byte. Last write wins;
	// the relay loop reads whatever is current when its tick fires, and a
	// stale value for one interval is acceptable.
	fix atomic.Value

	mu      sync.Mutex
	dec     *rtcm.Decoder
	decConn net.Conn
}

// NewClient creates a correction client over the given session. The relay
// interval is the single source of truth for the fix cadence; the poll
// interval is how often Run rechecks a connection it believes healthy.
func NewClient(session *Session, relayInterval, pollInterval time.Duration, logger log.Logger) *Client {
	if logger == nil {
		logger = log.Nop()
	}
	return &Client{
		session:       session,
		relayInterval: relayInterval,
		pollInterval:  pollInterval,
		log:           logger,
	}
}

// SetPositionFix records the receiver's most recent GGA sentence. Safe to
// call from a different goroutine than the relay loop.
func (c *Client) SetPositionFix(line []byte) {
	c.fix.Store(append([]byte(nil), line...))
}

// Run owns connection establishment: connect, idle while the link stays up,
// reconnect when the read path drops it. Returns only when ctx is done.
func (c *Client) Run(ctx context.Context) error {
	for {
		if err := c.session.Connect(ctx); err != nil {
			return err
		}
		for c.session.Connected() {
			select {
			case <-ctx.Done():
				c.session.Drop()
				return ctx.Err()
			case <-time.After(c.pollInterval):
			}
		}
	}
}

// RunRelay forwards the stored fix to the caster once per relay interval.
// Write failures are logged and the loop keeps its cadence; discovering the
// dead connection is the read path's job.
func (c *Client) RunRelay(ctx context.Context) error {
	ticker := time.NewTicker(c.relayInterval)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-ticker.C:
		}

		fix, _ := c.fix.Load().([]byte)
		if fix == nil || !c.session.Connected() {
			continue
		}
		if err := c.session.Write(fix); err != nil {
			c.log.Warn("relaying fix to caster failed", log.Err(err))
			continue
		}
		c.log.Debug("relayed fix to caster", log.Int("bytes", len(fix)))
	}
}

// NextFrame blocks until the next validated frame arrives. CRC-level
// framing errors never surface here; they are absorbed by the decoder. On a
// read error the connection is dropped so Run rebuilds it, and the error is
// returned for the caller to loop on.
func (c *Client) NextFrame(ctx context.Context) (rtcm.Frame, error) {
	for {
		dec := c.decoder()
		if dec == nil {
			select {
			case <-ctx.Done():
				return rtcm.Frame{}, ctx.Err()
			case <-time.After(notReadyPoll):
			}
			continue
		}

		frame, err := dec.Next()
		if err == nil {
			return frame, nil
		}
		c.log.Warn("caster read failed, dropping connection", log.Err(err))
		c.session.Drop()
		return rtcm.Frame{}, err
	}
}

// decoder returns a decoder for the current connection, building a fresh
// one whenever the session reconnects, or nil while disconnected.
func (c *Client) decoder() *rtcm.Decoder {
	conn := c.session.Conn()
	if conn == nil {
		return nil
	}
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.decConn != conn {
		c.dec = rtcm.NewDecoder(conn)
		c.decConn = conn
	}
	return c.dec
}
