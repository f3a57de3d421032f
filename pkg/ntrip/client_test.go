package ntrip

import (
	"bytes"
	"context"
	"net"
	"testing"
	"time"

	"github.com/goblimey/go-crc24q/crc24q"

	"github.com/rtklabs/gnssrelay/pkg/lifecycle"
	"github.com/rtklabs/gnssrelay/pkg/log"
)

// makeFrame wraps payload in a leader and trailing CRC24Q.
func makeFrame(payload []byte) []byte {
	raw := []byte{0xD3, byte(len(payload) >> 8 & 0x03), byte(len(payload))}
	raw = append(raw, payload...)
	crc := crc24q.Hash(raw)
	return append(raw, crc24q.HiByte(crc), crc24q.MiByte(crc), crc24q.LoByte(crc))
}

func newTestClient(ep Endpoint, relay time.Duration) *Client {
	session := NewSession(ep, RoleClient, lifecycle.Fixed(10*time.Millisecond), log.Nop())
	return NewClient(session, relay, 10*time.Millisecond, log.Nop())
}

func TestClientRelaysLatestFix(t *testing.T) {
	received := make(chan []byte, 16)
	ep := startCaster(t, func(conn net.Conn) {
		buf := make([]byte, 1024)
		conn.Read(buf)
		conn.Write([]byte("ICY 200 OK\r\n"))
		for {
			n, err := conn.Read(buf)
			if err != nil {
				return
			}
			received <- append([]byte(nil), buf[:n]...)
		}
	})

	client := newTestClient(ep, 50*time.Millisecond)
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	if err := client.session.Connect(ctx); err != nil {
		t.Fatalf("Connect: %v", err)
	}
	go client.RunRelay(ctx)

	// Three fixes inside one interval: only the last survives.
	client.SetPositionFix([]byte("$GPGGA,one\r\n"))
	client.SetPositionFix([]byte("$GPGGA,two\r\n"))
	client.SetPositionFix([]byte("$GPGGA,three\r\n"))

	select {
	case got := <-received:
		if !bytes.Equal(got, []byte("$GPGGA,three\r\n")) {
			t.Errorf("caster received %q, want the last-set fix", got)
		}
	case <-time.After(2 * time.Second):
		t.Fatal("no fix relayed within two intervals")
	}

	// Nothing further arrives before the next tick.
	select {
	case got := <-received:
		t.Errorf("unexpected extra relay %q within the same interval", got)
	case <-time.After(20 * time.Millisecond):
	}
}

func TestClientNextFrame(t *testing.T) {
	frameA := makeFrame([]byte{0x3E, 0xC0, 0x01, 0x02, 0x03})
	frameB := makeFrame([]byte{0x3E, 0xD0, 0x0A, 0x0B})

	ep := startCaster(t, func(conn net.Conn) {
		buf := make([]byte, 1024)
		conn.Read(buf)
		conn.Write([]byte("ICY 200 OK\r\n"))
		conn.Write([]byte("junk before "))
		conn.Write(frameA)
		conn.Write([]byte("junk between"))
		conn.Write(frameB)
		conn.Close()
	})

	client := newTestClient(ep, time.Hour)
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	if err := client.session.Connect(ctx); err != nil {
		t.Fatalf("Connect: %v", err)
	}

	got, err := client.NextFrame(ctx)
	if err != nil {
		t.Fatalf("NextFrame: %v", err)
	}
	if !bytes.Equal(got.Raw, frameA) {
		t.Errorf("first frame = %x, want %x", got.Raw, frameA)
	}

	got, err = client.NextFrame(ctx)
	if err != nil {
		t.Fatalf("NextFrame: %v", err)
	}
	if !bytes.Equal(got.Raw, frameB) {
		t.Errorf("second frame = %x, want %x", got.Raw, frameB)
	}

	// The caster closed the stream: the client reports the failure and
	// drops the connection so the run loop can rebuild it.
	if _, err := client.NextFrame(ctx); err == nil {
		t.Fatal("NextFrame after close returned no error")
	}
	if client.session.Connected() {
		t.Error("session still connected after read failure")
	}
}
