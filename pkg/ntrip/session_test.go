package ntrip

import (
	"context"
	"errors"
	"net"
	"sync/atomic"
	"testing"
	"time"

	"github.com/rtklabs/gnssrelay/pkg/lifecycle"
	"github.com/rtklabs/gnssrelay/pkg/log"
)

// startCaster runs a fake caster on a loopback port, passing each accepted
// connection to handler.
func startCaster(t *testing.T, handler func(conn net.Conn)) Endpoint {
	t.Helper()
	ln, err := net.Listen("tcp", "127.0.0.1:0")
	if err != nil {
		t.Fatalf("listen: %v", err)
	}
	t.Cleanup(func() { ln.Close() })

	go func() {
		for {
			conn, err := ln.Accept()
			if err != nil {
				return
			}
			go handler(conn)
		}
	}()

	return Endpoint{
		Host:     "127.0.0.1",
		Port:     ln.Addr().(*net.TCPAddr).Port,
		Mount:    "TEST",
		Username: "user",
		Password: "pass",
	}
}

// acceptOK performs the caster side of a successful handshake and keeps the
// connection open.
func acceptOK(conn net.Conn) {
	buf := make([]byte, 1024)
	if _, err := conn.Read(buf); err != nil {
		conn.Close()
		return
	}
	conn.Write([]byte("ICY 200 OK\r\n"))
}

func TestSessionRequest(t *testing.T) {
	ep := Endpoint{Host: "caster.example.com", Port: 2101, Mount: "MOUNT", Username: "user", Password: "pass"}
	s := NewSession(ep, RoleClient, lifecycle.Fixed(time.Second), log.Nop())

	want := "GET /MOUNT HTTP/1.1\r\n" +
		"Ntrip-Version: Ntrip/2.0\r\n" +
		"User-Agent: NTRIP gnssrelay/1.0\r\n" +
		"Authorization: Basic dXNlcjpwYXNz\r\n" +
		"Connection: keep-alive\r\n" +
		"\r\n"
	if got := string(s.Request("")); got != want {
		t.Errorf("Request() =\n%q\nwant\n%q", got, want)
	}

	if got := string(NewSession(ep, RoleServer, lifecycle.Fixed(time.Second), log.Nop()).Request("OTHER")); got[:len("POST /OTHER")] != "POST /OTHER" {
		t.Errorf("server-role request starts %q, want POST /OTHER", got[:len("POST /OTHER")])
	}
}

func TestSessionConnect(t *testing.T) {
	ep := startCaster(t, acceptOK)
	s := NewSession(ep, RoleClient, lifecycle.Fixed(10*time.Millisecond), log.Nop())

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	if err := s.Connect(ctx); err != nil {
		t.Fatalf("Connect: %v", err)
	}
	if !s.Connected() {
		t.Error("Connected() = false after successful Connect")
	}

	s.Drop()
	if s.Connected() {
		t.Error("Connected() = true after Drop")
	}
	if err := s.Write([]byte("x")); !errors.Is(err, ErrNotConnected) {
		t.Errorf("Write after Drop = %v, want ErrNotConnected", err)
	}
}

func TestSessionRetriesAfterRejection(t *testing.T) {
	var attempts atomic.Int32
	ep := startCaster(t, func(conn net.Conn) {
		n := attempts.Add(1)
		buf := make([]byte, 1024)
		conn.Read(buf)
		if n == 1 {
			// Rejected handshakes are retried with the same backoff as
			// network failures.
			conn.Write([]byte("HTTP/1.1 401 Unauthorized\r\n\r\n"))
			conn.Close()
			return
		}
		conn.Write([]byte("HTTP/1.1 200 OK\r\n\r\n"))
	})

	s := NewSession(ep, RoleClient, lifecycle.Fixed(10*time.Millisecond), log.Nop())
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	if err := s.Connect(ctx); err != nil {
		t.Fatalf("Connect: %v", err)
	}
	if got := attempts.Load(); got < 2 {
		t.Errorf("attempts = %d, want at least 2", got)
	}
}

func TestSessionConnectCanceled(t *testing.T) {
	ep := startCaster(t, func(conn net.Conn) {
		buf := make([]byte, 1024)
		conn.Read(buf)
		conn.Write([]byte("HTTP/1.1 403 Forbidden\r\n\r\n"))
		conn.Close()
	})

	s := NewSession(ep, RoleClient, lifecycle.Fixed(time.Hour), log.Nop())
	ctx, cancel := context.WithCancel(context.Background())
	go func() {
		time.Sleep(50 * time.Millisecond)
		cancel()
	}()
	if err := s.Connect(ctx); !errors.Is(err, context.Canceled) {
		t.Errorf("Connect = %v, want context.Canceled", err)
	}
}
