package sinks

import (
	"fmt"
	"net"
)

// UDP sends each sentence as one datagram to a fixed destination, typically
// a broadcast address on the local segment.
type UDP struct {
	name string
	dest string
	conn *net.UDPConn
}

// OpenUDP resolves dest (host:port) and dials it.
func OpenUDP(dest string) (*UDP, error) {
	addr, err := net.ResolveUDPAddr("udp", dest)
	if err != nil {
		return nil, fmt.Errorf("resolve dest: %w", err)
	}
	conn, err := net.DialUDP("udp", nil, addr)
	if err != nil {
		return nil, fmt.Errorf("dial udp: %w", err)
	}
	return &UDP{name: "udp", dest: dest, conn: conn}, nil
}

func (u *UDP) Name() string { return u.name }

func (u *UDP) Ready() bool { return u.conn != nil }

func (u *UDP) Write(p []byte) error {
	if len(p) == 0 {
		return nil
	}
	_, err := u.conn.Write(p)
	return err
}

func (u *UDP) Close() error {
	if u.conn == nil {
		return nil
	}
	return u.conn.Close()
}
