// Package rtcm extracts RTCM version 3 frames from arbitrary byte streams.
//
// An RTCM3 frame on the wire is a 0xD3 leader byte, two bytes whose bottom
// ten bits give the payload length (the six high bits are reserved and
// zero), the payload itself, and a trailing CRC24Q computed over everything
// before it. The payload starts with a 12-bit message number, but this
// package does not decode message contents; it only finds, validates and
// yields whole frames.
package rtcm

const (
	// Preamble is the leader byte that starts every RTCM3 frame.
	Preamble = 0xD3

	// MaxPayload is the largest payload the 10-bit length field can carry.
	MaxPayload = 1023

	leaderLen = 3
	crcLen    = 3
)

// Frame is one validated RTCM3 frame. Raw holds the complete wire image:
// leader, payload and CRC.
type Frame struct {
	Raw []byte
}

// Length returns the payload length encoded in the leader.
func (f Frame) Length() int {
	if len(f.Raw) < leaderLen {
		return 0
	}
	return int(f.Raw[1]&0x03)<<8 | int(f.Raw[2])
}

// Payload returns the message bits between the leader and the CRC.
func (f Frame) Payload() []byte {
	if len(f.Raw) < leaderLen+crcLen {
		return nil
	}
	return f.Raw[leaderLen : len(f.Raw)-crcLen]
}

// MessageType returns the 12-bit message number at the head of the payload,
// or 0 if the payload is too short to carry one.
func (f Frame) MessageType() int {
	p := f.Payload()
	if len(p) < 2 {
		return 0
	}
	return int(p[0])<<4 | int(p[1])>>4
}
