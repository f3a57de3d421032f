package rtcm

import (
	"bufio"
	"io"

	"github.com/goblimey/go-crc24q/crc24q"
)

// Decoder scans a byte stream for valid RTCM3 frames.
//
// A 0xD3 byte can appear inside payloads and in whatever else shares the
// wire, so a candidate leader is only accepted once the reserved bits check
// out and the CRC over the whole frame matches. When either check fails the
// scan resumes one byte past the candidate leader, so a corrupted frame
// never costs more than the minimum necessary prefix.
type Decoder struct {
	r *bufio.Reader

	// pend holds already-read bytes that must be rescanned after a failed
	// candidate, oldest first.
	pend []byte
}

// NewDecoder creates a decoder reading from r. One decoder serves one
// connection; build a fresh one after a reconnect.
func NewDecoder(r io.Reader) *Decoder {
	return &Decoder{r: bufio.NewReader(r)}
}

// Next blocks until a validated frame arrives or the stream fails. False
// preambles and CRC mismatches are consumed silently; only I/O errors
// (including io.EOF and errors mid-frame) are returned.
func (d *Decoder) Next() (Frame, error) {
	for {
		b, err := d.readByte()
		if err != nil {
			return Frame{}, err
		}
		if b != Preamble {
			continue
		}

		b1, err := d.readByte()
		if err != nil {
			return Frame{}, err
		}
		if b1&0xFC != 0 {
			// Reserved bits set: not a real leader. The byte we just read
			// may itself start a frame.
			d.unread([]byte{b1})
			continue
		}
		b2, err := d.readByte()
		if err != nil {
			return Frame{}, err
		}

		length := int(b1&0x03)<<8 | int(b2)
		raw := make([]byte, leaderLen+length+crcLen)
		raw[0], raw[1], raw[2] = b, b1, b2
		if err := d.readFull(raw[leaderLen:]); err != nil {
			return Frame{}, err
		}

		if !crcOK(raw) {
			// Resynchronize one byte past the candidate leader.
			d.unread(raw[1:])
			continue
		}
		return Frame{Raw: raw}, nil
	}
}

// crcOK reports whether the trailing three bytes match the CRC24Q of the
// leader and payload.
func crcOK(raw []byte) bool {
	n := len(raw)
	crc := crc24q.Hash(raw[:n-crcLen])
	return crc24q.HiByte(crc) == raw[n-3] &&
		crc24q.MiByte(crc) == raw[n-2] &&
		crc24q.LoByte(crc) == raw[n-1]
}

func (d *Decoder) readByte() (byte, error) {
	if len(d.pend) > 0 {
		b := d.pend[0]
		d.pend = d.pend[1:]
		return b, nil
	}
	return d.r.ReadByte()
}

func (d *Decoder) readFull(p []byte) error {
	n := copy(p, d.pend)
	d.pend = d.pend[n:]
	if n == len(p) {
		return nil
	}
	_, err := io.ReadFull(d.r, p[n:])
	return err
}

func (d *Decoder) unread(b []byte) {
	if len(d.pend) == 0 {
		d.pend = b[:len(b):len(b)]
		return
	}
	merged := make([]byte, 0, len(b)+len(d.pend))
	merged = append(merged, b...)
	merged = append(merged, d.pend...)
	d.pend = merged
}
