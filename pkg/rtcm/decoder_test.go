package rtcm

import (
	"bytes"
	"errors"
	"io"
	"testing"

	"github.com/goblimey/go-crc24q/crc24q"
)

// sampleFrame is a real MSM4 frame captured from a caster: leader 0xD3 with
// a 64-byte payload and a valid trailing CRC, 70 bytes in all.
var sampleFrame = []byte{
	0xD3, 0x00, 0x40, 0x41, 0x2E, 0x06, 0x44, 0x19, 0x1E, 0xF5, 0x00,
	0xA4, 0x00, 0x00, 0x10, 0xB6, 0x11, 0x08, 0xC2, 0xE8, 0x1D, 0x58,
	0x1A, 0x72, 0xC8, 0x46, 0xCD, 0x1A, 0x08, 0xEA, 0x81, 0x2C, 0x3E,
	0xDC, 0x1B, 0xBB, 0xD9, 0x5D, 0x90, 0x61, 0xE8, 0x05, 0x2F, 0xFB,
	0x89, 0x9A, 0x4D, 0xCC, 0xEB, 0xFE, 0x4C, 0x25, 0x28, 0xFB, 0x6C,
	0xDA, 0x7F, 0x61, 0x8E, 0x60, 0x9C, 0xBF, 0xFB, 0x6A, 0x2D, 0x30,
	0x02, 0x19, 0x8F, 0x73,
}

func TestCRC24QSampleFrame(t *testing.T) {
	if got := crc24q.Hash(sampleFrame); got != 0 {
		t.Errorf("Hash(sampleFrame) = %#x, want 0", got)
	}
	if !crcOK(sampleFrame) {
		t.Error("crcOK(sampleFrame) = false, want true")
	}
}

func TestCRC24QBitFlip(t *testing.T) {
	for _, bit := range []int{0, 7, 100, 300, len(sampleFrame)*8 - 1} {
		frame := append([]byte(nil), sampleFrame...)
		frame[bit/8] ^= 1 << (bit % 8)
		if crcOK(frame) {
			t.Errorf("crcOK accepted frame with bit %d flipped", bit)
		}
	}
}

func TestDecoderSingleFrame(t *testing.T) {
	dec := NewDecoder(bytes.NewReader(sampleFrame))

	frame, err := dec.Next()
	if err != nil {
		t.Fatalf("Next: %v", err)
	}
	if frame.Length() != 64 {
		t.Errorf("Length() = %d, want 64", frame.Length())
	}
	if len(frame.Raw) != 70 {
		t.Errorf("len(Raw) = %d, want 70", len(frame.Raw))
	}
	if !bytes.Equal(frame.Raw, sampleFrame) {
		t.Error("Raw differs from input frame")
	}
	if frame.MessageType() != 1042 {
		// 0x41, 0x2E: message number is the top 12 bits.
		t.Errorf("MessageType() = %d, want 1042", frame.MessageType())
	}

	if _, err := dec.Next(); !errors.Is(err, io.EOF) {
		t.Errorf("Next after stream end = %v, want io.EOF", err)
	}
}

func TestDecoderSkipsGarbage(t *testing.T) {
	var stream bytes.Buffer
	stream.WriteString("$GNGGA,123519,4807.038,N,01131.000,E,1,08,0.9,545.4,M,46.9,M,,*47\r\n")
	stream.Write(sampleFrame)
	// 0xD3 inside garbage must not derail the scan.
	stream.Write([]byte{0xD3, 0xFF, 0x01, 0x02})
	stream.Write(sampleFrame)

	dec := NewDecoder(bytes.NewReader(stream.Bytes()))
	for i := 0; i < 2; i++ {
		frame, err := dec.Next()
		if err != nil {
			t.Fatalf("frame %d: %v", i, err)
		}
		if !bytes.Equal(frame.Raw, sampleFrame) {
			t.Errorf("frame %d differs from expected frame", i)
		}
	}
	if _, err := dec.Next(); !errors.Is(err, io.EOF) {
		t.Errorf("Next after stream end = %v, want io.EOF", err)
	}
}

func TestDecoderResyncAfterCorruption(t *testing.T) {
	corrupted := append([]byte(nil), sampleFrame...)
	corrupted[10] ^= 0x01 // one payload bit

	var stream bytes.Buffer
	stream.Write(corrupted)
	stream.Write(sampleFrame)

	dec := NewDecoder(bytes.NewReader(stream.Bytes()))
	frame, err := dec.Next()
	if err != nil {
		t.Fatalf("Next: %v", err)
	}
	if !bytes.Equal(frame.Raw, sampleFrame) {
		t.Error("decoder lost the valid frame following a corrupted one")
	}
}

// A fake leader whose declared length swallows the start of a real frame
// must not cost us that frame: after the CRC check fails the scan resumes
// one byte past the fake leader and rediscovers it.
func TestDecoderRescanInsideFailedCandidate(t *testing.T) {
	var stream bytes.Buffer
	stream.Write([]byte{Preamble, 0x00, 0x40})
	stream.Write(sampleFrame)

	dec := NewDecoder(bytes.NewReader(stream.Bytes()))
	frame, err := dec.Next()
	if err != nil {
		t.Fatalf("Next: %v", err)
	}
	if !bytes.Equal(frame.Raw, sampleFrame) {
		t.Error("frame hidden inside a failed candidate was lost")
	}
}

func TestDecoderErrorMidFrame(t *testing.T) {
	dec := NewDecoder(bytes.NewReader(sampleFrame[:20]))
	if _, err := dec.Next(); err == nil {
		t.Error("Next on a truncated stream returned no error")
	}
}
