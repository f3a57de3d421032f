// Package source opens the positioning receiver stream: a UART in the
// usual case, or the mesh topic when this node runs as a mesh receiver.
// Sentences flow out through Read; correction frames and receiver commands
// flow back in through Write.
package source

import (
	"fmt"
	"io"

	serial "github.com/jacobsa/go-serial/serial"

	"github.com/rtklabs/gnssrelay/pkg/log"
)

// Source is the positioning receiver as the rest of the process sees it.
type Source interface {
	io.Reader
	io.Writer
	io.Closer
}

// Serial is a receiver attached over a UART.
type Serial struct {
	port io.ReadWriteCloser
}

// OpenSerial opens the receiver UART at 8N1 and plays the configured setup
// commands into it. Setup failures are logged, not fatal: a receiver that
// ignores a command still produces a usable stream.
func OpenSerial(device string, baud uint, setup []string, logger log.Logger) (*Serial, error) {
	if logger == nil {
		logger = log.Nop()
	}
	port, err := serial.Open(serial.OpenOptions{
		PortName:        device,
		BaudRate:        baud,
		DataBits:        8,
		StopBits:        1,
		ParityMode:      serial.PARITY_NONE,
		MinimumReadSize: 1,
	})
	if err != nil {
		return nil, fmt.Errorf("open receiver %s: %w", device, err)
	}
	logger.Info("receiver port open", log.Str("device", device), log.Int("baud", int(baud)))

	for _, cmd := range setup {
		if _, err := port.Write(FormatCommand(cmd)); err != nil {
			logger.Warn("receiver setup command failed", log.Str("command", cmd), log.Err(err))
		}
	}
	return &Serial{port: port}, nil
}

func (s *Serial) Read(p []byte) (int, error)  { return s.port.Read(p) }
func (s *Serial) Write(p []byte) (int, error) { return s.port.Write(p) }
func (s *Serial) Close() error                { return s.port.Close() }

// FormatCommand frames a bare NMEA command (no leading '$', no checksum)
// for the wire.
func FormatCommand(cmd string) []byte {
	var c byte
	for i := 0; i < len(cmd); i++ {
		c ^= cmd[i]
	}
	return []byte(fmt.Sprintf("$%s*%02X\r\n", cmd, c))
}
