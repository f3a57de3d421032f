package sinks

import (
	"io"

	serial "github.com/jacobsa/go-serial/serial"

	"github.com/rtklabs/gnssrelay/pkg/log"
)

// queueDepth bounds the serial transmit queue. A full queue means the UART
// has not kept up and further sentences are shed rather than buffered.
const queueDepth = 16

// Serial writes sentences to a UART. Writes go through a small queue
// drained by a single writer goroutine; Ready is false while the queue is
// full, which is the overrun guard for slow lines.
type Serial struct {
	name  string
	port  io.WriteCloser
	queue chan []byte
	done  chan struct{}
	log   log.Logger
}

// OpenSerial opens a UART for output at 8N1.
func OpenSerial(device string, baud uint, logger log.Logger) (*Serial, error) {
	port, err := serial.Open(serial.OpenOptions{
		PortName:        device,
		BaudRate:        baud,
		DataBits:        8,
		StopBits:        1,
		ParityMode:      serial.PARITY_NONE,
		MinimumReadSize: 1,
	})
	if err != nil {
		return nil, err
	}
	return NewSerial("serial", port, logger), nil
}

// NewSerial wraps an already-open port. The sink owns the port and closes
// it on Close.
func NewSerial(name string, port io.WriteCloser, logger log.Logger) *Serial {
	if logger == nil {
		logger = log.Nop()
	}
	s := &Serial{
		name:  name,
		port:  port,
		queue: make(chan []byte, queueDepth),
		done:  make(chan struct{}),
		log:   logger,
	}
	go s.drain()
	return s
}

func (s *Serial) Name() string { return s.name }

// Ready reports whether the transmit queue can take another sentence.
func (s *Serial) Ready() bool { return len(s.queue) < cap(s.queue) }

// Write queues p for transmission. Returns ErrBusy instead of blocking when
// the queue is full.
func (s *Serial) Write(p []byte) error {
	select {
	case s.queue <- append([]byte(nil), p...):
		return nil
	default:
		return ErrBusy
	}
}

func (s *Serial) drain() {
	defer close(s.done)
	for p := range s.queue {
		if _, err := s.port.Write(p); err != nil {
			s.log.Warn("serial write failed", log.Str("sink", s.name), log.Err(err))
		}
	}
}

// Close stops the writer and closes the port.
func (s *Serial) Close() error {
	close(s.queue)
	<-s.done
	return s.port.Close()
}
