package router

import (
	"bufio"
	"context"
	"errors"
	"io"

	"github.com/rtklabs/gnssrelay/pkg/log"
)

// Pump reads the positioning source and emits terminator-kept lines on a
// bounded channel. The channel is the seam between the read task and the
// routing task: when the router falls behind, the reader blocks here
// instead of buffering without limit.
type Pump struct {
	r   io.Reader
	out chan []byte
	log log.Logger
}

// NewPump creates a pump over r with the given channel depth.
func NewPump(r io.Reader, depth int, logger log.Logger) *Pump {
	if logger == nil {
		logger = log.Nop()
	}
	return &Pump{r: r, out: make(chan []byte, depth), log: logger}
}

// Lines is the sentence stream. Closed when the source ends.
func (p *Pump) Lines() <-chan []byte { return p.out }

// Run reads until the source fails or ctx is canceled. Lines keep their
// terminator; a trailing partial line at end of stream is delivered as-is,
// matching how opaque binary data shares the wire with NMEA text.
func (p *Pump) Run(ctx context.Context) error {
	defer close(p.out)

	br := bufio.NewReader(p.r)
	for {
		line, err := br.ReadBytes('\n')
		if len(line) > 0 {
			select {
			case p.out <- line:
			case <-ctx.Done():
				return ctx.Err()
			}
		}
		if err != nil {
			if errors.Is(err, io.EOF) {
				p.log.Info("positioning source closed")
				return nil
			}
			return err
		}
	}
}
