// Package router distributes the positioning receiver's sentence stream:
// classification, position-fix extraction, the optional accuracy-sentence
// rewrite, and fan-out to the configured sinks.
package router

import (
	"bytes"

	"github.com/rtklabs/gnssrelay/internal/sinks"
	"github.com/rtklabs/gnssrelay/pkg/log"
)

// Class tells NMEA text sentences apart from everything else on the wire.
type Class int

const (
	Opaque Class = iota
	NMEA
)

// Classify labels one terminated line: NMEA iff it starts with '$' and ends
// with CRLF. The check is structural and never fails.
func Classify(line []byte) Class {
	if bytes.HasPrefix(line, []byte("$")) && bytes.HasSuffix(line, []byte("\r\n")) {
		return NMEA
	}
	return Opaque
}

// isGGA matches the position-fix sentences relayed to the caster.
func isGGA(line []byte) bool {
	return bytes.HasPrefix(line, []byte("$GPGGA")) || bytes.HasPrefix(line, []byte("$GNGGA"))
}

// FixConsumer receives the latest GGA sentence.
type FixConsumer interface {
	SetPositionFix(line []byte)
}

// Binding attaches one sink to the fan-out. OpaqueOnly restricts the sink
// to non-NMEA lines; the caster server must not see NMEA chatter.
type Binding struct {
	Sink       sinks.Sink
	OpaqueOnly bool
}

// Router distributes each line from the positioning source to the bound
// sinks in declaration order, feeding position fixes to the correction
// client on the way past.
type Router struct {
	bindings  []Binding
	fixes     FixConsumer
	transform *GSTTransform
	log       log.Logger
}

// New creates a router. fixes and transform may be nil when no correction
// client is configured or the rewrite is disabled.
func New(bindings []Binding, fixes FixConsumer, transform *GSTTransform, logger log.Logger) *Router {
	if logger == nil {
		logger = log.Nop()
	}
	return &Router{bindings: bindings, fixes: fixes, transform: transform, log: logger}
}

// Route handles one terminated line. Sink failures are logged and isolated:
// a broken sink never costs another sink its copy, and never stops the
// stream.
func (r *Router) Route(line []byte) {
	if len(line) == 0 {
		return
	}

	class := Classify(line)
	if class == NMEA {
		if r.fixes != nil && isGGA(line) {
			r.fixes.SetPositionFix(line)
		}
		if r.transform != nil {
			line = r.transform.Apply(line)
		}
	}

	for _, b := range r.bindings {
		if b.OpaqueOnly && class == NMEA {
			continue
		}
		if !b.Sink.Ready() {
			continue
		}
		if err := b.Sink.Write(line); err != nil {
			r.log.Warn("sink write failed",
				log.Str("sink", b.Sink.Name()),
				log.Int("bytes", len(line)),
				log.Err(err),
			)
		}
	}
}
