package router

import (
	"bytes"
	"fmt"
	"strings"

	nmea "github.com/adrianmo/go-nmea"

	"github.com/rtklabs/gnssrelay/pkg/log"
)

// GSTTransform rewrites the proprietary Quectel accuracy-estimate sentence
// (PQTMEPE) into a standard GST sentence. GST carries a UTC timestamp that
// PQTMEPE lacks, so the transform caches the time field from each RMC
// sentence; until one has been seen, PQTMEPE lines pass through unchanged.
type GSTTransform struct {
	utcTime string
	log     log.Logger
}

// NewGSTTransform creates an empty transform.
func NewGSTTransform(logger log.Logger) *GSTTransform {
	if logger == nil {
		logger = log.Nop()
	}
	return &GSTTransform{log: logger}
}

// Apply inspects one NMEA line, updating the cached time on RMC and
// rewriting PQTMEPE. All other sentences come back untouched.
func (t *GSTTransform) Apply(line []byte) []byte {
	switch {
	case bytes.HasPrefix(line, []byte("$GPRMC")), bytes.HasPrefix(line, []byte("$GNRMC")):
		t.cacheTime(line)
	case bytes.HasPrefix(line, []byte("$PQTMEPE")):
		if out, ok := t.rewrite(line); ok {
			return out
		}
	}
	return line
}

func (t *GSTTransform) cacheTime(line []byte) {
	s, err := nmea.Parse(strings.TrimRight(string(line), "\r\n"))
	if err != nil {
		t.log.Debug("rmc parse failed", log.Err(err))
		return
	}
	rmc, ok := s.(nmea.RMC)
	if !ok || !rmc.Time.Valid {
		return
	}
	t.utcTime = fmt.Sprintf("%02d%02d%02d.%02d",
		rmc.Time.Hour, rmc.Time.Minute, rmc.Time.Second, rmc.Time.Millisecond/10)
}

// rewrite maps $PQTMEPE,<ver>,<north>,<east>,<down>,<2d>,<3d> onto
// $GPGST,<time>,<rms>,,,,<lat sd>,<lon sd>,<alt sd> with the cached time.
// The ellipse fields have no PQTMEPE equivalent and are left empty.
func (t *GSTTransform) rewrite(line []byte) ([]byte, bool) {
	if t.utcTime == "" {
		return nil, false
	}

	body := strings.TrimRight(string(line), "\r\n")
	if i := strings.IndexByte(body, '*'); i >= 0 {
		body = body[:i]
	}
	fields := strings.Split(body, ",")
	if len(fields) < 7 {
		return nil, false
	}
	north, east, down, epe3d := fields[2], fields[3], fields[4], fields[6]

	payload := fmt.Sprintf("GPGST,%s,%s,,,,%s,%s,%s", t.utcTime, epe3d, north, east, down)
	return []byte(fmt.Sprintf("$%s*%02X\r\n", payload, xorChecksum(payload))), true
}

// xorChecksum is the NMEA checksum: XOR over the payload between '$' and '*'.
func xorChecksum(payload string) byte {
	var c byte
	for i := 0; i < len(payload); i++ {
		c ^= payload[i]
	}
	return c
}
