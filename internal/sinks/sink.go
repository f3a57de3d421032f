// Package sinks holds the fan-out targets for the receiver's sentence
// stream and the adapters that put real transports behind them.
package sinks

import "errors"

// ErrBusy is returned when a sink cannot accept a write right now.
var ErrBusy = errors.New("sinks: not ready")

// Sink is one fan-out target. Ready reports whether a write would be
// accepted right now (flow control, link state, role); the router skips
// sinks that are not ready and a sink's failure never reaches its
// neighbours.
type Sink interface {
	Name() string
	Ready() bool
	Write(p []byte) error
}
