// Package actuator defines the boundary between validated rover commands and
// whatever moves the hardware.
//
// This package follows the Interface Segregation Principle (ISP) by defining
// small interfaces that are composed into Sink. The watchdog only needs a
// Stopper; the gateway needs the whole Sink.
//
// Every value handed to a Sink has already been clamped by package normalize.
// Sinks that talk to hardware convert the normalized values into native
// targets through normalize.Ranges.
package actuator

import "github.com/teslashibe/go-rover/pkg/normalize"

// DriveCommand is a normalized wheel power pair, each in [-1, 1].
type DriveCommand struct {
	Left  float64 `json:"l"`
	Right float64 `json:"r"`
}

// ServoCommand is a normalized position in [0, 1] for one servo axis.
type ServoCommand struct {
	Axis     normalize.Axis `json:"axis"`
	Position float64        `json:"position"`
}

// SpeechCommand is a validated phrase from the phrase table.
type SpeechCommand struct {
	ID   int    `json:"phraseId"`
	Text string `json:"text"`
}

// Driver accepts differential drive commands.
type Driver interface {
	Drive(cmd DriveCommand) error
}

// Positioner accepts servo position commands (pan, tilt, waist).
type Positioner interface {
	SetServo(cmd ServoCommand) error
}

// Speaker plays canned phrases.
type Speaker interface {
	Say(cmd SpeechCommand) error
}

// Stopper brings the wheels to neutral. Stop must be idempotent and safe to
// call concurrently from the watchdog and from operator handlers.
type Stopper interface {
	Stop() error
}

// Sink is the composite interface for full rover actuation.
type Sink interface {
	Driver
	Positioner
	Speaker
	Stopper

	// Name identifies the sink variant for logs and status.
	Name() string

	// Close releases hardware handles.
	Close() error
}

// Ensure implementations satisfy Sink
var (
	_ Sink = (*LoggingSink)(nil)
	_ Sink = (*MaestroSink)(nil)
	_ Sink = (*HTTPSink)(nil)
	_ Sink = (*Mock)(nil)
)
