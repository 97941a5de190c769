// Package gateway implements the transport-independent command entry points.
//
// Every transport (HTTP, WebSocket, MQTT) decodes its request into loosely
// typed field values and calls one Accept* method. The gateway validates
// through package normalize, forwards to the actuator sink and, for drive and
// stop commands only, refreshes the freshness tracker.
//
// Validation failures come back as *normalize.ValidationError and nothing is
// actuated. Sink failures come back as *actuator.Error after the command was
// accepted; for drive and stop the tracker has already been touched so a
// broken actuator link does not also disarm the watchdog.
package gateway

import (
	"errors"
	"log/slog"
	"time"

	"github.com/teslashibe/go-rover/pkg/actuator"
	"github.com/teslashibe/go-rover/pkg/freshness"
	"github.com/teslashibe/go-rover/pkg/normalize"
)

// Toucher records a liveness command. *freshness.Tracker satisfies it.
type Toucher interface {
	Touch()
}

// Config holds the static gateway parameters.
type Config struct {
	// Gain multiplies drive powers before the final clamp.
	Gain float64

	// Phrases is the speech table. Nil uses normalize.DefaultPhrases.
	Phrases normalize.PhraseTable

	// Clock supplies the health probe time. Nil uses the system clock.
	Clock freshness.Clock
}

// DefaultConfig returns the reference gain and phrase table.
func DefaultConfig() Config {
	return Config{
		Gain:    normalize.DefaultGain,
		Phrases: normalize.DefaultPhrases(),
	}
}

// Gateway validates operator commands and forwards them to a sink.
// Safe for concurrent use; there is no arbitration, the last writer wins.
type Gateway struct {
	sink    actuator.Sink
	tracker Toucher
	gain    float64
	phrases normalize.PhraseTable
	clock   freshness.Clock
	logger  *slog.Logger

	stats stats
}

// New creates a gateway. sink and tracker are required.
func New(sink actuator.Sink, tracker Toucher, cfg Config, logger *slog.Logger) (*Gateway, error) {
	if sink == nil || tracker == nil {
		return nil, errors.New("gateway needs a sink and a tracker")
	}
	if cfg.Gain <= 0 {
		return nil, errors.New("gateway gain must be positive")
	}
	if cfg.Phrases == nil {
		cfg.Phrases = normalize.DefaultPhrases()
	}
	if cfg.Clock == nil {
		cfg.Clock = freshness.SystemClock{}
	}
	if logger == nil {
		logger = slog.Default()
	}
	return &Gateway{
		sink:    sink,
		tracker: tracker,
		gain:    cfg.Gain,
		phrases: cfg.Phrases,
		clock:   cfg.Clock,
		logger:  logger.With("component", "gateway"),
	}, nil
}

// SinkName returns the name of the configured sink.
func (g *Gateway) SinkName() string {
	return g.sink.Name()
}

// Phrases returns the phrase table.
func (g *Gateway) Phrases() normalize.PhraseTable {
	return g.phrases
}

// Gain returns the configured drive gain.
func (g *Gateway) Gain() float64 {
	return g.gain
}

// DriveResult is the drive command as forwarded to the sink.
type DriveResult struct {
	Left  float64 `json:"l"`
	Right float64 `json:"r"`
}

// AcceptDrive validates l and r, applies the gain and forwards the pair.
func (g *Gateway) AcceptDrive(l, r any) (DriveResult, error) {
	lc, rc, err := normalize.ClampDrive(l, r)
	if err != nil {
		return DriveResult{}, g.reject(OpDrive, err)
	}
	return g.forwardDrive(OpDrive, lc, rc)
}

// AcceptArcade mixes a single-stick (turn, fwd) input and then behaves
// exactly like AcceptDrive.
func (g *Gateway) AcceptArcade(turn, fwd any) (DriveResult, error) {
	lc, rc, err := normalize.ArcadeToDrive(turn, fwd)
	if err != nil {
		return DriveResult{}, g.reject(OpArcade, err)
	}
	return g.forwardDrive(OpArcade, lc, rc)
}

func (g *Gateway) forwardDrive(op Op, l, r float64) (DriveResult, error) {
	l, r = normalize.ScaleDrive(l, r, g.gain)
	cmd := actuator.DriveCommand{Left: l, Right: r}

	g.tracker.Touch()
	result := DriveResult{Left: l, Right: r}
	if err := g.sink.Drive(cmd); err != nil {
		return result, g.actuatorFailed(op, err)
	}
	g.stats.accept(op)
	return result, nil
}

// HeadResult reports each head axis independently. A nil position means
// the axis was not applied (omitted or rejected).
type HeadResult struct {
	Pan    *float64         `json:"pan"`
	Tilt   *float64         `json:"tilt"`
	Errors map[string]error `json:"-"`
}

// Applied reports whether at least one axis reached the sink.
func (h HeadResult) Applied() bool {
	return h.Pan != nil || h.Tilt != nil
}

// AcceptHead validates and forwards pan and tilt independently. Either may
// be nil (omitted). An invalid or failing axis does not prevent the other
// axis from being applied; the returned error is a *HeadError.
func (g *Gateway) AcceptHead(pan, tilt any) (HeadResult, error) {
	result := HeadResult{Errors: make(map[string]error)}

	axes := []struct {
		field string
		axis  normalize.Axis
		value any
		out   **float64
	}{
		{"pan", normalize.AxisPan, pan, &result.Pan},
		{"tilt", normalize.AxisTilt, tilt, &result.Tilt},
	}

	for _, a := range axes {
		if a.value == nil {
			continue
		}
		pos, err := g.servo(OpHead, a.field, a.axis, a.value)
		if err != nil {
			result.Errors[a.field] = err
			continue
		}
		*a.out = &pos
	}

	if len(result.Errors) == 0 {
		g.stats.accept(OpHead)
		return result, nil
	}

	herr := &HeadError{Axes: result.Errors}
	for _, a := range axes {
		if _, ok := result.Errors[a.field]; ok {
			herr.order = append(herr.order, a.field)
		}
	}
	return result, herr
}

// AcceptWaist validates and forwards the waist position.
func (g *Gateway) AcceptWaist(pos any) (float64, error) {
	p, err := g.servo(OpWaist, "pos", normalize.AxisWaist, pos)
	if err != nil {
		return 0, err
	}
	g.stats.accept(OpWaist)
	return p, nil
}

func (g *Gateway) servo(op Op, field string, axis normalize.Axis, value any) (float64, error) {
	pos, err := normalize.ClampServo(field, value)
	if err != nil {
		return 0, g.reject(op, err)
	}
	if err := g.sink.SetServo(actuator.ServoCommand{Axis: axis, Position: pos}); err != nil {
		return pos, g.actuatorFailed(op, err)
	}
	return pos, nil
}

// AcceptSpeech looks up phraseID and forwards the phrase.
func (g *Gateway) AcceptSpeech(phraseID any) (actuator.SpeechCommand, error) {
	id, text, err := g.phrases.Lookup(phraseID)
	if err != nil {
		return actuator.SpeechCommand{}, g.reject(OpSay, err)
	}
	cmd := actuator.SpeechCommand{ID: id, Text: text}
	if err := g.sink.Say(cmd); err != nil {
		return cmd, g.actuatorFailed(OpSay, err)
	}
	g.stats.accept(OpSay)
	return cmd, nil
}

// AcceptStop refreshes the tracker and stops the wheels. It is never
// rejected; the only possible error is an actuator failure.
func (g *Gateway) AcceptStop() error {
	g.tracker.Touch()
	if err := g.sink.Stop(); err != nil {
		return g.actuatorFailed(OpStop, err)
	}
	g.stats.accept(OpStop)
	return nil
}

// Health is the liveness acknowledgement.
type Health struct {
	OK   bool      `json:"ok"`
	Time time.Time `json:"-"`
}

// Health acknowledges liveness with the current time. Never fails.
func (g *Gateway) Health() Health {
	return Health{OK: true, Time: g.clock.Now()}
}

func (g *Gateway) reject(op Op, err error) error {
	g.stats.reject(op)
	g.logger.Debug("command rejected", "op", op, "error", err)
	return err
}

func (g *Gateway) actuatorFailed(op Op, err error) error {
	g.stats.fail(op)
	err = actuator.WrapError(g.sink.Name(), string(op), err)
	g.logger.Error("actuator command failed", "op", op, "error", err)
	return err
}
