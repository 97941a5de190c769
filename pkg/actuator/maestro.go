package actuator

import (
	"fmt"
	"io"
	"log/slog"
	"os"
	"sync"

	"github.com/teslashibe/go-rover/pkg/normalize"
)

// Pololu Maestro compact protocol.
const (
	maestroSetTarget = 0x84
	maestroDataMask  = 0x7F
)

// MaestroSink drives wheels and servos through a Pololu Maestro USB servo
// controller. Wheels are continuous-rotation servos or ESCs whose neutral is
// the range center; a stop puts both at center and leaves servos holding.
type MaestroSink struct {
	ranges normalize.Ranges
	voice  Voice
	logger *slog.Logger

	mu     sync.Mutex // serializes writes to port
	port   io.WriteCloser
	closed bool
}

// OpenMaestro opens the Maestro command port (e.g. /dev/ttyACM0).
// The USB virtual COM port ignores baud rate, so no termios setup is needed.
func OpenMaestro(device string, ranges normalize.Ranges, voice Voice, logger *slog.Logger) (*MaestroSink, error) {
	f, err := os.OpenFile(device, os.O_WRONLY, 0)
	if err != nil {
		return nil, fmt.Errorf("open maestro %s: %w", device, err)
	}
	return NewMaestro(f, ranges, voice, logger), nil
}

// NewMaestro wraps an already open command port.
func NewMaestro(port io.WriteCloser, ranges normalize.Ranges, voice Voice, logger *slog.Logger) *MaestroSink {
	if logger == nil {
		logger = slog.Default()
	}
	return &MaestroSink{
		ranges: ranges,
		voice:  voice,
		logger: logger.With("sink", KindMaestro),
		port:   port,
	}
}

// Name returns "maestro".
func (m *MaestroSink) Name() string { return string(KindMaestro) }

// Drive sets both wheel channels in a single write.
func (m *MaestroSink) Drive(cmd DriveCommand) error {
	left, right := m.ranges.WheelTargets(cmd.Left, cmd.Right)
	buf := appendSetTarget(nil, m.ranges.LeftWheel.Channel, left)
	buf = appendSetTarget(buf, m.ranges.RightWheel.Channel, right)
	return WrapError(m.Name(), "drive", m.write(buf))
}

// SetServo moves one servo axis.
func (m *MaestroSink) SetServo(cmd ServoCommand) error {
	target, err := m.ranges.ServoTarget(cmd.Axis, cmd.Position)
	if err != nil {
		return WrapError(m.Name(), "servo", err)
	}
	rng, _ := m.ranges.For(cmd.Axis)
	return WrapError(m.Name(), "servo", m.write(appendSetTarget(nil, rng.Channel, target)))
}

// Say hands the phrase to the configured voice.
func (m *MaestroSink) Say(cmd SpeechCommand) error {
	if m.voice == nil {
		return WrapError(m.Name(), "say", ErrNoVoice)
	}
	return WrapError(m.Name(), "say", m.voice.Speak(cmd.Text))
}

// Stop returns both wheels to neutral. Servos keep their last target.
func (m *MaestroSink) Stop() error {
	buf := appendSetTarget(nil, m.ranges.LeftWheel.Channel, m.ranges.LeftWheel.Center)
	buf = appendSetTarget(buf, m.ranges.RightWheel.Channel, m.ranges.RightWheel.Center)
	return WrapError(m.Name(), "stop", m.write(buf))
}

// Close stops the wheels and releases the port.
func (m *MaestroSink) Close() error {
	if err := m.Stop(); err != nil {
		m.logger.Warn("stop before close failed", "error", err)
	}

	m.mu.Lock()
	defer m.mu.Unlock()
	if m.closed {
		return nil
	}
	m.closed = true
	return m.port.Close()
}

func (m *MaestroSink) write(buf []byte) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.closed {
		return ErrClosed
	}
	n, err := m.port.Write(buf)
	if err != nil {
		return err
	}
	if n != len(buf) {
		return io.ErrShortWrite
	}
	return nil
}

// appendSetTarget encodes a compact-protocol Set Target command.
// target is in quarter-microseconds, split into two 7-bit bytes.
func appendSetTarget(buf []byte, channel, target int) []byte {
	return append(buf,
		maestroSetTarget,
		byte(channel&maestroDataMask),
		byte(target&maestroDataMask),
		byte((target>>7)&maestroDataMask),
	)
}
