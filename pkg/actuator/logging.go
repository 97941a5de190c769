package actuator

import (
	"log/slog"
	"sync/atomic"
)

// LoggingSink logs every command instead of moving hardware.
// Used for development without physical actuators; it never fails.
type LoggingSink struct {
	logger *slog.Logger
	stops  atomic.Uint64
}

// NewLoggingSink creates a sink that writes commands to logger.
func NewLoggingSink(logger *slog.Logger) *LoggingSink {
	if logger == nil {
		logger = slog.Default()
	}
	return &LoggingSink{logger: logger.With("sink", KindLog)}
}

// Name returns "log".
func (s *LoggingSink) Name() string { return string(KindLog) }

// Drive logs the wheel powers.
func (s *LoggingSink) Drive(cmd DriveCommand) error {
	s.logger.Info("drive", "l", cmd.Left, "r", cmd.Right)
	return nil
}

// SetServo logs the servo position.
func (s *LoggingSink) SetServo(cmd ServoCommand) error {
	s.logger.Info("servo", "axis", cmd.Axis, "position", cmd.Position)
	return nil
}

// Say logs the phrase.
func (s *LoggingSink) Say(cmd SpeechCommand) error {
	s.logger.Info("say", "phrase_id", cmd.ID, "text", cmd.Text)
	return nil
}

// Stop logs a wheel stop. Watchdog stops repeat every poll while tripped,
// so they are logged at debug after the first.
func (s *LoggingSink) Stop() error {
	if n := s.stops.Add(1); n == 1 {
		s.logger.Info("stop: wheels -> neutral, hold servos")
	} else {
		s.logger.Debug("stop: wheels -> neutral, hold servos", "count", n)
	}
	return nil
}

// Close is a no-op.
func (s *LoggingSink) Close() error { return nil }
