package actuator

import (
	"fmt"
	"log/slog"
	"os/exec"
)

// DefaultTTSCommand is the text-to-speech program used by CommandVoice.
const DefaultTTSCommand = "espeak"

// Voice speaks text out loud.
type Voice interface {
	Speak(text string) error
}

// CommandVoice runs an external TTS program with the text as its last
// argument. Speak returns once the program has started; playback runs in the
// background so a long phrase does not hold up the command handler.
type CommandVoice struct {
	Command string
	Args    []string
	Logger  *slog.Logger
}

// NewCommandVoice creates a voice for command (DefaultTTSCommand if empty).
func NewCommandVoice(command string, logger *slog.Logger) *CommandVoice {
	if command == "" {
		command = DefaultTTSCommand
	}
	if logger == nil {
		logger = slog.Default()
	}
	return &CommandVoice{Command: command, Logger: logger.With("voice", command)}
}

// Speak starts the TTS program.
func (v *CommandVoice) Speak(text string) error {
	args := append(append([]string{}, v.Args...), text)
	cmd := exec.Command(v.Command, args...)
	if err := cmd.Start(); err != nil {
		return fmt.Errorf("start %s: %w", v.Command, err)
	}
	go func() {
		if err := cmd.Wait(); err != nil {
			v.Logger.Warn("tts exited with error", "error", err)
		}
	}()
	return nil
}
