package actuator

import (
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/teslashibe/go-rover/pkg/normalize"
)

// Kind selects a Sink implementation.
type Kind string

// Available sink kinds.
const (
	KindLog     Kind = "log"
	KindMaestro Kind = "maestro"
	KindHTTP    Kind = "http"
)

// Config selects and configures the sink. It is read once at startup.
type Config struct {
	Kind Kind

	// HardwareDisabled forces KindLog regardless of Kind.
	HardwareDisabled bool

	MaestroDevice string
	TTSCommand    string

	BackendURL     string
	BackendTimeout time.Duration

	Ranges normalize.Ranges
}

// Validate checks the fields required by the selected kind.
func (c Config) Validate() error {
	if c.HardwareDisabled {
		return nil
	}
	switch c.Kind {
	case KindLog:
		return nil
	case KindMaestro:
		if c.MaestroDevice == "" {
			return errors.New("maestro device required")
		}
	case KindHTTP:
		if c.BackendURL == "" {
			return errors.New("backend URL required")
		}
	default:
		return fmt.Errorf("%w: %q", ErrUnknownKind, c.Kind)
	}
	return c.Ranges.Validate()
}

// New creates the sink selected by cfg.
func New(cfg Config, logger *slog.Logger) (Sink, error) {
	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("invalid sink config: %w", err)
	}

	if logger == nil {
		logger = slog.Default()
	}

	kind := cfg.Kind
	if cfg.HardwareDisabled {
		kind = KindLog
	}

	logger.Info("creating actuator sink", "kind", kind, "hardware_disabled", cfg.HardwareDisabled)

	switch kind {
	case KindMaestro:
		voice := NewCommandVoice(cfg.TTSCommand, logger)
		m, err := OpenMaestro(cfg.MaestroDevice, cfg.Ranges, voice, logger)
		if err != nil {
			return nil, err
		}
		return m, nil
	case KindHTTP:
		return NewHTTPSink(cfg.BackendURL, cfg.BackendTimeout, cfg.Ranges), nil
	default:
		return NewLoggingSink(logger), nil
	}
}
