// Package watchdog forces the rover to stop when drive commands go silent.
//
// The Watchdog polls a freshness source at a fixed interval. When the time
// since the last accepted drive or stop command exceeds the deadline it calls
// Stop on the actuator, and keeps doing so every cycle until a fresh command
// arrives. It never refreshes the tracker itself, so a trip is a persistent
// stop rather than a one-shot.
//
// A failing Stop or a panic inside a cycle is logged and counted; the loop
// carries on so one bad cycle cannot disarm the safety stop.
package watchdog

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sync"
	"sync/atomic"
	"time"

	"github.com/teslashibe/go-rover/pkg/actuator"
)

// Defaults match the reference rover: 10 Hz polling, 600 ms deadline.
const (
	DefaultInterval = 100 * time.Millisecond
	DefaultDeadline = 600 * time.Millisecond
)

// errorLogInterval limits repeated stop-failure logs while tripped.
const errorLogInterval = 5 * time.Second

// Ager reports time since the last liveness command.
// *freshness.Tracker satisfies it.
type Ager interface {
	Age() time.Duration
}

// State is the evaluated watchdog state.
type State int

const (
	// Armed means commands are fresh (age <= deadline).
	Armed State = iota
	// Tripped means commands are stale and stops are being issued.
	Tripped
)

// String returns "armed" or "tripped".
func (s State) String() string {
	if s == Tripped {
		return "tripped"
	}
	return "armed"
}

// Config holds the timing parameters.
type Config struct {
	Interval time.Duration
	Deadline time.Duration
}

// DefaultConfig returns the reference timing.
func DefaultConfig() Config {
	return Config{Interval: DefaultInterval, Deadline: DefaultDeadline}
}

// Validate checks that both durations are positive and the deadline spans
// at least one poll interval.
func (c Config) Validate() error {
	if c.Interval <= 0 {
		return errors.New("watchdog interval must be positive")
	}
	if c.Deadline <= 0 {
		return errors.New("watchdog deadline must be positive")
	}
	if c.Deadline < c.Interval {
		return fmt.Errorf("watchdog deadline %v shorter than poll interval %v", c.Deadline, c.Interval)
	}
	return nil
}

// Stats is a snapshot of watchdog counters.
type Stats struct {
	State      State         `json:"-"`
	StateName  string        `json:"state"`
	Cycles     uint64        `json:"cycles"`
	Stops      uint64        `json:"stops"`
	StopErrors uint64        `json:"stop_errors"`
	Panics     uint64        `json:"panics"`
	Trips      uint64        `json:"trips"`
	LastAge    time.Duration `json:"last_age_ns"`
}

// TransitionFunc is called when the evaluated state changes.
type TransitionFunc func(from, to State, age time.Duration)

// Watchdog is the periodic staleness supervisor.
type Watchdog struct {
	source  Ager
	stopper actuator.Stopper
	cfg     Config
	logger  *slog.Logger

	cycles     atomic.Uint64
	stops      atomic.Uint64
	stopErrors atomic.Uint64
	panics     atomic.Uint64
	trips      atomic.Uint64
	lastAge    atomic.Int64

	mu            sync.Mutex // guards state, onTransition, lastErrorTime
	state         State
	onTransition  TransitionFunc
	lastErrorTime time.Time

	running atomic.Bool
}

// New creates a watchdog. It does not start polling until Run is called.
func New(source Ager, stopper actuator.Stopper, cfg Config, logger *slog.Logger) (*Watchdog, error) {
	if source == nil || stopper == nil {
		return nil, errors.New("watchdog needs a freshness source and a stopper")
	}
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	if logger == nil {
		logger = slog.Default()
	}
	return &Watchdog{
		source:  source,
		stopper: stopper,
		cfg:     cfg,
		logger:  logger.With("component", "watchdog"),
	}, nil
}

// OnTransition registers fn to be called on ARMED<->TRIPPED changes.
// fn runs on the watchdog goroutine and must not block.
func (w *Watchdog) OnTransition(fn TransitionFunc) {
	w.mu.Lock()
	w.onTransition = fn
	w.mu.Unlock()
}

// Config returns the timing parameters.
func (w *Watchdog) Config() Config {
	return w.cfg
}

// Run polls until ctx is cancelled. In normal operation ctx lives as long
// as the process. Run may only be called once at a time.
func (w *Watchdog) Run(ctx context.Context) error {
	if !w.running.CompareAndSwap(false, true) {
		return errors.New("watchdog already running")
	}
	defer w.running.Store(false)

	w.logger.Info("watchdog started", "interval", w.cfg.Interval, "deadline", w.cfg.Deadline)

	ticker := time.NewTicker(w.cfg.Interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			w.logger.Info("watchdog stopped", "cycles", w.cycles.Load(), "stops", w.stops.Load())
			return ctx.Err()
		case <-ticker.C:
			w.Poll()
		}
	}
}

// Poll runs exactly one supervision cycle and returns the evaluated state.
// If the freshness source cannot be read the cycle fails safe and stops.
func (w *Watchdog) Poll() State {
	w.cycles.Add(1)

	age, ok := w.readAge()
	if !ok {
		w.transition(Tripped, age)
		w.stop(age)
		return Tripped
	}
	w.lastAge.Store(int64(age))

	state := Armed
	if age > w.cfg.Deadline {
		state = Tripped
	}
	w.transition(state, age)

	if state == Tripped {
		w.stop(age)
	}
	return state
}

func (w *Watchdog) readAge() (age time.Duration, ok bool) {
	defer func() {
		if r := recover(); r != nil {
			w.panics.Add(1)
			w.logger.Error("freshness read panicked", "panic", r)
			ok = false
		}
	}()
	return w.source.Age(), true
}

func (w *Watchdog) stop(age time.Duration) {
	defer func() {
		if r := recover(); r != nil {
			w.panics.Add(1)
			w.stopErrors.Add(1)
			w.logStopError(fmt.Errorf("panic: %v", r), age)
		}
	}()

	w.stops.Add(1)
	if err := w.stopper.Stop(); err != nil {
		w.stopErrors.Add(1)
		w.logStopError(err, age)
	}
}

// State returns the state evaluated by the most recent cycle.
func (w *Watchdog) State() State {
	w.mu.Lock()
	defer w.mu.Unlock()
	return w.state
}

// Stats returns a snapshot of the counters.
func (w *Watchdog) Stats() Stats {
	state := w.State()
	return Stats{
		State:      state,
		StateName:  state.String(),
		Cycles:     w.cycles.Load(),
		Stops:      w.stops.Load(),
		StopErrors: w.stopErrors.Load(),
		Panics:     w.panics.Load(),
		Trips:      w.trips.Load(),
		LastAge:    time.Duration(w.lastAge.Load()),
	}
}

func (w *Watchdog) transition(to State, age time.Duration) {
	w.mu.Lock()
	from := w.state
	if from == to {
		w.mu.Unlock()
		return
	}
	w.state = to
	fn := w.onTransition
	w.mu.Unlock()

	if to == Tripped {
		w.trips.Add(1)
		w.logger.Warn("command stream stale, stopping", "age", age, "deadline", w.cfg.Deadline)
	} else {
		w.logger.Info("command stream fresh again", "age", age)
	}

	if fn != nil {
		defer func() {
			if r := recover(); r != nil {
				w.panics.Add(1)
				w.logger.Error("transition callback panicked", "panic", r)
			}
		}()
		fn(from, to, age)
	}
}

// logStopError logs at most once per errorLogInterval while stops keep failing.
func (w *Watchdog) logStopError(err error, age time.Duration) {
	w.mu.Lock()
	now := time.Now()
	shouldLog := w.lastErrorTime.IsZero() || now.Sub(w.lastErrorTime) > errorLogInterval
	if shouldLog {
		w.lastErrorTime = now
	}
	w.mu.Unlock()

	if shouldLog {
		w.logger.Error("watchdog stop failed", "error", err, "age", age, "total_errors", w.stopErrors.Load())
	}
}
