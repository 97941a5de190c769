package normalize

import (
	"errors"
	"fmt"
)

// Axis identifies a logical actuator axis.
type Axis string

// Logical axes of the rover.
const (
	AxisLeftWheel  Axis = "left_wheel"
	AxisRightWheel Axis = "right_wheel"
	AxisPan        Axis = "pan"
	AxisTilt       Axis = "tilt"
	AxisWaist      Axis = "waist"
)

// AllAxes returns every axis in channel order.
func AllAxes() []Axis {
	return []Axis{AxisLeftWheel, AxisRightWheel, AxisPan, AxisTilt, AxisWaist}
}

// Range describes one axis in actuator-native units
// (quarter-microseconds for a Maestro servo controller).
type Range struct {
	Channel int `yaml:"channel" json:"channel"`
	Min     int `yaml:"min" json:"min"`
	Center  int `yaml:"center" json:"center"`
	Max     int `yaml:"max" json:"max"`
}

// HalfRange is the largest symmetric excursion from Center that stays
// inside [Min, Max].
func (r Range) HalfRange() int {
	return min(r.Center-r.Min, r.Max-r.Center)
}

// Validate checks that Min < Center < Max.
func (r Range) Validate() error {
	if r.Min >= r.Max {
		return fmt.Errorf("min %d must be below max %d", r.Min, r.Max)
	}
	if r.Center <= r.Min || r.Center >= r.Max {
		return fmt.Errorf("center %d must lie strictly inside [%d, %d]", r.Center, r.Min, r.Max)
	}
	if r.Channel < 0 {
		return fmt.Errorf("channel %d must not be negative", r.Channel)
	}
	return nil
}

// Ranges is the static actuator table. Immutable after startup.
type Ranges struct {
	LeftWheel  Range `yaml:"left_wheel" json:"left_wheel"`
	RightWheel Range `yaml:"right_wheel" json:"right_wheel"`
	Pan        Range `yaml:"pan" json:"pan"`
	Tilt       Range `yaml:"tilt" json:"tilt"`
	Waist      Range `yaml:"waist" json:"waist"`
}

// DefaultRanges matches a Maestro wired with wheels on channels 0-1 and
// servos on 2-4, 1000-2000µs pulses.
func DefaultRanges() Ranges {
	return Ranges{
		LeftWheel:  Range{Channel: 0, Min: 4000, Center: 6000, Max: 8000},
		RightWheel: Range{Channel: 1, Min: 4000, Center: 6000, Max: 8000},
		Pan:        Range{Channel: 2, Min: 4000, Center: 6000, Max: 8000},
		Tilt:       Range{Channel: 3, Min: 4800, Center: 6000, Max: 7200},
		Waist:      Range{Channel: 4, Min: 4400, Center: 6000, Max: 7600},
	}
}

// For returns the range of an axis.
func (r Ranges) For(axis Axis) (Range, bool) {
	switch axis {
	case AxisLeftWheel:
		return r.LeftWheel, true
	case AxisRightWheel:
		return r.RightWheel, true
	case AxisPan:
		return r.Pan, true
	case AxisTilt:
		return r.Tilt, true
	case AxisWaist:
		return r.Waist, true
	}
	return Range{}, false
}

// Validate checks every axis and that no two axes share a channel.
func (r Ranges) Validate() error {
	var errs []error
	seen := make(map[int]Axis)
	for _, axis := range AllAxes() {
		rng, _ := r.For(axis)
		if err := rng.Validate(); err != nil {
			errs = append(errs, fmt.Errorf("%s: %w", axis, err))
			continue
		}
		if other, ok := seen[rng.Channel]; ok {
			errs = append(errs, fmt.Errorf("%s: channel %d already used by %s", axis, rng.Channel, other))
		}
		seen[rng.Channel] = axis
	}
	return errors.Join(errs...)
}

// WheelTargets maps a clamped drive pair to native wheel targets.
func (r Ranges) WheelTargets(left, right float64) (int, int) {
	return MapWheel(left, r.LeftWheel.Center, r.LeftWheel.HalfRange()),
		MapWheel(right, r.RightWheel.Center, r.RightWheel.HalfRange())
}

// ServoTarget maps a clamped servo position to the axis' native target.
func (r Ranges) ServoTarget(axis Axis, value float64) (int, error) {
	rng, ok := r.For(axis)
	if !ok || axis == AxisLeftWheel || axis == AxisRightWheel {
		return 0, fmt.Errorf("normalize: %q is not a servo axis", axis)
	}
	return MapServo(value, rng.Min, rng.Max), nil
}
