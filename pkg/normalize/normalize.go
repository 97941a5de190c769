// Package normalize maps operator-facing command values into validated,
// clamped actuator commands.
//
// Everything here is pure: no I/O, no shared state. It is the single place
// where safety clamping happens, so every value that reaches an actuator sink
// has passed through one of these functions.
//
// Operator units:
//   - drive powers are in [-1, 1] (negative is reverse)
//   - servo positions are in [0, 1]
//
// Out-of-range numbers are clamped, not rejected. Only missing or
// non-numeric input is a ValidationError.
package normalize

import "math"

// Semantic ranges for operator values.
const (
	DriveMin = -1.0
	DriveMax = 1.0
	ServoMin = 0.0
	ServoMax = 1.0
)

// DefaultGain is the drive gain used when none is configured.
const DefaultGain = 1.8

// Clamp restricts v to the range [lo, hi].
func Clamp(v, lo, hi float64) float64 {
	if v < lo {
		return lo
	}
	if v > hi {
		return hi
	}
	return v
}

// ClampDrive validates both wheel powers and clamps each to [-1, 1]
// independently. A missing or non-numeric value rejects the whole command.
func ClampDrive(l, r any) (float64, float64, error) {
	lf, err := Number("l", l)
	if err != nil {
		return 0, 0, err
	}
	rf, err := Number("r", r)
	if err != nil {
		return 0, 0, err
	}
	return Clamp(lf, DriveMin, DriveMax), Clamp(rf, DriveMin, DriveMax), nil
}

// ScaleDrive multiplies both powers by gain and re-clamps to [-1, 1].
// Gains above 1 boost low-end response at the cost of saturating earlier.
func ScaleDrive(l, r, gain float64) (float64, float64) {
	return Clamp(l*gain, DriveMin, DriveMax), Clamp(r*gain, DriveMin, DriveMax)
}

// ClampServo validates a servo position and clamps it to [0, 1].
func ClampServo(field string, v any) (float64, error) {
	f, err := Number(field, v)
	if err != nil {
		return 0, err
	}
	return Clamp(f, ServoMin, ServoMax), nil
}

// MapServo converts a [0, 1] position into an integer target in
// [axisMin, axisMax]. The direction is inverted: 1.0 maps to axisMin and
// 0.0 maps to axisMax, so a higher operator value tilts the head down.
func MapServo(value float64, axisMin, axisMax int) int {
	v := Clamp(value, ServoMin, ServoMax)
	switch v {
	case ServoMin:
		return axisMax
	case ServoMax:
		return axisMin
	}
	span := float64(axisMax - axisMin)
	return axisMin + int(math.Round((1-v)*span))
}

// MapWheel converts a [-1, 1] power into center + value*halfRange.
func MapWheel(value float64, center, halfRange int) int {
	v := Clamp(value, DriveMin, DriveMax)
	return center + int(math.Round(v*float64(halfRange)))
}

// ArcadeToDrive mixes a single-stick (turn, forward) input into left/right
// wheel powers. The pair is scaled down together when either side exceeds 1
// so the turn ratio is preserved.
func ArcadeToDrive(turn, fwd any) (float64, float64, error) {
	t, err := Number("turn", turn)
	if err != nil {
		return 0, 0, err
	}
	f, err := Number("fwd", fwd)
	if err != nil {
		return 0, 0, err
	}
	t = Clamp(t, DriveMin, DriveMax)
	f = Clamp(f, DriveMin, DriveMax)

	l := f + t
	r := f - t
	m := math.Max(1, math.Max(math.Abs(l), math.Abs(r)))
	return l / m, r / m, nil
}
