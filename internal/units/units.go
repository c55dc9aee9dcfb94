// Package units converts raw sensor values into canonical units: degrees
// Celsius, volts, watts and joules.
package units

import (
	"math"

	"codeberg.org/mutker/hwsnap/internal/telemetry"
)

// Precision is the number of decimal places results are rounded to.
const Precision = 3

const (
	millidegreeThreshold = 1000.0
	millivoltThreshold   = 100.0

	minCelsius = -60.0
	maxCelsius = 250.0
)

var scale = math.Pow10(Precision)

// Round rounds v to Precision decimal places.
func Round(v float64) float64 {
	return math.Round(v*scale) / scale
}

// Temperature converts a value of unknown scale: anything above 1000 is
// taken as millidegrees.
func Temperature(v float64) float64 {
	if v > millidegreeThreshold {
		return Round(v / 1000)
	}

	return Round(v)
}

// Millidegree converts millidegrees Celsius to degrees.
func Millidegree(v float64) float64 {
	return Round(v / 1000)
}

// Voltage converts a voltage of unknown scale. Values above 100 are taken as
// millivolts and the second result is true. This misreads a sensor that
// legitimately reports more than 100 V, so callers flag such readings.
func Voltage(v float64) (float64, bool) {
	if v > millivoltThreshold {
		return Round(v / 1000), true
	}

	return Round(v), false
}

// Millivolt converts millivolts to volts.
func Millivolt(v float64) float64 {
	return Round(v / 1000)
}

// Microwatt converts microwatts to watts.
func Microwatt(v float64) float64 {
	return Round(v / 1e6)
}

// Milliwatt converts milliwatts to watts.
func Milliwatt(v float64) float64 {
	return Round(v / 1e3)
}

// Microjoule converts microjoules to joules.
func Microjoule(v float64) float64 {
	return Round(v / 1e6)
}

// Normalized is a raw reading converted to its canonical unit.
type Normalized struct {
	Value    float64
	Unit     telemetry.Unit
	Critical *float64
	Max      *float64
	// Heuristic is set when the scale was guessed, see Voltage.
	Heuristic bool
}

// Normalize converts r. It returns false when the value cannot be trusted:
// non-finite input, unknown units, or temperatures outside what hardware
// can physically report (driver sentinels such as -273.1).
func Normalize(r telemetry.RawReading) (Normalized, bool) {
	if !finite(r.Value) {
		return Normalized{}, false
	}

	var conv func(float64) float64
	n := Normalized{}

	switch r.Unit {
	case telemetry.RawTemperature:
		conv, n.Unit = Temperature, telemetry.UnitCelsius
	case telemetry.RawMillidegree:
		conv, n.Unit = Millidegree, telemetry.UnitCelsius
	case telemetry.RawDegree:
		conv, n.Unit = Round, telemetry.UnitCelsius
	case telemetry.RawVoltage:
		// thresholds follow the scale chosen for the value
		_, n.Heuristic = Voltage(r.Value)
		conv, n.Unit = Round, telemetry.UnitVolt
		if n.Heuristic {
			conv = Millivolt
		}
	case telemetry.RawMillivolt:
		conv, n.Unit = Millivolt, telemetry.UnitVolt
	case telemetry.RawVolt:
		conv, n.Unit = Round, telemetry.UnitVolt
	case telemetry.RawMicrowatt:
		conv, n.Unit = Microwatt, telemetry.UnitWatt
	case telemetry.RawMilliwatt:
		conv, n.Unit = Milliwatt, telemetry.UnitWatt
	case telemetry.RawWatt:
		conv, n.Unit = Round, telemetry.UnitWatt
	case telemetry.RawMicrojoule:
		conv, n.Unit = Microjoule, telemetry.UnitJoule
	default:
		return Normalized{}, false
	}

	n.Value = conv(r.Value)
	if n.Unit == telemetry.UnitCelsius && !plausibleCelsius(n.Value) {
		return Normalized{}, false
	}

	n.Critical = convertOptional(r.Critical, conv)
	n.Max = convertOptional(r.Max, conv)

	return n, true
}

func convertOptional(v *float64, conv func(float64) float64) *float64 {
	if v == nil || !finite(*v) {
		return nil
	}
	out := conv(*v)

	return &out
}

func finite(v float64) bool {
	return !math.IsNaN(v) && !math.IsInf(v, 0)
}

func plausibleCelsius(v float64) bool {
	return v >= minCelsius && v <= maxCelsius
}
