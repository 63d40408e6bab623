// Package sensor defines the temperature probe contract and the Reading
// value shared across the monitor.
//
// The physical thermocouple driver lives behind the Probe interface so the
// daemon can run against simulated hardware on a workstation. Readings are
// immutable once constructed; the supervisor replaces the live reading
// wholesale each poll cycle.
package sensor

import (
	"errors"
	"math"
	"time"
)

// Plausible thermocouple range for a roast chamber. Values outside this
// window indicate a wiring fault or a floating input, not a real roast.
const (
	MinPlausibleCelsius = -50.0
	MaxPlausibleCelsius = 600.0
)

// ErrProbeUnavailable means the probe hardware returned no value at all.
var ErrProbeUnavailable = errors.New("temperature probe unavailable")

// Reading is one sampled temperature. Both unit conversions are captured
// at construction so consumers never convert (and never disagree on
// rounding). Valid is false for NaN or out-of-range samples.
type Reading struct {
	Celsius    float64
	Fahrenheit float64
	Valid      bool
	CapturedAt time.Time
}

// Probe reads a temperature from some source. Read blocks for the duration
// of one hardware sample and returns ErrProbeUnavailable (or a wrapped
// driver error) on failure.
type Probe interface {
	Read() (Reading, error)
}

// NewReading builds a Reading from a Celsius sample, deriving the
// Fahrenheit value and validity.
func NewReading(celsius float64) Reading {
	return Reading{
		Celsius:    celsius,
		Fahrenheit: celsius*9/5 + 32,
		Valid:      !math.IsNaN(celsius) && celsius >= MinPlausibleCelsius && celsius <= MaxPlausibleCelsius,
		CapturedAt: time.Now(),
	}
}

// ValueIn returns the reading's value in the given unit ("C" or "F").
// Anything other than "F" selects Celsius.
func (r Reading) ValueIn(unit string) float64 {
	if unit == "F" {
		return r.Fahrenheit
	}
	return r.Celsius
}
