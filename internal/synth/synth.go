// Package synth produces one day of readings for one meter and writes them
// as line-delimited JSON artifacts.
package synth

import (
	"math"
	"math/rand/v2"
	"time"
)

// TimestampLayout is ISO-8601 local date-time without zone or fraction.
const TimestampLayout = "2006-01-02T15:04:05"

// TimeSlot is a time of day.
type TimeSlot struct {
	Hour   int
	Minute int
	Second int
}

// On combines the slot with a calendar date.
func (s TimeSlot) On(date time.Time) time.Time {
	y, m, d := date.Date()
	return time.Date(y, m, d, s.Hour, s.Minute, s.Second, 0, time.UTC)
}

// TimeSlots returns the ordered slots covering one day at the given spacing
// in seconds. The spacing is expected to divide 86400; any trailing partial
// interval is dropped.
func TimeSlots(stepSeconds int) []TimeSlot {
	if stepSeconds <= 0 {
		stepSeconds = 10
	}
	slots := make([]TimeSlot, 0, 86400/stepSeconds)
	for sec := 0; sec < 86400; sec += stepSeconds {
		slots = append(slots, TimeSlot{Hour: sec / 3600, Minute: sec % 3600 / 60, Second: sec % 60})
	}
	return slots
}

// Reading is one timestamped value.
type Reading struct {
	Timestamp time.Time
	Value     float64
}

// ValueFunc produces one reading value. It is called concurrently from many
// write workers and must be safe for that.
type ValueFunc func() float64

// UniformValue samples uniformly from [lo, hi] and rounds to precision
// decimal places. It uses the package-level math/rand/v2 source, which is
// safe for concurrent use.
func UniformValue(lo, hi float64, precision int) ValueFunc {
	return func() float64 {
		return Round(lo+rand.Float64()*(hi-lo), precision)
	}
}

// Round rounds v to the given number of decimal places.
func Round(v float64, precision int) float64 {
	scale := math.Pow10(precision)
	return math.Round(v*scale) / scale
}

// Synthesizer builds a day of readings from a fixed slot set.
type Synthesizer struct {
	slots []TimeSlot
	value ValueFunc
}

// NewSynthesizer creates a Synthesizer. slots is shared read-only.
func NewSynthesizer(slots []TimeSlot, value ValueFunc) *Synthesizer {
	if value == nil {
		value = UniformValue(0, 0.9, 3)
	}
	return &Synthesizer{slots: slots, value: value}
}

// Slots returns the slot set.
func (s *Synthesizer) Slots() []TimeSlot { return s.slots }

// Synthesize returns one reading per slot, in slot order.
func (s *Synthesizer) Synthesize(date time.Time) []Reading {
	readings := make([]Reading, len(s.slots))
	for i, slot := range s.slots {
		readings[i] = Reading{Timestamp: slot.On(date), Value: s.value()}
	}
	return readings
}

// WriteArtifact synthesizes date and writes the readings to path.
func (s *Synthesizer) WriteArtifact(date time.Time, path string) error {
	return WriteFile(path, s.Synthesize(date))
}
