package track

import "fmt"

// Timing describes where a track actually plays within the mix.
type Timing struct {
	Start      float64 // seconds from the start of the mix
	End        float64 // seconds from the start of the mix
	Confidence float32 // 0-100
}

// NewTiming validates and builds a Timing. End must not precede Start and
// confidence must be within 0-100; there is no way to represent a negative
// duration.
func NewTiming(start, end float64, confidence float32) (Timing, error) {
	if end < start {
		return Timing{}, fmt.Errorf("end time %.2f cannot be less than start time %.2f", end, start)
	}
	if confidence < 0 || confidence > 100 {
		return Timing{}, fmt.Errorf("timing confidence must be between 0 and 100, got %.1f", confidence)
	}
	return Timing{Start: start, End: end, Confidence: confidence}, nil
}

// Duration returns the track duration in seconds.
func (t Timing) Duration() float64 {
	return t.End - t.Start
}

// Overlaps reports whether the two timings share any span of the mix.
func (t Timing) Overlaps(other Timing) bool {
	return t.Start < other.End && t.End > other.Start
}

// GapTo returns the silence between the end of t and the start of other in
// seconds. Overlapping or touching timings have a gap of zero.
func (t Timing) GapTo(other Timing) float64 {
	if t.End < other.Start {
		return other.Start - t.End
	}
	return 0
}
