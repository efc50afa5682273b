// Package track implements the track reconciliation core: the Track entity,
// its timing arithmetic, the fuzzy similarity matcher, and the Matcher that
// merges raw per-segment identification hits into a clean tracklist.
package track

import (
	"encoding/json"
	"fmt"
	"regexp"
	"strings"
)

// Field identifies which Track field failed validation.
type Field string

const (
	FieldSongName   Field = "song_name"
	FieldArtist     Field = "artist"
	FieldTimeInMix  Field = "time_in_mix"
	FieldConfidence Field = "confidence"
)

// ValidationError reports a rejected Track construction input.
type ValidationError struct {
	Field  Field
	Reason string
}

func (e *ValidationError) Error() string {
	return fmt.Sprintf("invalid track: %s %s", e.Field, e.Reason)
}

var timeInMixPattern = regexp.MustCompile(`^\d{1,3}:[0-5]\d:[0-5]\d$`)

// Track represents one identified song occurrence within a mix. The identity
// fields are fixed at construction; only the optional timing can be replaced
// afterwards, through SetTiming.
type Track struct {
	SongName   string
	Artist     string
	TimeInMix  string // position in the mix, HH:MM:SS
	Confidence float32
	timing     *Timing
}

// New validates all required fields and builds a Track without timing.
func New(songName, artist, timeInMix string, confidence float32) (*Track, error) {
	songName = strings.TrimSpace(songName)
	artist = strings.TrimSpace(artist)
	timeInMix = strings.TrimSpace(timeInMix)

	if songName == "" {
		return nil, &ValidationError{Field: FieldSongName, Reason: "cannot be empty"}
	}
	if artist == "" {
		return nil, &ValidationError{Field: FieldArtist, Reason: "cannot be empty"}
	}
	if timeInMix == "" {
		return nil, &ValidationError{Field: FieldTimeInMix, Reason: "cannot be empty"}
	}
	if !timeInMixPattern.MatchString(timeInMix) {
		return nil, &ValidationError{Field: FieldTimeInMix, Reason: fmt.Sprintf("%q is not in HH:MM:SS format", timeInMix)}
	}
	if confidence < 0 || confidence > 100 {
		return nil, &ValidationError{Field: FieldConfidence, Reason: fmt.Sprintf("must be between 0 and 100, got %.1f", confidence)}
	}

	return &Track{
		SongName:   songName,
		Artist:     artist,
		TimeInMix:  timeInMix,
		Confidence: confidence,
	}, nil
}

// SetTiming replaces the track's timing atomically. Partial mutation of an
// existing timing is deliberately not supported.
func (t *Track) SetTiming(start, end float64, confidence float32) error {
	timing, err := NewTiming(start, end, confidence)
	if err != nil {
		return err
	}
	t.timing = &timing
	return nil
}

// ClearTiming removes any timing information.
func (t *Track) ClearTiming() {
	t.timing = nil
}

// Timing returns the timing information and whether it is present.
func (t *Track) Timing() (Timing, bool) {
	if t.timing == nil {
		return Timing{}, false
	}
	return *t.timing, true
}

// Duration returns the track duration in seconds when timing is known.
func (t *Track) Duration() (float64, bool) {
	if t.timing == nil {
		return 0, false
	}
	return t.timing.Duration(), true
}

// Seconds converts TimeInMix to seconds from the start of the mix. Malformed
// positions cannot pass New, so this degrades to 0 rather than failing.
func (t *Track) Seconds() float64 {
	secs, err := ParseTimestamp(t.TimeInMix)
	if err != nil {
		return 0
	}
	return secs
}

// OverlapsWith reports whether the two tracks overlap in the mix. Tracks
// without timing never overlap.
func (t *Track) OverlapsWith(other *Track) bool {
	if t.timing == nil || other.timing == nil {
		return false
	}
	return t.timing.Overlaps(*other.timing)
}

// GapTo returns the gap in seconds between t and other. The second return is
// false when either side has no timing.
func (t *Track) GapTo(other *Track) (float64, bool) {
	if t.timing == nil || other.timing == nil {
		return 0, false
	}
	return t.timing.GapTo(*other.timing), true
}

// FormatDuration renders the duration as MM:SS, or "--:--" without timing.
// Sub-second durations are rounded up so short tracks do not show as 00:00.
func (t *Track) FormatDuration() string {
	if t.timing == nil {
		return "--:--"
	}
	duration := t.timing.Duration()
	if duration > 0 && duration < 1 {
		duration = 1
	}
	return fmt.Sprintf("%02d:%02d", int(duration)/60, int(duration)%60)
}

func (t *Track) String() string {
	var duration string
	if t.timing != nil {
		duration = fmt.Sprintf(" [%s]", t.FormatDuration())
	}
	return fmt.Sprintf("%s - %s - %s%s (%.0f%%)", t.TimeInMix, t.Artist, t.SongName, duration, t.Confidence)
}

// ParseTimestamp converts a HH:MM:SS string to seconds.
func ParseTimestamp(s string) (float64, error) {
	var h, m, sec int
	if _, err := fmt.Sscanf(s, "%d:%d:%d", &h, &m, &sec); err != nil {
		return 0, fmt.Errorf("invalid timestamp %q: %w", s, err)
	}
	if h < 0 || m < 0 || m > 59 || sec < 0 || sec > 59 {
		return 0, fmt.Errorf("invalid timestamp %q", s)
	}
	return float64(h*3600 + m*60 + sec), nil
}

// FormatTimestamp renders seconds from the start of the mix as HH:MM:SS.
func FormatTimestamp(seconds float64) string {
	total := int(seconds)
	return fmt.Sprintf("%02d:%02d:%02d", total/3600, (total%3600)/60, total%60)
}

// trackJSON is the serialized form of a Track. Timing fields are flattened
// and null when absent.
type trackJSON struct {
	SongName         string   `json:"song_name"`
	Artist           string   `json:"artist"`
	TimeInMix        string   `json:"time_in_mix"`
	Confidence       float32  `json:"confidence"`
	StartTime        *float64 `json:"start_time"`
	EndTime          *float64 `json:"end_time"`
	TimingConfidence *float32 `json:"timing_confidence"`
}

// MarshalJSON serializes the track including optional timing.
func (t *Track) MarshalJSON() ([]byte, error) {
	out := trackJSON{
		SongName:   t.SongName,
		Artist:     t.Artist,
		TimeInMix:  t.TimeInMix,
		Confidence: t.Confidence,
	}
	if t.timing != nil {
		out.StartTime = &t.timing.Start
		out.EndTime = &t.timing.End
		out.TimingConfidence = &t.timing.Confidence
	}
	return json.Marshal(out)
}

// UnmarshalJSON reconstructs a track, applying the same validation as New
// and SetTiming.
func (t *Track) UnmarshalJSON(data []byte) error {
	var in trackJSON
	if err := json.Unmarshal(data, &in); err != nil {
		return err
	}
	parsed, err := New(in.SongName, in.Artist, in.TimeInMix, in.Confidence)
	if err != nil {
		return err
	}
	if in.StartTime != nil && in.EndTime != nil {
		var confidence float32 = 100
		if in.TimingConfidence != nil {
			confidence = *in.TimingConfidence
		}
		if err := parsed.SetTiming(*in.StartTime, *in.EndTime, confidence); err != nil {
			return err
		}
	}
	*t = *parsed
	return nil
}
