package track

import (
	"math"
	"sort"

	"tracklistify/internal/logger"
)

// Default reconciliation parameters, used when MatcherOptions leaves a field
// unset.
const (
	defaultTimeThreshold = 60.0
	defaultMaxDuplicates = 2
	defaultBucketSize    = 30.0
)

// MatcherOptions configures the reconciliation engine.
type MatcherOptions struct {
	// MinConfidence drops raw hits at or below this confidence. Clamped to
	// [0,100].
	MinConfidence float32

	// TimeThreshold is the maximum distance in seconds between two similar
	// tracks for them to be considered duplicates of one detection.
	TimeThreshold float64

	// MaxDuplicates caps how many occurrences of a logically identical track
	// survive when a group spans multiple segments.
	MaxDuplicates int

	// SegmentLength is the analysis window length in seconds. Tracks from
	// distinct segment-length buckets are treated as separate real
	// occurrences rather than duplicates.
	SegmentLength float64
}

// Matcher accumulates raw identification hits and reconciles them into a
// deduplicated, chronologically ordered tracklist.
type Matcher struct {
	opts   MatcherOptions
	logger *logger.Logger
	tracks []*Track
}

// NewMatcher builds a reconciliation engine with the given options.
func NewMatcher(opts MatcherOptions, log *logger.Logger) *Matcher {
	if opts.MinConfidence < 0 {
		opts.MinConfidence = 0
	}
	if opts.MinConfidence > 100 {
		opts.MinConfidence = 100
	}
	if opts.TimeThreshold <= 0 {
		opts.TimeThreshold = defaultTimeThreshold
	}
	if opts.MaxDuplicates <= 0 {
		opts.MaxDuplicates = defaultMaxDuplicates
	}
	if opts.SegmentLength <= 0 {
		opts.SegmentLength = defaultBucketSize
	}
	return &Matcher{opts: opts, logger: log}
}

// Add accepts a raw hit if it clears the confidence threshold. Hits at or
// below the threshold are dropped silently; filtering is a normal outcome,
// not an error.
func (m *Matcher) Add(t *Track) {
	if t == nil {
		return
	}
	if t.Confidence <= m.opts.MinConfidence {
		return
	}
	m.tracks = append(m.tracks, t)
	if m.logger != nil {
		m.logger.Debug("Added track to matcher: %s (confidence: %.1f%%)", t.SongName, t.Confidence)
	}
}

// Len returns the number of accumulated tracks.
func (m *Matcher) Len() int {
	return len(m.tracks)
}

// MergeNearby reconciles the accumulated hits: sorts them chronologically,
// groups tracks that are similar and close in time, and selects the
// survivors per group. Groups that span distinct analysis segments keep
// their members (they are separate plays of the same song); groups within a
// single segment collapse to the highest-confidence hit.
func (m *Matcher) MergeNearby() []*Track {
	if len(m.tracks) == 0 {
		return nil
	}

	sorted := make([]*Track, len(m.tracks))
	copy(sorted, m.tracks)
	sort.SliceStable(sorted, func(i, j int) bool {
		return sorted[i].Seconds() < sorted[j].Seconds()
	})

	var groups [][]*Track
	for _, t := range sorted {
		gi := m.findGroup(groups, t)
		if gi < 0 {
			groups = append(groups, []*Track{t})
			continue
		}
		groups[gi] = append(groups[gi], t)
	}

	var merged []*Track
	for _, group := range groups {
		merged = append(merged, m.selectFromGroup(group)...)
	}

	sort.SliceStable(merged, func(i, j int) bool {
		return merged[i].Seconds() < merged[j].Seconds()
	})
	return merged
}

// findGroup returns the index of the first group the track belongs to: it
// must be similar to at least one member and within the time threshold of
// the closest member. Returns -1 when no group fits.
func (m *Matcher) findGroup(groups [][]*Track, t *Track) int {
	for gi, group := range groups {
		similar := false
		closest := math.Inf(1)
		for _, member := range group {
			if member.IsSimilarTo(t) {
				similar = true
			}
			if d := math.Abs(member.Seconds() - t.Seconds()); d < closest {
				closest = d
			}
		}
		if similar && closest <= m.opts.TimeThreshold {
			return gi
		}
	}
	return -1
}

// selectFromGroup picks the surviving tracks of one group.
func (m *Matcher) selectFromGroup(group []*Track) []*Track {
	buckets := make(map[int]struct{}, len(group))
	for _, t := range group {
		buckets[int(t.Seconds()/m.opts.SegmentLength)] = struct{}{}
	}

	if len(buckets) <= 1 {
		best := group[0]
		for _, t := range group[1:] {
			if t.Confidence > best.Confidence {
				best = t
			}
		}
		return []*Track{best}
	}

	// Distinct segments: real repeated occurrences. Keep them, but cap at
	// MaxDuplicates, preferring the most confident hits.
	if len(group) <= m.opts.MaxDuplicates {
		kept := make([]*Track, len(group))
		copy(kept, group)
		return kept
	}

	byConfidence := make([]*Track, len(group))
	copy(byConfidence, group)
	sort.SliceStable(byConfidence, func(i, j int) bool {
		return byConfidence[i].Confidence > byConfidence[j].Confidence
	})
	kept := byConfidence[:m.opts.MaxDuplicates]
	sort.SliceStable(kept, func(i, j int) bool {
		return kept[i].Seconds() < kept[j].Seconds()
	})
	return kept
}
