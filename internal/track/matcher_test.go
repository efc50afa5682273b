package track

import (
	"testing"

	"tracklistify/internal/logger"
)

func newTestMatcher(opts MatcherOptions) *Matcher {
	return NewMatcher(opts, logger.New(false))
}

func TestAddFiltersByConfidence(t *testing.T) {
	m := newTestMatcher(MatcherOptions{MinConfidence: 50})

	m.Add(mustTrack(t, "Keeper", "Artist", "00:00:00", 80))
	m.Add(mustTrack(t, "Borderline", "Artist", "00:01:00", 50)) // at threshold: dropped
	m.Add(mustTrack(t, "Too Low", "Artist", "00:02:00", 20))
	m.Add(nil)

	if m.Len() != 1 {
		t.Fatalf("accumulated %d tracks, want 1", m.Len())
	}
	merged := m.MergeNearby()
	if len(merged) != 1 || merged[0].SongName != "Keeper" {
		t.Errorf("merged = %v, want only Keeper", merged)
	}
}

func TestMinConfidenceClamping(t *testing.T) {
	m := newTestMatcher(MatcherOptions{MinConfidence: 150})
	if m.opts.MinConfidence != 100 {
		t.Errorf("MinConfidence = %v, want clamped to 100", m.opts.MinConfidence)
	}

	m = newTestMatcher(MatcherOptions{MinConfidence: -10})
	if m.opts.MinConfidence != 0 {
		t.Errorf("MinConfidence = %v, want clamped to 0", m.opts.MinConfidence)
	}
}

func TestMergeNearbyEmpty(t *testing.T) {
	m := newTestMatcher(MatcherOptions{})
	if merged := m.MergeNearby(); len(merged) != 0 {
		t.Errorf("merge of empty accumulation = %v, want empty", merged)
	}
}

func TestMergeNearbyScenario(t *testing.T) {
	// Three raw hits: two duplicates of the same track from overlapping
	// segments plus one distinct track later in the mix.
	m := newTestMatcher(MatcherOptions{TimeThreshold: 10, SegmentLength: 30})

	m.Add(mustTrack(t, "Test Track", "Test Artist", "00:00:00", 90))
	m.Add(mustTrack(t, "Test Track", "Test Artist", "00:00:05", 85))
	m.Add(mustTrack(t, "Different Song", "Artist X", "00:05:00", 80))

	merged := m.MergeNearby()
	if len(merged) != 2 {
		t.Fatalf("merged %d tracks, want 2: %v", len(merged), merged)
	}
	if merged[0].SongName != "Test Track" || merged[0].Confidence != 90 {
		t.Errorf("first = %s (%.0f%%), want Test Track at 90%%", merged[0].SongName, merged[0].Confidence)
	}
	if merged[1].SongName != "Different Song" {
		t.Errorf("second = %s, want Different Song", merged[1].SongName)
	}
}

func TestMergeNearbyOrdering(t *testing.T) {
	m := newTestMatcher(MatcherOptions{TimeThreshold: 10, SegmentLength: 30})

	// Added out of order on purpose.
	m.Add(mustTrack(t, "Third", "Artist C", "00:10:00", 90))
	m.Add(mustTrack(t, "First", "Artist A", "00:00:00", 90))
	m.Add(mustTrack(t, "Second", "Artist B", "00:05:00", 90))

	merged := m.MergeNearby()
	if len(merged) != 3 {
		t.Fatalf("merged %d tracks, want 3", len(merged))
	}
	for i := 1; i < len(merged); i++ {
		if merged[i-1].Seconds() > merged[i].Seconds() {
			t.Errorf("merge output not ordered: %s after %s", merged[i-1].TimeInMix, merged[i].TimeInMix)
		}
	}
}

func TestMergeNearbyIdempotent(t *testing.T) {
	opts := MatcherOptions{TimeThreshold: 10, SegmentLength: 30}

	m := newTestMatcher(opts)
	m.Add(mustTrack(t, "Test Track", "Test Artist", "00:00:00", 90))
	m.Add(mustTrack(t, "Test Track", "Test Artist", "00:00:05", 85))
	m.Add(mustTrack(t, "Test Track (Club Mix)", "Test Artist", "00:00:08", 70))
	m.Add(mustTrack(t, "Different Song", "Artist X", "00:05:00", 80))

	first := m.MergeNearby()

	again := newTestMatcher(opts)
	for _, trk := range first {
		again.Add(trk)
	}
	second := again.MergeNearby()

	if len(first) != len(second) {
		t.Fatalf("second merge changed count: %d -> %d", len(first), len(second))
	}
	for i := range first {
		if first[i] != second[i] {
			t.Errorf("second merge changed element %d: %v -> %v", i, first[i], second[i])
		}
	}
}

func TestMergeKeepsDistinctSegmentOccurrences(t *testing.T) {
	// The same song detected in two different analysis segments within the
	// time threshold is a real repeat, not a duplicate detection.
	m := newTestMatcher(MatcherOptions{TimeThreshold: 60, SegmentLength: 30})

	m.Add(mustTrack(t, "Recurring Song", "Artist", "00:00:10", 90))
	m.Add(mustTrack(t, "Recurring Song", "Artist", "00:00:50", 85))

	merged := m.MergeNearby()
	if len(merged) != 2 {
		t.Fatalf("merged %d tracks, want 2 occurrences across segments", len(merged))
	}
}

func TestMergeCapsDuplicates(t *testing.T) {
	m := newTestMatcher(MatcherOptions{TimeThreshold: 300, MaxDuplicates: 2, SegmentLength: 30})

	m.Add(mustTrack(t, "Recurring Song", "Artist", "00:00:10", 70))
	m.Add(mustTrack(t, "Recurring Song", "Artist", "00:00:50", 90))
	m.Add(mustTrack(t, "Recurring Song", "Artist", "00:01:30", 85))
	m.Add(mustTrack(t, "Recurring Song", "Artist", "00:02:10", 60))

	merged := m.MergeNearby()
	if len(merged) != 2 {
		t.Fatalf("merged %d tracks, want MaxDuplicates=2", len(merged))
	}
	// The two most confident occurrences survive, in chronological order.
	if merged[0].Confidence != 90 || merged[1].Confidence != 85 {
		t.Errorf("kept confidences %.0f/%.0f, want 90/85", merged[0].Confidence, merged[1].Confidence)
	}
	if merged[0].Seconds() > merged[1].Seconds() {
		t.Error("capped duplicates not in chronological order")
	}
}

func TestMergeSeparatesDistantSimilarTracks(t *testing.T) {
	// Similar tracks far apart in time seed separate groups.
	m := newTestMatcher(MatcherOptions{TimeThreshold: 10, SegmentLength: 30})

	m.Add(mustTrack(t, "Test Track", "Test Artist", "00:00:00", 90))
	m.Add(mustTrack(t, "Test Track", "Test Artist", "00:30:00", 85))

	merged := m.MergeNearby()
	if len(merged) != 2 {
		t.Fatalf("merged %d tracks, want 2 groups for distant occurrences", len(merged))
	}
}
