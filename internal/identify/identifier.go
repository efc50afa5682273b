package identify

import (
	"context"
	"crypto/sha256"
	"encoding/hex"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"tracklistify/internal/audio"
	"tracklistify/internal/logger"
	"tracklistify/internal/track"
)

// RateLimiter gates outgoing provider requests.
type RateLimiter interface {
	Acquire(ctx context.Context, timeout time.Duration) bool
}

// Options tunes a mix analysis run.
type Options struct {
	SegmentLength   int     // seconds per analysis window
	SegmentOverlap  float64 // fraction of a window shared with the next
	MinConfidence   float32 // hits at or below are discarded
	TimeThreshold   float64 // seconds within which similar hits merge
	MaxDuplicates   int     // retained occurrences of one track
	MinGapThreshold float64 // seconds of silence worth reporting
	AcquireTimeout  time.Duration
}

// Identifier runs the segment-identify-merge pipeline over a mix.
type Identifier struct {
	Provider Provider
	Enricher Enricher
	Cache    SegmentCache
	Limiter  RateLimiter
	Logger   *logger.Logger
	Options  Options

	// OnSegment, if set, is called after each processed window.
	OnSegment func(done, total int)
}

// cachedResult is the cache payload for one segment. A nil Match records
// that the services recognized nothing, so the miss is not retried.
type cachedResult struct {
	Match *Match `json:"match"`
}

// segmentKey builds the cache key for a window of a source file.
func segmentKey(path string, startSecs float64) string {
	sum := sha256.Sum256([]byte(fmt.Sprintf("%s:%d", path, int(startSecs))))
	return hex.EncodeToString(sum[:])
}

// Process analyzes the mix and returns the merged, enriched tracklist.
// Cancellation mid-run returns the tracks merged from the segments already
// processed, alongside ctx.Err().
func (id *Identifier) Process(ctx context.Context, src *audio.Source) ([]Result, Analysis, error) {
	windows := audio.PlanWindows(src.Info.Duration, id.Options.SegmentLength, id.Options.SegmentOverlap)
	analysis := Analysis{
		TotalSegments: len(windows),
		MixDuration:   src.Info.Duration,
	}
	if len(windows) == 0 {
		return nil, analysis, fmt.Errorf("mix %s yields no analysis windows", src.Path)
	}

	id.Logger.Info("Analyzing %s: %d segments of %ds",
		src.Path, len(windows), id.Options.SegmentLength)

	matcher := track.NewMatcher(track.MatcherOptions{
		MinConfidence: id.Options.MinConfidence,
		TimeThreshold: id.Options.TimeThreshold,
		MaxDuplicates: id.Options.MaxDuplicates,
		SegmentLength: float64(id.Options.SegmentLength),
	}, id.Logger)

	// Provider-reported track durations, used for timing assignment after
	// the merge. Matcher output preserves pointer identity.
	durations := make(map[*track.Track]float64)

	var runErr error
	for i, w := range windows {
		if ctx.Err() != nil {
			id.Logger.Warn("Analysis cancelled after %d/%d segments", i, len(windows))
			runErr = ctx.Err()
			break
		}

		match, err := id.identifySegment(ctx, src, w, &analysis)
		if err != nil {
			if errors.Is(err, ErrAuth) {
				return nil, analysis, err
			}
			id.Logger.Warn("Segment %d (%s): %v", w.Index, track.FormatTimestamp(w.Start), err)
		} else if match != nil {
			trk, err := track.New(match.Title, match.Artist, track.FormatTimestamp(w.Start), match.Confidence)
			if err != nil {
				id.Logger.Warn("Segment %d returned an unusable match: %v", w.Index, err)
			} else {
				matcher.Add(trk)
				durations[trk] = match.Duration
				analysis.RawMatches++
				analysis.SegmentsWithMatch++
			}
		}

		if id.OnSegment != nil {
			id.OnSegment(i+1, len(windows))
		}
	}

	merged := matcher.MergeNearby()
	id.assignTimings(merged, durations, src.Info.Duration)
	id.auditTimeline(merged, &analysis)

	results := make([]Result, 0, len(merged))
	var confidenceSum float64
	for _, trk := range merged {
		confidenceSum += float64(trk.Confidence)
		results = append(results, Result{Track: trk, Extra: id.enrich(ctx, trk)})
	}
	if len(merged) > 0 {
		analysis.AverageConfidence = confidenceSum / float64(len(merged))
	}

	id.Logger.Info("Identified %d tracks from %d raw matches", len(results), analysis.RawMatches)
	return results, analysis, runErr
}

// identifySegment resolves one window to a match, consulting the cache
// before the provider chain. A nil match with nil error means the services
// recognized nothing.
func (id *Identifier) identifySegment(ctx context.Context, src *audio.Source, w audio.Window, analysis *Analysis) (*Match, error) {
	key := segmentKey(src.Path, w.Start)

	if id.Cache != nil {
		if payload, ok := id.Cache.Get(ctx, key); ok {
			var cached cachedResult
			if err := json.Unmarshal([]byte(payload), &cached); err == nil {
				id.Logger.Debug("Segment %d served from cache", w.Index)
				analysis.SegmentsFromCache++
				return cached.Match, nil
			}
			// Unreadable payloads are treated as misses.
			id.Logger.Debug("Discarding corrupt cache entry for segment %d", w.Index)
		}
	}

	if id.Limiter != nil && !id.Limiter.Acquire(ctx, id.Options.AcquireTimeout) {
		analysis.SegmentsSkipped++
		return nil, fmt.Errorf("rate limit not acquired within %s, segment skipped", id.Options.AcquireTimeout)
	}

	sample, err := src.ReadWindow(w)
	if err != nil {
		return nil, err
	}

	match, err := id.Provider.Identify(ctx, sample)
	if err != nil {
		if errors.Is(err, ErrNoMatch) {
			id.storeInCache(ctx, key, cachedResult{})
			return nil, nil
		}
		return nil, err
	}

	id.storeInCache(ctx, key, cachedResult{Match: match})
	return match, nil
}

func (id *Identifier) storeInCache(ctx context.Context, key string, result cachedResult) {
	if id.Cache == nil {
		return
	}
	payload, err := json.Marshal(result)
	if err != nil {
		return
	}
	if err := id.Cache.Set(ctx, key, string(payload)); err != nil {
		id.Logger.Debug("cache store failed: %v", err)
	}
}

// assignTimings gives each merged track a play interval: from its detection
// position until the provider-reported duration runs out, clamped to the mix.
// Without a known duration the track is assumed to play until the next one.
func (id *Identifier) assignTimings(tracks []*track.Track, durations map[*track.Track]float64, mixDuration float64) {
	for i, trk := range tracks {
		start := trk.Seconds()

		var end float64
		if d := durations[trk]; d > 0 {
			end = start + d
		} else if i+1 < len(tracks) {
			end = tracks[i+1].Seconds()
		} else {
			end = mixDuration
		}
		if mixDuration > 0 && end > mixDuration {
			end = mixDuration
		}
		if end < start {
			end = start
		}

		if err := trk.SetTiming(start, end, trk.Confidence); err != nil {
			id.Logger.Debug("timing for %s rejected: %v", trk.SongName, err)
		}
	}
}

// auditTimeline reports gaps and overlaps between consecutive tracks.
func (id *Identifier) auditTimeline(tracks []*track.Track, analysis *Analysis) {
	for i := 1; i < len(tracks); i++ {
		prev, cur := tracks[i-1], tracks[i]

		if prev.OverlapsWith(cur) {
			analysis.OverlapsDetected++
			id.Logger.Debug("Overlap between %q and %q", prev.SongName, cur.SongName)
			continue
		}
		if gap, ok := prev.GapTo(cur); ok && gap >= id.Options.MinGapThreshold && gap > 0 {
			analysis.GapsDetected++
			id.Logger.Warn("Gap of %s between %q and %q",
				track.FormatTimestamp(gap), prev.SongName, cur.SongName)
		}
	}
}

// enrich looks up extra metadata for a track, tolerating failure.
func (id *Identifier) enrich(ctx context.Context, trk *track.Track) *Extra {
	if id.Enricher == nil {
		return nil
	}
	extra, err := id.Enricher.Enrich(ctx, trk.Artist, trk.SongName)
	if err != nil {
		id.Logger.Debug("enrichment for %s failed: %v", trk.SongName, err)
		return nil
	}
	return extra
}
