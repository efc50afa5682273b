package identify

import (
	"context"
	"encoding/json"
	"errors"
	"os"
	"path/filepath"
	"testing"
	"time"

	"tracklistify/internal/audio"
	"tracklistify/internal/logger"
)

type scriptResponse struct {
	match *Match
	err   error
}

// scriptProvider replays a fixed sequence of responses.
type scriptProvider struct {
	responses []scriptResponse
	calls     int
}

func (s *scriptProvider) Name() string { return "script" }

func (s *scriptProvider) Identify(ctx context.Context, sample []byte) (*Match, error) {
	if s.calls >= len(s.responses) {
		return nil, ErrNoMatch
	}
	r := s.responses[s.calls]
	s.calls++
	return r.match, r.err
}

type memCache struct {
	entries map[string]string
	sets    int
}

func newMemCache() *memCache { return &memCache{entries: make(map[string]string)} }

func (m *memCache) Get(ctx context.Context, key string) (string, bool) {
	payload, ok := m.entries[key]
	return payload, ok
}

func (m *memCache) Set(ctx context.Context, key, payload string) error {
	m.entries[key] = payload
	m.sets++
	return nil
}

type denyLimiter struct{}

func (denyLimiter) Acquire(ctx context.Context, timeout time.Duration) bool { return false }

// testSource builds a fake 90 second mix backed by a real file.
func testSource(t *testing.T) *audio.Source {
	t.Helper()
	path := filepath.Join(t.TempDir(), "mix.mp3")
	if err := os.WriteFile(path, make([]byte, 9000), 0644); err != nil {
		t.Fatal(err)
	}
	return &audio.Source{Path: path, Size: 9000, Info: audio.MixInfo{Duration: 90}}
}

func testOptions() Options {
	return Options{
		SegmentLength:   30,
		SegmentOverlap:  0,
		MinConfidence:   0,
		TimeThreshold:   10,
		MaxDuplicates:   2,
		MinGapThreshold: 1.0,
		AcquireTimeout:  time.Second,
	}
}

func TestProcessMergesAndTimes(t *testing.T) {
	provider := &scriptProvider{responses: []scriptResponse{
		{match: &Match{Title: "Test Track", Artist: "Test Artist", Confidence: 90}},
		{err: ErrNoMatch},
		{match: &Match{Title: "Different Song", Artist: "Artist X", Confidence: 80}},
	}}

	id := &Identifier{
		Provider: provider,
		Logger:   logger.New(false),
		Options:  testOptions(),
	}

	var progress []int
	id.OnSegment = func(done, total int) {
		if total != 3 {
			t.Errorf("total = %d, want 3", total)
		}
		progress = append(progress, done)
	}

	results, analysis, err := id.Process(context.Background(), testSource(t))
	if err != nil {
		t.Fatalf("Process failed: %v", err)
	}

	if len(results) != 2 {
		t.Fatalf("got %d results, want 2", len(results))
	}
	if results[0].Track.SongName != "Test Track" || results[1].Track.SongName != "Different Song" {
		t.Errorf("tracklist = %v, %v", results[0].Track, results[1].Track)
	}

	// Without provider durations the first track plays until the second
	// begins, and the last until the mix ends.
	if timing, ok := results[0].Track.Timing(); !ok || timing.Start != 0 || timing.End != 60 {
		t.Errorf("first timing = %+v, want [0,60]", timing)
	}
	if timing, ok := results[1].Track.Timing(); !ok || timing.Start != 60 || timing.End != 90 {
		t.Errorf("second timing = %+v, want [60,90]", timing)
	}

	if analysis.TotalSegments != 3 || analysis.RawMatches != 2 || analysis.SegmentsWithMatch != 2 {
		t.Errorf("analysis = %+v", analysis)
	}
	if analysis.AverageConfidence != 85 {
		t.Errorf("average confidence = %v, want 85", analysis.AverageConfidence)
	}
	if len(progress) != 3 || progress[2] != 3 {
		t.Errorf("progress callbacks = %v", progress)
	}
}

func TestProcessTimelineAudit(t *testing.T) {
	// Provider durations drive the timeline: the first track ends 40
	// seconds before the next starts, the second overlaps the third.
	provider := &scriptProvider{responses: []scriptResponse{
		{match: &Match{Title: "Opener", Artist: "Artist A", Confidence: 90, Duration: 20}},
		{match: &Match{Title: "Middle Eight", Artist: "Artist B", Confidence: 85, Duration: 45}},
		{match: &Match{Title: "Closer", Artist: "Artist C", Confidence: 80}},
	}}

	id := &Identifier{
		Provider: provider,
		Logger:   logger.New(false),
		Options:  testOptions(),
	}

	results, analysis, err := id.Process(context.Background(), testSource(t))
	if err != nil {
		t.Fatalf("Process failed: %v", err)
	}
	if len(results) != 3 {
		t.Fatalf("got %d results, want 3", len(results))
	}

	if analysis.GapsDetected != 1 {
		t.Errorf("gaps = %d, want 1", analysis.GapsDetected)
	}
	if analysis.OverlapsDetected != 1 {
		t.Errorf("overlaps = %d, want 1", analysis.OverlapsDetected)
	}
}

func TestProcessUsesCache(t *testing.T) {
	src := testSource(t)
	cache := newMemCache()

	// Pre-seed the first segment with a hit and the second with a cached
	// no-match, so only the third reaches the provider.
	seed := func(start float64, result cachedResult) {
		payload, err := json.Marshal(result)
		if err != nil {
			t.Fatal(err)
		}
		cache.entries[segmentKey(src.Path, start)] = string(payload)
	}
	seed(0, cachedResult{Match: &Match{Title: "Cached Track", Artist: "Cached Artist", Confidence: 95}})
	seed(30, cachedResult{})

	provider := &scriptProvider{responses: []scriptResponse{
		{match: &Match{Title: "Fresh Track", Artist: "Fresh Artist", Confidence: 88}},
	}}

	id := &Identifier{
		Provider: provider,
		Cache:    cache,
		Logger:   logger.New(false),
		Options:  testOptions(),
	}

	results, analysis, err := id.Process(context.Background(), src)
	if err != nil {
		t.Fatalf("Process failed: %v", err)
	}

	if provider.calls != 1 {
		t.Errorf("provider called %d times, want 1", provider.calls)
	}
	if analysis.SegmentsFromCache != 2 {
		t.Errorf("segments from cache = %d, want 2", analysis.SegmentsFromCache)
	}
	if len(results) != 2 {
		t.Fatalf("got %d results, want 2", len(results))
	}
	// The fresh result was written back to the cache.
	if cache.sets != 1 {
		t.Errorf("cache sets = %d, want 1", cache.sets)
	}
}

func TestProcessCorruptCacheEntryIsMiss(t *testing.T) {
	src := testSource(t)
	cache := newMemCache()
	cache.entries[segmentKey(src.Path, 0)] = "{not json"

	provider := &scriptProvider{responses: []scriptResponse{
		{match: &Match{Title: "Recovered", Artist: "Artist", Confidence: 90}},
		{err: ErrNoMatch},
		{err: ErrNoMatch},
	}}

	id := &Identifier{
		Provider: provider,
		Cache:    cache,
		Logger:   logger.New(false),
		Options:  testOptions(),
	}

	results, analysis, err := id.Process(context.Background(), src)
	if err != nil {
		t.Fatalf("Process failed: %v", err)
	}
	if analysis.SegmentsFromCache != 0 {
		t.Errorf("corrupt entry counted as cache hit")
	}
	if len(results) != 1 || results[0].Track.SongName != "Recovered" {
		t.Errorf("results = %v, want the provider result", results)
	}
}

func TestProcessAuthAborts(t *testing.T) {
	provider := &scriptProvider{responses: []scriptResponse{
		{err: &IdentificationError{Provider: "acrcloud", Err: ErrAuth}},
	}}

	id := &Identifier{
		Provider: provider,
		Logger:   logger.New(false),
		Options:  testOptions(),
	}

	_, _, err := id.Process(context.Background(), testSource(t))
	if !errors.Is(err, ErrAuth) {
		t.Fatalf("err = %v, want ErrAuth", err)
	}
	if provider.calls != 1 {
		t.Errorf("provider called %d times after auth failure, want 1", provider.calls)
	}
}

func TestProcessSkipsWhenRateLimited(t *testing.T) {
	provider := &scriptProvider{}
	id := &Identifier{
		Provider: provider,
		Limiter:  denyLimiter{},
		Logger:   logger.New(false),
		Options:  testOptions(),
	}

	results, analysis, err := id.Process(context.Background(), testSource(t))
	if err != nil {
		t.Fatalf("Process failed: %v", err)
	}
	if provider.calls != 0 {
		t.Errorf("provider called %d times despite denied limiter", provider.calls)
	}
	if analysis.SegmentsSkipped != 3 {
		t.Errorf("segments skipped = %d, want 3", analysis.SegmentsSkipped)
	}
	if len(results) != 0 {
		t.Errorf("results = %v, want none", results)
	}
}

func TestProcessCancelReturnsPartial(t *testing.T) {
	provider := &scriptProvider{responses: []scriptResponse{
		{match: &Match{Title: "First Track", Artist: "Artist", Confidence: 90}},
		{match: &Match{Title: "Second Track", Artist: "Artist", Confidence: 90}},
	}}

	ctx, cancel := context.WithCancel(context.Background())
	id := &Identifier{
		Provider: provider,
		Logger:   logger.New(false),
		Options:  testOptions(),
	}
	id.OnSegment = func(done, total int) {
		if done == 1 {
			cancel()
		}
	}

	results, _, err := id.Process(ctx, testSource(t))
	if !errors.Is(err, context.Canceled) {
		t.Fatalf("err = %v, want context.Canceled", err)
	}
	if len(results) != 1 || results[0].Track.SongName != "First Track" {
		t.Errorf("partial results = %v, want the first track", results)
	}
}

func TestProcessEnriches(t *testing.T) {
	provider := &scriptProvider{responses: []scriptResponse{
		{match: &Match{Title: "Strobe", Artist: "deadmau5", Confidence: 90}},
		{err: ErrNoMatch},
		{err: ErrNoMatch},
	}}
	enricher := &stubEnricher{name: "stub", extra: &Extra{Album: "For Lack of a Better Name", Year: "2009"}}

	id := &Identifier{
		Provider: provider,
		Enricher: enricher,
		Logger:   logger.New(false),
		Options:  testOptions(),
	}

	results, _, err := id.Process(context.Background(), testSource(t))
	if err != nil {
		t.Fatalf("Process failed: %v", err)
	}
	if len(results) != 1 {
		t.Fatalf("got %d results, want 1", len(results))
	}
	if results[0].Extra == nil || results[0].Extra.Album != "For Lack of a Better Name" {
		t.Errorf("extra = %+v, want enrichment metadata", results[0].Extra)
	}
	if enricher.calls != 1 {
		t.Errorf("enricher called %d times, want 1", enricher.calls)
	}
}
