// Package identify turns a mix recording into a tracklist by fingerprinting
// overlapping audio windows against identification services and merging the
// noisy per-segment hits.
package identify

import (
	"context"
	"errors"
	"fmt"

	"tracklistify/internal/track"
)

// Sentinel errors identification providers translate service responses into.
var (
	// ErrAuth means the service rejected our credentials. Retrying other
	// segments would only repeat the failure.
	ErrAuth = errors.New("identification service rejected credentials")

	// ErrRateLimited means the service throttled us.
	ErrRateLimited = errors.New("identification service rate limit exceeded")

	// ErrNoMatch means the service processed the sample but recognized
	// nothing.
	ErrNoMatch = errors.New("no match for sample")
)

// IdentificationError wraps a provider failure with its source.
type IdentificationError struct {
	Provider string
	Err      error
}

func (e *IdentificationError) Error() string {
	return fmt.Sprintf("provider %s: %v", e.Provider, e.Err)
}

func (e *IdentificationError) Unwrap() error { return e.Err }

// Match is a single identification hit for an audio sample.
type Match struct {
	Title      string  `json:"title"`
	Artist     string  `json:"artist"`
	Album      string  `json:"album,omitempty"`
	Confidence float32 `json:"confidence"` // 0-100
	Duration   float64 `json:"duration,omitempty"`
}

// Extra is enrichment metadata looked up after identification.
type Extra struct {
	Album      string `json:"album,omitempty"`
	Year       string `json:"year,omitempty"`
	Genre      string `json:"genre,omitempty"`
	Label      string `json:"label,omitempty"`
	ArtworkURL string `json:"artwork_url,omitempty"`
}

// Provider identifies an audio sample against a recognition service.
type Provider interface {
	Name() string
	Identify(ctx context.Context, sample []byte) (*Match, error)
}

// Enricher looks up additional metadata for an identified track.
type Enricher interface {
	Name() string
	Enrich(ctx context.Context, artist, title string) (*Extra, error)
}

// SegmentCache stores identification payloads keyed by segment.
type SegmentCache interface {
	Get(ctx context.Context, key string) (string, bool)
	Set(ctx context.Context, key, payload string) error
}

// Result pairs a merged track with its enrichment metadata.
type Result struct {
	Track *track.Track
	Extra *Extra
}

// Analysis summarizes a completed identification run.
type Analysis struct {
	TotalSegments     int
	SegmentsWithMatch int
	SegmentsFromCache int
	SegmentsSkipped   int
	RawMatches        int
	GapsDetected      int
	OverlapsDetected  int
	AverageConfidence float64
	MixDuration       float64
}
