// Package output renders identified tracklists as JSON, Markdown, and M3U
// files named after the mix.
package output

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"regexp"
	"strings"
	"time"

	"tracklistify/internal/audio"
	"tracklistify/internal/identify"
	"tracklistify/internal/logger"
	"tracklistify/internal/track"
)

// Writer saves tracklists to the output directory.
type Writer struct {
	Logger *logger.Logger
	Dir    string

	// MinGap is the smallest gap between consecutive tracks worth
	// reporting, in seconds.
	MinGap float64

	// now is overridable for testing.
	now func() time.Time
}

// New creates a Writer saving into dir.
func New(log *logger.Logger, dir string, minGap float64) *Writer {
	return &Writer{Logger: log, Dir: dir, MinGap: minGap, now: time.Now}
}

// Save writes the tracklist in the given format ("json", "markdown", "m3u",
// or "all") and returns the paths written.
func (w *Writer) Save(format string, results []identify.Result, mix audio.MixInfo, analysis identify.Analysis) ([]string, error) {
	if err := os.MkdirAll(w.Dir, 0755); err != nil {
		return nil, fmt.Errorf("create output directory: %w", err)
	}

	var formats []string
	if format == "all" {
		formats = []string{"json", "markdown", "m3u"}
	} else {
		formats = []string{format}
	}

	var paths []string
	for _, f := range formats {
		var path string
		var err error
		switch f {
		case "json":
			path, err = w.saveJSON(results, mix, analysis)
		case "markdown":
			path, err = w.saveMarkdown(results, mix)
		case "m3u":
			path, err = w.saveM3U(results, mix)
		default:
			err = fmt.Errorf("unsupported format: %s", f)
		}
		if err != nil {
			return paths, err
		}
		paths = append(paths, path)
	}
	return paths, nil
}

// timelineIssue describes one gap or overlap between consecutive tracks.
type timelineIssue struct {
	Position    string  `json:"position"`
	Duration    float64 `json:"duration"`
	FirstTrack  string  `json:"first_track"`
	SecondTrack string  `json:"second_track"`
}

// gapsAndOverlaps walks consecutive track pairs and collects timing issues.
func (w *Writer) gapsAndOverlaps(results []identify.Result) (gaps, overlaps []timelineIssue) {
	for i := 0; i+1 < len(results); i++ {
		cur, next := results[i].Track, results[i+1].Track
		position := fmt.Sprintf("Between track %d and %d", i+1, i+2)

		if cur.OverlapsWith(next) {
			curTiming, _ := cur.Timing()
			nextTiming, _ := next.Timing()
			overlaps = append(overlaps, timelineIssue{
				Position:    position,
				Duration:    curTiming.End - nextTiming.Start,
				FirstTrack:  cur.SongName,
				SecondTrack: next.SongName,
			})
			continue
		}
		if gap, ok := cur.GapTo(next); ok && gap > w.MinGap {
			gaps = append(gaps, timelineIssue{
				Position:    position,
				Duration:    gap,
				FirstTrack:  cur.SongName,
				SecondTrack: next.SongName,
			})
		}
	}
	return gaps, overlaps
}

func totalDuration(results []identify.Result) float64 {
	var total float64
	for _, r := range results {
		if d, ok := r.Track.Duration(); ok {
			total += d
		}
	}
	return total
}

func confidenceStats(results []identify.Result) (avg, min, max float64) {
	if len(results) == 0 {
		return 0, 0, 0
	}
	min = float64(results[0].Track.Confidence)
	max = min
	var sum float64
	for _, r := range results {
		c := float64(r.Track.Confidence)
		sum += c
		if c < min {
			min = c
		}
		if c > max {
			max = c
		}
	}
	return sum / float64(len(results)), min, max
}

func (w *Writer) saveJSON(results []identify.Result, mix audio.MixInfo, analysis identify.Analysis) (string, error) {
	path := filepath.Join(w.Dir, w.filename(mix, "json"))
	gaps, overlaps := w.gapsAndOverlaps(results)
	total := totalDuration(results)
	avg, minConf, maxConf := confidenceStats(results)

	type timingDoc struct {
		StartTime         float64 `json:"start_time"`
		EndTime           float64 `json:"end_time"`
		Duration          float64 `json:"duration"`
		DurationFormatted string  `json:"duration_formatted"`
		TimingConfidence  float32 `json:"timing_confidence"`
	}
	type trackDoc struct {
		SongName     string          `json:"song_name"`
		Artist       string          `json:"artist"`
		TimeInMix    string          `json:"time_in_mix"`
		Confidence   float32         `json:"confidence"`
		Timing       *timingDoc      `json:"timing"`
		Extra        *identify.Extra `json:"metadata,omitempty"`
		GapToNext    *float64        `json:"gap_to_next"`
		OverlapsNext *bool           `json:"overlaps_next"`
	}

	tracks := make([]trackDoc, 0, len(results))
	for i, r := range results {
		doc := trackDoc{
			SongName:   r.Track.SongName,
			Artist:     r.Track.Artist,
			TimeInMix:  r.Track.TimeInMix,
			Confidence: r.Track.Confidence,
			Extra:      r.Extra,
		}
		if timing, ok := r.Track.Timing(); ok {
			doc.Timing = &timingDoc{
				StartTime:         timing.Start,
				EndTime:           timing.End,
				Duration:          timing.Duration(),
				DurationFormatted: r.Track.FormatDuration(),
				TimingConfidence:  timing.Confidence,
			}
		}
		if i+1 < len(results) {
			next := results[i+1].Track
			if gap, ok := r.Track.GapTo(next); ok {
				doc.GapToNext = &gap
			}
			overlapsNext := r.Track.OverlapsWith(next)
			doc.OverlapsNext = &overlapsNext
		}
		tracks = append(tracks, doc)
	}

	data := map[string]interface{}{
		"mix_info": map[string]interface{}{
			"title":          mix.Title,
			"artist":         mix.Artist,
			"date":           mix.Date,
			"source":         mix.Source,
			"total_duration": track.FormatTimestamp(total),
			"track_count":    len(results),
		},
		"analysis_info": map[string]interface{}{
			"timestamp":                w.now().Format(time.RFC3339),
			"track_count":              len(results),
			"average_confidence":       avg,
			"min_confidence":           minConf,
			"max_confidence":           maxConf,
			"total_duration":           total,
			"total_duration_formatted": track.FormatTimestamp(total),
			"segments_analyzed":        analysis.TotalSegments,
			"segments_from_cache":      analysis.SegmentsFromCache,
			"raw_matches":              analysis.RawMatches,
			"gaps_detected":            len(gaps),
			"overlaps_detected":        len(overlaps),
			"timing_quality": map[string]interface{}{
				"gaps":     gaps,
				"overlaps": overlaps,
			},
		},
		"tracks": tracks,
	}

	payload, err := json.MarshalIndent(data, "", "    ")
	if err != nil {
		return "", fmt.Errorf("marshal tracklist: %w", err)
	}
	if err := os.WriteFile(path, payload, 0644); err != nil {
		return "", fmt.Errorf("write json tracklist: %w", err)
	}

	w.Logger.Info("Saved JSON tracklist to: %s", path)
	w.Logger.Info("Analysis Summary:")
	w.Logger.Info("- Total tracks: %d", len(results))
	w.Logger.Info("- Total duration: %s", track.FormatTimestamp(total))
	w.Logger.Info("- Average confidence: %.1f%%", avg)
	w.Logger.Info("- Confidence range: %.1f%% - %.1f%%", minConf, maxConf)
	if len(gaps) > 0 {
		w.Logger.Info("- Gaps detected: %d", len(gaps))
	}
	if len(overlaps) > 0 {
		w.Logger.Info("- Overlaps detected: %d", len(overlaps))
	}
	return path, nil
}

func (w *Writer) saveMarkdown(results []identify.Result, mix audio.MixInfo) (string, error) {
	path := filepath.Join(w.Dir, w.filename(mix, "md"))
	gaps, overlaps := w.gapsAndOverlaps(results)
	total := totalDuration(results)
	avg, _, _ := confidenceStats(results)

	var b strings.Builder
	title := mix.Title
	if title == "" {
		title = "Unknown Mix"
	}
	fmt.Fprintf(&b, "# %s\n\n", title)
	if mix.Artist != "" {
		fmt.Fprintf(&b, "**Artist:** %s\n", mix.Artist)
	}
	if mix.Date != "" {
		fmt.Fprintf(&b, "**Date:** %s\n", mix.Date)
	}
	fmt.Fprintf(&b, "**Total Duration:** %s\n", track.FormatTimestamp(total))
	b.WriteString("\n## Tracklist\n\n")

	if len(results) == 0 {
		b.WriteString("*No tracks identified*\n\n")
	}
	for i, r := range results {
		fmt.Fprintf(&b, "%d. **%s** - %s - %s", i+1, r.Track.TimeInMix, r.Track.Artist, r.Track.SongName)
		if _, ok := r.Track.Timing(); ok {
			fmt.Fprintf(&b, " [%s]", r.Track.FormatDuration())
		}
		if r.Track.Confidence < 80 {
			fmt.Fprintf(&b, " _(Confidence: %.0f%%)_", r.Track.Confidence)
		}
		if r.Extra != nil && r.Extra.Album != "" {
			fmt.Fprintf(&b, " — _%s_", r.Extra.Album)
		}
		b.WriteString("\n")
	}

	b.WriteString("\n## Analysis Summary\n\n")
	fmt.Fprintf(&b, "- **Total Duration:** %s\n", track.FormatTimestamp(total))
	fmt.Fprintf(&b, "- **Track Count:** %d\n", len(results))
	if len(results) > 0 {
		fmt.Fprintf(&b, "- **Average Confidence:** %.1f%%\n", avg)
	} else {
		b.WriteString("- **Average Confidence:** N/A\n")
	}

	if len(gaps) > 0 || len(overlaps) > 0 {
		b.WriteString("\n### Timing Analysis\n\n")
		if len(gaps) > 0 {
			b.WriteString("#### Gaps Detected\n")
			for _, g := range gaps {
				fmt.Fprintf(&b, "- Gap of %.1fs after %q\n", g.Duration, g.FirstTrack)
			}
		}
		if len(overlaps) > 0 {
			b.WriteString("\n#### Overlaps Detected\n")
			for _, o := range overlaps {
				fmt.Fprintf(&b, "- Overlap of %.1fs between %q and %q\n", o.Duration, o.FirstTrack, o.SecondTrack)
			}
		}
	}

	if err := os.WriteFile(path, []byte(b.String()), 0644); err != nil {
		return "", fmt.Errorf("write markdown tracklist: %w", err)
	}
	w.Logger.Info("Saved Markdown tracklist to: %s", path)
	return path, nil
}

func (w *Writer) saveM3U(results []identify.Result, mix audio.MixInfo) (string, error) {
	path := filepath.Join(w.Dir, w.filename(mix, "m3u"))

	var b strings.Builder
	b.WriteString("#EXTM3U\n")
	title := mix.Title
	if title == "" {
		title = "Unknown Mix"
	}
	fmt.Fprintf(&b, "#PLAYLIST:%s\n", title)
	if mix.Artist != "" {
		fmt.Fprintf(&b, "#EXTALB:%s\n", mix.Artist)
	}

	if len(results) == 0 {
		b.WriteString("#EXTINF:-1,No tracks identified\n")
	}
	for i, r := range results {
		duration := -1
		if d, ok := r.Track.Duration(); ok {
			duration = int(d)
		}
		fmt.Fprintf(&b, "#EXTINF:%d,%s - %s\n", duration, r.Track.Artist, r.Track.SongName)

		fmt.Fprintf(&b, "#EXTTIME:%s", r.Track.TimeInMix)
		if _, ok := r.Track.Timing(); ok {
			fmt.Fprintf(&b, " (Duration: %s)", r.Track.FormatDuration())
		}
		if i+1 < len(results) {
			next := results[i+1].Track
			if r.Track.OverlapsWith(next) {
				curTiming, _ := r.Track.Timing()
				nextTiming, _ := next.Timing()
				fmt.Fprintf(&b, " [Overlap with next: %.1fs]", curTiming.End-nextTiming.Start)
			} else if gap, ok := r.Track.GapTo(next); ok && gap > w.MinGap {
				fmt.Fprintf(&b, " [Gap to next: %.1fs]", gap)
			}
		}
		b.WriteString("\n")
	}

	if err := os.WriteFile(path, []byte(b.String()), 0644); err != nil {
		return "", fmt.Errorf("write m3u playlist: %w", err)
	}
	w.Logger.Info("Saved M3U playlist to: %s", path)
	return path, nil
}

var invalidFilenameRe = regexp.MustCompile(`[<>:"/\\|?*]`)

var filenameSpaceRe = regexp.MustCompile(`\s+`)

// cleanFilename replaces characters unsafe in file names with spaces.
func cleanFilename(s string) string {
	s = invalidFilenameRe.ReplaceAllString(s, " ")
	s = filenameSpaceRe.ReplaceAllString(s, " ")
	return strings.TrimSpace(s)
}

// filename builds "[YYYYMMDD] Artist - Title.ext" from the mix metadata.
func (w *Writer) filename(mix audio.MixInfo, extension string) string {
	date := w.now().Format("20060102")
	for _, layout := range []string{"2006-01-02", "20060102"} {
		if parsed, err := time.Parse(layout, mix.Date); err == nil {
			date = parsed.Format("20060102")
			break
		}
	}

	artist := cleanFilename(mix.Artist)
	if artist == "" {
		artist = "Unknown Artist"
	}
	title := cleanFilename(mix.Title)
	if title == "" {
		title = "Unknown Mix"
	}

	return fmt.Sprintf("[%s] %s - %s.%s", date, artist, title, extension)
}
