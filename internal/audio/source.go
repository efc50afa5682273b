// Package audio opens mix recordings, probes their metadata, and slices them
// into overlapping windows for identification.
package audio

import (
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strings"

	"go.senan.xyz/taglib"
)

// MixInfo describes the mix recording being analyzed.
type MixInfo struct {
	Title    string
	Artist   string
	Date     string
	Source   string  // file path or origin URL
	Duration float64 // seconds
}

// Source is a local audio file opened for windowed analysis.
type Source struct {
	Path string
	Size int64
	Info MixInfo
}

// OpenSource stats and probes a local audio file. Duration comes from the
// stream properties; title, artist, and date from the tags when present,
// falling back to the file name for the title.
func OpenSource(path string) (*Source, error) {
	fi, err := os.Stat(path)
	if err != nil {
		return nil, fmt.Errorf("stat audio file: %w", err)
	}
	if fi.IsDir() {
		return nil, fmt.Errorf("%s is a directory, not an audio file", path)
	}
	if fi.Size() == 0 {
		return nil, fmt.Errorf("%s is empty", path)
	}

	props, err := taglib.ReadProperties(path)
	if err != nil {
		return nil, fmt.Errorf("probe audio properties of %s: %w", path, err)
	}
	duration := props.Length.Seconds()
	if duration <= 0 {
		return nil, fmt.Errorf("%s has no readable duration", path)
	}

	info := MixInfo{
		Source:   path,
		Duration: duration,
	}
	if tags, err := taglib.ReadTags(path); err == nil {
		info.Title = firstTag(tags, taglib.Title)
		info.Artist = firstTag(tags, taglib.Artist)
		info.Date = firstTag(tags, taglib.Date)
	}
	if info.Title == "" {
		base := filepath.Base(path)
		info.Title = strings.TrimSuffix(base, filepath.Ext(base))
	}

	return &Source{Path: path, Size: fi.Size(), Info: info}, nil
}

func firstTag(tags map[string][]string, key string) string {
	if vals := tags[key]; len(vals) > 0 {
		return strings.TrimSpace(vals[0])
	}
	return ""
}

// ReadWindow returns the byte range of the file corresponding to the window,
// mapping time to bytes proportionally. Identification services fingerprint
// the sample, so a container-unaware slice is good enough.
func (s *Source) ReadWindow(w Window) ([]byte, error) {
	if s.Info.Duration <= 0 {
		return nil, fmt.Errorf("source %s has no duration", s.Path)
	}
	if w.Start < 0 || w.End <= w.Start {
		return nil, fmt.Errorf("invalid window [%v,%v]", w.Start, w.End)
	}

	bytesPerSec := float64(s.Size) / s.Info.Duration
	offset := int64(w.Start * bytesPerSec)
	length := int64(w.Duration() * bytesPerSec)
	if offset >= s.Size {
		return nil, fmt.Errorf("window starts past the end of %s", s.Path)
	}
	if offset+length > s.Size {
		length = s.Size - offset
	}

	f, err := os.Open(s.Path)
	if err != nil {
		return nil, fmt.Errorf("open audio file: %w", err)
	}
	defer f.Close()

	buf := make([]byte, length)
	if _, err := f.ReadAt(buf, offset); err != nil && err != io.EOF {
		return nil, fmt.Errorf("read window [%v,%v] of %s: %w", w.Start, w.End, s.Path, err)
	}
	return buf, nil
}
