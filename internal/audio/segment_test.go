package audio

import (
	"math"
	"os"
	"path/filepath"
	"testing"
)

func TestPlanWindows(t *testing.T) {
	tests := []struct {
		name    string
		total   float64
		segment int
		overlap float64
		want    int
	}{
		{"empty mix", 0, 60, 0.5, 0},
		{"shorter than one segment", 45, 60, 0.5, 1},
		{"exactly one segment", 60, 60, 0.5, 1},
		{"two minute mix half overlap", 120, 60, 0.5, 3},
		{"no overlap", 180, 60, 0, 3},
		{"invalid overlap treated as none", 180, 60, 1.5, 3},
		{"zero segment length", 180, 0, 0.5, 0},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := PlanWindows(tt.total, tt.segment, tt.overlap)
			if len(got) != tt.want {
				t.Fatalf("PlanWindows(%v, %d, %v) produced %d windows, want %d",
					tt.total, tt.segment, tt.overlap, len(got), tt.want)
			}
		})
	}
}

func TestPlanWindowsCoverageAndOverlap(t *testing.T) {
	windows := PlanWindows(600, 60, 0.5)

	if windows[0].Start != 0 {
		t.Errorf("first window starts at %v, want 0", windows[0].Start)
	}
	if last := windows[len(windows)-1]; last.End != 600 {
		t.Errorf("last window ends at %v, want 600", last.End)
	}

	for i, w := range windows {
		if w.Index != i {
			t.Errorf("window %d has index %d", i, w.Index)
		}
		if w.Duration() <= 0 || w.Duration() > 60 {
			t.Errorf("window %d duration %v out of range", i, w.Duration())
		}
		if i == 0 {
			continue
		}
		// 50% overlap: each window starts 30 seconds after the previous.
		if got := w.Start - windows[i-1].Start; math.Abs(got-30) > 1e-9 {
			t.Errorf("stride between windows %d and %d = %v, want 30", i-1, i, got)
		}
		if w.Start >= windows[i-1].End {
			t.Errorf("windows %d and %d do not overlap", i-1, i)
		}
	}
}

func TestReadWindow(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "mix.mp3")

	// 1000 bytes standing in for a 100 second mix: 10 bytes per second.
	data := make([]byte, 1000)
	for i := range data {
		data[i] = byte(i % 251)
	}
	if err := os.WriteFile(path, data, 0644); err != nil {
		t.Fatal(err)
	}

	src := &Source{Path: path, Size: 1000, Info: MixInfo{Duration: 100}}

	buf, err := src.ReadWindow(Window{Start: 10, End: 20})
	if err != nil {
		t.Fatalf("ReadWindow failed: %v", err)
	}
	if len(buf) != 100 {
		t.Fatalf("read %d bytes, want 100", len(buf))
	}
	if buf[0] != data[100] || buf[99] != data[199] {
		t.Error("window bytes do not match the proportional range")
	}

	// The final window is clamped to the file size.
	buf, err = src.ReadWindow(Window{Start: 95, End: 110})
	if err != nil {
		t.Fatalf("ReadWindow at tail failed: %v", err)
	}
	if len(buf) != 50 {
		t.Errorf("tail window read %d bytes, want 50", len(buf))
	}

	if _, err := src.ReadWindow(Window{Start: 20, End: 10}); err == nil {
		t.Error("expected error for inverted window")
	}
	if _, err := src.ReadWindow(Window{Start: 200, End: 210}); err == nil {
		t.Error("expected error for window past the end")
	}
}
