package audio

// Window is one analysis segment of a mix.
type Window struct {
	Index int
	Start float64 // seconds from the beginning of the mix
	End   float64
}

// Duration returns the window length in seconds.
func (w Window) Duration() float64 {
	return w.End - w.Start
}

// PlanWindows slices a mix of totalSecs into overlapping analysis windows.
// Each window is segmentSecs long (the last one may be shorter) and
// consecutive windows overlap by the given ratio of the segment length.
func PlanWindows(totalSecs float64, segmentSecs int, overlap float64) []Window {
	if totalSecs <= 0 || segmentSecs <= 0 {
		return nil
	}
	if overlap < 0 || overlap >= 1 {
		overlap = 0
	}

	stride := float64(segmentSecs) * (1 - overlap)
	if stride <= 0 {
		stride = float64(segmentSecs)
	}

	var windows []Window
	for start := 0.0; start < totalSecs; start += stride {
		end := start + float64(segmentSecs)
		if end > totalSecs {
			end = totalSecs
		}
		windows = append(windows, Window{Index: len(windows), Start: start, End: end})
		if end >= totalSecs {
			break
		}
	}
	return windows
}
