package output

import (
	"fmt"

	"github.com/jedib0t/go-pretty/v6/table"
	"github.com/jedib0t/go-pretty/v6/text"

	"tracklistify/internal/identify"
)

// RenderTable formats the tracklist as a terminal table.
func RenderTable(results []identify.Result) string {
	tw := table.NewWriter()
	tw.SetStyle(table.StyleRounded)

	tw.AppendHeader(table.Row{"#", "Time", "Artist", "Title", "Duration", "Confidence"})

	for i, r := range results {
		duration := "--:--"
		if _, ok := r.Track.Timing(); ok {
			duration = r.Track.FormatDuration()
		}
		tw.AppendRow(table.Row{
			i + 1,
			r.Track.TimeInMix,
			r.Track.Artist,
			r.Track.SongName,
			duration,
			fmt.Sprintf("%.0f%%", r.Track.Confidence),
		})
	}

	tw.SetColumnConfigs([]table.ColumnConfig{
		{Number: 1, Align: text.AlignRight, AlignHeader: text.AlignLeft},
		{Number: 5, Align: text.AlignRight, AlignHeader: text.AlignLeft},
		{Number: 6, Align: text.AlignRight, AlignHeader: text.AlignLeft},
	})

	return tw.Render()
}
