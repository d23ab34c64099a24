package viz

import (
	"fmt"
	"math"

	"github.com/guptarohit/asciigraph"
	"github.com/san-kum/trajopt/internal/ddp"
	"github.com/san-kum/trajopt/internal/solver"
)

var seriesColors = []asciigraph.AnsiColor{
	asciigraph.Blue, asciigraph.Red, asciigraph.Green, asciigraph.Yellow,
	asciigraph.Magenta, asciigraph.Cyan,
}

// CostChart plots log10 of the cost per iteration. It returns an empty
// string when fewer than two positive costs are available.
func CostChart(history []solver.Stats, width, height int) string {
	var data []float64
	for _, s := range history {
		if s.Cost > 0 && !math.IsInf(s.Cost, 0) {
			data = append(data, math.Log10(s.Cost))
		}
	}
	if len(data) < 2 {
		return ""
	}
	return asciigraph.Plot(data,
		asciigraph.Height(height),
		asciigraph.Width(width),
		asciigraph.Caption("log10 cost"))
}

// TrajectoryChart plots every state coordinate, or every control
// coordinate when controls is set, over the knots of tr.
func TrajectoryChart(tr ddp.Trajectory, controls bool, width, height int) string {
	rows := tr.X
	caption := "states"
	if controls {
		caption = "controls"
		rows = nil
		for _, u := range tr.U {
			rows = append(rows, []float64(u))
		}
	}
	if len(rows) < 2 {
		return ""
	}

	series := make([][]float64, len(rows[0]))
	for i := range series {
		series[i] = make([]float64, len(rows))
		for k, r := range rows {
			series[i][k] = r[i]
		}
	}
	colors := make([]asciigraph.AnsiColor, len(series))
	for i := range colors {
		colors[i] = seriesColors[i%len(seriesColors)]
	}
	return asciigraph.PlotMany(series,
		asciigraph.Height(height),
		asciigraph.Width(width),
		asciigraph.SeriesColors(colors...),
		asciigraph.Caption(fmt.Sprintf("%s (%d)", caption, len(series))))
}
