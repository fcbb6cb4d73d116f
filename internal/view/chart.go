package view

import (
	"errors"
	"io"

	"github.com/rewired-gh/marketstate/internal/models"
	"github.com/wcharczuk/go-chart/v2"
	"github.com/wcharczuk/go-chart/v2/drawing"
)

// ErrNotEnoughData is returned when a column has fewer than two points.
var ErrNotEnoughData = errors.New("not enough data to draw a line")

var lineColor = drawing.ColorFromHex("636efa")

// RenderLineChart draws one demand column against the time step as SVG.
func RenderLineChart(w io.Writer, col models.DemandColumn, width, height int) error {
	if len(col.Points) < 2 {
		return ErrNotEnoughData
	}

	xs := make([]float64, len(col.Points))
	ys := make([]float64, len(col.Points))
	lo, hi := col.Points[0].Value, col.Points[0].Value
	for i, p := range col.Points {
		xs[i] = float64(p.Step)
		ys[i] = p.Value
		if p.Value < lo {
			lo = p.Value
		}
		if p.Value > hi {
			hi = p.Value
		}
	}

	yAxis := chart.YAxis{Name: col.Name}
	// a flat line has a zero-height range, which the renderer rejects
	if lo == hi {
		yAxis.Range = &chart.ContinuousRange{Min: lo - 1, Max: hi + 1}
	}

	graph := chart.Chart{
		Width:  width,
		Height: height,
		Background: chart.Style{
			Padding: chart.Box{Top: 16, Left: 16, Right: 16, Bottom: 16},
		},
		XAxis: chart.XAxis{Name: "time step"},
		YAxis: yAxis,
		Series: []chart.Series{
			chart.ContinuousSeries{
				Name:    col.Name,
				XValues: xs,
				YValues: ys,
				Style: chart.Style{
					StrokeColor: lineColor,
					StrokeWidth: 2,
				},
			},
		},
	}
	return graph.Render(chart.SVG, w)
}
