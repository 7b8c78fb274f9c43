package services

import (
	"fmt"
	"io"

	chart "github.com/wcharczuk/go-chart/v2"
	"github.com/wcharczuk/go-chart/v2/drawing"

	domainservices "tomato-demo/internal/domain/services"
)

const (
	DefaultChartWidth  = 480
	DefaultChartHeight = 480
)

// ChartRenderer draws the probability distribution as a pie chart PNG.
type ChartRenderer struct {
	width  int
	height int
}

func NewChartRenderer(width, height int) *ChartRenderer {
	if width <= 0 {
		width = DefaultChartWidth
	}
	if height <= 0 {
		height = DefaultChartHeight
	}
	return &ChartRenderer{width: width, height: height}
}

// RenderPNG writes one slice per datum, labelled "label (xx.x%)".
// Zero-probability entries are left out since a pie cannot draw them.
func (r *ChartRenderer) RenderPNG(w io.Writer, data []domainservices.ChartDatum) error {
	values := make([]chart.Value, 0, len(data))
	for _, d := range data {
		if d.Value <= 0 {
			continue
		}
		values = append(values, chart.Value{
			Value: d.Value,
			Label: d.SliceLabel(),
			Style: chart.Style{
				FillColor:   drawing.ColorFromHex(trimHash(d.Color)),
				StrokeColor: drawing.ColorWhite,
				StrokeWidth: 1,
			},
		})
	}
	if len(values) == 0 {
		return fmt.Errorf("no chart data to render")
	}

	pie := chart.PieChart{
		Width:  r.width,
		Height: r.height,
		Values: values,
	}
	if err := pie.Render(chart.PNG, w); err != nil {
		return fmt.Errorf("failed to render chart: %w", err)
	}
	return nil
}

func trimHash(hex string) string {
	if len(hex) > 0 && hex[0] == '#' {
		return hex[1:]
	}
	return hex
}
