package services

import (
	"fmt"
	"strings"

	"tomato-demo/internal/domain/entities"
)

// ClassPrefix is stripped from class names before display.
const ClassPrefix = "Tomato_"

// 円グラフの色（順番に循環）
var ChartPalette = []string{"#4caf50", "#ff9800", "#f44336", "#9c27b0", "#3f51b5"}

type PrimaryView struct {
	ClassName      string
	Name           string
	Description    string
	Treatment      string
	ConfidenceText string
}

// ChartDatum is one pie slice. PercentText uses chart precision, TooltipText list precision.
type ChartDatum struct {
	Label       string
	Value       float64
	PercentText string
	TooltipText string
	Color       string
}

func (d ChartDatum) SliceLabel() string {
	return fmt.Sprintf("%s (%s)", d.Label, d.PercentText)
}

type RankedEntry struct {
	Rank           int
	Label          string
	ConfidenceText string
}

func (e RankedEntry) String() string {
	return fmt.Sprintf("%d. %s — %s", e.Rank, e.Label, e.ConfidenceText)
}

type ResultView struct {
	Primary PrimaryView
	Chart   []ChartDatum
	Ranked  []RankedEntry
}

// FormatResult derives the display aggregates of a result. It never mutates the result.
func FormatResult(result *entities.PredictionResult) ResultView {
	if result == nil {
		return ResultView{}
	}

	predictions := result.Predictions()
	details := result.Details()
	primary := result.Primary()

	view := ResultView{
		Primary: PrimaryView{
			ClassName:      primary.ClassName,
			Name:           details.Name,
			Description:    details.Description,
			Treatment:      details.Treatment,
			ConfidenceText: primary.Probability.ListPercent(),
		},
		Chart:  make([]ChartDatum, 0, len(predictions)),
		Ranked: make([]RankedEntry, 0, len(predictions)),
	}

	for i, p := range predictions {
		view.Chart = append(view.Chart, ChartDatum{
			Label:       ChartLabel(p.ClassName),
			Value:       float64(p.Probability),
			PercentText: p.Probability.ChartPercent(),
			TooltipText: p.Probability.ListPercent(),
			Color:       ChartPalette[i%len(ChartPalette)],
		})
		view.Ranked = append(view.Ranked, RankedEntry{
			Rank:           i + 1,
			Label:          ListLabel(p.ClassName),
			ConfidenceText: p.Probability.ListPercent(),
		})
	}

	return view
}

// ChartLabel strips the first occurrence of ClassPrefix.
func ChartLabel(className string) string {
	return strings.Replace(className, ClassPrefix, "", 1)
}

// ListLabel is ChartLabel with every underscore turned into a space.
func ListLabel(className string) string {
	return strings.ReplaceAll(ChartLabel(className), "_", " ")
}
