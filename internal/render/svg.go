package render

import (
	"errors"
	"fmt"
	"io"
	"math"

	"github.com/wcharczuk/go-chart/v2"
	"github.com/wcharczuk/go-chart/v2/drawing"
)

var (
	// ErrNotDrawable is returned by SVG for table charts.
	ErrNotDrawable = errors.New("chart kind has no graphical form")
	// ErrEmptyChart is returned by SVG when there is nothing to draw.
	ErrEmptyChart = errors.New("chart has no data")
)

const (
	barWidth   = 40
	barSpacing = 24
	minWidth   = 640
	height     = 480
)

var (
	pointColor = drawing.ColorFromHex("636efa")
	trendColor = drawing.ColorFromHex("ef553b")
)

// SVG draws c with go-chart.
func SVG(w io.Writer, c Chart) error {
	var err error
	switch c.Kind {
	case KindBar:
		err = drawBar(w, c)
	case KindStackedBar:
		err = drawStackedBar(w, c)
	case KindScatterTrend:
		err = drawScatterTrend(w, c)
	case KindPie:
		err = drawPie(w, c)
	case KindTable:
		return ErrNotDrawable
	default:
		return fmt.Errorf("unknown chart kind %q", c.Kind)
	}
	if err != nil && !errors.Is(err, ErrEmptyChart) {
		return fmt.Errorf("draw %s: %w", c.ID, err)
	}
	return err
}

func widthFor(n int) int {
	w := n*(barWidth+barSpacing) + 120
	if w < minWidth {
		return minWidth
	}
	return w
}

func drawBar(w io.Writer, c Chart) error {
	if len(c.Categories) == 0 || len(c.Series) == 0 {
		return ErrEmptyChart
	}
	values := c.Series[0].Values
	bars := make([]chart.Value, len(c.Categories))
	maxV := 0.0
	for i, cat := range c.Categories {
		bars[i] = chart.Value{Label: cat, Value: values[i]}
		maxV = math.Max(maxV, values[i])
	}

	bc := chart.BarChart{
		Title:      c.Title,
		Background: chart.Style{Padding: chart.Box{Top: 40}},
		Width:      widthFor(len(bars)),
		Height:     height,
		BarWidth:   barWidth,
		BarSpacing: barSpacing,
		YAxis: chart.YAxis{
			Name:  c.YLabel,
			Range: &chart.ContinuousRange{Min: 0, Max: upperBound(maxV)},
		},
		Bars: bars,
	}
	return bc.Render(chart.SVG, w)
}

// drawStackedBar draws each category as a 100% bar split by series. Bars
// with no injuries at all are skipped.
func drawStackedBar(w io.Writer, c Chart) error {
	var bars []chart.StackedBar
	for i, cat := range c.Categories {
		bar := chart.StackedBar{Name: cat, Width: barWidth}
		total := 0.0
		for _, s := range c.Series {
			bar.Values = append(bar.Values, chart.Value{Label: s.Name, Value: s.Values[i]})
			total += s.Values[i]
		}
		if total > 0 {
			bars = append(bars, bar)
		}
	}
	if len(bars) == 0 {
		return ErrEmptyChart
	}

	sbc := chart.StackedBarChart{
		Title:      c.Title,
		Background: chart.Style{Padding: chart.Box{Top: 40}},
		Width:      widthFor(len(bars)),
		Height:     height,
		BarSpacing: barSpacing,
		Bars:       bars,
	}
	return sbc.Render(chart.SVG, w)
}

func drawScatterTrend(w io.Writer, c Chart) error {
	if len(c.Points) == 0 {
		return ErrEmptyChart
	}
	xs := make([]float64, len(c.Points))
	ys := make([]float64, len(c.Points))
	minX, maxX, maxY := c.Points[0].X, c.Points[0].X, 0.0
	for i, p := range c.Points {
		xs[i], ys[i] = p.X, p.Y
		minX = math.Min(minX, p.X)
		maxX = math.Max(maxX, p.X)
		maxY = math.Max(maxY, p.Y)
	}

	series := []chart.Series{
		chart.ContinuousSeries{
			Name:    "count",
			XValues: xs,
			YValues: ys,
			Style: chart.Style{
				StrokeWidth: chart.Disabled,
				DotWidth:    5,
				DotColor:    pointColor,
			},
		},
	}
	if c.Trend != nil {
		ty := []float64{c.Trend.At(c.Trend.Start), c.Trend.At(c.Trend.End)}
		maxY = math.Max(maxY, math.Max(ty[0], ty[1]))
		series = append(series, chart.ContinuousSeries{
			Name:    fmt.Sprintf("OLS trend (R² %.3f)", c.Trend.RSquared),
			XValues: []float64{c.Trend.Start, c.Trend.End},
			YValues: ty,
			Style:   chart.Style{StrokeColor: trendColor, StrokeWidth: 2},
		})
	}

	ch := chart.Chart{
		Title:      c.Title,
		Background: chart.Style{Padding: chart.Box{Top: 40, Left: 16, Right: 12}},
		Width:      minWidth + 160,
		Height:     height,
		XAxis: chart.XAxis{
			Name:  c.XLabel,
			Range: &chart.ContinuousRange{Min: minX - 0.5, Max: maxX + 0.5},
		},
		YAxis: chart.YAxis{
			Name:  c.YLabel,
			Range: &chart.ContinuousRange{Min: 0, Max: upperBound(maxY)},
		},
		Series: series,
	}
	ch.Elements = []chart.Renderable{chart.Legend(&ch)}
	return ch.Render(chart.SVG, w)
}

func drawPie(w io.Writer, c Chart) error {
	slices := sortedSlices(c.Slices)
	if len(slices) == 0 {
		return ErrEmptyChart
	}
	values := make([]chart.Value, len(slices))
	for i, s := range slices {
		values[i] = chart.Value{Label: fmt.Sprintf("%s (%.1f%%)", s.Label, s.Share*100), Value: s.Value}
	}
	pc := chart.PieChart{
		Title:  c.Title,
		Width:  minWidth,
		Height: minWidth,
		Values: values,
	}
	return pc.Render(chart.SVG, w)
}

// upperBound leaves headroom above the tallest value and keeps the axis
// range non-empty for all-zero data.
func upperBound(maxV float64) float64 {
	if maxV <= 0 {
		return 1
	}
	return maxV * 1.1
}
