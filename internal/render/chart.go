// Package render turns aggregate views into chart and table descriptions.
// A Chart is plain data: the JSON API serves it as is and SVG draws it.
package render

import (
	"fmt"
	"math"
	"sort"
	"strconv"

	"github.com/montanaflynn/stats"
	"gonum.org/v1/gonum/stat"

	"crash-dashboard/internal/aggregate"
	"crash-dashboard/internal/models"
)

// Kind is the chart type tag.
type Kind string

const (
	KindBar          Kind = "bar"
	KindStackedBar   Kind = "stacked_bar"
	KindScatterTrend Kind = "scatter_trend"
	KindPie          Kind = "pie"
	KindTable        Kind = "table"
)

// Chart IDs used by the page and by /charts/{id}.svg.
const (
	IDPreview      = "preview"
	IDInjuryTotals = "injury-totals"
	IDCauseTotals  = "cause-totals"
	IDWeatherRate  = "weather-rate"
	IDTime         = "time"
	IDDamage       = "damage"
)

// FatalityID is the chart ID of the i-th fatality breakdown panel.
func FatalityID(i int) string {
	return "fatalities-" + strconv.Itoa(i)
}

// Series is one named value per category.
type Series struct {
	Name   string    `json:"name"`
	Values []float64 `json:"values"`
}

// Point is one scatter point.
type Point struct {
	X float64 `json:"x"`
	Y float64 `json:"y"`
}

// Trend is an ordinary least squares fit y = Intercept + Slope*x drawn
// between Start and End.
type Trend struct {
	Intercept float64 `json:"intercept"`
	Slope     float64 `json:"slope"`
	RSquared  float64 `json:"r_squared"`
	Start     float64 `json:"start"`
	End       float64 `json:"end"`
}

// At evaluates the fitted line.
func (t Trend) At(x float64) float64 {
	return t.Intercept + t.Slope*x
}

// Slice is one pie segment. Shares of a pie sum to 1.
type Slice struct {
	Label string  `json:"label"`
	Value float64 `json:"value"`
	Share float64 `json:"share"`
}

// Table is a static table with a header row.
type Table struct {
	Columns []string   `json:"columns"`
	Rows    [][]string `json:"rows"`
}

// Summary describes the y values of a scatter chart.
type Summary struct {
	Mean   float64 `json:"mean"`
	Median float64 `json:"median"`
	StdDev float64 `json:"std_dev"`
	Max    float64 `json:"max"`
}

// Chart is a renderer-independent description of one panel.
type Chart struct {
	ID         string   `json:"id"`
	Kind       Kind     `json:"kind"`
	Title      string   `json:"title"`
	XLabel     string   `json:"x_label,omitempty"`
	YLabel     string   `json:"y_label,omitempty"`
	Categories []string `json:"categories,omitempty"`
	Series     []Series `json:"series,omitempty"`
	Points     []Point  `json:"points,omitempty"`
	Trend      *Trend   `json:"trend,omitempty"`
	Slices     []Slice  `json:"slices,omitempty"`
	Table      *Table   `json:"table,omitempty"`
	Summary    *Summary `json:"summary,omitempty"`
}

// CauseTotals renders the injuries-by-cause view as a stacked bar chart with
// one series per injury column.
func CauseTotals(rows []aggregate.CauseInjuryTotal) Chart {
	c := Chart{
		ID:         IDCauseTotals,
		Kind:       KindStackedBar,
		Title:      "By cause",
		XLabel:     models.ColPrimaryCause,
		YLabel:     "value",
		Categories: make([]string, len(rows)),
		Series: []Series{
			{Name: models.ColInjuriesNoIndication, Values: make([]float64, len(rows))},
			{Name: models.ColInjuriesNonIncapacitating, Values: make([]float64, len(rows))},
			{Name: models.ColInjuriesIncapacitating, Values: make([]float64, len(rows))},
			{Name: models.ColInjuriesFatal, Values: make([]float64, len(rows))},
		},
	}
	for i, row := range rows {
		c.Categories[i] = row.Cause
		for s, v := range row.Tuple() {
			c.Series[s].Values[i] = float64(v)
		}
	}
	return c
}

// Breakdown renders a one-dimensional breakdown as a bar chart.
func Breakdown(id, title, xLabel string, counts []aggregate.CategoryCount) Chart {
	c := Chart{
		ID:         id,
		Kind:       KindBar,
		Title:      title,
		XLabel:     xLabel,
		YLabel:     models.ColInjuriesFatal,
		Categories: make([]string, len(counts)),
		Series:     []Series{{Name: models.ColInjuriesFatal, Values: make([]float64, len(counts))}},
	}
	for i, cc := range counts {
		c.Categories[i] = cc.Category
		c.Series[0].Values[i] = float64(cc.Value)
	}
	return c
}

// WeatherRates renders incidents per baseline day, in the view's order.
func WeatherRates(rates []aggregate.WeatherRate) Chart {
	c := Chart{
		ID:         IDWeatherRate,
		Kind:       KindBar,
		Title:      "Incidents per day by weather condition",
		XLabel:     models.ColWeather,
		YLabel:     "Incidents / day",
		Categories: make([]string, len(rates)),
		Series:     []Series{{Name: "Incidents / day", Values: make([]float64, len(rates))}},
	}
	for i, r := range rates {
		c.Categories[i] = r.Condition
		c.Series[0].Values[i] = r.PerDay
	}
	return c
}

// TimeTrend renders a time distribution as a scatter plot with an OLS trend
// line. The trend is omitted when there are fewer than two distinct keys.
func TimeTrend(unit string, buckets []aggregate.TimeBucket) (Chart, error) {
	c := Chart{
		ID:     IDTime,
		Kind:   KindScatterTrend,
		Title:  "Crashes by " + unit,
		XLabel: unit,
		YLabel: "count",
		Points: make([]Point, len(buckets)),
	}
	if len(buckets) == 0 {
		return c, nil
	}

	xs := make([]float64, len(buckets))
	ys := make([]float64, len(buckets))
	for i, b := range buckets {
		xs[i], ys[i] = float64(b.Key), float64(b.Count)
		c.Points[i] = Point{X: xs[i], Y: ys[i]}
	}

	summary, err := summarize(ys)
	if err != nil {
		return Chart{}, fmt.Errorf("summarize %s: %w", unit, err)
	}
	c.Summary = summary

	if trend, ok := fitTrend(xs, ys); ok {
		c.Trend = trend
	}
	return c, nil
}

func fitTrend(xs, ys []float64) (*Trend, bool) {
	minX, maxX := xs[0], xs[0]
	for _, x := range xs {
		minX = math.Min(minX, x)
		maxX = math.Max(maxX, x)
	}
	if minX == maxX {
		return nil, false
	}
	alpha, beta := stat.LinearRegression(xs, ys, nil, false)
	r2 := stat.RSquared(xs, ys, nil, alpha, beta)
	if math.IsNaN(r2) {
		// constant y: the fit is exact
		r2 = 1
	}
	return &Trend{Intercept: alpha, Slope: beta, RSquared: r2, Start: minX, End: maxX}, true
}

func summarize(ys []float64) (*Summary, error) {
	data := stats.Float64Data(ys)
	mean, err := data.Mean()
	if err != nil {
		return nil, err
	}
	median, err := data.Median()
	if err != nil {
		return nil, err
	}
	sd, err := data.StandardDeviation()
	if err != nil {
		return nil, err
	}
	maxY, err := data.Max()
	if err != nil {
		return nil, err
	}
	return &Summary{Mean: mean, Median: median, StdDev: sd, Max: maxY}, nil
}

// DamageShares renders one collision type's damage distribution as a pie.
func DamageShares(crashType string, counts []aggregate.CategoryCount) Chart {
	c := Chart{
		ID:     IDDamage,
		Kind:   KindPie,
		Title:  "Damage for " + crashType,
		Slices: make([]Slice, len(counts)),
	}
	total := 0
	for _, cc := range counts {
		total += cc.Value
	}
	for i, cc := range counts {
		share := 0.0
		if total > 0 {
			share = float64(cc.Value) / float64(total)
		}
		c.Slices[i] = Slice{Label: cc.Category, Value: float64(cc.Value), Share: share}
	}
	return c
}

// InjuryTotalsTable renders the whole-table injury sums as a two-column table.
func InjuryTotalsTable(totals []aggregate.ColumnTotal) Chart {
	t := &Table{Columns: []string{"Column", "Sum"}, Rows: make([][]string, len(totals))}
	for i, ct := range totals {
		t.Rows[i] = []string{ct.Column, strconv.Itoa(ct.Total)}
	}
	return Chart{ID: IDInjuryTotals, Kind: KindTable, Title: "Injury totals", Table: t}
}

// PreviewTable renders raw rows with their column header.
func PreviewTable(columns []string, rows [][]string) Chart {
	return Chart{
		ID:    IDPreview,
		Kind:  KindTable,
		Title: "Dataset preview",
		Table: &Table{Columns: append([]string(nil), columns...), Rows: rows},
	}
}

// sortedSlices returns the non-empty slices, largest first.
func sortedSlices(in []Slice) []Slice {
	out := make([]Slice, 0, len(in))
	for _, s := range in {
		if s.Value > 0 {
			out = append(out, s)
		}
	}
	sort.SliceStable(out, func(i, j int) bool { return out[i].Value > out[j].Value })
	return out
}
