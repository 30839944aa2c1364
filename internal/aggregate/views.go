// Package aggregate computes the dashboard's grouped views from a crash
// table. Every function is pure: it reads the table and returns new values.
package aggregate

import (
	"math"
	"sort"

	"crash-dashboard/internal/models"
)

// CauseInjuryTotal is one row of the injuries-by-cause view.
type CauseInjuryTotal struct {
	Cause             string `json:"cause"`
	NoIndication      int    `json:"injuries_no_indication"`
	NonIncapacitating int    `json:"injuries_non_incapacitating"`
	Incapacitating    int    `json:"injuries_incapacitating"`
	Fatal             int    `json:"injuries_fatal"`
}

// Tuple is the sort key, most common injury class first.
func (c CauseInjuryTotal) Tuple() [4]int {
	return [4]int{c.NoIndication, c.NonIncapacitating, c.Incapacitating, c.Fatal}
}

// Total is the sum over all four injury classes
func (c CauseInjuryTotal) Total() int {
	return c.NoIndication + c.NonIncapacitating + c.Incapacitating + c.Fatal
}

// CategoryCount is a single (category, value) pair of a one-dimensional breakdown.
type CategoryCount struct {
	Category string `json:"category"`
	Value    int    `json:"value"`
}

// WeatherRate is the incident count of one weather condition divided by its
// baseline day count.
type WeatherRate struct {
	Condition    string  `json:"condition"`
	Incidents    int     `json:"incidents"`
	BaselineDays float64 `json:"baseline_days"`
	PerDay       float64 `json:"incidents_per_day"`
}

// ColumnTotal is the sum of one injury column over the whole table.
type ColumnTotal struct {
	Column string `json:"column"`
	Total  int    `json:"total"`
}

// TimeBucket is the crash count for one value of a time-unit column.
type TimeBucket struct {
	Key   int `json:"key"`
	Count int `json:"count"`
}

// Baselines are the day counts the weather view divides by.
type Baselines struct {
	Clear float64
	Rain  float64
	Snow  float64
}

func (b Baselines) forCondition(condition string) float64 {
	switch condition {
	case models.WeatherClear:
		return b.Clear
	case models.WeatherRain:
		return b.Rain
	case models.WeatherSnow:
		return b.Snow
	}
	return math.NaN()
}

// CrossTab maps a (row, column) category pair to an integer value. Row keys
// keep the order in which they first appear in the table.
type CrossTab struct {
	RowField string
	ColField string
	order    []string
	cells    map[string]map[string]int
}

func newCrossTab(rowField, colField string) *CrossTab {
	return &CrossTab{
		RowField: rowField,
		ColField: colField,
		cells:    make(map[string]map[string]int),
	}
}

func (c *CrossTab) add(row, col string, v int) {
	m, ok := c.cells[row]
	if !ok {
		m = make(map[string]int)
		c.cells[row] = m
		c.order = append(c.order, row)
	}
	m[col] += v
}

// Keys returns the row keys in first-seen order
func (c *CrossTab) Keys() []string {
	return append([]string(nil), c.order...)
}

// Has reports whether key is a row of the table
func (c *CrossTab) Has(key string) bool {
	_, ok := c.cells[key]
	return ok
}

// Slice returns the column breakdown for one row key, ordered by column
// category. An absent key is an *models.UnknownCategoryError.
func (c *CrossTab) Slice(key string) ([]CategoryCount, error) {
	m, ok := c.cells[key]
	if !ok {
		return nil, &models.UnknownCategoryError{Field: c.RowField, Value: key}
	}
	out := make([]CategoryCount, 0, len(m))
	for cat, v := range m {
		out = append(out, CategoryCount{Category: cat, Value: v})
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Category < out[j].Category })
	return out, nil
}

// Total sums the values of one row key
func (c *CrossTab) Total(key string) (int, error) {
	slice, err := c.Slice(key)
	if err != nil {
		return 0, err
	}
	total := 0
	for _, cc := range slice {
		total += cc.Value
	}
	return total, nil
}

// count converts a numeric cell to an integer contribution. NaN counts as 0.
func count(v float64) int {
	if math.IsNaN(v) {
		return 0
	}
	return int(v)
}
