// Package testkit builds small crash datasets for tests.
package testkit

import (
	"encoding/csv"
	"os"
	"path/filepath"
	"strconv"
	"testing"

	"crash-dashboard/internal/dataset"
	"crash-dashboard/internal/models"
)

// Crash is one synthetic crash row.
type Crash struct {
	Cause     string
	SecCause  string
	Weather   string
	Lighting  string
	CrashType string
	Damage    string
	Month     int
	Day       int
	Hour      int

	Fatal        int
	Incap        int
	NonIncap     int
	NoIndication int
}

// Base returns a row that passes every sentinel filter.
func Base() Crash {
	return Crash{
		Cause:     "FOLLOWING TOO CLOSELY",
		SecCause:  "DISTRACTION - FROM INSIDE VEHICLE",
		Weather:   models.WeatherClear,
		Lighting:  "DAYLIGHT",
		CrashType: "REAR END",
		Damage:    "OVER $1,500",
		Month:     1,
		Day:       1,
		Hour:      8,
	}
}

// Repeat returns n copies of c.
func Repeat(c Crash, n int) []Crash {
	out := make([]Crash, n)
	for i := range out {
		out[i] = c
	}
	return out
}

// Header is the column order of Records, with an extra non-dashboard column.
func Header() []string {
	return append([]string{models.ColCrashRecordID}, models.RequiredColumns()...)
}

// Records renders crashes as a header plus rows.
func Records(crashes []Crash) [][]string {
	out := [][]string{Header()}
	for i, c := range crashes {
		out = append(out, []string{
			"crash-" + strconv.Itoa(i),
			c.Cause,
			c.SecCause,
			c.Weather,
			c.Lighting,
			c.CrashType,
			c.Damage,
			strconv.Itoa(c.Month),
			strconv.Itoa(c.Day),
			strconv.Itoa(c.Hour),
			strconv.Itoa(c.Fatal),
			strconv.Itoa(c.Incap),
			strconv.Itoa(c.NonIncap),
			strconv.Itoa(c.NoIndication),
		})
	}
	return out
}

// Table loads crashes into a dataset.Table, failing the test on error.
func Table(tb testing.TB, crashes []Crash) *dataset.Table {
	tb.Helper()
	table, err := dataset.FromRecords(Records(crashes), "testkit")
	if err != nil {
		tb.Fatalf("testkit table: %v", err)
	}
	return table
}

// WriteCSV writes crashes to dir/name and returns the path.
func WriteCSV(tb testing.TB, dir, name string, crashes []Crash) string {
	tb.Helper()
	path := filepath.Join(dir, name)
	f, err := os.Create(path)
	if err != nil {
		tb.Fatalf("create %s: %v", path, err)
	}
	defer f.Close()

	w := csv.NewWriter(f)
	if err := w.WriteAll(Records(crashes)); err != nil {
		tb.Fatalf("write %s: %v", path, err)
	}
	return path
}

// Mixed is a small dataset covering every view: three weather conditions,
// two collision types, sentinel rows, and two fatality lookup causes.
func Mixed() []Crash {
	var rows []Crash

	a := Base()
	a.NoIndication = 2
	rows = append(rows, Repeat(a, 3)...)

	b := Base()
	b.Cause = "FAILING TO YIELD RIGHT-OF-WAY"
	b.SecCause = "FOLLOWING TOO CLOSELY"
	b.Weather = models.WeatherRain
	b.CrashType = "ANGLE"
	b.Damage = "$501 - $1,500"
	b.Month = 2
	b.Day = 3
	b.Hour = 17
	b.Fatal = 1
	b.Incap = 1
	rows = append(rows, Repeat(b, 2)...)

	c := Base()
	c.Cause = "PHYSICAL CONDITION OF DRIVER"
	c.SecCause = "UNDER THE INFLUENCE OF ALCOHOL/DRUGS"
	c.Weather = models.WeatherSnow
	c.Lighting = "DARKNESS"
	c.CrashType = "ANGLE"
	c.Damage = "OVER $1,500"
	c.Month = 12
	c.Day = 7
	c.Hour = 23
	c.Fatal = 2
	c.NonIncap = 1
	rows = append(rows, c)

	sentinel := Base()
	sentinel.Cause = models.SentinelUnableToDetermine
	sentinel.Fatal = 50
	sentinel.NoIndication = 50
	rows = append(rows, sentinel)

	unknownWeather := Base()
	unknownWeather.Weather = models.SentinelUnknown
	unknownWeather.Incap = 40
	rows = append(rows, unknownWeather)

	return rows
}
