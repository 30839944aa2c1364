package main

import (
	"fmt"
	"io"
	"strconv"

	"github.com/olekukonko/tablewriter"

	"crash-dashboard/internal/aggregate"
	"crash-dashboard/internal/config"
	"crash-dashboard/internal/dataset"
	"crash-dashboard/internal/models"
	"crash-dashboard/internal/render"
)

func newTable(w io.Writer, header ...string) *tablewriter.Table {
	t := tablewriter.NewWriter(w)
	t.SetHeader(header)
	t.SetAutoFormatHeaders(false)
	t.SetAlignment(tablewriter.ALIGN_LEFT)
	return t
}

func section(w io.Writer, title string) {
	fmt.Fprintf(w, "\n%s\n", title)
}

// writeReport prints every dashboard view as a plain-text table.
func writeReport(w io.Writer, table *dataset.Table, snap *aggregate.Snapshot, lookups []config.FatalityLookup) error {
	fmt.Fprintf(w, "Source: %s (%d rows)\n", table.Source(), table.Len())

	section(w, "Injury totals")
	t := newTable(w, "Column", "Sum")
	for _, c := range snap.InjuryTotals {
		t.Append([]string{c.Column, strconv.Itoa(c.Total)})
	}
	t.Render()

	section(w, "Injuries by primary cause")
	t = newTable(w, "Cause", "No indication", "Non-incapacitating", "Incapacitating", "Fatal")
	for _, c := range snap.CauseTotals {
		t.Append([]string{
			c.Cause,
			strconv.Itoa(c.NoIndication),
			strconv.Itoa(c.NonIncapacitating),
			strconv.Itoa(c.Incapacitating),
			strconv.Itoa(c.Fatal),
		})
	}
	t.Render()

	for _, lookup := range lookups {
		section(w, "Fatalities by secondary cause for "+lookup.Title)
		counts, err := snap.Fatalities.Slice(lookup.Key)
		if err != nil {
			fmt.Fprintf(w, "unavailable: %v\n", err)
			continue
		}
		t = newTable(w, "Secondary cause", "Fatal")
		for _, c := range counts {
			t.Append([]string{c.Category, strconv.Itoa(c.Value)})
		}
		t.Render()
	}

	section(w, "Incident rate by weather")
	if snap.WeatherErr != nil {
		fmt.Fprintf(w, "unavailable: %v\n", snap.WeatherErr)
	} else {
		t = newTable(w, "Condition", "Incidents", "Baseline days", "Per day")
		for _, r := range snap.Weather {
			t.Append([]string{
				r.Condition,
				strconv.Itoa(r.Incidents),
				strconv.FormatFloat(r.BaselineDays, 'f', -1, 64),
				strconv.FormatFloat(r.PerDay, 'f', 4, 64),
			})
		}
		t.Render()
	}

	for _, unit := range models.TimeColumns {
		buckets, err := aggregate.TimeDistribution(table, unit)
		if err != nil {
			return err
		}
		chart, err := render.TimeTrend(unit, buckets)
		if err != nil {
			return err
		}
		section(w, "Crashes by "+unit)
		t = newTable(w, unit, "Crashes")
		for _, b := range buckets {
			t.Append([]string{strconv.Itoa(b.Key), strconv.Itoa(b.Count)})
		}
		if tr := chart.Trend; tr != nil {
			t.SetFooter([]string{"trend", fmt.Sprintf("%.2f + %.2fx (R² %.3f)", tr.Intercept, tr.Slope, tr.RSquared)})
		}
		t.Render()
	}

	section(w, "Damage by collision type")
	t = newTable(w, "Collision type", "Damage", "Crashes", "Share")
	for _, key := range snap.Damage.Keys() {
		counts, err := snap.Damage.Slice(key)
		if err != nil {
			return err
		}
		for _, s := range render.DamageShares(key, counts).Slices {
			t.Append([]string{key, s.Label, strconv.FormatFloat(s.Value, 'f', -1, 64), fmt.Sprintf("%.1f%%", s.Share*100)})
		}
	}
	t.Render()
	return nil
}
