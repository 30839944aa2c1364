// Package export writes the startup views to an Excel workbook.
package export

import (
	"fmt"
	"io"

	"github.com/xuri/excelize/v2"

	"crash-dashboard/internal/aggregate"
)

// Sheet names, in workbook order.
const (
	SheetInjuryTotals = "Injury totals"
	SheetCauseTotals  = "By cause"
	SheetFatalities   = "Fatalities by cause"
	SheetWeather      = "Weather"
	SheetDamage       = "Damage by collision"
)

// Sheets lists every sheet WriteWorkbook produces.
func Sheets() []string {
	return []string{SheetInjuryTotals, SheetCauseTotals, SheetFatalities, SheetWeather, SheetDamage}
}

// WriteWorkbook writes one sheet per view. A weather view that failed is
// written as a single error row.
func WriteWorkbook(w io.Writer, snap *aggregate.Snapshot) error {
	f := excelize.NewFile()
	defer f.Close()

	if err := f.SetSheetName("Sheet1", SheetInjuryTotals); err != nil {
		return fmt.Errorf("rename first sheet: %w", err)
	}
	for _, name := range Sheets()[1:] {
		if _, err := f.NewSheet(name); err != nil {
			return fmt.Errorf("create sheet %q: %w", name, err)
		}
	}

	sheets := map[string][][]interface{}{
		SheetInjuryTotals: injuryRows(snap),
		SheetCauseTotals:  causeRows(snap),
		SheetFatalities:   crossTabRows(snap.Fatalities, "FATALITIES"),
		SheetWeather:      weatherRows(snap),
		SheetDamage:       crossTabRows(snap.Damage, "CRASHES"),
	}
	for _, name := range Sheets() {
		if err := writeRows(f, name, sheets[name]); err != nil {
			return err
		}
	}

	if err := f.Write(w); err != nil {
		return fmt.Errorf("write workbook: %w", err)
	}
	return nil
}

func writeRows(f *excelize.File, sheet string, rows [][]interface{}) error {
	for i, row := range rows {
		cell, err := excelize.CoordinatesToCellName(1, i+1)
		if err != nil {
			return err
		}
		if err := f.SetSheetRow(sheet, cell, &row); err != nil {
			return fmt.Errorf("write %s row %d: %w", sheet, i+1, err)
		}
	}
	return nil
}

func injuryRows(snap *aggregate.Snapshot) [][]interface{} {
	rows := [][]interface{}{{"Column", "Sum"}}
	for _, t := range snap.InjuryTotals {
		rows = append(rows, []interface{}{t.Column, t.Total})
	}
	return rows
}

func causeRows(snap *aggregate.Snapshot) [][]interface{} {
	rows := [][]interface{}{{
		"PRIM_CONTRIBUTORY_CAUSE",
		"INJURIES_NO_INDICATION",
		"INJURIES_NON_INCAPACITATING",
		"INJURIES_INCAPACITATING",
		"INJURIES_FATAL",
	}}
	for _, c := range snap.CauseTotals {
		rows = append(rows, []interface{}{c.Cause, c.NoIndication, c.NonIncapacitating, c.Incapacitating, c.Fatal})
	}
	return rows
}

func weatherRows(snap *aggregate.Snapshot) [][]interface{} {
	if snap.WeatherErr != nil {
		return [][]interface{}{{"error"}, {snap.WeatherErr.Error()}}
	}
	rows := [][]interface{}{{"WEATHER_CONDITION", "INCIDENTS", "BASELINE_DAYS", "INCIDENTS_PER_DAY"}}
	for _, r := range snap.Weather {
		rows = append(rows, []interface{}{r.Condition, r.Incidents, r.BaselineDays, r.PerDay})
	}
	return rows
}

// crossTabRows flattens a cross tab to (row, column, value) triples in key order.
func crossTabRows(tab *aggregate.CrossTab, valueName string) [][]interface{} {
	if tab == nil {
		return nil
	}
	rows := [][]interface{}{{tab.RowField, tab.ColField, valueName}}
	for _, key := range tab.Keys() {
		slice, err := tab.Slice(key)
		if err != nil {
			continue
		}
		for _, cc := range slice {
			rows = append(rows, []interface{}{key, cc.Category, cc.Value})
		}
	}
	return rows
}
