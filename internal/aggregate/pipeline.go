package aggregate

import (
	"fmt"
	"math"
	"sort"

	"crash-dashboard/internal/dataset"
	"crash-dashboard/internal/models"
)

// Filtered drops rows whose primary cause, lighting or weather is a sentinel.
func Filtered(t *dataset.Table) (*dataset.Table, error) {
	return t.Where(
		dataset.NotEqual(models.ColPrimaryCause, models.SentinelUnableToDetermine),
		dataset.NotEqual(models.ColPrimaryCause, models.SentinelNotApplicable),
		dataset.NotEqual(models.ColLighting, models.SentinelUnknown),
		dataset.NotEqual(models.ColWeather, models.SentinelUnknown),
		dataset.NotEqual(models.ColWeather, models.SentinelOther),
	)
}

// CauseInjuryTotals sums the four injury columns per primary cause over the
// filtered table, sorted descending by Tuple. Ties are ordered by cause name.
func CauseInjuryTotals(t *dataset.Table) ([]CauseInjuryTotal, error) {
	filtered, err := Filtered(t)
	if err != nil {
		return nil, err
	}
	causes, err := filtered.Strings(models.ColPrimaryCause)
	if err != nil {
		return nil, err
	}
	cols, err := numberColumns(filtered,
		models.ColInjuriesNoIndication,
		models.ColInjuriesNonIncapacitating,
		models.ColInjuriesIncapacitating,
		models.ColInjuriesFatal,
	)
	if err != nil {
		return nil, err
	}

	byCause := make(map[string]*CauseInjuryTotal)
	for i, cause := range causes {
		if cause == "" {
			continue
		}
		row, ok := byCause[cause]
		if !ok {
			row = &CauseInjuryTotal{Cause: cause}
			byCause[cause] = row
		}
		row.NoIndication += count(cols[0][i])
		row.NonIncapacitating += count(cols[1][i])
		row.Incapacitating += count(cols[2][i])
		row.Fatal += count(cols[3][i])
	}

	out := make([]CauseInjuryTotal, 0, len(byCause))
	for _, row := range byCause {
		out = append(out, *row)
	}
	sort.Slice(out, func(i, j int) bool {
		a, b := out[i].Tuple(), out[j].Tuple()
		if a != b {
			for k := range a {
				if a[k] != b[k] {
					return a[k] > b[k]
				}
			}
		}
		return out[i].Cause < out[j].Cause
	})
	return out, nil
}

// CauseSecondaryFatalities sums INJURIES_FATAL per (primary, secondary) cause
// over the filtered table, also dropping sentinel secondary causes.
func CauseSecondaryFatalities(t *dataset.Table) (*CrossTab, error) {
	filtered, err := Filtered(t)
	if err != nil {
		return nil, err
	}
	filtered, err = filtered.Where(
		dataset.NotEqual(models.ColSecondaryCause, models.SentinelUnableToDetermine),
		dataset.NotEqual(models.ColSecondaryCause, models.SentinelNotApplicable),
	)
	if err != nil {
		return nil, err
	}

	primary, err := filtered.Strings(models.ColPrimaryCause)
	if err != nil {
		return nil, err
	}
	secondary, err := filtered.Strings(models.ColSecondaryCause)
	if err != nil {
		return nil, err
	}
	fatal, err := filtered.Numbers(models.ColInjuriesFatal)
	if err != nil {
		return nil, err
	}

	tab := newCrossTab(models.ColPrimaryCause, models.ColSecondaryCause)
	for i := range primary {
		if primary[i] == "" || secondary[i] == "" {
			continue
		}
		tab.add(primary[i], secondary[i], count(fatal[i]))
	}
	return tab, nil
}

// WeatherIncidentRate counts CLEAR, RAIN and SNOW crashes over the whole table
// and divides each count by its baseline. Results are ordered by ascending
// count. A condition with no rows is a *models.MissingCategoryError.
func WeatherIncidentRate(t *dataset.Table, baselines Baselines) ([]WeatherRate, error) {
	conditions := []string{models.WeatherClear, models.WeatherRain, models.WeatherSnow}
	matching, err := t.Where(dataset.OneOf(models.ColWeather, conditions...))
	if err != nil {
		return nil, err
	}
	weather, err := matching.Strings(models.ColWeather)
	if err != nil {
		return nil, err
	}

	counts := make(map[string]int, len(conditions))
	for _, w := range weather {
		counts[w]++
	}

	out := make([]WeatherRate, 0, len(conditions))
	for _, c := range conditions {
		n, ok := counts[c]
		if !ok {
			return nil, &models.MissingCategoryError{Field: models.ColWeather, Category: c}
		}
		days := baselines.forCondition(c)
		out = append(out, WeatherRate{
			Condition:    c,
			Incidents:    n,
			BaselineDays: days,
			PerDay:       float64(n) / days,
		})
	}
	sort.SliceStable(out, func(i, j int) bool { return out[i].Incidents < out[j].Incidents })
	return out, nil
}

// DamageByCollisionType counts rows per (FIRST_CRASH_TYPE, DAMAGE) over the
// whole table. Collision types keep their first-seen order.
func DamageByCollisionType(t *dataset.Table) (*CrossTab, error) {
	crashTypes, err := t.Strings(models.ColFirstCrashType)
	if err != nil {
		return nil, err
	}
	damage, err := t.Strings(models.ColDamage)
	if err != nil {
		return nil, err
	}

	tab := newCrossTab(models.ColFirstCrashType, models.ColDamage)
	for i := range crashTypes {
		if crashTypes[i] == "" || damage[i] == "" {
			continue
		}
		tab.add(crashTypes[i], damage[i], 1)
	}
	return tab, nil
}

// InjuryColumnTotals sums each injury column over the whole table.
func InjuryColumnTotals(t *dataset.Table) ([]ColumnTotal, error) {
	out := make([]ColumnTotal, 0, len(models.InjuryColumns))
	for _, col := range models.InjuryColumns {
		values, err := t.Numbers(col)
		if err != nil {
			return nil, err
		}
		total := 0
		for _, v := range values {
			total += count(v)
		}
		out = append(out, ColumnTotal{Column: col, Total: total})
	}
	return out, nil
}

// TimeDistribution counts rows per value of a time-unit column, ordered by
// key. unit must be one of models.TimeColumns.
func TimeDistribution(t *dataset.Table, unit string) ([]TimeBucket, error) {
	if !models.IsTimeColumn(unit) {
		return nil, &models.InvalidColumnError{Column: unit, Allowed: models.TimeColumns}
	}
	values, err := t.Numbers(unit)
	if err != nil {
		return nil, err
	}

	counts := make(map[int]int)
	for _, v := range values {
		if math.IsNaN(v) {
			continue
		}
		counts[int(v)]++
	}

	out := make([]TimeBucket, 0, len(counts))
	for k, n := range counts {
		out = append(out, TimeBucket{Key: k, Count: n})
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Key < out[j].Key })
	return out, nil
}

func numberColumns(t *dataset.Table, cols ...string) ([][]float64, error) {
	out := make([][]float64, len(cols))
	for i, col := range cols {
		values, err := t.Numbers(col)
		if err != nil {
			return nil, fmt.Errorf("read %s: %w", col, err)
		}
		out[i] = values
	}
	return out, nil
}
