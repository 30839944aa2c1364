package aggregate

import (
	"context"
	"errors"
	"fmt"
	"time"

	"golang.org/x/sync/errgroup"

	"crash-dashboard/internal/dataset"
	"crash-dashboard/internal/models"
)

// View names, also used as metric labels and export sheet keys.
const (
	ViewInjuryTotals = "injury_totals"
	ViewCauseTotals  = "cause_totals"
	ViewFatalities   = "cause_secondary_fatalities"
	ViewWeatherRate  = "weather_rate"
	ViewDamage       = "damage_by_collision_type"
)

// Snapshot holds the views computed once at startup.
type Snapshot struct {
	InjuryTotals []ColumnTotal
	CauseTotals  []CauseInjuryTotal
	Fatalities   *CrossTab
	Weather      []WeatherRate
	// WeatherErr is set instead of Weather when a condition is missing; the
	// rest of the snapshot is still usable.
	WeatherErr error
	Damage     *CrossTab
}

// Observer receives the duration of each view computation.
type Observer func(view string, elapsed time.Duration)

// Compute builds all startup views concurrently. The table is read-only, so
// the views share it without locking.
func Compute(ctx context.Context, t *dataset.Table, baselines Baselines, observe Observer) (*Snapshot, error) {
	if observe == nil {
		observe = func(string, time.Duration) {}
	}
	snap := &Snapshot{}
	g, _ := errgroup.WithContext(ctx)

	timed := func(view string, fn func() error) {
		g.Go(func() error {
			start := time.Now()
			err := fn()
			observe(view, time.Since(start))
			if err != nil {
				return fmt.Errorf("%s: %w", view, err)
			}
			return nil
		})
	}

	timed(ViewInjuryTotals, func() (err error) {
		snap.InjuryTotals, err = InjuryColumnTotals(t)
		return err
	})
	timed(ViewCauseTotals, func() (err error) {
		snap.CauseTotals, err = CauseInjuryTotals(t)
		return err
	})
	timed(ViewFatalities, func() (err error) {
		snap.Fatalities, err = CauseSecondaryFatalities(t)
		return err
	})
	timed(ViewWeatherRate, func() error {
		rates, err := WeatherIncidentRate(t, baselines)
		var missing *models.MissingCategoryError
		if errors.As(err, &missing) {
			snap.WeatherErr = err
			return nil
		}
		snap.Weather = rates
		return err
	})
	timed(ViewDamage, func() (err error) {
		snap.Damage, err = DamageByCollisionType(t)
		return err
	})

	if err := g.Wait(); err != nil {
		return nil, err
	}
	return snap, nil
}
