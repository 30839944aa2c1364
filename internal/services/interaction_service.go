package services

import (
	"context"
	"errors"
	"time"

	"crash-dashboard/internal/aggregate"
	"crash-dashboard/internal/dataset"
	"crash-dashboard/internal/models"
	"crash-dashboard/internal/render"
	"crash-dashboard/pkg/logging"
	"crash-dashboard/pkg/metrics"
)

// Handler names used in logs and the interaction_events_total metric.
const (
	HandlerTimeUnit      = "time_unit"
	HandlerCollisionType = "collision_type"
)

// Option is one dropdown entry.
type Option struct {
	Label string `json:"label"`
	Value string `json:"value"`
}

var timeUnitLabels = map[string]string{
	models.ColCrashMonth:     "Month",
	models.ColCrashDayOfWeek: "Day of week",
	models.ColCrashHour:      "Hour",
}

// InteractionController answers dropdown selections. It only reads the
// immutable table and the precomputed damage cross tab, so a failed
// selection never affects a later one.
type InteractionController struct {
	table       *dataset.Table
	damage      *aggregate.CrossTab
	defaultUnit string
	logger      *logging.StructuredLogger
	metrics     *metrics.Collector
}

// NewInteractionController creates a controller. defaultUnit falls back to
// CRASH_MONTH when it is not a time column.
func NewInteractionController(table *dataset.Table, damage *aggregate.CrossTab, defaultUnit string, logger *logging.StructuredLogger, metricsCollector *metrics.Collector) *InteractionController {
	if !models.IsTimeColumn(defaultUnit) {
		defaultUnit = models.ColCrashMonth
	}
	return &InteractionController{
		table:       table,
		damage:      damage,
		defaultUnit: defaultUnit,
		logger:      logger,
		metrics:     metricsCollector,
	}
}

// TimeUnitOptions lists the time-unit dropdown entries
func (c *InteractionController) TimeUnitOptions() []Option {
	out := make([]Option, len(models.TimeColumns))
	for i, col := range models.TimeColumns {
		out[i] = Option{Label: timeUnitLabels[col], Value: col}
	}
	return out
}

// CollisionTypeOptions lists collision types in first-seen order
func (c *InteractionController) CollisionTypeOptions() []Option {
	keys := c.damage.Keys()
	out := make([]Option, len(keys))
	for i, k := range keys {
		out[i] = Option{Label: k, Value: k}
	}
	return out
}

// DefaultTimeUnit is the initially selected time unit
func (c *InteractionController) DefaultTimeUnit() string {
	return c.defaultUnit
}

// DefaultCollisionType is the first collision type in the data, or "" for
// a table without any.
func (c *InteractionController) DefaultCollisionType() string {
	keys := c.damage.Keys()
	if len(keys) == 0 {
		return ""
	}
	return keys[0]
}

// OnTimeUnitSelected recomputes the time distribution for unit and renders
// it as a scatter chart with a trend line.
func (c *InteractionController) OnTimeUnitSelected(ctx context.Context, unit string) (render.Chart, error) {
	start := time.Now()

	buckets, err := aggregate.TimeDistribution(c.table, unit)
	if err != nil {
		c.fail(ctx, HandlerTimeUnit, unit, err)
		return render.Chart{}, err
	}
	chart, err := render.TimeTrend(unit, buckets)
	if err != nil {
		c.fail(ctx, HandlerTimeUnit, unit, err)
		return render.Chart{}, err
	}

	c.succeed(ctx, HandlerTimeUnit, unit, start, logging.Fields{"groups": len(buckets)})
	return chart, nil
}

// OnCollisionTypeSelected renders the damage distribution of crashType as a
// pie. Values absent from the data are an *models.UnknownCategoryError.
func (c *InteractionController) OnCollisionTypeSelected(ctx context.Context, crashType string) (render.Chart, error) {
	start := time.Now()

	counts, err := c.damage.Slice(crashType)
	if err != nil {
		c.fail(ctx, HandlerCollisionType, crashType, err)
		return render.Chart{}, err
	}

	c.succeed(ctx, HandlerCollisionType, crashType, start, logging.Fields{"categories": len(counts)})
	return render.DamageShares(crashType, counts), nil
}

func (c *InteractionController) succeed(ctx context.Context, handler, value string, start time.Time, fields logging.Fields) {
	elapsed := time.Since(start)
	c.metrics.RecordInteraction(handler, "ok")
	c.metrics.AggregationDuration.WithLabelValues(handler).Observe(elapsed.Seconds())

	fields["handler"] = handler
	fields["value"] = value
	fields["duration_ms"] = elapsed.Milliseconds()
	c.logger.Debug(ctx, "[INTERACTION] Selection rendered", fields)
}

func (c *InteractionController) fail(ctx context.Context, handler, value string, err error) {
	outcome := "error"
	var invalid *models.InvalidColumnError
	var unknown *models.UnknownCategoryError
	if errors.As(err, &invalid) || errors.As(err, &unknown) {
		outcome = "rejected"
	}
	c.metrics.RecordInteraction(handler, outcome)
	c.logger.Warn(ctx, "[INTERACTION_REJECTED] Selection failed", logging.Fields{
		"handler": handler,
		"value":   value,
		"outcome": outcome,
		"error":   err.Error(),
	})
}
