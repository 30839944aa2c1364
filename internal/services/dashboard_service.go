package services

import (
	"context"
	"fmt"
	"strconv"
	"time"

	"crash-dashboard/internal/aggregate"
	"crash-dashboard/internal/config"
	"crash-dashboard/internal/dataset"
	"crash-dashboard/internal/models"
	"crash-dashboard/internal/render"
	"crash-dashboard/pkg/logging"
	"crash-dashboard/pkg/metrics"
)

// Panel is one chart slot of the page. A panel whose view failed carries
// Error instead of Chart.
type Panel struct {
	Heading string        `json:"heading"`
	Chart   *render.Chart `json:"chart,omitempty"`
	Notes   []string      `json:"notes,omitempty"`
	Error   string        `json:"error,omitempty"`
}

// Selector is a dropdown and the chart it drives.
type Selector struct {
	ID       string   `json:"id"`
	Options  []Option `json:"options"`
	Selected string   `json:"selected"`
	Panel    Panel    `json:"panel"`
}

// Section groups panels under a top-level heading.
type Section struct {
	Heading  string    `json:"heading"`
	Panels   []Panel   `json:"panels,omitempty"`
	Selector *Selector `json:"selector,omitempty"`
}

// Page is the whole dashboard, built once at startup.
type Page struct {
	Source   string       `json:"source"`
	Rows     int          `json:"rows"`
	LoadedAt time.Time    `json:"loaded_at"`
	Preview  render.Chart `json:"preview"`
	PageSize int          `json:"page_size"`
	Sections []Section    `json:"sections"`
}

// DashboardOptions are the page settings taken from config.
type DashboardOptions struct {
	PreviewRows     int
	PageSize        int
	FatalityLookups []config.FatalityLookup
	Baselines       aggregate.Baselines
}

// DashboardService owns the page model and the static charts it references.
type DashboardService struct {
	table      *dataset.Table
	snapshot   *aggregate.Snapshot
	controller *InteractionController
	page       *Page
	charts     map[string]render.Chart
	failed     map[string]error
	logger     *logging.StructuredLogger
	metrics    *metrics.Collector
}

// NewDashboardService assembles the page from the startup snapshot.
func NewDashboardService(ctx context.Context, table *dataset.Table, snapshot *aggregate.Snapshot, controller *InteractionController, opts DashboardOptions, logger *logging.StructuredLogger, metricsCollector *metrics.Collector) *DashboardService {
	s := &DashboardService{
		table:      table,
		snapshot:   snapshot,
		controller: controller,
		charts:     make(map[string]render.Chart),
		failed:     make(map[string]error),
		logger:     logger,
		metrics:    metricsCollector,
	}
	s.page = s.build(ctx, opts)

	logger.Info(ctx, "[DASHBOARD_READY] Page model built", logging.Fields{
		"source":        table.Source(),
		"rows":          table.Len(),
		"charts":        len(s.charts),
		"failed_panels": len(s.failed),
	})
	return s
}

// Page returns the page model
func (s *DashboardService) Page() *Page {
	return s.page
}

// Snapshot returns the startup views
func (s *DashboardService) Snapshot() *aggregate.Snapshot {
	return s.snapshot
}

// Controller returns the selection handlers
func (s *DashboardService) Controller() *InteractionController {
	return s.controller
}

// Chart returns a static page chart by ID. A panel that failed at startup
// returns its error; an unknown ID is an *models.UnknownCategoryError.
func (s *DashboardService) Chart(id string) (render.Chart, error) {
	if c, ok := s.charts[id]; ok {
		return c, nil
	}
	if err, ok := s.failed[id]; ok {
		return render.Chart{}, err
	}
	return render.Chart{}, &models.UnknownCategoryError{Field: "chart", Value: id}
}

// PreviewPage returns one page of the preview table (1-based) and the number
// of preview rows.
func (s *DashboardService) PreviewPage(page, limit int) ([][]string, int) {
	rows := s.page.Preview.Table.Rows
	total := len(rows)
	if page < 1 {
		page = 1
	}
	if limit < 1 {
		limit = s.page.PageSize
	}
	start := (page - 1) * limit
	if start >= total {
		return [][]string{}, total
	}
	end := start + limit
	if end > total {
		end = total
	}
	return rows[start:end], total
}

func (s *DashboardService) build(ctx context.Context, opts DashboardOptions) *Page {
	page := &Page{
		Source:   s.table.Source(),
		Rows:     s.table.Len(),
		LoadedAt: s.table.LoadedAt(),
		Preview:  render.PreviewTable(s.table.Columns(), s.table.Head(opts.PreviewRows)),
		PageSize: opts.PageSize,
	}

	injury := Section{
		Heading: "Analyze the types of injuries that are most common in crashes and identify factors that contribute to more severe injuries.",
		Panels: []Panel{
			s.keep(render.InjuryTotalsTable(s.snapshot.InjuryTotals), ""),
			s.keep(render.CauseTotals(s.snapshot.CauseTotals), "By cause"),
		},
	}

	timeSection := Section{
		Heading:  "Analyze whether crashes are more likely to occur at certain times of day / day of the week / month.",
		Selector: s.timeSelector(ctx),
	}

	fatal := Section{Heading: "Find common root cause leading to fatal"}
	for i, lookup := range opts.FatalityLookups {
		fatal.Panels = append(fatal.Panels, s.fatalityPanel(ctx, i, lookup))
	}

	weather := Section{
		Heading: "Correlation between weather conditions and number of incidents",
		Panels:  []Panel{s.weatherPanel(ctx, opts.Baselines)},
	}

	damage := Section{
		Heading:  "Damage depending on collision type",
		Selector: s.damageSelector(ctx),
	}

	page.Sections = []Section{injury, timeSection, fatal, weather, damage}
	return page
}

func (s *DashboardService) keep(c render.Chart, heading string) Panel {
	s.charts[c.ID] = c
	return Panel{Heading: heading, Chart: &c}
}

func (s *DashboardService) fail(ctx context.Context, id, heading string, err error) Panel {
	s.failed[id] = err
	s.logger.Warn(ctx, "[PANEL_FAILED] Panel rendered in error state", logging.Fields{
		"chart_id": id,
		"heading":  heading,
		"error":    err.Error(),
	})
	return Panel{Heading: heading, Error: err.Error()}
}

func (s *DashboardService) fatalityPanel(ctx context.Context, i int, lookup config.FatalityLookup) Panel {
	id := render.FatalityID(i)
	heading := "For " + lookup.Title
	counts, err := s.snapshot.Fatalities.Slice(lookup.Key)
	if err != nil {
		return s.fail(ctx, id, heading, err)
	}
	return s.keep(render.Breakdown(id, heading, models.ColSecondaryCause, counts), heading)
}

func (s *DashboardService) weatherPanel(ctx context.Context, b aggregate.Baselines) Panel {
	notes := []string{
		"Sunny days: aprox " + formatDays(b.Clear),
		"Rainy days: aprox " + formatDays(b.Rain),
		"Snowy days: aprox " + formatDays(b.Snow),
	}
	if s.snapshot.WeatherErr != nil {
		p := s.fail(ctx, render.IDWeatherRate, "", s.snapshot.WeatherErr)
		p.Notes = notes
		return p
	}
	p := s.keep(render.WeatherRates(s.snapshot.Weather), "")
	p.Notes = notes
	return p
}

func (s *DashboardService) timeSelector(ctx context.Context) *Selector {
	sel := &Selector{
		ID:       "time-model-select",
		Options:  s.controller.TimeUnitOptions(),
		Selected: s.controller.DefaultTimeUnit(),
	}
	c, err := s.controller.OnTimeUnitSelected(ctx, sel.Selected)
	if err != nil {
		sel.Panel = Panel{Error: err.Error()}
		return sel
	}
	sel.Panel = Panel{Chart: &c}
	return sel
}

func (s *DashboardService) damageSelector(ctx context.Context) *Selector {
	sel := &Selector{
		ID:       "colission-select",
		Options:  s.controller.CollisionTypeOptions(),
		Selected: s.controller.DefaultCollisionType(),
	}
	if sel.Selected == "" {
		sel.Panel = Panel{Error: fmt.Sprintf("no %s values in the dataset", models.ColFirstCrashType)}
		return sel
	}
	c, err := s.controller.OnCollisionTypeSelected(ctx, sel.Selected)
	if err != nil {
		sel.Panel = Panel{Error: err.Error()}
		return sel
	}
	sel.Panel = Panel{Chart: &c}
	return sel
}

func formatDays(d float64) string {
	return strconv.FormatFloat(d, 'f', -1, 64)
}
