package services

import (
	"context"
	"errors"
	"path/filepath"
	"sync"
	"testing"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"crash-dashboard/internal/aggregate"
	"crash-dashboard/internal/config"
	"crash-dashboard/internal/dataset"
	"crash-dashboard/internal/models"
	"crash-dashboard/internal/render"
	"crash-dashboard/internal/repository"
	"crash-dashboard/internal/testkit"
	"crash-dashboard/pkg/logging"
	"crash-dashboard/pkg/metrics"
)

var testBaselines = aggregate.Baselines{Clear: config.DefaultClearDays, Rain: config.DefaultRainDays, Snow: config.DefaultSnowDays}

func newMetrics() *metrics.Collector {
	return metrics.NewCollectorWithRegistry("test", prometheus.NewRegistry())
}

func newController(t *testing.T, table *dataset.Table) (*InteractionController, *metrics.Collector) {
	t.Helper()
	damage, err := aggregate.DamageByCollisionType(table)
	require.NoError(t, err)
	m := newMetrics()
	return NewInteractionController(table, damage, "", logging.NewNopLogger(), m), m
}

func TestInteractionController_Options(t *testing.T) {
	c, _ := newController(t, testkit.Table(t, testkit.Mixed()))

	assert.Equal(t, []Option{
		{Label: "Month", Value: models.ColCrashMonth},
		{Label: "Day of week", Value: models.ColCrashDayOfWeek},
		{Label: "Hour", Value: models.ColCrashHour},
	}, c.TimeUnitOptions())
	assert.Equal(t, models.ColCrashMonth, c.DefaultTimeUnit())

	assert.Equal(t, []Option{{Label: "REAR END", Value: "REAR END"}, {Label: "ANGLE", Value: "ANGLE"}}, c.CollisionTypeOptions())
	assert.Equal(t, "REAR END", c.DefaultCollisionType())
}

func TestInteractionController_DefaultCollisionTypeHasDamage(t *testing.T) {
	noDamage := testkit.Base()
	noDamage.CrashType = "SIDESWIPE SAME DIRECTION"
	noDamage.Damage = ""
	angle := testkit.Base()
	angle.CrashType = "ANGLE"

	c, _ := newController(t, testkit.Table(t, []testkit.Crash{noDamage, angle, testkit.Base()}))

	assert.Equal(t, "ANGLE", c.DefaultCollisionType())
	_, err := c.OnCollisionTypeSelected(context.Background(), c.DefaultCollisionType())
	assert.NoError(t, err)

	empty, _ := newController(t, testkit.Table(t, []testkit.Crash{noDamage}))
	assert.Equal(t, "", empty.DefaultCollisionType())
}

func TestInteractionController_OnTimeUnitSelected(t *testing.T) {
	c, m := newController(t, testkit.Table(t, testkit.Mixed()))
	ctx := context.Background()

	chart, err := c.OnTimeUnitSelected(ctx, models.ColCrashHour)
	require.NoError(t, err)
	assert.Equal(t, render.KindScatterTrend, chart.Kind)
	assert.Equal(t, []render.Point{{X: 8, Y: 5}, {X: 17, Y: 2}, {X: 23, Y: 1}}, chart.Points)
	require.NotNil(t, chart.Trend)

	_, err = c.OnTimeUnitSelected(ctx, "CRASH_DATE")
	var invalid *models.InvalidColumnError
	require.True(t, errors.As(err, &invalid))

	assert.Equal(t, 1.0, testutil.ToFloat64(m.InteractionEvents.WithLabelValues(HandlerTimeUnit, "ok")))
	assert.Equal(t, 1.0, testutil.ToFloat64(m.InteractionEvents.WithLabelValues(HandlerTimeUnit, "rejected")))
}

func TestInteractionController_UnknownCollisionTypeIsLocal(t *testing.T) {
	c, _ := newController(t, testkit.Table(t, testkit.Mixed()))
	ctx := context.Background()

	before, err := c.OnCollisionTypeSelected(ctx, "ANGLE")
	require.NoError(t, err)

	_, err = c.OnCollisionTypeSelected(ctx, "HEAD ON")
	var unknown *models.UnknownCategoryError
	require.True(t, errors.As(err, &unknown))
	assert.Equal(t, "HEAD ON", unknown.Value)

	after, err := c.OnCollisionTypeSelected(ctx, "ANGLE")
	require.NoError(t, err)
	assert.Equal(t, before, after)

	timeChart, err := c.OnTimeUnitSelected(ctx, models.ColCrashMonth)
	require.NoError(t, err)
	assert.Len(t, timeChart.Points, 3)
}

func TestInteractionController_Concurrent(t *testing.T) {
	c, _ := newController(t, testkit.Table(t, testkit.Mixed()))
	ctx := context.Background()

	var wg sync.WaitGroup
	for i := 0; i < 16; i++ {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			if i%2 == 0 {
				_, err := c.OnTimeUnitSelected(ctx, models.TimeColumns[i%3])
				assert.NoError(t, err)
				return
			}
			_, err := c.OnCollisionTypeSelected(ctx, "REAR END")
			assert.NoError(t, err)
		}(i)
	}
	wg.Wait()
}

func newDashboard(t *testing.T, crashes []testkit.Crash, lookups []config.FatalityLookup) *DashboardService {
	t.Helper()
	ctx := context.Background()
	table := testkit.Table(t, crashes)
	snap, err := aggregate.Compute(ctx, table, testBaselines, nil)
	require.NoError(t, err)
	controller, m := newController(t, table)

	return NewDashboardService(ctx, table, snap, controller, DashboardOptions{
		PreviewRows:     5,
		PageSize:        2,
		FatalityLookups: lookups,
		Baselines:       testBaselines,
	}, logging.NewNopLogger(), m)
}

func TestDashboardService_Page(t *testing.T) {
	svc := newDashboard(t, testkit.Mixed(), config.DefaultFatalityLookups())
	page := svc.Page()

	assert.Equal(t, len(testkit.Mixed()), page.Rows)
	require.NotNil(t, page.Preview.Table)
	assert.Len(t, page.Preview.Table.Rows, 5)
	assert.Equal(t, testkit.Header(), page.Preview.Table.Columns)
	require.Len(t, page.Sections, 5)

	injury := page.Sections[0]
	require.Len(t, injury.Panels, 2)
	assert.Equal(t, render.KindTable, injury.Panels[0].Chart.Kind)
	assert.Equal(t, "By cause", injury.Panels[1].Heading)

	timeSel := page.Sections[1].Selector
	require.NotNil(t, timeSel)
	assert.Equal(t, models.ColCrashMonth, timeSel.Selected)
	require.NotNil(t, timeSel.Panel.Chart)

	fatal := page.Sections[2]
	require.Len(t, fatal.Panels, 2)
	assert.Equal(t, "For PHYSICAL CONDITION OF DRIVER", fatal.Panels[0].Heading)
	assert.Equal(t, "For PHYSICAL FAILING TO YIELD RIGHT-OF-WAY", fatal.Panels[1].Heading)
	require.NotNil(t, fatal.Panels[1].Chart)
	assert.Equal(t, []string{"FOLLOWING TOO CLOSELY"}, fatal.Panels[1].Chart.Categories)

	weather := page.Sections[3].Panels[0]
	assert.Equal(t, []string{"Sunny days: aprox 218", "Rainy days: aprox 119", "Snowy days: aprox 27.8"}, weather.Notes)
	require.NotNil(t, weather.Chart)
	assert.Equal(t, "Incidents / day", weather.Chart.YLabel)

	damageSel := page.Sections[4].Selector
	require.NotNil(t, damageSel)
	assert.Equal(t, "REAR END", damageSel.Selected)
	require.NotNil(t, damageSel.Panel.Chart)
	assert.Equal(t, render.KindPie, damageSel.Panel.Chart.Kind)
}

func TestDashboardService_FailedPanels(t *testing.T) {
	lookups := []config.FatalityLookup{{Title: "NOT IN DATA", Key: "NOT IN DATA"}}
	svc := newDashboard(t, testkit.Repeat(testkit.Base(), 3), lookups)
	page := svc.Page()

	fatal := page.Sections[2].Panels[0]
	assert.Nil(t, fatal.Chart)
	assert.Contains(t, fatal.Error, "NOT IN DATA")

	weather := page.Sections[3].Panels[0]
	assert.Nil(t, weather.Chart)
	assert.Contains(t, weather.Error, models.WeatherRain)
	assert.Len(t, weather.Notes, 3)

	_, err := svc.Chart(render.FatalityID(0))
	var unknown *models.UnknownCategoryError
	assert.True(t, errors.As(err, &unknown))

	_, err = svc.Chart(render.IDWeatherRate)
	var missing *models.MissingCategoryError
	assert.True(t, errors.As(err, &missing))

	chart, err := svc.Chart(render.IDCauseTotals)
	require.NoError(t, err)
	assert.Equal(t, []string{"FOLLOWING TOO CLOSELY"}, chart.Categories)

	_, err = svc.Chart("nope")
	assert.True(t, errors.As(err, &unknown))
}

func TestDashboardService_PreviewPage(t *testing.T) {
	svc := newDashboard(t, testkit.Mixed(), config.DefaultFatalityLookups())

	tests := []struct {
		name        string
		page, limit int
		wantRows    int
		wantFirstID string
	}{
		{"first page default limit", 1, 0, 2, "crash-0"},
		{"third page", 3, 2, 1, "crash-4"},
		{"past the end", 9, 2, 0, ""},
		{"page below one", -1, 4, 4, "crash-0"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			rows, total := svc.PreviewPage(tt.page, tt.limit)
			assert.Equal(t, 5, total)
			require.Len(t, rows, tt.wantRows)
			if tt.wantRows > 0 {
				assert.Equal(t, tt.wantFirstID, rows[0][0])
			}
		})
	}
}

type memoryRepo struct {
	mu      sync.Mutex
	crashes []*models.CrashRecord
	batches []int
	failOn  int
}

func (r *memoryRepo) CreateCrashesBatch(_ context.Context, crashes []*models.CrashRecord) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.failOn > 0 && len(r.batches)+1 == r.failOn {
		return errors.New("connection reset")
	}
	r.crashes = append(r.crashes, crashes...)
	r.batches = append(r.batches, len(crashes))
	return nil
}

func (r *memoryRepo) ListCrashes(context.Context, repository.CrashFilter) ([]*models.CrashRecord, error) {
	return r.crashes, nil
}

func (r *memoryRepo) CountCrashes(context.Context, repository.CrashFilter) (int, error) {
	return len(r.crashes), nil
}

func (r *memoryRepo) DeleteAll(context.Context) (int64, error) {
	n := len(r.crashes)
	r.crashes = nil
	return int64(n), nil
}

func (r *memoryRepo) HealthCheck(context.Context) error { return nil }

func TestIngestionService_IngestDirectory(t *testing.T) {
	dir := t.TempDir()
	testkit.WriteCSV(t, dir, "a.csv", testkit.Mixed())
	testkit.WriteCSV(t, dir, "b.csv", testkit.Repeat(testkit.Base(), 2))
	broken := filepath.Join(dir, "c.csv")
	testkit.WriteCSV(t, dir, "c.csv", nil)

	repo := &memoryRepo{}
	svc := NewIngestionService(repo, logging.NewNopLogger(), newMetrics())

	result, err := svc.IngestDirectory(context.Background(), dir, 3)
	require.NoError(t, err)

	assert.Equal(t, 3, result.TotalFiles)
	assert.Equal(t, len(testkit.Mixed())+2, result.TotalRecords)
	// b.csv reuses the crash-0 and crash-1 IDs of its own file only
	assert.Equal(t, len(testkit.Mixed())+2, result.SuccessfulRecords)
	assert.Zero(t, result.FailedRecords)
	require.Len(t, result.Errors, 1)
	assert.Contains(t, result.Errors[0], broken)
	assert.Equal(t, []int{3, 3, 2, 2}, repo.batches)

	first := repo.crashes[5]
	assert.Equal(t, "PHYSICAL CONDITION OF DRIVER", first.PrimaryCause)
	require.NotNil(t, first.CrashMonth)
	assert.Equal(t, 12, *first.CrashMonth)
}

func TestIngestionService_InsertFailureAborts(t *testing.T) {
	dir := t.TempDir()
	path := testkit.WriteCSV(t, dir, "a.csv", testkit.Mixed())

	repo := &memoryRepo{failOn: 2}
	svc := NewIngestionService(repo, logging.NewNopLogger(), newMetrics())

	_, err := svc.IngestFiles(context.Background(), []string{path}, 3)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "connection reset")

	_, err = svc.IngestFiles(context.Background(), []string{path}, 0)
	assert.Error(t, err)
}

func TestIngestionService_EmptyDirectory(t *testing.T) {
	svc := NewIngestionService(&memoryRepo{}, logging.NewNopLogger(), newMetrics())
	_, err := svc.IngestDirectory(context.Background(), t.TempDir(), 10)
	assert.Error(t, err)
}
