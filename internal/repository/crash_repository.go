package repository

import (
	"context"
	"fmt"
	"strings"
	"time"

	"crash-dashboard/internal/models"
	"crash-dashboard/pkg/database"
	"crash-dashboard/pkg/logging"
	"crash-dashboard/pkg/metrics"
)

// CrashRepository provides data access for persisted crash rows
type CrashRepository interface {
	CreateCrashesBatch(ctx context.Context, crashes []*models.CrashRecord) error
	ListCrashes(ctx context.Context, filter CrashFilter) ([]*models.CrashRecord, error)
	CountCrashes(ctx context.Context, filter CrashFilter) (int, error)
	DeleteAll(ctx context.Context) (int64, error)
	HealthCheck(ctx context.Context) error
}

// CrashFilter narrows ListCrashes and CountCrashes. A Limit of zero means no limit.
type CrashFilter struct {
	PrimaryCause *string
	CrashType    *string
	Limit        int
	Offset       int
}

const crashColumns = `crash_record_id, prim_contributory_cause, sec_contributory_cause,
	weather_condition, lighting_condition, first_crash_type, damage,
	crash_month, crash_day_of_week, crash_hour,
	injuries_fatal, injuries_incapacitating, injuries_non_incapacitating, injuries_no_indication,
	created_at`

type crashRepository struct {
	db      *database.PostgresDB
	logger  *logging.StructuredLogger
	metrics *metrics.Collector
}

// NewCrashRepository creates a Postgres-backed crash repository
func NewCrashRepository(db *database.PostgresDB, logger *logging.StructuredLogger, metricsCollector *metrics.Collector) CrashRepository {
	return &crashRepository{
		db:      db,
		logger:  logger,
		metrics: metricsCollector,
	}
}

// CreateCrashesBatch upserts crashes in a single transaction
func (r *crashRepository) CreateCrashesBatch(ctx context.Context, crashes []*models.CrashRecord) error {
	if len(crashes) == 0 {
		return nil
	}

	timer := time.Now()
	defer func() {
		r.metrics.IngestionBatchSize.Observe(float64(len(crashes)))
		r.logger.Debug(ctx, "[REPO_BATCH_INSERT] Batch insert completed", logging.Fields{
			"count":       len(crashes),
			"duration_ms": time.Since(timer).Milliseconds(),
		})
	}()

	tx, err := r.db.BeginTx(ctx)
	if err != nil {
		return fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer tx.Rollback()

	stmt, err := tx.PrepareContext(ctx, `
		INSERT INTO crashes (`+crashColumns+`)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12, $13, $14, $15)
		ON CONFLICT (crash_record_id) DO UPDATE SET
			prim_contributory_cause = EXCLUDED.prim_contributory_cause,
			sec_contributory_cause = EXCLUDED.sec_contributory_cause,
			weather_condition = EXCLUDED.weather_condition,
			lighting_condition = EXCLUDED.lighting_condition,
			first_crash_type = EXCLUDED.first_crash_type,
			damage = EXCLUDED.damage,
			crash_month = EXCLUDED.crash_month,
			crash_day_of_week = EXCLUDED.crash_day_of_week,
			crash_hour = EXCLUDED.crash_hour,
			injuries_fatal = EXCLUDED.injuries_fatal,
			injuries_incapacitating = EXCLUDED.injuries_incapacitating,
			injuries_non_incapacitating = EXCLUDED.injuries_non_incapacitating,
			injuries_no_indication = EXCLUDED.injuries_no_indication
	`)
	if err != nil {
		return fmt.Errorf("failed to prepare statement: %w", err)
	}
	defer stmt.Close()

	for _, c := range crashes {
		_, err := stmt.ExecContext(ctx,
			c.CrashRecordID,
			c.PrimaryCause,
			c.SecondaryCause,
			c.WeatherCondition,
			c.LightingCondition,
			c.FirstCrashType,
			c.Damage,
			c.CrashMonth,
			c.CrashDayOfWeek,
			c.CrashHour,
			c.InjuriesFatal,
			c.InjuriesIncapacitating,
			c.InjuriesNonIncapacitating,
			c.InjuriesNoIndication,
			c.CreatedAt,
		)
		if err != nil {
			return fmt.Errorf("failed to insert crash %s: %w", c.CrashRecordID, err)
		}
	}

	if err := tx.Commit(); err != nil {
		return fmt.Errorf("failed to commit transaction: %w", err)
	}

	r.metrics.IngestionRecordsTotal.Add(float64(len(crashes)))
	return nil
}

// ListCrashes returns crashes in insertion order
func (r *crashRepository) ListCrashes(ctx context.Context, filter CrashFilter) ([]*models.CrashRecord, error) {
	query, args := listQuery(filter)

	var crashes []*models.CrashRecord
	if err := r.db.SelectContext(ctx, "list_crashes", &crashes, query, args...); err != nil {
		return nil, fmt.Errorf("failed to list crashes: %w", err)
	}
	return crashes, nil
}

// CountCrashes returns the number of crashes matching filter
func (r *crashRepository) CountCrashes(ctx context.Context, filter CrashFilter) (int, error) {
	where, args := whereClause(filter)

	var total int
	if err := r.db.GetContext(ctx, "count_crashes", &total, "SELECT COUNT(*) FROM crashes"+where, args...); err != nil {
		return 0, fmt.Errorf("failed to count crashes: %w", err)
	}
	return total, nil
}

// DeleteAll empties the crashes table
func (r *crashRepository) DeleteAll(ctx context.Context) (int64, error) {
	result, err := r.db.ExecContext(ctx, "delete_crashes", "DELETE FROM crashes")
	if err != nil {
		return 0, fmt.Errorf("failed to delete crashes: %w", err)
	}
	n, err := result.RowsAffected()
	if err != nil {
		return 0, fmt.Errorf("failed to read deleted count: %w", err)
	}
	return n, nil
}

// HealthCheck performs a repository health check
func (r *crashRepository) HealthCheck(ctx context.Context) error {
	return r.db.HealthCheck(ctx)
}

func whereClause(filter CrashFilter) (string, []interface{}) {
	var conds []string
	var args []interface{}

	if filter.PrimaryCause != nil {
		args = append(args, *filter.PrimaryCause)
		conds = append(conds, fmt.Sprintf("prim_contributory_cause = $%d", len(args)))
	}
	if filter.CrashType != nil {
		args = append(args, *filter.CrashType)
		conds = append(conds, fmt.Sprintf("first_crash_type = $%d", len(args)))
	}
	if len(conds) == 0 {
		return "", nil
	}
	return " WHERE " + strings.Join(conds, " AND "), args
}

func listQuery(filter CrashFilter) (string, []interface{}) {
	where, args := whereClause(filter)
	query := "SELECT id, " + crashColumns + " FROM crashes" + where + " ORDER BY id"

	if filter.Limit > 0 {
		args = append(args, filter.Limit)
		query += fmt.Sprintf(" LIMIT $%d", len(args))
	}
	if filter.Offset > 0 {
		args = append(args, filter.Offset)
		query += fmt.Sprintf(" OFFSET $%d", len(args))
	}
	return query, args
}
