package database

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/jmoiron/sqlx"
	_ "github.com/lib/pq"

	"crash-dashboard/pkg/logging"
	"crash-dashboard/pkg/metrics"
)

// Config holds database connection configuration
type Config struct {
	DSN             string
	Database        string
	MaxOpenConns    int
	MaxIdleConns    int
	ConnMaxLifetime time.Duration
	ConnMaxIdleTime time.Duration
	// PoolInterval is how often pool stats are exported; zero disables it.
	PoolInterval time.Duration
}

// PostgresDB wraps sqlx.DB with query timing, error counting and pool
// monitoring.
type PostgresDB struct {
	db      *sqlx.DB
	logger  *logging.StructuredLogger
	metrics *metrics.Collector
	config  Config

	stop     chan struct{}
	stopOnce sync.Once
}

// NewPostgresDB opens and pings a PostgreSQL connection
func NewPostgresDB(ctx context.Context, cfg Config, logger *logging.StructuredLogger, metricsCollector *metrics.Collector) (*PostgresDB, error) {
	db, err := sqlx.Open("postgres", cfg.DSN)
	if err != nil {
		return nil, fmt.Errorf("failed to open database connection: %w", err)
	}

	db.SetMaxOpenConns(cfg.MaxOpenConns)
	db.SetMaxIdleConns(cfg.MaxIdleConns)
	db.SetConnMaxLifetime(cfg.ConnMaxLifetime)
	db.SetConnMaxIdleTime(cfg.ConnMaxIdleTime)

	pingCtx, cancel := context.WithTimeout(ctx, 5*time.Second)
	defer cancel()

	if err := db.PingContext(pingCtx); err != nil {
		db.Close()
		return nil, fmt.Errorf("failed to ping database: %w", err)
	}

	logger.Info(ctx, "[DB_INIT] PostgreSQL connection established", logging.Fields{
		"database":          cfg.Database,
		"max_open_conns":    cfg.MaxOpenConns,
		"max_idle_conns":    cfg.MaxIdleConns,
		"conn_max_lifetime": cfg.ConnMaxLifetime.String(),
	})

	p := &PostgresDB{
		db:      db,
		logger:  logger,
		metrics: metricsCollector,
		config:  cfg,
		stop:    make(chan struct{}),
	}
	if cfg.PoolInterval > 0 {
		go p.monitorConnectionPool(cfg.PoolInterval)
	}
	return p, nil
}

// Close stops the pool monitor and closes the connection
func (p *PostgresDB) Close() error {
	p.stopOnce.Do(func() { close(p.stop) })
	p.logger.Info(context.Background(), "[DB_CLOSE] Closing database connection", logging.Fields{
		"database": p.config.Database,
	})
	return p.db.Close()
}

// instrument times fn under queryType and counts and logs its failure under
// errClass. sql.ErrNoRows is a normal outcome, not a failure.
func (p *PostgresDB) instrument(ctx context.Context, queryType, errClass string, fn func() error) error {
	start := time.Now()
	err := fn()
	elapsed := time.Since(start)
	p.metrics.DBQueryDuration.WithLabelValues(queryType).Observe(elapsed.Seconds())

	if err != nil && !errors.Is(err, sql.ErrNoRows) {
		p.metrics.RecordDBError(errClass)
		p.logger.Error(ctx, "[DB_QUERY_ERROR] Query failed", logging.Fields{
			"query_type":  queryType,
			"error_class": errClass,
			"duration_ms": elapsed.Milliseconds(),
		}, err)
		return err
	}
	p.logger.Debug(ctx, "[DB_QUERY] Query executed", logging.Fields{
		"query_type":  queryType,
		"duration_ms": elapsed.Milliseconds(),
	})
	return err
}

// ExecContext runs a statement that returns no rows.
func (p *PostgresDB) ExecContext(ctx context.Context, queryType, query string, args ...interface{}) (sql.Result, error) {
	var result sql.Result
	err := p.instrument(ctx, queryType, "exec_error", func() (err error) {
		result, err = p.db.ExecContext(ctx, query, args...)
		return err
	})
	return result, err
}

// GetContext scans a single row into dest.
func (p *PostgresDB) GetContext(ctx context.Context, queryType string, dest interface{}, query string, args ...interface{}) error {
	return p.instrument(ctx, queryType, "get_error", func() error {
		return p.db.GetContext(ctx, dest, query, args...)
	})
}

// SelectContext scans all rows into the slice dest.
func (p *PostgresDB) SelectContext(ctx context.Context, queryType string, dest interface{}, query string, args ...interface{}) error {
	return p.instrument(ctx, queryType, "select_error", func() error {
		return p.db.SelectContext(ctx, dest, query, args...)
	})
}

// BeginTx begins a read-committed transaction
func (p *PostgresDB) BeginTx(ctx context.Context) (*sqlx.Tx, error) {
	tx, err := p.db.BeginTxx(ctx, &sql.TxOptions{Isolation: sql.LevelReadCommitted})
	if err != nil {
		p.metrics.RecordDBError("transaction_begin_error")
		p.logger.Error(ctx, "[DB_TX_ERROR] Failed to begin transaction", logging.Fields{}, err)
		return nil, err
	}
	return tx, nil
}

const poolWarnRatio = 0.8

// monitorConnectionPool exports pool stats until Close is called.
func (p *PostgresDB) monitorConnectionPool(interval time.Duration) {
	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	for {
		select {
		case <-p.stop:
			return
		case <-ticker.C:
		}

		stats := p.db.Stats()
		p.metrics.UpdateDBConnectionPool(stats.InUse, stats.Idle, stats.OpenConnections)

		if p.config.MaxOpenConns <= 0 {
			continue
		}
		if busy := float64(stats.InUse) / float64(p.config.MaxOpenConns); busy > poolWarnRatio {
			p.logger.Warn(context.Background(), "[DB_POOL_WARNING] Connection pool nearly exhausted", logging.Fields{
				"in_use":        stats.InUse,
				"idle":          stats.Idle,
				"max_open":      p.config.MaxOpenConns,
				"wait_count":    stats.WaitCount,
				"wait_duration": stats.WaitDuration.String(),
			})
		}
	}
}

// HealthCheck pings the database
func (p *PostgresDB) HealthCheck(ctx context.Context) error {
	pingCtx, cancel := context.WithTimeout(ctx, 2*time.Second)
	defer cancel()

	if err := p.db.PingContext(pingCtx); err != nil {
		return fmt.Errorf("database health check failed: %w", err)
	}
	return nil
}
