// Package postgres implements the PostgreSQL adapter on a pgx connection
// pool. Tables stream through server-side cursors; pool sizing, timeouts,
// and namespace filters all come from the scan configuration.
package postgres

import (
	"context"
	stderrors "errors"
	"fmt"
	"strings"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/jackc/pgx/v5/pgxpool"
	"go.uber.org/zap"

	"github.com/ajitpratap0/sleuth/pkg/adapter/base"
	"github.com/ajitpratap0/sleuth/pkg/adapter/core"
	"github.com/ajitpratap0/sleuth/pkg/config"
	"github.com/ajitpratap0/sleuth/pkg/errors"
	"github.com/ajitpratap0/sleuth/pkg/logger"
)

// systemSchemas are never scanned regardless of filters.
var systemSchemas = []string{"pg_catalog", "information_schema", "pg_toast"}

// Adapter scans PostgreSQL databases. One pgx pool serves all concurrent
// units; each open cursor holds one pooled connection for its lifetime.
type Adapter struct {
	cfg  *config.ScanConfig
	pool *pgxpool.Pool
	log  *zap.Logger
}

// New builds a PostgreSQL adapter from the scan configuration.
func New(cfg *config.ScanConfig) (core.Adapter, error) {
	return &Adapter{
		cfg: cfg,
		log: logger.Get().With(zap.String("adapter", "postgres")),
	}, nil
}

// Name returns the registry scheme.
func (a *Adapter) Name() string { return "postgres" }

// Connect parses the scan URL into pool configuration and opens the pool.
// A ping follows so credential and reachability failures surface here,
// classified, instead of on the first unit.
func (a *Adapter) Connect(ctx context.Context) error {
	poolCfg, err := pgxpool.ParseConfig(a.cfg.URL)
	if err != nil {
		return errors.Wrap(err, errors.ErrorTypeConfig, "invalid postgres url")
	}

	poolCfg.MinConns = int32(a.cfg.Pool.Min)
	poolCfg.MaxConns = int32(a.cfg.Pool.Max)
	poolCfg.MaxConnLifetime = time.Hour
	poolCfg.MaxConnIdleTime = 30 * time.Minute
	poolCfg.HealthCheckPeriod = time.Minute
	poolCfg.ConnConfig.ConnectTimeout = a.cfg.Timeouts.Connection

	pool, err := pgxpool.NewWithConfig(ctx, poolCfg)
	if err != nil {
		return classify(err, "connect")
	}
	if err := pool.Ping(ctx); err != nil {
		pool.Close()
		return classify(err, "ping")
	}

	a.pool = pool
	a.log.Info("connected",
		zap.String("host", poolCfg.ConnConfig.Host),
		zap.String("database", poolCfg.ConnConfig.Database),
		zap.Int32("pool_min", poolCfg.MinConns),
		zap.Int32("pool_max", poolCfg.MaxConns))
	return nil
}

// Disconnect closes the pool. Safe to call without a prior Connect.
func (a *Adapter) Disconnect(ctx context.Context) error {
	if a.pool != nil {
		a.pool.Close()
		a.pool = nil
	}
	return nil
}

const listUnitsQuery = `
SELECT table_schema, table_name
FROM information_schema.tables
WHERE table_type = 'BASE TABLE'
  AND table_schema NOT IN ('pg_catalog', 'information_schema', 'pg_toast')
  AND has_table_privilege(quote_ident(table_schema) || '.' || quote_ident(table_name), 'SELECT')
ORDER BY table_schema, table_name`

// ListUnits enumerates readable base tables as "schema.table". Tables the
// role cannot SELECT are filtered in the catalog query rather than failing
// one by one mid-scan.
func (a *Adapter) ListUnits(ctx context.Context) ([]string, error) {
	rows, err := a.pool.Query(ctx, listUnitsQuery)
	if err != nil {
		return nil, classify(err, "list tables")
	}
	defer rows.Close()

	var units []string
	for rows.Next() {
		var schema, table string
		if err := rows.Scan(&schema, &table); err != nil {
			return nil, classify(err, "list tables")
		}
		if a.skipSchema(schema) {
			continue
		}
		units = append(units, schema+"."+table)
	}
	if err := rows.Err(); err != nil {
		return nil, classify(err, "list tables")
	}
	return units, nil
}

func (a *Adapter) skipSchema(schema string) bool {
	if ns := a.cfg.Filters.Namespace; ns != "" && !strings.EqualFold(ns, schema) {
		return true
	}
	return a.cfg.Filters.SkipsNamespace(schema)
}

const columnsQuery = `
SELECT column_name, data_type
FROM information_schema.columns
WHERE table_schema = $1 AND table_name = $2
ORDER BY ordinal_position`

// Columns reports the unit's declared columns in ordinal order.
func (a *Adapter) Columns(ctx context.Context, unit string) ([]core.Column, error) {
	schema, table := splitUnit(unit)

	rows, err := a.pool.Query(ctx, columnsQuery, schema, table)
	if err != nil {
		return nil, classify(err, "describe "+unit)
	}
	defer rows.Close()

	var columns []core.Column
	for rows.Next() {
		var col core.Column
		if err := rows.Scan(&col.Name, &col.Type); err != nil {
			return nil, classify(err, "describe "+unit)
		}
		columns = append(columns, col)
	}
	if err := rows.Err(); err != nil {
		return nil, classify(err, "describe "+unit)
	}
	return columns, nil
}

// OpenCursor starts a streaming read over exactly the selected columns.
// The cursor pins one pooled connection until Close.
func (a *Adapter) OpenCursor(ctx context.Context, unit string, columns []core.Column) (core.Cursor, error) {
	conn, err := a.pool.Acquire(ctx)
	if err != nil {
		return nil, classify(err, "acquire connection")
	}

	rows, err := conn.Query(ctx, selectQuery(unit, columns))
	if err != nil {
		conn.Release()
		return nil, classify(err, "read "+unit)
	}
	return &cursor{conn: conn, rows: rows, width: len(columns)}, nil
}

// selectQuery casts every column to text so the cursor scans uniformly,
// whatever the declared types are.
func selectQuery(unit string, columns []core.Column) string {
	cols := make([]string, len(columns))
	for i, c := range columns {
		cols[i] = base.QuoteIdent(c.Name, `"`) + "::text"
	}
	return fmt.Sprintf("SELECT %s FROM %s", strings.Join(cols, ", "), base.QuoteUnit(unit, `"`))
}

func splitUnit(unit string) (schema, table string) {
	if i := strings.IndexByte(unit, '.'); i >= 0 {
		return unit[:i], unit[i+1:]
	}
	return "public", unit
}

// cursor adapts pgx.Rows to the engine's batch interface. NULLs become
// empty strings, which the matcher already skips.
type cursor struct {
	conn  *pgxpool.Conn
	rows  pgx.Rows
	width int
}

func (c *cursor) Next(ctx context.Context, n int) ([][]string, error) {
	if err := ctx.Err(); err != nil {
		return nil, base.ClassifyNet(err, "fetch batch")
	}

	batch := make([][]string, 0, n)
	for len(batch) < n && c.rows.Next() {
		ptrs := make([]*string, c.width)
		dest := make([]any, c.width)
		for i := range ptrs {
			dest[i] = &ptrs[i]
		}
		if err := c.rows.Scan(dest...); err != nil {
			return nil, classify(err, "scan row")
		}

		row := make([]string, c.width)
		for i, p := range ptrs {
			if p != nil {
				row[i] = *p
			}
		}
		batch = append(batch, row)
	}

	if len(batch) < n {
		if err := c.rows.Err(); err != nil {
			return nil, classify(err, "fetch batch")
		}
	}
	return batch, nil
}

func (c *cursor) Close() error {
	c.rows.Close()
	c.conn.Release()
	return nil
}

// classify maps SQLSTATE classes onto the engine's error taxonomy. Bad
// credentials and missing databases abort the run, connection-class
// failures retry, permission and catalog errors fail only their unit.
func classify(err error, operation string) error {
	if err == nil {
		return nil
	}

	var pgErr *pgconn.PgError
	if stderrors.As(err, &pgErr) {
		switch {
		case pgErr.Code == "28000" || pgErr.Code == "28P01":
			return errors.Wrap(err, errors.ErrorTypeAuthentication, operation+": authentication failed")
		case pgErr.Code == "3D000":
			return errors.Wrap(err, errors.ErrorTypeConfig, operation+": database does not exist")
		case pgErr.Code == "57P03":
			return errors.Wrap(err, errors.ErrorTypeConnection, operation+": server starting up")
		case pgErr.Code == "53300" || pgErr.Code == "57P01" || pgErr.Code == "57P02":
			return errors.Wrap(err, errors.ErrorTypeConnection, operation+": server dropped the connection")
		case strings.HasPrefix(pgErr.Code, "08"):
			return errors.Wrap(err, errors.ErrorTypeConnection, operation+": connection failure")
		case pgErr.Code == "42501":
			return errors.Wrap(err, errors.ErrorTypePermission, operation+": permission denied")
		case pgErr.Code == "42P01":
			return errors.Wrap(err, errors.ErrorTypeUnit, operation+": table vanished")
		case strings.HasPrefix(pgErr.Code, "57"):
			return errors.Wrap(err, errors.ErrorTypeTimeout, operation+": statement cancelled")
		default:
			return errors.Wrap(err, errors.ErrorTypeQuery, operation+" failed")
		}
	}

	return base.ClassifyNet(err, operation)
}
