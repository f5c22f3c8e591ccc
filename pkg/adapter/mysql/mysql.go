// Package mysql implements the MySQL and MariaDB adapter on database/sql
// with the go-sql-driver. Every selected column is cast to CHAR so rows
// stream as strings regardless of declared types.
package mysql

import (
	"context"
	"database/sql"
	stderrors "errors"
	"fmt"
	"net/url"
	"os"
	"strings"

	mysqldrv "github.com/go-sql-driver/mysql"
	"go.uber.org/zap"

	"github.com/ajitpratap0/sleuth/pkg/adapter/base"
	"github.com/ajitpratap0/sleuth/pkg/adapter/core"
	"github.com/ajitpratap0/sleuth/pkg/config"
	"github.com/ajitpratap0/sleuth/pkg/errors"
	"github.com/ajitpratap0/sleuth/pkg/logger"
)

// systemSchemas are MySQL's own catalogs, never scanned.
var systemSchemas = map[string]bool{
	"information_schema": true,
	"mysql":              true,
	"performance_schema": true,
	"sys":                true,
}

// Adapter scans MySQL and MariaDB servers. When the scan URL names a
// database only that database is enumerated; otherwise every readable
// non-system schema is.
type Adapter struct {
	cfg      *config.ScanConfig
	db       *sql.DB
	database string
	log      *zap.Logger
}

// New builds a MySQL adapter from the scan configuration.
func New(cfg *config.ScanConfig) (core.Adapter, error) {
	return &Adapter{
		cfg: cfg,
		log: logger.Get().With(zap.String("adapter", "mysql")),
	}, nil
}

// Name returns the registry scheme.
func (a *Adapter) Name() string { return "mysql" }

// Connect translates the scan URL into a driver DSN, opens the pool, and
// pings. The password falls back to the mysql_password credential and the
// MYSQL_PASSWORD environment variable when the URL omits it.
func (a *Adapter) Connect(ctx context.Context) error {
	dsn, database, err := buildDSN(a.cfg)
	if err != nil {
		return err
	}
	a.database = database

	db, err := base.OpenDB("mysql", dsn, a.cfg.Pool)
	if err != nil {
		return err
	}
	if err := db.PingContext(ctx); err != nil {
		db.Close()
		return classify(err, "ping")
	}

	a.db = db
	a.log.Info("connected", zap.String("database", database))
	return nil
}

func buildDSN(cfg *config.ScanConfig) (dsn, database string, err error) {
	u, err := url.Parse(cfg.URL)
	if err != nil {
		return "", "", errors.Wrap(err, errors.ErrorTypeConfig, "invalid mysql url")
	}

	dc := mysqldrv.NewConfig()
	dc.Net = "tcp"
	dc.Addr = u.Host
	if u.Port() == "" {
		dc.Addr = u.Host + ":3306"
	}
	if u.User != nil {
		dc.User = u.User.Username()
		dc.Passwd, _ = u.User.Password()
	}
	if dc.Passwd == "" {
		dc.Passwd = cfg.Security.Credential("mysql_password", os.Getenv("MYSQL_PASSWORD"))
	}
	dc.DBName = strings.Trim(u.Path, "/")
	dc.Timeout = cfg.Timeouts.Connection
	if u.Query().Get("tls") != "" {
		dc.TLSConfig = u.Query().Get("tls")
	}
	return dc.FormatDSN(), dc.DBName, nil
}

// Disconnect closes the pool. Safe to call without a prior Connect.
func (a *Adapter) Disconnect(ctx context.Context) error {
	if a.db != nil {
		err := a.db.Close()
		a.db = nil
		return err
	}
	return nil
}

// ListUnits enumerates base tables as "database.table".
func (a *Adapter) ListUnits(ctx context.Context) ([]string, error) {
	query := `SELECT table_schema, table_name FROM information_schema.tables
		WHERE table_type = 'BASE TABLE'`
	args := []interface{}{}
	if a.database != "" {
		query += " AND table_schema = ?"
		args = append(args, a.database)
	}
	query += " ORDER BY table_schema, table_name"

	rows, err := base.QueryStrings(ctx, a.db, query, args...)
	if err != nil {
		return nil, classify(err, "list tables")
	}

	var units []string
	for _, row := range rows {
		schema, table := row[0], row[1]
		if systemSchemas[strings.ToLower(schema)] || a.skipSchema(schema) {
			continue
		}
		units = append(units, schema+"."+table)
	}
	return units, nil
}

func (a *Adapter) skipSchema(schema string) bool {
	if ns := a.cfg.Filters.Namespace; ns != "" && !strings.EqualFold(ns, schema) {
		return true
	}
	return a.cfg.Filters.SkipsNamespace(schema)
}

// Columns reports the unit's declared columns in ordinal order.
func (a *Adapter) Columns(ctx context.Context, unit string) ([]core.Column, error) {
	schema, table := splitUnit(unit, a.database)

	rows, err := base.QueryStrings(ctx, a.db,
		`SELECT column_name, data_type FROM information_schema.columns
		WHERE table_schema = ? AND table_name = ? ORDER BY ordinal_position`,
		schema, table)
	if err != nil {
		return nil, classify(err, "describe "+unit)
	}

	columns := make([]core.Column, 0, len(rows))
	for _, row := range rows {
		columns = append(columns, core.Column{Name: row[0], Type: row[1]})
	}
	return columns, nil
}

// OpenCursor starts a streaming read over exactly the selected columns.
func (a *Adapter) OpenCursor(ctx context.Context, unit string, columns []core.Column) (core.Cursor, error) {
	rows, err := a.db.QueryContext(ctx, selectQuery(unit, columns))
	if err != nil {
		return nil, classify(err, "read "+unit)
	}
	return &cursor{RowsCursor: base.NewRowsCursor(rows, len(columns)), unit: unit}, nil
}

func selectQuery(unit string, columns []core.Column) string {
	cols := make([]string, len(columns))
	for i, c := range columns {
		cols[i] = fmt.Sprintf("CAST(%s AS CHAR)", base.QuoteIdent(c.Name, "`"))
	}
	return fmt.Sprintf("SELECT %s FROM %s", strings.Join(cols, ", "), base.QuoteUnit(unit, "`"))
}

func splitUnit(unit, fallback string) (schema, table string) {
	if i := strings.IndexByte(unit, '.'); i >= 0 {
		return unit[:i], unit[i+1:]
	}
	return fallback, unit
}

// cursor reclassifies driver errors from the shared rows cursor so lost
// connections retry instead of failing the unit.
type cursor struct {
	*base.RowsCursor
	unit string
}

func (c *cursor) Next(ctx context.Context, n int) ([][]string, error) {
	batch, err := c.RowsCursor.Next(ctx, n)
	if err != nil {
		return batch, classify(err, "read "+c.unit)
	}
	return batch, nil
}

// classify maps driver error numbers onto the engine's error taxonomy.
func classify(err error, operation string) error {
	if err == nil {
		return nil
	}

	var myErr *mysqldrv.MySQLError
	if stderrors.As(err, &myErr) {
		switch myErr.Number {
		case 1045: // access denied
			return errors.Wrap(err, errors.ErrorTypeAuthentication, operation+": authentication failed")
		case 1049: // unknown database
			return errors.Wrap(err, errors.ErrorTypeConfig, operation+": database does not exist")
		case 1040, 1203: // too many connections
			return errors.Wrap(err, errors.ErrorTypeConnection, operation+": connection limit reached")
		case 1044, 1142: // database or table access denied
			return errors.Wrap(err, errors.ErrorTypePermission, operation+": permission denied")
		case 1146: // no such table
			return errors.Wrap(err, errors.ErrorTypeUnit, operation+": table vanished")
		case 1317, 3024: // interrupted, max execution time
			return errors.Wrap(err, errors.ErrorTypeTimeout, operation+": query interrupted")
		default:
			return errors.Wrap(err, errors.ErrorTypeQuery, operation+" failed")
		}
	}
	if stderrors.Is(err, mysqldrv.ErrInvalidConn) {
		return errors.Wrap(err, errors.ErrorTypeConnection, operation+": connection lost")
	}

	return base.ClassifyNet(err, operation)
}
