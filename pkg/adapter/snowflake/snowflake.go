// Package snowflake implements the Snowflake adapter on database/sql with
// the gosnowflake driver. The scan scopes to one database and schema per
// run, the way warehouse credentials are usually issued.
package snowflake

import (
	"context"
	"database/sql"
	stderrors "errors"
	"fmt"
	"net/url"
	"strings"

	sf "github.com/snowflakedb/gosnowflake"
	"go.uber.org/zap"

	"github.com/ajitpratap0/sleuth/pkg/adapter/base"
	"github.com/ajitpratap0/sleuth/pkg/adapter/core"
	"github.com/ajitpratap0/sleuth/pkg/config"
	"github.com/ajitpratap0/sleuth/pkg/errors"
	"github.com/ajitpratap0/sleuth/pkg/logger"
)

// Adapter scans Snowflake warehouses. Units are "SCHEMA.TABLE" within the
// database and schema the scan URL names.
type Adapter struct {
	cfg    *config.ScanConfig
	source *config.SnowflakeConfig
	db     *sql.DB
	log    *zap.Logger
}

// New builds a Snowflake adapter from the scan configuration.
func New(cfg *config.ScanConfig) (core.Adapter, error) {
	u, err := url.Parse(cfg.URL)
	if err != nil {
		return nil, errors.Wrap(err, errors.ErrorTypeConfig, "invalid snowflake url")
	}
	source, err := config.SnowflakeFromURL(u, &cfg.Security)
	if err != nil {
		return nil, errors.Wrap(err, errors.ErrorTypeConfig, "invalid snowflake url")
	}
	return &Adapter{
		cfg:    cfg,
		source: source,
		log:    logger.Get().With(zap.String("adapter", "snowflake")),
	}, nil
}

// Name returns the registry scheme.
func (a *Adapter) Name() string { return "snowflake" }

// Connect opens the driver pool and pings. OCSP fails open and the session
// stays alive so long-running scans do not lose their token mid-unit.
func (a *Adapter) Connect(ctx context.Context) error {
	db, err := base.OpenDB("snowflake", buildDSN(a.source), a.cfg.Pool)
	if err != nil {
		return err
	}
	if err := db.PingContext(ctx); err != nil {
		db.Close()
		return classify(err, "ping")
	}

	a.db = db
	a.log.Info("connected",
		zap.String("account", a.source.Account),
		zap.String("database", a.source.Database),
		zap.String("schema", a.source.Schema))
	return nil
}

// buildDSN assembles the driver connection string:
// user:pass@account/database/schema?warehouse=WH&role=ROLE
func buildDSN(s *config.SnowflakeConfig) string {
	dsn := fmt.Sprintf("%s:%s@%s/%s/%s", s.User, s.Password, s.Account, s.Database, s.Schema)

	params := []string{}
	if s.Warehouse != "" {
		params = append(params, "warehouse="+s.Warehouse)
	}
	if s.Role != "" {
		params = append(params, "role="+s.Role)
	}
	params = append(params, "ocspFailOpen=true")
	params = append(params, "clientSessionKeepAlive=true")

	return dsn + "?" + strings.Join(params, "&")
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

// ListUnits enumerates base tables in the session schema as "SCHEMA.TABLE".
func (a *Adapter) ListUnits(ctx context.Context) ([]string, error) {
	rows, err := base.QueryStrings(ctx, a.db,
		`SELECT table_schema, table_name FROM information_schema.tables
		WHERE table_type = 'BASE TABLE' AND table_schema = ?
		ORDER BY table_name`, a.source.Schema)
	if err != nil {
		return nil, classify(err, "list tables")
	}

	var units []string
	for _, row := range rows {
		schema, table := row[0], row[1]
		if a.cfg.Filters.SkipsNamespace(schema) {
			continue
		}
		units = append(units, schema+"."+table)
	}
	return units, nil
}

// Columns reports the unit's declared columns in ordinal order.
func (a *Adapter) Columns(ctx context.Context, unit string) ([]core.Column, error) {
	schema, table := splitUnit(unit, a.source.Schema)

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
	return base.NewRowsCursor(rows, len(columns)), nil
}

// selectQuery casts every column to VARCHAR. Identifiers are quoted, so
// case-sensitive names survive Snowflake's upper-folding.
func selectQuery(unit string, columns []core.Column) string {
	cols := make([]string, len(columns))
	for i, c := range columns {
		cols[i] = base.QuoteIdent(c.Name, `"`) + "::VARCHAR"
	}
	return fmt.Sprintf("SELECT %s FROM %s", strings.Join(cols, ", "), base.QuoteUnit(unit, `"`))
}

func splitUnit(unit, fallback string) (schema, table string) {
	if i := strings.IndexByte(unit, '.'); i >= 0 {
		return unit[:i], unit[i+1:]
	}
	return fallback, unit
}

// classify maps driver error numbers onto the engine's error taxonomy.
func classify(err error, operation string) error {
	if err == nil {
		return nil
	}

	var sfErr *sf.SnowflakeError
	if stderrors.As(err, &sfErr) {
		switch sfErr.Number {
		case 390100, 390102, 390114, 390144: // bad credentials, expired tokens
			return errors.Wrap(err, errors.ErrorTypeAuthentication, operation+": authentication failed")
		case 606: // no active warehouse
			return errors.Wrap(err, errors.ErrorTypeConfig, operation+": no active warehouse")
		case 2003: // object does not exist or not authorized
			return errors.Wrap(err, errors.ErrorTypeUnit, operation+": object missing or not authorized")
		case 604: // statement canceled
			return errors.Wrap(err, errors.ErrorTypeTimeout, operation+": statement cancelled")
		default:
			return errors.Wrap(err, errors.ErrorTypeQuery, operation+" failed")
		}
	}

	return base.ClassifyNet(err, operation)
}
