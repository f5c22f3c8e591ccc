// Package sqlite implements the SQLite adapter over a read-only database
// handle. Useful for scanning application databases, exports, and backups
// without a server in the picture.
package sqlite

import (
	"context"
	"database/sql"
	"fmt"
	"net/url"
	"os"
	"strings"

	_ "github.com/mattn/go-sqlite3"
	"go.uber.org/zap"

	"github.com/ajitpratap0/sleuth/pkg/adapter/base"
	"github.com/ajitpratap0/sleuth/pkg/adapter/core"
	"github.com/ajitpratap0/sleuth/pkg/config"
	"github.com/ajitpratap0/sleuth/pkg/errors"
	"github.com/ajitpratap0/sleuth/pkg/logger"
)

// Adapter scans a single SQLite database file. The handle opens in
// read-only mode so a scan can never mutate the target.
type Adapter struct {
	cfg  *config.ScanConfig
	db   *sql.DB
	path string
	log  *zap.Logger
}

// New builds a SQLite adapter from the scan configuration.
func New(cfg *config.ScanConfig) (core.Adapter, error) {
	return &Adapter{
		cfg: cfg,
		log: logger.Get().With(zap.String("adapter", "sqlite")),
	}, nil
}

// Name returns the registry scheme.
func (a *Adapter) Name() string { return "sqlite" }

// Connect resolves the database path from the scan URL and opens it
// read-only. A missing file fails here rather than as an empty scan.
func (a *Adapter) Connect(ctx context.Context) error {
	path, err := databasePath(a.cfg.URL)
	if err != nil {
		return err
	}
	if _, err := os.Stat(path); err != nil {
		return errors.Wrap(err, errors.ErrorTypeConfig, "database file not found: "+path)
	}
	a.path = path

	dsn := fmt.Sprintf("file:%s?mode=ro&_busy_timeout=5000", path)
	db, err := base.OpenDB("sqlite3", dsn, a.cfg.Pool)
	if err != nil {
		return err
	}
	if err := db.PingContext(ctx); err != nil {
		db.Close()
		return classify(err, "open database")
	}

	a.db = db
	a.log.Info("connected", zap.String("path", path))
	return nil
}

// databasePath extracts the filesystem path from sqlite:// URLs. Both
// sqlite:///absolute/path.db and sqlite://relative.db forms work.
func databasePath(raw string) (string, error) {
	u, err := url.Parse(raw)
	if err != nil {
		return "", errors.Wrap(err, errors.ErrorTypeConfig, "invalid sqlite url")
	}
	path := u.Path
	if u.Host != "" {
		path = u.Host + u.Path
	}
	if path == "" {
		return "", errors.New(errors.ErrorTypeConfig, "sqlite url missing database path")
	}
	return path, nil
}

// Disconnect closes the handle. Safe to call without a prior Connect.
func (a *Adapter) Disconnect(ctx context.Context) error {
	if a.db != nil {
		err := a.db.Close()
		a.db = nil
		return err
	}
	return nil
}

// ListUnits enumerates user tables from sqlite_master. Internal sqlite_*
// tables stay out of the scan.
func (a *Adapter) ListUnits(ctx context.Context) ([]string, error) {
	rows, err := base.QueryStrings(ctx, a.db,
		`SELECT name FROM sqlite_master
		WHERE type = 'table' AND name NOT LIKE 'sqlite_%' ORDER BY name`)
	if err != nil {
		return nil, classify(err, "list tables")
	}

	units := make([]string, 0, len(rows))
	for _, row := range rows {
		units = append(units, row[0])
	}
	return units, nil
}

// Columns reports the table's declared columns via the table_info pragma.
func (a *Adapter) Columns(ctx context.Context, unit string) ([]core.Column, error) {
	rows, err := base.QueryStrings(ctx, a.db,
		`SELECT name, type FROM pragma_table_info(?) ORDER BY cid`, unit)
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

func selectQuery(unit string, columns []core.Column) string {
	cols := make([]string, len(columns))
	for i, c := range columns {
		cols[i] = fmt.Sprintf("CAST(%s AS TEXT)", base.QuoteIdent(c.Name, `"`))
	}
	return fmt.Sprintf("SELECT %s FROM %s", strings.Join(cols, ", "), base.QuoteIdent(unit, `"`))
}

// classify maps driver failures onto the engine's error taxonomy. The
// driver reports most conditions as strings, so matching is textual.
func classify(err error, operation string) error {
	if err == nil {
		return nil
	}

	msg := err.Error()
	switch {
	case strings.Contains(msg, "database is locked"), strings.Contains(msg, "table is locked"):
		return errors.Wrap(err, errors.ErrorTypeConnection, operation+": database locked")
	case strings.Contains(msg, "unable to open database"):
		return errors.Wrap(err, errors.ErrorTypeConfig, operation+": cannot open database")
	case strings.Contains(msg, "file is not a database"):
		return errors.Wrap(err, errors.ErrorTypeConfig, operation+": not a sqlite database")
	case strings.Contains(msg, "no such table"):
		return errors.Wrap(err, errors.ErrorTypeUnit, operation+": table vanished")
	}

	return base.ClassifyNet(err, operation)
}
