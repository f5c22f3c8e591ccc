package base

import (
	"context"
	"database/sql"
	"fmt"
	"strings"
	"time"

	"github.com/ajitpratap0/sleuth/pkg/adapter/core"
	"github.com/ajitpratap0/sleuth/pkg/config"
	"github.com/ajitpratap0/sleuth/pkg/errors"
)

// OpenDB opens a database/sql handle sized from the pool section. Min maps
// to idle connections and Max to open connections; database/sql grows the
// pool one connection per acquire, so the increment knob is a no-op for
// these drivers.
func OpenDB(driverName, dsn string, pool config.PoolConfig) (*sql.DB, error) {
	db, err := sql.Open(driverName, dsn)
	if err != nil {
		return nil, errors.Wrap(err, errors.ErrorTypeConfig, "invalid connection string")
	}

	db.SetMaxIdleConns(pool.Min)
	db.SetMaxOpenConns(pool.Max)
	db.SetConnMaxIdleTime(5 * time.Minute)
	return db, nil
}

// QuoteIdent quotes a SQL identifier with the dialect's quote character,
// doubling any embedded occurrence.
func QuoteIdent(name, quote string) string {
	return quote + strings.ReplaceAll(name, quote, quote+quote) + quote
}

// QuoteUnit quotes a possibly schema-qualified unit name part by part.
func QuoteUnit(unit, quote string) string {
	parts := strings.Split(unit, ".")
	for i, p := range parts {
		parts[i] = QuoteIdent(p, quote)
	}
	return strings.Join(parts, ".")
}

// SelectQuery builds the streaming read over the selected columns. A
// positive limit appends a LIMIT clause for the sampled path.
func SelectQuery(unit string, columns []core.Column, quote string, limit int) string {
	names := make([]string, len(columns))
	for i, col := range columns {
		names[i] = QuoteIdent(col.Name, quote)
	}

	q := "SELECT " + strings.Join(names, ", ") + " FROM " + QuoteUnit(unit, quote)
	if limit > 0 {
		q += fmt.Sprintf(" LIMIT %d", limit)
	}
	return q
}

// QueryStrings runs a metadata query and collects every row as strings,
// with NULLs as empty strings. Meant for small discovery result sets, not
// data scans.
func QueryStrings(ctx context.Context, db *sql.DB, query string, args ...interface{}) ([][]string, error) {
	rows, err := db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, errors.Wrap(err, errors.ErrorTypeQuery, "metadata query failed")
	}
	defer rows.Close() //nolint:errcheck // read-only result set

	cols, err := rows.Columns()
	if err != nil {
		return nil, errors.Wrap(err, errors.ErrorTypeQuery, "metadata query failed")
	}

	var out [][]string
	scanned := make([]sql.NullString, len(cols))
	dest := make([]interface{}, len(cols))
	for i := range scanned {
		dest[i] = &scanned[i]
	}

	for rows.Next() {
		if err := rows.Scan(dest...); err != nil {
			return nil, errors.Wrap(err, errors.ErrorTypeQuery, "metadata scan failed")
		}
		row := make([]string, len(cols))
		for i, v := range scanned {
			if v.Valid {
				row[i] = v.String
			}
		}
		out = append(out, row)
	}
	if err := rows.Err(); err != nil {
		return nil, errors.Wrap(err, errors.ErrorTypeQuery, "metadata query failed")
	}
	return out, nil
}

// RowsCursor adapts *sql.Rows to the core.Cursor contract, scanning every
// column as a nullable string.
type RowsCursor struct {
	rows  *sql.Rows
	width int
}

// NewRowsCursor wraps a result set selecting width columns.
func NewRowsCursor(rows *sql.Rows, width int) *RowsCursor {
	return &RowsCursor{rows: rows, width: width}
}

// Next returns up to n rows. A nil error with an empty batch means the
// result set is exhausted.
func (c *RowsCursor) Next(ctx context.Context, n int) ([][]string, error) {
	batch := make([][]string, 0, n)

	scanned := make([]sql.NullString, c.width)
	dest := make([]interface{}, c.width)
	for i := range scanned {
		dest[i] = &scanned[i]
	}

	for len(batch) < n && c.rows.Next() {
		if err := ctx.Err(); err != nil {
			return batch, ClassifyNet(err, "fetch")
		}
		if err := c.rows.Scan(dest...); err != nil {
			return batch, errors.Wrap(err, errors.ErrorTypeData, "row scan failed")
		}
		row := make([]string, c.width)
		for i, v := range scanned {
			if v.Valid {
				row[i] = v.String
			}
		}
		batch = append(batch, row)
	}

	if err := c.rows.Err(); err != nil {
		return batch, errors.Wrap(err, errors.ErrorTypeQuery, "row iteration failed")
	}
	return batch, nil
}

// Close releases the underlying result set.
func (c *RowsCursor) Close() error {
	return c.rows.Close()
}
