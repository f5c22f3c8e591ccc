// Package bigquery implements the Google BigQuery adapter. One dataset is
// scanned per run; tables stream through query jobs that cast every
// selected column to STRING on the server.
package bigquery

import (
	"context"
	stderrors "errors"
	"fmt"
	"net/url"
	"os"
	"strings"

	"cloud.google.com/go/bigquery"
	"go.uber.org/zap"
	"golang.org/x/oauth2"
	"google.golang.org/api/googleapi"
	"google.golang.org/api/iterator"
	"google.golang.org/api/option"

	"github.com/ajitpratap0/sleuth/pkg/adapter/base"
	"github.com/ajitpratap0/sleuth/pkg/adapter/core"
	"github.com/ajitpratap0/sleuth/pkg/config"
	"github.com/ajitpratap0/sleuth/pkg/errors"
	"github.com/ajitpratap0/sleuth/pkg/logger"
)

// Adapter scans BigQuery datasets. Units are table IDs within the dataset
// the scan URL names.
type Adapter struct {
	cfg    *config.ScanConfig
	source *config.BigQueryConfig
	client *bigquery.Client
	log    *zap.Logger
}

// New builds a BigQuery adapter from the scan configuration.
func New(cfg *config.ScanConfig) (core.Adapter, error) {
	u, err := url.Parse(cfg.URL)
	if err != nil {
		return nil, errors.Wrap(err, errors.ErrorTypeConfig, "invalid bigquery url")
	}
	source, err := config.BigQueryFromURL(u, &cfg.Security)
	if err != nil {
		return nil, errors.Wrap(err, errors.ErrorTypeConfig, "invalid bigquery url")
	}
	return &Adapter{
		cfg:    cfg,
		source: source,
		log:    logger.Get().With(zap.String("adapter", "bigquery")),
	}, nil
}

// Name returns the registry scheme.
func (a *Adapter) Name() string { return "bigquery" }

// Connect creates the client and verifies the dataset exists. Credentials
// resolve in order: explicit key file, access token, then application
// default credentials.
func (a *Adapter) Connect(ctx context.Context) error {
	client, err := bigquery.NewClient(ctx, a.source.ProjectID, clientOptions(a.cfg, a.source)...)
	if err != nil {
		return classify(err, "create client")
	}
	if a.source.Location != "" {
		client.Location = a.source.Location
	}

	if _, err := client.Dataset(a.source.Dataset).Metadata(ctx); err != nil {
		client.Close()
		var apiErr *googleapi.Error
		if stderrors.As(err, &apiErr) && apiErr.Code == 404 {
			return errors.Wrap(err, errors.ErrorTypeConfig, "dataset does not exist: "+a.source.Dataset)
		}
		return classify(err, "open dataset "+a.source.Dataset)
	}

	a.client = client
	a.log.Info("connected",
		zap.String("project", a.source.ProjectID),
		zap.String("dataset", a.source.Dataset))
	return nil
}

func clientOptions(cfg *config.ScanConfig, source *config.BigQueryConfig) []option.ClientOption {
	var opts []option.ClientOption
	if source.CredentialsPath != "" {
		opts = append(opts, option.WithCredentialsFile(source.CredentialsPath))
	}
	if token := cfg.Security.Credential("gcp_access_token", os.Getenv("GCP_ACCESS_TOKEN")); token != "" {
		opts = append(opts, option.WithTokenSource(
			oauth2.StaticTokenSource(&oauth2.Token{AccessToken: token})))
	}
	return opts
}

// Disconnect closes the client. Safe to call without a prior Connect.
func (a *Adapter) Disconnect(ctx context.Context) error {
	if a.client != nil {
		err := a.client.Close()
		a.client = nil
		return err
	}
	return nil
}

// ListUnits enumerates the dataset's tables. Views and materialized views
// are included; their rows read the same way.
func (a *Adapter) ListUnits(ctx context.Context) ([]string, error) {
	it := a.client.Dataset(a.source.Dataset).Tables(ctx)

	var units []string
	for {
		table, err := it.Next()
		if err == iterator.Done {
			break
		}
		if err != nil {
			return nil, classify(err, "list tables")
		}
		units = append(units, table.TableID)
	}
	return units, nil
}

// Columns reports the table schema. Repeated fields surface as ARRAY<T> so
// the engine's type families exclude them from selection.
func (a *Adapter) Columns(ctx context.Context, unit string) ([]core.Column, error) {
	md, err := a.client.Dataset(a.source.Dataset).Table(unit).Metadata(ctx)
	if err != nil {
		return nil, classify(err, "describe "+unit)
	}

	columns := make([]core.Column, 0, len(md.Schema))
	for _, field := range md.Schema {
		typ := string(field.Type)
		if field.Repeated {
			typ = "ARRAY<" + typ + ">"
		}
		columns = append(columns, core.Column{Name: field.Name, Type: typ})
	}
	return columns, nil
}

// OpenCursor runs a query job casting the selected columns to STRING and
// streams its row iterator.
func (a *Adapter) OpenCursor(ctx context.Context, unit string, columns []core.Column) (core.Cursor, error) {
	q := a.client.Query(selectQuery(a.source.ProjectID, a.source.Dataset, unit, columns))
	if a.source.Location != "" {
		q.Location = a.source.Location
	}

	it, err := q.Read(ctx)
	if err != nil {
		return nil, classify(err, "read "+unit)
	}
	return &cursor{it: it, width: len(columns)}, nil
}

func selectQuery(project, dataset, unit string, columns []core.Column) string {
	cols := make([]string, len(columns))
	for i, c := range columns {
		ident := base.QuoteIdent(c.Name, "`")
		if strings.EqualFold(c.Type, "JSON") {
			cols[i] = "TO_JSON_STRING(" + ident + ")"
		} else {
			cols[i] = "CAST(" + ident + " AS STRING)"
		}
	}
	return fmt.Sprintf("SELECT %s FROM `%s.%s.%s`",
		strings.Join(cols, ", "), project, dataset, unit)
}

// cursor adapts a row iterator to the engine's batch interface.
type cursor struct {
	it    *bigquery.RowIterator
	width int
}

func (c *cursor) Next(ctx context.Context, n int) ([][]string, error) {
	if err := ctx.Err(); err != nil {
		return nil, base.ClassifyNet(err, "fetch batch")
	}

	batch := make([][]string, 0, n)
	for len(batch) < n {
		var values []bigquery.Value
		err := c.it.Next(&values)
		if err == iterator.Done {
			break
		}
		if err != nil {
			return nil, classify(err, "fetch batch")
		}

		row := make([]string, c.width)
		for i := 0; i < c.width && i < len(values); i++ {
			row[i] = stringValue(values[i])
		}
		batch = append(batch, row)
	}
	return batch, nil
}

func (c *cursor) Close() error { return nil }

// stringValue flattens an iterator cell. Every column is cast server-side,
// so anything beyond string and NULL is unexpected but printable.
func stringValue(v bigquery.Value) string {
	switch val := v.(type) {
	case nil:
		return ""
	case string:
		return val
	default:
		return fmt.Sprint(val)
	}
}

// classify maps API status codes onto the engine's error taxonomy.
func classify(err error, operation string) error {
	if err == nil {
		return nil
	}

	var apiErr *googleapi.Error
	if stderrors.As(err, &apiErr) {
		switch {
		case apiErr.Code == 401:
			return errors.Wrap(err, errors.ErrorTypeAuthentication, operation+": authentication failed")
		case apiErr.Code == 403:
			return errors.Wrap(err, errors.ErrorTypePermission, operation+": permission denied")
		case apiErr.Code == 404:
			return errors.Wrap(err, errors.ErrorTypeUnit, operation+": not found")
		case apiErr.Code == 429:
			return errors.Wrap(err, errors.ErrorTypeConnection, operation+": rate limited")
		case apiErr.Code >= 500:
			return errors.Wrap(err, errors.ErrorTypeConnection, operation+": service error")
		default:
			return errors.Wrap(err, errors.ErrorTypeQuery, operation+" failed")
		}
	}

	return base.ClassifyNet(err, operation)
}
