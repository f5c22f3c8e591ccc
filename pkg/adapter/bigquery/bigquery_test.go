package bigquery

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"google.golang.org/api/googleapi"

	"github.com/ajitpratap0/sleuth/pkg/adapter/core"
	"github.com/ajitpratap0/sleuth/pkg/config"
	"github.com/ajitpratap0/sleuth/pkg/errors"
)

func TestNewParsesURL(t *testing.T) {
	a, err := New(config.NewScanConfig("bigquery://acme-prod/warehouse?location=EU"))
	require.NoError(t, err)

	ba := a.(*Adapter)
	assert.Equal(t, "acme-prod", ba.source.ProjectID)
	assert.Equal(t, "warehouse", ba.source.Dataset)
	assert.Equal(t, "EU", ba.source.Location)
}

func TestNewRejectsMissingDataset(t *testing.T) {
	_, err := New(config.NewScanConfig("bigquery://acme-prod"))
	require.Error(t, err)
	assert.True(t, errors.IsType(err, errors.ErrorTypeConfig))
}

func TestSelectQueryCasting(t *testing.T) {
	cols := []core.Column{
		{Name: "email", Type: "STRING"},
		{Name: "payload", Type: "JSON"},
		{Name: "amount", Type: "NUMERIC"},
	}
	q := selectQuery("acme-prod", "warehouse", "events", cols)
	assert.Equal(t,
		"SELECT CAST(`email` AS STRING), TO_JSON_STRING(`payload`), CAST(`amount` AS STRING) FROM `acme-prod.warehouse.events`",
		q)
}

func TestClientOptionsTokenSource(t *testing.T) {
	cfg := config.NewScanConfig("bigquery://acme-prod/warehouse")
	cfg.Security.Credentials = map[string]string{"gcp_access_token": "ya29.token"}

	opts := clientOptions(cfg, &config.BigQueryConfig{ProjectID: "acme-prod", Dataset: "warehouse"})
	assert.Len(t, opts, 1)
}

func TestClientOptionsEmptyByDefault(t *testing.T) {
	t.Setenv("GCP_ACCESS_TOKEN", "")
	cfg := config.NewScanConfig("bigquery://acme-prod/warehouse")
	opts := clientOptions(cfg, &config.BigQueryConfig{ProjectID: "acme-prod", Dataset: "warehouse"})
	assert.Empty(t, opts)
}

func TestStringValue(t *testing.T) {
	assert.Equal(t, "", stringValue(nil))
	assert.Equal(t, "alice@example.com", stringValue("alice@example.com"))
	assert.Equal(t, "42", stringValue(int64(42)))
}

func TestClassifyStatusCodes(t *testing.T) {
	tests := []struct {
		code int
		want errors.ErrorType
	}{
		{401, errors.ErrorTypeAuthentication},
		{403, errors.ErrorTypePermission},
		{404, errors.ErrorTypeUnit},
		{429, errors.ErrorTypeConnection},
		{503, errors.ErrorTypeConnection},
		{400, errors.ErrorTypeQuery},
	}

	for _, tt := range tests {
		err := classify(&googleapi.Error{Code: tt.code}, "read events")
		assert.True(t, errors.IsType(err, tt.want), "code %d classified as %v", tt.code, err)
	}
}
