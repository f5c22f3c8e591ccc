package config

import (
	"net/url"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestNewScanConfigDefaults(t *testing.T) {
	cfg := NewScanConfig("postgres://localhost/app")

	assert.Equal(t, "postgres://localhost/app", cfg.URL)
	assert.Equal(t, 10, cfg.Performance.MaxConcurrentUnits)
	assert.Equal(t, 10000, cfg.Performance.FetchSize)
	assert.Equal(t, 1000, cfg.Performance.MinBatchSize)
	assert.Equal(t, 50000, cfg.Performance.MaxBatchSize)
	assert.Equal(t, 1000, cfg.Performance.SampleSize)
	assert.Equal(t, 120*time.Second, cfg.Timeouts.Unit)
	assert.Equal(t, 3, cfg.Reliability.RetryAttempts)
	assert.Equal(t, time.Second, cfg.Reliability.RetryDelay)
	assert.Equal(t, 5, cfg.Pool.Min)
	assert.Equal(t, 20, cfg.Pool.Max)
	assert.Equal(t, 2, cfg.Pool.Increment)

	// Every scan shortcut defaults to on
	assert.True(t, cfg.Optimization.EarlyTermination)
	assert.True(t, cfg.Optimization.ValueCaching)
	assert.True(t, cfg.Optimization.ColumnOptimization)
	assert.True(t, cfg.Optimization.BatchOptimization)
	assert.True(t, cfg.Optimization.PatternOptimization)
	assert.True(t, cfg.Optimization.AdaptiveBatching)

	require.NoError(t, cfg.Validate())
}

func TestValidateErrors(t *testing.T) {
	tests := []struct {
		name   string
		mutate func(*ScanConfig)
		want   string
	}{
		{
			name:   "missing url",
			mutate: func(c *ScanConfig) { c.URL = "" },
			want:   "url is required",
		},
		{
			name:   "zero concurrency",
			mutate: func(c *ScanConfig) { c.Performance.MaxConcurrentUnits = 0 },
			want:   "max_concurrent_units",
		},
		{
			name:   "inverted batch bounds",
			mutate: func(c *ScanConfig) { c.Performance.MaxBatchSize = 500 },
			want:   "max_batch_size",
		},
		{
			name:   "negative retries",
			mutate: func(c *ScanConfig) { c.Reliability.RetryAttempts = -1 },
			want:   "retry_attempts",
		},
		{
			name:   "pool max below min",
			mutate: func(c *ScanConfig) { c.Pool.Max = 2 },
			want:   "pool min",
		},
		{
			name:   "bad confidence tier",
			mutate: func(c *ScanConfig) { c.Matching.MinConfidence = "extreme" },
			want:   "min_confidence",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg := NewScanConfig("postgres://localhost/app")
			tt.mutate(cfg)
			err := cfg.Validate()
			require.Error(t, err)
			assert.Contains(t, err.Error(), tt.want)
		})
	}
}

func TestClampBatch(t *testing.T) {
	p := PerformanceConfig{MinBatchSize: 1000, MaxBatchSize: 50000}

	assert.Equal(t, 1000, p.ClampBatch(10))
	assert.Equal(t, 50000, p.ClampBatch(900000))
	assert.Equal(t, 8000, p.ClampBatch(8000))
}

func TestLoadScanConfigOverlaysDefaults(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "scan.yaml")
	content := []byte(`url: postgres://localhost/app
performance:
  max_concurrent_units: 3
matching:
  only: [email, ssn]
`)
	require.NoError(t, os.WriteFile(path, content, 0o600))

	cfg, err := LoadScanConfig(path)
	require.NoError(t, err)

	assert.Equal(t, 3, cfg.Performance.MaxConcurrentUnits)
	assert.Equal(t, []string{"email", "ssn"}, cfg.Matching.Only)
	// Untouched sections keep their defaults
	assert.Equal(t, 10000, cfg.Performance.FetchSize)
	assert.Equal(t, 120*time.Second, cfg.Timeouts.Unit)
}

func TestLoadSubstitutesEnvVars(t *testing.T) {
	t.Setenv("SLEUTH_TEST_PASSWORD", "hunter2")

	dir := t.TempDir()
	path := filepath.Join(dir, "scan.yaml")
	content := []byte(`url: postgres://localhost/app
security:
  credentials:
    snowflake_password: ${SLEUTH_TEST_PASSWORD}
`)
	require.NoError(t, os.WriteFile(path, content, 0o600))

	cfg, err := LoadScanConfig(path)
	require.NoError(t, err)
	assert.Equal(t, "hunter2", cfg.Security.Credentials["snowflake_password"])
}

func TestLoadScanConfigRejectsInvalid(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "scan.yaml")
	content := []byte(`url: postgres://localhost/app
performance:
  fetch_size: -5
`)
	require.NoError(t, os.WriteFile(path, content, 0o600))

	_, err := LoadScanConfig(path)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "fetch_size")
}

func TestSnowflakeFromURL(t *testing.T) {
	sec := &SecurityConfig{Credentials: map[string]string{}}

	u, err := url.Parse("snowflake://scanner:pw@myorg-acct/SALES/PUBLIC?warehouse=SCAN_WH&role=AUDITOR")
	require.NoError(t, err)

	cfg, err := SnowflakeFromURL(u, sec)
	require.NoError(t, err)
	assert.Equal(t, "myorg-acct", cfg.Account)
	assert.Equal(t, "scanner", cfg.User)
	assert.Equal(t, "pw", cfg.Password)
	assert.Equal(t, "SALES", cfg.Database)
	assert.Equal(t, "PUBLIC", cfg.Schema)
	assert.Equal(t, "SCAN_WH", cfg.Warehouse)
	assert.Equal(t, "AUDITOR", cfg.Role)
}

func TestSnowflakeFromURLCredentialFallback(t *testing.T) {
	sec := &SecurityConfig{Credentials: map[string]string{"snowflake_password": "vault-pw"}}

	u, err := url.Parse("snowflake://scanner@myorg-acct/SALES")
	require.NoError(t, err)

	cfg, err := SnowflakeFromURL(u, sec)
	require.NoError(t, err)
	assert.Equal(t, "vault-pw", cfg.Password)
	assert.Equal(t, "PUBLIC", cfg.Schema, "schema defaults to PUBLIC")
}

func TestS3FromURL(t *testing.T) {
	sec := &SecurityConfig{Credentials: map[string]string{}}

	u, err := url.Parse("s3://exports/2024/customers?region=eu-west-1")
	require.NoError(t, err)

	cfg, err := S3FromURL(u, sec)
	require.NoError(t, err)
	assert.Equal(t, "exports", cfg.Bucket)
	assert.Equal(t, "2024/customers", cfg.Prefix)
	assert.Equal(t, "eu-west-1", cfg.Region)
	assert.False(t, cfg.UsePathStyle)
}

func TestS3FromURLCustomEndpoint(t *testing.T) {
	sec := &SecurityConfig{Credentials: map[string]string{}}

	u, err := url.Parse("s3://exports?endpoint=http://minio:9000")
	require.NoError(t, err)

	cfg, err := S3FromURL(u, sec)
	require.NoError(t, err)
	assert.Equal(t, "http://minio:9000", cfg.Endpoint)
	assert.True(t, cfg.UsePathStyle, "custom endpoints use path-style addressing")
}

func TestKafkaFromURL(t *testing.T) {
	sec := &SecurityConfig{Credentials: map[string]string{}}

	u, err := url.Parse("kafka://b1:9092/orders?brokers=b2:9092,b3:9092&schema_registry=http://sr:8081")
	require.NoError(t, err)

	cfg, err := KafkaFromURL(u, sec)
	require.NoError(t, err)
	assert.Equal(t, []string{"b1:9092", "b2:9092", "b3:9092"}, cfg.Brokers)
	assert.Equal(t, "orders", cfg.TopicPrefix)
	assert.Equal(t, "sleuth-scan", cfg.GroupID)
	assert.Equal(t, "http://sr:8081", cfg.SchemaRegistryURL)
}

func TestElasticFromURL(t *testing.T) {
	sec := &SecurityConfig{Credentials: map[string]string{}}

	u, err := url.Parse("elasticsearch+https://audit:pw@search.internal:9200/logs-*")
	require.NoError(t, err)

	cfg, err := ElasticFromURL(u, sec)
	require.NoError(t, err)
	assert.Equal(t, "https://search.internal:9200", cfg.Endpoint)
	assert.Equal(t, "audit", cfg.Username)
	assert.Equal(t, "logs-*", cfg.IndexPattern)
}

func TestFileFromURL(t *testing.T) {
	u, err := url.Parse("file:///var/exports?max_file_size_mb=64")
	require.NoError(t, err)

	cfg, err := FileFromURL(u)
	require.NoError(t, err)
	assert.Equal(t, "/var/exports", cfg.Root)
	assert.Equal(t, 64, cfg.MaxFileSizeMB)
}
