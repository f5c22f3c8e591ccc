// Package config provides the unified configuration system for Sleuth.
// It defines a single ScanConfig structure that every scan run uses,
// ensuring consistent knobs across all data source adapters.
//
// The configuration is organized into logical sections:
//   - Performance: Concurrency, fetch sizes, batch bounds, sampling
//   - Timeouts: Connection and per-unit deadlines
//   - Reliability: Retry attempts and backoff
//   - Pool: Connection pool sizing for pooled adapters
//   - Filters: Namespace targeting and exclusion
//   - Optimization: Scan shortcuts (caching, early rejection, column pruning)
//   - Matching: Rule selection and ad-hoc patterns
//   - Security: TLS and credentials
//   - Observability: Metrics, tracing, logging
//   - Memory: Monitor thresholds for long scans
//
// Example usage:
//
//	cfg := config.NewScanConfig("postgres://localhost/app")
//	cfg.Performance.MaxConcurrentUnits = 4
//	cfg.Matching.ShowAll = true
//
//	if err := cfg.Validate(); err != nil {
//	    log.Fatal(err)
//	}
package config

import (
	"fmt"
	"strings"
	"time"
)

// ScanConfig is the single configuration structure for a scan run.
// It provides a comprehensive set of options organized into logical
// sections. Adapters receive the full structure and read the sections
// relevant to them.
type ScanConfig struct {
	// Core identification fields

	// URL locates the data source to scan (e.g. postgres://host/db, s3://bucket)
	URL string `yaml:"url" json:"url"`
	// Name labels the scan run in logs and output
	Name string `yaml:"name" json:"name"`

	// Performance settings control throughput and resource usage
	Performance PerformanceConfig `yaml:"performance" json:"performance"`

	// Timeouts define connection and per-unit deadlines
	Timeouts TimeoutConfig `yaml:"timeouts" json:"timeouts"`

	// Reliability settings for retry behavior on transient failures
	Reliability ReliabilityConfig `yaml:"reliability" json:"reliability"`

	// Pool configures connection pool sizing for adapters that pool
	Pool PoolConfig `yaml:"pool" json:"pool"`

	// Filters restrict which namespaces and units get scanned
	Filters FilterConfig `yaml:"filters" json:"filters"`

	// Optimization toggles the scan shortcuts
	Optimization OptimizationConfig `yaml:"optimization" json:"optimization"`

	// Matching controls rule selection and output shape
	Matching MatchingConfig `yaml:"matching" json:"matching"`

	// Security configuration for authentication and encryption
	Security SecurityConfig `yaml:"security" json:"security"`

	// Observability settings for monitoring and debugging
	Observability ObservabilityConfig `yaml:"observability" json:"observability"`

	// Memory monitor configuration for long-running scans
	Memory MemoryConfig `yaml:"memory" json:"memory"`
}

// PerformanceConfig contains all performance-related settings.
// These control how many units scan in parallel and how rows are batched.
type PerformanceConfig struct {
	// MaxConcurrentUnits limits how many units scan in parallel
	MaxConcurrentUnits int `yaml:"max_concurrent_units" json:"max_concurrent_units"`
	// FetchSize is the initial number of rows fetched per batch
	FetchSize int `yaml:"fetch_size" json:"fetch_size"`
	// MinBatchSize is the floor for adaptive batch shrinking
	MinBatchSize int `yaml:"min_batch_size" json:"min_batch_size"`
	// MaxBatchSize is the ceiling for adaptive batch growth
	MaxBatchSize int `yaml:"max_batch_size" json:"max_batch_size"`
	// SampleSize is the row cap per unit when SampleOnly is set
	SampleSize int `yaml:"sample_size" json:"sample_size"`
	// SampleOnly scans only the first SampleSize rows of each unit
	SampleOnly bool `yaml:"sample_only" json:"sample_only"`
}

// TimeoutConfig contains all timeout-related settings.
// These prevent a slow unit or a dead endpoint from hanging a scan.
type TimeoutConfig struct {
	// Unit timeout for scanning a single unit end to end
	Unit time.Duration `yaml:"unit" json:"unit"`
	// Connection timeout for establishing connections
	Connection time.Duration `yaml:"connection" json:"connection"`
}

// ReliabilityConfig contains retry settings for transient failures.
type ReliabilityConfig struct {
	// RetryAttempts sets maximum connection attempts before giving up
	RetryAttempts int `yaml:"retry_attempts" json:"retry_attempts"`
	// RetryDelay is the initial delay between retries
	RetryDelay time.Duration `yaml:"retry_delay" json:"retry_delay"`
	// RetryMultiplier increases the delay after each failed attempt
	RetryMultiplier float64 `yaml:"retry_multiplier" json:"retry_multiplier"`
	// MaxRetryDelay caps the delay growth
	MaxRetryDelay time.Duration `yaml:"max_retry_delay" json:"max_retry_delay"`
}

// PoolConfig sizes the connection pool for adapters that maintain one.
type PoolConfig struct {
	// Min is the number of connections opened up front
	Min int `yaml:"min" json:"min"`
	// Max caps the pool size
	Max int `yaml:"max" json:"max"`
	// Increment is how many connections are added when the pool grows
	Increment int `yaml:"increment" json:"increment"`
}

// FilterConfig restricts the scan surface.
type FilterConfig struct {
	// Namespace limits the scan to a single schema or database
	Namespace string `yaml:"namespace" json:"namespace"`
	// SkipNamespaces excludes schemas or databases by name.
	// Adapters merge this list with their built-in system namespaces.
	SkipNamespaces []string `yaml:"skip_namespaces" json:"skip_namespaces"`
}

// OptimizationConfig toggles the scan shortcuts. All default to on;
// turning one off trades speed for exhaustiveness when debugging
// unexpected misses.
type OptimizationConfig struct {
	// EarlyTermination rejects values that cannot match any rule before
	// running regexes
	EarlyTermination bool `yaml:"early_termination" json:"early_termination"`
	// ValueCaching reuses match results for repeated values within a scan
	ValueCaching bool `yaml:"value_caching" json:"value_caching"`
	// ColumnOptimization skips identifier-like and numeric columns
	ColumnOptimization bool `yaml:"column_optimization" json:"column_optimization"`
	// BatchOptimization deduplicates values within a batch before matching
	BatchOptimization bool `yaml:"batch_optimization" json:"batch_optimization"`
	// PatternOptimization stops at the first matching rule per value
	PatternOptimization bool `yaml:"pattern_optimization" json:"pattern_optimization"`
	// AdaptiveBatching resizes fetch batches toward a target duration
	AdaptiveBatching bool `yaml:"adaptive_batching" json:"adaptive_batching"`
}

// MatchingConfig controls which rules run and how matches are reported.
type MatchingConfig struct {
	// Only restricts matching to the named rules
	Only []string `yaml:"only" json:"only"`
	// Except removes the named rules from the catalog
	Except []string `yaml:"except" json:"except"`
	// Pattern is an ad-hoc regular expression scanned alongside the catalog
	Pattern string `yaml:"pattern" json:"pattern"`
	// PatternName labels ad-hoc pattern matches in output
	PatternName string `yaml:"pattern_name" json:"pattern_name"`
	// ShowAll reports every matching rule per value instead of the first
	ShowAll bool `yaml:"show_all" json:"show_all"`
	// ShowData includes raw matched values in output
	ShowData bool `yaml:"show_data" json:"show_data"`
	// MinConfidence hides matches below this tier (low, medium, high)
	MinConfidence string `yaml:"min_confidence" json:"min_confidence"`
	// RulesFile points at a YAML file of additional custom rules
	RulesFile string `yaml:"rules_file" json:"rules_file"`
}

// SecurityConfig contains security and authentication settings.
type SecurityConfig struct {
	// EnableTLS enables TLS/SSL for adapters that support it
	EnableTLS bool `yaml:"enable_tls" json:"enable_tls"`
	// TLSSkipVerify disables certificate verification (insecure)
	TLSSkipVerify bool `yaml:"tls_skip_verify" json:"tls_skip_verify"`
	// Credentials stores authentication material keyed by adapter
	// convention (use env vars in production)
	Credentials map[string]string `yaml:"credentials" json:"credentials"`
	// CertificatePath for client certificate
	CertificatePath string `yaml:"certificate_path" json:"certificate_path"`
	// KeyPath for client private key
	KeyPath string `yaml:"key_path" json:"key_path"`
	// CAPath for custom CA certificate
	CAPath string `yaml:"ca_path" json:"ca_path"`
}

// ObservabilityConfig contains monitoring and observability settings.
type ObservabilityConfig struct {
	// EnableMetrics activates Prometheus metrics collection
	EnableMetrics bool `yaml:"enable_metrics" json:"enable_metrics"`
	// EnableTracing activates trace spans around scan phases
	EnableTracing bool `yaml:"enable_tracing" json:"enable_tracing"`
	// LogLevel sets logging verbosity (debug, info, warn, error)
	LogLevel string `yaml:"log_level" json:"log_level"`
	// TracingSampleRate controls trace sampling (0.0-1.0)
	TracingSampleRate float64 `yaml:"tracing_sample_rate" json:"tracing_sample_rate"`
	// ProgressInterval sets how often scan progress is logged
	ProgressInterval time.Duration `yaml:"progress_interval" json:"progress_interval"`
}

// MemoryConfig contains memory monitor settings.
// Long scans over wide tables can accumulate significant heap; the
// monitor samples process RSS and forces collection past a threshold.
type MemoryConfig struct {
	// EnableMonitor activates periodic memory sampling
	EnableMonitor bool `yaml:"enable_monitor" json:"enable_monitor"`
	// CheckIntervalBatches is how many batches pass between samples
	CheckIntervalBatches int `yaml:"check_interval_batches" json:"check_interval_batches"`
	// GCThresholdMB triggers a forced garbage collection above this RSS
	GCThresholdMB int `yaml:"gc_threshold_mb" json:"gc_threshold_mb"`
}

// NewScanConfig creates a new ScanConfig with sensible defaults.
// It initializes all sections with values that work well for most
// sources. Callers override individual fields as needed.
//
// Example:
//
//	cfg := config.NewScanConfig("mysql://user@localhost/shop")
//	cfg.Performance.FetchSize = 25000  // Override default
func NewScanConfig(url string) *ScanConfig {
	return &ScanConfig{
		URL:  url,
		Name: "scan",
		Performance: PerformanceConfig{
			MaxConcurrentUnits: 10,
			FetchSize:          10000,
			MinBatchSize:       1000,
			MaxBatchSize:       50000,
			SampleSize:         1000,
			SampleOnly:         false,
		},
		Timeouts: TimeoutConfig{
			Unit:       120 * time.Second,
			Connection: 30 * time.Second,
		},
		Reliability: ReliabilityConfig{
			RetryAttempts:   3,
			RetryDelay:      time.Second,
			RetryMultiplier: 2.0,
			MaxRetryDelay:   60 * time.Second,
		},
		Pool: PoolConfig{
			Min:       5,
			Max:       20,
			Increment: 2,
		},
		Filters: FilterConfig{},
		Optimization: OptimizationConfig{
			EarlyTermination:    true,
			ValueCaching:        true,
			ColumnOptimization:  true,
			BatchOptimization:   true,
			PatternOptimization: true,
			AdaptiveBatching:    true,
		},
		Matching: MatchingConfig{
			ShowAll:       false,
			ShowData:      false,
			MinConfidence: "low",
		},
		Security: SecurityConfig{
			EnableTLS:     false,
			TLSSkipVerify: false,
			Credentials:   make(map[string]string),
		},
		Observability: ObservabilityConfig{
			EnableMetrics:     true,
			EnableTracing:     false,
			LogLevel:          "info",
			TracingSampleRate: 0.1,
			ProgressInterval:  10 * time.Second,
		},
		Memory: MemoryConfig{
			EnableMonitor:        true,
			CheckIntervalBatches: 10,
			GCThresholdMB:        1024,
		},
	}
}

// Validate validates the configuration for correctness.
// It checks required fields and ensures values are within acceptable
// ranges. Callers should validate after loading configuration to catch
// errors before any connection is attempted.
//
// Returns an error if validation fails, nil otherwise.
func (sc *ScanConfig) Validate() error {
	if sc.URL == "" {
		return fmt.Errorf("url is required")
	}
	if sc.Performance.MaxConcurrentUnits <= 0 {
		return fmt.Errorf("max_concurrent_units must be positive")
	}
	if sc.Performance.FetchSize <= 0 {
		return fmt.Errorf("fetch_size must be positive")
	}
	if sc.Performance.MinBatchSize <= 0 {
		return fmt.Errorf("min_batch_size must be positive")
	}
	if sc.Performance.MaxBatchSize < sc.Performance.MinBatchSize {
		return fmt.Errorf("max_batch_size must be at least min_batch_size")
	}
	if sc.Performance.SampleSize <= 0 {
		return fmt.Errorf("sample_size must be positive")
	}
	if sc.Timeouts.Unit <= 0 {
		return fmt.Errorf("unit timeout must be positive")
	}
	if sc.Reliability.RetryAttempts < 0 {
		return fmt.Errorf("retry_attempts cannot be negative")
	}
	if sc.Pool.Min <= 0 || sc.Pool.Max < sc.Pool.Min {
		return fmt.Errorf("pool min must be positive and max must be at least min")
	}
	if sc.Pool.Increment <= 0 {
		return fmt.Errorf("pool increment must be positive")
	}
	switch sc.Matching.MinConfidence {
	case "", "low", "medium", "high":
	default:
		return fmt.Errorf("min_confidence must be low, medium or high")
	}
	return nil
}

// ClampBatch bounds a proposed batch size to the configured range
func (p *PerformanceConfig) ClampBatch(n int) int {
	if n < p.MinBatchSize {
		return p.MinBatchSize
	}
	if n > p.MaxBatchSize {
		return p.MaxBatchSize
	}
	return n
}

// SkipsNamespace reports whether a namespace is excluded by name.
// Comparison is case-insensitive to match how most catalogs fold
// identifiers.
func (f *FilterConfig) SkipsNamespace(name string) bool {
	for _, skip := range f.SkipNamespaces {
		if strings.EqualFold(skip, name) {
			return true
		}
	}
	return false
}

// HasCredentials returns true if credentials are configured
func (s *SecurityConfig) HasCredentials() bool {
	return len(s.Credentials) > 0
}

// Credential returns a credential by key, or the fallback when unset
func (s *SecurityConfig) Credential(key, fallback string) string {
	if v, ok := s.Credentials[key]; ok && v != "" {
		return v
	}
	return fallback
}
