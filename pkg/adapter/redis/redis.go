// Package redis implements the Redis adapter. The keyspace has no schema,
// so units are the value types present (string, hash, list, set, zset) and
// each unit samples the keys of that type through SCAN.
package redis

import (
	"context"
	"strings"

	"github.com/redis/go-redis/v9"
	"go.uber.org/zap"

	"github.com/ajitpratap0/sleuth/pkg/adapter/base"
	"github.com/ajitpratap0/sleuth/pkg/adapter/core"
	"github.com/ajitpratap0/sleuth/pkg/config"
	"github.com/ajitpratap0/sleuth/pkg/errors"
	"github.com/ajitpratap0/sleuth/pkg/logger"
)

// scannableTypes are the value types the sampler knows how to read.
var scannableTypes = []string{"string", "hash", "list", "set", "zset"}

// collectionCap bounds how many elements one list, set, or sorted set
// contributes, so a single huge key cannot eat the whole sample budget.
const collectionCap = 100

// Adapter samples Redis keyspaces.
type Adapter struct {
	cfg    *config.ScanConfig
	client *redis.Client
	log    *zap.Logger
}

// New builds a Redis adapter from the scan configuration.
func New(cfg *config.ScanConfig) (core.Adapter, error) {
	return &Adapter{
		cfg: cfg,
		log: logger.Get().With(zap.String("adapter", "redis")),
	}, nil
}

// Name returns the registry scheme.
func (a *Adapter) Name() string { return "redis" }

// Connect parses the scan URL into client options and pings.
func (a *Adapter) Connect(ctx context.Context) error {
	opts, err := redis.ParseURL(a.cfg.URL)
	if err != nil {
		return errors.Wrap(err, errors.ErrorTypeConfig, "invalid redis url")
	}
	opts.DialTimeout = a.cfg.Timeouts.Connection
	opts.PoolSize = a.cfg.Pool.Max
	opts.MinIdleConns = a.cfg.Pool.Min

	client := redis.NewClient(opts)
	if err := client.Ping(ctx).Err(); err != nil {
		client.Close()
		return classify(err, "ping")
	}

	a.client = client
	a.log.Info("connected", zap.String("addr", opts.Addr), zap.Int("db", opts.DB))
	return nil
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

// matchPattern narrows SCAN to the configured namespace, read as a key
// prefix. An empty namespace scans everything.
func (a *Adapter) matchPattern() string {
	if ns := a.cfg.Filters.Namespace; ns != "" {
		return ns + "*"
	}
	return "*"
}

// ListUnits walks the keyspace once and reports which value types exist.
// The walk stops as soon as every scannable type has been seen.
func (a *Adapter) ListUnits(ctx context.Context) ([]string, error) {
	seen := map[string]bool{}

	iter := a.client.Scan(ctx, 0, a.matchPattern(), 1000).Iterator()
	for iter.Next(ctx) {
		keyType, err := a.client.Type(ctx, iter.Val()).Result()
		if err != nil {
			return nil, classify(err, "inspect keyspace")
		}
		seen[keyType] = true
		if len(seen) == len(scannableTypes) {
			break
		}
	}
	if err := iter.Err(); err != nil {
		return nil, classify(err, "inspect keyspace")
	}

	var units []string
	for _, t := range scannableTypes {
		if seen[t] {
			units = append(units, t)
		}
	}
	return units, nil
}

// FetchSamples scans keys of the unit's type and reads their values until
// limit values are collected or the keyspace is exhausted. The key lands
// in Path and, for hashes, the field in Column.
func (a *Adapter) FetchSamples(ctx context.Context, unit string, limit int) ([]core.Sample, error) {
	var samples []core.Sample

	iter := a.client.Scan(ctx, 0, a.matchPattern(), 1000).Iterator()
	for iter.Next(ctx) && len(samples) < limit {
		key := iter.Val()

		keyType, err := a.client.Type(ctx, key).Result()
		if err != nil {
			return nil, classify(err, "inspect "+key)
		}
		if keyType != unit {
			continue
		}

		samples, err = a.readKey(ctx, samples, key, keyType, limit)
		if err != nil {
			return nil, err
		}
	}
	if err := iter.Err(); err != nil {
		return nil, classify(err, "scan keyspace")
	}
	return samples, nil
}

// readKey appends the key's values. Keys deleted between SCAN and read are
// skipped, not failed; expiry racing a scan is normal.
func (a *Adapter) readKey(ctx context.Context, samples []core.Sample, key, keyType string, limit int) ([]core.Sample, error) {
	appendValue := func(column, value string) {
		if value != "" && len(samples) < limit {
			samples = append(samples, core.Sample{Path: key, Column: column, Value: value})
		}
	}

	switch keyType {
	case "string":
		value, err := a.client.Get(ctx, key).Result()
		if err == redis.Nil {
			return samples, nil
		}
		if err != nil {
			return samples, classify(err, "read "+key)
		}
		appendValue("", value)

	case "hash":
		fields, err := a.client.HGetAll(ctx, key).Result()
		if err != nil {
			return samples, classify(err, "read "+key)
		}
		for field, value := range fields {
			appendValue(field, value)
		}

	case "list":
		values, err := a.client.LRange(ctx, key, 0, collectionCap-1).Result()
		if err != nil {
			return samples, classify(err, "read "+key)
		}
		for _, value := range values {
			appendValue("", value)
		}

	case "set":
		values, err := a.client.SRandMemberN(ctx, key, collectionCap).Result()
		if err != nil {
			return samples, classify(err, "read "+key)
		}
		for _, value := range values {
			appendValue("", value)
		}

	case "zset":
		values, err := a.client.ZRange(ctx, key, 0, collectionCap-1).Result()
		if err != nil {
			return samples, classify(err, "read "+key)
		}
		for _, value := range values {
			appendValue("", value)
		}
	}

	return samples, nil
}

// classify maps server responses onto the engine's error taxonomy. Redis
// reports conditions as reply prefixes, so matching is textual.
func classify(err error, operation string) error {
	if err == nil {
		return nil
	}

	msg := err.Error()
	switch {
	case strings.Contains(msg, "NOAUTH"), strings.Contains(msg, "WRONGPASS"),
		strings.Contains(msg, "invalid password"):
		return errors.Wrap(err, errors.ErrorTypeAuthentication, operation+": authentication failed")
	case strings.Contains(msg, "NOPERM"):
		return errors.Wrap(err, errors.ErrorTypePermission, operation+": permission denied")
	case strings.Contains(msg, "LOADING"), strings.Contains(msg, "CLUSTERDOWN"):
		return errors.Wrap(err, errors.ErrorTypeConnection, operation+": server not ready")
	}

	return base.ClassifyNet(err, operation)
}
