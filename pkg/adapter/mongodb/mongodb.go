// Package mongodb implements the MongoDB adapter. Collections are sampled
// rather than streamed: documents have no declared columns, so the engine's
// extraction path digs matches out of every string field instead.
package mongodb

import (
	"context"
	stderrors "errors"
	"net/url"
	"strconv"
	"strings"

	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/options"
	"go.uber.org/zap"

	"github.com/ajitpratap0/sleuth/pkg/adapter/base"
	"github.com/ajitpratap0/sleuth/pkg/adapter/core"
	"github.com/ajitpratap0/sleuth/pkg/config"
	"github.com/ajitpratap0/sleuth/pkg/errors"
	"github.com/ajitpratap0/sleuth/pkg/logger"
)

// Adapter samples MongoDB collections. Units are collection names within
// the database the scan URL names.
type Adapter struct {
	cfg      *config.ScanConfig
	client   *mongo.Client
	database string
	log      *zap.Logger
}

// New builds a MongoDB adapter from the scan configuration.
func New(cfg *config.ScanConfig) (core.Adapter, error) {
	u, err := url.Parse(cfg.URL)
	if err != nil {
		return nil, errors.Wrap(err, errors.ErrorTypeConfig, "invalid mongodb url")
	}
	database := strings.Trim(u.Path, "/")
	if database == "" {
		return nil, errors.New(errors.ErrorTypeConfig, "mongodb url missing database")
	}
	return &Adapter{
		cfg:      cfg,
		database: database,
		log:      logger.Get().With(zap.String("adapter", "mongodb")),
	}, nil
}

// Name returns the registry scheme.
func (a *Adapter) Name() string { return "mongodb" }

// Connect dials the deployment and pings, so credential failures surface
// here instead of on the first collection.
func (a *Adapter) Connect(ctx context.Context) error {
	clientOpts := options.Client().
		ApplyURI(a.cfg.URL).
		SetConnectTimeout(a.cfg.Timeouts.Connection).
		SetMinPoolSize(uint64(a.cfg.Pool.Min)).
		SetMaxPoolSize(uint64(a.cfg.Pool.Max))

	client, err := mongo.Connect(ctx, clientOpts)
	if err != nil {
		return classify(err, "connect")
	}
	if err := client.Ping(ctx, nil); err != nil {
		_ = client.Disconnect(ctx)
		return classify(err, "ping")
	}

	a.client = client
	a.log.Info("connected", zap.String("database", a.database))
	return nil
}

// Disconnect releases the client. Safe to call without a prior Connect.
func (a *Adapter) Disconnect(ctx context.Context) error {
	if a.client != nil {
		err := a.client.Disconnect(ctx)
		a.client = nil
		return err
	}
	return nil
}

// ListUnits enumerates collections, excluding the system namespace.
func (a *Adapter) ListUnits(ctx context.Context) ([]string, error) {
	names, err := a.client.Database(a.database).ListCollectionNames(ctx, bson.M{})
	if err != nil {
		return nil, classify(err, "list collections")
	}

	units := make([]string, 0, len(names))
	for _, name := range names {
		if strings.HasPrefix(name, "system.") {
			continue
		}
		units = append(units, name)
	}
	return units, nil
}

// FetchSamples reads up to limit documents and flattens their string
// fields into located values. Extraction stops once limit values are
// collected, so wide documents cannot blow past the sample budget.
func (a *Adapter) FetchSamples(ctx context.Context, unit string, limit int) ([]core.Sample, error) {
	coll := a.client.Database(a.database).Collection(unit)

	cursor, err := coll.Find(ctx, bson.M{}, options.Find().SetLimit(int64(limit)))
	if err != nil {
		return nil, classify(err, "sample "+unit)
	}
	defer cursor.Close(ctx)

	var samples []core.Sample
	for cursor.Next(ctx) && len(samples) < limit {
		var doc bson.M
		if err := cursor.Decode(&doc); err != nil {
			return nil, classify(err, "decode document in "+unit)
		}
		samples = flatten(samples, "", doc, limit)
	}
	if err := cursor.Err(); err != nil {
		return nil, classify(err, "sample "+unit)
	}
	return samples, nil
}

// flatten walks a decoded document depth-first, appending one sample per
// scalar leaf under its dotted field path. Array elements path as
// "field.N", matching the server's own addressing.
func flatten(samples []core.Sample, prefix string, value interface{}, limit int) []core.Sample {
	if len(samples) >= limit {
		return samples
	}

	switch v := value.(type) {
	case bson.M:
		for key, elem := range v {
			samples = flatten(samples, joinPath(prefix, key), elem, limit)
		}
	case bson.D:
		for _, elem := range v {
			samples = flatten(samples, joinPath(prefix, elem.Key), elem.Value, limit)
		}
	case bson.A:
		for i, elem := range v {
			samples = flatten(samples, joinPath(prefix, strconv.Itoa(i)), elem, limit)
		}
	case string:
		if v != "" {
			samples = append(samples, core.Sample{Column: prefix, Value: v})
		}
	case int32:
		samples = append(samples, core.Sample{Column: prefix, Value: strconv.FormatInt(int64(v), 10)})
	case int64:
		samples = append(samples, core.Sample{Column: prefix, Value: strconv.FormatInt(v, 10)})
	case float64:
		samples = append(samples, core.Sample{Column: prefix, Value: strconv.FormatFloat(v, 'f', -1, 64)})
	}
	return samples
}

func joinPath(prefix, key string) string {
	if prefix == "" {
		return key
	}
	return prefix + "." + key
}

// classify maps server error codes onto the engine's error taxonomy.
func classify(err error, operation string) error {
	if err == nil {
		return nil
	}

	var cmdErr mongo.CommandError
	if stderrors.As(err, &cmdErr) {
		switch cmdErr.Code {
		case 18: // AuthenticationFailed
			return errors.Wrap(err, errors.ErrorTypeAuthentication, operation+": authentication failed")
		case 13: // Unauthorized
			return errors.Wrap(err, errors.ErrorTypePermission, operation+": permission denied")
		case 26: // NamespaceNotFound
			return errors.Wrap(err, errors.ErrorTypeUnit, operation+": collection vanished")
		case 50: // MaxTimeMSExpired
			return errors.Wrap(err, errors.ErrorTypeTimeout, operation+": server-side timeout")
		default:
			return errors.Wrap(err, errors.ErrorTypeQuery, operation+" failed")
		}
	}
	if strings.Contains(err.Error(), "auth error") ||
		strings.Contains(err.Error(), "AuthenticationFailed") {
		return errors.Wrap(err, errors.ErrorTypeAuthentication, operation+": authentication failed")
	}

	return base.ClassifyNet(err, operation)
}
