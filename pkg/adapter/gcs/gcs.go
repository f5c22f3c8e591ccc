// Package gcs implements the Google Cloud Storage adapter. Text objects
// under the configured prefix stream through object readers and are
// sampled line by line.
package gcs

import (
	"context"
	stderrors "errors"
	"net/url"
	"os"
	"strings"

	"cloud.google.com/go/storage"
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

// maxObjectBytes caps how large an object the sampler will read.
const maxObjectBytes = 64 << 20

// Adapter samples GCS buckets. Units are the keys of text-like objects
// under the configured prefix.
type Adapter struct {
	cfg             *config.ScanConfig
	bucketName      string
	prefix          string
	credentialsPath string
	client          *storage.Client
	bucket          *storage.BucketHandle
	log             *zap.Logger
}

// New builds a GCS adapter from the scan configuration.
func New(cfg *config.ScanConfig) (core.Adapter, error) {
	u, err := url.Parse(cfg.URL)
	if err != nil {
		return nil, errors.Wrap(err, errors.ErrorTypeConfig, "invalid gcs url")
	}
	if u.Host == "" {
		return nil, errors.New(errors.ErrorTypeConfig, "gcs url missing bucket")
	}

	credentials := u.Query().Get("credentials")
	if credentials == "" {
		credentials = cfg.Security.Credential("gcs_credentials", "")
	}

	return &Adapter{
		cfg:             cfg,
		bucketName:      u.Host,
		prefix:          strings.TrimPrefix(u.Path, "/"),
		credentialsPath: credentials,
		log:             logger.Get().With(zap.String("adapter", "gcs")),
	}, nil
}

// Name returns the registry scheme.
func (a *Adapter) Name() string { return "gcs" }

// Connect creates the client and reads bucket attributes, so missing
// buckets and credential failures surface here. Credentials resolve in
// order: explicit key file, access token, application default credentials.
func (a *Adapter) Connect(ctx context.Context) error {
	var opts []option.ClientOption
	if a.credentialsPath != "" {
		opts = append(opts, option.WithCredentialsFile(a.credentialsPath))
	}
	if token := a.cfg.Security.Credential("gcp_access_token", os.Getenv("GCP_ACCESS_TOKEN")); token != "" {
		opts = append(opts, option.WithTokenSource(
			oauth2.StaticTokenSource(&oauth2.Token{AccessToken: token})))
	}

	client, err := storage.NewClient(ctx, opts...)
	if err != nil {
		return classify(err, "create client")
	}

	bucket := client.Bucket(a.bucketName)
	if _, err := bucket.Attrs(ctx); err != nil {
		client.Close()
		if stderrors.Is(err, storage.ErrBucketNotExist) {
			return errors.Wrap(err, errors.ErrorTypeConfig, "bucket does not exist: "+a.bucketName)
		}
		return classify(err, "open bucket "+a.bucketName)
	}

	a.client = client
	a.bucket = bucket
	a.log.Info("connected",
		zap.String("bucket", a.bucketName),
		zap.String("prefix", a.prefix))
	return nil
}

// Disconnect closes the client. Safe to call without a prior Connect.
func (a *Adapter) Disconnect(ctx context.Context) error {
	if a.client != nil {
		err := a.client.Close()
		a.client = nil
		a.bucket = nil
		return err
	}
	return nil
}

// ListUnits iterates the prefix and keeps text-like objects of sampleable
// size.
func (a *Adapter) ListUnits(ctx context.Context) ([]string, error) {
	it := a.bucket.Objects(ctx, &storage.Query{Prefix: a.prefix})

	var units []string
	skipped := 0
	for {
		attrs, err := it.Next()
		if err == iterator.Done {
			break
		}
		if err != nil {
			return nil, classify(err, "list objects")
		}
		if !base.TextualName(attrs.Name) || attrs.Size > maxObjectBytes {
			skipped++
			continue
		}
		units = append(units, attrs.Name)
	}

	if skipped > 0 {
		a.log.Debug("objects skipped", zap.Int("count", skipped))
	}
	return units, nil
}

// FetchSamples streams the object through a reader, decompressing if the
// name calls for it, and samples its lines.
func (a *Adapter) FetchSamples(ctx context.Context, unit string, limit int) ([]core.Sample, error) {
	rc, err := a.bucket.Object(unit).NewReader(ctx)
	if err != nil {
		if stderrors.Is(err, storage.ErrObjectNotExist) {
			return nil, errors.Wrap(err, errors.ErrorTypeUnit, "object vanished: "+unit)
		}
		return nil, classify(err, "open "+unit)
	}
	defer rc.Close()

	r, cleanup, err := base.OpenDecompressed(rc, unit)
	if err != nil {
		return nil, err
	}
	defer cleanup()

	return base.ScanLines(r, unit, nil, limit)
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
