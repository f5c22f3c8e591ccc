// Package s3 implements the Amazon S3 adapter, which also serves MinIO and
// other S3-compatible stores through a custom endpoint. Text objects under
// the configured prefix are downloaded whole and sampled line by line.
package s3

import (
	"bytes"
	"context"
	stderrors "errors"
	"net/url"

	"github.com/aws/aws-sdk-go-v2/aws"
	awsconfig "github.com/aws/aws-sdk-go-v2/config"
	"github.com/aws/aws-sdk-go-v2/feature/s3/manager"
	"github.com/aws/aws-sdk-go-v2/service/s3"
	"github.com/aws/smithy-go"
	"go.uber.org/zap"

	"github.com/ajitpratap0/sleuth/pkg/adapter/base"
	"github.com/ajitpratap0/sleuth/pkg/adapter/core"
	"github.com/ajitpratap0/sleuth/pkg/config"
	"github.com/ajitpratap0/sleuth/pkg/errors"
	"github.com/ajitpratap0/sleuth/pkg/logger"
)

// maxObjectBytes caps how large an object the sampler will download.
// Bigger objects are listed out of the scan instead of read partially.
const maxObjectBytes = 64 << 20

// Adapter samples S3 buckets. Units are the keys of text-like objects
// under the configured prefix.
type Adapter struct {
	cfg        *config.ScanConfig
	source     *config.S3Config
	client     *s3.Client
	downloader *manager.Downloader
	log        *zap.Logger
}

// New builds an S3 adapter from the scan configuration.
func New(cfg *config.ScanConfig) (core.Adapter, error) {
	u, err := url.Parse(cfg.URL)
	if err != nil {
		return nil, errors.Wrap(err, errors.ErrorTypeConfig, "invalid s3 url")
	}
	source, err := config.S3FromURL(u, &cfg.Security)
	if err != nil {
		return nil, errors.Wrap(err, errors.ErrorTypeConfig, "invalid s3 url")
	}
	return &Adapter{
		cfg:    cfg,
		source: source,
		log:    logger.Get().With(zap.String("adapter", "s3")),
	}, nil
}

// Name returns the registry scheme.
func (a *Adapter) Name() string { return "s3" }

// Connect loads the default AWS credential chain, builds the client, and
// heads the bucket so missing buckets and bad keys fail the run here.
func (a *Adapter) Connect(ctx context.Context) error {
	awsCfg, err := awsconfig.LoadDefaultConfig(ctx, awsconfig.WithRegion(a.source.Region))
	if err != nil {
		return errors.Wrap(err, errors.ErrorTypeConfig, "aws configuration failed to load")
	}

	client := s3.NewFromConfig(awsCfg, func(o *s3.Options) {
		if a.source.Endpoint != "" {
			o.BaseEndpoint = aws.String(a.source.Endpoint)
		}
		o.UsePathStyle = a.source.UsePathStyle
	})

	if _, err := client.HeadBucket(ctx, &s3.HeadBucketInput{Bucket: aws.String(a.source.Bucket)}); err != nil {
		return classify(err, "head bucket "+a.source.Bucket)
	}

	a.client = client
	a.downloader = manager.NewDownloader(client)
	a.log.Info("connected",
		zap.String("bucket", a.source.Bucket),
		zap.String("prefix", a.source.Prefix),
		zap.String("region", a.source.Region))
	return nil
}

// Disconnect releases nothing; the SDK client holds no persistent state
// worth closing.
func (a *Adapter) Disconnect(ctx context.Context) error {
	a.client = nil
	a.downloader = nil
	return nil
}

// ListUnits pages through the prefix and keeps text-like objects of
// sampleable size.
func (a *Adapter) ListUnits(ctx context.Context) ([]string, error) {
	input := &s3.ListObjectsV2Input{Bucket: aws.String(a.source.Bucket)}
	if a.source.Prefix != "" {
		input.Prefix = aws.String(a.source.Prefix)
	}

	var units []string
	skipped := 0
	paginator := s3.NewListObjectsV2Paginator(a.client, input)
	for paginator.HasMorePages() {
		page, err := paginator.NextPage(ctx)
		if err != nil {
			return nil, classify(err, "list objects")
		}
		for _, obj := range page.Contents {
			key := aws.ToString(obj.Key)
			if !base.TextualName(key) || aws.ToInt64(obj.Size) > maxObjectBytes {
				skipped++
				continue
			}
			units = append(units, key)
		}
	}

	if skipped > 0 {
		a.log.Debug("objects skipped", zap.Int("count", skipped))
	}
	return units, nil
}

// FetchSamples downloads the object, decompresses it if its name calls for
// that, and samples its lines.
func (a *Adapter) FetchSamples(ctx context.Context, unit string, limit int) ([]core.Sample, error) {
	buf := manager.NewWriteAtBuffer(nil)
	_, err := a.downloader.Download(ctx, buf, &s3.GetObjectInput{
		Bucket: aws.String(a.source.Bucket),
		Key:    aws.String(unit),
	})
	if err != nil {
		return nil, classify(err, "download "+unit)
	}

	r, cleanup, err := base.OpenDecompressed(bytes.NewReader(buf.Bytes()), unit)
	if err != nil {
		return nil, err
	}
	defer cleanup()

	return base.ScanLines(r, unit, nil, limit)
}

// classify maps API error codes onto the engine's error taxonomy.
func classify(err error, operation string) error {
	if err == nil {
		return nil
	}

	var apiErr smithy.APIError
	if stderrors.As(err, &apiErr) {
		switch apiErr.ErrorCode() {
		case "InvalidAccessKeyId", "SignatureDoesNotMatch", "ExpiredToken", "TokenRefreshRequired":
			return errors.Wrap(err, errors.ErrorTypeAuthentication, operation+": authentication failed")
		case "AccessDenied", "AllAccessDisabled":
			return errors.Wrap(err, errors.ErrorTypePermission, operation+": access denied")
		case "NoSuchBucket", "NotFound":
			return errors.Wrap(err, errors.ErrorTypeConfig, operation+": bucket not found")
		case "NoSuchKey":
			return errors.Wrap(err, errors.ErrorTypeUnit, operation+": object vanished")
		case "SlowDown", "RequestTimeout", "InternalError", "ServiceUnavailable":
			return errors.Wrap(err, errors.ErrorTypeConnection, operation+": transient service error")
		default:
			return errors.Wrap(err, errors.ErrorTypeQuery, operation+" failed")
		}
	}

	return base.ClassifyNet(err, operation)
}
