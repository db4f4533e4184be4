package registry

import (
	"context"
	"fmt"
	"io"
	"log/slog"
	"net/url"
	"os"
	"path"
	"path/filepath"
	"strings"
	"sync"

	"github.com/aws/aws-sdk-go-v2/aws"
	awsconfig "github.com/aws/aws-sdk-go-v2/config"
	"github.com/aws/aws-sdk-go-v2/service/s3"
	"github.com/aws/smithy-go"

	"github.com/sergcen/npm-package-diff/errors"
)

// S3API defines the S3 operations the S3 backend uses.
// This interface allows for mocking in tests.
type S3API interface {
	// GetObject retrieves an object from S3
	GetObject(ctx context.Context, params *s3.GetObjectInput, optFns ...func(*s3.Options)) (*s3.GetObjectOutput, error)

	// ListObjectsV2 lists objects in an S3 bucket
	ListObjectsV2(
		ctx context.Context,
		params *s3.ListObjectsV2Input,
		optFns ...func(*s3.Options),
	) (*s3.ListObjectsV2Output, error)
}

// S3 fetches tarballs from a bucket laid out like npm pack output:
// s3://bucket/prefix/<scope->name-<version>.tgz.
type S3 struct {
	mu       sync.Mutex
	client   S3API
	region   string
	endpoint string
	logger   *slog.Logger
}

var _ Fetcher = (*S3)(nil)

// NewS3 creates an S3 backend.
func NewS3(opts ...Option) *S3 {
	return newS3(newConfig(opts))
}

func newS3(c *config) *S3 {
	return &S3{
		client:   c.s3,
		region:   c.s3Region,
		endpoint: c.s3Endpoint,
		logger:   c.logger,
	}
}

// Fetch implements Fetcher.
func (b *S3) Fetch(ctx context.Context, name, spec string, opts Options) (string, error) {
	bucket, prefix, err := s3Location(opts.URL)
	if err != nil {
		return "", err
	}
	client, err := b.s3Client(ctx)
	if err != nil {
		return "", err
	}

	versions, err := b.versions(ctx, client, bucket, prefix, name)
	if err != nil {
		return "", err
	}
	version, err := SelectVersion(spec, versions)
	if err != nil {
		return "", err
	}

	filename := TarballName(name, version)
	key := path.Join(prefix, filename)
	b.logger.Info("downloading tar file", "package", name+"@"+version, "bucket", bucket, "key", key)

	out, err := client.GetObject(ctx, &s3.GetObjectInput{
		Bucket: aws.String(bucket),
		Key:    aws.String(key),
	})
	if err != nil {
		return "", errors.WrapWithContext(err, s3ErrorCode(err, errors.CodeDownloadFailed), "get object",
			map[string]interface{}{"bucket": bucket, "key": key})
	}
	defer out.Body.Close()

	target := filepath.Join(opts.DestDir, filename)
	if err := writeFile(target, out.Body); err != nil {
		return "", errors.WrapWithContext(err, errors.CodeDownloadFailed, "store object",
			map[string]interface{}{"bucket": bucket, "key": key})
	}

	b.logger.Info("done", "package", name+"@"+version, "file", target)
	return target, nil
}

// versions lists the versions of name published below prefix.
func (b *S3) versions(ctx context.Context, client S3API, bucket, prefix, name string) ([]string, error) {
	stem := strings.TrimSuffix(TarballName(name, ""), ".tgz")
	listPrefix := path.Join(prefix, stem)

	var versions []string
	paginator := s3.NewListObjectsV2Paginator(client, &s3.ListObjectsV2Input{
		Bucket: aws.String(bucket),
		Prefix: aws.String(listPrefix),
	})
	for paginator.HasMorePages() {
		page, err := paginator.NextPage(ctx)
		if err != nil {
			return nil, errors.WrapWithContext(err, s3ErrorCode(err, errors.CodeNetwork), "list objects",
				map[string]interface{}{"bucket": bucket, "prefix": listPrefix})
		}
		for _, obj := range page.Contents {
			base := path.Base(aws.ToString(obj.Key))
			if !strings.HasSuffix(base, ".tgz") || !strings.HasPrefix(base, stem) {
				continue
			}
			versions = append(versions, strings.TrimSuffix(strings.TrimPrefix(base, stem), ".tgz"))
		}
	}
	return versions, nil
}

func (b *S3) s3Client(ctx context.Context) (S3API, error) {
	b.mu.Lock()
	defer b.mu.Unlock()

	if b.client != nil {
		return b.client, nil
	}

	var loadOpts []func(*awsconfig.LoadOptions) error
	if b.region != "" {
		loadOpts = append(loadOpts, awsconfig.WithRegion(b.region))
	}
	cfg, err := awsconfig.LoadDefaultConfig(ctx, loadOpts...)
	if err != nil {
		return nil, errors.Wrap(err, errors.CodeInvalidConfig, "load AWS configuration")
	}
	if cfg.Region == "" {
		cfg.Region = "us-east-1"
	}

	var s3Opts []func(*s3.Options)
	if b.endpoint != "" {
		s3Opts = append(s3Opts, func(o *s3.Options) {
			o.UsePathStyle = true
			o.BaseEndpoint = aws.String(b.endpoint)
		})
	}
	b.client = s3.NewFromConfig(cfg, s3Opts...)
	return b.client, nil
}

// s3Location splits "s3://bucket/prefix" into bucket and key prefix.
func s3Location(rawURL string) (bucket, prefix string, err error) {
	u, err := url.Parse(rawURL)
	if err != nil {
		return "", "", errors.WrapWithContext(err, errors.CodeInvalidInput, "parse registry URL",
			map[string]interface{}{"url": rawURL})
	}
	if u.Host == "" {
		return "", "", fmt.Errorf("%w: %q has no bucket", ErrUnsupportedRegistry, rawURL)
	}
	return u.Host, strings.Trim(u.Path, "/"), nil
}

func writeFile(target string, r io.Reader) error {
	f, err := os.Create(target)
	if err != nil {
		return err
	}
	if _, err := io.Copy(f, r); err != nil {
		_ = f.Close()
		_ = os.Remove(target)
		return err
	}
	return f.Close()
}

// s3ErrorCode maps S3 API error codes, falling back to def.
func s3ErrorCode(err error, def errors.ErrorCode) errors.ErrorCode {
	var apiErr smithy.APIError
	if !errors.As(err, &apiErr) {
		return def
	}
	switch apiErr.ErrorCode() {
	case "NoSuchBucket", "NoSuchKey", "NotFound":
		return errors.CodeNotFound
	case "AccessDenied", "InvalidAccessKeyId", "SignatureDoesNotMatch":
		return errors.CodePermissionDenied
	default:
		return def
	}
}
