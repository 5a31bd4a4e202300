package s3

import (
	"context"
	stderrors "errors"
	"fmt"
	"io"
	"strings"

	"github.com/aws/aws-sdk-go-v2/aws"
	awsconfig "github.com/aws/aws-sdk-go-v2/config"
	"github.com/aws/aws-sdk-go-v2/credentials"
	awss3 "github.com/aws/aws-sdk-go-v2/service/s3"
	"github.com/aws/aws-sdk-go-v2/service/s3/types"

	"github.com/kbukum/imgprep/errors"
	"github.com/kbukum/imgprep/logger"
	"github.com/kbukum/imgprep/storage"
)

func init() {
	storage.RegisterFactory(storage.ProviderS3, func(ctx context.Context, cfg storage.Config, log *logger.Logger) (storage.Storage, error) {
		s, err := NewStorage(ctx, cfg)
		if err != nil {
			return nil, err
		}
		log.Debug("s3 storage ready", logger.Fields("bucket", cfg.Bucket, "region", cfg.Region))
		return s, nil
	})
}

// Storage implements storage.Storage using Amazon S3 (or S3-compatible services).
type Storage struct {
	client *awss3.Client
	bucket string
}

// NewStorage creates a new S3 storage client from the given config.
func NewStorage(ctx context.Context, cfg storage.Config) (*Storage, error) {
	opts := []func(*awsconfig.LoadOptions) error{
		awsconfig.WithRegion(cfg.Region),
	}

	if cfg.AccessKey != "" && cfg.SecretKey != "" {
		opts = append(opts, awsconfig.WithCredentialsProvider(
			credentials.NewStaticCredentialsProvider(cfg.AccessKey, cfg.SecretKey, ""),
		))
	}

	awsCfg, err := awsconfig.LoadDefaultConfig(ctx, opts...)
	if err != nil {
		return nil, fmt.Errorf("storage: load aws config: %w", err)
	}

	return &Storage{client: awss3.NewFromConfig(awsCfg, clientOptions(cfg)...), bucket: cfg.Bucket}, nil
}

// clientOptions applies the endpoint override. Custom endpoints (MinIO)
// always use path-style addressing.
func clientOptions(cfg storage.Config) []func(*awss3.Options) {
	var s3Opts []func(*awss3.Options)
	if cfg.Endpoint != "" {
		s3Opts = append(s3Opts, func(o *awss3.Options) {
			o.BaseEndpoint = aws.String(cfg.Endpoint)
			o.UsePathStyle = true
		})
	} else if cfg.ForcePathStyle {
		s3Opts = append(s3Opts, func(o *awss3.Options) {
			o.UsePathStyle = true
		})
	}
	return s3Opts
}

// Upload writes data from reader to S3.
func (s *Storage) Upload(ctx context.Context, path string, reader io.Reader) error {
	_, err := s.client.PutObject(ctx, &awss3.PutObjectInput{
		Bucket: aws.String(s.bucket),
		Key:    aws.String(key(path)),
		Body:   reader,
	})
	if err != nil {
		return errors.IO("s3 upload", s.bucket+"/"+key(path), err)
	}
	return nil
}

// Download returns a reader for the S3 object at the given path.
func (s *Storage) Download(ctx context.Context, path string) (io.ReadCloser, error) {
	out, err := s.client.GetObject(ctx, &awss3.GetObjectInput{
		Bucket: aws.String(s.bucket),
		Key:    aws.String(key(path)),
	})
	if err != nil {
		var nsk *types.NoSuchKey
		if stderrors.As(err, &nsk) {
			return nil, errors.NotFound("object", path).WithCause(err)
		}
		return nil, errors.IO("s3 download", s.bucket+"/"+key(path), err)
	}
	return out.Body, nil
}

// Delete removes an S3 object. Returns nil if the object does not exist.
func (s *Storage) Delete(ctx context.Context, path string) error {
	_, err := s.client.DeleteObject(ctx, &awss3.DeleteObjectInput{
		Bucket: aws.String(s.bucket),
		Key:    aws.String(key(path)),
	})
	if err != nil {
		return errors.IO("s3 delete", s.bucket+"/"+key(path), err)
	}
	return nil
}

// Exists checks whether an S3 object exists.
func (s *Storage) Exists(ctx context.Context, path string) (bool, error) {
	_, err := s.client.HeadObject(ctx, &awss3.HeadObjectInput{
		Bucket: aws.String(s.bucket),
		Key:    aws.String(key(path)),
	})
	if err != nil {
		var nf *types.NotFound
		if stderrors.As(err, &nf) {
			return false, nil
		}
		return false, errors.IO("s3 head", s.bucket+"/"+key(path), err)
	}
	return true, nil
}

// URL returns a URL for the S3 object.
func (s *Storage) URL(_ context.Context, path string) (string, error) {
	return fmt.Sprintf("%s/%s/%s", s.resolveEndpoint(), s.bucket, key(path)), nil
}

// List returns metadata for all objects whose key starts with prefix.
func (s *Storage) List(ctx context.Context, prefix string) ([]storage.FileInfo, error) {
	input := &awss3.ListObjectsV2Input{
		Bucket: aws.String(s.bucket),
		Prefix: aws.String(key(prefix)),
	}

	files := []storage.FileInfo{}
	paginator := awss3.NewListObjectsV2Paginator(s.client, input)
	for paginator.HasMorePages() {
		out, err := paginator.NextPage(ctx)
		if err != nil {
			return nil, errors.IO("s3 list", s.bucket+"/"+key(prefix), err)
		}
		for _, obj := range out.Contents {
			fi := storage.FileInfo{
				Path: aws.ToString(obj.Key),
				Size: aws.ToInt64(obj.Size),
			}
			if obj.LastModified != nil {
				fi.LastModified = *obj.LastModified
			}
			files = append(files, fi)
		}
	}
	// ListObjectsV2 returns keys in UTF-8 binary order, which is already
	// sorted by path.
	return files, nil
}

func (s *Storage) resolveEndpoint() string {
	opts := s.client.Options()
	if opts.BaseEndpoint != nil && *opts.BaseEndpoint != "" {
		return strings.TrimSuffix(*opts.BaseEndpoint, "/")
	}
	return fmt.Sprintf("https://s3.%s.amazonaws.com", opts.Region)
}

// key normalizes a storage path into an S3 object key.
func key(path string) string {
	return strings.TrimPrefix(path, "/")
}

// compile-time check
var _ storage.Storage = (*Storage)(nil)
