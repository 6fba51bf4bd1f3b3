// Package storage provides the object storage used for final report archives.
package storage

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"net/url"
	"strings"
	"time"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/config"
	"github.com/aws/aws-sdk-go-v2/credentials"
	"github.com/aws/aws-sdk-go-v2/service/s3"
	"github.com/aws/aws-sdk-go-v2/service/s3/types"
	"go.uber.org/zap"

	cashsessionapp "github.com/tuitionhub/backend/internal/application/cashsession"
	infraconfig "github.com/tuitionhub/backend/internal/infrastructure/config"
)

const defaultPresignExpiration = 15 * time.Minute

var (
	_ cashsessionapp.ObjectStore   = (*S3ReportStore)(nil)
	_ cashsessionapp.ArchiveLinker = (*S3ReportStore)(nil)
)

// ErrEmptyKey is returned for operations without an object key
var ErrEmptyKey = errors.New("storage key is required")

// S3ReportStore writes report archives to any S3-compatible store
// (AWS S3, MinIO, RustFS)
type S3ReportStore struct {
	client            *s3.Client
	presignClient     *s3.PresignClient
	bucket            string
	presignExpiration time.Duration
	logger            *zap.Logger
}

// S3ReportStoreOption is a functional option for configuring S3ReportStore
type S3ReportStoreOption func(*S3ReportStore)

// WithLogger sets a custom logger
func WithLogger(logger *zap.Logger) S3ReportStoreOption {
	return func(s *S3ReportStore) {
		s.logger = logger
	}
}

// WithPresignExpiration sets the default lifetime of presigned links
func WithPresignExpiration(d time.Duration) S3ReportStoreOption {
	return func(s *S3ReportStore) {
		s.presignExpiration = d
	}
}

// NewS3ReportStore creates a store from configuration
func NewS3ReportStore(cfg *infraconfig.StorageConfig, opts ...S3ReportStoreOption) (*S3ReportStore, error) {
	if cfg == nil {
		return nil, errors.New("storage configuration is required")
	}
	if cfg.Bucket == "" {
		return nil, errors.New("storage bucket is required")
	}
	if cfg.AccessKey == "" {
		return nil, errors.New("storage access key is required")
	}
	if cfg.SecretKey == "" {
		return nil, errors.New("storage secret key is required")
	}

	endpoint, err := normalizeEndpoint(cfg.Endpoint, cfg.UseSSL)
	if err != nil {
		return nil, err
	}

	region := cfg.Region
	if region == "" {
		region = "us-east-1"
	}

	awsCfg, err := config.LoadDefaultConfig(context.Background(),
		config.WithRegion(region),
		config.WithCredentialsProvider(credentials.NewStaticCredentialsProvider(cfg.AccessKey, cfg.SecretKey, "")),
	)
	if err != nil {
		return nil, fmt.Errorf("failed to create AWS config: %w", err)
	}

	client := s3.NewFromConfig(awsCfg, func(o *s3.Options) {
		o.UsePathStyle = cfg.UsePathStyle
		o.BaseEndpoint = aws.String(endpoint)
	})

	store := &S3ReportStore{
		client:            client,
		presignClient:     s3.NewPresignClient(client),
		bucket:            cfg.Bucket,
		presignExpiration: defaultPresignExpiration,
		logger:            zap.NewNop(),
	}
	for _, opt := range opts {
		opt(store)
	}
	if store.presignExpiration <= 0 {
		store.presignExpiration = defaultPresignExpiration
	}
	return store, nil
}

func normalizeEndpoint(endpoint string, useSSL bool) (string, error) {
	if endpoint == "" {
		endpoint = "localhost:9000"
	}
	if !strings.HasPrefix(endpoint, "http://") && !strings.HasPrefix(endpoint, "https://") {
		if useSSL {
			endpoint = "https://" + endpoint
		} else {
			endpoint = "http://" + endpoint
		}
	}
	u, err := url.Parse(endpoint)
	if err != nil || u.Host == "" {
		return "", fmt.Errorf("invalid storage endpoint %q", endpoint)
	}
	return endpoint, nil
}

// EnsureBucket creates the bucket if it doesn't exist. Call it at startup.
func (s *S3ReportStore) EnsureBucket(ctx context.Context) error {
	_, err := s.client.HeadBucket(ctx, &s3.HeadBucketInput{Bucket: aws.String(s.bucket)})
	if err == nil {
		return nil
	}

	var notFound *types.NotFound
	var noSuchBucket *types.NoSuchBucket
	if !errors.As(err, &notFound) && !errors.As(err, &noSuchBucket) {
		return fmt.Errorf("failed to check bucket existence: %w", err)
	}

	s.logger.Info("Creating report archive bucket", zap.String("bucket", s.bucket))
	_, err = s.client.CreateBucket(ctx, &s3.CreateBucketInput{Bucket: aws.String(s.bucket)})
	if err != nil {
		var alreadyOwned *types.BucketAlreadyOwnedByYou
		if errors.As(err, &alreadyOwned) {
			return nil
		}
		return fmt.Errorf("failed to create bucket: %w", err)
	}
	return nil
}

// PutObject uploads an archive object
func (s *S3ReportStore) PutObject(ctx context.Context, key string, body []byte, contentType string) error {
	if key == "" {
		return ErrEmptyKey
	}

	_, err := s.client.PutObject(ctx, &s3.PutObjectInput{
		Bucket:        aws.String(s.bucket),
		Key:           aws.String(key),
		Body:          bytes.NewReader(body),
		ContentLength: aws.Int64(int64(len(body))),
		ContentType:   aws.String(contentType),
	})
	if err != nil {
		return fmt.Errorf("failed to upload %s: %w", key, err)
	}
	return nil
}

// ObjectExists checks if an object exists
func (s *S3ReportStore) ObjectExists(ctx context.Context, key string) (bool, error) {
	if key == "" {
		return false, ErrEmptyKey
	}

	_, err := s.client.HeadObject(ctx, &s3.HeadObjectInput{
		Bucket: aws.String(s.bucket),
		Key:    aws.String(key),
	})
	if err != nil {
		var notFound *types.NotFound
		var noSuchKey *types.NoSuchKey
		if errors.As(err, &notFound) || errors.As(err, &noSuchKey) {
			return false, nil
		}
		// some S3-compatible servers only surface the code in the message
		if strings.Contains(err.Error(), "NotFound") || strings.Contains(err.Error(), "NoSuchKey") {
			return false, nil
		}
		return false, fmt.Errorf("failed to check object existence: %w", err)
	}
	return true, nil
}

// PresignGet returns a time-limited download link. A non-positive ttl uses
// the store default.
func (s *S3ReportStore) PresignGet(ctx context.Context, key string, ttl time.Duration) (string, time.Time, error) {
	if key == "" {
		return "", time.Time{}, ErrEmptyKey
	}
	if ttl <= 0 {
		ttl = s.presignExpiration
	}

	req, err := s.presignClient.PresignGetObject(ctx, &s3.GetObjectInput{
		Bucket: aws.String(s.bucket),
		Key:    aws.String(key),
	}, s3.WithPresignExpires(ttl))
	if err != nil {
		return "", time.Time{}, fmt.Errorf("failed to presign %s: %w", key, err)
	}
	return req.URL, time.Now().Add(ttl), nil
}

// Bucket returns the bucket name
func (s *S3ReportStore) Bucket() string {
	return s.bucket
}
