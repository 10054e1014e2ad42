// Package archive provides an optional durable archival tier for completed
// uploads. When configured, a finished upload is copied from local storage
// to an S3-compatible bucket after reassembly. The download-code resolver
// does not read from the archive.
package archive

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"io"
	"strings"
	"sync"
	"time"

	"github.com/aws/aws-sdk-go-v2/aws"
	awsconfig "github.com/aws/aws-sdk-go-v2/config"
	"github.com/aws/aws-sdk-go-v2/service/s3"

	"github.com/marmos91/relayfs/pkg/metrics"
)

// ErrClosed is returned by Store methods after Close has been called.
var ErrClosed = errors.New("archive: store closed")

// ErrNotFound is returned when an object does not exist in the archive.
var ErrNotFound = errors.New("archive: object not found")

// Config holds configuration for the S3 archival tier.
type Config struct {
	// Bucket is the S3 bucket name.
	Bucket string

	// Region is the AWS region (optional, uses SDK default if empty).
	Region string

	// Endpoint is the S3 endpoint URL (optional, for S3-compatible services).
	Endpoint string

	// KeyPrefix is prepended to every object key, e.g. "uploads/".
	KeyPrefix string

	// ForcePathStyle forces path-style addressing (required for MinIO/Localstack).
	ForcePathStyle bool
}

// Store archives finished uploads to S3-compatible object storage, keyed by
// the upload's content fingerprint rather than its display filename.
type Store struct {
	client    *s3.Client
	bucket    string
	keyPrefix string
	metrics   metrics.ArchiveMetrics

	mu     sync.RWMutex
	closed bool
}

// New builds a Store around an existing S3 client.
func New(client *s3.Client, cfg Config) *Store {
	return &Store{client: client, bucket: cfg.Bucket, keyPrefix: cfg.KeyPrefix}
}

// SetMetrics installs a metrics sink for archive operations. Pass nil (the
// default) to disable collection.
func (s *Store) SetMetrics(m metrics.ArchiveMetrics) {
	s.metrics = m
}

// NewFromConfig builds the S3 client from AWS default credential discovery
// and wraps it in a Store. Used when the process has no client of its own.
func NewFromConfig(ctx context.Context, cfg Config) (*Store, error) {
	var opts []func(*awsconfig.LoadOptions) error
	if cfg.Region != "" {
		opts = append(opts, awsconfig.WithRegion(cfg.Region))
	}

	awsCfg, err := awsconfig.LoadDefaultConfig(ctx, opts...)
	if err != nil {
		return nil, fmt.Errorf("load aws config: %w", err)
	}

	var s3Opts []func(*s3.Options)
	if cfg.Endpoint != "" {
		s3Opts = append(s3Opts, func(o *s3.Options) { o.BaseEndpoint = aws.String(cfg.Endpoint) })
	}
	if cfg.ForcePathStyle {
		s3Opts = append(s3Opts, func(o *s3.Options) { o.UsePathStyle = true })
	}

	return New(s3.NewFromConfig(awsCfg, s3Opts...), cfg), nil
}

func (s *Store) objectKey(fileHash string) string {
	return s.keyPrefix + fileHash
}

// PutFile uploads a reassembled file's bytes under its content fingerprint.
func (s *Store) PutFile(ctx context.Context, fileHash string, data []byte) error {
	s.mu.RLock()
	if s.closed {
		s.mu.RUnlock()
		return ErrClosed
	}
	s.mu.RUnlock()

	start := time.Now()
	_, err := s.client.PutObject(ctx, &s3.PutObjectInput{
		Bucket: aws.String(s.bucket),
		Key:    aws.String(s.objectKey(fileHash)),
		Body:   bytes.NewReader(data),
	})
	if s.metrics != nil {
		s.metrics.RecordOperation("put", err == nil, time.Since(start))
		if err == nil {
			s.metrics.RecordBytesTransferred("put", len(data))
		}
	}
	if err != nil {
		return fmt.Errorf("s3 put object: %w", err)
	}
	return nil
}

// GetFile retrieves a previously archived file by its content fingerprint.
func (s *Store) GetFile(ctx context.Context, fileHash string) ([]byte, error) {
	s.mu.RLock()
	if s.closed {
		s.mu.RUnlock()
		return nil, ErrClosed
	}
	s.mu.RUnlock()

	start := time.Now()
	resp, err := s.client.GetObject(ctx, &s3.GetObjectInput{
		Bucket: aws.String(s.bucket),
		Key:    aws.String(s.objectKey(fileHash)),
	})
	if err != nil {
		if s.metrics != nil {
			s.metrics.RecordOperation("get", false, time.Since(start))
		}
		if isNotFoundError(err) {
			return nil, ErrNotFound
		}
		return nil, fmt.Errorf("s3 get object: %w", err)
	}
	defer resp.Body.Close()

	data, err := io.ReadAll(resp.Body)
	if err != nil {
		if s.metrics != nil {
			s.metrics.RecordOperation("get", false, time.Since(start))
		}
		return nil, fmt.Errorf("read s3 object body: %w", err)
	}
	if s.metrics != nil {
		s.metrics.RecordOperation("get", true, time.Since(start))
		s.metrics.RecordBytesTransferred("get", len(data))
	}
	return data, nil
}

// DeleteFile removes an archived file.
func (s *Store) DeleteFile(ctx context.Context, fileHash string) error {
	s.mu.RLock()
	if s.closed {
		s.mu.RUnlock()
		return ErrClosed
	}
	s.mu.RUnlock()

	start := time.Now()
	_, err := s.client.DeleteObject(ctx, &s3.DeleteObjectInput{
		Bucket: aws.String(s.bucket),
		Key:    aws.String(s.objectKey(fileHash)),
	})
	if s.metrics != nil {
		s.metrics.RecordOperation("delete", err == nil, time.Since(start))
	}
	if err != nil {
		return fmt.Errorf("s3 delete object: %w", err)
	}
	return nil
}

// HealthCheck verifies the bucket is reachable and permissions are sane.
func (s *Store) HealthCheck(ctx context.Context) error {
	s.mu.RLock()
	if s.closed {
		s.mu.RUnlock()
		return ErrClosed
	}
	s.mu.RUnlock()

	start := time.Now()
	_, err := s.client.HeadBucket(ctx, &s3.HeadBucketInput{Bucket: aws.String(s.bucket)})
	if s.metrics != nil {
		s.metrics.RecordOperation("health_check", err == nil, time.Since(start))
	}
	if err != nil {
		return fmt.Errorf("s3 health check: %w", err)
	}
	return nil
}

// Close marks the store closed; subsequent calls fail with ErrClosed.
func (s *Store) Close() error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.closed = true
	return nil
}

func isNotFoundError(err error) bool {
	if err == nil {
		return false
	}
	msg := err.Error()
	return strings.Contains(msg, "NoSuchKey") || strings.Contains(msg, "NotFound") || strings.Contains(msg, "404")
}
