package ingestion

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"os"
	"path"
	"path/filepath"
	"time"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/config"
	"github.com/aws/aws-sdk-go-v2/credentials"
	"github.com/aws/aws-sdk-go-v2/service/s3"
)

// Archiver stores a raw snapshot body under key.
type Archiver interface {
	Archive(ctx context.Context, key string, body []byte) error
}

// ArchiveKey returns the archive name for a run started at t.
func ArchiveKey(t time.Time) string {
	return t.Format("20060102T150405") + ".json"
}

// FileArchiver writes bodies into a local directory.
type FileArchiver struct {
	dir string
}

// NewFileArchiver creates the directory if needed.
func NewFileArchiver(dir string) (*FileArchiver, error) {
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return nil, fmt.Errorf("create archive dir: %w", err)
	}
	return &FileArchiver{dir: dir}, nil
}

// Archive writes body to dir/key through a temp file and rename.
func (a *FileArchiver) Archive(_ context.Context, key string, body []byte) error {
	dst := filepath.Join(a.dir, key)
	tmp := dst + ".tmp"
	if err := os.WriteFile(tmp, body, 0o644); err != nil {
		return fmt.Errorf("write archive: %w", err)
	}
	if err := os.Rename(tmp, dst); err != nil {
		os.Remove(tmp)
		return fmt.Errorf("rename archive: %w", err)
	}
	return nil
}

// S3Config holds configuration for S3-compatible archive storage.
type S3Config struct {
	Bucket          string
	Region          string
	Endpoint        string // optional, for MinIO, R2 and similar
	Prefix          string // key prefix, e.g. "wildhammer/"
	AccessKeyID     string
	SecretAccessKey string
}

// S3Archiver uploads bodies to an S3 bucket.
type S3Archiver struct {
	client *s3.Client
	bucket string
	prefix string
}

// NewS3Archiver creates a new S3 archiver. Static credentials are used when
// given, otherwise the default AWS credential chain applies.
func NewS3Archiver(ctx context.Context, cfg S3Config) (*S3Archiver, error) {
	loadOpts := []func(*config.LoadOptions) error{config.WithRegion(cfg.Region)}
	if cfg.AccessKeyID != "" {
		loadOpts = append(loadOpts, config.WithCredentialsProvider(
			credentials.NewStaticCredentialsProvider(cfg.AccessKeyID, cfg.SecretAccessKey, ""),
		))
	}

	awsCfg, err := config.LoadDefaultConfig(ctx, loadOpts...)
	if err != nil {
		return nil, fmt.Errorf("load aws config: %w", err)
	}

	client := s3.NewFromConfig(awsCfg, func(o *s3.Options) {
		if cfg.Endpoint != "" {
			o.BaseEndpoint = aws.String(cfg.Endpoint)
			o.UsePathStyle = true
		}
	})

	return &S3Archiver{client: client, bucket: cfg.Bucket, prefix: cfg.Prefix}, nil
}

// Archive uploads body as prefix+key.
func (a *S3Archiver) Archive(ctx context.Context, key string, body []byte) error {
	_, err := a.client.PutObject(ctx, &s3.PutObjectInput{
		Bucket:      aws.String(a.bucket),
		Key:         aws.String(path.Join(a.prefix, key)),
		Body:        bytes.NewReader(body),
		ContentType: aws.String("application/json"),
	})
	if err != nil {
		return fmt.Errorf("put object: %w", err)
	}
	return nil
}

// MultiArchiver archives to every target and joins their errors.
type MultiArchiver []Archiver

// Archive calls each archiver in turn.
func (m MultiArchiver) Archive(ctx context.Context, key string, body []byte) error {
	var errs []error
	for _, a := range m {
		if err := a.Archive(ctx, key, body); err != nil {
			errs = append(errs, err)
		}
	}
	return errors.Join(errs...)
}
