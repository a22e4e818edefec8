package persist

import (
	"bytes"
	"context"
	"fmt"
	"io"
	"strings"
	"time"

	"github.com/minio/minio-go/v7"
	"github.com/minio/minio-go/v7/pkg/credentials"
)

const s3Timeout = 10 * time.Second

// S3ArchiveConfig holds the connection settings for an S3-compatible archive
// destination.
type S3ArchiveConfig struct {
	Endpoint  string `json:"endpoint"`
	Region    string `json:"region"`
	Bucket    string `json:"bucket"`
	KeyPrefix string `json:"key_prefix"`
	AccessKey string `json:"-"`
	SecretKey string `json:"-"`
	UseSSL    bool   `json:"use_ssl"`
}

// S3ArchiveSink stores export archives as objects in an S3-compatible bucket.
// Objects are laid out as [keyPrefix/]archives/<name>.
type S3ArchiveSink struct {
	client    *minio.Client
	bucket    string
	keyPrefix string
}

func NewS3ArchiveSink(cfg S3ArchiveConfig) (*S3ArchiveSink, error) {
	if cfg.Endpoint == "" || cfg.Bucket == "" {
		return nil, &StoreError{Op: "s3_archive_open", Err: fmt.Errorf("endpoint and bucket are required")}
	}

	client, err := minio.New(cfg.Endpoint, &minio.Options{
		Creds:  credentials.NewStaticV4(cfg.AccessKey, cfg.SecretKey, ""),
		Secure: cfg.UseSSL,
		Region: cfg.Region,
	})
	if err != nil {
		return nil, &StoreError{Op: "s3_archive_open", Err: err}
	}

	ctx, cancel := context.WithTimeout(context.Background(), s3Timeout)
	defer cancel()

	exists, err := client.BucketExists(ctx, cfg.Bucket)
	if err != nil {
		return nil, &StoreError{Op: "s3_archive_open", Err: err}
	}
	if !exists {
		return nil, &StoreError{Op: "s3_archive_open", Err: fmt.Errorf("bucket %q does not exist", cfg.Bucket)}
	}

	return &S3ArchiveSink{
		client:    client,
		bucket:    cfg.Bucket,
		keyPrefix: strings.Trim(cfg.KeyPrefix, "/"),
	}, nil
}

func (s *S3ArchiveSink) Put(name string, data []byte) error {
	ctx, cancel := context.WithTimeout(context.Background(), s3Timeout)
	defer cancel()

	_, err := s.client.PutObject(ctx, s.bucket, s.objectPath(name),
		bytes.NewReader(data), int64(len(data)), minio.PutObjectOptions{
			ContentType: "application/json",
		})
	if err != nil {
		return &StoreError{Op: "s3_archive_put", Err: err}
	}
	return nil
}

func (s *S3ArchiveSink) Get(name string) ([]byte, error) {
	ctx, cancel := context.WithTimeout(context.Background(), s3Timeout)
	defer cancel()

	obj, err := s.client.GetObject(ctx, s.bucket, s.objectPath(name), minio.GetObjectOptions{})
	if err != nil {
		return nil, &StoreError{Op: "s3_archive_get", Err: err}
	}
	defer obj.Close()

	data, err := io.ReadAll(obj)
	if err != nil {
		if minio.ToErrorResponse(err).Code == "NoSuchKey" {
			return nil, ErrNotFound
		}
		return nil, &StoreError{Op: "s3_archive_get", Err: err}
	}
	return data, nil
}

func (s *S3ArchiveSink) objectPath(name string) string {
	if s.keyPrefix == "" {
		return "archives/" + name
	}
	return s.keyPrefix + "/archives/" + name
}

var _ ArchiveSink = (*S3ArchiveSink)(nil)
