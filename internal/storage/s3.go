package storage

import (
	"context"
	"fmt"
	"io/fs"
	"path"

	"github.com/minio/minio-go/v7"
	"github.com/minio/minio-go/v7/pkg/credentials"
	"github.com/muandane/estatic/internal/config"
)

// NewMinioClient initializes the MinIO client with the provided configuration.
func NewMinioClient(cfg config.StorageConfig) (*minio.Client, error) {
	client, err := minio.New(cfg.Endpoint, &minio.Options{
		Creds:  credentials.NewStaticV4(cfg.AccessKeyID, cfg.SecretAccessKey, ""),
		Secure: cfg.UseSSL,
	})
	if err != nil {
		return nil, fmt.Errorf("failed to initialize minio client: %w", err)
	}
	return client, nil
}

// S3Source serves objects from a bucket, optionally under a key prefix.
type S3Source struct {
	client *minio.Client
	bucket string
	prefix string
}

func NewS3Source(client *minio.Client, bucket, prefix string) *S3Source {
	return &S3Source{client: client, bucket: bucket, prefix: prefix}
}

func (s *S3Source) key(name string) string {
	return path.Join(s.prefix, CleanPath(name))
}

func (s *S3Source) Stat(ctx context.Context, name string) (FileInfo, error) {
	key := s.key(name)
	info, err := s.client.StatObject(ctx, s.bucket, key, minio.StatObjectOptions{})
	if err != nil {
		return FileInfo{}, s.translate("stat", key, err)
	}
	return FileInfo{
		Name:    CleanPath(name),
		Size:    info.Size,
		ModTime: info.LastModified,
	}, nil
}

// Open returns the object as a seekable reader. minio defers the request
// until the first read, so existence is checked with Stat on the object.
func (s *S3Source) Open(ctx context.Context, name string) (File, error) {
	key := s.key(name)
	obj, err := s.client.GetObject(ctx, s.bucket, key, minio.GetObjectOptions{})
	if err != nil {
		return nil, s.translate("open", key, err)
	}
	if _, err := obj.Stat(); err != nil {
		obj.Close()
		return nil, s.translate("open", key, err)
	}
	return obj, nil
}

func (s *S3Source) translate(op, key string, err error) error {
	switch minio.ToErrorResponse(err).Code {
	case "NoSuchKey", "NoSuchBucket":
		return &fs.PathError{Op: op, Path: key, Err: fs.ErrNotExist}
	}
	return fmt.Errorf("%s s3://%s/%s: %w", op, s.bucket, key, err)
}
