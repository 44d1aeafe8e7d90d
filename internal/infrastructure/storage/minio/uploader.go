package minio

import (
	"context"
	"path/filepath"
	"strings"

	"github.com/minio/minio-go/v7"

	"github.com/turtacn/leadscope/internal/infrastructure/monitoring/logging"
	"github.com/turtacn/leadscope/pkg/errors"
)

// Uploader copies local export files into the bucket.
type Uploader struct {
	client *MinIOClient
	logger logging.Logger
}

// NewUploader returns an Uploader writing through client.
func NewUploader(client *MinIOClient, log logging.Logger) *Uploader {
	if log == nil {
		log = client.logger
	}
	return &Uploader{client: client, logger: log.Named("uploader")}
}

// UploadFile stores the file at path as objectName under the prefix.
func (u *Uploader) UploadFile(ctx context.Context, objectName, path string) error {
	key := u.client.ObjectName(objectName)
	info, err := u.client.client.FPutObject(ctx, u.client.config.Bucket, key, path, minio.PutObjectOptions{
		ContentType:  contentType(path),
		UserMetadata: map[string]string{"source": "leadscope"},
	})
	if err != nil {
		return errors.Wrap(err, errors.ErrCodeExternalService, "failed to upload export").WithDetail(key)
	}
	u.logger.Info("export uploaded",
		logging.String("bucket", info.Bucket),
		logging.String("object", info.Key),
		logging.Int64("size", info.Size))
	return nil
}

// Exists reports whether objectName is present under the prefix.
func (u *Uploader) Exists(ctx context.Context, objectName string) (bool, error) {
	key := u.client.ObjectName(objectName)
	_, err := u.client.client.StatObject(ctx, u.client.config.Bucket, key, minio.StatObjectOptions{})
	if err == nil {
		return true, nil
	}
	if minio.ToErrorResponse(err).Code == "NoSuchKey" {
		return false, nil
	}
	return false, errors.Wrap(err, errors.ErrCodeExternalService, "failed to stat export").WithDetail(key)
}

func contentType(path string) string {
	switch strings.ToLower(filepath.Ext(path)) {
	case ".csv":
		return "text/csv"
	case ".json":
		return "application/json"
	default:
		return "application/octet-stream"
	}
}
