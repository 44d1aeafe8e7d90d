// Package minio uploads run exports to S3-compatible object storage.
package minio

import (
	"context"
	"strings"
	"time"

	"github.com/minio/minio-go/v7"
	"github.com/minio/minio-go/v7/pkg/credentials"
	"github.com/minio/minio-go/v7/pkg/lifecycle"

	"github.com/turtacn/leadscope/internal/infrastructure/monitoring/logging"
	"github.com/turtacn/leadscope/pkg/errors"
)

// MinIOAPI is the subset of *minio.Client used here.
type MinIOAPI interface {
	BucketExists(ctx context.Context, bucketName string) (bool, error)
	MakeBucket(ctx context.Context, bucketName string, opts minio.MakeBucketOptions) error
	SetBucketLifecycle(ctx context.Context, bucketName string, config *lifecycle.Configuration) error
	FPutObject(ctx context.Context, bucketName, objectName, filePath string, opts minio.PutObjectOptions) (minio.UploadInfo, error)
	StatObject(ctx context.Context, bucketName, objectName string, opts minio.StatObjectOptions) (minio.ObjectInfo, error)
}

// MinIOConfig holds the object-storage parameters.
type MinIOConfig struct {
	Endpoint        string `mapstructure:"endpoint"`
	AccessKeyID     string `mapstructure:"access_key_id"`
	SecretAccessKey string `mapstructure:"secret_access_key"`
	UseSSL          bool   `mapstructure:"use_ssl"`
	Region          string `mapstructure:"region"`
	Bucket          string `mapstructure:"bucket"`
	// Prefix is prepended to every object name, e.g. "runs/2025-06-01".
	Prefix string `mapstructure:"prefix"`
	// RetentionDays expires uploaded exports; zero keeps them forever.
	RetentionDays int `mapstructure:"retention_days"`
}

// MinIOClient owns the bucket that receives exports.
type MinIOClient struct {
	client MinIOAPI
	config MinIOConfig
	logger logging.Logger
}

// NewMinIOClient connects to cfg.Endpoint and ensures the bucket exists.
func NewMinIOClient(ctx context.Context, cfg MinIOConfig, log logging.Logger) (*MinIOClient, error) {
	if cfg.Endpoint == "" || cfg.Bucket == "" {
		return nil, errors.InvalidParam("minio endpoint and bucket are required")
	}
	api, err := minio.New(cfg.Endpoint, &minio.Options{
		Creds:  credentials.NewStaticV4(cfg.AccessKeyID, cfg.SecretAccessKey, ""),
		Secure: cfg.UseSSL,
		Region: cfg.Region,
	})
	if err != nil {
		return nil, errors.Wrap(err, errors.ErrCodeExternalService, "failed to create minio client")
	}
	return NewMinIOClientWithAPI(ctx, api, cfg, log)
}

// NewMinIOClientWithAPI wraps api and prepares the bucket.
func NewMinIOClientWithAPI(ctx context.Context, api MinIOAPI, cfg MinIOConfig, log logging.Logger) (*MinIOClient, error) {
	if log == nil {
		log = logging.NewNopLogger()
	}
	applyDefaults(&cfg)
	c := &MinIOClient{client: api, config: cfg, logger: log.Named("minio")}

	setupCtx, cancel := context.WithTimeout(ctx, 10*time.Second)
	defer cancel()
	if err := c.EnsureBucket(setupCtx); err != nil {
		return nil, err
	}
	c.setupLifecycle(setupCtx)

	c.logger.Info("minio client connected",
		logging.String("endpoint", cfg.Endpoint),
		logging.String("bucket", cfg.Bucket),
		logging.Bool("ssl", cfg.UseSSL))
	return c, nil
}

func applyDefaults(cfg *MinIOConfig) {
	if cfg.Region == "" {
		cfg.Region = "us-east-1"
	}
	cfg.Prefix = strings.Trim(cfg.Prefix, "/")
}

// EnsureBucket creates the export bucket when missing.
func (c *MinIOClient) EnsureBucket(ctx context.Context) error {
	exists, err := c.client.BucketExists(ctx, c.config.Bucket)
	if err != nil {
		return errors.Wrap(err, errors.ErrCodeExternalService, "failed to check bucket existence").WithDetail(c.config.Bucket)
	}
	if exists {
		return nil
	}
	if err := c.client.MakeBucket(ctx, c.config.Bucket, minio.MakeBucketOptions{Region: c.config.Region}); err != nil {
		return errors.Wrap(err, errors.ErrCodeExternalService, "failed to create bucket").WithDetail(c.config.Bucket)
	}
	c.logger.Info("created bucket", logging.String("bucket", c.config.Bucket))
	return nil
}

// setupLifecycle expires exports after RetentionDays.  Failure is logged;
// some S3-compatible stores do not implement lifecycle rules.
func (c *MinIOClient) setupLifecycle(ctx context.Context) {
	if c.config.RetentionDays <= 0 {
		return
	}
	cfg := lifecycle.NewConfiguration()
	cfg.Rules = []lifecycle.Rule{
		{
			ID:     "leadscope-exports-cleanup",
			Status: "Enabled",
			Expiration: lifecycle.Expiration{
				Days: lifecycle.ExpirationDays(c.config.RetentionDays),
			},
			RuleFilter: lifecycle.Filter{Prefix: c.config.Prefix},
		},
	}
	if err := c.client.SetBucketLifecycle(ctx, c.config.Bucket, cfg); err != nil {
		c.logger.Warn("failed to set bucket lifecycle", logging.String("bucket", c.config.Bucket), logging.Err(err))
	}
}

// Bucket returns the export bucket name.
func (c *MinIOClient) Bucket() string { return c.config.Bucket }

// ObjectName places name under the configured prefix.
func (c *MinIOClient) ObjectName(name string) string {
	name = strings.TrimLeft(name, "/")
	if c.config.Prefix == "" {
		return name
	}
	return c.config.Prefix + "/" + name
}
