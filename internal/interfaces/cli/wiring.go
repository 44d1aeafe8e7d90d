package cli

import (
	"context"
	"io"

	"github.com/turtacn/leadscope/internal/application/leadgen"
	"github.com/turtacn/leadscope/internal/application/pipeline"
	"github.com/turtacn/leadscope/internal/application/recommending"
	"github.com/turtacn/leadscope/internal/application/scoring"
	"github.com/turtacn/leadscope/internal/config"
	"github.com/turtacn/leadscope/internal/domain/account"
	"github.com/turtacn/leadscope/internal/infrastructure/database/postgres"
	"github.com/turtacn/leadscope/internal/infrastructure/database/postgres/repositories"
	"github.com/turtacn/leadscope/internal/infrastructure/database/redis"
	"github.com/turtacn/leadscope/internal/infrastructure/ingest"
	"github.com/turtacn/leadscope/internal/infrastructure/messaging/kafka"
	"github.com/turtacn/leadscope/internal/infrastructure/monitoring/logging"
	"github.com/turtacn/leadscope/internal/infrastructure/monitoring/prometheus"
	"github.com/turtacn/leadscope/internal/infrastructure/storage/minio"
)

// components is the wired object graph of one command invocation.
type components struct {
	Pipeline *pipeline.Pipeline
	Source   *ingest.Source
	RunLock  *redis.RunLock

	closers []io.Closer
}

// Close releases every opened connection in reverse order.
func (c *components) Close() error {
	var first error
	for i := len(c.closers) - 1; i >= 0; i-- {
		if err := c.closers[i].Close(); err != nil && first == nil {
			first = err
		}
	}
	c.closers = nil
	return first
}

// newRegistry builds the account registry from engine settings.
func newRegistry(cfg *config.Config) *account.Registry {
	return account.NewRegistry(account.NewAliasTable(cfg.Engine.KnownAccountAliases), cfg.Engine.FuzzyThreshold)
}

// newPipelineConfig maps configuration onto the core collaborators.  No
// sinks are attached.
func newPipelineConfig(cfg *config.Config, log logging.Logger) (pipeline.Config, error) {
	asOf, err := cfg.AsOf()
	if err != nil {
		return pipeline.Config{}, err
	}
	risk, err := cfg.RiskPolicy()
	if err != nil {
		return pipeline.Config{}, err
	}

	detector := leadgen.NewDetector(leadgen.Config{
		HardwareRefreshDays: cfg.Engine.UrgencyThresholds.HardwareRefreshDays,
		Risk:                risk,
		AsOf:                asOf,
	}, log)

	scorer, err := scoring.NewScorer(scoring.Config{
		Weights:           cfg.Weights(),
		Urgency:           cfg.UrgencyBands(),
		Priority:          cfg.PriorityBands(),
		StrategicFamilies: cfg.Recommendation.StrategicFamilies,
		AsOf:              asOf,
	}, log)
	if err != nil {
		return pipeline.Config{}, err
	}

	return pipeline.Config{
		Registry: newRegistry(cfg),
		Detector: detector,
		Scorer:   scorer,
		Recommend: recommending.Config{
			TopN:             cfg.Recommendation.TopN,
			NearTermEOLDays:  cfg.Engine.UrgencyThresholds.NearTermEOLDays,
			FallbackServices: cfg.Recommendation.FallbackServices,
		},
		Workers: cfg.Pipeline.Workers,
		Logger:  log,
	}, nil
}

func newSource(cfg *config.Config, log logging.Logger) *ingest.Source {
	return ingest.NewSource(ingest.Files{
		Assets:        cfg.Sources.Assets,
		Opportunities: cfg.Sources.Opportunities,
		Projects:      cfg.Sources.Projects,
		Catalog:       cfg.Sources.Catalog,
	}, log)
}

// postgresConfig maps the database section onto the connection settings.
func postgresConfig(db config.DatabaseConfig) postgres.PostgresConfig {
	return postgres.PostgresConfig{
		Host:            db.Host,
		Port:            db.Port,
		Database:        db.DBName,
		Username:        db.User,
		Password:        db.Password,
		SSLMode:         db.SSLMode,
		MaxOpenConns:    db.MaxOpenConns,
		MaxIdleConns:    db.MaxIdleConns,
		ConnMaxLifetime: db.ConnMaxLifetime,
	}
}

// buildComponents wires the pipeline.  With sinks false only the core
// pipeline and the source are built, which is what read-only commands need.
func buildComponents(ctx context.Context, cfg *config.Config, log logging.Logger, sinks bool) (c *components, err error) {
	pcfg, err := newPipelineConfig(cfg, log)
	if err != nil {
		return nil, err
	}
	c = &components{Source: newSource(cfg, log)}
	defer func() {
		if err != nil {
			_ = c.Close()
		}
	}()

	if sinks {
		if err := attachSinks(ctx, cfg, log, &pcfg, c); err != nil {
			return nil, err
		}
	}

	c.Pipeline, err = pipeline.New(pcfg)
	if err != nil {
		return nil, err
	}
	return c, nil
}

func attachSinks(ctx context.Context, cfg *config.Config, log logging.Logger, pcfg *pipeline.Config, c *components) error {
	pcfg.OutputDir = cfg.Output.Dir

	if cfg.Redis.Enabled {
		client, err := redis.NewClient(ctx, redis.RedisConfig{
			Addr:        cfg.Redis.Addr,
			Password:    cfg.Redis.Password,
			DB:          cfg.Redis.DB,
			KeyPrefix:   cfg.Redis.KeyPrefix,
			DialTimeout: cfg.Redis.DialTimeout,
		}, log)
		if err != nil {
			return err
		}
		c.closers = append(c.closers, client)
		pcfg.RegistrationStore = redis.NewRegistrationStore(client, log)
		c.RunLock = redis.NewRunLock(client, "pipeline", redis.DefaultLockTTL, log)
	}

	if cfg.Database.Enabled {
		conn, err := postgres.NewConnection(ctx, postgresConfig(cfg.Database), log)
		if err != nil {
			return err
		}
		c.closers = append(c.closers, conn)
		pcfg.Leads = repositories.NewPostgresLeadRepo(conn, log)
		pcfg.Recommendations = repositories.NewPostgresRecommendationRepo(conn, log)
	}

	if cfg.MinIO.Enabled {
		client, err := minio.NewMinIOClient(ctx, minio.MinIOConfig{
			Endpoint:        cfg.MinIO.Endpoint,
			AccessKeyID:     cfg.MinIO.AccessKeyID,
			SecretAccessKey: cfg.MinIO.SecretAccessKey,
			UseSSL:          cfg.MinIO.UseSSL,
			Region:          cfg.MinIO.Region,
			Bucket:          cfg.MinIO.Bucket,
			Prefix:          cfg.MinIO.Prefix,
			RetentionDays:   cfg.MinIO.RetentionDays,
		}, log)
		if err != nil {
			return err
		}
		pcfg.Uploader = minio.NewUploader(client, log)
	}

	if cfg.Kafka.Enabled {
		producer, err := kafka.NewProducer(kafka.ProducerConfig{
			Brokers:          cfg.Kafka.Brokers,
			Acks:             cfg.Kafka.Acks,
			BatchSize:        cfg.Kafka.BatchSize,
			CompressionCodec: cfg.Kafka.Compression,
			WriteTimeout:     cfg.Kafka.WriteTimeout,
		}, log)
		if err != nil {
			return err
		}
		c.closers = append(c.closers, producer)
		pcfg.Publisher = kafka.NewLeadPublisher(producer, cfg.Kafka.Topic, log)
	}

	if cfg.Metrics.Enabled {
		collector, err := prometheus.NewMetricsCollector(prometheus.CollectorConfig{
			Namespace:       cfg.Metrics.Namespace,
			EnableGoMetrics: false,
		}, log)
		if err != nil {
			return err
		}
		pcfg.Metrics = prometheus.NewPipelineMetrics(collector, prometheus.PushConfig{
			URL:     cfg.Metrics.PushgatewayURL,
			JobName: cfg.Metrics.JobName,
		}, log)
	}
	return nil
}
