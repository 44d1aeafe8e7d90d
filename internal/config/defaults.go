package config

import (
	"time"

	"github.com/spf13/viper"

	"github.com/turtacn/leadscope/internal/application/leadgen"
	"github.com/turtacn/leadscope/internal/application/recommending"
	"github.com/turtacn/leadscope/internal/domain/account"
	"github.com/turtacn/leadscope/internal/domain/installbase"
	"github.com/turtacn/leadscope/internal/infrastructure/monitoring/logging"
)

// ─────────────────────────────────────────────────────────────────────────────
// Default value constants
// ─────────────────────────────────────────────────────────────────────────────

const (
	DefaultFuzzyThreshold = account.DefaultFuzzyThreshold

	DefaultWeightUrgency      = 0.35
	DefaultWeightAccountSize  = 0.30
	DefaultWeightEngagement   = 0.20
	DefaultWeightStrategicFit = 0.15

	DefaultHardwareRefreshDays = leadgen.DefaultHardwareRefreshDays
	DefaultCriticalEOLDays     = installbase.DefaultCriticalEOLDays
	DefaultHighEOLDays         = installbase.DefaultHighEOLDays
	DefaultNearTermEOLDays     = recommending.DefaultNearTermEOLDays

	DefaultPriorityCritical = 75.0
	DefaultPriorityHigh     = 60.0
	DefaultPriorityMedium   = 40.0
	DefaultPriorityLow      = 0.0

	DefaultTopN = recommending.DefaultTopN

	DefaultSourceAssets        = "data/assets.csv"
	DefaultSourceOpportunities = "data/opportunities.csv"
	DefaultSourceProjects      = "data/projects.csv"
	DefaultSourceCatalog       = "data/catalog.csv"
	DefaultOutputDir           = "out"

	DefaultWorkers = 4

	DefaultLogLevel  = logging.LevelInfo
	DefaultLogFormat = "json"

	DefaultDBHost         = "localhost"
	DefaultDBPort         = 5432
	DefaultDBName         = "leadscope"
	DefaultDBSSLMode      = "disable"
	DefaultDBMaxOpenConns = 10
	DefaultMigrationPath  = "migrations"

	DefaultRedisAddr      = "localhost:6379"
	DefaultRedisKeyPrefix = "leadscope:"

	DefaultMinIOEndpoint = "localhost:9000"
	DefaultMinIOBucket   = "leadscope-exports"

	DefaultKafkaBroker    = "localhost:9092"
	DefaultKafkaTopic     = "leadscope.leads.scored"
	DefaultKafkaBatchSize = 100

	DefaultMetricsNamespace = "leadscope"
	DefaultMetricsJob       = "leadscope_pipeline"
)

// DefaultUrgencyBands are the lower bounds of the urgency sub-score bands.
var DefaultUrgencyBands = []int{1825, 1095, 365, 0}

// NewDefaultConfig returns a Config with every default applied.
func NewDefaultConfig() *Config {
	cfg := &Config{}
	ApplyDefaults(cfg)
	return cfg
}

// ApplyDefaults fills zero-value fields in cfg with defaults.  Fields that
// have already been set are left unchanged so explicit configuration always
// wins.  Weights and priority thresholds are only defaulted as a whole group
// when every member is zero; a partially set group is left for Validate to
// reject.
func ApplyDefaults(cfg *Config) {
	if cfg == nil {
		return
	}

	// ── Engine ────────────────────────────────────────────────────────────────
	e := &cfg.Engine
	if e.FuzzyThreshold == 0 {
		e.FuzzyThreshold = DefaultFuzzyThreshold
	}
	if e.ScoringWeights == (ScoringWeightsConfig{}) {
		e.ScoringWeights = ScoringWeightsConfig{
			Urgency:      DefaultWeightUrgency,
			AccountSize:  DefaultWeightAccountSize,
			Engagement:   DefaultWeightEngagement,
			StrategicFit: DefaultWeightStrategicFit,
		}
	}
	if e.PriorityThresholds == (PriorityThresholdsConfig{}) {
		e.PriorityThresholds = PriorityThresholdsConfig{
			Critical: DefaultPriorityCritical,
			High:     DefaultPriorityHigh,
			Medium:   DefaultPriorityMedium,
			Low:      DefaultPriorityLow,
		}
	}
	u := &e.UrgencyThresholds
	if u.HardwareRefreshDays == 0 {
		u.HardwareRefreshDays = DefaultHardwareRefreshDays
	}
	if u.CriticalEOLDays == 0 {
		u.CriticalEOLDays = DefaultCriticalEOLDays
	}
	if u.HighEOLDays == 0 {
		u.HighEOLDays = DefaultHighEOLDays
	}
	if u.NearTermEOLDays == 0 {
		u.NearTermEOLDays = DefaultNearTermEOLDays
	}
	if len(u.UrgencyBands) == 0 {
		u.UrgencyBands = append([]int(nil), DefaultUrgencyBands...)
	}
	if e.ExpiredPattern == "" {
		e.ExpiredPattern = installbase.DefaultExpiredPattern
	}
	if e.UncoveredPattern == "" {
		e.UncoveredPattern = installbase.DefaultUncoveredPattern
	}

	// ── Recommendation ────────────────────────────────────────────────────────
	if cfg.Recommendation.TopN == 0 {
		cfg.Recommendation.TopN = DefaultTopN
	}
	if len(cfg.Recommendation.FallbackServices) == 0 {
		cfg.Recommendation.FallbackServices = append([]string(nil), recommending.DefaultFallbackServices...)
	}

	// ── Sources / Output / Pipeline ───────────────────────────────────────────
	if cfg.Sources.Assets == "" {
		cfg.Sources.Assets = DefaultSourceAssets
	}
	if cfg.Sources.Opportunities == "" {
		cfg.Sources.Opportunities = DefaultSourceOpportunities
	}
	if cfg.Sources.Projects == "" {
		cfg.Sources.Projects = DefaultSourceProjects
	}
	if cfg.Sources.Catalog == "" {
		cfg.Sources.Catalog = DefaultSourceCatalog
	}
	if cfg.Output.Dir == "" {
		cfg.Output.Dir = DefaultOutputDir
	}
	if cfg.Pipeline.Workers == 0 {
		cfg.Pipeline.Workers = DefaultWorkers
	}

	// ── Log ───────────────────────────────────────────────────────────────────
	if cfg.Log.Level == "" {
		cfg.Log.Level = DefaultLogLevel
	}
	if cfg.Log.Format == "" {
		cfg.Log.Format = DefaultLogFormat
	}

	// ── Database ──────────────────────────────────────────────────────────────
	if cfg.Database.Host == "" {
		cfg.Database.Host = DefaultDBHost
	}
	if cfg.Database.Port == 0 {
		cfg.Database.Port = DefaultDBPort
	}
	if cfg.Database.DBName == "" {
		cfg.Database.DBName = DefaultDBName
	}
	if cfg.Database.SSLMode == "" {
		cfg.Database.SSLMode = DefaultDBSSLMode
	}
	if cfg.Database.MaxOpenConns == 0 {
		cfg.Database.MaxOpenConns = DefaultDBMaxOpenConns
	}
	if cfg.Database.ConnMaxLifetime == 0 {
		cfg.Database.ConnMaxLifetime = 30 * time.Minute
	}
	if cfg.Database.MigrationPath == "" {
		cfg.Database.MigrationPath = DefaultMigrationPath
	}

	// ── Redis ─────────────────────────────────────────────────────────────────
	if cfg.Redis.Addr == "" {
		cfg.Redis.Addr = DefaultRedisAddr
	}
	if cfg.Redis.KeyPrefix == "" {
		cfg.Redis.KeyPrefix = DefaultRedisKeyPrefix
	}
	if cfg.Redis.DialTimeout == 0 {
		cfg.Redis.DialTimeout = 5 * time.Second
	}

	// ── MinIO ─────────────────────────────────────────────────────────────────
	if cfg.MinIO.Endpoint == "" {
		cfg.MinIO.Endpoint = DefaultMinIOEndpoint
	}
	if cfg.MinIO.Bucket == "" {
		cfg.MinIO.Bucket = DefaultMinIOBucket
	}

	// ── Kafka ─────────────────────────────────────────────────────────────────
	if len(cfg.Kafka.Brokers) == 0 {
		cfg.Kafka.Brokers = []string{DefaultKafkaBroker}
	}
	if cfg.Kafka.Topic == "" {
		cfg.Kafka.Topic = DefaultKafkaTopic
	}
	if cfg.Kafka.BatchSize == 0 {
		cfg.Kafka.BatchSize = DefaultKafkaBatchSize
	}
	if cfg.Kafka.WriteTimeout == 0 {
		cfg.Kafka.WriteTimeout = 10 * time.Second
	}

	// ── Metrics ───────────────────────────────────────────────────────────────
	if cfg.Metrics.Namespace == "" {
		cfg.Metrics.Namespace = DefaultMetricsNamespace
	}
	if cfg.Metrics.JobName == "" {
		cfg.Metrics.JobName = DefaultMetricsJob
	}
}

// registerDefaults makes every scalar key known to v, so an environment
// override applies even when the key is absent from the config file.
func registerDefaults(v *viper.Viper) {
	d := NewDefaultConfig()

	v.SetDefault("engine.fuzzy_threshold", d.Engine.FuzzyThreshold)
	v.SetDefault("engine.scoring_weights.urgency", d.Engine.ScoringWeights.Urgency)
	v.SetDefault("engine.scoring_weights.account_size", d.Engine.ScoringWeights.AccountSize)
	v.SetDefault("engine.scoring_weights.engagement", d.Engine.ScoringWeights.Engagement)
	v.SetDefault("engine.scoring_weights.strategic_fit", d.Engine.ScoringWeights.StrategicFit)
	v.SetDefault("engine.urgency_thresholds.hardware_refresh_days", d.Engine.UrgencyThresholds.HardwareRefreshDays)
	v.SetDefault("engine.urgency_thresholds.critical_eol_days", d.Engine.UrgencyThresholds.CriticalEOLDays)
	v.SetDefault("engine.urgency_thresholds.high_eol_days", d.Engine.UrgencyThresholds.HighEOLDays)
	v.SetDefault("engine.urgency_thresholds.near_term_eol_days", d.Engine.UrgencyThresholds.NearTermEOLDays)
	v.SetDefault("engine.urgency_thresholds.urgency_bands", d.Engine.UrgencyThresholds.UrgencyBands)
	v.SetDefault("engine.priority_thresholds.critical", d.Engine.PriorityThresholds.Critical)
	v.SetDefault("engine.priority_thresholds.high", d.Engine.PriorityThresholds.High)
	v.SetDefault("engine.priority_thresholds.medium", d.Engine.PriorityThresholds.Medium)
	v.SetDefault("engine.priority_thresholds.low", d.Engine.PriorityThresholds.Low)
	v.SetDefault("engine.expired_pattern", d.Engine.ExpiredPattern)
	v.SetDefault("engine.uncovered_pattern", d.Engine.UncoveredPattern)
	v.SetDefault("engine.as_of", "")

	v.SetDefault("recommendation.top_n", d.Recommendation.TopN)
	v.SetDefault("recommendation.fallback_services", d.Recommendation.FallbackServices)
	v.SetDefault("recommendation.strategic_families", []string{})

	v.SetDefault("sources.assets", d.Sources.Assets)
	v.SetDefault("sources.opportunities", d.Sources.Opportunities)
	v.SetDefault("sources.projects", d.Sources.Projects)
	v.SetDefault("sources.catalog", d.Sources.Catalog)
	v.SetDefault("output.dir", d.Output.Dir)
	v.SetDefault("pipeline.workers", d.Pipeline.Workers)

	v.SetDefault("log.level", d.Log.Level)
	v.SetDefault("log.format", d.Log.Format)

	v.SetDefault("database.enabled", false)
	v.SetDefault("database.host", d.Database.Host)
	v.SetDefault("database.port", d.Database.Port)
	v.SetDefault("database.user", "")
	v.SetDefault("database.password", "")
	v.SetDefault("database.db_name", d.Database.DBName)
	v.SetDefault("database.ssl_mode", d.Database.SSLMode)
	v.SetDefault("database.max_open_conns", d.Database.MaxOpenConns)
	v.SetDefault("database.conn_max_lifetime", d.Database.ConnMaxLifetime)
	v.SetDefault("database.migration_path", d.Database.MigrationPath)

	v.SetDefault("redis.enabled", false)
	v.SetDefault("redis.addr", d.Redis.Addr)
	v.SetDefault("redis.password", "")
	v.SetDefault("redis.db", 0)
	v.SetDefault("redis.key_prefix", d.Redis.KeyPrefix)

	v.SetDefault("minio.enabled", false)
	v.SetDefault("minio.endpoint", d.MinIO.Endpoint)
	v.SetDefault("minio.access_key_id", "")
	v.SetDefault("minio.secret_access_key", "")
	v.SetDefault("minio.use_ssl", false)
	v.SetDefault("minio.bucket", d.MinIO.Bucket)
	v.SetDefault("minio.prefix", "")
	v.SetDefault("minio.retention_days", 0)

	v.SetDefault("kafka.enabled", false)
	v.SetDefault("kafka.brokers", d.Kafka.Brokers)
	v.SetDefault("kafka.topic", d.Kafka.Topic)
	v.SetDefault("kafka.batch_size", d.Kafka.BatchSize)
	v.SetDefault("kafka.acks", "one")
	v.SetDefault("kafka.compression", "")

	v.SetDefault("metrics.enabled", false)
	v.SetDefault("metrics.namespace", d.Metrics.Namespace)
	v.SetDefault("metrics.pushgateway_url", "")
	v.SetDefault("metrics.job_name", d.Metrics.JobName)
}
