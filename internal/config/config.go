// Package config defines the configuration structures of leadscope.  No I/O
// or parsing logic lives here, only plain data types, conversions to the
// component settings and validation.
package config

import (
	"fmt"
	"strings"
	"time"

	"github.com/turtacn/leadscope/internal/application/scoring"
	"github.com/turtacn/leadscope/internal/domain/installbase"
	"github.com/turtacn/leadscope/internal/domain/lead"
	"github.com/turtacn/leadscope/internal/infrastructure/monitoring/logging"
	"github.com/turtacn/leadscope/pkg/errors"
)

// AsOfLayout is the accepted layout of engine.as_of.
const AsOfLayout = "2006-01-02"

// ─────────────────────────────────────────────────────────────────────────────
// Engine
// ─────────────────────────────────────────────────────────────────────────────

// ScoringWeightsConfig holds the four lead-score factor weights.
type ScoringWeightsConfig struct {
	Urgency      float64 `mapstructure:"urgency"`
	AccountSize  float64 `mapstructure:"account_size"`
	Engagement   float64 `mapstructure:"engagement"`
	StrategicFit float64 `mapstructure:"strategic_fit"`
}

// UrgencyThresholdsConfig holds the day counts used by detection, risk and
// urgency scoring.
type UrgencyThresholdsConfig struct {
	HardwareRefreshDays int `mapstructure:"hardware_refresh_days"`
	CriticalEOLDays     int `mapstructure:"critical_eol_days"`
	HighEOLDays         int `mapstructure:"high_eol_days"`
	NearTermEOLDays     int `mapstructure:"near_term_eol_days"`

	// UrgencyBands are the descending lower bounds of the 100/80/60/40 urgency
	// sub-scores.  The last entry must be 0.
	UrgencyBands []int `mapstructure:"urgency_bands"`
}

// PriorityThresholdsConfig holds the lower score bound of each tier.
type PriorityThresholdsConfig struct {
	Critical float64 `mapstructure:"critical"`
	High     float64 `mapstructure:"high"`
	Medium   float64 `mapstructure:"medium"`
	Low      float64 `mapstructure:"low"`
}

// EngineConfig tunes normalization, detection and scoring.
type EngineConfig struct {
	FuzzyThreshold      int                      `mapstructure:"fuzzy_threshold"`
	ScoringWeights      ScoringWeightsConfig     `mapstructure:"scoring_weights"`
	UrgencyThresholds   UrgencyThresholdsConfig  `mapstructure:"urgency_thresholds"`
	PriorityThresholds  PriorityThresholdsConfig `mapstructure:"priority_thresholds"`
	KnownAccountAliases [][]string               `mapstructure:"known_account_aliases"`
	ExpiredPattern      string                   `mapstructure:"expired_pattern"`
	UncoveredPattern    string                   `mapstructure:"uncovered_pattern"`

	// AsOf pins the reference date (YYYY-MM-DD) so reruns on another day
	// produce identical output.  Empty means today.
	AsOf string `mapstructure:"as_of"`
}

// RecommendationConfig tunes the service recommender.
type RecommendationConfig struct {
	TopN              int      `mapstructure:"top_n"`
	FallbackServices  []string `mapstructure:"fallback_services"`
	StrategicFamilies []string `mapstructure:"strategic_families"`
}

// ─────────────────────────────────────────────────────────────────────────────
// I/O and infrastructure
// ─────────────────────────────────────────────────────────────────────────────

// SourcesConfig holds the CSV paths of the source tables.
type SourcesConfig struct {
	Assets        string `mapstructure:"assets"`
	Opportunities string `mapstructure:"opportunities"`
	Projects      string `mapstructure:"projects"`
	Catalog       string `mapstructure:"catalog"`
}

// OutputConfig controls the CSV export.
type OutputConfig struct {
	Dir string `mapstructure:"dir"`
}

// PipelineConfig controls batch execution.
type PipelineConfig struct {
	Workers int `mapstructure:"workers"`
}

// DatabaseConfig holds PostgreSQL connection parameters.
type DatabaseConfig struct {
	Enabled         bool          `mapstructure:"enabled"`
	Host            string        `mapstructure:"host"`
	Port            int           `mapstructure:"port"`
	User            string        `mapstructure:"user"`
	Password        string        `mapstructure:"password"`
	DBName          string        `mapstructure:"db_name"`
	SSLMode         string        `mapstructure:"ssl_mode"`
	MaxOpenConns    int           `mapstructure:"max_open_conns"`
	MaxIdleConns    int           `mapstructure:"max_idle_conns"`
	ConnMaxLifetime time.Duration `mapstructure:"conn_max_lifetime"`
	MigrationPath   string        `mapstructure:"migration_path"`
}

// RedisConfig holds the connection used to persist the account-key log.
type RedisConfig struct {
	Enabled     bool          `mapstructure:"enabled"`
	Addr        string        `mapstructure:"addr"`
	Password    string        `mapstructure:"password"`
	DB          int           `mapstructure:"db"`
	KeyPrefix   string        `mapstructure:"key_prefix"`
	DialTimeout time.Duration `mapstructure:"dial_timeout"`
}

// MinIOConfig holds object-storage parameters for export upload.
type MinIOConfig struct {
	Enabled         bool   `mapstructure:"enabled"`
	Endpoint        string `mapstructure:"endpoint"`
	AccessKeyID     string `mapstructure:"access_key_id"`
	SecretAccessKey string `mapstructure:"secret_access_key"`
	UseSSL          bool   `mapstructure:"use_ssl"`
	Region          string `mapstructure:"region"`
	Bucket          string `mapstructure:"bucket"`
	Prefix          string `mapstructure:"prefix"`
	RetentionDays   int    `mapstructure:"retention_days"`
}

// KafkaConfig holds producer parameters for scored-lead events.
type KafkaConfig struct {
	Enabled      bool          `mapstructure:"enabled"`
	Brokers      []string      `mapstructure:"brokers"`
	Topic        string        `mapstructure:"topic"`
	BatchSize    int           `mapstructure:"batch_size"`
	WriteTimeout time.Duration `mapstructure:"write_timeout"`
	Acks         string        `mapstructure:"acks"`
	Compression  string        `mapstructure:"compression"`
}

// MetricsConfig controls Prometheus metrics and the Pushgateway push at the
// end of a run.
type MetricsConfig struct {
	Enabled        bool   `mapstructure:"enabled"`
	Namespace      string `mapstructure:"namespace"`
	PushgatewayURL string `mapstructure:"pushgateway_url"`
	JobName        string `mapstructure:"job_name"`
}

// ─────────────────────────────────────────────────────────────────────────────
// Root
// ─────────────────────────────────────────────────────────────────────────────

// Config is the root configuration.  It is loaded and validated once at
// startup and treated as immutable afterwards.
type Config struct {
	Engine         EngineConfig         `mapstructure:"engine"`
	Recommendation RecommendationConfig `mapstructure:"recommendation"`
	Sources        SourcesConfig        `mapstructure:"sources"`
	Output         OutputConfig         `mapstructure:"output"`
	Pipeline       PipelineConfig       `mapstructure:"pipeline"`
	Log            logging.LogConfig    `mapstructure:"log"`
	Database       DatabaseConfig       `mapstructure:"database"`
	Redis          RedisConfig          `mapstructure:"redis"`
	MinIO          MinIOConfig          `mapstructure:"minio"`
	Kafka          KafkaConfig          `mapstructure:"kafka"`
	Metrics        MetricsConfig        `mapstructure:"metrics"`
}

// Weights converts the configured weights.
func (c *Config) Weights() scoring.Weights {
	w := c.Engine.ScoringWeights
	return scoring.Weights{Urgency: w.Urgency, AccountSize: w.AccountSize, Engagement: w.Engagement, StrategicFit: w.StrategicFit}
}

// PriorityBands converts the configured tier thresholds.
func (c *Config) PriorityBands() lead.PriorityBands {
	p := c.Engine.PriorityThresholds
	return lead.PriorityBands{Critical: p.Critical, High: p.High, Medium: p.Medium, Low: p.Low}
}

// UrgencyBands converts the configured urgency bands.  Missing entries fall
// back to the defaults; Validate reports them.
func (c *Config) UrgencyBands() scoring.UrgencyBands {
	b := c.Engine.UrgencyThresholds.UrgencyBands
	if len(b) < 3 {
		return scoring.DefaultUrgencyBands()
	}
	return scoring.UrgencyBands{Critical: b[0], High: b[1], Elevated: b[2]}
}

// RiskPolicy builds the asset risk policy.
func (c *Config) RiskPolicy() (installbase.RiskPolicy, error) {
	m, err := installbase.NewStatusMatcher(c.Engine.ExpiredPattern, c.Engine.UncoveredPattern)
	if err != nil {
		return installbase.RiskPolicy{}, err
	}
	return installbase.RiskPolicy{
		CriticalEOLDays: c.Engine.UrgencyThresholds.CriticalEOLDays,
		HighEOLDays:     c.Engine.UrgencyThresholds.HighEOLDays,
		Status:          m,
	}, nil
}

// AsOf returns the pinned reference date, or the zero time when unset.
func (c *Config) AsOf() (time.Time, error) {
	s := strings.TrimSpace(c.Engine.AsOf)
	if s == "" {
		return time.Time{}, nil
	}
	t, err := time.Parse(AsOfLayout, s)
	if err != nil {
		return time.Time{}, errors.Wrap(err, errors.ErrCodeValidation, "engine.as_of must be YYYY-MM-DD")
	}
	return t, nil
}

// Validate checks the configuration and fails fast.  Violations of a scoring
// invariant (weights, tier or urgency bands) carry ErrCodeConfigInvariant;
// other problems carry ErrCodeValidation.
func (c *Config) Validate() error {
	if err := c.Weights().Validate(); err != nil {
		return err
	}
	if err := c.PriorityBands().Validate(); err != nil {
		return err
	}

	u := c.Engine.UrgencyThresholds
	if len(u.UrgencyBands) != 4 || u.UrgencyBands[3] != 0 {
		return errors.ConfigInvariant("engine.urgency_thresholds.urgency_bands must list four bounds ending in 0").
			WithDetail(fmt.Sprint(u.UrgencyBands))
	}
	if err := c.UrgencyBands().Validate(); err != nil {
		return err
	}
	if !(u.CriticalEOLDays > u.HighEOLDays && u.HighEOLDays > 0) {
		return errors.ConfigInvariant("engine.urgency_thresholds: critical_eol_days must exceed high_eol_days > 0").
			WithDetail(fmt.Sprintf("critical=%d high=%d", u.CriticalEOLDays, u.HighEOLDays))
	}
	if u.HardwareRefreshDays <= 0 || u.NearTermEOLDays <= 0 {
		return errors.ConfigInvariant("engine.urgency_thresholds: hardware_refresh_days and near_term_eol_days must be positive")
	}
	if c.Engine.FuzzyThreshold < 0 || c.Engine.FuzzyThreshold > 100 {
		return errors.ConfigInvariant("engine.fuzzy_threshold must lie within [0,100]").
			WithDetail(fmt.Sprintf("fuzzy_threshold=%d", c.Engine.FuzzyThreshold))
	}
	if c.Recommendation.TopN < 1 {
		return errors.ConfigInvariant("recommendation.top_n must be at least 1").
			WithDetail(fmt.Sprintf("top_n=%d", c.Recommendation.TopN))
	}
	for i, name := range c.Recommendation.FallbackServices {
		if strings.TrimSpace(name) == "" {
			return errors.ConfigInvariant("recommendation.fallback_services must not contain blank names").
				WithDetail(fmt.Sprintf("fallback_services[%d]", i))
		}
	}
	if _, err := c.RiskPolicy(); err != nil {
		return err
	}
	if _, err := c.AsOf(); err != nil {
		return err
	}

	if c.Pipeline.Workers < 1 {
		return errors.Newf(errors.ErrCodeValidation, "pipeline.workers must be at least 1, got %d", c.Pipeline.Workers)
	}
	switch strings.ToLower(c.Log.Level) {
	case logging.LevelDebug, logging.LevelInfo, logging.LevelWarn, logging.LevelError:
	default:
		return errors.Newf(errors.ErrCodeValidation, "log.level %q is invalid; expected debug|info|warn|error", c.Log.Level)
	}
	switch c.Log.Format {
	case "json", "console":
	default:
		return errors.Newf(errors.ErrCodeValidation, "log.format %q is invalid; expected json|console", c.Log.Format)
	}

	if c.Database.Enabled {
		if c.Database.Host == "" || c.Database.DBName == "" {
			return errors.New(errors.ErrCodeValidation, "database.host and database.db_name are required when database is enabled")
		}
		if c.Database.Port < 1 || c.Database.Port > 65535 {
			return errors.Newf(errors.ErrCodeValidation, "database.port %d is out of range [1, 65535]", c.Database.Port)
		}
	}
	if c.Redis.Enabled && c.Redis.Addr == "" {
		return errors.New(errors.ErrCodeValidation, "redis.addr is required when redis is enabled")
	}
	if c.MinIO.Enabled && (c.MinIO.Endpoint == "" || c.MinIO.Bucket == "") {
		return errors.New(errors.ErrCodeValidation, "minio.endpoint and minio.bucket are required when minio is enabled")
	}
	if c.Kafka.Enabled && (len(c.Kafka.Brokers) == 0 || c.Kafka.Topic == "") {
		return errors.New(errors.ErrCodeValidation, "kafka.brokers and kafka.topic are required when kafka is enabled")
	}
	return nil
}
