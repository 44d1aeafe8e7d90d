package config

import (
	"strings"

	"github.com/spf13/viper"

	"github.com/turtacn/leadscope/pkg/errors"
)

// envPrefix is the environment variable prefix of every setting.
const envPrefix = "LEADSCOPE"

// newViper builds a pre-configured Viper instance: YAML file type, LEADSCOPE_
// env prefix, automatic env binding, and a key replacer that maps "." to "_"
// so nested keys like "engine.fuzzy_threshold" resolve to
// "LEADSCOPE_ENGINE_FUZZY_THRESHOLD".
func newViper() *viper.Viper {
	v := viper.New()
	v.SetConfigType("yaml")
	v.SetEnvPrefix(envPrefix)
	v.AutomaticEnv()
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	registerDefaults(v)
	return v
}

// Load reads the YAML file at configPath, merges LEADSCOPE_* environment
// overrides, applies defaults for unset fields and validates the result.
// An empty configPath loads from the environment alone.
func Load(configPath string) (*Config, error) {
	if configPath == "" {
		return LoadFromEnv()
	}
	v := newViper()
	v.SetConfigFile(configPath)

	if err := v.ReadInConfig(); err != nil {
		return nil, errors.Wrap(err, errors.ErrCodeConfigLoad, "failed to read config file").WithDetail(configPath)
	}
	return unmarshalAndFinalize(v)
}

// LoadFromEnv builds a Config from LEADSCOPE_* environment variables and
// defaults, with no config file.
//
//	LEADSCOPE_<SECTION>_<FIELD>   e.g.  LEADSCOPE_ENGINE_FUZZY_THRESHOLD, LEADSCOPE_DATABASE_HOST
func LoadFromEnv() (*Config, error) {
	return unmarshalAndFinalize(newViper())
}

// unmarshalAndFinalize unmarshals viper state into a Config, applies
// defaults and validates the result.
func unmarshalAndFinalize(v *viper.Viper) (*Config, error) {
	cfg := &Config{}
	if err := v.Unmarshal(cfg); err != nil {
		return nil, errors.Wrap(err, errors.ErrCodeConfigLoad, "failed to unmarshal configuration")
	}

	ApplyDefaults(cfg)

	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

// MustLoad is Load that panics on any error.  Intended for main() where a
// configuration failure is always fatal.
func MustLoad(configPath string) *Config {
	cfg, err := Load(configPath)
	if err != nil {
		panic("config: MustLoad failed: " + err.Error())
	}
	return cfg
}
