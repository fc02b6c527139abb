// Package config resolves compiler settings from a config file,
// environment variables and an optional .env file. Precedence, lowest to
// highest: built-in defaults, config file, PIPEFITTER_* environment,
// command-line flags (applied by the caller).
package config

import (
	"strings"

	"github.com/go-playground/validator/v10"
	"github.com/joho/godotenv"
	"github.com/pkg/errors"
	"github.com/spf13/viper"
)

// Config carries every setting the CLI threads into a compilation.
type Config struct {
	BasePath      string `mapstructure:"base_path" validate:"required"`
	ComponentsDir string `mapstructure:"components_dir" validate:"required"`
	RunID         string `mapstructure:"run_id"`
	ClusterType   string `mapstructure:"cluster_type" validate:"required"`
	Cache         bool   `mapstructure:"cache"`
	LogLevel      string `mapstructure:"log_level" validate:"oneof=trace debug info warn error"`
	LogFormat     string `mapstructure:"log_format" validate:"oneof=console json"`
}

var keys = []string{
	"base_path", "components_dir", "run_id", "cluster_type", "cache", "log_level", "log_format",
}

// Load reads the config file at path, or searches the working directory
// for pipefitter.yaml when path is empty. A missing file is only an error
// when it was named explicitly. Validation is deferred to Validate so the
// caller can layer flag overrides first.
func Load(path string) (*Config, error) {
	// a .env file is optional; when present it feeds the env lookup below
	_ = godotenv.Load()

	v := viper.New()
	v.SetDefault("cluster_type", "default")
	v.SetDefault("cache", true)
	v.SetDefault("log_level", "info")
	v.SetDefault("log_format", "console")

	v.SetEnvPrefix("PIPEFITTER")
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	for _, key := range keys {
		_ = v.BindEnv(key)
	}

	if path != "" {
		v.SetConfigFile(path)
		if err := v.ReadInConfig(); err != nil {
			return nil, errors.Wrapf(err, "unable to read config %s", path)
		}
	} else {
		v.SetConfigName("pipefitter")
		v.SetConfigType("yaml")
		v.AddConfigPath(".")
		v.AddConfigPath("./config")

		if err := v.ReadInConfig(); err != nil {
			var notFound viper.ConfigFileNotFoundError
			if !errors.As(err, &notFound) {
				return nil, errors.Wrap(err, "unable to read config")
			}
		}
	}

	cfg := &Config{}
	if err := v.Unmarshal(cfg); err != nil {
		return nil, errors.Wrap(err, "unable to decode config")
	}

	return cfg, nil
}

// Validate checks the assembled config after all overrides are applied.
func (c *Config) Validate() error {
	if err := validator.New().Struct(c); err != nil {
		return errors.Wrap(err, "invalid config")
	}

	return nil
}
