package config

import (
	"errors"
	"fmt"
	"strings"

	"github.com/spf13/viper"
)

// configName is the config file name without extension.
const configName = "config"

// configType is the config file format.
const configType = "yaml"

// envPrefix is the environment variable prefix for traction settings.
const envPrefix = "TRACTION"

// envKeySeparator is the nested key separator in environment variable names.
const envKeySeparator = "_"

// LoadConfig loads configuration from file, env vars, and defaults.
// If configPath is non-empty, it is used as the explicit config file path.
// Otherwise, config.yaml is searched in the current directory.
// Missing config file is not an error; defaults are used.
func LoadConfig(configPath string) (*Config, error) {
	viperCfg := viper.New()

	applyDefaults(viperCfg)

	viperCfg.SetConfigType(configType)
	viperCfg.SetEnvPrefix(envPrefix)
	viperCfg.SetEnvKeyReplacer(strings.NewReplacer(".", envKeySeparator))
	viperCfg.AutomaticEnv()

	if configPath != "" {
		viperCfg.SetConfigFile(configPath)
	} else {
		viperCfg.SetConfigName(configName)
		viperCfg.AddConfigPath(".")
	}

	readErr := viperCfg.ReadInConfig()
	if readErr != nil {
		var notFound viper.ConfigFileNotFoundError
		if !errors.As(readErr, &notFound) {
			return nil, fmt.Errorf("read config: %w", readErr)
		}
	}

	var cfg Config

	unmarshalErr := viperCfg.Unmarshal(&cfg)
	if unmarshalErr != nil {
		return nil, fmt.Errorf("unmarshal config: %w", unmarshalErr)
	}

	validateErr := cfg.Validate()
	if validateErr != nil {
		return nil, fmt.Errorf("validate config: %w", validateErr)
	}

	return &cfg, nil
}

func applyDefaults(viperCfg *viper.Viper) {
	viperCfg.SetDefault("data.path", DefaultDataPath)

	viperCfg.SetDefault("pypi.packages", []string{})
	viperCfg.SetDefault("npm.packages", []string{})
	viperCfg.SetDefault("github.selectors", []string{})

	viperCfg.SetDefault("discord.backfill_days", DefaultBackfillDays)
	viperCfg.SetDefault("discord.channel_workers", DefaultChannelWorkers)

	viperCfg.SetDefault("report.dir", DefaultReportDir)

	viperCfg.SetDefault("metrics.textfile", "")
	viperCfg.SetDefault("metrics.otlp_endpoint", "")
}
