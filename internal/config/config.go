// Package config loads and validates the traction configuration: which
// entities to track per source, where the dataset lives, and where reports
// and metrics go.
package config

import "errors"

// Config is the top-level configuration struct for traction.
// Field tags use mapstructure for viper unmarshalling.
type Config struct {
	Data    DataConfig    `mapstructure:"data"`
	PyPI    PyPIConfig    `mapstructure:"pypi"`
	NPM     NPMConfig     `mapstructure:"npm"`
	GitHub  GitHubConfig  `mapstructure:"github"`
	Discord DiscordConfig `mapstructure:"discord"`
	Report  ReportConfig  `mapstructure:"report"`
	Metrics MetricsConfig `mapstructure:"metrics"`
}

// DataConfig locates the persisted dataset.
type DataConfig struct {
	Path string `mapstructure:"path"`
}

// PyPIConfig lists packages tracked via the cumulative download range.
type PyPIConfig struct {
	Packages []string `mapstructure:"packages"`
}

// NPMConfig lists packages tracked via point-in-time download lookups.
type NPMConfig struct {
	Packages []string `mapstructure:"packages"`
}

// GitHubConfig lists repository selectors: "owner/repo" for a single
// repository or "owner" for every repository under an account.
type GitHubConfig struct {
	Selectors []string `mapstructure:"selectors"`
}

// GuildConfig identifies one Discord guild. Name is the entity label used
// in the dataset; it falls back to the id when empty.
type GuildConfig struct {
	ID   string `mapstructure:"id"`
	Name string `mapstructure:"name"`
}

// DiscordConfig holds community tracking settings.
type DiscordConfig struct {
	Guilds         []GuildConfig `mapstructure:"guilds"`
	BackfillDays   int           `mapstructure:"backfill_days"`
	ChannelWorkers int           `mapstructure:"channel_workers"`
}

// ReportConfig holds dashboard rendering settings.
type ReportConfig struct {
	Dir string `mapstructure:"dir"`
}

// MetricsConfig holds run-metrics export settings. Both fields are
// optional; empty disables the corresponding exporter.
type MetricsConfig struct {
	Textfile     string `mapstructure:"textfile"`
	OTLPEndpoint string `mapstructure:"otlp_endpoint"`
}

// Default values applied by the loader when the config file omits a key.
const (
	DefaultDataPath       = "data/traction.csv"
	DefaultReportDir      = "dashboard"
	DefaultBackfillDays   = 14
	DefaultChannelWorkers = 4
)

// minBackfillDays and maxBackfillDays bound the message backfill horizon.
const (
	minBackfillDays = 1
	maxBackfillDays = 90
)

// Sentinel errors for configuration validation.
var (
	// ErrEmptyDataPath indicates the dataset path resolved to empty.
	ErrEmptyDataPath = errors.New("data.path must not be empty")
	// ErrEmptyReportDir indicates the report directory resolved to empty.
	ErrEmptyReportDir = errors.New("report.dir must not be empty")
	// ErrEmptySelector indicates a blank entry in a package or selector list.
	ErrEmptySelector = errors.New("package and selector entries must not be empty")
	// ErrInvalidBackfillDays indicates the backfill horizon is out of range.
	ErrInvalidBackfillDays = errors.New("discord.backfill_days must be between 1 and 90")
	// ErrInvalidChannelWorkers indicates the channel worker count is negative.
	ErrInvalidChannelWorkers = errors.New("discord.channel_workers must be non-negative")
	// ErrEmptyGuildID indicates a guild entry without an id.
	ErrEmptyGuildID = errors.New("discord.guilds entries must set an id")
)

// Validate checks Config invariants and returns the first error found.
func (c *Config) Validate() error {
	if c.Data.Path == "" {
		return ErrEmptyDataPath
	}

	if c.Report.Dir == "" {
		return ErrEmptyReportDir
	}

	selectorsErr := c.validateSelectors()
	if selectorsErr != nil {
		return selectorsErr
	}

	return c.validateDiscord()
}

func (c *Config) validateSelectors() error {
	lists := [][]string{c.PyPI.Packages, c.NPM.Packages, c.GitHub.Selectors}

	for _, list := range lists {
		for _, entry := range list {
			if entry == "" {
				return ErrEmptySelector
			}
		}
	}

	return nil
}

func (c *Config) validateDiscord() error {
	days := c.Discord.BackfillDays
	if days != 0 && (days < minBackfillDays || days > maxBackfillDays) {
		return ErrInvalidBackfillDays
	}

	if c.Discord.ChannelWorkers < 0 {
		return ErrInvalidChannelWorkers
	}

	for _, guild := range c.Discord.Guilds {
		if guild.ID == "" {
			return ErrEmptyGuildID
		}
	}

	return nil
}
