package config

import (
	"errors"
	"fmt"
	"path/filepath"
	"strings"

	internal "github.com/variantkit/vcfshard/vcfshard"
	"github.com/variantkit/vcfshard/vcfshard/storage"
	"github.com/variantkit/vcfshard/vcfshard/vcf"

	"github.com/spf13/viper"
)

// ErrConfiguration marks invalid run parameters. Validation runs before
// any I/O so a bad configuration never leaves artifacts behind.
var ErrConfiguration = errors.New("invalid configuration")

// Config stores all configuration of the application.
// The values are read by viper from a config file or environment variables.
type Config struct {
	Pipeline PipelineConfig  `mapstructure:"pipeline"`
	Storage  storage.Options `mapstructure:"storage"`
}

// PipelineConfig is the run-parameter surface of the sharding stage.
type PipelineConfig struct {
	// Input is the source locator: a local path or an https:// URL.
	Input string `mapstructure:"input"`
	// Region optionally restricts the run to "contig" or "contig:start-end".
	Region string `mapstructure:"region"`
	// LinesPerShard bounds each shard by record count.
	LinesPerShard int `mapstructure:"linesPerShard"`
	// OutputRoot is the storage path runs are created under.
	OutputRoot string `mapstructure:"outputRoot"`
	// ProgressEvery logs a progress line every N records; 0 disables it.
	ProgressEvery int `mapstructure:"progressEvery"`
}

var AppConfig Config

// Load reads configuration from file or environment variables without
// validating it. Callers that layer overrides on top (the CLI flags do)
// call Validate once the final values are in place; everyone else wants
// LoadConfig. A missing config file is fine when none was named
// explicitly; a discovered file that fails to parse is an error, never
// silently replaced by defaults.
func Load(configPath string) (*Config, error) {
	if configPath != "" {
		viper.SetConfigFile(configPath)
	} else {
		viper.AddConfigPath(".")
		viper.AddConfigPath(filepath.Join("etc", internal.DefaultAppName))
		viper.AddConfigPath(internal.DefaultConfigPath)
		viper.SetConfigName("config")
		viper.SetConfigType("yaml")
	}

	// Set default values
	viper.SetDefault("pipeline.linesPerShard", internal.DefaultLinesPerShard)
	viper.SetDefault("pipeline.outputRoot", "runs")
	viper.SetDefault("pipeline.progressEvery", 10000)
	viper.SetDefault("storage.backend", "local")
	viper.SetDefault("storage.basePath", internal.DefaultOutputRoot)

	viper.SetEnvPrefix(strings.ToUpper(internal.DefaultAppName))
	viper.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	viper.AutomaticEnv()

	if err := viper.ReadInConfig(); err != nil {
		var notFound viper.ConfigFileNotFoundError
		if !errors.As(err, &notFound) {
			return nil, fmt.Errorf("%w: reading config: %v", ErrConfiguration, err)
		}
		// No config file is fine; defaults plus env cover everything.
	}

	var cfg Config
	if err := viper.Unmarshal(&cfg); err != nil {
		return nil, fmt.Errorf("%w: unmarshaling config: %v", ErrConfiguration, err)
	}
	return &cfg, nil
}

// LoadConfig reads and validates configuration, publishing the result as
// AppConfig.
func LoadConfig(configPath string) (*Config, error) {
	cfg, err := Load(configPath)
	if err != nil {
		return nil, err
	}
	if err := cfg.Validate(); err != nil {
		return nil, err
	}

	AppConfig = *cfg
	return cfg, nil
}

// Validate fails fast on parameter problems, before any I/O happens.
func (c *Config) Validate() error {
	p := c.Pipeline
	if strings.TrimSpace(p.Input) == "" {
		return fmt.Errorf("%w: pipeline.input is required", ErrConfiguration)
	}
	if p.LinesPerShard <= 0 {
		return fmt.Errorf("%w: pipeline.linesPerShard must be positive, got %d", ErrConfiguration, p.LinesPerShard)
	}
	if strings.TrimSpace(p.OutputRoot) == "" {
		return fmt.Errorf("%w: pipeline.outputRoot is required", ErrConfiguration)
	}
	if p.Region != "" {
		if _, err := vcf.ParseRegion(p.Region); err != nil {
			return fmt.Errorf("%w: pipeline.region: %v", ErrConfiguration, err)
		}
	}
	return nil
}

// ParsedRegion returns the typed region filter, zero when unset.
// Validate must have accepted the config first.
func (c *Config) ParsedRegion() (vcf.Region, error) {
	if c.Pipeline.Region == "" {
		return vcf.Region{}, nil
	}
	region, err := vcf.ParseRegion(c.Pipeline.Region)
	if err != nil {
		return vcf.Region{}, fmt.Errorf("%w: pipeline.region: %v", ErrConfiguration, err)
	}
	return region, nil
}
