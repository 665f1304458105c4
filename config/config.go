package config

import (
	"errors"
	"fmt"
	"os"
	"regexp"
	"strconv"
	"strings"

	"gopkg.in/yaml.v3"
)

// DefaultConfigPath is read when no -config flag is given. Its absence is
// not an error: the built-in defaults describe the standard run.
const DefaultConfigPath = "config/config.yml"

type Config struct {
	FXStory  FXStoryConfig  `yaml:"fxstory"`
	Input    InputConfig    `yaml:"input"`
	Cleaning CleaningConfig `yaml:"cleaning"`
	Output   OutputConfig   `yaml:"output"`
	Export   ExportConfig   `yaml:"export"`
	Storage  StorageConfig  `yaml:"storage"`
	Metrics  MetricsConfig  `yaml:"metrics"`
	Logging  LoggingConfig  `yaml:"logging"`
}

type FXStoryConfig struct {
	Name    string `yaml:"name"`
	Version string `yaml:"version"`
}

type InputConfig struct {
	Path string `yaml:"path"`
}

type CleaningConfig struct {
	RollingWindow int `yaml:"rolling_window"`
	// StartYear and EndYear bound the all-eras table: StartYear <= year < EndYear.
	StartYear int `yaml:"start_year"`
	EndYear   int `yaml:"end_year"`
}

type OutputConfig struct {
	Dir      string `yaml:"dir"`
	Manifest string `yaml:"manifest"`
}

type ExportConfig struct {
	Parquet ParquetConfig `yaml:"parquet"`
}

type ParquetConfig struct {
	Enabled     bool   `yaml:"enabled"`
	Path        string `yaml:"path"`
	Compression string `yaml:"compression"`
}

type StorageConfig struct {
	S3 S3Config `yaml:"s3"`
}

type S3Config struct {
	Enabled         bool   `yaml:"enabled"`
	Bucket          string `yaml:"bucket"`
	Prefix          string `yaml:"prefix"`
	Region          string `yaml:"region"`
	Endpoint        string `yaml:"endpoint"`
	PathStyle       bool   `yaml:"path_style"`
	AccessKeyID     string `yaml:"access_key_id"`
	SecretAccessKey string `yaml:"secret_access_key"`
}

type MetricsConfig struct {
	CloudWatch CloudWatchConfig `yaml:"cloudwatch"`
}

type CloudWatchConfig struct {
	Enabled   bool   `yaml:"enabled"`
	Region    string `yaml:"region"`
	Namespace string `yaml:"namespace"`
}

type LoggingConfig struct {
	Level  string `yaml:"level"`
	Format string `yaml:"format"`
	Output string `yaml:"output"`
	MaxAge int    `yaml:"max_age"`
}

// Default returns the configuration of a plain run: the ECB history file in
// the working directory, charts and log next to it.
func Default() *Config {
	return &Config{
		FXStory: FXStoryConfig{
			Name:    "fxstory",
			Version: "1.0.0",
		},
		Input: InputConfig{
			Path: "euro-daily-hist_1999_2020.csv",
		},
		Cleaning: CleaningConfig{
			RollingWindow: 50,
			StartYear:     2000,
			EndYear:       2021,
		},
		Output: OutputConfig{
			Dir:      ".",
			Manifest: "manifest.json",
		},
		Export: ExportConfig{
			Parquet: ParquetConfig{
				Enabled:     false,
				Path:        "exchange_rates.parquet",
				Compression: "snappy",
			},
		},
		Storage: StorageConfig{
			S3: S3Config{Prefix: "fxstory"},
		},
		Metrics: MetricsConfig{
			CloudWatch: CloudWatchConfig{Namespace: "FXStory"},
		},
		Logging: LoggingConfig{
			Level:  "info",
			Format: "text",
			Output: "results.log",
		},
	}
}

func LoadConfig(path string) (*Config, error) {
	// Read configuration file
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read config file: %w", err)
	}

	config := Default()
	if err := yaml.Unmarshal(data, config); err != nil {
		return nil, fmt.Errorf("failed to parse config file: %w", err)
	}

	return finish(config)
}

// LoadOrDefault behaves like LoadConfig but falls back to Default when the
// file does not exist. The APP_ENV specific variant of the default path is
// preferred when present. Staging and production require a config file.
func LoadOrDefault(path string) (*Config, error) {
	path = resolveEnvSpecificPath(path, DefaultConfigPath, envConfigPaths)
	cfg, err := LoadConfig(path)
	if err == nil {
		return cfg, nil
	}
	if errors.Is(err, os.ErrNotExist) && !IsProductionLike(AppEnvironment()) {
		return finish(Default())
	}
	return nil, err
}

func finish(config *Config) (*Config, error) {
	applyEnvOverrides(config)

	config.Storage.S3.Bucket = strings.TrimSpace(config.Storage.S3.Bucket)

	if err := validateConfig(config); err != nil {
		return nil, fmt.Errorf("configuration validation failed: %w", err)
	}
	return config, nil
}

func applyEnvOverrides(config *Config) {
	if v := os.Getenv("FXSTORY_INPUT"); v != "" {
		config.Input.Path = strings.TrimSpace(v)
	}
	if v := os.Getenv("FXSTORY_OUTPUT_DIR"); v != "" {
		config.Output.Dir = strings.TrimSpace(v)
	}
	if v := os.Getenv("FXSTORY_ROLLING_WINDOW"); v != "" {
		if n, err := strconv.Atoi(strings.TrimSpace(v)); err == nil {
			config.Cleaning.RollingWindow = n
		}
	}

	// Override S3 settings from environment variables if available
	if config.Storage.S3.Enabled {
		if v := os.Getenv("AWS_ACCESS_KEY_ID"); v != "" {
			config.Storage.S3.AccessKeyID = strings.TrimSpace(v)
		}
		if v := os.Getenv("AWS_SECRET_ACCESS_KEY"); v != "" {
			config.Storage.S3.SecretAccessKey = strings.TrimSpace(v)
		}
		if v := os.Getenv("AWS_REGION"); v != "" {
			config.Storage.S3.Region = strings.TrimSpace(v)
		}
		if v := os.Getenv("S3_BUCKET"); v != "" {
			config.Storage.S3.Bucket = strings.TrimSpace(v)
		}
	}
	if config.Metrics.CloudWatch.Enabled && config.Metrics.CloudWatch.Region == "" {
		config.Metrics.CloudWatch.Region = strings.TrimSpace(os.Getenv("AWS_REGION"))
	}
}

func validateConfig(cfg *Config) error {
	if cfg.FXStory.Name == "" {
		return fmt.Errorf("fxstory.name is required")
	}

	if strings.TrimSpace(cfg.Input.Path) == "" {
		return fmt.Errorf("input.path is required")
	}

	if cfg.Cleaning.RollingWindow <= 0 {
		return fmt.Errorf("cleaning.rolling_window must be greater than 0")
	}
	if cfg.Cleaning.StartYear >= cfg.Cleaning.EndYear {
		return fmt.Errorf("cleaning.start_year must be before cleaning.end_year")
	}

	if cfg.Output.Dir == "" {
		return fmt.Errorf("output.dir is required")
	}

	if cfg.Export.Parquet.Enabled {
		switch cfg.Export.Parquet.Compression {
		case "", "snappy", "gzip", "uncompressed":
		default:
			return fmt.Errorf("export.parquet.compression '%s' is not supported", cfg.Export.Parquet.Compression)
		}
		if cfg.Export.Parquet.Path == "" {
			return fmt.Errorf("export.parquet.path is required when parquet export is enabled")
		}
	}

	if cfg.Storage.S3.Enabled {
		if cfg.Storage.S3.Bucket == "" {
			return fmt.Errorf("storage.s3.bucket is required when S3 is enabled")
		}
		if cfg.Storage.S3.Region == "" {
			return fmt.Errorf("storage.s3.region is required when S3 is enabled")
		}
		if !isValidS3Bucket(cfg.Storage.S3.Bucket) {
			return fmt.Errorf("storage.s3.bucket '%s' is invalid", cfg.Storage.S3.Bucket)
		}
	}

	return nil
}

var s3BucketRegexp = regexp.MustCompile(`^[a-z0-9][a-z0-9.-]{1,61}[a-z0-9]$`)

func isValidS3Bucket(name string) bool {
	if len(name) < 3 || len(name) > 63 {
		return false
	}
	if strings.Contains(name, "..") || strings.HasPrefix(name, ".") || strings.HasSuffix(name, ".") {
		return false
	}
	return s3BucketRegexp.MatchString(name)
}
