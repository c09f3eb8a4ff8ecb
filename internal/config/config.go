// Package config loads the mount's configuration from a file, NIMBUSFS_*
// environment variables, and defaults, in the teacher's pkg/config style:
// spf13/viper for sourcing, mitchellh/mapstructure decode hooks for the
// human-readable types (byte sizes, durations), go-playground/validator/v10
// for struct-tag validation.
package config

import (
	"fmt"
	"os"
	"path/filepath"
	"reflect"
	"strings"
	"time"

	"github.com/go-playground/validator/v10"
	"github.com/mitchellh/mapstructure"
	"github.com/spf13/viper"
	"gopkg.in/yaml.v3"

	"github.com/nimbusfs/nimbusfs/internal/bytesize"
)

// Config is the complete set of options of spec.md §6 plus the ambient
// sections (logging, telemetry, metrics) SPEC_FULL.md adds.
type Config struct {
	// CacheRoot is the root directory for the metadata database, part
	// files, and bitmap files.
	CacheRoot string `mapstructure:"cache_root" validate:"required" yaml:"cache_root"`

	// MountPoint is where the FUSE filesystem is mounted.
	MountPoint string `mapstructure:"mount_point" validate:"required" yaml:"mount_point"`

	// RemoteBaseURL is the backing object store's base URL
	// (http(s):// for the reference server, s3:// for the alternate
	// backend).
	RemoteBaseURL string `mapstructure:"remote_base_url" validate:"required" yaml:"remote_base_url"`

	// CapacityBytes is the soft local-disk ceiling for eviction.
	// Default 10 GiB.
	CapacityBytes bytesize.Size `mapstructure:"capacity_bytes" yaml:"capacity_bytes"`

	// PartBytes is the part granularity; must be a multiple of
	// BlockBytes. Default 16 MiB.
	PartBytes bytesize.Size `mapstructure:"part_bytes" yaml:"part_bytes"`

	// BlockBytes is the block (dirty-bitmap) granularity. Default 64 KiB.
	BlockBytes bytesize.Size `mapstructure:"block_bytes" yaml:"block_bytes"`

	// FlushInterval is the periodic writeback period. Default 30s.
	FlushInterval time.Duration `mapstructure:"flush_interval" yaml:"flush_interval"`

	// MergeGapBlocks is the dirty-run coalescing gap, in blocks.
	// Default 4.
	MergeGapBlocks int `mapstructure:"merge_gap_blocks" validate:"gte=0" yaml:"merge_gap_blocks"`

	Logging   LoggingConfig   `mapstructure:"logging" yaml:"logging"`
	Telemetry TelemetryConfig `mapstructure:"telemetry" yaml:"telemetry"`
	Metrics   MetricsConfig   `mapstructure:"metrics" yaml:"metrics"`
	Control   ControlConfig   `mapstructure:"control" yaml:"control"`
}

// LoggingConfig controls internal/logger's output, per the teacher's
// LoggingConfig.
type LoggingConfig struct {
	Level  string `mapstructure:"level" validate:"required,oneof=DEBUG INFO WARN ERROR debug info warn error" yaml:"level"`
	Format string `mapstructure:"format" validate:"required,oneof=text json" yaml:"format"`
	Output string `mapstructure:"output" validate:"required" yaml:"output"`
}

// TelemetryConfig controls OpenTelemetry tracing. Off by default.
type TelemetryConfig struct {
	Enabled    bool    `mapstructure:"enabled" yaml:"enabled"`
	Endpoint   string  `mapstructure:"endpoint" yaml:"endpoint"`
	SampleRate float64 `mapstructure:"sample_rate" validate:"omitempty,gte=0,lte=1" yaml:"sample_rate"`
	// ProfilingEnabled turns on continuous profiling via pyroscope-go,
	// also off by default.
	ProfilingEnabled  bool   `mapstructure:"profiling_enabled" yaml:"profiling_enabled"`
	ProfilingEndpoint string `mapstructure:"profiling_endpoint" yaml:"profiling_endpoint"`
}

// MetricsConfig controls the Prometheus metrics listener.
type MetricsConfig struct {
	Enabled bool   `mapstructure:"enabled" yaml:"enabled"`
	Address string `mapstructure:"address" validate:"omitempty,hostname_port" yaml:"address"`
}

// ControlConfig controls the JWT-protected loopback control API.
type ControlConfig struct {
	Enabled    bool   `mapstructure:"enabled" yaml:"enabled"`
	Address    string `mapstructure:"address" validate:"omitempty,hostname_port" yaml:"address"`
	SigningKey string `mapstructure:"signing_key" yaml:"signing_key"`
}

// DefaultConfig returns spec §6's defaults for everything other than the
// three required fields (cache root, mount point, remote URL).
func DefaultConfig() Config {
	return Config{
		CapacityBytes:  bytesize.Size(10 * bytesize.GiB),
		PartBytes:      bytesize.Size(16 * bytesize.MiB),
		BlockBytes:     bytesize.Size(64 * bytesize.KiB),
		FlushInterval:  30 * time.Second,
		MergeGapBlocks: 4,
		Logging:        LoggingConfig{Level: "INFO", Format: "text", Output: "stdout"},
		Metrics:        MetricsConfig{Address: "127.0.0.1:9090"},
		Control:        ControlConfig{Address: "127.0.0.1:9091"},
	}
}

// Load loads configuration from configPath (file + NIMBUSFS_* env vars),
// applies defaults for anything left unset, and validates the result.
// An empty configPath searches the default location.
func Load(configPath string) (*Config, error) {
	v := viper.New()
	setupViper(v, configPath)

	found, err := readConfigFile(v)
	if err != nil {
		return nil, err
	}

	cfg := DefaultConfig()
	if found {
		if err := v.Unmarshal(&cfg, viper.DecodeHook(decodeHooks())); err != nil {
			return nil, fmt.Errorf("config: unmarshal failed: %w", err)
		}
	}
	applyEnvOverrides(&cfg)

	if err := Validate(&cfg); err != nil {
		return nil, fmt.Errorf("config: validation failed: %w", err)
	}
	return &cfg, nil
}

func setupViper(v *viper.Viper, configPath string) {
	v.SetEnvPrefix("NIMBUSFS")
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	if configPath != "" {
		v.SetConfigFile(configPath)
		return
	}
	v.AddConfigPath(defaultConfigDir())
	v.SetConfigName("config")
	v.SetConfigType("yaml")
}

func readConfigFile(v *viper.Viper) (bool, error) {
	if err := v.ReadInConfig(); err != nil {
		if _, ok := err.(viper.ConfigFileNotFoundError); ok {
			return false, nil
		}
		if os.IsNotExist(err) {
			return false, nil
		}
		return false, fmt.Errorf("config: read config file: %w", err)
	}
	return true, nil
}

// applyEnvOverrides lets a handful of the most commonly-overridden
// options be set purely by environment variable even when no config
// file is present, mirroring viper.AutomaticEnv's effect for the
// unmarshal path above.
func applyEnvOverrides(cfg *Config) {
	if v := os.Getenv("NIMBUSFS_CACHE_ROOT"); v != "" {
		cfg.CacheRoot = v
	}
	if v := os.Getenv("NIMBUSFS_MOUNT_POINT"); v != "" {
		cfg.MountPoint = v
	}
	if v := os.Getenv("NIMBUSFS_REMOTE_BASE_URL"); v != "" {
		cfg.RemoteBaseURL = v
	}
}

// Save writes cfg to path as YAML, creating parent directories as
// needed. The file is written with owner-only permissions since it may
// carry a control-API signing key.
func Save(cfg *Config, path string) error {
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return fmt.Errorf("config: create directory: %w", err)
	}
	data, err := yaml.Marshal(cfg)
	if err != nil {
		return fmt.Errorf("config: marshal: %w", err)
	}
	if err := os.WriteFile(path, data, 0o600); err != nil {
		return fmt.Errorf("config: write file: %w", err)
	}
	return nil
}

// DefaultConfigPath returns the config path Load searches when none is
// given explicitly.
func DefaultConfigPath() string {
	return filepath.Join(defaultConfigDir(), "config.yaml")
}

func defaultConfigDir() string {
	if xdg := os.Getenv("XDG_CONFIG_HOME"); xdg != "" {
		return filepath.Join(xdg, "nimbusfs")
	}
	home, err := os.UserHomeDir()
	if err != nil {
		return "."
	}
	return filepath.Join(home, ".config", "nimbusfs")
}

// Validate runs go-playground/validator/v10 against cfg's struct tags
// and additionally checks the cross-field invariants tags can't
// express: PartBytes must be a whole multiple of BlockBytes (spec §6),
// and an enabled control API needs a signing key long enough for HS256.
func Validate(cfg *Config) error {
	if err := validator.New().Struct(cfg); err != nil {
		return err
	}
	if cfg.BlockBytes <= 0 || cfg.PartBytes%cfg.BlockBytes != 0 {
		return fmt.Errorf("part_bytes (%s) must be a multiple of block_bytes (%s)", cfg.PartBytes, cfg.BlockBytes)
	}
	if cfg.Control.Enabled && len(cfg.Control.SigningKey) < 32 {
		return fmt.Errorf("control.signing_key must be at least 32 characters when control.enabled is true")
	}
	return nil
}

// decodeHooks composes the mapstructure decode hooks for the config's
// custom scalar types.
func decodeHooks() mapstructure.DecodeHookFunc {
	return mapstructure.ComposeDecodeHookFunc(
		byteSizeDecodeHook(),
		durationDecodeHook(),
	)
}

// byteSizeDecodeHook lets config files write human-readable sizes like
// "16Mi" or "64Ki" for the byte-size fields.
func byteSizeDecodeHook() mapstructure.DecodeHookFunc {
	return func(from reflect.Type, to reflect.Type, data interface{}) (interface{}, error) {
		if to != reflect.TypeOf(bytesize.Size(0)) {
			return data, nil
		}
		switch v := data.(type) {
		case string:
			return bytesize.Parse(v)
		case int:
			return bytesize.Size(v), nil
		case int64:
			return bytesize.Size(v), nil
		case uint64:
			return bytesize.Size(v), nil
		case float64:
			return bytesize.Size(v), nil
		default:
			return data, nil
		}
	}
}

// durationDecodeHook lets config files write human-readable durations
// like "30s" for the duration fields.
func durationDecodeHook() mapstructure.DecodeHookFunc {
	return func(from reflect.Type, to reflect.Type, data interface{}) (interface{}, error) {
		if to != reflect.TypeOf(time.Duration(0)) {
			return data, nil
		}
		switch v := data.(type) {
		case string:
			return time.ParseDuration(v)
		case int:
			return time.Duration(v), nil
		case int64:
			return time.Duration(v), nil
		case float64:
			return time.Duration(v), nil
		default:
			return data, nil
		}
	}
}
