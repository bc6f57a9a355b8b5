// Package config loads service configuration from the environment and an
// optional config file.
package config

import (
	"fmt"
	"strings"
	"time"

	"github.com/spf13/viper"
)

// Config is the service configuration shared by every command.
type Config struct {
	Port        int
	DatabaseURL string
	RedisURL    string
	JobTTL      time.Duration

	MinIO  MinIOConfig
	Gemini GeminiConfig
	Neural NeuralConfig
	CAD    CADConfig

	Workers          int
	GeneratorTimeout time.Duration
	VisionTimeout    time.Duration

	Log     LogConfig
	Tracing string
}

// MinIOConfig locates the artifact bucket. An empty endpoint keeps blobs in memory.
type MinIOConfig struct {
	Endpoint  string
	AccessKey string
	SecretKey string
	Bucket    string
	UseSSL    bool
}

type GeminiConfig struct {
	APIKey string
}

// NeuralConfig selects the neural mesh backend: none, remote, or local.
type NeuralConfig struct {
	Backend string
	URL     string
	APIKey  string
}

// CADConfig selects the CAD kernel: the in-process one or an external binary.
type CADConfig struct {
	Kernel      string
	Binary      string
	Concurrency int
}

type LogConfig struct {
	Level  string
	Format string
}

// Neural backends.
const (
	NeuralNone   = "none"
	NeuralRemote = "remote"
	NeuralLocal  = "local"
)

// CAD kernels.
const (
	KernelLocal   = "local"
	KernelProcess = "process"
)

// Load reads configuration from the environment. When path is set, the file
// is read first and environment variables override its keys.
func Load(path string) (*Config, error) {
	v := viper.New()

	// Defaults
	v.SetDefault("PORT", 8080)
	v.SetDefault("JOB_TTL", "24h")
	v.SetDefault("MINIO_BUCKET", "cadlift")
	v.SetDefault("MINIO_USE_SSL", false)
	v.SetDefault("NEURAL_BACKEND", NeuralNone)
	v.SetDefault("CAD_KERNEL", KernelLocal)
	v.SetDefault("CAD_KERNEL_CONCURRENCY", 2)
	v.SetDefault("WORKERS", 4)
	v.SetDefault("GENERATOR_TIMEOUT", "5m")
	v.SetDefault("VISION_TIMEOUT", "60s")
	v.SetDefault("LOG_LEVEL", "info")
	v.SetDefault("LOG_FORMAT", "text")
	v.SetDefault("TRACING", "")

	if path != "" {
		v.SetConfigFile(path)
		if err := v.ReadInConfig(); err != nil {
			return nil, fmt.Errorf("failed to read config file %s: %w", path, err)
		}
	}

	// Env
	v.AutomaticEnv()

	cfg := &Config{
		Port:        v.GetInt("PORT"),
		DatabaseURL: v.GetString("DATABASE_URL"),
		RedisURL:    v.GetString("REDIS_URL"),
		MinIO: MinIOConfig{
			Endpoint:  v.GetString("MINIO_ENDPOINT"),
			AccessKey: v.GetString("MINIO_ACCESS_KEY"),
			SecretKey: v.GetString("MINIO_SECRET_KEY"),
			Bucket:    v.GetString("MINIO_BUCKET"),
			UseSSL:    v.GetBool("MINIO_USE_SSL"),
		},
		Gemini: GeminiConfig{APIKey: v.GetString("GEMINI_API_KEY")},
		Neural: NeuralConfig{
			Backend: strings.ToLower(v.GetString("NEURAL_BACKEND")),
			URL:     v.GetString("NEURAL_URL"),
			APIKey:  v.GetString("NEURAL_API_KEY"),
		},
		CAD: CADConfig{
			Kernel:      strings.ToLower(v.GetString("CAD_KERNEL")),
			Binary:      v.GetString("CAD_KERNEL_BINARY"),
			Concurrency: v.GetInt("CAD_KERNEL_CONCURRENCY"),
		},
		Workers: v.GetInt("WORKERS"),
		Log: LogConfig{
			Level:  v.GetString("LOG_LEVEL"),
			Format: v.GetString("LOG_FORMAT"),
		},
		Tracing: v.GetString("TRACING"),
	}
	durations := map[string]*time.Duration{
		"JOB_TTL":           &cfg.JobTTL,
		"GENERATOR_TIMEOUT": &cfg.GeneratorTimeout,
		"VISION_TIMEOUT":    &cfg.VisionTimeout,
	}
	for key, dst := range durations {
		d, err := time.ParseDuration(v.GetString(key))
		if err != nil {
			return nil, fmt.Errorf("config error: invalid %s: %w", key, err)
		}
		*dst = d
	}

	return cfg, nil
}

// Validate checks that the configuration has valid values.
func (c *Config) Validate() error {
	if c.Port < 1 || c.Port > 65535 {
		return fmt.Errorf("config error: PORT must be between 1 and 65535, got %d", c.Port)
	}
	if c.Workers < 1 {
		return fmt.Errorf("config error: WORKERS must be at least 1, got %d", c.Workers)
	}
	if c.GeneratorTimeout <= 0 || c.VisionTimeout <= 0 {
		return fmt.Errorf("config error: timeouts must be positive")
	}
	if c.JobTTL <= 0 {
		return fmt.Errorf("config error: JOB_TTL must be positive")
	}

	switch c.Neural.Backend {
	case NeuralNone:
	case NeuralRemote:
		if c.Neural.APIKey == "" {
			return fmt.Errorf("config error: NEURAL_API_KEY is required for the remote backend")
		}
	case NeuralLocal:
		if c.Neural.URL == "" {
			return fmt.Errorf("config error: NEURAL_URL is required for the local backend")
		}
	default:
		return fmt.Errorf("config error: unknown NEURAL_BACKEND %q", c.Neural.Backend)
	}

	switch c.CAD.Kernel {
	case KernelLocal:
	case KernelProcess:
		if c.CAD.Binary == "" {
			return fmt.Errorf("config error: CAD_KERNEL_BINARY is required for the process kernel")
		}
		if c.CAD.Concurrency < 1 {
			return fmt.Errorf("config error: CAD_KERNEL_CONCURRENCY must be at least 1")
		}
	default:
		return fmt.Errorf("config error: unknown CAD_KERNEL %q", c.CAD.Kernel)
	}

	if c.MinIO.Endpoint != "" && (c.MinIO.AccessKey == "" || c.MinIO.SecretKey == "") {
		return fmt.Errorf("config error: MINIO_ACCESS_KEY and MINIO_SECRET_KEY are required with MINIO_ENDPOINT")
	}

	switch c.Tracing {
	case "", "none", "stdout":
	default:
		return fmt.Errorf("config error: unknown TRACING mode %q", c.Tracing)
	}
	return nil
}
