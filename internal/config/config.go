// Package config loads nimbuscdn configuration.
//
// Sources, lowest to highest precedence: built-in defaults, the nimbuscdn.yaml
// config file, NIMBUSCDN_* environment variables, runtime overrides.
package config

import (
	"time"
)

// EnvPrefix is the prefix for all environment variables.
const EnvPrefix = "NIMBUSCDN"

// Config is the complete application configuration.
type Config struct {
	Server      ServerConfig      `mapstructure:"server"`
	Logging     LoggingConfig     `mapstructure:"logging"`
	Metrics     MetricsConfig     `mapstructure:"metrics"`
	Health      HealthConfig      `mapstructure:"health"`
	Runner      RunnerConfig      `mapstructure:"runner"`
	Aliyun      AliyunConfig      `mapstructure:"aliyun"`
	Credentials CredentialsConfig `mapstructure:"credentials"`
}

// ServerConfig configures the HTTP server.
type ServerConfig struct {
	Host            string        `mapstructure:"host"`
	Port            int           `mapstructure:"port"`
	ReadTimeout     time.Duration `mapstructure:"read_timeout"`
	WriteTimeout    time.Duration `mapstructure:"write_timeout"`
	IdleTimeout     time.Duration `mapstructure:"idle_timeout"`
	ShutdownTimeout time.Duration `mapstructure:"shutdown_timeout"`
}

// LoggingConfig configures the logger.
type LoggingConfig struct {
	Level string `mapstructure:"level"`
}

// MetricsConfig configures Prometheus metrics.
type MetricsConfig struct {
	Enabled bool `mapstructure:"enabled"`
}

// HealthConfig configures health endpoints.
type HealthConfig struct {
	Enabled bool `mapstructure:"enabled"`
}

// RunnerConfig configures batch execution.
type RunnerConfig struct {
	Concurrency int     `mapstructure:"concurrency"`
	RateLimit   float64 `mapstructure:"rate_limit"`
	Validate    bool    `mapstructure:"validate"`
}

// AliyunConfig configures the vendor endpoint.
type AliyunConfig struct {
	Endpoint string `mapstructure:"endpoint"`
}

// CredentialsConfig holds credentials supplied through configuration.
type CredentialsConfig struct {
	AliyunAPI AliyunAPICredentials `mapstructure:"aliyun_api"`
}

// AliyunAPICredentials is an Alibaba Cloud access key pair.
type AliyunAPICredentials struct {
	AccessKeyID     string `mapstructure:"access_key_id"`
	AccessKeySecret string `mapstructure:"access_key_secret"`
}
