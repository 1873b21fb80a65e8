package config

import (
	"context"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"strings"
	"sync"

	"github.com/spf13/viper"

	"github.com/3leaps/nimbuscdn/pkg/provider/aliyun"
)

// EnvSpec maps an environment variable onto a config path.
type EnvSpec struct {
	Name string
	Path string
}

var (
	configMu  sync.RWMutex
	appConfig *Config
	appViper  *viper.Viper
)

// Load builds the configuration and makes it the current one.
//
// Each overrides map is nested like the config file and wins over every
// other source. Later maps win over earlier ones.
func Load(ctx context.Context, overrides ...map[string]any) (*Config, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	v := viper.New()
	setDefaults(v)

	v.SetConfigName("nimbuscdn")
	v.SetConfigType("yaml")
	for _, p := range getUserConfigPaths() {
		v.AddConfigPath(p)
	}
	if err := v.ReadInConfig(); err != nil {
		var notFound viper.ConfigFileNotFoundError
		if !errors.As(err, &notFound) {
			return nil, fmt.Errorf("read config file: %w", err)
		}
	}

	for _, spec := range getEnvSpecs() {
		if err := v.BindEnv(spec.Path, spec.Name); err != nil {
			return nil, fmt.Errorf("bind %s: %w", spec.Name, err)
		}
	}

	for _, o := range overrides {
		for key, val := range flatten("", o) {
			v.Set(key, val)
		}
	}

	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return nil, fmt.Errorf("decode config: %w", err)
	}
	if err := cfg.Validate(); err != nil {
		return nil, err
	}

	configMu.Lock()
	appConfig = &cfg
	appViper = v
	configMu.Unlock()
	return &cfg, nil
}

// GetConfig returns the most recently loaded configuration, or nil.
func GetConfig() *Config {
	configMu.RLock()
	defer configMu.RUnlock()
	return appConfig
}

// Viper returns the viper instance behind the current configuration, or
// nil before Load.
func Viper() *viper.Viper {
	configMu.RLock()
	defer configMu.RUnlock()
	return appViper
}

// ConfigFileUsed returns the config file read by the last Load, or "".
func ConfigFileUsed() string {
	if v := Viper(); v != nil {
		return v.ConfigFileUsed()
	}
	return ""
}

// Validate checks value ranges that decoding cannot.
func (c *Config) Validate() error {
	switch {
	case c.Server.Port < 0 || c.Server.Port > 65535:
		return fmt.Errorf("config: server.port %d out of range", c.Server.Port)
	case c.Runner.Concurrency < 1:
		return fmt.Errorf("config: runner.concurrency must be at least 1")
	case c.Runner.RateLimit < 0:
		return fmt.Errorf("config: runner.rate_limit must not be negative")
	}
	return nil
}

func setDefaults(v *viper.Viper) {
	v.SetDefault("server.host", "localhost")
	v.SetDefault("server.port", 8080)
	v.SetDefault("server.read_timeout", "30s")
	v.SetDefault("server.write_timeout", "30s")
	v.SetDefault("server.idle_timeout", "120s")
	v.SetDefault("server.shutdown_timeout", "10s")

	v.SetDefault("logging.level", "info")

	v.SetDefault("metrics.enabled", true)
	v.SetDefault("health.enabled", true)

	v.SetDefault("runner.concurrency", 4)
	v.SetDefault("runner.rate_limit", 0)
	v.SetDefault("runner.validate", true)

	v.SetDefault("aliyun.endpoint", aliyun.DefaultEndpoint)

	v.SetDefault("credentials.aliyun_api.access_key_id", "")
	v.SetDefault("credentials.aliyun_api.access_key_secret", "")
}

// getEnvSpecs lists the supported environment variables.
func getEnvSpecs() []EnvSpec {
	specs := []EnvSpec{
		{Name: "HOST", Path: "server.host"},
		{Name: "PORT", Path: "server.port"},
		{Name: "READ_TIMEOUT", Path: "server.read_timeout"},
		{Name: "WRITE_TIMEOUT", Path: "server.write_timeout"},
		{Name: "IDLE_TIMEOUT", Path: "server.idle_timeout"},
		{Name: "SHUTDOWN_TIMEOUT", Path: "server.shutdown_timeout"},
		{Name: "LOG_LEVEL", Path: "logging.level"},
		{Name: "METRICS_ENABLED", Path: "metrics.enabled"},
		{Name: "HEALTH_ENABLED", Path: "health.enabled"},
		{Name: "CONCURRENCY", Path: "runner.concurrency"},
		{Name: "RATE_LIMIT", Path: "runner.rate_limit"},
		{Name: "ALIYUN_ENDPOINT", Path: "aliyun.endpoint"},
		{Name: "ALIYUN_ACCESS_KEY_ID", Path: "credentials.aliyun_api.access_key_id"},
		{Name: "ALIYUN_ACCESS_KEY_SECRET", Path: "credentials.aliyun_api.access_key_secret"},
	}
	for i := range specs {
		specs[i].Name = EnvPrefix + "_" + specs[i].Name
	}
	return specs
}

// getUserConfigPaths lists directories searched for nimbuscdn.yaml, in
// order: NIMBUSCDN_CONFIG_DIR, the working directory, the user config dir.
func getUserConfigPaths() []string {
	var paths []string
	if dir := os.Getenv(EnvPrefix + "_CONFIG_DIR"); dir != "" {
		paths = append(paths, dir)
	}
	paths = append(paths, ".")
	if dir, err := os.UserConfigDir(); err == nil {
		paths = append(paths, filepath.Join(dir, "nimbuscdn"))
	}
	return paths
}

// flatten turns a nested map into dotted keys.
func flatten(prefix string, m map[string]any) map[string]any {
	out := make(map[string]any)
	keys := make([]string, 0, len(m))
	for k := range m {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	for _, k := range keys {
		key := strings.ToLower(k)
		if prefix != "" {
			key = prefix + "." + key
		}
		if nested, ok := m[k].(map[string]any); ok {
			for nk, nv := range flatten(key, nested) {
				out[nk] = nv
			}
			continue
		}
		out[key] = m[k]
	}
	return out
}
