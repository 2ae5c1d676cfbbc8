// Package config loads callgate settings from callgate.yaml, CALLGATE_* environment
// variables and command-line flags, in increasing order of precedence.
package config

import (
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/aretw0/callgate/internal/logging"
	"github.com/spf13/viper"
)

// EnvPrefix prefixes every environment override, e.g. CALLGATE_REDIS_ADDR.
const EnvPrefix = "CALLGATE"

// Backends lists the accepted flag store backends.
var Backends = []string{"memory", "file", "redis", "sqlite"}

// Config is the resolved configuration of one callgate process.
type Config struct {
	Backend string `mapstructure:"backend"`
	// Slot names the save inside shared backends (redis, sqlite).
	Slot string `mapstructure:"slot"`

	Save   SaveConfig   `mapstructure:"save"`
	Graphs GraphsConfig `mapstructure:"graphs"`
	Redis  RedisConfig  `mapstructure:"redis"`
	SQLite SQLiteConfig `mapstructure:"sqlite"`

	Log       LogConfig       `mapstructure:"log"`
	Scheduler SchedulerConfig `mapstructure:"scheduler"`
	HTTP      HTTPConfig      `mapstructure:"http"`
	MCP       MCPConfig       `mapstructure:"mcp"`
}

type SaveConfig struct {
	Path     string        `mapstructure:"path"`
	Debounce time.Duration `mapstructure:"debounce"`
	// SealKey (base64, 32 bytes) seals the call completion markers against hand edits.
	SealKey string `mapstructure:"seal_key"`
	// SealFallbackKeys still open progress sealed before a key rotation.
	SealFallbackKeys []string `mapstructure:"seal_fallback_keys"`
}

// GraphsConfig points at authored dialogue graphs. An empty Dir uses the built-in graphs only.
type GraphsConfig struct {
	Dir string `mapstructure:"dir"`
	// Format is "file" for YAML/JSON documents or "loam" for markdown front matter.
	Format string `mapstructure:"format"`
}

type RedisConfig struct {
	Addr     string        `mapstructure:"addr"`
	Password string        `mapstructure:"password"`
	DB       int           `mapstructure:"db"`
	Prefix   string        `mapstructure:"prefix"`
	LockTTL  time.Duration `mapstructure:"lock_ttl"`
}

type SQLiteConfig struct {
	Path string `mapstructure:"path"`
}

type LogConfig struct {
	Level  string `mapstructure:"level"`
	Format string `mapstructure:"format"`
}

type SchedulerConfig struct {
	Poll   time.Duration `mapstructure:"poll"`
	Settle time.Duration `mapstructure:"settle"`
	Probe  time.Duration `mapstructure:"probe"`
	Tick   time.Duration `mapstructure:"tick"`
}

type HTTPConfig struct {
	Addr    string `mapstructure:"addr"`
	Metrics bool   `mapstructure:"metrics"`
}

type MCPConfig struct {
	Transport string `mapstructure:"transport"`
	Addr      string `mapstructure:"addr"`
}

// New returns a viper instance with every default registered and environment
// overrides enabled. Callers bind command-line flags to it before Load.
func New() *viper.Viper {
	v := viper.New()

	v.SetDefault("backend", "file")
	v.SetDefault("slot", "default")
	v.SetDefault("save.path", ".callgate/save.json")
	v.SetDefault("save.debounce", 500*time.Millisecond)
	v.SetDefault("save.seal_key", "")
	v.SetDefault("save.seal_fallback_keys", []string{})
	v.SetDefault("graphs.dir", "")
	v.SetDefault("graphs.format", "file")
	v.SetDefault("redis.addr", "localhost:6379")
	v.SetDefault("redis.password", "")
	v.SetDefault("redis.db", 0)
	v.SetDefault("redis.prefix", "callgate:")
	v.SetDefault("redis.lock_ttl", 15*time.Second)
	v.SetDefault("sqlite.path", ".callgate/save.db")
	v.SetDefault("log.level", "info")
	v.SetDefault("log.format", "text")
	v.SetDefault("scheduler.poll", time.Second)
	v.SetDefault("scheduler.settle", 500*time.Millisecond)
	v.SetDefault("scheduler.probe", 100*time.Millisecond)
	v.SetDefault("scheduler.tick", 50*time.Millisecond)
	v.SetDefault("http.addr", ":8080")
	v.SetDefault("http.metrics", true)
	v.SetDefault("mcp.transport", "stdio")
	v.SetDefault("mcp.addr", ":8081")

	v.SetEnvPrefix(EnvPrefix)
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()
	return v
}

// Load reads the config file (file, or ./callgate.yaml when file is empty and it exists)
// and decodes the merged settings.
func Load(v *viper.Viper, file string) (*Config, error) {
	if file != "" {
		v.SetConfigFile(file)
		if err := v.ReadInConfig(); err != nil {
			return nil, fmt.Errorf("failed to read config %s: %w", file, err)
		}
	} else {
		v.SetConfigName("callgate")
		v.SetConfigType("yaml")
		v.AddConfigPath(".")
		if err := v.ReadInConfig(); err != nil {
			var notFound viper.ConfigFileNotFoundError
			if !errors.As(err, &notFound) {
				return nil, fmt.Errorf("failed to read config: %w", err)
			}
		}
	}

	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return nil, fmt.Errorf("failed to decode config: %w", err)
	}
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return &cfg, nil
}

// Validate reports every invalid setting at once.
func (c *Config) Validate() error {
	var errs []error

	if !contains(Backends, c.Backend) {
		errs = append(errs, fmt.Errorf("backend %q: want one of %s", c.Backend, strings.Join(Backends, ", ")))
	}
	if c.Backend != "memory" && c.Backend != "file" && c.Slot == "" {
		errs = append(errs, fmt.Errorf("slot: required by the %s backend", c.Backend))
	}
	if c.Graphs.Format != "file" && c.Graphs.Format != "loam" {
		errs = append(errs, fmt.Errorf("graphs.format %q: want file or loam", c.Graphs.Format))
	}
	if _, err := logging.ParseLevel(c.Log.Level); err != nil {
		errs = append(errs, fmt.Errorf("log.level: %w", err))
	}
	if c.Log.Format != "text" && c.Log.Format != "json" {
		errs = append(errs, fmt.Errorf("log.format %q: want text or json", c.Log.Format))
	}
	for name, d := range map[string]time.Duration{
		"scheduler.poll":   c.Scheduler.Poll,
		"scheduler.settle": c.Scheduler.Settle,
		"scheduler.probe":  c.Scheduler.Probe,
		"scheduler.tick":   c.Scheduler.Tick,
	} {
		if d <= 0 {
			errs = append(errs, fmt.Errorf("%s: must be positive, got %s", name, d))
		}
	}
	if c.Backend == "redis" && c.Redis.LockTTL <= 0 {
		errs = append(errs, fmt.Errorf("redis.lock_ttl: must be positive"))
	}
	if c.MCP.Transport != "stdio" && c.MCP.Transport != "sse" {
		errs = append(errs, fmt.Errorf("mcp.transport %q: want stdio or sse", c.MCP.Transport))
	}

	return errors.Join(errs...)
}

func contains(list []string, s string) bool {
	for _, item := range list {
		if item == s {
			return true
		}
	}
	return false
}
