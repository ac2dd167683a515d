package config

import (
	"fmt"
	"strings"
	"time"

	"github.com/spf13/viper"
)

// Config captures the full configuration surface for the application.
type Config struct {
	App       AppConfig       `mapstructure:"app"`
	HTTP      HTTPConfig      `mapstructure:"http"`
	Upstream  UpstreamConfig  `mapstructure:"upstream"`
	Monitor   MonitorConfig   `mapstructure:"monitor"`
	Session   SessionConfig   `mapstructure:"session"`
	Redis     RedisConfig     `mapstructure:"redis"`
	Kafka     KafkaConfig     `mapstructure:"kafka"`
	Telemetry TelemetryConfig `mapstructure:"telemetry"`
}

type AppConfig struct {
	Name    string `mapstructure:"name"`
	Env     string `mapstructure:"env"`
	Version string `mapstructure:"version"`
	// LogLevel overrides the environment's default level (debug, info, warn, error).
	LogLevel string `mapstructure:"log_level"`
}

type HTTPConfig struct {
	Port         int           `mapstructure:"port"`
	ReadTimeout  time.Duration `mapstructure:"read_timeout"`
	WriteTimeout time.Duration `mapstructure:"write_timeout"`
	IdleTimeout  time.Duration `mapstructure:"idle_timeout"`
}

// UpstreamConfig points at the outreach backend that owns campaign state.
type UpstreamConfig struct {
	BaseURL        string        `mapstructure:"base_url"`
	RequestTimeout time.Duration `mapstructure:"request_timeout"`
	// ReplyTimeout bounds reply sends, which can take minutes on the backend.
	ReplyTimeout time.Duration `mapstructure:"reply_timeout"`
}

type MonitorConfig struct {
	PollInterval time.Duration `mapstructure:"poll_interval"`
	TickInterval time.Duration `mapstructure:"tick_interval"`
	AutoRefresh  bool          `mapstructure:"auto_refresh"`
	MaxViews     int           `mapstructure:"max_views"`
	// LockTTL bounds how long a crashed replica can hold a campaign's command lock.
	LockTTL time.Duration `mapstructure:"lock_ttl"`
}

type SessionConfig struct {
	TTL       time.Duration `mapstructure:"ttl"`
	KeyPrefix string        `mapstructure:"key_prefix"`
	Store     string        `mapstructure:"store"`
}

type RedisConfig struct {
	Address      string        `mapstructure:"address"`
	Password     string        `mapstructure:"password"`
	DB           int           `mapstructure:"db"`
	DialTimeout  time.Duration `mapstructure:"dial_timeout"`
	ReadTimeout  time.Duration `mapstructure:"read_timeout"`
	WriteTimeout time.Duration `mapstructure:"write_timeout"`
	PoolSize     int           `mapstructure:"pool_size"`
	MinIdleConns int           `mapstructure:"min_idle_conns"`
	MaxRetries   int           `mapstructure:"max_retries"`
}

type KafkaConfig struct {
	Enabled     bool     `mapstructure:"enabled"`
	Brokers     []string `mapstructure:"brokers"`
	ClientID    string   `mapstructure:"client_id"`
	EventsTopic string   `mapstructure:"events_topic"`
	Partitions  int      `mapstructure:"partitions"`
}

type TelemetryConfig struct {
	Endpoint        string        `mapstructure:"endpoint"`
	ServiceName     string        `mapstructure:"service_name"`
	SampleRatio     float64       `mapstructure:"sample_ratio"`
	TracingEnabled  bool          `mapstructure:"tracing_enabled"`
	ShutdownTimeout time.Duration `mapstructure:"shutdown_timeout"`
}

// Load reads configuration from file and environment variables.
func Load(path string) (*Config, error) {
	v := viper.New()
	setDefaults(v)

	v.SetConfigFile(path)
	v.SetConfigType("yaml")
	v.AutomaticEnv()
	v.SetEnvPrefix("OUTREACH")
	v.SetEnvKeyReplacer(NewEnvReplacer())

	if err := v.ReadInConfig(); err != nil {
		return nil, fmt.Errorf("config: failed to read config file: %w", err)
	}

	cfg := new(Config)
	if err := v.Unmarshal(cfg); err != nil {
		return nil, fmt.Errorf("config: failed to unmarshal config: %w", err)
	}

	if err := cfg.validate(); err != nil {
		return nil, err
	}

	return cfg, nil
}

// NewEnvReplacer standardizes environment variable names.
func NewEnvReplacer() *strings.Replacer {
	return strings.NewReplacer(".", "_", "-", "_")
}

func setDefaults(v *viper.Viper) {
	v.SetDefault("app.name", "outreach-monitor")
	v.SetDefault("app.env", "development")
	v.SetDefault("app.log_level", "")
	v.SetDefault("http.port", 8080)
	v.SetDefault("http.read_timeout", 15*time.Second)
	v.SetDefault("http.write_timeout", 6*time.Minute)
	v.SetDefault("http.idle_timeout", 60*time.Second)
	v.SetDefault("upstream.base_url", "http://127.0.0.1:8000")
	v.SetDefault("upstream.request_timeout", 30*time.Second)
	v.SetDefault("upstream.reply_timeout", 5*time.Minute)
	v.SetDefault("monitor.poll_interval", 5*time.Second)
	v.SetDefault("monitor.tick_interval", time.Second)
	v.SetDefault("monitor.auto_refresh", true)
	v.SetDefault("monitor.max_views", 256)
	v.SetDefault("monitor.lock_ttl", time.Minute)
	v.SetDefault("session.ttl", 12*time.Hour)
	v.SetDefault("session.key_prefix", "outreach:session:")
	v.SetDefault("session.store", "redis")
	v.SetDefault("redis.address", "127.0.0.1:6379")
	v.SetDefault("kafka.client_id", "outreach-monitor")
	v.SetDefault("kafka.events_topic", "outreach.monitor.events")
	v.SetDefault("kafka.partitions", 6)
	v.SetDefault("telemetry.sample_ratio", 1.0)
	v.SetDefault("telemetry.shutdown_timeout", 5*time.Second)
}

func (c *Config) validate() error {
	if c.Upstream.BaseURL == "" {
		return fmt.Errorf("config: upstream.base_url is required")
	}
	if c.Monitor.PollInterval <= 0 || c.Monitor.TickInterval <= 0 {
		return fmt.Errorf("config: monitor intervals must be positive")
	}
	if c.Upstream.ReplyTimeout < c.Upstream.RequestTimeout {
		return fmt.Errorf("config: upstream.reply_timeout must not be shorter than upstream.request_timeout")
	}
	if c.Kafka.Enabled && len(c.Kafka.Brokers) == 0 {
		return fmt.Errorf("config: kafka.enabled requires brokers")
	}
	switch c.Session.Store {
	case "redis", "memory":
	default:
		return fmt.Errorf("config: unknown session.store %q", c.Session.Store)
	}
	return nil
}
