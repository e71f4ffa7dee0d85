package config

import (
	"fmt"
	"time"

	"github.com/spf13/viper"

	"github.com/flashflow/flashflow/pkg/dispatch"
	"github.com/flashflow/flashflow/pkg/model"
)

type Config struct {
	Server   ServerConfig
	Database DatabaseConfig
	Redis    RedisConfig
	Kafka    KafkaConfig
	Auth     AuthConfig
	Logging  LoggingConfig
	Gating   GatingConfig
	Pipeline PipelineConfig
	Outbox   OutboxRelayConfig
}

type ServerConfig struct {
	HTTPPort    int           `mapstructure:"http_port"`
	MetricsPort int           `mapstructure:"metrics_port"`
	ReadTimeout time.Duration `mapstructure:"read_timeout"`
}

type DatabaseConfig struct {
	Host         string `mapstructure:"host"`
	Port         int    `mapstructure:"port"`
	User         string `mapstructure:"user"`
	Password     string `mapstructure:"password"`
	Database     string `mapstructure:"database"`
	SSLMode      string `mapstructure:"ssl_mode"`
	MaxOpenConns int    `mapstructure:"max_open_conns"`
	MaxIdleConns int    `mapstructure:"max_idle_conns"`
}

type RedisConfig struct {
	Addresses   []string `mapstructure:"addresses"`
	Password    string   `mapstructure:"password"`
	DB          int      `mapstructure:"db"`
	PoolSize    int      `mapstructure:"pool_size"`
	ClusterMode bool     `mapstructure:"cluster_mode"`
}

type KafkaConfig struct {
	Brokers    []string `mapstructure:"brokers"`
	ClientID   string   `mapstructure:"client_id"`
	EventTopic string   `mapstructure:"event_topic"`
	DLQTopic   string   `mapstructure:"dlq_topic"`
}

type AuthConfig struct {
	JWTSecret string        `mapstructure:"jwt_secret"`
	TokenTTL  time.Duration `mapstructure:"token_ttl"`
}

type LoggingConfig struct {
	Level  string `mapstructure:"level"`
	Format string `mapstructure:"format"` // json or console
}

type GatingConfig struct {
	Enabled    bool `mapstructure:"enabled"`
	FailClosed bool `mapstructure:"fail_closed"`
}

// SLAThreshold is one status's due-soon/overdue pair in elapsed minutes.
type SLAThreshold struct {
	DueSoonMinutes int `mapstructure:"due_soon_minutes"`
	OverdueMinutes int `mapstructure:"overdue_minutes"`
}

// PipelineConfig holds the dispatch policy knobs: SLA thresholds, lease TTLs
// and per-role fallback users. Values translate into dispatch.Rules; the
// handoff table and lane map are fixed policy, not configuration.
type PipelineConfig struct {
	SLA             map[string]SLAThreshold `mapstructure:"sla"`
	RoleTTLMinutes  map[string]int          `mapstructure:"role_ttl_minutes"`
	DefaultTTLMins  int                     `mapstructure:"default_ttl_minutes"`
	ClaimTTLMinutes int                     `mapstructure:"claim_ttl_minutes"`
	FallbackUsers   map[string]string       `mapstructure:"fallback_users"`
	CandidateLimit  int                     `mapstructure:"candidate_limit"`
	ReclaimInterval time.Duration           `mapstructure:"reclaim_interval"`
}

type OutboxRelayConfig struct {
	PollInterval time.Duration `mapstructure:"poll_interval"`
	BatchSize    int           `mapstructure:"batch_size"`
}

func Load() (*Config, error) {
	viper.SetConfigName("config")
	viper.SetConfigType("yaml")
	viper.AddConfigPath("/etc/flashflow/")
	viper.AddConfigPath(".")

	viper.SetEnvPrefix("FLASHFLOW")
	viper.AutomaticEnv()

	viper.SetDefault("server.http_port", 8080)
	viper.SetDefault("server.metrics_port", 9091)
	viper.SetDefault("server.read_timeout", "30s")
	viper.SetDefault("database.max_open_conns", 25)
	viper.SetDefault("database.max_idle_conns", 5)
	viper.SetDefault("redis.pool_size", 100)
	viper.SetDefault("kafka.client_id", "flashflow-outbox-relay")
	viper.SetDefault("kafka.event_topic", "flashflow.work.events")
	viper.SetDefault("kafka.dlq_topic", "flashflow.work.events.dlq")
	viper.SetDefault("auth.token_ttl", "24h")
	viper.SetDefault("logging.level", "info")
	viper.SetDefault("logging.format", "json")
	viper.SetDefault("gating.enabled", false)
	viper.SetDefault("gating.fail_closed", false)
	viper.SetDefault("pipeline.default_ttl_minutes", 60)
	viper.SetDefault("pipeline.claim_ttl_minutes", 120)
	viper.SetDefault("pipeline.candidate_limit", 50)
	viper.SetDefault("pipeline.reclaim_interval", "15m")
	viper.SetDefault("outbox.poll_interval", "5s")
	viper.SetDefault("outbox.batch_size", 100)

	if err := viper.ReadInConfig(); err != nil {
		if _, ok := err.(viper.ConfigFileNotFoundError); !ok {
			return nil, err
		}
	}

	var cfg Config
	if err := viper.Unmarshal(&cfg); err != nil {
		return nil, err
	}

	return &cfg, nil
}

func (c *DatabaseConfig) DSN() string {
	return fmt.Sprintf(
		"host=%s port=%d user=%s password=%s dbname=%s sslmode=%s",
		c.Host, c.Port, c.User, c.Password, c.Database, c.SSLMode,
	)
}

// Rules materializes the pipeline policy into the immutable rule set the
// engine components are constructed with. Anything not configured keeps the
// production default.
func (c *PipelineConfig) Rules(failClosed bool) dispatch.Rules {
	rules := dispatch.DefaultRules()
	rules.GatingFailClosed = failClosed

	for status, threshold := range c.SLA {
		s := model.VideoStatus(status)
		if !s.Valid() || threshold.DueSoonMinutes <= 0 || threshold.OverdueMinutes <= 0 {
			continue
		}
		rules.SLA[s] = dispatch.SLAWindow{
			DueSoon: time.Duration(threshold.DueSoonMinutes) * time.Minute,
			Overdue: time.Duration(threshold.OverdueMinutes) * time.Minute,
		}
	}

	for role, minutes := range c.RoleTTLMinutes {
		r := model.Role(role)
		if !r.Valid() || minutes <= 0 {
			continue
		}
		rules.RoleTTL[r] = time.Duration(minutes) * time.Minute
	}

	if c.DefaultTTLMins > 0 {
		rules.DefaultTTL = time.Duration(c.DefaultTTLMins) * time.Minute
	}
	if c.ClaimTTLMinutes > 0 {
		rules.ClaimTTL = time.Duration(c.ClaimTTLMinutes) * time.Minute
	}
	if c.CandidateLimit > 0 {
		rules.CandidateLimit = c.CandidateLimit
	}

	for role, user := range c.FallbackUsers {
		r := model.Role(role)
		if r.Valid() && user != "" {
			rules.FallbackUsers[r] = user
		}
	}

	return rules
}
