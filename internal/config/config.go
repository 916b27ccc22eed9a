// Package config handles configuration loading for kerneural.
package config

import (
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/go-playground/validator/v10"
	"gopkg.in/yaml.v3"

	"kerneural/internal/archive"
	"kerneural/internal/cooldown"
	"kerneural/internal/kafka"
)

// DefaultPath is read when KERNEURAL_CONFIG_PATH is unset.
const DefaultPath = "configs/kerneural.yaml"

// Config holds the complete application configuration.
type Config struct {
	Server   ServerConfig   `yaml:"server"`
	Events   EventsConfig   `yaml:"events"`
	Rules    RulesConfig    `yaml:"rules"`
	LLM      LLMConfig      `yaml:"llm"`
	Engine   EngineConfig   `yaml:"engine"`
	Cooldown CooldownConfig `yaml:"cooldown"`
	Audit    AuditConfig    `yaml:"audit"`
	Archive  ArchiveConfig  `yaml:"archive"`
	Metrics  MetricsConfig  `yaml:"metrics"`
	Logging  LoggingConfig  `yaml:"logging"`
}

// ServerConfig holds the status API settings.
type ServerConfig struct {
	Enabled         bool          `yaml:"enabled"`
	Addr            string        `yaml:"addr" validate:"required_if=Enabled true"`
	ReadTimeout     time.Duration `yaml:"read_timeout"`
	WriteTimeout    time.Duration `yaml:"write_timeout"`
	ShutdownTimeout time.Duration `yaml:"shutdown_timeout"`
}

// EventsConfig holds the Falco event stream settings.
type EventsConfig struct {
	Path         string        `yaml:"path" validate:"required"`
	PollInterval time.Duration `yaml:"poll_interval" validate:"gt=0"`
	RecentAlerts int           `yaml:"recent_alerts" validate:"gte=1"`
}

// RulesConfig holds rule store settings.
type RulesConfig struct {
	StorePath       string `yaml:"store_path" validate:"required"`
	DuplicatePolicy string `yaml:"duplicate_policy" validate:"oneof=allow reject"`
}

// LLMConfig holds synthesizer settings.
type LLMConfig struct {
	// BaseURL accepts several comma separated endpoints, tried in order.
	BaseURL          string        `yaml:"base_url" validate:"required"`
	APIKey           string        `yaml:"api_key"`
	Model            string        `yaml:"model" validate:"required"`
	Temperature      float32       `yaml:"temperature" validate:"gte=0,lte=2"`
	MaxTokens        int           `yaml:"max_tokens" validate:"gte=0"`
	Timeout          time.Duration `yaml:"timeout" validate:"gt=0"`
	GuardMaxFailures int           `yaml:"guard_max_failures" validate:"gte=0"`
	GuardCooldown    time.Duration `yaml:"guard_cooldown"`
}

// EngineConfig holds the engine reload settings.
type EngineConfig struct {
	ReloadCommand []string      `yaml:"reload_command" validate:"min=1,dive,required"`
	ReloadTimeout time.Duration `yaml:"reload_timeout" validate:"gt=0"`
}

// CooldownConfig holds per-rule synthesis cooldown settings.
type CooldownConfig struct {
	Backend string               `yaml:"backend" validate:"oneof=none memory redis"`
	TTL     time.Duration        `yaml:"ttl"`
	Size    int                  `yaml:"size"`
	Redis   cooldown.RedisConfig `yaml:"redis"`
}

// AuditConfig holds audit trail settings.
type AuditConfig struct {
	KafkaEnabled bool          `yaml:"kafka_enabled"`
	Kafka        *kafka.Config `yaml:"kafka"`
}

// ArchiveConfig holds rule store archive settings.
type ArchiveConfig struct {
	Enabled bool            `yaml:"enabled"`
	S3      *archive.Config `yaml:"s3"`
}

// MetricsConfig holds Prometheus settings.
type MetricsConfig struct {
	Enabled bool `yaml:"enabled"`
}

// LoggingConfig holds logging settings.
type LoggingConfig struct {
	Level  string `yaml:"level" validate:"oneof=debug info warn warning error"`
	Format string `yaml:"format" validate:"oneof=json text"`
}

// DefaultConfig returns a configuration with sensible defaults.
func DefaultConfig() *Config {
	return &Config{
		Server: ServerConfig{
			Enabled:         true,
			Addr:            "127.0.0.1:8088",
			ReadTimeout:     10 * time.Second,
			WriteTimeout:    10 * time.Second,
			ShutdownTimeout: 10 * time.Second,
		},
		Events: EventsConfig{
			Path:         "logs/falco_events.json",
			PollInterval: 500 * time.Millisecond,
			RecentAlerts: 100,
		},
		Rules: RulesConfig{
			StorePath:       "configs/falco_rules.local.yaml",
			DuplicatePolicy: "allow",
		},
		LLM: LLMConfig{
			BaseURL:          "https://generativelanguage.googleapis.com/v1beta/openai",
			Model:            "gemini-2.5-flash",
			Temperature:      0.2,
			Timeout:          60 * time.Second,
			GuardMaxFailures: 3,
			GuardCooldown:    5 * time.Minute,
		},
		Engine: EngineConfig{
			ReloadCommand: []string{"docker", "restart", "falco"},
			ReloadTimeout: 60 * time.Second,
		},
		Cooldown: CooldownConfig{
			Backend: "none",
			TTL:     10 * time.Minute,
			Size:    1024,
			Redis: cooldown.RedisConfig{
				Addr:      "localhost:6379",
				KeyPrefix: "kerneural:cooldown:",
			},
		},
		Audit: AuditConfig{
			Kafka: kafka.DefaultConfig(),
		},
		Archive: ArchiveConfig{
			S3: archive.DefaultConfig(),
		},
		Metrics: MetricsConfig{
			Enabled: true,
		},
		Logging: LoggingConfig{
			Level:  "info",
			Format: "json",
		},
	}
}

// Load loads configuration from a file or returns defaults, then applies
// environment overrides.
func Load() (*Config, error) {
	configPath := os.Getenv("KERNEURAL_CONFIG_PATH")
	if configPath == "" {
		configPath = DefaultPath
	}
	return LoadFile(configPath)
}

// LoadFile loads configuration from path. A missing file yields defaults.
func LoadFile(path string) (*Config, error) {
	cfg := DefaultConfig()

	data, err := os.ReadFile(path)
	if err != nil && !os.IsNotExist(err) {
		return nil, fmt.Errorf("failed to read config file: %w", err)
	}
	if err == nil {
		if err := yaml.Unmarshal(data, cfg); err != nil {
			return nil, fmt.Errorf("failed to parse config file: %w", err)
		}
	}

	cfg.applyEnvOverrides()
	return cfg, nil
}

// applyEnvOverrides applies environment variable overrides.
func (c *Config) applyEnvOverrides() {
	if key := os.Getenv("KERNEURAL_LLM_API_KEY"); key != "" {
		c.LLM.APIKey = key
	} else if key := os.Getenv("GEMINI_API_KEY"); key != "" {
		c.LLM.APIKey = key
	}
	if url := os.Getenv("KERNEURAL_LLM_BASE_URL"); url != "" {
		c.LLM.BaseURL = url
	}
	if model := os.Getenv("KERNEURAL_LLM_MODEL"); model != "" {
		c.LLM.Model = model
	}

	if path := os.Getenv("KERNEURAL_EVENTS_PATH"); path != "" {
		c.Events.Path = path
	}
	if path := os.Getenv("KERNEURAL_RULES_PATH"); path != "" {
		c.Rules.StorePath = path
	}
	if level := os.Getenv("KERNEURAL_LOG_LEVEL"); level != "" {
		c.Logging.Level = strings.ToLower(level)
	}
	if addr := os.Getenv("KERNEURAL_HTTP_ADDR"); addr != "" {
		c.Server.Addr = addr
	}
	if cmd := os.Getenv("KERNEURAL_RELOAD_COMMAND"); cmd != "" {
		c.Engine.ReloadCommand = strings.Fields(cmd)
	}
	if v := os.Getenv("KERNEURAL_SYNTHESIS_TIMEOUT"); v != "" {
		if d, err := time.ParseDuration(v); err == nil {
			c.LLM.Timeout = d
		}
	}

	if addr := os.Getenv("REDIS_ADDR"); addr != "" {
		c.Cooldown.Redis.Addr = addr
		c.Cooldown.Backend = "redis"
	}
	if pass := os.Getenv("REDIS_PASSWORD"); pass != "" {
		c.Cooldown.Redis.Password = pass
	}
	if db := os.Getenv("REDIS_DB"); db != "" {
		if n, err := strconv.Atoi(db); err == nil {
			c.Cooldown.Redis.DB = n
		}
	}

	if brokers := os.Getenv("KAFKA_BROKERS"); brokers != "" {
		if c.Audit.Kafka == nil {
			c.Audit.Kafka = kafka.DefaultConfig()
		}
		c.Audit.Kafka.Brokers = splitAndTrim(brokers, ",")
		c.Audit.KafkaEnabled = true
	}

	if bucket := os.Getenv("KERNEURAL_ARCHIVE_BUCKET"); bucket != "" {
		if c.Archive.S3 == nil {
			c.Archive.S3 = archive.DefaultConfig()
		}
		c.Archive.S3.Bucket = bucket
		c.Archive.Enabled = true
	}
}

// splitAndTrim splits s by sep and drops empty parts.
func splitAndTrim(s, sep string) []string {
	parts := make([]string, 0)
	for _, part := range strings.Split(s, sep) {
		if trimmed := strings.TrimSpace(part); trimmed != "" {
			parts = append(parts, trimmed)
		}
	}
	return parts
}

// BaseURLs splits the configured synthesizer endpoints.
func (c *LLMConfig) BaseURLs() []string {
	return splitAndTrim(c.BaseURL, ",")
}

// Validate validates the configuration.
func (c *Config) Validate() error {
	if err := validator.New().Struct(c); err != nil {
		return fmt.Errorf("invalid configuration: %w", err)
	}

	if c.Cooldown.Backend != "none" && c.Cooldown.TTL <= 0 {
		return fmt.Errorf("cooldown ttl must be positive")
	}
	if c.Cooldown.Backend == "redis" && c.Cooldown.Redis.Addr == "" {
		return fmt.Errorf("cooldown redis addr is required")
	}
	if c.LLM.GuardMaxFailures > 0 && c.LLM.GuardCooldown <= 0 {
		return fmt.Errorf("llm guard_cooldown must be positive")
	}
	if c.Audit.KafkaEnabled {
		if c.Audit.Kafka == nil {
			return fmt.Errorf("audit kafka settings are required")
		}
		if err := c.Audit.Kafka.Validate(); err != nil {
			return err
		}
	}
	if c.Archive.Enabled {
		if c.Archive.S3 == nil {
			return fmt.Errorf("archive s3 settings are required")
		}
		if err := c.Archive.S3.Validate(); err != nil {
			return err
		}
	}

	return nil
}
