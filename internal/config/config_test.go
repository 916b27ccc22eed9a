package config

import (
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"
)

func TestDefaultConfig(t *testing.T) {
	cfg := DefaultConfig()

	if cfg.Events.Path != "logs/falco_events.json" {
		t.Errorf("Events.Path = %q", cfg.Events.Path)
	}
	if cfg.Events.PollInterval != 500*time.Millisecond {
		t.Errorf("PollInterval = %v, want 500ms", cfg.Events.PollInterval)
	}
	if cfg.Rules.StorePath != "configs/falco_rules.local.yaml" {
		t.Errorf("Rules.StorePath = %q", cfg.Rules.StorePath)
	}
	if cfg.Rules.DuplicatePolicy != "allow" {
		t.Errorf("DuplicatePolicy = %q, want allow", cfg.Rules.DuplicatePolicy)
	}
	if cfg.LLM.Model != "gemini-2.5-flash" {
		t.Errorf("LLM.Model = %q", cfg.LLM.Model)
	}
	if cfg.LLM.Timeout != 60*time.Second {
		t.Errorf("LLM.Timeout = %v", cfg.LLM.Timeout)
	}
	if strings.Join(cfg.Engine.ReloadCommand, " ") != "docker restart falco" {
		t.Errorf("ReloadCommand = %v", cfg.Engine.ReloadCommand)
	}
	if cfg.Cooldown.Backend != "none" {
		t.Errorf("Cooldown.Backend = %q, want none", cfg.Cooldown.Backend)
	}

	if err := cfg.Validate(); err != nil {
		t.Errorf("default config should validate: %v", err)
	}
}

func TestValidate(t *testing.T) {
	tests := []struct {
		name    string
		modify  func(*Config)
		wantErr bool
	}{
		{"defaults", func(c *Config) {}, false},
		{"empty events path", func(c *Config) { c.Events.Path = "" }, true},
		{"zero poll interval", func(c *Config) { c.Events.PollInterval = 0 }, true},
		{"bad duplicate policy", func(c *Config) { c.Rules.DuplicatePolicy = "merge" }, true},
		{"reject duplicates", func(c *Config) { c.Rules.DuplicatePolicy = "reject" }, false},
		{"empty reload command", func(c *Config) { c.Engine.ReloadCommand = nil }, true},
		{"blank reload argv", func(c *Config) { c.Engine.ReloadCommand = []string{""} }, true},
		{"bad log level", func(c *Config) { c.Logging.Level = "loud" }, true},
		{"bad cooldown backend", func(c *Config) { c.Cooldown.Backend = "memcached" }, true},
		{"memory cooldown without ttl", func(c *Config) {
			c.Cooldown.Backend = "memory"
			c.Cooldown.TTL = 0
		}, true},
		{"server enabled without addr", func(c *Config) { c.Server.Addr = "" }, true},
		{"server disabled without addr", func(c *Config) {
			c.Server.Enabled = false
			c.Server.Addr = ""
		}, false},
		{"kafka enabled without brokers", func(c *Config) {
			c.Audit.KafkaEnabled = true
			c.Audit.Kafka.Brokers = nil
		}, true},
		{"archive enabled without bucket", func(c *Config) {
			c.Archive.Enabled = true
			c.Archive.S3.Bucket = ""
		}, true},
		{"zero synthesis timeout", func(c *Config) { c.LLM.Timeout = 0 }, true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg := DefaultConfig()
			tt.modify(cfg)
			err := cfg.Validate()
			if (err != nil) != tt.wantErr {
				t.Errorf("Validate() error = %v, wantErr %v", err, tt.wantErr)
			}
		})
	}
}

func TestLoadFile(t *testing.T) {
	path := filepath.Join(t.TempDir(), "kerneural.yaml")
	content := `
events:
  path: /var/log/falco/events.json
  poll_interval: 250ms
rules:
  duplicate_policy: reject
llm:
  model: gemini-2.0-flash
  timeout: 30s
engine:
  reload_command: ["systemctl", "reload", "falco"]
`
	if err := os.WriteFile(path, []byte(content), 0o644); err != nil {
		t.Fatal(err)
	}

	cfg, err := LoadFile(path)
	if err != nil {
		t.Fatalf("LoadFile() error = %v", err)
	}
	if cfg.Events.Path != "/var/log/falco/events.json" {
		t.Errorf("Events.Path = %q", cfg.Events.Path)
	}
	if cfg.Events.PollInterval != 250*time.Millisecond {
		t.Errorf("PollInterval = %v", cfg.Events.PollInterval)
	}
	if cfg.Rules.DuplicatePolicy != "reject" {
		t.Errorf("DuplicatePolicy = %q", cfg.Rules.DuplicatePolicy)
	}
	if cfg.LLM.Timeout != 30*time.Second {
		t.Errorf("LLM.Timeout = %v", cfg.LLM.Timeout)
	}
	if cfg.Rules.StorePath != "configs/falco_rules.local.yaml" {
		t.Errorf("unset field lost its default: %q", cfg.Rules.StorePath)
	}
	if got := strings.Join(cfg.Engine.ReloadCommand, " "); got != "systemctl reload falco" {
		t.Errorf("ReloadCommand = %q", got)
	}
}

func TestLoadFile_Missing(t *testing.T) {
	cfg, err := LoadFile(filepath.Join(t.TempDir(), "absent.yaml"))
	if err != nil {
		t.Fatalf("LoadFile() error = %v", err)
	}
	if cfg.Events.Path != DefaultConfig().Events.Path {
		t.Error("missing file should yield defaults")
	}
}

func TestLoadFile_Invalid(t *testing.T) {
	path := filepath.Join(t.TempDir(), "bad.yaml")
	os.WriteFile(path, []byte("events: [unclosed"), 0o644)
	if _, err := LoadFile(path); err == nil {
		t.Error("expected parse error")
	}
}

func TestEnvOverrides(t *testing.T) {
	t.Setenv("KERNEURAL_CONFIG_PATH", filepath.Join(t.TempDir(), "none.yaml"))
	t.Setenv("GEMINI_API_KEY", "gemini-key")
	t.Setenv("KERNEURAL_LLM_MODEL", "gemini-2.5-pro")
	t.Setenv("KERNEURAL_EVENTS_PATH", "/tmp/events.json")
	t.Setenv("KERNEURAL_RULES_PATH", "/tmp/rules.yaml")
	t.Setenv("KERNEURAL_LOG_LEVEL", "DEBUG")
	t.Setenv("KERNEURAL_RELOAD_COMMAND", "podman restart falco")
	t.Setenv("REDIS_ADDR", "redis:6379")
	t.Setenv("KAFKA_BROKERS", "k1:9092, k2:9092")

	cfg, err := Load()
	if err != nil {
		t.Fatalf("Load() error = %v", err)
	}

	if cfg.LLM.APIKey != "gemini-key" {
		t.Errorf("APIKey = %q", cfg.LLM.APIKey)
	}
	if cfg.LLM.Model != "gemini-2.5-pro" {
		t.Errorf("Model = %q", cfg.LLM.Model)
	}
	if cfg.Events.Path != "/tmp/events.json" || cfg.Rules.StorePath != "/tmp/rules.yaml" {
		t.Errorf("paths = %q, %q", cfg.Events.Path, cfg.Rules.StorePath)
	}
	if cfg.Logging.Level != "debug" {
		t.Errorf("Logging.Level = %q", cfg.Logging.Level)
	}
	if strings.Join(cfg.Engine.ReloadCommand, " ") != "podman restart falco" {
		t.Errorf("ReloadCommand = %v", cfg.Engine.ReloadCommand)
	}
	if cfg.Cooldown.Backend != "redis" || cfg.Cooldown.Redis.Addr != "redis:6379" {
		t.Errorf("cooldown = %+v", cfg.Cooldown)
	}
	if !cfg.Audit.KafkaEnabled || len(cfg.Audit.Kafka.Brokers) != 2 || cfg.Audit.Kafka.Brokers[1] != "k2:9092" {
		t.Errorf("audit = %+v", cfg.Audit.Kafka)
	}
	if err := cfg.Validate(); err != nil {
		t.Errorf("overridden config should validate: %v", err)
	}
}

func TestAPIKeyPrecedence(t *testing.T) {
	t.Setenv("GEMINI_API_KEY", "gemini")
	t.Setenv("KERNEURAL_LLM_API_KEY", "explicit")

	cfg, err := LoadFile(filepath.Join(t.TempDir(), "none.yaml"))
	if err != nil {
		t.Fatal(err)
	}
	if cfg.LLM.APIKey != "explicit" {
		t.Errorf("APIKey = %q, want explicit", cfg.LLM.APIKey)
	}
}

func TestBaseURLs(t *testing.T) {
	c := LLMConfig{BaseURL: "http://a/v1, http://b/v1,,"}
	got := c.BaseURLs()
	if len(got) != 2 || got[0] != "http://a/v1" || got[1] != "http://b/v1" {
		t.Errorf("BaseURLs() = %v", got)
	}
}
