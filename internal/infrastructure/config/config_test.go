package config

import (
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"
)

const validJWTSecret = "test-secret-key-at-least-32-chars!"

func writeConfig(t *testing.T, content string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "config.yaml")
	if err := os.WriteFile(path, []byte(content), 0600); err != nil {
		t.Fatalf("failed to write test config: %v", err)
	}
	return path
}

func TestLoad_ValidConfig(t *testing.T) {
	path := writeConfig(t, `
site:
  id: "test-site"
database:
  path: "/tmp/test.db"
  wal_mode: true
  busy_timeout: 5
mqtt:
  broker:
    host: "localhost"
    port: 1883
    client_id: "test-client"
  qos: 1
api:
  host: "0.0.0.0"
  port: 8080
discovery:
  stale_after: 120
integrations:
  - domain: "inkbird"
    name: "Inkbird"
    local_name_pattern: "^(?P<model>IBS-TH\\d?)$"
    manufacturer_ids: [0x0001]
security:
  jwt:
    secret: "test-secret-key-at-least-32-chars!"
`)

	cfg, err := Load(path)
	if err != nil {
		t.Fatalf("Load() error = %v", err)
	}

	if cfg.Site.ID != "test-site" {
		t.Errorf("Site.ID = %q, want %q", cfg.Site.ID, "test-site")
	}
	if cfg.Database.Path != "/tmp/test.db" {
		t.Errorf("Database.Path = %q, want %q", cfg.Database.Path, "/tmp/test.db")
	}
	if cfg.MQTT.Broker.Host != "localhost" {
		t.Errorf("MQTT.Broker.Host = %q, want %q", cfg.MQTT.Broker.Host, "localhost")
	}
	if got := cfg.GetStaleAfter(); got != 2*time.Minute {
		t.Errorf("GetStaleAfter() = %v, want %v", got, 2*time.Minute)
	}
	// Unset discovery keys keep their defaults.
	if cfg.Discovery.Topic != "bleflow/ble/+/advertisement" {
		t.Errorf("Discovery.Topic = %q, want default", cfg.Discovery.Topic)
	}
	if len(cfg.Integrations) != 1 || cfg.Integrations[0].Domain != "inkbird" {
		t.Fatalf("Integrations = %+v, want one inkbird entry", cfg.Integrations)
	}
	if got := cfg.Integrations[0].ManufacturerIDs; len(got) != 1 || got[0] != 1 {
		t.Errorf("ManufacturerIDs = %v, want [1]", got)
	}
}

func TestLoad_MissingFile(t *testing.T) {
	_, err := Load("/nonexistent/path/config.yaml")
	if err == nil {
		t.Error("Load() expected error for missing file, got nil")
	}
}

func TestLoad_InvalidYAML(t *testing.T) {
	path := writeConfig(t, "invalid: [yaml: content")

	_, err := Load(path)
	if err == nil {
		t.Error("Load() expected error for invalid YAML, got nil")
	}
}

func TestLoad_ValidationFailure(t *testing.T) {
	path := writeConfig(t, `
site:
  id: ""
database:
  path: "/tmp/test.db"
api:
  port: 8080
`)

	_, err := Load(path)
	if err == nil {
		t.Error("Load() expected validation error for empty site.id, got nil")
	}
}

func TestLoad_EnvOverrides(t *testing.T) {
	path := writeConfig(t, `
database:
  path: "/tmp/file.db"
`)
	t.Setenv("BLEFLOW_JWT_SECRET", validJWTSecret)
	t.Setenv("BLEFLOW_DATABASE_PATH", "/tmp/env.db")
	t.Setenv("BLEFLOW_API_PORT", "9090")
	t.Setenv("BLEFLOW_LOG_LEVEL", "debug")

	cfg, err := Load(path)
	if err != nil {
		t.Fatalf("Load() error = %v", err)
	}
	if cfg.Database.Path != "/tmp/env.db" {
		t.Errorf("Database.Path = %q, want %q", cfg.Database.Path, "/tmp/env.db")
	}
	if cfg.API.Port != 9090 {
		t.Errorf("API.Port = %d, want 9090", cfg.API.Port)
	}
	if cfg.Logging.Level != "debug" {
		t.Errorf("Logging.Level = %q, want %q", cfg.Logging.Level, "debug")
	}
}

func TestLoad_DotEnvFile(t *testing.T) {
	path := writeConfig(t, "site:\n  id: dotenv\n")
	envPath := filepath.Join(t.TempDir(), "test.env")
	content := "BLEFLOW_JWT_SECRET=" + validJWTSecret + "\nBLEFLOW_MQTT_HOST=broker.lan\n"
	if err := os.WriteFile(envPath, []byte(content), 0600); err != nil {
		t.Fatalf("failed to write env file: %v", err)
	}
	t.Setenv("BLEFLOW_ENV_FILE", envPath)
	// godotenv writes straight into the process environment.
	t.Setenv("BLEFLOW_JWT_SECRET", "")
	t.Setenv("BLEFLOW_MQTT_HOST", "")
	os.Unsetenv("BLEFLOW_JWT_SECRET")
	os.Unsetenv("BLEFLOW_MQTT_HOST")

	cfg, err := Load(path)
	if err != nil {
		t.Fatalf("Load() error = %v", err)
	}
	if cfg.MQTT.Broker.Host != "broker.lan" {
		t.Errorf("MQTT.Broker.Host = %q, want %q", cfg.MQTT.Broker.Host, "broker.lan")
	}
	if cfg.Security.JWT.Secret != validJWTSecret {
		t.Errorf("JWT secret not loaded from env file")
	}
}

func TestLoad_MissingExplicitDotEnv(t *testing.T) {
	path := writeConfig(t, "security:\n  jwt:\n    secret: \""+validJWTSecret+"\"\n")
	t.Setenv("BLEFLOW_ENV_FILE", filepath.Join(t.TempDir(), "missing.env"))

	if _, err := Load(path); err == nil {
		t.Error("Load() expected error for missing explicit env file, got nil")
	}
}

func TestConfig_Validate(t *testing.T) {
	base := func() *Config {
		cfg := defaultConfig()
		cfg.Security.JWT.Secret = validJWTSecret
		return cfg
	}

	tests := []struct {
		name    string
		mutate  func(*Config)
		wantErr string
	}{
		{name: "valid config", mutate: func(*Config) {}},
		{name: "missing site ID", mutate: func(c *Config) { c.Site.ID = "" }, wantErr: "site.id"},
		{name: "missing database path", mutate: func(c *Config) { c.Database.Path = "" }, wantErr: "database.path"},
		{name: "invalid QoS", mutate: func(c *Config) { c.MQTT.QoS = 3 }, wantErr: "mqtt.qos"},
		{name: "invalid port", mutate: func(c *Config) { c.API.Port = 0 }, wantErr: "api.port"},
		{name: "missing JWT secret", mutate: func(c *Config) { c.Security.JWT.Secret = "" }, wantErr: "security.jwt.secret is required"},
		{name: "short JWT secret", mutate: func(c *Config) { c.Security.JWT.Secret = "short" }, wantErr: "at least 32"},
		{name: "negative stale_after", mutate: func(c *Config) { c.Discovery.StaleAfter = -1 }, wantErr: "stale_after"},
		{
			name:    "integration without domain",
			mutate:  func(c *Config) { c.Integrations = []IntegrationConfig{{LocalNamePattern: "x"}} },
			wantErr: "integrations[0].domain",
		},
		{
			name: "duplicate integration domain",
			mutate: func(c *Config) {
				c.Integrations = []IntegrationConfig{
					{Domain: "a", LocalNamePattern: "x"},
					{Domain: "a", LocalNamePattern: "y"},
				}
			},
			wantErr: "duplicated",
		},
		{
			name:    "integration without signature",
			mutate:  func(c *Config) { c.Integrations = []IntegrationConfig{{Domain: "a"}} },
			wantErr: "needs a local_name_pattern",
		},
		{
			name:    "mdns without service",
			mutate:  func(c *Config) { c.MDNS.Enabled = true; c.MDNS.Service = "" },
			wantErr: "mdns.service",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg := base()
			tt.mutate(cfg)
			err := cfg.Validate()
			if tt.wantErr == "" {
				if err != nil {
					t.Errorf("Validate() error = %v, want nil", err)
				}
				return
			}
			if err == nil {
				t.Fatalf("Validate() error = nil, want containing %q", tt.wantErr)
			}
			if !strings.Contains(err.Error(), tt.wantErr) {
				t.Errorf("Validate() error = %v, want containing %q", err, tt.wantErr)
			}
		})
	}
}

func TestConfig_Masked(t *testing.T) {
	cfg := defaultConfig()
	cfg.Security.JWT.Secret = validJWTSecret
	cfg.MQTT.Auth.Password = "mqtt-pass"
	cfg.InfluxDB.Token = ""

	masked := cfg.Masked()

	if masked.Security.JWT.Secret == validJWTSecret {
		t.Error("Masked() leaked the JWT secret")
	}
	if masked.MQTT.Auth.Password != "********" {
		t.Errorf("MQTT password = %q, want mask", masked.MQTT.Auth.Password)
	}
	if masked.InfluxDB.Token != "" {
		t.Errorf("empty token should stay empty, got %q", masked.InfluxDB.Token)
	}
	if cfg.Security.JWT.Secret != validJWTSecret {
		t.Error("Masked() modified the original config")
	}
}

func TestConfig_Durations(t *testing.T) {
	cfg := defaultConfig()

	if got := cfg.GetReadTimeout(); got != 30*time.Second {
		t.Errorf("GetReadTimeout() = %v, want 30s", got)
	}
	if got := cfg.GetIdleTimeout(); got != time.Minute {
		t.Errorf("GetIdleTimeout() = %v, want 1m", got)
	}
	if got := cfg.GetSweepInterval(); got != 30*time.Second {
		t.Errorf("GetSweepInterval() = %v, want 30s", got)
	}
	if got := cfg.GetAccessTokenTTL(); got != 15*time.Minute {
		t.Errorf("GetAccessTokenTTL() = %v, want 15m", got)
	}
	if got := cfg.GetWSTicketTTL(); got != time.Minute {
		t.Errorf("GetWSTicketTTL() = %v, want 1m", got)
	}
}
