package config

import (
	"errors"
	"fmt"
	"io/fs"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/joho/godotenv"
	"gopkg.in/yaml.v3"
)

// Config is the root configuration structure for bleflow.
// All configuration is loaded from YAML and can be overridden by environment variables.
type Config struct {
	Site         SiteConfig          `yaml:"site"`
	Database     DatabaseConfig      `yaml:"database"`
	MQTT         MQTTConfig          `yaml:"mqtt"`
	API          APIConfig           `yaml:"api"`
	WebSocket    WebSocketConfig     `yaml:"websocket"`
	InfluxDB     InfluxDBConfig      `yaml:"influxdb"`
	Logging      LoggingConfig       `yaml:"logging"`
	Discovery    DiscoveryConfig     `yaml:"discovery"`
	Integrations []IntegrationConfig `yaml:"integrations"`
	Security     SecurityConfig      `yaml:"security"`
	MDNS         MDNSConfig          `yaml:"mdns"`
}

// SiteConfig identifies the installation this instance serves.
type SiteConfig struct {
	ID   string `yaml:"id"`
	Name string `yaml:"name"`
}

// DatabaseConfig contains SQLite database settings.
type DatabaseConfig struct {
	Path        string `yaml:"path"`
	WALMode     bool   `yaml:"wal_mode"`
	BusyTimeout int    `yaml:"busy_timeout"`
}

// MQTTConfig contains MQTT broker connection settings.
type MQTTConfig struct {
	Broker    MQTTBrokerConfig    `yaml:"broker"`
	Auth      MQTTAuthConfig      `yaml:"auth"`
	QoS       int                 `yaml:"qos"`
	Reconnect MQTTReconnectConfig `yaml:"reconnect"`
}

// MQTTBrokerConfig contains MQTT broker connection details.
type MQTTBrokerConfig struct {
	Host     string `yaml:"host"`
	Port     int    `yaml:"port"`
	TLS      bool   `yaml:"tls"`
	ClientID string `yaml:"client_id"`
}

// MQTTAuthConfig contains MQTT authentication credentials.
type MQTTAuthConfig struct {
	Username string `yaml:"username"`
	Password string `yaml:"password"`
}

// MQTTReconnectConfig contains MQTT reconnection settings.
type MQTTReconnectConfig struct {
	InitialDelay int `yaml:"initial_delay"`
	MaxDelay     int `yaml:"max_delay"`
	MaxAttempts  int `yaml:"max_attempts"`
}

// APIConfig contains HTTP API server settings.
type APIConfig struct {
	Host     string           `yaml:"host"`
	Port     int              `yaml:"port"`
	TLS      TLSConfig        `yaml:"tls"`
	Timeouts APITimeoutConfig `yaml:"timeouts"`
	CORS     CORSConfig       `yaml:"cors"`
}

// TLSConfig contains TLS certificate settings.
type TLSConfig struct {
	Enabled  bool   `yaml:"enabled"`
	CertFile string `yaml:"cert_file"`
	KeyFile  string `yaml:"key_file"`
}

// APITimeoutConfig contains HTTP timeout settings in seconds.
type APITimeoutConfig struct {
	Read  int `yaml:"read"`
	Write int `yaml:"write"`
	Idle  int `yaml:"idle"`
}

// CORSConfig contains Cross-Origin Resource Sharing settings.
type CORSConfig struct {
	AllowedOrigins []string `yaml:"allowed_origins"`
	AllowedMethods []string `yaml:"allowed_methods"`
	AllowedHeaders []string `yaml:"allowed_headers"`
}

// WebSocketConfig contains WebSocket server settings.
type WebSocketConfig struct {
	Path           string `yaml:"path"`
	MaxMessageSize int    `yaml:"max_message_size"`
	PingInterval   int    `yaml:"ping_interval"`
	PongTimeout    int    `yaml:"pong_timeout"`
}

// InfluxDBConfig contains InfluxDB connection settings.
type InfluxDBConfig struct {
	Enabled       bool   `yaml:"enabled"`
	URL           string `yaml:"url"`
	Token         string `yaml:"token"`
	Org           string `yaml:"org"`
	Bucket        string `yaml:"bucket"`
	BatchSize     int    `yaml:"batch_size"`
	FlushInterval int    `yaml:"flush_interval"`
}

// LoggingConfig contains logging settings.
type LoggingConfig struct {
	Level  string `yaml:"level"`
	Format string `yaml:"format"`
	Output string `yaml:"output"`
}

// DiscoveryConfig controls how Bluetooth advertisements are ingested and
// turned into discovery flows.
type DiscoveryConfig struct {
	// Topic is the MQTT subscription filter gateways publish advertisements to.
	Topic string `yaml:"topic"`

	// StaleAfter is how long (seconds) an address stays in the discovery
	// cache after its last advertisement.
	StaleAfter int `yaml:"stale_after"`

	// SweepInterval is how often (seconds) stale addresses are evicted.
	SweepInterval int `yaml:"sweep_interval"`

	// AutoStart starts a discovery flow for every supported new address.
	AutoStart bool `yaml:"auto_start"`
}

// IntegrationConfig declares a device class that can be set up through
// Bluetooth discovery.
type IntegrationConfig struct {
	Domain           string   `yaml:"domain"`
	Name             string   `yaml:"name"`
	LocalNamePattern string   `yaml:"local_name_pattern"`
	ManufacturerIDs  []uint16 `yaml:"manufacturer_ids"`
	ServiceUUIDs     []string `yaml:"service_uuids"`
	TitleTemplate    string   `yaml:"title_template"`
	Disabled         bool     `yaml:"disabled"`
}

// SecurityConfig contains security settings.
type SecurityConfig struct {
	JWT   JWTConfig   `yaml:"jwt"`
	Admin AdminConfig `yaml:"admin"`
}

// JWTConfig contains JWT token settings.
type JWTConfig struct {
	Secret         string `yaml:"secret"`
	AccessTokenTTL int    `yaml:"access_token_ttl"` // minutes
	WSTicketTTL    int    `yaml:"ws_ticket_ttl"`    // seconds
}

// AdminConfig holds the single operator account allowed to drive flows.
// PasswordHash is an argon2id PHC string (see "bleflow hash-password").
type AdminConfig struct {
	Username     string `yaml:"username"`
	PasswordHash string `yaml:"password_hash"`
}

// MDNSConfig controls DNS-SD advertisement of the API on the local network.
type MDNSConfig struct {
	Enabled  bool   `yaml:"enabled"`
	Instance string `yaml:"instance"`
	Service  string `yaml:"service"`
	Domain   string `yaml:"domain"`

	// Interface restricts advertising to one network interface; empty means all.
	Interface string `yaml:"interface"`
}

// Load reads configuration from a YAML file and applies environment variable overrides.
//
// The configuration loading order is:
//  1. Default values (hardcoded)
//  2. YAML file values (override defaults)
//  3. A .env file, if present (never overrides the real environment)
//  4. Environment variables (override file values)
//
// Environment variables follow the pattern: BLEFLOW_SECTION_KEY
// For example: BLEFLOW_DATABASE_PATH, BLEFLOW_API_PORT
//
// Parameters:
//   - path: Path to the YAML configuration file
//
// Returns:
//   - *Config: Loaded and validated configuration
//   - error: If file cannot be read, parsed, or validation fails
func Load(path string) (*Config, error) {
	cfg := defaultConfig()

	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("reading config file: %w", err)
	}

	if err := yaml.Unmarshal(data, cfg); err != nil {
		return nil, fmt.Errorf("parsing config file: %w", err)
	}

	if err := loadDotEnv(os.Getenv("BLEFLOW_ENV_FILE")); err != nil {
		return nil, err
	}

	applyEnvOverrides(cfg)

	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("validating config: %w", err)
	}

	return cfg, nil
}

// loadDotEnv loads KEY=value pairs into the process environment.
// An empty path means ".env" in the working directory, which may be absent.
func loadDotEnv(path string) error {
	explicit := path != ""
	if !explicit {
		path = ".env"
	}
	if err := godotenv.Load(path); err != nil {
		if !explicit && errors.Is(err, fs.ErrNotExist) {
			return nil
		}
		return fmt.Errorf("loading env file %s: %w", path, err)
	}
	return nil
}

// defaultConfig returns a Config with sensible defaults.
func defaultConfig() *Config {
	return &Config{
		Site: SiteConfig{
			ID:   "site-001",
			Name: "bleflow",
		},
		Database: DatabaseConfig{
			Path:        "./data/bleflow.db",
			WALMode:     true,
			BusyTimeout: 5,
		},
		MQTT: MQTTConfig{
			Broker: MQTTBrokerConfig{
				Host:     "localhost",
				Port:     1883,
				ClientID: "bleflow",
			},
			QoS: 1,
			Reconnect: MQTTReconnectConfig{
				InitialDelay: 1,
				MaxDelay:     60,
				MaxAttempts:  0,
			},
		},
		API: APIConfig{
			Host: "0.0.0.0",
			Port: 8080,
			Timeouts: APITimeoutConfig{
				Read:  30,
				Write: 30,
				Idle:  60,
			},
		},
		WebSocket: WebSocketConfig{
			Path:           "/ws",
			MaxMessageSize: 8192,
			PingInterval:   30,
			PongTimeout:    10,
		},
		Logging: LoggingConfig{
			Level:  "info",
			Format: "json",
			Output: "stdout",
		},
		Discovery: DiscoveryConfig{
			Topic:         "bleflow/ble/+/advertisement",
			StaleAfter:    300,
			SweepInterval: 30,
			AutoStart:     true,
		},
		Security: SecurityConfig{
			JWT: JWTConfig{
				AccessTokenTTL: 15,
				WSTicketTTL:    60,
			},
			Admin: AdminConfig{
				Username: "admin",
			},
		},
		MDNS: MDNSConfig{
			Instance: "bleflow",
			Service:  "_bleflow._tcp",
			Domain:   "local.",
		},
	}
}

// applyEnvOverrides applies environment variable overrides to the configuration.
// Environment variables follow the pattern: BLEFLOW_SECTION_KEY
func applyEnvOverrides(cfg *Config) {
	// Database
	if v := os.Getenv("BLEFLOW_DATABASE_PATH"); v != "" {
		cfg.Database.Path = v
	}

	// MQTT
	if v := os.Getenv("BLEFLOW_MQTT_HOST"); v != "" {
		cfg.MQTT.Broker.Host = v
	}
	if v := os.Getenv("BLEFLOW_MQTT_PORT"); v != "" {
		if port, err := strconv.Atoi(v); err == nil {
			cfg.MQTT.Broker.Port = port
		}
	}
	if v := os.Getenv("BLEFLOW_MQTT_USERNAME"); v != "" {
		cfg.MQTT.Auth.Username = v
	}
	if v := os.Getenv("BLEFLOW_MQTT_PASSWORD"); v != "" {
		cfg.MQTT.Auth.Password = v
	}

	// API
	if v := os.Getenv("BLEFLOW_API_HOST"); v != "" {
		cfg.API.Host = v
	}
	if v := os.Getenv("BLEFLOW_API_PORT"); v != "" {
		if port, err := strconv.Atoi(v); err == nil {
			cfg.API.Port = port
		}
	}

	// InfluxDB
	if v := os.Getenv("BLEFLOW_INFLUXDB_TOKEN"); v != "" {
		cfg.InfluxDB.Token = v
	}

	// Logging
	if v := os.Getenv("BLEFLOW_LOG_LEVEL"); v != "" {
		cfg.Logging.Level = v
	}

	// Security
	if v := os.Getenv("BLEFLOW_JWT_SECRET"); v != "" {
		cfg.Security.JWT.Secret = v
	}
	if v := os.Getenv("BLEFLOW_ADMIN_PASSWORD_HASH"); v != "" {
		cfg.Security.Admin.PasswordHash = v
	}
}

// Validate checks the configuration for errors and security issues.
//
// Returns:
//   - error: Description of validation failure, or nil if valid
func (c *Config) Validate() error {
	var errs []string

	if c.Site.ID == "" {
		errs = append(errs, "site.id is required")
	}

	if c.Database.Path == "" {
		errs = append(errs, "database.path is required")
	}

	if c.MQTT.QoS < 0 || c.MQTT.QoS > 2 {
		errs = append(errs, "mqtt.qos must be 0, 1, or 2")
	}

	if c.API.Port < 1 || c.API.Port > 65535 {
		errs = append(errs, "api.port must be between 1 and 65535")
	}

	if c.Discovery.StaleAfter < 0 {
		errs = append(errs, "discovery.stale_after must not be negative")
	}

	seen := make(map[string]bool, len(c.Integrations))
	for i, integ := range c.Integrations {
		if integ.Domain == "" {
			errs = append(errs, fmt.Sprintf("integrations[%d].domain is required", i))
			continue
		}
		if seen[integ.Domain] {
			errs = append(errs, fmt.Sprintf("integrations[%d].domain %q is duplicated", i, integ.Domain))
		}
		seen[integ.Domain] = true
		if !integ.Disabled && integ.LocalNamePattern == "" && len(integ.ManufacturerIDs) == 0 && len(integ.ServiceUUIDs) == 0 {
			errs = append(errs, fmt.Sprintf("integrations[%d] needs a local_name_pattern, manufacturer_ids or service_uuids", i))
		}
	}

	// A forged token would let anyone create or remove config entries.
	const minJWTSecretLength = 32
	if c.Security.JWT.Secret == "" {
		errs = append(errs, "security.jwt.secret is required (set BLEFLOW_JWT_SECRET environment variable)")
	} else if len(c.Security.JWT.Secret) < minJWTSecretLength {
		errs = append(errs, "security.jwt.secret must be at least 32 characters for adequate security")
	}

	if c.MDNS.Enabled && c.MDNS.Service == "" {
		errs = append(errs, "mdns.service is required when mdns is enabled")
	}

	if len(errs) > 0 {
		return fmt.Errorf("configuration errors: %s", strings.Join(errs, "; "))
	}

	return nil
}

// GetReadTimeout returns the API read timeout as a Duration.
func (c *Config) GetReadTimeout() time.Duration {
	return time.Duration(c.API.Timeouts.Read) * time.Second
}

// GetWriteTimeout returns the API write timeout as a Duration.
func (c *Config) GetWriteTimeout() time.Duration {
	return time.Duration(c.API.Timeouts.Write) * time.Second
}

// GetIdleTimeout returns the API idle timeout as a Duration.
func (c *Config) GetIdleTimeout() time.Duration {
	return time.Duration(c.API.Timeouts.Idle) * time.Second
}

// GetStaleAfter returns how long an unseen address stays discoverable.
func (c *Config) GetStaleAfter() time.Duration {
	return time.Duration(c.Discovery.StaleAfter) * time.Second
}

// GetSweepInterval returns the discovery cache eviction period.
func (c *Config) GetSweepInterval() time.Duration {
	return time.Duration(c.Discovery.SweepInterval) * time.Second
}

// GetAccessTokenTTL returns the JWT access token lifetime.
func (c *Config) GetAccessTokenTTL() time.Duration {
	return time.Duration(c.Security.JWT.AccessTokenTTL) * time.Minute
}

// GetWSTicketTTL returns the WebSocket ticket lifetime.
func (c *Config) GetWSTicketTTL() time.Duration {
	return time.Duration(c.Security.JWT.WSTicketTTL) * time.Second
}

// Masked returns a copy of the configuration with secrets replaced, suitable
// for printing.
func (c *Config) Masked() Config {
	out := *c
	out.MQTT.Auth.Password = mask(out.MQTT.Auth.Password)
	out.InfluxDB.Token = mask(out.InfluxDB.Token)
	out.Security.JWT.Secret = mask(out.Security.JWT.Secret)
	out.Security.Admin.PasswordHash = mask(out.Security.Admin.PasswordHash)
	out.Integrations = append([]IntegrationConfig(nil), c.Integrations...)
	return out
}

func mask(s string) string {
	if s == "" {
		return ""
	}
	return "********"
}
