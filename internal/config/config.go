// Package config provides configuration management for the webhook service.
// It loads settings from environment variables with sensible defaults,
// optionally overlays a YAML file, and validates the result before the
// service starts.
//
// Environment Variables:
//
// Application Settings:
//   - PORT: Server port (default: 8080)
//   - LOG_LEVEL: Logging level (default: info)
//   - LOG_JSON: Emit JSON log lines (default: false)
//   - CONFIG_FILE: Optional YAML file applied on top of the environment
//   - TLS_CERT_FILE, TLS_KEY_FILE: Serve HTTPS when both are set
//
// Webhook Verification:
//   - TELNYX_PUBLIC_KEY: Base64 Ed25519 public key used when a call does not supply one
//   - WEBHOOK_TOLERANCE_SECONDS: Allowed clock distance for signed timestamps, at least 1 (default: 300)
//   - WEBHOOK_MAX_BODY_BYTES: Largest accepted webhook body (default: 1048576)
//   - WEBHOOK_PATH: Route the receiver listens on (default: /webhooks)
//
// Replay Protection:
//   - REPLAY_PROTECTION_ENABLED: Reject repeated deliveries (default: false)
//   - REPLAY_BACKEND: "local" or "redis" (default: local)
//
// Redis Configuration (replay backend "redis"):
//   - REDIS_ADDRESS: Redis server address (default: localhost:6379)
//   - REDIS_PASSWORD: Redis password
//   - REDIS_DB: Redis database number 0-15 (default: 0)
//   - REDIS_POOL_SIZE: Redis connection pool size (default: 10)
//
// Example usage:
//
//	cfg, err := config.Load()
//	if err != nil {
//		log.Fatal(err)
//	}
//	if err := cfg.Validate(); err != nil {
//		log.Fatalf("Invalid configuration: %v", err)
//	}
package config

import (
	"fmt"
	"os"
	"strconv"
	"time"

	"gopkg.in/yaml.v3"

	"telnyx-webhooks/internal/signature"
)

// Config holds all configuration values for the webhook service.
type Config struct {
	// Application settings
	Port     string `yaml:"port"`
	LogLevel string `yaml:"log_level"`
	LogJSON  bool   `yaml:"log_json"`
	TLSCert  string `yaml:"tls_cert_file"`
	TLSKey   string `yaml:"tls_key_file"`

	// Webhook verification
	PublicKey        string `yaml:"public_key"`
	ToleranceSeconds int64  `yaml:"tolerance_seconds"`
	MaxBodyBytes     int64  `yaml:"max_body_bytes"`
	WebhookPath      string `yaml:"webhook_path"`

	// Replay protection
	ReplayEnabled bool   `yaml:"replay_enabled"`
	ReplayBackend string `yaml:"replay_backend"`

	// Redis configuration for the replay backend
	RedisAddress  string `yaml:"redis_address"`
	RedisPassword string `yaml:"redis_password"`
	RedisDB       int    `yaml:"redis_db"`
	RedisPoolSize int    `yaml:"redis_pool_size"`
}

// Load creates a Config from environment variables and, when CONFIG_FILE is
// set, overlays the values found in that YAML file. It does not validate.
func Load() (*Config, error) {
	cfg := FromEnv()

	if path := os.Getenv("CONFIG_FILE"); path != "" {
		if err := cfg.ApplyFile(path); err != nil {
			return nil, err
		}
	}

	return cfg, nil
}

// FromEnv reads the environment only
func FromEnv() *Config {
	return &Config{
		Port:     getEnv("PORT", "8080"),
		LogLevel: getEnv("LOG_LEVEL", "info"),
		LogJSON:  getBoolEnv("LOG_JSON", false),
		TLSCert:  getEnv("TLS_CERT_FILE", ""),
		TLSKey:   getEnv("TLS_KEY_FILE", ""),

		PublicKey:        getEnv("TELNYX_PUBLIC_KEY", ""),
		ToleranceSeconds: getInt64Env("WEBHOOK_TOLERANCE_SECONDS", 300),
		MaxBodyBytes:     getInt64Env("WEBHOOK_MAX_BODY_BYTES", 1<<20),
		WebhookPath:      getEnv("WEBHOOK_PATH", "/webhooks"),

		ReplayEnabled: getBoolEnv("REPLAY_PROTECTION_ENABLED", false),
		ReplayBackend: getEnv("REPLAY_BACKEND", "local"),

		RedisAddress:  getEnv("REDIS_ADDRESS", "localhost:6379"),
		RedisPassword: getEnv("REDIS_PASSWORD", ""),
		RedisDB:       int(getInt64Env("REDIS_DB", 0)),
		RedisPoolSize: int(getInt64Env("REDIS_POOL_SIZE", 10)),
	}
}

// ApplyFile overlays the YAML document at path. Keys absent from the file
// keep their current values.
func (c *Config) ApplyFile(path string) error {
	data, err := os.ReadFile(path)
	if err != nil {
		return fmt.Errorf("failed to read config file %s: %w", path, err)
	}

	if err := yaml.Unmarshal(data, c); err != nil {
		return fmt.Errorf("failed to parse config file %s: %w", path, err)
	}

	return nil
}

// Signature returns the verification settings. The returned value is a copy
// and safe to hand to signature.NewVerifier.
func (c *Config) Signature() signature.Config {
	cfg := signature.Config{
		PublicKey: c.PublicKey,
		Tolerance: signature.ToleranceSeconds(c.ToleranceSeconds),
	}
	cfg.SetDefaults()
	return cfg
}

// Tolerance returns the configured tolerance window
func (c *Config) Tolerance() time.Duration {
	return signature.ToleranceSeconds(c.ToleranceSeconds)
}

// getEnv retrieves an environment variable value or returns a default value if not set.
func getEnv(key, defaultValue string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return defaultValue
}

// getBoolEnv retrieves a boolean environment variable value or returns a default value.
// Unparseable values fall back to the default.
func getBoolEnv(key string, defaultValue bool) bool {
	if value := os.Getenv(key); value != "" {
		if parsed, err := strconv.ParseBool(value); err == nil {
			return parsed
		}
	}
	return defaultValue
}

// getInt64Env retrieves an integer environment variable value or returns a default value.
// Unparseable values are kept as -1 so Validate reports them.
func getInt64Env(key string, defaultValue int64) int64 {
	value := os.Getenv(key)
	if value == "" {
		return defaultValue
	}
	parsed, err := strconv.ParseInt(value, 10, 64)
	if err != nil {
		return -1
	}
	return parsed
}

// Validate performs validation on the configuration to ensure all values are
// usable before the service starts.
func (c *Config) Validate() error {
	if port, err := strconv.Atoi(c.Port); err != nil || port < 1 || port > 65535 {
		return fmt.Errorf("PORT must be a valid port number between 1 and 65535")
	}

	if (c.TLSCert == "") != (c.TLSKey == "") {
		return fmt.Errorf("TLS_CERT_FILE and TLS_KEY_FILE must be set together")
	}

	if c.ToleranceSeconds < 1 {
		return fmt.Errorf("WEBHOOK_TOLERANCE_SECONDS must be a positive integer")
	}

	if c.MaxBodyBytes < 1 {
		return fmt.Errorf("WEBHOOK_MAX_BODY_BYTES must be a positive integer")
	}

	if c.WebhookPath == "" || c.WebhookPath[0] != '/' {
		return fmt.Errorf("WEBHOOK_PATH must start with '/'")
	}

	sigCfg := c.Signature()
	if err := sigCfg.Validate(); err != nil {
		return fmt.Errorf("TELNYX_PUBLIC_KEY is invalid: %w", err)
	}

	if c.ReplayEnabled {
		switch c.ReplayBackend {
		case "local":
		case "redis":
			if c.RedisAddress == "" {
				return fmt.Errorf("REDIS_ADDRESS is required when REPLAY_BACKEND is redis")
			}
			if c.RedisDB < 0 || c.RedisDB > 15 {
				return fmt.Errorf("REDIS_DB must be a number between 0 and 15")
			}
			if c.RedisPoolSize < 1 {
				return fmt.Errorf("REDIS_POOL_SIZE must be a positive number")
			}
		default:
			return fmt.Errorf("REPLAY_BACKEND must be 'local' or 'redis'")
		}
	}

	return nil
}
