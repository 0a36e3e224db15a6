// Package config loads server settings from defaults, an optional YAML
// file and the environment.
package config

import (
	"encoding/pem"
	"errors"
	"fmt"
	"os"
	"strconv"
	"strings"

	"gopkg.in/yaml.v3"
)

// Environment variables.
const (
	EnvClientEmail        = "GOOGLE_CLIENT_EMAIL"
	EnvPrivateKey         = "GOOGLE_PRIVATE_KEY"
	EnvCredentialsConfig  = "CREDENTIALS_CONFIG"
	EnvServiceAccountPath = "SERVICE_ACCOUNT_PATH"
	EnvApplicationCreds   = "GOOGLE_APPLICATION_CREDENTIALS"
	EnvPort               = "PORT"
	EnvLogLevel           = "LOG_LEVEL"
	EnvLogFormat          = "LOG_FORMAT"
)

// ConfigurationError reports missing or malformed settings. It is fatal at
// startup.
type ConfigurationError struct {
	Reason string
	Err    error
}

func (e *ConfigurationError) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("configuration error: %s: %v", e.Reason, e.Err)
	}
	return fmt.Sprintf("configuration error: %s", e.Reason)
}

func (e *ConfigurationError) Unwrap() error {
	return e.Err
}

// IsConfigurationError reports whether err is or wraps a ConfigurationError.
func IsConfigurationError(err error) bool {
	var cerr *ConfigurationError
	return errors.As(err, &cerr)
}

// Config is the complete server configuration.
type Config struct {
	Server      ServerConfig `yaml:"server"`
	Log         LogConfig    `yaml:"log"`
	Credentials Credentials  `yaml:"credentials"`
}

// ServerConfig holds transport settings.
type ServerConfig struct {
	Name string `yaml:"name"`
	Port string `yaml:"port"`
}

// LogConfig holds logger settings.
type LogConfig struct {
	Level  string `yaml:"level"`
	Format string `yaml:"format"`
}

// Credentials identifies the service account used to call the Sheets API.
// Exactly one source is used, in this order: ClientEmail and PrivateKey,
// CredentialsConfig (base64 encoded JSON key), ServiceAccountPath.
type Credentials struct {
	ClientEmail        string `yaml:"client_email"`
	PrivateKey         string `yaml:"private_key"`
	CredentialsConfig  string `yaml:"credentials_config"`
	ServiceAccountPath string `yaml:"service_account_path"`
}

// Source names the credential source that will be used.
type Source string

const (
	SourceNone           Source = ""
	SourceKeyPair        Source = "client_email+private_key"
	SourceEncodedJSON    Source = "credentials_config"
	SourceServiceAccount Source = "service_account_path"
)

// Default returns the configuration used when nothing else is set.
func Default() *Config {
	return &Config{
		Server: ServerConfig{
			Name: "google-sheets-mcp",
			Port: "3000",
		},
		Log: LogConfig{
			Level:  "info",
			Format: "text",
		},
	}
}

// Load builds the configuration from defaults, the YAML file at path (if
// not empty) and the environment, in increasing precedence.
func Load(path string) (*Config, error) {
	cfg := Default()

	if path != "" {
		data, err := os.ReadFile(path)
		if err != nil {
			return nil, &ConfigurationError{Reason: "failed to read config file", Err: err}
		}
		if err := yaml.Unmarshal(data, cfg); err != nil {
			return nil, &ConfigurationError{Reason: "failed to parse config file", Err: err}
		}
	}

	cfg.applyEnv()
	cfg.Credentials.PrivateKey = UnescapeNewlines(cfg.Credentials.PrivateKey)
	return cfg, nil
}

func (c *Config) applyEnv() {
	setFromEnv(&c.Credentials.ClientEmail, EnvClientEmail)
	setFromEnv(&c.Credentials.PrivateKey, EnvPrivateKey)
	setFromEnv(&c.Credentials.CredentialsConfig, EnvCredentialsConfig)
	if c.Credentials.ServiceAccountPath == "" {
		setFromEnv(&c.Credentials.ServiceAccountPath, EnvApplicationCreds)
	}
	setFromEnv(&c.Credentials.ServiceAccountPath, EnvServiceAccountPath)
	setFromEnv(&c.Server.Port, EnvPort)
	setFromEnv(&c.Log.Level, EnvLogLevel)
	setFromEnv(&c.Log.Format, EnvLogFormat)
}

func setFromEnv(dst *string, key string) {
	if value := os.Getenv(key); value != "" {
		*dst = value
	}
}

// UnescapeNewlines turns literal "\n" sequences, as found in private keys
// stored in single-line environment variables, into real newlines.
func UnescapeNewlines(s string) string {
	return strings.ReplaceAll(s, `\n`, "\n")
}

// Validate checks the server settings and the credentials.
func (c *Config) Validate() error {
	if _, err := strconv.ParseUint(c.Server.Port, 10, 16); err != nil {
		return &ConfigurationError{Reason: fmt.Sprintf("invalid port %q", c.Server.Port)}
	}
	switch strings.ToLower(c.Log.Format) {
	case "text", "json":
	default:
		return &ConfigurationError{Reason: fmt.Sprintf("invalid log format %q (supported: text, json)", c.Log.Format)}
	}
	return c.Credentials.Validate()
}

// Source reports which credential source is configured.
func (c Credentials) Source() Source {
	switch {
	case c.ClientEmail != "" && c.PrivateKey != "":
		return SourceKeyPair
	case c.CredentialsConfig != "":
		return SourceEncodedJSON
	case c.ServiceAccountPath != "":
		return SourceServiceAccount
	}
	return SourceNone
}

// Validate reports a ConfigurationError when no usable source is configured.
func (c Credentials) Validate() error {
	hasEmail, hasKey := c.ClientEmail != "", c.PrivateKey != ""
	if hasEmail != hasKey {
		return &ConfigurationError{Reason: fmt.Sprintf("%s and %s must be set together", EnvClientEmail, EnvPrivateKey)}
	}

	switch c.Source() {
	case SourceNone:
		return &ConfigurationError{Reason: fmt.Sprintf(
			"no service account credentials: set %s and %s, %s or %s",
			EnvClientEmail, EnvPrivateKey, EnvCredentialsConfig, EnvServiceAccountPath,
		)}
	case SourceKeyPair:
		if block, _ := pem.Decode([]byte(c.PrivateKey)); block == nil {
			return &ConfigurationError{Reason: fmt.Sprintf("%s is not a PEM encoded key", EnvPrivateKey)}
		}
	}
	return nil
}
