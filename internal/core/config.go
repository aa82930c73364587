// Package core provides configuration management for botsocket.
//
// Configuration is loaded from a YAML file with the following main sections:
//
//   - token_file: path of the file holding the bearer token
//   - device: device registration name and reconciliation policy
//   - dispatch: worker pool size and default command
//   - socket: reconnect backoff bounds
//   - tunnel: optional ngrok tunnel helper
//   - logging: log configuration
//
// # Example Configuration
//
//	token_file: bot_access_token
//	device:
//	  name: botsocket
//	dispatch:
//	  workers: 4
//	  default_command: /help
//	logging:
//	  level: info
package core

import (
	"fmt"
	"os"
	"strings"
	"time"

	"github.com/keepmind9/botsocket/pkg/constants"
	"gopkg.in/yaml.v3"
)

const (
	DefaultTokenFile       = "bot_access_token"
	DefaultDeviceName      = "botsocket"
	DefaultCommand         = "/help"
	DefaultTunnelPort      = 5000
	DefaultLogLevel        = "info"
	DefaultLogMaxBackups   = 5
	DefaultLogCompress     = true
	DefaultLogEnableStdout = true
)

// LoadConfig loads configuration from file and expands environment variables
func LoadConfig(configPath string) (*Config, error) {
	data, err := os.ReadFile(configPath)
	if err != nil {
		return nil, fmt.Errorf("failed to read config file: %w", err)
	}

	expandedData, err := expandEnv(string(data))
	if err != nil {
		return nil, fmt.Errorf("failed to expand environment variables: %w", err)
	}

	var config Config
	if err := yaml.Unmarshal([]byte(expandedData), &config); err != nil {
		return nil, fmt.Errorf("failed to parse config: %w", err)
	}

	if err := validateConfig(&config); err != nil {
		return nil, fmt.Errorf("config validation failed: %w", err)
	}

	return &config, nil
}

// expandEnv replaces ${VAR_NAME} patterns with environment variable values
func expandEnv(input string) (string, error) {
	var missingVars []string

	result := os.Expand(input, func(key string) string {
		if val := os.Getenv(key); val != "" {
			return val
		}
		missingVars = append(missingVars, key)
		return "" // Return empty string to let config parsing fail
	})

	if len(missingVars) > 0 {
		return "", fmt.Errorf("missing required environment variables: %s",
			strings.Join(missingVars, ", "))
	}

	return result, nil
}

// validateConfig performs basic validation on the configuration
func validateConfig(config *Config) error {
	if config.TokenFile == "" {
		config.TokenFile = DefaultTokenFile
	}
	if config.Device.Name == "" {
		config.Device.Name = DefaultDeviceName
	}

	if config.Dispatch.Workers == 0 {
		config.Dispatch.Workers = constants.DefaultWorkerCount
	}
	if config.Dispatch.Workers < 1 || config.Dispatch.Workers > 64 {
		return fmt.Errorf("dispatch.workers must be between 1 and 64 (got %d)", config.Dispatch.Workers)
	}

	if config.Socket.BackoffInitial == "" {
		config.Socket.BackoffInitial = constants.DefaultBackoffInitial.String()
	}
	if config.Socket.BackoffMax == "" {
		config.Socket.BackoffMax = constants.DefaultBackoffMax.String()
	}
	initial, err := time.ParseDuration(config.Socket.BackoffInitial)
	if err != nil {
		return fmt.Errorf("invalid socket.backoff_initial: %w", err)
	}
	max, err := time.ParseDuration(config.Socket.BackoffMax)
	if err != nil {
		return fmt.Errorf("invalid socket.backoff_max: %w", err)
	}
	if initial <= 0 {
		return fmt.Errorf("socket.backoff_initial must be positive (got %v)", initial)
	}
	if max < initial {
		return fmt.Errorf("socket.backoff_max must be at least socket.backoff_initial")
	}

	if config.Tunnel.Enabled && config.Tunnel.Port == 0 {
		config.Tunnel.Port = DefaultTunnelPort
	}
	if config.Tunnel.Port < 0 || config.Tunnel.Port > 65535 {
		return fmt.Errorf("tunnel.port must be a valid port number (got %d)", config.Tunnel.Port)
	}

	if config.Logging.Level == "" {
		config.Logging.Level = DefaultLogLevel
	}
	if config.Logging.MaxSize == 0 {
		config.Logging.MaxSize = constants.DefaultLogMaxSize
	}
	if config.Logging.MaxBackups == 0 {
		config.Logging.MaxBackups = DefaultLogMaxBackups
	}
	if config.Logging.MaxAge == 0 {
		config.Logging.MaxAge = constants.DefaultLogMaxAge
	}

	return nil
}

// BackoffInitialDuration returns the parsed initial reconnect delay.
// Must be called after LoadConfig validated the value.
func (c *Config) BackoffInitialDuration() time.Duration {
	d, _ := time.ParseDuration(c.Socket.BackoffInitial)
	return d
}

// BackoffMaxDuration returns the parsed reconnect delay cap.
func (c *Config) BackoffMaxDuration() time.Duration {
	d, _ := time.ParseDuration(c.Socket.BackoffMax)
	return d
}

// LoadToken reads the bearer token from the configured token file.
// Only the first line is used; surrounding whitespace is stripped.
func (c *Config) LoadToken() (string, error) {
	data, err := os.ReadFile(c.TokenFile)
	if err != nil {
		return "", fmt.Errorf("failed to read token file: %w", err)
	}
	token, _, _ := strings.Cut(string(data), "\n")
	token = strings.TrimSpace(token)
	if token == "" {
		return "", fmt.Errorf("token file %s is empty", c.TokenFile)
	}
	return token, nil
}
