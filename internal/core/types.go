package core

// Config represents the complete botsocket configuration structure
type Config struct {
	TokenFile string         `yaml:"token_file"`
	Device    DeviceConfig   `yaml:"device"`
	Dispatch  DispatchConfig `yaml:"dispatch"`
	Socket    SocketConfig   `yaml:"socket"`
	Tunnel    TunnelConfig   `yaml:"tunnel"`
	Logging   LoggingConfig  `yaml:"logging"`
}

// DeviceConfig represents the device registration settings
type DeviceConfig struct {
	Name string `yaml:"name"` // logical device name on the platform
	// ForceRecreate deletes any existing matching registration and issues
	// a fresh device on every start instead of reusing it
	ForceRecreate bool `yaml:"force_recreate"`
}

// DispatchConfig represents the command dispatcher settings
type DispatchConfig struct {
	Workers        int    `yaml:"workers"`         // worker pool size (default: 4)
	DefaultCommand string `yaml:"default_command"` // command run when no token matches; empty disables fallback
}

// SocketConfig represents the reconnect behavior of the notification listener
type SocketConfig struct {
	BackoffInitial string `yaml:"backoff_initial"` // first reconnect delay (e.g., "1s")
	BackoffMax     string `yaml:"backoff_max"`     // reconnect delay cap (e.g., "60s")
}

// TunnelConfig represents the optional ngrok tunnel helper settings
type TunnelConfig struct {
	Enabled bool `yaml:"enabled"`
	Port    int  `yaml:"port"` // local port exposed through the tunnel
}

// LoggingConfig represents logging configuration
type LoggingConfig struct {
	Level        string `yaml:"level"`         // debug, info, warn, error
	File         string `yaml:"file"`          // Log file path
	MaxSize      int    `yaml:"max_size"`      // Single file max size in MB (default: 100)
	MaxBackups   int    `yaml:"max_backups"`   // Number of backups to keep (default: 5)
	MaxAge       int    `yaml:"max_age"`       // Maximum days to retain (default: 30)
	Compress     bool   `yaml:"compress"`      // Whether to compress old logs (default: true)
	EnableStdout bool   `yaml:"enable_stdout"` // Also output to stdout (default: true)
}
