package config

import "time"

// Config holds both the backend server and the chat client settings.
type Config struct {
	Log    LogConfig    `mapstructure:"log" yaml:"log"`
	Server ServerConfig `mapstructure:"server" yaml:"server"`
	Client ClientConfig `mapstructure:"client" yaml:"client"`
}

// LogConfig controls logger construction.
type LogConfig struct {
	Level string `mapstructure:"level" yaml:"level"`
	// File is where the chat client writes its log; the terminal belongs to the UI.
	File string `mapstructure:"file" yaml:"file"`
}

// ServerConfig holds realtime backend server values.
type ServerConfig struct {
	Addr              string        `mapstructure:"addr" yaml:"addr"`
	ReadHeaderTimeout time.Duration `mapstructure:"read_header_timeout" yaml:"read_header_timeout"`
	ShutdownTimeout   time.Duration `mapstructure:"shutdown_timeout" yaml:"shutdown_timeout"`
	DatabasePath      string        `mapstructure:"database_path" yaml:"database_path"`
	JWTSecret         string        `mapstructure:"jwt_secret" yaml:"jwt_secret"`
	JWTIssuer         string        `mapstructure:"jwt_issuer" yaml:"jwt_issuer"`
	JWTAudience       string        `mapstructure:"jwt_audience" yaml:"jwt_audience"`
	AccessTokenTTL    time.Duration `mapstructure:"access_token_ttl" yaml:"access_token_ttl"`
	RefreshTokenTTL   time.Duration `mapstructure:"refresh_token_ttl" yaml:"refresh_token_ttl"`
	MaxMessageBytes   int64         `mapstructure:"max_message_bytes" yaml:"max_message_bytes"`
	// MessagesPerMinute limits broadcasts per connection; zero disables the limit.
	MessagesPerMinute int `mapstructure:"messages_per_minute" yaml:"messages_per_minute"`
}

// ClientConfig holds chat client values.
type ClientConfig struct {
	BackendURL  string        `mapstructure:"backend_url" yaml:"backend_url"`
	Room        string        `mapstructure:"room" yaml:"room"`
	SessionPath string        `mapstructure:"session_path" yaml:"session_path"`
	JoinTimeout time.Duration `mapstructure:"join_timeout" yaml:"join_timeout"`
}

// Default returns configuration with reasonable starter defaults.
func Default() Config {
	return Config{
		Log: LogConfig{
			Level: "info",
			File:  "ephemeral-chat.log",
		},
		Server: ServerConfig{
			Addr:              ":8080",
			ReadHeaderTimeout: 5 * time.Second,
			ShutdownTimeout:   5 * time.Second,
			DatabasePath:      "ephemeral-chat.db",
			JWTSecret:         "change-me",
			JWTIssuer:         "ephemeral-chat",
			JWTAudience:       "authenticated",
			AccessTokenTTL:    time.Hour,
			RefreshTokenTTL:   30 * 24 * time.Hour,
			MaxMessageBytes:   64 << 10,
			MessagesPerMinute: 120,
		},
		Client: ClientConfig{
			BackendURL:  "http://localhost:8080",
			Room:        "room_one",
			SessionPath: ".ephemeral-chat/session.yaml",
			JoinTimeout: 10 * time.Second,
		},
	}
}

// UpdateFrom overwrites non-zero values from other config into receiver.
func (c *Config) UpdateFrom(other Config) {
	if other.Log.Level != "" {
		c.Log.Level = other.Log.Level
	}
	if other.Log.File != "" {
		c.Log.File = other.Log.File
	}
	if other.Server.Addr != "" {
		c.Server.Addr = other.Server.Addr
	}
	if other.Server.ReadHeaderTimeout != 0 {
		c.Server.ReadHeaderTimeout = other.Server.ReadHeaderTimeout
	}
	if other.Server.ShutdownTimeout != 0 {
		c.Server.ShutdownTimeout = other.Server.ShutdownTimeout
	}
	if other.Server.DatabasePath != "" {
		c.Server.DatabasePath = other.Server.DatabasePath
	}
	if other.Server.JWTSecret != "" {
		c.Server.JWTSecret = other.Server.JWTSecret
	}
	if other.Client.BackendURL != "" {
		c.Client.BackendURL = other.Client.BackendURL
	}
	if other.Client.Room != "" {
		c.Client.Room = other.Client.Room
	}
	if other.Client.SessionPath != "" {
		c.Client.SessionPath = other.Client.SessionPath
	}
}
