package server

import (
	"errors"
	"fmt"
	"strings"

	"github.com/spf13/viper"
)

// Config holds the server configuration.
type Config struct {
	Host string `mapstructure:"host"`
	Port int    `mapstructure:"port"`
	// AllowRemote lets non-loopback clients reach the API. The API can
	// read and change stored API keys, so it is off by default.
	AllowRemote    bool     `mapstructure:"allow_remote"`
	OriginPatterns []string `mapstructure:"origin_patterns"`
	DevMode        bool     `mapstructure:"dev_mode"`
}

// Addr returns the listen address as host:port.
func (c *Config) Addr() string {
	return fmt.Sprintf("%s:%d", c.Host, c.Port)
}

// RateLimitConfig bounds how fast one client may start processing runs.
type RateLimitConfig struct {
	RPS   float64 `mapstructure:"rps"`
	Burst int     `mapstructure:"burst"`
}

// LoadConfig reads configuration from file and environment variables.
func LoadConfig(configPath string) (*viper.Viper, error) {
	v := viper.New()

	// Defaults
	v.SetDefault("server.host", "127.0.0.1")
	v.SetDefault("server.port", 8787)
	v.SetDefault("server.allow_remote", false)
	v.SetDefault("server.origin_patterns", []string{"localhost:*", "127.0.0.1:*"})
	v.SetDefault("server.dev_mode", false)
	v.SetDefault("logging.level", "info")
	v.SetDefault("logging.format", "json")
	v.SetDefault("database.path", "./data/textlens.db")
	v.SetDefault("secrets.passphrase", "")
	v.SetDefault("ratelimit.rps", 5)
	v.SetDefault("ratelimit.burst", 10)
	v.SetDefault("templates.seed_presets", true)

	v.SetDefault("transport.connect_timeout", "30s")
	v.SetDefault("transport.write_timeout", "30s")
	v.SetDefault("transport.read_timeout", "60s")
	v.SetDefault("transport.max_error_body", 65536)
	v.SetDefault("transport.diagnose_ollama", true)
	v.SetDefault("transport.diagnose_timeout", "3s")
	v.SetDefault("sse.max_line_bytes", 4<<20)

	if configPath != "" {
		v.SetConfigFile(configPath)
	} else {
		v.SetConfigName("textlens")
		v.SetConfigType("yaml")
		v.AddConfigPath(".")
		v.AddConfigPath("./configs")
		v.AddConfigPath("/etc/textlens")
	}

	// Environment variable support: TL_SERVER_PORT=9090
	v.SetEnvPrefix("TL")
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	if err := v.ReadInConfig(); err != nil {
		var notFound viper.ConfigFileNotFoundError
		if !errors.As(err, &notFound) {
			return nil, fmt.Errorf("reading config: %w", err)
		}
		// Config file not found is fine -- use defaults
	}

	return v, nil
}
