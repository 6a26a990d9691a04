package transport

import "time"

// Config holds the HTTP transport settings.
type Config struct {
	ConnectTimeout time.Duration `mapstructure:"connect_timeout"`
	WriteTimeout   time.Duration `mapstructure:"write_timeout"`
	// ReadTimeout bounds the wait for response headers and every idle gap
	// between body reads. Streams may pause between chunks, so keep it long.
	ReadTimeout  time.Duration `mapstructure:"read_timeout"`
	MaxErrorBody int64         `mapstructure:"max_error_body"`

	// DiagnoseOllama probes the Ollama host after a connection failure and
	// appends the findings to the error guidance.
	DiagnoseOllama  bool          `mapstructure:"diagnose_ollama"`
	DiagnoseTimeout time.Duration `mapstructure:"diagnose_timeout"`
}

// DefaultConfig returns sensible defaults for streaming chat completions.
func DefaultConfig() Config {
	return Config{
		ConnectTimeout:  30 * time.Second,
		WriteTimeout:    30 * time.Second,
		ReadTimeout:     60 * time.Second,
		MaxErrorBody:    1 << 16,
		DiagnoseOllama:  true,
		DiagnoseTimeout: 3 * time.Second,
	}
}
