package sse

// Config holds parser settings.
type Config struct {
	// MaxLineBytes caps a single SSE line. A longer line ends the stream
	// with an error.
	MaxLineBytes int `mapstructure:"max_line_bytes"`
}

// DefaultConfig returns sensible defaults for chat-completions streams.
func DefaultConfig() Config {
	return Config{
		MaxLineBytes: 4 << 20,
	}
}
