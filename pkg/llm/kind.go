package llm

import (
	"fmt"
	"strings"
)

// Kind identifies a provider's vendor conventions (default URL, API key rule,
// URL normalization). It is a closed set; unknown strings fail ParseKind.
type Kind string

// Supported provider kinds.
const (
	KindOpenAICompatible Kind = "OPENAI_COMPATIBLE"
	KindDeepSeek         Kind = "DEEPSEEK"
	KindOllama           Kind = "OLLAMA"
	KindCustom           Kind = "CUSTOM"
)

// deepSeekHost is the DeepSeek API domain; only URLs on this host get the
// v1/ path segment appended during normalization.
const deepSeekHost = "api.deepseek.com"

// Kinds returns every supported kind in display order.
func Kinds() []Kind {
	return []Kind{KindOpenAICompatible, KindDeepSeek, KindOllama, KindCustom}
}

// ParseKind converts a stored or user-supplied string into a Kind.
// Matching is case-insensitive; "openai" is accepted as an alias for
// OPENAI_COMPATIBLE since older configs used that name.
func ParseKind(s string) (Kind, error) {
	switch strings.ToUpper(strings.TrimSpace(s)) {
	case "OPENAI_COMPATIBLE", "OPENAI":
		return KindOpenAICompatible, nil
	case "DEEPSEEK":
		return KindDeepSeek, nil
	case "OLLAMA":
		return KindOllama, nil
	case "CUSTOM":
		return KindCustom, nil
	default:
		return "", fmt.Errorf("unknown provider kind %q", s)
	}
}

func (k Kind) String() string { return string(k) }

// Valid reports whether k is one of the supported kinds.
func (k Kind) Valid() bool {
	switch k {
	case KindOpenAICompatible, KindDeepSeek, KindOllama, KindCustom:
		return true
	}
	return false
}

// RequiresAPIKey reports whether requests for this kind need a bearer token.
// Ollama serves unauthenticated on the local network.
func (k Kind) RequiresAPIKey() bool {
	return k != KindOllama
}

// DefaultBaseURL returns the suggested base URL for a new provider of this
// kind, or "" when the kind has no canonical endpoint.
func (k Kind) DefaultBaseURL() string {
	switch k {
	case KindOpenAICompatible:
		return "https://api.openai.com/v1/"
	case KindDeepSeek:
		return "https://api.deepseek.com/v1/"
	case KindOllama:
		return "http://localhost:11434/v1/"
	default:
		return ""
	}
}

// KnownHost returns the vendor host whose URLs get kind-specific path
// normalization, or "" if the kind has none.
func (k Kind) KnownHost() string {
	if k == KindDeepSeek {
		return deepSeekHost
	}
	return ""
}

// DisplayName is a human-readable label for UI lists and log messages.
func (k Kind) DisplayName() string {
	switch k {
	case KindOpenAICompatible:
		return "OpenAI compatible"
	case KindDeepSeek:
		return "DeepSeek"
	case KindOllama:
		return "Ollama"
	case KindCustom:
		return "Custom"
	default:
		return string(k)
	}
}
