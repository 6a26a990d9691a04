package llm

import (
	"context"
	"errors"
	"fmt"
	"strings"
)

// Error code constants classify APIError responses so callers can react
// without parsing status codes or vendor bodies.
const (
	ErrCodeAuthentication = "authentication_error"
	ErrCodeRateLimit      = "rate_limit_exceeded"
	ErrCodeModelNotFound  = "model_not_found"
	ErrCodeInvalidRequest = "invalid_request"
	ErrCodeContextLength  = "context_length_exceeded"
	ErrCodeServerError    = "server_error"
)

// ConfigurationError reports a missing or unusable provider configuration
// or template. Field names the offending setting when one is known.
type ConfigurationError struct {
	Field   string // "base_url", "model", "api_key", "template", or "" for none found.
	Message string
}

func (e *ConfigurationError) Error() string {
	return "configuration error: " + e.Message
}

// NewConfigurationError creates a ConfigurationError for the given field.
func NewConfigurationError(field, message string) *ConfigurationError {
	return &ConfigurationError{Field: field, Message: message}
}

// NetworkError reports a connection-level failure (DNS, refused, TLS,
// timeout). Kind lets the UI show vendor-specific guidance; Hint holds that
// guidance when the transport produced any.
type NetworkError struct {
	Kind Kind
	Hint string
	Err  error
}

func (e *NetworkError) Error() string {
	return fmt.Sprintf("network error (%s): %v", e.Kind.DisplayName(), e.Err)
}

func (e *NetworkError) Unwrap() error {
	return e.Err
}

// APIError reports a non-2xx HTTP response. Body is truncated by the
// transport before it gets here.
type APIError struct {
	StatusCode int
	Body       string
	Code       string // One of the ErrCode* constants.
}

func (e *APIError) Error() string {
	body := e.Body
	if body == "" {
		body = "empty response body"
	}
	return fmt.Sprintf("api error: %d - %s", e.StatusCode, body)
}

// NewAPIError creates an APIError and classifies it from status and body.
func NewAPIError(status int, body string) *APIError {
	return &APIError{StatusCode: status, Body: body, Code: classifyStatus(status, body)}
}

// ParseError reports a single undecodable SSE data line. The parser logs
// and skips these; they never reach the state machine.
type ParseError struct {
	Line    int
	Payload string
	Err     error
}

func (e *ParseError) Error() string {
	return fmt.Sprintf("parse sse line %d: %v", e.Line, e.Err)
}

func (e *ParseError) Unwrap() error {
	return e.Err
}

func classifyStatus(status int, body string) string {
	lower := strings.ToLower(body)
	switch {
	case status == 401 || status == 403:
		return ErrCodeAuthentication
	case status == 429:
		return ErrCodeRateLimit
	case status == 404 && strings.Contains(lower, "model"):
		return ErrCodeModelNotFound
	case strings.Contains(lower, "context_length_exceeded") ||
		strings.Contains(lower, "context length"):
		return ErrCodeContextLength
	case status >= 500:
		return ErrCodeServerError
	default:
		return ErrCodeInvalidRequest
	}
}

// IsConfigurationError reports whether err is a ConfigurationError.
func IsConfigurationError(err error) bool {
	var ce *ConfigurationError
	return errors.As(err, &ce)
}

// IsNetworkError reports whether err is a NetworkError.
func IsNetworkError(err error) bool {
	var ne *NetworkError
	return errors.As(err, &ne)
}

// IsAPIError reports whether err is an APIError.
func IsAPIError(err error) bool {
	var ae *APIError
	return errors.As(err, &ae)
}

// IsAuthenticationError reports whether err is an authentication failure.
func IsAuthenticationError(err error) bool {
	return hasCode(err, ErrCodeAuthentication)
}

// IsRateLimitError reports whether err is a rate-limit error.
func IsRateLimitError(err error) bool {
	return hasCode(err, ErrCodeRateLimit)
}

// IsServerError reports whether err is a provider-side server error.
func IsServerError(err error) bool {
	return hasCode(err, ErrCodeServerError)
}

// IsCanceled reports whether err is a deliberate cancellation rather than
// a failure. Cancellation is never surfaced as an Error state.
func IsCanceled(err error) bool {
	return errors.Is(err, context.Canceled)
}

// IsRetryable reports whether the error is transient and a user-initiated
// retry may succeed. Nothing retries automatically.
func IsRetryable(err error) bool {
	return IsNetworkError(err) || IsRateLimitError(err) || IsServerError(err)
}

// KindOf returns a short label for telemetry: "configuration", "network",
// "api", or "internal".
func KindOf(err error) string {
	switch {
	case IsConfigurationError(err):
		return "configuration"
	case IsNetworkError(err):
		return "network"
	case IsAPIError(err):
		return "api"
	default:
		return "internal"
	}
}

// UserMessage renders err as the human-readable text shown in the Error
// state. All error kinds collapse into this one string.
func UserMessage(err error) string {
	if err == nil {
		return ""
	}

	var ce *ConfigurationError
	if errors.As(err, &ce) {
		return "Configuration error: " + ce.Message
	}

	var ne *NetworkError
	if errors.As(err, &ne) {
		msg := "Network error: " + ne.Err.Error()
		if ne.Kind == KindOllama {
			msg = "Ollama connection failed: " + ne.Err.Error()
		}
		if ne.Hint != "" {
			msg += "\n\n" + ne.Hint
		}
		return msg
	}

	var ae *APIError
	if errors.As(err, &ae) {
		body := ae.Body
		if body == "" {
			body = "unknown error"
		}
		return fmt.Sprintf("API request failed: %d - %s", ae.StatusCode, body)
	}

	return "Processing failed: " + err.Error()
}

func hasCode(err error, code string) bool {
	var ae *APIError
	return errors.As(err, &ae) && ae.Code == code
}
