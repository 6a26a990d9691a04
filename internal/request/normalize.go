// Package request turns a resolved provider configuration and a rendered
// prompt into a chat-completions request: URL normalization, custom
// parameter parsing and body assembly.
package request

import (
	"net/url"
	"strings"

	"github.com/HerbHall/textlens/pkg/llm"
)

const (
	completionsSuffix = "/chat/completions"
	versionSegment    = "/v1/"
)

// NormalizeBaseURL cleans a user-entered base URL so that appending
// llm.ChatCompletionsPath yields the endpoint. It strips a pasted
// "/chat/completions" and anything after it, collapses trailing slashes to
// exactly one, and for kinds with a known host appends "v1/" when the URL
// points at that host without a version segment.
//
// NormalizeBaseURL(NormalizeBaseURL(u, k), k) == NormalizeBaseURL(u, k).
func NormalizeBaseURL(raw string, kind llm.Kind) string {
	u := strings.TrimSpace(raw)
	if i := strings.Index(u, completionsSuffix); i >= 0 {
		u = u[:i]
	}
	u = strings.TrimRight(u, "/")
	if u == "" {
		return ""
	}
	u += "/"

	if host := kind.KnownHost(); host != "" && !strings.Contains(u, versionSegment) && hostIs(u, host) {
		u += "v1/"
	}
	return u
}

// hostIs reports whether raw parses as a URL whose host is host. Schemeless
// input such as "api.deepseek.com/" is matched on its first path segment.
func hostIs(raw, host string) bool {
	parsed, err := url.Parse(raw)
	if err == nil && parsed.Host != "" {
		return strings.EqualFold(parsed.Hostname(), host)
	}
	first, _, _ := strings.Cut(raw, "/")
	return strings.EqualFold(first, host)
}
