package request

import (
	"math"
	"strconv"
	"strings"
)

// ParseCustomParameters parses free-form "key:value" lines into typed values.
// Blank lines and lines starting with '#' are comments. Lines without a
// colon, or with the colon first, are skipped. The last duplicate key wins.
//
// Values are coerced in order: true/false (any case), number (int when
// integral and within int32, float64 otherwise), bracketed comma list
// ([]string), double-quoted string, single-quoted string, raw string.
func ParseCustomParameters(text string) map[string]any {
	return parseCustomParameters(text, nil)
}

// parseCustomParameters is ParseCustomParameters with a callback for each
// skipped non-comment line (1-based line number).
func parseCustomParameters(text string, onSkip func(line int, raw string)) map[string]any {
	params := make(map[string]any)
	if strings.TrimSpace(text) == "" {
		return params
	}

	for i, line := range strings.Split(text, "\n") {
		line = strings.TrimSpace(line)
		if line == "" || strings.HasPrefix(line, "#") {
			continue
		}
		colon := strings.IndexByte(line, ':')
		if colon <= 0 {
			if onSkip != nil {
				onSkip(i+1, line)
			}
			continue
		}
		key := strings.TrimSpace(line[:colon])
		if key == "" {
			if onSkip != nil {
				onSkip(i+1, line)
			}
			continue
		}
		params[key] = coerce(strings.TrimSpace(line[colon+1:]))
	}
	return params
}

func coerce(v string) any {
	switch {
	case strings.EqualFold(v, "true"):
		return true
	case strings.EqualFold(v, "false"):
		return false
	}

	// ParseFloat accepts Go digit separators; "1_000" is not a decimal value.
	if f, err := strconv.ParseFloat(v, 64); err == nil && !strings.Contains(v, "_") && !math.IsInf(f, 0) && !math.IsNaN(f) {
		if f == math.Trunc(f) && f >= math.MinInt32 && f <= math.MaxInt32 {
			return int(f)
		}
		return f
	}

	if len(v) >= 2 && v[0] == '[' && v[len(v)-1] == ']' {
		inner := strings.TrimSpace(v[1 : len(v)-1])
		if inner == "" {
			return []string{}
		}
		parts := strings.Split(inner, ",")
		list := make([]string, 0, len(parts))
		for _, p := range parts {
			list = append(list, unquote(strings.TrimSpace(p)))
		}
		return list
	}

	return unquote(v)
}

// unquote strips one pair of matching double or single quotes.
func unquote(s string) string {
	if len(s) >= 2 {
		if (s[0] == '"' && s[len(s)-1] == '"') || (s[0] == '\'' && s[len(s)-1] == '\'') {
			return s[1 : len(s)-1]
		}
	}
	return s
}
