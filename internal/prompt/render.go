// Package prompt renders prompt templates and supplies the preset templates
// seeded into an empty template store.
package prompt

import "strings"

// Placeholder is the token replaced with the selected text.
const Placeholder = "{{text}}"

// Render replaces every occurrence of Placeholder in content with selected.
// The substitution is literal: selected is not escaped and is never scanned
// for further placeholders.
func Render(content, selected string) string {
	return strings.ReplaceAll(content, Placeholder, selected)
}

// HasPlaceholder reports whether content will consume the selected text.
func HasPlaceholder(content string) bool {
	return strings.Contains(content, Placeholder)
}
