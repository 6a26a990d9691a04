package prompt

import (
	"strings"
	"testing"
)

func TestRender(t *testing.T) {
	tests := []struct {
		name     string
		content  string
		selected string
		want     string
	}{
		{"single", "Translate: {{text}}", "hola", "Translate: hola"},
		{"repeated", "{{text}} / {{text}}", "a", "a / a"},
		{"no placeholder", "Just a prompt", "ignored", "Just a prompt"},
		{"malformed placeholder", "{{ text }} {text}", "x", "{{ text }} {text}"},
		{"no recursion", "Q: {{text}}", "{{text}}", "Q: {{text}}"},
		{"empty selection", "[{{text}}]", "", "[]"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := Render(tt.content, tt.selected); got != tt.want {
				t.Errorf("Render(%q, %q) = %q, want %q", tt.content, tt.selected, got, tt.want)
			}
		})
	}
}

func TestRender_IdempotentWithoutPlaceholder(t *testing.T) {
	in := "Summarize this"
	if HasPlaceholder(in) {
		t.Fatal("HasPlaceholder reported true")
	}
	if got := Render(Render(in, "a"), "b"); got != in {
		t.Errorf("got %q, want %q", got, in)
	}
}

func TestPresets(t *testing.T) {
	presets, err := Presets()
	if err != nil {
		t.Fatalf("Presets: %v", err)
	}
	if len(presets) != 4 {
		t.Fatalf("len = %d, want 4", len(presets))
	}
	for i, p := range presets {
		if p.Position != i+1 {
			t.Errorf("%q position = %d, want %d", p.Title, p.Position, i+1)
		}
		if !HasPlaceholder(p.Content) {
			t.Errorf("%q has no placeholder", p.Title)
		}
	}
	if !strings.Contains(Render(presets[3].Content, "serendipity"), "Word: serendipity") {
		t.Error("word analysis preset did not render")
	}
}
