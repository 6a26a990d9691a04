package prompt

import (
	_ "embed"
	"fmt"

	"gopkg.in/yaml.v3"

	"github.com/HerbHall/textlens/pkg/models"
)

//go:embed presets.yaml
var presetsYAML []byte

type presetFile struct {
	Templates []struct {
		Title       string `yaml:"title"`
		Description string `yaml:"description"`
		Content     string `yaml:"content"`
	} `yaml:"templates"`
}

// Presets returns the built-in templates in display order. Positions are
// assigned starting at 1; IDs are left for the store to assign.
func Presets() ([]models.PromptTemplate, error) {
	var f presetFile
	if err := yaml.Unmarshal(presetsYAML, &f); err != nil {
		return nil, fmt.Errorf("decode presets: %w", err)
	}
	out := make([]models.PromptTemplate, 0, len(f.Templates))
	for i, t := range f.Templates {
		out = append(out, models.PromptTemplate{
			Title:       t.Title,
			Content:     t.Content,
			Description: t.Description,
			Position:    i + 1,
		})
	}
	return out, nil
}
