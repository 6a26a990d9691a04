// Package config wraps Viper for typed access to configuration sections and
// builds the process logger.
package config

import (
	"fmt"
	"time"

	"github.com/spf13/viper"
)

// ViperConfig wraps a Viper instance.
type ViperConfig struct {
	v *viper.Viper
}

// New creates a Config backed by the given Viper instance.
func New(v *viper.Viper) *ViperConfig {
	if v == nil {
		v = viper.New()
	}
	return &ViperConfig{v: v}
}

// Section decodes the sub-tree at key into target. Fields absent from the
// configuration keep the values target already holds, so callers pass a
// struct pre-filled with package defaults.
func (c *ViperConfig) Section(key string, target any) error {
	if !c.v.IsSet(key) {
		return nil
	}
	if err := c.v.UnmarshalKey(key, target); err != nil {
		return fmt.Errorf("decode %s config: %w", key, err)
	}
	return nil
}

func (c *ViperConfig) GetString(key string) string {
	return c.v.GetString(key)
}

func (c *ViperConfig) GetInt(key string) int {
	return c.v.GetInt(key)
}

func (c *ViperConfig) GetFloat64(key string) float64 {
	return c.v.GetFloat64(key)
}

func (c *ViperConfig) GetBool(key string) bool {
	return c.v.GetBool(key)
}

func (c *ViperConfig) GetStringSlice(key string) []string {
	return c.v.GetStringSlice(key)
}

func (c *ViperConfig) GetDuration(key string) time.Duration {
	return c.v.GetDuration(key)
}

func (c *ViperConfig) IsSet(key string) bool {
	return c.v.IsSet(key)
}
