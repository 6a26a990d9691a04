package store

import (
	"context"
	"database/sql"
	"fmt"
	"strconv"

	"github.com/HerbHall/textlens/pkg/models"
)

// Settings keys for the legacy single-slot configuration.
const (
	legacyAPIKey    = "legacy.api_key"
	legacyBaseURL   = "legacy.base_url"
	legacyModel     = "legacy.model"
	legacyStreaming = "legacy.streaming_enabled"
	legacyMaxTokens = "legacy.max_tokens"
	legacyTemp      = "legacy.temperature"
)

// LegacyStore reads and writes the pre-multi-provider configuration kept in
// the settings table. Missing keys read as models.DefaultLegacyConfig.
type LegacyStore struct {
	s      *SQLiteStore
	sealer Sealer
}

// NewLegacyStore creates a LegacyStore. A nil sealer stores the key as given.
func NewLegacyStore(s *SQLiteStore, sealer Sealer) *LegacyStore {
	if sealer == nil {
		sealer = PlainSealer{}
	}
	return &LegacyStore{s: s, sealer: sealer}
}

// Get returns the stored legacy configuration overlaid on the defaults.
// Values that fail to parse fall back to the default for that field.
func (l *LegacyStore) Get(ctx context.Context) (models.LegacyConfig, error) {
	cfg := models.DefaultLegacyConfig()

	rows, err := l.s.db.QueryContext(ctx, `SELECT key, value FROM settings WHERE key LIKE 'legacy.%'`)
	if err != nil {
		return cfg, fmt.Errorf("get legacy config: %w", err)
	}
	defer rows.Close()

	for rows.Next() {
		var key, value string
		if err := rows.Scan(&key, &value); err != nil {
			return cfg, fmt.Errorf("scan setting row: %w", err)
		}
		switch key {
		case legacyAPIKey:
			if cfg.APIKey, err = l.sealer.Open(value); err != nil {
				return cfg, fmt.Errorf("legacy api key: %w", err)
			}
		case legacyBaseURL:
			cfg.BaseURL = value
		case legacyModel:
			cfg.Model = value
		case legacyStreaming:
			if b, err := strconv.ParseBool(value); err == nil {
				cfg.StreamingEnabled = b
			}
		case legacyMaxTokens:
			if n, err := strconv.Atoi(value); err == nil {
				cfg.MaxTokens = n
			}
		case legacyTemp:
			if f, err := strconv.ParseFloat(value, 64); err == nil {
				cfg.Temperature = f
			}
		}
	}
	return cfg, rows.Err()
}

// Save writes every legacy field in one transaction.
func (l *LegacyStore) Save(ctx context.Context, cfg models.LegacyConfig) error {
	key, err := l.sealer.Seal(cfg.APIKey)
	if err != nil {
		return fmt.Errorf("save legacy config: %w", err)
	}
	values := map[string]string{
		legacyAPIKey:    key,
		legacyBaseURL:   cfg.BaseURL,
		legacyModel:     cfg.Model,
		legacyStreaming: strconv.FormatBool(cfg.StreamingEnabled),
		legacyMaxTokens: strconv.Itoa(cfg.MaxTokens),
		legacyTemp:      strconv.FormatFloat(cfg.Temperature, 'g', -1, 64),
	}

	err = l.s.Tx(ctx, func(tx *sql.Tx) error {
		for k, v := range values {
			_, err := tx.ExecContext(ctx, `
				INSERT INTO settings (key, value) VALUES (?, ?)
				ON CONFLICT(key) DO UPDATE SET value = excluded.value`, k, v)
			if err != nil {
				return err
			}
		}
		return nil
	})
	if err != nil {
		return fmt.Errorf("save legacy config: %w", err)
	}
	return nil
}
