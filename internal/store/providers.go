package store

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"github.com/HerbHall/textlens/pkg/llm"
	"github.com/HerbHall/textlens/pkg/models"
)

const providerColumns = `id, name, kind, base_url, api_key, model, streaming_enabled,
	advanced_params_enabled, max_tokens, temperature, top_p, custom_parameters,
	is_default, created_at, updated_at`

// ProviderStore persists ProviderConfig rows. API keys pass through the
// Sealer on the way in and out.
type ProviderStore struct {
	s      *SQLiteStore
	sealer Sealer
	now    func() time.Time
}

// NewProviderStore creates a ProviderStore. A nil sealer stores keys as given.
func NewProviderStore(s *SQLiteStore, sealer Sealer) *ProviderStore {
	if sealer == nil {
		sealer = PlainSealer{}
	}
	return &ProviderStore{s: s, sealer: sealer, now: time.Now}
}

// List returns every provider, default first, then most recently updated.
func (p *ProviderStore) List(ctx context.Context) ([]models.ProviderConfig, error) {
	rows, err := p.s.db.QueryContext(ctx, `
		SELECT `+providerColumns+`
		FROM providers ORDER BY is_default DESC, updated_at DESC, id DESC`)
	if err != nil {
		return nil, fmt.Errorf("list providers: %w", err)
	}
	defer rows.Close()

	var out []models.ProviderConfig
	for rows.Next() {
		cfg, err := p.scan(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, *cfg)
	}
	return out, rows.Err()
}

// Get returns the provider with id, or nil, nil if there is none.
func (p *ProviderStore) Get(ctx context.Context, id int64) (*models.ProviderConfig, error) {
	row := p.s.db.QueryRowContext(ctx, `SELECT `+providerColumns+` FROM providers WHERE id = ?`, id)
	cfg, err := p.scan(row)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, nil
	}
	return cfg, err
}

// GetDefault returns the default provider, or nil, nil if none is flagged.
func (p *ProviderStore) GetDefault(ctx context.Context) (*models.ProviderConfig, error) {
	row := p.s.db.QueryRowContext(ctx, `SELECT `+providerColumns+` FROM providers WHERE is_default = 1 LIMIT 1`)
	cfg, err := p.scan(row)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, nil
	}
	return cfg, err
}

// Insert stores cfg and sets its ID and timestamps. When cfg.IsDefault is
// set, every other provider loses the flag in the same transaction.
func (p *ProviderStore) Insert(ctx context.Context, cfg *models.ProviderConfig) error {
	if !cfg.Kind.Valid() {
		return fmt.Errorf("insert provider: unknown kind %q", cfg.Kind)
	}
	key, err := p.sealer.Seal(cfg.APIKey)
	if err != nil {
		return fmt.Errorf("insert provider: %w", err)
	}
	now := p.now().UTC()

	err = p.s.Tx(ctx, func(tx *sql.Tx) error {
		if cfg.IsDefault {
			if err := clearDefault(ctx, tx); err != nil {
				return err
			}
		}
		res, err := tx.ExecContext(ctx, `
			INSERT INTO providers (name, kind, base_url, api_key, model, streaming_enabled,
				advanced_params_enabled, max_tokens, temperature, top_p, custom_parameters,
				is_default, created_at, updated_at)
			VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`,
			cfg.Name, string(cfg.Kind), cfg.BaseURL, key, cfg.Model,
			boolToInt(cfg.StreamingEnabled), boolToInt(cfg.AdvancedParamsEnabled),
			cfg.MaxTokens, cfg.Temperature, cfg.TopP, cfg.CustomParameters,
			boolToInt(cfg.IsDefault), toNanos(now), toNanos(now),
		)
		if err != nil {
			return err
		}
		cfg.ID, err = res.LastInsertId()
		return err
	})
	if err != nil {
		return fmt.Errorf("insert provider: %w", err)
	}
	cfg.CreatedAt, cfg.UpdatedAt = now, now
	return nil
}

// Update rewrites every field of an existing provider and bumps UpdatedAt.
// Setting IsDefault clears it elsewhere first.
func (p *ProviderStore) Update(ctx context.Context, cfg *models.ProviderConfig) error {
	if !cfg.Kind.Valid() {
		return fmt.Errorf("update provider: unknown kind %q", cfg.Kind)
	}
	key, err := p.sealer.Seal(cfg.APIKey)
	if err != nil {
		return fmt.Errorf("update provider: %w", err)
	}
	now := p.now().UTC()

	err = p.s.Tx(ctx, func(tx *sql.Tx) error {
		if cfg.IsDefault {
			if err := clearDefault(ctx, tx); err != nil {
				return err
			}
		}
		res, err := tx.ExecContext(ctx, `
			UPDATE providers SET name = ?, kind = ?, base_url = ?, api_key = ?, model = ?,
				streaming_enabled = ?, advanced_params_enabled = ?, max_tokens = ?,
				temperature = ?, top_p = ?, custom_parameters = ?, is_default = ?,
				updated_at = ?
			WHERE id = ?`,
			cfg.Name, string(cfg.Kind), cfg.BaseURL, key, cfg.Model,
			boolToInt(cfg.StreamingEnabled), boolToInt(cfg.AdvancedParamsEnabled),
			cfg.MaxTokens, cfg.Temperature, cfg.TopP, cfg.CustomParameters,
			boolToInt(cfg.IsDefault), toNanos(now), cfg.ID,
		)
		if err != nil {
			return err
		}
		return expectOneRow(res)
	})
	if err != nil {
		return fmt.Errorf("update provider %d: %w", cfg.ID, err)
	}
	cfg.UpdatedAt = now
	return nil
}

// Delete removes the provider with id.
func (p *ProviderStore) Delete(ctx context.Context, id int64) error {
	res, err := p.s.db.ExecContext(ctx, `DELETE FROM providers WHERE id = ?`, id)
	if err != nil {
		return fmt.Errorf("delete provider %d: %w", id, err)
	}
	if err := expectOneRow(res); err != nil {
		return fmt.Errorf("delete provider %d: %w", id, err)
	}
	return nil
}

// SetDefault makes id the only default provider: clear-then-set in one
// transaction. A missing id leaves the current default untouched.
func (p *ProviderStore) SetDefault(ctx context.Context, id int64) error {
	now := p.now().UTC()
	err := p.s.Tx(ctx, func(tx *sql.Tx) error {
		if err := clearDefault(ctx, tx); err != nil {
			return err
		}
		res, err := tx.ExecContext(ctx,
			`UPDATE providers SET is_default = 1, updated_at = ? WHERE id = ?`,
			toNanos(now), id,
		)
		if err != nil {
			return err
		}
		return expectOneRow(res)
	})
	if err != nil {
		return fmt.Errorf("set default provider %d: %w", id, err)
	}
	return nil
}

func clearDefault(ctx context.Context, tx *sql.Tx) error {
	if _, err := tx.ExecContext(ctx, `UPDATE providers SET is_default = 0 WHERE is_default = 1`); err != nil {
		return fmt.Errorf("clear default: %w", err)
	}
	return nil
}

func expectOneRow(res sql.Result) error {
	n, err := res.RowsAffected()
	if err != nil {
		return err
	}
	if n == 0 {
		return ErrNotFound
	}
	return nil
}

type scanner interface {
	Scan(dest ...any) error
}

func (p *ProviderStore) scan(row scanner) (*models.ProviderConfig, error) {
	var (
		cfg                  models.ProviderConfig
		kind, key            string
		streaming, advanced  int
		isDefault            int
		createdAt, updatedAt int64
	)
	err := row.Scan(&cfg.ID, &cfg.Name, &kind, &cfg.BaseURL, &key, &cfg.Model,
		&streaming, &advanced, &cfg.MaxTokens, &cfg.Temperature, &cfg.TopP,
		&cfg.CustomParameters, &isDefault, &createdAt, &updatedAt)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, err
		}
		return nil, fmt.Errorf("scan provider row: %w", err)
	}

	if cfg.Kind, err = llm.ParseKind(kind); err != nil {
		return nil, fmt.Errorf("provider %d: %w", cfg.ID, err)
	}
	if cfg.APIKey, err = p.sealer.Open(key); err != nil {
		return nil, fmt.Errorf("provider %d api key: %w", cfg.ID, err)
	}
	cfg.StreamingEnabled = streaming != 0
	cfg.AdvancedParamsEnabled = advanced != 0
	cfg.IsDefault = isDefault != 0
	cfg.CreatedAt = fromNanos(createdAt)
	cfg.UpdatedAt = fromNanos(updatedAt)
	return &cfg, nil
}
