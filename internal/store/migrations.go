package store

import (
	"context"
	"database/sql"
)

// coreComponent is the migration ledger name for the tables in this package.
const coreComponent = "core"

// MigrateCore creates or upgrades the provider, template and settings tables.
func (s *SQLiteStore) MigrateCore(ctx context.Context) error {
	return s.Migrate(ctx, coreComponent, coreMigrations())
}

func coreMigrations() []Migration {
	return []Migration{
		{
			Version:     1,
			Description: "create provider, template and settings tables",
			Up: func(tx *sql.Tx) error {
				stmts := []string{
					`CREATE TABLE IF NOT EXISTS providers (
						id INTEGER PRIMARY KEY AUTOINCREMENT,
						name TEXT NOT NULL,
						kind TEXT NOT NULL,
						base_url TEXT NOT NULL DEFAULT '',
						api_key TEXT NOT NULL DEFAULT '',
						model TEXT NOT NULL DEFAULT '',
						streaming_enabled INTEGER NOT NULL DEFAULT 1,
						advanced_params_enabled INTEGER NOT NULL DEFAULT 0,
						max_tokens INTEGER NOT NULL DEFAULT 0,
						temperature REAL NOT NULL DEFAULT 0,
						top_p REAL NOT NULL DEFAULT 0,
						custom_parameters TEXT NOT NULL DEFAULT '',
						is_default INTEGER NOT NULL DEFAULT 0,
						created_at INTEGER NOT NULL,
						updated_at INTEGER NOT NULL
					)`,
					// At most one default provider, enforced by the database as well.
					`CREATE UNIQUE INDEX IF NOT EXISTS idx_providers_single_default
						ON providers(is_default) WHERE is_default = 1`,
					`CREATE INDEX IF NOT EXISTS idx_providers_listing
						ON providers(is_default DESC, updated_at DESC)`,

					`CREATE TABLE IF NOT EXISTS templates (
						id INTEGER PRIMARY KEY AUTOINCREMENT,
						title TEXT NOT NULL,
						content TEXT NOT NULL,
						description TEXT NOT NULL DEFAULT '',
						position INTEGER NOT NULL,
						created_at INTEGER NOT NULL,
						updated_at INTEGER NOT NULL
					)`,
					`CREATE INDEX IF NOT EXISTS idx_templates_position ON templates(position)`,

					`CREATE TABLE IF NOT EXISTS settings (
						key TEXT PRIMARY KEY,
						value TEXT NOT NULL
					)`,
				}
				for _, stmt := range stmts {
					if _, err := tx.Exec(stmt); err != nil {
						return err
					}
				}
				return nil
			},
		},
	}
}
