package secrets

import (
	"database/sql"

	"github.com/HerbHall/textlens/internal/store"
)

func migrations() []store.Migration {
	return []store.Migration{
		{
			Version:     1,
			Description: "create secrets master table",
			Up: func(tx *sql.Tx) error {
				_, err := tx.Exec(`CREATE TABLE IF NOT EXISTS secrets_master (
					id INTEGER PRIMARY KEY CHECK (id = 1),
					salt BLOB NOT NULL,
					verification_blob BLOB NOT NULL,
					created_at DATETIME NOT NULL DEFAULT CURRENT_TIMESTAMP
				)`)
				return err
			},
		},
	}
}
