package store

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"slices"
	"time"

	"github.com/HerbHall/textlens/pkg/models"
)

const templateColumns = `id, title, content, description, position, created_at, updated_at`

// TemplateStore persists PromptTemplate rows ordered by position.
type TemplateStore struct {
	s   *SQLiteStore
	now func() time.Time
}

// NewTemplateStore creates a TemplateStore.
func NewTemplateStore(s *SQLiteStore) *TemplateStore {
	return &TemplateStore{s: s, now: time.Now}
}

// List returns all templates in display order.
func (t *TemplateStore) List(ctx context.Context) ([]models.PromptTemplate, error) {
	rows, err := t.s.db.QueryContext(ctx,
		`SELECT `+templateColumns+` FROM templates ORDER BY position ASC, id ASC`)
	if err != nil {
		return nil, fmt.Errorf("list templates: %w", err)
	}
	defer rows.Close()

	var out []models.PromptTemplate
	for rows.Next() {
		tpl, err := scanTemplate(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, *tpl)
	}
	return out, rows.Err()
}

// Get returns the template with id, or nil, nil if there is none.
func (t *TemplateStore) Get(ctx context.Context, id int64) (*models.PromptTemplate, error) {
	tpl, err := scanTemplate(t.s.db.QueryRowContext(ctx,
		`SELECT `+templateColumns+` FROM templates WHERE id = ?`, id))
	if errors.Is(err, sql.ErrNoRows) {
		return nil, nil
	}
	return tpl, err
}

// MaxPosition returns the highest position in use, or 0 for an empty store.
func (t *TemplateStore) MaxPosition(ctx context.Context) (int, error) {
	var maxPos int
	err := t.s.db.QueryRowContext(ctx, `SELECT COALESCE(MAX(position), 0) FROM templates`).Scan(&maxPos)
	if err != nil {
		return 0, fmt.Errorf("max template position: %w", err)
	}
	return maxPos, nil
}

// Insert appends tpl after the current last template and sets its ID,
// Position and timestamps.
func (t *TemplateStore) Insert(ctx context.Context, tpl *models.PromptTemplate) error {
	err := t.s.Tx(ctx, func(tx *sql.Tx) error {
		return t.insertTx(ctx, tx, tpl)
	})
	if err != nil {
		return fmt.Errorf("insert template: %w", err)
	}
	return nil
}

func (t *TemplateStore) insertTx(ctx context.Context, tx *sql.Tx, tpl *models.PromptTemplate) error {
	var maxPos int
	if err := tx.QueryRowContext(ctx, `SELECT COALESCE(MAX(position), 0) FROM templates`).Scan(&maxPos); err != nil {
		return err
	}
	now := t.now().UTC()
	res, err := tx.ExecContext(ctx, `
		INSERT INTO templates (title, content, description, position, created_at, updated_at)
		VALUES (?, ?, ?, ?, ?, ?)`,
		tpl.Title, tpl.Content, tpl.Description, maxPos+1, toNanos(now), toNanos(now),
	)
	if err != nil {
		return err
	}
	id, err := res.LastInsertId()
	if err != nil {
		return err
	}
	tpl.ID, tpl.Position = id, maxPos+1
	tpl.CreatedAt, tpl.UpdatedAt = now, now
	return nil
}

// Update rewrites title, content and description. Position changes go
// through Move.
func (t *TemplateStore) Update(ctx context.Context, tpl *models.PromptTemplate) error {
	now := t.now().UTC()
	res, err := t.s.db.ExecContext(ctx, `
		UPDATE templates SET title = ?, content = ?, description = ?, updated_at = ?
		WHERE id = ?`,
		tpl.Title, tpl.Content, tpl.Description, toNanos(now), tpl.ID,
	)
	if err != nil {
		return fmt.Errorf("update template %d: %w", tpl.ID, err)
	}
	if err := expectOneRow(res); err != nil {
		return fmt.Errorf("update template %d: %w", tpl.ID, err)
	}
	tpl.UpdatedAt = now
	return nil
}

// Delete removes the template with id. Remaining positions keep their gaps
// until the next Move.
func (t *TemplateStore) Delete(ctx context.Context, id int64) error {
	res, err := t.s.db.ExecContext(ctx, `DELETE FROM templates WHERE id = ?`, id)
	if err != nil {
		return fmt.Errorf("delete template %d: %w", id, err)
	}
	if err := expectOneRow(res); err != nil {
		return fmt.Errorf("delete template %d: %w", id, err)
	}
	return nil
}

// Move places template id at index (0-based, clamped) in display order and
// renumbers every template densely from 1.
func (t *TemplateStore) Move(ctx context.Context, id int64, index int) error {
	err := t.s.Tx(ctx, func(tx *sql.Tx) error {
		rows, err := tx.QueryContext(ctx, `SELECT id FROM templates ORDER BY position ASC, id ASC`)
		if err != nil {
			return err
		}
		var ids []int64
		from := -1
		for rows.Next() {
			var cur int64
			if err := rows.Scan(&cur); err != nil {
				rows.Close()
				return err
			}
			if cur == id {
				from = len(ids)
			}
			ids = append(ids, cur)
		}
		rows.Close()
		if err := rows.Err(); err != nil {
			return err
		}
		if from < 0 {
			return ErrNotFound
		}

		index = max(0, min(index, len(ids)-1))
		ids = slices.Delete(ids, from, from+1)
		ids = slices.Insert(ids, index, id)

		for i, cur := range ids {
			if _, err := tx.ExecContext(ctx, `UPDATE templates SET position = ? WHERE id = ?`, i+1, cur); err != nil {
				return err
			}
		}
		return nil
	})
	if err != nil {
		return fmt.Errorf("move template %d: %w", id, err)
	}
	return nil
}

// SeedIfEmpty inserts presets in order when the store has no templates and
// reports how many were inserted.
func (t *TemplateStore) SeedIfEmpty(ctx context.Context, presets []models.PromptTemplate) (int, error) {
	inserted := 0
	err := t.s.Tx(ctx, func(tx *sql.Tx) error {
		var count int
		if err := tx.QueryRowContext(ctx, `SELECT COUNT(*) FROM templates`).Scan(&count); err != nil {
			return err
		}
		if count > 0 {
			return nil
		}
		for i := range presets {
			tpl := presets[i]
			if err := t.insertTx(ctx, tx, &tpl); err != nil {
				return err
			}
			inserted++
		}
		return nil
	})
	if err != nil {
		return 0, fmt.Errorf("seed templates: %w", err)
	}
	return inserted, nil
}

func scanTemplate(row scanner) (*models.PromptTemplate, error) {
	var (
		tpl                  models.PromptTemplate
		createdAt, updatedAt int64
	)
	err := row.Scan(&tpl.ID, &tpl.Title, &tpl.Content, &tpl.Description, &tpl.Position, &createdAt, &updatedAt)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, err
		}
		return nil, fmt.Errorf("scan template row: %w", err)
	}
	tpl.CreatedAt = fromNanos(createdAt)
	tpl.UpdatedAt = fromNanos(updatedAt)
	return &tpl, nil
}
