package storage

import (
	"context"
	"database/sql"
	"errors"
	"fmt"

	"github.com/dmitrijs2005/tradeclub/internal/dbx"
)

// TabRepository is the per-tab store: every row belongs to one tab id and
// the whole scope goes away with Drop when the tab closes.
type TabRepository struct {
	db    dbx.DBTX
	tabID string
}

func NewTabRepository(db dbx.DBTX, tabID string) *TabRepository {
	return &TabRepository{db: db, tabID: tabID}
}

var _ Repository = (*TabRepository)(nil)

func (r *TabRepository) Get(ctx context.Context, key string) ([]byte, error) {
	var value []byte
	err := r.db.QueryRowContext(ctx,
		`SELECT value FROM tab_storage WHERE tab_id = ? AND key = ?`, r.tabID, key).Scan(&value)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get tab[%s]: %w", key, err)
	}
	return value, nil
}

func (r *TabRepository) Set(ctx context.Context, key string, value []byte) error {
	_, err := r.db.ExecContext(ctx, `
		INSERT INTO tab_storage (tab_id, key, value) VALUES (?, ?, ?)
		ON CONFLICT(tab_id, key) DO UPDATE SET value = excluded.value
	`, r.tabID, key, value)
	if err != nil {
		return fmt.Errorf("failed to set tab[%s]: %w", key, err)
	}
	return nil
}

func (r *TabRepository) Delete(ctx context.Context, key string) error {
	_, err := r.db.ExecContext(ctx, `DELETE FROM tab_storage WHERE tab_id = ? AND key = ?`, r.tabID, key)
	if err != nil {
		return fmt.Errorf("failed to delete tab[%s]: %w", key, err)
	}
	return nil
}

func (r *TabRepository) Clear(ctx context.Context) error {
	_, err := r.db.ExecContext(ctx, `DELETE FROM tab_storage WHERE tab_id = ?`, r.tabID)
	if err != nil {
		return fmt.Errorf("failed to clear tab storage: %w", err)
	}
	return nil
}

// Drop removes the whole tab scope. Same as Clear; named for the tab lifecycle.
func (r *TabRepository) Drop(ctx context.Context) error {
	return r.Clear(ctx)
}

func (r *TabRepository) List(ctx context.Context) (map[string][]byte, error) {
	rows, err := r.db.QueryContext(ctx, `SELECT key, value FROM tab_storage WHERE tab_id = ?`, r.tabID)
	if err != nil {
		return nil, fmt.Errorf("failed to list tab storage: %w", err)
	}
	defer rows.Close()

	result := make(map[string][]byte)
	for rows.Next() {
		var key string
		var value []byte
		if err := rows.Scan(&key, &value); err != nil {
			return nil, fmt.Errorf("failed to scan tab row: %w", err)
		}
		result[key] = value
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("failed to iterate tab rows: %w", err)
	}
	return result, nil
}
