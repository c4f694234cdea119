package storage

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"github.com/dmitrijs2005/tradeclub/internal/dbx"
)

// SharedRepository is the cross-tab store. Writes are tagged with the
// writer's tab id in shared_changes within the same transaction, so other
// tabs can tell their own writes apart from foreign ones.
type SharedRepository struct {
	db     *sql.DB
	writer string
	now    func() time.Time
}

type SharedOption func(*SharedRepository)

// WithClock replaces time.Now for expiry checks and change timestamps.
func WithClock(now func() time.Time) SharedOption {
	return func(r *SharedRepository) { r.now = now }
}

func NewSharedRepository(db *sql.DB, writer string, opts ...SharedOption) *SharedRepository {
	r := &SharedRepository{db: db, writer: writer, now: time.Now}
	for _, o := range opts {
		o(r)
	}
	return r
}

var (
	_ Repository = (*SharedRepository)(nil)
	_ Expirer    = (*SharedRepository)(nil)
	_ ChangeLog  = (*SharedRepository)(nil)
)

func (r *SharedRepository) Writer() string {
	return r.writer
}

func (r *SharedRepository) Get(ctx context.Context, key string) ([]byte, error) {
	var value []byte
	err := r.db.QueryRowContext(ctx, `
		SELECT value FROM shared_storage
		WHERE key = ? AND (expires_at IS NULL OR expires_at > ?)
	`, key, r.now().UnixMilli()).Scan(&value)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get shared[%s]: %w", key, err)
	}
	return value, nil
}

func (r *SharedRepository) Set(ctx context.Context, key string, value []byte) error {
	return r.put(ctx, key, value, sql.NullInt64{})
}

func (r *SharedRepository) SetExpiring(ctx context.Context, key string, value []byte, expiresAt time.Time) error {
	return r.put(ctx, key, value, sql.NullInt64{Int64: expiresAt.UnixMilli(), Valid: true})
}

func (r *SharedRepository) put(ctx context.Context, key string, value []byte, expiresAt sql.NullInt64) error {
	err := dbx.WithTx(ctx, r.db, nil, func(ctx context.Context, tx dbx.DBTX) error {
		if _, err := tx.ExecContext(ctx, `
			INSERT INTO shared_storage (key, value, expires_at) VALUES (?, ?, ?)
			ON CONFLICT(key) DO UPDATE SET value = excluded.value, expires_at = excluded.expires_at
		`, key, value, expiresAt); err != nil {
			return err
		}
		return r.logChange(ctx, tx, key)
	})
	if err != nil {
		return fmt.Errorf("failed to set shared[%s]: %w", key, err)
	}
	return nil
}

func (r *SharedRepository) Delete(ctx context.Context, key string) error {
	err := dbx.WithTx(ctx, r.db, nil, func(ctx context.Context, tx dbx.DBTX) error {
		res, err := tx.ExecContext(ctx, `DELETE FROM shared_storage WHERE key = ?`, key)
		if err != nil {
			return err
		}
		if n, _ := res.RowsAffected(); n == 0 {
			return nil
		}
		return r.logChange(ctx, tx, key)
	})
	if err != nil {
		return fmt.Errorf("failed to delete shared[%s]: %w", key, err)
	}
	return nil
}

func (r *SharedRepository) Clear(ctx context.Context) error {
	err := dbx.WithTx(ctx, r.db, nil, func(ctx context.Context, tx dbx.DBTX) error {
		if _, err := tx.ExecContext(ctx, `
			INSERT INTO shared_changes (key, writer, changed_at)
			SELECT key, ?, ? FROM shared_storage
		`, r.writer, r.now().UnixMilli()); err != nil {
			return err
		}
		_, err := tx.ExecContext(ctx, `DELETE FROM shared_storage`)
		return err
	})
	if err != nil {
		return fmt.Errorf("failed to clear shared storage: %w", err)
	}
	return nil
}

func (r *SharedRepository) List(ctx context.Context) (map[string][]byte, error) {
	rows, err := r.db.QueryContext(ctx, `
		SELECT key, value FROM shared_storage
		WHERE expires_at IS NULL OR expires_at > ?
	`, r.now().UnixMilli())
	if err != nil {
		return nil, fmt.Errorf("failed to list shared storage: %w", err)
	}
	defer rows.Close()

	result := make(map[string][]byte)
	for rows.Next() {
		var key string
		var value []byte
		if err := rows.Scan(&key, &value); err != nil {
			return nil, fmt.Errorf("failed to scan shared row: %w", err)
		}
		result[key] = value
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("failed to iterate shared rows: %w", err)
	}
	return result, nil
}

func (r *SharedRepository) logChange(ctx context.Context, tx dbx.DBTX, key string) error {
	_, err := tx.ExecContext(ctx, `
		INSERT INTO shared_changes (key, writer, changed_at) VALUES (?, ?, ?)
	`, key, r.writer, r.now().UnixMilli())
	return err
}

func (r *SharedRepository) LastSeq(ctx context.Context) (int64, error) {
	var seq int64
	err := r.db.QueryRowContext(ctx, `SELECT COALESCE(MAX(seq), 0) FROM shared_changes`).Scan(&seq)
	if err != nil {
		return 0, fmt.Errorf("failed to read change log head: %w", err)
	}
	return seq, nil
}

func (r *SharedRepository) Changes(ctx context.Context, after int64) ([]Event, error) {
	rows, err := r.db.QueryContext(ctx, `
		SELECT seq, key, writer, changed_at FROM shared_changes
		WHERE seq > ? ORDER BY seq
	`, after)
	if err != nil {
		return nil, fmt.Errorf("failed to read change log: %w", err)
	}
	defer rows.Close()

	var events []Event
	for rows.Next() {
		var (
			e  Event
			ms int64
		)
		if err := rows.Scan(&e.Seq, &e.Key, &e.Writer, &ms); err != nil {
			return nil, fmt.Errorf("failed to scan change: %w", err)
		}
		e.ChangedAt = time.UnixMilli(ms)
		events = append(events, e)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("failed to iterate changes: %w", err)
	}
	return events, nil
}

// PruneChanges drops change log rows older than maxAge.
func (r *SharedRepository) PruneChanges(ctx context.Context, maxAge time.Duration) (int64, error) {
	res, err := r.db.ExecContext(ctx, `DELETE FROM shared_changes WHERE changed_at < ?`,
		r.now().Add(-maxAge).UnixMilli())
	if err != nil {
		return 0, fmt.Errorf("failed to prune change log: %w", err)
	}
	n, _ := res.RowsAffected()
	return n, nil
}
