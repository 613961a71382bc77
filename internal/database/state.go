package database

import (
	"context"
	"database/sql"
	"errors"
	"time"
)

// KeyLastChange records when a reconciliation pass last added rows.
const KeyLastChange = "last_change_at"

// GetState returns a value from the app_state table, or "" when unset.
func GetState(ctx context.Context, q Querier, key string) (string, error) {
	var value sql.NullString
	err := q.QueryRowContext(ctx, "SELECT value FROM app_state WHERE key = ?", key).Scan(&value)
	if errors.Is(err, sql.ErrNoRows) {
		return "", nil
	}
	return value.String, err
}

// SetState upserts a value in the app_state table.
func SetState(ctx context.Context, q Querier, key, value string) error {
	_, err := q.ExecContext(ctx, `
		INSERT INTO app_state (key, value) VALUES (?, ?)
		ON CONFLICT(key) DO UPDATE SET value = excluded.value
	`, key, value)
	return err
}

// LastChange returns the time a pass last added rows, or the zero time.
func (d *Database) LastChange(ctx context.Context) (time.Time, error) {
	var value string
	err := d.Query(ctx, "get_state", func(q Querier) error {
		var err error
		value, err = GetState(ctx, q, KeyLastChange)
		return err
	})
	if err != nil || value == "" {
		return time.Time{}, err
	}
	return time.Parse(time.RFC3339, value)
}
