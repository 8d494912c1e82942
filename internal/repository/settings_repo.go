package repository

import (
	"context"
	"fmt"
	"time"

	"earning_bot/internal/domain"
)

func (c *conn) GetSetting(ctx context.Context, key string) (*domain.Setting, error) {
	var s domain.Setting
	err := c.q.QueryRow(ctx, `
		SELECT key, value, version, updated_at FROM settings WHERE key = $1
	`, key).Scan(&s.Key, &s.Value, &s.Version, &s.UpdatedAt)
	if err != nil {
		if isNoRows(err) {
			return nil, domain.ErrSettingNotFound
		}
		return nil, err
	}
	return &s, nil
}

// upsert с инкрементом версии
func (c *conn) PutSetting(ctx context.Context, key string, value []byte, at time.Time) (*domain.Setting, error) {
	s := domain.Setting{Key: key}
	err := c.q.QueryRow(ctx, `
		INSERT INTO settings (key, value, version, updated_at)
		VALUES ($1, $2, 1, $3)
		ON CONFLICT (key) DO UPDATE
		SET value = EXCLUDED.value, version = settings.version + 1, updated_at = EXCLUDED.updated_at
		RETURNING value, version, updated_at
	`, key, value, at).Scan(&s.Value, &s.Version, &s.UpdatedAt)
	if err != nil {
		return nil, fmt.Errorf("put setting %s: %w", key, err)
	}
	return &s, nil
}
