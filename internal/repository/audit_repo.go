package repository

import (
	"context"
	"encoding/json"

	"earning_bot/internal/domain"
)

// создает новую запись в логе аудита (в той же транзакции, что и действие)
func (c *conn) InsertAudit(ctx context.Context, l *domain.AuditLog) error {
	detailsJSON, err := json.Marshal(l.Details)
	if err != nil {
		detailsJSON = []byte("{}")
	}

	return c.q.QueryRow(ctx, `
		INSERT INTO audit_logs (account_id, actor_id, action, category, details, created_at)
		VALUES ($1, $2, $3, $4, $5, $6)
		RETURNING id
	`, l.AccountID, l.ActorID, l.Action, l.Category, detailsJSON, l.CreatedAt).Scan(&l.ID)
}

// последние записи; accountID = 0 - по всем пользователям
func (c *conn) ListAudit(ctx context.Context, accountID int64, limit int) ([]domain.AuditLog, error) {
	rows, err := c.q.Query(ctx, `
		SELECT id, account_id, actor_id, action, category, details, created_at
		FROM audit_logs
		WHERE $1::bigint = 0 OR account_id = $1::bigint
		ORDER BY created_at DESC, id DESC
		LIMIT $2
	`, accountID, clampLimit(limit))
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var logs []domain.AuditLog
	for rows.Next() {
		var l domain.AuditLog
		var detailsJSON []byte
		if err := rows.Scan(&l.ID, &l.AccountID, &l.ActorID, &l.Action, &l.Category, &detailsJSON, &l.CreatedAt); err != nil {
			return nil, err
		}
		if err := json.Unmarshal(detailsJSON, &l.Details); err != nil {
			l.Details = make(map[string]any)
		}
		logs = append(logs, l)
	}
	return logs, rows.Err()
}
