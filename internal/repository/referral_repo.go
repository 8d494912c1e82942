package repository

import (
	"context"
	"fmt"
	"time"

	"earning_bot/internal/domain"
)

// Создает новую реферальную связь; у приглашенного может быть только один пригласивший
func (c *conn) InsertReferral(ctx context.Context, e *domain.ReferralEdge) (bool, error) {
	err := c.q.QueryRow(ctx, `
		INSERT INTO referrals (referrer_id, referred_id, is_active, bonus_paid, created_at)
		VALUES ($1, $2, $3, false, $4)
		ON CONFLICT (referred_id) DO NOTHING
		RETURNING id
	`, e.ReferrerID, e.ReferredID, e.IsActive, e.CreatedAt).Scan(&e.ID)
	if err != nil {
		if isNoRows(err) {
			return false, nil
		}
		return false, fmt.Errorf("insert referral: %w", err)
	}
	return true, nil
}

func (c *conn) GetReferralForUpdate(ctx context.Context, id int64) (*domain.ReferralEdge, error) {
	var e domain.ReferralEdge
	err := c.q.QueryRow(ctx, `
		SELECT id, referrer_id, referred_id, is_active, bonus_paid, paid_at, created_at
		FROM referrals WHERE id = $1 FOR UPDATE
	`, id).Scan(&e.ID, &e.ReferrerID, &e.ReferredID, &e.IsActive, &e.BonusPaid, &e.PaidAt, &e.CreatedAt)
	if err != nil {
		if isNoRows(err) {
			return nil, domain.ErrReferralNotFound
		}
		return nil, err
	}
	return &e, nil
}

// Отмечает бонус как полученный; повторный вызов ничего не меняет
func (c *conn) MarkReferralPaid(ctx context.Context, id int64, at time.Time) (bool, error) {
	tag, err := c.q.Exec(ctx, `
		UPDATE referrals SET bonus_paid = true, paid_at = $2
		WHERE id = $1 AND bonus_paid = false
	`, id, at)
	if err != nil {
		return false, fmt.Errorf("mark referral paid: %w", err)
	}
	return tag.RowsAffected() == 1, nil
}

// Возвращает все рефералы, сделанные пользователем
func (c *conn) ListReferrals(ctx context.Context, referrerID int64) ([]domain.ReferralEdge, error) {
	rows, err := c.q.Query(ctx, `
		SELECT id, referrer_id, referred_id, is_active, bonus_paid, paid_at, created_at
		FROM referrals
		WHERE referrer_id = $1
		ORDER BY created_at DESC, id DESC
	`, referrerID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []domain.ReferralEdge
	for rows.Next() {
		var e domain.ReferralEdge
		if err := rows.Scan(&e.ID, &e.ReferrerID, &e.ReferredID, &e.IsActive, &e.BonusPaid, &e.PaidAt, &e.CreatedAt); err != nil {
			return nil, err
		}
		out = append(out, e)
	}
	return out, rows.Err()
}
