package domain

import "time"

// ReferralEdge - связь пригласивший -> приглашенный.
// У приглашенного ровно один пригласивший, бонус платится один раз.
type ReferralEdge struct {
	ID         int64      `db:"id" json:"id"`
	ReferrerID int64      `db:"referrer_id" json:"referrer_id"`
	ReferredID int64      `db:"referred_id" json:"referred_id"`
	IsActive   bool       `db:"is_active" json:"is_active"`
	BonusPaid  bool       `db:"bonus_paid" json:"bonus_paid"`
	PaidAt     *time.Time `db:"paid_at" json:"paid_at,omitempty"`
	CreatedAt  time.Time  `db:"created_at" json:"created_at"`
}
