package domain

import (
	"time"

	"github.com/shopspring/decimal"
)

// LedgerKind - тип начисления
type LedgerKind string

const (
	LedgerKindAd       LedgerKind = "ad"
	LedgerKindTask     LedgerKind = "task"
	LedgerKindReferral LedgerKind = "referral"
	LedgerKindBonus    LedgerKind = "bonus"
)

// Valid проверяет, что тип из известного набора
func (k LedgerKind) Valid() bool {
	switch k {
	case LedgerKindAd, LedgerKindTask, LedgerKindReferral, LedgerKindBonus:
		return true
	}
	return false
}

// LedgerEntry - запись журнала начислений. Только вставка, никаких update/delete.
type LedgerEntry struct {
	ID          int64           `db:"id" json:"id"`
	AccountID   int64           `db:"account_id" json:"account_id"`
	Amount      decimal.Decimal `db:"amount" json:"amount"`
	Kind        LedgerKind      `db:"kind" json:"kind"`
	Description string          `db:"description" json:"description"`
	TaskID      *int64          `db:"task_id" json:"task_id,omitempty"`
	ReferralID  *int64          `db:"referral_id" json:"referral_id,omitempty"`
	CreatedAt   time.Time       `db:"created_at" json:"created_at"`
}

// LedgerFilter - параметры выборки истории
type LedgerFilter struct {
	AccountID int64
	Kind      LedgerKind // пусто = все типы
	Since     *time.Time
	Limit     int
}
