package domain

import (
	"time"

	"github.com/shopspring/decimal"
)

// Статус вывода. approved и rejected - терминальные.
type WithdrawalStatus string

const (
	WithdrawalStatusPending  WithdrawalStatus = "pending"
	WithdrawalStatusApproved WithdrawalStatus = "approved"
	WithdrawalStatusRejected WithdrawalStatus = "rejected"
)

// Terminal - из этого статуса переходов нет
func (s WithdrawalStatus) Terminal() bool {
	return s == WithdrawalStatusApproved || s == WithdrawalStatusRejected
}

// Способ выплаты (мобильные кошельки)
type WithdrawMethod string

const (
	MethodBkash  WithdrawMethod = "bkash"
	MethodNagad  WithdrawMethod = "nagad"
	MethodRocket WithdrawMethod = "rocket"
)

// Decision - решение админа по заявке
type Decision string

const (
	DecisionApprove Decision = "approve"
	DecisionReject  Decision = "reject"
)

// Withdrawal - заявка на вывод. Баланс списывается только при approve.
type Withdrawal struct {
	ID            int64            `db:"id" json:"id"`
	AccountID     int64            `db:"account_id" json:"account_id"`
	Amount        decimal.Decimal  `db:"amount" json:"amount"`
	Method        WithdrawMethod   `db:"method" json:"method"`
	AccountNumber string           `db:"account_number" json:"account_number"`
	Status        WithdrawalStatus `db:"status" json:"status"`
	AdminNotes    string           `db:"admin_notes" json:"admin_notes,omitempty"`
	ResolvedBy    *int64           `db:"resolved_by" json:"resolved_by,omitempty"`
	ResolvedAt    *time.Time       `db:"resolved_at" json:"resolved_at,omitempty"`
	CreatedAt     time.Time        `db:"created_at" json:"created_at"`
}

// WithdrawalFilter - выборка по пользователю и/или статусу
type WithdrawalFilter struct {
	AccountID int64 // 0 = все
	Status    WithdrawalStatus
	Limit     int
}

// WithdrawalSummary - агрегаты по выводам одного аккаунта
type WithdrawalSummary struct {
	Total          int
	Pending        int
	ApprovedAmount decimal.Decimal
}
