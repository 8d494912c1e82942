package repository

import (
	"context"
	"crypto/rand"
	"encoding/hex"
	"strings"
	"time"

	"earning_bot/internal/domain"

	"github.com/shopspring/decimal"
)

// Tx - операции внутри одной транзакции. Все чтения "ForUpdate" берут
// блокировку строки до коммита, так проверка и запись не разъезжаются.
type Tx interface {
	GetAccountForUpdate(ctx context.Context, id int64) (*domain.Account, error)
	GetAccountByTgIDForUpdate(ctx context.Context, tgID int64) (*domain.Account, error)
	GetAccountByReferralCodeForUpdate(ctx context.Context, code string) (*domain.Account, error)
	// InsertAccount возвращает false, если сработал любой unique (tg_id или referral_code)
	InsertAccount(ctx context.Context, a *domain.Account) (bool, error)
	UpdateAccount(ctx context.Context, a *domain.Account) error

	AppendLedger(ctx context.Context, e *domain.LedgerEntry) error

	GetTask(ctx context.Context, id int64) (*domain.Task, error)
	InsertTask(ctx context.Context, t *domain.Task) error
	SetTaskActive(ctx context.Context, id int64, active bool, at time.Time) (*domain.Task, error)
	CountCompletions(ctx context.Context, accountID, taskID int64, day time.Time) (int, error)
	InsertCompletion(ctx context.Context, c *domain.TaskCompletion) (bool, error)
	IncrementTaskCompletions(ctx context.Context, taskID int64) error

	InsertReferral(ctx context.Context, e *domain.ReferralEdge) (bool, error)
	GetReferralForUpdate(ctx context.Context, id int64) (*domain.ReferralEdge, error)
	// MarkReferralPaid - условный update, false если бонус уже был выплачен
	MarkReferralPaid(ctx context.Context, id int64, at time.Time) (bool, error)

	InsertWithdrawal(ctx context.Context, w *domain.Withdrawal) error
	GetWithdrawalForUpdate(ctx context.Context, id int64) (*domain.Withdrawal, error)
	UpdateWithdrawal(ctx context.Context, w *domain.Withdrawal) error

	PutSetting(ctx context.Context, key string, value []byte, at time.Time) (*domain.Setting, error)

	InsertAudit(ctx context.Context, l *domain.AuditLog) error
}

// Reader - проекции для чтения вне транзакций
type Reader interface {
	GetAccount(ctx context.Context, id int64) (*domain.Account, error)
	GetAccountByTgID(ctx context.Context, tgID int64) (*domain.Account, error)
	ListAccounts(ctx context.Context, offset, limit int) ([]domain.Account, int, error)

	ListTasks(ctx context.Context, activeOnly bool) ([]domain.Task, error)
	CompletedTaskIDs(ctx context.Context, accountID int64, day time.Time) (map[int64]bool, error)

	ListLedger(ctx context.Context, f domain.LedgerFilter) ([]domain.LedgerEntry, error)
	SumLedger(ctx context.Context, f domain.LedgerFilter) (decimal.Decimal, error)

	ListWithdrawals(ctx context.Context, f domain.WithdrawalFilter) ([]domain.Withdrawal, error)
	// SummarizeWithdrawals считает без лимита выборки
	SummarizeWithdrawals(ctx context.Context, accountID int64) (*domain.WithdrawalSummary, error)
	ListReferrals(ctx context.Context, referrerID int64) ([]domain.ReferralEdge, error)

	GetSetting(ctx context.Context, key string) (*domain.Setting, error)

	PlatformStats(ctx context.Context, today time.Time) (*domain.PlatformStats, error)
	ListAudit(ctx context.Context, accountID int64, limit int) ([]domain.AuditLog, error)
}

// Store - хранилище целиком: чтение плюс атомарные единицы работы
type Store interface {
	Reader
	// InTx выполняет fn в одной транзакции; ошибка fn откатывает все
	InTx(ctx context.Context, fn func(tx Tx) error) error
}

// Генерирует уникальный реферальный код
func GenerateReferralCode() string {
	bytes := make([]byte, 6)
	_, _ = rand.Read(bytes)
	return hex.EncodeToString(bytes)
}

// NormalizeReferralCode убирает префикс deep-link "ref_" и пробелы
func NormalizeReferralCode(code string) string {
	code = strings.TrimSpace(code)
	code = strings.TrimPrefix(code, "ref_")
	return strings.ToLower(code)
}

const defaultLimit = 50

func clampLimit(limit int) int {
	if limit <= 0 || limit > 500 {
		return defaultLimit
	}
	return limit
}
