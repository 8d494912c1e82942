package service

import (
	"context"
	"time"

	"earning_bot/internal/domain"
	"earning_bot/internal/metrics"
	"earning_bot/internal/repository"

	"github.com/shopspring/decimal"
)

// Reward - одно начисление
type Reward struct {
	Kind        domain.LedgerKind
	Amount      decimal.Decimal
	Description string
	TaskID      *int64
	ReferralID  *int64
}

// LedgerService - единственное место, где растет баланс.
// Запись в журнал и изменение баланса идут в одной транзакции вызывающего.
type LedgerService struct {
	store repository.Store
	now   func() time.Time
}

func NewLedgerService(store repository.Store) *LedgerService {
	return &LedgerService{store: store, now: time.Now}
}

// ApplyReward начисляет r на acc внутри tx. acc должен быть взят ForUpdate,
// счетчики (ads_watched и т.п.) вызывающий выставляет до вызова.
func (s *LedgerService) ApplyReward(ctx context.Context, tx repository.Tx, acc *domain.Account, r Reward) (*domain.LedgerEntry, error) {
	if acc.IsBanned {
		return nil, domain.Deny(domain.ReasonAccountBanned)
	}
	if !r.Amount.IsPositive() || !r.Kind.Valid() {
		return nil, domain.ErrInvalidAmount
	}

	now := s.now()
	if r.Kind == domain.LedgerKindReferral && r.ReferralID != nil {
		ok, err := tx.MarkReferralPaid(ctx, *r.ReferralID, now)
		if err != nil {
			return nil, err
		}
		if !ok {
			return nil, domain.Deny(domain.ReasonBonusAlreadyPaid)
		}
	}

	entry := &domain.LedgerEntry{
		AccountID:   acc.ID,
		Amount:      r.Amount,
		Kind:        r.Kind,
		Description: r.Description,
		TaskID:      r.TaskID,
		ReferralID:  r.ReferralID,
		CreatedAt:   now,
	}
	if err := tx.AppendLedger(ctx, entry); err != nil {
		return nil, err
	}

	acc.Balance = acc.Balance.Add(r.Amount)
	acc.TotalEarned = acc.TotalEarned.Add(r.Amount)
	acc.UpdatedAt = now
	if err := tx.UpdateAccount(ctx, acc); err != nil {
		return nil, err
	}

	return entry, nil
}

// recordRewards - метрики только после коммита
func recordRewards(entries ...*domain.LedgerEntry) {
	for _, e := range entries {
		if e == nil {
			continue
		}
		metrics.RewardsTotal.WithLabelValues(string(e.Kind)).Inc()
		metrics.RewardAmount.WithLabelValues(string(e.Kind)).Add(e.Amount.Shift(2).InexactFloat64())
	}
}

// History - журнал начислений пользователя, новые сверху
func (s *LedgerService) History(ctx context.Context, accountID int64, kind domain.LedgerKind, limit int) ([]domain.LedgerEntry, error) {
	if kind != "" && !kind.Valid() {
		return nil, domain.ErrInvalidKind
	}
	return s.store.ListLedger(ctx, domain.LedgerFilter{AccountID: accountID, Kind: kind, Limit: limit})
}

// Verify сверяет аккаунт с журналом: total_earned = сумма журнала,
// balance = сумма журнала - одобренные выводы
func (s *LedgerService) Verify(ctx context.Context, accountID int64) (bool, error) {
	acc, err := s.store.GetAccount(ctx, accountID)
	if err != nil {
		return false, err
	}
	sum, err := s.store.SumLedger(ctx, domain.LedgerFilter{AccountID: accountID})
	if err != nil {
		return false, err
	}
	wd, err := s.store.SummarizeWithdrawals(ctx, accountID)
	if err != nil {
		return false, err
	}
	return sum.Equal(acc.TotalEarned) && acc.Balance.Equal(sum.Sub(wd.ApprovedAmount)), nil
}
