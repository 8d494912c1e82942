package service

import (
	"context"
	"fmt"
	"strings"
	"time"

	"earning_bot/internal/domain"
	"earning_bot/internal/logger"
	"earning_bot/internal/metrics"
	"earning_bot/internal/policy"
	"earning_bot/internal/repository"

	"github.com/shopspring/decimal"
)

// WithdrawalRequest - заявка от пользователя
type WithdrawalRequest struct {
	Amount        decimal.Decimal       `json:"amount"`
	Method        domain.WithdrawMethod `json:"method"`
	AccountNumber string                `json:"account_number"`
}

// WithdrawalResult - ответ на заявку; отказ политики не ошибка
type WithdrawalResult struct {
	Allowed    bool               `json:"allowed"`
	Reason     domain.Reason      `json:"reason,omitempty"`
	Withdrawal *domain.Withdrawal `json:"withdrawal,omitempty"`
}

// WithdrawalService - жизненный цикл вывода: pending -> approved|rejected.
// Баланс списывается только при approve, заявка сама ничего не резервирует.
type WithdrawalService struct {
	store    repository.Store
	settings *SettingsService
	notifier Notifier
	events   EventPublisher
	now      func() time.Time
}

func NewWithdrawalService(store repository.Store, settings *SettingsService, notifier Notifier, events EventPublisher) *WithdrawalService {
	if notifier == nil {
		notifier = nopNotifier{}
	}
	if events == nil {
		events = nopPublisher{}
	}
	return &WithdrawalService{store: store, settings: settings, notifier: notifier, events: events, now: time.Now}
}

// SetNotifier подключает бота после старта (бот зависит от сервисов)
func (s *WithdrawalService) SetNotifier(n Notifier) {
	if n != nil {
		s.notifier = n
	}
}

// Create проверяет заявку против текущего баланса и сохраняет ее в pending
func (s *WithdrawalService) Create(ctx context.Context, accountID int64, req WithdrawalRequest) (*WithdrawalResult, error) {
	cfg, err := s.settings.EarningConfig(ctx)
	if err != nil {
		return nil, err
	}
	req.AccountNumber = strings.TrimSpace(req.AccountNumber)
	req.Method = domain.WithdrawMethod(strings.ToLower(string(req.Method)))
	// больше двух знаков после запятой в NUMERIC(14,2) не влезет
	if !domain.IsCents(req.Amount) {
		return nil, domain.ErrInvalidAmount
	}

	var (
		res *WithdrawalResult
		acc *domain.Account
	)
	err = s.store.InTx(ctx, func(tx repository.Tx) error {
		res = nil
		var err error
		acc, err = tx.GetAccountForUpdate(ctx, accountID)
		if err != nil {
			return err
		}
		if reason := policy.EvaluateWithdrawal(acc, req.Amount, req.Method, req.AccountNumber, cfg); reason != "" {
			res = &WithdrawalResult{Reason: reason}
			return nil
		}

		now := s.now()
		w := &domain.Withdrawal{
			AccountID:     accountID,
			Amount:        req.Amount,
			Method:        req.Method,
			AccountNumber: req.AccountNumber,
			Status:        domain.WithdrawalStatusPending,
			CreatedAt:     now,
		}
		if err := tx.InsertWithdrawal(ctx, w); err != nil {
			return err
		}
		res = &WithdrawalResult{Allowed: true, Withdrawal: w}
		return tx.InsertAudit(ctx, &domain.AuditLog{
			AccountID: accountID,
			Action:    domain.AuditActionWithdrawRequest,
			Category:  domain.AuditCategoryWithdrawal,
			Details: map[string]any{
				"withdrawal_id": w.ID,
				"amount":        w.Amount.String(),
				"method":        string(w.Method),
			},
			CreatedAt: now,
		})
	})
	if err != nil {
		return nil, fmt.Errorf("create withdrawal for %d: %w", accountID, err)
	}

	if !res.Allowed {
		metrics.PolicyDenials.WithLabelValues("withdraw", string(res.Reason)).Inc()
		return res, nil
	}

	w := *res.Withdrawal
	metrics.WithdrawalsTotal.WithLabelValues(string(domain.WithdrawalStatusPending)).Inc()
	logger.WithContext(ctx).Info("withdrawal requested", "withdrawal_id", w.ID, "account_id", accountID, "amount", w.Amount.String())
	dispatch("withdrawal_created", func(ctx context.Context) error {
		return s.notifier.NotifyWithdrawalCreated(ctx, acc, &w)
	})
	s.events.Publish(accountID, domain.Event{Type: domain.EventWithdrawal, Payload: w})
	return res, nil
}

// Resolve - решение админа. Повторное решение по заявке - ErrInvalidTransition.
// Блокировки: сначала заявка, потом аккаунт.
func (s *WithdrawalService) Resolve(ctx context.Context, adminTgID, withdrawalID int64, decision domain.Decision, notes string) (*domain.Withdrawal, error) {
	if decision != domain.DecisionApprove && decision != domain.DecisionReject {
		return nil, domain.ErrInvalidDecision
	}

	var (
		w   *domain.Withdrawal
		acc *domain.Account
	)
	err := s.store.InTx(ctx, func(tx repository.Tx) error {
		var err error
		w, err = tx.GetWithdrawalForUpdate(ctx, withdrawalID)
		if err != nil {
			return err
		}
		if w.Status.Terminal() {
			return domain.TransitionError(w.ID, w.Status)
		}
		acc, err = tx.GetAccountForUpdate(ctx, w.AccountID)
		if err != nil {
			return err
		}

		now := s.now()
		action := domain.AuditActionWithdrawReject
		w.Status = domain.WithdrawalStatusRejected
		if decision == domain.DecisionApprove {
			if w.Amount.GreaterThan(acc.Balance) {
				return domain.Deny(domain.ReasonInsufficientBalance)
			}
			acc.Balance = acc.Balance.Sub(w.Amount)
			acc.TotalWithdrawn = acc.TotalWithdrawn.Add(w.Amount)
			acc.UpdatedAt = now
			if err := tx.UpdateAccount(ctx, acc); err != nil {
				return err
			}
			action = domain.AuditActionWithdrawApprove
			w.Status = domain.WithdrawalStatusApproved
		}

		admin := adminTgID
		w.ResolvedBy = &admin
		w.ResolvedAt = &now
		w.AdminNotes = strings.TrimSpace(notes)
		if err := tx.UpdateWithdrawal(ctx, w); err != nil {
			return err
		}
		return tx.InsertAudit(ctx, &domain.AuditLog{
			AccountID: acc.ID,
			ActorID:   adminTgID,
			Action:    action,
			Category:  domain.AuditCategoryWithdrawal,
			Details: map[string]any{
				"withdrawal_id": w.ID,
				"amount":        w.Amount.String(),
				"notes":         w.AdminNotes,
			},
			CreatedAt: now,
		})
	})
	if err != nil {
		return nil, fmt.Errorf("resolve withdrawal %d: %w", withdrawalID, err)
	}

	metrics.WithdrawalsTotal.WithLabelValues(string(w.Status)).Inc()
	logger.WithContext(ctx).Info("withdrawal resolved", "withdrawal_id", w.ID, "status", w.Status, "admin", adminTgID)

	resolved := *w
	dispatch("withdrawal_resolved", func(ctx context.Context) error {
		return s.notifier.NotifyWithdrawalResolved(ctx, acc, &resolved)
	})
	s.events.Publish(acc.ID, domain.Event{Type: domain.EventWithdrawal, Payload: resolved})
	if resolved.Status == domain.WithdrawalStatusApproved {
		s.events.Publish(acc.ID, balanceEvent(acc, resolved.Amount.Neg(), ""))
	}
	return &resolved, nil
}

// ListPending - очередь на рассмотрение, старые первыми
func (s *WithdrawalService) ListPending(ctx context.Context, limit int) ([]domain.Withdrawal, error) {
	return s.store.ListWithdrawals(ctx, domain.WithdrawalFilter{Status: domain.WithdrawalStatusPending, Limit: limit})
}

// History - заявки пользователя, новые первыми
func (s *WithdrawalService) History(ctx context.Context, accountID int64, limit int) ([]domain.Withdrawal, error) {
	return s.store.ListWithdrawals(ctx, domain.WithdrawalFilter{AccountID: accountID, Limit: limit})
}
