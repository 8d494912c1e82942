package service

import (
	"context"
	"time"

	"earning_bot/internal/domain"
	"earning_bot/internal/logger"
	"earning_bot/internal/metrics"

	"github.com/shopspring/decimal"
)

// Notifier - исходящие сообщения в телеграм (админам и пользователям)
type Notifier interface {
	NotifyWithdrawalCreated(ctx context.Context, acc *domain.Account, w *domain.Withdrawal) error
	NotifyWithdrawalResolved(ctx context.Context, acc *domain.Account, w *domain.Withdrawal) error
	NotifyReferralBonus(ctx context.Context, referrer *domain.Account, amount decimal.Decimal) error
}

// EventPublisher пушит события в открытые вебсокеты пользователя
type EventPublisher interface {
	Publish(accountID int64, ev domain.Event)
}

const notifyTimeout = 10 * time.Second

// dispatch шлет уведомление в фоне: ошибка доставки не откатывает операцию
func dispatch(name string, fn func(ctx context.Context) error) {
	go func() {
		ctx, cancel := context.WithTimeout(context.Background(), notifyTimeout)
		defer cancel()
		if err := fn(ctx); err != nil {
			metrics.NotificationFailures.Inc()
			logger.Error("notification failed", "kind", name, "error", err)
		}
	}()
}

type nopNotifier struct{}

func (nopNotifier) NotifyWithdrawalCreated(context.Context, *domain.Account, *domain.Withdrawal) error {
	return nil
}
func (nopNotifier) NotifyWithdrawalResolved(context.Context, *domain.Account, *domain.Withdrawal) error {
	return nil
}
func (nopNotifier) NotifyReferralBonus(context.Context, *domain.Account, decimal.Decimal) error {
	return nil
}

type nopPublisher struct{}

func (nopPublisher) Publish(int64, domain.Event) {}

// BalancePayload - содержимое события balance
type BalancePayload struct {
	Balance decimal.Decimal   `json:"balance"`
	Delta   decimal.Decimal   `json:"delta"`
	Kind    domain.LedgerKind `json:"kind,omitempty"`
}

func balanceEvent(acc *domain.Account, delta decimal.Decimal, kind domain.LedgerKind) domain.Event {
	return domain.Event{Type: domain.EventBalance, Payload: BalancePayload{Balance: acc.Balance, Delta: delta, Kind: kind}}
}
