package service

import (
	"context"
	"fmt"
	"time"

	"earning_bot/internal/domain"
	"earning_bot/internal/logger"
	"earning_bot/internal/metrics"
	"earning_bot/internal/policy"
	"earning_bot/internal/repository"

	"github.com/shopspring/decimal"
)

// ReferralResult - итог попытки выплатить бонус
type ReferralResult struct {
	Allowed  bool                 `json:"allowed"`
	Reason   domain.Reason        `json:"reason,omitempty"`
	Amount   decimal.Decimal      `json:"amount"`
	Referral *domain.ReferralEdge `json:"referral,omitempty"`
}

// ReferralService - бонусы пригласившим
type ReferralService struct {
	store    repository.Store
	settings *SettingsService
	ledger   *LedgerService
	notifier Notifier
	events   EventPublisher
	now      func() time.Time
}

func NewReferralService(store repository.Store, settings *SettingsService, ledger *LedgerService, notifier Notifier, events EventPublisher) *ReferralService {
	if notifier == nil {
		notifier = nopNotifier{}
	}
	if events == nil {
		events = nopPublisher{}
	}
	return &ReferralService{store: store, settings: settings, ledger: ledger, notifier: notifier, events: events, now: time.Now}
}

func (s *ReferralService) SetNotifier(n Notifier) {
	if n != nil {
		s.notifier = n
	}
}

// ClaimBonus платит бонус по связи ровно один раз; повтор - bonus_already_paid
func (s *ReferralService) ClaimBonus(ctx context.Context, adminTgID, referralID int64) (*ReferralResult, error) {
	cfg, err := s.settings.EarningConfig(ctx)
	if err != nil {
		return nil, err
	}

	var (
		res      *ReferralResult
		entry    *domain.LedgerEntry
		referrer *domain.Account
	)
	err = s.store.InTx(ctx, func(tx repository.Tx) error {
		res, entry = nil, nil
		edge, err := tx.GetReferralForUpdate(ctx, referralID)
		if err != nil {
			return err
		}
		res = &ReferralResult{Referral: edge}
		if edge.BonusPaid {
			res.Reason = domain.ReasonBonusAlreadyPaid
			return nil
		}

		// аккаунты блокируем по возрастанию id, чтобы не поймать дедлок
		first, second := edge.ReferrerID, edge.ReferredID
		if first > second {
			first, second = second, first
		}
		a, err := tx.GetAccountForUpdate(ctx, first)
		if err != nil {
			return err
		}
		b, err := tx.GetAccountForUpdate(ctx, second)
		if err != nil {
			return err
		}
		referred := b
		referrer = a
		if a.ID != edge.ReferrerID {
			referrer, referred = b, a
		}

		if reason := policy.EvaluateReferralBonus(edge, referrer, referred, cfg); reason != "" {
			res.Reason = reason
			return nil
		}
		if !cfg.ReferralBonus.IsPositive() {
			res.Reason = domain.ReasonReferralInactive
			return nil
		}

		id := edge.ID
		entry, err = s.ledger.ApplyReward(ctx, tx, referrer, Reward{
			Kind:        domain.LedgerKindReferral,
			Amount:      cfg.ReferralBonus,
			Description: fmt.Sprintf("referral bonus for account %d", referred.ID),
			ReferralID:  &id,
		})
		if err != nil {
			return err
		}

		now := s.now()
		edge.BonusPaid = true
		edge.PaidAt = &now
		res.Allowed = true
		res.Amount = entry.Amount
		return tx.InsertAudit(ctx, &domain.AuditLog{
			AccountID: referrer.ID,
			ActorID:   adminTgID,
			Action:    domain.AuditActionReferralPaid,
			Category:  domain.AuditCategoryReward,
			Details:   map[string]any{"referral_id": edge.ID, "referred_id": referred.ID, "amount": entry.Amount.String()},
			CreatedAt: now,
		})
	})
	if err != nil {
		return nil, fmt.Errorf("claim referral bonus %d: %w", referralID, err)
	}

	if !res.Allowed {
		metrics.PolicyDenials.WithLabelValues("referral_bonus", string(res.Reason)).Inc()
		return res, nil
	}
	recordRewards(entry)
	logger.WithContext(ctx).Info("referral bonus paid", "referral_id", referralID, "referrer_id", referrer.ID, "amount", entry.Amount.String())

	amount := entry.Amount
	dispatch("referral_bonus", func(ctx context.Context) error {
		return s.notifier.NotifyReferralBonus(ctx, referrer, amount)
	})
	s.events.Publish(referrer.ID, balanceEvent(referrer, amount, domain.LedgerKindReferral))
	return res, nil
}

// List - кого пригласил пользователь
func (s *ReferralService) List(ctx context.Context, referrerID int64) ([]domain.ReferralEdge, error) {
	return s.store.ListReferrals(ctx, referrerID)
}
