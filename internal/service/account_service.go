package service

import (
	"context"
	"errors"
	"fmt"
	"time"

	"earning_bot/internal/domain"
	"earning_bot/internal/logger"
	"earning_bot/internal/policy"
	"earning_bot/internal/repository"

	"github.com/shopspring/decimal"
)

// сколько раз пробуем сгенерировать свободный реферальный код
const maxCodeAttempts = 5

// LoginResult - итог первого контакта или очередного захода
type LoginResult struct {
	Account  *domain.Account `json:"account"`
	Created  bool            `json:"created"`
	Referred bool            `json:"referred"`
	// StreakAdvanced - сегодня первый заход, стрик пересчитан
	StreakAdvanced bool            `json:"streak_advanced"`
	Bonus          decimal.Decimal `json:"bonus"`
}

// AccountService - регистрация, стрик входа, бан и статистика
type AccountService struct {
	store       repository.Store
	settings    *SettingsService
	ledger      *LedgerService
	events      EventPublisher
	botUsername string
	now         func() time.Time
	loc         *time.Location
}

func NewAccountService(store repository.Store, settings *SettingsService, ledger *LedgerService, events EventPublisher, botUsername string, loc *time.Location) *AccountService {
	if events == nil {
		events = nopPublisher{}
	}
	if loc == nil {
		loc = time.UTC
	}
	return &AccountService{
		store:       store,
		settings:    settings,
		ledger:      ledger,
		events:      events,
		botUsername: botUsername,
		now:         time.Now,
		loc:         loc,
	}
}

// RegisterOrTouch создает аккаунт при первом контакте или отмечает заход.
// refCode учитывается только при создании; свой и неизвестный код игнорируются.
func (s *AccountService) RegisterOrTouch(ctx context.Context, p domain.Profile, refCode string) (*LoginResult, error) {
	if p.TgID == 0 {
		return nil, domain.ErrInvalidProfile
	}
	cfg, err := s.settings.EarningConfig(ctx)
	if err != nil {
		return nil, err
	}
	now := s.now()
	today := policy.Today(now, s.loc)

	var (
		res     *LoginResult
		entries []*domain.LedgerEntry
	)
	err = s.store.InTx(ctx, func(tx repository.Tx) error {
		res, entries = nil, nil

		acc, err := tx.GetAccountByTgIDForUpdate(ctx, p.TgID)
		if err == nil {
			res, entries, err = s.touch(ctx, tx, acc, p, cfg, now, today)
			return err
		}
		if !errors.Is(err, domain.ErrAccountNotFound) {
			return err
		}

		var referrer *domain.Account
		if code := repository.NormalizeReferralCode(refCode); code != "" {
			r, err := tx.GetAccountByReferralCodeForUpdate(ctx, code)
			switch {
			case err == nil && r.TgID != p.TgID:
				referrer = r
			case err != nil && !errors.Is(err, domain.ErrAccountNotFound):
				return err
			}
		}

		for attempt := 0; attempt < maxCodeAttempts; attempt++ {
			acc = &domain.Account{
				TgID:          p.TgID,
				Username:      p.Username,
				FirstName:     p.FirstName,
				LastName:      p.LastName,
				ReferralCode:  repository.GenerateReferralCode(),
				LoginStreak:   1,
				LastLoginDate: &today,
				CreatedAt:     now,
				UpdatedAt:     now,
			}
			if referrer != nil {
				acc.ReferredBy = &referrer.ID
			}
			inserted, err := tx.InsertAccount(ctx, acc)
			if err != nil {
				return err
			}
			if inserted {
				res = &LoginResult{Account: acc, Created: true, StreakAdvanced: true}
				return s.attachReferral(ctx, tx, acc, referrer, res, now)
			}

			// конфликт: либо параллельный первый контакт, либо занят код
			existing, err := tx.GetAccountByTgIDForUpdate(ctx, p.TgID)
			if err == nil {
				res, entries, err = s.touch(ctx, tx, existing, p, cfg, now, today)
				return err
			}
			if !errors.Is(err, domain.ErrAccountNotFound) {
				return err
			}
		}
		return domain.ErrCodeExhausted
	})
	if err != nil {
		return nil, fmt.Errorf("register or touch %d: %w", p.TgID, err)
	}

	recordRewards(entries...)
	if res.Created {
		logger.WithContext(ctx).Info("account registered", "account_id", res.Account.ID, "tg_id", p.TgID, "referred", res.Referred)
	}
	if res.Bonus.IsPositive() {
		s.events.Publish(res.Account.ID, balanceEvent(res.Account, res.Bonus, domain.LedgerKindBonus))
	}
	return res, nil
}

func (s *AccountService) attachReferral(ctx context.Context, tx repository.Tx, acc, referrer *domain.Account, res *LoginResult, now time.Time) error {
	details := map[string]any{"tg_id": acc.TgID}
	if referrer != nil {
		edge := &domain.ReferralEdge{ReferrerID: referrer.ID, ReferredID: acc.ID, IsActive: true, CreatedAt: now}
		ok, err := tx.InsertReferral(ctx, edge)
		if err != nil {
			return err
		}
		if ok {
			referrer.ReferralCount++
			referrer.ActiveReferralCount++
			referrer.UpdatedAt = now
			if err := tx.UpdateAccount(ctx, referrer); err != nil {
				return err
			}
			res.Referred = true
			details["referrer_id"] = referrer.ID
			details["referral_id"] = edge.ID
		}
	}
	return tx.InsertAudit(ctx, &domain.AuditLog{
		AccountID: acc.ID,
		Action:    domain.AuditActionRegister,
		Category:  domain.AuditCategoryAccount,
		Details:   details,
		CreatedAt: now,
	})
}

// touch обновляет профиль и стрик; бонусы только при смене дня
func (s *AccountService) touch(ctx context.Context, tx repository.Tx, acc *domain.Account, p domain.Profile, cfg domain.EarningConfig, now, today time.Time) (*LoginResult, []*domain.LedgerEntry, error) {
	if p.Username != "" {
		acc.Username = p.Username
	}
	if p.FirstName != "" {
		acc.FirstName = p.FirstName
	}
	if p.LastName != "" {
		acc.LastName = p.LastName
	}
	acc.UpdatedAt = now
	res := &LoginResult{Account: acc}

	d := policy.EvaluateLogin(acc.LastLoginDate, acc.LoginStreak, today)
	if !d.Advanced {
		return res, nil, tx.UpdateAccount(ctx, acc)
	}
	res.StreakAdvanced = true
	acc.LoginStreak = d.Streak
	acc.LastLoginDate = &today

	// забаненный сохраняет стрик, но без бонусов
	if acc.IsBanned {
		return res, nil, tx.UpdateAccount(ctx, acc)
	}

	var entries []*domain.LedgerEntry
	if cfg.DailyLoginBonus.IsPositive() {
		e, err := s.ledger.ApplyReward(ctx, tx, acc, Reward{
			Kind:        domain.LedgerKindBonus,
			Amount:      cfg.DailyLoginBonus,
			Description: "daily login bonus",
		})
		if err != nil {
			return nil, nil, err
		}
		entries = append(entries, e)
		res.Bonus = res.Bonus.Add(e.Amount)
	}
	if bonus, ok := policy.StreakBonus(cfg, d.Streak); ok {
		e, err := s.ledger.ApplyReward(ctx, tx, acc, Reward{
			Kind:        domain.LedgerKindBonus,
			Amount:      bonus,
			Description: fmt.Sprintf("login streak day %d", d.Streak),
		})
		if err != nil {
			return nil, nil, err
		}
		entries = append(entries, e)
		res.Bonus = res.Bonus.Add(e.Amount)
	}
	return res, entries, tx.UpdateAccount(ctx, acc)
}

func (s *AccountService) Get(ctx context.Context, id int64) (*domain.Account, error) {
	return s.store.GetAccount(ctx, id)
}

func (s *AccountService) GetByTgID(ctx context.Context, tgID int64) (*domain.Account, error) {
	return s.store.GetAccountByTgID(ctx, tgID)
}

// ReferralLink - deep-link бота с кодом пользователя
func (s *AccountService) ReferralLink(acc *domain.Account) string {
	if s.botUsername == "" {
		return ""
	}
	return "https://t.me/" + s.botUsername + "?start=ref_" + acc.ReferralCode
}

// GetStats собирает экран статистики пользователя
func (s *AccountService) GetStats(ctx context.Context, accountID int64) (*domain.AccountStats, error) {
	acc, err := s.store.GetAccount(ctx, accountID)
	if err != nil {
		return nil, err
	}
	today := policy.Today(s.now(), s.loc)
	since := policy.DayStart(today, s.loc)

	earned, err := s.store.SumLedger(ctx, domain.LedgerFilter{AccountID: accountID, Since: &since})
	if err != nil {
		return nil, err
	}
	wd, err := s.store.SummarizeWithdrawals(ctx, accountID)
	if err != nil {
		return nil, err
	}
	done, err := s.store.CompletedTaskIDs(ctx, accountID, today)
	if err != nil {
		return nil, err
	}

	stats := &domain.AccountStats{
		Account:            *acc,
		TodayEarnings:      earned,
		TotalWithdrawals:   wd.Total,
		PendingWithdrawals: wd.Pending,
		CompletedTasks:     len(done),
		ReferralLink:       s.ReferralLink(acc),
	}
	stats.Account.AdsWatchedToday = policy.AdsToday(acc, today)
	return stats, nil
}

// ListAccounts - постраничный список для админки, page с 1
func (s *AccountService) ListAccounts(ctx context.Context, page, limit int) (*domain.AccountPage, error) {
	if page < 1 {
		page = 1
	}
	if limit <= 0 || limit > 100 {
		limit = 20
	}
	accounts, total, err := s.store.ListAccounts(ctx, (page-1)*limit, limit)
	if err != nil {
		return nil, err
	}
	pages := (total + limit - 1) / limit
	return &domain.AccountPage{Accounts: accounts, Total: total, Page: page, Pages: pages}, nil
}

// PlatformStats - сводка для админки
func (s *AccountService) PlatformStats(ctx context.Context) (*domain.PlatformStats, error) {
	return s.store.PlatformStats(ctx, policy.Today(s.now(), s.loc))
}

// SetBanned банит или разбанивает; adminTgID попадает в аудит
func (s *AccountService) SetBanned(ctx context.Context, adminTgID, accountID int64, banned bool) (*domain.Account, error) {
	return s.changeBan(ctx, adminTgID, accountID, func(bool) bool { return banned })
}

// ToggleBanned инвертирует бан под блокировкой строки
func (s *AccountService) ToggleBanned(ctx context.Context, adminTgID, accountID int64) (*domain.Account, error) {
	return s.changeBan(ctx, adminTgID, accountID, func(cur bool) bool { return !cur })
}

func (s *AccountService) changeBan(ctx context.Context, adminTgID, accountID int64, next func(cur bool) bool) (*domain.Account, error) {
	var acc *domain.Account
	err := s.store.InTx(ctx, func(tx repository.Tx) error {
		var err error
		acc, err = tx.GetAccountForUpdate(ctx, accountID)
		if err != nil {
			return err
		}
		now := s.now()
		acc.IsBanned = next(acc.IsBanned)
		acc.UpdatedAt = now
		if err := tx.UpdateAccount(ctx, acc); err != nil {
			return err
		}
		action := domain.AuditActionAdminUnbanUser
		if acc.IsBanned {
			action = domain.AuditActionAdminBanUser
		}
		return tx.InsertAudit(ctx, &domain.AuditLog{
			AccountID: accountID,
			ActorID:   adminTgID,
			Action:    action,
			Category:  domain.AuditCategoryAdmin,
			Details:   map[string]any{"tg_id": acc.TgID},
			CreatedAt: now,
		})
	})
	if err != nil {
		return nil, fmt.Errorf("set banned %d: %w", accountID, err)
	}
	logger.WithContext(ctx).Info("account ban changed", "account_id", accountID, "banned", acc.IsBanned, "admin", adminTgID)
	return acc, nil
}
