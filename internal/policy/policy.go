// Package policy решает, разрешено ли действие и сколько начислить.
// Никакого I/O: на вход снимок аккаунта, настройки и текущее время.
package policy

import (
	"time"

	"earning_bot/internal/domain"

	"github.com/shopspring/decimal"
)

// Today возвращает календарный день момента now в поясе loc,
// нормализованный к полуночи UTC (так DATE приходит из postgres)
func Today(now time.Time, loc *time.Location) time.Time {
	if loc == nil {
		loc = time.UTC
	}
	y, m, d := now.In(loc).Date()
	return time.Date(y, m, d, 0, 0, 0, 0, time.UTC)
}

// DayStart - начало дня day в поясе loc, для выборок по created_at
func DayStart(day time.Time, loc *time.Location) time.Time {
	if loc == nil {
		loc = time.UTC
	}
	return time.Date(day.Year(), day.Month(), day.Day(), 0, 0, 0, 0, loc)
}

func sameDay(a, b time.Time) bool {
	ay, am, ad := a.Date()
	by, bm, bd := b.Date()
	return ay == by && am == bm && ad == bd
}

func daysBetween(from, to time.Time) int {
	f := time.Date(from.Year(), from.Month(), from.Day(), 0, 0, 0, 0, time.UTC)
	t := time.Date(to.Year(), to.Month(), to.Day(), 0, 0, 0, 0, time.UTC)
	return int(t.Sub(f).Hours() / 24)
}

// AdState - состояние аккаунта относительно просмотра рекламы
type AdState string

const (
	AdEligible          AdState = "ELIGIBLE"
	AdCooldown          AdState = "COOLDOWN"
	AdDailyLimitReached AdState = "DAILY_LIMIT_REACHED"
	AdBanned            AdState = "BANNED"
)

// AdDecision - итог проверки
type AdDecision struct {
	State            AdState
	Reason           domain.Reason
	AdsToday         int // счетчик после ленивого сброса
	RemainingSeconds int
}

// AdsToday - счетчик за сегодня с учетом смены дня
func AdsToday(a *domain.Account, today time.Time) int {
	if a.AdsDay == nil || !sameDay(*a.AdsDay, today) {
		return 0
	}
	return a.AdsWatchedToday
}

// EvaluateAd: бан, потом дневной лимит, потом кулдаун
func EvaluateAd(a *domain.Account, cfg domain.EarningConfig, now, today time.Time) AdDecision {
	d := AdDecision{AdsToday: AdsToday(a, today)}

	if a.IsBanned {
		d.State, d.Reason = AdBanned, domain.ReasonAccountBanned
		return d
	}
	if d.AdsToday >= cfg.AdDailyLimit {
		d.State, d.Reason = AdDailyLimitReached, domain.ReasonDailyLimitReached
		return d
	}
	if a.LastAdWatchAt != nil && cfg.AdCooldownSeconds > 0 {
		cooldown := time.Duration(cfg.AdCooldownSeconds) * time.Second
		elapsed := now.Sub(*a.LastAdWatchAt)
		if elapsed < cooldown {
			left := cooldown - elapsed
			secs := int(left / time.Second)
			if left%time.Second != 0 {
				secs++
			}
			d.State, d.Reason, d.RemainingSeconds = AdCooldown, domain.ReasonCooldownActive, secs
			return d
		}
	}
	d.State = AdEligible
	return d
}

// LoginDecision - что делать со стриком при очередном заходе
type LoginDecision struct {
	Advanced bool // наступил новый день для аккаунта
	Streak   int
}

// EvaluateLogin: тот же день - ничего, следующий день - +1, иначе сброс на 1
func EvaluateLogin(lastLogin *time.Time, streak int, today time.Time) LoginDecision {
	if lastLogin == nil {
		return LoginDecision{Advanced: true, Streak: 1}
	}
	switch gap := daysBetween(*lastLogin, today); {
	case gap == 0:
		return LoginDecision{Streak: streak}
	case gap == 1:
		return LoginDecision{Advanced: true, Streak: streak + 1}
	default:
		return LoginDecision{Advanced: true, Streak: 1}
	}
}

// StreakBonus - бонус из расписания по индексу (streak-1) mod len
func StreakBonus(cfg domain.EarningConfig, streak int) (decimal.Decimal, bool) {
	n := len(cfg.StreakBonus)
	if n == 0 || streak < 1 {
		return decimal.Zero, false
	}
	bonus := cfg.StreakBonus[(streak-1)%n]
	return bonus, bonus.IsPositive()
}

// EvaluateTask - доступно ли задание сегодня; completedToday - число выполнений за день
func EvaluateTask(a *domain.Account, t *domain.Task, completedToday int) domain.Reason {
	switch {
	case a.IsBanned:
		return domain.ReasonAccountBanned
	case !t.IsActive:
		return domain.ReasonTaskInactive
	case completedToday > 0:
		return domain.ReasonAlreadyCompleted
	case completedToday >= t.DailyLimit:
		return domain.ReasonDailyLimitReached
	}
	return ""
}

// EvaluateWithdrawal проверяет заявку против текущего баланса
func EvaluateWithdrawal(a *domain.Account, amount decimal.Decimal, method domain.WithdrawMethod, destination string, cfg domain.EarningConfig) domain.Reason {
	switch {
	case a.IsBanned:
		return domain.ReasonAccountBanned
	case !cfg.AllowsMethod(method):
		return domain.ReasonInvalidMethod
	case destination == "":
		return domain.ReasonInvalidDestination
	case amount.LessThan(cfg.MinWithdraw) || !amount.IsPositive():
		return domain.ReasonBelowMinimum
	case amount.GreaterThan(a.Balance):
		return domain.ReasonInsufficientBalance
	}
	return ""
}

// EvaluateReferralBonus - условия выплаты бонуса пригласившему:
// связь активна, оба не забанены, приглашенный посмотрел >= referral_activation_ads реклам
func EvaluateReferralBonus(edge *domain.ReferralEdge, referrer, referred *domain.Account, cfg domain.EarningConfig) domain.Reason {
	switch {
	case edge.BonusPaid:
		return domain.ReasonBonusAlreadyPaid
	case !edge.IsActive:
		return domain.ReasonReferralInactive
	case referrer.IsBanned:
		return domain.ReasonAccountBanned
	case referred.IsBanned:
		return domain.ReasonReferralInactive
	case referred.AdsWatchedTotal < cfg.ReferralActivationAds:
		return domain.ReasonReferralNotEngaged
	}
	return ""
}
