package domain

import (
	"strconv"
	"time"

	"github.com/shopspring/decimal"
)

// Account - пользователь бота со своим балансом и счетчиками.
// Физически не удаляется, вместо этого is_banned.
type Account struct {
	ID        int64  `db:"id" json:"id"`
	TgID      int64  `db:"tg_id" json:"tg_id"`
	Username  string `db:"username" json:"username"`
	FirstName string `db:"first_name" json:"first_name"`
	LastName  string `db:"last_name" json:"last_name,omitempty"`

	Balance        decimal.Decimal `db:"balance" json:"balance"`
	TotalEarned    decimal.Decimal `db:"total_earned" json:"total_earned"`
	TotalWithdrawn decimal.Decimal `db:"total_withdrawn" json:"total_withdrawn"`

	AdsWatchedToday int        `db:"ads_watched_today" json:"ads_watched_today"`
	AdsDay          *time.Time `db:"ads_day" json:"ads_day,omitempty"` // день, к которому относится ads_watched_today
	AdsWatchedTotal int        `db:"ads_watched_total" json:"ads_watched_total"`
	LastAdWatchAt   *time.Time `db:"last_ad_watch_at" json:"last_ad_watch_at,omitempty"`

	LoginStreak   int        `db:"login_streak" json:"login_streak"`
	LastLoginDate *time.Time `db:"last_login_date" json:"last_login_date,omitempty"`

	ReferralCode        string `db:"referral_code" json:"referral_code"`
	ReferredBy          *int64 `db:"referred_by" json:"referred_by,omitempty"`
	ReferralCount       int    `db:"referral_count" json:"referral_count"`
	ActiveReferralCount int    `db:"active_referral_count" json:"active_referral_count"`

	IsBanned  bool      `db:"is_banned" json:"is_banned"`
	CreatedAt time.Time `db:"created_at" json:"created_at"`
	UpdatedAt time.Time `db:"updated_at" json:"updated_at"`
}

// Profile - то, что приходит от телеграма при первом контакте
type Profile struct {
	TgID      int64  `json:"id"`
	Username  string `json:"username"`
	FirstName string `json:"first_name"`
	LastName  string `json:"last_name"`
}

// DisplayName для сообщений бота
func (a *Account) DisplayName() string {
	if a.Username != "" {
		return "@" + a.Username
	}
	if a.FirstName != "" {
		return a.FirstName
	}
	return "id:" + strconv.FormatInt(a.TgID, 10)
}

// AccountStats - снимок для экрана статистики
type AccountStats struct {
	Account            Account         `json:"account"`
	TodayEarnings      decimal.Decimal `json:"today_earnings"`
	PendingWithdrawals int             `json:"pending_withdrawals"`
	TotalWithdrawals   int             `json:"total_withdrawals"`
	CompletedTasks     int             `json:"completed_tasks_today"`
	ReferralLink       string          `json:"referral_link,omitempty"`
}

// PlatformStats для админки
type PlatformStats struct {
	TotalAccounts      int64           `json:"total_accounts"`
	BannedAccounts     int64           `json:"banned_accounts"`
	ActiveToday        int64           `json:"active_today"`
	TotalBalance       decimal.Decimal `json:"total_balance"`
	TotalEarned        decimal.Decimal `json:"total_earned"`
	TotalWithdrawn     decimal.Decimal `json:"total_withdrawn"`
	PendingWithdrawals int64           `json:"pending_withdrawals"`
	PendingAmount      decimal.Decimal `json:"pending_amount"`
}

// AccountPage - страница списка пользователей
type AccountPage struct {
	Accounts []Account `json:"accounts"`
	Total    int       `json:"total"`
	Page     int       `json:"page"`
	Pages    int       `json:"pages"`
}
