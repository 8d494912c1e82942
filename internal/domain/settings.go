package domain

import (
	"errors"
	"time"

	"github.com/shopspring/decimal"
)

// ключ в таблице settings
const SettingEarningConfig = "earning_config"

// Setting - версия растет на каждую запись
type Setting struct {
	Key       string    `db:"key" json:"key"`
	Value     []byte    `db:"value" json:"value"`
	Version   int64     `db:"version" json:"version"`
	UpdatedAt time.Time `db:"updated_at" json:"updated_at"`
}

// EarningConfig - ставки и лимиты, читаются один раз на запрос
type EarningConfig struct {
	AdReward              decimal.Decimal   `json:"ad_reward" yaml:"ad_reward"`
	AdDailyLimit          int               `json:"ad_daily_limit" yaml:"ad_daily_limit"`
	AdCooldownSeconds     int               `json:"ad_cooldown_seconds" yaml:"ad_cooldown_seconds"`
	ReferralBonus         decimal.Decimal   `json:"referral_bonus" yaml:"referral_bonus"`
	ReferralActivationAds int               `json:"referral_activation_ads" yaml:"referral_activation_ads"`
	MinWithdraw           decimal.Decimal   `json:"min_withdraw" yaml:"min_withdraw"`
	DailyLoginBonus       decimal.Decimal   `json:"daily_login_bonus" yaml:"daily_login_bonus"`
	StreakBonus           []decimal.Decimal `json:"streak_bonus" yaml:"streak_bonus"`
	WithdrawMethods       []WithdrawMethod  `json:"withdraw_methods" yaml:"withdraw_methods"`
}

// DefaultEarningConfig - значения, пока админ ничего не сохранил
func DefaultEarningConfig() EarningConfig {
	return EarningConfig{
		AdReward:          decimal.NewFromInt(5),
		AdDailyLimit:      10,
		AdCooldownSeconds: 60,
		ReferralBonus:     decimal.NewFromInt(10),
		MinWithdraw:       decimal.NewFromInt(100),
		DailyLoginBonus:   decimal.NewFromInt(5),
		StreakBonus: []decimal.Decimal{
			decimal.NewFromInt(5),
			decimal.NewFromInt(10),
			decimal.NewFromInt(15),
			decimal.NewFromInt(20),
			decimal.NewFromInt(25),
		},
		WithdrawMethods: []WithdrawMethod{MethodBkash, MethodNagad, MethodRocket},
	}
}

var ErrInvalidConfig = errors.New("некорректные настройки начислений")

// Validate отсекает отрицательные ставки и лимиты. Реклама без награды невозможна,
// суммы не точнее копейки (в БД NUMERIC(14,2)).
func (c EarningConfig) Validate() error {
	if !c.AdReward.IsPositive() {
		return ErrInvalidConfig
	}
	amounts := append([]decimal.Decimal{c.AdReward, c.ReferralBonus, c.MinWithdraw, c.DailyLoginBonus}, c.StreakBonus...)
	for _, a := range amounts {
		if a.IsNegative() || !IsCents(a) {
			return ErrInvalidConfig
		}
	}
	if c.AdDailyLimit < 0 || c.AdCooldownSeconds < 0 || c.ReferralActivationAds < 0 {
		return ErrInvalidConfig
	}
	if len(c.WithdrawMethods) == 0 {
		return ErrInvalidConfig
	}
	return nil
}

// IsCents - не больше двух знаков после запятой
func IsCents(d decimal.Decimal) bool {
	return d.Equal(d.Round(2))
}

// AllowsMethod - метод в списке разрешенных
func (c EarningConfig) AllowsMethod(m WithdrawMethod) bool {
	for _, allowed := range c.WithdrawMethods {
		if allowed == m {
			return true
		}
	}
	return false
}
