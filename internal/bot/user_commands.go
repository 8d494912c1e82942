package bot

import (
	"context"
	"errors"
	"fmt"
	"html"
	"strings"

	"earning_bot/internal/domain"

	tgbotapi "github.com/go-telegram-bot-api/telegram-bot-api/v5"
)

const userHelp = `<b>Команды</b>

/start - Открыть приложение
/balance - Баланс и заработок за сегодня
/ref - Реферальная ссылка`

// /start [ref_CODE] - регистрация по deep-link, код учитывается только у нового аккаунта
func (b *Bot) handleStart(ctx context.Context, msg *tgbotapi.Message) string {
	profile := domain.Profile{
		TgID:      msg.From.ID,
		Username:  msg.From.UserName,
		FirstName: msg.From.FirstName,
		LastName:  msg.From.LastName,
	}
	res, err := b.accounts.RegisterOrTouch(ctx, profile, strings.TrimSpace(msg.CommandArguments()))
	if err != nil {
		b.log.Error("register from bot failed", "tg_id", msg.From.ID, "error", err)
		return "Ошибка, попробуйте позже"
	}

	var sb strings.Builder
	fmt.Fprintf(&sb, "🎉 <b>Добро пожаловать, %s!</b>\n\n", html.EscapeString(res.Account.DisplayName()))
	sb.WriteString("✅ Смотрите рекламу\n✅ Выполняйте задания\n✅ Приглашайте друзей\n✅ Выводите на bKash, Nagad, Rocket\n\n")
	if res.Referred {
		sb.WriteString("👥 Вы пришли по приглашению друга\n")
	}
	if res.Bonus.IsPositive() {
		fmt.Fprintf(&sb, "🎁 Бонус за вход: %s৳ (серия %d дн.)\n", res.Bonus.StringFixed(2), res.Account.LoginStreak)
	}
	fmt.Fprintf(&sb, "\n💰 Баланс: %s৳", res.Account.Balance.StringFixed(2))
	return sb.String()
}

func (b *Bot) handleBalance(ctx context.Context, tgID int64) string {
	acc, err := b.accounts.GetByTgID(ctx, tgID)
	if errors.Is(err, domain.ErrAccountNotFound) {
		return "Сначала нажмите /start"
	}
	if err != nil {
		return fmt.Sprintf("Ошибка: %v", err)
	}
	stats, err := b.accounts.GetStats(ctx, acc.ID)
	if err != nil {
		return fmt.Sprintf("Ошибка: %v", err)
	}

	return fmt.Sprintf(`<b>💰 Баланс: %s৳</b>

Сегодня заработано: %s৳
Реклама сегодня: %d
Серия входов: %d дн.
Всего заработано: %s৳
Выведено: %s৳
Заявок в ожидании: %d`,
		stats.Account.Balance.StringFixed(2),
		stats.TodayEarnings.StringFixed(2),
		stats.Account.AdsWatchedToday,
		stats.Account.LoginStreak,
		stats.Account.TotalEarned.StringFixed(2),
		stats.Account.TotalWithdrawn.StringFixed(2),
		stats.PendingWithdrawals,
	)
}

func (b *Bot) handleRef(ctx context.Context, tgID int64) string {
	acc, err := b.accounts.GetByTgID(ctx, tgID)
	if errors.Is(err, domain.ErrAccountNotFound) {
		return "Сначала нажмите /start"
	}
	if err != nil {
		return fmt.Sprintf("Ошибка: %v", err)
	}

	return fmt.Sprintf(`<b>👥 Приглашайте друзей</b>

Ваша ссылка:
%s

Приглашено: %d
Активных: %d`,
		b.accounts.ReferralLink(acc), acc.ReferralCount, acc.ActiveReferralCount)
}
