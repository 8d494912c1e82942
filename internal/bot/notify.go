package bot

import (
	"context"
	"errors"
	"fmt"
	"html"

	"earning_bot/internal/domain"

	tgbotapi "github.com/go-telegram-bot-api/telegram-bot-api/v5"
	"github.com/shopspring/decimal"
)

func (b *Bot) send(chatID int64, text string) error {
	msg := tgbotapi.NewMessage(chatID, text)
	msg.ParseMode = tgbotapi.ModeHTML
	_, err := b.api.Send(msg)
	return err
}

// NotifyAdmins рассылает сообщение всем админам; ошибка, если не дошло хотя бы одному
func (b *Bot) NotifyAdmins(_ context.Context, text string) error {
	var errs []error
	for _, adminID := range b.adminIDs {
		if err := b.send(adminID, text); err != nil {
			b.log.Error("failed to notify admin", "admin_id", adminID, "error", err)
			errs = append(errs, fmt.Errorf("admin %d: %w", adminID, err))
		}
	}
	return errors.Join(errs...)
}

// NotifyWithdrawalCreated - новая заявка уходит всем админам с подсказкой команд
func (b *Bot) NotifyWithdrawalCreated(ctx context.Context, acc *domain.Account, w *domain.Withdrawal) error {
	message := fmt.Sprintf(`<b>Новый запрос на вывод!</b>

Пользователь: %s (TG: %d)
Сумма: %s৳
Метод: %s
Номер: <code>%s</code>
Баланс: %s৳

ID: #%d

/approve %d - одобрить
/reject %d причина - отклонить`,
		html.EscapeString(acc.DisplayName()), acc.TgID, w.Amount.StringFixed(2), w.Method,
		html.EscapeString(w.AccountNumber), acc.Balance.StringFixed(2), w.ID, w.ID, w.ID)

	return b.NotifyAdmins(ctx, message)
}

// NotifyWithdrawalResolved сообщает пользователю решение по заявке
func (b *Bot) NotifyWithdrawalResolved(_ context.Context, acc *domain.Account, w *domain.Withdrawal) error {
	var message string
	if w.Status == domain.WithdrawalStatusApproved {
		message = fmt.Sprintf(`<b>Вывод выполнен!</b>

Сумма: %s৳
Метод: %s
Номер: <code>%s</code>`, w.Amount.StringFixed(2), w.Method, html.EscapeString(w.AccountNumber))
	} else {
		message = fmt.Sprintf(`<b>Вывод отклонён</b>

Сумма: %s৳ (баланс не списан)`, w.Amount.StringFixed(2))
	}
	if w.AdminNotes != "" {
		message += "\nКомментарий: " + html.EscapeString(w.AdminNotes)
	}
	return b.send(acc.TgID, message)
}

// NotifyReferralBonus - пригласившему пришел бонус
func (b *Bot) NotifyReferralBonus(_ context.Context, referrer *domain.Account, amount decimal.Decimal) error {
	return b.send(referrer.TgID, fmt.Sprintf("👥 <b>Реферальный бонус!</b>\n\nНачислено: %s৳\nБаланс: %s৳",
		amount.StringFixed(2), referrer.Balance.StringFixed(2)))
}
