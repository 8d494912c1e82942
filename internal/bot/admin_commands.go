package bot

import (
	"context"
	"fmt"
	"html"
	"strconv"
	"strings"

	"earning_bot/internal/domain"
)

type actorKey struct{}

// tg id админа, выполняющего команду; уходит в аудит
func withActor(ctx context.Context, tgID int64) context.Context {
	return context.WithValue(ctx, actorKey{}, tgID)
}

func (b *Bot) actorID(ctx context.Context) int64 {
	id, _ := ctx.Value(actorKey{}).(int64)
	return id
}

func (b *Bot) handleAdminCommand(ctx context.Context, cmd, args string) string {
	switch cmd {
	case "help", "admin":
		return adminHelp
	case "stats":
		return b.handleStats(ctx)
	case "user":
		return b.handleUser(ctx, args)
	case "users":
		return b.handleUsers(ctx, args)
	case "ban":
		return b.handleBan(ctx, args, true)
	case "unban":
		return b.handleBan(ctx, args, false)
	case "withdrawals":
		return b.handleWithdrawals(ctx)
	case "approve":
		return b.handleResolve(ctx, args, domain.DecisionApprove)
	case "reject":
		return b.handleResolve(ctx, args, domain.DecisionReject)
	case "payref":
		return b.handlePayReferral(ctx, args)
	default:
		return "❌ Неизвестная команда. Используйте /help для списка команд."
	}
}

const adminHelp = `<b>🤖 Команды администратора</b>

<b>📊 Статистика:</b>
/stats - Статистика платформы

<b>👤 Управление пользователями:</b>
/user &lt;tg_id|#id&gt; - Информация о пользователе
/users [страница] - Все пользователи
/ban &lt;tg_id|#id&gt; - Заблокировать
/unban &lt;tg_id|#id&gt; - Разблокировать

<b>💸 Выводы:</b>
/withdrawals - Ожидающие выводы
/approve &lt;id&gt; [заметка] - Одобрить вывод
/reject &lt;id&gt; [причина] - Отклонить вывод

<b>👥 Рефералы:</b>
/payref &lt;id&gt; - Выплатить бонус по реферальной связи`

// tg_id или #id аккаунта
func (b *Bot) resolveAccount(ctx context.Context, arg string) (*domain.Account, error) {
	arg = strings.TrimSpace(arg)
	if strings.HasPrefix(arg, "#") {
		id, err := strconv.ParseInt(arg[1:], 10, 64)
		if err != nil {
			return nil, fmt.Errorf("неверный id: %s", arg)
		}
		return b.accounts.Get(ctx, id)
	}
	tgID, err := strconv.ParseInt(arg, 10, 64)
	if err != nil {
		return nil, fmt.Errorf("неверный tg_id: %s", arg)
	}
	return b.accounts.GetByTgID(ctx, tgID)
}

func (b *Bot) handleStats(ctx context.Context) string {
	stats, err := b.accounts.PlatformStats(ctx)
	if err != nil {
		return fmt.Sprintf("Ошибка: %v", err)
	}

	return fmt.Sprintf(`<b>Статистика платформы</b>

<b>Пользователи:</b>
- Всего: %d
- Активных сегодня: %d
- Заблокировано: %d

<b>Экономика:</b>
- Всего начислено: %s৳
- На балансах: %s৳
- Всего выведено: %s৳

<b>Выводы:</b>
- Ожидает: %d на %s৳`,
		stats.TotalAccounts,
		stats.ActiveToday,
		stats.BannedAccounts,
		stats.TotalEarned.StringFixed(2),
		stats.TotalBalance.StringFixed(2),
		stats.TotalWithdrawn.StringFixed(2),
		stats.PendingWithdrawals,
		stats.PendingAmount.StringFixed(2),
	)
}

func (b *Bot) handleUser(ctx context.Context, args string) string {
	if args == "" {
		return "Использование: /user &lt;tg_id|#id&gt;"
	}

	acc, err := b.resolveAccount(ctx, args)
	if err != nil {
		return fmt.Sprintf("Пользователь не найден: %v", err)
	}

	status := "активен"
	if acc.IsBanned {
		status = "заблокирован"
	}
	return fmt.Sprintf(`<b>Информация о пользователе</b>

- ID: %d
- Telegram ID: %d
- Имя: %s
- Баланс: %s৳
- Заработано: %s৳
- Выведено: %s৳
- Реклама всего: %d
- Серия входов: %d
- Рефералов: %d
- Статус: %s
- Регистрация: %s`,
		acc.ID,
		acc.TgID,
		html.EscapeString(acc.DisplayName()),
		acc.Balance.StringFixed(2),
		acc.TotalEarned.StringFixed(2),
		acc.TotalWithdrawn.StringFixed(2),
		acc.AdsWatchedTotal,
		acc.LoginStreak,
		acc.ReferralCount,
		status,
		acc.CreatedAt.Format("02.01.2006 15:04"),
	)
}

func (b *Bot) handleUsers(ctx context.Context, args string) string {
	page := 1
	if args != "" {
		if n, err := strconv.Atoi(args); err == nil && n > 0 {
			page = n
		}
	}

	const limit = 20
	res, err := b.accounts.ListAccounts(ctx, page, limit)
	if err != nil {
		return fmt.Sprintf("Ошибка: %v", err)
	}
	if len(res.Accounts) == 0 {
		return "Пользователи не найдены"
	}

	var sb strings.Builder
	fmt.Fprintf(&sb, "<b>Пользователи (стр. %d, всего: %d)</b>\n\n", res.Page, res.Total)
	offset := (res.Page - 1) * limit
	for i, a := range res.Accounts {
		fmt.Fprintf(&sb, "%d. %s | #%d | %s৳\n", offset+i+1, html.EscapeString(a.DisplayName()), a.ID, a.Balance.StringFixed(2))
	}
	if res.Pages > res.Page {
		fmt.Fprintf(&sb, "\nСтраница %d/%d. Используйте /users %d", res.Page, res.Pages, res.Page+1)
	}
	return sb.String()
}

func (b *Bot) handleBan(ctx context.Context, args string, banned bool) string {
	usage := "Использование: /ban &lt;tg_id|#id&gt;"
	if !banned {
		usage = "Использование: /unban &lt;tg_id|#id&gt;"
	}
	if args == "" {
		return usage
	}

	acc, err := b.resolveAccount(ctx, args)
	if err != nil {
		return fmt.Sprintf("Пользователь не найден: %v", err)
	}
	if _, err := b.accounts.SetBanned(ctx, b.actorID(ctx), acc.ID, banned); err != nil {
		return fmt.Sprintf("Ошибка: %v", err)
	}
	if banned {
		return "Пользователь заблокирован"
	}
	return "Пользователь разблокирован"
}

func (b *Bot) handleWithdrawals(ctx context.Context) string {
	items, err := b.withdrawals.ListPending(ctx, 50)
	if err != nil {
		return fmt.Sprintf("Ошибка: %v", err)
	}
	if len(items) == 0 {
		return "Нет ожидающих выводов"
	}

	var sb strings.Builder
	sb.WriteString("<b>Ожидающие выводы</b>\n\n")
	for _, w := range items {
		fmt.Fprintf(&sb, "#%d | аккаунт #%d\n", w.ID, w.AccountID)
		fmt.Fprintf(&sb, "Сумма: %s৳ (%s)\n", w.Amount.StringFixed(2), w.Method)
		fmt.Fprintf(&sb, "Номер: <code>%s</code>\n", html.EscapeString(w.AccountNumber))
		fmt.Fprintf(&sb, "%s\n\n", w.CreatedAt.Format("02.01.2006 15:04"))
	}
	sb.WriteString("/approve &lt;id&gt; - одобрить\n/reject &lt;id&gt; &lt;причина&gt; - отклонить")
	return sb.String()
}

func (b *Bot) handleResolve(ctx context.Context, args string, decision domain.Decision) string {
	parts := strings.SplitN(strings.TrimSpace(args), " ", 2)
	if parts[0] == "" {
		return fmt.Sprintf("Использование: /%s &lt;id&gt; [заметка]", decision)
	}
	id, err := strconv.ParseInt(parts[0], 10, 64)
	if err != nil {
		return "Неверный ID вывода"
	}
	notes := ""
	if len(parts) == 2 {
		notes = strings.TrimSpace(parts[1])
	}

	w, err := b.withdrawals.Resolve(ctx, b.actorID(ctx), id, decision, notes)
	if err != nil {
		if reason, ok := domain.DenyReason(err); ok {
			return fmt.Sprintf("Вывод #%d не выполнен: %s. Заявка осталась в ожидании.", id, reason)
		}
		return fmt.Sprintf("Ошибка: %v", err)
	}
	if w.Status == domain.WithdrawalStatusApproved {
		return fmt.Sprintf("Вывод #%d одобрен. Списано %s৳", id, w.Amount.StringFixed(2))
	}
	return fmt.Sprintf("Вывод #%d отклонён. Баланс не изменен.", id)
}

func (b *Bot) handlePayReferral(ctx context.Context, args string) string {
	id, err := strconv.ParseInt(strings.TrimSpace(args), 10, 64)
	if err != nil {
		return "Использование: /payref &lt;id&gt;"
	}

	res, err := b.referrals.ClaimBonus(ctx, b.actorID(ctx), id)
	if err != nil {
		return fmt.Sprintf("Ошибка: %v", err)
	}
	if !res.Allowed {
		return fmt.Sprintf("Бонус по связи #%d не выплачен: %s", id, res.Reason)
	}
	return fmt.Sprintf("Бонус %s৳ по связи #%d выплачен", res.Amount.StringFixed(2), id)
}
