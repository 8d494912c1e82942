// Package jobs - фоновые задачи по расписанию
package jobs

import (
	"context"
	"fmt"
	"html"
	"log/slog"
	"strings"
	"time"

	"earning_bot/internal/domain"
	"earning_bot/internal/logger"

	"github.com/robfig/cron/v3"
)

const digestLimit = 20

// Broadcaster рассылает текст всем админам (реализует бот)
type Broadcaster interface {
	NotifyAdmins(ctx context.Context, text string) error
}

type PendingSource interface {
	ListPending(ctx context.Context, limit int) ([]domain.Withdrawal, error)
}

type StatsSource interface {
	PlatformStats(ctx context.Context) (*domain.PlatformStats, error)
}

// Digest - сводка ожидающих выводов для админов
type Digest struct {
	withdrawals PendingSource
	stats       StatsSource
	out         Broadcaster
	log         *slog.Logger
}

func NewDigest(withdrawals PendingSource, stats StatsSource, out Broadcaster) *Digest {
	return &Digest{
		withdrawals: withdrawals,
		stats:       stats,
		out:         out,
		log:         logger.With("component", "digest"),
	}
}

// Run собирает и отправляет сводку. Если ожидающих заявок нет, ничего не шлет.
func (d *Digest) Run(ctx context.Context) error {
	text, ok, err := d.Text(ctx)
	if err != nil {
		return err
	}
	if !ok {
		d.log.Debug("no pending withdrawals, digest skipped")
		return nil
	}
	return d.out.NotifyAdmins(ctx, text)
}

// Text возвращает сводку и false, если слать нечего
func (d *Digest) Text(ctx context.Context) (string, bool, error) {
	stats, err := d.stats.PlatformStats(ctx)
	if err != nil {
		return "", false, fmt.Errorf("digest stats: %w", err)
	}
	if stats.PendingWithdrawals == 0 {
		return "", false, nil
	}
	items, err := d.withdrawals.ListPending(ctx, digestLimit)
	if err != nil {
		return "", false, fmt.Errorf("digest pending: %w", err)
	}

	var sb strings.Builder
	fmt.Fprintf(&sb, "<b>Сводка выводов</b>\n\nОжидает: %d на %s৳\n\n",
		stats.PendingWithdrawals, stats.PendingAmount.StringFixed(2))
	for _, w := range items {
		fmt.Fprintf(&sb, "#%d | %s৳ | %s | <code>%s</code> | %s\n",
			w.ID, w.Amount.StringFixed(2), w.Method, html.EscapeString(w.AccountNumber),
			w.CreatedAt.Format("02.01 15:04"))
	}
	if rest := stats.PendingWithdrawals - int64(len(items)); rest > 0 {
		fmt.Fprintf(&sb, "\n...и еще %d. Полный список: /withdrawals", rest)
	}
	return sb.String(), true, nil
}

// Schedule регистрирует сводку в новом планировщике; запуск и остановка на вызывающем
func (d *Digest) Schedule(spec string, loc *time.Location) (*cron.Cron, error) {
	if loc == nil {
		loc = time.UTC
	}
	c := cron.New(
		cron.WithLocation(loc),
		cron.WithChain(cron.Recover(cron.DefaultLogger), cron.SkipIfStillRunning(cron.DefaultLogger)),
	)
	_, err := c.AddFunc(spec, func() {
		ctx, cancel := context.WithTimeout(context.Background(), time.Minute)
		defer cancel()
		if err := d.Run(ctx); err != nil {
			d.log.Error("digest failed", "error", err)
		}
	})
	if err != nil {
		return nil, fmt.Errorf("invalid digest schedule %q: %w", spec, err)
	}
	return c, nil
}
