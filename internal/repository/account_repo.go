package repository

import (
	"context"
	"fmt"
	"time"

	"earning_bot/internal/domain"

	"github.com/jackc/pgx/v5"
	"github.com/shopspring/decimal"
)

const accountColumns = `id, tg_id, username, first_name, last_name,
	balance, total_earned, total_withdrawn,
	ads_watched_today, ads_day, ads_watched_total, last_ad_watch_at,
	login_streak, last_login_date,
	referral_code, referred_by, referral_count, active_referral_count,
	is_banned, created_at, updated_at`

// сканирует строку в Account, ErrNoRows -> ErrAccountNotFound
func scanAccount(row pgx.Row) (*domain.Account, error) {
	var a domain.Account
	if err := row.Scan(
		&a.ID, &a.TgID, &a.Username, &a.FirstName, &a.LastName,
		&a.Balance, &a.TotalEarned, &a.TotalWithdrawn,
		&a.AdsWatchedToday, &a.AdsDay, &a.AdsWatchedTotal, &a.LastAdWatchAt,
		&a.LoginStreak, &a.LastLoginDate,
		&a.ReferralCode, &a.ReferredBy, &a.ReferralCount, &a.ActiveReferralCount,
		&a.IsBanned, &a.CreatedAt, &a.UpdatedAt,
	); err != nil {
		if isNoRows(err) {
			return nil, domain.ErrAccountNotFound
		}
		return nil, err
	}
	return &a, nil
}

func (c *conn) GetAccount(ctx context.Context, id int64) (*domain.Account, error) {
	return scanAccount(c.q.QueryRow(ctx, `SELECT `+accountColumns+` FROM accounts WHERE id = $1`, id))
}

func (c *conn) GetAccountByTgID(ctx context.Context, tgID int64) (*domain.Account, error) {
	return scanAccount(c.q.QueryRow(ctx, `SELECT `+accountColumns+` FROM accounts WHERE tg_id = $1`, tgID))
}

// блокирует строку пользователя до конца транзакции
func (c *conn) GetAccountForUpdate(ctx context.Context, id int64) (*domain.Account, error) {
	return scanAccount(c.q.QueryRow(ctx, `SELECT `+accountColumns+` FROM accounts WHERE id = $1 FOR UPDATE`, id))
}

func (c *conn) GetAccountByTgIDForUpdate(ctx context.Context, tgID int64) (*domain.Account, error) {
	return scanAccount(c.q.QueryRow(ctx, `SELECT `+accountColumns+` FROM accounts WHERE tg_id = $1 FOR UPDATE`, tgID))
}

func (c *conn) GetAccountByReferralCodeForUpdate(ctx context.Context, code string) (*domain.Account, error) {
	return scanAccount(c.q.QueryRow(ctx, `SELECT `+accountColumns+` FROM accounts WHERE referral_code = $1 FOR UPDATE`, code))
}

// ON CONFLICT DO NOTHING без цели: и дубль tg_id, и коллизия кода не ломают транзакцию
func (c *conn) InsertAccount(ctx context.Context, a *domain.Account) (bool, error) {
	err := c.q.QueryRow(ctx, `
		INSERT INTO accounts (tg_id, username, first_name, last_name,
			balance, total_earned, total_withdrawn,
			login_streak, last_login_date, referral_code, referred_by,
			created_at, updated_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12, $12)
		ON CONFLICT DO NOTHING
		RETURNING id
	`, a.TgID, a.Username, a.FirstName, a.LastName,
		a.Balance, a.TotalEarned, a.TotalWithdrawn,
		a.LoginStreak, a.LastLoginDate, a.ReferralCode, a.ReferredBy,
		a.CreatedAt).Scan(&a.ID)
	if err != nil {
		if isNoRows(err) {
			return false, nil
		}
		return false, fmt.Errorf("insert account: %w", err)
	}
	a.UpdatedAt = a.CreatedAt
	return true, nil
}

// пишет все изменяемые поля разом
func (c *conn) UpdateAccount(ctx context.Context, a *domain.Account) error {
	tag, err := c.q.Exec(ctx, `
		UPDATE accounts SET
			username = $2, first_name = $3, last_name = $4,
			balance = $5, total_earned = $6, total_withdrawn = $7,
			ads_watched_today = $8, ads_day = $9, ads_watched_total = $10, last_ad_watch_at = $11,
			login_streak = $12, last_login_date = $13,
			referral_count = $14, active_referral_count = $15,
			is_banned = $16, updated_at = $17
		WHERE id = $1
	`, a.ID, a.Username, a.FirstName, a.LastName,
		a.Balance, a.TotalEarned, a.TotalWithdrawn,
		a.AdsWatchedToday, a.AdsDay, a.AdsWatchedTotal, a.LastAdWatchAt,
		a.LoginStreak, a.LastLoginDate,
		a.ReferralCount, a.ActiveReferralCount,
		a.IsBanned, a.UpdatedAt)
	if err != nil {
		return fmt.Errorf("update account %d: %w", a.ID, err)
	}
	if tag.RowsAffected() == 0 {
		return domain.ErrAccountNotFound
	}
	return nil
}

// страница пользователей, новые сверху
func (c *conn) ListAccounts(ctx context.Context, offset, limit int) ([]domain.Account, int, error) {
	var total int
	if err := c.q.QueryRow(ctx, `SELECT COUNT(*) FROM accounts`).Scan(&total); err != nil {
		return nil, 0, err
	}

	rows, err := c.q.Query(ctx, `
		SELECT `+accountColumns+` FROM accounts
		ORDER BY created_at DESC, id DESC
		LIMIT $1 OFFSET $2
	`, clampLimit(limit), offset)
	if err != nil {
		return nil, 0, err
	}
	defer rows.Close()

	var out []domain.Account
	for rows.Next() {
		a, err := scanAccount(rows)
		if err != nil {
			return nil, 0, err
		}
		out = append(out, *a)
	}
	return out, total, rows.Err()
}

// агрегаты для админки
func (c *conn) PlatformStats(ctx context.Context, today time.Time) (*domain.PlatformStats, error) {
	s := &domain.PlatformStats{}
	err := c.q.QueryRow(ctx, `
		SELECT COUNT(*),
		       COUNT(*) FILTER (WHERE is_banned),
		       COUNT(*) FILTER (WHERE last_login_date = $1),
		       COALESCE(SUM(balance), 0),
		       COALESCE(SUM(total_earned), 0),
		       COALESCE(SUM(total_withdrawn), 0)
		FROM accounts
	`, today).Scan(&s.TotalAccounts, &s.BannedAccounts, &s.ActiveToday,
		&s.TotalBalance, &s.TotalEarned, &s.TotalWithdrawn)
	if err != nil {
		return nil, fmt.Errorf("account stats: %w", err)
	}

	var pending decimal.Decimal
	err = c.q.QueryRow(ctx, `
		SELECT COUNT(*), COALESCE(SUM(amount), 0) FROM withdrawals WHERE status = 'pending'
	`).Scan(&s.PendingWithdrawals, &pending)
	if err != nil {
		return nil, fmt.Errorf("withdrawal stats: %w", err)
	}
	s.PendingAmount = pending
	return s, nil
}
