package repository

import (
	"context"
	"fmt"
	"strings"

	"earning_bot/internal/domain"

	"github.com/jackc/pgx/v5"
)

const withdrawalColumns = `id, account_id, amount, method, account_number, status,
	admin_notes, resolved_by, resolved_at, created_at`

// сканирует строку из базы данных в структуру Withdrawal
func scanWithdrawal(row pgx.Row) (*domain.Withdrawal, error) {
	var w domain.Withdrawal
	if err := row.Scan(&w.ID, &w.AccountID, &w.Amount, &w.Method, &w.AccountNumber, &w.Status,
		&w.AdminNotes, &w.ResolvedBy, &w.ResolvedAt, &w.CreatedAt); err != nil {
		if isNoRows(err) {
			return nil, domain.ErrWithdrawalNotFound
		}
		return nil, err
	}
	return &w, nil
}

// создает новый запрос на вывод средств в статусе pending
func (c *conn) InsertWithdrawal(ctx context.Context, w *domain.Withdrawal) error {
	err := c.q.QueryRow(ctx, `
		INSERT INTO withdrawals (account_id, amount, method, account_number, status, created_at)
		VALUES ($1, $2, $3, $4, $5, $6)
		RETURNING id
	`, w.AccountID, w.Amount, w.Method, w.AccountNumber, w.Status, w.CreatedAt).Scan(&w.ID)
	if err != nil {
		return fmt.Errorf("insert withdrawal: %w", err)
	}
	return nil
}

// блокирует заявку, чтобы два админа не одобрили ее одновременно
func (c *conn) GetWithdrawalForUpdate(ctx context.Context, id int64) (*domain.Withdrawal, error) {
	return scanWithdrawal(c.q.QueryRow(ctx, `SELECT `+withdrawalColumns+` FROM withdrawals WHERE id = $1 FOR UPDATE`, id))
}

func (c *conn) UpdateWithdrawal(ctx context.Context, w *domain.Withdrawal) error {
	_, err := c.q.Exec(ctx, `
		UPDATE withdrawals
		SET status = $2, admin_notes = $3, resolved_by = $4, resolved_at = $5
		WHERE id = $1
	`, w.ID, w.Status, w.AdminNotes, w.ResolvedBy, w.ResolvedAt)
	if err != nil {
		return fmt.Errorf("update withdrawal %d: %w", w.ID, err)
	}
	return nil
}

// выборка по пользователю и/или статусу; pending отдаем старые первыми
func (c *conn) ListWithdrawals(ctx context.Context, f domain.WithdrawalFilter) ([]domain.Withdrawal, error) {
	var conds []string
	var args []any
	if f.AccountID != 0 {
		args = append(args, f.AccountID)
		conds = append(conds, fmt.Sprintf("account_id = $%d", len(args)))
	}
	if f.Status != "" {
		args = append(args, f.Status)
		conds = append(conds, fmt.Sprintf("status = $%d", len(args)))
	}
	where := ""
	if len(conds) > 0 {
		where = "WHERE " + strings.Join(conds, " AND ")
	}
	order := "created_at DESC, id DESC"
	if f.Status == domain.WithdrawalStatusPending {
		order = "created_at ASC, id ASC"
	}
	args = append(args, clampLimit(f.Limit))

	rows, err := c.q.Query(ctx, fmt.Sprintf(`
		SELECT %s FROM withdrawals %s ORDER BY %s LIMIT $%d
	`, withdrawalColumns, where, order, len(args)), args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []domain.Withdrawal
	for rows.Next() {
		w, err := scanWithdrawal(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, *w)
	}
	return out, rows.Err()
}

// агрегаты считаются в базе, LIMIT выборки на них не влияет
func (c *conn) SummarizeWithdrawals(ctx context.Context, accountID int64) (*domain.WithdrawalSummary, error) {
	var s domain.WithdrawalSummary
	err := c.q.QueryRow(ctx, `
		SELECT COUNT(*),
			COUNT(*) FILTER (WHERE status = 'pending'),
			COALESCE(SUM(amount) FILTER (WHERE status = 'approved'), 0)
		FROM withdrawals WHERE account_id = $1
	`, accountID).Scan(&s.Total, &s.Pending, &s.ApprovedAmount)
	if err != nil {
		return nil, err
	}
	return &s, nil
}
