package repository

import (
	"context"
	"fmt"
	"strings"

	"earning_bot/internal/domain"

	"github.com/shopspring/decimal"
)

// журнал только дописывается, update/delete здесь нет и не будет
func (c *conn) AppendLedger(ctx context.Context, e *domain.LedgerEntry) error {
	err := c.q.QueryRow(ctx, `
		INSERT INTO ledger_entries (account_id, amount, kind, description, task_id, referral_id, created_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7)
		RETURNING id
	`, e.AccountID, e.Amount, e.Kind, e.Description, e.TaskID, e.ReferralID, e.CreatedAt).Scan(&e.ID)
	if err != nil {
		return fmt.Errorf("append ledger: %w", err)
	}
	return nil
}

// собирает WHERE по фильтру
func ledgerWhere(f domain.LedgerFilter) (string, []any) {
	conds := []string{"account_id = $1"}
	args := []any{f.AccountID}
	if f.Kind != "" {
		args = append(args, f.Kind)
		conds = append(conds, fmt.Sprintf("kind = $%d", len(args)))
	}
	if f.Since != nil {
		args = append(args, *f.Since)
		conds = append(conds, fmt.Sprintf("created_at >= $%d", len(args)))
	}
	return strings.Join(conds, " AND "), args
}

func (c *conn) ListLedger(ctx context.Context, f domain.LedgerFilter) ([]domain.LedgerEntry, error) {
	where, args := ledgerWhere(f)
	args = append(args, clampLimit(f.Limit))

	rows, err := c.q.Query(ctx, fmt.Sprintf(`
		SELECT id, account_id, amount, kind, description, task_id, referral_id, created_at
		FROM ledger_entries
		WHERE %s
		ORDER BY created_at DESC, id DESC
		LIMIT $%d
	`, where, len(args)), args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []domain.LedgerEntry
	for rows.Next() {
		var e domain.LedgerEntry
		if err := rows.Scan(&e.ID, &e.AccountID, &e.Amount, &e.Kind, &e.Description,
			&e.TaskID, &e.ReferralID, &e.CreatedAt); err != nil {
			return nil, err
		}
		out = append(out, e)
	}
	return out, rows.Err()
}

func (c *conn) SumLedger(ctx context.Context, f domain.LedgerFilter) (decimal.Decimal, error) {
	where, args := ledgerWhere(f)
	var sum decimal.Decimal
	err := c.q.QueryRow(ctx, `SELECT COALESCE(SUM(amount), 0) FROM ledger_entries WHERE `+where, args...).Scan(&sum)
	return sum, err
}
