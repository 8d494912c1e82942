// Package migrations создает схему. Все выражения идемпотентны,
// поэтому Apply безопасно гонять на каждом старте.
package migrations

import (
	"context"
	"database/sql"
	"fmt"
)

var statements = []string{
	`CREATE TABLE IF NOT EXISTS accounts (
		id BIGSERIAL PRIMARY KEY,
		tg_id BIGINT NOT NULL UNIQUE,
		username TEXT NOT NULL DEFAULT '',
		first_name TEXT NOT NULL DEFAULT '',
		last_name TEXT NOT NULL DEFAULT '',
		balance NUMERIC(14,2) NOT NULL DEFAULT 0 CHECK (balance >= 0),
		total_earned NUMERIC(14,2) NOT NULL DEFAULT 0,
		total_withdrawn NUMERIC(14,2) NOT NULL DEFAULT 0,
		ads_watched_today INT NOT NULL DEFAULT 0,
		ads_day DATE,
		ads_watched_total INT NOT NULL DEFAULT 0,
		last_ad_watch_at TIMESTAMPTZ,
		login_streak INT NOT NULL DEFAULT 0 CHECK (login_streak >= 0),
		last_login_date DATE,
		referral_code TEXT NOT NULL UNIQUE,
		referred_by BIGINT REFERENCES accounts(id),
		referral_count INT NOT NULL DEFAULT 0,
		active_referral_count INT NOT NULL DEFAULT 0,
		is_banned BOOLEAN NOT NULL DEFAULT FALSE,
		created_at TIMESTAMPTZ NOT NULL DEFAULT NOW(),
		updated_at TIMESTAMPTZ NOT NULL DEFAULT NOW()
	)`,
	`CREATE TABLE IF NOT EXISTS tasks (
		id BIGSERIAL PRIMARY KEY,
		title TEXT NOT NULL,
		description TEXT NOT NULL DEFAULT '',
		reward NUMERIC(14,2) NOT NULL CHECK (reward > 0),
		url TEXT NOT NULL DEFAULT '',
		is_active BOOLEAN NOT NULL DEFAULT TRUE,
		daily_limit INT NOT NULL DEFAULT 1,
		total_completions BIGINT NOT NULL DEFAULT 0,
		created_at TIMESTAMPTZ NOT NULL DEFAULT NOW(),
		updated_at TIMESTAMPTZ NOT NULL DEFAULT NOW()
	)`,
	`CREATE TABLE IF NOT EXISTS task_completions (
		account_id BIGINT NOT NULL REFERENCES accounts(id),
		task_id BIGINT NOT NULL REFERENCES tasks(id),
		completed_on DATE NOT NULL,
		completed_at TIMESTAMPTZ NOT NULL DEFAULT NOW(),
		PRIMARY KEY (account_id, task_id, completed_on)
	)`,
	`CREATE TABLE IF NOT EXISTS referrals (
		id BIGSERIAL PRIMARY KEY,
		referrer_id BIGINT NOT NULL REFERENCES accounts(id),
		referred_id BIGINT NOT NULL UNIQUE REFERENCES accounts(id),
		is_active BOOLEAN NOT NULL DEFAULT TRUE,
		bonus_paid BOOLEAN NOT NULL DEFAULT FALSE,
		paid_at TIMESTAMPTZ,
		created_at TIMESTAMPTZ NOT NULL DEFAULT NOW(),
		CHECK (referrer_id <> referred_id)
	)`,
	`CREATE INDEX IF NOT EXISTS idx_referrals_referrer ON referrals (referrer_id)`,
	`CREATE TABLE IF NOT EXISTS ledger_entries (
		id BIGSERIAL PRIMARY KEY,
		account_id BIGINT NOT NULL REFERENCES accounts(id),
		amount NUMERIC(14,2) NOT NULL,
		kind TEXT NOT NULL CHECK (kind IN ('ad', 'task', 'referral', 'bonus')),
		description TEXT NOT NULL DEFAULT '',
		task_id BIGINT REFERENCES tasks(id),
		referral_id BIGINT REFERENCES referrals(id),
		created_at TIMESTAMPTZ NOT NULL DEFAULT NOW()
	)`,
	`CREATE INDEX IF NOT EXISTS idx_ledger_account_created ON ledger_entries (account_id, created_at DESC)`,
	`CREATE OR REPLACE FUNCTION ledger_entries_immutable() RETURNS trigger AS $$
	BEGIN
		RAISE EXCEPTION 'ledger_entries is append-only';
	END;
	$$ LANGUAGE plpgsql`,
	`DROP TRIGGER IF EXISTS ledger_entries_no_mutation ON ledger_entries`,
	`CREATE TRIGGER ledger_entries_no_mutation
		BEFORE UPDATE OR DELETE ON ledger_entries
		FOR EACH ROW EXECUTE FUNCTION ledger_entries_immutable()`,
	`CREATE TABLE IF NOT EXISTS withdrawals (
		id BIGSERIAL PRIMARY KEY,
		account_id BIGINT NOT NULL REFERENCES accounts(id),
		amount NUMERIC(14,2) NOT NULL CHECK (amount > 0),
		method TEXT NOT NULL CHECK (method IN ('bkash', 'nagad', 'rocket')),
		account_number TEXT NOT NULL,
		status TEXT NOT NULL DEFAULT 'pending' CHECK (status IN ('pending', 'approved', 'rejected')),
		admin_notes TEXT NOT NULL DEFAULT '',
		resolved_by BIGINT,
		resolved_at TIMESTAMPTZ,
		created_at TIMESTAMPTZ NOT NULL DEFAULT NOW()
	)`,
	`CREATE INDEX IF NOT EXISTS idx_withdrawals_status ON withdrawals (status, created_at)`,
	`CREATE INDEX IF NOT EXISTS idx_withdrawals_account ON withdrawals (account_id, created_at DESC)`,
	`CREATE TABLE IF NOT EXISTS settings (
		key TEXT PRIMARY KEY,
		value JSONB NOT NULL,
		version BIGINT NOT NULL DEFAULT 1,
		updated_at TIMESTAMPTZ NOT NULL DEFAULT NOW()
	)`,
	`CREATE TABLE IF NOT EXISTS audit_logs (
		id BIGSERIAL PRIMARY KEY,
		account_id BIGINT NOT NULL DEFAULT 0,
		actor_id BIGINT NOT NULL DEFAULT 0,
		action TEXT NOT NULL,
		category TEXT NOT NULL,
		details JSONB NOT NULL DEFAULT '{}',
		created_at TIMESTAMPTZ NOT NULL DEFAULT NOW()
	)`,
	`CREATE INDEX IF NOT EXISTS idx_audit_account ON audit_logs (account_id, created_at DESC)`,
}

// Count - число выражений схемы
func Count() int {
	return len(statements)
}

// lockKey - ключ advisory lock, сериализует параллельный старт реплик
const lockKey = 7_240_315

// Apply выполняет все выражения по порядку в одной транзакции.
// Ошибка любого выражения откатывает схему целиком.
func Apply(ctx context.Context, db *sql.DB) error {
	tx, err := db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("begin migrations: %w", err)
	}
	defer func() { _ = tx.Rollback() }()

	if _, err := tx.ExecContext(ctx, `SELECT pg_advisory_xact_lock($1)`, lockKey); err != nil {
		return fmt.Errorf("migrations lock: %w", err)
	}
	for i, stmt := range statements {
		if _, err := tx.ExecContext(ctx, stmt); err != nil {
			return fmt.Errorf("migration %d: %w", i, err)
		}
	}
	return tx.Commit()
}
