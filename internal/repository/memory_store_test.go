package repository

import (
	"context"
	"errors"
	"testing"
	"time"

	"earning_bot/internal/domain"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

var t0 = time.Date(2024, 5, 10, 12, 0, 0, 0, time.UTC)

func seedAccount(t *testing.T, s *MemoryStore, tgID int64, code string) *domain.Account {
	t.Helper()
	a := &domain.Account{TgID: tgID, ReferralCode: code, CreatedAt: t0}
	require.NoError(t, s.InTx(context.Background(), func(tx Tx) error {
		ok, err := tx.InsertAccount(context.Background(), a)
		require.True(t, ok)
		return err
	}))
	return a
}

func TestMemoryStoreRollsBackOnError(t *testing.T) {
	ctx := context.Background()
	s := NewMemoryStore()
	a := seedAccount(t, s, 1, "aaa")

	boom := errors.New("boom")
	err := s.InTx(ctx, func(tx Tx) error {
		acc, err := tx.GetAccountForUpdate(ctx, a.ID)
		require.NoError(t, err)
		acc.Balance = decimal.NewFromInt(100)
		require.NoError(t, tx.UpdateAccount(ctx, acc))
		require.NoError(t, tx.AppendLedger(ctx, &domain.LedgerEntry{AccountID: a.ID, Amount: decimal.NewFromInt(100), Kind: domain.LedgerKindBonus}))
		return boom
	})
	require.ErrorIs(t, err, boom)

	got, err := s.GetAccount(ctx, a.ID)
	require.NoError(t, err)
	assert.True(t, got.Balance.IsZero())

	entries, err := s.ListLedger(ctx, domain.LedgerFilter{AccountID: a.ID})
	require.NoError(t, err)
	assert.Empty(t, entries)
}

func TestMemoryStoreInsertAccountConflicts(t *testing.T) {
	ctx := context.Background()
	s := NewMemoryStore()
	seedAccount(t, s, 1, "aaa")

	require.NoError(t, s.InTx(ctx, func(tx Tx) error {
		ok, err := tx.InsertAccount(ctx, &domain.Account{TgID: 1, ReferralCode: "bbb"})
		assert.False(t, ok)
		ok2, err2 := tx.InsertAccount(ctx, &domain.Account{TgID: 2, ReferralCode: "aaa"})
		assert.False(t, ok2)
		return errors.Join(err, err2)
	}))
}

func TestMemoryStoreReferralPaidOnce(t *testing.T) {
	ctx := context.Background()
	s := NewMemoryStore()
	a := seedAccount(t, s, 1, "aaa")
	b := seedAccount(t, s, 2, "bbb")

	edge := &domain.ReferralEdge{ReferrerID: a.ID, ReferredID: b.ID, IsActive: true}
	require.NoError(t, s.InTx(ctx, func(tx Tx) error {
		ok, err := tx.InsertReferral(ctx, edge)
		require.True(t, ok)
		dup, _ := tx.InsertReferral(ctx, &domain.ReferralEdge{ReferrerID: b.ID, ReferredID: b.ID})
		assert.False(t, dup)
		return err
	}))

	require.NoError(t, s.InTx(ctx, func(tx Tx) error {
		first, err := tx.MarkReferralPaid(ctx, edge.ID, t0)
		require.NoError(t, err)
		second, err := tx.MarkReferralPaid(ctx, edge.ID, t0)
		require.NoError(t, err)
		assert.True(t, first)
		assert.False(t, second)
		return nil
	}))
}

func TestMemoryStoreErrorOnNextCall(t *testing.T) {
	s := NewMemoryStore()
	injected := errors.New("db down")
	s.ErrorOnNextCall = injected

	called := false
	err := s.InTx(context.Background(), func(tx Tx) error {
		called = true
		return nil
	})
	assert.ErrorIs(t, err, injected)
	assert.False(t, called)
	assert.NoError(t, s.InTx(context.Background(), func(tx Tx) error { return nil }))
}

func TestMemoryStoreWithdrawalOrdering(t *testing.T) {
	ctx := context.Background()
	s := NewMemoryStore()
	a := seedAccount(t, s, 1, "aaa")

	require.NoError(t, s.InTx(ctx, func(tx Tx) error {
		for i := 0; i < 3; i++ {
			w := &domain.Withdrawal{AccountID: a.ID, Amount: decimal.NewFromInt(100), Status: domain.WithdrawalStatusPending, CreatedAt: t0}
			if err := tx.InsertWithdrawal(ctx, w); err != nil {
				return err
			}
		}
		return nil
	}))

	pending, err := s.ListWithdrawals(ctx, domain.WithdrawalFilter{Status: domain.WithdrawalStatusPending})
	require.NoError(t, err)
	require.Len(t, pending, 3)
	assert.Equal(t, int64(1), pending[0].ID)

	history, err := s.ListWithdrawals(ctx, domain.WithdrawalFilter{AccountID: a.ID, Limit: 2})
	require.NoError(t, err)
	require.Len(t, history, 2)
	assert.Equal(t, int64(3), history[0].ID)
}

func TestNormalizeReferralCode(t *testing.T) {
	assert.Equal(t, "abc123", NormalizeReferralCode(" ref_ABC123 "))
	assert.Equal(t, "abc123", NormalizeReferralCode("abc123"))
	assert.Len(t, GenerateReferralCode(), 12)
}

func TestMemoryStoreSummarizeWithdrawals(t *testing.T) {
	s := NewMemoryStore()
	ctx := context.Background()

	statuses := []domain.WithdrawalStatus{
		domain.WithdrawalStatusPending,
		domain.WithdrawalStatusApproved,
		domain.WithdrawalStatusApproved,
		domain.WithdrawalStatusRejected,
	}
	require.NoError(t, s.InTx(ctx, func(tx Tx) error {
		for _, st := range statuses {
			if err := tx.InsertWithdrawal(ctx, &domain.Withdrawal{
				AccountID: 1, Amount: decimal.RequireFromString("12.50"), Status: st,
			}); err != nil {
				return err
			}
		}
		// чужая заявка не попадает в сводку
		return tx.InsertWithdrawal(ctx, &domain.Withdrawal{AccountID: 2, Amount: decimal.NewFromInt(99), Status: domain.WithdrawalStatusApproved})
	}))

	sum, err := s.SummarizeWithdrawals(ctx, 1)
	require.NoError(t, err)
	assert.Equal(t, 4, sum.Total)
	assert.Equal(t, 1, sum.Pending)
	assert.True(t, sum.ApprovedAmount.Equal(decimal.NewFromInt(25)))

	sum, err = s.SummarizeWithdrawals(ctx, 3)
	require.NoError(t, err)
	assert.Zero(t, sum.Total)
	assert.True(t, sum.ApprovedAmount.IsZero())
}
