package service

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"earning_bot/internal/domain"
	"earning_bot/internal/repository"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func bkash(amount string) WithdrawalRequest {
	return WithdrawalRequest{
		Amount:        decimal.RequireFromString(amount),
		Method:        domain.MethodBkash,
		AccountNumber: "01712345678",
	}
}

func TestWithdrawalMinimumBoundary(t *testing.T) {
	env := newTestEnv(t)
	ctx := context.Background()
	acc := env.register(t, 100, "")
	env.credit(t, acc.ID, "100")

	res, err := env.withdrawals.Create(ctx, acc.ID, bkash("99.99"))
	require.NoError(t, err)
	assert.False(t, res.Allowed)
	assert.Equal(t, domain.ReasonBelowMinimum, res.Reason)

	res, err = env.withdrawals.Create(ctx, acc.ID, bkash("100"))
	require.NoError(t, err)
	require.True(t, res.Allowed)
	assert.Equal(t, domain.WithdrawalStatusPending, res.Withdrawal.Status)

	// заявка ничего не списывает
	assert.True(t, env.account(t, acc.ID).Balance.Equal(decimal.NewFromInt(100)))
	assert.Eventually(t, func() bool { return env.notifier.count("created") == 1 }, time.Second, 10*time.Millisecond)
}

func TestWithdrawalRequestValidation(t *testing.T) {
	env := newTestEnv(t)
	ctx := context.Background()
	acc := env.register(t, 100, "")
	env.credit(t, acc.ID, "150")

	cases := []struct {
		name string
		req  WithdrawalRequest
		want domain.Reason
	}{
		{"method", WithdrawalRequest{Amount: decimal.NewFromInt(100), Method: "paypal", AccountNumber: "x"}, domain.ReasonInvalidMethod},
		{"destination", WithdrawalRequest{Amount: decimal.NewFromInt(100), Method: domain.MethodNagad, AccountNumber: "  "}, domain.ReasonInvalidDestination},
		{"balance", bkash("150.01"), domain.ReasonInsufficientBalance},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			res, err := env.withdrawals.Create(ctx, acc.ID, tc.req)
			require.NoError(t, err)
			assert.False(t, res.Allowed)
			assert.Equal(t, tc.want, res.Reason)
		})
	}

	// регистр метода не важен
	res, err := env.withdrawals.Create(ctx, acc.ID, WithdrawalRequest{Amount: decimal.NewFromInt(100), Method: "NAGAD", AccountNumber: "017"})
	require.NoError(t, err)
	assert.True(t, res.Allowed)

	_, err = env.withdrawals.Create(ctx, acc.ID, bkash("100.001"))
	assert.ErrorIs(t, err, domain.ErrInvalidAmount)
}

func TestWithdrawalBannedAccount(t *testing.T) {
	env := newTestEnv(t)
	ctx := context.Background()
	acc := env.register(t, 100, "")
	env.credit(t, acc.ID, "200")
	_, err := env.accounts.SetBanned(ctx, 1, acc.ID, true)
	require.NoError(t, err)

	res, err := env.withdrawals.Create(ctx, acc.ID, bkash("100"))
	require.NoError(t, err)
	assert.Equal(t, domain.ReasonAccountBanned, res.Reason)
}

func TestWithdrawalApproveDebitsOnce(t *testing.T) {
	env := newTestEnv(t)
	ctx := context.Background()
	acc := env.register(t, 100, "")
	env.credit(t, acc.ID, "250")

	res, err := env.withdrawals.Create(ctx, acc.ID, bkash("100"))
	require.NoError(t, err)
	id := res.Withdrawal.ID

	const admins = 8
	var (
		wg          sync.WaitGroup
		mu          sync.Mutex
		ok          int
		transitions int
	)
	for i := 0; i < admins; i++ {
		wg.Add(1)
		go func(admin int64) {
			defer wg.Done()
			_, err := env.withdrawals.Resolve(ctx, admin, id, domain.DecisionApprove, "paid")
			mu.Lock()
			defer mu.Unlock()
			switch {
			case err == nil:
				ok++
			case errors.Is(err, domain.ErrInvalidTransition):
				transitions++
			default:
				t.Error(err)
			}
		}(int64(i + 1))
	}
	wg.Wait()

	assert.Equal(t, 1, ok)
	assert.Equal(t, admins-1, transitions)

	got := env.account(t, acc.ID)
	assert.True(t, got.Balance.Equal(decimal.NewFromInt(150)))
	assert.True(t, got.TotalWithdrawn.Equal(decimal.NewFromInt(100)))
	env.requireLedgerConsistent(t, acc.ID)

	history, err := env.withdrawals.History(ctx, acc.ID, 10)
	require.NoError(t, err)
	require.Len(t, history, 1)
	assert.Equal(t, domain.WithdrawalStatusApproved, history[0].Status)
	require.NotNil(t, history[0].ResolvedBy)
	assert.Equal(t, "paid", history[0].AdminNotes)

	assert.Eventually(t, func() bool { return env.notifier.count("resolved") == 1 }, time.Second, 10*time.Millisecond)
}

func TestWithdrawalApproveInsufficientBalance(t *testing.T) {
	env := newTestEnv(t)
	ctx := context.Background()
	acc := env.register(t, 100, "")
	env.credit(t, acc.ID, "150")

	first, err := env.withdrawals.Create(ctx, acc.ID, bkash("100"))
	require.NoError(t, err)
	second, err := env.withdrawals.Create(ctx, acc.ID, bkash("100"))
	require.NoError(t, err)

	_, err = env.withdrawals.Resolve(ctx, 1, first.Withdrawal.ID, domain.DecisionApprove, "")
	require.NoError(t, err)

	_, err = env.withdrawals.Resolve(ctx, 1, second.Withdrawal.ID, domain.DecisionApprove, "")
	reason, denied := domain.DenyReason(err)
	require.True(t, denied)
	assert.Equal(t, domain.ReasonInsufficientBalance, reason)

	// заявка осталась в pending, ее можно отклонить
	pending, err := env.withdrawals.ListPending(ctx, 10)
	require.NoError(t, err)
	require.Len(t, pending, 1)
	assert.Equal(t, second.Withdrawal.ID, pending[0].ID)

	w, err := env.withdrawals.Resolve(ctx, 1, second.Withdrawal.ID, domain.DecisionReject, "no funds")
	require.NoError(t, err)
	assert.Equal(t, domain.WithdrawalStatusRejected, w.Status)
	assert.True(t, env.account(t, acc.ID).Balance.Equal(decimal.NewFromInt(50)))
}

func TestWithdrawalRejectKeepsBalanceAndIsTerminal(t *testing.T) {
	env := newTestEnv(t)
	ctx := context.Background()
	acc := env.register(t, 100, "")
	env.credit(t, acc.ID, "100")

	res, err := env.withdrawals.Create(ctx, acc.ID, bkash("100"))
	require.NoError(t, err)

	w, err := env.withdrawals.Resolve(ctx, 7, res.Withdrawal.ID, domain.DecisionReject, "wrong number")
	require.NoError(t, err)
	assert.Equal(t, domain.WithdrawalStatusRejected, w.Status)
	assert.True(t, env.account(t, acc.ID).Balance.Equal(decimal.NewFromInt(100)))

	_, err = env.withdrawals.Resolve(ctx, 7, res.Withdrawal.ID, domain.DecisionApprove, "")
	assert.Equal(t, domain.ClassInvalidTransition, domain.Classify(err))

	_, err = env.withdrawals.Resolve(ctx, 7, res.Withdrawal.ID, "maybe", "")
	assert.ErrorIs(t, err, domain.ErrInvalidDecision)

	_, err = env.withdrawals.Resolve(ctx, 7, 999, domain.DecisionReject, "")
	assert.ErrorIs(t, err, domain.ErrWithdrawalNotFound)
}

func TestWithdrawalNotificationFailureDoesNotRollBack(t *testing.T) {
	env := newTestEnv(t)
	ctx := context.Background()
	env.notifier.err = errors.New("telegram is down")
	acc := env.register(t, 100, "")
	env.credit(t, acc.ID, "100")

	res, err := env.withdrawals.Create(ctx, acc.ID, bkash("100"))
	require.NoError(t, err)
	_, err = env.withdrawals.Resolve(ctx, 1, res.Withdrawal.ID, domain.DecisionApprove, "")
	require.NoError(t, err)

	assert.Eventually(t, func() bool { return env.notifier.count("resolved") == 1 }, time.Second, 10*time.Millisecond)
	assert.True(t, env.account(t, acc.ID).Balance.IsZero())
}

func TestLedgerVerifyChecksBalanceAgainstApprovedWithdrawals(t *testing.T) {
	env := newTestEnv(t)
	ctx := context.Background()
	acc := env.register(t, 100, "")
	env.credit(t, acc.ID, "250")

	res, err := env.withdrawals.Create(ctx, acc.ID, bkash("100"))
	require.NoError(t, err)
	_, err = env.withdrawals.Resolve(ctx, 1, res.Withdrawal.ID, domain.DecisionApprove, "")
	require.NoError(t, err)
	// отклоненная заявка на баланс не влияет
	res, err = env.withdrawals.Create(ctx, acc.ID, bkash("100"))
	require.NoError(t, err)
	_, err = env.withdrawals.Resolve(ctx, 1, res.Withdrawal.ID, domain.DecisionReject, "")
	require.NoError(t, err)

	ok, err := env.ledger.Verify(ctx, acc.ID)
	require.NoError(t, err)
	assert.True(t, ok)
	env.requireLedgerConsistent(t, acc.ID)

	// баланс и total_withdrawn сдвинуты согласованно, журнал и выводы - нет
	require.NoError(t, env.store.InTx(ctx, func(tx repository.Tx) error {
		a, err := tx.GetAccountForUpdate(ctx, acc.ID)
		if err != nil {
			return err
		}
		a.Balance = a.Balance.Sub(decimal.NewFromInt(10))
		a.TotalWithdrawn = a.TotalWithdrawn.Add(decimal.NewFromInt(10))
		return tx.UpdateAccount(ctx, a)
	}))

	ok, err = env.ledger.Verify(ctx, acc.ID)
	require.NoError(t, err)
	assert.False(t, ok)
}
