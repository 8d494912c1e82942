package service

import (
	"context"
	"sync"
	"testing"
	"time"

	"earning_bot/internal/domain"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func referredPair(t *testing.T, env *testEnv) (referrer, referred *domain.Account, edgeID int64) {
	t.Helper()
	referrer = env.register(t, 100, "")
	referred = env.register(t, 200, "ref_"+referrer.ReferralCode)
	edges, err := env.referrals.List(context.Background(), referrer.ID)
	require.NoError(t, err)
	require.Len(t, edges, 1)
	return referrer, referred, edges[0].ID
}

func TestReferralBonusPaidOnce(t *testing.T) {
	env := newTestEnv(t)
	ctx := context.Background()
	referrer, _, edgeID := referredPair(t, env)

	res, err := env.referrals.ClaimBonus(ctx, 1, edgeID)
	require.NoError(t, err)
	require.True(t, res.Allowed)
	assert.True(t, res.Amount.Equal(decimal.NewFromInt(10)))

	res, err = env.referrals.ClaimBonus(ctx, 1, edgeID)
	require.NoError(t, err)
	assert.False(t, res.Allowed)
	assert.Equal(t, domain.ReasonBonusAlreadyPaid, res.Reason)

	got := env.account(t, referrer.ID)
	assert.True(t, got.Balance.Equal(decimal.NewFromInt(10)))
	env.requireLedgerConsistent(t, referrer.ID)

	entries, err := env.ledger.History(ctx, referrer.ID, domain.LedgerKindReferral, 10)
	require.NoError(t, err)
	require.Len(t, entries, 1)
	require.NotNil(t, entries[0].ReferralID)
	assert.Equal(t, edgeID, *entries[0].ReferralID)

	assert.Eventually(t, func() bool { return env.notifier.count("referral") == 1 }, time.Second, 10*time.Millisecond)
}

func TestReferralBonusConcurrentClaims(t *testing.T) {
	env := newTestEnv(t)
	ctx := context.Background()
	referrer, _, edgeID := referredPair(t, env)

	var wg sync.WaitGroup
	for i := 0; i < 10; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			_, err := env.referrals.ClaimBonus(ctx, 1, edgeID)
			assert.NoError(t, err)
		}()
	}
	wg.Wait()

	assert.True(t, env.account(t, referrer.ID).Balance.Equal(decimal.NewFromInt(10)))
}

func TestReferralBonusRequiresEngagement(t *testing.T) {
	env := newTestEnv(t)
	ctx := context.Background()
	env.configure(t, func(cfg *domain.EarningConfig) {
		cfg.ReferralActivationAds = 1
	})
	_, referred, edgeID := referredPair(t, env)

	res, err := env.referrals.ClaimBonus(ctx, 1, edgeID)
	require.NoError(t, err)
	assert.Equal(t, domain.ReasonReferralNotEngaged, res.Reason)

	_, err = env.rewards.WatchAd(ctx, referred.ID)
	require.NoError(t, err)

	res, err = env.referrals.ClaimBonus(ctx, 1, edgeID)
	require.NoError(t, err)
	assert.True(t, res.Allowed)
}

func TestReferralBonusBannedReferred(t *testing.T) {
	env := newTestEnv(t)
	ctx := context.Background()
	_, referred, edgeID := referredPair(t, env)
	_, err := env.accounts.SetBanned(ctx, 1, referred.ID, true)
	require.NoError(t, err)

	res, err := env.referrals.ClaimBonus(ctx, 1, edgeID)
	require.NoError(t, err)
	assert.Equal(t, domain.ReasonReferralInactive, res.Reason)

	_, err = env.referrals.ClaimBonus(ctx, 1, 999)
	assert.ErrorIs(t, err, domain.ErrReferralNotFound)
}
