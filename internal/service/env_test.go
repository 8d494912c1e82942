package service

import (
	"context"
	"sync"
	"testing"
	"time"

	"earning_bot/internal/cache"
	"earning_bot/internal/domain"
	"earning_bot/internal/repository"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/require"
)

type testClock struct {
	mu sync.Mutex
	t  time.Time
}

func (c *testClock) Now() time.Time {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.t
}

func (c *testClock) Advance(d time.Duration) {
	c.mu.Lock()
	c.t = c.t.Add(d)
	c.mu.Unlock()
}

type sentNotification struct {
	kind      string
	accountID int64
	status    domain.WithdrawalStatus
	amount    decimal.Decimal
}

type recordingNotifier struct {
	mu   sync.Mutex
	sent []sentNotification
	err  error
}

func (n *recordingNotifier) add(s sentNotification) error {
	n.mu.Lock()
	defer n.mu.Unlock()
	n.sent = append(n.sent, s)
	return n.err
}

func (n *recordingNotifier) NotifyWithdrawalCreated(_ context.Context, acc *domain.Account, w *domain.Withdrawal) error {
	return n.add(sentNotification{kind: "created", accountID: acc.ID, status: w.Status, amount: w.Amount})
}

func (n *recordingNotifier) NotifyWithdrawalResolved(_ context.Context, acc *domain.Account, w *domain.Withdrawal) error {
	return n.add(sentNotification{kind: "resolved", accountID: acc.ID, status: w.Status, amount: w.Amount})
}

func (n *recordingNotifier) NotifyReferralBonus(_ context.Context, referrer *domain.Account, amount decimal.Decimal) error {
	return n.add(sentNotification{kind: "referral", accountID: referrer.ID, amount: amount})
}

func (n *recordingNotifier) count(kind string) int {
	n.mu.Lock()
	defer n.mu.Unlock()
	c := 0
	for _, s := range n.sent {
		if s.kind == kind {
			c++
		}
	}
	return c
}

type recordingPublisher struct {
	mu     sync.Mutex
	events map[int64][]domain.Event
}

func (p *recordingPublisher) Publish(accountID int64, ev domain.Event) {
	p.mu.Lock()
	defer p.mu.Unlock()
	if p.events == nil {
		p.events = make(map[int64][]domain.Event)
	}
	p.events[accountID] = append(p.events[accountID], ev)
}

func (p *recordingPublisher) count(accountID int64) int {
	p.mu.Lock()
	defer p.mu.Unlock()
	return len(p.events[accountID])
}

type testEnv struct {
	store       *repository.MemoryStore
	clock       *testClock
	notifier    *recordingNotifier
	events      *recordingPublisher
	settings    *SettingsService
	ledger      *LedgerService
	accounts    *AccountService
	rewards     *RewardService
	withdrawals *WithdrawalService
	referrals   *ReferralService
	audit       *AuditService
}

var day0 = time.Date(2024, 5, 10, 12, 0, 0, 0, time.UTC)

func newTestEnv(t *testing.T) *testEnv {
	t.Helper()
	store := repository.NewMemoryStore()
	clock := &testClock{t: day0}
	notifier := &recordingNotifier{}
	events := &recordingPublisher{}

	settings := NewSettingsService(store, cache.NewMemory())
	settings.now = clock.Now
	ledger := NewLedgerService(store)
	ledger.now = clock.Now

	env := &testEnv{
		store:       store,
		clock:       clock,
		notifier:    notifier,
		events:      events,
		settings:    settings,
		ledger:      ledger,
		accounts:    NewAccountService(store, settings, ledger, events, "earnbot", time.UTC),
		rewards:     NewRewardService(store, settings, ledger, events, time.UTC),
		withdrawals: NewWithdrawalService(store, settings, notifier, events),
		referrals:   NewReferralService(store, settings, ledger, notifier, events),
		audit:       NewAuditService(store),
	}
	env.accounts.now = clock.Now
	env.rewards.now = clock.Now
	env.withdrawals.now = clock.Now
	env.referrals.now = clock.Now
	env.audit.now = clock.Now
	return env
}

func (e *testEnv) configure(t *testing.T, mutate func(cfg *domain.EarningConfig)) {
	t.Helper()
	cfg := domain.DefaultEarningConfig()
	mutate(&cfg)
	_, err := e.settings.UpdateEarningConfig(context.Background(), 1, cfg)
	require.NoError(t, err)
}

func (e *testEnv) register(t *testing.T, tgID int64, ref string) *domain.Account {
	t.Helper()
	res, err := e.accounts.RegisterOrTouch(context.Background(), domain.Profile{TgID: tgID, Username: "user"}, ref)
	require.NoError(t, err)
	return res.Account
}

func (e *testEnv) credit(t *testing.T, accountID int64, amount string) {
	t.Helper()
	ctx := context.Background()
	require.NoError(t, e.store.InTx(ctx, func(tx repository.Tx) error {
		acc, err := tx.GetAccountForUpdate(ctx, accountID)
		if err != nil {
			return err
		}
		_, err = e.ledger.ApplyReward(ctx, tx, acc, Reward{
			Kind:   domain.LedgerKindBonus,
			Amount: decimal.RequireFromString(amount),
		})
		return err
	}))
}

func (e *testEnv) account(t *testing.T, id int64) *domain.Account {
	t.Helper()
	acc, err := e.store.GetAccount(context.Background(), id)
	require.NoError(t, err)
	return acc
}

// баланс = сумма журнала - одобренные выводы, начислено = сумма журнала
func (e *testEnv) requireLedgerConsistent(t *testing.T, id int64) {
	t.Helper()
	ctx := context.Background()
	acc := e.account(t, id)
	ok, err := e.ledger.Verify(ctx, id)
	require.NoError(t, err)
	require.True(t, ok, "аккаунт расходится с журналом")

	sum, err := e.store.SumLedger(ctx, domain.LedgerFilter{AccountID: id})
	require.NoError(t, err)
	wd, err := e.store.SummarizeWithdrawals(ctx, id)
	require.NoError(t, err)
	require.True(t, acc.Balance.Equal(sum.Sub(wd.ApprovedAmount)),
		"balance %s != ledger %s - approved %s", acc.Balance, sum, wd.ApprovedAmount)
	require.True(t, acc.TotalWithdrawn.Equal(wd.ApprovedAmount))
	require.False(t, acc.Balance.IsNegative())
}
