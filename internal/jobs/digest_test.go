package jobs

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

type fakeSource struct {
	stats   domain.PlatformStats
	pending []domain.Withdrawal
	err     error
}

func (f *fakeSource) PlatformStats(context.Context) (*domain.PlatformStats, error) {
	if f.err != nil {
		return nil, f.err
	}
	s := f.stats
	return &s, nil
}

func (f *fakeSource) ListPending(_ context.Context, limit int) ([]domain.Withdrawal, error) {
	if len(f.pending) > limit {
		return f.pending[:limit], nil
	}
	return f.pending, nil
}

type fakeBroadcaster struct {
	texts []string
}

func (f *fakeBroadcaster) NotifyAdmins(_ context.Context, text string) error {
	f.texts = append(f.texts, text)
	return nil
}

func TestDigestSkipsWhenNothingPending(t *testing.T) {
	src := &fakeSource{}
	out := &fakeBroadcaster{}
	d := NewDigest(src, src, out)

	require.NoError(t, d.Run(context.Background()))
	assert.Empty(t, out.texts)
}

func TestDigestListsPending(t *testing.T) {
	created := time.Date(2026, 3, 1, 10, 30, 0, 0, time.UTC)
	src := &fakeSource{
		stats: domain.PlatformStats{PendingWithdrawals: 2, PendingAmount: decimal.NewFromInt(250)},
		pending: []domain.Withdrawal{
			{ID: 1, Amount: decimal.NewFromInt(100), Method: domain.MethodBkash, AccountNumber: "017<1>", CreatedAt: created},
			{ID: 2, Amount: decimal.NewFromInt(150), Method: domain.MethodNagad, AccountNumber: "018", CreatedAt: created},
		},
	}
	out := &fakeBroadcaster{}
	d := NewDigest(src, src, out)

	require.NoError(t, d.Run(context.Background()))
	require.Len(t, out.texts, 1)
	text := out.texts[0]
	assert.Contains(t, text, "Ожидает: 2 на 250.00৳")
	assert.Contains(t, text, "#1 | 100.00৳ | bkash | <code>017&lt;1&gt;</code> | 01.03 10:30")
	assert.Contains(t, text, "#2 | 150.00৳ | nagad")
	assert.NotContains(t, text, "еще")
}

func TestDigestTruncates(t *testing.T) {
	src := &fakeSource{stats: domain.PlatformStats{PendingWithdrawals: digestLimit + 5}}
	for i := 0; i < digestLimit+5; i++ {
		src.pending = append(src.pending, domain.Withdrawal{ID: int64(i + 1), Amount: decimal.NewFromInt(100)})
	}
	d := NewDigest(src, src, &fakeBroadcaster{})

	text, ok, err := d.Text(context.Background())
	require.NoError(t, err)
	assert.True(t, ok)
	assert.Contains(t, text, "еще 5")
}

func TestDigestStatsError(t *testing.T) {
	src := &fakeSource{err: errors.New("db down")}
	out := &fakeBroadcaster{}
	d := NewDigest(src, src, out)

	assert.Error(t, d.Run(context.Background()))
	assert.Empty(t, out.texts)
}

func TestDigestSchedule(t *testing.T) {
	src := &fakeSource{}
	d := NewDigest(src, src, &fakeBroadcaster{})

	c, err := d.Schedule("0 9 * * *", nil)
	require.NoError(t, err)
	assert.Len(t, c.Entries(), 1)
	assert.Equal(t, time.UTC, c.Location())

	_, err = d.Schedule("not a cron", time.UTC)
	assert.Error(t, err)
}
