package repository

import (
	"context"
	"sort"
	"sync"
	"time"

	"earning_bot/internal/domain"

	"github.com/shopspring/decimal"
)

// MemoryStore - хранилище в памяти для тестов, в main не используется.
// Транзакция держит общий мьютекс и работает над копией состояния,
// копия подменяет оригинал только при успехе fn.
type MemoryStore struct {
	mu sync.Mutex
	st *memState

	// ErrorOnNextCall - следующая InTx вернет эту ошибку без изменений
	ErrorOnNextCall error
}

type completionKey struct {
	accountID int64
	taskID    int64
	day       time.Time
}

type memState struct {
	seq         map[string]int64
	accounts    map[int64]domain.Account
	ledger      []domain.LedgerEntry
	tasks       map[int64]domain.Task
	completions map[completionKey]domain.TaskCompletion
	referrals   map[int64]domain.ReferralEdge
	withdrawals map[int64]domain.Withdrawal
	settings    map[string]domain.Setting
	audit       []domain.AuditLog
}

func NewMemoryStore() *MemoryStore {
	return &MemoryStore{st: &memState{
		seq:         make(map[string]int64),
		accounts:    make(map[int64]domain.Account),
		tasks:       make(map[int64]domain.Task),
		completions: make(map[completionKey]domain.TaskCompletion),
		referrals:   make(map[int64]domain.ReferralEdge),
		withdrawals: make(map[int64]domain.Withdrawal),
		settings:    make(map[string]domain.Setting),
	}}
}

func (s *memState) clone() *memState {
	c := &memState{
		seq:         make(map[string]int64, len(s.seq)),
		accounts:    make(map[int64]domain.Account, len(s.accounts)),
		ledger:      append([]domain.LedgerEntry(nil), s.ledger...),
		tasks:       make(map[int64]domain.Task, len(s.tasks)),
		completions: make(map[completionKey]domain.TaskCompletion, len(s.completions)),
		referrals:   make(map[int64]domain.ReferralEdge, len(s.referrals)),
		withdrawals: make(map[int64]domain.Withdrawal, len(s.withdrawals)),
		settings:    make(map[string]domain.Setting, len(s.settings)),
		audit:       append([]domain.AuditLog(nil), s.audit...),
	}
	for k, v := range s.seq {
		c.seq[k] = v
	}
	for k, v := range s.accounts {
		c.accounts[k] = v
	}
	for k, v := range s.tasks {
		c.tasks[k] = v
	}
	for k, v := range s.completions {
		c.completions[k] = v
	}
	for k, v := range s.referrals {
		c.referrals[k] = v
	}
	for k, v := range s.withdrawals {
		c.withdrawals[k] = v
	}
	for k, v := range s.settings {
		c.settings[k] = v
	}
	return c
}

func (s *memState) next(table string) int64 {
	s.seq[table]++
	return s.seq[table]
}

// InTx сериализует транзакции: состояние меняется целиком или никак
func (m *MemoryStore) InTx(ctx context.Context, fn func(tx Tx) error) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	m.mu.Lock()
	defer m.mu.Unlock()

	if m.ErrorOnNextCall != nil {
		err := m.ErrorOnNextCall
		m.ErrorOnNextCall = nil
		return err
	}

	work := m.st.clone()
	if err := fn(&memTx{st: work}); err != nil {
		return err
	}
	m.st = work
	return nil
}

// read выполняет чтение под мьютексом
func (m *MemoryStore) read(fn func(st *memState)) {
	m.mu.Lock()
	defer m.mu.Unlock()
	fn(m.st)
}

// memTx работает над рабочей копией; блокировки не нужны, мьютекс уже взят
type memTx struct {
	st *memState
}

func (t *memTx) GetAccountForUpdate(_ context.Context, id int64) (*domain.Account, error) {
	a, ok := t.st.accounts[id]
	if !ok {
		return nil, domain.ErrAccountNotFound
	}
	return &a, nil
}

func (t *memTx) GetAccountByTgIDForUpdate(_ context.Context, tgID int64) (*domain.Account, error) {
	return t.st.accountBy(func(a domain.Account) bool { return a.TgID == tgID })
}

func (t *memTx) GetAccountByReferralCodeForUpdate(_ context.Context, code string) (*domain.Account, error) {
	return t.st.accountBy(func(a domain.Account) bool { return a.ReferralCode == code })
}

func (s *memState) accountBy(match func(a domain.Account) bool) (*domain.Account, error) {
	for _, a := range s.accounts {
		if match(a) {
			a := a
			return &a, nil
		}
	}
	return nil, domain.ErrAccountNotFound
}

func (t *memTx) InsertAccount(_ context.Context, a *domain.Account) (bool, error) {
	for _, existing := range t.st.accounts {
		if existing.TgID == a.TgID || existing.ReferralCode == a.ReferralCode {
			return false, nil
		}
	}
	a.ID = t.st.next("accounts")
	a.UpdatedAt = a.CreatedAt
	t.st.accounts[a.ID] = *a
	return true, nil
}

func (t *memTx) UpdateAccount(_ context.Context, a *domain.Account) error {
	prev, ok := t.st.accounts[a.ID]
	if !ok {
		return domain.ErrAccountNotFound
	}
	// неизменяемые поля не трогаем, как и UPDATE в postgres
	next := *a
	next.TgID, next.ReferralCode, next.ReferredBy, next.CreatedAt = prev.TgID, prev.ReferralCode, prev.ReferredBy, prev.CreatedAt
	t.st.accounts[a.ID] = next
	return nil
}

func (t *memTx) AppendLedger(_ context.Context, e *domain.LedgerEntry) error {
	if _, ok := t.st.accounts[e.AccountID]; !ok {
		return domain.ErrAccountNotFound
	}
	e.ID = t.st.next("ledger_entries")
	t.st.ledger = append(t.st.ledger, *e)
	return nil
}

func (t *memTx) GetTask(_ context.Context, id int64) (*domain.Task, error) {
	task, ok := t.st.tasks[id]
	if !ok {
		return nil, domain.ErrTaskNotFound
	}
	return &task, nil
}

func (t *memTx) InsertTask(_ context.Context, task *domain.Task) error {
	task.ID = t.st.next("tasks")
	task.UpdatedAt = task.CreatedAt
	t.st.tasks[task.ID] = *task
	return nil
}

func (t *memTx) SetTaskActive(_ context.Context, id int64, active bool, at time.Time) (*domain.Task, error) {
	task, ok := t.st.tasks[id]
	if !ok {
		return nil, domain.ErrTaskNotFound
	}
	task.IsActive = active
	task.UpdatedAt = at
	t.st.tasks[id] = task
	return &task, nil
}

func (t *memTx) CountCompletions(_ context.Context, accountID, taskID int64, day time.Time) (int, error) {
	if _, ok := t.st.completions[completionKey{accountID, taskID, day}]; ok {
		return 1, nil
	}
	return 0, nil
}

func (t *memTx) InsertCompletion(_ context.Context, c *domain.TaskCompletion) (bool, error) {
	key := completionKey{c.AccountID, c.TaskID, c.CompletedOn}
	if _, ok := t.st.completions[key]; ok {
		return false, nil
	}
	t.st.completions[key] = *c
	return true, nil
}

func (t *memTx) IncrementTaskCompletions(_ context.Context, taskID int64) error {
	task, ok := t.st.tasks[taskID]
	if !ok {
		return domain.ErrTaskNotFound
	}
	task.TotalCompletions++
	t.st.tasks[taskID] = task
	return nil
}

func (t *memTx) InsertReferral(_ context.Context, e *domain.ReferralEdge) (bool, error) {
	for _, existing := range t.st.referrals {
		if existing.ReferredID == e.ReferredID {
			return false, nil
		}
	}
	e.ID = t.st.next("referrals")
	t.st.referrals[e.ID] = *e
	return true, nil
}

func (t *memTx) GetReferralForUpdate(_ context.Context, id int64) (*domain.ReferralEdge, error) {
	e, ok := t.st.referrals[id]
	if !ok {
		return nil, domain.ErrReferralNotFound
	}
	return &e, nil
}

func (t *memTx) MarkReferralPaid(_ context.Context, id int64, at time.Time) (bool, error) {
	e, ok := t.st.referrals[id]
	if !ok || e.BonusPaid {
		return false, nil
	}
	e.BonusPaid = true
	e.PaidAt = &at
	t.st.referrals[id] = e
	return true, nil
}

func (t *memTx) InsertWithdrawal(_ context.Context, w *domain.Withdrawal) error {
	w.ID = t.st.next("withdrawals")
	t.st.withdrawals[w.ID] = *w
	return nil
}

func (t *memTx) GetWithdrawalForUpdate(_ context.Context, id int64) (*domain.Withdrawal, error) {
	w, ok := t.st.withdrawals[id]
	if !ok {
		return nil, domain.ErrWithdrawalNotFound
	}
	return &w, nil
}

func (t *memTx) UpdateWithdrawal(_ context.Context, w *domain.Withdrawal) error {
	if _, ok := t.st.withdrawals[w.ID]; !ok {
		return domain.ErrWithdrawalNotFound
	}
	t.st.withdrawals[w.ID] = *w
	return nil
}

func (t *memTx) PutSetting(_ context.Context, key string, value []byte, at time.Time) (*domain.Setting, error) {
	s := t.st.settings[key]
	s.Key = key
	s.Value = append([]byte(nil), value...)
	s.Version++
	s.UpdatedAt = at
	t.st.settings[key] = s
	return &s, nil
}

func (t *memTx) InsertAudit(_ context.Context, l *domain.AuditLog) error {
	l.ID = t.st.next("audit_logs")
	t.st.audit = append(t.st.audit, *l)
	return nil
}

// --- Reader ---

func (m *MemoryStore) GetAccount(_ context.Context, id int64) (*domain.Account, error) {
	var (
		out *domain.Account
		err error
	)
	m.read(func(st *memState) {
		a, ok := st.accounts[id]
		if !ok {
			err = domain.ErrAccountNotFound
			return
		}
		out = &a
	})
	return out, err
}

func (m *MemoryStore) GetAccountByTgID(_ context.Context, tgID int64) (*domain.Account, error) {
	var (
		out *domain.Account
		err error
	)
	m.read(func(st *memState) {
		out, err = st.accountBy(func(a domain.Account) bool { return a.TgID == tgID })
	})
	return out, err
}

func (m *MemoryStore) ListAccounts(_ context.Context, offset, limit int) ([]domain.Account, int, error) {
	var all []domain.Account
	m.read(func(st *memState) {
		for _, a := range st.accounts {
			all = append(all, a)
		}
	})
	sort.Slice(all, func(i, j int) bool {
		if !all[i].CreatedAt.Equal(all[j].CreatedAt) {
			return all[i].CreatedAt.After(all[j].CreatedAt)
		}
		return all[i].ID > all[j].ID
	})
	total := len(all)
	if offset >= total {
		return nil, total, nil
	}
	end := offset + clampLimit(limit)
	if end > total {
		end = total
	}
	return all[offset:end], total, nil
}

func (m *MemoryStore) ListTasks(_ context.Context, activeOnly bool) ([]domain.Task, error) {
	var out []domain.Task
	m.read(func(st *memState) {
		for _, t := range st.tasks {
			if t.IsActive || !activeOnly {
				out = append(out, t)
			}
		}
	})
	sort.Slice(out, func(i, j int) bool { return out[i].ID < out[j].ID })
	return out, nil
}

func (m *MemoryStore) CompletedTaskIDs(_ context.Context, accountID int64, day time.Time) (map[int64]bool, error) {
	done := make(map[int64]bool)
	m.read(func(st *memState) {
		for k := range st.completions {
			if k.accountID == accountID && k.day.Equal(day) {
				done[k.taskID] = true
			}
		}
	})
	return done, nil
}

func ledgerMatch(e domain.LedgerEntry, f domain.LedgerFilter) bool {
	if e.AccountID != f.AccountID {
		return false
	}
	if f.Kind != "" && e.Kind != f.Kind {
		return false
	}
	if f.Since != nil && e.CreatedAt.Before(*f.Since) {
		return false
	}
	return true
}

func (m *MemoryStore) ListLedger(_ context.Context, f domain.LedgerFilter) ([]domain.LedgerEntry, error) {
	var out []domain.LedgerEntry
	m.read(func(st *memState) {
		for i := len(st.ledger) - 1; i >= 0; i-- {
			if ledgerMatch(st.ledger[i], f) {
				out = append(out, st.ledger[i])
			}
		}
	})
	sort.SliceStable(out, func(i, j int) bool { return out[i].CreatedAt.After(out[j].CreatedAt) })
	if limit := clampLimit(f.Limit); len(out) > limit {
		out = out[:limit]
	}
	return out, nil
}

func (m *MemoryStore) SumLedger(_ context.Context, f domain.LedgerFilter) (decimal.Decimal, error) {
	sum := decimal.Zero
	m.read(func(st *memState) {
		for _, e := range st.ledger {
			if ledgerMatch(e, f) {
				sum = sum.Add(e.Amount)
			}
		}
	})
	return sum, nil
}

func (m *MemoryStore) SummarizeWithdrawals(_ context.Context, accountID int64) (*domain.WithdrawalSummary, error) {
	sum := &domain.WithdrawalSummary{ApprovedAmount: decimal.Zero}
	m.read(func(st *memState) {
		for _, w := range st.withdrawals {
			if w.AccountID != accountID {
				continue
			}
			sum.Total++
			switch w.Status {
			case domain.WithdrawalStatusPending:
				sum.Pending++
			case domain.WithdrawalStatusApproved:
				sum.ApprovedAmount = sum.ApprovedAmount.Add(w.Amount)
			}
		}
	})
	return sum, nil
}

func (m *MemoryStore) ListWithdrawals(_ context.Context, f domain.WithdrawalFilter) ([]domain.Withdrawal, error) {
	var out []domain.Withdrawal
	m.read(func(st *memState) {
		for _, w := range st.withdrawals {
			if f.AccountID != 0 && w.AccountID != f.AccountID {
				continue
			}
			if f.Status != "" && w.Status != f.Status {
				continue
			}
			out = append(out, w)
		}
	})
	asc := f.Status == domain.WithdrawalStatusPending
	sort.Slice(out, func(i, j int) bool {
		if asc {
			return out[i].ID < out[j].ID
		}
		return out[i].ID > out[j].ID
	})
	if limit := clampLimit(f.Limit); len(out) > limit {
		out = out[:limit]
	}
	return out, nil
}

func (m *MemoryStore) ListReferrals(_ context.Context, referrerID int64) ([]domain.ReferralEdge, error) {
	var out []domain.ReferralEdge
	m.read(func(st *memState) {
		for _, e := range st.referrals {
			if e.ReferrerID == referrerID {
				out = append(out, e)
			}
		}
	})
	sort.Slice(out, func(i, j int) bool { return out[i].ID > out[j].ID })
	return out, nil
}

func (m *MemoryStore) GetSetting(_ context.Context, key string) (*domain.Setting, error) {
	var (
		out *domain.Setting
		err error
	)
	m.read(func(st *memState) {
		s, ok := st.settings[key]
		if !ok {
			err = domain.ErrSettingNotFound
			return
		}
		s.Value = append([]byte(nil), s.Value...)
		out = &s
	})
	return out, err
}

func (m *MemoryStore) PlatformStats(_ context.Context, today time.Time) (*domain.PlatformStats, error) {
	s := &domain.PlatformStats{
		TotalBalance:   decimal.Zero,
		TotalEarned:    decimal.Zero,
		TotalWithdrawn: decimal.Zero,
		PendingAmount:  decimal.Zero,
	}
	m.read(func(st *memState) {
		for _, a := range st.accounts {
			s.TotalAccounts++
			if a.IsBanned {
				s.BannedAccounts++
			}
			if a.LastLoginDate != nil && a.LastLoginDate.Equal(today) {
				s.ActiveToday++
			}
			s.TotalBalance = s.TotalBalance.Add(a.Balance)
			s.TotalEarned = s.TotalEarned.Add(a.TotalEarned)
			s.TotalWithdrawn = s.TotalWithdrawn.Add(a.TotalWithdrawn)
		}
		for _, w := range st.withdrawals {
			if w.Status == domain.WithdrawalStatusPending {
				s.PendingWithdrawals++
				s.PendingAmount = s.PendingAmount.Add(w.Amount)
			}
		}
	})
	return s, nil
}

func (m *MemoryStore) ListAudit(_ context.Context, accountID int64, limit int) ([]domain.AuditLog, error) {
	var out []domain.AuditLog
	m.read(func(st *memState) {
		for i := len(st.audit) - 1; i >= 0; i-- {
			if accountID == 0 || st.audit[i].AccountID == accountID {
				out = append(out, st.audit[i])
			}
		}
	})
	if limit = clampLimit(limit); len(out) > limit {
		out = out[:limit]
	}
	return out, nil
}

var _ Store = (*MemoryStore)(nil)
