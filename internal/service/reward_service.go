package service

import (
	"context"
	"fmt"
	"strings"
	"time"

	"earning_bot/internal/domain"
	"earning_bot/internal/logger"
	"earning_bot/internal/metrics"
	"earning_bot/internal/policy"
	"earning_bot/internal/repository"

	"github.com/shopspring/decimal"
)

// AdResult - ответ на просмотр рекламы; отказ это не ошибка
type AdResult struct {
	Allowed                  bool            `json:"allowed"`
	Reason                   domain.Reason   `json:"reason,omitempty"`
	State                    policy.AdState  `json:"state"`
	Reward                   decimal.Decimal `json:"reward"`
	NewBalance               decimal.Decimal `json:"new_balance"`
	AdsWatchedToday          int             `json:"ads_watched_today"`
	DailyLimit               int             `json:"daily_limit"`
	RemainingCooldownSeconds int             `json:"remaining_cooldown_seconds"`
}

// TaskResult - ответ на выполнение задания
type TaskResult struct {
	Allowed    bool            `json:"allowed"`
	Reason     domain.Reason   `json:"reason,omitempty"`
	Reward     decimal.Decimal `json:"reward"`
	NewBalance decimal.Decimal `json:"new_balance"`
}

// NewTask - параметры задания от админа
type NewTask struct {
	Title       string          `json:"title" binding:"required"`
	Description string          `json:"description"`
	Reward      decimal.Decimal `json:"reward"`
	URL         string          `json:"url"`
	DailyLimit  int             `json:"daily_limit"`
}

// RewardService - реклама и задания
type RewardService struct {
	store    repository.Store
	settings *SettingsService
	ledger   *LedgerService
	events   EventPublisher
	now      func() time.Time
	loc      *time.Location
}

func NewRewardService(store repository.Store, settings *SettingsService, ledger *LedgerService, events EventPublisher, loc *time.Location) *RewardService {
	if events == nil {
		events = nopPublisher{}
	}
	if loc == nil {
		loc = time.UTC
	}
	return &RewardService{store: store, settings: settings, ledger: ledger, events: events, now: time.Now, loc: loc}
}

// AdStatus - состояние без начисления, для экрана "смотреть рекламу"
func (s *RewardService) AdStatus(ctx context.Context, accountID int64) (*AdResult, error) {
	cfg, err := s.settings.EarningConfig(ctx)
	if err != nil {
		return nil, err
	}
	acc, err := s.store.GetAccount(ctx, accountID)
	if err != nil {
		return nil, err
	}
	now := s.now()
	d := policy.EvaluateAd(acc, cfg, now, policy.Today(now, s.loc))
	return &AdResult{
		Allowed:                  d.State == policy.AdEligible,
		Reason:                   d.Reason,
		State:                    d.State,
		Reward:                   cfg.AdReward,
		NewBalance:               acc.Balance,
		AdsWatchedToday:          d.AdsToday,
		DailyLimit:               cfg.AdDailyLimit,
		RemainingCooldownSeconds: d.RemainingSeconds,
	}, nil
}

// WatchAd засчитывает просмотр. Проверка и начисление под одной блокировкой
// строки аккаунта, поэтому параллельные запросы не пробьют лимит и кулдаун.
func (s *RewardService) WatchAd(ctx context.Context, accountID int64) (*AdResult, error) {
	cfg, err := s.settings.EarningConfig(ctx)
	if err != nil {
		return nil, err
	}

	var (
		res   *AdResult
		entry *domain.LedgerEntry
		acc   *domain.Account
	)
	err = s.store.InTx(ctx, func(tx repository.Tx) error {
		res, entry = nil, nil
		var err error
		acc, err = tx.GetAccountForUpdate(ctx, accountID)
		if err != nil {
			return err
		}
		now := s.now()
		today := policy.Today(now, s.loc)

		d := policy.EvaluateAd(acc, cfg, now, today)
		res = &AdResult{
			State:                    d.State,
			Reason:                   d.Reason,
			NewBalance:               acc.Balance,
			AdsWatchedToday:          d.AdsToday,
			DailyLimit:               cfg.AdDailyLimit,
			RemainingCooldownSeconds: d.RemainingSeconds,
		}
		if d.State != policy.AdEligible {
			return nil
		}

		acc.AdsWatchedToday = d.AdsToday + 1
		acc.AdsDay = &today
		acc.AdsWatchedTotal++
		acc.LastAdWatchAt = &now

		entry, err = s.ledger.ApplyReward(ctx, tx, acc, Reward{
			Kind:        domain.LedgerKindAd,
			Amount:      cfg.AdReward,
			Description: "ad view",
		})
		if err != nil {
			return err
		}

		res.Allowed = true
		res.Reward = entry.Amount
		res.NewBalance = acc.Balance
		res.AdsWatchedToday = acc.AdsWatchedToday
		if cfg.AdCooldownSeconds > 0 && acc.AdsWatchedToday < cfg.AdDailyLimit {
			res.State = policy.AdCooldown
			res.RemainingCooldownSeconds = cfg.AdCooldownSeconds
		} else if acc.AdsWatchedToday >= cfg.AdDailyLimit {
			res.State = policy.AdDailyLimitReached
		}
		return nil
	})
	if err != nil {
		return nil, fmt.Errorf("watch ad %d: %w", accountID, err)
	}

	if !res.Allowed {
		metrics.PolicyDenials.WithLabelValues("watch_ad", string(res.Reason)).Inc()
		return res, nil
	}
	recordRewards(entry)
	s.events.Publish(accountID, balanceEvent(acc, entry.Amount, domain.LedgerKindAd))
	return res, nil
}

// ListTasks - активные задания с отметкой о выполнении сегодня
func (s *RewardService) ListTasks(ctx context.Context, accountID int64) ([]domain.TaskView, error) {
	tasks, err := s.store.ListTasks(ctx, true)
	if err != nil {
		return nil, err
	}
	done, err := s.store.CompletedTaskIDs(ctx, accountID, policy.Today(s.now(), s.loc))
	if err != nil {
		return nil, err
	}
	views := make([]domain.TaskView, 0, len(tasks))
	for _, t := range tasks {
		views = append(views, domain.TaskView{
			TaskID:         t.ID,
			Title:          t.Title,
			Description:    t.Description,
			URL:            t.URL,
			Reward:         t.Reward,
			DailyLimit:     t.DailyLimit,
			CompletedToday: done[t.ID],
		})
	}
	return views, nil
}

// AllTasks - включая выключенные, для админки
func (s *RewardService) AllTasks(ctx context.Context) ([]domain.Task, error) {
	return s.store.ListTasks(ctx, false)
}

// CompleteTask засчитывает задание; повтор в тот же день - already_completed
func (s *RewardService) CompleteTask(ctx context.Context, accountID, taskID int64) (*TaskResult, error) {
	var (
		res   *TaskResult
		entry *domain.LedgerEntry
		acc   *domain.Account
	)
	err := s.store.InTx(ctx, func(tx repository.Tx) error {
		res, entry = nil, nil
		var err error
		acc, err = tx.GetAccountForUpdate(ctx, accountID)
		if err != nil {
			return err
		}
		task, err := tx.GetTask(ctx, taskID)
		if err != nil {
			return err
		}
		now := s.now()
		today := policy.Today(now, s.loc)

		count, err := tx.CountCompletions(ctx, accountID, taskID, today)
		if err != nil {
			return err
		}
		res = &TaskResult{NewBalance: acc.Balance}
		if reason := policy.EvaluateTask(acc, task, count); reason != "" {
			res.Reason = reason
			return nil
		}

		inserted, err := tx.InsertCompletion(ctx, &domain.TaskCompletion{
			AccountID:   accountID,
			TaskID:      taskID,
			CompletedOn: today,
			CompletedAt: now,
		})
		if err != nil {
			return err
		}
		if !inserted {
			res.Reason = domain.ReasonAlreadyCompleted
			return nil
		}

		id := task.ID
		entry, err = s.ledger.ApplyReward(ctx, tx, acc, Reward{
			Kind:        domain.LedgerKindTask,
			Amount:      task.Reward,
			Description: "task: " + task.Title,
			TaskID:      &id,
		})
		if err != nil {
			return err
		}
		if err := tx.IncrementTaskCompletions(ctx, taskID); err != nil {
			return err
		}
		res.Allowed = true
		res.Reward = entry.Amount
		res.NewBalance = acc.Balance
		return nil
	})
	if err != nil {
		return nil, fmt.Errorf("complete task %d for %d: %w", taskID, accountID, err)
	}

	if !res.Allowed {
		metrics.PolicyDenials.WithLabelValues("complete_task", string(res.Reason)).Inc()
		return res, nil
	}
	recordRewards(entry)
	s.events.Publish(accountID, balanceEvent(acc, entry.Amount, domain.LedgerKindTask))
	return res, nil
}

// CreateTask - новое задание от админа
func (s *RewardService) CreateTask(ctx context.Context, adminTgID int64, in NewTask) (*domain.Task, error) {
	in.Title = strings.TrimSpace(in.Title)
	if in.Title == "" {
		return nil, fmt.Errorf("empty title: %w", domain.ErrInvalidInput)
	}
	if !in.Reward.IsPositive() {
		return nil, domain.ErrInvalidAmount
	}
	if in.DailyLimit <= 0 {
		in.DailyLimit = 1
	}

	task := &domain.Task{
		Title:       in.Title,
		Description: in.Description,
		Reward:      in.Reward.Round(2),
		URL:         in.URL,
		IsActive:    true,
		DailyLimit:  in.DailyLimit,
	}
	err := s.store.InTx(ctx, func(tx repository.Tx) error {
		now := s.now()
		task.CreatedAt, task.UpdatedAt = now, now
		if err := tx.InsertTask(ctx, task); err != nil {
			return err
		}
		return tx.InsertAudit(ctx, &domain.AuditLog{
			ActorID:   adminTgID,
			Action:    domain.AuditActionTaskCreate,
			Category:  domain.AuditCategoryAdmin,
			Details:   map[string]any{"task_id": task.ID, "title": task.Title, "reward": task.Reward.String()},
			CreatedAt: now,
		})
	})
	if err != nil {
		return nil, fmt.Errorf("create task: %w", err)
	}
	logger.WithContext(ctx).Info("task created", "task_id", task.ID, "admin", adminTgID)
	return task, nil
}

// ToggleTask включает или выключает задание
func (s *RewardService) ToggleTask(ctx context.Context, adminTgID, taskID int64, active bool) (*domain.Task, error) {
	var task *domain.Task
	err := s.store.InTx(ctx, func(tx repository.Tx) error {
		now := s.now()
		var err error
		task, err = tx.SetTaskActive(ctx, taskID, active, now)
		if err != nil {
			return err
		}
		return tx.InsertAudit(ctx, &domain.AuditLog{
			ActorID:   adminTgID,
			Action:    domain.AuditActionTaskToggle,
			Category:  domain.AuditCategoryAdmin,
			Details:   map[string]any{"task_id": taskID, "active": active},
			CreatedAt: now,
		})
	})
	if err != nil {
		return nil, fmt.Errorf("toggle task %d: %w", taskID, err)
	}
	return task, nil
}
