package domain

import (
	"time"

	"github.com/shopspring/decimal"
)

// Task - задание от админа (подписка, вступление в канал и т.п.)
type Task struct {
	ID               int64           `db:"id" json:"id"`
	Title            string          `db:"title" json:"title"`
	Description      string          `db:"description" json:"description"`
	Reward           decimal.Decimal `db:"reward" json:"reward"`
	URL              string          `db:"url" json:"url"`
	IsActive         bool            `db:"is_active" json:"is_active"`
	DailyLimit       int             `db:"daily_limit" json:"daily_limit"`
	TotalCompletions int64           `db:"total_completions" json:"total_completions"`
	CreatedAt        time.Time       `db:"created_at" json:"created_at"`
	UpdatedAt        time.Time       `db:"updated_at" json:"updated_at"`
}

// TaskCompletion уникален по (account, task, день)
type TaskCompletion struct {
	AccountID   int64     `db:"account_id" json:"account_id"`
	TaskID      int64     `db:"task_id" json:"task_id"`
	CompletedOn time.Time `db:"completed_on" json:"completed_on"`
	CompletedAt time.Time `db:"completed_at" json:"completed_at"`
}

// TaskView - задание глазами конкретного пользователя
type TaskView struct {
	TaskID         int64           `json:"task_id"`
	Title          string          `json:"title"`
	Description    string          `json:"description"`
	URL            string          `json:"url"`
	Reward         decimal.Decimal `json:"reward"`
	DailyLimit     int             `json:"daily_limit"`
	CompletedToday bool            `json:"completed_today"`
}
