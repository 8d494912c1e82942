package repository

import (
	"context"
	"fmt"
	"time"

	"earning_bot/internal/domain"

	"github.com/jackc/pgx/v5"
)

const taskColumns = `id, title, description, reward, url, is_active, daily_limit, total_completions, created_at, updated_at`

func scanTask(row pgx.Row) (*domain.Task, error) {
	var t domain.Task
	if err := row.Scan(&t.ID, &t.Title, &t.Description, &t.Reward, &t.URL, &t.IsActive,
		&t.DailyLimit, &t.TotalCompletions, &t.CreatedAt, &t.UpdatedAt); err != nil {
		if isNoRows(err) {
			return nil, domain.ErrTaskNotFound
		}
		return nil, err
	}
	return &t, nil
}

func (c *conn) GetTask(ctx context.Context, id int64) (*domain.Task, error) {
	return scanTask(c.q.QueryRow(ctx, `SELECT `+taskColumns+` FROM tasks WHERE id = $1`, id))
}

// создает задание (админка, сид)
func (c *conn) InsertTask(ctx context.Context, t *domain.Task) error {
	err := c.q.QueryRow(ctx, `
		INSERT INTO tasks (title, description, reward, url, is_active, daily_limit, created_at, updated_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $7)
		RETURNING id
	`, t.Title, t.Description, t.Reward, t.URL, t.IsActive, t.DailyLimit, t.CreatedAt).Scan(&t.ID)
	if err != nil {
		return fmt.Errorf("insert task: %w", err)
	}
	t.UpdatedAt = t.CreatedAt
	return nil
}

func (c *conn) SetTaskActive(ctx context.Context, id int64, active bool, at time.Time) (*domain.Task, error) {
	return scanTask(c.q.QueryRow(ctx, `
		UPDATE tasks SET is_active = $2, updated_at = $3 WHERE id = $1
		RETURNING `+taskColumns, id, active, at))
}

func (c *conn) ListTasks(ctx context.Context, activeOnly bool) ([]domain.Task, error) {
	rows, err := c.q.Query(ctx, `
		SELECT `+taskColumns+` FROM tasks
		WHERE is_active OR NOT $1
		ORDER BY id
	`, activeOnly)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []domain.Task
	for rows.Next() {
		t, err := scanTask(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, *t)
	}
	return out, rows.Err()
}

func (c *conn) CountCompletions(ctx context.Context, accountID, taskID int64, day time.Time) (int, error) {
	var n int
	err := c.q.QueryRow(ctx, `
		SELECT COUNT(*) FROM task_completions
		WHERE account_id = $1 AND task_id = $2 AND completed_on = $3
	`, accountID, taskID, day).Scan(&n)
	return n, err
}

// false - строка за этот день уже есть
func (c *conn) InsertCompletion(ctx context.Context, tc *domain.TaskCompletion) (bool, error) {
	tag, err := c.q.Exec(ctx, `
		INSERT INTO task_completions (account_id, task_id, completed_on, completed_at)
		VALUES ($1, $2, $3, $4)
		ON CONFLICT (account_id, task_id, completed_on) DO NOTHING
	`, tc.AccountID, tc.TaskID, tc.CompletedOn, tc.CompletedAt)
	if err != nil {
		return false, fmt.Errorf("insert completion: %w", err)
	}
	return tag.RowsAffected() == 1, nil
}

func (c *conn) IncrementTaskCompletions(ctx context.Context, taskID int64) error {
	_, err := c.q.Exec(ctx, `UPDATE tasks SET total_completions = total_completions + 1 WHERE id = $1`, taskID)
	return err
}

// id заданий, выполненных пользователем в этот день
func (c *conn) CompletedTaskIDs(ctx context.Context, accountID int64, day time.Time) (map[int64]bool, error) {
	rows, err := c.q.Query(ctx, `
		SELECT task_id FROM task_completions WHERE account_id = $1 AND completed_on = $2
	`, accountID, day)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	done := make(map[int64]bool)
	for rows.Next() {
		var id int64
		if err := rows.Scan(&id); err != nil {
			return nil, err
		}
		done[id] = true
	}
	return done, rows.Err()
}
