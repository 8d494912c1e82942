// Package seed заливает стартовые настройки и задания в пустую базу.
package seed

import (
	"context"
	"fmt"
	"os"

	"earning_bot/internal/domain"
	"earning_bot/internal/logger"
	"earning_bot/internal/service"

	"github.com/shopspring/decimal"
	"gopkg.in/yaml.v3"
)

// File - содержимое seed.yaml
type File struct {
	EarningConfig *domain.EarningConfig
	Tasks         []Task
}

// Task - задание в seed-файле
type Task struct {
	Title       string          `yaml:"title"`
	Description string          `yaml:"description"`
	Reward      decimal.Decimal `yaml:"reward"`
	URL         string          `yaml:"url"`
	DailyLimit  int             `yaml:"daily_limit"`
}

type rawFile struct {
	EarningConfig yaml.Node `yaml:"earning_config"`
	Tasks         []Task    `yaml:"tasks"`
}

// Load читает и разбирает файл; отсутствие файла - os.ErrNotExist в цепочке
func Load(path string) (*File, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read seed file: %w", err)
	}
	return Parse(data)
}

// Parse разбирает YAML. Незаданные поля earning_config берутся из значений по умолчанию.
func Parse(data []byte) (*File, error) {
	var raw rawFile
	if err := yaml.Unmarshal(data, &raw); err != nil {
		return nil, fmt.Errorf("failed to parse seed file: %w", err)
	}

	f := &File{Tasks: raw.Tasks}
	if raw.EarningConfig.Kind != 0 {
		cfg := domain.DefaultEarningConfig()
		if err := raw.EarningConfig.Decode(&cfg); err != nil {
			return nil, fmt.Errorf("failed to parse earning_config: %w", err)
		}
		if err := cfg.Validate(); err != nil {
			return nil, err
		}
		f.EarningConfig = &cfg
	}

	for i, t := range f.Tasks {
		if t.Title == "" {
			return nil, fmt.Errorf("task %d: title is required", i)
		}
		if !t.Reward.IsPositive() {
			return nil, fmt.Errorf("task %q: %w", t.Title, domain.ErrInvalidAmount)
		}
	}
	return f, nil
}

// Result - что реально записано
type Result struct {
	ConfigWritten bool
	TasksCreated  int
}

// Apply пишет настройки, если их еще нет, и задания, если таблица заданий пуста.
// Повторный запуск ничего не меняет.
func Apply(ctx context.Context, f *File, settings *service.SettingsService, rewards *service.RewardService) (*Result, error) {
	res := &Result{}

	if f.EarningConfig != nil {
		written, err := settings.EnsureEarningConfig(ctx, *f.EarningConfig)
		if err != nil {
			return nil, fmt.Errorf("seed earning config: %w", err)
		}
		res.ConfigWritten = written
	}

	if len(f.Tasks) > 0 {
		existing, err := rewards.AllTasks(ctx)
		if err != nil {
			return nil, fmt.Errorf("seed tasks: %w", err)
		}
		if len(existing) == 0 {
			for _, t := range f.Tasks {
				_, err := rewards.CreateTask(ctx, 0, service.NewTask{
					Title:       t.Title,
					Description: t.Description,
					Reward:      t.Reward,
					URL:         t.URL,
					DailyLimit:  t.DailyLimit,
				})
				if err != nil {
					return nil, fmt.Errorf("seed task %q: %w", t.Title, err)
				}
				res.TasksCreated++
			}
		}
	}

	logger.WithContext(ctx).Info("seed applied", "config_written", res.ConfigWritten, "tasks_created", res.TasksCreated)
	return res, nil
}
