package service

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"earning_bot/internal/cache"
	"earning_bot/internal/domain"
	"earning_bot/internal/logger"
	"earning_bot/internal/repository"
)

// Cache - то, что нужно сервисам от кэша
type Cache interface {
	Get(ctx context.Context, key string) ([]byte, error)
	Set(ctx context.Context, key string, value []byte, ttl time.Duration) error
	Delete(ctx context.Context, key string) error
}

const settingsCacheTTL = 30 * time.Second

// SettingsService отдает актуальные ставки и лимиты
type SettingsService struct {
	store repository.Store
	cache Cache
	now   func() time.Time
}

// cache может быть nil - тогда всегда читаем из БД
func NewSettingsService(store repository.Store, c Cache) *SettingsService {
	return &SettingsService{store: store, cache: c, now: time.Now}
}

// EarningConfig: кэш, потом таблица settings, потом значения по умолчанию
func (s *SettingsService) EarningConfig(ctx context.Context) (domain.EarningConfig, error) {
	if s.cache != nil {
		raw, err := s.cache.Get(ctx, domain.SettingEarningConfig)
		if err == nil {
			var cfg domain.EarningConfig
			if jerr := json.Unmarshal(raw, &cfg); jerr == nil {
				return cfg, nil
			}
		} else if !errors.Is(err, cache.ErrCacheMiss) {
			logger.WithContext(ctx).Warn("settings cache read failed", "error", err)
		}
	}

	setting, err := s.store.GetSetting(ctx, domain.SettingEarningConfig)
	if errors.Is(err, domain.ErrSettingNotFound) {
		return domain.DefaultEarningConfig(), nil
	}
	if err != nil {
		return domain.EarningConfig{}, fmt.Errorf("load earning config: %w", err)
	}

	cfg := domain.DefaultEarningConfig()
	if err := json.Unmarshal(setting.Value, &cfg); err != nil {
		return domain.EarningConfig{}, fmt.Errorf("decode earning config: %w", err)
	}

	if s.cache != nil {
		if err := s.cache.Set(ctx, domain.SettingEarningConfig, setting.Value, settingsCacheTTL); err != nil {
			logger.WithContext(ctx).Warn("settings cache write failed", "error", err)
		}
	}
	return cfg, nil
}

// UpdateEarningConfig сохраняет новую версию и сбрасывает кэш
func (s *SettingsService) UpdateEarningConfig(ctx context.Context, adminTgID int64, cfg domain.EarningConfig) (*domain.Setting, error) {
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	raw, err := json.Marshal(cfg)
	if err != nil {
		return nil, err
	}

	var saved *domain.Setting
	err = s.store.InTx(ctx, func(tx repository.Tx) error {
		now := s.now()
		saved, err = tx.PutSetting(ctx, domain.SettingEarningConfig, raw, now)
		if err != nil {
			return err
		}
		return tx.InsertAudit(ctx, &domain.AuditLog{
			ActorID:   adminTgID,
			Action:    domain.AuditActionSettingsUpdate,
			Category:  domain.AuditCategoryAdmin,
			Details:   map[string]any{"key": domain.SettingEarningConfig, "version": saved.Version},
			CreatedAt: now,
		})
	})
	if err != nil {
		return nil, fmt.Errorf("update earning config: %w", err)
	}

	if s.cache != nil {
		if err := s.cache.Delete(ctx, domain.SettingEarningConfig); err != nil {
			logger.WithContext(ctx).Warn("settings cache invalidate failed", "error", err)
		}
	}
	logger.WithContext(ctx).Info("earning config updated", "admin", adminTgID, "version", saved.Version)
	return saved, nil
}

// EnsureEarningConfig записывает cfg, только если настройки еще не сохранялись
func (s *SettingsService) EnsureEarningConfig(ctx context.Context, cfg domain.EarningConfig) (bool, error) {
	if _, err := s.store.GetSetting(ctx, domain.SettingEarningConfig); err == nil {
		return false, nil
	} else if !errors.Is(err, domain.ErrSettingNotFound) {
		return false, err
	}
	if _, err := s.UpdateEarningConfig(ctx, 0, cfg); err != nil {
		return false, err
	}
	return true, nil
}
