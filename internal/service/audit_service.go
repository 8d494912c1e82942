package service

import (
	"context"
	"time"

	"earning_bot/internal/domain"
	"earning_bot/internal/logger"
	"earning_bot/internal/repository"
)

// обрабатывает журнал аудита. Денежные действия пишут аудит в своей транзакции,
// здесь только чтение и записи, потеря которых не критична.
type AuditService struct {
	store repository.Store
	now   func() time.Time
}

// создает новый сервис аудита
func NewAuditService(store repository.Store) *AuditService {
	return &AuditService{store: store, now: time.Now}
}

// создает новую запись в журнале аудита; ошибка только логируется
func (s *AuditService) Log(ctx context.Context, accountID, actorID int64, action, category string, details map[string]any) {
	entry := &domain.AuditLog{
		AccountID: accountID,
		ActorID:   actorID,
		Action:    action,
		Category:  category,
		Details:   details,
		CreatedAt: s.now(),
	}
	err := s.store.InTx(ctx, func(tx repository.Tx) error {
		return tx.InsertAudit(ctx, entry)
	})
	if err != nil {
		logger.WithContext(ctx).Error("не удалось создать запись аудита", "error", err, "action", action, "account_id", accountID)
	}
}

// логирует вход через webapp
func (s *AuditService) LogLogin(ctx context.Context, accountID int64, ip, userAgent string) {
	s.Log(ctx, accountID, 0, domain.AuditActionLogin, domain.AuditCategoryAccount, map[string]any{
		"ip":         ip,
		"user_agent": userAgent,
	})
}

// возвращает записи аудита для пользователя
func (s *AuditService) ForAccount(ctx context.Context, accountID int64, limit int) ([]domain.AuditLog, error) {
	if accountID == 0 {
		return nil, domain.ErrAccountNotFound
	}
	return s.store.ListAudit(ctx, accountID, limit)
}

// возвращает последние записи аудита
func (s *AuditService) Recent(ctx context.Context, limit int) ([]domain.AuditLog, error) {
	return s.store.ListAudit(ctx, 0, limit)
}
