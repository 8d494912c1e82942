package middleware

import (
	"context"
	"errors"
	"net/http"
	"strings"

	"earning_bot/internal/domain"
	"earning_bot/internal/service"

	"github.com/gin-gonic/gin"
)

// ключи в gin.Context
const (
	ctxAccountID = "account_id"
	ctxTgID      = "tg_id"
)

// InitDataHeader - сырой initData из Telegram.WebApp, альтернатива Bearer токену
const InitDataHeader = "X-Telegram-Init-Data"

// AccountLookup находит аккаунт по telegram id для авторизации через initData
type AccountLookup interface {
	GetByTgID(ctx context.Context, tgID int64) (*domain.Account, error)
}

// Auth пускает по Bearer JWT или по подписанному initData
func Auth(jwt *service.JWTManager, accounts AccountLookup, botToken string) gin.HandlerFunc {
	return func(c *gin.Context) {
		if header := c.GetHeader("Authorization"); header != "" {
			parts := strings.SplitN(header, " ", 2)
			if len(parts) != 2 || !strings.EqualFold(parts[0], "bearer") {
				c.AbortWithStatusJSON(http.StatusUnauthorized, gin.H{"error": "invalid authorization header format"})
				return
			}
			claims, err := jwt.Parse(parts[1])
			if err != nil {
				c.AbortWithStatusJSON(http.StatusUnauthorized, gin.H{"error": "invalid or expired token"})
				return
			}
			c.Set(ctxAccountID, claims.AccountID)
			c.Set(ctxTgID, claims.TgID)
			c.Next()
			return
		}

		initData := c.GetHeader(InitDataHeader)
		if initData == "" {
			c.AbortWithStatusJSON(http.StatusUnauthorized, gin.H{"error": "unauthorized"})
			return
		}
		profile, _, err := service.ParseInitData(initData, botToken)
		if err != nil {
			c.AbortWithStatusJSON(http.StatusUnauthorized, gin.H{"error": "invalid init data"})
			return
		}
		// аккаунт создается только через /api/auth/telegram
		acc, err := accounts.GetByTgID(c.Request.Context(), profile.TgID)
		if err != nil {
			if errors.Is(err, domain.ErrAccountNotFound) {
				c.AbortWithStatusJSON(http.StatusUnauthorized, gin.H{"error": "user not registered"})
				return
			}
			c.AbortWithStatusJSON(http.StatusInternalServerError, gin.H{"error": "db error"})
			return
		}
		c.Set(ctxAccountID, acc.ID)
		c.Set(ctxTgID, acc.TgID)
		c.Next()
	}
}

// AdminOnly - только telegram id из ADMIN_TELEGRAM_IDS
func AdminOnly(adminIDs []int64) gin.HandlerFunc {
	allowed := make(map[int64]struct{}, len(adminIDs))
	for _, id := range adminIDs {
		allowed[id] = struct{}{}
	}
	return func(c *gin.Context) {
		tgID, ok := TgID(c)
		if !ok {
			c.AbortWithStatusJSON(http.StatusUnauthorized, gin.H{"error": "unauthorized"})
			return
		}
		if _, ok := allowed[tgID]; !ok {
			c.AbortWithStatusJSON(http.StatusForbidden, gin.H{"error": "admin access required"})
			return
		}
		c.Next()
	}
}

// AccountID - id аккаунта, положенный Auth
func AccountID(c *gin.Context) (int64, bool) {
	v, ok := c.Get(ctxAccountID)
	if !ok {
		return 0, false
	}
	id, ok := v.(int64)
	return id, ok && id > 0
}

// TgID - telegram id текущего пользователя
func TgID(c *gin.Context) (int64, bool) {
	v, ok := c.Get(ctxTgID)
	if !ok {
		return 0, false
	}
	id, ok := v.(int64)
	return id, ok && id != 0
}
