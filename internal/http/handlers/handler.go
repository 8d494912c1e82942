package handlers

import (
	"net/http"
	"strconv"

	"earning_bot/internal/domain"
	"earning_bot/internal/http/middleware"
	"earning_bot/internal/logger"
	"earning_bot/internal/service"

	"github.com/gin-gonic/gin"
)

// Handler - зависимости HTTP API
type Handler struct {
	Accounts    *service.AccountService
	Rewards     *service.RewardService
	Withdrawals *service.WithdrawalService
	Referrals   *service.ReferralService
	Ledger      *service.LedgerService
	Settings    *service.SettingsService
	Audit       *service.AuditService
	JWT         *service.JWTManager
	BotToken    string
}

func getUserID(c *gin.Context) (int64, bool) {
	return middleware.AccountID(c)
}

func getAdminID(c *gin.Context) (int64, bool) {
	return middleware.TgID(c)
}

// paramID - положительный id из пути
func paramID(c *gin.Context, name string) (int64, bool) {
	id, err := strconv.ParseInt(c.Param(name), 10, 64)
	if err != nil || id <= 0 {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid " + name})
		return 0, false
	}
	return id, true
}

func queryInt(c *gin.Context, name string, def, max int) int {
	v, err := strconv.Atoi(c.Query(name))
	if err != nil || v <= 0 {
		return def
	}
	if max > 0 && v > max {
		return max
	}
	return v
}

// respondError переводит ошибку сервиса в HTTP ответ.
// Отказ политики для пользователя - это 200 с allowed=false, для админа 422.
func respondError(c *gin.Context, err error, admin bool) {
	switch domain.Classify(err) {
	case domain.ClassDenied:
		reason, _ := domain.DenyReason(err)
		if admin {
			c.JSON(http.StatusUnprocessableEntity, gin.H{"error": "denied", "reason": reason})
			return
		}
		c.JSON(http.StatusOK, gin.H{"allowed": false, "reason": reason})
	case domain.ClassNotFound:
		c.JSON(http.StatusNotFound, gin.H{"error": err.Error()})
	case domain.ClassInvalidTransition:
		c.JSON(http.StatusConflict, gin.H{"error": err.Error()})
	case domain.ClassBadRequest:
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
	default:
		logger.WithContext(c.Request.Context()).Error("request failed", "path", c.FullPath(), "error", err)
		c.JSON(http.StatusInternalServerError, gin.H{"error": "db error"})
	}
}
