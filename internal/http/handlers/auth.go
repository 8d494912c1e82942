package handlers

import (
	"net/http"

	"earning_bot/internal/http/middleware"
	"earning_bot/internal/service"

	"github.com/gin-gonic/gin"
)

type authRequest struct {
	InitData string `json:"init_data"`
}

// Вход из мини-аппа: initData -> аккаунт (создается при первом входе) -> JWT
func (h *Handler) AuthTelegram(c *gin.Context) {
	var req authRequest
	_ = c.ShouldBindJSON(&req)
	if req.InitData == "" {
		req.InitData = c.GetHeader(middleware.InitDataHeader)
	}
	if req.InitData == "" {
		c.JSON(http.StatusBadRequest, gin.H{"error": "init_data is required"})
		return
	}

	profile, refCode, err := service.ParseInitData(req.InitData, h.BotToken)
	if err != nil {
		c.JSON(http.StatusUnauthorized, gin.H{"error": "invalid init data"})
		return
	}

	ctx := c.Request.Context()
	res, err := h.Accounts.RegisterOrTouch(ctx, profile, refCode)
	if err != nil {
		respondError(c, err, false)
		return
	}

	token, err := h.JWT.Issue(res.Account.ID, res.Account.TgID)
	if err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": "failed to issue token"})
		return
	}
	h.Audit.LogLogin(ctx, res.Account.ID, c.ClientIP(), c.Request.UserAgent())

	c.JSON(http.StatusOK, gin.H{
		"token":           token,
		"account":         res.Account,
		"created":         res.Created,
		"referred":        res.Referred,
		"streak_advanced": res.StreakAdvanced,
		"bonus":           res.Bonus,
	})
}
