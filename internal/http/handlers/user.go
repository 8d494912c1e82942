package handlers

import (
	"net/http"

	"earning_bot/internal/domain"
	"earning_bot/internal/service"

	"github.com/gin-gonic/gin"
)

const historyLimit = 50

// Профиль со статистикой за сегодня
func (h *Handler) GetUser(c *gin.Context) {
	userID, ok := getUserID(c)
	if !ok {
		c.JSON(http.StatusUnauthorized, gin.H{"error": "unauthorized"})
		return
	}

	stats, err := h.Accounts.GetStats(c.Request.Context(), userID)
	if err != nil {
		respondError(c, err, false)
		return
	}
	c.JSON(http.StatusOK, stats)
}

// Состояние рекламы без начисления: можно смотреть / кулдаун / лимит
func (h *Handler) AdStatus(c *gin.Context) {
	userID, ok := getUserID(c)
	if !ok {
		c.JSON(http.StatusUnauthorized, gin.H{"error": "unauthorized"})
		return
	}

	res, err := h.Rewards.AdStatus(c.Request.Context(), userID)
	if err != nil {
		respondError(c, err, false)
		return
	}
	c.JSON(http.StatusOK, res)
}

// Просмотр рекламы. Отказ (кулдаун, лимит, бан) приходит с allowed=false.
func (h *Handler) WatchAd(c *gin.Context) {
	userID, ok := getUserID(c)
	if !ok {
		c.JSON(http.StatusUnauthorized, gin.H{"error": "unauthorized"})
		return
	}

	res, err := h.Rewards.WatchAd(c.Request.Context(), userID)
	if err != nil {
		respondError(c, err, false)
		return
	}
	c.JSON(http.StatusOK, res)
}

// Активные задания с отметкой "сделано сегодня"
func (h *Handler) ListTasks(c *gin.Context) {
	userID, ok := getUserID(c)
	if !ok {
		c.JSON(http.StatusUnauthorized, gin.H{"error": "unauthorized"})
		return
	}

	tasks, err := h.Rewards.ListTasks(c.Request.Context(), userID)
	if err != nil {
		respondError(c, err, false)
		return
	}
	if tasks == nil {
		tasks = []domain.TaskView{}
	}
	c.JSON(http.StatusOK, gin.H{"tasks": tasks})
}

func (h *Handler) CompleteTask(c *gin.Context) {
	userID, ok := getUserID(c)
	if !ok {
		c.JSON(http.StatusUnauthorized, gin.H{"error": "unauthorized"})
		return
	}
	taskID, ok := paramID(c, "id")
	if !ok {
		return
	}

	res, err := h.Rewards.CompleteTask(c.Request.Context(), userID, taskID)
	if err != nil {
		respondError(c, err, false)
		return
	}
	c.JSON(http.StatusOK, res)
}

// Заявка на вывод. Баланс спишется только после одобрения админом.
func (h *Handler) Withdraw(c *gin.Context) {
	userID, ok := getUserID(c)
	if !ok {
		c.JSON(http.StatusUnauthorized, gin.H{"error": "unauthorized"})
		return
	}

	var req service.WithdrawalRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "bad request"})
		return
	}

	res, err := h.Withdrawals.Create(c.Request.Context(), userID, req)
	if err != nil {
		respondError(c, err, false)
		return
	}
	c.JSON(http.StatusOK, res)
}

// История: earnings (весь журнал), withdrawals или конкретный тип начислений
func (h *Handler) History(c *gin.Context) {
	userID, ok := getUserID(c)
	if !ok {
		c.JSON(http.StatusUnauthorized, gin.H{"error": "unauthorized"})
		return
	}

	ctx := c.Request.Context()
	limit := queryInt(c, "limit", historyLimit, 200)
	switch typ := c.Param("type"); typ {
	case "withdrawals":
		items, err := h.Withdrawals.History(ctx, userID, limit)
		if err != nil {
			respondError(c, err, false)
			return
		}
		if items == nil {
			items = []domain.Withdrawal{}
		}
		c.JSON(http.StatusOK, gin.H{"type": typ, "history": items})
	default:
		kind := domain.LedgerKind(typ)
		if typ == "earnings" {
			kind = ""
		}
		items, err := h.Ledger.History(ctx, userID, kind, limit)
		if err != nil {
			respondError(c, err, false)
			return
		}
		if items == nil {
			items = []domain.LedgerEntry{}
		}
		c.JSON(http.StatusOK, gin.H{"type": typ, "history": items})
	}
}

// Приглашенные и ссылка, чтобы поделиться
func (h *Handler) ListReferrals(c *gin.Context) {
	userID, ok := getUserID(c)
	if !ok {
		c.JSON(http.StatusUnauthorized, gin.H{"error": "unauthorized"})
		return
	}

	ctx := c.Request.Context()
	acc, err := h.Accounts.Get(ctx, userID)
	if err != nil {
		respondError(c, err, false)
		return
	}
	edges, err := h.Referrals.List(ctx, userID)
	if err != nil {
		respondError(c, err, false)
		return
	}
	if edges == nil {
		edges = []domain.ReferralEdge{}
	}

	c.JSON(http.StatusOK, gin.H{
		"code":         acc.ReferralCode,
		"link":         h.Accounts.ReferralLink(acc),
		"count":        acc.ReferralCount,
		"active_count": acc.ActiveReferralCount,
		"referrals":    edges,
	})
}
