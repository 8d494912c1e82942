package handlers

import (
	"net/http"
	"strconv"

	"earning_bot/internal/domain"
	"earning_bot/internal/service"

	"github.com/gin-gonic/gin"
	"github.com/shopspring/decimal"
)

// Сводка по платформе
func (h *Handler) AdminStats(c *gin.Context) {
	stats, err := h.Accounts.PlatformStats(c.Request.Context())
	if err != nil {
		respondError(c, err, true)
		return
	}
	c.JSON(http.StatusOK, stats)
}

// Пользователи постранично: ?page=1&limit=20
func (h *Handler) AdminUsers(c *gin.Context) {
	page, err := h.Accounts.ListAccounts(c.Request.Context(), queryInt(c, "page", 1, 0), queryInt(c, "limit", 20, 100))
	if err != nil {
		respondError(c, err, true)
		return
	}
	c.JSON(http.StatusOK, page)
}

type banRequest struct {
	Banned *bool `json:"banned"`
}

// Бан/разбан. Без тела запроса статус переключается.
func (h *Handler) AdminBanUser(c *gin.Context) {
	adminID, ok := getAdminID(c)
	if !ok {
		c.JSON(http.StatusUnauthorized, gin.H{"error": "unauthorized"})
		return
	}
	accountID, ok := paramID(c, "id")
	if !ok {
		return
	}

	var req banRequest
	_ = c.ShouldBindJSON(&req)

	ctx := c.Request.Context()
	var (
		acc *domain.Account
		err error
	)
	if req.Banned != nil {
		acc, err = h.Accounts.SetBanned(ctx, adminID, accountID, *req.Banned)
	} else {
		acc, err = h.Accounts.ToggleBanned(ctx, adminID, accountID)
	}
	if err != nil {
		respondError(c, err, true)
		return
	}
	c.JSON(http.StatusOK, gin.H{"id": acc.ID, "is_banned": acc.IsBanned})
}

// Заявки в ожидании, старые первыми
func (h *Handler) AdminPendingWithdrawals(c *gin.Context) {
	items, err := h.Withdrawals.ListPending(c.Request.Context(), queryInt(c, "limit", 100, 500))
	if err != nil {
		respondError(c, err, true)
		return
	}
	if items == nil {
		items = []domain.Withdrawal{}
	}
	c.JSON(http.StatusOK, gin.H{"withdrawals": items})
}

type resolveRequest struct {
	Notes string `json:"notes"`
}

// approve или reject; повторное решение дает 409
func (h *Handler) AdminResolveWithdrawal(c *gin.Context) {
	adminID, ok := getAdminID(c)
	if !ok {
		c.JSON(http.StatusUnauthorized, gin.H{"error": "unauthorized"})
		return
	}
	id, ok := paramID(c, "id")
	if !ok {
		return
	}

	var req resolveRequest
	_ = c.ShouldBindJSON(&req)

	w, err := h.Withdrawals.Resolve(c.Request.Context(), adminID, id, domain.Decision(c.Param("action")), req.Notes)
	if err != nil {
		respondError(c, err, true)
		return
	}
	c.JSON(http.StatusOK, w)
}

// Выплата реферального бонуса по связи
func (h *Handler) AdminPayReferral(c *gin.Context) {
	adminID, ok := getAdminID(c)
	if !ok {
		c.JSON(http.StatusUnauthorized, gin.H{"error": "unauthorized"})
		return
	}
	id, ok := paramID(c, "id")
	if !ok {
		return
	}

	res, err := h.Referrals.ClaimBonus(c.Request.Context(), adminID, id)
	if err != nil {
		respondError(c, err, true)
		return
	}
	if !res.Allowed {
		c.JSON(http.StatusUnprocessableEntity, res)
		return
	}
	c.JSON(http.StatusOK, res)
}

func (h *Handler) AdminGetSettings(c *gin.Context) {
	cfg, err := h.Settings.EarningConfig(c.Request.Context())
	if err != nil {
		respondError(c, err, true)
		return
	}
	c.JSON(http.StatusOK, cfg)
}

// Новые ставки действуют со следующего запроса.
// Тело накладывается на текущий конфиг: отсутствующие поля не меняются.
func (h *Handler) AdminUpdateSettings(c *gin.Context) {
	adminID, ok := getAdminID(c)
	if !ok {
		c.JSON(http.StatusUnauthorized, gin.H{"error": "unauthorized"})
		return
	}

	cfg, err := h.Settings.EarningConfig(c.Request.Context())
	if err != nil {
		respondError(c, err, true)
		return
	}
	// json пишет массивы поверх старого backing array
	cfg.StreakBonus = append([]decimal.Decimal(nil), cfg.StreakBonus...)
	cfg.WithdrawMethods = append([]domain.WithdrawMethod(nil), cfg.WithdrawMethods...)
	if err := c.ShouldBindJSON(&cfg); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "bad request"})
		return
	}

	setting, err := h.Settings.UpdateEarningConfig(c.Request.Context(), adminID, cfg)
	if err != nil {
		respondError(c, err, true)
		return
	}
	c.JSON(http.StatusOK, gin.H{"version": setting.Version, "config": cfg})
}

// Все задания, включая выключенные
func (h *Handler) AdminTasks(c *gin.Context) {
	tasks, err := h.Rewards.AllTasks(c.Request.Context())
	if err != nil {
		respondError(c, err, true)
		return
	}
	if tasks == nil {
		tasks = []domain.Task{}
	}
	c.JSON(http.StatusOK, gin.H{"tasks": tasks})
}

func (h *Handler) AdminCreateTask(c *gin.Context) {
	adminID, ok := getAdminID(c)
	if !ok {
		c.JSON(http.StatusUnauthorized, gin.H{"error": "unauthorized"})
		return
	}

	var req service.NewTask
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "title is required"})
		return
	}

	task, err := h.Rewards.CreateTask(c.Request.Context(), adminID, req)
	if err != nil {
		respondError(c, err, true)
		return
	}
	c.JSON(http.StatusCreated, task)
}

type toggleRequest struct {
	Active bool `json:"active"`
}

func (h *Handler) AdminToggleTask(c *gin.Context) {
	adminID, ok := getAdminID(c)
	if !ok {
		c.JSON(http.StatusUnauthorized, gin.H{"error": "unauthorized"})
		return
	}
	id, ok := paramID(c, "id")
	if !ok {
		return
	}

	var req toggleRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "bad request"})
		return
	}

	task, err := h.Rewards.ToggleTask(c.Request.Context(), adminID, id, req.Active)
	if err != nil {
		respondError(c, err, true)
		return
	}
	c.JSON(http.StatusOK, task)
}

// Журнал аудита: ?account_id= для одного пользователя
func (h *Handler) AdminAudit(c *gin.Context) {
	ctx := c.Request.Context()
	limit := queryInt(c, "limit", 50, 500)

	var (
		logs []domain.AuditLog
		err  error
	)
	if raw := c.Query("account_id"); raw != "" {
		accountID, perr := strconv.ParseInt(raw, 10, 64)
		if perr != nil {
			c.JSON(http.StatusBadRequest, gin.H{"error": "invalid account_id"})
			return
		}
		logs, err = h.Audit.ForAccount(ctx, accountID, limit)
	} else {
		logs, err = h.Audit.Recent(ctx, limit)
	}
	if err != nil {
		respondError(c, err, true)
		return
	}
	if logs == nil {
		logs = []domain.AuditLog{}
	}
	c.JSON(http.StatusOK, gin.H{"logs": logs})
}
