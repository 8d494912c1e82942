package httpserver

import (
	"context"
	"net/http"
	"time"

	"earning_bot/internal/http/handlers"
	"earning_bot/internal/http/middleware"
	"earning_bot/internal/ws"

	"github.com/gin-gonic/gin"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// Pinger - проверка живости хранилища для /health
type Pinger interface {
	Ping(ctx context.Context) error
}

// RouterConfig - все, что нужно для регистрации маршрутов
type RouterConfig struct {
	Handler        *handlers.Handler
	WS             *ws.WSHandler
	Limiter        middleware.Limiter
	AdminIDs       []int64
	AllowedOrigins []string
	DB             Pinger
	Version        string
}

// NewRouter собирает gin engine с middleware и всеми маршрутами
func NewRouter(cfg RouterConfig) *gin.Engine {
	r := gin.New()
	r.Use(gin.Recovery(), middleware.RequestLogger(), middleware.Metrics(), middleware.CORS(cfg.AllowedOrigins))
	RegisterRoutes(r, cfg)
	return r
}

func RegisterRoutes(r *gin.Engine, cfg RouterConfig) {
	h := cfg.Handler

	r.GET("/", func(c *gin.Context) {
		c.JSON(http.StatusOK, gin.H{"status": "online", "version": cfg.Version})
	})
	r.GET("/health", health(cfg.DB))
	r.GET("/metrics", gin.WrapH(promhttp.Handler()))

	if cfg.WS != nil {
		r.GET("/ws", cfg.WS.HandleWS())
	}

	// до авторизации лимит по IP, после нее по аккаунту
	limit := func(c *gin.Context) { c.Next() }
	if cfg.Limiter != nil {
		limit = middleware.RateLimit(cfg.Limiter)
	}

	api := r.Group("/api")
	api.POST("/auth/telegram", limit, h.AuthTelegram)

	user := api.Group("")
	user.Use(middleware.Auth(h.JWT, h.Accounts, h.BotToken), limit)
	{
		user.GET("/user", h.GetUser)
		user.GET("/ads/status", h.AdStatus)
		user.POST("/watch-ad", h.WatchAd)
		user.GET("/tasks", h.ListTasks)
		user.POST("/tasks/:id/complete", h.CompleteTask)
		user.POST("/withdraw", h.Withdraw)
		user.GET("/history/:type", h.History)
		user.GET("/referrals", h.ListReferrals)
	}

	admin := user.Group("/admin")
	admin.Use(middleware.AdminOnly(cfg.AdminIDs))
	{
		admin.GET("/stats", h.AdminStats)
		admin.GET("/users", h.AdminUsers)
		admin.POST("/users/:id/ban", h.AdminBanUser)
		admin.GET("/withdrawals/pending", h.AdminPendingWithdrawals)
		admin.POST("/withdrawals/:id/:action", h.AdminResolveWithdrawal)
		admin.POST("/referrals/:id/pay", h.AdminPayReferral)
		admin.GET("/settings", h.AdminGetSettings)
		admin.PUT("/settings", h.AdminUpdateSettings)
		admin.GET("/tasks", h.AdminTasks)
		admin.POST("/tasks", h.AdminCreateTask)
		admin.POST("/tasks/:id/toggle", h.AdminToggleTask)
		admin.GET("/audit", h.AdminAudit)
	}
}

func health(db Pinger) gin.HandlerFunc {
	return func(c *gin.Context) {
		if db != nil {
			ctx, cancel := context.WithTimeout(c.Request.Context(), 2*time.Second)
			defer cancel()
			if err := db.Ping(ctx); err != nil {
				c.JSON(http.StatusServiceUnavailable, gin.H{"status": "unhealthy", "error": err.Error()})
				return
			}
		}
		c.JSON(http.StatusOK, gin.H{"status": "healthy", "timestamp": time.Now().UTC()})
	}
}
