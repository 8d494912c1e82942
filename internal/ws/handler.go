package ws

import (
	"net/http"

	"earning_bot/internal/logger"
	"earning_bot/internal/service"

	"github.com/gin-gonic/gin"
	"github.com/gorilla/websocket"
)

// содержит зависимости для обработки WebSocket
type WSHandler struct {
	Hub            *Hub
	JWT            *service.JWTManager
	AllowedOrigins []string
}

func NewWSHandler(hub *Hub, jwt *service.JWTManager, allowedOrigins []string) *WSHandler {
	return &WSHandler{Hub: hub, JWT: jwt, AllowedOrigins: allowedOrigins}
}

func (h *WSHandler) checkOrigin(r *http.Request) bool {
	if len(h.AllowedOrigins) == 0 {
		return true
	}
	origin := r.Header.Get("Origin")
	for _, o := range h.AllowedOrigins {
		if o == "*" || o == origin {
			return true
		}
	}
	return false
}

// HandleWS - подписка на события баланса и заявок; токен в query, браузер не шлет заголовки в ws
func (h *WSHandler) HandleWS() gin.HandlerFunc {
	return func(c *gin.Context) {
		token := c.Query("token")
		if token == "" {
			c.JSON(http.StatusUnauthorized, gin.H{"error": "токен обязателен"})
			return
		}

		claims, err := h.JWT.Parse(token)
		if err != nil {
			c.JSON(http.StatusUnauthorized, gin.H{"error": "неверный токен"})
			return
		}

		upgrader := websocket.Upgrader{CheckOrigin: h.checkOrigin}
		conn, err := upgrader.Upgrade(c.Writer, c.Request, nil)
		if err != nil {
			logger.Warn("ошибка обновления ws", "error", err)
			return
		}

		client := NewClient(claims.AccountID, conn, h.Hub)
		go client.Run()
	}
}
