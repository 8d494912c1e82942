package ws

import (
	"encoding/json"
	"sync"

	"earning_bot/internal/domain"
	"earning_bot/internal/logger"
	"earning_bot/internal/metrics"
)

// Hub держит открытые соединения по аккаунтам. У одного аккаунта
// может быть несколько вкладок webapp, событие уходит во все.
type Hub struct {
	mu      sync.RWMutex
	clients map[int64]map[*Client]struct{}
}

func NewHub() *Hub {
	return &Hub{clients: make(map[int64]map[*Client]struct{})}
}

func (h *Hub) Register(c *Client) {
	h.mu.Lock()
	set, ok := h.clients[c.AccountID]
	if !ok {
		set = make(map[*Client]struct{})
		h.clients[c.AccountID] = set
	}
	set[c] = struct{}{}
	h.mu.Unlock()
	metrics.WSConnections.Inc()
}

// Unregister идемпотентен: повторный вызов ничего не делает
func (h *Hub) Unregister(c *Client) {
	h.mu.Lock()
	defer h.mu.Unlock()
	set, ok := h.clients[c.AccountID]
	if !ok {
		return
	}
	if _, ok := set[c]; !ok {
		return
	}
	delete(set, c)
	if len(set) == 0 {
		delete(h.clients, c.AccountID)
	}
	close(c.Send)
	metrics.WSConnections.Dec()
}

// Publish неблокирующий: клиент с забитой очередью отключается
func (h *Hub) Publish(accountID int64, ev domain.Event) {
	msg, err := json.Marshal(ev)
	if err != nil {
		logger.Error("ws: не удалось сериализовать событие", "type", ev.Type, "error", err)
		return
	}

	var stale []*Client
	h.mu.RLock()
	for c := range h.clients[accountID] {
		select {
		case c.Send <- msg:
		default:
			stale = append(stale, c)
		}
	}
	h.mu.RUnlock()

	for _, c := range stale {
		logger.Warn("ws: очередь клиента переполнена, отключаем", "account_id", accountID)
		h.Unregister(c)
	}
}

// Connections - число открытых соединений аккаунта
func (h *Hub) Connections(accountID int64) int {
	h.mu.RLock()
	defer h.mu.RUnlock()
	return len(h.clients[accountID])
}

// CloseAll закрывает все очереди при остановке сервера
func (h *Hub) CloseAll() {
	h.mu.Lock()
	defer h.mu.Unlock()
	for id, set := range h.clients {
		for c := range set {
			close(c.Send)
			metrics.WSConnections.Dec()
		}
		delete(h.clients, id)
	}
}
