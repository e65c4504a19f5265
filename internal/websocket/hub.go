package websocket

import (
	"context"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/rs/zerolog/log"
	"github.com/thereayou/bunker/internal/metrics"
	"github.com/thereayou/bunker/internal/pubsub"
)

const presenceTimeout = 5 * time.Second

// Presence сбрасывает busy/typingIn пользователя
type Presence interface {
	Clear(ctx context.Context, userID uuid.UUID) error
}

// Hub держит открытые соединения и их регистрацию в pubsub.Registry.
// Закрытие соединения снимает все его подписки одной операцией
type Hub struct {
	registry *pubsub.Registry
	presence Presence

	clients map[uuid.UUID]*Client

	// Клиенты по UserID (один пользователь может иметь несколько соединений)
	userClients map[uuid.UUID]map[uuid.UUID]*Client

	// Каналы для регистрации/отмены регистрации
	register   chan *Client
	unregister chan *Client

	mu sync.RWMutex

	// Контекст для graceful shutdown
	ctx    context.Context
	cancel context.CancelFunc
}

// NewHub создает новый Hub. presence может быть nil
func NewHub(registry *pubsub.Registry, presence Presence) *Hub {
	ctx, cancel := context.WithCancel(context.Background())
	return &Hub{
		registry:    registry,
		presence:    presence,
		clients:     make(map[uuid.UUID]*Client),
		userClients: make(map[uuid.UUID]map[uuid.UUID]*Client),
		register:    make(chan *Client),
		unregister:  make(chan *Client),
		ctx:         ctx,
		cancel:      cancel,
	}
}

// Run запускает hub
func (h *Hub) Run() {
	for {
		select {
		case <-h.ctx.Done():
			return

		case client := <-h.register:
			h.registerClient(client)

		case client := <-h.unregister:
			h.unregisterClient(client)
		}
	}
}

// Stop останавливает hub и закрывает все соединения
func (h *Hub) Stop() {
	h.cancel()

	h.mu.Lock()
	clients := make([]*Client, 0, len(h.clients))
	for _, client := range h.clients {
		clients = append(clients, client)
	}
	h.mu.Unlock()

	for _, client := range clients {
		h.unregisterClient(client)
		if client.Conn != nil {
			client.Conn.Close()
		}
	}
	h.registry.Close()
}

// Register регистрирует нового клиента
func (h *Hub) Register(client *Client) {
	select {
	case h.register <- client:
	case <-h.ctx.Done():
		client.close()
	}
}

// Unregister отменяет регистрацию клиента
func (h *Hub) Unregister(client *Client) {
	select {
	case h.unregister <- client:
	case <-h.ctx.Done():
	}
}

// Client находит соединение пользователя по его id
func (h *Hub) Client(connID, userID uuid.UUID) (*Client, bool) {
	h.mu.RLock()
	defer h.mu.RUnlock()

	client, ok := h.clients[connID]
	if !ok || client.UserID != userID {
		return nil, false
	}
	return client, true
}

func (h *Hub) registerClient(client *Client) {
	// В registry раньше, чем в clients: Lookup не должен вернуть
	// соединение, на которое еще нельзя подписаться
	h.registry.Register(client)

	h.mu.Lock()
	// Stop берет снимок clients под mu после отмены ctx, поэтому проверка
	// под тем же mu: либо клиент попадет в снимок, либо будет закрыт здесь
	if h.ctx.Err() != nil {
		h.mu.Unlock()
		h.registry.RemoveConnection(client.ID)
		client.close()
		return
	}
	h.clients[client.ID] = client
	if _, ok := h.userClients[client.UserID]; !ok {
		h.userClients[client.UserID] = make(map[uuid.UUID]*Client)
	}
	h.userClients[client.UserID][client.ID] = client
	h.mu.Unlock()

	// Новые членства пользователя приходят во все его соединения
	if err := h.registry.Subscribe(client, []pubsub.Ref{pubsub.MembershipsOf(client.UserID)}, pubsub.EventCreate); err != nil {
		log.Warn().Str("module", "websocket.hub").Str("conn", client.ID.String()).Err(err).Msg("membership watch failed")
	}

	metrics.Connections.Inc()
	log.Info().Str("module", "websocket.hub").
		Str("conn", client.ID.String()).
		Str("user", client.UserID.String()).
		Msg("client registered")

	// Клиент узнает id своего соединения, чтобы передавать его в X-Connection-ID
	client.SendMessage(TypeConnect, nil, map[string]uuid.UUID{"connection_id": client.ID})
}

func (h *Hub) unregisterClient(client *Client) {
	h.mu.Lock()
	_, ok := h.clients[client.ID]
	last := false
	if ok {
		delete(h.clients, client.ID)
		if userClients, ok := h.userClients[client.UserID]; ok {
			delete(userClients, client.ID)
			if len(userClients) == 0 {
				delete(h.userClients, client.UserID)
				last = true
			}
		}
	}
	h.mu.Unlock()

	if !ok {
		return
	}

	h.registry.RemoveConnection(client.ID)
	client.close()

	metrics.Connections.Dec()
	log.Info().Str("module", "websocket.hub").
		Str("conn", client.ID.String()).
		Str("user", client.UserID.String()).
		Msg("client unregistered")

	// Последнее соединение закрыто: пользователь уже не занят и не печатает
	if last && h.presence != nil {
		ctx, cancel := context.WithTimeout(context.Background(), presenceTimeout)
		defer cancel()
		if err := h.presence.Clear(ctx, client.UserID); err != nil {
			log.Warn().Str("module", "websocket.hub").
				Str("user", client.UserID.String()).
				Err(err).Msg("failed to clear presence")
		}
	}
}

// Lookup то же, что Client, но возвращает pubsub.Conn для сервисов
func (h *Hub) Lookup(connID, userID uuid.UUID) (pubsub.Conn, bool) {
	client, ok := h.Client(connID, userID)
	if !ok {
		return nil, false
	}
	return client, true
}
