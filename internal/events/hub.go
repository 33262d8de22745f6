// internal/events/hub.go
package events

import (
	"context"
	"errors"
	"sync"

	"tenantcore-service/internal/domain/event"
	"tenantcore-service/internal/domain/subscription"
	"tenantcore-service/internal/pkg/jwt"
	"tenantcore-service/internal/pkg/session"

	"go.uber.org/zap"
)

var (
	ErrSessionExpired = errors.New("session has expired")
	ErrInvalidToken   = errors.New("invalid token")
)

// Hub fans subscription lifecycle events out to connected clients. Clients
// are grouped by organization; a client only ever sees its own
// organization's events, except super admins, who see everything.
type Hub struct {
	// Registered clients by organization ID
	clients map[int64]map[*Client]bool
	// Super admin clients, not scoped to an organization
	admins map[*Client]bool
	mu     sync.RWMutex

	Register   chan *Client
	unregister chan *Client

	broadcast chan *event.Message

	jwtVerifier    *jwt.Verifier
	sessionManager *session.Manager
	logger         *zap.Logger
}

func NewHub(jwtVerifier *jwt.Verifier, sessionManager *session.Manager, logger *zap.Logger) *Hub {
	return &Hub{
		clients:        make(map[int64]map[*Client]bool),
		admins:         make(map[*Client]bool),
		Register:       make(chan *Client),
		unregister:     make(chan *Client),
		broadcast:      make(chan *event.Message, 256),
		jwtVerifier:    jwtVerifier,
		sessionManager: sessionManager,
		logger:         logger,
	}
}

// AuthenticateClient validates the JWT token and confirms a live session.
func (h *Hub) AuthenticateClient(ctx context.Context, token string) (*ClientAuth, error) {
	claims, err := h.jwtVerifier.Verify(token)
	if err != nil {
		return nil, ErrInvalidToken
	}

	sessionData, err := h.sessionManager.GetSession(ctx, claims.IdentityID, claims.ID)
	if err != nil {
		return nil, ErrSessionExpired
	}

	return &ClientAuth{
		IdentityID:     claims.IdentityID,
		SessionID:      claims.ID,
		OrganizationID: claims.OrganizationID,
		Role:           claims.Role,
		Email:          sessionData.Email,
		IsSuperAdmin:   claims.IsSuperAdmin(),
	}, nil
}

// PublishLifecycleEvent queues a lifecycle event for broadcast. It never
// blocks the caller: if the hub is saturated the event is dropped.
func (h *Hub) PublishLifecycleEvent(ev subscription.LifecycleEvent) {
	msg := event.NewMessage(event.TypeSubscriptionLifecycle, ev)
	select {
	case h.broadcast <- msg:
	default:
		h.logger.Warn("event hub saturated, dropping lifecycle event",
			zap.Int64("organization_id", ev.OrganizationID),
			zap.String("event", string(ev.Event)),
		)
	}
}

func (h *Hub) Run(ctx context.Context) {
	for {
		select {
		case <-ctx.Done():
			h.shutdown()
			return

		case client := <-h.Register:
			h.registerClient(client)

		case client := <-h.unregister:
			h.unregisterClient(client)

		case msg := <-h.broadcast:
			h.broadcastMessage(msg)
		}
	}
}

func (h *Hub) registerClient(client *Client) {
	h.mu.Lock()
	defer h.mu.Unlock()

	if client.isSuperAdmin {
		h.admins[client] = true
	} else {
		if h.clients[client.organizationID] == nil {
			h.clients[client.organizationID] = make(map[*Client]bool)
		}
		h.clients[client.organizationID][client] = true
	}

	h.logger.Info("event client connected",
		zap.Int64("identity_id", client.identityID),
		zap.Int64("organization_id", client.organizationID),
		zap.Int("total", h.totalClients()),
	)

	client.SendMessage(event.NewMessage(event.TypeConnected, map[string]interface{}{
		"identity_id":     client.identityID,
		"organization_id": client.organizationID,
	}))
}

func (h *Hub) unregisterClient(client *Client) {
	h.mu.Lock()
	defer h.mu.Unlock()

	if client.isSuperAdmin {
		if _, ok := h.admins[client]; ok {
			delete(h.admins, client)
			client.Close()
		}
		return
	}

	if clients, ok := h.clients[client.organizationID]; ok {
		if _, exists := clients[client]; exists {
			delete(clients, client)
			client.Close()
			if len(clients) == 0 {
				delete(h.clients, client.organizationID)
			}
			h.logger.Info("event client disconnected",
				zap.Int64("identity_id", client.identityID),
				zap.Int("total", h.totalClients()),
			)
		}
	}
}

func (h *Hub) broadcastMessage(msg *event.Message) {
	ev, ok := msg.Data.(subscription.LifecycleEvent)
	if !ok {
		return
	}

	h.mu.RLock()
	defer h.mu.RUnlock()

	for client := range h.admins {
		client.SendMessage(msg)
	}
	if clients, ok := h.clients[ev.OrganizationID]; ok {
		for client := range clients {
			client.SendMessage(msg)
		}
	}
}

// ConnectedClients reports how many clients an organization has attached.
func (h *Hub) ConnectedClients(orgID int64) int {
	h.mu.RLock()
	defer h.mu.RUnlock()
	return len(h.clients[orgID])
}

func (h *Hub) TotalClients() int {
	h.mu.RLock()
	defer h.mu.RUnlock()
	return h.totalClients()
}

func (h *Hub) totalClients() int {
	total := len(h.admins)
	for _, clients := range h.clients {
		total += len(clients)
	}
	return total
}

func (h *Hub) shutdown() {
	h.mu.Lock()
	defer h.mu.Unlock()

	for client := range h.admins {
		client.Close()
	}
	for _, clients := range h.clients {
		for client := range clients {
			client.Close()
		}
	}
}
