package events_test

import (
	"context"
	"testing"
	"time"

	"tenantcore-service/internal/events"

	"github.com/stretchr/testify/assert"
	"go.uber.org/zap"
)

func newHubClient(hub *events.Hub, identityID, orgID int64, superAdmin bool) *events.Client {
	return events.NewClient(hub, nil, &events.ClientAuth{
		IdentityID:     identityID,
		OrganizationID: orgID,
		IsSuperAdmin:   superAdmin,
	})
}

func TestHub_ConnectedClientsPerOrganization(t *testing.T) {
	t.Parallel()

	hub := events.NewHub(nil, nil, zap.NewNop())
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	go hub.Run(ctx)

	hub.Register <- newHubClient(hub, 1, 10, false)
	hub.Register <- newHubClient(hub, 2, 10, false)
	hub.Register <- newHubClient(hub, 3, 20, false)
	hub.Register <- newHubClient(hub, 4, 0, true)

	assert.Eventually(t, func() bool {
		return hub.TotalClients() == 4
	}, time.Second, 5*time.Millisecond)

	assert.Equal(t, 2, hub.ConnectedClients(10))
	assert.Equal(t, 1, hub.ConnectedClients(20))
	assert.Equal(t, 0, hub.ConnectedClients(99))
}
