package events_test

import (
	"sync"
	"testing"

	"tenantcore-service/internal/domain/event"
	"tenantcore-service/internal/events"

	"go.uber.org/zap"
)

func newTestClient() *events.Client {
	hub := events.NewHub(nil, nil, zap.NewNop())
	return events.NewClient(hub, nil, &events.ClientAuth{
		IdentityID:     1,
		OrganizationID: 10,
	})
}

// Closing a client while other goroutines are still pushing frames at it
// must not panic and must not block: once the buffer fills the client is
// dropped, and sends after close are discarded.
func TestClient_SendMessageConcurrentWithClose(t *testing.T) {
	t.Parallel()

	client := newTestClient()

	var wg sync.WaitGroup
	for i := 0; i < 8; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			for j := 0; j < 500; j++ {
				client.SendMessage(event.NewMessage(event.TypePong, nil))
			}
		}()
	}
	wg.Add(1)
	go func() {
		defer wg.Done()
		client.Close()
	}()
	wg.Wait()

	client.SendMessage(event.NewMessage(event.TypePong, nil))
	client.Close()
}

func TestClient_CloseIsIdempotent(t *testing.T) {
	t.Parallel()

	client := newTestClient()
	client.Close()
	client.Close()
}
