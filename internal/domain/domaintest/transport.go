package domaintest

import (
	"context"
	"encoding/json"
	"sync"

	"github.com/andyjduncan/eurosight/internal/domain"
)

// Transport records delivered payloads per connection. Connections marked
// gone reject sends with domain.ErrConnectionGone.
type Transport struct {
	mu        sync.Mutex
	delivered map[string][]domain.Message
	gone      map[string]struct{}

	// Err, when non-nil, is returned for every send to a connection that
	// is not marked gone.
	Err error
}

func NewTransport() *Transport {
	return &Transport{
		delivered: make(map[string][]domain.Message),
		gone:      make(map[string]struct{}),
	}
}

// MarkGone makes future sends to connectionID fail with ErrConnectionGone.
func (t *Transport) MarkGone(connectionID string) {
	t.mu.Lock()
	defer t.mu.Unlock()
	t.gone[connectionID] = struct{}{}
}

func (t *Transport) Send(_ context.Context, connectionID string, payload []byte) error {
	t.mu.Lock()
	defer t.mu.Unlock()
	if _, gone := t.gone[connectionID]; gone {
		return domain.ErrConnectionGone
	}
	if t.Err != nil {
		return t.Err
	}
	var msg domain.Message
	if err := json.Unmarshal(payload, &msg); err != nil {
		return err
	}
	t.delivered[connectionID] = append(t.delivered[connectionID], msg)
	return nil
}

// Delivered returns the messages sent to connectionID, in delivery order.
func (t *Transport) Delivered(connectionID string) []domain.Message {
	t.mu.Lock()
	defer t.mu.Unlock()
	msgs := make([]domain.Message, len(t.delivered[connectionID]))
	copy(msgs, t.delivered[connectionID])
	return msgs
}

// Reset clears recorded deliveries but keeps gone markers.
func (t *Transport) Reset() {
	t.mu.Lock()
	defer t.mu.Unlock()
	t.delivered = make(map[string][]domain.Message)
}
