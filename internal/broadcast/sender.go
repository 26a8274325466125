// Package broadcast delivers outbound messages to one or all known
// connections, pruning dead registry entries as a side effect.
package broadcast

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"sync"

	"github.com/andyjduncan/eurosight/internal/domain"
	"github.com/andyjduncan/eurosight/internal/metrics"
)

// Transport is the delivery primitive the sender needs from the connection
// layer. Send returns domain.ErrConnectionGone when the target is
// permanently unreachable.
type Transport interface {
	Send(ctx context.Context, connectionID string, payload []byte) error
}

// Sender fans messages out to connections. Delivery is best-effort: a gone
// connection is pruned from the ledger, any other failure is logged and
// swallowed, and nothing is retried.
type Sender struct {
	ledger    domain.Ledger
	transport Transport
}

func NewSender(ledger domain.Ledger, transport Transport) *Sender {
	return &Sender{ledger: ledger, transport: transport}
}

// SendOne delivers msg to a single connection. A transport-gone report
// removes the connection and its voter-set membership from the ledger;
// the caller never sees it as an error.
func (s *Sender) SendOne(ctx context.Context, connectionID string, msg domain.Message) error {
	payload, err := json.Marshal(msg)
	if err != nil {
		return fmt.Errorf("marshal %s message: %w", msg.Event, err)
	}

	err = s.transport.Send(ctx, connectionID, payload)
	switch {
	case err == nil:
		metrics.BroadcastsTotal.WithLabelValues("delivered").Inc()
		return nil
	case errors.Is(err, domain.ErrConnectionGone):
		metrics.BroadcastsTotal.WithLabelValues("pruned").Inc()
		s.prune(ctx, connectionID)
		return nil
	default:
		metrics.BroadcastsTotal.WithLabelValues("error").Inc()
		slog.Warn("Failed to deliver message",
			"event", msg.Event,
			"connection_id", connectionID,
			"error", err)
		return nil
	}
}

// SendAll delivers msg to every registered connection concurrently.
// Individual failures never fail the broadcast.
func (s *Sender) SendAll(ctx context.Context, msg domain.Message) error {
	connections, err := s.ledger.Connections(ctx)
	if err != nil {
		return fmt.Errorf("broadcast %s: %w", msg.Event, err)
	}

	var wg sync.WaitGroup
	for _, connectionID := range connections {
		wg.Add(1)
		go func(id string) {
			defer wg.Done()
			_ = s.SendOne(ctx, id, msg)
		}(connectionID)
	}
	wg.Wait()
	return nil
}

// prune removes a dead connection from the registry and voter set. Cleanup
// is itself best-effort; a failure leaves the entry for the next prune.
func (s *Sender) prune(ctx context.Context, connectionID string) {
	slog.Info("Pruning gone connection", "connection_id", connectionID)
	metrics.PrunedConnections.Inc()
	if err := s.ledger.RemoveConnection(ctx, connectionID); err != nil {
		slog.Warn("Failed to remove gone connection", "connection_id", connectionID, "error", err)
	}
	if err := s.ledger.RemoveVoter(ctx, connectionID); err != nil {
		slog.Warn("Failed to remove gone voter", "connection_id", connectionID, "error", err)
	}
}
