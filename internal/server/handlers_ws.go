package server

import (
	"context"
	"encoding/json"
	"errors"
	"log/slog"

	"github.com/google/uuid"
	gws "github.com/gorilla/websocket"
	"github.com/labstack/echo/v4"

	"github.com/andyjduncan/eurosight/internal/domain"
	apperrors "github.com/andyjduncan/eurosight/internal/errors"
	"github.com/andyjduncan/eurosight/internal/metrics"
	"github.com/andyjduncan/eurosight/internal/session"
)

// handleWebSocket terminates a viewer connection: registers it in the
// ledger, then dispatches inbound actions until the connection drops.
// Every handler failure is converted to a logged outcome; the read loop
// only ends when the transport does.
func (s *Server) handleWebSocket(c echo.Context) error {
	ip := c.RealIP()
	if ok, reason := s.limits.Acquire(ip); !ok {
		metrics.ConnectionsRejected.WithLabelValues(string(reason)).Inc()
		slog.Warn("Connection rejected", "ip", ip, "reason", reason)
		return c.NoContent(503)
	}
	defer s.limits.Release(ip)

	conn, err := upgrader.Upgrade(c.Response(), c.Request(), nil)
	if err != nil {
		return err
	}

	connectionID := uuid.NewString()
	ctx := c.Request().Context()

	if err := s.connect(ctx, connectionID); err != nil {
		slog.Error("Failed to register connection", "connection_id", connectionID, "error", err)
		_ = conn.Close()
		return nil
	}

	s.hub.Register(connectionID, conn)
	slog.Info("Viewer connected", "connection_id", connectionID, "ip", ip)

	defer s.disconnect(connectionID, conn)

	for {
		_, payload, err := conn.ReadMessage()
		if err != nil {
			slog.Info("Viewer disconnected", "connection_id", connectionID, "error", err)
			return nil
		}

		var in domain.Inbound
		if err := json.Unmarshal(payload, &in); err != nil {
			metrics.ActionsTotal.WithLabelValues("invalid", "failure").Inc()
			slog.Warn("Dropping malformed inbound message", "connection_id", connectionID, "error", err)
			continue
		}

		if err := s.dispatch(ctx, connectionID, in); err != nil {
			structured := apperrors.AsStructuredError(err)
			metrics.ActionsTotal.WithLabelValues(in.Action, "failure").Inc()
			slog.Error("Action failed",
				"action", in.Action,
				"connection_id", connectionID,
				"error_type", structured.Type,
				"error", structured.Message)
			continue
		}
		metrics.ActionsTotal.WithLabelValues(in.Action, "success").Inc()
	}
}

// connect records the new viewer in the registry and voter set.
func (s *Server) connect(ctx context.Context, connectionID string) error {
	if err := s.ledger.AddConnection(ctx, connectionID); err != nil {
		return err
	}
	return s.ledger.AddVoter(ctx, connectionID)
}

// disconnect prunes all per-connection state. Runs on every transport
// close, mirroring connect.
func (s *Server) disconnect(connectionID string, conn *gws.Conn) {
	s.hub.Unregister(connectionID, conn)

	ctx := context.Background()
	if err := s.ledger.RemoveConnection(ctx, connectionID); err != nil {
		slog.Warn("Failed to remove connection", "connection_id", connectionID, "error", err)
	}
	if err := s.ledger.RemoveVoter(ctx, connectionID); err != nil {
		slog.Warn("Failed to remove voter", "connection_id", connectionID, "error", err)
	}
}

// dispatch routes one inbound action. The set of actions is closed; an
// unknown action is a validation failure, never a crash.
func (s *Server) dispatch(ctx context.Context, connectionID string, in domain.Inbound) error {
	switch in.Action {
	case domain.ActionInit:
		return s.handleInit(ctx, connectionID, in.Country)
	case domain.ActionRefresh:
		return s.handleRefresh(ctx, connectionID)
	case domain.ActionVote:
		return s.handleVote(ctx, in.Scores)
	case domain.ActionMakeAdmin:
		return s.handleMakeAdmin(ctx, in.Country)
	case domain.ActionEnableVoting:
		return s.handleEnableVoting(ctx, in.Country)
	case domain.ActionCountryPerformance:
		return s.handleCountryPerformance(ctx, in.Country)
	default:
		return apperrors.ValidationError("unknown action").WithContext("action", in.Action)
	}
}

// handleInit claims a fresh slot, or resumes a previously claimed country
// when the viewer names one. The resulting slot change flows through the
// change feed, which sends the viewer its session snapshot.
func (s *Server) handleInit(ctx context.Context, connectionID, country string) error {
	if country != "" {
		return s.allocator.Reassign(ctx, country, connectionID)
	}

	_, err := s.allocator.Claim(ctx, connectionID)
	if errors.Is(err, session.ErrNoSlotsAvailable) {
		return s.sender.SendOne(ctx, connectionID, domain.NoCountriesMessage())
	}
	return err
}

// handleRefresh rebuilds and resends the viewer's full view directly.
func (s *Server) handleRefresh(ctx context.Context, connectionID string) error {
	slot, err := s.allocator.FindOwnedSlot(ctx, connectionID)
	if errors.Is(err, session.ErrNoSlotAssigned) {
		return s.sender.SendOne(ctx, connectionID, domain.NoCountriesMessage())
	}
	if err != nil {
		return err
	}

	msgs, err := s.bootstrapper.BuildSnapshot(ctx, slot)
	if err != nil {
		return err
	}
	for _, msg := range msgs {
		if err := s.sender.SendOne(ctx, connectionID, msg); err != nil {
			return err
		}
	}
	return nil
}

// handleVote applies the scores to the country currently performing, the
// head of the performance log.
func (s *Server) handleVote(ctx context.Context, scores map[string]int) error {
	performed, err := s.ledger.PerformedCountries(ctx)
	if err != nil {
		return err
	}
	if len(performed) == 0 {
		return apperrors.ValidationError("no country has performed yet")
	}
	return s.aggregator.RecordVote(ctx, performed[0], scores)
}

func (s *Server) handleMakeAdmin(ctx context.Context, country string) error {
	if country == "" {
		return apperrors.ValidationError("country is required")
	}
	return s.ledger.SetSlotAdmin(ctx, country)
}

func (s *Server) handleEnableVoting(ctx context.Context, country string) error {
	if country == "" {
		return apperrors.ValidationError("country is required")
	}
	return s.ledger.SetSlotVotingEnabled(ctx, country)
}

func (s *Server) handleCountryPerformance(ctx context.Context, country string) error {
	if !domain.IsCountry(country) {
		return apperrors.ValidationError("unknown country").WithContext("country", country)
	}
	return s.ledger.AppendPerformance(ctx, country, s.clock.Now())
}
