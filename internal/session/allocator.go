package session

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"math/rand/v2"

	"github.com/andyjduncan/eurosight/internal/domain"
	apperrors "github.com/andyjduncan/eurosight/internal/errors"
	"github.com/andyjduncan/eurosight/internal/metrics"
)

// Claim outcomes that are conditions rather than failures.
var (
	// ErrNoSlotsAvailable is returned when every country slot is claimed.
	ErrNoSlotsAvailable = apperrors.ExhaustedError("no unclaimed country slots remain")

	// ErrNoSlotAssigned is returned by FindOwnedSlot when the connection
	// has not claimed a slot yet.
	ErrNoSlotAssigned = apperrors.NotFoundError("no country slot assigned to connection")
)

// Allocator assigns uniquely-owned country slots to connections.
// Allocation is optimistic and lock-free: collisions on the conditional
// insert are expected under concurrent claims and resolved by moving to the
// next shuffled candidate, never by waiting.
type Allocator struct {
	ledger domain.Ledger
}

func NewAllocator(ledger domain.Ledger) *Allocator {
	return &Allocator{ledger: ledger}
}

// Claim assigns an unclaimed country slot to connectionID and returns its
// country code. Worst case is one conditional write per candidate; returns
// ErrNoSlotsAvailable once the candidate list is exhausted.
func (a *Allocator) Claim(ctx context.Context, connectionID string) (string, error) {
	candidates := domain.CountryCodes()
	rand.Shuffle(len(candidates), func(i, j int) {
		candidates[i], candidates[j] = candidates[j], candidates[i]
	})

	for _, code := range candidates {
		err := a.ledger.InsertSlot(ctx, domain.CountrySlot{CountryCode: code, Owner: connectionID})
		if err == nil {
			metrics.ClaimsTotal.WithLabelValues("claimed").Inc()
			slog.Info("Country slot claimed", "country", code, "connection_id", connectionID)
			return code, nil
		}
		if errors.Is(err, domain.ErrSlotExists) {
			// Lost the race for this candidate, try the next one.
			metrics.ClaimCollisions.Inc()
			continue
		}
		metrics.ClaimsTotal.WithLabelValues("error").Inc()
		return "", fmt.Errorf("claim for %s: %w", connectionID, err)
	}

	metrics.ClaimsTotal.WithLabelValues("exhausted").Inc()
	return "", ErrNoSlotsAvailable
}

// Reassign points an existing slot at a new owning connection. Ownership
// eligibility is not re-verified; the caller is trusted to supply a country
// it is entitled to resume.
func (a *Allocator) Reassign(ctx context.Context, countryCode, connectionID string) error {
	if err := a.ledger.UpdateSlotOwner(ctx, countryCode, connectionID); err != nil {
		return fmt.Errorf("reassign %q to %s: %w", countryCode, connectionID, err)
	}
	slog.Info("Country slot reassigned", "country", countryCode, "connection_id", connectionID)
	return nil
}

// FindOwnedSlot returns the single slot owned by connectionID. Zero matches
// is the recoverable ErrNoSlotAssigned; more than one violates the
// allocation contract and is surfaced as an integrity error, never repaired.
func (a *Allocator) FindOwnedSlot(ctx context.Context, connectionID string) (domain.CountrySlot, error) {
	slots, err := a.ledger.Slots(ctx)
	if err != nil {
		return domain.CountrySlot{}, fmt.Errorf("find slot for %s: %w", connectionID, err)
	}

	var owned []domain.CountrySlot
	for _, slot := range slots {
		if slot.Owner == connectionID {
			owned = append(owned, slot)
		}
	}

	switch len(owned) {
	case 0:
		return domain.CountrySlot{}, ErrNoSlotAssigned
	case 1:
		return owned[0], nil
	default:
		codes := make([]string, len(owned))
		for i, slot := range owned {
			codes[i] = slot.CountryCode
		}
		return domain.CountrySlot{}, apperrors.IntegrityError("connection owns multiple country slots").
			WithContext("connection_id", connectionID).
			WithContext("countries", codes)
	}
}
