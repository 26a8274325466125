package session

import (
	"context"
	"fmt"
	"sort"

	"github.com/andyjduncan/eurosight/internal/domain"
)

// Bootstrapper reconstructs a viewer's full current view on (re)connect or
// refresh.
type Bootstrapper struct {
	ledger     domain.Ledger
	aggregator *Aggregator
}

func NewBootstrapper(ledger domain.Ledger, aggregator *Aggregator) *Bootstrapper {
	return &Bootstrapper{ledger: ledger, aggregator: aggregator}
}

// BuildSnapshot produces the setup sequence for the owner of slot. The
// client processes these as a linear setup script, so the order is fixed:
// country, allCountries, performedCountries, scores, then the optional
// votingEnabled flag, then the optional admin sub-sequence (madeAdmin,
// performingCountries, votingPanels).
func (b *Bootstrapper) BuildSnapshot(ctx context.Context, slot domain.CountrySlot) ([]domain.Message, error) {
	performed, err := b.ledger.PerformedCountries(ctx)
	if err != nil {
		return nil, fmt.Errorf("build snapshot for %q: %w", slot.CountryCode, err)
	}

	totals, err := b.aggregator.CurrentTotals(ctx)
	if err != nil {
		return nil, fmt.Errorf("build snapshot for %q: %w", slot.CountryCode, err)
	}

	msgs := []domain.Message{
		domain.CountryMessage(slot.CountryCode),
		domain.AllCountriesMessage(domain.Countries()),
		domain.PerformedCountriesMessage(performed),
		domain.ScoresMessage(totals),
	}

	if slot.VotingEnabled {
		msgs = append(msgs, domain.VotingEnabledMessage())
	}

	if slot.Admin {
		panels, err := b.claimedCountries(ctx)
		if err != nil {
			return nil, fmt.Errorf("build snapshot for %q: %w", slot.CountryCode, err)
		}
		msgs = append(msgs,
			domain.MadeAdminMessage(),
			domain.PerformingCountriesMessage(domain.PerformerRoster()),
			domain.VotingPanelsMessage(panels),
		)
	}

	return msgs, nil
}

func (b *Bootstrapper) claimedCountries(ctx context.Context) ([]string, error) {
	slots, err := b.ledger.Slots(ctx)
	if err != nil {
		return nil, err
	}
	codes := make([]string, len(slots))
	for i, slot := range slots {
		codes[i] = slot.CountryCode
	}
	sort.Strings(codes)
	return codes, nil
}
