package session

import (
	"context"
	"fmt"

	"github.com/andyjduncan/eurosight/internal/domain"
	apperrors "github.com/andyjduncan/eurosight/internal/errors"
	"github.com/andyjduncan/eurosight/internal/metrics"
)

// Aggregator merges score submissions into per-country running totals.
type Aggregator struct {
	ledger domain.Ledger
}

func NewAggregator(ledger domain.Ledger) *Aggregator {
	return &Aggregator{ledger: ledger}
}

// RecordVote applies categoryScores additively to countryCode's score
// record, creating it on first vote. Increments are atomic at the store, so
// concurrent submissions for the same country never lose updates.
func (g *Aggregator) RecordVote(ctx context.Context, countryCode string, categoryScores map[string]int) error {
	if !domain.IsCountry(countryCode) {
		return apperrors.ValidationError("unknown country").WithContext("country", countryCode)
	}
	if len(categoryScores) == 0 {
		return apperrors.ValidationError("vote carries no scores")
	}

	if err := g.ledger.AddScores(ctx, countryCode, categoryScores); err != nil {
		return fmt.Errorf("record vote for %q: %w", countryCode, err)
	}
	metrics.VotesTotal.Inc()
	return nil
}

// CurrentTotals scans every score record and sums each category across
// countries into the global leaderboard mapping.
func (g *Aggregator) CurrentTotals(ctx context.Context) (map[string]int, error) {
	records, err := g.ledger.ScoreRecords(ctx)
	if err != nil {
		return nil, fmt.Errorf("current totals: %w", err)
	}

	totals := make(map[string]int)
	for _, record := range records {
		for category, total := range record {
			totals[category] += total
		}
	}
	return totals, nil
}
