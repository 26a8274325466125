// Package coordination consumes the ledger's change feed and fans out the
// derived broadcasts.
package coordination

import (
	"context"
	"fmt"
	"log/slog"
	"sync"

	"github.com/andyjduncan/eurosight/internal/broadcast"
	"github.com/andyjduncan/eurosight/internal/domain"
	"github.com/andyjduncan/eurosight/internal/metrics"
	"github.com/andyjduncan/eurosight/internal/session"
)

// Propagator dispatches ledger change events to their broadcast handlers.
// Dispatch is purely on category: any change to a category is a trigger,
// values are re-read from the ledger, so handlers are idempotent and
// duplicate or reordered feed delivery is tolerated.
type Propagator struct {
	ledger       domain.Ledger
	bootstrapper *session.Bootstrapper
	aggregator   *session.Aggregator
	sender       *broadcast.Sender
}

func NewPropagator(
	ledger domain.Ledger,
	bootstrapper *session.Bootstrapper,
	aggregator *session.Aggregator,
	sender *broadcast.Sender,
) *Propagator {
	return &Propagator{
		ledger:       ledger,
		bootstrapper: bootstrapper,
		aggregator:   aggregator,
		sender:       sender,
	}
}

// Run consumes batches from the feed until ctx is cancelled.
func (p *Propagator) Run(ctx context.Context, feed domain.ChangeFeed) error {
	batches, err := feed.Subscribe(ctx)
	if err != nil {
		return fmt.Errorf("subscribe to change feed: %w", err)
	}

	slog.Info("Change propagator started")
	for batch := range batches {
		p.HandleBatch(ctx, batch)
	}
	slog.Info("Change propagator stopped")
	return nil
}

// HandleBatch processes every event of a batch in parallel. A failure in one
// event is logged and never aborts the rest of the batch.
func (p *Propagator) HandleBatch(ctx context.Context, batch []domain.ChangeEvent) {
	var wg sync.WaitGroup
	for _, ev := range batch {
		wg.Add(1)
		go func(ev domain.ChangeEvent) {
			defer wg.Done()
			defer func() {
				if r := recover(); r != nil {
					metrics.ChangeEventsTotal.WithLabelValues(string(ev.Category), "panic").Inc()
					slog.Error("Panic handling change event", "category", ev.Category, "key", ev.Key, "panic", r)
				}
			}()

			if err := p.handle(ctx, ev); err != nil {
				metrics.ChangeEventsTotal.WithLabelValues(string(ev.Category), "error").Inc()
				slog.Error("Failed to handle change event",
					"category", ev.Category,
					"key", ev.Key,
					"error", err)
				return
			}
			metrics.ChangeEventsTotal.WithLabelValues(string(ev.Category), "ok").Inc()
		}(ev)
	}
	wg.Wait()
}

// handle is the closed dispatch over event categories. Unknown categories
// are an explicit no-op, never a crash.
func (p *Propagator) handle(ctx context.Context, ev domain.ChangeEvent) error {
	switch ev.Category {
	case domain.CategoryCountry:
		return p.handleSlotChanged(ctx, ev)
	case domain.CategoryScores:
		return p.handleScoresChanged(ctx)
	case domain.CategoryPerformance:
		return p.handlePerformanceChanged(ctx)
	case domain.CategoryConnection, domain.CategoryVoters:
		// Registry changes are not broadcast.
		return nil
	default:
		slog.Debug("Ignoring change event for unknown category", "category", ev.Category)
		return nil
	}
}

// handleSlotChanged treats any slot change as "claimed or updated" and sends
// the owner a fresh session snapshot.
func (p *Propagator) handleSlotChanged(ctx context.Context, ev domain.ChangeEvent) error {
	var slot domain.CountrySlot
	if len(ev.New) > 0 {
		slot = domain.SlotFromImage(ev.Key, ev.New)
	} else {
		// Feed delivered no image; fall back to the ledger.
		var err error
		slot, err = p.ledger.Slot(ctx, ev.Key)
		if err != nil {
			return err
		}
	}

	msgs, err := p.bootstrapper.BuildSnapshot(ctx, slot)
	if err != nil {
		return err
	}
	for _, msg := range msgs {
		if err := p.sender.SendOne(ctx, slot.Owner, msg); err != nil {
			return err
		}
	}
	return nil
}

func (p *Propagator) handleScoresChanged(ctx context.Context) error {
	totals, err := p.aggregator.CurrentTotals(ctx)
	if err != nil {
		return err
	}
	return p.sender.SendAll(ctx, domain.ScoresMessage(totals))
}

func (p *Propagator) handlePerformanceChanged(ctx context.Context) error {
	performed, err := p.ledger.PerformedCountries(ctx)
	if err != nil {
		return err
	}
	return p.sender.SendAll(ctx, domain.PerformedCountriesMessage(performed))
}
