// Package domaintest provides in-memory fakes of the domain contracts.
// Test use only.
package domaintest

import (
	"context"
	"fmt"
	"sort"
	"sync"
	"time"

	"github.com/andyjduncan/eurosight/internal/domain"
)

// Ledger is a mutex-guarded in-memory domain.Ledger. It mirrors the store's
// atomicity guarantees: conditional slot inserts and score increments are
// atomic under concurrent use, making it suitable for race-style tests.
// Every mutation is also appended to Events, so tests can feed it to a
// propagator as a synthetic change feed.
type Ledger struct {
	mu           sync.Mutex
	connections  map[string]struct{}
	voters       map[string]struct{}
	slots        map[string]domain.CountrySlot
	scores       map[string]map[string]int
	performances []domain.Performance

	// Events records one change event per mutation, in order.
	Events []domain.ChangeEvent

	// FailNext, when non-nil, is returned by the next mutating call and
	// then cleared. Lets tests exercise transient store failures.
	FailNext error
}

func NewLedger() *Ledger {
	return &Ledger{
		connections: make(map[string]struct{}),
		voters:      make(map[string]struct{}),
		slots:       make(map[string]domain.CountrySlot),
		scores:      make(map[string]map[string]int),
	}
}

func (l *Ledger) takeFailure() error {
	err := l.FailNext
	l.FailNext = nil
	return err
}

func (l *Ledger) record(ev domain.ChangeEvent) {
	l.Events = append(l.Events, ev)
}

func (l *Ledger) AddConnection(_ context.Context, connectionID string) error {
	l.mu.Lock()
	defer l.mu.Unlock()
	if err := l.takeFailure(); err != nil {
		return err
	}
	l.connections[connectionID] = struct{}{}
	l.record(domain.ChangeEvent{Category: domain.CategoryConnection, Key: connectionID})
	return nil
}

func (l *Ledger) RemoveConnection(_ context.Context, connectionID string) error {
	l.mu.Lock()
	defer l.mu.Unlock()
	if err := l.takeFailure(); err != nil {
		return err
	}
	delete(l.connections, connectionID)
	return nil
}

func (l *Ledger) Connections(_ context.Context) ([]string, error) {
	l.mu.Lock()
	defer l.mu.Unlock()
	ids := make([]string, 0, len(l.connections))
	for id := range l.connections {
		ids = append(ids, id)
	}
	sort.Strings(ids)
	return ids, nil
}

func (l *Ledger) AddVoter(_ context.Context, connectionID string) error {
	l.mu.Lock()
	defer l.mu.Unlock()
	if err := l.takeFailure(); err != nil {
		return err
	}
	l.voters[connectionID] = struct{}{}
	return nil
}

func (l *Ledger) RemoveVoter(_ context.Context, connectionID string) error {
	l.mu.Lock()
	defer l.mu.Unlock()
	if err := l.takeFailure(); err != nil {
		return err
	}
	delete(l.voters, connectionID)
	return nil
}

// Voters returns current voter-set membership, sorted. Test helper.
func (l *Ledger) Voters() []string {
	l.mu.Lock()
	defer l.mu.Unlock()
	ids := make([]string, 0, len(l.voters))
	for id := range l.voters {
		ids = append(ids, id)
	}
	sort.Strings(ids)
	return ids
}

// HasConnection reports registry membership. Test helper.
func (l *Ledger) HasConnection(connectionID string) bool {
	l.mu.Lock()
	defer l.mu.Unlock()
	_, ok := l.connections[connectionID]
	return ok
}

func (l *Ledger) InsertSlot(_ context.Context, slot domain.CountrySlot) error {
	l.mu.Lock()
	defer l.mu.Unlock()
	if err := l.takeFailure(); err != nil {
		return err
	}
	if _, exists := l.slots[slot.CountryCode]; exists {
		return domain.ErrSlotExists
	}
	l.slots[slot.CountryCode] = slot
	l.record(domain.ChangeEvent{
		Category: domain.CategoryCountry,
		Key:      slot.CountryCode,
		New:      domain.SlotImage(slot),
	})
	return nil
}

func (l *Ledger) UpdateSlotOwner(_ context.Context, countryCode, connectionID string) error {
	return l.updateSlot(countryCode, func(slot *domain.CountrySlot) {
		slot.Owner = connectionID
	})
}

func (l *Ledger) SetSlotAdmin(_ context.Context, countryCode string) error {
	return l.updateSlot(countryCode, func(slot *domain.CountrySlot) {
		slot.Admin = true
	})
}

func (l *Ledger) SetSlotVotingEnabled(_ context.Context, countryCode string) error {
	return l.updateSlot(countryCode, func(slot *domain.CountrySlot) {
		slot.VotingEnabled = true
	})
}

func (l *Ledger) updateSlot(countryCode string, mutate func(*domain.CountrySlot)) error {
	l.mu.Lock()
	defer l.mu.Unlock()
	if err := l.takeFailure(); err != nil {
		return err
	}
	slot, exists := l.slots[countryCode]
	if !exists {
		return fmt.Errorf("update %q: %w", countryCode, domain.ErrSlotNotFound)
	}
	old := domain.SlotImage(slot)
	mutate(&slot)
	l.slots[countryCode] = slot
	l.record(domain.ChangeEvent{
		Category: domain.CategoryCountry,
		Key:      countryCode,
		New:      domain.SlotImage(slot),
		Old:      old,
	})
	return nil
}

func (l *Ledger) Slot(_ context.Context, countryCode string) (domain.CountrySlot, error) {
	l.mu.Lock()
	defer l.mu.Unlock()
	slot, exists := l.slots[countryCode]
	if !exists {
		return domain.CountrySlot{}, fmt.Errorf("slot %q: %w", countryCode, domain.ErrSlotNotFound)
	}
	return slot, nil
}

func (l *Ledger) Slots(_ context.Context) ([]domain.CountrySlot, error) {
	l.mu.Lock()
	defer l.mu.Unlock()
	slots := make([]domain.CountrySlot, 0, len(l.slots))
	for _, slot := range l.slots {
		slots = append(slots, slot)
	}
	sort.Slice(slots, func(i, j int) bool { return slots[i].CountryCode < slots[j].CountryCode })
	return slots, nil
}

func (l *Ledger) AddScores(_ context.Context, countryCode string, deltas map[string]int) error {
	l.mu.Lock()
	defer l.mu.Unlock()
	if err := l.takeFailure(); err != nil {
		return err
	}
	record, exists := l.scores[countryCode]
	if !exists {
		record = make(map[string]int)
		l.scores[countryCode] = record
	}
	for category, delta := range deltas {
		record[category] += delta
	}
	l.record(domain.ChangeEvent{Category: domain.CategoryScores, Key: countryCode})
	return nil
}

func (l *Ledger) ScoreRecords(_ context.Context) (map[string]map[string]int, error) {
	l.mu.Lock()
	defer l.mu.Unlock()
	records := make(map[string]map[string]int, len(l.scores))
	for code, record := range l.scores {
		copied := make(map[string]int, len(record))
		for category, total := range record {
			copied[category] = total
		}
		records[code] = copied
	}
	return records, nil
}

func (l *Ledger) AppendPerformance(_ context.Context, countryCode string, at time.Time) error {
	l.mu.Lock()
	defer l.mu.Unlock()
	if err := l.takeFailure(); err != nil {
		return err
	}
	l.performances = append(l.performances, domain.Performance{CountryCode: countryCode, At: at})
	l.record(domain.ChangeEvent{Category: domain.CategoryPerformance, Key: countryCode})
	return nil
}

func (l *Ledger) PerformedCountries(_ context.Context) ([]string, error) {
	l.mu.Lock()
	defer l.mu.Unlock()
	performances := make([]domain.Performance, len(l.performances))
	copy(performances, l.performances)
	// Most recent first; equal timestamps order by country code descending,
	// matching the store's reverse-lexicographic member ordering.
	sort.SliceStable(performances, func(i, j int) bool {
		if !performances[i].At.Equal(performances[j].At) {
			return performances[i].At.After(performances[j].At)
		}
		return performances[i].CountryCode > performances[j].CountryCode
	})
	codes := make([]string, len(performances))
	for i, p := range performances {
		codes[i] = p.CountryCode
	}
	return codes, nil
}
