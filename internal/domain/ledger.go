package domain

import (
	"context"
	"errors"
	"time"
)

// Category partitions the ledger. Every row belongs to exactly one category.
type Category string

const (
	CategoryConnection  Category = "connection"
	CategoryVoters      Category = "voters"
	CategoryCountry     Category = "country"
	CategoryScores      Category = "scores"
	CategoryPerformance Category = "performance"
)

// Sentinel errors returned by ledger implementations.
var (
	// ErrSlotExists signals a lost race on a conditional slot insert.
	// Expected under concurrent claims; callers retry with another candidate.
	ErrSlotExists = errors.New("country slot already claimed")

	// ErrSlotNotFound signals a lookup for a slot that was never claimed.
	ErrSlotNotFound = errors.New("country slot not found")
)

// CountrySlot is a claimable, uniquely-owned voting seat for one country.
// The country code is the slot's identity and never changes after the first
// claim; the owning connection may be reassigned.
type CountrySlot struct {
	CountryCode   string
	Owner         string
	Admin         bool
	VotingEnabled bool
}

// Performance is one append-only entry in the performance log.
type Performance struct {
	CountryCode string
	At          time.Time
}

// Ledger is the durable, shared store of all session state. There is no
// in-process shared memory between handlers; every coordination primitive
// the core relies on (conditional insert, atomic increment, set membership)
// is a single atomic ledger operation.
type Ledger interface {
	// Connection registry.

	AddConnection(ctx context.Context, connectionID string) error
	RemoveConnection(ctx context.Context, connectionID string) error
	Connections(ctx context.Context) ([]string, error)

	// Voter set. Membership mirrors the connection registry and is pruned
	// symmetrically on disconnect.

	AddVoter(ctx context.Context, connectionID string) error
	RemoveVoter(ctx context.Context, connectionID string) error

	// Country slots.

	// InsertSlot writes a slot row only if no row exists for the country
	// code. Returns ErrSlotExists when the code is already claimed.
	InsertSlot(ctx context.Context, slot CountrySlot) error
	// UpdateSlotOwner unconditionally reassigns an existing slot's owner.
	UpdateSlotOwner(ctx context.Context, countryCode, connectionID string) error
	SetSlotAdmin(ctx context.Context, countryCode string) error
	SetSlotVotingEnabled(ctx context.Context, countryCode string) error
	Slot(ctx context.Context, countryCode string) (CountrySlot, error)
	Slots(ctx context.Context) ([]CountrySlot, error)

	// Score accumulators. AddScores applies every delta as an atomic
	// store-side increment, creating the record on first vote.

	AddScores(ctx context.Context, countryCode string, deltas map[string]int) error
	ScoreRecords(ctx context.Context) (map[string]map[string]int, error)

	// Performance log, append-only.

	AppendPerformance(ctx context.Context, countryCode string, at time.Time) error
	// PerformedCountries returns country codes most-recent-first.
	PerformedCountries(ctx context.Context) ([]string, error)
}

// ChangeEvent is one entry of the ledger's change feed. The new image is
// always present for inserts and updates; the old image is included only
// when the producer had it in hand, so consumers must tolerate its absence.
type ChangeEvent struct {
	Category Category          `json:"category"`
	Key      string            `json:"key"`
	New      map[string]string `json:"new,omitempty"`
	Old      map[string]string `json:"old,omitempty"`
}

// ChangeFeed delivers batches of ledger change events. Delivery is
// at-least-once and order-tolerant across categories; consumers must be
// idempotent.
type ChangeFeed interface {
	// Subscribe starts delivering event batches on the returned channel
	// until ctx is cancelled. The channel is closed on cancellation.
	Subscribe(ctx context.Context) (<-chan []ChangeEvent, error)
}
