package redis

import (
	"context"
	"fmt"
	"strconv"
	"strings"
	"time"

	"github.com/andyjduncan/eurosight/internal/domain"
	goredis "github.com/redis/go-redis/v9"
)

// Ledger is the Redis-backed domain.Ledger. All keys are namespaced by the
// configured table name so multiple sessions can share one Redis.
type Ledger struct {
	rdb   *goredis.Client
	table string
}

var _ domain.Ledger = (*Ledger)(nil)

func NewLedger(rdb *goredis.Client, table string) *Ledger {
	return &Ledger{rdb: rdb, table: table}
}

func (l *Ledger) key(parts ...string) string {
	return l.table + ":" + strings.Join(parts, ":")
}

func (l *Ledger) connectionsKey() string  { return l.key("connection") }
func (l *Ledger) votersKey() string       { return l.key("voters") }
func (l *Ledger) slotKey(c string) string { return l.key("country", c) }
func (l *Ledger) slotIndexKey() string    { return l.key("country", "index") }
func (l *Ledger) scoreKey(c string) string {
	return l.key("scores", c)
}
func (l *Ledger) scoreIndexKey() string  { return l.key("scores", "index") }
func (l *Ledger) performanceKey() string { return l.key("performance") }
func (l *Ledger) changesChannel() string { return l.key("changes") }

// --- Connection registry ---

func (l *Ledger) AddConnection(ctx context.Context, connectionID string) error {
	if err := l.rdb.SAdd(ctx, l.connectionsKey(), connectionID).Err(); err != nil {
		return fmt.Errorf("failed to register connection: %w", err)
	}
	l.publish(ctx, domain.ChangeEvent{Category: domain.CategoryConnection, Key: connectionID})
	return nil
}

func (l *Ledger) RemoveConnection(ctx context.Context, connectionID string) error {
	if err := l.rdb.SRem(ctx, l.connectionsKey(), connectionID).Err(); err != nil {
		return fmt.Errorf("failed to remove connection: %w", err)
	}
	return nil
}

func (l *Ledger) Connections(ctx context.Context) ([]string, error) {
	ids, err := l.rdb.SMembers(ctx, l.connectionsKey()).Result()
	if err != nil {
		return nil, fmt.Errorf("failed to list connections: %w", err)
	}
	return ids, nil
}

// --- Voter set ---

func (l *Ledger) AddVoter(ctx context.Context, connectionID string) error {
	if err := l.rdb.SAdd(ctx, l.votersKey(), connectionID).Err(); err != nil {
		return fmt.Errorf("failed to add voter: %w", err)
	}
	l.publish(ctx, domain.ChangeEvent{Category: domain.CategoryVoters, Key: connectionID})
	return nil
}

func (l *Ledger) RemoveVoter(ctx context.Context, connectionID string) error {
	if err := l.rdb.SRem(ctx, l.votersKey(), connectionID).Err(); err != nil {
		return fmt.Errorf("failed to remove voter: %w", err)
	}
	return nil
}

// --- Country slots ---

// InsertSlot claims a slot with a single script call. The conditional write
// is the only mutual-exclusion primitive: a rejected insert means the slot
// was claimed by a concurrent connection.
func (l *Ledger) InsertSlot(ctx context.Context, slot domain.CountrySlot) error {
	args := []any{slot.CountryCode, domain.FieldOwner, slot.Owner}
	if slot.Admin {
		args = append(args, domain.FieldAdmin, domain.FlagSet)
	}
	if slot.VotingEnabled {
		args = append(args, domain.FieldVotingEnabled, domain.FlagSet)
	}

	keys := []string{l.slotKey(slot.CountryCode), l.slotIndexKey()}
	claimed, err := claimSlotScript.Run(ctx, l.rdb, keys, args...).Int()
	if err != nil {
		return fmt.Errorf("claim slot script failed for %q: %w", slot.CountryCode, err)
	}
	if claimed == 0 {
		return fmt.Errorf("slot %q: %w", slot.CountryCode, domain.ErrSlotExists)
	}

	l.publish(ctx, domain.ChangeEvent{
		Category: domain.CategoryCountry,
		Key:      slot.CountryCode,
		New:      domain.SlotImage(slot),
	})
	return nil
}

func (l *Ledger) UpdateSlotOwner(ctx context.Context, countryCode, connectionID string) error {
	return l.updateSlotField(ctx, countryCode, domain.FieldOwner, connectionID)
}

func (l *Ledger) SetSlotAdmin(ctx context.Context, countryCode string) error {
	return l.updateSlotField(ctx, countryCode, domain.FieldAdmin, domain.FlagSet)
}

func (l *Ledger) SetSlotVotingEnabled(ctx context.Context, countryCode string) error {
	return l.updateSlotField(ctx, countryCode, domain.FieldVotingEnabled, domain.FlagSet)
}

// updateSlotField sets one field of an existing slot. Slot identity is
// immutable, so updates to a never-claimed code are rejected rather than
// implicitly creating a row.
func (l *Ledger) updateSlotField(ctx context.Context, countryCode, field, value string) error {
	old, err := l.rdb.HGetAll(ctx, l.slotKey(countryCode)).Result()
	if err != nil {
		return fmt.Errorf("failed to read slot %q: %w", countryCode, err)
	}
	if len(old) == 0 {
		return fmt.Errorf("slot %q: %w", countryCode, domain.ErrSlotNotFound)
	}

	if err := l.rdb.HSet(ctx, l.slotKey(countryCode), field, value).Err(); err != nil {
		return fmt.Errorf("failed to update slot %q: %w", countryCode, err)
	}

	updated := make(map[string]string, len(old)+1)
	for k, v := range old {
		updated[k] = v
	}
	updated[field] = value

	l.publish(ctx, domain.ChangeEvent{
		Category: domain.CategoryCountry,
		Key:      countryCode,
		New:      updated,
		Old:      old,
	})
	return nil
}

func (l *Ledger) Slot(ctx context.Context, countryCode string) (domain.CountrySlot, error) {
	image, err := l.rdb.HGetAll(ctx, l.slotKey(countryCode)).Result()
	if err != nil {
		return domain.CountrySlot{}, fmt.Errorf("failed to read slot %q: %w", countryCode, err)
	}
	if len(image) == 0 {
		return domain.CountrySlot{}, fmt.Errorf("slot %q: %w", countryCode, domain.ErrSlotNotFound)
	}
	return domain.SlotFromImage(countryCode, image), nil
}

func (l *Ledger) Slots(ctx context.Context) ([]domain.CountrySlot, error) {
	codes, err := l.rdb.SMembers(ctx, l.slotIndexKey()).Result()
	if err != nil {
		return nil, fmt.Errorf("failed to list claimed slots: %w", err)
	}

	pipe := l.rdb.Pipeline()
	cmds := make([]*goredis.MapStringStringCmd, len(codes))
	for i, code := range codes {
		cmds[i] = pipe.HGetAll(ctx, l.slotKey(code))
	}
	if _, err := pipe.Exec(ctx); err != nil {
		return nil, fmt.Errorf("failed to read slots: %w", err)
	}

	slots := make([]domain.CountrySlot, 0, len(codes))
	for i, code := range codes {
		image, err := cmds[i].Result()
		if err != nil || len(image) == 0 {
			continue
		}
		slots = append(slots, domain.SlotFromImage(code, image))
	}
	return slots, nil
}

// --- Score accumulators ---

// AddScores applies each category delta with HINCRBY. Increments happen at
// the store, never via read-modify-write, so concurrent votes for the same
// country cannot lose updates. The deltas and the index entry run inside
// MULTI/EXEC so a country cannot carry scores without appearing in the index.
func (l *Ledger) AddScores(ctx context.Context, countryCode string, deltas map[string]int) error {
	pipe := l.rdb.TxPipeline()
	for category, delta := range deltas {
		pipe.HIncrBy(ctx, l.scoreKey(countryCode), category, int64(delta))
	}
	pipe.SAdd(ctx, l.scoreIndexKey(), countryCode)
	if _, err := pipe.Exec(ctx); err != nil {
		return fmt.Errorf("failed to add scores for %q: %w", countryCode, err)
	}

	image, err := l.rdb.HGetAll(ctx, l.scoreKey(countryCode)).Result()
	if err != nil {
		image = nil
	}
	l.publish(ctx, domain.ChangeEvent{
		Category: domain.CategoryScores,
		Key:      countryCode,
		New:      image,
	})
	return nil
}

func (l *Ledger) ScoreRecords(ctx context.Context) (map[string]map[string]int, error) {
	codes, err := l.rdb.SMembers(ctx, l.scoreIndexKey()).Result()
	if err != nil {
		return nil, fmt.Errorf("failed to list score records: %w", err)
	}

	pipe := l.rdb.Pipeline()
	cmds := make([]*goredis.MapStringStringCmd, len(codes))
	for i, code := range codes {
		cmds[i] = pipe.HGetAll(ctx, l.scoreKey(code))
	}
	if _, err := pipe.Exec(ctx); err != nil {
		return nil, fmt.Errorf("failed to read score records: %w", err)
	}

	records := make(map[string]map[string]int, len(codes))
	for i, code := range codes {
		fields, err := cmds[i].Result()
		if err != nil {
			continue
		}
		record := make(map[string]int, len(fields))
		for category, raw := range fields {
			total, err := strconv.Atoi(raw)
			if err != nil {
				continue
			}
			record[category] = total
		}
		records[code] = record
	}
	return records, nil
}

// --- Performance log ---

func (l *Ledger) AppendPerformance(ctx context.Context, countryCode string, at time.Time) error {
	ts := at.UnixMilli()
	member := fmt.Sprintf("%d:%s", ts, countryCode)
	if err := l.rdb.ZAdd(ctx, l.performanceKey(), goredis.Z{Score: float64(ts), Member: member}).Err(); err != nil {
		return fmt.Errorf("failed to append performance for %q: %w", countryCode, err)
	}
	l.publish(ctx, domain.ChangeEvent{
		Category: domain.CategoryPerformance,
		Key:      strconv.FormatInt(ts, 10),
		New:      map[string]string{"country": countryCode},
	})
	return nil
}

func (l *Ledger) PerformedCountries(ctx context.Context) ([]string, error) {
	members, err := l.rdb.ZRevRange(ctx, l.performanceKey(), 0, -1).Result()
	if err != nil {
		return nil, fmt.Errorf("failed to list performances: %w", err)
	}
	codes := make([]string, 0, len(members))
	for _, member := range members {
		if _, code, found := strings.Cut(member, ":"); found {
			codes = append(codes, code)
		}
	}
	return codes, nil
}
