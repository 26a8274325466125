package redis

import (
	"context"
	"encoding/json"
	"log/slog"

	"github.com/andyjduncan/eurosight/internal/domain"
	goredis "github.com/redis/go-redis/v9"
)

const feedBufferSize = 64

// publish emits a change event on the ledger's pub/sub channel. Publishing
// is best-effort: a lost event is recovered by the viewer's next refresh,
// so a publish failure never fails the mutation it describes.
func (l *Ledger) publish(ctx context.Context, ev domain.ChangeEvent) {
	data, err := json.Marshal(ev)
	if err != nil {
		slog.Error("Failed to marshal change event", "category", ev.Category, "error", err)
		return
	}
	if err := l.rdb.Publish(ctx, l.changesChannel(), data).Err(); err != nil {
		slog.Warn("Failed to publish change event",
			"category", ev.Category,
			"key", ev.Key,
			"error", err)
	}
}

// Feed subscribes to the ledger's change channel and delivers drained
// batches of events. Implements domain.ChangeFeed.
type Feed struct {
	rdb     *goredis.Client
	channel string
}

func NewFeed(rdb *goredis.Client, table string) *Feed {
	return &Feed{rdb: rdb, channel: table + ":changes"}
}

var _ domain.ChangeFeed = (*Feed)(nil)

// Subscribe starts delivering event batches until ctx is cancelled. Each
// batch contains at least one event; whatever else is already pending on
// the subscription is drained into the same batch.
func (f *Feed) Subscribe(ctx context.Context) (<-chan []domain.ChangeEvent, error) {
	sub := f.rdb.Subscribe(ctx, f.channel)
	if _, err := sub.Receive(ctx); err != nil {
		_ = sub.Close()
		return nil, err
	}

	out := make(chan []domain.ChangeEvent, feedBufferSize)
	msgs := sub.Channel()

	go func() {
		defer close(out)
		defer func() { _ = sub.Close() }()

		for {
			select {
			case msg, ok := <-msgs:
				if !ok {
					return
				}
				batch := f.drain(msgs, decode(msg))
				if len(batch) == 0 {
					continue
				}
				select {
				case out <- batch:
				case <-ctx.Done():
					return
				}
			case <-ctx.Done():
				return
			}
		}
	}()

	return out, nil
}

// drain collects whatever is already buffered on the subscription into one
// batch, without blocking.
func (f *Feed) drain(msgs <-chan *goredis.Message, batch []domain.ChangeEvent) []domain.ChangeEvent {
	for {
		select {
		case msg, ok := <-msgs:
			if !ok {
				return batch
			}
			batch = append(batch, decode(msg)...)
		default:
			return batch
		}
	}
}

func decode(msg *goredis.Message) []domain.ChangeEvent {
	var ev domain.ChangeEvent
	if err := json.Unmarshal([]byte(msg.Payload), &ev); err != nil {
		slog.Warn("Dropping malformed change event", "payload", msg.Payload, "error", err)
		return nil
	}
	return []domain.ChangeEvent{ev}
}
