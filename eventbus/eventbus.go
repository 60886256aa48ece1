// Package eventbus fans committed case events out over Redis pub/sub.
package eventbus

import (
	"context"
	"encoding/json"
	"fmt"

	"github.com/redis/go-redis/v9"

	"dhportal/main_backend/cases"
)

type publisher interface {
	Publish(ctx context.Context, channel string, message interface{}) *redis.IntCmd
}

// Bus publishes and subscribes to one channel.
type Bus struct {
	client  publisher
	rdb     *redis.Client
	channel string
}

func New(addr, password string, db int, channel string) *Bus {
	rdb := redis.NewClient(&redis.Options{
		Addr:     addr,
		Password: password,
		DB:       db,
	})
	return &Bus{client: rdb, rdb: rdb, channel: channel}
}

func newWithPublisher(p publisher, channel string) *Bus {
	return &Bus{client: p, channel: channel}
}

func (b *Bus) Ping(ctx context.Context) error {
	if b.rdb == nil {
		return nil
	}
	return b.rdb.Ping(ctx).Err()
}

func (b *Bus) Close() error {
	if b.rdb == nil {
		return nil
	}
	return b.rdb.Close()
}

// Notify publishes ev as JSON.
func (b *Bus) Notify(ctx context.Context, ev cases.Event) error {
	payload, err := json.Marshal(ev)
	if err != nil {
		return err
	}
	if err := b.client.Publish(ctx, b.channel, payload).Err(); err != nil {
		return fmt.Errorf("publish %s: %w", b.channel, err)
	}
	return nil
}

// Subscribe streams decoded events until ctx is cancelled. Undecodable payloads are
// reported on the error channel and skipped.
func (b *Bus) Subscribe(ctx context.Context) (<-chan cases.Event, <-chan error, error) {
	if b.rdb == nil {
		return nil, nil, fmt.Errorf("subscribe %s: no redis client", b.channel)
	}
	sub := b.rdb.Subscribe(ctx, b.channel)
	if _, err := sub.Receive(ctx); err != nil {
		_ = sub.Close()
		return nil, nil, fmt.Errorf("subscribe %s: %w", b.channel, err)
	}
	events, errs := decode(ctx, sub.Channel())
	go func() {
		<-ctx.Done()
		_ = sub.Close()
	}()
	return events, errs, nil
}

func decode(ctx context.Context, msgs <-chan *redis.Message) (<-chan cases.Event, <-chan error) {
	events := make(chan cases.Event)
	errs := make(chan error, 1)
	go func() {
		defer close(events)
		defer close(errs)
		for {
			select {
			case <-ctx.Done():
				return
			case m, ok := <-msgs:
				if !ok {
					return
				}
				var ev cases.Event
				if err := json.Unmarshal([]byte(m.Payload), &ev); err != nil {
					select {
					case errs <- fmt.Errorf("decode event: %w", err):
					default:
					}
					continue
				}
				select {
				case events <- ev:
				case <-ctx.Done():
					return
				}
			}
		}
	}()
	return events, errs
}
