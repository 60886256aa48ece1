package eventbus

import (
	"context"
	"encoding/json"
	"errors"
	"os"
	"testing"
	"time"

	"github.com/redis/go-redis/v9"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"dhportal/main_backend/cases"
)

type fakePublisher struct {
	channel string
	payload []byte
	err     error
}

func (f *fakePublisher) Publish(ctx context.Context, channel string, message interface{}) *redis.IntCmd {
	f.channel = channel
	f.payload, _ = message.([]byte)
	cmd := redis.NewIntCmd(ctx)
	if f.err != nil {
		cmd.SetErr(f.err)
	} else {
		cmd.SetVal(1)
	}
	return cmd
}

var ev = cases.Event{
	Type:          cases.EventFieldFlagged,
	CaseID:        "c1",
	ControlNumber: "DH-PROF-2026-0130-001-001",
	FieldKeys:     []string{"salary"},
	Actor:         "Evaluator",
	At:            time.Date(2026, 1, 30, 9, 0, 0, 0, time.UTC),
}

func TestNotify(t *testing.T) {
	fake := &fakePublisher{}
	b := newWithPublisher(fake, "events")
	require.NoError(t, b.Notify(context.Background(), ev))
	assert.Equal(t, "events", fake.channel)

	var got cases.Event
	require.NoError(t, json.Unmarshal(fake.payload, &got))
	assert.Equal(t, ev, got)
}

func TestNotify_Error(t *testing.T) {
	fake := &fakePublisher{err: errors.New("connection refused")}
	err := newWithPublisher(fake, "events").Notify(context.Background(), ev)
	assert.ErrorIs(t, err, fake.err)
}

func TestDecode(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	msgs := make(chan *redis.Message, 2)
	payload, _ := json.Marshal(ev)
	msgs <- &redis.Message{Payload: "{not json"}
	msgs <- &redis.Message{Payload: string(payload)}

	events, errs := decode(ctx, msgs)
	got := <-events
	assert.Equal(t, ev.CaseID, got.CaseID)
	assert.Error(t, <-errs)

	close(msgs)
	_, ok := <-events
	assert.False(t, ok)
}

func TestSubscribe_Redis(t *testing.T) {
	addr := os.Getenv("TEST_REDIS_ADDR")
	if addr == "" {
		t.Skip("TEST_REDIS_ADDR not set")
	}
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	b := New(addr, "", 0, "dhportal:test_events")
	defer b.Close()

	events, _, err := b.Subscribe(ctx)
	require.NoError(t, err)
	require.NoError(t, b.Notify(ctx, ev))
	select {
	case got := <-events:
		assert.Equal(t, ev.Type, got.Type)
	case <-ctx.Done():
		t.Fatal("no event received")
	}
}
