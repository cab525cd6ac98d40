package queue

import (
	"context"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	"github.com/redis/go-redis/v9"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func receive(t *testing.T, ch <-chan Message) Message {
	t.Helper()
	select {
	case msg := <-ch:
		return msg
	case <-time.After(3 * time.Second):
		t.Fatal("timed out waiting for message")
		return Message{}
	}
}

func TestInMemoryRoundTrip(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	q := NewInMemory(4)
	require.NoError(t, q.Publish(ctx, Message{Type: "daily_log.discarded", Body: []byte(`{"a":1}`)}))

	ch, err := q.Consume(ctx)
	require.NoError(t, err)
	msg := receive(t, ch)
	assert.Equal(t, "daily_log.discarded", msg.Type)
	assert.JSONEq(t, `{"a":1}`, string(msg.Body))

	cancel()
	_, open := <-ch
	assert.False(t, open)
}

func TestRedisQueueRoundTrip(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	mr := miniredis.RunT(t)
	client := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	t.Cleanup(func() { _ = client.Close() })

	q := NewRedisQueue(client, "test:queue")
	require.NoError(t, q.Publish(ctx, Message{Type: "daily_log.discarded", Body: []byte("a|b")}))

	ch, err := q.Consume(ctx)
	require.NoError(t, err)
	msg := receive(t, ch)
	assert.Equal(t, "daily_log.discarded", msg.Type)
	assert.Equal(t, "a|b", string(msg.Body), "only the first separator splits")
}

func TestDeserializeWithoutType(t *testing.T) {
	assert.Equal(t, Message{Body: []byte("plain")}, deserialize("plain"))
}

func TestDiscard(t *testing.T) {
	var q Queue = Discard{}
	assert.NoError(t, q.Publish(context.Background(), Message{Type: "x"}))
	_, err := q.Consume(context.Background())
	assert.Error(t, err)
}
