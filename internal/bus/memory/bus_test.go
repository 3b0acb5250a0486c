package memory

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/mcoot/livequiz/internal/bus"
	"github.com/mcoot/livequiz/internal/testutil"
)

func TestPublishDeliversToTopicSubscribers(t *testing.T) {
	b := New(testutil.NopLogger())
	ctx := context.Background()

	var got []string
	_, err := b.Subscribe(ctx, bus.SessionTopic("ABC123"), func(ctx context.Context, payload []byte) {
		got = append(got, string(payload))
	})
	require.NoError(t, err)
	_, err = b.Subscribe(ctx, bus.SessionTopic("OTHER1"), func(ctx context.Context, payload []byte) {
		t.Fatal("unexpected delivery to another topic")
	})
	require.NoError(t, err)

	require.NoError(t, b.Publish(ctx, bus.SessionTopic("ABC123"), []byte("one")))
	require.NoError(t, b.Publish(ctx, bus.SessionTopic("ABC123"), []byte("two")))

	assert.Equal(t, []string{"one", "two"}, got)
}

func TestCloseStopsDelivery(t *testing.T) {
	b := New(testutil.NopLogger())
	ctx := context.Background()
	topic := bus.UserTopic("alice")

	count := 0
	sub, err := b.Subscribe(ctx, topic, func(ctx context.Context, payload []byte) { count++ })
	require.NoError(t, err)
	require.Equal(t, 1, b.SubscriberCount(topic))

	require.NoError(t, sub.Close())
	require.NoError(t, b.Publish(ctx, topic, []byte("ignored")))

	assert.Equal(t, 0, count)
	assert.Equal(t, 0, b.SubscriberCount(topic))
}

func TestPublishWithoutSubscribers(t *testing.T) {
	b := New(testutil.NopLogger())
	assert.NoError(t, b.Publish(context.Background(), bus.CommandsTopic, []byte("{}")))
}
