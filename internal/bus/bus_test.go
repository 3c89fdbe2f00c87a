package bus

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestNewBusFallsBackToNull(t *testing.T) {
	// No URL configured.
	b := NewBus("", nil)
	_, ok := b.(*NullBus)
	assert.True(t, ok)

	// Unparseable URL.
	b = NewBus("not a url", nil)
	_, ok = b.(*NullBus)
	assert.True(t, ok)

	// Valid URL but no Redis listening.
	b = NewBus("redis://127.0.0.1:1/0", nil)
	_, ok = b.(*NullBus)
	assert.True(t, ok)
}

func TestNullBusSubscribeBlocksUntilCancel(t *testing.T) {
	b := NewNullBus(nil)
	ctx, cancel := context.WithCancel(context.Background())

	done := make(chan error, 1)
	go func() {
		done <- b.Subscribe(ctx, 1, func(PushMessage) {
			t.Error("null bus must never deliver a message")
		})
	}()

	select {
	case <-done:
		t.Fatal("Subscribe returned before cancellation")
	case <-time.After(50 * time.Millisecond):
	}

	cancel()
	select {
	case err := <-done:
		assert.ErrorIs(t, err, context.Canceled)
	case <-time.After(time.Second):
		t.Fatal("Subscribe did not return after cancellation")
	}

	require.NoError(t, b.HealthCheck(context.Background()))
	require.NoError(t, b.Close())
}

func TestChannelForUser(t *testing.T) {
	assert.Equal(t, "notify:user:42", channelForUser(42))
}
