package dedup

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/require"
)

func TestKey(t *testing.T) {
	require.Equal(t, "conv-1:msg-1", Key("conv-1", "msg-1"))
}

func TestMemoryLedger_FirstDeliveryOnly(t *testing.T) {
	l := NewMemoryLedger(time.Minute)
	ctx := context.Background()

	first, err := l.MarkProcessed(ctx, "conv-1:msg-1")
	require.NoError(t, err)
	require.True(t, first)

	again, err := l.MarkProcessed(ctx, "conv-1:msg-1")
	require.NoError(t, err)
	require.False(t, again)

	other, err := l.MarkProcessed(ctx, "conv-1:msg-2")
	require.NoError(t, err)
	require.True(t, other)
}

func TestMemoryLedger_ExpiresAfterTTL(t *testing.T) {
	now := time.Date(2024, 1, 1, 0, 0, 0, 0, time.UTC)
	l := NewMemoryLedger(time.Minute)
	l.now = func() time.Time { return now }

	first, err := l.MarkProcessed(context.Background(), "k")
	require.NoError(t, err)
	require.True(t, first)

	now = now.Add(2 * time.Minute)
	first, err = l.MarkProcessed(context.Background(), "k")
	require.NoError(t, err)
	require.True(t, first)
	require.Len(t, l.seen, 1)
}

func TestNewMemoryLedger_DefaultTTL(t *testing.T) {
	require.Equal(t, DefaultTTL, NewMemoryLedger(0).ttl)
}
