package ratelimiter

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestNew(t *testing.T) {
	tests := []struct {
		name      string
		rps       uint
		burst     uint
		unlimited bool
	}{
		{name: "standard rate", rps: 100, burst: 200},
		{name: "zero burst defaults to rate", rps: 5, burst: 0},
		{name: "unlimited", rps: 0, burst: 0, unlimited: true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			l := New(tt.rps, tt.burst)
			require.NotNil(t, l)
			assert.Equal(t, tt.unlimited, l.Unlimited())
		})
	}
}

func TestAllowExhaustsBurst(t *testing.T) {
	l := New(10, 3)

	for i := 0; i < 3; i++ {
		require.True(t, l.Allow(), "request %d within burst", i)
	}
	assert.False(t, l.Allow(), "bucket should be empty")
}

func TestZeroBurstUsesRate(t *testing.T) {
	l := New(4, 0)

	for i := 0; i < 4; i++ {
		require.True(t, l.Allow())
	}
	assert.False(t, l.Allow())
}

func TestWaitCancelled(t *testing.T) {
	l := New(1, 1)
	require.True(t, l.Allow())

	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Millisecond)
	defer cancel()

	assert.Error(t, l.Wait(ctx))
}

func TestUnlimitedNeverBlocks(t *testing.T) {
	l := New(0, 0)
	ctx := context.Background()

	for i := 0; i < 1000; i++ {
		require.True(t, l.Allow())
		require.NoError(t, l.Wait(ctx))
	}
}

func BenchmarkAllow(b *testing.B) {
	l := New(1_000_000, 1_000_000)

	b.ResetTimer()
	for i := 0; i < b.N; i++ {
		l.Allow()
	}
}
