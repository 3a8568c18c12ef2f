package ratelimit

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestLimiterWaitDelaysSecondRequest(t *testing.T) {
	t.Parallel()

	l := New(Config{RPS: 10, Burst: 1})
	ctx := context.Background()
	target := "https://example.com/foo"

	require.NoError(t, l.Wait(ctx, target))
	start := time.Now()
	require.NoError(t, l.Wait(ctx, target))
	assert.GreaterOrEqual(t, time.Since(start), 50*time.Millisecond)
}

func TestLimiterBucketsPerHost(t *testing.T) {
	t.Parallel()

	l := New(Config{RPS: 1, Burst: 1})
	ctx := context.Background()

	require.NoError(t, l.Wait(ctx, "https://a.example.com/x"))
	start := time.Now()
	require.NoError(t, l.Wait(ctx, "https://b.example.com/x"))
	assert.Less(t, time.Since(start), 500*time.Millisecond)
	assert.Equal(t, 2, l.Hosts())

	require.NoError(t, l.Wait(ctx, "::not a url"))
	assert.Equal(t, 3, l.Hosts())
}

func TestLimiterDisabled(t *testing.T) {
	t.Parallel()

	l := New(Config{})
	ctx := context.Background()
	start := time.Now()
	for range 100 {
		require.NoError(t, l.Wait(ctx, "https://example.com"))
	}
	assert.Less(t, time.Since(start), 500*time.Millisecond)
}

func TestLimiterWaitCanceled(t *testing.T) {
	t.Parallel()

	l := New(Config{RPS: 0.1, Burst: 1})
	require.NoError(t, l.Wait(context.Background(), "https://example.com"))

	ctx, cancel := context.WithTimeout(context.Background(), 20*time.Millisecond)
	defer cancel()
	err := l.Wait(ctx, "https://example.com")
	require.Error(t, err)
	assert.ErrorContains(t, err, "rate limit wait")
}
