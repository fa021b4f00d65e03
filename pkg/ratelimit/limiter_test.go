package ratelimit

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestTokenBucket(t *testing.T) {
	tb := NewTokenBucket(3, 100*time.Millisecond)

	for i := 0; i < 3; i++ {
		assert.True(t, tb.Allow(), "token %d", i+1)
	}
	assert.False(t, tb.Allow())

	start := time.Now()
	require.NoError(t, tb.Wait(context.Background()))
	assert.GreaterOrEqual(t, time.Since(start), 50*time.Millisecond)

	tb.Reset()
	assert.True(t, tb.Allow())
}

func TestTokenBucketWaitCancelled(t *testing.T) {
	tb := NewTokenBucket(1, time.Hour)
	require.True(t, tb.Allow())

	ctx, cancel := context.WithTimeout(context.Background(), 20*time.Millisecond)
	defer cancel()
	assert.ErrorIs(t, tb.Wait(ctx), context.DeadlineExceeded)
}

func TestPacerBounds(t *testing.T) {
	p := NewPacer(400*time.Millisecond, 750*time.Millisecond)
	for i := 0; i < 200; i++ {
		d := p.Next()
		assert.GreaterOrEqual(t, d, 400*time.Millisecond)
		assert.LessOrEqual(t, d, 750*time.Millisecond)
	}
}

func TestPacerSkipsFirstWait(t *testing.T) {
	p := NewPacer(time.Second, 2*time.Second)
	var slept []time.Duration
	p.sleep = func(ctx context.Context, d time.Duration) error {
		slept = append(slept, d)
		return nil
	}

	ctx := context.Background()
	require.NoError(t, p.Wait(ctx))
	require.NoError(t, p.Wait(ctx))
	require.NoError(t, p.Wait(ctx))
	assert.Len(t, slept, 2)

	p.Reset()
	require.NoError(t, p.Wait(ctx))
	assert.Len(t, slept, 2)
}

func TestDefaultPacers(t *testing.T) {
	assert.Equal(t, 2*time.Second, PageDelay().Min)
	assert.Equal(t, 4*time.Second, PageDelay().Max)
	assert.Equal(t, 400*time.Millisecond, DownloadDelay().Min)
	assert.Equal(t, 750*time.Millisecond, DownloadDelay().Max)
}
