package fansly

import (
	"math/rand"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
)

func TestCyrb53KnownValues(t *testing.T) {
	tests := []struct {
		input string
		want  uint64
	}{
		{"a", 7929297801672961},
		{"b", 8684336938537663},
		{"revenge", 4051478007546757},
		{"", 3338908027751811},
	}

	for _, tt := range tests {
		t.Run(tt.input, func(t *testing.T) {
			assert.Equal(t, tt.want, Cyrb53(tt.input, 0))
		})
	}
}

func TestCyrb53FitsIn53Bits(t *testing.T) {
	for _, s := range []string{"a", "hello world", "x_/api/v1/group_123"} {
		assert.Less(t, Cyrb53(s, 0), uint64(1)<<53)
	}
}

func TestCheckHash(t *testing.T) {
	got := CheckHash("key", "/api/v1/account/me", "dev")
	assert.Equal(t, "189517f0c22424", got)
	assert.Equal(t, got, CheckHash("key", "/api/v1/account/me", "dev"))
	assert.NotEqual(t, got, CheckHash("key", "/api/v1/group", "dev"))
}

func TestClientTimestampJitter(t *testing.T) {
	now := time.UnixMilli(1_700_000_000_000)
	rng := rand.New(rand.NewSource(1))
	for i := 0; i < 100; i++ {
		ts := clientTimestamp(now, rng)
		assert.GreaterOrEqual(t, ts, now.UnixMilli()+5000)
		assert.LessOrEqual(t, ts, now.UnixMilli()+10000)
	}
}
