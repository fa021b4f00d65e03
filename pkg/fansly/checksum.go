package fansly

import (
	"math/rand"
	"strconv"
	"time"
)

// Cyrb53 is the 53-bit string hash the platform uses to verify requests.
// All arithmetic wraps at 32 bits.
func Cyrb53(s string, seed uint32) uint64 {
	h1 := uint32(0xdeadbeef) ^ seed
	h2 := uint32(0x41c6ce57) ^ seed

	for _, r := range s {
		h1 = (h1 ^ uint32(r)) * 2654435761
		h2 = (h2 ^ uint32(r)) * 1597334677
	}

	h1 = (h1 ^ (h1 >> 16)) * 2246822507
	h1 ^= (h2 ^ (h2 >> 13)) * 3266489909
	h2 = (h2 ^ (h2 >> 16)) * 2246822507
	h2 ^= (h1 ^ (h1 >> 13)) * 3266489909

	return uint64(h2&0x1FFFFF)<<32 | uint64(h1)
}

// CheckHash returns the fansly-client-check value for a request path
func CheckHash(checkKey, urlPath, deviceID string) string {
	return strconv.FormatUint(Cyrb53(checkKey+"_"+urlPath+"_"+deviceID, 0), 16)
}

// clientTimestamp returns now in milliseconds plus 5000-10000 ms of jitter
func clientTimestamp(now time.Time, rng *rand.Rand) int64 {
	return now.UnixMilli() + 5000 + rng.Int63n(5001)
}
