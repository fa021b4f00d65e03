// Package ratelimit paces outbound traffic.
//
// TokenBucket caps API requests per minute. Pacer inserts a random pause
// between consecutive operations: 2-4 seconds between API pages and
// 400-750 milliseconds between media downloads.
package ratelimit
