// Package dedup decides whether a media item is already on disk.
//
// Images are compared by perceptual hash within a Hamming threshold, video by
// an MD5 over the MP4 boxes that survive a container rewrite, audio by plain MD5.
// The engine is seeded from the hash fragments embedded in existing file names.
package dedup
