// Package hls downloads HLS streams. A master playlist is narrowed to its
// highest bandwidth variant, segments are fetched by a small worker pool into
// a temporary directory, and ffmpeg's concat demuxer joins them in playlist order.
package hls
