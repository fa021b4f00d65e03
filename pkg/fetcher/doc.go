// Package fetcher is the media fetcher: it applies the preview policy,
// consults the dedup engine, and streams a descriptor to disk through a
// temporary file, delegating HLS locators to the stream assembler.
package fetcher
