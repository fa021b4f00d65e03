// Package scraper orchestrates a download run.
//
// Creators are processed sequentially. For each one the Scraper resolves the
// account, takes the creator directory lock, seeds the dedup engine from the
// files already on disk and then walks the sources selected by the download
// mode (timeline and messages in normal mode), handing every descriptor to
// the fetcher. A failing creator is recorded in the run statistics and the
// run moves on to the next one.
package scraper
