// Package traversal walks the content sources of a creator page by page.
//
// Each source (timeline, messages, a single post, the purchased collection)
// is a PageSource driver that turns API pages into media descriptors. A
// Walker drives a source to its end, re-requesting empty pages a configured
// number of times and optionally persisting the cursor so an interrupted run
// can resume.
package traversal
