// Package checkpoint stores resume points for interrupted downloads.
//
// A checkpoint holds the last cursor whose page was completely processed for
// one creator and one source (timeline, messages). A resumed run starts
// traversal from that cursor; the checkpoint is removed once the source has
// been walked to the end.
//
// Files live in the platform data directory:
//   - Linux: ~/.local/share/fanslydl/checkpoints/ (or $XDG_DATA_HOME)
//   - macOS: ~/Library/Application Support/fanslydl/checkpoints/
//   - Windows: %APPDATA%/fanslydl/checkpoints/
package checkpoint
