// Package storage decides where downloads land and writes them safely.
//
// Layout maps a creator, content source and media kind to a directory under
// the download root, rejecting names that would escape it. Manager writes
// through a temporary file that is renamed into place only once complete,
// so an interrupted download never leaves a truncated file under its final name.
// LockCreator keeps two processes out of the same creator tree.
package storage
