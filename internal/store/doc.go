// Package store persists what the board keeps between runs: the game library
// and the evaluation cache. Both are single zstd-compressed files rewritten
// atomically through a temporary file and a rename.
package store
