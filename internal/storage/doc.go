// Package storage abstracts the ordered key-value engine a ring persists
// into: point reads and writes plus atomic multi-key batches.
package storage
