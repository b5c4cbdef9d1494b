// Package indexer turns scan snapshots into persisted archive state. The
// reconciler applies one snapshot inside a single store transaction; the
// coordinator serializes runs and coalesces overlapping triggers.
package indexer
