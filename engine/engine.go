// Package engine defines the ordered byte key-value store BicycleDB's
// model keyspace is built on top of, plus three interchangeable
// implementations (badger, an embedded SQL table, and an in-memory btree).
package engine

import (
	"context"

	"github.com/bicycledb/bicycledb/bicerr"
)

// Direction controls the order an iterator walks keys in.
type Direction int

const (
	// Forward walks keys in ascending lexicographic order.
	Forward Direction = iota
	// Reverse walks keys in descending lexicographic order.
	Reverse
)

// KV is a single key-value pair surfaced by an iterator.
type KV struct {
	Key   []byte
	Value []byte
}

// WriteOp is one operation inside a WriteBatch: a Delete of Key when Delete
// is true (Value is ignored), otherwise a Put of Key to Value.
type WriteOp struct {
	Key    []byte
	Value  []byte
	Delete bool
}

// Iterator is a finite, non-restartable, forward- or backward-moving
// cursor over (key,value) pairs. Callers must call Close exactly once.
type Iterator interface {
	// Next advances the cursor. Returns false when exhausted or on error;
	// callers must check Err after a false return.
	Next() bool
	// Item returns the pair the cursor currently rests on. Only valid
	// after a Next call that returned true.
	Item() KV
	// Err returns the first error encountered, if any.
	Err() error
	// Close releases resources held by the iterator.
	Close() error
}

// Engine is a single-node ordered key-value store: point put/get/delete,
// an atomic batch, and bidirectional iteration from a starting key.
// Keys and values are opaque byte sequences; keys compare lexicographically.
// Implementations must be safe for concurrent use by multiple goroutines.
type Engine interface {
	// Put upserts key to value. Fails with bicerr.EngineError.
	Put(ctx context.Context, key, value []byte) error
	// Get performs an exact lookup. found is false when the key is absent;
	// that is not an error.
	Get(ctx context.Context, key []byte) (value []byte, found bool, err error)
	// Delete removes key. Idempotent: deleting an absent key succeeds.
	Delete(ctx context.Context, key []byte) error
	// WriteBatch applies every op atomically: all or nothing.
	WriteBatch(ctx context.Context, ops []WriteOp) error
	// IterFrom returns a lazy cursor starting at key (inclusive if present)
	// and moving in dir. The returned Iterator must be Closed by the caller.
	IterFrom(ctx context.Context, key []byte, dir Direction) (Iterator, error)
	// Close releases resources (file handles, connections) held by the engine.
	Close() error
}

// ErrEngine wraps cause as a bicerr.EngineError with a contextual message.
func ErrEngine(cause error, msg string) error {
	return bicerr.Wrap(bicerr.EngineError, cause, msg)
}
