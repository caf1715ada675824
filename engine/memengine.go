package engine

import (
	"bytes"
	"context"
	"sync"

	"github.com/google/btree"
)

// MemEngine is an in-process Engine backed by an in-memory btree. Used by
// tests and by the "mem" engine kind (config engine.kind = mem).
type MemEngine struct {
	mu   sync.RWMutex
	tree *btree.BTreeG[memItem]
}

var _ Engine = (*MemEngine)(nil)

type memItem struct {
	key   []byte
	value []byte
}

func memLess(a, b memItem) bool { return bytes.Compare(a.key, b.key) < 0 }

// NewMemEngine constructs an empty in-memory Engine.
func NewMemEngine() *MemEngine {
	return &MemEngine{tree: btree.NewG(32, memLess)}
}

func (e *MemEngine) Put(_ context.Context, key, value []byte) error {
	e.mu.Lock()
	defer e.mu.Unlock()
	e.tree.ReplaceOrInsert(memItem{key: clone(key), value: clone(value)})
	return nil
}

func (e *MemEngine) Get(_ context.Context, key []byte) ([]byte, bool, error) {
	e.mu.RLock()
	defer e.mu.RUnlock()
	item, ok := e.tree.Get(memItem{key: key})
	if !ok {
		return nil, false, nil
	}
	return clone(item.value), true, nil
}

func (e *MemEngine) Delete(_ context.Context, key []byte) error {
	e.mu.Lock()
	defer e.mu.Unlock()
	e.tree.Delete(memItem{key: key})
	return nil
}

func (e *MemEngine) WriteBatch(_ context.Context, ops []WriteOp) error {
	e.mu.Lock()
	defer e.mu.Unlock()
	// In-memory apply is inherently atomic from the perspective of other
	// goroutines: the write lock is held for the whole batch.
	for _, op := range ops {
		if op.Delete {
			e.tree.Delete(memItem{key: op.Key})
			continue
		}
		e.tree.ReplaceOrInsert(memItem{key: clone(op.Key), value: clone(op.Value)})
	}
	return nil
}

func (e *MemEngine) IterFrom(_ context.Context, key []byte, dir Direction) (Iterator, error) {
	e.mu.RLock()
	defer e.mu.RUnlock()

	var items []memItem
	if dir == Forward {
		e.tree.AscendGreaterOrEqual(memItem{key: key}, func(it memItem) bool {
			items = append(items, memItem{key: clone(it.key), value: clone(it.value)})
			return true
		})
	} else {
		e.tree.DescendLessOrEqual(memItem{key: key}, func(it memItem) bool {
			items = append(items, memItem{key: clone(it.key), value: clone(it.value)})
			return true
		})
	}
	return &memIterator{items: items, idx: -1}, nil
}

func (e *MemEngine) Close() error { return nil }

type memIterator struct {
	items []memItem
	idx   int
}

func (it *memIterator) Next() bool {
	it.idx++
	return it.idx < len(it.items)
}

func (it *memIterator) Item() KV {
	cur := it.items[it.idx]
	return KV{Key: cur.key, Value: cur.value}
}

func (it *memIterator) Err() error   { return nil }
func (it *memIterator) Close() error { return nil }

func clone(b []byte) []byte {
	if b == nil {
		return nil
	}
	out := make([]byte, len(b))
	copy(out, b)
	return out
}
