// Package biplane hosts the sandboxed WebAssembly stored-procedure runtime:
// per-invocation compilation/instantiation, the pointer+length ABI, the
// host-function set, and the invocation state machine.
//
// Guest ABI contract (see original_source/shims/ for the prior art this
// documents precisely, since the guest-side client library that would
// normally hide it is out of scope): a guest module must export
//
//	alloc(len: i32) -> i32
//
// which allocates len bytes in the guest's own linear memory and returns a
// pointer valid for the rest of the invocation (no matching free is ever
// called; memory is reclaimed when the instance is dropped), and a default
// entry function of empty signature that communicates exclusively through
// the imported host functions below. Any language that compiles to
// wasm32-wasi and can export those two symbols can author a procedure.
package biplane

import "github.com/tetratelabs/wazero/api"

// packPtrLen packs a 32-bit pointer and 32-bit length into the single i64
// many host functions return: high 32 bits are the pointer, low 32 bits
// are the length. A return value of 0 means "no result / failed".
func packPtrLen(ptr, length uint32) uint64 {
	return uint64(ptr)<<32 | uint64(length)
}

// unpackPtrLen reverses packPtrLen.
func unpackPtrLen(v uint64) (ptr, length uint32) {
	return uint32(v >> 32), uint32(v)
}

// allocFunc allocates length bytes of guest linear memory and returns the
// pointer. Bound to a specific invocation's exported alloc function.
type allocFunc func(length uint32) (ptr uint32, ok bool)

// writeToGuest allocates len(data) bytes via alloc, copies data into mem at
// the returned pointer, and returns the packed pointer/length. Returns
// (0, false) on allocation failure or an out-of-bounds write — callers
// must treat that as the failure sentinel, never trap.
func writeToGuest(mem api.Memory, alloc allocFunc, data []byte) (uint64, bool) {
	if len(data) == 0 {
		return 0, false
	}
	ptr, ok := alloc(uint32(len(data)))
	if !ok {
		return 0, false
	}
	if !mem.Write(ptr, data) {
		return 0, false
	}
	return packPtrLen(ptr, uint32(len(data))), true
}

// readFromGuest reads length bytes from mem at ptr, bounds-checked. ok is
// false on any out-of-bounds access; callers must return the failure
// sentinel instead of trapping.
func readFromGuest(mem api.Memory, ptr, length uint32) (data []byte, ok bool) {
	if length == 0 {
		return nil, true
	}
	return mem.Read(ptr, length)
}
