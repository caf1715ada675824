package biplane

import "github.com/tetratelabs/wazero/api"

// fakeMemory is a hand-written double for api.Memory, sized to the subset
// writeToGuest/readFromGuest actually exercise. Used instead of a real WASM
// module so the host-function and ABI logic can be unit tested without a
// WASM toolchain to produce guest bytecode fixtures.
type fakeMemory struct {
	buf []byte
}

var _ api.Memory = (*fakeMemory)(nil)

func newFakeMemory(size uint32) *fakeMemory {
	return &fakeMemory{buf: make([]byte, size)}
}

func (m *fakeMemory) Size() uint32 { return uint32(len(m.buf)) }

func (m *fakeMemory) Grow(deltaPages uint32) (uint32, bool) {
	prevPages := uint32(len(m.buf)) / 65536
	m.buf = append(m.buf, make([]byte, deltaPages*65536)...)
	return prevPages, true
}

func (m *fakeMemory) inBounds(offset, length uint32) bool {
	end := uint64(offset) + uint64(length)
	return end <= uint64(len(m.buf))
}

func (m *fakeMemory) ReadByte(offset uint32) (byte, bool) {
	if !m.inBounds(offset, 1) {
		return 0, false
	}
	return m.buf[offset], true
}

func (m *fakeMemory) ReadUint16Le(offset uint32) (uint16, bool) {
	if !m.inBounds(offset, 2) {
		return 0, false
	}
	return uint16(m.buf[offset]) | uint16(m.buf[offset+1])<<8, true
}

func (m *fakeMemory) ReadUint32Le(offset uint32) (uint32, bool) {
	if !m.inBounds(offset, 4) {
		return 0, false
	}
	v := uint32(0)
	for i := 0; i < 4; i++ {
		v |= uint32(m.buf[offset+uint32(i)]) << (8 * i)
	}
	return v, true
}

func (m *fakeMemory) ReadUint64Le(offset uint32) (uint64, bool) {
	if !m.inBounds(offset, 8) {
		return 0, false
	}
	v := uint64(0)
	for i := 0; i < 8; i++ {
		v |= uint64(m.buf[offset+uint32(i)]) << (8 * i)
	}
	return v, true
}

func (m *fakeMemory) ReadFloat32Le(offset uint32) (float32, bool) {
	return 0, false
}

func (m *fakeMemory) ReadFloat64Le(offset uint32) (float64, bool) {
	return 0, false
}

func (m *fakeMemory) Read(offset, byteCount uint32) ([]byte, bool) {
	if !m.inBounds(offset, byteCount) {
		return nil, false
	}
	out := make([]byte, byteCount)
	copy(out, m.buf[offset:offset+byteCount])
	return out, true
}

func (m *fakeMemory) WriteByte(offset uint32, v byte) bool {
	if !m.inBounds(offset, 1) {
		return false
	}
	m.buf[offset] = v
	return true
}

func (m *fakeMemory) WriteUint16Le(offset uint32, v uint16) bool {
	if !m.inBounds(offset, 2) {
		return false
	}
	m.buf[offset] = byte(v)
	m.buf[offset+1] = byte(v >> 8)
	return true
}

func (m *fakeMemory) WriteUint32Le(offset uint32, v uint32) bool {
	if !m.inBounds(offset, 4) {
		return false
	}
	for i := 0; i < 4; i++ {
		m.buf[offset+uint32(i)] = byte(v >> (8 * i))
	}
	return true
}

func (m *fakeMemory) WriteUint64Le(offset uint32, v uint64) bool {
	if !m.inBounds(offset, 8) {
		return false
	}
	for i := 0; i < 8; i++ {
		m.buf[offset+uint32(i)] = byte(v >> (8 * i))
	}
	return true
}

func (m *fakeMemory) WriteFloat32Le(offset uint32, v float32) bool { return false }
func (m *fakeMemory) WriteFloat64Le(offset uint32, v float64) bool { return false }

func (m *fakeMemory) Write(offset uint32, v []byte) bool {
	if !m.inBounds(offset, uint32(len(v))) {
		return false
	}
	copy(m.buf[offset:], v)
	return true
}

func (m *fakeMemory) WriteString(offset uint32, v string) bool {
	return m.Write(offset, []byte(v))
}

func (m *fakeMemory) Definition() api.MemoryDefinition { return nil }

// fakeAllocator is a bump allocator standing in for a guest's exported
// alloc function, handing out monotonically increasing offsets into a
// fakeMemory.
type fakeAllocator struct {
	mem  *fakeMemory
	next uint32
}

func (a *fakeAllocator) alloc(length uint32) (uint32, bool) {
	if !a.mem.inBounds(a.next, length) {
		return 0, false
	}
	ptr := a.next
	a.next += length
	return ptr, true
}
