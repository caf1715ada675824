package biplane

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/vmihailenco/msgpack/v5"
	"google.golang.org/protobuf/types/known/structpb"

	"github.com/bicycledb/bicycledb/bicerr"
	"github.com/bicycledb/bicycledb/crud"
	"github.com/bicycledb/bicycledb/engine"
	"github.com/bicycledb/bicycledb/modelreg"
	"github.com/bicycledb/bicycledb/query"
	"github.com/bicycledb/bicycledb/structval"
)

type testDog struct {
	Pk   string `msgpack:"pk"`
	Name string `msgpack:"name"`
}

func (d *testDog) PK() string { return d.Pk }

func newTestInvocation(t *testing.T) (*invocation, *modelreg.Descriptor) {
	t.Helper()
	desc := modelreg.Register[*testDog]("BiplaneTestDog")
	store := crud.NewStore(engine.NewMemEngine())
	return &invocation{store: store}, desc
}

// Invariant 10: no-output default.
func TestOutputSlotDefaultsToUnset(t *testing.T) {
	inv := &invocation{}
	assert.False(t, inv.output.set)
}

// Invariant 7 (Biplane I/O, at the host-function level): set then "read
// back" through host_get_input's own encoding contract round-trips bytes
// unchanged, including embedded NULs.
func TestHostGetInputRoundTrip(t *testing.T) {
	inv := &invocation{}
	payload, err := structval.Marshal(mustStringValue("hi\x00there"))
	require.NoError(t, err)
	inv.input = payload

	mem := newFakeMemory(1024)
	alloc := (&fakeAllocator{mem: mem}).alloc

	packed := inv.hostGetInput(mem, alloc)
	require.NotZero(t, packed)
	ptr, length := unpackPtrLen(packed)
	data, ok := mem.Read(ptr, length)
	require.True(t, ok)
	assert.Equal(t, payload, data)
}

func TestHostGetInputNoInputReturnsZero(t *testing.T) {
	inv := &invocation{}
	mem := newFakeMemory(64)
	alloc := (&fakeAllocator{mem: mem}).alloc
	assert.Zero(t, inv.hostGetInput(mem, alloc))
}

func TestHostSetOutputStoresAndOverwrites(t *testing.T) {
	inv := &invocation{}
	mem := newFakeMemory(1024)

	first, err := structval.Marshal(mustStringValue("first"))
	require.NoError(t, err)
	require.True(t, mem.Write(0, first))
	assert.Equal(t, uint32(1), inv.hostSetOutput(mem, 0, uint32(len(first))))
	assert.Equal(t, first, inv.output.value)

	second, err := structval.Marshal(mustStringValue("second"))
	require.NoError(t, err)
	require.True(t, mem.Write(100, second))
	assert.Equal(t, uint32(1), inv.hostSetOutput(mem, 100, uint32(len(second))))
	assert.Equal(t, second, inv.output.value)
}

func TestHostSetOutputDecodeFailureReturnsZero(t *testing.T) {
	inv := &invocation{}
	mem := newFakeMemory(64)
	require.True(t, mem.Write(0, []byte{0xff, 0xff, 0xff}))
	assert.Zero(t, inv.hostSetOutput(mem, 0, 3))
	assert.False(t, inv.output.set)
}

func TestHostSetOutputOutOfBoundsReturnsZero(t *testing.T) {
	inv := &invocation{}
	mem := newFakeMemory(4)
	assert.Zero(t, inv.hostSetOutput(mem, 0, 100))
}

// Invariant 8: host callbacks equivalence — driving host_put_<M> and
// host_get_<M>_by_pk through the ABI produces the same engine state as
// calling the typed-CRUD store directly with the same arguments.
func TestHostPutAndGetByPKEquivalence(t *testing.T) {
	ctx := context.Background()
	inv, desc := newTestInvocation(t)
	mem := newFakeMemory(4096)
	alloc := (&fakeAllocator{mem: mem}).alloc

	rec, err := desc.Encode(&testDog{Pk: "a1", Name: "Sam"})
	require.NoError(t, err)
	require.True(t, mem.Write(0, rec))

	status, err := inv.hostPut(ctx, desc, mem, 0, uint32(len(rec)))
	require.NoError(t, err)
	assert.Equal(t, uint32(1), status)

	direct, err := inv.store.GetByPK(ctx, desc.Name, query.Eq("a1"))
	require.NoError(t, err)
	require.Len(t, direct, 1)

	q, err := decodeMsgpackIndexQuery(mustEncodeQuery(t, query.Eq("a1")))
	require.NoError(t, err)
	assert.Equal(t, query.Eq("a1"), q)

	qBytes := mustEncodeQuery(t, query.Eq("a1"))
	require.True(t, mem.Write(1000, qBytes))
	packed, err := inv.hostGetByPK(ctx, desc, mem, alloc, 1000, uint32(len(qBytes)))
	require.NoError(t, err)
	require.NotZero(t, packed)

	ptr, length := unpackPtrLen(packed)
	replyBytes, ok := mem.Read(ptr, length)
	require.True(t, ok)
	var raws [][]byte
	require.NoError(t, decodeMsgpackRawList(replyBytes, &raws))
	require.Len(t, raws, 1)
	got, err := desc.Decode(raws[0])
	require.NoError(t, err)
	assert.Equal(t, direct[0], got)
}

func TestHostDeleteByPK(t *testing.T) {
	ctx := context.Background()
	inv, desc := newTestInvocation(t)
	mem := newFakeMemory(4096)

	require.NoError(t, inv.store.Put(ctx, desc.Name, &testDog{Pk: "a1"}))

	qBytes := mustEncodeQuery(t, query.Eq("a1"))
	require.True(t, mem.Write(0, qBytes))
	status, err := inv.hostDeleteByPK(ctx, desc, mem, 0, uint32(len(qBytes)))
	require.NoError(t, err)
	assert.Equal(t, uint32(1), status)

	recs, err := inv.store.GetByPK(ctx, desc.Name, query.Eq("a1"))
	require.NoError(t, err)
	assert.Empty(t, recs)
}

func TestHostBatchPut(t *testing.T) {
	ctx := context.Background()
	inv, desc := newTestInvocation(t)
	mem := newFakeMemory(4096)

	rec1, err := desc.Encode(&testDog{Pk: "a1"})
	require.NoError(t, err)
	rec2, err := desc.Encode(&testDog{Pk: "a2"})
	require.NoError(t, err)
	listBytes, err := encodeMsgpackRawList([][]byte{rec1, rec2})
	require.NoError(t, err)
	require.True(t, mem.Write(0, listBytes))

	status, err := inv.hostBatchPut(ctx, desc, mem, 0, uint32(len(listBytes)))
	require.NoError(t, err)
	assert.Equal(t, uint32(1), status)

	recs, err := inv.store.GetByPK(ctx, desc.Name, query.BeginsWith("a"))
	require.NoError(t, err)
	assert.Len(t, recs, 2)
}

// S5, at the host-function level: a guest that calls host_get_Dog_by_pk
// with BeginsWith(v) sees the same pks the typed-CRUD layer would return.
func TestHostGetByPKBeginsWith(t *testing.T) {
	ctx := context.Background()
	inv, desc := newTestInvocation(t)
	mem := newFakeMemory(4096)
	alloc := (&fakeAllocator{mem: mem}).alloc

	for _, pk := range []string{"a1", "a2", "b1"} {
		require.NoError(t, inv.store.Put(ctx, desc.Name, &testDog{Pk: pk}))
	}

	qBytes := mustEncodeQuery(t, query.BeginsWith("a"))
	require.True(t, mem.Write(0, qBytes))
	packed, err := inv.hostGetByPK(ctx, desc, mem, alloc, 0, uint32(len(qBytes)))
	require.NoError(t, err)
	ptr, length := unpackPtrLen(packed)
	replyBytes, ok := mem.Read(ptr, length)
	require.True(t, ok)

	var raws [][]byte
	require.NoError(t, decodeMsgpackRawList(replyBytes, &raws))
	require.Len(t, raws, 2)
	first, err := desc.Decode(raws[0])
	require.NoError(t, err)
	second, err := desc.Decode(raws[1])
	require.NoError(t, err)
	assert.Equal(t, "a1", first.PK())
	assert.Equal(t, "a2", second.PK())
}

func TestHostFuncsOutOfBoundsNeverTrap(t *testing.T) {
	ctx := context.Background()
	inv, desc := newTestInvocation(t)
	mem := newFakeMemory(4)

	_, err := inv.hostPut(ctx, desc, mem, 0, 1000)
	assert.Error(t, err)
	assert.Equal(t, "guest_trap", string(errKind(err)))
}

func mustStringValue(s string) *structval.Value {
	return structpb.NewStringValue(s)
}

func mustEncodeQuery(t *testing.T, q query.IndexQuery) []byte {
	t.Helper()
	b, err := msgpack.Marshal(q)
	require.NoError(t, err)
	return b
}

func errKind(err error) bicerr.Kind {
	return bicerr.KindOf(err)
}
