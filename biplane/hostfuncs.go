package biplane

import (
	"context"

	"github.com/tetratelabs/wazero"
	"github.com/tetratelabs/wazero/api"

	"github.com/bicycledb/bicycledb/bicerr"
	"github.com/bicycledb/bicycledb/crud"
	"github.com/bicycledb/bicycledb/modelreg"
	"github.com/bicycledb/bicycledb/query"
	"github.com/bicycledb/bicycledb/structval"
)

// hostModuleName is the import module name guest code links its host
// functions against. Every generated per-model quartet plus host_get_input/
// host_set_output is exported under this name; a guest's //go:wasmimport
// directives must name it too.
const hostModuleName = "bicycledb"

// invocation carries the state one Biplane call shares with its dynamically
// built host-function set: the Input slot, the Output slot, and
// the typed-CRUD store the generated per-model functions call into. A fresh
// invocation (and a fresh host module built against it) exists for exactly
// one guest instantiation; no instance is ever reused.
type invocation struct {
	store  *crud.Store
	input  []byte // wire-encoded StructuredValue, nil if no input
	output outputSlot
}

// hostGetInput implements host_get_input() -> i64: if an input is present,
// copies it into guest memory via alloc and returns the packed
// pointer/length, else returns 0.
func (inv *invocation) hostGetInput(mem api.Memory, alloc allocFunc) uint64 {
	if len(inv.input) == 0 {
		return 0
	}
	v, ok := writeToGuest(mem, alloc, inv.input)
	if !ok {
		return 0
	}
	return v
}

// hostSetOutput implements host_set_output(ptr, len) -> i32: reads len
// bytes from guest memory, decodes as a StructuredValue (validating the
// bytes, though the slot stores the raw wire bytes), and stores it. Returns
// 1 on success, 0 on decode failure. Subsequent calls overwrite.
func (inv *invocation) hostSetOutput(mem api.Memory, ptr, length uint32) uint32 {
	data, ok := readFromGuest(mem, ptr, length)
	if !ok {
		return 0
	}
	if _, err := structval.Unmarshal(data); err != nil {
		return 0
	}
	inv.output.write(data)
	return 1
}

// hostGetByPK implements host_get_<M>_by_pk(ptr, len) -> i64: decode an
// IndexQuery from guest memory, run crud.GetByPK, wire-encode the resulting
// list of records as a msgpack array of raw encoded records, write it back
// via alloc. Any failure returns 0 (and is logged at debug level by the
// caller, per §7's "host functions... log the underlying cause at debug
// level").
func (inv *invocation) hostGetByPK(ctx context.Context, desc *modelreg.Descriptor, mem api.Memory, alloc allocFunc, ptr, length uint32) (uint64, error) {
	data, ok := readFromGuest(mem, ptr, length)
	if !ok {
		return 0, bicerr.New(bicerr.GuestTrap, "host_get_%s_by_pk: out-of-bounds read", desc.Name)
	}
	q, err := decodeIndexQuery(data)
	if err != nil {
		return 0, err
	}
	recs, err := inv.store.GetByPK(ctx, desc.Name, q)
	if err != nil {
		return 0, err
	}
	encoded, err := encodeRecordList(desc, recs)
	if err != nil {
		return 0, err
	}
	v, ok := writeToGuest(mem, alloc, encoded)
	if !ok {
		return 0, bicerr.New(bicerr.GuestTrap, "host_get_%s_by_pk: guest alloc or write failed", desc.Name)
	}
	return v, nil
}

// hostDeleteByPK implements host_delete_<M>_by_pk(ptr, len) -> i32.
func (inv *invocation) hostDeleteByPK(ctx context.Context, desc *modelreg.Descriptor, mem api.Memory, ptr, length uint32) (uint32, error) {
	data, ok := readFromGuest(mem, ptr, length)
	if !ok {
		return 0, bicerr.New(bicerr.GuestTrap, "host_delete_%s_by_pk: out-of-bounds read", desc.Name)
	}
	q, err := decodeIndexQuery(data)
	if err != nil {
		return 0, err
	}
	if err := inv.store.DeleteByPK(ctx, desc.Name, q); err != nil {
		return 0, err
	}
	return 1, nil
}

// hostPut implements host_put_<M>(ptr, len) -> i32.
func (inv *invocation) hostPut(ctx context.Context, desc *modelreg.Descriptor, mem api.Memory, ptr, length uint32) (uint32, error) {
	data, ok := readFromGuest(mem, ptr, length)
	if !ok {
		return 0, bicerr.New(bicerr.GuestTrap, "host_put_%s: out-of-bounds read", desc.Name)
	}
	rec, err := desc.Decode(data)
	if err != nil {
		return 0, err
	}
	if err := inv.store.Put(ctx, desc.Name, rec); err != nil {
		return 0, err
	}
	return 1, nil
}

// hostBatchPut implements host_batch_put_<M>(ptr, len) -> i32.
func (inv *invocation) hostBatchPut(ctx context.Context, desc *modelreg.Descriptor, mem api.Memory, ptr, length uint32) (uint32, error) {
	data, ok := readFromGuest(mem, ptr, length)
	if !ok {
		return 0, bicerr.New(bicerr.GuestTrap, "host_batch_put_%s: out-of-bounds read", desc.Name)
	}
	var raws [][]byte
	if err := decodeRawList(data, &raws); err != nil {
		return 0, err
	}
	recs := make([]modelreg.Model, 0, len(raws))
	for _, raw := range raws {
		rec, err := desc.Decode(raw)
		if err != nil {
			return 0, err
		}
		recs = append(recs, rec)
	}
	if err := inv.store.BatchPut(ctx, desc.Name, recs); err != nil {
		return 0, err
	}
	return 1, nil
}

// buildHostModule compiles the host module bound to inv: the two
// fixed functions plus one generated quartet per model registered in
// modelreg. Building it fresh per invocation is what lets each invocation
// own an exclusive instance (§4.4: "no instance is ever reused").
func buildHostModule(ctx context.Context, rt wazero.Runtime, inv *invocation, onHostError func(error)) (wazero.CompiledModule, error) {
	builder := rt.NewHostModuleBuilder(hostModuleName)

	builder.NewFunctionBuilder().
		WithFunc(func(ctx context.Context, mod api.Module) uint64 {
			return inv.hostGetInput(mod.Memory(), guestAlloc(ctx, mod))
		}).
		Export("host_get_input")

	builder.NewFunctionBuilder().
		WithFunc(func(ctx context.Context, mod api.Module, ptr, length uint32) uint32 {
			return inv.hostSetOutput(mod.Memory(), ptr, length)
		}).
		Export("host_set_output")

	for _, name := range modelreg.Names() {
		desc, _ := modelreg.Lookup(name) //nolint:errcheck
		registerModelHostFuncs(builder, inv, desc, onHostError)
	}

	return builder.Compile(ctx)
}

func registerModelHostFuncs(builder wazero.HostModuleBuilder, inv *invocation, desc *modelreg.Descriptor, onHostError func(error)) {
	builder.NewFunctionBuilder().
		WithFunc(func(ctx context.Context, mod api.Module, ptr, length uint32) uint64 {
			v, err := inv.hostGetByPK(ctx, desc, mod.Memory(), guestAlloc(ctx, mod), ptr, length)
			if err != nil {
				onHostError(err)
				return 0
			}
			return v
		}).
		Export("host_get_" + desc.Name + "_by_pk")

	builder.NewFunctionBuilder().
		WithFunc(func(ctx context.Context, mod api.Module, ptr, length uint32) uint32 {
			v, err := inv.hostDeleteByPK(ctx, desc, mod.Memory(), ptr, length)
			if err != nil {
				onHostError(err)
				return 0
			}
			return v
		}).
		Export("host_delete_" + desc.Name + "_by_pk")

	builder.NewFunctionBuilder().
		WithFunc(func(ctx context.Context, mod api.Module, ptr, length uint32) uint32 {
			v, err := inv.hostPut(ctx, desc, mod.Memory(), ptr, length)
			if err != nil {
				onHostError(err)
				return 0
			}
			return v
		}).
		Export("host_put_" + desc.Name)

	builder.NewFunctionBuilder().
		WithFunc(func(ctx context.Context, mod api.Module, ptr, length uint32) uint32 {
			v, err := inv.hostBatchPut(ctx, desc, mod.Memory(), ptr, length)
			if err != nil {
				onHostError(err)
				return 0
			}
			return v
		}).
		Export("host_batch_put_" + desc.Name)
}

// guestAlloc adapts a guest module's exported "alloc" function to allocFunc.
func guestAlloc(ctx context.Context, mod api.Module) allocFunc {
	fn := mod.ExportedFunction("alloc")
	return func(length uint32) (uint32, bool) {
		if fn == nil {
			return 0, false
		}
		results, err := fn.Call(ctx, uint64(length))
		if err != nil || len(results) == 0 {
			return 0, false
		}
		return uint32(results[0]), true
	}
}

// decodeIndexQuery and the wire helpers below stand in for generated
// per-model (de)serialization code: they use the same msgpack encoding
// modelreg.Descriptor uses for records, applied to query.IndexQuery and to
// raw record-byte lists.
func decodeIndexQuery(data []byte) (query.IndexQuery, error) {
	return decodeMsgpackIndexQuery(data)
}

func encodeRecordList(desc *modelreg.Descriptor, recs []modelreg.Model) ([]byte, error) {
	raws := make([][]byte, 0, len(recs))
	for _, rec := range recs {
		raw, err := desc.Encode(rec)
		if err != nil {
			return nil, err
		}
		raws = append(raws, raw)
	}
	return encodeMsgpackRawList(raws)
}

func decodeRawList(data []byte, out *[][]byte) error {
	return decodeMsgpackRawList(data, out)
}
