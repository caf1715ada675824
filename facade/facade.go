// Package facade implements the service facade of §4.5: it binds remote
// requests to the typed-CRUD and Biplane operations, translates errors to
// the bicerr taxonomy, refuses requests with missing required fields, and
// never blocks the worker pool on I/O — each call is submitted to a bounded
// goroutine pool (realizing §5's "multi-threaded task executor").
package facade

import (
	"context"

	"github.com/panjf2000/ants/v2"

	"github.com/bicycledb/bicycledb/bicerr"
	"github.com/bicycledb/bicycledb/biplane"
	"github.com/bicycledb/bicycledb/crud"
	"github.com/bicycledb/bicycledb/modelreg"
	"github.com/bicycledb/bicycledb/procedure"
	"github.com/bicycledb/bicycledb/query"
	"github.com/bicycledb/bicycledb/structval"
)

// DataFacade binds §4.2's typed-CRUD operations to the generic per-model
// RPC surface of §6 (get/delete/put/batch_put, model name carried in the
// call rather than baked into a generated method name).
type DataFacade interface {
	GetByPK(ctx context.Context, model string, q query.IndexQuery) ([]RawRecord, error)
	DeleteByPK(ctx context.Context, model string, q query.IndexQuery) error
	Put(ctx context.Context, model string, raw RawRecord) error
	BatchPut(ctx context.Context, model string, raws []RawRecord) error
}

// RawRecord is an already-encoded record value, the shape that crosses the
// facade boundary before a modelreg.Descriptor decodes/encodes it.
type RawRecord []byte

// BiplaneFacade binds §4.3/§4.4's procedure lifecycle and invocation
// operations to the RPC surface of §6.
type BiplaneFacade interface {
	Deploy(ctx context.Context, name string, wasmBytes []byte) error
	Remove(ctx context.Context, name string) error
	List(ctx context.Context) ([]string, error)
	InvokeOneOff(ctx context.Context, wasmBytes []byte, args *structval.Value) (*structval.Value, error)
	InvokeStored(ctx context.Context, name string, args *structval.Value) (*structval.Value, error)
}

// pool bounds facade concurrency; callers submit one task per inbound
// request and block only on that task's own result, never on the pool
// itself serializing unrelated work.
type pool struct {
	p *ants.Pool
}

func newPool(size int) (*pool, error) {
	p, err := ants.NewPool(size, ants.WithNonblocking(false))
	if err != nil {
		return nil, bicerr.Wrap(bicerr.EngineError, err, "create task pool")
	}
	return &pool{p: p}, nil
}

func (p *pool) submit(ctx context.Context, fn func() error) error {
	done := make(chan error, 1)
	if err := p.p.Submit(func() { done <- fn() }); err != nil {
		return bicerr.Wrap(bicerr.EngineError, err, "submit task")
	}
	select {
	case <-ctx.Done():
		return ctx.Err()
	case err := <-done:
		return err
	}
}

func (p *pool) release() { p.p.Release() }

// dataFacade is the concrete DataFacade, implemented over a crud.Store.
type dataFacade struct {
	store *crud.Store
	pool  *pool
}

var _ DataFacade = (*dataFacade)(nil)

// NewDataFacade builds a DataFacade over store, running every call on a
// bounded pool of poolSize goroutines.
func NewDataFacade(store *crud.Store, poolSize int) (DataFacade, error) {
	p, err := newPool(poolSize)
	if err != nil {
		return nil, err
	}
	return &dataFacade{store: store, pool: p}, nil
}

func (f *dataFacade) GetByPK(ctx context.Context, model string, q query.IndexQuery) ([]RawRecord, error) {
	if model == "" {
		return nil, bicerr.New(bicerr.InvalidArgument, "model is required")
	}
	var out []RawRecord
	err := f.pool.submit(ctx, func() error {
		desc, err := modelreg.MustLookup(model)
		if err != nil {
			return err
		}
		recs, err := f.store.GetByPK(ctx, model, q)
		if err != nil {
			return err
		}
		out = make([]RawRecord, 0, len(recs))
		for _, rec := range recs {
			raw, err := desc.Encode(rec)
			if err != nil {
				return err
			}
			out = append(out, raw)
		}
		return nil
	})
	return out, err
}

func (f *dataFacade) DeleteByPK(ctx context.Context, model string, q query.IndexQuery) error {
	if model == "" {
		return bicerr.New(bicerr.InvalidArgument, "model is required")
	}
	return f.pool.submit(ctx, func() error {
		return f.store.DeleteByPK(ctx, model, q)
	})
}

func (f *dataFacade) Put(ctx context.Context, model string, raw RawRecord) error {
	if model == "" || len(raw) == 0 {
		return bicerr.New(bicerr.InvalidArgument, "model and record are required")
	}
	return f.pool.submit(ctx, func() error {
		desc, err := modelreg.MustLookup(model)
		if err != nil {
			return err
		}
		rec, err := desc.Decode(raw)
		if err != nil {
			return err
		}
		return f.store.Put(ctx, model, rec)
	})
}

func (f *dataFacade) BatchPut(ctx context.Context, model string, raws []RawRecord) error {
	if model == "" || len(raws) == 0 {
		return bicerr.New(bicerr.InvalidArgument, "model and records are required")
	}
	return f.pool.submit(ctx, func() error {
		desc, err := modelreg.MustLookup(model)
		if err != nil {
			return err
		}
		recs := make([]modelreg.Model, 0, len(raws))
		for _, raw := range raws {
			rec, err := desc.Decode(raw)
			if err != nil {
				return err
			}
			recs = append(recs, rec)
		}
		return f.store.BatchPut(ctx, model, recs)
	})
}

// biplaneFacade is the concrete BiplaneFacade, implemented over a
// procedure.Registry and a biplane.Runtime.
type biplaneFacade struct {
	registry *procedure.Registry
	runtime  *biplane.Runtime
	pool     *pool
}

var _ BiplaneFacade = (*biplaneFacade)(nil)

// NewBiplaneFacade builds a BiplaneFacade over registry and runtime.
func NewBiplaneFacade(registry *procedure.Registry, runtime *biplane.Runtime, poolSize int) (BiplaneFacade, error) {
	p, err := newPool(poolSize)
	if err != nil {
		return nil, err
	}
	return &biplaneFacade{registry: registry, runtime: runtime, pool: p}, nil
}

func (f *biplaneFacade) Deploy(ctx context.Context, name string, wasmBytes []byte) error {
	if name == "" || len(wasmBytes) == 0 {
		return bicerr.New(bicerr.InvalidArgument, "name and function bytes are required")
	}
	return f.pool.submit(ctx, func() error {
		return f.registry.Deploy(ctx, name, wasmBytes)
	})
}

func (f *biplaneFacade) Remove(ctx context.Context, name string) error {
	if name == "" {
		return bicerr.New(bicerr.InvalidArgument, "name is required")
	}
	return f.pool.submit(ctx, func() error {
		return f.registry.Remove(ctx, name)
	})
}

func (f *biplaneFacade) List(ctx context.Context) ([]string, error) {
	var names []string
	err := f.pool.submit(ctx, func() error {
		names = f.registry.List()
		return nil
	})
	return names, err
}

func (f *biplaneFacade) InvokeOneOff(ctx context.Context, wasmBytes []byte, args *structval.Value) (*structval.Value, error) {
	if len(wasmBytes) == 0 {
		return nil, bicerr.New(bicerr.InvalidArgument, "function bytes are required")
	}
	var out *structval.Value
	err := f.pool.submit(ctx, func() error {
		compiled, err := f.runtime.Compile(ctx, wasmBytes)
		if err != nil {
			return err
		}
		defer compiled.Close(ctx) //nolint:errcheck
		out, _, err = f.runtime.Run(ctx, compiled, args)
		return err
	})
	return out, err
}

func (f *biplaneFacade) InvokeStored(ctx context.Context, name string, args *structval.Value) (*structval.Value, error) {
	if name == "" {
		return nil, bicerr.New(bicerr.InvalidArgument, "name is required")
	}
	var out *structval.Value
	err := f.pool.submit(ctx, func() error {
		compiled, ok := f.registry.Get(name)
		if !ok {
			return bicerr.New(bicerr.NotFound, "procedure %q not found", name)
		}
		var err error
		out, _, err = f.runtime.Run(ctx, compiled, args)
		return err
	})
	return out, err
}
