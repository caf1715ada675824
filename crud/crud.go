// Package crud implements the typed-CRUD layer of §4.2: per-model
// get-by-pk, delete-by-pk, put, and batch-put, translating an IndexQuery
// over the model keyspace and decoding/encoding records through a
// modelreg.Descriptor.
package crud

import (
	"context"
	"time"

	"github.com/bicycledb/bicycledb/bicerr"
	"github.com/bicycledb/bicycledb/engine"
	"github.com/bicycledb/bicycledb/keyspace"
	"github.com/bicycledb/bicycledb/logger"
	"github.com/bicycledb/bicycledb/metrics"
	"github.com/bicycledb/bicycledb/modelreg"
	"github.com/bicycledb/bicycledb/query"
)

// observe records op's outcome and latency against the engine metrics and
// logs it through the engine subsystem logger.
func observe(op string, start time.Time, err error) {
	outcome := "ok"
	if err != nil {
		outcome = "error"
	}
	metrics.EngineOpsTotal.WithLabelValues(op, outcome).Inc()
	metrics.EngineOpDuration.WithLabelValues(op).Observe(time.Since(start).Seconds())
	if err != nil {
		logger.Engine.Debugw("engine op failed", "op", op, "error", err)
	} else {
		logger.Engine.Debugw("engine op ok", "op", op, "duration", time.Since(start).String())
	}
}

// Store binds an Engine to the typed-CRUD operations. One Store is shared
// by every model; the model name travels in each call.
type Store struct {
	eng engine.Engine
}

// NewStore wraps eng in the typed-CRUD layer.
func NewStore(eng engine.Engine) *Store {
	return &Store{eng: eng}
}

// Put upserts a single record under model, keyed by rec.PK().
func (s *Store) Put(ctx context.Context, model string, rec modelreg.Model) error {
	start := time.Now()
	desc, err := modelreg.MustLookup(model)
	if err == nil {
		err = s.put(ctx, desc, rec)
	}
	observe("put", start, err)
	return err
}

func (s *Store) put(ctx context.Context, desc *modelreg.Descriptor, rec modelreg.Model) error {
	pk := rec.PK()
	if err := keyspace.Validate(desc.Name, pk); err != nil {
		return err
	}
	value, err := desc.Encode(rec)
	if err != nil {
		return err
	}
	if err := s.eng.Put(ctx, keyspace.Key(desc.Name, pk), value); err != nil {
		return err
	}
	return nil
}

// BatchPut upserts every record in recs as a single atomic write batch. If
// any record fails validation or encoding the whole batch is rejected
// before any engine write happens.
func (s *Store) BatchPut(ctx context.Context, model string, recs []modelreg.Model) error {
	start := time.Now()
	err := s.batchPut(ctx, model, recs)
	observe("batch_put", start, err)
	return err
}

func (s *Store) batchPut(ctx context.Context, model string, recs []modelreg.Model) error {
	desc, err := modelreg.MustLookup(model)
	if err != nil {
		return err
	}

	ops := make([]engine.WriteOp, 0, len(recs))
	for _, rec := range recs {
		pk := rec.PK()
		if err := keyspace.Validate(desc.Name, pk); err != nil {
			return err
		}
		value, err := desc.Encode(rec)
		if err != nil {
			return err
		}
		ops = append(ops, engine.WriteOp{Key: keyspace.Key(desc.Name, pk), Value: value})
	}
	if err := s.eng.WriteBatch(ctx, ops); err != nil {
		return err
	}
	return nil
}

// GetByPK evaluates q against model and returns the matching records,
// decoded, in key order (ascending for Gte/BeginsWith, descending for Lte).
func (s *Store) GetByPK(ctx context.Context, model string, q query.IndexQuery) ([]modelreg.Model, error) {
	start := time.Now()
	out, err := s.getByPK(ctx, model, q)
	observe("get_by_pk", start, err)
	return out, err
}

func (s *Store) getByPK(ctx context.Context, model string, q query.IndexQuery) ([]modelreg.Model, error) {
	desc, err := modelreg.MustLookup(model)
	if err != nil {
		return nil, err
	}
	if err := q.Validate(); err != nil {
		return nil, err
	}

	switch q.Op {
	case query.OpEq:
		value, found, err := s.eng.Get(ctx, keyspace.Key(desc.Name, q.Value))
		if err != nil {
			return nil, err
		}
		if !found {
			return []modelreg.Model{}, nil
		}
		rec, err := desc.Decode(value)
		if err != nil {
			return nil, err
		}
		return []modelreg.Model{rec}, nil

	case query.OpGte:
		return s.scan(ctx, desc, q.Value, engine.Forward, nil)

	case query.OpLte:
		return s.scan(ctx, desc, q.Value, engine.Reverse, nil)

	case query.OpBeginsWith:
		return s.scan(ctx, desc, q.Value, engine.Forward, &q.Value)

	default:
		return nil, bicerr.New(bicerr.InvalidArgument, "index query carries no expression")
	}
}

// scan walks the engine from keyspace.Key(model, startPK) in dir, decoding
// each record, stopping at the first key that leaves the model's keyspace
// (or, when pkPrefix is set, the first key whose pk stops matching it).
func (s *Store) scan(ctx context.Context, desc *modelreg.Descriptor, startPK string, dir engine.Direction, pkPrefix *string) ([]modelreg.Model, error) {
	it, err := s.eng.IterFrom(ctx, keyspace.Key(desc.Name, startPK), dir)
	if err != nil {
		return nil, err
	}
	defer it.Close() //nolint:errcheck

	out := []modelreg.Model{}
	for it.Next() {
		kv := it.Item()
		if !keyspace.InModel(kv.Key, desc.Name) {
			break
		}
		if pkPrefix != nil && !keyspace.HasPrefix(kv.Key, desc.Name, *pkPrefix) {
			break
		}
		rec, err := desc.Decode(kv.Value)
		if err != nil {
			return nil, err
		}
		out = append(out, rec)
	}
	if err := it.Err(); err != nil {
		return nil, err
	}
	return out, nil
}

// DeleteByPK evaluates q against model and deletes every matching record in
// a single write batch, committed once after the scan completes.
func (s *Store) DeleteByPK(ctx context.Context, model string, q query.IndexQuery) error {
	start := time.Now()
	err := s.deleteByPK(ctx, model, q)
	observe("delete_by_pk", start, err)
	return err
}

func (s *Store) deleteByPK(ctx context.Context, model string, q query.IndexQuery) error {
	desc, err := modelreg.MustLookup(model)
	if err != nil {
		return err
	}
	if err := q.Validate(); err != nil {
		return err
	}

	if q.Op == query.OpEq {
		return s.eng.Delete(ctx, keyspace.Key(desc.Name, q.Value))
	}

	var dir engine.Direction
	var pkPrefix *string
	switch q.Op {
	case query.OpGte:
		dir = engine.Forward
	case query.OpLte:
		dir = engine.Reverse
	case query.OpBeginsWith:
		dir = engine.Forward
		pkPrefix = &q.Value
	}

	it, err := s.eng.IterFrom(ctx, keyspace.Key(desc.Name, q.Value), dir)
	if err != nil {
		return err
	}
	var keys [][]byte
	for it.Next() {
		kv := it.Item()
		if !keyspace.InModel(kv.Key, desc.Name) {
			break
		}
		if pkPrefix != nil && !keyspace.HasPrefix(kv.Key, desc.Name, *pkPrefix) {
			break
		}
		keys = append(keys, append([]byte(nil), kv.Key...))
	}
	scanErr := it.Err()
	_ = it.Close()
	if scanErr != nil {
		return scanErr
	}

	if len(keys) == 0 {
		return nil
	}
	ops := make([]engine.WriteOp, 0, len(keys))
	for _, k := range keys {
		ops = append(ops, engine.WriteOp{Key: k, Delete: true})
	}
	return s.eng.WriteBatch(ctx, ops)
}
