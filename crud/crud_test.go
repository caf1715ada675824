package crud

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/bicycledb/bicycledb/bicerr"
	"github.com/bicycledb/bicycledb/engine"
	"github.com/bicycledb/bicycledb/modelreg"
	"github.com/bicycledb/bicycledb/query"
)

type dog struct {
	Pk    string `msgpack:"pk"`
	Name  string `msgpack:"name"`
	Age   int    `msgpack:"age"`
	Breed string `msgpack:"breed"`
}

func (d *dog) PK() string { return d.Pk }

type cat struct {
	Pk   string `msgpack:"pk"`
	Name string `msgpack:"name"`
}

func (c *cat) PK() string { return c.Pk }

func setup(t *testing.T) *Store {
	t.Helper()
	modelreg.Register[*dog]("Dog")
	modelreg.Register[*cat]("Cat")
	return NewStore(engine.NewMemEngine())
}

func mustModels(t *testing.T, recs []modelreg.Model) []*dog {
	t.Helper()
	out := make([]*dog, len(recs))
	for i, r := range recs {
		d, ok := r.(*dog)
		require.True(t, ok)
		out[i] = d
	}
	return out
}

// Invariant 1: round-trip.
func TestRoundTrip(t *testing.T) {
	s := setup(t)
	ctx := context.Background()
	require.NoError(t, s.Put(ctx, "Dog", &dog{Pk: "4", Name: "Sam", Age: 6, Breed: "Labrador"}))

	recs, err := s.GetByPK(ctx, "Dog", query.Eq("4"))
	require.NoError(t, err)
	got := mustModels(t, recs)
	require.Len(t, got, 1)
	assert.Equal(t, &dog{Pk: "4", Name: "Sam", Age: 6, Breed: "Labrador"}, got[0])
}

// Invariant 2 / S3: namespace isolation, range stops at model boundary.
func TestNamespaceIsolation(t *testing.T) {
	s := setup(t)
	ctx := context.Background()
	require.NoError(t, s.Put(ctx, "Dog", &dog{Pk: "z"}))
	require.NoError(t, s.Put(ctx, "Cat", &cat{Pk: "a"}))

	recs, err := s.GetByPK(ctx, "Dog", query.Gte(""))
	require.NoError(t, err)
	got := mustModels(t, recs)
	require.Len(t, got, 1)
	assert.Equal(t, "z", got[0].Pk)
}

// Invariant 3: delete idempotence.
func TestDeleteIdempotence(t *testing.T) {
	s := setup(t)
	ctx := context.Background()
	require.NoError(t, s.Put(ctx, "Dog", &dog{Pk: "4", Name: "Sam"}))

	require.NoError(t, s.DeleteByPK(ctx, "Dog", query.Eq("4")))
	require.NoError(t, s.DeleteByPK(ctx, "Dog", query.Eq("4")))

	recs, err := s.GetByPK(ctx, "Dog", query.Eq("4"))
	require.NoError(t, err)
	assert.Empty(t, recs)
}

// Invariant 4 / S2: BeginsWith subset, ordered ascending.
func TestBeginsWithSubset(t *testing.T) {
	s := setup(t)
	ctx := context.Background()
	for _, pk := range []string{"a1", "a2", "b1"} {
		require.NoError(t, s.Put(ctx, "Dog", &dog{Pk: pk}))
	}

	recs, err := s.GetByPK(ctx, "Dog", query.BeginsWith("a"))
	require.NoError(t, err)
	got := mustModels(t, recs)
	require.Len(t, got, 2)
	assert.Equal(t, "a1", got[0].Pk)
	assert.Equal(t, "a2", got[1].Pk)
}

// Invariant 5: range closure (Gte ∪ Lte = all; Gte ∩ Lte = {pk==v}).
func TestRangeClosure(t *testing.T) {
	s := setup(t)
	ctx := context.Background()
	for _, pk := range []string{"a1", "a2", "b1"} {
		require.NoError(t, s.Put(ctx, "Dog", &dog{Pk: pk}))
	}

	gte, err := s.GetByPK(ctx, "Dog", query.Gte("a2"))
	require.NoError(t, err)
	lte, err := s.GetByPK(ctx, "Dog", query.Lte("a2"))
	require.NoError(t, err)

	union := map[string]bool{}
	for _, r := range gte {
		union[r.PK()] = true
	}
	for _, r := range lte {
		union[r.PK()] = true
	}
	assert.Equal(t, map[string]bool{"a1": true, "a2": true, "b1": true}, union)

	intersection := map[string]bool{}
	for _, r := range gte {
		for _, r2 := range lte {
			if r.PK() == r2.PK() {
				intersection[r.PK()] = true
			}
		}
	}
	assert.Equal(t, map[string]bool{"a2": true}, intersection)
}

// Invariant 6: batch atomicity — a failing batch leaves no record visible.
func TestBatchAtomicity(t *testing.T) {
	s := setup(t)
	ctx := context.Background()

	err := s.BatchPut(ctx, "Dog", []modelreg.Model{
		&dog{Pk: "ok1"},
		&dog{Pk: ""}, // invalid pk: rejected before any engine write
		&dog{Pk: "ok2"},
	})
	require.Error(t, err)

	recs, err := s.GetByPK(ctx, "Dog", query.Gte(""))
	require.NoError(t, err)
	assert.Empty(t, recs)
}

func TestEmptyResultIsNotError(t *testing.T) {
	s := setup(t)
	ctx := context.Background()
	recs, err := s.GetByPK(ctx, "Dog", query.Eq("nope"))
	require.NoError(t, err)
	assert.Empty(t, recs)
}

func TestZeroValueQueryIsInvalidArgument(t *testing.T) {
	s := setup(t)
	ctx := context.Background()
	_, err := s.GetByPK(ctx, "Dog", query.IndexQuery{})
	assert.Error(t, err)
	assert.Equal(t, bicerr.InvalidArgument, bicerr.KindOf(err))
}

func TestUnregisteredModel(t *testing.T) {
	s := setup(t)
	ctx := context.Background()
	_, err := s.GetByPK(ctx, "NoSuchModel", query.Eq("x"))
	assert.Error(t, err)
}
