package engine

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newEngines(t *testing.T) map[string]Engine {
	t.Helper()
	badgerE, err := OpenBadger(BadgerOptions{InMemory: true})
	require.NoError(t, err)
	t.Cleanup(func() { _ = badgerE.Close() })

	sqlE, err := OpenSQL(SQLOptions{Path: ":memory:"})
	require.NoError(t, err)
	t.Cleanup(func() { _ = sqlE.Close() })

	return map[string]Engine{
		"badger": badgerE,
		"sql":    sqlE,
		"mem":    NewMemEngine(),
	}
}

func TestEnginePutGetDelete(t *testing.T) {
	ctx := context.Background()
	for name, e := range newEngines(t) {
		t.Run(name, func(t *testing.T) {
			_, found, err := e.Get(ctx, []byte("missing"))
			require.NoError(t, err)
			assert.False(t, found)

			require.NoError(t, e.Put(ctx, []byte("k1"), []byte("v1")))
			value, found, err := e.Get(ctx, []byte("k1"))
			require.NoError(t, err)
			require.True(t, found)
			assert.Equal(t, []byte("v1"), value)

			require.NoError(t, e.Put(ctx, []byte("k1"), []byte("v2")))
			value, _, err = e.Get(ctx, []byte("k1"))
			require.NoError(t, err)
			assert.Equal(t, []byte("v2"), value)

			require.NoError(t, e.Delete(ctx, []byte("k1")))
			_, found, err = e.Get(ctx, []byte("k1"))
			require.NoError(t, err)
			assert.False(t, found)

			// deleting an absent key is success
			require.NoError(t, e.Delete(ctx, []byte("k1")))
		})
	}
}

func TestEngineWriteBatch(t *testing.T) {
	ctx := context.Background()
	for name, e := range newEngines(t) {
		t.Run(name, func(t *testing.T) {
			require.NoError(t, e.Put(ctx, []byte("existing"), []byte("v0")))
			ops := []WriteOp{
				{Key: []byte("a"), Value: []byte("1")},
				{Key: []byte("b"), Value: []byte("2")},
				{Key: []byte("existing"), Delete: true},
			}
			require.NoError(t, e.WriteBatch(ctx, ops))

			for _, kv := range []struct {
				key, want string
				found     bool
			}{
				{"a", "1", true},
				{"b", "2", true},
				{"existing", "", false},
			} {
				value, found, err := e.Get(ctx, []byte(kv.key))
				require.NoError(t, err)
				assert.Equal(t, kv.found, found)
				if kv.found {
					assert.Equal(t, kv.want, string(value))
				}
			}
		})
	}
}

func TestEngineIterForwardAndReverse(t *testing.T) {
	ctx := context.Background()
	for name, e := range newEngines(t) {
		t.Run(name, func(t *testing.T) {
			keys := []string{"m#a1", "m#a2", "m#b1"}
			for _, k := range keys {
				require.NoError(t, e.Put(ctx, []byte(k), []byte(k)))
			}

			it, err := e.IterFrom(ctx, []byte("m#a1"), Forward)
			require.NoError(t, err)
			var got []string
			for it.Next() {
				got = append(got, string(it.Item().Key))
			}
			require.NoError(t, it.Err())
			require.NoError(t, it.Close())
			assert.Equal(t, keys, got)

			it, err = e.IterFrom(ctx, []byte("m#b1"), Reverse)
			require.NoError(t, err)
			got = nil
			for it.Next() {
				got = append(got, string(it.Item().Key))
			}
			require.NoError(t, it.Err())
			require.NoError(t, it.Close())
			assert.Equal(t, []string{"m#b1", "m#a2", "m#a1"}, got)
		})
	}
}
