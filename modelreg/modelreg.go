// Package modelreg is the vtable realization of §9's "generated per-model
// operations" note: since the schema-to-service code generator is out of
// scope, a registered model is an ordinary tagged Go struct plus a
// Register[M] call, mirroring the teacher's model.Register[M types.Model]()
// pattern but keyed off an explicit (encode, decode, name) descriptor
// instead of gorm table metadata.
package modelreg

import (
	"reflect"
	"sort"
	"sync"

	"github.com/vmihailenco/msgpack/v5"

	"github.com/bicycledb/bicycledb/bicerr"
	"github.com/bicycledb/bicycledb/keyspace"
)

// Model is the minimum shape a registered record type must satisfy: it must
// know its own primary key.
type Model interface {
	// PK returns the record's primary key. Must be non-empty and contain
	// no '#' byte.
	PK() string
}

// Descriptor is the per-model vtable entry: name plus encode/decode/zero
// closures built once at Register time via reflection, so callers never
// hand-write per-model marshalling code.
type Descriptor struct {
	Name string

	// Encode marshals a Model value (concrete type M) to wire bytes.
	Encode func(m Model) ([]byte, error)
	// Decode unmarshals wire bytes into a fresh Model value of type M.
	Decode func(data []byte) (Model, error)
	// New returns a fresh zero value of type M.
	New func() Model
}

var (
	mu       sync.RWMutex
	registry = make(map[string]*Descriptor)
)

// Register associates name with the Go type M, deriving an msgpack-based
// Descriptor via reflection. Call once per model, typically from an init()
// function, mirroring the teacher's "always call in init()" convention.
//
// M must be a pointer to a struct implementing Model.
func Register[M Model](name string) *Descriptor {
	mu.Lock()
	defer mu.Unlock()

	if !keyspace.ValidModelName(name) {
		panic("modelreg: invalid model name " + name)
	}

	typ := reflect.TypeOf(*new(M))
	if typ.Kind() != reflect.Pointer || typ.Elem().Kind() != reflect.Struct {
		panic("modelreg: M must be a pointer to struct")
	}
	elemTyp := typ.Elem()

	desc := &Descriptor{
		Name: name,
		New: func() Model {
			return reflect.New(elemTyp).Interface().(M) //nolint:errcheck
		},
		Encode: func(m Model) ([]byte, error) {
			b, err := msgpack.Marshal(m)
			if err != nil {
				return nil, bicerr.Wrap(bicerr.DecodeError, err, "encode "+name)
			}
			return b, nil
		},
		Decode: func(data []byte) (Model, error) {
			out := reflect.New(elemTyp).Interface().(M) //nolint:errcheck
			if err := msgpack.Unmarshal(data, out); err != nil {
				return nil, bicerr.Wrap(bicerr.DecodeError, err, "decode "+name)
			}
			return out, nil
		},
	}
	registry[name] = desc
	return desc
}

// Lookup returns the descriptor registered under name, or ok=false if none.
func Lookup(name string) (*Descriptor, bool) {
	mu.RLock()
	defer mu.RUnlock()
	d, ok := registry[name]
	return d, ok
}

// MustLookup is Lookup but returns an InvalidArgument error instead of ok=false.
func MustLookup(name string) (*Descriptor, error) {
	d, ok := Lookup(name)
	if !ok {
		return nil, bicerr.New(bicerr.InvalidArgument, "unregistered model %q", name)
	}
	return d, nil
}

// Names returns every registered model name, sorted ascending.
func Names() []string {
	mu.RLock()
	defer mu.RUnlock()
	names := make([]string, 0, len(registry))
	for name := range registry {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}

// reset clears the registry; only used by tests to avoid cross-test
// pollution of the package-level map.
func reset() {
	mu.Lock()
	defer mu.Unlock()
	registry = make(map[string]*Descriptor)
}
