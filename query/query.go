// Package query implements IndexQuery, the tagged expression used to select
// records of a model by primary key.
package query

import "github.com/bicycledb/bicycledb/bicerr"

// Op identifies which variant of IndexQuery is set.
type Op int

const (
	// Unset marks a zero-value IndexQuery; always an InvalidArgument.
	Unset Op = iota
	OpEq
	OpGte
	OpLte
	OpBeginsWith
)

// IndexQuery is a tagged expression selecting records of a model by pk:
// exactly one of Eq/Gte/Lte/BeginsWith. Construct with the matching
// constructor function rather than the struct literal.
type IndexQuery struct {
	Op    Op     `msgpack:"op"`
	Value string `msgpack:"value"`
}

// Eq selects the record whose pk == v.
func Eq(v string) IndexQuery { return IndexQuery{Op: OpEq, Value: v} }

// Gte selects records with pk >= v, iterating forward.
func Gte(v string) IndexQuery { return IndexQuery{Op: OpGte, Value: v} }

// Lte selects records with pk <= v, iterating backward.
func Lte(v string) IndexQuery { return IndexQuery{Op: OpLte, Value: v} }

// BeginsWith selects records whose pk starts with v.
func BeginsWith(v string) IndexQuery { return IndexQuery{Op: OpBeginsWith, Value: v} }

// Validate returns InvalidArgument if q carries no expression.
func (q IndexQuery) Validate() error {
	switch q.Op {
	case OpEq, OpGte, OpLte, OpBeginsWith:
		return nil
	default:
		return bicerr.New(bicerr.InvalidArgument, "index query carries no expression")
	}
}
