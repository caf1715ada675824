// Package keyspace implements the "M#pk" convention layered over an
// engine.Engine: each typed record of model M with primary key pk is
// stored at key M#pk, making range and prefix queries over a single
// model safe without column families.
package keyspace

import (
	"bytes"
	"strings"
	"unicode/utf8"

	"github.com/bicycledb/bicycledb/bicerr"
)

// Delimiter separates the model name from the primary key in an engine key.
const Delimiter = '#'

// ValidModelName reports whether name is a stable non-empty identifier of
// ASCII letters, digits, and underscores.
func ValidModelName(name string) bool {
	if len(name) == 0 {
		return false
	}
	for _, r := range name {
		switch {
		case r >= 'a' && r <= 'z':
		case r >= 'A' && r <= 'Z':
		case r >= '0' && r <= '9':
		case r == '_':
		default:
			return false
		}
	}
	return true
}

// ValidPK reports whether pk is a non-empty UTF-8 string containing no '#'
// byte.
func ValidPK(pk string) bool {
	if len(pk) == 0 || !utf8.ValidString(pk) {
		return false
	}
	return !strings.ContainsRune(pk, Delimiter)
}

// Key builds the storage key "model#pk". Callers must validate model and pk
// first; Key does not re-validate.
func Key(model, pk string) []byte {
	buf := make([]byte, 0, len(model)+1+len(pk))
	buf = append(buf, model...)
	buf = append(buf, Delimiter)
	buf = append(buf, pk...)
	return buf
}

// Prefix builds the "model#" prefix shared by every key belonging to model.
func Prefix(model string) []byte {
	buf := make([]byte, 0, len(model)+1)
	buf = append(buf, model...)
	buf = append(buf, Delimiter)
	return buf
}

// Split decodes a storage key back into its model and pk parts. Returns an
// error if key does not contain the delimiter.
func Split(key []byte) (model, pk string, err error) {
	idx := bytes.IndexByte(key, Delimiter)
	if idx < 0 {
		return "", "", bicerr.New(bicerr.DecodeError, "key %q missing model delimiter", key)
	}
	return string(key[:idx]), string(key[idx+1:]), nil
}

// InModel reports whether key belongs to model's keyspace, i.e. starts with
// "model#". Scans use this to stop at the first out-of-model-prefix key.
func InModel(key []byte, model string) bool {
	return bytes.HasPrefix(key, Prefix(model))
}

// HasPrefix reports whether key's pk portion starts with pkPrefix, for
// BeginsWith(v) scans: the full engine-key prefix is model#pkPrefix.
func HasPrefix(key []byte, model, pkPrefix string) bool {
	return bytes.HasPrefix(key, Key(model, pkPrefix))
}

// Validate checks both the model name and pk, returning InvalidArgument on
// the first violation found.
func Validate(model, pk string) error {
	if !ValidModelName(model) {
		return bicerr.New(bicerr.InvalidArgument, "invalid model name %q", model)
	}
	if !ValidPK(pk) {
		return bicerr.New(bicerr.InvalidArgument, "invalid primary key %q", pk)
	}
	return nil
}
