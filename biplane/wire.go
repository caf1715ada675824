package biplane

import (
	"github.com/vmihailenco/msgpack/v5"

	"github.com/bicycledb/bicycledb/bicerr"
	"github.com/bicycledb/bicycledb/query"
)

// decodeMsgpackIndexQuery decodes the wire-encoded IndexQuery a guest passes
// to host_get_<M>_by_pk / host_delete_<M>_by_pk.
func decodeMsgpackIndexQuery(data []byte) (query.IndexQuery, error) {
	var q query.IndexQuery
	if err := msgpack.Unmarshal(data, &q); err != nil {
		return query.IndexQuery{}, bicerr.Wrap(bicerr.DecodeError, err, "decode index query")
	}
	return q, nil
}

// encodeMsgpackRawList encodes a list of already-record-encoded byte
// strings as the reply to host_get_<M>_by_pk.
func encodeMsgpackRawList(raws [][]byte) ([]byte, error) {
	b, err := msgpack.Marshal(raws)
	if err != nil {
		return nil, bicerr.Wrap(bicerr.DecodeError, err, "encode record list")
	}
	return b, nil
}

// decodeMsgpackRawList decodes the guest-supplied list of record-encoded
// byte strings passed to host_batch_put_<M>.
func decodeMsgpackRawList(data []byte, out *[][]byte) error {
	if err := msgpack.Unmarshal(data, out); err != nil {
		return bicerr.Wrap(bicerr.DecodeError, err, "decode record list")
	}
	return nil
}
