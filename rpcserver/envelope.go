package rpcserver

import (
	"github.com/vmihailenco/msgpack/v5"

	"github.com/bicycledb/bicycledb/bicerr"
	"github.com/bicycledb/bicycledb/query"
)

// dataOp identifies which DataFacade operation an inbound dataEnvelope
// requests; the single Invoke RPC dispatches on it instead of relying on
// per-op generated methods (§6).
type dataOp string

const (
	opGet      dataOp = "get"
	opDelete   dataOp = "delete"
	opPut      dataOp = "put"
	opBatchPut dataOp = "batch_put"
)

// dataEnvelope is the msgpack payload carried inside a DataService
// wrapperspb.BytesValue request.
type dataEnvelope struct {
	Model   string           `msgpack:"model"`
	Op      dataOp           `msgpack:"op"`
	Query   query.IndexQuery `msgpack:"query,omitempty"`
	Record  []byte           `msgpack:"record,omitempty"`
	Records [][]byte         `msgpack:"records,omitempty"`
}

func decodeDataEnvelope(data []byte) (dataEnvelope, error) {
	var env dataEnvelope
	if err := msgpack.Unmarshal(data, &env); err != nil {
		return dataEnvelope{}, bicerr.Wrap(bicerr.DecodeError, err, "decode data envelope")
	}
	return env, nil
}

func encodeRawRecords(recs [][]byte) ([]byte, error) {
	b, err := msgpack.Marshal(recs)
	if err != nil {
		return nil, bicerr.Wrap(bicerr.DecodeError, err, "encode record list")
	}
	return b, nil
}

// biplaneOp identifies which BiplaneFacade operation an inbound
// biplaneEnvelope requests.
type biplaneOp string

const (
	opDeploy       biplaneOp = "deploy"
	opRemove       biplaneOp = "remove"
	opList         biplaneOp = "list"
	opInvokeOneOff biplaneOp = "invoke_one_off"
	opInvokeStored biplaneOp = "invoke_stored"
)

// biplaneEnvelope is the msgpack payload carried inside a BiplaneService
// wrapperspb.BytesValue request.
type biplaneEnvelope struct {
	Op        biplaneOp `msgpack:"op"`
	Name      string    `msgpack:"name,omitempty"`
	WasmBytes []byte    `msgpack:"wasm_bytes,omitempty"`
	Args      []byte    `msgpack:"args,omitempty"` // marshaled structval.Value, or nil
}

// biplaneReply is the msgpack payload carried inside a BiplaneService reply.
type biplaneReply struct {
	Names  []string `msgpack:"names,omitempty"`
	Result []byte   `msgpack:"result,omitempty"` // marshaled structval.Value
}

func decodeBiplaneEnvelope(data []byte) (biplaneEnvelope, error) {
	var env biplaneEnvelope
	if err := msgpack.Unmarshal(data, &env); err != nil {
		return biplaneEnvelope{}, bicerr.Wrap(bicerr.DecodeError, err, "decode biplane envelope")
	}
	return env, nil
}

func encodeBiplaneReply(reply biplaneReply) ([]byte, error) {
	b, err := msgpack.Marshal(reply)
	if err != nil {
		return nil, bicerr.Wrap(bicerr.DecodeError, err, "encode biplane reply")
	}
	return b, nil
}
