// Package rpcserver exposes facade.DataFacade and facade.BiplaneFacade over
// gRPC. Because the real schema-to-service generator that would emit one
// RPC method per model is out of scope, each service is collapsed to a
// single generic method that takes and returns a
// google.golang.org/protobuf well-known wrapperspb.BytesValue; the payload
// is a msgpack-encoded envelope carrying the model name, operation, and
// arguments (§6).
package rpcserver

import (
	"context"
	"time"

	"google.golang.org/grpc"
	"google.golang.org/grpc/status"
	"google.golang.org/protobuf/types/known/wrapperspb"

	"github.com/bicycledb/bicycledb/bicerr"
	"github.com/bicycledb/bicycledb/facade"
	"github.com/bicycledb/bicycledb/logger"
	"github.com/bicycledb/bicycledb/metrics"
	"github.com/bicycledb/bicycledb/structval"
)

// instrument times fn, then records its outcome against RPCRequestsTotal/
// RPCRequestDuration and logs it through the rpc subsystem logger.
func instrument(service, method string, fn func() (*wrapperspb.BytesValue, error)) (*wrapperspb.BytesValue, error) {
	start := time.Now()
	out, err := fn()

	code := status.Code(err)
	metrics.RPCRequestsTotal.WithLabelValues(service, method, code.String()).Inc()
	metrics.RPCRequestDuration.WithLabelValues(service, method).Observe(time.Since(start).Seconds())
	if err != nil {
		logger.RPC.Debugw("rpc failed", "service", service, "method", method, "code", code.String(), "error", err)
	} else {
		logger.RPC.Debugw("rpc ok", "service", service, "method", method, "duration", time.Since(start).String())
	}
	return out, err
}

// dataServer implements the DataService handler over a facade.DataFacade.
type dataServer struct {
	facade facade.DataFacade
}

func (s *dataServer) Invoke(ctx context.Context, req *wrapperspb.BytesValue) (*wrapperspb.BytesValue, error) {
	return instrument("DataService", "Invoke", func() (*wrapperspb.BytesValue, error) {
		return s.invoke(ctx, req)
	})
}

func (s *dataServer) invoke(ctx context.Context, req *wrapperspb.BytesValue) (*wrapperspb.BytesValue, error) {
	env, err := decodeDataEnvelope(req.GetValue())
	if err != nil {
		return nil, toStatus(err)
	}

	switch env.Op {
	case opGet:
		recs, err := s.facade.GetByPK(ctx, env.Model, env.Query)
		if err != nil {
			return nil, toStatus(err)
		}
		raws := make([][]byte, 0, len(recs))
		for _, r := range recs {
			raws = append(raws, r)
		}
		out, err := encodeRawRecords(raws)
		if err != nil {
			return nil, toStatus(err)
		}
		return wrapperspb.Bytes(out), nil

	case opDelete:
		if err := s.facade.DeleteByPK(ctx, env.Model, env.Query); err != nil {
			return nil, toStatus(err)
		}
		return wrapperspb.Bytes(nil), nil

	case opPut:
		if err := s.facade.Put(ctx, env.Model, facade.RawRecord(env.Record)); err != nil {
			return nil, toStatus(err)
		}
		return wrapperspb.Bytes(nil), nil

	case opBatchPut:
		raws := make([]facade.RawRecord, 0, len(env.Records))
		for _, r := range env.Records {
			raws = append(raws, facade.RawRecord(r))
		}
		if err := s.facade.BatchPut(ctx, env.Model, raws); err != nil {
			return nil, toStatus(err)
		}
		return wrapperspb.Bytes(nil), nil

	default:
		return nil, toStatus(badOp(string(env.Op)))
	}
}

// biplaneServer implements the BiplaneService handler over a
// facade.BiplaneFacade.
type biplaneServer struct {
	facade facade.BiplaneFacade
}

func (s *biplaneServer) Invoke(ctx context.Context, req *wrapperspb.BytesValue) (*wrapperspb.BytesValue, error) {
	return instrument("BiplaneService", "Invoke", func() (*wrapperspb.BytesValue, error) {
		return s.invoke(ctx, req)
	})
}

func (s *biplaneServer) invoke(ctx context.Context, req *wrapperspb.BytesValue) (*wrapperspb.BytesValue, error) {
	env, err := decodeBiplaneEnvelope(req.GetValue())
	if err != nil {
		return nil, toStatus(err)
	}

	switch env.Op {
	case opDeploy:
		if err := s.facade.Deploy(ctx, env.Name, env.WasmBytes); err != nil {
			return nil, toStatus(err)
		}
		return wrapperspb.Bytes(nil), nil

	case opRemove:
		if err := s.facade.Remove(ctx, env.Name); err != nil {
			return nil, toStatus(err)
		}
		return wrapperspb.Bytes(nil), nil

	case opList:
		names, err := s.facade.List(ctx)
		if err != nil {
			return nil, toStatus(err)
		}
		out, err := encodeBiplaneReply(biplaneReply{Names: names})
		if err != nil {
			return nil, toStatus(err)
		}
		return wrapperspb.Bytes(out), nil

	case opInvokeOneOff, opInvokeStored:
		var args *structval.Value
		if len(env.Args) > 0 {
			args, err = structval.Unmarshal(env.Args)
			if err != nil {
				return nil, toStatus(err)
			}
		}
		var result *structval.Value
		if env.Op == opInvokeOneOff {
			result, err = s.facade.InvokeOneOff(ctx, env.WasmBytes, args)
		} else {
			result, err = s.facade.InvokeStored(ctx, env.Name, args)
		}
		if err != nil {
			return nil, toStatus(err)
		}
		resultBytes, err := structval.Marshal(result)
		if err != nil {
			return nil, toStatus(err)
		}
		out, err := encodeBiplaneReply(biplaneReply{Result: resultBytes})
		if err != nil {
			return nil, toStatus(err)
		}
		return wrapperspb.Bytes(out), nil

	default:
		return nil, toStatus(badOp(string(env.Op)))
	}
}

func badOp(op string) error {
	return bicerr.New(bicerr.InvalidArgument, "unknown op %q", op)
}

// invokeHandler adapts a (ctx, *wrapperspb.BytesValue) -> (*wrapperspb.BytesValue, error)
// method into the grpc.MethodDesc calling convention, the piece a real
// protoc-gen-go-grpc invocation would otherwise generate.
func invokeHandler(invoke func(context.Context, *wrapperspb.BytesValue) (*wrapperspb.BytesValue, error)) func(interface{}, context.Context, func(interface{}) error, grpc.UnaryServerInterceptor) (interface{}, error) {
	return func(srv interface{}, ctx context.Context, dec func(interface{}) error, interceptor grpc.UnaryServerInterceptor) (interface{}, error) {
		in := new(wrapperspb.BytesValue)
		if err := dec(in); err != nil {
			return nil, err
		}
		if interceptor == nil {
			return invoke(ctx, in)
		}
		info := &grpc.UnaryServerInfo{Server: srv, FullMethod: "/bicycledb.DataService/Invoke"}
		handler := func(ctx context.Context, req interface{}) (interface{}, error) {
			return invoke(ctx, req.(*wrapperspb.BytesValue))
		}
		return interceptor(ctx, in, info, handler)
	}
}

// DataServiceDesc is the hand-wired ServiceDesc for the single-RPC
// DataService described in §6.
var DataServiceDesc = grpc.ServiceDesc{
	ServiceName: "bicycledb.DataService",
	HandlerType: (*dataServer)(nil),
	Methods: []grpc.MethodDesc{
		{
			MethodName: "Invoke",
			Handler: func(srv interface{}, ctx context.Context, dec func(interface{}) error, interceptor grpc.UnaryServerInterceptor) (interface{}, error) {
				return invokeHandler(srv.(*dataServer).Invoke)(srv, ctx, dec, interceptor)
			},
		},
	},
	Metadata: "bicycledb/data.proto",
}

// BiplaneServiceDesc is the hand-wired ServiceDesc for the single-RPC
// BiplaneService described in §6.
var BiplaneServiceDesc = grpc.ServiceDesc{
	ServiceName: "bicycledb.BiplaneService",
	HandlerType: (*biplaneServer)(nil),
	Methods: []grpc.MethodDesc{
		{
			MethodName: "Invoke",
			Handler: func(srv interface{}, ctx context.Context, dec func(interface{}) error, interceptor grpc.UnaryServerInterceptor) (interface{}, error) {
				return invokeHandler(srv.(*biplaneServer).Invoke)(srv, ctx, dec, interceptor)
			},
		},
	},
	Metadata: "bicycledb/biplane.proto",
}

// Register attaches both services to grpcServer.
func Register(grpcServer *grpc.Server, data facade.DataFacade, biplane facade.BiplaneFacade) {
	grpcServer.RegisterService(&DataServiceDesc, &dataServer{facade: data})
	grpcServer.RegisterService(&BiplaneServiceDesc, &biplaneServer{facade: biplane})
	logger.RPC.Debugw("registered rpc services", "services", []string{DataServiceDesc.ServiceName, BiplaneServiceDesc.ServiceName})
}
