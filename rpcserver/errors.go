package rpcserver

import (
	"google.golang.org/grpc/codes"
	"google.golang.org/grpc/status"

	"github.com/bicycledb/bicycledb/bicerr"
)

// toStatus maps a bicerr.Kind to the grpc.Code a client expects (§7).
func toStatus(err error) error {
	if err == nil {
		return nil
	}
	var code codes.Code
	switch bicerr.KindOf(err) {
	case bicerr.InvalidArgument:
		code = codes.InvalidArgument
	case bicerr.NotFound:
		code = codes.NotFound
	case bicerr.DecodeError:
		code = codes.InvalidArgument
	case bicerr.CompileError:
		code = codes.FailedPrecondition
	case bicerr.GuestTrap:
		code = codes.Aborted
	case bicerr.EngineError, bicerr.IoError:
		code = codes.Internal
	default:
		code = codes.Unknown
	}
	return status.Error(code, err.Error())
}
