package rpcserver

import (
	"context"
	"net"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/vmihailenco/msgpack/v5"
	"google.golang.org/grpc"
	"google.golang.org/grpc/codes"
	"google.golang.org/grpc/credentials/insecure"
	"google.golang.org/grpc/status"
	"google.golang.org/grpc/test/bufconn"
	"google.golang.org/protobuf/types/known/wrapperspb"

	"github.com/bicycledb/bicycledb/crud"
	"github.com/bicycledb/bicycledb/engine"
	"github.com/bicycledb/bicycledb/facade"
	"github.com/bicycledb/bicycledb/modelreg"
	"github.com/bicycledb/bicycledb/query"
)

type rpcTestDog struct {
	Pk   string `msgpack:"pk"`
	Name string `msgpack:"name"`
}

func (d *rpcTestDog) PK() string { return d.Pk }

// dialServer spins up an in-process gRPC server over a bufconn listener and
// returns a client connection to it (server and connection are torn down
// via t.Cleanup), the standard grpc-go pattern for exercising a
// ServiceDesc without a real socket.
func dialServer(t *testing.T, data facade.DataFacade) *grpc.ClientConn {
	t.Helper()
	lis := bufconn.Listen(1024 * 1024)
	srv := grpc.NewServer()
	srv.RegisterService(&DataServiceDesc, &dataServer{facade: data})
	go func() { _ = srv.Serve(lis) }()
	t.Cleanup(srv.Stop)

	conn, err := grpc.NewClient("passthrough:///bufnet",
		grpc.WithContextDialer(func(ctx context.Context, _ string) (net.Conn, error) {
			return lis.DialContext(ctx)
		}),
		grpc.WithTransportCredentials(insecure.NewCredentials()),
	)
	require.NoError(t, err)
	t.Cleanup(func() { _ = conn.Close() })
	return conn
}

func invoke(ctx context.Context, conn *grpc.ClientConn, env dataEnvelope) (*wrapperspb.BytesValue, error) {
	payload, err := msgpack.Marshal(env)
	if err != nil {
		return nil, err
	}
	reply := new(wrapperspb.BytesValue)
	err = conn.Invoke(ctx, "/bicycledb.DataService/Invoke", wrapperspb.Bytes(payload), reply)
	return reply, err
}

func TestDataServicePutAndGet(t *testing.T) {
	ctx := context.Background()
	desc := modelreg.Register[*rpcTestDog]("RPCTestDog")

	store := crud.NewStore(engine.NewMemEngine())
	df, err := facade.NewDataFacade(store, 4)
	require.NoError(t, err)

	conn := dialServer(t, df)

	rec, err := desc.Encode(&rpcTestDog{Pk: "a1", Name: "Rex"})
	require.NoError(t, err)

	_, err = invoke(ctx, conn, dataEnvelope{Model: desc.Name, Op: opPut, Record: rec})
	require.NoError(t, err)

	reply, err := invoke(ctx, conn, dataEnvelope{Model: desc.Name, Op: opGet, Query: query.Eq("a1")})
	require.NoError(t, err)

	var raws [][]byte
	require.NoError(t, msgpack.Unmarshal(reply.GetValue(), &raws))
	require.Len(t, raws, 1)
	got, err := desc.Decode(raws[0])
	require.NoError(t, err)
	assert.Equal(t, "Rex", got.(*rpcTestDog).Name)
}

func TestDataServiceMissingModelIsInvalidArgument(t *testing.T) {
	ctx := context.Background()
	store := crud.NewStore(engine.NewMemEngine())
	df, err := facade.NewDataFacade(store, 4)
	require.NoError(t, err)
	conn := dialServer(t, df)

	_, err = invoke(ctx, conn, dataEnvelope{Op: opGet, Query: query.Eq("a1")})
	require.Error(t, err)
	assert.Equal(t, codes.InvalidArgument, status.Code(err))
}

func TestDataServiceUnknownOp(t *testing.T) {
	ctx := context.Background()
	desc := modelreg.Register[*rpcTestDog]("RPCTestDogUnknownOp")
	store := crud.NewStore(engine.NewMemEngine())
	df, err := facade.NewDataFacade(store, 4)
	require.NoError(t, err)
	conn := dialServer(t, df)

	_, err = invoke(ctx, conn, dataEnvelope{Model: desc.Name, Op: "bogus"})
	require.Error(t, err)
}
