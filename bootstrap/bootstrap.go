package bootstrap

import (
	"context"
	"net"
	"os"
	"os/signal"
	"path/filepath"
	"sync"
	"syscall"

	"go.uber.org/automaxprocs/maxprocs"
	"google.golang.org/grpc"
	"google.golang.org/grpc/reflection"

	"github.com/bicycledb/bicycledb/bicerr"
	"github.com/bicycledb/bicycledb/biplane"
	"github.com/bicycledb/bicycledb/config"
	"github.com/bicycledb/bicycledb/crud"
	"github.com/bicycledb/bicycledb/engine"
	"github.com/bicycledb/bicycledb/facade"
	"github.com/bicycledb/bicycledb/logger"
	pkgzap "github.com/bicycledb/bicycledb/logger/zap"
	"github.com/bicycledb/bicycledb/metrics"
	"github.com/bicycledb/bicycledb/procedure"
	"github.com/bicycledb/bicycledb/rpcserver"
)

var (
	initialized bool
	mu          sync.Mutex

	eng            engine.Engine
	store          *crud.Store
	biplaneRuntime *biplane.Runtime
	registry       *procedure.Registry
	dataFacade     facade.DataFacade
	biplaneFacade  facade.BiplaneFacade
	grpcServer     *grpc.Server
	listener       net.Listener
)

// Bootstrap wires every BicycleDB subsystem in dependency order: config and
// logging first, then the key-value engine, the Biplane runtime (which
// doubles as the procedure registry's compiler), the procedure registry
// itself, the typed-CRUD and Biplane facades, and finally the gRPC server
// that exposes them. Safe to call more than once; only the first call does
// work.
func Bootstrap() error {
	_, _ = maxprocs.Set(maxprocs.Logger(pkgzap.New("").Infof))

	mu.Lock()
	defer mu.Unlock()
	if initialized {
		return nil
	}

	Register(
		config.Init,
		pkgzap.Init,
		metrics.Init,

		openEngine,
		openBiplaneRuntime,
		openProcedureRegistry,
		openFacades,
		openGRPCServer,
	)
	if err := Init(); err != nil {
		return err
	}

	RegisterCleanup(config.Clean)
	RegisterCleanup(pkgzap.Clean)
	RegisterCleanup(closeEngine)
	RegisterCleanup(closeBiplaneRuntime)
	RegisterCleanup(closeProcedureRegistry)
	RegisterCleanup(stopGRPCServer)

	initialized = true
	return nil
}

// Run starts serving gRPC and blocks until a termination signal arrives or
// the server exits with an error. Exit code semantics belong to the caller:
// a nil return means clean shutdown, a non-nil return means startup or
// serve failure.
func Run() error {
	defer Cleanup()

	RegisterGo(serveGRPC)

	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, syscall.SIGINT, syscall.SIGTERM, syscall.SIGQUIT)
	errCh := make(chan error, 1)

	go func() {
		errCh <- Go()
	}()

	select {
	case sig := <-sigCh:
		logger.Runtime.Infow("canceled by signal", "signal", sig)
		return nil
	case err := <-errCh:
		return err
	}
}

func dataDir() string {
	dir := config.App.Engine.DataDir
	if filepath.IsAbs(dir) {
		return dir
	}
	return filepath.Join(config.App.AppInfo.Dir, dir)
}

func procedureDir() string {
	dir := config.App.Biplane.ProcedureDir
	if filepath.IsAbs(dir) {
		return dir
	}
	return filepath.Join(config.App.AppInfo.Dir, dir)
}

func openEngine() error {
	var err error
	switch config.App.Engine.Kind {
	case config.EngineBadger:
		eng, err = engine.OpenBadger(engine.BadgerOptions{Dir: dataDir()})
	case config.EngineSQL:
		dir := dataDir()
		if err = os.MkdirAll(dir, 0o755); err != nil {
			return bicerr.Wrap(bicerr.IoError, err, "create sql engine data directory")
		}
		eng, err = engine.OpenSQL(engine.SQLOptions{Path: filepath.Join(dir, "bicycledb.db")})
	case config.EngineMem:
		eng = engine.NewMemEngine()
	default:
		return bicerr.New(bicerr.InvalidArgument, "unknown engine kind %q", config.App.Engine.Kind)
	}
	if err != nil {
		return err
	}
	store = crud.NewStore(eng)
	logger.Runtime.Infow("engine opened", "kind", config.App.Engine.Kind, "dir", dataDir())
	return nil
}

func closeEngine() {
	if eng == nil {
		return
	}
	if err := eng.Close(); err != nil {
		logger.Runtime.Errorw("close engine failed", "error", err)
	}
}

func openBiplaneRuntime() error {
	var err error
	biplaneRuntime, err = biplane.New(context.Background(), store, config.App.Biplane.Budget)
	return err
}

func closeBiplaneRuntime() {
	if biplaneRuntime == nil {
		return
	}
	if err := biplaneRuntime.Close(context.Background()); err != nil {
		logger.Runtime.Errorw("close biplane runtime failed", "error", err)
	}
}

func openProcedureRegistry() error {
	var err error
	registry, err = procedure.Open(context.Background(), procedureDir(), biplaneRuntime)
	if err != nil {
		return err
	}
	logger.Runtime.Infow("procedure registry opened", "dir", procedureDir(), "count", len(registry.List()))
	return nil
}

func closeProcedureRegistry() {
	if registry == nil {
		return
	}
	if err := registry.Close(context.Background()); err != nil {
		logger.Runtime.Errorw("close procedure registry failed", "error", err)
	}
}

func openFacades() error {
	var err error
	dataFacade, err = facade.NewDataFacade(store, config.App.Server.DataPoolSize)
	if err != nil {
		return err
	}
	biplaneFacade, err = facade.NewBiplaneFacade(registry, biplaneRuntime, config.App.Server.BiplanePoolSize)
	return err
}

func openGRPCServer() error {
	grpcServer = grpc.NewServer()
	rpcserver.Register(grpcServer, dataFacade, biplaneFacade)
	reflection.Register(grpcServer)

	var err error
	listener, err = net.Listen("tcp", config.App.Server.Listen)
	if err != nil {
		return bicerr.Wrap(bicerr.IoError, err, "listen on "+config.App.Server.Listen)
	}
	return nil
}

func stopGRPCServer() {
	if grpcServer != nil {
		grpcServer.GracefulStop()
	}
}

func serveGRPC() error {
	logger.Runtime.Infow("grpc server listening", "addr", config.App.Server.Listen)
	if err := grpcServer.Serve(listener); err != nil {
		return bicerr.Wrap(bicerr.IoError, err, "grpc serve")
	}
	return nil
}
