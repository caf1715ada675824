package biplane

import (
	"context"
	"os"
	"time"

	"github.com/tetratelabs/wazero"
	"github.com/tetratelabs/wazero/imports/wasi_snapshot_preview1"

	"github.com/bicycledb/bicycledb/bicerr"
	"github.com/bicycledb/bicycledb/crud"
	"github.com/bicycledb/bicycledb/logger"
	"github.com/bicycledb/bicycledb/metrics"
	"github.com/bicycledb/bicycledb/structval"
)

// EntryPoint is the guest's default entry function name: empty signature,
// communicates exclusively through host functions.
const EntryPoint = "run"

// Runtime executes compiled WASM procedures against a shared typed-CRUD
// store. One Runtime is shared across every invocation; each Run call gets
// its own wazero module instance, host-function set, and invocation state
// — no instance is ever reused (§4.4, §5).
type Runtime struct {
	wz     wazero.Runtime
	store  *crud.Store
	budget time.Duration
}

// New constructs a Runtime over store. budget is the cooperative
// per-invocation time limit (§5's optional fuel/epoch note); zero disables
// it.
func New(ctx context.Context, store *crud.Store, budget time.Duration) (*Runtime, error) {
	wz := wazero.NewRuntimeWithConfig(ctx, wazero.NewRuntimeConfig().WithCloseOnContextDone(true))
	if _, err := wasi_snapshot_preview1.Instantiate(ctx, wz); err != nil {
		return nil, bicerr.Wrap(bicerr.IoError, err, "link wasi_snapshot_preview1")
	}
	return &Runtime{wz: wz, store: store, budget: budget}, nil
}

// Close releases the underlying wazero runtime and every module compiled
// against it.
func (r *Runtime) Close(ctx context.Context) error {
	return r.wz.Close(ctx)
}

// Compile compiles raw WASM bytes without instantiating them, the shared
// step between deploy, invoke_one_off, and registry startup scan.
func (r *Runtime) Compile(ctx context.Context, wasmBytes []byte) (wazero.CompiledModule, error) {
	mod, err := r.wz.CompileModule(ctx, wasmBytes)
	if err != nil {
		return nil, ErrCompile(err, "compile module")
	}
	return mod, nil
}

// Run executes one invocation of compiled against input, returning the
// StructuredValue the guest wrote to host_set_output (or the null value if
// it never called it) and the terminal State the invocation reached. A host
// function given a bad pointer or a guest-malformed record never fails the
// invocation outright — per the ABI contract it returns the sentinel 0 to
// the guest and is only logged here; the only ways Run itself returns a
// non-nil error are an input-encoding failure, a host/guest module that
// fails to instantiate, a guest entry point that traps or never exports
// EntryPoint, or the cooperative budget expiring.
func (r *Runtime) Run(ctx context.Context, compiled wazero.CompiledModule, input *structval.Value) (*structval.Value, State, error) {
	start := time.Now()
	out, state, err := r.run(ctx, compiled, input)

	metrics.InvocationDuration.Observe(time.Since(start).Seconds())
	metrics.InvocationsTotal.WithLabelValues(state.String()).Inc()
	if err != nil {
		logger.Biplane.Errorw("invocation failed", "state", state.String(), "error", err)
	} else {
		logger.Biplane.Debugw("invocation completed", "state", state.String())
	}
	return out, state, err
}

func (r *Runtime) run(ctx context.Context, compiled wazero.CompiledModule, input *structval.Value) (*structval.Value, State, error) {
	if r.budget > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, r.budget)
		defer cancel()
	}

	var inputBytes []byte
	if input != nil && !structval.IsNull(input) {
		b, err := structval.Marshal(input)
		if err != nil {
			return nil, Trapped, err
		}
		inputBytes = b
	}

	inv := &invocation{store: r.store, input: inputBytes}

	// A host function never traps the guest on a bad pointer or a decode
	// failure: it returns the sentinel 0 and the failure is only logged
	// here, at debug level, never escalated to the invocation's result.
	hostMod, err := buildHostModule(ctx, r.wz, inv, func(err error) {
		logger.Biplane.Debugw("host function returned sentinel to guest", "error", err)
	})
	if err != nil {
		return nil, Trapped, ErrCompile(err, "build host module")
	}
	defer hostMod.Close(ctx) //nolint:errcheck

	hostInst, err := r.wz.InstantiateModule(ctx, hostMod, wazero.NewModuleConfig().WithName(hostModuleName))
	if err != nil {
		return nil, Trapped, ErrGuestTrap(err, "instantiate host module")
	}
	defer hostInst.Close(ctx) //nolint:errcheck

	cfg := wazero.NewModuleConfig().
		WithStartFunctions(). // skip implicit _start; we call the entry explicitly
		WithStdout(os.Stdout).
		WithStderr(os.Stderr)
	guest, err := r.wz.InstantiateModule(ctx, compiled, cfg)
	if err != nil {
		if ctx.Err() != nil {
			return nil, Cancelled, ErrResourceLimit
		}
		return nil, Trapped, ErrGuestTrap(err, "instantiate guest module")
	}
	defer guest.Close(ctx) //nolint:errcheck

	entry := guest.ExportedFunction(EntryPoint)
	if entry == nil {
		return nil, Trapped, bicerr.New(bicerr.GuestTrap, "guest module does not export %q", EntryPoint)
	}

	if _, err := entry.Call(ctx); err != nil {
		if ctx.Err() != nil {
			return nil, Cancelled, ErrResourceLimit
		}
		return nil, Trapped, ErrGuestTrap(err, "guest entry trapped")
	}

	if !inv.output.set {
		return structval.Null(), Completed, nil
	}
	out, err := structval.Unmarshal(inv.output.value)
	if err != nil {
		return nil, Trapped, err
	}
	return out, Completed, nil
}
