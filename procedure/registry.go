// Package procedure implements the persistent directory of named WASM
// modules on local disk, with an in-memory index of precompiled modules
// keyed by name (§4.3). Every name in the in-memory map has a file on
// disk; a file that could not be read or compiled at startup stays on disk
// without a map entry. Deploy and Remove change a file and its map entry
// together.
package procedure

import (
	"context"
	"os"
	"path/filepath"
	"sort"
	"sync"

	"github.com/tetratelabs/wazero"
	"golang.org/x/sync/errgroup"

	"github.com/bicycledb/bicycledb/bicerr"
	"github.com/bicycledb/bicycledb/logger"
	"github.com/bicycledb/bicycledb/metrics"
)

// Compiler is the narrow subset of biplane.Runtime the registry needs:
// compiling raw WASM bytes into a form the runtime can instantiate.
type Compiler interface {
	Compile(ctx context.Context, wasmBytes []byte) (wazero.CompiledModule, error)
}

// Registry is the authoritative, durable-across-restarts list of deployed
// procedures. Reads (Get, List) may run concurrently; writes (Deploy,
// Remove) are serialized by mu, which is also held across the matching
// on-disk write so no reader sees a file and its map entry out of step
// mid-mutation.
type Registry struct {
	dir      string
	compiler Compiler

	mu      sync.RWMutex
	modules map[string]wazero.CompiledModule
}

// maxStartupConcurrency bounds how many files the startup scan compiles at
// once, so a directory with thousands of procedures doesn't spawn thousands
// of goroutines at once.
const maxStartupConcurrency = 8

// Open creates dir if missing, else compiles every file already in it into
// the in-memory index. A file with a name containing invalid UTF-8, or one
// that fails to compile, is skipped with a warning — one corrupt file must
// not prevent the rest of the registry from loading.
func Open(ctx context.Context, dir string, compiler Compiler) (*Registry, error) {
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return nil, bicerr.Wrap(bicerr.IoError, err, "create procedure directory")
	}

	entries, err := os.ReadDir(dir)
	if err != nil {
		return nil, bicerr.Wrap(bicerr.IoError, err, "scan procedure directory")
	}

	r := &Registry{dir: dir, compiler: compiler, modules: make(map[string]wazero.CompiledModule)}

	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(maxStartupConcurrency)
	var mu sync.Mutex
	for _, entry := range entries {
		if entry.IsDir() {
			continue
		}
		name := entry.Name()
		g.Go(func() error {
			if !isValidName(name) {
				logger.Procedure.Warnw("skipping procedure with invalid name", "name", name)
				return nil
			}
			data, err := os.ReadFile(filepath.Join(dir, name))
			if err != nil {
				logger.Procedure.Warnw("failed to read procedure file", "name", name, "error", err)
				return nil
			}
			compiled, err := r.compiler.Compile(gctx, data)
			if err != nil {
				logger.Procedure.Warnw("failed to compile procedure, skipping", "name", name, "error", err)
				return nil
			}
			mu.Lock()
			r.modules[name] = compiled
			mu.Unlock()
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return nil, bicerr.Wrap(bicerr.IoError, err, "startup scan")
	}
	metrics.ProceduresDeployed.Set(float64(len(r.modules)))
	return r, nil
}

func isValidName(name string) bool {
	if len(name) == 0 {
		return false
	}
	for _, r := range name {
		if r == 0xFFFD {
			return false
		}
	}
	return true
}

// Deploy compiles bytes; only on success does it overwrite the on-disk
// file and replace the in-memory entry. If compilation fails the prior
// state (file and map entry) is unchanged.
func (r *Registry) Deploy(ctx context.Context, name string, wasmBytes []byte) error {
	if !isValidName(name) {
		return bicerr.New(bicerr.InvalidArgument, "invalid procedure name %q", name)
	}

	compiled, err := r.compiler.Compile(ctx, wasmBytes)
	if err != nil {
		return err
	}

	r.mu.Lock()
	defer r.mu.Unlock()

	if err := os.WriteFile(filepath.Join(r.dir, name), wasmBytes, 0o644); err != nil {
		_ = compiled.Close(ctx)
		return bicerr.Wrap(bicerr.IoError, err, "write procedure file")
	}
	if prev, ok := r.modules[name]; ok {
		_ = prev.Close(ctx)
	}
	r.modules[name] = compiled
	metrics.ProceduresDeployed.Set(float64(len(r.modules)))
	logger.Procedure.Infow("procedure deployed", "name", name)
	return nil
}

// Remove deletes name's file and in-memory entry. NotFound if name was
// never deployed.
func (r *Registry) Remove(ctx context.Context, name string) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	compiled, ok := r.modules[name]
	if !ok {
		return bicerr.New(bicerr.NotFound, "procedure %q not found", name)
	}
	if err := os.Remove(filepath.Join(r.dir, name)); err != nil && !os.IsNotExist(err) {
		return bicerr.Wrap(bicerr.IoError, err, "remove procedure file")
	}
	_ = compiled.Close(ctx)
	delete(r.modules, name)
	metrics.ProceduresDeployed.Set(float64(len(r.modules)))
	logger.Procedure.Infow("procedure removed", "name", name)
	return nil
}

// List returns a snapshot of current names, sorted ascending. Raw bytes are
// never included, keeping the call cheap (§4.3's open question, resolved).
func (r *Registry) List() []string {
	r.mu.RLock()
	defer r.mu.RUnlock()
	names := make([]string, 0, len(r.modules))
	for name := range r.modules {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}

// Get returns the compiled module registered under name, or ok=false.
func (r *Registry) Get(name string) (wazero.CompiledModule, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	m, ok := r.modules[name]
	return m, ok
}

// Close closes every compiled module the registry holds.
func (r *Registry) Close(ctx context.Context) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	for _, m := range r.modules {
		_ = m.Close(ctx)
	}
	return nil
}
