package procedure

import (
	"context"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/tetratelabs/wazero"

	"github.com/bicycledb/bicycledb/bicerr"
)

// fakeCompiler treats the input bytes as an opaque name and "compiles" any
// input that isn't the literal string "bad", avoiding a dependency on real
// WASM bytecode fixtures.
type fakeCompiler struct{}

func (fakeCompiler) Compile(_ context.Context, wasmBytes []byte) (wazero.CompiledModule, error) {
	if string(wasmBytes) == "bad" {
		return nil, bicerr.New(bicerr.CompileError, "bad module")
	}
	return fakeCompiledModule{src: wasmBytes}, nil
}

type fakeCompiledModule struct {
	wazero.CompiledModule
	src []byte
}

func (fakeCompiledModule) Close(context.Context) error { return nil }

func TestDeployRemoveList(t *testing.T) {
	ctx := context.Background()
	dir := t.TempDir()
	reg, err := Open(ctx, dir, fakeCompiler{})
	require.NoError(t, err)

	require.NoError(t, reg.Deploy(ctx, "echo", []byte("wasm-bytes")))
	assert.Equal(t, []string{"echo"}, reg.List())

	_, ok := reg.Get("echo")
	assert.True(t, ok)

	data, err := os.ReadFile(filepath.Join(dir, "echo"))
	require.NoError(t, err)
	assert.Equal(t, "wasm-bytes", string(data))

	require.NoError(t, reg.Remove(ctx, "echo"))
	assert.Empty(t, reg.List())
	_, ok = reg.Get("echo")
	assert.False(t, ok)
	_, err = os.Stat(filepath.Join(dir, "echo"))
	assert.True(t, os.IsNotExist(err))
}

// Invariant 9 / S6 precursor: durability across a restart.
func TestDurabilityAcrossRestart(t *testing.T) {
	ctx := context.Background()
	dir := t.TempDir()

	reg, err := Open(ctx, dir, fakeCompiler{})
	require.NoError(t, err)
	require.NoError(t, reg.Deploy(ctx, "echo", []byte("wasm-bytes")))

	// Simulate a process restart: open a fresh Registry over the same dir.
	reg2, err := Open(ctx, dir, fakeCompiler{})
	require.NoError(t, err)
	assert.Equal(t, []string{"echo"}, reg2.List())
	_, ok := reg2.Get("echo")
	assert.True(t, ok)
}

func TestDeployFailureLeavesPriorStateUnchanged(t *testing.T) {
	ctx := context.Background()
	dir := t.TempDir()
	reg, err := Open(ctx, dir, fakeCompiler{})
	require.NoError(t, err)

	require.NoError(t, reg.Deploy(ctx, "echo", []byte("good")))
	err = reg.Deploy(ctx, "echo", []byte("bad"))
	assert.Error(t, err)

	data, err := os.ReadFile(filepath.Join(dir, "echo"))
	require.NoError(t, err)
	assert.Equal(t, "good", string(data))
}

// Removing a name that was never deployed fails with NotFound.
func TestRemoveMissingIsNotFound(t *testing.T) {
	ctx := context.Background()
	dir := t.TempDir()
	reg, err := Open(ctx, dir, fakeCompiler{})
	require.NoError(t, err)

	err = reg.Remove(ctx, "missing")
	require.Error(t, err)
	assert.Equal(t, bicerr.NotFound, bicerr.KindOf(err))
}

func TestStartupSkipsCorruptFileButLoadsRest(t *testing.T) {
	ctx := context.Background()
	dir := t.TempDir()
	require.NoError(t, os.WriteFile(filepath.Join(dir, "good"), []byte("good-bytes"), 0o644))
	require.NoError(t, os.WriteFile(filepath.Join(dir, "corrupt"), []byte("bad"), 0o644))

	reg, err := Open(ctx, dir, fakeCompiler{})
	require.NoError(t, err)
	assert.Equal(t, []string{"good"}, reg.List())
}
