package bicerr

import (
	"testing"

	"github.com/cockroachdb/errors"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestNewAndKindOf(t *testing.T) {
	err := New(NotFound, "record %s missing", "dog#1")
	assert.Equal(t, NotFound, KindOf(err))
	assert.True(t, Is(err, NotFound))
	assert.False(t, Is(err, EngineError))
	assert.Contains(t, err.Error(), "dog#1")
}

func TestWrapPreservesChain(t *testing.T) {
	cause := errors.New("disk full")
	err := Wrap(EngineError, cause, "flush failed")
	require.Error(t, err)
	assert.Equal(t, EngineError, KindOf(err))
	assert.True(t, errors.Is(err, cause))
}

func TestWrapNilReturnsNil(t *testing.T) {
	assert.NoError(t, Wrap(EngineError, nil, "noop"))
}

func TestKindOfUntaggedError(t *testing.T) {
	assert.Equal(t, Kind(""), KindOf(errors.New("plain")))
}
