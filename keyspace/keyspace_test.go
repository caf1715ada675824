package keyspace

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestKeyAndSplit(t *testing.T) {
	key := Key("Dog", "a1")
	assert.Equal(t, "Dog#a1", string(key))

	model, pk, err := Split(key)
	require.NoError(t, err)
	assert.Equal(t, "Dog", model)
	assert.Equal(t, "a1", pk)
}

func TestSplitMissingDelimiter(t *testing.T) {
	_, _, err := Split([]byte("nodeliminator"))
	assert.Error(t, err)
}

func TestInModel(t *testing.T) {
	assert.True(t, InModel(Key("Dog", "z"), "Dog"))
	assert.False(t, InModel(Key("Dog2", "z"), "Dog"))
	assert.False(t, InModel(Key("Cat", "a"), "Dog"))
}

func TestHasPrefix(t *testing.T) {
	assert.True(t, HasPrefix(Key("Dog", "a1"), "Dog", "a"))
	assert.False(t, HasPrefix(Key("Dog", "b1"), "Dog", "a"))
}

func TestValidModelName(t *testing.T) {
	assert.True(t, ValidModelName("Dog_1"))
	assert.False(t, ValidModelName(""))
	assert.False(t, ValidModelName("Dog#1"))
	assert.False(t, ValidModelName("Dog 1"))
}

func TestValidPK(t *testing.T) {
	assert.True(t, ValidPK("a1"))
	assert.False(t, ValidPK(""))
	assert.False(t, ValidPK("a#1"))
}

func TestValidate(t *testing.T) {
	assert.NoError(t, Validate("Dog", "a1"))
	assert.Error(t, Validate("", "a1"))
	assert.Error(t, Validate("Dog", ""))
}
