package idgen

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestNewIDIsUniqueAndWellFormed(t *testing.T) {
	a := NewID()
	b := NewID()
	assert.NotEqual(t, a, b)
	assert.Len(t, a, 36)
}

func TestKeyBetweenOpenEnded(t *testing.T) {
	k, err := KeyBetween(nil, nil)
	require.NoError(t, err)
	assert.NotEmpty(t, k)
}

func TestKeyBetweenRejectsOutOfOrderBounds(t *testing.T) {
	lo, hi := "m", "a"
	_, err := KeyBetween(&lo, &hi)
	assert.Error(t, err)
}

func TestKeyBetweenRejectsEqualBounds(t *testing.T) {
	same := "m"
	_, err := KeyBetween(&same, &same)
	assert.Error(t, err)
}

func TestKeyBetweenRejectsInvalidAlphabet(t *testing.T) {
	bad := "M!"
	_, err := KeyBetween(&bad, nil)
	assert.Error(t, err)

	_, err = KeyBetween(nil, &bad)
	assert.Error(t, err)
}

func TestKeyBetweenIsStrictlyBetween(t *testing.T) {
	lo, hi := "a", "z"
	k, err := KeyBetween(&lo, &hi)
	require.NoError(t, err)
	assert.True(t, CompareOrderKeys(lo, k) < 0)
	assert.True(t, CompareOrderKeys(k, hi) < 0)
}

func TestKeyBetweenNilLowerBound(t *testing.T) {
	hi := "m"
	k, err := KeyBetween(nil, &hi)
	require.NoError(t, err)
	assert.True(t, CompareOrderKeys(k, hi) < 0)
}

func TestKeyBetweenNilUpperBound(t *testing.T) {
	lo := "m"
	k, err := KeyBetween(&lo, nil)
	require.NoError(t, err)
	assert.True(t, CompareOrderKeys(lo, k) < 0)
}

// Repeated insertion at the same pair of neighbors should bisect the
// remaining gap rather than grow without bound, so key length should
// grow logarithmically, not linearly, in the number of insertions.
func TestKeyBetweenRepeatedBisectionGrowsLogarithmically(t *testing.T) {
	lo, hi := "a", "b"
	longest := 0
	for i := 0; i < 64; i++ {
		k, err := KeyBetween(&lo, &hi)
		require.NoError(t, err)
		assert.True(t, CompareOrderKeys(lo, k) < 0)
		assert.True(t, CompareOrderKeys(k, hi) < 0)
		if len(k) > longest {
			longest = len(k)
		}
		hi = k
	}
	assert.Less(t, longest, 20, "key length should grow logarithmically under repeated bisection, not linearly")
}

func TestKeyBetweenFatalOnPathologicalSharedPrefix(t *testing.T) {
	lo := ""
	hi := ""
	for i := 0; i < maxOrderKeyLen+5; i++ {
		lo += "a"
		hi += "a"
	}
	hi += "b"
	_, err := KeyBetween(&lo, &hi)
	assert.Error(t, err)
}

func TestFirstKey(t *testing.T) {
	k := FirstKey()
	assert.NotEmpty(t, k)

	// A key inserted before FirstKey should sort before it, and one
	// inserted after should sort after it.
	before, err := KeyBetween(nil, &k)
	require.NoError(t, err)
	assert.True(t, CompareOrderKeys(before, k) < 0)

	after, err := KeyBetween(&k, nil)
	require.NoError(t, err)
	assert.True(t, CompareOrderKeys(k, after) < 0)
}

func TestCompareOrderKeys(t *testing.T) {
	assert.Equal(t, 0, CompareOrderKeys("m", "m"))
	assert.True(t, CompareOrderKeys("a", "b") < 0)
	assert.True(t, CompareOrderKeys("b", "a") > 0)
}

func TestDigitIndex(t *testing.T) {
	assert.Equal(t, 0, digitIndex('0'))
	assert.Equal(t, 9, digitIndex('9'))
	assert.Equal(t, 10, digitIndex('a'))
	assert.Equal(t, 35, digitIndex('z'))
	assert.Equal(t, -1, digitIndex('!'))
	assert.Equal(t, -1, digitIndex('A'))
}
