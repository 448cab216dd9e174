package testing

import (
	"testing"

	"github.com/stretchr/testify/require"
)

func TestStrictlyIncreasing(t *testing.T) {
	require.True(t, StrictlyIncreasing(nil))
	require.True(t, StrictlyIncreasing([]int64{7}))
	require.True(t, StrictlyIncreasing([]int64{1, 2, 5, 9}))
	require.False(t, StrictlyIncreasing([]int64{1, 2, 2, 3}))
	require.False(t, StrictlyIncreasing([]int64{3, 2, 1}))
}

func TestRandString(t *testing.T) {
	s := RandString()
	require.Len(t, s, 10)
	for _, r := range s {
		require.Contains(t, charSet, string(r))
	}
	require.Len(t, RandStringN(3), 3)
	require.Empty(t, RandStringN(0))
}
