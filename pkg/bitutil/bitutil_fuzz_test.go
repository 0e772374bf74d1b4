package bitutil

import (
	"testing"

	"github.com/stretchr/testify/require"
)

func FuzzOnesZerosPartition(f *testing.F) {
	f.Add(int32(0))
	f.Add(int32(1))
	f.Add(int32(-1))
	f.Add(int32(0x55555555))

	f.Fuzz(func(t *testing.T, v int32) {
		ones := Ones(v)
		zeros := Zeros(v)
		require.Equal(t, Width, len(ones)+len(zeros))

		// Rebuild the value from the set positions.
		var rebuilt uint32
		for _, p := range ones {
			rebuilt |= 1 << uint(p)
		}
		require.Equal(t, uint32(v), rebuilt)

		for i := 1; i < len(ones); i++ {
			require.Less(t, ones[i-1], ones[i])
		}
		for i := 1; i < len(zeros); i++ {
			require.Less(t, zeros[i-1], zeros[i])
		}
	})
}
