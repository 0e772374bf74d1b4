// Package bitutil enumerates the set and unset bit positions of 32-bit integers.
//
// The accumulator levels in pkg/merkle map one-to-one onto these positions, so the
// width is fixed at 32 regardless of the platform word size.
package bitutil

import (
	"github.com/bits-and-blooms/bitset"
)

// Width is the number of bit positions considered by Ones and Zeros.
const Width = 32

// newWordSet returns a Width-bit set holding the two's-complement pattern of i.
func newWordSet(i int32) *bitset.BitSet {
	return bitset.FromWithLength(Width, []uint64{uint64(uint32(i))})
}

// Ones returns the positions in [0, 31] whose bit is set in i, in ascending order.
func Ones(i int32) []int32 {
	bs := newWordSet(i)

	positions := make([]int32, 0, bs.Count())
	for n, ok := bs.NextSet(0); ok && n < Width; n, ok = bs.NextSet(n + 1) {
		positions = append(positions, int32(n))
	}
	return positions
}

// Zeros returns the positions in [0, 31] whose bit is not set in i, in ascending order.
func Zeros(i int32) []int32 {
	bs := newWordSet(i)

	positions := make([]int32, 0, Width-bs.Count())
	for n, ok := bs.NextClear(0); ok && n < Width; n, ok = bs.NextClear(n + 1) {
		positions = append(positions, int32(n))
	}
	return positions
}

// Test reports whether bit n of i is set. n must be in [0, 31].
func Test(i int32, n int32) bool {
	if n < 0 || n >= Width {
		panic("bitutil: bit position out of range")
	}
	return newWordSet(i).Test(uint(n))
}
