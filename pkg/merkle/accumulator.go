package merkle

import (
	"context"
	"fmt"
	"math"
	"sort"

	"golang.org/x/sync/errgroup"
)

// Accumulator folds leaves into a root while holding at most one peak per level.
//
// After n calls to Add on an empty accumulator, the occupied levels are exactly the set
// bits of n, and the peak at level k is the root of 2^k consecutive leaves.
// An Accumulator is not safe for concurrent mutation.
type Accumulator struct {
	hasher Hasher
	peaks  map[int32][]byte
	leaves uint64
}

// AccumulatorOption configures an Accumulator.
type AccumulatorOption func(*Accumulator)

// WithHasher selects the hash function. The default is SHA-256.
func WithHasher(h Hasher) AccumulatorOption {
	return func(a *Accumulator) {
		if h != nil {
			a.hasher = h
		}
	}
}

// NewAccumulator returns an empty accumulator.
func NewAccumulator(opts ...AccumulatorOption) *Accumulator {
	a := &Accumulator{
		hasher: defaultHasher,
		peaks:  make(map[int32][]byte),
	}
	for _, opt := range opts {
		opt(a)
	}
	return a
}

// Hasher returns the hash function used by the accumulator.
func (a *Accumulator) Hasher() Hasher {
	return a.hasher
}

// Insert places value at level. While the level is occupied, the existing peak is
// combined with the incoming value (existing on the left), the level is cleared and
// the combined digest moves up one level, like a carry in binary addition.
//
// value is copied. A negative level is a programming error and panics.
func (a *Accumulator) Insert(value []byte, level int32) {
	if level < 0 {
		panic(fmt.Sprintf("merkle: negative accumulator level %d", level))
	}

	carry := append([]byte(nil), value...)
	for {
		existing, ok := a.peaks[level]
		if !ok {
			a.peaks[level] = carry
			return
		}
		if level == math.MaxInt32 {
			panic("merkle: accumulator level overflow")
		}

		parent := a.hasher.HashChildren(existing, carry)
		delete(a.peaks, level)
		carry = parent[:]
		level++
	}
}

// Add hashes block as a leaf and inserts it at level 0.
func (a *Accumulator) Add(block []byte) {
	leaf := a.hasher.HashLeaf(block)
	a.Insert(leaf[:], 0)
	a.leaves++
}

// LeafCount returns the number of blocks passed to Add.
// Digests placed directly with Insert are not counted.
func (a *Accumulator) LeafCount() uint64 {
	return a.leaves
}

// Len returns the number of occupied levels.
func (a *Accumulator) Len() int {
	return len(a.peaks)
}

// Levels returns the occupied levels in ascending order.
func (a *Accumulator) Levels() []int32 {
	levels := make([]int32, 0, len(a.peaks))
	for level := range a.peaks {
		levels = append(levels, level)
	}
	sort.Slice(levels, func(i, j int) bool { return levels[i] < levels[j] })
	return levels
}

// Peak returns a copy of the digest stored at level.
func (a *Accumulator) Peak(level int32) ([]byte, bool) {
	p, ok := a.peaks[level]
	if !ok {
		return nil, false
	}
	return append([]byte(nil), p...), true
}

// Finalize folds the peaks into a single digest without modifying the accumulator.
//
// Peaks are ordered from the highest level to the lowest and combined right to left,
// so the two lowest peaks are hashed first and the highest peak is the outermost left
// operand. A single peak is returned as is. An empty accumulator yields empty bytes.
func (a *Accumulator) Finalize() []byte {
	levels := a.Levels()

	values := make([][]byte, len(levels))
	for i, level := range levels {
		values[len(levels)-1-i] = a.peaks[level]
	}

	return foldWith(a.hasher, values)
}

// Clone returns an independent copy of the accumulator.
func (a *Accumulator) Clone() *Accumulator {
	c := &Accumulator{
		hasher: a.hasher,
		peaks:  make(map[int32][]byte, len(a.peaks)),
		leaves: a.leaves,
	}
	for level, p := range a.peaks {
		c.peaks[level] = append([]byte(nil), p...)
	}
	return c
}

// Reset empties the accumulator, keeping its hasher.
func (a *Accumulator) Reset() {
	clear(a.peaks)
	a.leaves = 0
}

// Fold combines values right to left with SHA-256:
// Fold([v0, v1, v2]) == ParentHash(v0, ParentHash(v1, v2)).
func Fold(values [][]byte) []byte {
	return foldWith(defaultHasher, values)
}

func foldWith(h Hasher, values [][]byte) []byte {
	if len(values) == 0 {
		return []byte{}
	}

	result := append([]byte(nil), values[len(values)-1]...)
	for i := len(values) - 2; i >= 0; i-- {
		folded := h.HashChildren(values[i], result)
		result = folded[:]
	}
	return result
}

// Root computes the SHA-256 root of blocks. An empty sequence yields empty bytes.
func Root(blocks [][]byte) []byte {
	return RootWith(defaultHasher, blocks)
}

// RootWith computes the root of blocks using h.
func RootWith(h Hasher, blocks [][]byte) []byte {
	if len(blocks) == 0 {
		return []byte{}
	}

	acc := NewAccumulator(WithHasher(h))
	for _, b := range blocks {
		acc.Add(b)
	}
	return acc.Finalize()
}

// Limit returns the first n blocks, or all of them when fewer exist.
// The result shares storage with blocks but cannot be appended into it.
func Limit(blocks [][]byte, n int) [][]byte {
	if n <= 0 {
		return [][]byte{}
	}
	if n > len(blocks) {
		n = len(blocks)
	}
	return blocks[:n:n]
}

// prefixSize returns 2^level as an int, saturating at the largest int.
func prefixSize(level int32) int {
	if level < 0 || level > MaxLevel {
		panic(fmt.Sprintf("merkle: subroot level %d out of range [0, %d]", level, MaxLevel))
	}
	size := int64(1) << uint(level)
	if size > int64(math.MaxInt) {
		return math.MaxInt
	}
	return int(size)
}

// PrefixRoot computes the SHA-256 root of the first 2^level blocks.
// level must be in [0, MaxLevel].
func PrefixRoot(blocks [][]byte, level int32) []byte {
	return PrefixRootWith(defaultHasher, blocks, level)
}

// PrefixRootWith computes the root of the first 2^level blocks using h.
func PrefixRootWith(h Hasher, blocks [][]byte, level int32) []byte {
	return RootWith(h, Limit(blocks, prefixSize(level)))
}

// PrefixRoots returns PrefixRoot(blocks, k) for every level k in [0, MaxLevel],
// hashing the sequence once.
func PrefixRoots(blocks [][]byte) [MaxLevel + 1][]byte {
	return PrefixRootsWith(defaultHasher, blocks)
}

// PrefixRootsWith is PrefixRoots using h.
func PrefixRootsWith(h Hasher, blocks [][]byte) [MaxLevel + 1][]byte {
	var out [MaxLevel + 1][]byte

	acc := NewAccumulator(WithHasher(h))
	next := int32(0)
	for _, b := range blocks {
		acc.Add(b)

		// The first 2^next leaves have just been consumed.
		for next <= MaxLevel && acc.LeafCount() == uint64(1)<<uint(next) {
			out[next] = acc.Finalize()
			next++
		}
	}

	// Prefixes longer than the sequence cover all of it.
	if next <= MaxLevel {
		root := acc.Finalize()
		for ; next <= MaxLevel; next++ {
			out[next] = append([]byte{}, root...)
		}
	}

	return out
}

// RootConcurrent computes the same digest as Root, hashing leaves on up to workers
// goroutines. Parents are still combined sequentially in input order.
func RootConcurrent(ctx context.Context, blocks [][]byte, workers int) ([]byte, error) {
	return RootConcurrentWith(ctx, defaultHasher, blocks, workers)
}

// RootConcurrentWith is RootConcurrent using h.
func RootConcurrentWith(ctx context.Context, h Hasher, blocks [][]byte, workers int) ([]byte, error) {
	if len(blocks) == 0 {
		return []byte{}, nil
	}
	if workers < 1 {
		workers = 1
	}
	if workers > len(blocks) {
		workers = len(blocks)
	}

	leaves := make([]Hash, len(blocks))
	chunk := (len(blocks) + workers - 1) / workers

	g, gctx := errgroup.WithContext(ctx)
	for start := 0; start < len(blocks); start += chunk {
		end := min(start+chunk, len(blocks))
		g.Go(func() error {
			for i := start; i < end; i++ {
				if i%4096 == 0 {
					if err := gctx.Err(); err != nil {
						return err
					}
				}
				leaves[i] = h.HashLeaf(blocks[i])
			}
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return nil, fmt.Errorf("failed to hash leaves: %w", err)
	}

	acc := NewAccumulator(WithHasher(h))
	for i := range leaves {
		acc.Insert(leaves[i][:], 0)
	}
	return acc.Finalize(), nil
}
