package merkle

import (
	"bytes"
	"math"

	"github.com/Layr-Labs/eigenx-merkle-go/pkg/bitutil"
)

// ReadLeaf returns the SHA-256 leaf hash of the first block.
// The block being proven is always expected first in the sequence.
func ReadLeaf(blocks [][]byte) ([]byte, bool) {
	return ReadLeafWith(defaultHasher, blocks)
}

// ReadLeafWith is ReadLeaf using h.
func ReadLeafWith(h Hasher, blocks [][]byte) ([]byte, bool) {
	if len(blocks) == 0 {
		return nil, false
	}
	leaf := h.HashLeaf(blocks[0])
	return leaf.Bytes(), true
}

// ProveLeaf builds a proof for the first block of blocks at the given index.
//
// Pre receives the SubRoots at the bit positions set in index and Post those at the
// positions not set, over all 32 positions, each in ascending order. Post therefore
// holds 32 entries for index 0.
//
// ProveLeaf panics when blocks is empty.
func ProveLeaf(blocks [][]byte, index int32) *Proof {
	return ProveLeafWith(defaultHasher, blocks, index)
}

// ProveLeafWith is ProveLeaf using h.
func ProveLeafWith(h Hasher, blocks [][]byte, index int32) *Proof {
	leaf, ok := ReadLeafWith(h, blocks)
	if !ok {
		panic("merkle: cannot prove a leaf of an empty block sequence")
	}

	subRoots := PrefixRootsWith(h, blocks)

	ones := bitutil.Ones(index)
	pre := make([]SubRoot, 0, len(ones))
	for _, i := range ones {
		pre = append(pre, SubRoot{Level: i, SubRoot: subRoots[i]})
	}

	zeros := bitutil.Zeros(index)
	post := make([]SubRoot, 0, len(zeros))
	for _, i := range zeros {
		post = append(post, SubRoot{Level: i, SubRoot: subRoots[i]})
	}

	return &Proof{
		Pre:  pre,
		Leaf: leaf,
		Post: post,
	}
}

// ProofIndex returns the index a proof was built for, read back from its levels.
//
// It reports false unless the proof has the shape ProveLeaf produces: Pre and Post each in
// strictly ascending level order and, together, holding every level in [0, MaxLevel] exactly once.
func ProofIndex(proof *Proof) (int32, bool) {
	if proof == nil || len(proof.Pre)+len(proof.Post) != MaxLevel+1 {
		return 0, false
	}

	var seen, index uint32
	for _, half := range []struct {
		subRoots []SubRoot
		set      bool
	}{{proof.Pre, true}, {proof.Post, false}} {
		prev := int32(-1)
		for _, s := range half.subRoots {
			if s.Level <= prev || s.Level > MaxLevel {
				return 0, false
			}
			prev = s.Level

			bit := uint32(1) << uint(s.Level)
			seen |= bit
			if half.set {
				index |= bit
			}
		}
	}

	if seen != math.MaxUint32 {
		return 0, false
	}
	return int32(index), true
}

// LoadStack inserts every SubRoot digest into acc at its recorded level, in order.
func LoadStack(acc *Accumulator, subRoots []SubRoot) {
	for _, s := range subRoots {
		acc.Insert(s.SubRoot, s.Level)
	}
}

// RootFromProofAndLeaf rebuilds a SHA-256 root from a leaf and a proof.
//
// Starting from an empty accumulator it loads Pre, inserts leaf at level 0, loads Post,
// then inserts leaf at level 0 a second time before finalizing. Both leaf insertions
// are required for compatibility with previously published roots.
// A nil proof behaves like one with no SubRoots.
func RootFromProofAndLeaf(leaf []byte, proof *Proof) []byte {
	return RootFromProofAndLeafWith(defaultHasher, leaf, proof)
}

// RootFromProofAndLeafWith is RootFromProofAndLeaf using h.
func RootFromProofAndLeafWith(h Hasher, leaf []byte, proof *Proof) []byte {
	if proof == nil {
		proof = &Proof{}
	}

	acc := NewAccumulator(WithHasher(h))
	LoadStack(acc, proof.Pre)
	acc.Insert(leaf, 0)
	LoadStack(acc, proof.Post)
	acc.Insert(leaf, 0)

	return acc.Finalize()
}

// VerifyLeaf reports whether the root rebuilt from leaf and proof equals knownRoot byte for byte.
// A nil proof never verifies.
func VerifyLeaf(knownRoot []byte, leaf []byte, proof *Proof) bool {
	return VerifyLeafWith(defaultHasher, knownRoot, leaf, proof)
}

// VerifyLeafWith is VerifyLeaf using h.
func VerifyLeafWith(h Hasher, knownRoot []byte, leaf []byte, proof *Proof) bool {
	if proof == nil {
		return false
	}
	return bytes.Equal(knownRoot, RootFromProofAndLeafWith(h, leaf, proof))
}
