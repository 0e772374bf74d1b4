package merkle

import (
	"bytes"
	"encoding/json"
	"fmt"

	"github.com/ethereum/go-ethereum/common/hexutil"
)

// HashSize is the length in bytes of every digest produced by a Hasher.
const HashSize = 32

// MaxLevel is the highest level a SubRoot may be requested at.
// Levels size prefixes as 1<<level, and levels are modeled as 32-bit integers.
const MaxLevel = 31

// Hash is a fixed-size digest.
type Hash [HashSize]byte

// Bytes returns a copy of the digest as a byte slice.
func (h Hash) Bytes() []byte {
	b := make([]byte, HashSize)
	copy(b, h[:])
	return b
}

// String returns the 0x-prefixed hex encoding of the digest.
func (h Hash) String() string {
	return hexutil.Encode(h[:])
}

// MarshalText implements encoding.TextMarshaler.
func (h Hash) MarshalText() ([]byte, error) {
	return hexutil.Bytes(h[:]).MarshalText()
}

// UnmarshalText implements encoding.TextUnmarshaler.
func (h *Hash) UnmarshalText(input []byte) error {
	var b hexutil.Bytes
	if err := b.UnmarshalText(input); err != nil {
		return err
	}
	if len(b) != HashSize {
		return fmt.Errorf("invalid hash length: expected %d bytes, got %d", HashSize, len(b))
	}
	copy(h[:], b)
	return nil
}

// BytesToHash converts b into a Hash. It fails if b is not exactly HashSize bytes long.
func BytesToHash(b []byte) (Hash, error) {
	var h Hash
	if len(b) != HashSize {
		return h, fmt.Errorf("invalid hash length: expected %d bytes, got %d", HashSize, len(b))
	}
	copy(h[:], b)
	return h, nil
}

// SubRoot is the root of the first 2^Level leaves of a sequence.
type SubRoot struct {
	Level   int32
	SubRoot []byte
}

// Proof lets a verifier rebuild a root from a single leaf.
// Pre holds the SubRoots at the levels set in the proven index and Post those at the
// levels not set, both in ascending level order.
type Proof struct {
	Pre  []SubRoot
	Leaf []byte
	Post []SubRoot
}

type subRootJSON struct {
	Level   int32         `json:"level"`
	SubRoot hexutil.Bytes `json:"subroot"`
}

type proofJSON struct {
	Pre  []subRootJSON `json:"pre"`
	Leaf hexutil.Bytes `json:"leaf"`
	Post []subRootJSON `json:"post"`
}

// MarshalJSON encodes the SubRoot with a hex-encoded digest.
func (s SubRoot) MarshalJSON() ([]byte, error) {
	return json.Marshal(subRootJSON{Level: s.Level, SubRoot: s.SubRoot})
}

// UnmarshalJSON decodes a SubRoot produced by MarshalJSON.
func (s *SubRoot) UnmarshalJSON(data []byte) error {
	var sj subRootJSON
	if err := json.Unmarshal(data, &sj); err != nil {
		return err
	}
	if sj.Level < 0 {
		return fmt.Errorf("invalid subroot level %d", sj.Level)
	}
	s.Level = sj.Level
	s.SubRoot = sj.SubRoot
	return nil
}

// MarshalJSON encodes the proof with hex-encoded digests.
func (p *Proof) MarshalJSON() ([]byte, error) {
	pj := proofJSON{
		Pre:  toSubRootJSON(p.Pre),
		Leaf: p.Leaf,
		Post: toSubRootJSON(p.Post),
	}
	return json.Marshal(pj)
}

// UnmarshalJSON decodes a proof produced by MarshalJSON.
func (p *Proof) UnmarshalJSON(data []byte) error {
	var pj proofJSON
	if err := json.Unmarshal(data, &pj); err != nil {
		return err
	}

	pre, err := fromSubRootJSON(pj.Pre)
	if err != nil {
		return fmt.Errorf("invalid pre subroots: %w", err)
	}
	post, err := fromSubRootJSON(pj.Post)
	if err != nil {
		return fmt.Errorf("invalid post subroots: %w", err)
	}

	p.Pre = pre
	p.Leaf = pj.Leaf
	p.Post = post
	return nil
}

// Equal reports whether two proofs carry identical levels and digests.
func (p *Proof) Equal(other *Proof) bool {
	if p == nil || other == nil {
		return p == other
	}
	return bytes.Equal(p.Leaf, other.Leaf) &&
		subRootsEqual(p.Pre, other.Pre) &&
		subRootsEqual(p.Post, other.Post)
}

// Clone returns a deep copy of the proof.
func (p *Proof) Clone() *Proof {
	if p == nil {
		return nil
	}
	return &Proof{
		Pre:  cloneSubRoots(p.Pre),
		Leaf: append([]byte(nil), p.Leaf...),
		Post: cloneSubRoots(p.Post),
	}
}

func toSubRootJSON(in []SubRoot) []subRootJSON {
	out := make([]subRootJSON, len(in))
	for i, s := range in {
		out[i] = subRootJSON{Level: s.Level, SubRoot: s.SubRoot}
	}
	return out
}

func fromSubRootJSON(in []subRootJSON) ([]SubRoot, error) {
	out := make([]SubRoot, len(in))
	for i, s := range in {
		if s.Level < 0 {
			return nil, fmt.Errorf("subroot %d has negative level %d", i, s.Level)
		}
		out[i] = SubRoot{Level: s.Level, SubRoot: s.SubRoot}
	}
	return out, nil
}

func subRootsEqual(a, b []SubRoot) bool {
	if len(a) != len(b) {
		return false
	}
	for i := range a {
		if a[i].Level != b[i].Level || !bytes.Equal(a[i].SubRoot, b[i].SubRoot) {
			return false
		}
	}
	return true
}

func cloneSubRoots(in []SubRoot) []SubRoot {
	if in == nil {
		return nil
	}
	out := make([]SubRoot, len(in))
	for i, s := range in {
		out[i] = SubRoot{Level: s.Level, SubRoot: append([]byte(nil), s.SubRoot...)}
	}
	return out
}
