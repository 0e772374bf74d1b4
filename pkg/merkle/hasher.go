package merkle

import (
	"crypto/sha256"
	"fmt"
	"strings"

	"github.com/ethereum/go-ethereum/crypto"
	"golang.org/x/crypto/blake2b"
)

// Hasher hashes leaves and combines pairs of digests.
//
// Neither method adds domain separation: HashLeaf(b) is H(b) and
// HashChildren(l, r) is H(l || r). Inputs may be of any length.
// Implementations must be safe to call concurrently.
type Hasher interface {
	HashLeaf(block []byte) Hash
	HashChildren(left, right []byte) Hash

	// Name identifies the hash function in configuration and persisted records.
	Name() string
}

// Supported hasher names.
const (
	HasherNameSHA256    = "sha256"
	HasherNameKeccak256 = "keccak256"
	HasherNameBlake2b   = "blake2b"
)

// SHA256Hasher is the reference Hasher. Roots and proofs are only
// compatible across implementations when it is used.
type SHA256Hasher struct{}

func (SHA256Hasher) HashLeaf(block []byte) Hash {
	return sha256.Sum256(block)
}

func (SHA256Hasher) HashChildren(left, right []byte) Hash {
	h := sha256.New()
	_, _ = h.Write(left)
	_, _ = h.Write(right)

	var out Hash
	h.Sum(out[:0])
	return out
}

func (SHA256Hasher) Name() string { return HasherNameSHA256 }

// Keccak256Hasher produces digests that Solidity's keccak256(abi.encodePacked(...)) can reproduce.
type Keccak256Hasher struct{}

func (Keccak256Hasher) HashLeaf(block []byte) Hash {
	return Hash(crypto.Keccak256Hash(block))
}

func (Keccak256Hasher) HashChildren(left, right []byte) Hash {
	return Hash(crypto.Keccak256Hash(left, right))
}

func (Keccak256Hasher) Name() string { return HasherNameKeccak256 }

// Blake2bHasher uses the 256-bit BLAKE2b variant.
type Blake2bHasher struct{}

func (Blake2bHasher) HashLeaf(block []byte) Hash {
	return blake2b.Sum256(block)
}

func (Blake2bHasher) HashChildren(left, right []byte) Hash {
	data := make([]byte, 0, len(left)+len(right))
	data = append(data, left...)
	data = append(data, right...)
	return blake2b.Sum256(data)
}

func (Blake2bHasher) Name() string { return HasherNameBlake2b }

// defaultHasher backs the package-level functions.
var defaultHasher Hasher = SHA256Hasher{}

// HasherByName resolves one of the supported hasher names, case-insensitively.
// An empty name selects SHA-256.
func HasherByName(name string) (Hasher, error) {
	switch strings.ToLower(strings.TrimSpace(name)) {
	case "", HasherNameSHA256:
		return SHA256Hasher{}, nil
	case HasherNameKeccak256:
		return Keccak256Hasher{}, nil
	case HasherNameBlake2b:
		return Blake2bHasher{}, nil
	default:
		return nil, fmt.Errorf("unsupported hasher: %s", name)
	}
}

// SupportedHashers returns the names accepted by HasherByName.
func SupportedHashers() []string {
	return []string{HasherNameSHA256, HasherNameKeccak256, HasherNameBlake2b}
}

// LeafHash hashes a single block with SHA-256.
func LeafHash(block []byte) Hash {
	return defaultHasher.HashLeaf(block)
}

// ParentHash combines two digests, left operand first, with SHA-256.
func ParentHash(left, right []byte) Hash {
	return defaultHasher.HashChildren(left, right)
}
