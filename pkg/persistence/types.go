package persistence

import (
	"fmt"
	"sort"
	"time"

	"github.com/ethereum/go-ethereum/common/hexutil"
	"github.com/google/uuid"

	"github.com/Layr-Labs/eigenx-merkle-go/pkg/merkle"
)

// RootRecord is a named root published for later verification.
type RootRecord struct {
	// Name is the primary key for root storage.
	Name string `json:"name"`

	// Root is the digest computed over the whole block sequence.
	Root hexutil.Bytes `json:"root"`

	// Hasher names the hash function the root was computed with.
	Hasher string `json:"hasher"`

	// LeafCount is the number of blocks the root covers.
	LeafCount uint64 `json:"leafCount"`

	// CreatedAt is the Unix timestamp when the root was published.
	CreatedAt int64 `json:"createdAt"`
}

// Validate checks that a record can be stored.
func (r *RootRecord) Validate() error {
	if r == nil {
		return fmt.Errorf("root record cannot be nil")
	}
	if r.Name == "" {
		return fmt.Errorf("root name cannot be empty")
	}
	return nil
}

// Clone returns a deep copy of the record.
func (r *RootRecord) Clone() *RootRecord {
	if r == nil {
		return nil
	}
	c := *r
	c.Root = append(hexutil.Bytes(nil), r.Root...)
	return &c
}

// ProofRecord is a leaf proof issued against a published root.
type ProofRecord struct {
	// ID is the primary key for proof storage.
	ID uuid.UUID `json:"id"`

	// RootName is the root the proof was issued against.
	// May be empty for proofs issued without a published root.
	RootName string `json:"rootName"`

	// Index is the leaf index the proof was built for.
	Index int32 `json:"index"`

	Proof *merkle.Proof `json:"proof"`

	// Hasher names the hash function the proof was built with.
	// Empty for records written before it was tracked.
	Hasher string `json:"hasher,omitempty"`

	// Root is the digest the proof reconstructs to. Verifiers holding only the
	// proof compare against this value.
	Root hexutil.Bytes `json:"root,omitempty"`

	// CreatedAt is the Unix timestamp when the proof was issued.
	CreatedAt int64 `json:"createdAt"`
}

// NewProofRecord wraps proof in a record with a fresh ID.
func NewProofRecord(rootName string, index int32, proof *merkle.Proof) *ProofRecord {
	return &ProofRecord{
		ID:        uuid.New(),
		RootName:  rootName,
		Index:     index,
		Proof:     proof,
		CreatedAt: time.Now().Unix(),
	}
}

// Validate checks that a record can be stored.
func (p *ProofRecord) Validate() error {
	if p == nil {
		return fmt.Errorf("proof record cannot be nil")
	}
	if p.ID == uuid.Nil {
		return fmt.Errorf("proof ID cannot be empty")
	}
	if p.Proof == nil {
		return fmt.Errorf("proof cannot be nil")
	}
	return nil
}

// Clone returns a deep copy of the record.
func (p *ProofRecord) Clone() *ProofRecord {
	if p == nil {
		return nil
	}
	c := *p
	c.Proof = p.Proof.Clone()
	if p.Root != nil {
		c.Root = append(hexutil.Bytes(nil), p.Root...)
	}
	return &c
}

// SortRootRecords orders roots by name.
func SortRootRecords(records []*RootRecord) {
	sort.Slice(records, func(i, j int) bool {
		return records[i].Name < records[j].Name
	})
}

// SortProofRecords orders proofs by leaf index, then by creation time.
func SortProofRecords(records []*ProofRecord) {
	sort.SliceStable(records, func(i, j int) bool {
		if records[i].Index != records[j].Index {
			return records[i].Index < records[j].Index
		}
		return records[i].CreatedAt < records[j].CreatedAt
	})
}
