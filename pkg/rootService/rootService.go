package rootService

import (
	"bytes"
	"fmt"
	"io"
	"time"

	"github.com/google/uuid"
	"github.com/pkg/errors"
	"go.uber.org/zap"

	"github.com/Layr-Labs/eigenx-merkle-go/pkg/blocks"
	"github.com/Layr-Labs/eigenx-merkle-go/pkg/merkle"
	"github.com/Layr-Labs/eigenx-merkle-go/pkg/persistence"
)

var (
	ErrRootNotFound  = errors.New("root not found")
	ErrProofNotFound = errors.New("proof not found")
	ErrEmptyInput    = errors.New("empty block sequence")
	ErrRootMismatch  = errors.New("blocks do not match published root")
)

// RootResult describes a root computed over a block source.
type RootResult struct {
	Root      []byte
	LeafCount uint64
	Hasher    string
	Elapsed   time.Duration
}

// RootService computes roots and proofs and keeps published ones in a store.
type RootService struct {
	store  persistence.IRootPersistence
	hasher merkle.Hasher
	logger *zap.Logger
}

// NewRootService creates a root service. A nil hasher selects SHA-256.
func NewRootService(store persistence.IRootPersistence, hasher merkle.Hasher, logger *zap.Logger) (*RootService, error) {
	if store == nil {
		return nil, fmt.Errorf("store is required")
	}
	if logger == nil {
		return nil, fmt.Errorf("logger is required")
	}
	if hasher == nil {
		hasher = merkle.SHA256Hasher{}
	}

	return &RootService{
		store:  store,
		hasher: hasher,
		logger: logger,
	}, nil
}

// Hasher returns the hash function new roots and proofs are built with.
func (s *RootService) Hasher() merkle.Hasher {
	return s.hasher
}

// ComputeRoot streams src into an accumulator. An empty source yields an empty root.
func (s *RootService) ComputeRoot(src blocks.Source) (*RootResult, error) {
	start := time.Now()

	acc := merkle.NewAccumulator(merkle.WithHasher(s.hasher))
	if _, err := blocks.Accumulate(src, acc); err != nil {
		return nil, errors.Wrap(err, "failed to compute root")
	}

	result := &RootResult{
		Root:      acc.Finalize(),
		LeafCount: acc.LeafCount(),
		Hasher:    s.hasher.Name(),
		Elapsed:   time.Since(start),
	}

	s.logger.Sugar().Debugw("Computed root",
		"root", fmt.Sprintf("%x", result.Root),
		"leaves", result.LeafCount,
		"hasher", result.Hasher,
		"elapsed", result.Elapsed,
	)

	return result, nil
}

// PublishRoot computes the root of src and stores it under name, replacing any previous record.
func (s *RootService) PublishRoot(name string, src blocks.Source) (*persistence.RootRecord, error) {
	if name == "" {
		return nil, fmt.Errorf("root name is required")
	}

	result, err := s.ComputeRoot(src)
	if err != nil {
		return nil, err
	}
	if result.LeafCount == 0 {
		return nil, errors.Wrapf(ErrEmptyInput, "cannot publish root %q", name)
	}

	record := &persistence.RootRecord{
		Name:      name,
		Root:      result.Root,
		Hasher:    result.Hasher,
		LeafCount: result.LeafCount,
		CreatedAt: time.Now().Unix(),
	}
	if err := s.store.SaveRoot(record); err != nil {
		return nil, errors.Wrapf(err, "failed to publish root %q", name)
	}

	s.logger.Sugar().Infow("Published root",
		"name", name,
		"root", record.Root.String(),
		"leaves", record.LeafCount,
	)

	return record, nil
}

// LoadRoot returns the root published under name.
func (s *RootService) LoadRoot(name string) (*persistence.RootRecord, error) {
	record, err := s.store.LoadRoot(name)
	if err != nil {
		return nil, errors.Wrapf(err, "failed to load root %q", name)
	}
	if record == nil {
		return nil, errors.Wrapf(ErrRootNotFound, "root %q", name)
	}
	return record, nil
}

// ListRoots returns every published root sorted by name.
func (s *RootService) ListRoots() ([]*persistence.RootRecord, error) {
	records, err := s.store.ListRoots()
	if err != nil {
		return nil, errors.Wrap(err, "failed to list roots")
	}
	return records, nil
}

// DeleteRoot removes a published root. Proofs issued against it are kept.
func (s *RootService) DeleteRoot(name string) error {
	if err := s.store.DeleteRoot(name); err != nil {
		return errors.Wrapf(err, "failed to delete root %q", name)
	}
	return nil
}

// SubRoot returns the root of the first 2^level blocks of src.
// Only that prefix is read from src.
func (s *RootService) SubRoot(src blocks.Source, level int32) ([]byte, error) {
	if level < 0 || level > merkle.MaxLevel {
		return nil, fmt.Errorf("level %d out of range [0, %d]", level, merkle.MaxLevel)
	}

	limit := uint64(1) << uint(level)
	acc := merkle.NewAccumulator(merkle.WithHasher(s.hasher))
	for acc.LeafCount() < limit {
		b, err := src.Next()
		if errors.Is(err, io.EOF) {
			break
		}
		if err != nil {
			return nil, errors.Wrapf(err, "failed to read block %d", acc.LeafCount())
		}
		acc.Add(b)
	}

	return acc.Finalize(), nil
}

// ProveLeaf builds a proof for the first block of blks at index and stores it.
//
// When rootName is set, the root must have been published with the same hasher over the
// same blocks: the proof's top subroot has to equal the published root.
func (s *RootService) ProveLeaf(blks [][]byte, index int32, rootName string) (*persistence.ProofRecord, error) {
	if len(blks) == 0 {
		return nil, errors.Wrap(ErrEmptyInput, "cannot prove a leaf")
	}

	var published *persistence.RootRecord
	if rootName != "" {
		root, err := s.LoadRoot(rootName)
		if err != nil {
			return nil, err
		}
		if root.Hasher != s.hasher.Name() {
			return nil, fmt.Errorf("root %q was computed with %s, not %s", rootName, root.Hasher, s.hasher.Name())
		}
		published = root
	}

	proof := merkle.ProveLeafWith(s.hasher, blks, index)
	if published != nil && !bytes.Equal(subRootAt(proof, merkle.MaxLevel), published.Root) {
		return nil, errors.Wrapf(ErrRootMismatch, "root %q", rootName)
	}

	record := persistence.NewProofRecord(rootName, index, proof)
	record.Hasher = s.hasher.Name()
	record.Root = merkle.RootFromProofAndLeafWith(s.hasher, proof.Leaf, proof)
	if err := s.store.SaveProof(record); err != nil {
		return nil, errors.Wrap(err, "failed to save proof")
	}

	s.logger.Sugar().Infow("Issued proof",
		"id", record.ID.String(),
		"root_name", rootName,
		"index", index,
		"pre", len(proof.Pre),
		"post", len(proof.Post),
	)

	return record, nil
}

// LoadProof returns a previously issued proof.
func (s *RootService) LoadProof(id uuid.UUID) (*persistence.ProofRecord, error) {
	record, err := s.store.LoadProof(id)
	if err != nil {
		return nil, errors.Wrapf(err, "failed to load proof %s", id)
	}
	if record == nil {
		return nil, errors.Wrapf(ErrProofNotFound, "proof %s", id)
	}
	return record, nil
}

// ListProofs returns the proofs issued against rootName sorted by index.
func (s *RootService) ListProofs(rootName string) ([]*persistence.ProofRecord, error) {
	records, err := s.store.ListProofs(rootName)
	if err != nil {
		return nil, errors.Wrapf(err, "failed to list proofs for root %q", rootName)
	}
	return records, nil
}

// VerifyLeaf reports whether proof, applied to its own leaf, rebuilds knownRoot
// using the service's hasher.
func (s *RootService) VerifyLeaf(knownRoot []byte, proof *merkle.Proof) bool {
	if proof == nil {
		return false
	}
	return merkle.VerifyLeafWith(s.hasher, knownRoot, proof.Leaf, proof)
}

// VerifyRecord is VerifyLeaf for an issued proof, using the hasher the proof was built with.
// Records that do not name a hasher are checked with the service's hasher.
func (s *RootService) VerifyRecord(knownRoot []byte, record *persistence.ProofRecord) (bool, error) {
	if record == nil || record.Proof == nil {
		return false, nil
	}

	h, err := s.recordHasher(record)
	if err != nil {
		return false, err
	}
	return merkle.VerifyLeafWith(h, knownRoot, record.Proof.Leaf, record.Proof), nil
}

// VerifyAgainst checks that proof is the proof issued under id against the root published
// as rootName.
//
// A proof never rebuilds the sequence root itself, so the check goes through the issued
// record. The stored record must name rootName and match proof, its levels must be well
// formed for the recorded index, and the proof must rebuild the recorded root with the
// published root's hasher. The top subroot must equal the published root and the level 0
// subroot must equal the leaf. A nil proof checks the stored one.
func (s *RootService) VerifyAgainst(rootName string, id uuid.UUID, proof *merkle.Proof) (bool, error) {
	root, err := s.LoadRoot(rootName)
	if err != nil {
		return false, err
	}
	h, err := merkle.HasherByName(root.Hasher)
	if err != nil {
		return false, errors.Wrapf(err, "root %q", rootName)
	}

	issued, err := s.LoadProof(id)
	if err != nil {
		return false, err
	}
	if proof == nil {
		proof = issued.Proof
	}

	ok := s.matchesIssued(rootName, root, h, issued, proof)

	s.logger.Sugar().Debugw("Verified proof against published root",
		"root_name", rootName,
		"proof_id", id.String(),
		"valid", ok,
	)

	return ok, nil
}

func (s *RootService) matchesIssued(rootName string, root *persistence.RootRecord, h merkle.Hasher, issued *persistence.ProofRecord, proof *merkle.Proof) bool {
	if issued.RootName != rootName || !proof.Equal(issued.Proof) {
		return false
	}
	if issued.Hasher != "" && issued.Hasher != h.Name() {
		return false
	}

	index, ok := merkle.ProofIndex(proof)
	if !ok || index != issued.Index {
		return false
	}

	return len(root.Root) > 0 && len(issued.Root) > 0 &&
		merkle.VerifyLeafWith(h, issued.Root, proof.Leaf, proof) &&
		bytes.Equal(subRootAt(proof, merkle.MaxLevel), root.Root) &&
		bytes.Equal(subRootAt(proof, 0), proof.Leaf)
}

// recordHasher resolves the hasher an issued proof was built with.
func (s *RootService) recordHasher(record *persistence.ProofRecord) (merkle.Hasher, error) {
	if record.Hasher == "" {
		return s.hasher, nil
	}
	h, err := merkle.HasherByName(record.Hasher)
	if err != nil {
		return nil, errors.Wrapf(err, "proof %s", record.ID)
	}
	return h, nil
}

// subRootAt returns the digest recorded at level in either half of proof, or nil.
func subRootAt(proof *merkle.Proof, level int32) []byte {
	for _, half := range [][]merkle.SubRoot{proof.Pre, proof.Post} {
		for _, sr := range half {
			if sr.Level == level {
				return sr.SubRoot
			}
		}
	}
	return nil
}
