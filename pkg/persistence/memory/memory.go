package memory

import (
	"fmt"
	"sync"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/Layr-Labs/eigenx-merkle-go/pkg/persistence"
)

// MemoryPersistence is an in-memory implementation of IRootPersistence.
// This implementation is intended for TESTING and one-shot CLI runs.
//
// All data is stored in memory and will be lost when the process exits.
// Thread-safe using sync.RWMutex for concurrent access.
// Deep copies data to prevent external mutation.
type MemoryPersistence struct {
	mu sync.RWMutex

	// Root storage: name -> RootRecord
	roots map[string]*persistence.RootRecord

	// Proof storage: id -> ProofRecord
	proofs map[uuid.UUID]*persistence.ProofRecord

	// Closed flag
	closed bool
}

// NewMemoryPersistence creates a new in-memory persistence layer.
// Published roots do not survive the process.
func NewMemoryPersistence(logger *zap.Logger) *MemoryPersistence {
	if logger != nil {
		logger.Sugar().Debugw("Using in-memory persistence - published roots will be lost on exit",
			"hint", "set MERKLE_PERSISTENCE=badger or redis to keep them",
		)
	}

	return &MemoryPersistence{
		roots:  make(map[string]*persistence.RootRecord),
		proofs: make(map[uuid.UUID]*persistence.ProofRecord),
	}
}

// SaveRoot persists a root record.
func (m *MemoryPersistence) SaveRoot(record *persistence.RootRecord) error {
	if err := record.Validate(); err != nil {
		return fmt.Errorf("cannot save root: %w", err)
	}

	m.mu.Lock()
	defer m.mu.Unlock()

	if m.closed {
		return fmt.Errorf("persistence layer is closed")
	}

	m.roots[record.Name] = record.Clone()
	return nil
}

// LoadRoot retrieves a root record by name.
func (m *MemoryPersistence) LoadRoot(name string) (*persistence.RootRecord, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	if m.closed {
		return nil, fmt.Errorf("persistence layer is closed")
	}

	record, exists := m.roots[name]
	if !exists {
		return nil, nil // Not found is not an error
	}

	return record.Clone(), nil
}

// ListRoots returns all root records sorted by name.
func (m *MemoryPersistence) ListRoots() ([]*persistence.RootRecord, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	if m.closed {
		return nil, fmt.Errorf("persistence layer is closed")
	}

	result := make([]*persistence.RootRecord, 0, len(m.roots))
	for _, record := range m.roots {
		result = append(result, record.Clone())
	}
	persistence.SortRootRecords(result)

	return result, nil
}

// DeleteRoot removes a root record.
func (m *MemoryPersistence) DeleteRoot(name string) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	if m.closed {
		return fmt.Errorf("persistence layer is closed")
	}

	delete(m.roots, name)
	return nil
}

// SaveProof persists a proof record.
func (m *MemoryPersistence) SaveProof(record *persistence.ProofRecord) error {
	if err := record.Validate(); err != nil {
		return fmt.Errorf("cannot save proof: %w", err)
	}

	m.mu.Lock()
	defer m.mu.Unlock()

	if m.closed {
		return fmt.Errorf("persistence layer is closed")
	}

	m.proofs[record.ID] = record.Clone()
	return nil
}

// LoadProof retrieves a proof record by ID.
func (m *MemoryPersistence) LoadProof(id uuid.UUID) (*persistence.ProofRecord, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	if m.closed {
		return nil, fmt.Errorf("persistence layer is closed")
	}

	record, exists := m.proofs[id]
	if !exists {
		return nil, nil
	}

	return record.Clone(), nil
}

// ListProofs returns the proofs issued against rootName sorted by index.
func (m *MemoryPersistence) ListProofs(rootName string) ([]*persistence.ProofRecord, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	if m.closed {
		return nil, fmt.Errorf("persistence layer is closed")
	}

	result := make([]*persistence.ProofRecord, 0)
	for _, record := range m.proofs {
		if record.RootName == rootName {
			result = append(result, record.Clone())
		}
	}
	persistence.SortProofRecords(result)

	return result, nil
}

// DeleteProof removes a proof record.
func (m *MemoryPersistence) DeleteProof(id uuid.UUID) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	if m.closed {
		return fmt.Errorf("persistence layer is closed")
	}

	delete(m.proofs, id)
	return nil
}

// Close shuts down the persistence layer.
func (m *MemoryPersistence) Close() error {
	m.mu.Lock()
	defer m.mu.Unlock()

	m.closed = true
	return nil
}

// HealthCheck verifies the persistence layer is operational.
func (m *MemoryPersistence) HealthCheck() error {
	m.mu.RLock()
	defer m.mu.RUnlock()

	if m.closed {
		return fmt.Errorf("persistence layer is closed")
	}

	return nil
}
