package persistence

import "github.com/google/uuid"

// IRootPersistence defines the interface for persisting published roots and the proofs
// issued against them. All implementations must be thread-safe.
//
// The interface supports:
// - Published root management (save, load, list, delete)
// - Issued proof management (save, load, list per root, delete)
// - Lifecycle management (close, health check)
type IRootPersistence interface {
	// Root Management

	// SaveRoot persists a root record under its name.
	// Overwrites any existing record with the same name.
	SaveRoot(record *RootRecord) error

	// LoadRoot retrieves a root record by name.
	// Returns nil if the root doesn't exist, error only on storage failure.
	LoadRoot(name string) (*RootRecord, error)

	// ListRoots returns all persisted roots sorted by name (ascending).
	// Returns empty slice if no roots exist, error only on storage failure.
	ListRoots() ([]*RootRecord, error)

	// DeleteRoot removes a root record by name.
	// Idempotent - returns nil if the root doesn't exist.
	// Proofs issued against the root are left in place.
	DeleteRoot(name string) error

	// Proof Management

	// SaveProof persists a proof record under its ID.
	// Overwrites any existing record with the same ID.
	SaveProof(record *ProofRecord) error

	// LoadProof retrieves a proof record by ID.
	// Returns nil if the proof doesn't exist, error only on storage failure.
	LoadProof(id uuid.UUID) (*ProofRecord, error)

	// ListProofs returns the proofs recorded against rootName, sorted by leaf index (ascending).
	// Returns empty slice if none exist, error only on storage failure.
	ListProofs(rootName string) ([]*ProofRecord, error)

	// DeleteProof removes a proof record by ID.
	// Idempotent - returns nil if the proof doesn't exist.
	DeleteProof(id uuid.UUID) error

	// Lifecycle Management

	// Close cleanly shuts down the persistence layer.
	// Idempotent - safe to call multiple times.
	// After Close(), all other operations should return errors.
	Close() error

	// HealthCheck verifies the persistence layer is operational.
	// Returns nil if healthy, error describing the problem if not.
	HealthCheck() error
}
