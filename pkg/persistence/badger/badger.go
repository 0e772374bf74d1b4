package badger

import (
	"context"
	"errors"
	"fmt"
	"path/filepath"
	"sync"
	"time"

	badgerdb "github.com/dgraph-io/badger/v3"
	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/Layr-Labs/eigenx-merkle-go/pkg/persistence"
)

// Key prefixes for namespacing
const (
	keyPrefixRoot        = "root:"
	keyPrefixProof       = "proof:"
	keyPrefixProofByRoot = "proofidx:"
	keySchemaVersion     = "metadata:schema_version"
	currentSchemaVersion = "v1"
)

const gcInterval = 5 * time.Minute

// BadgerPersistence is a disk-backed persistence implementation using Badger.
// Published roots survive restarts of the CLI.
type BadgerPersistence struct {
	db       *badgerdb.DB
	logger   *zap.Logger
	gcCancel context.CancelFunc
	gcWg     sync.WaitGroup
	mu       sync.RWMutex
	closed   bool
}

// NewBadgerPersistence creates a new Badger-backed persistence layer.
// The database is opened at the specified path with SyncWrites enabled for durability.
// A background goroutine is started for value log garbage collection.
func NewBadgerPersistence(dataPath string, logger *zap.Logger) (*BadgerPersistence, error) {
	if logger == nil {
		logger = zap.NewNop()
	}

	absPath, err := filepath.Abs(dataPath)
	if err != nil {
		return nil, fmt.Errorf("failed to resolve absolute path: %w", err)
	}

	opts := badgerdb.DefaultOptions(absPath)
	opts.Logger = newBadgerLoggerAdapter(logger)
	opts.SyncWrites = true
	opts.CompactL0OnClose = true
	opts.NumVersionsToKeep = 1

	db, err := badgerdb.Open(opts)
	if err != nil {
		return nil, fmt.Errorf("failed to open badger database at %s: %w", absPath, err)
	}

	bp := &BadgerPersistence{
		db:     db,
		logger: logger,
	}

	if err := bp.initSchema(); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("failed to initialize schema: %w", err)
	}

	ctx, cancel := context.WithCancel(context.Background())
	bp.gcCancel = cancel
	bp.gcWg.Add(1)
	go bp.runGC(ctx)

	logger.Sugar().Debugw("Badger persistence initialized", "path", absPath)

	return bp, nil
}

// initSchema initializes or validates the schema version
func (b *BadgerPersistence) initSchema() error {
	return b.db.Update(func(txn *badgerdb.Txn) error {
		item, err := txn.Get([]byte(keySchemaVersion))
		if errors.Is(err, badgerdb.ErrKeyNotFound) {
			return txn.Set([]byte(keySchemaVersion), []byte(currentSchemaVersion))
		}
		if err != nil {
			return fmt.Errorf("failed to read schema version: %w", err)
		}

		existingVersion, err := item.ValueCopy(nil)
		if err != nil {
			return fmt.Errorf("failed to read schema version value: %w", err)
		}

		if string(existingVersion) != currentSchemaVersion {
			return fmt.Errorf("unsupported schema version: %s (expected: %s)", existingVersion, currentSchemaVersion)
		}

		return nil
	})
}

// runGC runs periodic value log garbage collection in the background
func (b *BadgerPersistence) runGC(ctx context.Context) {
	defer b.gcWg.Done()

	ticker := time.NewTicker(gcInterval)
	defer ticker.Stop()

	for {
		select {
		case <-ticker.C:
			err := b.db.RunValueLogGC(0.5)
			if err != nil && !errors.Is(err, badgerdb.ErrNoRewrite) {
				b.logger.Sugar().Warnw("Badger GC error", "error", err)
			}
		case <-ctx.Done():
			return
		}
	}
}

func rootKey(name string) []byte {
	return []byte(keyPrefixRoot + name)
}

func proofKey(id uuid.UUID) []byte {
	return []byte(keyPrefixProof + id.String())
}

// proofIndexPrefix is the key prefix under which the IDs of every proof issued
// against rootName are indexed. The NUL separator keeps "a" from matching "ab".
func proofIndexPrefix(rootName string) []byte {
	return []byte(keyPrefixProofByRoot + rootName + "\x00")
}

func proofIndexKey(rootName string, id uuid.UUID) []byte {
	return append(proofIndexPrefix(rootName), id.String()...)
}

// get copies the value stored at key, returning nil when it is absent.
func get(txn *badgerdb.Txn, key []byte) ([]byte, error) {
	item, err := txn.Get(key)
	if errors.Is(err, badgerdb.ErrKeyNotFound) {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	return item.ValueCopy(nil)
}

func (b *BadgerPersistence) checkOpen() error {
	if b.closed {
		return fmt.Errorf("persistence layer is closed")
	}
	return nil
}

// SaveRoot persists a root record
func (b *BadgerPersistence) SaveRoot(record *persistence.RootRecord) error {
	if err := record.Validate(); err != nil {
		return fmt.Errorf("cannot save root: %w", err)
	}

	b.mu.RLock()
	defer b.mu.RUnlock()

	if err := b.checkOpen(); err != nil {
		return err
	}

	data, err := persistence.MarshalRootRecord(record)
	if err != nil {
		return fmt.Errorf("failed to marshal RootRecord: %w", err)
	}

	return b.db.Update(func(txn *badgerdb.Txn) error {
		return txn.Set(rootKey(record.Name), data)
	})
}

// LoadRoot retrieves a root record by name
func (b *BadgerPersistence) LoadRoot(name string) (*persistence.RootRecord, error) {
	b.mu.RLock()
	defer b.mu.RUnlock()

	if err := b.checkOpen(); err != nil {
		return nil, err
	}

	var data []byte
	err := b.db.View(func(txn *badgerdb.Txn) error {
		var err error
		data, err = get(txn, rootKey(name))
		return err
	})
	if err != nil {
		return nil, fmt.Errorf("failed to load RootRecord: %w", err)
	}

	if data == nil {
		return nil, nil // Not found
	}

	record, err := persistence.UnmarshalRootRecord(data)
	if err != nil {
		return nil, fmt.Errorf("failed to unmarshal RootRecord: %w", err)
	}

	return record, nil
}

// ListRoots returns all root records sorted by name
func (b *BadgerPersistence) ListRoots() ([]*persistence.RootRecord, error) {
	b.mu.RLock()
	defer b.mu.RUnlock()

	if err := b.checkOpen(); err != nil {
		return nil, err
	}

	roots := make([]*persistence.RootRecord, 0)

	err := b.db.View(func(txn *badgerdb.Txn) error {
		opts := badgerdb.DefaultIteratorOptions
		opts.Prefix = []byte(keyPrefixRoot)

		it := txn.NewIterator(opts)
		defer it.Close()

		for it.Rewind(); it.Valid(); it.Next() {
			item := it.Item()

			data, err := item.ValueCopy(nil)
			if err != nil {
				return fmt.Errorf("failed to read value: %w", err)
			}

			record, err := persistence.UnmarshalRootRecord(data)
			if err != nil {
				b.logger.Sugar().Warnw("Failed to unmarshal RootRecord, skipping",
					"key", string(item.Key()), "error", err)
				continue
			}

			roots = append(roots, record)
		}

		return nil
	})
	if err != nil {
		return nil, fmt.Errorf("failed to list RootRecords: %w", err)
	}

	// Keys iterate in byte order already; sort anyway so the contract does not depend on it
	persistence.SortRootRecords(roots)

	return roots, nil
}

// DeleteRoot removes a root record
func (b *BadgerPersistence) DeleteRoot(name string) error {
	b.mu.RLock()
	defer b.mu.RUnlock()

	if err := b.checkOpen(); err != nil {
		return err
	}

	return b.db.Update(func(txn *badgerdb.Txn) error {
		return txn.Delete(rootKey(name))
	})
}

// SaveProof persists a proof record and indexes it under its root name
func (b *BadgerPersistence) SaveProof(record *persistence.ProofRecord) error {
	if err := record.Validate(); err != nil {
		return fmt.Errorf("cannot save proof: %w", err)
	}

	b.mu.RLock()
	defer b.mu.RUnlock()

	if err := b.checkOpen(); err != nil {
		return err
	}

	data, err := persistence.MarshalProofRecord(record)
	if err != nil {
		return fmt.Errorf("failed to marshal ProofRecord: %w", err)
	}

	return b.db.Update(func(txn *badgerdb.Txn) error {
		// Drop the index entry of a previous record that pointed at a different root
		existing, err := get(txn, proofKey(record.ID))
		if err != nil {
			return err
		}
		if existing != nil {
			prev, err := persistence.UnmarshalProofRecord(existing)
			if err == nil && prev.RootName != record.RootName {
				if err := txn.Delete(proofIndexKey(prev.RootName, prev.ID)); err != nil {
					return err
				}
			}
		}

		if err := txn.Set(proofKey(record.ID), data); err != nil {
			return err
		}
		return txn.Set(proofIndexKey(record.RootName, record.ID), nil)
	})
}

// LoadProof retrieves a proof record by ID
func (b *BadgerPersistence) LoadProof(id uuid.UUID) (*persistence.ProofRecord, error) {
	b.mu.RLock()
	defer b.mu.RUnlock()

	if err := b.checkOpen(); err != nil {
		return nil, err
	}

	var data []byte
	err := b.db.View(func(txn *badgerdb.Txn) error {
		var err error
		data, err = get(txn, proofKey(id))
		return err
	})
	if err != nil {
		return nil, fmt.Errorf("failed to load ProofRecord: %w", err)
	}

	if data == nil {
		return nil, nil
	}

	record, err := persistence.UnmarshalProofRecord(data)
	if err != nil {
		return nil, fmt.Errorf("failed to unmarshal ProofRecord: %w", err)
	}

	return record, nil
}

// ListProofs returns the proofs issued against rootName sorted by index
func (b *BadgerPersistence) ListProofs(rootName string) ([]*persistence.ProofRecord, error) {
	b.mu.RLock()
	defer b.mu.RUnlock()

	if err := b.checkOpen(); err != nil {
		return nil, err
	}

	proofs := make([]*persistence.ProofRecord, 0)

	err := b.db.View(func(txn *badgerdb.Txn) error {
		prefix := proofIndexPrefix(rootName)

		opts := badgerdb.DefaultIteratorOptions
		opts.Prefix = prefix
		opts.PrefetchValues = false

		it := txn.NewIterator(opts)
		defer it.Close()

		for it.Rewind(); it.Valid(); it.Next() {
			key := it.Item().KeyCopy(nil)

			id, err := uuid.ParseBytes(key[len(prefix):])
			if err != nil {
				b.logger.Sugar().Warnw("Invalid proof index key, skipping", "key", string(key), "error", err)
				continue
			}

			data, err := get(txn, proofKey(id))
			if err != nil {
				return fmt.Errorf("failed to read proof %s: %w", id, err)
			}
			if data == nil {
				continue
			}

			record, err := persistence.UnmarshalProofRecord(data)
			if err != nil {
				b.logger.Sugar().Warnw("Failed to unmarshal ProofRecord, skipping",
					"id", id.String(), "error", err)
				continue
			}

			proofs = append(proofs, record)
		}

		return nil
	})
	if err != nil {
		return nil, fmt.Errorf("failed to list ProofRecords: %w", err)
	}

	persistence.SortProofRecords(proofs)

	return proofs, nil
}

// DeleteProof removes a proof record and its index entry
func (b *BadgerPersistence) DeleteProof(id uuid.UUID) error {
	b.mu.RLock()
	defer b.mu.RUnlock()

	if err := b.checkOpen(); err != nil {
		return err
	}

	return b.db.Update(func(txn *badgerdb.Txn) error {
		existing, err := get(txn, proofKey(id))
		if err != nil {
			return err
		}
		if existing == nil {
			return nil
		}

		if prev, err := persistence.UnmarshalProofRecord(existing); err == nil {
			if err := txn.Delete(proofIndexKey(prev.RootName, id)); err != nil {
				return err
			}
		}
		return txn.Delete(proofKey(id))
	})
}

// Close shuts down the persistence layer
func (b *BadgerPersistence) Close() error {
	b.mu.Lock()
	if b.closed {
		b.mu.Unlock()
		return nil // Already closed, idempotent
	}
	b.closed = true
	b.mu.Unlock()

	if b.gcCancel != nil {
		b.gcCancel()
	}
	b.gcWg.Wait()

	if err := b.db.Close(); err != nil {
		return fmt.Errorf("failed to close badger database: %w", err)
	}

	b.logger.Sugar().Debug("Badger persistence closed")
	return nil
}

// HealthCheck verifies the persistence layer is operational
func (b *BadgerPersistence) HealthCheck() error {
	b.mu.RLock()
	defer b.mu.RUnlock()

	if err := b.checkOpen(); err != nil {
		return err
	}

	return b.db.View(func(txn *badgerdb.Txn) error {
		_, err := txn.Get([]byte(keySchemaVersion))
		if errors.Is(err, badgerdb.ErrKeyNotFound) {
			return fmt.Errorf("schema version not found - database may be corrupted")
		}
		return err
	})
}
