package badger

import (
	"path/filepath"
	"testing"

	badgerdb "github.com/dgraph-io/badger/v3"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/Layr-Labs/eigenx-merkle-go/pkg/logger"
	"github.com/Layr-Labs/eigenx-merkle-go/pkg/persistence"
	"github.com/Layr-Labs/eigenx-merkle-go/pkg/persistence/persistenceTest"
)

func TestBadgerPersistence(t *testing.T) {
	testLogger, _ := logger.NewLogger(&logger.LoggerConfig{Debug: false})

	persistenceTest.RunSuite(t, func(t *testing.T) persistence.IRootPersistence {
		bp, err := NewBadgerPersistence(t.TempDir(), testLogger)
		require.NoError(t, err)
		return bp
	})
}

func TestBadgerPersistence_Persistence_AcrossRestarts(t *testing.T) {
	tmpDir := t.TempDir()
	testLogger, _ := logger.NewLogger(&logger.LoggerConfig{Debug: false})

	// First instance - save data
	bp1, err := NewBadgerPersistence(tmpDir, testLogger)
	require.NoError(t, err)

	root := persistenceTest.NewRootRecord("release-1", 9)
	require.NoError(t, bp1.SaveRoot(root))

	proof := persistenceTest.NewProofRecord("release-1", 3)
	require.NoError(t, bp1.SaveProof(proof))

	require.NoError(t, bp1.Close())

	// Second instance - verify data persisted
	bp2, err := NewBadgerPersistence(tmpDir, testLogger)
	require.NoError(t, err)
	defer func() { _ = bp2.Close() }()

	loadedRoot, err := bp2.LoadRoot("release-1")
	require.NoError(t, err)
	assert.Equal(t, root, loadedRoot)

	proofs, err := bp2.ListProofs("release-1")
	require.NoError(t, err)
	require.Len(t, proofs, 1)
	assert.Equal(t, proof.ID, proofs[0].ID)
	assert.True(t, proof.Proof.Equal(proofs[0].Proof))
}

func TestBadgerPersistence_ProofIndex_RootPrefix(t *testing.T) {
	bp, err := NewBadgerPersistence(t.TempDir(), nil)
	require.NoError(t, err)
	defer func() { _ = bp.Close() }()

	require.NoError(t, bp.SaveProof(persistenceTest.NewProofRecord("a", 0)))
	require.NoError(t, bp.SaveProof(persistenceTest.NewProofRecord("ab", 1)))

	listed, err := bp.ListProofs("a")
	require.NoError(t, err)
	require.Len(t, listed, 1)
	assert.Equal(t, "a", listed[0].RootName)
}

func TestBadgerPersistence_ProofIndex_Reassigned(t *testing.T) {
	bp, err := NewBadgerPersistence(t.TempDir(), nil)
	require.NoError(t, err)
	defer func() { _ = bp.Close() }()

	record := persistenceTest.NewProofRecord("first", 1)
	require.NoError(t, bp.SaveProof(record))

	record.RootName = "second"
	require.NoError(t, bp.SaveProof(record))

	first, err := bp.ListProofs("first")
	require.NoError(t, err)
	assert.Empty(t, first)

	second, err := bp.ListProofs("second")
	require.NoError(t, err)
	assert.Len(t, second, 1)
}

func TestBadgerPersistence_SchemaVersionMismatch(t *testing.T) {
	tmpDir := t.TempDir()

	db, err := badgerdb.Open(badgerdb.DefaultOptions(tmpDir).WithLogger(nil))
	require.NoError(t, err)
	require.NoError(t, db.Update(func(txn *badgerdb.Txn) error {
		return txn.Set([]byte(keySchemaVersion), []byte("v0"))
	}))
	require.NoError(t, db.Close())

	_, err = NewBadgerPersistence(tmpDir, nil)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "unsupported schema version")
}

func TestBadgerPersistence_InvalidPath(t *testing.T) {
	// A regular file cannot hold a database directory
	tmpDir := t.TempDir()
	bp, err := NewBadgerPersistence(filepath.Join(tmpDir, "db"), nil)
	require.NoError(t, err)
	require.NoError(t, bp.Close())

	_, err = NewBadgerPersistence(filepath.Join(tmpDir, "db", "MANIFEST"), nil)
	require.Error(t, err)
}
