// Package persistenceTest holds behavior tests shared by every IRootPersistence backend.
package persistenceTest

import (
	"fmt"
	"sync"
	"testing"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/Layr-Labs/eigenx-merkle-go/pkg/merkle"
	"github.com/Layr-Labs/eigenx-merkle-go/pkg/persistence"
)

// Factory returns a fresh, empty backend. The suite closes it.
type Factory func(t *testing.T) persistence.IRootPersistence

// NewRootRecord builds a root record over a few synthetic blocks.
func NewRootRecord(name string, leaves int) *persistence.RootRecord {
	blocks := make([][]byte, leaves)
	for i := range blocks {
		blocks[i] = []byte(fmt.Sprintf("%s-%d", name, i))
	}
	return &persistence.RootRecord{
		Name:      name,
		Root:      merkle.Root(blocks),
		Hasher:    merkle.HasherNameSHA256,
		LeafCount: uint64(leaves),
		CreatedAt: 1234567890,
	}
}

// NewProofRecord builds a proof record for index against rootName.
func NewProofRecord(rootName string, index int32) *persistence.ProofRecord {
	blocks := [][]byte{{1, 2, 3}, {4, 5, 6}, {7, 8, 9}}
	return persistence.NewProofRecord(rootName, index, merkle.ProveLeaf(blocks, index))
}

// RunSuite exercises the IRootPersistence contract against the backend built by newStore.
func RunSuite(t *testing.T, newStore Factory) {
	t.Run("SaveAndLoadRoot", func(t *testing.T) {
		store := newStore(t)
		defer func() { _ = store.Close() }()

		record := NewRootRecord("release-1", 5)
		require.NoError(t, store.SaveRoot(record))

		loaded, err := store.LoadRoot("release-1")
		require.NoError(t, err)
		require.NotNil(t, loaded)
		assert.Equal(t, record, loaded)
	})

	t.Run("LoadRoot_NotFound", func(t *testing.T) {
		store := newStore(t)
		defer func() { _ = store.Close() }()

		loaded, err := store.LoadRoot("missing")
		require.NoError(t, err)
		assert.Nil(t, loaded)
	})

	t.Run("SaveRoot_Invalid", func(t *testing.T) {
		store := newStore(t)
		defer func() { _ = store.Close() }()

		require.Error(t, store.SaveRoot(nil))
		require.Error(t, store.SaveRoot(&persistence.RootRecord{}))
	})

	t.Run("SaveRoot_Overwrites", func(t *testing.T) {
		store := newStore(t)
		defer func() { _ = store.Close() }()

		require.NoError(t, store.SaveRoot(NewRootRecord("release-1", 3)))
		updated := NewRootRecord("release-1", 7)
		require.NoError(t, store.SaveRoot(updated))

		loaded, err := store.LoadRoot("release-1")
		require.NoError(t, err)
		assert.Equal(t, updated, loaded)

		listed, err := store.ListRoots()
		require.NoError(t, err)
		assert.Len(t, listed, 1)
	})

	t.Run("ListRoots_Sorted", func(t *testing.T) {
		store := newStore(t)
		defer func() { _ = store.Close() }()

		for _, name := range []string{"charlie", "alpha", "bravo"} {
			require.NoError(t, store.SaveRoot(NewRootRecord(name, 2)))
		}

		listed, err := store.ListRoots()
		require.NoError(t, err)
		require.Len(t, listed, 3)
		assert.Equal(t, "alpha", listed[0].Name)
		assert.Equal(t, "bravo", listed[1].Name)
		assert.Equal(t, "charlie", listed[2].Name)
	})

	t.Run("ListRoots_Empty", func(t *testing.T) {
		store := newStore(t)
		defer func() { _ = store.Close() }()

		listed, err := store.ListRoots()
		require.NoError(t, err)
		assert.NotNil(t, listed)
		assert.Empty(t, listed)
	})

	t.Run("DeleteRoot", func(t *testing.T) {
		store := newStore(t)
		defer func() { _ = store.Close() }()

		require.NoError(t, store.SaveRoot(NewRootRecord("release-1", 2)))
		require.NoError(t, store.DeleteRoot("release-1"))

		loaded, err := store.LoadRoot("release-1")
		require.NoError(t, err)
		assert.Nil(t, loaded)

		listed, err := store.ListRoots()
		require.NoError(t, err)
		assert.Empty(t, listed)

		// Idempotent
		require.NoError(t, store.DeleteRoot("release-1"))
	})

	t.Run("SaveAndLoadProof", func(t *testing.T) {
		store := newStore(t)
		defer func() { _ = store.Close() }()

		record := NewProofRecord("release-1", 1)
		require.NoError(t, store.SaveProof(record))

		loaded, err := store.LoadProof(record.ID)
		require.NoError(t, err)
		require.NotNil(t, loaded)
		assert.Equal(t, record.ID, loaded.ID)
		assert.Equal(t, record.RootName, loaded.RootName)
		assert.Equal(t, record.Index, loaded.Index)
		assert.Equal(t, record.CreatedAt, loaded.CreatedAt)
		assert.True(t, record.Proof.Equal(loaded.Proof))

		root := merkle.RootFromProofAndLeaf(loaded.Proof.Leaf, loaded.Proof)
		assert.True(t, merkle.VerifyLeaf(root, record.Proof.Leaf, record.Proof))
	})

	t.Run("LoadProof_NotFound", func(t *testing.T) {
		store := newStore(t)
		defer func() { _ = store.Close() }()

		loaded, err := store.LoadProof(uuid.New())
		require.NoError(t, err)
		assert.Nil(t, loaded)
	})

	t.Run("SaveProof_Invalid", func(t *testing.T) {
		store := newStore(t)
		defer func() { _ = store.Close() }()

		require.Error(t, store.SaveProof(nil))
		require.Error(t, store.SaveProof(&persistence.ProofRecord{ID: uuid.New()}))
	})

	t.Run("ListProofs_ByRoot", func(t *testing.T) {
		store := newStore(t)
		defer func() { _ = store.Close() }()

		for _, index := range []int32{5, 0, 2} {
			require.NoError(t, store.SaveProof(NewProofRecord("release-1", index)))
		}
		require.NoError(t, store.SaveProof(NewProofRecord("release-2", 1)))

		listed, err := store.ListProofs("release-1")
		require.NoError(t, err)
		require.Len(t, listed, 3)
		assert.Equal(t, int32(0), listed[0].Index)
		assert.Equal(t, int32(2), listed[1].Index)
		assert.Equal(t, int32(5), listed[2].Index)

		other, err := store.ListProofs("release-2")
		require.NoError(t, err)
		assert.Len(t, other, 1)

		none, err := store.ListProofs("release-3")
		require.NoError(t, err)
		assert.NotNil(t, none)
		assert.Empty(t, none)
	})

	t.Run("DeleteProof", func(t *testing.T) {
		store := newStore(t)
		defer func() { _ = store.Close() }()

		record := NewProofRecord("release-1", 1)
		require.NoError(t, store.SaveProof(record))
		require.NoError(t, store.DeleteProof(record.ID))

		loaded, err := store.LoadProof(record.ID)
		require.NoError(t, err)
		assert.Nil(t, loaded)

		listed, err := store.ListProofs("release-1")
		require.NoError(t, err)
		assert.Empty(t, listed)

		// Idempotent
		require.NoError(t, store.DeleteProof(record.ID))
	})

	t.Run("DeleteRoot_KeepsProofs", func(t *testing.T) {
		store := newStore(t)
		defer func() { _ = store.Close() }()

		require.NoError(t, store.SaveRoot(NewRootRecord("release-1", 3)))
		record := NewProofRecord("release-1", 1)
		require.NoError(t, store.SaveProof(record))
		require.NoError(t, store.DeleteRoot("release-1"))

		loaded, err := store.LoadProof(record.ID)
		require.NoError(t, err)
		assert.NotNil(t, loaded)
	})

	t.Run("Mutation_Isolated", func(t *testing.T) {
		store := newStore(t)
		defer func() { _ = store.Close() }()

		record := NewRootRecord("release-1", 3)
		require.NoError(t, store.SaveRoot(record))
		record.Root[0] ^= 0xff

		loaded, err := store.LoadRoot("release-1")
		require.NoError(t, err)
		assert.NotEqual(t, record.Root, loaded.Root)

		loaded.Root[1] ^= 0xff
		again, err := store.LoadRoot("release-1")
		require.NoError(t, err)
		assert.NotEqual(t, loaded.Root, again.Root)
	})

	t.Run("HealthCheck", func(t *testing.T) {
		store := newStore(t)
		require.NoError(t, store.HealthCheck())

		require.NoError(t, store.Close())
		err := store.HealthCheck()
		require.Error(t, err)
		assert.Contains(t, err.Error(), "closed")
	})

	t.Run("Close", func(t *testing.T) {
		store := newStore(t)
		require.NoError(t, store.Close())

		// Idempotent
		require.NoError(t, store.Close())

		err := store.SaveRoot(NewRootRecord("release-1", 1))
		require.Error(t, err)
		assert.Contains(t, err.Error(), "closed")

		_, err = store.LoadRoot("release-1")
		require.Error(t, err)

		_, err = store.ListRoots()
		require.Error(t, err)

		require.Error(t, store.DeleteRoot("release-1"))
		require.Error(t, store.SaveProof(NewProofRecord("release-1", 0)))

		_, err = store.LoadProof(uuid.New())
		require.Error(t, err)

		_, err = store.ListProofs("release-1")
		require.Error(t, err)

		require.Error(t, store.DeleteProof(uuid.New()))
	})

	t.Run("ThreadSafety", func(t *testing.T) {
		store := newStore(t)
		defer func() { _ = store.Close() }()

		var wg sync.WaitGroup
		numGoroutines := 8
		numOperations := 25

		// Concurrent writes
		for i := 0; i < numGoroutines; i++ {
			wg.Add(1)
			go func(id int) {
				defer wg.Done()
				for j := 0; j < numOperations; j++ {
					name := fmt.Sprintf("root-%d-%d", id, j)
					assert.NoError(t, store.SaveRoot(NewRootRecord(name, 2)))
					assert.NoError(t, store.SaveProof(NewProofRecord(name, int32(j%3))))
				}
			}(i)
		}

		// Concurrent reads
		for i := 0; i < numGoroutines; i++ {
			wg.Add(1)
			go func(id int) {
				defer wg.Done()
				for j := 0; j < numOperations; j++ {
					_, err := store.LoadRoot(fmt.Sprintf("root-%d-%d", id, j))
					assert.NoError(t, err)
					_, err = store.ListRoots()
					assert.NoError(t, err)
				}
			}(i)
		}

		wg.Wait()

		listed, err := store.ListRoots()
		require.NoError(t, err)
		assert.Len(t, listed, numGoroutines*numOperations)
	})
}
