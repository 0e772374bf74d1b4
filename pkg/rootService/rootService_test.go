package rootService

import (
	"encoding/hex"
	"errors"
	"strings"
	"testing"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/Layr-Labs/eigenx-merkle-go/pkg/blocks"
	"github.com/Layr-Labs/eigenx-merkle-go/pkg/merkle"
	"github.com/Layr-Labs/eigenx-merkle-go/pkg/persistence"
	"github.com/Layr-Labs/eigenx-merkle-go/pkg/persistence/memory"
)

func newTestService(t *testing.T, hasher merkle.Hasher) *RootService {
	t.Helper()

	svc, err := NewRootService(memory.NewMemoryPersistence(nil), hasher, zap.NewNop())
	require.NoError(t, err)
	return svc
}

func threeBlocks() [][]byte {
	return [][]byte{{1, 2, 3}, {4, 5, 6}, {7, 8, 9}}
}

func TestNewRootService(t *testing.T) {
	_, err := NewRootService(nil, nil, zap.NewNop())
	require.Error(t, err)

	_, err = NewRootService(memory.NewMemoryPersistence(nil), nil, nil)
	require.Error(t, err)

	svc, err := NewRootService(memory.NewMemoryPersistence(nil), nil, zap.NewNop())
	require.NoError(t, err)
	assert.Equal(t, merkle.HasherNameSHA256, svc.Hasher().Name())
}

func TestComputeRoot(t *testing.T) {
	svc := newTestService(t, nil)

	result, err := svc.ComputeRoot(blocks.NewLineSource(strings.NewReader("foo\nbar\ndoe\n")))
	require.NoError(t, err)
	assert.Equal(t, "6ae62adfac786f1484e8aa1c69d0e209dcf2fdddb20552823b2044050a2d0c92", hex.EncodeToString(result.Root))
	assert.Equal(t, uint64(3), result.LeafCount)
	assert.Equal(t, merkle.HasherNameSHA256, result.Hasher)

	t.Run("empty source", func(t *testing.T) {
		result, err := svc.ComputeRoot(blocks.NewSliceSource(nil))
		require.NoError(t, err)
		assert.Empty(t, result.Root)
		assert.Zero(t, result.LeafCount)
	})

	t.Run("keccak hasher", func(t *testing.T) {
		svc := newTestService(t, merkle.Keccak256Hasher{})
		result, err := svc.ComputeRoot(blocks.NewSliceSource(threeBlocks()))
		require.NoError(t, err)
		assert.Equal(t, merkle.RootWith(merkle.Keccak256Hasher{}, threeBlocks()), result.Root)
		assert.Equal(t, merkle.HasherNameKeccak256, result.Hasher)
	})
}

func TestPublishRoot(t *testing.T) {
	svc := newTestService(t, nil)

	record, err := svc.PublishRoot("release-1", blocks.NewSliceSource(threeBlocks()))
	require.NoError(t, err)
	assert.Equal(t, "release-1", record.Name)
	assert.Equal(t, merkle.Root(threeBlocks()), []byte(record.Root))
	assert.Equal(t, uint64(3), record.LeafCount)
	assert.NotZero(t, record.CreatedAt)

	loaded, err := svc.LoadRoot("release-1")
	require.NoError(t, err)
	assert.Equal(t, record, loaded)

	listed, err := svc.ListRoots()
	require.NoError(t, err)
	assert.Len(t, listed, 1)

	t.Run("empty input", func(t *testing.T) {
		_, err := svc.PublishRoot("empty", blocks.NewSliceSource(nil))
		require.Error(t, err)
		assert.True(t, errors.Is(err, ErrEmptyInput))
	})

	t.Run("missing name", func(t *testing.T) {
		_, err := svc.PublishRoot("", blocks.NewSliceSource(threeBlocks()))
		require.Error(t, err)
	})

	t.Run("delete", func(t *testing.T) {
		require.NoError(t, svc.DeleteRoot("release-1"))
		_, err := svc.LoadRoot("release-1")
		require.Error(t, err)
		assert.True(t, errors.Is(err, ErrRootNotFound))
	})
}

func TestSubRoot(t *testing.T) {
	svc := newTestService(t, nil)

	for level := int32(0); level <= 3; level++ {
		got, err := svc.SubRoot(blocks.NewSliceSource(threeBlocks()), level)
		require.NoError(t, err)
		assert.Equal(t, merkle.PrefixRoot(threeBlocks(), level), got, "level %d", level)
	}

	t.Run("reads only the prefix", func(t *testing.T) {
		src := blocks.NewRepeatSource([]byte("12"), 10)
		_, err := svc.SubRoot(src, 2)
		require.NoError(t, err)

		rest, err := blocks.Collect(src)
		require.NoError(t, err)
		assert.Len(t, rest, 6)
	})

	t.Run("level out of range", func(t *testing.T) {
		_, err := svc.SubRoot(blocks.NewSliceSource(threeBlocks()), -1)
		require.Error(t, err)
		_, err = svc.SubRoot(blocks.NewSliceSource(threeBlocks()), merkle.MaxLevel+1)
		require.Error(t, err)
	})
}

func TestProveLeaf(t *testing.T) {
	knownRoot := "9474ab96eab50676800da6fa93e7709f97d609e00636d367a11fa179fb1f98f4"

	t.Run("without published root", func(t *testing.T) {
		svc := newTestService(t, nil)

		record, err := svc.ProveLeaf(threeBlocks(), 1, "")
		require.NoError(t, err)
		assert.NotEqual(t, uuid.Nil, record.ID)
		assert.Equal(t, int32(1), record.Index)
		assert.Equal(t, knownRoot, hex.EncodeToString(record.Root))
		assert.Equal(t, merkle.HasherNameSHA256, record.Hasher)
		assert.True(t, record.Proof.Equal(merkle.ProveLeaf(threeBlocks(), 1)))

		loaded, err := svc.LoadProof(record.ID)
		require.NoError(t, err)
		assert.True(t, record.Proof.Equal(loaded.Proof))

		assert.True(t, svc.VerifyLeaf(record.Root, loaded.Proof))
		assert.False(t, svc.VerifyLeaf(merkle.Root(threeBlocks()), loaded.Proof))
		assert.False(t, svc.VerifyLeaf(record.Root, nil))
	})

	t.Run("against published root", func(t *testing.T) {
		svc := newTestService(t, nil)
		_, err := svc.PublishRoot("release-1", blocks.NewSliceSource(threeBlocks()))
		require.NoError(t, err)

		for _, index := range []int32{0, 1, 2} {
			_, err := svc.ProveLeaf(threeBlocks(), index, "release-1")
			require.NoError(t, err)
		}

		proofs, err := svc.ListProofs("release-1")
		require.NoError(t, err)
		require.Len(t, proofs, 3)
		assert.Equal(t, int32(0), proofs[0].Index)
	})

	t.Run("unknown root", func(t *testing.T) {
		svc := newTestService(t, nil)
		_, err := svc.ProveLeaf(threeBlocks(), 1, "missing")
		require.Error(t, err)
		assert.True(t, errors.Is(err, ErrRootNotFound))
	})

	t.Run("blocks differ from published root", func(t *testing.T) {
		svc := newTestService(t, nil)
		_, err := svc.PublishRoot("release-1", blocks.NewSliceSource(threeBlocks()))
		require.NoError(t, err)

		_, err = svc.ProveLeaf([][]byte{{0xff}, {4, 5, 6}, {7, 8, 9}}, 0, "release-1")
		require.Error(t, err)
		assert.True(t, errors.Is(err, ErrRootMismatch))

		proofs, err := svc.ListProofs("release-1")
		require.NoError(t, err)
		assert.Empty(t, proofs)
	})

	t.Run("hasher mismatch", func(t *testing.T) {
		store := memory.NewMemoryPersistence(nil)
		publisher, err := NewRootService(store, merkle.Blake2bHasher{}, zap.NewNop())
		require.NoError(t, err)
		_, err = publisher.PublishRoot("release-1", blocks.NewSliceSource(threeBlocks()))
		require.NoError(t, err)

		prover, err := NewRootService(store, nil, zap.NewNop())
		require.NoError(t, err)
		_, err = prover.ProveLeaf(threeBlocks(), 1, "release-1")
		require.Error(t, err)
		assert.Contains(t, err.Error(), "blake2b")
	})

	t.Run("empty input", func(t *testing.T) {
		svc := newTestService(t, nil)
		_, err := svc.ProveLeaf(nil, 0, "")
		require.Error(t, err)
		assert.True(t, errors.Is(err, ErrEmptyInput))
	})

	t.Run("missing proof", func(t *testing.T) {
		svc := newTestService(t, nil)
		_, err := svc.LoadProof(uuid.New())
		require.Error(t, err)
		assert.True(t, errors.Is(err, ErrProofNotFound))
	})
}

func TestVerifyAgainst(t *testing.T) {
	svc := newTestService(t, nil)
	published, err := svc.PublishRoot("release-1", blocks.NewSliceSource(threeBlocks()))
	require.NoError(t, err)
	_, err = svc.PublishRoot("release-2", blocks.NewSliceSource([][]byte{{1, 2, 3}, {0}}))
	require.NoError(t, err)

	record, err := svc.ProveLeaf(threeBlocks(), 1, "release-1")
	require.NoError(t, err)

	ok, err := svc.VerifyAgainst("release-1", record.ID, record.Proof)
	require.NoError(t, err)
	assert.True(t, ok)

	t.Run("stored proof", func(t *testing.T) {
		ok, err := svc.VerifyAgainst("release-1", record.ID, nil)
		require.NoError(t, err)
		assert.True(t, ok)
	})

	t.Run("every index", func(t *testing.T) {
		for _, index := range []int32{0, 2, 7, -1} {
			issued, err := svc.ProveLeaf(threeBlocks(), index, "release-1")
			require.NoError(t, err)
			ok, err := svc.VerifyAgainst("release-1", issued.ID, issued.Proof)
			require.NoError(t, err)
			assert.True(t, ok, "index %d", index)
		}
	})

	t.Run("different root name", func(t *testing.T) {
		ok, err := svc.VerifyAgainst("release-2", record.ID, record.Proof)
		require.NoError(t, err)
		assert.False(t, ok)
	})

	t.Run("tampered leaf", func(t *testing.T) {
		tampered := record.Proof.Clone()
		tampered.Leaf[0] ^= 0xff
		ok, err := svc.VerifyAgainst("release-1", record.ID, tampered)
		require.NoError(t, err)
		assert.False(t, ok)
	})

	t.Run("block outside the sequence", func(t *testing.T) {
		leaf := merkle.LeafHash([]byte("never in the sequence"))
		forged := &merkle.Proof{
			Pre:  []merkle.SubRoot{{Level: 0, SubRoot: leaf.Bytes()}},
			Leaf: leaf.Bytes(),
			Post: []merkle.SubRoot{{Level: merkle.MaxLevel, SubRoot: published.Root}},
		}

		ok, err := svc.VerifyAgainst("release-1", record.ID, forged)
		require.NoError(t, err)
		assert.False(t, ok)

		// Storing the forged proof directly does not make it verify either.
		stored := persistence.NewProofRecord("release-1", 1, forged)
		stored.Hasher = merkle.HasherNameSHA256
		stored.Root = merkle.RootFromProofAndLeaf(forged.Leaf, forged)
		require.NoError(t, svc.store.SaveProof(stored))

		ok, err = svc.VerifyAgainst("release-1", stored.ID, forged)
		require.NoError(t, err)
		assert.False(t, ok)
	})

	t.Run("proof issued without a root", func(t *testing.T) {
		loose, err := svc.ProveLeaf(threeBlocks(), 1, "")
		require.NoError(t, err)
		ok, err := svc.VerifyAgainst("release-1", loose.ID, loose.Proof)
		require.NoError(t, err)
		assert.False(t, ok)
	})

	t.Run("recorded index differs", func(t *testing.T) {
		relabeled := record.Clone()
		relabeled.ID = uuid.New()
		relabeled.Index = 2
		require.NoError(t, svc.store.SaveProof(relabeled))

		ok, err := svc.VerifyAgainst("release-1", relabeled.ID, relabeled.Proof)
		require.NoError(t, err)
		assert.False(t, ok)
	})

	t.Run("unknown proof", func(t *testing.T) {
		_, err := svc.VerifyAgainst("release-1", uuid.New(), record.Proof)
		require.Error(t, err)
		assert.True(t, errors.Is(err, ErrProofNotFound))
	})

	t.Run("unknown root", func(t *testing.T) {
		_, err := svc.VerifyAgainst("missing", record.ID, record.Proof)
		require.Error(t, err)
		assert.True(t, errors.Is(err, ErrRootNotFound))
	})
}

func TestVerifyAgainstUsesPublishedHasher(t *testing.T) {
	store := memory.NewMemoryPersistence(nil)
	publisher, err := NewRootService(store, merkle.Blake2bHasher{}, zap.NewNop())
	require.NoError(t, err)
	_, err = publisher.PublishRoot("release-1", blocks.NewSliceSource(threeBlocks()))
	require.NoError(t, err)
	record, err := publisher.ProveLeaf(threeBlocks(), 1, "release-1")
	require.NoError(t, err)

	verifier, err := NewRootService(store, nil, zap.NewNop())
	require.NoError(t, err)

	ok, err := verifier.VerifyAgainst("release-1", record.ID, record.Proof)
	require.NoError(t, err)
	assert.True(t, ok)

	t.Run("proof recorded with another hasher", func(t *testing.T) {
		relabeled := record.Clone()
		relabeled.ID = uuid.New()
		relabeled.Hasher = merkle.HasherNameKeccak256
		require.NoError(t, store.SaveProof(relabeled))

		ok, err := verifier.VerifyAgainst("release-1", relabeled.ID, relabeled.Proof)
		require.NoError(t, err)
		assert.False(t, ok)
	})
}

func TestVerifyRecord(t *testing.T) {
	prover := newTestService(t, merkle.Keccak256Hasher{})
	record, err := prover.ProveLeaf(threeBlocks(), 1, "")
	require.NoError(t, err)
	assert.Equal(t, merkle.HasherNameKeccak256, record.Hasher)

	verifier := newTestService(t, nil)

	ok, err := verifier.VerifyRecord(record.Root, record)
	require.NoError(t, err)
	assert.True(t, ok)

	// The service hasher alone does not rebuild a keccak proof.
	assert.False(t, verifier.VerifyLeaf(record.Root, record.Proof))

	t.Run("record without hasher", func(t *testing.T) {
		legacy := record.Clone()
		legacy.Hasher = ""
		ok, err := verifier.VerifyRecord(record.Root, legacy)
		require.NoError(t, err)
		assert.False(t, ok)

		ok, err = prover.VerifyRecord(record.Root, legacy)
		require.NoError(t, err)
		assert.True(t, ok)
	})

	t.Run("unknown hasher", func(t *testing.T) {
		unknown := record.Clone()
		unknown.Hasher = "md5"
		_, err := verifier.VerifyRecord(record.Root, unknown)
		require.Error(t, err)
	})

	t.Run("nil record", func(t *testing.T) {
		ok, err := verifier.VerifyRecord(record.Root, nil)
		require.NoError(t, err)
		assert.False(t, ok)
	})
}
