package main

import (
	"bytes"
	"encoding/json"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/ethereum/go-ethereum/common/hexutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/Layr-Labs/eigenx-merkle-go/pkg/merkle"
	"github.com/Layr-Labs/eigenx-merkle-go/pkg/persistence"
)

const fooBarDoeRoot = "0x6ae62adfac786f1484e8aa1c69d0e209dcf2fdddb20552823b2044050a2d0c92"

// runApp executes the CLI with stdin set to input and returns what it wrote.
func runApp(t *testing.T, input string, args ...string) (string, error) {
	t.Helper()

	var out bytes.Buffer
	app := newApp()
	app.Reader = strings.NewReader(input)
	app.Writer = &out
	app.ErrWriter = &out

	err := app.Run(append([]string{"merkle-cli"}, args...))
	return out.String(), err
}

func badgerArgs(t *testing.T) []string {
	return []string{"--persistence", "badger", "--data-path", filepath.Join(t.TempDir(), "data")}
}

func TestRootCommand(t *testing.T) {
	t.Run("Lines", func(t *testing.T) {
		out, err := runApp(t, "foo\nbar\ndoe\n", "root", "--lines")
		require.NoError(t, err)
		assert.Contains(t, out, "root: "+fooBarDoeRoot)
		assert.Contains(t, out, "leaves: 3")
	})

	t.Run("Chunks", func(t *testing.T) {
		out, err := runApp(t, "abcde", "root", "--block-size", "2")
		require.NoError(t, err)
		assert.Contains(t, out, "root: 0x79240f0d7787ec4c308f0ff8614f9e8728abac4b330585b269f0c7791a852da6")
		assert.Contains(t, out, "leaves: 3")
	})

	t.Run("ConcurrentMatchesSequential", func(t *testing.T) {
		out, err := runApp(t, "foo\nbar\ndoe\n", "root", "--lines", "--workers", "4")
		require.NoError(t, err)
		assert.Contains(t, out, "root: "+fooBarDoeRoot)
	})

	t.Run("FromFile", func(t *testing.T) {
		path := filepath.Join(t.TempDir(), "input.txt")
		require.NoError(t, os.WriteFile(path, []byte("foo\nbar\ndoe\n"), 0644))

		out, err := runApp(t, "", "root", "--lines", "--input", path)
		require.NoError(t, err)
		assert.Contains(t, out, "root: "+fooBarDoeRoot)
	})

	t.Run("EmptyInput", func(t *testing.T) {
		out, err := runApp(t, "", "root")
		require.NoError(t, err)
		assert.Contains(t, out, "root: 0x\n")
		assert.Contains(t, out, "leaves: 0")
	})

	t.Run("MissingFile", func(t *testing.T) {
		_, err := runApp(t, "", "root", "--input", filepath.Join(t.TempDir(), "missing"))
		require.Error(t, err)
		assert.Contains(t, err.Error(), "failed to open input")
	})

	t.Run("UnknownHasher", func(t *testing.T) {
		_, err := runApp(t, "foo\n", "--hash", "md5", "root", "--lines")
		require.Error(t, err)
		assert.Contains(t, err.Error(), "invalid configuration")
	})

	t.Run("PublishEmptyInput", func(t *testing.T) {
		_, err := runApp(t, "", "root", "--publish", "empty")
		require.Error(t, err)
	})
}

func TestSubrootCommand(t *testing.T) {
	t.Run("Level1", func(t *testing.T) {
		out, err := runApp(t, "foo\nbar\ndoe\n", "subroot", "--lines", "--level", "1")
		require.NoError(t, err)
		assert.Contains(t, out, "subroot: 0x92475004e70f41b94750f4a77bf7b430551113b25d3d57169eadca5692bb043d")
	})

	t.Run("Level0IsFirstLeaf", func(t *testing.T) {
		out, err := runApp(t, "foo\nbar\ndoe\n", "subroot", "--lines", "--level", "0")
		require.NoError(t, err)
		assert.Contains(t, out, "subroot: 0x2c26b46b68ffc68ff99b453c1d30413413422d706483bfa0f98a5e886266e7ae")
	})

	t.Run("LevelBeyondInputIsRoot", func(t *testing.T) {
		out, err := runApp(t, "foo\nbar\ndoe\n", "subroot", "--lines", "--level", "31")
		require.NoError(t, err)
		assert.Contains(t, out, "subroot: "+fooBarDoeRoot)
	})

	t.Run("LevelOutOfRange", func(t *testing.T) {
		_, err := runApp(t, "foo\n", "subroot", "--lines", "--level", "32")
		require.Error(t, err)
	})

	t.Run("LevelRequired", func(t *testing.T) {
		_, err := runApp(t, "foo\n", "subroot", "--lines")
		require.Error(t, err)
	})
}

func TestProveAndVerify(t *testing.T) {
	dir := t.TempDir()
	proofPath := filepath.Join(dir, "proof.json")

	out, err := runApp(t, "foo\nbar\ndoe\n", "prove", "--lines", "--index", "0", "--output", proofPath)
	require.NoError(t, err)
	assert.Contains(t, out, "proof: "+proofPath)

	data, err := os.ReadFile(proofPath)
	require.NoError(t, err)
	record, err := persistence.UnmarshalProofRecord(data)
	require.NoError(t, err)
	require.NotNil(t, record.Proof)
	assert.Empty(t, record.Proof.Pre)
	assert.Len(t, record.Proof.Post, 32)
	require.NotEmpty(t, record.Root)

	t.Run("KnownRoot", func(t *testing.T) {
		out, err := runApp(t, "", "verify", "--proof", proofPath, "--root", record.Root.String())
		require.NoError(t, err)
		assert.Contains(t, out, "proof is valid")
	})

	t.Run("KnownRootWithoutPrefix", func(t *testing.T) {
		_, err := runApp(t, "", "verify", "--proof", proofPath, "--root", strings.TrimPrefix(record.Root.String(), "0x"))
		require.NoError(t, err)
	})

	t.Run("WrongRoot", func(t *testing.T) {
		_, err := runApp(t, "", "verify", "--proof", proofPath, "--root", fooBarDoeRoot)
		require.ErrorIs(t, err, errProofInvalid)
	})

	t.Run("LeafOverride", func(t *testing.T) {
		_, err := runApp(t, "", "verify", "--proof", proofPath, "--root", record.Root.String(),
			"--leaf", "0x0000000000000000000000000000000000000000000000000000000000000000")
		require.ErrorIs(t, err, errProofInvalid)
	})

	t.Run("BareProofFile", func(t *testing.T) {
		barePath := filepath.Join(dir, "bare.json")
		bare, err := json.Marshal(record.Proof)
		require.NoError(t, err)
		require.NoError(t, os.WriteFile(barePath, bare, 0644))

		_, err = runApp(t, "", "verify", "--proof", barePath, "--root", record.Root.String())
		require.NoError(t, err)
	})

	t.Run("RootRequired", func(t *testing.T) {
		_, err := runApp(t, "", "verify", "--proof", proofPath)
		require.Error(t, err)
	})

	t.Run("ProofRequired", func(t *testing.T) {
		_, err := runApp(t, "", "verify", "--root", record.Root.String())
		require.Error(t, err)
	})

	t.Run("ProveToStdout", func(t *testing.T) {
		out, err := runApp(t, "foo\nbar\ndoe\n", "prove", "--lines", "--index", "0")
		require.NoError(t, err)

		printed, err := persistence.UnmarshalProofRecord([]byte(out))
		require.NoError(t, err)
		assert.True(t, printed.Proof.Equal(record.Proof))
		assert.Equal(t, record.Root, printed.Root)
	})

	t.Run("ProveEmptyInput", func(t *testing.T) {
		_, err := runApp(t, "", "prove", "--lines", "--index", "0")
		require.Error(t, err)
	})
}

func TestPublishedRoots(t *testing.T) {
	store := badgerArgs(t)
	run := func(input string, args ...string) (string, error) {
		return runApp(t, input, append(append([]string{}, store...), args...)...)
	}

	out, err := run("foo\nbar\ndoe\n", "root", "--lines", "--publish", "fbd")
	require.NoError(t, err)
	assert.Contains(t, out, "root: "+fooBarDoeRoot)

	out, err = run("", "roots")
	require.NoError(t, err)
	assert.Contains(t, out, "fbd\t"+fooBarDoeRoot+"\tsha256\t3 leaves")

	out, err = run("foo\nbar\ndoe\n", "prove", "--lines", "--index", "0", "--root-name", "fbd")
	require.NoError(t, err)
	record, err := persistence.UnmarshalProofRecord([]byte(out))
	require.NoError(t, err)
	assert.Equal(t, "fbd", record.RootName)

	t.Run("VerifyStoredProofAgainstName", func(t *testing.T) {
		out, err := run("", "verify", "--proof-id", record.ID.String(), "--root-name", "fbd")
		require.NoError(t, err)
		assert.Contains(t, out, "proof is valid")
	})

	t.Run("VerifyStoredProofAgainstKnownRoot", func(t *testing.T) {
		_, err := run("", "verify", "--proof-id", record.ID.String(), "--root", record.Root.String())
		require.NoError(t, err)
	})

	t.Run("LeafOverrideBreaksBinding", func(t *testing.T) {
		_, err := run("", "verify", "--proof-id", record.ID.String(), "--root-name", "fbd",
			"--leaf", "0x0000000000000000000000000000000000000000000000000000000000000000")
		require.ErrorIs(t, err, errProofInvalid)
	})

	t.Run("ProofFromOtherSequence", func(t *testing.T) {
		out, err := run("foo\nbar\n", "prove", "--lines", "--index", "0")
		require.NoError(t, err)
		other, err := persistence.UnmarshalProofRecord([]byte(out))
		require.NoError(t, err)

		_, err = run("", "verify", "--proof-id", other.ID.String(), "--root-name", "fbd")
		require.ErrorIs(t, err, errProofInvalid)
	})

	t.Run("UnknownRootName", func(t *testing.T) {
		_, err := run("", "verify", "--proof-id", record.ID.String(), "--root-name", "missing")
		require.Error(t, err)
		assert.NotErrorIs(t, err, errProofInvalid)
	})

	t.Run("UnknownProofID", func(t *testing.T) {
		_, err := run("", "verify", "--proof-id", "00000000-0000-0000-0000-000000000001", "--root-name", "fbd")
		require.Error(t, err)
	})

	t.Run("MalformedProofID", func(t *testing.T) {
		_, err := run("", "verify", "--proof-id", "nope", "--root-name", "fbd")
		require.Error(t, err)
	})

	t.Run("ListWithProofs", func(t *testing.T) {
		out, err := run("", "roots", "--proofs")
		require.NoError(t, err)
		assert.Contains(t, out, "proof "+record.ID.String()+"\tindex 0")
	})

	t.Run("ProofFileAgainstName", func(t *testing.T) {
		path := filepath.Join(t.TempDir(), "proof.json")
		_, err := run("foo\nbar\ndoe\n", "prove", "--lines", "--index", "2", "--root-name", "fbd", "--output", path)
		require.NoError(t, err)

		out, err := run("", "verify", "--proof", path, "--root-name", "fbd")
		require.NoError(t, err)
		assert.Contains(t, out, "proof is valid")
	})

	t.Run("ForgedProofFile", func(t *testing.T) {
		root, err := hexutil.Decode(fooBarDoeRoot)
		require.NoError(t, err)
		leaf := merkle.LeafHash([]byte("never in the sequence"))
		forged := &merkle.Proof{
			Pre:  []merkle.SubRoot{{Level: 0, SubRoot: leaf.Bytes()}},
			Leaf: leaf.Bytes(),
			Post: []merkle.SubRoot{{Level: merkle.MaxLevel, SubRoot: root}},
		}

		dir := t.TempDir()

		// Reusing the ID of an issued proof does not vouch for different contents.
		withID := record.Clone()
		withID.Proof = forged
		data, err := persistence.MarshalProofRecord(withID)
		require.NoError(t, err)
		recordPath := filepath.Join(dir, "record.json")
		require.NoError(t, os.WriteFile(recordPath, data, 0644))

		_, err = run("", "verify", "--proof", recordPath, "--root-name", "fbd")
		require.ErrorIs(t, err, errProofInvalid)

		bare, err := json.Marshal(forged)
		require.NoError(t, err)
		barePath := filepath.Join(dir, "bare.json")
		require.NoError(t, os.WriteFile(barePath, bare, 0644))

		_, err = run("", "verify", "--proof", barePath, "--root-name", "fbd")
		require.Error(t, err)
		assert.Contains(t, err.Error(), "issued proof")
	})

	t.Run("ProveWithOtherBlocks", func(t *testing.T) {
		_, err := run("foo\nbar\n", "prove", "--lines", "--index", "0", "--root-name", "fbd")
		require.Error(t, err)
		assert.Contains(t, err.Error(), "do not match")
	})

	t.Run("ProveAgainstUnknownRoot", func(t *testing.T) {
		_, err := run("foo\n", "prove", "--lines", "--index", "0", "--root-name", "missing")
		require.Error(t, err)
	})
}

func TestRootsCommandEmpty(t *testing.T) {
	out, err := runApp(t, "", "roots")
	require.NoError(t, err)
	assert.Contains(t, out, "no published roots")
}

func TestBenchCommand(t *testing.T) {
	const want = "root: 0xb2ea028a49ef5a34e07ef89aa9b17c1436ae810a2be24572d56c4ac385d546b5"

	t.Run("Sequential", func(t *testing.T) {
		out, err := runApp(t, "", "bench", "--iterations", "8")
		require.NoError(t, err)
		assert.Contains(t, out, want)
		assert.Contains(t, out, "leaves: 8")
	})

	t.Run("Concurrent", func(t *testing.T) {
		out, err := runApp(t, "", "bench", "--iterations", "8", "--workers", "3")
		require.NoError(t, err)
		assert.Contains(t, out, want)
	})

	t.Run("NegativeIterations", func(t *testing.T) {
		_, err := runApp(t, "", "bench", "--iterations", "-1")
		require.Error(t, err)
	})
}
