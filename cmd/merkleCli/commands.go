package main

import (
	"encoding/json"
	"fmt"
	"math"
	"os"
	"strings"
	"time"

	"github.com/ethereum/go-ethereum/common/hexutil"
	"github.com/google/uuid"
	"github.com/pkg/errors"
	"github.com/urfave/cli/v2"

	"github.com/Layr-Labs/eigenx-merkle-go/pkg/blocks"
	"github.com/Layr-Labs/eigenx-merkle-go/pkg/merkle"
	"github.com/Layr-Labs/eigenx-merkle-go/pkg/persistence"
)

var errProofInvalid = errors.New("proof is invalid")

// rootCommand handles the root subcommand
func rootCommand(c *cli.Context) error {
	rt, err := newRuntime(c)
	if err != nil {
		return err
	}
	defer rt.Close()

	src, closer, err := openSource(c)
	if err != nil {
		return err
	}
	defer func() { _ = closer.Close() }()

	var (
		root   []byte
		leaves uint64
	)

	switch name, workers := c.String("publish"), c.Int("workers"); {
	case name != "":
		record, err := rt.service.PublishRoot(name, src)
		if err != nil {
			return err
		}
		root, leaves = record.Root, record.LeafCount

	case workers > 1:
		blks, err := blocks.Collect(src)
		if err != nil {
			return err
		}
		root, err = merkle.RootConcurrentWith(c.Context, rt.service.Hasher(), blks, workers)
		if err != nil {
			return err
		}
		leaves = uint64(len(blks))

	default:
		result, err := rt.service.ComputeRoot(src)
		if err != nil {
			return err
		}
		root, leaves = result.Root, result.LeafCount
	}

	w := c.App.Writer
	fmt.Fprintf(w, "root: %s\n", hexutil.Encode(root))
	fmt.Fprintf(w, "leaves: %d\n", leaves)
	return nil
}

// subrootCommand handles the subroot subcommand
func subrootCommand(c *cli.Context) error {
	level := c.Int("level")
	if level < 0 || level > merkle.MaxLevel {
		return fmt.Errorf("level must be between 0-%d, got %d", merkle.MaxLevel, level)
	}

	rt, err := newRuntime(c)
	if err != nil {
		return err
	}
	defer rt.Close()

	src, closer, err := openSource(c)
	if err != nil {
		return err
	}
	defer func() { _ = closer.Close() }()

	subRoot, err := rt.service.SubRoot(src, int32(level))
	if err != nil {
		return err
	}

	fmt.Fprintf(c.App.Writer, "subroot: %s\n", hexutil.Encode(subRoot))
	return nil
}

// proveCommand handles the prove subcommand
func proveCommand(c *cli.Context) error {
	index := c.Int("index")
	if index < math.MinInt32 || index > math.MaxInt32 {
		return fmt.Errorf("index %d does not fit in 32 bits", index)
	}

	rt, err := newRuntime(c)
	if err != nil {
		return err
	}
	defer rt.Close()

	src, closer, err := openSource(c)
	if err != nil {
		return err
	}
	defer func() { _ = closer.Close() }()

	blks, err := blocks.Collect(src)
	if err != nil {
		return err
	}

	record, err := rt.service.ProveLeaf(blks, int32(index), c.String("root-name"))
	if err != nil {
		return err
	}

	data, err := json.MarshalIndent(record, "", "  ")
	if err != nil {
		return fmt.Errorf("failed to encode proof: %w", err)
	}

	outputFile := c.String("output")
	if outputFile == "" {
		fmt.Fprintln(c.App.Writer, string(data))
		return nil
	}

	if err := os.WriteFile(outputFile, append(data, '\n'), 0644); err != nil {
		return fmt.Errorf("failed to write to file: %w", err)
	}

	w := c.App.Writer
	fmt.Fprintf(w, "proof: %s\n", outputFile)
	fmt.Fprintf(w, "id: %s\n", record.ID)
	fmt.Fprintf(w, "root: %s\n", record.Root.String())
	return nil
}

// verifyCommand handles the verify subcommand
func verifyCommand(c *cli.Context) error {
	rootName := c.String("root-name")
	rootHex := c.String("root")
	if (rootName == "") == (rootHex == "") {
		return fmt.Errorf("exactly one of --root or --root-name is required")
	}

	rt, err := newRuntime(c)
	if err != nil {
		return err
	}
	defer rt.Close()

	record, err := loadProof(c, rt)
	if err != nil {
		return err
	}

	if leafHex := c.String("leaf"); leafHex != "" {
		leaf, err := decodeHex(leafHex)
		if err != nil {
			return fmt.Errorf("invalid leaf: %w", err)
		}
		record = record.Clone()
		record.Proof.Leaf = leaf
	}

	var valid bool
	if rootName != "" {
		if record.ID == uuid.Nil {
			return fmt.Errorf("--root-name needs an issued proof: use --proof-id or a proof file written by prove")
		}
		valid, err = rt.service.VerifyAgainst(rootName, record.ID, record.Proof)
	} else {
		knownRoot, decodeErr := decodeHex(rootHex)
		if decodeErr != nil {
			return fmt.Errorf("invalid root: %w", decodeErr)
		}
		valid, err = rt.service.VerifyRecord(knownRoot, record)
	}
	if err != nil {
		return err
	}

	if !valid {
		return errProofInvalid
	}

	fmt.Fprintln(c.App.Writer, "proof is valid")
	return nil
}

// loadProof reads the proof named by --proof-id from the store, or by --proof from disk.
// The file may hold either a proof record written by prove or a bare proof.
func loadProof(c *cli.Context, rt *runtime) (*persistence.ProofRecord, error) {
	if idStr := c.String("proof-id"); idStr != "" {
		id, err := uuid.Parse(idStr)
		if err != nil {
			return nil, fmt.Errorf("invalid proof ID: %w", err)
		}
		return rt.service.LoadProof(id)
	}

	path := c.String("proof")
	if path == "" {
		return nil, fmt.Errorf("one of --proof or --proof-id is required")
	}

	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read proof: %w", err)
	}

	record, err := persistence.UnmarshalProofRecord(data)
	if err == nil && record.Proof != nil {
		return record, nil
	}

	var proof merkle.Proof
	if err := json.Unmarshal(data, &proof); err != nil {
		return nil, fmt.Errorf("failed to decode proof: %w", err)
	}
	return &persistence.ProofRecord{Proof: &proof}, nil
}

// rootsCommand handles the roots subcommand
func rootsCommand(c *cli.Context) error {
	rt, err := newRuntime(c)
	if err != nil {
		return err
	}
	defer rt.Close()

	records, err := rt.service.ListRoots()
	if err != nil {
		return err
	}

	w := c.App.Writer
	if len(records) == 0 {
		fmt.Fprintln(w, "no published roots")
		return nil
	}

	for _, r := range records {
		fmt.Fprintf(w, "%s\t%s\t%s\t%d leaves\t%s\n",
			r.Name,
			r.Root.String(),
			r.Hasher,
			r.LeafCount,
			time.Unix(r.CreatedAt, 0).UTC().Format(time.RFC3339),
		)

		if !c.Bool("proofs") {
			continue
		}
		proofs, err := rt.service.ListProofs(r.Name)
		if err != nil {
			return err
		}
		for _, p := range proofs {
			fmt.Fprintf(w, "  proof %s\tindex %d\troot %s\n", p.ID, p.Index, p.Root.String())
		}
	}
	return nil
}

// benchCommand handles the bench subcommand
func benchCommand(c *cli.Context) error {
	iterations := c.Int("iterations")
	if iterations < 0 {
		return fmt.Errorf("iterations cannot be negative")
	}

	rt, err := newRuntime(c)
	if err != nil {
		return err
	}
	defer rt.Close()

	block := []byte(c.String("block"))
	workers := c.Int("workers")

	start := time.Now()
	var root []byte
	if workers > 1 {
		blks, err := blocks.Collect(blocks.NewRepeatSource(block, iterations))
		if err != nil {
			return err
		}
		root, err = merkle.RootConcurrentWith(c.Context, rt.service.Hasher(), blks, workers)
		if err != nil {
			return err
		}
	} else {
		result, err := rt.service.ComputeRoot(blocks.NewRepeatSource(block, iterations))
		if err != nil {
			return err
		}
		root = result.Root
	}
	elapsed := time.Since(start)

	rt.logger.Sugar().Infow("Benchmark complete",
		"iterations", iterations,
		"workers", workers,
		"hasher", rt.service.Hasher().Name(),
		"elapsed", elapsed,
	)

	w := c.App.Writer
	fmt.Fprintf(w, "root: %s\n", hexutil.Encode(root))
	fmt.Fprintf(w, "leaves: %d\n", iterations)
	fmt.Fprintf(w, "elapsed: %s\n", elapsed)
	return nil
}

// decodeHex accepts hex with or without a 0x prefix.
func decodeHex(s string) ([]byte, error) {
	s = strings.TrimSpace(s)
	if !strings.HasPrefix(s, "0x") && !strings.HasPrefix(s, "0X") {
		s = "0x" + s
	}
	return hexutil.Decode(s)
}
