package main

import (
	"fmt"
	"strings"

	"github.com/urfave/cli/v2"

	"github.com/Layr-Labs/eigenx-merkle-go/pkg/blocks"
	"github.com/Layr-Labs/eigenx-merkle-go/pkg/config"
	"github.com/Layr-Labs/eigenx-merkle-go/pkg/merkle"
)

// defaultBenchIterations matches the original timing run: 2^22 copies of the same block.
const defaultBenchIterations = 4194304

var inputFlags = []cli.Flag{
	&cli.StringFlag{
		Name:    "input",
		Aliases: []string{"i"},
		Usage:   "File to read blocks from, or - for stdin",
		Value:   "-",
	},
	&cli.IntFlag{
		Name:  "block-size",
		Usage: "Split the input into fixed-size blocks of this many bytes",
		Value: blocks.DefaultBlockSize,
	},
	&cli.BoolFlag{
		Name:  "lines",
		Usage: "Treat each input line as one block instead of fixed-size chunks",
	},
}

func withInputFlags(flags ...cli.Flag) []cli.Flag {
	return append(append([]cli.Flag{}, inputFlags...), flags...)
}

func newApp() *cli.App {
	return &cli.App{
		Name:  "merkle-cli",
		Usage: "Streaming Merkle accumulator for computing roots and leaf proofs",
		Description: `Computes Merkle roots over block sequences without holding the tree in memory.

This tool can:
- Compute the root or a power-of-two prefix subroot of a file
- Build (pre, leaf, post) proofs for the first block of a sequence
- Verify proofs against a known root or a published one
- Publish roots to memory, badger or redis storage`,
		Version: "1.0.0",
		Flags: []cli.Flag{
			&cli.BoolFlag{
				Name:    "verbose",
				Usage:   "Enable verbose logging",
				EnvVars: []string{config.EnvMerkleVerbose},
			},
			&cli.StringFlag{
				Name:    "hash",
				Usage:   fmt.Sprintf("Hash function: %s", strings.Join(merkle.SupportedHashers(), ", ")),
				Value:   merkle.HasherNameSHA256,
				EnvVars: []string{config.EnvMerkleHash},
			},
			&cli.StringFlag{
				Name:    "persistence",
				Usage:   fmt.Sprintf("Storage for published roots: %s", config.GetSupportedPersistenceTypesString()),
				Value:   config.PersistenceTypeMemory.String(),
				EnvVars: []string{config.EnvMerklePersistence},
			},
			&cli.StringFlag{
				Name:    "data-path",
				Usage:   "Badger data directory",
				Value:   config.DefaultDataPath,
				EnvVars: []string{config.EnvMerkleDataPath},
			},
			&cli.StringFlag{
				Name:    "redis-address",
				Usage:   "Redis server address (host:port)",
				EnvVars: []string{config.EnvMerkleRedisAddress},
			},
			&cli.StringFlag{
				Name:    "redis-password",
				Usage:   "Redis password",
				EnvVars: []string{config.EnvMerkleRedisPassword},
			},
			&cli.IntFlag{
				Name:    "redis-db",
				Usage:   "Redis database number (0-15)",
				EnvVars: []string{config.EnvMerkleRedisDB},
			},
			&cli.StringFlag{
				Name:    "redis-key-prefix",
				Usage:   "Prefix for every Redis key",
				EnvVars: []string{config.EnvMerkleRedisKeyPrefix},
			},
		},
		Commands: []*cli.Command{
			{
				Name:  "root",
				Usage: "Compute the root of the input",
				Flags: withInputFlags(
					&cli.StringFlag{
						Name:  "publish",
						Usage: "Store the root under this name",
					},
					&cli.IntFlag{
						Name:  "workers",
						Usage: "Hash leaves on this many goroutines (loads the whole input)",
						Value: 1,
					},
				),
				Action: rootCommand,
			},
			{
				Name:  "subroot",
				Usage: "Compute the root of the first 2^level blocks of the input",
				Flags: withInputFlags(
					&cli.IntFlag{
						Name:     "level",
						Usage:    fmt.Sprintf("Prefix level in [0, %d]", merkle.MaxLevel),
						Required: true,
					},
				),
				Action: subrootCommand,
			},
			{
				Name:  "prove",
				Usage: "Build a proof for the first block of the input",
				Flags: withInputFlags(
					&cli.IntFlag{
						Name:     "index",
						Usage:    "Leaf index the proof is built for",
						Required: true,
					},
					&cli.StringFlag{
						Name:  "root-name",
						Usage: "Published root the proof is issued against",
					},
					&cli.StringFlag{
						Name:    "output",
						Aliases: []string{"o"},
						Usage:   "Write the proof JSON to this file instead of stdout",
					},
				),
				Action: proveCommand,
			},
			{
				Name:  "verify",
				Usage: "Verify a proof against a known or published root",
				Flags: []cli.Flag{
					&cli.StringFlag{
						Name:  "proof",
						Usage: "Proof JSON file written by the prove command",
					},
					&cli.StringFlag{
						Name:  "proof-id",
						Usage: "ID of a stored proof",
					},
					&cli.StringFlag{
						Name:  "root",
						Usage: "Known root (hex)",
					},
					&cli.StringFlag{
						Name:  "root-name",
						Usage: "Name of a published root",
					},
					&cli.StringFlag{
						Name:  "leaf",
						Usage: "Leaf digest (hex) to use instead of the one carried by the proof",
					},
				},
				Action: verifyCommand,
			},
			{
				Name:  "roots",
				Usage: "List published roots",
				Flags: []cli.Flag{
					&cli.BoolFlag{
						Name:  "proofs",
						Usage: "Also list the proofs issued against each root",
					},
				},
				Action: rootsCommand,
			},
			{
				Name:  "bench",
				Usage: "Time the root of a synthetic sequence of identical blocks",
				Flags: []cli.Flag{
					&cli.IntFlag{
						Name:  "iterations",
						Usage: "Number of blocks",
						Value: defaultBenchIterations,
					},
					&cli.StringFlag{
						Name:  "block",
						Usage: "Block content",
						Value: "12",
					},
					&cli.IntFlag{
						Name:  "workers",
						Usage: "Hash leaves on this many goroutines",
						Value: 1,
					},
				},
				Action: benchCommand,
			},
		},
	}
}
