// Package blocks provides sources that feed byte blocks to the accumulator
// without requiring the caller to hold the whole sequence in memory.
package blocks

import (
	"bufio"
	"bytes"
	"io"

	"github.com/pkg/errors"

	"github.com/Layr-Labs/eigenx-merkle-go/pkg/merkle"
)

// DefaultBlockSize is the chunk size used when none is given.
const DefaultBlockSize = 4096

// maxLineSize bounds a single newline-delimited block.
const maxLineSize = 64 * 1024 * 1024

// Source yields blocks one at a time. Next returns io.EOF once the sequence is exhausted.
// The returned slice is owned by the caller.
type Source interface {
	Next() ([]byte, error)
}

// ChunkSource splits a reader into fixed-size blocks.
type ChunkSource struct {
	r         io.Reader
	blockSize int
	done      bool
}

// NewChunkSource reads r in blocks of blockSize bytes. The last block may be short.
// A non-positive blockSize selects DefaultBlockSize.
func NewChunkSource(r io.Reader, blockSize int) *ChunkSource {
	if blockSize <= 0 {
		blockSize = DefaultBlockSize
	}
	return &ChunkSource{r: r, blockSize: blockSize}
}

func (s *ChunkSource) Next() ([]byte, error) {
	if s.done {
		return nil, io.EOF
	}

	buf := make([]byte, s.blockSize)
	n, err := io.ReadFull(s.r, buf)
	switch {
	case err == nil:
		return buf, nil
	case errors.Is(err, io.ErrUnexpectedEOF):
		s.done = true
		return buf[:n], nil
	case errors.Is(err, io.EOF):
		s.done = true
		return nil, io.EOF
	default:
		return nil, errors.Wrap(err, "failed to read block")
	}
}

// LineSource yields one block per newline-delimited line.
type LineSource struct {
	scanner *bufio.Scanner
}

// NewLineSource splits r on '\n'. The delimiter and a trailing '\r' are stripped.
func NewLineSource(r io.Reader) *LineSource {
	scanner := bufio.NewScanner(r)
	scanner.Buffer(make([]byte, 0, 64*1024), maxLineSize)
	return &LineSource{scanner: scanner}
}

func (s *LineSource) Next() ([]byte, error) {
	if !s.scanner.Scan() {
		if err := s.scanner.Err(); err != nil {
			return nil, errors.Wrap(err, "failed to read line")
		}
		return nil, io.EOF
	}
	line := bytes.TrimSuffix(s.scanner.Bytes(), []byte{'\r'})
	return append([]byte{}, line...), nil
}

// RepeatSource yields the same block a fixed number of times.
type RepeatSource struct {
	block     []byte
	remaining int
}

// NewRepeatSource yields count copies of block.
func NewRepeatSource(block []byte, count int) *RepeatSource {
	return &RepeatSource{block: append([]byte{}, block...), remaining: count}
}

func (s *RepeatSource) Next() ([]byte, error) {
	if s.remaining <= 0 {
		return nil, io.EOF
	}
	s.remaining--
	return append([]byte{}, s.block...), nil
}

// SliceSource yields blocks from an in-memory sequence.
type SliceSource struct {
	blocks [][]byte
	pos    int
}

func NewSliceSource(blocks [][]byte) *SliceSource {
	return &SliceSource{blocks: blocks}
}

func (s *SliceSource) Next() ([]byte, error) {
	if s.pos >= len(s.blocks) {
		return nil, io.EOF
	}
	b := s.blocks[s.pos]
	s.pos++
	return append([]byte{}, b...), nil
}

// Collect drains src into memory.
func Collect(src Source) ([][]byte, error) {
	out := make([][]byte, 0)
	for {
		b, err := src.Next()
		if errors.Is(err, io.EOF) {
			return out, nil
		}
		if err != nil {
			return nil, errors.Wrapf(err, "failed to collect block %d", len(out))
		}
		out = append(out, b)
	}
}

// Accumulate adds every block of src to acc and returns how many were added.
// Blocks are not retained.
func Accumulate(src Source, acc *merkle.Accumulator) (int, error) {
	count := 0
	for {
		b, err := src.Next()
		if errors.Is(err, io.EOF) {
			return count, nil
		}
		if err != nil {
			return count, errors.Wrapf(err, "failed to accumulate block %d", count)
		}
		acc.Add(b)
		count++
	}
}
