// Package persist saves and loads solved strategies.
//
// A file starts with a fixed header:
//
//	magic          [4]byte  "PFSV"
//	format version uint32
//	topology hash  [32]byte SHA3-256 of the game tree (see tree.Tree.Hash)
//	flags          uint8    bit 0: body is zstd compressed, bit 1: has regrets
//
// followed by the body, optionally compressed as a single zstd stream:
//
//	config length  uint32, then the gob-encoded tree configuration
//	iteration      uint32
//	exploitability float32
//	node count     uint32, then one int64 buffer offset per node
//	                 (-1 for nodes without storage, -2 for pruned nodes)
//	strategy sums  uint64 length, then float32 entries
//	regrets        uint64 length, then float32 entries (if flagged)
//
// All integers are little endian. The tree itself is not stored: Load
// rebuilds it from the configuration and rejects the file if the rebuilt
// topology hash differs.
package persist

import (
	"fmt"

	"github.com/timpalpant/go-postflop/cards"
	"github.com/timpalpant/go-postflop/tree"
)

const (
	Magic         = "PFSV"
	FormatVersion = uint32(1)

	headerSize = 4 + 4 + 32 + 1
)

const (
	flagCompressed uint8 = 1 << iota
	flagRegrets
)

// Options control how a solution is saved.
type Options struct {
	// Compress the body with zstd.
	Compress bool
	// Also save cumulative regrets, so that solving can be resumed.
	IncludeRegrets bool
}

func DefaultOptions() Options {
	return Options{Compress: true}
}

// SerializationError is returned when a file cannot be decoded or does not
// match the game tree rebuilt from its configuration.
type SerializationError struct {
	Reason string
	Err    error
}

func (e *SerializationError) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("serialization error: %s: %v", e.Reason, e.Err)
	}

	return "serialization error: " + e.Reason
}

func (e *SerializationError) Cause() error {
	return e.Err
}

func (e *SerializationError) Unwrap() error {
	return e.Err
}

func serializationErrorf(err error, format string, args ...interface{}) *SerializationError {
	return &SerializationError{Reason: fmt.Sprintf(format, args...), Err: err}
}

// configRecord is the gob encoding of a tree.Config. Ranges are stored as
// sorted hand lists so that the encoding is deterministic.
type configRecord struct {
	Config  tree.Config
	Hands   [2][]cards.Hand
	Weights [2][]float32
}

func newConfigRecord(cfg tree.Config) configRecord {
	var rec configRecord
	for p, r := range cfg.Ranges {
		rec.Hands[p] = r.Hands()
		rec.Weights[p] = make([]float32, len(rec.Hands[p]))
		for i, h := range rec.Hands[p] {
			rec.Weights[p][i] = r[h]
		}
	}

	cfg.Ranges = [2]cards.Range{}
	rec.Config = cfg
	return rec
}

func (rec *configRecord) config() (tree.Config, error) {
	cfg := rec.Config
	for p := range cfg.Ranges {
		if len(rec.Hands[p]) != len(rec.Weights[p]) {
			return cfg, serializationErrorf(nil, "range %d has %d hands and %d weights",
				p, len(rec.Hands[p]), len(rec.Weights[p]))
		}

		cfg.Ranges[p] = make(cards.Range, len(rec.Hands[p]))
		for i, h := range rec.Hands[p] {
			cfg.Ranges[p][h] = rec.Weights[p][i]
		}
	}

	return cfg, nil
}
