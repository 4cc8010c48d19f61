package verifier

import (
	"errors"
	"fmt"

	"rosettagw/block"
)

// The two integrity faults a raw block can fail with. ErrChainMismatch means
// the ledger's history contradicts what this service already committed, which
// the sync engine treats as fatal.
var (
	ErrDecode        = errors.New("block decode fault")
	ErrChainMismatch = errors.New("parent hash chain mismatch")
)

// Verify decodes one raw wire-format block and checks that its declared
// parent hash equals expectedParent. Pure function: no I/O, no shared state.
func Verify(raw []byte, expectedParent block.Hash) (*block.Block, error) {
	b, err := block.Decode(raw)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrDecode, err)
	}
	if b.ParentHash != expectedParent {
		return nil, fmt.Errorf("%w: block %d declares parent %x, expected %x",
			ErrChainMismatch, b.Index, b.ParentHash[:8], expectedParent[:8])
	}
	return b, nil
}

// VerifyBatch verifies an ordered batch, threading the running parent-hash
// expectation and checking index contiguity from firstIndex.
func VerifyBatch(raws [][]byte, firstIndex uint64, expectedParent block.Hash) ([]*block.Block, error) {
	blocks := make([]*block.Block, 0, len(raws))
	next := firstIndex
	parent := expectedParent
	for _, raw := range raws {
		b, err := Verify(raw, parent)
		if err != nil {
			return nil, err
		}
		if b.Index != next {
			return nil, fmt.Errorf("%w: got block %d, expected %d", ErrChainMismatch, b.Index, next)
		}
		blocks = append(blocks, b)
		parent = b.Hash()
		next++
	}
	return blocks, nil
}
