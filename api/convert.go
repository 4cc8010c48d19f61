package api

import (
	"encoding/hex"

	"rosettagw/rosetta"
	"rosettagw/store"
)

func blockID(sb *store.StoredBlock) rosetta.BlockIdentifier {
	return rosetta.BlockIdentifier{
		Index: int64(sb.Block.Index),
		Hash:  hex.EncodeToString(sb.Hash[:]),
	}
}

// Rosetta timestamps are unix milliseconds; the ledger records nanoseconds.
func millis(ns uint64) int64 {
	return int64(ns / 1e6)
}

func (s *Server) blockToRosetta(sb *store.StoredBlock) *rosetta.Block {
	id := blockID(sb)
	// Rosetta convention: the genesis block is its own parent.
	parent := id
	if sb.Block.Index > 0 {
		parent = rosetta.BlockIdentifier{
			Index: int64(sb.Block.Index) - 1,
			Hash:  hex.EncodeToString(sb.Block.ParentHash[:]),
		}
	}
	txs := make([]rosetta.Transaction, len(sb.Block.Txs))
	for i, tx := range sb.Block.Txs {
		txs[i] = rosetta.TxToRosetta(tx, tx.Fingerprint(), s.currency)
	}
	return &rosetta.Block{
		BlockIdentifier:       id,
		ParentBlockIdentifier: parent,
		Timestamp:             millis(sb.Block.Timestamp),
		Transactions:          txs,
	}
}

func (s *Server) locationToRosetta(loc *store.TxLocation) rosetta.BlockTransaction {
	return rosetta.BlockTransaction{
		BlockIdentifier: rosetta.BlockIdentifier{
			Index: int64(loc.BlockIndex),
			Hash:  hex.EncodeToString(loc.BlockHash[:]),
		},
		Transaction: rosetta.TxToRosetta(loc.Tx, loc.Fingerprint, s.currency),
	}
}
