package api

import (
	"context"
	"encoding/hex"
	"errors"

	"rosettagw/block"
	"rosettagw/rosetta"
	"rosettagw/store"
)

// resolveBlock maps a partial block identifier to a committed block. A nil or
// empty identifier means the latest committed block.
func (s *Server) resolveBlock(partial *rosetta.PartialBlockIdentifier) (*store.StoredBlock, *rosetta.Error) {
	var (
		sb  *store.StoredBlock
		err error
	)
	switch {
	case partial != nil && partial.Index != nil:
		if *partial.Index < 0 {
			return nil, rosetta.ErrInvalidRequest.WithDetail("reason", "block index must not be negative")
		}
		sb, err = s.st.GetBlock(uint64(*partial.Index))
		if err == nil && partial.Hash != nil && hex.EncodeToString(sb.Hash[:]) != *partial.Hash {
			return nil, rosetta.ErrBlockNotFound.WithDetail("reason", "hash does not match the block at that index")
		}
	case partial != nil && partial.Hash != nil:
		var h block.Hash
		raw, derr := hex.DecodeString(*partial.Hash)
		if derr != nil || len(raw) != block.HashSize {
			return nil, rosetta.ErrInvalidRequest.WithDetail("reason", "block hash must be 32 hex-encoded bytes")
		}
		copy(h[:], raw)
		sb, err = s.st.GetBlockByHash(h)
	default:
		status := s.status.Status()
		if !status.HasWatermark {
			return nil, rosetta.ErrNotSynced
		}
		sb, err = s.st.GetBlock(status.Watermark.Index)
	}
	if err != nil {
		if errors.Is(err, store.ErrNotFound) {
			return nil, rosetta.ErrBlockNotFound.WithDetail("reason", err.Error())
		}
		return nil, rosetta.ErrInternal.WithDetail("reason", err.Error())
	}
	return sb, nil
}

func (s *Server) block(_ context.Context, body []byte) (interface{}, *rosetta.Error) {
	var req rosetta.BlockRequest
	if rerr := decode(body, &req); rerr != nil {
		return nil, rerr
	}
	if rerr := s.checkNetwork(req.NetworkIdentifier); rerr != nil {
		return nil, rerr
	}
	sb, rerr := s.resolveBlock(&req.BlockIdentifier)
	if rerr != nil {
		return nil, rerr
	}
	return &rosetta.BlockResponse{Block: s.blockToRosetta(sb)}, nil
}

func (s *Server) blockTransaction(_ context.Context, body []byte) (interface{}, *rosetta.Error) {
	var req rosetta.BlockTransactionRequest
	if rerr := decode(body, &req); rerr != nil {
		return nil, rerr
	}
	if rerr := s.checkNetwork(req.NetworkIdentifier); rerr != nil {
		return nil, rerr
	}
	partial := rosetta.PartialBlockIdentifier{Index: &req.BlockIdentifier.Index}
	if req.BlockIdentifier.Hash != "" {
		partial.Hash = &req.BlockIdentifier.Hash
	}
	sb, rerr := s.resolveBlock(&partial)
	if rerr != nil {
		return nil, rerr
	}
	for _, tx := range sb.Block.Txs {
		if fp := tx.Fingerprint(); fp == req.TransactionIdentifier.Hash {
			return &rosetta.BlockTransactionResponse{
				Transaction: rosetta.TxToRosetta(tx, fp, s.currency),
			}, nil
		}
	}
	return nil, rosetta.ErrTransactionNotFound.
		WithDetail("block_index", sb.Block.Index).
		WithDetail("transaction", req.TransactionIdentifier.Hash)
}
