package api

import (
	"context"

	"rosettagw/rosetta"
	"rosettagw/store"
	"rosettagw/types"
)

const (
	defaultSearchLimit = 10
	maxSearchLimit     = 100
)

func (s *Server) searchTransactions(_ context.Context, body []byte) (interface{}, *rosetta.Error) {
	var req rosetta.SearchTransactionsRequest
	if rerr := decode(body, &req); rerr != nil {
		return nil, rerr
	}
	if rerr := s.checkNetwork(req.NetworkIdentifier); rerr != nil {
		return nil, rerr
	}

	var filter store.SearchFilter
	if req.AccountIdentifier != nil {
		acct, err := rosetta.AccountFromID(*req.AccountIdentifier)
		if err != nil {
			return nil, rosetta.ErrInvalidAccount.WithDetail("reason", err.Error())
		}
		filter.Account = &acct
	}
	if req.Type != nil {
		kind, err := types.ParseTxKind(*req.Type)
		if err != nil {
			return nil, rosetta.ErrInvalidRequest.WithDetail("reason", err.Error())
		}
		filter.Kind = &kind
	}
	if req.MinBlock != nil {
		if *req.MinBlock < 0 {
			return nil, rosetta.ErrInvalidRequest.WithDetail("reason", "min_block must not be negative")
		}
		min := uint64(*req.MinBlock)
		filter.MinBlock = &min
	}
	if req.MaxBlock != nil {
		if *req.MaxBlock < 0 {
			return nil, rosetta.ErrInvalidRequest.WithDetail("reason", "max_block must not be negative")
		}
		max := uint64(*req.MaxBlock)
		filter.MaxBlock = &max
	}

	offset := int64(0)
	if req.Offset != nil {
		if *req.Offset < 0 {
			return nil, rosetta.ErrInvalidRequest.WithDetail("reason", "offset must not be negative")
		}
		offset = *req.Offset
	}
	limit := defaultSearchLimit
	if req.Limit != nil {
		if *req.Limit <= 0 {
			return nil, rosetta.ErrInvalidRequest.WithDetail("reason", "limit must be positive")
		}
		limit = int(*req.Limit)
		if limit > maxSearchLimit {
			limit = maxSearchLimit
		}
	}

	locs, total, nextOffset, err := s.st.SearchTransactions(filter, offset, limit)
	if err != nil {
		return nil, rosetta.ErrInternal.WithDetail("reason", err.Error())
	}
	txs := make([]rosetta.BlockTransaction, len(locs))
	for i, loc := range locs {
		txs[i] = s.locationToRosetta(loc)
	}
	return &rosetta.SearchTransactionsResponse{
		Transactions: txs,
		TotalCount:   total,
		NextOffset:   nextOffset,
	}, nil
}
