package api

import (
	"context"
	"encoding/hex"

	"rosettagw/rosetta"
)

// accountBalance answers current and historical balance lookups. Both resolve
// to a balance as of a specific committed block, so the answer always names
// the block it was computed at.
func (s *Server) accountBalance(_ context.Context, body []byte) (interface{}, *rosetta.Error) {
	var req rosetta.AccountBalanceRequest
	if rerr := decode(body, &req); rerr != nil {
		return nil, rerr
	}
	if rerr := s.checkNetwork(req.NetworkIdentifier); rerr != nil {
		return nil, rerr
	}
	acct, err := rosetta.AccountFromID(req.AccountIdentifier)
	if err != nil {
		return nil, rosetta.ErrInvalidAccount.WithDetail("reason", err.Error())
	}

	// no block identifier means "now": read the materialized balance row
	// instead of seeking the snapshot history
	if req.BlockIdentifier == nil {
		status := s.status.Status()
		if !status.HasWatermark {
			return nil, rosetta.ErrNotSynced
		}
		bal, err := s.st.GetBalance(acct)
		if err != nil {
			return nil, rosetta.ErrInternal.WithDetail("reason", err.Error())
		}
		return &rosetta.AccountBalanceResponse{
			BlockIdentifier: rosetta.BlockIdentifier{
				Index: int64(status.Watermark.Index),
				Hash:  hex.EncodeToString(status.Watermark.Hash[:]),
			},
			Balances: []rosetta.Amount{
				{Value: bal.Dec(), Currency: s.currency},
			},
		}, nil
	}

	sb, rerr := s.resolveBlock(req.BlockIdentifier)
	if rerr != nil {
		return nil, rerr
	}
	bal, err := s.st.GetBalanceAt(acct, sb.Block.Index)
	if err != nil {
		return nil, rosetta.ErrInternal.WithDetail("reason", err.Error())
	}
	return &rosetta.AccountBalanceResponse{
		BlockIdentifier: blockID(sb),
		Balances: []rosetta.Amount{
			{Value: bal.Dec(), Currency: s.currency},
		},
	}, nil
}
