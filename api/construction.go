package api

import (
	"context"

	"rosettagw/rosetta"
	"rosettagw/syncer"
)

// The construction endpoints are thin decode/validate shims over the
// construction service; all flow logic lives there.

func (s *Server) constructionDerive(_ context.Context, body []byte) (interface{}, *rosetta.Error) {
	var req rosetta.ConstructionDeriveRequest
	if rerr := decode(body, &req); rerr != nil {
		return nil, rerr
	}
	if rerr := s.checkNetwork(req.NetworkIdentifier); rerr != nil {
		return nil, rerr
	}
	return s.con.Derive(&req)
}

func (s *Server) constructionPreprocess(_ context.Context, body []byte) (interface{}, *rosetta.Error) {
	var req rosetta.ConstructionPreprocessRequest
	if rerr := decode(body, &req); rerr != nil {
		return nil, rerr
	}
	if rerr := s.checkNetwork(req.NetworkIdentifier); rerr != nil {
		return nil, rerr
	}
	return s.con.Preprocess(&req)
}

func (s *Server) constructionMetadata(ctx context.Context, body []byte) (interface{}, *rosetta.Error) {
	var req rosetta.ConstructionMetadataRequest
	if rerr := decode(body, &req); rerr != nil {
		return nil, rerr
	}
	if rerr := s.checkNetwork(req.NetworkIdentifier); rerr != nil {
		return nil, rerr
	}
	return s.con.Metadata(ctx, &req)
}

func (s *Server) constructionPayloads(_ context.Context, body []byte) (interface{}, *rosetta.Error) {
	var req rosetta.ConstructionPayloadsRequest
	if rerr := decode(body, &req); rerr != nil {
		return nil, rerr
	}
	if rerr := s.checkNetwork(req.NetworkIdentifier); rerr != nil {
		return nil, rerr
	}
	return s.con.Payloads(&req)
}

func (s *Server) constructionCombine(_ context.Context, body []byte) (interface{}, *rosetta.Error) {
	var req rosetta.ConstructionCombineRequest
	if rerr := decode(body, &req); rerr != nil {
		return nil, rerr
	}
	if rerr := s.checkNetwork(req.NetworkIdentifier); rerr != nil {
		return nil, rerr
	}
	return s.con.Combine(&req)
}

func (s *Server) constructionParse(_ context.Context, body []byte) (interface{}, *rosetta.Error) {
	var req rosetta.ConstructionParseRequest
	if rerr := decode(body, &req); rerr != nil {
		return nil, rerr
	}
	if rerr := s.checkNetwork(req.NetworkIdentifier); rerr != nil {
		return nil, rerr
	}
	return s.con.Parse(&req)
}

func (s *Server) constructionHash(_ context.Context, body []byte) (interface{}, *rosetta.Error) {
	var req rosetta.ConstructionHashRequest
	if rerr := decode(body, &req); rerr != nil {
		return nil, rerr
	}
	if rerr := s.checkNetwork(req.NetworkIdentifier); rerr != nil {
		return nil, rerr
	}
	return s.con.Hash(&req)
}

func (s *Server) constructionSubmit(ctx context.Context, body []byte) (interface{}, *rosetta.Error) {
	var req rosetta.ConstructionSubmitRequest
	if rerr := decode(body, &req); rerr != nil {
		return nil, rerr
	}
	if rerr := s.checkNetwork(req.NetworkIdentifier); rerr != nil {
		return nil, rerr
	}
	// a halted gateway can no longer observe commits, so a submission could
	// never be confirmed
	if status := s.status.Status(); status.State == syncer.StateHalted {
		return nil, rosetta.ErrSyncHalted.WithDetail("fault", status.Fault)
	}
	return s.con.Submit(ctx, &req)
}
