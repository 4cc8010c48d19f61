package api

import (
	"context"

	"rosettagw/rosetta"
	"rosettagw/syncer"
)

const (
	rosettaVersion = "1.4.13"
	nodeVersion    = "1.0.0"
)

func (s *Server) networkList(_ context.Context, body []byte) (interface{}, *rosetta.Error) {
	var req rosetta.MetadataRequest
	if rerr := decode(body, &req); rerr != nil {
		return nil, rerr
	}
	return &rosetta.NetworkListResponse{
		NetworkIdentifiers: []rosetta.NetworkIdentifier{s.network},
	}, nil
}

func (s *Server) networkStatus(_ context.Context, body []byte) (interface{}, *rosetta.Error) {
	var req rosetta.NetworkRequest
	if rerr := decode(body, &req); rerr != nil {
		return nil, rerr
	}
	if rerr := s.checkNetwork(req.NetworkIdentifier); rerr != nil {
		return nil, rerr
	}

	status := s.status.Status()
	if !status.HasWatermark {
		return nil, rosetta.ErrNotSynced
	}
	genesis, err := s.st.GetBlock(0)
	if err != nil {
		return nil, rosetta.ErrInternal.WithDetail("reason", err.Error())
	}
	current, err := s.st.GetBlock(status.Watermark.Index)
	if err != nil {
		return nil, rosetta.ErrInternal.WithDetail("reason", err.Error())
	}

	currentIndex := int64(status.Watermark.Index)
	sync := &rosetta.SyncStatus{
		CurrentIndex: &currentIndex,
		Stage:        status.State.String(),
		Synced:       status.Synced(),
	}
	if status.TipKnown {
		target := int64(status.TipIndex)
		sync.TargetIndex = &target
	}
	if status.State == syncer.StateHalted && status.Fault != "" {
		sync.Stage = "halted: " + status.Fault
	}

	genesisID := blockID(genesis)
	return &rosetta.NetworkStatusResponse{
		CurrentBlockIdentifier: blockID(current),
		CurrentBlockTimestamp:  millis(current.Block.Timestamp),
		GenesisBlockIdentifier: genesisID,
		OldestBlockIdentifier:  &genesisID,
		SyncStatus:             sync,
	}, nil
}

func (s *Server) networkOptions(_ context.Context, body []byte) (interface{}, *rosetta.Error) {
	var req rosetta.NetworkRequest
	if rerr := decode(body, &req); rerr != nil {
		return nil, rerr
	}
	if rerr := s.checkNetwork(req.NetworkIdentifier); rerr != nil {
		return nil, rerr
	}
	return &rosetta.NetworkOptionsResponse{
		Version: rosetta.Version{
			RosettaVersion: rosettaVersion,
			NodeVersion:    nodeVersion,
		},
		Allow: rosetta.Allow{
			OperationStatuses: []rosetta.OperationStatus{
				{Status: rosetta.StatusCompleted, Successful: true},
			},
			OperationTypes:          rosetta.OperationTypes(),
			Errors:                  rosetta.AllErrors(),
			HistoricalBalanceLookup: true,
		},
	}, nil
}
