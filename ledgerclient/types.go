package ledgerclient

// JSON-RPC wire types of the ledger service boundary. The ledger simulator
// serves the same shapes, so both sides of the boundary share this file.

const (
	MethodTip       = "ledger.tip"
	MethodGetBlocks = "ledger.getblocks"
	MethodSubmit    = "ledger.submit"
	MethodInfo      = "ledger.info"
)

const (
	SubmitApplied   = "applied"
	SubmitDuplicate = "duplicate"
)

type TipResult struct {
	ChainLength uint64 `json:"chain_length"`
}

type GetBlocksParams struct {
	Start uint64 `json:"start"`
	Len   uint32 `json:"len"`
}

type GetBlocksResult struct {
	Blocks      [][]byte `json:"blocks"`
	ChainLength uint64   `json:"chain_length"`
}

type SubmitParams struct {
	SignedTx []byte `json:"signed_tx"`
}

type SubmitResult struct {
	// Status is "applied" for a fresh transaction and "duplicate" when the
	// ledger's dedup window already holds the same fingerprint. Either way
	// BlockIndex points at the block where the transfer lives.
	Status     string `json:"status"`
	BlockIndex uint64 `json:"block_index"`
	TxHash     string `json:"tx_hash"`
}

type InfoResult struct {
	Symbol        string `json:"symbol"`
	Decimals      uint32 `json:"decimals"`
	Fee           string `json:"fee"` // decimal string
	MaxBatch      uint32 `json:"max_batch"`
	DedupWindowNs uint64 `json:"dedup_window_ns"`
}
