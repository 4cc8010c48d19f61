package ledgerclient

import (
	"context"
	"errors"

	"github.com/creachadair/jrpc2"
	"github.com/creachadair/jrpc2/jhttp"

	"rosettagw/logx"
)

// Client is the boundary adapter to the ledger service: read calls for the
// sync engine (tip, block batches) and the single externally mutating write
// call (submit).
type Client struct {
	endpoint string
	ch       *jhttp.Channel
	cli      *jrpc2.Client
}

func New(endpoint string) *Client {
	ch := jhttp.NewChannel(endpoint, nil)
	return &Client{
		endpoint: endpoint,
		ch:       ch,
		cli:      jrpc2.NewClient(ch, nil),
	}
}

func (c *Client) Close() error {
	return c.cli.Close()
}

// classify maps a call failure onto the fault taxonomy. A structured JSON-RPC
// error came from the ledger itself (Rejected); anything else never produced
// a ledger-side answer (Transient).
func classify(err error) error {
	var rpcErr *jrpc2.Error
	if errors.As(err, &rpcErr) {
		return &RejectedError{Code: int(rpcErr.Code), Message: rpcErr.Message}
	}
	return &TransientError{Err: err}
}

// TipIndex reports the ledger's highest block index. empty is true when the
// chain has no blocks yet.
func (c *Client) TipIndex(ctx context.Context) (tip uint64, empty bool, err error) {
	var res TipResult
	if err := c.cli.CallResult(ctx, MethodTip, nil, &res); err != nil {
		return 0, false, classify(err)
	}
	if res.ChainLength == 0 {
		return 0, true, nil
	}
	return res.ChainLength - 1, false, nil
}

// GetBlocks fetches the raw blocks [start, start+max). The ledger may return
// fewer blocks than asked; callers loop.
func (c *Client) GetBlocks(ctx context.Context, start uint64, max uint32) ([][]byte, error) {
	var res GetBlocksResult
	params := GetBlocksParams{Start: start, Len: max}
	if err := c.cli.CallResult(ctx, MethodGetBlocks, params, &res); err != nil {
		return nil, classify(err)
	}
	return res.Blocks, nil
}

// Info reports the ledger's operational parameters (fee, batch cap, dedup
// window).
func (c *Client) Info(ctx context.Context) (*InfoResult, error) {
	var res InfoResult
	if err := c.cli.CallResult(ctx, MethodInfo, nil, &res); err != nil {
		return nil, classify(err)
	}
	return &res, nil
}

// Submit hands a signed transaction to the ledger. It is never retried
// blindly: a transport failure after send comes back as AmbiguousError and
// the caller must re-check ledger state before resubmitting.
func (c *Client) Submit(ctx context.Context, signedTx []byte) (*SubmitResult, error) {
	var res SubmitResult
	if err := c.cli.CallResult(ctx, MethodSubmit, SubmitParams{SignedTx: signedTx}, &res); err != nil {
		var rpcErr *jrpc2.Error
		if errors.As(err, &rpcErr) {
			return nil, &RejectedError{Code: int(rpcErr.Code), Message: rpcErr.Message}
		}
		logx.Warn("LEDGER_CLIENT", "submit outcome unknown: ", err)
		return nil, &AmbiguousError{Err: err}
	}
	return &res, nil
}
