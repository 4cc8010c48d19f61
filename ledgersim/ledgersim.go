package ledgersim

import (
	"context"
	"net/http"
	"sync"
	"time"

	"github.com/creachadair/jrpc2"
	"github.com/creachadair/jrpc2/handler"
	"github.com/creachadair/jrpc2/jhttp"
	"github.com/holiman/uint256"

	"rosettagw/block"
	"rosettagw/ledgerclient"
	"rosettagw/logx"
	"rosettagw/types"
)

// Ledger-side rejection codes surfaced through JSON-RPC errors.
const (
	CodeInvalidPayload   = 1
	CodeInvalidSignature = 2
	CodeInsufficientFund = 3
	CodeBadFee           = 4
	CodeBadCreatedAt     = 5
	CodeUnsupportedKind  = 6
)

// How far in the future a created_at_time may lie before the ledger rejects
// the transaction outright.
const maxClockDrift = time.Minute

type Options struct {
	Symbol      string
	Decimals    uint32
	Fee         *uint256.Int
	MaxBatch    uint32
	DedupWindow time.Duration
	Now         func() time.Time
}

type dedupEntry struct {
	blockIndex uint64
	createdAt  uint64
}

// Ledger is an in-process ledger service: an append-only hash-chained block
// log behind the same JSON-RPC surface the real ledger exposes. It backs the
// devledger command and the integration tests.
type Ledger struct {
	mu       sync.Mutex
	opts     Options
	raws     [][]byte
	hashes   []block.Hash
	balances map[string]*uint256.Int
	dedup    map[string]dedupEntry
}

func New(opts Options) *Ledger {
	if opts.Symbol == "" {
		opts.Symbol = "TKN"
	}
	if opts.Decimals == 0 {
		opts.Decimals = 8
	}
	if opts.Fee == nil {
		opts.Fee = uint256.NewInt(10)
	}
	if opts.MaxBatch == 0 {
		opts.MaxBatch = 100
	}
	if opts.DedupWindow == 0 {
		opts.DedupWindow = 24 * time.Hour
	}
	if opts.Now == nil {
		opts.Now = time.Now
	}
	return &Ledger{
		opts:     opts,
		balances: make(map[string]*uint256.Int),
		dedup:    make(map[string]dedupEntry),
	}
}

// Handler returns the HTTP handler bridging JSON-RPC requests into the
// ledger.
func (l *Ledger) Handler() http.Handler {
	return jhttp.NewBridge(l.methods(), &jhttp.BridgeOptions{Server: &jrpc2.ServerOptions{}})
}

func (l *Ledger) methods() handler.Map {
	return handler.Map{
		ledgerclient.MethodTip: handler.New(func(ctx context.Context) (*ledgerclient.TipResult, error) {
			l.mu.Lock()
			defer l.mu.Unlock()
			return &ledgerclient.TipResult{ChainLength: uint64(len(l.raws))}, nil
		}),
		ledgerclient.MethodGetBlocks: handler.New(func(ctx context.Context, p ledgerclient.GetBlocksParams) (*ledgerclient.GetBlocksResult, error) {
			return l.getBlocks(p), nil
		}),
		ledgerclient.MethodInfo: handler.New(func(ctx context.Context) (*ledgerclient.InfoResult, error) {
			return &ledgerclient.InfoResult{
				Symbol:        l.opts.Symbol,
				Decimals:      l.opts.Decimals,
				Fee:           l.opts.Fee.Dec(),
				MaxBatch:      l.opts.MaxBatch,
				DedupWindowNs: uint64(l.opts.DedupWindow.Nanoseconds()),
			}, nil
		}),
		ledgerclient.MethodSubmit: handler.New(func(ctx context.Context, p ledgerclient.SubmitParams) (*ledgerclient.SubmitResult, error) {
			return l.submit(p.SignedTx)
		}),
	}
}

func (l *Ledger) getBlocks(p ledgerclient.GetBlocksParams) *ledgerclient.GetBlocksResult {
	l.mu.Lock()
	defer l.mu.Unlock()
	res := &ledgerclient.GetBlocksResult{ChainLength: uint64(len(l.raws))}
	if p.Start >= uint64(len(l.raws)) {
		return res
	}
	count := uint64(p.Len)
	if count > uint64(l.opts.MaxBatch) {
		count = uint64(l.opts.MaxBatch)
	}
	end := p.Start + count
	if end > uint64(len(l.raws)) {
		end = uint64(len(l.raws))
	}
	for i := p.Start; i < end; i++ {
		res.Blocks = append(res.Blocks, l.raws[i])
	}
	return res
}

func (l *Ledger) submit(signedTx []byte) (*ledgerclient.SubmitResult, error) {
	signed, err := block.DecodeSigned(signedTx)
	if err != nil {
		return nil, jrpc2.Errorf(jrpc2.Code(CodeInvalidPayload), "%s", err.Error())
	}
	if err := signed.Verify(); err != nil {
		return nil, jrpc2.Errorf(jrpc2.Code(CodeInvalidSignature), "%s", err.Error())
	}
	tx := signed.Tx
	if tx.Kind == types.TxKindMint {
		return nil, jrpc2.Errorf(jrpc2.Code(CodeUnsupportedKind), "mint cannot be submitted")
	}
	if tx.Fee == nil || !tx.Fee.Eq(l.opts.Fee) {
		return nil, jrpc2.Errorf(jrpc2.Code(CodeBadFee), "fee must be exactly %s", l.opts.Fee.Dec())
	}

	l.mu.Lock()
	defer l.mu.Unlock()

	now := l.opts.Now()
	created := time.Unix(0, int64(tx.CreatedAtTime))
	if created.After(now.Add(maxClockDrift)) {
		return nil, jrpc2.Errorf(jrpc2.Code(CodeBadCreatedAt), "created_at_time is in the future")
	}
	if created.Before(now.Add(-l.opts.DedupWindow)) {
		return nil, jrpc2.Errorf(jrpc2.Code(CodeBadCreatedAt), "created_at_time is outside the dedup window")
	}

	l.pruneDedup(now)
	fp := tx.Fingerprint()
	if entry, ok := l.dedup[fp]; ok {
		return &ledgerclient.SubmitResult{
			Status:     ledgerclient.SubmitDuplicate,
			BlockIndex: entry.blockIndex,
			TxHash:     fp,
		}, nil
	}

	total := new(uint256.Int).Set(tx.Fee)
	if tx.Kind != types.TxKindApprove {
		total.Add(total, tx.Amount)
	}
	bal, ok := l.balances[tx.From.String()]
	if !ok || bal.Lt(total) {
		return nil, jrpc2.Errorf(jrpc2.Code(CodeInsufficientFund), "account %s cannot cover %s", tx.From, total.Dec())
	}

	index := l.appendLocked(tx, now)
	l.dedup[fp] = dedupEntry{blockIndex: index, createdAt: tx.CreatedAtTime}
	return &ledgerclient.SubmitResult{
		Status:     ledgerclient.SubmitApplied,
		BlockIndex: index,
		TxHash:     fp,
	}, nil
}

func (l *Ledger) pruneDedup(now time.Time) {
	horizon := uint64(now.Add(-l.opts.DedupWindow).UnixNano())
	for fp, entry := range l.dedup {
		if entry.createdAt < horizon {
			delete(l.dedup, fp)
		}
	}
}

// appendLocked builds the next hash-chained block holding tx, applies its
// balance effect and returns the new block's index.
func (l *Ledger) appendLocked(tx *types.Transaction, now time.Time) uint64 {
	parent := block.ZeroHash
	if len(l.hashes) > 0 {
		parent = l.hashes[len(l.hashes)-1]
	}
	b := &block.Block{
		Index:      uint64(len(l.raws)),
		ParentHash: parent,
		Timestamp:  uint64(now.UnixNano()),
		Txs:        []*types.Transaction{tx},
	}
	raw, err := b.Encode()
	if err != nil {
		// the transaction was validated before getting here
		panic(err)
	}
	l.raws = append(l.raws, raw)
	l.hashes = append(l.hashes, b.Hash())

	credit := func(acct types.Account, amount *uint256.Int) {
		key := acct.String()
		if _, ok := l.balances[key]; !ok {
			l.balances[key] = uint256.NewInt(0)
		}
		l.balances[key].Add(l.balances[key], amount)
	}
	debit := func(acct types.Account, amount *uint256.Int) {
		l.balances[acct.String()].Sub(l.balances[acct.String()], amount)
	}
	switch tx.Kind {
	case types.TxKindMint:
		credit(tx.To, tx.Amount)
	case types.TxKindBurn:
		debit(tx.From, tx.Amount)
	case types.TxKindTransfer:
		debit(tx.From, tx.Amount)
		credit(tx.To, tx.Amount)
	case types.TxKindApprove:
	}
	if tx.HasFee() {
		debit(tx.From, tx.Fee)
	}
	return b.Index
}

// Mint credits freshly minted tokens to an account. Only the simulator's
// operator surface can mint; the submit boundary rejects mint transactions.
func (l *Ledger) Mint(to types.Account, amount *uint256.Int) uint64 {
	l.mu.Lock()
	defer l.mu.Unlock()
	now := l.opts.Now()
	tx := &types.Transaction{
		Kind:          types.TxKindMint,
		To:            to,
		Amount:        amount,
		CreatedAtTime: uint64(now.UnixNano()),
	}
	index := l.appendLocked(tx, now)
	logx.Info("LEDGER_SIM", "minted ", amount.Dec(), " to ", to.String(), " in block ", index)
	return index
}

// Corrupt rewrites the stored raw block at index with a tampered parent
// hash. Test hook for exercising the gateway's chain-mismatch halt.
func (l *Ledger) Corrupt(index uint64) {
	l.mu.Lock()
	defer l.mu.Unlock()
	b, err := block.Decode(l.raws[index])
	if err != nil {
		panic(err)
	}
	b.ParentHash[0] ^= 0xff
	raw, err := b.Encode()
	if err != nil {
		panic(err)
	}
	l.raws[index] = raw
}

// ChainLength reports the number of blocks produced so far.
func (l *Ledger) ChainLength() uint64 {
	l.mu.Lock()
	defer l.mu.Unlock()
	return uint64(len(l.raws))
}
