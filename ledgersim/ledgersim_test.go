package ledgersim

import (
	"context"
	"crypto/ed25519"
	"crypto/rand"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/holiman/uint256"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"rosettagw/block"
	"rosettagw/ledgerclient"
	"rosettagw/types"
)

// The simulator is exercised through a real ledgerclient over HTTP, so these
// tests cover both sides of the JSON-RPC boundary.

func startLedger(t *testing.T, opts Options) (*Ledger, *ledgerclient.Client) {
	t.Helper()
	led := New(opts)
	srv := httptest.NewServer(led.Handler())
	t.Cleanup(srv.Close)
	cli := ledgerclient.New(srv.URL)
	t.Cleanup(func() { cli.Close() })
	return led, cli
}

func newSigner(t *testing.T) (types.Account, ed25519.PublicKey, ed25519.PrivateKey) {
	t.Helper()
	pub, priv, err := ed25519.GenerateKey(rand.Reader)
	require.NoError(t, err)
	return types.AccountFromPubKey(pub), pub, priv
}

func signEnvelope(t *testing.T, tx *types.Transaction, pub ed25519.PublicKey, priv ed25519.PrivateKey) []byte {
	t.Helper()
	unsigned, err := block.EncodeUnsigned(tx)
	require.NoError(t, err)
	digest := block.SigningDigest(unsigned)
	signed := &block.SignedTransaction{Tx: tx, PubKey: pub, Signature: ed25519.Sign(priv, digest[:])}
	raw, err := signed.Encode()
	require.NoError(t, err)
	return raw
}

func TestTipAndGetBlocks(t *testing.T) {
	led, cli := startLedger(t, Options{})
	ctx := context.Background()

	_, empty, err := cli.TipIndex(ctx)
	require.NoError(t, err)
	assert.True(t, empty)

	acct, _, _ := newSigner(t)
	led.Mint(acct, uint256.NewInt(100))
	led.Mint(acct, uint256.NewInt(50))

	tip, empty, err := cli.TipIndex(ctx)
	require.NoError(t, err)
	assert.False(t, empty)
	assert.Equal(t, uint64(1), tip)

	raws, err := cli.GetBlocks(ctx, 0, 10)
	require.NoError(t, err)
	require.Len(t, raws, 2)

	b0, err := block.Decode(raws[0])
	require.NoError(t, err)
	assert.Equal(t, uint64(0), b0.Index)
	assert.Equal(t, block.ZeroHash, b0.ParentHash)
	b1, err := block.Decode(raws[1])
	require.NoError(t, err)
	assert.Equal(t, b0.Hash(), b1.ParentHash)

	// past the tip: empty answer, no error
	raws, err = cli.GetBlocks(ctx, 5, 10)
	require.NoError(t, err)
	assert.Empty(t, raws)
}

func TestInfo(t *testing.T) {
	_, cli := startLedger(t, Options{Symbol: "ABC", Decimals: 2, Fee: uint256.NewInt(3), MaxBatch: 7})
	info, err := cli.Info(context.Background())
	require.NoError(t, err)
	assert.Equal(t, "ABC", info.Symbol)
	assert.Equal(t, uint32(2), info.Decimals)
	assert.Equal(t, "3", info.Fee)
	assert.Equal(t, uint32(7), info.MaxBatch)
}

func TestSubmitAppliedThenDuplicate(t *testing.T) {
	led, cli := startLedger(t, Options{})
	ctx := context.Background()

	from, pub, priv := newSigner(t)
	to, _, _ := newSigner(t)
	led.Mint(from, uint256.NewInt(100))

	tx := &types.Transaction{
		Kind:          types.TxKindTransfer,
		From:          from,
		To:            to,
		Amount:        uint256.NewInt(30),
		Fee:           uint256.NewInt(10),
		CreatedAtTime: uint64(time.Now().UnixNano()),
	}
	raw := signEnvelope(t, tx, pub, priv)

	res, err := cli.Submit(ctx, raw)
	require.NoError(t, err)
	assert.Equal(t, ledgerclient.SubmitApplied, res.Status)
	assert.Equal(t, uint64(1), res.BlockIndex)
	assert.Equal(t, tx.Fingerprint(), res.TxHash)

	// byte-identical resubmission is absorbed, not re-applied
	dup, err := cli.Submit(ctx, raw)
	require.NoError(t, err)
	assert.Equal(t, ledgerclient.SubmitDuplicate, dup.Status)
	assert.Equal(t, res.BlockIndex, dup.BlockIndex)
	assert.Equal(t, uint64(2), led.ChainLength(), "duplicate must not grow the chain")
}

func TestSubmitRejections(t *testing.T) {
	led, cli := startLedger(t, Options{})
	ctx := context.Background()

	from, pub, priv := newSigner(t)
	to, otherPub, otherPriv := newSigner(t)
	led.Mint(from, uint256.NewInt(100))
	now := uint64(time.Now().UnixNano())

	cases := []struct {
		name string
		raw  []byte
		code int
	}{
		{
			name: "garbage payload",
			raw:  []byte("definitely not cbor"),
			code: CodeInvalidPayload,
		},
		{
			name: "wrong fee",
			raw: signEnvelope(t, &types.Transaction{
				Kind: types.TxKindTransfer, From: from, To: to,
				Amount: uint256.NewInt(1), Fee: uint256.NewInt(99), CreatedAtTime: now,
			}, pub, priv),
			code: CodeBadFee,
		},
		{
			name: "insufficient funds",
			raw: signEnvelope(t, &types.Transaction{
				Kind: types.TxKindTransfer, From: from, To: to,
				Amount: uint256.NewInt(1000), Fee: uint256.NewInt(10), CreatedAtTime: now,
			}, pub, priv),
			code: CodeInsufficientFund,
		},
		{
			name: "created_at_time in the future",
			raw: signEnvelope(t, &types.Transaction{
				Kind: types.TxKindTransfer, From: from, To: to,
				Amount: uint256.NewInt(1), Fee: uint256.NewInt(10),
				CreatedAtTime: uint64(time.Now().Add(time.Hour).UnixNano()),
			}, pub, priv),
			code: CodeBadCreatedAt,
		},
		{
			name: "foreign signer",
			raw: signEnvelope(t, &types.Transaction{
				Kind: types.TxKindTransfer, From: from, To: to,
				Amount: uint256.NewInt(1), Fee: uint256.NewInt(10), CreatedAtTime: now,
			}, otherPub, otherPriv),
			code: CodeInvalidSignature,
		},
		{
			name: "mint over the submit boundary",
			raw: signEnvelope(t, &types.Transaction{
				Kind: types.TxKindMint, From: from, To: to,
				Amount: uint256.NewInt(1), Fee: uint256.NewInt(10), CreatedAtTime: now,
			}, pub, priv),
			code: CodeUnsupportedKind,
		},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			_, err := cli.Submit(ctx, tc.raw)
			require.Error(t, err)
			assert.True(t, ledgerclient.IsRejected(err), "want a rejection, got %v", err)
			var rejected *ledgerclient.RejectedError
			require.ErrorAs(t, err, &rejected)
			assert.Equal(t, tc.code, rejected.Code)
		})
	}
	assert.Equal(t, uint64(1), led.ChainLength(), "rejections must not grow the chain")
}

func TestCorruptFlipsParentHash(t *testing.T) {
	led, cli := startLedger(t, Options{})
	acct, _, _ := newSigner(t)
	led.Mint(acct, uint256.NewInt(1))
	led.Mint(acct, uint256.NewInt(2))

	led.Corrupt(1)
	raws, err := cli.GetBlocks(context.Background(), 0, 10)
	require.NoError(t, err)
	b0, err := block.Decode(raws[0])
	require.NoError(t, err)
	b1, err := block.Decode(raws[1])
	require.NoError(t, err)
	assert.NotEqual(t, b0.Hash(), b1.ParentHash)
}
