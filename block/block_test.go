package block

import (
	"crypto/ed25519"
	"crypto/rand"
	"testing"

	"github.com/holiman/uint256"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"rosettagw/types"
)

func newKey(t *testing.T) (ed25519.PublicKey, ed25519.PrivateKey) {
	t.Helper()
	pub, priv, err := ed25519.GenerateKey(rand.Reader)
	require.NoError(t, err)
	return pub, priv
}

func testBlock(t *testing.T, index uint64, parent Hash) *Block {
	t.Helper()
	pubA, _ := newKey(t)
	pubB, _ := newKey(t)
	from := types.AccountFromPubKey(pubA)
	to := types.AccountFromPubKey(pubB)
	return &Block{
		Index:      index,
		ParentHash: parent,
		Timestamp:  1700000000000000000 + index,
		Txs: []*types.Transaction{
			{
				Kind:          types.TxKindTransfer,
				From:          from,
				To:            to,
				Amount:        uint256.NewInt(30),
				Fee:           uint256.NewInt(1),
				Memo:          []byte("hello"),
				CreatedAtTime: 1700000000000000001,
			},
		},
	}
}

func TestBlockEncodeDecodeRoundtrip(t *testing.T) {
	b := testBlock(t, 3, Hash{1, 2, 3})
	b.Certificate = []byte{0xca, 0xfe}

	raw, err := b.Encode()
	require.NoError(t, err)
	got, err := Decode(raw)
	require.NoError(t, err)

	assert.Equal(t, b.Index, got.Index)
	assert.Equal(t, b.ParentHash, got.ParentHash)
	assert.Equal(t, b.Timestamp, got.Timestamp)
	assert.Equal(t, b.Certificate, got.Certificate)
	require.Len(t, got.Txs, 1)
	assert.Equal(t, b.Txs[0].Fingerprint(), got.Txs[0].Fingerprint())
	assert.True(t, b.Txs[0].Amount.Eq(got.Txs[0].Amount))
	assert.True(t, b.Txs[0].Fee.Eq(got.Txs[0].Fee))
}

func TestDecodeRejectsGarbage(t *testing.T) {
	_, err := Decode([]byte("not cbor at all"))
	assert.Error(t, err)

	// structurally valid CBOR, wrong parent hash length
	b := testBlock(t, 0, ZeroHash)
	w := b.toWire()
	w.ParentHash = []byte{1, 2, 3}
	raw, err := encMode.Marshal(w)
	require.NoError(t, err)
	_, err = Decode(raw)
	assert.Error(t, err)
}

func TestHashIsDeterministic(t *testing.T) {
	b := testBlock(t, 5, Hash{9})
	assert.Equal(t, b.Hash(), b.Hash())

	raw, err := b.Encode()
	require.NoError(t, err)
	decoded, err := Decode(raw)
	require.NoError(t, err)
	assert.Equal(t, b.Hash(), decoded.Hash(), "hash must survive a wire roundtrip")
}

func TestHashExcludesCertificate(t *testing.T) {
	b := testBlock(t, 5, Hash{9})
	before := b.Hash()
	b.Certificate = []byte("finality proof attached later")
	assert.Equal(t, before, b.Hash())

	b.Timestamp++
	assert.NotEqual(t, before, b.Hash())
}

func TestSignedEnvelopeRoundtrip(t *testing.T) {
	pub, priv := newKey(t)
	pubTo, _ := newKey(t)
	tx := &types.Transaction{
		Kind:          types.TxKindTransfer,
		From:          types.AccountFromPubKey(pub),
		To:            types.AccountFromPubKey(pubTo),
		Amount:        uint256.NewInt(30),
		Fee:           uint256.NewInt(1),
		CreatedAtTime: 1700000000000000000,
	}

	unsigned, err := EncodeUnsigned(tx)
	require.NoError(t, err)
	back, err := DecodeUnsigned(unsigned)
	require.NoError(t, err)
	assert.Equal(t, tx.Fingerprint(), back.Fingerprint())

	digest := SigningDigest(unsigned)
	signed := &SignedTransaction{
		Tx:        tx,
		PubKey:    pub,
		Signature: ed25519.Sign(priv, digest[:]),
	}
	require.NoError(t, signed.Verify())

	raw, err := signed.Encode()
	require.NoError(t, err)
	decoded, err := DecodeSigned(raw)
	require.NoError(t, err)
	require.NoError(t, decoded.Verify())
	assert.Equal(t, tx.Fingerprint(), decoded.Tx.Fingerprint())
}

func TestVerifyRejectsForeignSigner(t *testing.T) {
	pub, priv := newKey(t)
	otherPub, otherPriv := newKey(t)
	tx := &types.Transaction{
		Kind:          types.TxKindBurn,
		From:          types.AccountFromPubKey(pub),
		Amount:        uint256.NewInt(5),
		Fee:           uint256.NewInt(1),
		CreatedAtTime: 1,
	}
	unsigned, err := EncodeUnsigned(tx)
	require.NoError(t, err)
	digest := SigningDigest(unsigned)

	// valid signature by a key that does not own the source account
	foreign := &SignedTransaction{Tx: tx, PubKey: otherPub, Signature: ed25519.Sign(otherPriv, digest[:])}
	assert.Error(t, foreign.Verify())

	// right key, tampered intent
	signed := &SignedTransaction{Tx: tx, PubKey: pub, Signature: ed25519.Sign(priv, digest[:])}
	require.NoError(t, signed.Verify())
	signed.Tx.Amount = uint256.NewInt(6)
	assert.Error(t, signed.Verify())
}
