package verifier

import (
	"crypto/ed25519"
	"crypto/rand"
	"testing"

	"github.com/holiman/uint256"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"rosettagw/block"
	"rosettagw/types"
)

// chain builds n encoded hash-chained blocks starting at index 0.
func chain(t *testing.T, n int) ([][]byte, []*block.Block) {
	t.Helper()
	pub, _, err := ed25519.GenerateKey(rand.Reader)
	require.NoError(t, err)
	acct := types.AccountFromPubKey(pub)

	raws := make([][]byte, 0, n)
	blocks := make([]*block.Block, 0, n)
	parent := block.ZeroHash
	for i := 0; i < n; i++ {
		b := &block.Block{
			Index:      uint64(i),
			ParentHash: parent,
			Timestamp:  uint64(1000 + i),
			Txs: []*types.Transaction{{
				Kind:          types.TxKindMint,
				To:            acct,
				Amount:        uint256.NewInt(uint64(i + 1)),
				CreatedAtTime: uint64(i),
			}},
		}
		raw, err := b.Encode()
		require.NoError(t, err)
		raws = append(raws, raw)
		blocks = append(blocks, b)
		parent = b.Hash()
	}
	return raws, blocks
}

func TestVerifyAcceptsChainedBlock(t *testing.T) {
	raws, blocks := chain(t, 2)

	got, err := Verify(raws[0], block.ZeroHash)
	require.NoError(t, err)
	assert.Equal(t, uint64(0), got.Index)

	got, err = Verify(raws[1], blocks[0].Hash())
	require.NoError(t, err)
	assert.Equal(t, uint64(1), got.Index)
}

func TestVerifyDecodeFault(t *testing.T) {
	_, err := Verify([]byte{0xff, 0x00, 0x01}, block.ZeroHash)
	require.Error(t, err)
	assert.ErrorIs(t, err, ErrDecode)
}

func TestVerifyChainMismatch(t *testing.T) {
	raws, _ := chain(t, 2)
	_, err := Verify(raws[1], block.Hash{0xde, 0xad})
	require.Error(t, err)
	assert.ErrorIs(t, err, ErrChainMismatch)
}

func TestVerifyBatchThreadsParent(t *testing.T) {
	raws, blocks := chain(t, 5)
	got, err := VerifyBatch(raws, 0, block.ZeroHash)
	require.NoError(t, err)
	require.Len(t, got, 5)
	for i, b := range got {
		assert.Equal(t, blocks[i].Hash(), b.Hash())
	}

	// a suffix of the chain verifies against its own parent expectation
	got, err = VerifyBatch(raws[2:], 2, blocks[1].Hash())
	require.NoError(t, err)
	assert.Len(t, got, 3)
}

func TestVerifyBatchRejectsGap(t *testing.T) {
	raws, blocks := chain(t, 4)

	// drop block 2: block 3 contradicts the threaded parent hash
	_, err := VerifyBatch([][]byte{raws[1], raws[3]}, 1, blocks[0].Hash())
	require.Error(t, err)
	assert.ErrorIs(t, err, ErrChainMismatch)
}

func TestVerifyBatchRejectsWrongFirstIndex(t *testing.T) {
	raws, _ := chain(t, 2)
	_, err := VerifyBatch(raws, 1, block.ZeroHash)
	require.Error(t, err)
	assert.ErrorIs(t, err, ErrChainMismatch)
}

func TestVerifyBatchStopsAtFirstBadBlock(t *testing.T) {
	raws, _ := chain(t, 3)
	raws[1] = []byte("corrupted payload")
	_, err := VerifyBatch(raws, 0, block.ZeroHash)
	require.Error(t, err)
	assert.ErrorIs(t, err, ErrDecode)
}
