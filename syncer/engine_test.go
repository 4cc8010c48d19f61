package syncer

import (
	"context"
	"crypto/ed25519"
	"crypto/rand"
	"errors"
	"path/filepath"
	"testing"

	"github.com/holiman/uint256"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"rosettagw/block"
	"rosettagw/config"
	"rosettagw/ledgerclient"
	"rosettagw/store"
	"rosettagw/types"
)

// fakeLedger is an in-memory LedgerSource with fault injection.
type fakeLedger struct {
	raws     [][]byte
	maxBatch uint32
	failTips int // next n TipIndex calls fail transiently
}

func (f *fakeLedger) TipIndex(ctx context.Context) (uint64, bool, error) {
	if f.failTips > 0 {
		f.failTips--
		return 0, false, &ledgerclient.TransientError{Err: errors.New("connection refused")}
	}
	if len(f.raws) == 0 {
		return 0, true, nil
	}
	return uint64(len(f.raws) - 1), false, nil
}

func (f *fakeLedger) GetBlocks(ctx context.Context, start uint64, max uint32) ([][]byte, error) {
	if start >= uint64(len(f.raws)) {
		return nil, nil
	}
	end := start + uint64(max)
	if end > uint64(len(f.raws)) {
		end = uint64(len(f.raws))
	}
	return f.raws[start:end], nil
}

func (f *fakeLedger) Info(ctx context.Context) (*ledgerclient.InfoResult, error) {
	return &ledgerclient.InfoResult{Symbol: "TKN", Decimals: 8, Fee: "10", MaxBatch: f.maxBatch}, nil
}

func (f *fakeLedger) grow(t *testing.T, n int) {
	t.Helper()
	pub, _, err := ed25519.GenerateKey(rand.Reader)
	require.NoError(t, err)
	acct := types.AccountFromPubKey(pub)

	parent := block.ZeroHash
	next := uint64(0)
	if len(f.raws) > 0 {
		last, err := block.Decode(f.raws[len(f.raws)-1])
		require.NoError(t, err)
		parent = last.Hash()
		next = last.Index + 1
	}
	for i := 0; i < n; i++ {
		b := &block.Block{
			Index:      next,
			ParentHash: parent,
			Timestamp:  1700000000000000000 + next,
			Txs: []*types.Transaction{{
				Kind:          types.TxKindMint,
				To:            acct,
				Amount:        uint256.NewInt(1),
				CreatedAtTime: next,
			}},
		}
		raw, err := b.Encode()
		require.NoError(t, err)
		f.raws = append(f.raws, raw)
		parent = b.Hash()
		next++
	}
}

func newTestEngine(t *testing.T, src LedgerSource) (*Engine, *store.Store) {
	t.Helper()
	st, err := store.Open(filepath.Join(t.TempDir(), "gateway.db"))
	require.NoError(t, err)
	t.Cleanup(func() { st.Close() })
	e, err := New(src, st, config.DefaultSyncConfig())
	require.NoError(t, err)
	return e, st
}

func syncToTip(t *testing.T, e *Engine) {
	t.Helper()
	for {
		advanced, err := e.SyncOnce(context.Background())
		require.NoError(t, err)
		if !advanced {
			return
		}
	}
}

func TestSyncOnceCatchesUp(t *testing.T) {
	led := &fakeLedger{maxBatch: 100}
	led.grow(t, 5)
	e, st := newTestEngine(t, led)

	advanced, err := e.SyncOnce(context.Background())
	require.NoError(t, err)
	assert.True(t, advanced)

	status := e.Status()
	assert.True(t, status.Synced())
	assert.Equal(t, uint64(4), status.Watermark.Index)

	wm, ok, err := st.Watermark()
	require.NoError(t, err)
	require.True(t, ok)
	assert.Equal(t, uint64(4), wm.Index)

	// nothing new: no advance, still healthy
	advanced, err = e.SyncOnce(context.Background())
	require.NoError(t, err)
	assert.False(t, advanced)
	assert.Equal(t, StateIdle, e.Status().State)
}

func TestSyncHonorsLedgerBatchCap(t *testing.T) {
	led := &fakeLedger{maxBatch: 2}
	led.grow(t, 7)
	e, _ := newTestEngine(t, led)

	steps := 0
	for {
		advanced, err := e.SyncOnce(context.Background())
		require.NoError(t, err)
		if !advanced {
			break
		}
		steps++
	}
	assert.Equal(t, 4, steps, "7 blocks at cap 2 need 4 committing cycles")
	assert.Equal(t, uint64(6), e.Status().Watermark.Index)
}

func TestSyncEmptyLedgerIsIdle(t *testing.T) {
	e, _ := newTestEngine(t, &fakeLedger{maxBatch: 100})
	advanced, err := e.SyncOnce(context.Background())
	require.NoError(t, err)
	assert.False(t, advanced)
	assert.False(t, e.Status().HasWatermark)
}

func TestSyncResumesFromWatermark(t *testing.T) {
	led := &fakeLedger{maxBatch: 100}
	led.grow(t, 3)
	dir := t.TempDir()

	st, err := store.Open(filepath.Join(dir, "gateway.db"))
	require.NoError(t, err)
	e, err := New(led, st, config.DefaultSyncConfig())
	require.NoError(t, err)
	syncToTip(t, e)
	require.NoError(t, st.Close())

	// restart against a longer chain: only the suffix is fetched
	led.grow(t, 2)
	st, err = store.Open(filepath.Join(dir, "gateway.db"))
	require.NoError(t, err)
	defer st.Close()
	e, err = New(led, st, config.DefaultSyncConfig())
	require.NoError(t, err)
	require.True(t, e.Status().HasWatermark)
	assert.Equal(t, uint64(2), e.Status().Watermark.Index)

	syncToTip(t, e)
	assert.Equal(t, uint64(4), e.Status().Watermark.Index)
}

func TestSyncHaltsOnChainMismatch(t *testing.T) {
	led := &fakeLedger{maxBatch: 100}
	led.grow(t, 3)
	e, st := newTestEngine(t, led)
	syncToTip(t, e)

	// the ledger "rewrites" block 3 with a bogus parent
	led.grow(t, 1)
	bad, err := block.Decode(led.raws[3])
	require.NoError(t, err)
	bad.ParentHash[0] ^= 0xff
	led.raws[3], err = bad.Encode()
	require.NoError(t, err)

	_, err = e.SyncOnce(context.Background())
	require.Error(t, err)

	status := e.Status()
	assert.Equal(t, StateHalted, status.State)
	assert.NotEmpty(t, status.Fault)
	assert.False(t, status.Synced())

	// the committed prefix stays queryable
	sb, err := st.GetBlock(2)
	require.NoError(t, err)
	assert.Equal(t, uint64(2), sb.Block.Index)

	// a halted engine stays halted
	_, err = e.SyncOnce(context.Background())
	require.Error(t, err)
	assert.Equal(t, StateHalted, e.Status().State)
}

func TestSyncHaltsOnDecodeFault(t *testing.T) {
	led := &fakeLedger{maxBatch: 100}
	led.grow(t, 2)
	led.raws[1] = []byte("garbage")
	e, _ := newTestEngine(t, led)

	_, err := e.SyncOnce(context.Background())
	require.Error(t, err)
	assert.Equal(t, StateHalted, e.Status().State)
}

func TestSyncOnceRefusesAfterHalt(t *testing.T) {
	led := &fakeLedger{maxBatch: 100}
	led.grow(t, 2)
	good := led.raws[1]
	led.raws[1] = []byte("garbage")
	e, _ := newTestEngine(t, led)

	_, err := e.SyncOnce(context.Background())
	require.Error(t, err)
	require.Equal(t, StateHalted, e.Status().State)

	// even a ledger that looks healthy again does not restart a halted engine
	led.raws[1] = good
	advanced, err := e.SyncOnce(context.Background())
	require.Error(t, err)
	assert.False(t, advanced)
	assert.Equal(t, StateHalted, e.Status().State)
	assert.False(t, e.Status().HasWatermark, "no commit happened after the halt")
}

func TestSyncTransientFaultDoesNotHalt(t *testing.T) {
	led := &fakeLedger{maxBatch: 100, failTips: 1}
	led.grow(t, 2)
	e, _ := newTestEngine(t, led)

	_, err := e.SyncOnce(context.Background())
	require.Error(t, err)
	assert.True(t, ledgerclient.IsTransient(err))
	assert.NotEqual(t, StateHalted, e.Status().State)

	// the next cycle succeeds
	advanced, err := e.SyncOnce(context.Background())
	require.NoError(t, err)
	assert.True(t, advanced)
	assert.Equal(t, uint64(1), e.Status().Watermark.Index)
}
