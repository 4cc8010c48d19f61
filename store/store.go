package store

import (
	"encoding/binary"
	"encoding/hex"
	"errors"
	"fmt"
	"time"

	"github.com/holiman/uint256"
	bolt "go.etcd.io/bbolt"

	"rosettagw/block"
	"rosettagw/jsonx"
	"rosettagw/logx"
	"rosettagw/types"
)

// schemaVersion is bumped on any incompatible bucket or row layout change.
// A store file with a different version refuses to open.
const schemaVersion uint64 = 1

var (
	ErrNotFound       = errors.New("not found")
	ErrSchemaMismatch = errors.New("store schema version mismatch")
)

var (
	bucketMeta           = []byte("meta")
	bucketBlocks         = []byte("blocks")
	bucketBlockHashIdx   = []byte("block_hash_idx")
	bucketBalances       = []byte("balances")
	bucketBalanceHistory = []byte("balance_history")
	bucketAccountTxIdx   = []byte("account_tx_idx")
	bucketFingerprintIdx = []byte("fingerprint_idx")

	keySchemaVersion = []byte("schema_version")
	keyWatermark     = []byte("watermark")
)

// Watermark is the highest contiguous block index and hash durably committed.
// It is co-committed with the batch it certifies.
type Watermark struct {
	Index uint64
	Hash  block.Hash
}

// Store is the durable, queryable storage of blocks, transactions and
// materialized balances. Writes happen only through AppendBatch; every read
// runs inside a bbolt read transaction and therefore observes a consistent
// snapshot that never includes a partially committed batch.
type Store struct {
	db *bolt.DB
}

// Open opens (or creates) the store file and validates the schema version.
func Open(path string) (*Store, error) {
	db, err := bolt.Open(path, 0600, &bolt.Options{Timeout: time.Second})
	if err != nil {
		return nil, fmt.Errorf("open store %s: %w", path, err)
	}
	err = db.Update(func(tx *bolt.Tx) error {
		for _, name := range [][]byte{
			bucketMeta, bucketBlocks, bucketBlockHashIdx, bucketBalances,
			bucketBalanceHistory, bucketAccountTxIdx, bucketFingerprintIdx,
		} {
			if _, err := tx.CreateBucketIfNotExists(name); err != nil {
				return err
			}
		}
		meta := tx.Bucket(bucketMeta)
		stored := meta.Get(keySchemaVersion)
		if stored == nil {
			return meta.Put(keySchemaVersion, u64be(schemaVersion))
		}
		if v := binary.BigEndian.Uint64(stored); v != schemaVersion {
			return fmt.Errorf("%w: store has v%d, this binary expects v%d", ErrSchemaMismatch, v, schemaVersion)
		}
		return nil
	})
	if err != nil {
		db.Close()
		return nil, err
	}
	return &Store{db: db}, nil
}

func (s *Store) Close() error {
	return s.db.Close()
}

// Watermark returns the current sync watermark. ok is false before the first
// committed batch.
func (s *Store) Watermark() (wm Watermark, ok bool, err error) {
	err = s.db.View(func(tx *bolt.Tx) error {
		wm, ok = readWatermark(tx)
		return nil
	})
	return wm, ok, err
}

type watermarkRow struct {
	Index uint64 `json:"index"`
	Hash  string `json:"hash"`
}

func readWatermark(tx *bolt.Tx) (Watermark, bool) {
	data := tx.Bucket(bucketMeta).Get(keyWatermark)
	if data == nil {
		return Watermark{}, false
	}
	var row watermarkRow
	if err := jsonx.Unmarshal(data, &row); err != nil {
		return Watermark{}, false
	}
	wm := Watermark{Index: row.Index}
	raw, err := hex.DecodeString(row.Hash)
	if err != nil || len(raw) != block.HashSize {
		return Watermark{}, false
	}
	copy(wm.Hash[:], raw)
	return wm, true
}

// AppendBatch commits a verified, contiguous batch of blocks together with
// the new watermark as one atomic storage transaction. A crash at any point
// leaves the store exactly as it was before the call.
func (s *Store) AppendBatch(blocks []*block.Block, wm Watermark) error {
	if len(blocks) == 0 {
		return fmt.Errorf("empty batch")
	}
	last := blocks[len(blocks)-1]
	if wm.Index != last.Index || wm.Hash != last.Hash() {
		return fmt.Errorf("watermark does not certify the last block of the batch")
	}

	err := s.db.Update(func(tx *bolt.Tx) error {
		current, ok := readWatermark(tx)
		next := uint64(0)
		if ok {
			next = current.Index + 1
		}

		ledger := newBalanceSheet(tx)
		for _, b := range blocks {
			if b.Index != next {
				return fmt.Errorf("batch not contiguous: got block %d, store expects %d", b.Index, next)
			}
			if err := putBlock(tx, b); err != nil {
				return err
			}
			for pos, btx := range b.Txs {
				if err := ledger.apply(btx); err != nil {
					return fmt.Errorf("block %d tx %d: %w", b.Index, pos, err)
				}
				if err := indexTransaction(tx, b, pos, btx); err != nil {
					return err
				}
			}
			if err := ledger.snapshotTouched(b.Index); err != nil {
				return err
			}
			next++
		}
		if err := ledger.flush(); err != nil {
			return err
		}

		row := watermarkRow{Index: wm.Index, Hash: hex.EncodeToString(wm.Hash[:])}
		data, err := jsonx.Marshal(row)
		if err != nil {
			return err
		}
		return tx.Bucket(bucketMeta).Put(keyWatermark, data)
	})
	if err != nil {
		return err
	}
	logx.Debug("STORE", "committed batch up to block ", wm.Index)
	return nil
}

func putBlock(tx *bolt.Tx, b *block.Block) error {
	row, err := rowFromBlock(b)
	if err != nil {
		return err
	}
	data, err := jsonx.Marshal(row)
	if err != nil {
		return fmt.Errorf("failed to marshal block %d: %w", b.Index, err)
	}
	if err := tx.Bucket(bucketBlocks).Put(u64be(b.Index), data); err != nil {
		return err
	}
	h := b.Hash()
	return tx.Bucket(bucketBlockHashIdx).Put(h[:], u64be(b.Index))
}

func indexTransaction(tx *bolt.Tx, b *block.Block, pos int, btx *types.Transaction) error {
	idx := tx.Bucket(bucketAccountTxIdx)
	seen := map[string]bool{}
	for _, acct := range []types.Account{btx.From, btx.To, btx.Spender} {
		if acct.IsZero() || seen[acct.String()] {
			continue
		}
		seen[acct.String()] = true
		if err := idx.Put(accountTxKey(acct, b.Index, pos), []byte{byte(btx.Kind)}); err != nil {
			return err
		}
	}
	// First write wins: a duplicate fingerprint keeps pointing at the block
	// where the transfer was originally applied.
	fps := tx.Bucket(bucketFingerprintIdx)
	fp := []byte(btx.Fingerprint())
	if fps.Get(fp) == nil {
		return fps.Put(fp, locationValue(b.Index, pos))
	}
	return nil
}

// balanceSheet applies transaction deltas to materialized balances inside one
// store transaction, tracking enough state to enforce the conservation
// invariant before the commit is allowed through.
type balanceSheet struct {
	tx       *bolt.Tx
	balances map[string]*uint256.Int // running balance per touched account
	start    map[string]*uint256.Int // balance before this batch
	credits  map[string]*uint256.Int
	debits   map[string]*uint256.Int
	touched  map[string]bool // touched by the block being applied
}

func newBalanceSheet(tx *bolt.Tx) *balanceSheet {
	return &balanceSheet{
		tx:       tx,
		balances: map[string]*uint256.Int{},
		start:    map[string]*uint256.Int{},
		credits:  map[string]*uint256.Int{},
		debits:   map[string]*uint256.Int{},
		touched:  map[string]bool{},
	}
}

func (bs *balanceSheet) load(acct types.Account) (*uint256.Int, error) {
	key := acct.String()
	if bal, ok := bs.balances[key]; ok {
		return bal, nil
	}
	bal := uint256.NewInt(0)
	if data := bs.tx.Bucket(bucketBalances).Get([]byte(key)); data != nil {
		parsed, err := uint256.FromDecimal(string(data))
		if err != nil {
			return nil, fmt.Errorf("corrupt balance row for %s: %w", key, err)
		}
		bal = parsed
	}
	bs.balances[key] = bal
	bs.start[key] = bal.Clone()
	bs.credits[key] = uint256.NewInt(0)
	bs.debits[key] = uint256.NewInt(0)
	return bal, nil
}

func (bs *balanceSheet) credit(acct types.Account, amount *uint256.Int) error {
	bal, err := bs.load(acct)
	if err != nil {
		return err
	}
	key := acct.String()
	bal.Add(bal, amount)
	bs.credits[key].Add(bs.credits[key], amount)
	bs.touched[key] = true
	return nil
}

func (bs *balanceSheet) debit(acct types.Account, amount *uint256.Int) error {
	bal, err := bs.load(acct)
	if err != nil {
		return err
	}
	if bal.Lt(amount) {
		return fmt.Errorf("account %s balance %s cannot cover debit %s", acct, bal.Dec(), amount.Dec())
	}
	key := acct.String()
	bal.Sub(bal, amount)
	bs.debits[key].Add(bs.debits[key], amount)
	bs.touched[key] = true
	return nil
}

// apply materializes one transaction's balance effect.
func (bs *balanceSheet) apply(tx *types.Transaction) error {
	if err := tx.Validate(); err != nil {
		return err
	}
	switch tx.Kind {
	case types.TxKindMint:
		return bs.credit(tx.To, tx.Amount)
	case types.TxKindBurn:
		if err := bs.debit(tx.From, tx.Amount); err != nil {
			return err
		}
	case types.TxKindTransfer:
		if err := bs.debit(tx.From, tx.Amount); err != nil {
			return err
		}
		if err := bs.credit(tx.To, tx.Amount); err != nil {
			return err
		}
	case types.TxKindApprove:
		// allowance changes carry no balance effect beyond the fee
	}
	if tx.HasFee() {
		return bs.debit(tx.From, tx.Fee)
	}
	return nil
}

// snapshotTouched records the post-block balance of every account the block
// touched, keyed by height, so historical queries never replay the log.
func (bs *balanceSheet) snapshotTouched(height uint64) error {
	hist := bs.tx.Bucket(bucketBalanceHistory)
	for key := range bs.touched {
		if err := hist.Put(balanceHistoryKey(key, height), []byte(bs.balances[key].Dec())); err != nil {
			return err
		}
	}
	bs.touched = map[string]bool{}
	return nil
}

// flush writes final balances after checking the conservation invariant:
// start + credits == final + debits for every account the batch touched.
func (bs *balanceSheet) flush() error {
	bucket := bs.tx.Bucket(bucketBalances)
	for key, bal := range bs.balances {
		lhs := new(uint256.Int).Add(bs.start[key], bs.credits[key])
		rhs := new(uint256.Int).Add(bal, bs.debits[key])
		if !lhs.Eq(rhs) {
			return fmt.Errorf("balance invariant violated for %s: start %s + credits %s != final %s + debits %s",
				key, bs.start[key].Dec(), bs.credits[key].Dec(), bal.Dec(), bs.debits[key].Dec())
		}
		if err := bucket.Put([]byte(key), []byte(bal.Dec())); err != nil {
			return err
		}
	}
	return nil
}

func u64be(v uint64) []byte {
	buf := make([]byte, 8)
	binary.BigEndian.PutUint64(buf, v)
	return buf
}

func locationValue(index uint64, pos int) []byte {
	buf := make([]byte, 12)
	binary.BigEndian.PutUint64(buf[:8], index)
	binary.BigEndian.PutUint32(buf[8:], uint32(pos))
	return buf
}

// accountTxKey sorts ascending by (account, block index, position). Account
// strings never contain a NUL byte, so it is a safe separator.
func accountTxKey(acct types.Account, index uint64, pos int) []byte {
	key := append([]byte(acct.String()), 0)
	key = append(key, u64be(index)...)
	buf := make([]byte, 4)
	binary.BigEndian.PutUint32(buf, uint32(pos))
	return append(key, buf...)
}

func balanceHistoryKey(acct string, height uint64) []byte {
	key := append([]byte(acct), 0)
	return append(key, u64be(height)...)
}
