package store

import (
	"bytes"
	"encoding/binary"
	"fmt"

	"github.com/holiman/uint256"
	bolt "go.etcd.io/bbolt"

	"rosettagw/block"
	"rosettagw/jsonx"
	"rosettagw/types"
)

// GetBlock returns the block at index, or ErrNotFound beyond the watermark.
func (s *Store) GetBlock(index uint64) (*StoredBlock, error) {
	var sb *StoredBlock
	err := s.db.View(func(tx *bolt.Tx) error {
		var err error
		sb, err = readBlock(tx, index)
		return err
	})
	return sb, err
}

// GetBlockByHash resolves a block hash through the hash index.
func (s *Store) GetBlockByHash(h block.Hash) (*StoredBlock, error) {
	var sb *StoredBlock
	err := s.db.View(func(tx *bolt.Tx) error {
		raw := tx.Bucket(bucketBlockHashIdx).Get(h[:])
		if raw == nil {
			return fmt.Errorf("block with hash %x: %w", h[:8], ErrNotFound)
		}
		var err error
		sb, err = readBlock(tx, binary.BigEndian.Uint64(raw))
		return err
	})
	return sb, err
}

func readBlock(tx *bolt.Tx, index uint64) (*StoredBlock, error) {
	data := tx.Bucket(bucketBlocks).Get(u64be(index))
	if data == nil {
		return nil, fmt.Errorf("block %d: %w", index, ErrNotFound)
	}
	var row blockRow
	if err := jsonx.Unmarshal(data, &row); err != nil {
		return nil, fmt.Errorf("failed to unmarshal block %d: %w", index, err)
	}
	return blockFromRow(&row)
}

// TxLocation points at one committed transaction.
type TxLocation struct {
	BlockIndex  uint64
	Position    int
	BlockHash   block.Hash
	Timestamp   uint64
	Fingerprint string
	Tx          *types.Transaction
}

// GetTransaction returns the transaction at (block index, position).
func (s *Store) GetTransaction(index uint64, pos int) (*TxLocation, error) {
	sb, err := s.GetBlock(index)
	if err != nil {
		return nil, err
	}
	if pos < 0 || pos >= len(sb.Block.Txs) {
		return nil, fmt.Errorf("block %d has no transaction at position %d: %w", index, pos, ErrNotFound)
	}
	tx := sb.Block.Txs[pos]
	return &TxLocation{
		BlockIndex:  index,
		Position:    pos,
		BlockHash:   sb.Hash,
		Timestamp:   sb.Block.Timestamp,
		Fingerprint: tx.Fingerprint(),
		Tx:          tx,
	}, nil
}

// FindByFingerprint looks up where a transaction with the given idempotency
// fingerprint was first applied.
func (s *Store) FindByFingerprint(fp string) (*TxLocation, bool, error) {
	var loc *TxLocation
	found := false
	err := s.db.View(func(tx *bolt.Tx) error {
		raw := tx.Bucket(bucketFingerprintIdx).Get([]byte(fp))
		if raw == nil {
			return nil
		}
		index := binary.BigEndian.Uint64(raw[:8])
		pos := int(binary.BigEndian.Uint32(raw[8:]))
		sb, err := readBlock(tx, index)
		if err != nil {
			return err
		}
		if pos >= len(sb.Block.Txs) {
			return fmt.Errorf("corrupt fingerprint index for %s", fp)
		}
		loc = &TxLocation{
			BlockIndex:  index,
			Position:    pos,
			BlockHash:   sb.Hash,
			Timestamp:   sb.Block.Timestamp,
			Fingerprint: fp,
			Tx:          sb.Block.Txs[pos],
		}
		found = true
		return nil
	})
	return loc, found, err
}

// GetBalance returns the current materialized balance of an account.
// Accounts the ledger never touched hold zero.
func (s *Store) GetBalance(acct types.Account) (*uint256.Int, error) {
	bal := uint256.NewInt(0)
	err := s.db.View(func(tx *bolt.Tx) error {
		data := tx.Bucket(bucketBalances).Get([]byte(acct.String()))
		if data == nil {
			return nil
		}
		parsed, err := uint256.FromDecimal(string(data))
		if err != nil {
			return fmt.Errorf("corrupt balance row for %s: %w", acct, err)
		}
		bal = parsed
		return nil
	})
	return bal, err
}

// GetBalanceAt returns the balance as of committed height. It seeks the most
// recent balance snapshot at or below the height, so no log replay happens.
func (s *Store) GetBalanceAt(acct types.Account, height uint64) (*uint256.Int, error) {
	bal := uint256.NewInt(0)
	err := s.db.View(func(tx *bolt.Tx) error {
		wm, ok := readWatermark(tx)
		if !ok || height > wm.Index {
			return fmt.Errorf("height %d beyond watermark: %w", height, ErrNotFound)
		}
		prefix := append([]byte(acct.String()), 0)
		c := tx.Bucket(bucketBalanceHistory).Cursor()
		// first key strictly after (account, height), then one step back
		k, v := c.Seek(balanceHistoryKey(acct.String(), height+1))
		if k == nil {
			k, v = c.Last()
		} else {
			k, v = c.Prev()
		}
		if k == nil || !bytes.HasPrefix(k, prefix) {
			return nil // untouched up to this height
		}
		parsed, err := uint256.FromDecimal(string(v))
		if err != nil {
			return fmt.Errorf("corrupt balance snapshot for %s: %w", acct, err)
		}
		bal = parsed
		return nil
	})
	return bal, err
}

// SearchFilter narrows a transaction search. Nil fields match everything.
type SearchFilter struct {
	Account  *types.Account
	Kind     *types.TxKind
	MinBlock *uint64
	MaxBlock *uint64
}

func (f SearchFilter) matches(tx *types.Transaction) bool {
	if f.Kind != nil && tx.Kind != *f.Kind {
		return false
	}
	if f.Account != nil {
		a := *f.Account
		if !tx.From.Equal(a) && !tx.To.Equal(a) && !tx.Spender.Equal(a) {
			return false
		}
	}
	return true
}

// SearchTransactions returns one page of matching transactions in ascending
// (block index, position) order. History is append-only, so the integer
// offset is a stable continuation token: pages over a fixed range are
// disjoint and exhaustive.
func (s *Store) SearchTransactions(f SearchFilter, offset int64, limit int) (results []*TxLocation, total int64, nextOffset *int64, err error) {
	if limit <= 0 {
		return nil, 0, nil, fmt.Errorf("limit must be positive")
	}
	if offset < 0 {
		return nil, 0, nil, fmt.Errorf("offset must not be negative")
	}
	err = s.db.View(func(tx *bolt.Tx) error {
		collect := func(loc *TxLocation) {
			if total >= offset && len(results) < limit {
				results = append(results, loc)
			}
			total++
		}
		if f.Account != nil {
			return searchByAccount(tx, f, collect)
		}
		return searchByRange(tx, f, collect)
	})
	if err != nil {
		return nil, 0, nil, err
	}
	if consumed := offset + int64(len(results)); consumed < total {
		nextOffset = &consumed
	}
	return results, total, nextOffset, nil
}

func searchByAccount(btx *bolt.Tx, f SearchFilter, collect func(*TxLocation)) error {
	prefix := append([]byte(f.Account.String()), 0)
	c := btx.Bucket(bucketAccountTxIdx).Cursor()
	var cached *StoredBlock
	for k, _ := c.Seek(prefix); k != nil && bytes.HasPrefix(k, prefix); k, _ = c.Next() {
		index := binary.BigEndian.Uint64(k[len(prefix) : len(prefix)+8])
		pos := int(binary.BigEndian.Uint32(k[len(prefix)+8:]))
		if f.MinBlock != nil && index < *f.MinBlock {
			continue
		}
		if f.MaxBlock != nil && index > *f.MaxBlock {
			break
		}
		if cached == nil || cached.Block.Index != index {
			sb, err := readBlock(btx, index)
			if err != nil {
				return err
			}
			cached = sb
		}
		tx := cached.Block.Txs[pos]
		if !f.matches(tx) {
			continue
		}
		collect(&TxLocation{
			BlockIndex:  index,
			Position:    pos,
			BlockHash:   cached.Hash,
			Timestamp:   cached.Block.Timestamp,
			Fingerprint: tx.Fingerprint(),
			Tx:          tx,
		})
	}
	return nil
}

func searchByRange(btx *bolt.Tx, f SearchFilter, collect func(*TxLocation)) error {
	c := btx.Bucket(bucketBlocks).Cursor()
	start := u64be(0)
	if f.MinBlock != nil {
		start = u64be(*f.MinBlock)
	}
	for k, v := c.Seek(start); k != nil; k, v = c.Next() {
		index := binary.BigEndian.Uint64(k)
		if f.MaxBlock != nil && index > *f.MaxBlock {
			break
		}
		var row blockRow
		if err := jsonx.Unmarshal(v, &row); err != nil {
			return fmt.Errorf("failed to unmarshal block %d: %w", index, err)
		}
		sb, err := blockFromRow(&row)
		if err != nil {
			return err
		}
		for pos, tx := range sb.Block.Txs {
			if !f.matches(tx) {
				continue
			}
			collect(&TxLocation{
				BlockIndex:  index,
				Position:    pos,
				BlockHash:   sb.Hash,
				Timestamp:   sb.Block.Timestamp,
				Fingerprint: row.Txs[pos].Fingerprint,
				Tx:          tx,
			})
		}
	}
	return nil
}
