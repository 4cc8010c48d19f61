package store

import (
	"encoding/hex"
	"fmt"

	"github.com/holiman/uint256"

	"rosettagw/block"
	"rosettagw/types"
)

// Row layout persisted in the blocks bucket. Amounts are decimal strings,
// accounts canonical text, hashes hex. Fingerprints are precomputed so the
// search path never re-hashes.
type blockRow struct {
	Index       uint64  `json:"index"`
	Hash        string  `json:"hash"`
	ParentHash  string  `json:"parent_hash"`
	Timestamp   uint64  `json:"timestamp"`
	Certificate []byte  `json:"certificate,omitempty"`
	Txs         []txRow `json:"txs"`
}

type txRow struct {
	Kind          string `json:"kind"`
	From          string `json:"from,omitempty"`
	To            string `json:"to,omitempty"`
	Spender       string `json:"spender,omitempty"`
	Amount        string `json:"amount"`
	Fee           string `json:"fee,omitempty"`
	Memo          []byte `json:"memo,omitempty"`
	CreatedAtTime uint64 `json:"created_at_time,omitempty"`
	Fingerprint   string `json:"fingerprint"`
}

func rowFromBlock(b *block.Block) (*blockRow, error) {
	h := b.Hash()
	row := &blockRow{
		Index:       b.Index,
		Hash:        hex.EncodeToString(h[:]),
		ParentHash:  hex.EncodeToString(b.ParentHash[:]),
		Timestamp:   b.Timestamp,
		Certificate: b.Certificate,
		Txs:         make([]txRow, len(b.Txs)),
	}
	for i, tx := range b.Txs {
		r := txRow{
			Kind:          tx.Kind.String(),
			Amount:        tx.Amount.Dec(),
			Memo:          tx.Memo,
			CreatedAtTime: tx.CreatedAtTime,
			Fingerprint:   tx.Fingerprint(),
		}
		if !tx.From.IsZero() {
			r.From = tx.From.String()
		}
		if !tx.To.IsZero() {
			r.To = tx.To.String()
		}
		if !tx.Spender.IsZero() {
			r.Spender = tx.Spender.String()
		}
		if tx.Fee != nil {
			r.Fee = tx.Fee.Dec()
		}
		row.Txs[i] = r
	}
	return row, nil
}

func txFromRow(r txRow) (*types.Transaction, error) {
	kind, err := types.ParseTxKind(r.Kind)
	if err != nil {
		return nil, err
	}
	tx := &types.Transaction{
		Kind:          kind,
		Memo:          r.Memo,
		CreatedAtTime: r.CreatedAtTime,
	}
	if r.From != "" {
		if tx.From, err = types.ParseAccount(r.From); err != nil {
			return nil, err
		}
	}
	if r.To != "" {
		if tx.To, err = types.ParseAccount(r.To); err != nil {
			return nil, err
		}
	}
	if r.Spender != "" {
		if tx.Spender, err = types.ParseAccount(r.Spender); err != nil {
			return nil, err
		}
	}
	if tx.Amount, err = uint256.FromDecimal(r.Amount); err != nil {
		return nil, fmt.Errorf("corrupt amount %q: %w", r.Amount, err)
	}
	if r.Fee != "" {
		if tx.Fee, err = uint256.FromDecimal(r.Fee); err != nil {
			return nil, fmt.Errorf("corrupt fee %q: %w", r.Fee, err)
		}
	}
	return tx, nil
}

// StoredBlock is a committed block together with its hash.
type StoredBlock struct {
	Block *block.Block
	Hash  block.Hash
}

func blockFromRow(row *blockRow) (*StoredBlock, error) {
	b := &block.Block{
		Index:       row.Index,
		Timestamp:   row.Timestamp,
		Certificate: row.Certificate,
		Txs:         make([]*types.Transaction, len(row.Txs)),
	}
	parent, err := hex.DecodeString(row.ParentHash)
	if err != nil || len(parent) != block.HashSize {
		return nil, fmt.Errorf("corrupt parent hash in block %d", row.Index)
	}
	copy(b.ParentHash[:], parent)
	for i, r := range row.Txs {
		tx, err := txFromRow(r)
		if err != nil {
			return nil, fmt.Errorf("corrupt tx %d in block %d: %w", i, row.Index, err)
		}
		b.Txs[i] = tx
	}
	sb := &StoredBlock{Block: b}
	h, err := hex.DecodeString(row.Hash)
	if err != nil || len(h) != block.HashSize {
		return nil, fmt.Errorf("corrupt hash in block %d", row.Index)
	}
	copy(sb.Hash[:], h)
	return sb, nil
}
