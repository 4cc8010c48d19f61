package block

import (
	"fmt"

	"github.com/fxamacker/cbor/v2"
	"github.com/holiman/uint256"
	"golang.org/x/crypto/blake2b"

	"rosettagw/types"
)

// HashSize is the size of a block hash digest.
const HashSize = 32

type Hash [HashSize]byte

// ZeroHash is the declared parent hash of block 0.
var ZeroHash Hash

// Block is one committed, hash-chained unit of ledger history.
type Block struct {
	Index       uint64
	ParentHash  Hash
	Timestamp   uint64 // unix nanos
	Txs         []*types.Transaction
	Certificate []byte // optional finality proof, not part of the hash
}

// Wire format. Amounts travel as decimal strings, accounts in their
// canonical text form. Encoding is deterministic CBOR so that hashes are
// stable across encoders.
type wireTx struct {
	Kind          string `cbor:"kind"`
	From          string `cbor:"from,omitempty"`
	To            string `cbor:"to,omitempty"`
	Spender       string `cbor:"spender,omitempty"`
	Amount        string `cbor:"amount"`
	Fee           string `cbor:"fee,omitempty"`
	Memo          []byte `cbor:"memo,omitempty"`
	CreatedAtTime uint64 `cbor:"created_at_time,omitempty"`
}

type wireBlock struct {
	Index       uint64   `cbor:"index"`
	ParentHash  []byte   `cbor:"parent_hash"`
	Timestamp   uint64   `cbor:"timestamp"`
	Txs         []wireTx `cbor:"txs"`
	Certificate []byte   `cbor:"certificate,omitempty"`
}

var (
	encMode cbor.EncMode
	decMode cbor.DecMode
)

func init() {
	var err error
	// Deterministic map key order, required for stable block hashes
	encMode, err = cbor.EncOptions{Sort: cbor.SortCoreDeterministic}.EncMode()
	if err != nil {
		panic(err)
	}
	decMode, err = cbor.DecOptions{}.DecMode()
	if err != nil {
		panic(err)
	}
}

func toWireTx(tx *types.Transaction) wireTx {
	w := wireTx{
		Kind:          tx.Kind.String(),
		Memo:          tx.Memo,
		CreatedAtTime: tx.CreatedAtTime,
	}
	if !tx.From.IsZero() {
		w.From = tx.From.String()
	}
	if !tx.To.IsZero() {
		w.To = tx.To.String()
	}
	if !tx.Spender.IsZero() {
		w.Spender = tx.Spender.String()
	}
	if tx.Amount != nil {
		w.Amount = tx.Amount.Dec()
	}
	if tx.Fee != nil {
		w.Fee = tx.Fee.Dec()
	}
	return w
}

func fromWireTx(w wireTx) (*types.Transaction, error) {
	kind, err := types.ParseTxKind(w.Kind)
	if err != nil {
		return nil, err
	}
	tx := &types.Transaction{
		Kind:          kind,
		Memo:          w.Memo,
		CreatedAtTime: w.CreatedAtTime,
	}
	if w.From != "" {
		if tx.From, err = types.ParseAccount(w.From); err != nil {
			return nil, err
		}
	}
	if w.To != "" {
		if tx.To, err = types.ParseAccount(w.To); err != nil {
			return nil, err
		}
	}
	if w.Spender != "" {
		if tx.Spender, err = types.ParseAccount(w.Spender); err != nil {
			return nil, err
		}
	}
	if tx.Amount, err = uint256.FromDecimal(w.Amount); err != nil {
		return nil, fmt.Errorf("invalid amount %q: %w", w.Amount, err)
	}
	if w.Fee != "" {
		if tx.Fee, err = uint256.FromDecimal(w.Fee); err != nil {
			return nil, fmt.Errorf("invalid fee %q: %w", w.Fee, err)
		}
	}
	if err := tx.Validate(); err != nil {
		return nil, err
	}
	return tx, nil
}

func (b *Block) toWire() wireBlock {
	txs := make([]wireTx, len(b.Txs))
	for i, tx := range b.Txs {
		txs[i] = toWireTx(tx)
	}
	return wireBlock{
		Index:       b.Index,
		ParentHash:  b.ParentHash[:],
		Timestamp:   b.Timestamp,
		Txs:         txs,
		Certificate: b.Certificate,
	}
}

// Encode serializes the block into its deterministic CBOR wire form.
func (b *Block) Encode() ([]byte, error) {
	return encMode.Marshal(b.toWire())
}

// Decode parses a raw wire-format block.
func Decode(raw []byte) (*Block, error) {
	var w wireBlock
	if err := decMode.Unmarshal(raw, &w); err != nil {
		return nil, fmt.Errorf("malformed block payload: %w", err)
	}
	if len(w.ParentHash) != HashSize {
		return nil, fmt.Errorf("malformed block payload: parent hash is %d bytes", len(w.ParentHash))
	}
	b := &Block{
		Index:       w.Index,
		Timestamp:   w.Timestamp,
		Txs:         make([]*types.Transaction, len(w.Txs)),
		Certificate: w.Certificate,
	}
	copy(b.ParentHash[:], w.ParentHash)
	for i, wt := range w.Txs {
		tx, err := fromWireTx(wt)
		if err != nil {
			return nil, fmt.Errorf("malformed transaction %d: %w", i, err)
		}
		b.Txs[i] = tx
	}
	return b, nil
}

// Hash returns the blake2b-256 digest of the block's wire form without the
// certificate, so attaching a finality proof later does not change the chain.
func (b *Block) Hash() Hash {
	w := b.toWire()
	w.Certificate = nil
	raw, err := encMode.Marshal(w)
	if err != nil {
		// encMode is deterministic and wireBlock has no unencodable fields
		panic(fmt.Sprintf("block encode: %v", err))
	}
	return blake2b.Sum256(raw)
}
