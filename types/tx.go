package types

import (
	"crypto/sha256"
	"encoding/hex"
	"fmt"

	"github.com/holiman/uint256"
)

// TxKind is the closed set of ledger operation kinds.
type TxKind uint8

const (
	TxKindMint TxKind = iota
	TxKindBurn
	TxKindTransfer
	TxKindApprove
)

func (k TxKind) String() string {
	switch k {
	case TxKindMint:
		return "MINT"
	case TxKindBurn:
		return "BURN"
	case TxKindTransfer:
		return "TRANSFER"
	case TxKindApprove:
		return "APPROVE"
	default:
		return fmt.Sprintf("UNKNOWN(%d)", uint8(k))
	}
}

func ParseTxKind(s string) (TxKind, error) {
	switch s {
	case "MINT":
		return TxKindMint, nil
	case "BURN":
		return TxKindBurn, nil
	case "TRANSFER":
		return TxKindTransfer, nil
	case "APPROVE":
		return TxKindApprove, nil
	default:
		return 0, fmt.Errorf("unknown operation kind %q", s)
	}
}

// Transaction is one committed ledger operation. It is immutable once stored.
// Which account fields are set depends on Kind:
//
//	Mint:     To
//	Burn:     From
//	Transfer: From, To
//	Approve:  From, Spender
type Transaction struct {
	Kind          TxKind       `json:"kind"`
	From          Account      `json:"from,omitempty"`
	To            Account      `json:"to,omitempty"`
	Spender       Account      `json:"spender,omitempty"`
	Amount        *uint256.Int `json:"-"`
	Fee           *uint256.Int `json:"-"`
	Memo          []byte       `json:"memo,omitempty"`
	CreatedAtTime uint64       `json:"created_at_time"`
}

// HasFee reports whether the operation carries an explicit fee.
func (tx *Transaction) HasFee() bool {
	return tx.Fee != nil && !tx.Fee.IsZero()
}

// Fingerprint is the idempotency key of a transaction: a hash over every
// field that participates in ledger-side deduplication. Two submissions with
// the same fingerprint are the same transfer.
func (tx *Transaction) Fingerprint() string {
	h := sha256.New()
	fmt.Fprintf(h, "%s|%s|%s|%s|", tx.Kind, tx.From, tx.To, tx.Spender)
	if tx.Amount != nil {
		h.Write([]byte(tx.Amount.Dec()))
	}
	h.Write([]byte{'|'})
	if tx.Fee != nil {
		h.Write([]byte(tx.Fee.Dec()))
	}
	fmt.Fprintf(h, "|%x|%d", tx.Memo, tx.CreatedAtTime)
	return hex.EncodeToString(h.Sum(nil))
}

// Validate checks the structural invariants of the tagged variant.
func (tx *Transaction) Validate() error {
	if tx.Amount == nil {
		return fmt.Errorf("transaction has no amount")
	}
	switch tx.Kind {
	case TxKindMint:
		if tx.To.IsZero() {
			return fmt.Errorf("mint without destination account")
		}
	case TxKindBurn:
		if tx.From.IsZero() {
			return fmt.Errorf("burn without source account")
		}
	case TxKindTransfer:
		if tx.From.IsZero() || tx.To.IsZero() {
			return fmt.Errorf("transfer without source or destination account")
		}
	case TxKindApprove:
		if tx.From.IsZero() || tx.Spender.IsZero() {
			return fmt.Errorf("approve without approver or spender account")
		}
	default:
		return fmt.Errorf("unknown transaction kind %d", tx.Kind)
	}
	return nil
}
