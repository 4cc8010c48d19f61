package rosetta

import (
	"encoding/hex"
	"strings"

	"github.com/holiman/uint256"

	"rosettagw/types"
)

// Operation type and status vocabulary exposed by this gateway.
const (
	OpMint     = "MINT"
	OpBurn     = "BURN"
	OpTransfer = "TRANSFER"
	OpApprove  = "APPROVE"
	OpFee      = "FEE"

	StatusCompleted = "COMPLETED"

	CurveEd25519     = "edwards25519"
	SignatureEd25519 = "ed25519"
)

func OperationTypes() []string {
	return []string{OpMint, OpBurn, OpTransfer, OpApprove, OpFee}
}

// AccountID converts a ledger account into its Rosetta identifier.
func AccountID(a types.Account) *AccountIdentifier {
	id := &AccountIdentifier{Address: a.Owner}
	if a.HasSubaccount() {
		id.SubAccount = &SubAccountIdentifier{Address: hex.EncodeToString(a.Subaccount)}
	}
	return id
}

// AccountFromID parses a Rosetta account identifier back into a ledger
// account, validating both parts.
func AccountFromID(id AccountIdentifier) (types.Account, error) {
	s := id.Address
	if id.SubAccount != nil && id.SubAccount.Address != "" {
		s += "." + id.SubAccount.Address
	}
	return types.ParseAccount(s)
}

func signedAmount(v *uint256.Int, negative bool, cur Currency) *Amount {
	value := v.Dec()
	if negative {
		value = "-" + value
	}
	return &Amount{Value: value, Currency: cur}
}

// OperationsFromTx renders a committed ledger transaction as Rosetta
// operations. Debits are negative, credits positive, fees their own FEE
// operation debited from the payer.
func OperationsFromTx(tx *types.Transaction, cur Currency, withStatus bool) []Operation {
	var status *string
	if withStatus {
		s := StatusCompleted
		status = &s
	}
	var ops []Operation
	add := func(opType string, acct types.Account, amount *Amount, metadata map[string]interface{}) {
		ops = append(ops, Operation{
			OperationIdentifier: OperationIdentifier{Index: int64(len(ops))},
			Type:                opType,
			Status:              status,
			Account:             AccountID(acct),
			Amount:              amount,
			Metadata:            metadata,
		})
	}
	switch tx.Kind {
	case types.TxKindMint:
		add(OpMint, tx.To, signedAmount(tx.Amount, false, cur), nil)
	case types.TxKindBurn:
		add(OpBurn, tx.From, signedAmount(tx.Amount, true, cur), nil)
	case types.TxKindTransfer:
		add(OpTransfer, tx.From, signedAmount(tx.Amount, true, cur), nil)
		add(OpTransfer, tx.To, signedAmount(tx.Amount, false, cur), nil)
	case types.TxKindApprove:
		add(OpApprove, tx.From, nil, map[string]interface{}{
			"spender":   tx.Spender.String(),
			"allowance": tx.Amount.Dec(),
		})
	}
	if tx.HasFee() {
		add(OpFee, tx.From, signedAmount(tx.Fee, true, cur), nil)
	}
	return ops
}

// TxToRosetta renders a committed transaction, keyed by its idempotency
// fingerprint, as a Rosetta transaction.
func TxToRosetta(tx *types.Transaction, fingerprint string, cur Currency) Transaction {
	md := map[string]interface{}{}
	if tx.CreatedAtTime != 0 {
		md["created_at_time"] = tx.CreatedAtTime
	}
	if len(tx.Memo) > 0 {
		md["memo"] = hex.EncodeToString(tx.Memo)
	}
	if len(md) == 0 {
		md = nil
	}
	return Transaction{
		TransactionIdentifier: TransactionIdentifier{Hash: fingerprint},
		Operations:            OperationsFromTx(tx, cur, true),
		Metadata:              md,
	}
}

// IntentFromOperations rebuilds the transaction intent a draft operation set
// describes. FEE operations are ignored here; the fee is bound later from
// construction metadata. The returned transaction has no fee and no
// created_at_time yet.
func IntentFromOperations(ops []Operation) (*types.Transaction, *Error) {
	var core []Operation
	for _, op := range ops {
		if op.Type != OpFee {
			core = append(core, op)
		}
	}
	if len(core) == 0 {
		return nil, errInvalidOps("no operations")
	}

	parseOp := func(op Operation) (types.Account, *uint256.Int, bool, *Error) {
		if op.Account == nil {
			return types.Account{}, nil, false, errInvalidOps("operation without account")
		}
		acct, err := AccountFromID(*op.Account)
		if err != nil {
			return types.Account{}, nil, false, ErrInvalidAccount.WithDetail("reason", err.Error())
		}
		if op.Amount == nil {
			return acct, nil, false, nil
		}
		value := op.Amount.Value
		negative := strings.HasPrefix(value, "-")
		value = strings.TrimPrefix(value, "-")
		amount, err := uint256.FromDecimal(value)
		if err != nil {
			return types.Account{}, nil, false, ErrInvalidAmount.WithDetail("value", op.Amount.Value)
		}
		return acct, amount, negative, nil
	}

	switch core[0].Type {
	case OpTransfer:
		if len(core) != 2 || core[1].Type != OpTransfer {
			return nil, errInvalidOps("transfer needs exactly one debit and one credit operation")
		}
		debit, credit := core[0], core[1]
		if debit.Amount != nil && !strings.HasPrefix(debit.Amount.Value, "-") {
			debit, credit = credit, debit
		}
		from, amount, neg, err := parseOp(debit)
		if err != nil {
			return nil, err
		}
		if amount == nil || !neg {
			return nil, errInvalidOps("transfer debit operation must carry a negative amount")
		}
		to, creditAmount, creditNeg, err := parseOp(credit)
		if err != nil {
			return nil, err
		}
		if creditAmount == nil || creditNeg || !creditAmount.Eq(amount) {
			return nil, errInvalidOps("transfer credit must match the debit amount")
		}
		return &types.Transaction{Kind: types.TxKindTransfer, From: from, To: to, Amount: amount}, nil
	case OpBurn:
		if len(core) != 1 {
			return nil, errInvalidOps("burn needs exactly one operation")
		}
		from, amount, neg, err := parseOp(core[0])
		if err != nil {
			return nil, err
		}
		if amount == nil || !neg {
			return nil, errInvalidOps("burn operation must carry a negative amount")
		}
		return &types.Transaction{Kind: types.TxKindBurn, From: from, Amount: amount}, nil
	case OpApprove:
		if len(core) != 1 {
			return nil, errInvalidOps("approve needs exactly one operation")
		}
		from, _, _, rerr := parseOp(core[0])
		if rerr != nil {
			return nil, rerr
		}
		spenderRaw, ok := core[0].Metadata["spender"].(string)
		if !ok {
			return nil, errInvalidOps("approve needs a spender in metadata")
		}
		spender, err := types.ParseAccount(spenderRaw)
		if err != nil {
			return nil, ErrInvalidAccount.WithDetail("reason", err.Error())
		}
		allowanceRaw, ok := core[0].Metadata["allowance"].(string)
		if !ok {
			return nil, errInvalidOps("approve needs an allowance in metadata")
		}
		allowance, err := uint256.FromDecimal(allowanceRaw)
		if err != nil {
			return nil, ErrInvalidAmount.WithDetail("value", allowanceRaw)
		}
		return &types.Transaction{Kind: types.TxKindApprove, From: from, Spender: spender, Amount: allowance}, nil
	default:
		return nil, errInvalidOps("unsupported operation type " + core[0].Type)
	}
}

func errInvalidOps(msg string) *Error {
	return ErrInvalidOperations.WithDetail("reason", msg)
}
