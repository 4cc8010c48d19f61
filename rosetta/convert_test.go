package rosetta

import (
	"crypto/ed25519"
	"crypto/rand"
	"testing"

	"github.com/holiman/uint256"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"rosettagw/types"
)

var cur = Currency{Symbol: "TKN", Decimals: 8}

func account(t *testing.T) types.Account {
	t.Helper()
	pub, _, err := ed25519.GenerateKey(rand.Reader)
	require.NoError(t, err)
	return types.AccountFromPubKey(pub)
}

func TestOperationsFromTransfer(t *testing.T) {
	from := account(t)
	to := account(t)
	tx := &types.Transaction{
		Kind:   types.TxKindTransfer,
		From:   from,
		To:     to,
		Amount: uint256.NewInt(30),
		Fee:    uint256.NewInt(1),
	}
	ops := OperationsFromTx(tx, cur, true)
	require.Len(t, ops, 3)
	assert.Equal(t, "-30", ops[0].Amount.Value)
	assert.Equal(t, from.Owner, ops[0].Account.Address)
	assert.Equal(t, "30", ops[1].Amount.Value)
	assert.Equal(t, to.Owner, ops[1].Account.Address)
	assert.Equal(t, OpFee, ops[2].Type)
	assert.Equal(t, "-1", ops[2].Amount.Value)
	for i, op := range ops {
		assert.Equal(t, int64(i), op.OperationIdentifier.Index)
		require.NotNil(t, op.Status)
		assert.Equal(t, StatusCompleted, *op.Status)
	}

	// without status, for construction parse responses
	draft := OperationsFromTx(tx, cur, false)
	assert.Nil(t, draft[0].Status)
}

func TestOperationsFromApprove(t *testing.T) {
	from := account(t)
	spender := account(t)
	tx := &types.Transaction{
		Kind:    types.TxKindApprove,
		From:    from,
		Spender: spender,
		Amount:  uint256.NewInt(500),
		Fee:     uint256.NewInt(1),
	}
	ops := OperationsFromTx(tx, cur, true)
	require.Len(t, ops, 2)
	assert.Nil(t, ops[0].Amount, "allowance is not a balance change")
	assert.Equal(t, spender.String(), ops[0].Metadata["spender"])
	assert.Equal(t, "500", ops[0].Metadata["allowance"])
	assert.Equal(t, OpFee, ops[1].Type)
}

func TestIntentRoundtrip(t *testing.T) {
	from := account(t)
	to := account(t)
	for _, tx := range []*types.Transaction{
		{Kind: types.TxKindTransfer, From: from, To: to, Amount: uint256.NewInt(30), Fee: uint256.NewInt(1)},
		{Kind: types.TxKindBurn, From: from, Amount: uint256.NewInt(5), Fee: uint256.NewInt(1)},
		{Kind: types.TxKindApprove, From: from, Spender: to, Amount: uint256.NewInt(7), Fee: uint256.NewInt(1)},
	} {
		ops := OperationsFromTx(tx, cur, false)
		intent, rerr := IntentFromOperations(ops)
		require.Nil(t, rerr, "kind %s", tx.Kind)
		assert.Equal(t, tx.Kind, intent.Kind)
		assert.True(t, intent.From.Equal(tx.From))
		assert.True(t, intent.Amount.Eq(tx.Amount))
		assert.Nil(t, intent.Fee, "fee is bound later from metadata")
	}
}

func TestIntentFromOperationsRejectsBadDrafts(t *testing.T) {
	from := account(t)
	to := account(t)

	// mint is not client-constructible
	mint := OperationsFromTx(&types.Transaction{Kind: types.TxKindMint, To: to, Amount: uint256.NewInt(1)}, cur, false)
	_, rerr := IntentFromOperations(mint)
	require.NotNil(t, rerr)
	assert.Equal(t, ErrInvalidOperations.Code, rerr.Code)

	// mismatched debit and credit
	bad := []Operation{
		{Type: OpTransfer, Account: AccountID(from), Amount: &Amount{Value: "-30", Currency: cur}},
		{Type: OpTransfer, Account: AccountID(to), Amount: &Amount{Value: "29", Currency: cur}},
	}
	_, rerr = IntentFromOperations(bad)
	require.NotNil(t, rerr)
	assert.Equal(t, ErrInvalidOperations.Code, rerr.Code)

	// no operations at all
	_, rerr = IntentFromOperations(nil)
	require.NotNil(t, rerr)

	// garbage amount
	bad[1].Amount.Value = "not-a-number"
	_, rerr = IntentFromOperations(bad)
	require.NotNil(t, rerr)
	assert.Equal(t, ErrInvalidAmount.Code, rerr.Code)
}

func TestAccountIDRoundtrip(t *testing.T) {
	a := account(t)
	sub := make([]byte, types.SubaccountSize)
	sub[0] = 9
	a.Subaccount = sub

	id := AccountID(a)
	require.NotNil(t, id.SubAccount)
	back, err := AccountFromID(*id)
	require.NoError(t, err)
	assert.True(t, a.Equal(back))

	_, err = AccountFromID(AccountIdentifier{Address: "bogus!"})
	assert.Error(t, err)
}
