package client

import (
	"context"
	"crypto/ed25519"
	"encoding/hex"
	"fmt"
	"time"

	"github.com/holiman/uint256"

	"rosettagw/rosetta"
	"rosettagw/types"
)

// Signer holds an ed25519 key pair and signs construction payloads locally;
// private keys never travel to the gateway.
type Signer struct {
	priv ed25519.PrivateKey
}

func NewSigner(priv ed25519.PrivateKey) *Signer {
	return &Signer{priv: priv}
}

func (s *Signer) Account() types.Account {
	return types.AccountFromPubKey(s.priv.Public().(ed25519.PublicKey))
}

func (s *Signer) publicKey() rosetta.PublicKey {
	return rosetta.PublicKey{
		HexBytes:  hex.EncodeToString(s.priv.Public().(ed25519.PublicKey)),
		CurveType: rosetta.CurveEd25519,
	}
}

func (s *Signer) sign(payload rosetta.SigningPayload) (rosetta.Signature, error) {
	digest, err := hex.DecodeString(payload.HexBytes)
	if err != nil {
		return rosetta.Signature{}, fmt.Errorf("signing payload is not hex: %w", err)
	}
	return rosetta.Signature{
		SigningPayload: payload,
		PublicKey:      s.publicKey(),
		SignatureType:  rosetta.SignatureEd25519,
		HexBytes:       hex.EncodeToString(ed25519.Sign(s.priv, digest)),
	}, nil
}

// Transfer drives a full construction session for a token transfer and
// returns the transaction identifier the network knows it by. The currency
// is taken from the gateway's /network/options-advertised configuration via
// the caller.
func (c *Client) Transfer(ctx context.Context, signer *Signer, to types.Account, amount *uint256.Int, currency rosetta.Currency) (string, error) {
	from := signer.Account()

	derived, err := c.Derive(ctx, signer.publicKey())
	if err != nil {
		return "", fmt.Errorf("derive: %w", err)
	}
	if derived.AccountIdentifier == nil || derived.AccountIdentifier.Address != from.Owner {
		return "", fmt.Errorf("gateway derived %v, expected %s", derived.AccountIdentifier, from.Owner)
	}

	ops := []rosetta.Operation{
		{
			OperationIdentifier: rosetta.OperationIdentifier{Index: 0},
			Type:                rosetta.OpTransfer,
			Account:             rosetta.AccountID(from),
			Amount:              &rosetta.Amount{Value: "-" + amount.Dec(), Currency: currency},
		},
		{
			OperationIdentifier: rosetta.OperationIdentifier{Index: 1},
			Type:                rosetta.OpTransfer,
			Account:             rosetta.AccountID(to),
			Amount:              &rosetta.Amount{Value: amount.Dec(), Currency: currency},
		},
	}

	pre, err := c.Preprocess(ctx, ops)
	if err != nil {
		return "", fmt.Errorf("preprocess: %w", err)
	}
	meta, err := c.Metadata(ctx, pre.Options)
	if err != nil {
		return "", fmt.Errorf("metadata: %w", err)
	}
	payloads, err := c.Payloads(ctx, ops, meta.Metadata)
	if err != nil {
		return "", fmt.Errorf("payloads: %w", err)
	}
	if len(payloads.Payloads) != 1 {
		return "", fmt.Errorf("expected one signing payload, got %d", len(payloads.Payloads))
	}
	sig, err := signer.sign(payloads.Payloads[0])
	if err != nil {
		return "", err
	}
	combined, err := c.Combine(ctx, payloads.UnsignedTransaction, []rosetta.Signature{sig})
	if err != nil {
		return "", fmt.Errorf("combine: %w", err)
	}
	submitted, err := c.Submit(ctx, combined.SignedTransaction)
	if err != nil {
		return "", fmt.Errorf("submit: %w", err)
	}
	return submitted.TransactionIdentifier.Hash, nil
}

// WaitForTransaction polls the gateway's search endpoint until the submitted
// transaction shows up in a committed block, or the context expires.
func (c *Client) WaitForTransaction(ctx context.Context, account types.Account, txHash string, poll time.Duration) (*rosetta.BlockTransaction, error) {
	if poll <= 0 {
		poll = 200 * time.Millisecond
	}
	ticker := time.NewTicker(poll)
	defer ticker.Stop()
	limit := int64(100)
	for {
		var offset *int64
		for {
			res, err := c.SearchTransactions(ctx, rosetta.SearchTransactionsRequest{
				AccountIdentifier: rosetta.AccountID(account),
				Offset:            offset,
				Limit:             &limit,
			})
			if err != nil {
				break
			}
			for i := range res.Transactions {
				if res.Transactions[i].Transaction.TransactionIdentifier.Hash == txHash {
					return &res.Transactions[i], nil
				}
			}
			if res.NextOffset == nil {
				break
			}
			offset = res.NextOffset
		}
		select {
		case <-ctx.Done():
			return nil, fmt.Errorf("transaction %s not confirmed: %w", txHash, ctx.Err())
		case <-ticker.C:
		}
	}
}
