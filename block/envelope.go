package block

import (
	"crypto/ed25519"
	"fmt"

	"golang.org/x/crypto/blake2b"

	"rosettagw/types"
)

// Envelope wire forms used by the construction flow and the ledger's submit
// boundary. An unsigned envelope carries just the transaction intent; the
// signed envelope adds the signer's public key and an ed25519 signature over
// SigningDigest(unsigned bytes).

type wireSigned struct {
	Tx        wireTx `cbor:"tx"`
	PubKey    []byte `cbor:"pubkey"`
	Signature []byte `cbor:"signature"`
}

// SignedTransaction is a decoded signed envelope.
type SignedTransaction struct {
	Tx        *types.Transaction
	PubKey    ed25519.PublicKey
	Signature []byte
}

// EncodeUnsigned serializes a transaction intent for signing.
func EncodeUnsigned(tx *types.Transaction) ([]byte, error) {
	if err := tx.Validate(); err != nil {
		return nil, err
	}
	return encMode.Marshal(toWireTx(tx))
}

// DecodeUnsigned parses an unsigned envelope back into the intent.
func DecodeUnsigned(raw []byte) (*types.Transaction, error) {
	var w wireTx
	if err := decMode.Unmarshal(raw, &w); err != nil {
		return nil, fmt.Errorf("malformed unsigned transaction: %w", err)
	}
	return fromWireTx(w)
}

// SigningDigest is the byte string a signer actually signs.
func SigningDigest(unsigned []byte) [32]byte {
	return blake2b.Sum256(unsigned)
}

// Encode serializes the signed envelope into submit wire form.
func (s *SignedTransaction) Encode() ([]byte, error) {
	if err := s.Tx.Validate(); err != nil {
		return nil, err
	}
	return encMode.Marshal(wireSigned{
		Tx:        toWireTx(s.Tx),
		PubKey:    s.PubKey,
		Signature: s.Signature,
	})
}

// DecodeSigned parses a signed envelope.
func DecodeSigned(raw []byte) (*SignedTransaction, error) {
	var w wireSigned
	if err := decMode.Unmarshal(raw, &w); err != nil {
		return nil, fmt.Errorf("malformed signed transaction: %w", err)
	}
	tx, err := fromWireTx(w.Tx)
	if err != nil {
		return nil, err
	}
	if len(w.PubKey) != ed25519.PublicKeySize {
		return nil, fmt.Errorf("malformed signed transaction: pubkey is %d bytes", len(w.PubKey))
	}
	return &SignedTransaction{
		Tx:        tx,
		PubKey:    ed25519.PublicKey(w.PubKey),
		Signature: w.Signature,
	}, nil
}

// Verify checks the ed25519 signature and that the signer owns the debited
// account of the intent.
func (s *SignedTransaction) Verify() error {
	unsigned, err := EncodeUnsigned(s.Tx)
	if err != nil {
		return err
	}
	digest := SigningDigest(unsigned)
	if !ed25519.Verify(s.PubKey, digest[:], s.Signature) {
		return fmt.Errorf("invalid signature")
	}
	signer := types.AccountFromPubKey(s.PubKey)
	if s.Tx.From.Owner != signer.Owner {
		return fmt.Errorf("signer %s does not own source account %s", signer.Owner, s.Tx.From.Owner)
	}
	return nil
}
