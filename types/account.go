package types

import (
	"crypto/ed25519"
	"encoding/hex"
	"fmt"
	"strings"

	"github.com/mr-tron/base58"
)

const SubaccountSize = 32

// Account identifies a ledger account: an owner principal plus an optional
// 32-byte subaccount discriminator. Identity is the pair.
type Account struct {
	Owner      string `json:"owner"`
	Subaccount []byte `json:"subaccount,omitempty"`
}

func AccountFromPubKey(pub ed25519.PublicKey) Account {
	return Account{Owner: base58.Encode(pub)}
}

func (a Account) IsZero() bool {
	return a.Owner == ""
}

func (a Account) HasSubaccount() bool {
	return len(a.Subaccount) > 0
}

// String returns the canonical text form: "owner" or "owner.subaccounthex".
func (a Account) String() string {
	if !a.HasSubaccount() {
		return a.Owner
	}
	return a.Owner + "." + hex.EncodeToString(a.Subaccount)
}

func (a Account) Equal(b Account) bool {
	return a.String() == b.String()
}

// PubKey decodes the owner principal back into an ed25519 public key.
func (a Account) PubKey() (ed25519.PublicKey, error) {
	raw, err := base58.Decode(a.Owner)
	if err != nil {
		return nil, fmt.Errorf("invalid owner address %q: %w", a.Owner, err)
	}
	if len(raw) != ed25519.PublicKeySize {
		return nil, fmt.Errorf("invalid owner address %q: not an ed25519 key", a.Owner)
	}
	return ed25519.PublicKey(raw), nil
}

// ParseAccount parses the canonical text form produced by Account.String.
func ParseAccount(s string) (Account, error) {
	if s == "" {
		return Account{}, fmt.Errorf("empty account")
	}
	owner := s
	var sub []byte
	if i := strings.IndexByte(s, '.'); i >= 0 {
		owner = s[:i]
		raw, err := hex.DecodeString(s[i+1:])
		if err != nil {
			return Account{}, fmt.Errorf("invalid subaccount in %q: %w", s, err)
		}
		if len(raw) != SubaccountSize {
			return Account{}, fmt.Errorf("invalid subaccount in %q: want %d bytes, got %d", s, SubaccountSize, len(raw))
		}
		sub = raw
	}
	raw, err := base58.Decode(owner)
	if err != nil {
		return Account{}, fmt.Errorf("invalid owner address %q: %w", owner, err)
	}
	if len(raw) != ed25519.PublicKeySize {
		return Account{}, fmt.Errorf("invalid owner address %q: wrong key length %d", owner, len(raw))
	}
	return Account{Owner: owner, Subaccount: sub}, nil
}
