package construction

import (
	"context"
	"crypto/ed25519"
	"encoding/hex"
	"errors"
	"fmt"
	"strconv"
	"time"

	"github.com/holiman/uint256"

	"rosettagw/block"
	"rosettagw/config"
	"rosettagw/ledgerclient"
	"rosettagw/logx"
	"rosettagw/monitoring"
	"rosettagw/rosetta"
	"rosettagw/store"
	"rosettagw/types"
)

// LedgerGateway is the slice of the ledger client the construction flow
// needs: metadata reads and the one mutating submit call.
type LedgerGateway interface {
	Submit(ctx context.Context, signedTx []byte) (*ledgerclient.SubmitResult, error)
	Info(ctx context.Context) (*ledgerclient.InfoResult, error)
}

// Service implements the construction state machine: derive → preprocess →
// metadata → payloads → combine → parse/hash → submit → confirm. Sessions
// are stateless request/response pairs; the only thing remembered across
// calls is the fingerprint of every submitted transaction.
type Service struct {
	st       *store.Store
	ledger   LedgerGateway
	currency rosetta.Currency
	cfg      *config.ConstructionConfig
	tracker  *Tracker
	now      func() time.Time
}

func NewService(st *store.Store, ledger LedgerGateway, currency rosetta.Currency, cfg *config.ConstructionConfig) *Service {
	if cfg == nil {
		cfg = config.DefaultConstructionConfig()
	}
	return &Service{
		st:       st,
		ledger:   ledger,
		currency: currency,
		cfg:      cfg,
		tracker:  NewTracker(24 * time.Hour),
		now:      time.Now,
	}
}

// Derive turns an ed25519 public key into the account identifier it owns.
func (s *Service) Derive(req *rosetta.ConstructionDeriveRequest) (*rosetta.ConstructionDeriveResponse, *rosetta.Error) {
	if req.PublicKey.CurveType != rosetta.CurveEd25519 {
		return nil, rosetta.ErrInvalidCurve.WithDetail("curve_type", req.PublicKey.CurveType)
	}
	raw, err := hex.DecodeString(req.PublicKey.HexBytes)
	if err != nil || len(raw) != ed25519.PublicKeySize {
		return nil, rosetta.ErrInvalidRequest.WithDetail("reason", "public key must be 32 hex-encoded bytes")
	}
	acct := types.AccountFromPubKey(ed25519.PublicKey(raw))
	return &rosetta.ConstructionDeriveResponse{AccountIdentifier: rosetta.AccountID(acct)}, nil
}

// Preprocess inspects the draft operations and names the metadata the
// metadata step must fetch.
func (s *Service) Preprocess(req *rosetta.ConstructionPreprocessRequest) (*rosetta.ConstructionPreprocessResponse, *rosetta.Error) {
	intent, rerr := rosetta.IntentFromOperations(req.Operations)
	if rerr != nil {
		return nil, rerr
	}
	return &rosetta.ConstructionPreprocessResponse{
		Options: map[string]interface{}{
			"kind": intent.Kind.String(),
			"from": intent.From.String(),
		},
	}, nil
}

// Metadata fetches the current fee from the ledger and stamps the session's
// created_at_time. Both travel as strings: unix nanos exceed float64's exact
// integer range.
func (s *Service) Metadata(ctx context.Context, req *rosetta.ConstructionMetadataRequest) (*rosetta.ConstructionMetadataResponse, *rosetta.Error) {
	info, err := s.ledger.Info(ctx)
	if err != nil {
		return nil, rosetta.ErrLedgerUnavailable.WithDetail("reason", err.Error())
	}
	return &rosetta.ConstructionMetadataResponse{
		Metadata: map[string]interface{}{
			"fee":             info.Fee,
			"created_at_time": strconv.FormatUint(uint64(s.now().UnixNano()), 10),
		},
		SuggestedFee: []rosetta.Amount{{Value: info.Fee, Currency: s.currency}},
	}, nil
}

func metaString(md map[string]interface{}, key string) (string, bool) {
	v, ok := md[key]
	if !ok {
		return "", false
	}
	str, ok := v.(string)
	return str, ok
}

// Payloads binds the intent, fee and created_at_time into the unsigned
// transaction and produces the signing payload for the debited account.
func (s *Service) Payloads(req *rosetta.ConstructionPayloadsRequest) (*rosetta.ConstructionPayloadsResponse, *rosetta.Error) {
	intent, rerr := rosetta.IntentFromOperations(req.Operations)
	if rerr != nil {
		return nil, rerr
	}
	feeRaw, ok := metaString(req.Metadata, "fee")
	if !ok {
		return nil, rosetta.ErrStaleMetadata.WithDetail("reason", "metadata is missing the fee")
	}
	fee, err := uint256.FromDecimal(feeRaw)
	if err != nil {
		return nil, rosetta.ErrInvalidAmount.WithDetail("value", feeRaw)
	}
	createdRaw, ok := metaString(req.Metadata, "created_at_time")
	if !ok {
		return nil, rosetta.ErrStaleMetadata.WithDetail("reason", "metadata is missing created_at_time")
	}
	created, err := strconv.ParseUint(createdRaw, 10, 64)
	if err != nil {
		return nil, rosetta.ErrInvalidRequest.WithDetail("reason", "created_at_time must be unix nanoseconds")
	}
	if memoRaw, ok := metaString(req.Metadata, "memo"); ok {
		memo, err := hex.DecodeString(memoRaw)
		if err != nil {
			return nil, rosetta.ErrInvalidRequest.WithDetail("reason", "memo must be hex encoded")
		}
		intent.Memo = memo
	}
	intent.Fee = fee
	intent.CreatedAtTime = created

	unsigned, err := block.EncodeUnsigned(intent)
	if err != nil {
		return nil, rosetta.ErrInvalidOperations.WithDetail("reason", err.Error())
	}
	digest := block.SigningDigest(unsigned)
	return &rosetta.ConstructionPayloadsResponse{
		UnsignedTransaction: hex.EncodeToString(unsigned),
		Payloads: []rosetta.SigningPayload{{
			AccountIdentifier: rosetta.AccountID(intent.From),
			HexBytes:          hex.EncodeToString(digest[:]),
			SignatureType:     rosetta.SignatureEd25519,
		}},
	}, nil
}

// Combine attaches the signature to the unsigned transaction, verifying it
// before producing the signed envelope.
func (s *Service) Combine(req *rosetta.ConstructionCombineRequest) (*rosetta.ConstructionCombineResponse, *rosetta.Error) {
	unsigned, err := hex.DecodeString(req.UnsignedTransaction)
	if err != nil {
		return nil, rosetta.ErrInvalidRequest.WithDetail("reason", "unsigned transaction is not hex")
	}
	tx, err := block.DecodeUnsigned(unsigned)
	if err != nil {
		return nil, rosetta.ErrInvalidRequest.WithDetail("reason", err.Error())
	}
	if len(req.Signatures) != 1 {
		return nil, rosetta.ErrInvalidRequest.WithDetail("reason", "exactly one signature is required")
	}
	sig := req.Signatures[0]
	if sig.SignatureType != rosetta.SignatureEd25519 || sig.PublicKey.CurveType != rosetta.CurveEd25519 {
		return nil, rosetta.ErrInvalidCurve.WithDetail("signature_type", sig.SignatureType)
	}
	pub, err := hex.DecodeString(sig.PublicKey.HexBytes)
	if err != nil || len(pub) != ed25519.PublicKeySize {
		return nil, rosetta.ErrInvalidRequest.WithDetail("reason", "public key must be 32 hex-encoded bytes")
	}
	sigBytes, err := hex.DecodeString(sig.HexBytes)
	if err != nil {
		return nil, rosetta.ErrInvalidSignature.WithDetail("reason", "signature is not hex")
	}
	signed := &block.SignedTransaction{
		Tx:        tx,
		PubKey:    ed25519.PublicKey(pub),
		Signature: sigBytes,
	}
	if err := signed.Verify(); err != nil {
		return nil, rosetta.ErrInvalidSignature.WithDetail("reason", err.Error())
	}
	raw, err := signed.Encode()
	if err != nil {
		return nil, rosetta.ErrInternal.WithDetail("reason", err.Error())
	}
	return &rosetta.ConstructionCombineResponse{SignedTransaction: hex.EncodeToString(raw)}, nil
}

// Parse introspects an unsigned or signed transaction back into operations.
func (s *Service) Parse(req *rosetta.ConstructionParseRequest) (*rosetta.ConstructionParseResponse, *rosetta.Error) {
	raw, err := hex.DecodeString(req.Transaction)
	if err != nil {
		return nil, rosetta.ErrInvalidRequest.WithDetail("reason", "transaction is not hex")
	}
	var tx *types.Transaction
	var signers []rosetta.AccountIdentifier
	if req.Signed {
		signed, err := block.DecodeSigned(raw)
		if err != nil {
			return nil, rosetta.ErrInvalidRequest.WithDetail("reason", err.Error())
		}
		tx = signed.Tx
		signers = []rosetta.AccountIdentifier{*rosetta.AccountID(tx.From)}
	} else {
		tx, err = block.DecodeUnsigned(raw)
		if err != nil {
			return nil, rosetta.ErrInvalidRequest.WithDetail("reason", err.Error())
		}
	}
	md := map[string]interface{}{
		"created_at_time": strconv.FormatUint(tx.CreatedAtTime, 10),
	}
	if len(tx.Memo) > 0 {
		md["memo"] = hex.EncodeToString(tx.Memo)
	}
	return &rosetta.ConstructionParseResponse{
		Operations:               rosetta.OperationsFromTx(tx, s.currency, false),
		AccountIdentifierSigners: signers,
		Metadata:                 md,
	}, nil
}

// Hash returns the network transaction identifier of a signed transaction:
// its idempotency fingerprint.
func (s *Service) Hash(req *rosetta.ConstructionHashRequest) (*rosetta.TransactionIdentifierResponse, *rosetta.Error) {
	signed, rerr := decodeSignedHex(req.SignedTransaction)
	if rerr != nil {
		return nil, rerr
	}
	return &rosetta.TransactionIdentifierResponse{
		TransactionIdentifier: rosetta.TransactionIdentifier{Hash: signed.Tx.Fingerprint()},
	}, nil
}

// Submit hands the signed transaction to the ledger exactly once. A ledger
// "duplicate" answer, or a fingerprint already visible in the store, is
// reported as success pointing at the original application instead of a
// fresh failure.
func (s *Service) Submit(ctx context.Context, req *rosetta.ConstructionSubmitRequest) (*rosetta.TransactionIdentifierResponse, *rosetta.Error) {
	signed, rerr := decodeSignedHex(req.SignedTransaction)
	if rerr != nil {
		return nil, rerr
	}
	fp := signed.Tx.Fingerprint()

	// Already committed locally: absorb the duplicate without touching the
	// ledger again.
	if loc, found, err := s.st.FindByFingerprint(fp); err == nil && found {
		return submitResponse(fp, loc.BlockIndex, true), nil
	}

	raw, err := signed.Encode()
	if err != nil {
		return nil, rosetta.ErrInternal.WithDetail("reason", err.Error())
	}
	resubmitted := s.tracker.Seen(fp)
	s.tracker.Add(fp)
	res, err := s.ledger.Submit(ctx, raw)
	if err != nil {
		if ledgerclient.IsAmbiguous(err) {
			// The request may have landed. Re-check committed state once;
			// beyond that the caller must re-query before resubmitting.
			if loc, found, ferr := s.st.FindByFingerprint(fp); ferr == nil && found {
				return submitResponse(fp, loc.BlockIndex, true), nil
			}
			// An envelope this gateway already handed to the ledger is likely
			// in flight; wait for the sync engine to surface it instead of
			// reporting a second ambiguity.
			if resubmitted {
				if loc, werr := s.WaitForConfirmation(ctx, fp); werr == nil {
					return submitResponse(fp, loc.BlockIndex, true), nil
				}
			}
			return nil, rosetta.ErrAmbiguousSubmission.WithDetail("fingerprint", fp)
		}
		var rejected *ledgerclient.RejectedError
		if errors.As(err, &rejected) {
			return nil, rosetta.ErrLedgerRejected.WithDetail("reason", rejected.Message)
		}
		return nil, rosetta.ErrLedgerUnavailable.WithDetail("reason", err.Error())
	}
	monitoring.IncreaseSubmittedTxCount()
	duplicate := res.Status == ledgerclient.SubmitDuplicate
	if duplicate {
		logx.Info("CONSTRUCTION", "submission absorbed as duplicate of block ", res.BlockIndex)
	}
	return submitResponse(fp, res.BlockIndex, duplicate), nil
}

func submitResponse(fp string, blockIndex uint64, duplicate bool) *rosetta.TransactionIdentifierResponse {
	return &rosetta.TransactionIdentifierResponse{
		TransactionIdentifier: rosetta.TransactionIdentifier{Hash: fp},
		Metadata: map[string]interface{}{
			"block_index": blockIndex,
			"duplicate":   duplicate,
		},
	}
}

func decodeSignedHex(s string) (*block.SignedTransaction, *rosetta.Error) {
	raw, err := hex.DecodeString(s)
	if err != nil {
		return nil, rosetta.ErrInvalidRequest.WithDetail("reason", "signed transaction is not hex")
	}
	signed, err := block.DecodeSigned(raw)
	if err != nil {
		return nil, rosetta.ErrInvalidRequest.WithDetail("reason", err.Error())
	}
	return signed, nil
}

// WaitForConfirmation polls the store until the fingerprint appears in a
// committed block or the configured timeout elapses. Each poll is one short
// read snapshot; no store lock is held between polls, and canceling the
// context simply abandons the wait.
func (s *Service) WaitForConfirmation(ctx context.Context, fingerprint string) (*store.TxLocation, error) {
	ctx, cancel := context.WithTimeout(ctx, s.cfg.ConfirmTimeout())
	defer cancel()
	ticker := time.NewTicker(s.cfg.ConfirmPoll())
	defer ticker.Stop()
	for {
		loc, found, err := s.st.FindByFingerprint(fingerprint)
		if err != nil {
			return nil, err
		}
		if found {
			return loc, nil
		}
		select {
		case <-ctx.Done():
			return nil, fmt.Errorf("transaction %s not confirmed: %w", fingerprint, ctx.Err())
		case <-ticker.C:
		}
	}
}
