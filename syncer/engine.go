package syncer

import (
	"context"
	"errors"
	"fmt"
	"math/rand"
	"sync"
	"time"

	"rosettagw/block"
	"rosettagw/config"
	"rosettagw/ledgerclient"
	"rosettagw/logx"
	"rosettagw/monitoring"
	"rosettagw/store"
	"rosettagw/verifier"
)

// State of the sync control loop.
type State int32

const (
	StateIdle State = iota
	StateFetching
	StateVerifying
	StateCommitting
	StateHalted
)

func (s State) String() string {
	switch s {
	case StateIdle:
		return "idle"
	case StateFetching:
		return "fetching"
	case StateVerifying:
		return "verifying"
	case StateCommitting:
		return "committing"
	case StateHalted:
		return "halted"
	default:
		return fmt.Sprintf("unknown(%d)", int32(s))
	}
}

// LedgerSource is the read side of the ledger boundary the engine drives.
type LedgerSource interface {
	TipIndex(ctx context.Context) (tip uint64, empty bool, err error)
	GetBlocks(ctx context.Context, start uint64, max uint32) ([][]byte, error)
	Info(ctx context.Context) (*ledgerclient.InfoResult, error)
}

// Status is the engine's outcome cell, read by the API server to answer
// /network/status. It is the only state shared outside the engine.
type Status struct {
	State        State
	TipIndex     uint64
	TipKnown     bool
	Watermark    store.Watermark
	HasWatermark bool
	Fault        string
}

// Synced reports whether the committed watermark has caught up with the
// last known ledger tip and the engine is healthy.
func (s Status) Synced() bool {
	return s.State != StateHalted && s.TipKnown && s.HasWatermark && s.Watermark.Index >= s.TipIndex
}

// Engine is the single background driver that advances the watermark by
// fetching, verifying and atomically committing batches of blocks. Exactly
// one instance runs per service; it is the only writer to the store.
type Engine struct {
	src LedgerSource
	st  *store.Store
	cfg *config.SyncConfig

	mu     sync.RWMutex
	status Status

	batchCap uint32 // min(configured batch size, ledger-reported cap)
}

func New(src LedgerSource, st *store.Store, cfg *config.SyncConfig) (*Engine, error) {
	if cfg == nil {
		cfg = config.DefaultSyncConfig()
	}
	e := &Engine{src: src, st: st, cfg: cfg, batchCap: cfg.BatchSize}
	wm, ok, err := st.Watermark()
	if err != nil {
		return nil, err
	}
	e.status.Watermark = wm
	e.status.HasWatermark = ok
	return e, nil
}

func (e *Engine) Status() Status {
	e.mu.RLock()
	defer e.mu.RUnlock()
	return e.status
}

func (e *Engine) setState(s State) {
	e.mu.Lock()
	e.status.State = s
	e.mu.Unlock()
	monitoring.SetSyncState(int32(s))
}

func (e *Engine) halt(err error) {
	e.mu.Lock()
	e.status.State = StateHalted
	e.status.Fault = err.Error()
	e.mu.Unlock()
	monitoring.SetSyncState(int32(StateHalted))
	logx.Error("SYNC", "engine halted: ", err)
}

// resolveBatchCap asks the ledger once for its batch cap and pins the
// effective cap to the smaller of it and the configured batch size.
func (e *Engine) resolveBatchCap(ctx context.Context) uint32 {
	e.mu.RLock()
	limit := e.batchCap
	e.mu.RUnlock()
	if limit != e.cfg.BatchSize {
		return limit
	}
	info, err := e.src.Info(ctx)
	if err != nil || info.MaxBatch == 0 {
		return limit
	}
	if info.MaxBatch < limit {
		limit = info.MaxBatch
	}
	e.mu.Lock()
	e.batchCap = limit
	e.mu.Unlock()
	return limit
}

// SyncOnce runs one fetch/verify/commit cycle. It returns whether the
// watermark advanced. Integrity and storage faults halt the engine before
// returning, and a halted engine refuses further cycles; anything else
// returned as an error is transient.
func (e *Engine) SyncOnce(ctx context.Context) (advanced bool, err error) {
	// a halt is terminal: the fault needs operator intervention, not a retry
	if cur := e.Status(); cur.State == StateHalted {
		return false, fmt.Errorf("engine halted: %s", cur.Fault)
	}
	e.setState(StateFetching)
	defer func() {
		if e.Status().State != StateHalted {
			e.setState(StateIdle)
		}
	}()

	tip, empty, err := e.src.TipIndex(ctx)
	if err != nil {
		return false, err
	}
	if empty {
		return false, nil
	}
	e.mu.Lock()
	e.status.TipIndex = tip
	e.status.TipKnown = true
	wm, hasWM := e.status.Watermark, e.status.HasWatermark
	e.mu.Unlock()
	monitoring.SetLedgerTipHeight(tip)

	next := uint64(0)
	parent := block.ZeroHash
	if hasWM {
		if tip <= wm.Index {
			return false, nil
		}
		next = wm.Index + 1
		parent = wm.Hash
	}

	raws, err := e.src.GetBlocks(ctx, next, e.resolveBatchCap(ctx))
	if err != nil {
		return false, err
	}
	if len(raws) == 0 {
		return false, nil
	}
	monitoring.AddFetchedBlocks(len(raws))

	e.setState(StateVerifying)
	blocks, err := verifier.VerifyBatch(raws, next, parent)
	if err != nil {
		// The ledger never rewrites history, so a chain contradiction (or a
		// payload the verifier cannot decode) is a fatal integrity fault,
		// never something to retry.
		if errors.Is(err, verifier.ErrChainMismatch) || errors.Is(err, verifier.ErrDecode) {
			e.halt(err)
			return false, err
		}
		return false, err
	}

	e.setState(StateCommitting)
	last := blocks[len(blocks)-1]
	newWM := store.Watermark{Index: last.Index, Hash: last.Hash()}
	if err := e.st.AppendBatch(blocks, newWM); err != nil {
		e.halt(fmt.Errorf("storage fault: %w", err))
		return false, err
	}

	e.mu.Lock()
	e.status.Watermark = newWM
	e.status.HasWatermark = true
	e.mu.Unlock()
	monitoring.SetSyncedHeight(newWM.Index)
	monitoring.IncreaseCommittedBatchCount()
	logx.Info("SYNC", "committed blocks ", next, "..", newWM.Index, " (tip ", tip, ")")
	return true, nil
}

// Run drives the control loop until the context is canceled or the engine
// halts on a fatal integrity fault. Transient faults back off exponentially
// with bounded jitter and never halt the loop.
func (e *Engine) Run(ctx context.Context) {
	backoff := e.cfg.RetryBackoffMin()
	for ctx.Err() == nil {
		advanced, err := e.SyncOnce(ctx)
		if e.Status().State == StateHalted {
			return
		}
		if err != nil {
			if ctx.Err() != nil {
				return
			}
			if ledgerclient.IsTransient(err) {
				monitoring.IncreaseTransientFaultCount()
			} else if ledgerclient.IsRejected(err) {
				// a rejected read means the gateway and ledger disagree on
				// the protocol; backing off will not clear it
				logx.Error("SYNC", "ledger rejected a read: ", err)
			}
			logx.Warn("SYNC", "sync cycle failed, backing off ", backoff, ": ", err)
			sleep(ctx, withJitter(backoff))
			backoff *= 2
			if backoff > e.cfg.RetryBackoffMax() {
				backoff = e.cfg.RetryBackoffMax()
			}
			continue
		}
		backoff = e.cfg.RetryBackoffMin()
		if !advanced {
			sleep(ctx, e.cfg.PollInterval())
		}
	}
}

// withJitter spreads retries over [d, 1.5d).
func withJitter(d time.Duration) time.Duration {
	if d <= 0 {
		return d
	}
	return d + time.Duration(rand.Int63n(int64(d)/2+1))
}

func sleep(ctx context.Context, d time.Duration) {
	t := time.NewTimer(d)
	defer t.Stop()
	select {
	case <-ctx.Done():
	case <-t.C:
	}
}
