package monitoring

import (
	"net/http"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"rosettagw/logx"
)

type gatewayPromMetrics struct {
	gatewayUpUnixSeconds prometheus.Gauge
	syncedHeight         prometheus.Gauge
	ledgerTipHeight      prometheus.Gauge
	syncState            prometheus.Gauge
	fetchedBlockCount    prometheus.Counter
	committedBatchCount  prometheus.Counter
	transientFaultCount  prometheus.Counter
	submittedTxCount     prometheus.Counter
	apiRequestCount      *prometheus.CounterVec
	panicCount           prometheus.Counter
}

func newGatewayPromMetrics() *gatewayPromMetrics {
	return &gatewayPromMetrics{
		gatewayUpUnixSeconds: promauto.NewGauge(
			prometheus.GaugeOpts{
				Name: "rosettagw_up_timestamp_unix_seconds",
				Help: "Unix timestamp when the gateway started",
			},
		),
		syncedHeight: promauto.NewGauge(
			prometheus.GaugeOpts{
				Name: "rosettagw_synced_height",
				Help: "Highest block index durably committed to the local store",
			},
		),
		ledgerTipHeight: promauto.NewGauge(
			prometheus.GaugeOpts{
				Name: "rosettagw_ledger_tip_height",
				Help: "Highest block index reported by the ledger service",
			},
		),
		syncState: promauto.NewGauge(
			prometheus.GaugeOpts{
				Name: "rosettagw_sync_state",
				Help: "Sync engine state (0=idle 1=fetching 2=verifying 3=committing 4=halted)",
			},
		),
		fetchedBlockCount: promauto.NewCounter(
			prometheus.CounterOpts{
				Name: "rosettagw_fetched_block_count",
				Help: "The total number of raw blocks fetched from the ledger service",
			},
		),
		committedBatchCount: promauto.NewCounter(
			prometheus.CounterOpts{
				Name: "rosettagw_committed_batch_count",
				Help: "The total number of block batches committed to the store",
			},
		),
		transientFaultCount: promauto.NewCounter(
			prometheus.CounterOpts{
				Name: "rosettagw_transient_fault_count",
				Help: "The total number of transient ledger faults retried by the sync engine",
			},
		),
		submittedTxCount: promauto.NewCounter(
			prometheus.CounterOpts{
				Name: "rosettagw_submitted_tx_count",
				Help: "The total number of signed transactions submitted to the ledger",
			},
		),
		apiRequestCount: promauto.NewCounterVec(
			prometheus.CounterOpts{
				Name: "rosettagw_api_request_count",
				Help: "The total number of Rosetta API requests by endpoint and outcome",
			},
			[]string{"endpoint", "outcome"},
		),
		panicCount: promauto.NewCounter(
			prometheus.CounterOpts{
				Name: "rosettagw_panic_count",
				Help: "The total number of recovered panics in background tasks",
			},
		),
	}
}

var gatewayMetrics *gatewayPromMetrics

// InitMetrics initializes metrics for the gateway but does not expose them yet
func InitMetrics() {
	gatewayMetrics = newGatewayPromMetrics()
	gatewayMetrics.gatewayUpUnixSeconds.SetToCurrentTime()
}

func RegisterMetrics(mux *http.ServeMux) {
	logx.Info("MONITORING", "Registering prometheus metrics")
	mux.Handle("/metrics", promhttp.Handler())
}

func SetSyncedHeight(height uint64) {
	if gatewayMetrics == nil {
		return
	}
	gatewayMetrics.syncedHeight.Set(float64(height))
}

func SetLedgerTipHeight(height uint64) {
	if gatewayMetrics == nil {
		return
	}
	gatewayMetrics.ledgerTipHeight.Set(float64(height))
}

func SetSyncState(state int32) {
	if gatewayMetrics == nil {
		return
	}
	gatewayMetrics.syncState.Set(float64(state))
}

func AddFetchedBlocks(count int) {
	if gatewayMetrics == nil {
		return
	}
	gatewayMetrics.fetchedBlockCount.Add(float64(count))
}

func IncreaseCommittedBatchCount() {
	if gatewayMetrics == nil {
		return
	}
	gatewayMetrics.committedBatchCount.Inc()
}

func IncreaseTransientFaultCount() {
	if gatewayMetrics == nil {
		return
	}
	gatewayMetrics.transientFaultCount.Inc()
}

func IncreaseSubmittedTxCount() {
	if gatewayMetrics == nil {
		return
	}
	gatewayMetrics.submittedTxCount.Inc()
}

func RecordAPIRequest(endpoint, outcome string) {
	if gatewayMetrics == nil {
		return
	}
	gatewayMetrics.apiRequestCount.With(prometheus.Labels{
		"endpoint": endpoint,
		"outcome":  outcome,
	}).Inc()
}

func IncreasePanicCount() {
	if gatewayMetrics == nil {
		return
	}
	gatewayMetrics.panicCount.Inc()
}
