package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	// TransfersTotal counts bridge transfers by chain pair and final status
	TransfersTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "bridge_transfers_total",
			Help: "Total number of bridge transfers",
		},
		[]string{"from_chain", "to_chain", "status"},
	)

	// TransferDuration tracks end-to-end coordinator processing time
	TransferDuration = promauto.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "bridge_transfer_duration_seconds",
			Help:    "Transfer processing duration in seconds",
			Buckets: prometheus.DefBuckets,
		},
		[]string{"from_chain", "to_chain"},
	)

	// LockedTransfers tracks transfers escrowed on the source chain but not yet minted
	LockedTransfers = promauto.NewGaugeVec(
		prometheus.GaugeOpts{
			Name: "bridge_locked_transfers",
			Help: "Number of transfers locked on a source chain awaiting mint",
		},
		[]string{"chain"},
	)

	// RelayerSweepsTotal counts reconciliation sweeps
	RelayerSweepsTotal = promauto.NewCounter(
		prometheus.CounterOpts{
			Name: "bridge_relayer_sweeps_total",
			Help: "Total number of relayer reconciliation sweeps",
		},
	)

	// RelayerCompletionsTotal counts transfers completed by the relayer
	RelayerCompletionsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "bridge_relayer_completions_total",
			Help: "Total number of transfers the relayer drove to minted",
		},
		[]string{"from_chain", "to_chain"},
	)

	// ErrorsTotal counts errors by component and category
	ErrorsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "bridge_errors_total",
			Help: "Total number of errors",
		},
		[]string{"component", "category"},
	)

	// AdapterCallsTotal counts chain adapter invocations
	AdapterCallsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "bridge_adapter_calls_total",
			Help: "Total number of chain adapter calls",
		},
		[]string{"chain", "operation", "status"},
	)
)
