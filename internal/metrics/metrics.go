package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	// TransactionsSubmitted counts submitted transactions by contract call and outcome
	TransactionsSubmitted = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "owc_transactions_submitted_total",
			Help: "Total number of submitted transactions",
		},
		[]string{"call", "status"},
	)

	// TransactionDuration tracks time from signing to receipt
	TransactionDuration = promauto.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "owc_transaction_duration_seconds",
			Help:    "Time from submission to mined receipt in seconds",
			Buckets: []float64{0.1, 0.5, 1, 2, 5, 10, 30, 60, 120, 300},
		},
		[]string{"call"},
	)

	// TransactionGasUsed tracks gas consumed per contract call
	TransactionGasUsed = promauto.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "owc_transaction_gas_used",
			Help:    "Gas used by mined transactions",
			Buckets: prometheus.ExponentialBuckets(21000, 2, 10),
		},
		[]string{"call"},
	)

	// ProvisioningRuns counts provisioning runs by outcome
	ProvisioningRuns = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "owc_provisioning_runs_total",
			Help: "Total number of wallet provisioning runs",
		},
		[]string{"status"},
	)

	// ProvisioningRunsInFlight tracks runs currently executing
	ProvisioningRunsInFlight = promauto.NewGauge(
		prometheus.GaugeOpts{
			Name: "owc_provisioning_runs_in_flight",
			Help: "Number of provisioning runs currently executing",
		},
	)

	// ProvisioningStepDuration tracks per-step duration
	ProvisioningStepDuration = promauto.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "owc_provisioning_step_duration_seconds",
			Help:    "Provisioning step duration in seconds",
			Buckets: prometheus.DefBuckets,
		},
		[]string{"step", "status"},
	)

	// ErrorsTotal counts errors by component and type
	ErrorsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "owc_errors_total",
			Help: "Total number of errors",
		},
		[]string{"component", "error_type"},
	)
)
