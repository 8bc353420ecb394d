package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	RaftIsLeader = promauto.NewGauge(prometheus.GaugeOpts{
		Namespace: "realestate",
		Subsystem: "raft",
		Name:      "is_leader",
		Help:      "Whether this node is the Raft leader (1=leader, 0=follower)",
	})

	RaftTerm = promauto.NewGauge(prometheus.GaugeOpts{
		Namespace: "realestate",
		Subsystem: "raft",
		Name:      "term",
		Help:      "Current Raft term",
	})

	RaftCommitIndex = promauto.NewGauge(prometheus.GaugeOpts{
		Namespace: "realestate",
		Subsystem: "raft",
		Name:      "commit_index",
		Help:      "Current Raft commit index",
	})

	RaftAppliedIndex = promauto.NewGauge(prometheus.GaugeOpts{
		Namespace: "realestate",
		Subsystem: "raft",
		Name:      "applied_index",
		Help:      "Last applied Raft index",
	})

	RaftProposalsTotal = promauto.NewCounter(prometheus.CounterOpts{
		Namespace: "realestate",
		Subsystem: "raft",
		Name:      "proposals_total",
		Help:      "Total proposals submitted",
	})

	RaftProposalsFailed = promauto.NewCounter(prometheus.CounterOpts{
		Namespace: "realestate",
		Subsystem: "raft",
		Name:      "proposals_failed_total",
		Help:      "Total failed proposals",
	})

	OperationsTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Namespace: "realestate",
		Subsystem: "registry",
		Name:      "operations_total",
		Help:      "Total registry operations by outcome code",
	}, []string{"op", "code"})

	OperationDuration = promauto.NewHistogramVec(prometheus.HistogramOpts{
		Namespace: "realestate",
		Subsystem: "registry",
		Name:      "operation_duration_seconds",
		Help:      "Registry operation duration, including sequencing",
		Buckets:   prometheus.ExponentialBuckets(0.0001, 2, 20),
	}, []string{"op"})

	EventsTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Namespace: "realestate",
		Subsystem: "registry",
		Name:      "events_total",
		Help:      "Events emitted by successful operations",
	}, []string{"action"})

	BrokersTotal = promauto.NewGauge(prometheus.GaugeOpts{
		Namespace: "realestate",
		Subsystem: "registry",
		Name:      "brokers_total",
		Help:      "Number of approved brokers",
	})

	OffersTotal = promauto.NewGauge(prometheus.GaugeOpts{
		Namespace: "realestate",
		Subsystem: "registry",
		Name:      "offers_total",
		Help:      "Number of offers in the ledger",
	})

	StorageKeysTotal = promauto.NewGauge(prometheus.GaugeOpts{
		Namespace: "realestate",
		Subsystem: "storage",
		Name:      "keys_total",
		Help:      "Total keys in storage",
	})

	StorageOperationsTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Namespace: "realestate",
		Subsystem: "storage",
		Name:      "operations_total",
		Help:      "Total storage operations",
	}, []string{"operation"})

	StorageSnapshotSize = promauto.NewGauge(prometheus.GaugeOpts{
		Namespace: "realestate",
		Subsystem: "storage",
		Name:      "snapshot_size_bytes",
		Help:      "Size of last snapshot in bytes",
	})

	GRPCRequestsTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Namespace: "realestate",
		Subsystem: "grpc",
		Name:      "requests_total",
		Help:      "Total gRPC requests",
	}, []string{"service", "method", "code"})

	GRPCRequestDuration = promauto.NewHistogramVec(prometheus.HistogramOpts{
		Namespace: "realestate",
		Subsystem: "grpc",
		Name:      "request_duration_seconds",
		Help:      "gRPC request duration",
		Buckets:   prometheus.ExponentialBuckets(0.0001, 2, 20),
	}, []string{"service", "method"})

	WALWritesTotal = promauto.NewCounter(prometheus.CounterOpts{
		Namespace: "realestate",
		Subsystem: "wal",
		Name:      "writes_total",
		Help:      "Total WAL writes",
	})

	WALWriteDuration = promauto.NewHistogram(prometheus.HistogramOpts{
		Namespace: "realestate",
		Subsystem: "wal",
		Name:      "write_duration_seconds",
		Help:      "WAL write duration",
		Buckets:   prometheus.ExponentialBuckets(0.00001, 2, 20),
	})
)
