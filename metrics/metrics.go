// Package metrics exposes prometheus instrumentation for the wallet core.
package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

const namespace = "catalyst_wallet"

var (
	RPCRequests = promauto.NewCounterVec(prometheus.CounterOpts{
		Namespace: namespace,
		Name:      "rpc_requests_total",
		Help:      "JSON-RPC calls by method and outcome.",
	}, []string{"method", "outcome"})

	RPCFailovers = promauto.NewCounter(prometheus.CounterOpts{
		Namespace: namespace,
		Name:      "rpc_failovers_total",
		Help:      "Endpoint failovers triggered by retryable errors.",
	})

	ReceiptPolls = promauto.NewCounter(prometheus.CounterOpts{
		Namespace: namespace,
		Name:      "receipt_polls_total",
		Help:      "Receipt lookups issued by the tracker.",
	})

	Broadcasts = promauto.NewCounterVec(prometheus.CounterOpts{
		Namespace: namespace,
		Name:      "broadcasts_total",
		Help:      "Transaction broadcasts by outcome.",
	}, []string{"outcome"})
)
