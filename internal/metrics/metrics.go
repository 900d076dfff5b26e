// Package metrics holds the Prometheus collectors exported on /metrics.
package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// ─── Settlement ─────────────────────────────────────────────────────────────

// SettlementComputations counts settlement computations by outcome.
var SettlementComputations = promauto.NewCounterVec(prometheus.CounterOpts{
	Namespace: "splitledger",
	Subsystem: "settlement",
	Name:      "computations_total",
	Help:      "Total group settlement computations.",
}, []string{"result"})

// SettlementDuration tracks how long a full group settlement takes, fetches included.
var SettlementDuration = promauto.NewHistogram(prometheus.HistogramOpts{
	Namespace: "splitledger",
	Subsystem: "settlement",
	Name:      "duration_seconds",
	Help:      "Time to fetch a group's ledger and compute its settlement plan.",
	Buckets:   []float64{.001, .005, .01, .025, .05, .1, .25, .5, 1},
})

// SettlementTransfers tracks the number of transfers per plan.
var SettlementTransfers = promauto.NewHistogram(prometheus.HistogramOpts{
	Namespace: "splitledger",
	Subsystem: "settlement",
	Name:      "transfers",
	Help:      "Number of transfers in a computed settlement plan.",
	Buckets:   prometheus.LinearBuckets(0, 1, 10),
})

// SettlementResidualMembers counts members left unsettled after applying a plan.
// A non-zero value means the group's balances did not sum to zero.
var SettlementResidualMembers = promauto.NewCounter(prometheus.CounterOpts{
	Namespace: "splitledger",
	Subsystem: "settlement",
	Name:      "residual_members",
	Help:      "Members whose balance was not cleared by the settlement plan.",
})

// GroupResidualMembers is the number of members left unsettled in each
// group's latest plan, as recomputed by the worker.
var GroupResidualMembers = promauto.NewGaugeVec(prometheus.GaugeOpts{
	Namespace: "splitledger",
	Subsystem: "group",
	Name:      "residual_members",
	Help:      "Members not cleared by the group's latest settlement plan.",
}, []string{"group_id"})

// GroupOpenTransfers is the number of transfers in each group's latest plan.
var GroupOpenTransfers = promauto.NewGaugeVec(prometheus.GaugeOpts{
	Namespace: "splitledger",
	Subsystem: "group",
	Name:      "open_transfers",
	Help:      "Transfers needed to settle the group, from its latest plan.",
}, []string{"group_id"})

// ─── Events ─────────────────────────────────────────────────────────────────

// EventsPublished counts expense events by routing key and outcome.
var EventsPublished = promauto.NewCounterVec(prometheus.CounterOpts{
	Namespace: "splitledger",
	Subsystem: "events",
	Name:      "published_total",
	Help:      "Expense change events published to the broker.",
}, []string{"routing_key", "result"})

// EventsConsumed counts expense events handled by the worker.
var EventsConsumed = promauto.NewCounterVec(prometheus.CounterOpts{
	Namespace: "splitledger",
	Subsystem: "events",
	Name:      "consumed_total",
	Help:      "Expense change events handled by the worker.",
}, []string{"routing_key", "result"})

// ─── RPC ────────────────────────────────────────────────────────────────────

// RPCRequests counts Connect requests by procedure and code.
var RPCRequests = promauto.NewCounterVec(prometheus.CounterOpts{
	Namespace: "splitledger",
	Subsystem: "rpc",
	Name:      "requests_total",
	Help:      "Connect requests by procedure and result code.",
}, []string{"procedure", "code"})

// RPCDuration tracks Connect request latency by procedure.
var RPCDuration = promauto.NewHistogramVec(prometheus.HistogramOpts{
	Namespace: "splitledger",
	Subsystem: "rpc",
	Name:      "duration_seconds",
	Help:      "Connect request latency.",
	Buckets:   prometheus.DefBuckets,
}, []string{"procedure"})
