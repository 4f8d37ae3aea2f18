// Package metrics exposes the filler's operational counters via
// prometheus/client_golang. The set stays small: orders seen/filled/dropped
// and swap-planner shortfalls, registered against the default registry
// the way a `cmd/` entrypoint typically wires promhttp.Handler.
package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	// OrdersSeen counts every order the Event Monitor has decoded and
	// handed to the orchestrator, labeled by source chain.
	OrdersSeen = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "intentfiller_orders_seen_total",
		Help: "Orders decoded by the event monitor, by source chain.",
	}, []string{"source_chain"})

	// OrdersFilled counts successful fill submissions, labeled by the
	// strategy that executed them.
	OrdersFilled = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "intentfiller_orders_filled_total",
		Help: "Orders successfully filled, by strategy.",
	}, []string{"strategy"})

	// OrdersDropped counts orders that never reached execution, labeled
	// by the reason (e.g. "no_profitable_strategy", "pricing_failed").
	OrdersDropped = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "intentfiller_orders_dropped_total",
		Help: "Orders dropped before execution, by reason.",
	}, []string{"reason"})

	// SwapPlannerShortfalls counts InsufficientBalance outcomes from the
	// swap planner's shortfall solver, labeled by the target token.
	SwapPlannerShortfalls = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "intentfiller_swap_planner_shortfalls_total",
		Help: "Swap planner InsufficientBalance outcomes, by target token.",
	}, []string{"token"})
)
