package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
)

var (
	LedgerOps = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "ledger_operations_total",
			Help: "Ledger operations by operation and outcome (ok, refused, error)",
		},
		[]string{"op", "outcome"},
	)
	TicketsGranted = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "tickets_granted_total",
			Help: "Tickets credited, by source (wish, referral, admin)",
		},
		[]string{"source"},
	)
	Broadcasts = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "wish_broadcasts_total",
			Help: "Broadcast cycles by result",
		},
		[]string{"result"},
	)
	BotUpdates = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "bot_updates_total",
			Help: "Telegram updates handled, by kind",
		},
		[]string{"kind"},
	)
	RLRequests = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "rate_limiter_requests_total",
			Help: "Total requests seen by the rate limiter",
		},
		[]string{"endpoint"},
	)
	RLBlocked = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "rate_limiter_blocked_total",
			Help: "Total requests blocked by the rate limiter",
		},
		[]string{"endpoint"},
	)
)

func init() {
	prometheus.MustRegister(LedgerOps)
	prometheus.MustRegister(TicketsGranted)
	prometheus.MustRegister(Broadcasts)
	prometheus.MustRegister(BotUpdates)
	prometheus.MustRegister(RLRequests)
	prometheus.MustRegister(RLBlocked)
}
