package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	HTTPRequestsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "http_requests_total",
			Help: "Total number of HTTP requests",
		},
		[]string{"method", "path", "status"},
	)

	HTTPDuration = promauto.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "http_response_time_seconds",
			Help:    "Histogram of response times",
			Buckets: prometheus.DefBuckets,
		},
		[]string{"method", "path"},
	)

	RewardsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "earning_rewards_total",
			Help: "Ledger entries appended, by kind",
		},
		[]string{"kind"},
	)

	// сумма в копейках/пойша, чтобы не терять точность во float
	RewardAmount = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "earning_reward_amount_cents_total",
			Help: "Credited amount in minor units, by kind",
		},
		[]string{"kind"},
	)

	PolicyDenials = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "earning_policy_denials_total",
			Help: "Denied user actions, by action and reason",
		},
		[]string{"action", "reason"},
	)

	WithdrawalsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "earning_withdrawals_total",
			Help: "Withdrawal state changes, by resulting status",
		},
		[]string{"status"},
	)

	WSConnections = promauto.NewGauge(
		prometheus.GaugeOpts{
			Name: "earning_ws_connections",
			Help: "Open websocket connections",
		},
	)

	NotificationFailures = promauto.NewCounter(
		prometheus.CounterOpts{
			Name: "earning_notification_failures_total",
			Help: "Telegram notifications that failed to send",
		},
	)
)
