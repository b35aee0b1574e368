// Package metrics provides Prometheus metrics for rejectly: quest progress,
// sweeps, notifications, push delivery, suggestions and HTTP traffic.
package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// ─── Quests ─────────────────────────────────────────────────────────────────

// QuestActions counts recorded progress actions by action.
var QuestActions = promauto.NewCounterVec(prometheus.CounterOpts{
	Namespace: "rejectly",
	Name:      "quest_actions_total",
	Help:      "Total recorded quest actions.",
}, []string{"action"})

// QuestsStarted counts instances created, by initial status.
var QuestsStarted = promauto.NewCounterVec(prometheus.CounterOpts{
	Namespace: "rejectly",
	Name:      "quests_started_total",
	Help:      "Total quest instances created.",
}, []string{"status"})

// QuestsCompleted counts completed instances by difficulty.
var QuestsCompleted = promauto.NewCounterVec(prometheus.CounterOpts{
	Namespace: "rejectly",
	Name:      "quests_completed_total",
	Help:      "Total quest instances completed.",
}, []string{"difficulty"})

// CapRejections counts starts rejected by the active-quest cap or the
// holding rule.
var CapRejections = promauto.NewCounterVec(prometheus.CounterOpts{
	Namespace: "rejectly",
	Name:      "quest_cap_rejections_total",
	Help:      "Quest starts rejected for capacity.",
}, []string{"reason"})

// RewardsPaid tracks currency granted for completions.
var RewardsPaid = promauto.NewCounter(prometheus.CounterOpts{
	Namespace: "rejectly",
	Name:      "rewards_paid_total",
	Help:      "Total currency paid as quest rewards.",
})

// ─── Sweeps ─────────────────────────────────────────────────────────────────

// SweepItems counts sweep items by job and outcome.
var SweepItems = promauto.NewCounterVec(prometheus.CounterOpts{
	Namespace: "rejectly",
	Name:      "sweep_items_total",
	Help:      "Sweep items processed, by outcome.",
}, []string{"job", "outcome"})

// SweepDuration tracks how long each sweep took.
var SweepDuration = promauto.NewHistogramVec(prometheus.HistogramOpts{
	Namespace: "rejectly",
	Name:      "sweep_duration_seconds",
	Help:      "Sweep duration in seconds.",
	Buckets:   []float64{0.01, 0.05, 0.1, 0.5, 1, 5, 15, 60},
}, []string{"job"})

// SweepLastRun records the unix time of each job's last run.
var SweepLastRun = promauto.NewGaugeVec(prometheus.GaugeOpts{
	Namespace: "rejectly",
	Name:      "sweep_last_run_timestamp_seconds",
	Help:      "Unix time of the last sweep per job.",
}, []string{"job"})

// GenerationFailures counts failed quest generation calls.
var GenerationFailures = promauto.NewCounter(prometheus.CounterOpts{
	Namespace: "rejectly",
	Name:      "generation_failures_total",
	Help:      "Quest generation calls that failed.",
})

// ─── Notifications ──────────────────────────────────────────────────────────

// NotificationsRecorded counts in-app notifications by type and whether
// the dedup key suppressed them.
var NotificationsRecorded = promauto.NewCounterVec(prometheus.CounterOpts{
	Namespace: "rejectly",
	Name:      "notifications_total",
	Help:      "Notifications handled, by type and result.",
}, []string{"type", "result"})

// PushSends counts push deliveries by gateway and result.
var PushSends = promauto.NewCounterVec(prometheus.CounterOpts{
	Namespace: "rejectly",
	Name:      "push_sends_total",
	Help:      "Push sends, by gateway and result.",
}, []string{"gateway", "result"})

// ─── Suggestions ────────────────────────────────────────────────────────────

// Suggestions counts suggestion transitions.
var Suggestions = promauto.NewCounterVec(prometheus.CounterOpts{
	Namespace: "rejectly",
	Name:      "suggestions_total",
	Help:      "Quest suggestions by transition.",
}, []string{"status"})

// BoostSpent tracks currency staked on suggestions.
var BoostSpent = promauto.NewCounter(prometheus.CounterOpts{
	Namespace: "rejectly",
	Name:      "boost_spent_total",
	Help:      "Total currency staked as suggestion boosts.",
})

// ─── HTTP ───────────────────────────────────────────────────────────────────

// HTTPRequests counts API requests by route pattern and status.
var HTTPRequests = promauto.NewCounterVec(prometheus.CounterOpts{
	Namespace: "rejectly",
	Name:      "http_requests_total",
	Help:      "API requests, by route and status.",
}, []string{"route", "status"})

// ─── Health ─────────────────────────────────────────────────────────────────

// HealthCheckStatus tracks health check results (1=healthy, 0=unhealthy).
var HealthCheckStatus = promauto.NewGaugeVec(prometheus.GaugeOpts{
	Namespace: "rejectly",
	Name:      "health_check_status",
	Help:      "Health check result (1=healthy, 0=unhealthy).",
}, []string{"check"})
