package metrics

import (
	"testing"

	"github.com/prometheus/client_golang/prometheus"
)

func gatheredNames(t *testing.T) map[string]bool {
	t.Helper()
	families, err := prometheus.DefaultGatherer.Gather()
	if err != nil {
		t.Fatalf("Gather() error: %v", err)
	}
	names := make(map[string]bool)
	for _, f := range families {
		names[f.GetName()] = true
	}
	return names
}

func TestQuestMetrics(t *testing.T) {
	QuestActions.WithLabelValues("NO").Inc()
	QuestsStarted.WithLabelValues("ACTIVE").Inc()
	QuestsCompleted.WithLabelValues("EASY").Inc()
	CapRejections.WithLabelValues("cap").Inc()
	RewardsPaid.Add(10)

	names := gatheredNames(t)
	expected := []string{
		"rejectly_quest_actions_total",
		"rejectly_quests_started_total",
		"rejectly_quests_completed_total",
		"rejectly_quest_cap_rejections_total",
		"rejectly_rewards_paid_total",
	}
	for _, name := range expected {
		if !names[name] {
			t.Errorf("metric %q not found", name)
		}
	}
}

func TestSweepMetrics(t *testing.T) {
	SweepItems.WithLabelValues("time_warnings", "ok").Inc()
	SweepDuration.WithLabelValues("time_warnings").Observe(0.2)
	SweepLastRun.WithLabelValues("time_warnings").SetToCurrentTime()
	GenerationFailures.Inc()

	names := gatheredNames(t)
	for _, name := range []string{
		"rejectly_sweep_items_total",
		"rejectly_sweep_duration_seconds",
		"rejectly_sweep_last_run_timestamp_seconds",
		"rejectly_generation_failures_total",
	} {
		if !names[name] {
			t.Errorf("metric %q not found", name)
		}
	}
}

func TestDeliveryMetrics(t *testing.T) {
	NotificationsRecorded.WithLabelValues("quest_reminder", "recorded").Inc()
	PushSends.WithLabelValues("expo", "ok").Inc()
	Suggestions.WithLabelValues("pending").Inc()
	BoostSpent.Add(5)
	HTTPRequests.WithLabelValues("/health", "200").Inc()
	HealthCheckStatus.WithLabelValues("sqlite").Set(1)

	names := gatheredNames(t)
	for _, name := range []string{
		"rejectly_notifications_total",
		"rejectly_push_sends_total",
		"rejectly_suggestions_total",
		"rejectly_boost_spent_total",
		"rejectly_http_requests_total",
		"rejectly_health_check_status",
	} {
		if !names[name] {
			t.Errorf("metric %q not found", name)
		}
	}
}
