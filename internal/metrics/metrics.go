// Package metrics exposes the progression engine's Prometheus counters.
package metrics

import "github.com/prometheus/client_golang/prometheus"

var (
	XPAwarded = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "progression_xp_awarded_total",
			Help: "XP granted, by source",
		},
		[]string{"source"},
	)
	ChallengeClaims = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "progression_challenge_claims_total",
			Help: "Challenge claim attempts, by result",
		},
		[]string{"result"},
	)
	AchievementsUnlocked = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "progression_achievements_unlocked_total",
			Help: "Achievements unlocked, by achievement id",
		},
		[]string{"achievement"},
	)
	CheckIns = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "progression_checkins_total",
			Help: "Daily check-ins, by outcome",
		},
		[]string{"outcome"},
	)
	LevelUps = prometheus.NewCounter(
		prometheus.CounterOpts{
			Name: "progression_level_ups_total",
			Help: "Number of level-ups",
		},
	)
	NotificationsFailed = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "notifications_failed_total",
			Help: "Notification deliveries that failed, by channel",
		},
		[]string{"channel"},
	)
	NotificationQueueDepth = prometheus.NewGauge(
		prometheus.GaugeOpts{
			Name: "notifications_queue_depth",
			Help: "Jobs waiting in the push dispatch queue",
		},
	)
	ScheduledJobRuns = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "scheduler_job_runs_total",
			Help: "Scheduled job executions, by job and result",
		},
		[]string{"job", "result"},
	)
)

// Register adds the collectors to reg.
func Register(reg prometheus.Registerer) {
	reg.MustRegister(
		XPAwarded,
		ChallengeClaims,
		AchievementsUnlocked,
		CheckIns,
		LevelUps,
		NotificationsFailed,
		NotificationQueueDepth,
		ScheduledJobRuns,
	)
}
