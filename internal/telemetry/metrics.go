// Package telemetry provides Prometheus metrics for moderation and channel synchronization.
package telemetry

import (
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	// Counters
	Resolutions = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "chatguard_ban_resolutions_total",
		Help: "Ban status resolutions by outcome (allowed, banned_global, banned_channel, fail_open)",
	}, []string{"outcome"})
	ModerationCommands = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "chatguard_moderation_commands_total",
		Help: "Ban and unban commands by action and outcome",
	}, []string{"action", "outcome"})
	MessagesBlocked = promauto.NewCounter(prometheus.CounterOpts{
		Name: "chatguard_messages_blocked_total",
		Help: "Messages rejected because their author is banned",
	})
	SyncEvents = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "chatguard_sync_events_total",
		Help: "Change notifications seen by channel synchronizers by type and outcome",
	}, []string{"type", "outcome"})
	SyncResyncs = promauto.NewCounter(prometheus.CounterOpts{
		Name: "chatguard_sync_resyncs_total",
		Help: "Full resynchronizations after a feed reset",
	})
	FeedOverflows = promauto.NewCounter(prometheus.CounterOpts{
		Name: "chatguard_feed_overflows_total",
		Help: "Subscriptions reset because their buffer filled up",
	})

	// Histograms (seconds)
	ResolveDuration = promauto.NewHistogram(prometheus.HistogramOpts{
		Name:    "chatguard_ban_resolve_duration_seconds",
		Help:    "Ban status resolution duration seconds",
		Buckets: prometheus.DefBuckets,
	})
	SyncLoadDuration = promauto.NewHistogram(prometheus.HistogramOpts{
		Name:    "chatguard_sync_load_duration_seconds",
		Help:    "Channel bulk load duration seconds",
		Buckets: prometheus.DefBuckets,
	})

	// Gauges
	SyncChannels = promauto.NewGauge(prometheus.GaugeOpts{
		Name: "chatguard_sync_channels",
		Help: "Open channel synchronizers",
	})
	FeedSubscribers = promauto.NewGauge(prometheus.GaugeOpts{
		Name: "chatguard_feed_subscribers",
		Help: "Attached change feed subscriptions",
	})
	ActiveBans = promauto.NewGaugeVec(prometheus.GaugeOpts{
		Name: "chatguard_active_bans",
		Help: "Active ban records by scope (global, channel) as of the last audit",
	}, []string{"scope"})
	BreakerState = promauto.NewGaugeVec(prometheus.GaugeOpts{
		Name: "chatguard_circuit_breaker_state",
		Help: "Circuit breaker position by name (0 closed, 1 half-open, 2 open)",
	}, []string{"name"})
)

// ObserveSince records the seconds elapsed since start in obs.
func ObserveSince(obs prometheus.Observer, start time.Time) time.Duration {
	d := time.Since(start)
	if obs != nil {
		obs.Observe(d.Seconds())
	}
	return d
}
