// Package metrics holds the Prometheus collectors for cue runs and chat delivery.
package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	// CueFiredCount counts fired cues, by cue list.
	CueFiredCount = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "lightplan_cue_fired_total",
		Help: "Total number of fired cues, by cue list.",
	}, []string{"cue_list"})

	// CueBacklogCount tracks how many cues are still waiting to fire.
	CueBacklogCount = promauto.NewGaugeVec(prometheus.GaugeOpts{
		Name: "lightplan_cue_backlog",
		Help: "Number of cues waiting to fire, by cue list.",
	}, []string{"cue_list"})

	// CueExecutionDrift is the signed error of the last fire, in seconds.
	CueExecutionDrift = promauto.NewGaugeVec(prometheus.GaugeOpts{
		Name: "lightplan_cue_execution_drift_seconds",
		Help: "Signed difference between the actual and target fire time of the last cue.",
	}, []string{"cue_list"})

	// CueDriftHistogram records the absolute firing error.
	CueDriftHistogram = promauto.NewHistogram(prometheus.HistogramOpts{
		Name:    "lightplan_cue_drift_abs_seconds",
		Help:    "Absolute firing error of cues.",
		Buckets: []float64{0.0005, 0.001, 0.002, 0.005, 0.01, 0.025, 0.05, 0.1, 0.5},
	})

	// RunsFinished counts finished runs, by reason.
	RunsFinished = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "lightplan_runs_finished_total",
		Help: "Total number of finished cue runs, by final state.",
	}, []string{"state"})

	// ChatMessages counts outbound chat messages, by result (sent, dropped, limited, error).
	ChatMessages = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "lightplan_chat_messages_total",
		Help: "Total number of outbound chat messages, by result.",
	}, []string{"result"})

	// ChatConnects counts connection attempts, by outcome (joined, failed).
	ChatConnects = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "lightplan_chat_connects_total",
		Help: "Total number of chat connection attempts, by outcome.",
	}, []string{"outcome"})

	// ChatJoined is 1 while a chat client is joined to its channel.
	ChatJoined = promauto.NewGauge(prometheus.GaugeOpts{
		Name: "lightplan_chat_joined",
		Help: "1 while the chat client is joined to the target channel.",
	})
)

// Result labels for ChatMessages.
const (
	ResultSent    = "sent"
	ResultDropped = "dropped"
	ResultLimited = "limited"
	ResultError   = "error"
)
