package metrics

import (
	"net/http"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

var (
	Utterances = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "buddy_utterances_total",
			Help: "Utterances handled, by route (wake, local, chat, empty)",
		},
		[]string{"route"},
	)

	LocalCommands = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "buddy_local_commands_total",
			Help: "Utterances answered locally, by action kind",
		},
		[]string{"kind"},
	)

	ChatErrors = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "buddy_chat_errors_total",
			Help: "Failed chat requests, by HTTP status (0 for transport failures)",
		},
		[]string{"status"},
	)

	ChatDeltas = promauto.NewCounter(
		prometheus.CounterOpts{
			Name: "buddy_chat_deltas_total",
			Help: "Text deltas received from the chat stream",
		},
	)

	ChatLatency = promauto.NewHistogram(
		prometheus.HistogramOpts{
			Name: "buddy_chat_latency_seconds",
			Help: "Time from chat request to end of stream",
		},
	)

	ActiveTimers = promauto.NewGauge(
		prometheus.GaugeOpts{
			Name: "buddy_active_timers",
			Help: "Number of countdown timers currently running",
		},
	)

	TimersCompleted = promauto.NewCounter(
		prometheus.CounterOpts{
			Name: "buddy_timers_completed_total",
			Help: "Countdown timers that reached zero",
		},
	)

	AudioBytes = promauto.NewCounter(
		prometheus.CounterOpts{
			Name: "buddy_audio_bytes_streamed_total",
			Help: "Microphone PCM bytes forwarded to the transcription provider",
		},
	)

	ListenSessions = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "buddy_listen_sessions_total",
			Help: "Push-to-talk sessions, by outcome",
		},
		[]string{"outcome"},
	)

	RuleReloads = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "buddy_rule_reloads_total",
			Help: "Transcript rule file reloads, by result",
		},
		[]string{"result"},
	)
)

// Handler exposes the default registry for scraping.
func Handler() http.Handler {
	return promhttp.Handler()
}
