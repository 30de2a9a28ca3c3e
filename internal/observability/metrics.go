package observability

import (
	"net/http"
	"sync"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

type moduleMetrics struct {
	backendCallTotal    *prometheus.CounterVec
	backendCallDuration *prometheus.HistogramVec
	backendFailover     *prometheus.CounterVec
	backendActive       *prometheus.GaugeVec

	commandTotal    *prometheus.CounterVec
	commandDuration prometheus.Histogram

	directiveTotal *prometheus.CounterVec

	conversationEntries      prometheus.Gauge
	conversationSaveDuration prometheus.Histogram
	conversationSaveErrors   prometheus.Counter

	turnTotal *prometheus.CounterVec

	runTotal    *prometheus.CounterVec
	runDuration prometheus.Histogram
	runTurns    prometheus.Histogram
}

var (
	metricsOnce sync.Once
	metricsInst *moduleMetrics
)

func getMetrics() *moduleMetrics {
	metricsOnce.Do(func() {
		m := &moduleMetrics{
			backendCallTotal: prometheus.NewCounterVec(
				prometheus.CounterOpts{
					Name: "shellagent_backend_calls_total",
					Help: "Total backend attempts by backend and outcome (ok or failure kind).",
				},
				[]string{"backend", "outcome"},
			),
			backendCallDuration: prometheus.NewHistogramVec(
				prometheus.HistogramOpts{
					Name:    "shellagent_backend_call_duration_seconds",
					Help:    "Backend attempt duration in seconds by backend.",
					Buckets: prometheus.DefBuckets,
				},
				[]string{"backend"},
			),
			backendFailover: prometheus.NewCounterVec(
				prometheus.CounterOpts{
					Name: "shellagent_backend_failover_total",
					Help: "Total failovers away from a backend by reason.",
				},
				[]string{"backend", "reason"},
			),
			backendActive: prometheus.NewGaugeVec(
				prometheus.GaugeOpts{
					Name: "shellagent_backend_active",
					Help: "Currently selected backend (1 active, 0 inactive).",
				},
				[]string{"backend"},
			),
			commandTotal: prometheus.NewCounterVec(
				prometheus.CounterOpts{
					Name: "shellagent_commands_total",
					Help: "Total executed commands by status (ok, nonzero, timeout, error).",
				},
				[]string{"status"},
			),
			commandDuration: prometheus.NewHistogram(
				prometheus.HistogramOpts{
					Name:    "shellagent_command_duration_seconds",
					Help:    "Command execution duration in seconds.",
					Buckets: []float64{0.1, 0.5, 1, 5, 15, 30, 60, 300, 900},
				},
			),
			directiveTotal: prometheus.NewCounterVec(
				prometheus.CounterOpts{
					Name: "shellagent_directives_total",
					Help: "Total resolved directives by kind and source (fetch, cache, error).",
				},
				[]string{"kind", "source"},
			),
			conversationEntries: prometheus.NewGauge(
				prometheus.GaugeOpts{
					Name: "shellagent_conversation_entries",
					Help: "Entries in the conversation at the last save.",
				},
			),
			conversationSaveDuration: prometheus.NewHistogram(
				prometheus.HistogramOpts{
					Name:    "shellagent_conversation_save_duration_seconds",
					Help:    "Conversation save duration in seconds.",
					Buckets: prometheus.DefBuckets,
				},
			),
			conversationSaveErrors: prometheus.NewCounter(
				prometheus.CounterOpts{
					Name: "shellagent_conversation_save_errors_total",
					Help: "Total failed conversation saves.",
				},
			),
			turnTotal: prometheus.NewCounterVec(
				prometheus.CounterOpts{
					Name: "shellagent_turn_transitions_total",
					Help: "Agent loop transitions by target state.",
				},
				[]string{"state"},
			),
			runTotal: prometheus.NewCounterVec(
				prometheus.CounterOpts{
					Name: "shellagent_runs_total",
					Help: "Total task runs by terminal outcome.",
				},
				[]string{"outcome"},
			),
			runDuration: prometheus.NewHistogram(
				prometheus.HistogramOpts{
					Name:    "shellagent_run_duration_seconds",
					Help:    "Task run duration in seconds.",
					Buckets: []float64{1, 10, 30, 60, 300, 900, 1800, 3600},
				},
			),
			runTurns: prometheus.NewHistogram(
				prometheus.HistogramOpts{
					Name:    "shellagent_run_turns",
					Help:    "Commands executed per task run.",
					Buckets: []float64{1, 2, 5, 10, 20, 50, 100},
				},
			),
		}

		prometheus.MustRegister(
			m.backendCallTotal,
			m.backendCallDuration,
			m.backendFailover,
			m.backendActive,
			m.commandTotal,
			m.commandDuration,
			m.directiveTotal,
			m.conversationEntries,
			m.conversationSaveDuration,
			m.conversationSaveErrors,
			m.turnTotal,
			m.runTotal,
			m.runDuration,
			m.runTurns,
		)

		metricsInst = m
	})

	return metricsInst
}

// EnsureRegistered initializes and registers metrics the first time it is called.
func EnsureRegistered() {
	_ = getMetrics()
}

func MetricsHandler() http.Handler {
	EnsureRegistered()
	return promhttp.Handler()
}

func RecordBackendCall(backend string, duration time.Duration, outcome string) {
	m := getMetrics()
	m.backendCallTotal.WithLabelValues(backend, outcome).Inc()
	m.backendCallDuration.WithLabelValues(backend).Observe(duration.Seconds())
}

func RecordFailover(backend, reason string) {
	m := getMetrics()
	m.backendFailover.WithLabelValues(backend, reason).Inc()
	m.backendActive.WithLabelValues(backend).Set(0)
}

func SetActiveBackend(backend string) {
	m := getMetrics()
	m.backendActive.WithLabelValues(backend).Set(1)
}

func RecordCommand(duration time.Duration, exitCode int, timedOut bool, err error) {
	m := getMetrics()
	status := "ok"
	switch {
	case err != nil:
		status = "error"
	case timedOut:
		status = "timeout"
	case exitCode != 0:
		status = "nonzero"
	}
	m.commandTotal.WithLabelValues(status).Inc()
	m.commandDuration.Observe(duration.Seconds())
}

func RecordDirective(kind, source string) {
	m := getMetrics()
	m.directiveTotal.WithLabelValues(kind, source).Inc()
}

func RecordConversationSave(duration time.Duration, entries int, err error) {
	m := getMetrics()
	m.conversationSaveDuration.Observe(duration.Seconds())
	if err != nil {
		m.conversationSaveErrors.Inc()
		return
	}
	m.conversationEntries.Set(float64(entries))
}

func RecordTransition(state string) {
	m := getMetrics()
	m.turnTotal.WithLabelValues(state).Inc()
}

// RecordRun records a finished task run.
func RecordRun(outcome string, duration time.Duration, turns int) {
	m := getMetrics()
	m.runTotal.WithLabelValues(outcome).Inc()
	m.runDuration.Observe(duration.Seconds())
	m.runTurns.Observe(float64(turns))
}
