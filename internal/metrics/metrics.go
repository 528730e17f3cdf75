package metrics

import (
	"net/http"
	"os"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

var (
	EventsRecorded = prometheus.NewCounterVec(prometheus.CounterOpts{
		Name: "tripweave_ledger_events_recorded_total",
		Help: "Ledger events durably recorded",
	}, []string{"type"})
	EventsDeduped = prometheus.NewCounter(prometheus.CounterOpts{
		Name: "tripweave_ledger_events_deduped_total",
		Help: "Ledger writes dropped by idempotency key",
	})
	LedgerWriteErrors = prometheus.NewCounterVec(prometheus.CounterOpts{
		Name: "tripweave_ledger_write_errors_total",
		Help: "Ledger write failures by tier",
	}, []string{"tier"})
	NudgesRecorded = prometheus.NewCounterVec(prometheus.CounterOpts{
		Name: "tripweave_nudges_recorded_total",
		Help: "Nudge show/click/dismiss records written",
	}, []string{"status"})
	NudgesSuppressed = prometheus.NewCounter(prometheus.CounterOpts{
		Name: "tripweave_nudges_suppressed_total",
		Help: "Nudges hidden by an active cooldown",
	})
	CorrelationsMatched = prometheus.NewCounter(prometheus.CounterOpts{
		Name: "tripweave_nudge_correlations_total",
		Help: "User actions attributed to a recently shown nudge",
	})
	EmitDuration = prometheus.NewHistogram(prometheus.HistogramOpts{
		Name:    "tripweave_ledger_emit_duration_seconds",
		Help:    "Critical emission duration seconds",
		Buckets: prometheus.DefBuckets,
	})
	CommandRuns = prometheus.NewCounterVec(prometheus.CounterOpts{
		Name: "tripweave_command_runs_total",
		Help: "CLI command invocations",
	}, []string{"command"})
	CommandErrors = prometheus.NewCounterVec(prometheus.CounterOpts{
		Name: "tripweave_command_errors_total",
		Help: "CLI command failures",
	}, []string{"command"})
)

func init() {
	prometheus.MustRegister(
		EventsRecorded, EventsDeduped, LedgerWriteErrors,
		NudgesRecorded, NudgesSuppressed, CorrelationsMatched,
		EmitDuration, CommandRuns, CommandErrors,
	)
}

// StartServer starts a metrics HTTP server on addr (e.g., ":9090"). Empty
// addr falls back to METRICS_ADDR; if that is empty too, nothing starts.
func StartServer(addr string) {
	if addr == "" {
		addr = os.Getenv("METRICS_ADDR")
	}
	if addr == "" {
		return
	}
	http.Handle("/metrics", promhttp.Handler())
	http.HandleFunc("/health", func(w http.ResponseWriter, r *http.Request) { w.WriteHeader(http.StatusOK) })
	go func() { _ = http.ListenAndServe(addr, nil) }()
}

// IncCommandRun counts one CLI invocation.
func IncCommandRun(cmd string) { CommandRuns.WithLabelValues(cmd).Inc() }

// IncCommandError counts one failed CLI invocation.
func IncCommandError(cmd string) { CommandErrors.WithLabelValues(cmd).Inc() }
