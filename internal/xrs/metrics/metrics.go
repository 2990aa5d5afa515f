// Package metrics mirrors the durable MutableCounter rows and per-component
// outcomes onto Prometheus series (spec §6 "Operational counters"), so an
// operator can graph tailer lag and rewrite outcomes without querying the
// mapping store directly.
package metrics

import (
	"strconv"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"

	"github.com/steveyegge/xreposync/internal/xrs/types"
)

const namespace = "xreposync"

var (
	// TailerCounter mirrors the durable MutableCounter value per (direction,
	// source_repo): "xreposync_from_<source_repo>" for forward syncs,
	// "backsync_from_<source_repo>" for backsyncs, per spec §6.
	TailerCounter = promauto.NewGaugeVec(prometheus.GaugeOpts{
		Namespace: namespace,
		Name:      "tailer_counter",
		Help:      "Last bookmark-update-log id fully applied by a tailer, per counter name.",
	}, []string{"counter_name"})

	// RewriteOutcomes counts C4/C5 outcomes by kind, per (small_repo, large_repo).
	RewriteOutcomes = promauto.NewCounterVec(prometheus.CounterOpts{
		Namespace: namespace,
		Name:      "rewrite_outcomes_total",
		Help:      "Commit rewrite outcomes, partitioned by outcome kind.",
	}, []string{"small_repo", "large_repo", "outcome"})

	// TailerEntryFailures counts entries a tailer failed to apply (and thus
	// retried), per counter name, so persistent failure is visible before an
	// operator has to read logs.
	TailerEntryFailures = promauto.NewCounterVec(prometheus.CounterOpts{
		Namespace: namespace,
		Name:      "tailer_entry_failures_total",
		Help:      "Tailer entries that failed at least once before being applied or abandoned.",
	}, []string{"counter_name"})

	// PushredirectLandings counts successful pushredirect round-trips, per
	// (redirected_from, source_of_truth).
	PushredirectLandings = promauto.NewCounterVec(prometheus.CounterOpts{
		Namespace: namespace,
		Name:      "pushredirect_landings_total",
		Help:      "Commits landed through the pushredirection coordinator.",
	}, []string{"redirected_from", "source_of_truth"})

	// ErrorsByKind counts errors surfaced by any component, labeled by the
	// stable xrs.Kind taxonomy (spec §7), so alerting can key off kind rather
	// than free-form error text.
	ErrorsByKind = promauto.NewCounterVec(prometheus.CounterOpts{
		Namespace: namespace,
		Name:      "errors_total",
		Help:      "Errors surfaced by any component, labeled by stable error kind.",
	}, []string{"kind"})
)

// RepoLabel formats a types.RepoId for use as a metric label value.
func RepoLabel(repo types.RepoId) string {
	return strconv.FormatInt(int64(repo), 10)
}
