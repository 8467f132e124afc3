package logging

import "github.com/prometheus/client_golang/prometheus"

// MetricsRegistry is the Prometheus backing store for the counters a
// decommission run accumulates (files matched/modified, repositories
// processed by outcome). It is independent of the JSON/console sinks;
// WorkflowSummary folds a Snapshot into a LogMetrics payload, it does
// not serve /metrics itself.
type MetricsRegistry struct {
	registry           *prometheus.Registry
	filesMatched       prometheus.Counter
	filesModified      prometheus.Counter
	reposProcessed     *prometheus.CounterVec
	chatNotifyFailures prometheus.Counter
}

func NewMetricsRegistry() *MetricsRegistry {
	registry := prometheus.NewRegistry()
	m := &MetricsRegistry{
		registry: registry,
		filesMatched: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "dbdecom_files_matched_total",
			Help: "Files found to reference the decommissioned database.",
		}),
		filesModified: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "dbdecom_files_modified_total",
			Help: "Files committed with a decommission rewrite applied.",
		}),
		reposProcessed: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "dbdecom_repos_processed_total",
			Help: "Repositories processed, labeled by terminal outcome.",
		}, []string{"outcome"}),
		chatNotifyFailures: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "dbdecom_chat_notify_failures_total",
			Help: "Repositories processed successfully whose chat notification failed.",
		}),
	}
	registry.MustRegister(m.filesMatched, m.filesModified, m.reposProcessed, m.chatNotifyFailures)
	return m
}

func (m *MetricsRegistry) AddFilesMatched(n int)  { m.filesMatched.Add(float64(n)) }
func (m *MetricsRegistry) AddFilesModified(n int) { m.filesModified.Add(float64(n)) }

// ObserveRepoOutcome increments the per-outcome counter; outcome is
// typically "success", "failed", or "skipped".
func (m *MetricsRegistry) ObserveRepoOutcome(outcome string) {
	m.reposProcessed.WithLabelValues(outcome).Inc()
}

// AddChatNotifyFailure records a soft chat-notification failure (the
// chat client fails soft, so this is the only place the failure is
// ever counted rather than surfaced as a workflow error).
func (m *MetricsRegistry) AddChatNotifyFailure() {
	m.chatNotifyFailures.Inc()
}

// Snapshot gathers the current counter values into a flat map suitable
// for StructuredLogger.LogMetrics.
func (m *MetricsRegistry) Snapshot() map[string]float64 {
	out := make(map[string]float64)
	families, err := m.registry.Gather()
	if err != nil {
		return out
	}
	for _, family := range families {
		for _, metric := range family.GetMetric() {
			name := family.GetName()
			for _, label := range metric.GetLabel() {
				name += "_" + label.GetValue()
			}
			if c := metric.GetCounter(); c != nil {
				out[name] = c.GetValue()
			}
		}
	}
	return out
}
