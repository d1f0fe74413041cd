package triage

import "github.com/prometheus/client_golang/prometheus"

// Metrics holds Prometheus metrics for the triage subsystem. A nil *Metrics
// is valid; all observe helpers no-op.
type Metrics struct {
	MessagesTotal     *prometheus.CounterVec
	MessageErrors     prometheus.Counter
	BatchesSkipped    *prometheus.CounterVec
	LLMCallsTotal     *prometheus.CounterVec
	LLMTokensIn       prometheus.Counter
	LLMTokensOut      prometheus.Counter
	LLMDuration       prometheus.Histogram
	RemindersTotal    prometheus.Counter
	EscalationsTotal  prometheus.Counter
	RetrievalSnippets prometheus.Histogram
}

// NewMetrics registers and returns triage metrics on the given registerer.
func NewMetrics(reg prometheus.Registerer) *Metrics {
	m := &Metrics{
		MessagesTotal: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "mailtriage_messages_total",
			Help: "Total processed messages by outcome.",
		}, []string{"outcome"}),
		MessageErrors: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "mailtriage_message_errors_total",
			Help: "Total messages whose pipeline aborted and was left for redelivery.",
		}),
		BatchesSkipped: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "mailtriage_batches_skipped_total",
			Help: "Poll cycles skipped by reason (busy, paused).",
		}, []string{"reason"}),
		LLMCallsTotal: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "mailtriage_llm_calls_total",
			Help: "Total LLM provider calls by operation.",
		}, []string{"op"}),
		LLMTokensIn: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "mailtriage_llm_tokens_input_total",
			Help: "Total LLM input tokens consumed.",
		}),
		LLMTokensOut: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "mailtriage_llm_tokens_output_total",
			Help: "Total LLM output tokens consumed.",
		}),
		LLMDuration: prometheus.NewHistogram(prometheus.HistogramOpts{
			Name:    "mailtriage_llm_call_duration_seconds",
			Help:    "Duration of individual LLM calls in seconds.",
			Buckets: prometheus.ExponentialBuckets(0.5, 2, 8), // 0.5s .. ~64s
		}),
		RemindersTotal: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "mailtriage_sla_reminders_total",
			Help: "Total 20h reminder mails sent to department heads.",
		}),
		EscalationsTotal: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "mailtriage_sla_escalations_total",
			Help: "Total 24h escalation mails sent to the administrator.",
		}),
		RetrievalSnippets: prometheus.NewHistogram(prometheus.HistogramOpts{
			Name:    "mailtriage_retrieval_snippets",
			Help:    "Knowledge snippets returned per retrieval.",
			Buckets: prometheus.LinearBuckets(0, 1, 6), // 0 .. 5
		}),
	}

	reg.MustRegister(
		m.MessagesTotal,
		m.MessageErrors,
		m.BatchesSkipped,
		m.LLMCallsTotal,
		m.LLMTokensIn,
		m.LLMTokensOut,
		m.LLMDuration,
		m.RemindersTotal,
		m.EscalationsTotal,
		m.RetrievalSnippets,
	)

	return m
}

// ObserveLLMCall records one provider call. Safe on a nil receiver; LLM
// clients take a *Metrics without nil checks of their own.
func (m *Metrics) ObserveLLMCall(op string, in, out int, seconds float64) {
	if m == nil {
		return
	}
	m.LLMCallsTotal.WithLabelValues(op).Inc()
	m.LLMTokensIn.Add(float64(in))
	m.LLMTokensOut.Add(float64(out))
	m.LLMDuration.Observe(seconds)
}

// ObserveRetrieval records the snippet count of one knowledge search.
func (m *Metrics) ObserveRetrieval(snippets int) {
	if m == nil {
		return
	}
	m.RetrievalSnippets.Observe(float64(snippets))
}

func (m *Metrics) messageDone(outcome Outcome) {
	if m == nil {
		return
	}
	m.MessagesTotal.WithLabelValues(string(outcome)).Inc()
}

func (m *Metrics) messageFailed() {
	if m == nil {
		return
	}
	m.MessageErrors.Inc()
}

func (m *Metrics) batchSkipped(reason string) {
	if m == nil {
		return
	}
	m.BatchesSkipped.WithLabelValues(reason).Inc()
}

func (m *Metrics) reminder() {
	if m == nil {
		return
	}
	m.RemindersTotal.Inc()
}

func (m *Metrics) escalation() {
	if m == nil {
		return
	}
	m.EscalationsTotal.Inc()
}
