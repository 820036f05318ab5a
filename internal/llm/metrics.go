package llm

import (
	"context"
	"time"

	"github.com/prometheus/client_golang/prometheus"

	flowerrors "github.com/courtvision/scoutgraph/pkg/flowgraph/errors"
)

// Metrics records LLM call counts and latency in Prometheus.
type Metrics struct {
	requests *prometheus.CounterVec
	duration *prometheus.HistogramVec
	tokens   *prometheus.CounterVec
	counter  *TokenBudget
}

// NewMetrics registers the LLM collectors with reg.
func NewMetrics(reg prometheus.Registerer, counter *TokenBudget) *Metrics {
	m := &Metrics{
		requests: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Name: "scoutgraph_llm_requests_total",
				Help: "LLM requests by model, status and error category.",
			},
			[]string{"model", "status", "category"},
		),
		duration: prometheus.NewHistogramVec(
			prometheus.HistogramOpts{
				Name:    "scoutgraph_llm_request_duration_seconds",
				Help:    "LLM request latency in seconds.",
				Buckets: prometheus.DefBuckets,
			},
			[]string{"model"},
		),
		tokens: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Name: "scoutgraph_llm_tokens_total",
				Help: "Estimated tokens sent and received.",
			},
			[]string{"model", "type"},
		),
		counter: counter,
	}
	reg.MustRegister(m.requests, m.duration, m.tokens)
	return m
}

// Middleware returns a Middleware observing every call.
func (m *Metrics) Middleware() Middleware {
	return func(next Client) Client {
		return WrapClient(next.Model(), func(ctx context.Context, req Request) (Response, error) {
			start := time.Now()
			resp, err := next.Complete(ctx, req)
			m.duration.WithLabelValues(next.Model()).Observe(time.Since(start).Seconds())

			if err != nil {
				m.requests.WithLabelValues(next.Model(), "error", flowerrors.Classify(err).String()).Inc()
				return resp, err
			}
			m.requests.WithLabelValues(next.Model(), "success", "").Inc()
			if m.counter != nil {
				m.tokens.WithLabelValues(next.Model(), "prompt").Add(float64(m.counter.CountRequest(req)))
				m.tokens.WithLabelValues(next.Model(), "completion").Add(float64(m.counter.Count(resp.Text)))
			}
			return resp, nil
		})
	}
}
