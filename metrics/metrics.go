// Package metrics holds the Prometheus collectors of the rebalance engine,
// the store guard and the HTTP API.
package metrics

import (
	"strconv"
	"time"

	"github.com/prometheus/client_golang/prometheus"
)

// Registry holds all levered metrics. A nil *Registry is valid and records
// nothing.
type Registry struct {
	ProposalsTotal      *prometheus.CounterVec
	ProposalDuration    prometheus.Histogram
	OptimizerIterations prometheus.Histogram
	OptimizerSharpe     *prometheus.GaugeVec
	Leverage            *prometheus.GaugeVec
	DeployFraction      *prometheus.GaugeVec
	AcceptsTotal        *prometheus.CounterVec

	StoreCalls   *prometheus.CounterVec
	BreakerState *prometheus.GaugeVec
	CacheLookups *prometheus.CounterVec

	HTTPRequests *prometheus.CounterVec
	HTTPDuration *prometheus.HistogramVec
}

// New creates the collectors and registers them with reg when reg is not nil.
func New(reg prometheus.Registerer) *Registry {
	r := &Registry{
		ProposalsTotal: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Name: "levered_proposals_total",
				Help: "Rebalance proposals computed, by weight source",
			},
			[]string{"weights"},
		),
		ProposalDuration: prometheus.NewHistogram(
			prometheus.HistogramOpts{
				Name:    "levered_proposal_duration_seconds",
				Help:    "Time to load inputs and assemble one proposal",
				Buckets: []float64{0.005, 0.01, 0.025, 0.05, 0.1, 0.25, 0.5, 1, 2.5, 5},
			},
		),
		OptimizerIterations: prometheus.NewHistogram(
			prometheus.HistogramOpts{
				Name:    "levered_optimizer_iterations",
				Help:    "Nelder-Mead iterations per optimization",
				Buckets: []float64{10, 25, 50, 100, 200, 300, 400, 500},
			},
		),
		OptimizerSharpe: prometheus.NewGaugeVec(
			prometheus.GaugeOpts{
				Name: "levered_optimizer_sharpe",
				Help: "Leveraged Sharpe ratio of the last optimized weights",
			},
			[]string{"portfolio"},
		),
		Leverage: prometheus.NewGaugeVec(
			prometheus.GaugeOpts{
				Name: "levered_portfolio_leverage",
				Help: "Current leverage at the last proposal",
			},
			[]string{"portfolio"},
		),
		DeployFraction: prometheus.NewGaugeVec(
			prometheus.GaugeOpts{
				Name: "levered_deploy_fraction",
				Help: "Deploy fraction at the last proposal",
			},
			[]string{"portfolio"},
		),
		AcceptsTotal: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Name: "levered_accepts_total",
				Help: "Accepted proposals by result",
			},
			[]string{"result"},
		),
		StoreCalls: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Name: "levered_store_calls_total",
				Help: "Guarded store calls by operation and result",
			},
			[]string{"op", "result"},
		),
		BreakerState: prometheus.NewGaugeVec(
			prometheus.GaugeOpts{
				Name: "levered_store_breaker_state",
				Help: "Store circuit breaker state (0=closed, 1=half-open, 2=open)",
			},
			[]string{"name"},
		),
		CacheLookups: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Name: "levered_cache_lookups_total",
				Help: "Price history cache lookups by result",
			},
			[]string{"result"},
		),
		HTTPRequests: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Name: "levered_http_requests_total",
				Help: "HTTP requests by route and status code",
			},
			[]string{"route", "code"},
		),
		HTTPDuration: prometheus.NewHistogramVec(
			prometheus.HistogramOpts{
				Name:    "levered_http_request_duration_seconds",
				Help:    "HTTP request latency by route",
				Buckets: prometheus.DefBuckets,
			},
			[]string{"route"},
		),
	}

	if reg != nil {
		reg.MustRegister(r.collectors()...)
	}
	return r
}

func (r *Registry) collectors() []prometheus.Collector {
	return []prometheus.Collector{
		r.ProposalsTotal, r.ProposalDuration, r.OptimizerIterations,
		r.OptimizerSharpe, r.Leverage, r.DeployFraction, r.AcceptsTotal,
		r.StoreCalls, r.BreakerState, r.CacheLookups,
		r.HTTPRequests, r.HTTPDuration,
	}
}

// ObserveProposal records one assembled proposal.
func (r *Registry) ObserveProposal(portfolio string, dynamic bool, elapsed time.Duration, leverage, deployFraction float64) {
	if r == nil {
		return
	}
	src := "static"
	if dynamic {
		src = "dynamic"
	}
	r.ProposalsTotal.WithLabelValues(src).Inc()
	r.ProposalDuration.Observe(elapsed.Seconds())
	r.Leverage.WithLabelValues(portfolio).Set(leverage)
	r.DeployFraction.WithLabelValues(portfolio).Set(deployFraction)
}

// ObserveOptimizer records one successful optimization.
func (r *Registry) ObserveOptimizer(portfolio string, iterations int, sharpe float64) {
	if r == nil {
		return
	}
	r.OptimizerIterations.Observe(float64(iterations))
	r.OptimizerSharpe.WithLabelValues(portfolio).Set(sharpe)
}

// ObserveAccept records an accept outcome: ok, conflict or error.
func (r *Registry) ObserveAccept(result string) {
	if r == nil {
		return
	}
	r.AcceptsTotal.WithLabelValues(result).Inc()
}

// ObserveStoreCall records one guarded store call.
func (r *Registry) ObserveStoreCall(op string, err error) {
	if r == nil {
		return
	}
	result := "ok"
	if err != nil {
		result = "error"
	}
	r.StoreCalls.WithLabelValues(op, result).Inc()
}

// SetBreakerState records the numeric state of a circuit breaker.
func (r *Registry) SetBreakerState(name string, state int) {
	if r == nil {
		return
	}
	r.BreakerState.WithLabelValues(name).Set(float64(state))
}

// ObserveCache records a cache hit, miss or error.
func (r *Registry) ObserveCache(result string) {
	if r == nil {
		return
	}
	r.CacheLookups.WithLabelValues(result).Inc()
}

// ObserveHTTP records one served request.
func (r *Registry) ObserveHTTP(route string, code int, elapsed time.Duration) {
	if r == nil {
		return
	}
	r.HTTPRequests.WithLabelValues(route, strconv.Itoa(code)).Inc()
	r.HTTPDuration.WithLabelValues(route).Observe(elapsed.Seconds())
}
