package metrics

import (
	"net/http"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// Recorder holds the webhook verification metrics. A nil *Recorder is valid
// and records nothing.
type Recorder struct {
	verifications   *prometheus.CounterVec
	duration        prometheus.Histogram
	replaysRejected prometheus.Counter
}

// NewRecorder creates the collectors and registers them on reg (or the
// default registerer if nil). Collectors that are already registered are
// reused.
func NewRecorder(reg prometheus.Registerer) (*Recorder, error) {
	if reg == nil {
		reg = prometheus.DefaultRegisterer
	}

	r := &Recorder{
		verifications: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "webhook_verifications_total",
			Help: "Webhook verification results by outcome (accepted or rejection reason)",
		}, []string{"outcome"}),

		duration: prometheus.NewHistogram(prometheus.HistogramOpts{
			Name:    "webhook_verification_duration_seconds",
			Help:    "Time spent verifying webhook signatures",
			Buckets: prometheus.ExponentialBuckets(0.00005, 2, 12),
		}),

		replaysRejected: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "webhook_replays_rejected_total",
			Help: "Authenticated deliveries refused because they were already processed",
		}),
	}

	var err error
	if r.verifications, err = register(reg, r.verifications); err != nil {
		return nil, err
	}
	if r.duration, err = register(reg, r.duration); err != nil {
		return nil, err
	}
	if r.replaysRejected, err = register(reg, r.replaysRejected); err != nil {
		return nil, err
	}

	return r, nil
}

// register registers c, returning the existing collector if an identical
// one is already registered.
func register[C prometheus.Collector](reg prometheus.Registerer, c C) (C, error) {
	if err := reg.Register(c); err != nil {
		if are, ok := err.(prometheus.AlreadyRegisteredError); ok {
			if existing, ok := are.ExistingCollector.(C); ok {
				return existing, nil
			}
		}
		return c, err
	}
	return c, nil
}

// ObserveVerification records one verification result
func (r *Recorder) ObserveVerification(outcome string, elapsed time.Duration) {
	if r == nil {
		return
	}
	r.verifications.WithLabelValues(outcome).Inc()
	r.duration.Observe(elapsed.Seconds())
}

// ReplayRejected counts a refused duplicate delivery
func (r *Recorder) ReplayRejected() {
	if r == nil {
		return
	}
	r.replaysRejected.Inc()
}

// Handler serves the metrics gathered by g (or the default gatherer if nil)
func Handler(g prometheus.Gatherer) http.Handler {
	if g == nil {
		return promhttp.Handler()
	}
	return promhttp.HandlerFor(g, promhttp.HandlerOpts{})
}
