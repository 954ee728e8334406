// Package metrics collects Prometheus counters for the authentication
// flows.
package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
)

// Recorder is the collection interface the service layer depends on.
type Recorder interface {
	SignupSuccess()
	SignupConflict()
	SigninSuccess()
	SigninFailure()
	TokenVerified()
	TokenRejected(kind string)
}

// Collector implements Recorder backed by Prometheus.
type Collector struct {
	signupSuccess  prometheus.Counter
	signupConflict prometheus.Counter
	signinSuccess  prometheus.Counter
	signinFailure  prometheus.Counter
	tokenVerified  prometheus.Counter
	tokenRejected  *prometheus.CounterVec
}

var _ Recorder = (*Collector)(nil)

// NewCollector registers the auth counters on reg and returns the collector.
func NewCollector(reg prometheus.Registerer) *Collector {
	c := &Collector{
		signupSuccess: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "chatd_signup_success_total",
			Help: "Successful signups.",
		}),
		signupConflict: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "chatd_signup_conflict_total",
			Help: "Signups rejected because the email already exists.",
		}),
		signinSuccess: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "chatd_signin_success_total",
			Help: "Successful signins.",
		}),
		signinFailure: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "chatd_signin_failure_total",
			Help: "Signins rejected with the generic unauthorized outcome.",
		}),
		tokenVerified: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "chatd_token_verified_total",
			Help: "Bearer tokens that passed verification.",
		}),
		tokenRejected: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "chatd_token_rejected_total",
			Help: "Bearer tokens that failed verification, by failure kind.",
		}, []string{"kind"}),
	}

	reg.MustRegister(
		c.signupSuccess,
		c.signupConflict,
		c.signinSuccess,
		c.signinFailure,
		c.tokenVerified,
		c.tokenRejected,
	)

	return c
}

func (c *Collector) SignupSuccess() { c.signupSuccess.Inc() }
func (c *Collector) SignupConflict() { c.signupConflict.Inc() }
func (c *Collector) SigninSuccess() { c.signinSuccess.Inc() }
func (c *Collector) SigninFailure() { c.signinFailure.Inc() }
func (c *Collector) TokenVerified() { c.tokenVerified.Inc() }

func (c *Collector) TokenRejected(kind string) {
	c.tokenRejected.WithLabelValues(kind).Inc()
}
