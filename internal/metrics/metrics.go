// Package metrics exposes Prometheus counters for authentication outcomes.
// A nil *Metrics is valid and records nothing.
package metrics

import (
	"errors"

	"github.com/prometheus/client_golang/prometheus"
)

const namespace = "credcore"

// Login and two-factor outcome labels.
const (
	ResultSuccess     = "success"
	ResultFailure     = "failure"
	ResultBlocked     = "blocked"
	ResultRequires2FA = "requires_2fa"
	ResultUnverified  = "unverified"
)

type Metrics struct {
	registrations prometheus.Counter
	logins        *prometheus.CounterVec
	lockouts      prometheus.Counter
	twoFactor     *prometheus.CounterVec
}

// New registers the collectors with reg, or the default registerer when
// reg is nil. Collectors that are already registered are reused.
func New(reg prometheus.Registerer) (*Metrics, error) {
	if reg == nil {
		reg = prometheus.DefaultRegisterer
	}

	m := &Metrics{
		registrations: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "registrations_total",
			Help:      "Total number of successful registrations.",
		}),
		logins: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "logins_total",
			Help:      "Login attempts partitioned by result.",
		}, []string{"result"}),
		lockouts: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "lockouts_total",
			Help:      "Total number of accounts locked after repeated failures.",
		}),
		twoFactor: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "two_factor_total",
			Help:      "Second-factor verifications partitioned by result.",
		}, []string{"result"}),
	}

	var err error
	if m.registrations, err = register(reg, m.registrations); err != nil {
		return nil, err
	}
	if m.logins, err = register(reg, m.logins); err != nil {
		return nil, err
	}
	if m.lockouts, err = register(reg, m.lockouts); err != nil {
		return nil, err
	}
	if m.twoFactor, err = register(reg, m.twoFactor); err != nil {
		return nil, err
	}
	return m, nil
}

func register[C prometheus.Collector](reg prometheus.Registerer, c C) (C, error) {
	if err := reg.Register(c); err != nil {
		var already prometheus.AlreadyRegisteredError
		if errors.As(err, &already) {
			if existing, ok := already.ExistingCollector.(C); ok {
				return existing, nil
			}
		}
		return c, err
	}
	return c, nil
}

func (m *Metrics) Registration() {
	if m == nil {
		return
	}
	m.registrations.Inc()
}

func (m *Metrics) Login(result string) {
	if m == nil {
		return
	}
	m.logins.WithLabelValues(result).Inc()
}

func (m *Metrics) Lockout() {
	if m == nil {
		return
	}
	m.lockouts.Inc()
}

func (m *Metrics) TwoFactor(result string) {
	if m == nil {
		return
	}
	m.twoFactor.WithLabelValues(result).Inc()
}
