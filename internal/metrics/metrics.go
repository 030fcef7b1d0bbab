// Package metrics exposes prometheus counters for authentication outcomes.
package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// Outcome label values.
const (
	OutcomeSuccess            = "success"
	OutcomeAlreadyRegistered  = "already_registered"
	OutcomeInvalidInput       = "invalid_input"
	OutcomeInvalidCredentials = "invalid_credentials"
	OutcomeAccountUnavailable = "account_unavailable"
	OutcomeError              = "error"

	OutcomeAllowed         = "allowed"
	OutcomeUnauthenticated = "unauthenticated"
	OutcomeForbidden       = "forbidden"
)

var (
	RegisterTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "usergate_auth_register_total",
		Help: "Registration attempts by outcome.",
	}, []string{"outcome"})

	LoginTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "usergate_auth_login_total",
		Help: "Login attempts by outcome.",
	}, []string{"outcome"})

	GateDecisionsTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "usergate_gate_decisions_total",
		Help: "Account gate decisions by outcome.",
	}, []string{"outcome"})
)
