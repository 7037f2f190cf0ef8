// Package metrics defines and registers all custom Prometheus metrics for
// the account service. It is the single source of truth for metric names,
// labels, and help strings. Metrics register with the default registry at
// package init via promauto.
package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

const namespace = "account"

// UsersCreatedTotal counts successful registrations.
// Label:
//   - role: the role assigned to the new account ("root", "customer")
var UsersCreatedTotal = promauto.NewCounterVec(
	prometheus.CounterOpts{
		Namespace: namespace,
		Name:      "users_created_total",
		Help:      "Total number of user accounts created, by role.",
	},
	[]string{"role"},
)

// SignInsTotal counts sign-in attempts.
// Label:
//   - result: "success" or "failure"
var SignInsTotal = promauto.NewCounterVec(
	prometheus.CounterOpts{
		Namespace: namespace,
		Name:      "sign_ins_total",
		Help:      "Total number of sign-in attempts, by result.",
	},
	[]string{"result"},
)

// PasswordResetsTotal counts password-recovery flow events.
// Label:
//   - stage: "requested" (token issued) or "completed" (password changed)
var PasswordResetsTotal = promauto.NewCounterVec(
	prometheus.CounterOpts{
		Namespace: namespace,
		Name:      "password_resets_total",
		Help:      "Total number of password recovery events, by stage.",
	},
	[]string{"stage"},
)

// EmailsSentTotal counts successfully dispatched emails.
// Label:
//   - kind: template name ("new_account", "password_recovery", "password_changed")
var EmailsSentTotal = promauto.NewCounterVec(
	prometheus.CounterOpts{
		Namespace: namespace,
		Name:      "emails_sent_total",
		Help:      "Total number of emails successfully handed to the SMTP transport.",
	},
	[]string{"kind"},
)

// EmailsFailedTotal counts emails that the transport rejected.
// Label:
//   - kind: template name
var EmailsFailedTotal = promauto.NewCounterVec(
	prometheus.CounterOpts{
		Namespace: namespace,
		Name:      "emails_failed_total",
		Help:      "Total number of emails that failed to send.",
	},
	[]string{"kind"},
)
