// Package metrics holds the Prometheus collectors of the sync engine and the verification endpoint.
package metrics

import "github.com/prometheus/client_golang/prometheus"

type Metrics struct {
	Pulls         *prometheus.CounterVec // result
	RowsImported  prometheus.Counter
	SchemaDrift   prometheus.Counter
	PushWrites    *prometheus.CounterVec // result
	Verifications *prometheus.CounterVec // outcome
	MailsSent     *prometheus.CounterVec // type, result
}

// New creates the collectors and registers them on reg when reg is non-nil.
func New(reg prometheus.Registerer) *Metrics {
	m := &Metrics{
		Pulls: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: "eventreg",
			Name:      "pulls_total",
			Help:      "Spreadsheet pulls by result.",
		}, []string{"result"}),
		RowsImported: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: "eventreg",
			Name:      "rows_imported_total",
			Help:      "Registrations created by pulls.",
		}),
		SchemaDrift: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: "eventreg",
			Name:      "schema_drift_total",
			Help:      "Pulls that found a header different from the stored one.",
		}),
		PushWrites: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: "eventreg",
			Name:      "push_writes_total",
			Help:      "Status cell writes by result.",
		}, []string{"result"}),
		Verifications: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: "eventreg",
			Name:      "verifications_total",
			Help:      "Verification link visits by outcome.",
		}, []string{"outcome"}),
		MailsSent: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: "eventreg",
			Name:      "mails_total",
			Help:      "Participant mails by type and result.",
		}, []string{"type", "result"}),
	}
	if reg != nil {
		reg.MustRegister(m.Pulls, m.RowsImported, m.SchemaDrift, m.PushWrites, m.Verifications, m.MailsSent)
	}
	return m
}
