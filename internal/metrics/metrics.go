// Package metrics holds the Prometheus collectors exported on /metrics.
package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	CodesIssued = promauto.NewCounterVec(prometheus.CounterOpts{
		Namespace: "attendsheets",
		Name:      "codes_issued_total",
		Help:      "One-time codes issued, by kind.",
	}, []string{"kind"})

	CodesConsumed = promauto.NewCounterVec(prometheus.CounterOpts{
		Namespace: "attendsheets",
		Name:      "codes_consumed_total",
		Help:      "One-time code consumption attempts, by kind and result.",
	}, []string{"kind", "result"})

	MailDeliveries = promauto.NewCounterVec(prometheus.CounterOpts{
		Namespace: "attendsheets",
		Name:      "mail_deliveries_total",
		Help:      "Mail delivery attempts, by purpose and result.",
	}, []string{"purpose", "result"})

	SessionsStarted = promauto.NewCounter(prometheus.CounterOpts{
		Namespace: "attendsheets",
		Name:      "qr_sessions_started_total",
		Help:      "QR attendance sessions started.",
	})

	SessionsStopped = promauto.NewCounter(prometheus.CounterOpts{
		Namespace: "attendsheets",
		Name:      "qr_sessions_stopped_total",
		Help:      "QR attendance sessions stopped and reconciled.",
	})

	Scans = promauto.NewCounterVec(prometheus.CounterOpts{
		Namespace: "attendsheets",
		Name:      "qr_scans_total",
		Help:      "QR scan attempts, by result.",
	}, []string{"result"})

	AbsentMarked = promauto.NewCounter(prometheus.CounterOpts{
		Namespace: "attendsheets",
		Name:      "absent_marked_total",
		Help:      "Attendance entries written as Absent by reconciliation.",
	})

	ReconcileFailures = promauto.NewCounter(prometheus.CounterOpts{
		Namespace: "attendsheets",
		Name:      "reconcile_write_failures_total",
		Help:      "Absent writes that failed during reconciliation.",
	})
)

// Result turns an error into a short label value.
func Result(err error) string {
	if err == nil {
		return "ok"
	}
	return "error"
}
