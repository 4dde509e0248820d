package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// Scan outcomes and token issuance, labelled for the ops dashboard.
var (
	ScansTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "classroll_scans_total",
		Help: "Scan attempts by terminal outcome.",
	}, []string{"outcome"})

	TokensIssuedTotal = promauto.NewCounter(prometheus.CounterOpts{
		Name: "classroll_tokens_issued_total",
		Help: "Attendance tokens issued (including re-issues).",
	})
)
