package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// ScansTotal counts resolved scans by record type and outcome.
var ScansTotal = promauto.NewCounterVec(prometheus.CounterOpts{
	Name: "timetrack_scans_total",
	Help: "Resolved scans by record type and result.",
}, []string{"type", "result"})

// BatchRows counts rows affected by batch mutations, by operation.
var BatchRows = promauto.NewCounterVec(prometheus.CounterOpts{
	Name: "timetrack_batch_rows_total",
	Help: "Rows affected by batch mutations.",
}, []string{"operation"})
