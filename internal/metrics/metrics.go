// Package metrics holds the domain counters of the document service.
package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
)

// Transition results.
const (
	ResultApplied   = "applied"
	ResultForbidden = "forbidden"
	ResultInvalid   = "invalid"
	ResultError     = "error"
)

// Collector records workflow and versioning activity. A nil *Collector is valid and records nothing.
type Collector struct {
	transitions     *prometheus.CounterVec
	versionsCreated prometheus.Counter
	uploadBytes     prometheus.Histogram
}

// NewCollector creates the collectors and registers them with reg.
func NewCollector(reg prometheus.Registerer) (*Collector, error) {
	c := &Collector{
		transitions: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Name: "edms_workflow_transitions_total",
				Help: "Workflow actions by action and outcome.",
			},
			[]string{"action", "result"},
		),
		versionsCreated: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "edms_document_versions_created_total",
			Help: "Document versions created, including first versions.",
		}),
		uploadBytes: prometheus.NewHistogram(prometheus.HistogramOpts{
			Name:    "edms_version_upload_bytes",
			Help:    "Size of uploaded version content in bytes.",
			Buckets: prometheus.ExponentialBuckets(1024, 4, 10),
		}),
	}

	for _, col := range []prometheus.Collector{c.transitions, c.versionsCreated, c.uploadBytes} {
		if err := reg.Register(col); err != nil {
			return nil, err
		}
	}
	return c, nil
}

func (c *Collector) Transition(action, result string) {
	if c == nil {
		return
	}
	c.transitions.WithLabelValues(action, result).Inc()
}

func (c *Collector) VersionCreated(size int64) {
	if c == nil {
		return
	}
	c.versionsCreated.Inc()
	if size >= 0 {
		c.uploadBytes.Observe(float64(size))
	}
}
