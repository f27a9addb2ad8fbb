// Package metrics exposes the local controller's self-observability
// surface: link usage, congestion, TE pass duration and candidate count,
// scraped over HTTP the same way the teacher's pkg/monitoring/prometheus
// package talks to Prometheus, just from the instrumentation side of that
// same client_golang dependency instead of the query side.
package metrics

import (
	"net/http"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// Registry bundles every metric the local controller emits, registered
// against its own prometheus.Registry so two instances in one test binary
// never collide on the default global registry.
type Registry struct {
	reg *prometheus.Registry

	LinkUsage        *prometheus.GaugeVec
	CongestedLinks   prometheus.Gauge
	TEPassDuration   prometheus.Histogram
	TEPassCount      *prometheus.CounterVec
	CandidateCount   prometheus.Gauge
	ElectionRole     *prometheus.GaugeVec
	GroupInstallOK   prometheus.Counter
	GroupInstallFail prometheus.Counter
}

// New builds a Registry with every metric registered under the
// "helix" namespace.
func New() *Registry {
	reg := prometheus.NewRegistry()

	r := &Registry{
		reg: reg,
		LinkUsage: prometheus.NewGaugeVec(prometheus.GaugeOpts{
			Namespace: "helix",
			Subsystem: "topology",
			Name:      "link_usage_fraction",
			Help:      "Fractional utilisation of a directed switch-to-switch link.",
		}, []string{"dpid", "port"}),
		CongestedLinks: prometheus.NewGauge(prometheus.GaugeOpts{
			Namespace: "helix",
			Subsystem: "te",
			Name:      "congested_links",
			Help:      "Number of links at or above the congestion threshold.",
		}),
		TEPassDuration: prometheus.NewHistogram(prometheus.HistogramOpts{
			Namespace: "helix",
			Subsystem: "te",
			Name:      "pass_duration_seconds",
			Help:      "Wall-clock duration of one TE optimisation pass.",
			Buckets:   prometheus.DefBuckets,
		}),
		TEPassCount: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: "helix",
			Subsystem: "te",
			Name:      "pass_total",
			Help:      "TE passes by result kind.",
		}, []string{"kind"}),
		CandidateCount: prometheus.NewGauge(prometheus.GaugeOpts{
			Namespace: "helix",
			Subsystem: "localctrl",
			Name:      "candidate_count",
			Help:      "Number of candidates currently tracked by this area.",
		}),
		ElectionRole: prometheus.NewGaugeVec(prometheus.GaugeOpts{
			Namespace: "helix",
			Subsystem: "cluster",
			Name:      "role",
			Help:      "1 if this instance currently holds the given role, else 0.",
		}, []string{"role"}),
		GroupInstallOK: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: "helix",
			Subsystem: "protection",
			Name:      "group_install_total",
			Help:      "Successful fast-failover group installs.",
		}),
		GroupInstallFail: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: "helix",
			Subsystem: "protection",
			Name:      "group_install_failed_total",
			Help:      "Failed fast-failover group installs.",
		}),
	}

	reg.MustRegister(
		r.LinkUsage,
		r.CongestedLinks,
		r.TEPassDuration,
		r.TEPassCount,
		r.CandidateCount,
		r.ElectionRole,
		r.GroupInstallOK,
		r.GroupInstallFail,
	)
	return r
}

// Handler returns the HTTP handler to mount at /metrics.
func (r *Registry) Handler() http.Handler {
	return promhttp.HandlerFor(r.reg, promhttp.HandlerOpts{})
}
