package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
)

const namespace = "nocometa"

var (
	Registry = prometheus.NewRegistry()

	CacheRequests = prometheus.NewCounterVec(prometheus.CounterOpts{
		Namespace: namespace,
		Subsystem: "cache",
		Name:      "requests_total",
		Help:      "Metadata cache lookups by scope and result.",
	}, []string{"scope", "result"})

	CacheEvictions = prometheus.NewCounter(prometheus.CounterOpts{
		Namespace: namespace,
		Subsystem: "cache",
		Name:      "evictions_total",
		Help:      "Entries evicted from the metadata cache.",
	})

	CascadeDeletes = prometheus.NewCounterVec(prometheus.CounterOpts{
		Namespace: namespace,
		Name:      "cascade_deletes_total",
		Help:      "Metadata objects removed by delete cascades.",
	}, []string{"kind"})

	FormulaJobs = prometheus.NewCounterVec(prometheus.CounterOpts{
		Namespace: namespace,
		Subsystem: "formula",
		Name:      "invalidations_total",
		Help:      "Background formula tree invalidations by outcome.",
	}, []string{"outcome"})
)

func init() {
	Registry.MustRegister(
		CacheRequests,
		CacheEvictions,
		CascadeDeletes,
		FormulaJobs,
		collectors.NewGoCollector(),
	)
}

// Recorder adapts the package collectors to the observers used by the cache
// and the service.
type Recorder struct{}

func (Recorder) CacheHit(scope string)  { CacheRequests.WithLabelValues(scope, "hit").Inc() }
func (Recorder) CacheMiss(scope string) { CacheRequests.WithLabelValues(scope, "miss").Inc() }
func (Recorder) CacheEvicted()          { CacheEvictions.Inc() }

func (Recorder) CascadeDeleted(kind string, n int) {
	if n <= 0 {
		return
	}
	CascadeDeletes.WithLabelValues(kind).Add(float64(n))
}

func (Recorder) FormulaInvalidated(err error) {
	if err != nil {
		FormulaJobs.WithLabelValues("error").Inc()
		return
	}
	FormulaJobs.WithLabelValues("ok").Inc()
}
