package metrics

import "github.com/prometheus/client_golang/prometheus"

var (
	Allocations = prometheus.NewCounterVec(prometheus.CounterOpts{
		Name: "zbox_libc_allocations_total",
		Help: "Total number of guest heap allocations by kind (record or aligned)",
	}, []string{"kind"})

	Frees = prometheus.NewCounterVec(prometheus.CounterOpts{
		Name: "zbox_libc_frees_total",
		Help: "Total number of guest heap releases by kind (record or aligned)",
	}, []string{"kind"})

	AllocationFailures = prometheus.NewCounterVec(prometheus.CounterOpts{
		Name: "zbox_libc_allocation_failures_total",
		Help: "Total number of guest heap allocations that could not be satisfied",
	}, []string{"kind"})

	HeapBytes = prometheus.NewGauge(prometheus.GaugeOpts{
		Name: "zbox_libc_heap_bytes",
		Help: "Linear memory bytes owned by host heaps",
	})

	HeapInUseBytes = prometheus.NewGauge(prometheus.GaugeOpts{
		Name: "zbox_libc_heap_in_use_bytes",
		Help: "Heap bytes currently handed out to guests",
	})

	Faults = prometheus.NewCounterVec(prometheus.CounterOpts{
		Name: "zbox_faults_total",
		Help: "Total number of fatal faults raised by reason",
	}, []string{"reason"})

	RandomDraws = prometheus.NewCounter(prometheus.CounterOpts{
		Name: "zbox_random_draws_total",
		Help: "Total number of 32-bit random values handed out",
	})

	HandleOps = prometheus.NewCounterVec(prometheus.CounterOpts{
		Name: "zbox_handle_operations_total",
		Help: "Total number of façade operations by handle type and operation",
	}, []string{"handle", "op"})

	HandleErrors = prometheus.NewCounterVec(prometheus.CounterOpts{
		Name: "zbox_handle_errors_total",
		Help: "Total number of bridged failures by handle type and engine code",
	}, []string{"handle", "code"})

	HandlesOpen = prometheus.NewGaugeVec(prometheus.GaugeOpts{
		Name: "zbox_handles_open",
		Help: "Currently open handles by type",
	}, []string{"handle"})

	DispatchLatency = prometheus.NewHistogramVec(prometheus.HistogramOpts{
		Name:    "zbox_dispatch_latency_seconds",
		Help:    "Histogram of message dispatch latency by scope",
		Buckets: prometheus.DefBuckets,
	}, []string{"scope"})
)

// Collectors returns every collector in the package.
func Collectors() []prometheus.Collector {
	return []prometheus.Collector{
		Allocations, Frees, AllocationFailures, HeapBytes, HeapInUseBytes,
		Faults, RandomDraws, HandleOps, HandleErrors, HandlesOpen, DispatchLatency,
	}
}
