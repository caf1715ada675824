package metrics

import (
	"time"

	"github.com/cockroachdb/errors"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"go.uber.org/multierr"
)

const (
	NAMESPACE = "bicycledb_"
	SUBSYSTEM = "server_"
)

var (
	startedAt = time.Now()

	// Uptime reports process uptime in seconds.
	Uptime = prometheus.NewGaugeFunc(prometheus.GaugeOpts{
		Namespace: NAMESPACE,
		Subsystem: SUBSYSTEM,
		Name:      "uptime_seconds",
		Help:      "Process uptime in seconds",
	}, func() float64 { return time.Since(startedAt).Seconds() })

	// EngineOpsTotal counts key-value engine operations by op and outcome.
	EngineOpsTotal = prometheus.NewCounterVec(prometheus.CounterOpts{
		Namespace: NAMESPACE,
		Subsystem: SUBSYSTEM,
		Name:      "engine_ops_total",
		Help:      "Total number of key-value engine operations",
	}, []string{"op", "outcome"})
	// EngineOpDuration tracks engine operation latency by op.
	EngineOpDuration = prometheus.NewHistogramVec(prometheus.HistogramOpts{
		Namespace: NAMESPACE,
		Subsystem: SUBSYSTEM,
		Name:      "engine_op_duration_seconds",
		Help:      "Key-value engine operation latency in seconds",
		Buckets:   prometheus.DefBuckets,
	}, []string{"op"})

	// ProceduresDeployed tracks the current size of the procedure registry.
	ProceduresDeployed = prometheus.NewGauge(prometheus.GaugeOpts{
		Namespace: NAMESPACE,
		Subsystem: SUBSYSTEM,
		Name:      "procedures_deployed",
		Help:      "Current number of procedures in the registry",
	})
	// InvocationsTotal counts Biplane invocations by outcome (completed/trapped/cancelled).
	InvocationsTotal = prometheus.NewCounterVec(prometheus.CounterOpts{
		Namespace: NAMESPACE,
		Subsystem: SUBSYSTEM,
		Name:      "invocations_total",
		Help:      "Total number of Biplane procedure invocations",
	}, []string{"outcome"})
	// InvocationDuration tracks Biplane invocation latency.
	InvocationDuration = prometheus.NewHistogram(prometheus.HistogramOpts{
		Namespace: NAMESPACE,
		Subsystem: SUBSYSTEM,
		Name:      "invocation_duration_seconds",
		Help:      "Biplane procedure invocation latency in seconds",
		Buckets:   prometheus.DefBuckets,
	})

	// RPCRequestsTotal counts inbound rpcserver calls by service/method/code.
	RPCRequestsTotal = prometheus.NewCounterVec(prometheus.CounterOpts{
		Namespace: NAMESPACE,
		Subsystem: SUBSYSTEM,
		Name:      "rpc_requests_total",
		Help:      "Total number of inbound RPC requests",
	}, []string{"service", "method", "code"})
	// RPCRequestDuration tracks rpcserver call latency by service/method.
	RPCRequestDuration = prometheus.NewHistogramVec(prometheus.HistogramOpts{
		Namespace: NAMESPACE,
		Subsystem: SUBSYSTEM,
		Name:      "rpc_request_duration_seconds",
		Help:      "Inbound RPC request latency in seconds",
		Buckets:   prometheus.DefBuckets,
	}, []string{"service", "method"})
)

// Init registers every metric above against the default registry. The
// metrics themselves are usable as soon as the package is imported (crud,
// biplane, procedure, and rpcserver all record against them before a server
// necessarily calls Init); Init only needs to run once, before the first
// scrape, for those recordings to be exported.
func Init() error {
	errs := make([]error, 0, 10)
	errs = append(errs, prometheus.Register(Uptime))
	errs = append(errs, prometheus.Register(EngineOpsTotal))
	errs = append(errs, prometheus.Register(EngineOpDuration))
	errs = append(errs, prometheus.Register(ProceduresDeployed))
	errs = append(errs, prometheus.Register(InvocationsTotal))
	errs = append(errs, prometheus.Register(InvocationDuration))
	errs = append(errs, prometheus.Register(RPCRequestsTotal))
	errs = append(errs, prometheus.Register(RPCRequestDuration))

	errs = append(errs, prometheus.Register(collectors.NewBuildInfoCollector()))
	errs = append(errs, prometheus.Register(collectors.NewProcessCollector(collectors.ProcessCollectorOpts{Namespace: NAMESPACE})))
	return errors.WithStack(multierr.Combine(errs...))
}
