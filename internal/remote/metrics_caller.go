package remote

import (
	"context"
	"sync"
	"time"

	"github.com/prometheus/client_golang/prometheus"
)

var (
	remoteCallPrometheusMetrics sync.Once

	remoteCallDurationSeconds = prometheus.NewHistogramVec(
		prometheus.HistogramOpts{
			Namespace: "networkfs",
			Subsystem: "remote",
			Name:      "call_duration_seconds",
			Help:      "Amount of time spent per remote store operation, in seconds.",
			Buckets:   prometheus.ExponentialBuckets(0.001, 2, 14),
		},
		[]string{"operation", "status"})
)

type metricsCaller struct {
	base Caller
}

// NewMetricsCaller wraps a Caller, observing the latency of every call
// labeled by operation and by remote status. Transport failures are labeled
// TRANSPORT.
func NewMetricsCaller(base Caller) Caller {
	remoteCallPrometheusMetrics.Do(func() {
		prometheus.MustRegister(remoteCallDurationSeconds)
	})

	return &metricsCaller{base: base}
}

func (c *metricsCaller) Call(ctx context.Context, token string, req *Request) (*Response, error) {
	timeStart := time.Now()
	resp, err := c.base.Call(ctx, token, req)

	status := "TRANSPORT"
	if err == nil {
		status = resp.Status.String()
	}
	remoteCallDurationSeconds.WithLabelValues(req.Operation, status).Observe(time.Since(timeStart).Seconds())

	return resp, err
}
