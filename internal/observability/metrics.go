package observability

import (
	"github.com/prometheus/client_golang/prometheus"
)

// Metrics is the relay's Prometheus instrument set.
type Metrics struct {
	FramesAdmitted   *prometheus.CounterVec // by tenant
	FramesRejected   *prometheus.CounterVec // by reason
	SinkDropped      prometheus.Counter
	SinkDelivered    prometheus.Counter
	SinkFailed       prometheus.Counter
	ClipsExtracted   *prometheus.CounterVec // truncated vs complete
	BufferedFrames   prometheus.Gauge
	BufferedBytes    prometheus.Gauge
	TenantBuffers    prometheus.Gauge
	BuffersReclaimed prometheus.Counter
}

// NewMetrics creates and registers the relay metrics with the registerer.
func NewMetrics(reg prometheus.Registerer) *Metrics {
	m := &Metrics{
		FramesAdmitted: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "camrelay_frames_admitted_total",
			Help: "Frames admitted into tenant buffers.",
		}, []string{"tenant"}),
		FramesRejected: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "camrelay_frames_rejected_total",
			Help: "Frames rejected before buffering.",
		}, []string{"reason"}),
		SinkDropped: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "camrelay_sink_dropped_total",
			Help: "Analysis hand-offs dropped by backpressure or rate ceiling.",
		}),
		SinkDelivered: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "camrelay_sink_delivered_total",
			Help: "Frames successfully pushed to the analysis sink.",
		}),
		SinkFailed: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "camrelay_sink_failed_total",
			Help: "Analysis sink pushes that failed (best-effort, swallowed).",
		}),
		ClipsExtracted: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "camrelay_clips_extracted_total",
			Help: "Incident clips materialized.",
		}, []string{"result"}),
		BufferedFrames: prometheus.NewGauge(prometheus.GaugeOpts{
			Name: "camrelay_buffered_frames",
			Help: "Frames currently held across all tenant long windows.",
		}),
		BufferedBytes: prometheus.NewGauge(prometheus.GaugeOpts{
			Name: "camrelay_buffered_bytes",
			Help: "Payload bytes currently held across all tenant long windows.",
		}),
		TenantBuffers: prometheus.NewGauge(prometheus.GaugeOpts{
			Name: "camrelay_tenant_buffers",
			Help: "Tenant buffers currently alive.",
		}),
		BuffersReclaimed: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "camrelay_buffers_reclaimed_total",
			Help: "Idle tenant buffers destroyed by the retention sweep.",
		}),
	}

	reg.MustRegister(
		m.FramesAdmitted, m.FramesRejected,
		m.SinkDropped, m.SinkDelivered, m.SinkFailed,
		m.ClipsExtracted,
		m.BufferedFrames, m.BufferedBytes, m.TenantBuffers, m.BuffersReclaimed,
	)
	return m
}

// NewTestMetrics creates an unregistered-in-global metrics set for tests.
func NewTestMetrics() *Metrics {
	return NewMetrics(prometheus.NewRegistry())
}
