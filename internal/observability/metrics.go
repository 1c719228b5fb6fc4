package observability

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// Metrics holds the prometheus instrumentation for one engine instance,
// mirroring QuantaraX's internal/observability/metrics.go registration
// style (promauto-registered typed metrics grouped by concern).
type Metrics struct {
	RequestsSentTotal      *prometheus.CounterVec
	RequestsRetriedTotal   prometheus.Counter
	RequestsTimedOutTotal  prometheus.Counter
	RequestDuration        prometheus.Histogram

	ChunksSentTotal     prometheus.Counter
	ChunksReceivedTotal prometheus.Counter
	ChunksDuplicateTotal prometheus.Counter

	ChecksumMismatchTotal  prometheus.Counter
	CodecUnavailableTotal  *prometheus.CounterVec
	CompressionRatio       prometheus.Histogram

	GCSweepDuration      prometheus.Histogram
	GCStaleAssemblies    prometheus.Counter
	GCOldRequests        prometheus.Counter

	TrackerSize     prometheus.Gauge
	AssembliesActive prometheus.Gauge
}

// NewMetrics creates the engine's prometheus metrics and registers them
// against reg. With a nil reg the metrics are created but not registered
// anywhere (promauto.With(nil) behavior).
func NewMetrics(reg prometheus.Registerer) *Metrics {
	factory := promauto.With(reg)

	return &Metrics{
		RequestsSentTotal: factory.NewCounterVec(prometheus.CounterOpts{
			Name: "rdpe_requests_sent_total",
			Help: "Total REQ envelopes sent, by single/chunked.",
		}, []string{"kind"}),

		RequestsRetriedTotal: factory.NewCounter(prometheus.CounterOpts{
			Name: "rdpe_requests_retried_total",
			Help: "Total retry transmissions (retry timers that fired).",
		}),

		RequestsTimedOutTotal: factory.NewCounter(prometheus.CounterOpts{
			Name: "rdpe_requests_timed_out_total",
			Help: "Total requests that reached request_timeout_ms without resolving.",
		}),

		RequestDuration: factory.NewHistogram(prometheus.HistogramOpts{
			Name:    "rdpe_request_duration_seconds",
			Help:    "Time from send to resolution for a logical request.",
			Buckets: prometheus.DefBuckets,
		}),

		ChunksSentTotal: factory.NewCounter(prometheus.CounterOpts{
			Name: "rdpe_chunks_sent_total",
			Help: "Total chunk REQ envelopes sent.",
		}),

		ChunksReceivedTotal: factory.NewCounter(prometheus.CounterOpts{
			Name: "rdpe_chunks_received_total",
			Help: "Total chunk REQ envelopes received.",
		}),

		ChunksDuplicateTotal: factory.NewCounter(prometheus.CounterOpts{
			Name: "rdpe_chunks_duplicate_total",
			Help: "Total duplicate chunk arrivals silently dropped.",
		}),

		ChecksumMismatchTotal: factory.NewCounter(prometheus.CounterOpts{
			Name: "rdpe_checksum_mismatch_total",
			Help: "Total envelopes silently dropped for checksum mismatch.",
		}),

		CodecUnavailableTotal: factory.NewCounterVec(prometheus.CounterOpts{
			Name: "rdpe_codec_unavailable_total",
			Help: "Total deliveries failed because the recorded codec was unavailable.",
		}, []string{"codec"}),

		CompressionRatio: factory.NewHistogram(prometheus.HistogramOpts{
			Name:    "rdpe_compression_ratio",
			Help:    "compressed_size / original_size for successfully compressed payloads.",
			Buckets: prometheus.LinearBuckets(0.1, 0.1, 10),
		}),

		GCSweepDuration: factory.NewHistogram(prometheus.HistogramOpts{
			Name: "rdpe_gc_sweep_duration_seconds",
			Help: "Wall time of a single garbage-collection sweep.",
		}),

		GCStaleAssemblies: factory.NewCounter(prometheus.CounterOpts{
			Name: "rdpe_gc_stale_assemblies_total",
			Help: "Total stale reassembly entries removed by GC.",
		}),

		GCOldRequests: factory.NewCounter(prometheus.CounterOpts{
			Name: "rdpe_gc_old_requests_total",
			Help: "Total aged-out tracker entries removed by GC.",
		}),

		TrackerSize: factory.NewGauge(prometheus.GaugeOpts{
			Name: "rdpe_tracker_size",
			Help: "Current number of outstanding request handles.",
		}),

		AssembliesActive: factory.NewGauge(prometheus.GaugeOpts{
			Name: "rdpe_assemblies_active",
			Help: "Current number of in-flight chunk reassemblies.",
		}),
	}
}
