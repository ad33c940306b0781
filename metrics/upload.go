package metrics

import (
	"context"
	"errors"

	"github.com/prometheus/client_golang/prometheus"

	"github.com/sagarc03/xupload"
)

// UploadMetrics records upload outcomes and quota evictions.
type UploadMetrics struct {
	uploads         *prometheus.CounterVec
	uploadBytes     prometheus.Counter
	evictions       prometheus.Counter
	evictedBytes    prometheus.Counter
	evictedObjects  prometheus.Counter
	quotaShortfalls prometheus.Counter
}

// NewUploadMetrics registers upload metrics on the provided registry.
func NewUploadMetrics(reg prometheus.Registerer) *UploadMetrics {
	m := &UploadMetrics{
		uploads: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "upload",
			Name:      "requests_total",
			Help:      "Total number of upload attempts by result.",
		}, []string{"result"}),
		uploadBytes: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "upload",
			Name:      "bytes_total",
			Help:      "Declared bytes of successfully stored uploads.",
		}),
		evictions: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "quota",
			Name:      "evicted_collections_total",
			Help:      "Number of collections removed to satisfy upload quotas.",
		}),
		evictedBytes: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "quota",
			Name:      "evicted_bytes_total",
			Help:      "Data bytes freed by quota eviction.",
		}),
		evictedObjects: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "quota",
			Name:      "evicted_objects_total",
			Help:      "Objects removed by quota eviction.",
		}),
		quotaShortfalls: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "quota",
			Name:      "shortfalls_total",
			Help:      "Evictions that ran out of candidates before the scope fit its budget.",
		}),
	}

	reg.MustRegister(m.uploads, m.uploadBytes, m.evictions, m.evictedBytes, m.evictedObjects, m.quotaShortfalls)

	return m
}

// Result maps an upload error onto a low-cardinality label value.
func Result(err error) string {
	switch {
	case err == nil:
		return "ok"
	case errors.Is(err, xupload.ErrInvalidPath):
		return "invalid_path"
	case errors.Is(err, xupload.ErrUnauthorized):
		return "unauthorized"
	case errors.Is(err, xupload.ErrInvalidQuota):
		return "invalid_quota"
	case errors.Is(err, xupload.ErrTruncatedUpload):
		return "truncated"
	case errors.Is(err, xupload.ErrConflict):
		return "conflict"
	case errors.Is(err, context.Canceled), errors.Is(err, context.DeadlineExceeded):
		return "canceled"
	default:
		return "error"
	}
}

// ObserveUpload implements xupload.Observer.
func (m *UploadMetrics) ObserveUpload(err error, bytes int64) {
	m.uploads.WithLabelValues(Result(err)).Inc()
	if err == nil {
		m.uploadBytes.Add(float64(bytes))
	}
}

// ObserveEviction implements xupload.Observer.
func (m *UploadMetrics) ObserveEviction(report xupload.EvictionReport) {
	var objects int
	for _, c := range report.Evicted {
		objects += c.Objects
	}

	m.evictions.Add(float64(len(report.Evicted)))
	m.evictedBytes.Add(float64(report.Freed))
	m.evictedObjects.Add(float64(objects))

	if report.Overflow > report.Freed {
		m.quotaShortfalls.Inc()
	}
}

var _ xupload.Observer = (*UploadMetrics)(nil)
