package metrics

import (
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	synchronizations = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: "foldermeta",
			Name:      "index_synchronizations_total",
			Help:      "Folder index synchronizations by result.",
		},
		[]string{"result"},
	)

	synchronizationDuration = promauto.NewHistogram(
		prometheus.HistogramOpts{
			Namespace: "foldermeta",
			Name:      "index_synchronization_duration_seconds",
			Help:      "Duration of folder index synchronizations.",
			Buckets:   []float64{0.01, 0.05, 0.1, 0.5, 1, 5, 10, 30},
		},
	)

	defaultConflicts = promauto.NewCounter(
		prometheus.CounterOpts{
			Namespace: "foldermeta",
			Name:      "default_conflicts_total",
			Help:      "Conflicting default folders found during synchronization.",
		},
	)

	cacheLookups = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: "foldermeta",
			Name:      "cache_lookups_total",
			Help:      "Cache store lookups by result.",
		},
		[]string{"result"},
	)

	backendCalls = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: "foldermeta",
			Name:      "backend_calls_total",
			Help:      "Raw folder source calls by driver and operation.",
		},
		[]string{"driver", "op"},
	)

	backendErrors = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: "foldermeta",
			Name:      "backend_errors_total",
			Help:      "Failed raw folder source calls by driver and operation.",
		},
		[]string{"driver", "op"},
	)
)

// ObserveSynchronization 记录一次同步结果
func ObserveSynchronization(start time.Time, err error) {
	result := "ok"
	if err != nil {
		result = "error"
	}
	synchronizations.WithLabelValues(result).Inc()
	synchronizationDuration.Observe(time.Since(start).Seconds())
}

// DefaultConflict 记录默认文件夹冲突
func DefaultConflict() {
	defaultConflicts.Inc()
}

// CacheHit 缓存命中
func CacheHit() {
	cacheLookups.WithLabelValues("hit").Inc()
}

// CacheMiss 缓存未命中
func CacheMiss() {
	cacheLookups.WithLabelValues("miss").Inc()
}

// BackendCall 记录后端调用
func BackendCall(driver, op string, err error) {
	backendCalls.WithLabelValues(driver, op).Inc()
	if err != nil {
		backendErrors.WithLabelValues(driver, op).Inc()
	}
}
