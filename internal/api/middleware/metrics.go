// metrics.go — Prometheus HTTP метрики kardo-backend.
// Регистрирует метрики: kb_http_requests_total, kb_http_request_duration_seconds.
// Бизнес-метрики (kb_records_total, kb_uploads_total и др.) экспортируются
// отсюда и обновляются из сервисного слоя.
package middleware

import (
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// HTTP метрики
var (
	// httpRequestsTotal — общее количество HTTP-запросов.
	httpRequestsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "kb_http_requests_total",
			Help: "Общее количество HTTP-запросов к kardo-backend",
		},
		[]string{"method", "path", "status"},
	)

	// httpRequestDuration — гистограмма длительности HTTP-запросов.
	httpRequestDuration = promauto.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "kb_http_request_duration_seconds",
			Help:    "Длительность HTTP-запросов к kardo-backend в секундах",
			Buckets: prometheus.DefBuckets,
		},
		[]string{"method", "path"},
	)
)

// Бизнес-метрики (экспортируются для обновления из сервисного слоя)
var (
	// RecordsTotal — текущее количество записей в хранилище (gauge).
	RecordsTotal = promauto.NewGaugeVec(
		prometheus.GaugeOpts{
			Name: "kb_records_total",
			Help: "Текущее количество записей в JSON-хранилище",
		},
		[]string{"type"},
	)

	// UploadsTotal — общее количество операций загрузки.
	UploadsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "kb_uploads_total",
			Help: "Общее количество операций загрузки записей",
		},
		[]string{"type", "result"},
	)

	// UploadedBytes — общий объём принятых файлов.
	UploadedBytes = promauto.NewCounter(
		prometheus.CounterOpts{
			Name: "kb_uploaded_bytes_total",
			Help: "Общий объём принятых файлов в байтах",
		},
	)
)

// MetricsMiddleware возвращает HTTP middleware для сбора Prometheus метрик.
// Записывает количество запросов и длительность для каждого endpoint.
func MetricsMiddleware() func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			start := time.Now()

			// Нормализуем путь для лейблов метрик
			normalizedPath := normalizePath(r.URL.Path)

			wrapped := newMetricsResponseWriter(w)
			next.ServeHTTP(wrapped, r)

			duration := time.Since(start).Seconds()
			status := strconv.Itoa(wrapped.statusCode)

			httpRequestsTotal.WithLabelValues(r.Method, normalizedPath, status).Inc()
			httpRequestDuration.WithLabelValues(r.Method, normalizedPath).Observe(duration)
		})
	}
}

// metricsResponseWriter — обёртка для перехвата статус-кода.
type metricsResponseWriter struct {
	http.ResponseWriter
	statusCode int
}

func newMetricsResponseWriter(w http.ResponseWriter) *metricsResponseWriter {
	return &metricsResponseWriter{ResponseWriter: w, statusCode: http.StatusOK}
}

func (rw *metricsResponseWriter) WriteHeader(code int) {
	rw.statusCode = code
	rw.ResponseWriter.WriteHeader(code)
}

// Unwrap позволяет http.ResponseController получить доступ к оригинальному ResponseWriter.
func (rw *metricsResponseWriter) Unwrap() http.ResponseWriter {
	return rw.ResponseWriter
}

// normalizePath сводит путь запроса к известным endpoint'ам для лейблов
// метрик, предотвращая взрывной рост кардинальности.
func normalizePath(path string) string {
	switch {
	case path == "/projects" || path == "/reports":
		return path
	case path == "/language.html":
		return path
	case path == "/metrics" || path == "/openapi.json":
		return path
	case strings.HasPrefix(path, "/health/"):
		return path
	default:
		return "/other"
	}
}
