// metrics.go — Prometheus HTTP метрики docgate.
// Регистрирует метрики: dg_http_requests_total, dg_http_request_duration_seconds.
// Бизнес-метрики (dg_conversions_total, dg_engine_calls_total и др.)
// регистрируются в соответствующих пакетах.
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
			Name: "dg_http_requests_total",
			Help: "Общее количество HTTP-запросов к docgate",
		},
		[]string{"method", "path", "status"},
	)

	// httpRequestDuration — гистограмма длительности HTTP-запросов.
	// Конвертация длится секунды и минуты, поэтому шкала шире DefBuckets.
	httpRequestDuration = promauto.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "dg_http_request_duration_seconds",
			Help:    "Длительность HTTP-запросов к docgate в секундах",
			Buckets: []float64{0.005, 0.025, 0.1, 0.5, 1, 2.5, 5, 10, 30, 60, 120, 300},
		},
		[]string{"method", "path"},
	)
)

// MetricsMiddleware возвращает HTTP middleware для сбора Prometheus метрик.
// Записывает количество запросов и длительность для каждого endpoint.
func MetricsMiddleware() func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			start := time.Now()
			normalizedPath := normalizePath(r.URL.Path)

			wrapped := newResponseWriter(w)
			next.ServeHTTP(wrapped, r)

			status := strconv.Itoa(wrapped.statusCode)
			httpRequestsTotal.WithLabelValues(r.Method, normalizedPath, status).Inc()
			httpRequestDuration.WithLabelValues(r.Method, normalizedPath).Observe(time.Since(start).Seconds())
		})
	}
}

// knownPaths — фиксированные маршруты API.
var knownPaths = map[string]bool{
	"/health/live":         true,
	"/health/ready":        true,
	"/metrics":             true,
	"/api/v1/info":         true,
	"/api/v1/jobs":         true,
	"/ocr":                 true,
	"/edit-text":           true,
	"/convert/pdf-to-docx": true,
	"/convert/docx-to-pdf": true,
	"/convert/pdf-to-jpg":  true,
	"/convert/jpg-to-pdf":  true,
}

// normalizePath приводит путь к шаблону маршрута для предотвращения
// взрывного роста кардинальности метрик.
// /api/v1/jobs/a1b2c3d4-e5f6-7890-abcd-ef1234567890 → /api/v1/jobs/{id}
func normalizePath(path string) string {
	const jobsPrefix = "/api/v1/jobs/"
	switch {
	case knownPaths[path]:
		return path
	case strings.HasPrefix(path, jobsPrefix) && len(path) == len(jobsPrefix)+36 && isUUIDSegment(path, jobsPrefix):
		return "/api/v1/jobs/{id}"
	case strings.HasPrefix(path, "/convert/"):
		return "/convert/{operation}"
	}
	return "other"
}

// isUUIDSegment проверяет, начинается ли сегмент пути после prefix с UUID.
func isUUIDSegment(path, prefix string) bool {
	if len(path) < len(prefix)+36 {
		return false
	}
	segment := path[len(prefix) : len(prefix)+36]
	// Формат UUID: 8-4-4-4-12
	for i, c := range segment {
		if i == 8 || i == 13 || i == 18 || i == 23 {
			if c != '-' {
				return false
			}
		} else if !((c >= '0' && c <= '9') || (c >= 'a' && c <= 'f') || (c >= 'A' && c <= 'F')) {
			return false
		}
	}
	return true
}
