// health.go — обработчики health endpoints для Kubernetes probes.
package handlers

import (
	"context"
	"net/http"
	"time"

	"github.com/bigkaa/docgate/internal/config"
)

// statusFail — строковая константа для статуса "fail" в health checks.
const statusFail = "fail"

// pingTimeout — таймаут проверки журнала.
const pingTimeout = 2 * time.Second

// WritableChecker — проверка областей хранения на запись.
type WritableChecker interface {
	CheckWritable() error
}

// Pinger — проверка доступности журнала заданий.
type Pinger interface {
	Ping(ctx context.Context) error
}

// DependencyHealth — состояние внешних зависимостей (topologymetrics).
type DependencyHealth interface {
	Health() map[string]bool
}

// HealthHandler реализует health endpoints: /health/live, /health/ready.
type HealthHandler struct {
	version string
	areas   WritableChecker
	journal Pinger
	engines EngineStatusProvider
	deps    DependencyHealth
}

// NewHealthHandler создаёт обработчик health endpoints.
func NewHealthHandler(areas WritableChecker, journal Pinger, engines EngineStatusProvider) *HealthHandler {
	return &HealthHandler{
		version: config.Version,
		areas:   areas,
		journal: journal,
		engines: engines,
	}
}

// WithDependencies подключает состояние внешних зависимостей к readiness.
func (h *HealthHandler) WithDependencies(deps DependencyHealth) *HealthHandler {
	h.deps = deps
	return h
}

// HealthLive обрабатывает GET /health/live.
// Возвращает 200, если процесс жив. Не проверяет зависимости.
func (h *HealthHandler) HealthLive(w http.ResponseWriter, _ *http.Request) {
	writeJSON(w, http.StatusOK, map[string]any{
		"status":    "ok",
		"timestamp": time.Now().UTC().Format(time.RFC3339),
		"version":   h.version,
		"service":   "docgate",
	})
}

// HealthReady обрабатывает GET /health/ready.
// Области хранения и журнал обязательны (fail → 503). Отсутствующий движок
// или недоступная внешняя зависимость переводят статус в degraded.
func (h *HealthHandler) HealthReady(w http.ResponseWriter, r *http.Request) {
	overallStatus := "ok"
	httpStatus := http.StatusOK
	fail := func() {
		overallStatus = statusFail
		httpStatus = http.StatusServiceUnavailable
	}

	storageCheck := map[string]any{"status": "ok"}
	if err := h.areas.CheckWritable(); err != nil {
		storageCheck = map[string]any{"status": statusFail, "message": err.Error()}
		fail()
	}

	journalCheck := map[string]any{"status": "ok"}
	ctx, cancel := context.WithTimeout(r.Context(), pingTimeout)
	defer cancel()
	if err := h.journal.Ping(ctx); err != nil {
		journalCheck = map[string]any{"status": statusFail, "message": err.Error()}
		fail()
	}

	engines := h.engines.EngineStatus()
	enginesCheck := map[string]any{"status": "ok", "available": engines}
	for _, ok := range engines {
		if !ok {
			enginesCheck["status"] = "degraded"
			if overallStatus != statusFail {
				overallStatus = "degraded"
			}
			break
		}
	}

	checks := map[string]any{
		"storage": storageCheck,
		"journal": journalCheck,
		"engines": enginesCheck,
	}

	if h.deps != nil {
		deps := h.deps.Health()
		depsCheck := map[string]any{"status": "ok", "available": deps}
		for _, ok := range deps {
			if !ok {
				depsCheck["status"] = "degraded"
				if overallStatus != statusFail {
					overallStatus = "degraded"
				}
				break
			}
		}
		checks["dependencies"] = depsCheck
	}

	writeJSON(w, httpStatus, map[string]any{
		"status":    overallStatus,
		"timestamp": time.Now().UTC().Format(time.RFC3339),
		"version":   h.version,
		"service":   "docgate",
		"checks":    checks,
	})
}
