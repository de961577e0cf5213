// handler.go — общие зависимости и вспомогательные функции HTTP handlers.
package handlers

import (
	"context"
	"encoding/json"
	"net/http"

	"github.com/bigkaa/docgate/internal/domain/model"
	"github.com/bigkaa/docgate/internal/service"
)

// Converter — сервис конвертации.
type Converter interface {
	ConvertFiles(ctx context.Context, op model.Operation, uploads []service.Upload, subject string) (*service.Result, error)
	ConvertText(ctx context.Context, op model.Operation, text, subject string) (*service.Result, error)
}

// Deliverer — выдача файла результата клиенту.
type Deliverer interface {
	Serve(w http.ResponseWriter, r *http.Request, result *service.Result) error
}

// EngineStatusProvider — доступность внешних движков.
type EngineStatusProvider interface {
	EngineStatus() map[string]bool
}

// writeJSON записывает JSON-ответ.
func writeJSON(w http.ResponseWriter, statusCode int, data any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(statusCode)
	_ = json.NewEncoder(w).Encode(data)
}
