// system.go — обработчик GET /api/v1/info (информация о docgate).
// Публичный endpoint (без аутентификации) для мониторинга и клиентов.
package handlers

import (
	"net/http"

	"github.com/bigkaa/docgate/internal/config"
	"github.com/bigkaa/docgate/internal/domain/model"
	"github.com/bigkaa/docgate/internal/storage/filestore"
)

// SystemHandler — обработчик системных endpoints.
type SystemHandler struct {
	cfg     *config.Config
	areas   *filestore.Areas
	engines EngineStatusProvider
}

// NewSystemHandler создаёт обработчик системных endpoints.
func NewSystemHandler(cfg *config.Config, areas *filestore.Areas, engines EngineStatusProvider) *SystemHandler {
	return &SystemHandler{
		cfg:     cfg,
		areas:   areas,
		engines: engines,
	}
}

// operationInfo — описание операции для клиента.
type operationInfo struct {
	Operation  model.Operation  `json:"operation"`
	Slug       string           `json:"slug,omitempty"`
	Extensions []string         `json:"extensions,omitempty"`
	Output     model.OutputKind `json:"output"`
}

// areaInfo — ёмкость диска под областью хранения.
type areaInfo struct {
	Name           string `json:"name"`
	Entries        int    `json:"entries"`
	TotalBytes     int64  `json:"total_bytes,omitempty"`
	UsedBytes      int64  `json:"used_bytes,omitempty"`
	AvailableBytes int64  `json:"available_bytes,omitempty"`
}

// infoResponse — ответ GET /api/v1/info.
type infoResponse struct {
	Service       string          `json:"service"`
	Version       string          `json:"version"`
	AuthEnabled   bool            `json:"auth_enabled"`
	MaxUploadSize int64           `json:"max_upload_size"`
	Retention     string          `json:"retention"`
	Operations    []operationInfo `json:"operations"`
	Engines       map[string]bool `json:"engines"`
	Areas         []areaInfo      `json:"areas"`
}

// GetInfo обрабатывает GET /api/v1/info.
func (h *SystemHandler) GetInfo(w http.ResponseWriter, _ *http.Request) {
	ops := make([]operationInfo, 0, len(model.AllOperations()))
	for _, op := range model.AllOperations() {
		spec, _ := op.Spec()
		ops = append(ops, operationInfo{
			Operation:  op,
			Slug:       spec.Slug,
			Extensions: spec.Extensions,
			Output:     spec.Output,
		})
	}

	areas := make([]areaInfo, 0, 3)
	for _, fs := range h.areas.All() {
		info := areaInfo{Name: fs.Name()}
		if entries, err := fs.Entries(); err == nil {
			info.Entries = len(entries)
		}
		if total, used, available, err := getDiskUsage(fs.Dir()); err == nil {
			info.TotalBytes, info.UsedBytes, info.AvailableBytes = total, used, available
		}
		areas = append(areas, info)
	}

	writeJSON(w, http.StatusOK, infoResponse{
		Service:       "docgate",
		Version:       config.Version,
		AuthEnabled:   h.cfg.AuthEnabled(),
		MaxUploadSize: h.cfg.MaxUploadSize,
		Retention:     h.cfg.Retention.String(),
		Operations:    ops,
		Engines:       h.engines.EngineStatus(),
		Areas:         areas,
	})
}
