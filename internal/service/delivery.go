// delivery.go — выдача результата конвертации клиенту.
package service

import (
	"fmt"
	"log/slog"
	"mime"
	"net/http"
	"path/filepath"

	"github.com/gabriel-vasile/mimetype"

	"github.com/bigkaa/docgate/internal/storage/filestore"
)

// DeliveryService — сервис выдачи результатов из области converted.
type DeliveryService struct {
	converted *filestore.FileStore
	logger    *slog.Logger
}

// NewDeliveryService создаёт сервис выдачи результатов.
func NewDeliveryService(converted *filestore.FileStore, logger *slog.Logger) *DeliveryService {
	return &DeliveryService{
		converted: converted,
		logger:    logger.With(slog.String("component", "delivery")),
	}
}

// Serve отдаёт файл результата как attachment через http.ServeContent.
// Файл остаётся в области converted до очистки.
func (s *DeliveryService) Serve(w http.ResponseWriter, r *http.Request, result *Result) error {
	name := filepath.Base(result.Path)
	file, err := s.converted.ReadFile(name)
	if err != nil {
		return fmt.Errorf("ошибка открытия результата %s: %w", name, err)
	}
	defer file.Close()

	stat, err := file.Stat()
	if err != nil {
		return fmt.Errorf("ошибка stat результата %s: %w", name, err)
	}

	contentType := "application/octet-stream"
	if m, err := mimetype.DetectFile(file.Name()); err == nil {
		contentType = m.String()
	}

	w.Header().Set("Content-Type", contentType)
	w.Header().Set("Content-Disposition", mime.FormatMediaType("attachment", map[string]string{
		"filename": result.DownloadName,
	}))
	if result.Job != nil {
		w.Header().Set("X-Job-Id", result.Job.ID)
	}

	http.ServeContent(w, r, result.DownloadName, stat.ModTime(), file)

	s.logger.Debug("Результат выдан",
		slog.String("file", name),
		slog.String("download_name", result.DownloadName),
		slog.Int64("size", stat.Size()),
	)
	return nil
}
