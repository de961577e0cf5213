// jobs.go — HTTP handlers журнала заданий: список и просмотр.
package handlers

import (
	stderrors "errors"
	"fmt"
	"log/slog"
	"net/http"
	"strconv"

	"github.com/go-chi/chi/v5"

	"github.com/bigkaa/docgate/internal/api/errors"
	"github.com/bigkaa/docgate/internal/domain/model"
	"github.com/bigkaa/docgate/internal/jobs"
)

const (
	defaultJobsLimit = 50
	maxJobsLimit     = 1000
)

// JobsHandler — обработчик endpoints журнала.
type JobsHandler struct {
	journal jobs.Repository
	logger  *slog.Logger
}

// NewJobsHandler создаёт обработчик журнала заданий.
func NewJobsHandler(journal jobs.Repository, logger *slog.Logger) *JobsHandler {
	return &JobsHandler{
		journal: journal,
		logger:  logger.With(slog.String("component", "jobs_handler")),
	}
}

// jobListResponse — страница журнала.
type jobListResponse struct {
	Items   []*model.Job `json:"items"`
	Total   int          `json:"total"`
	Limit   int          `json:"limit"`
	Offset  int          `json:"offset"`
	HasMore bool         `json:"has_more"`
}

// ListJobs обрабатывает GET /api/v1/jobs.
// Пагинация: limit (1..1000, по умолчанию 50), offset. Новые записи первыми.
func (h *JobsHandler) ListJobs(w http.ResponseWriter, r *http.Request) {
	limit, err := queryInt(r, "limit", defaultJobsLimit)
	if err != nil || limit <= 0 || limit > maxJobsLimit {
		errors.ValidationError(w, fmt.Sprintf("Параметр limit должен быть от 1 до %d", maxJobsLimit))
		return
	}
	offset, err := queryInt(r, "offset", 0)
	if err != nil || offset < 0 {
		errors.ValidationError(w, "Параметр offset не может быть отрицательным")
		return
	}

	items, total, err := h.journal.List(r.Context(), limit, offset)
	if err != nil {
		h.logger.Error("Ошибка чтения журнала", slog.String("error", err.Error()))
		errors.InternalError(w, "Ошибка чтения журнала заданий")
		return
	}
	if items == nil {
		items = []*model.Job{}
	}

	writeJSON(w, http.StatusOK, jobListResponse{
		Items:   items,
		Total:   total,
		Limit:   limit,
		Offset:  offset,
		HasMore: offset+len(items) < total,
	})
}

// GetJob обрабатывает GET /api/v1/jobs/{id}.
func (h *JobsHandler) GetJob(w http.ResponseWriter, r *http.Request) {
	id := chi.URLParam(r, "id")
	job, err := h.journal.Get(r.Context(), id)
	if err != nil {
		if stderrors.Is(err, jobs.ErrNotFound) {
			errors.NotFound(w, fmt.Sprintf("Задание %s не найдено", id))
			return
		}
		h.logger.Error("Ошибка чтения журнала",
			slog.String("job_id", id),
			slog.String("error", err.Error()),
		)
		errors.InternalError(w, "Ошибка чтения журнала заданий")
		return
	}
	writeJSON(w, http.StatusOK, job)
}

// queryInt читает целочисленный query-параметр.
func queryInt(r *http.Request, name string, def int) (int, error) {
	v := r.URL.Query().Get(name)
	if v == "" {
		return def, nil
	}
	return strconv.Atoi(v)
}
