// convert.go — HTTP handlers конвертации: /convert/{operation}, /ocr, /edit-text.
package handlers

import (
	"encoding/json"
	stderrors "errors"
	"fmt"
	"io"
	"log/slog"
	"mime/multipart"
	"net/http"
	"strings"

	"github.com/go-chi/chi/v5"

	"github.com/bigkaa/docgate/internal/api/errors"
	"github.com/bigkaa/docgate/internal/api/middleware"
	"github.com/bigkaa/docgate/internal/domain/model"
	"github.com/bigkaa/docgate/internal/intake"
	"github.com/bigkaa/docgate/internal/service"
)

// multipartMemory — объём multipart, удерживаемый в памяти; остальное
// net/http сбрасывает во временные файлы.
const multipartMemory = 8 << 20

// ConvertHandler — обработчик endpoints конвертации.
type ConvertHandler struct {
	converter     Converter
	delivery      Deliverer
	maxUploadSize int64
	logger        *slog.Logger
}

// NewConvertHandler создаёт обработчик конвертации.
// maxUploadSize — ограничение тела запроса в байтах.
func NewConvertHandler(converter Converter, delivery Deliverer, maxUploadSize int64, logger *slog.Logger) *ConvertHandler {
	return &ConvertHandler{
		converter:     converter,
		delivery:      delivery,
		maxUploadSize: maxUploadSize,
		logger:        logger.With(slog.String("component", "convert_handler")),
	}
}

// Convert обрабатывает POST /convert/{operation}.
// Multipart form: file (jpg-to-pdf — files, несколько частей).
func (h *ConvertHandler) Convert(w http.ResponseWriter, r *http.Request) {
	op, err := model.OperationFromSlug(chi.URLParam(r, "operation"))
	if err != nil {
		errors.NotFound(w, err.Error())
		return
	}

	fields := []string{"file"}
	if op == model.OpJPGToPDF {
		fields = []string{"files", "file"}
	}

	uploads, cleanup, ok := h.readUploads(w, r, fields...)
	if !ok {
		return
	}
	defer cleanup()

	if op != model.OpJPGToPDF && len(uploads) > 1 {
		errors.ValidationError(w, "Операция принимает ровно один файл")
		return
	}

	result, err := h.converter.ConvertFiles(r.Context(), op, uploads, middleware.SubjectFromContext(r.Context()))
	if err != nil {
		errors.FromError(w, err)
		return
	}
	h.serve(w, r, result)
}

// OCR обрабатывает POST /ocr.
// Операция (ocr_image / ocr_pdf) выбирается по расширению файла.
func (h *ConvertHandler) OCR(w http.ResponseWriter, r *http.Request) {
	uploads, cleanup, ok := h.readUploads(w, r, "file")
	if !ok {
		return
	}
	defer cleanup()

	filename := uploads[0].Filename
	op, err := intake.OperationForOCR(filename)
	if err != nil {
		errors.FromError(w, err)
		return
	}

	result, err := h.converter.ConvertFiles(r.Context(), op, uploads[:1], middleware.SubjectFromContext(r.Context()))
	if err != nil {
		errors.FromError(w, err)
		return
	}

	writeJSON(w, http.StatusOK, map[string]any{
		"success":        true,
		"extracted_text": result.Text,
		"filename":       filename,
	})
}

// editTextRequest — тело POST /edit-text.
type editTextRequest struct {
	Text      string `json:"text"`
	Operation string `json:"operation"`
}

// EditText обрабатывает POST /edit-text.
// operation: format (по умолчанию) — JSON с отформатированным текстом,
// to_docx — DOCX-вложение.
func (h *ConvertHandler) EditText(w http.ResponseWriter, r *http.Request) {
	r.Body = http.MaxBytesReader(w, r.Body, h.maxUploadSize)

	var req editTextRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		var tooLarge *http.MaxBytesError
		if stderrors.As(err, &tooLarge) {
			errors.FileTooLarge(w, "Текст превышает допустимый размер")
			return
		}
		errors.ValidationError(w, fmt.Sprintf("Некорректный JSON: %s", err.Error()))
		return
	}
	if strings.TrimSpace(req.Text) == "" {
		errors.ValidationError(w, "Поле 'text' обязательно")
		return
	}

	var op model.Operation
	switch req.Operation {
	case "", "format":
		op = model.OpTextFormat
	case "to_docx":
		op = model.OpTextToDOCX
	default:
		errors.ValidationError(w, fmt.Sprintf("Недопустимая операция: %s", req.Operation))
		return
	}

	result, err := h.converter.ConvertText(r.Context(), op, req.Text, middleware.SubjectFromContext(r.Context()))
	if err != nil {
		errors.FromError(w, err)
		return
	}

	if op == model.OpTextFormat {
		writeJSON(w, http.StatusOK, map[string]any{
			"success":        true,
			"formatted_text": result.Text,
		})
		return
	}
	h.serve(w, r, result)
}

// readUploads разбирает multipart и открывает файлы из указанных полей
// в порядке их следования. При ошибке ответ уже записан и ok = false.
func (h *ConvertHandler) readUploads(w http.ResponseWriter, r *http.Request, fields ...string) (uploads []service.Upload, cleanup func(), ok bool) {
	r.Body = http.MaxBytesReader(w, r.Body, h.maxUploadSize)

	if err := r.ParseMultipartForm(multipartMemory); err != nil {
		var tooLarge *http.MaxBytesError
		if stderrors.As(err, &tooLarge) {
			errors.FileTooLarge(w, fmt.Sprintf("Размер запроса превышает %d байт", h.maxUploadSize))
			return nil, nil, false
		}
		errors.ValidationError(w, fmt.Sprintf("Ошибка парсинга multipart: %s", err.Error()))
		return nil, nil, false
	}

	var headers []*multipart.FileHeader
	for _, field := range fields {
		headers = append(headers, r.MultipartForm.File[field]...)
	}
	if len(headers) == 0 {
		errors.ValidationError(w, fmt.Sprintf("Поле '%s' обязательно", fields[0]))
		return nil, nil, false
	}

	var opened []io.Closer
	cleanup = func() {
		for _, c := range opened {
			_ = c.Close()
		}
		_ = r.MultipartForm.RemoveAll()
	}

	for _, fh := range headers {
		if fh.Filename == "" {
			cleanup()
			errors.ValidationError(w, "Файл не выбран")
			return nil, nil, false
		}
		f, err := fh.Open()
		if err != nil {
			cleanup()
			errors.InternalError(w, "Ошибка чтения загруженного файла")
			return nil, nil, false
		}
		opened = append(opened, f)
		uploads = append(uploads, service.Upload{Filename: fh.Filename, Reader: f})
	}
	return uploads, cleanup, true
}

// serve отдаёт файловый результат.
func (h *ConvertHandler) serve(w http.ResponseWriter, r *http.Request, result *service.Result) {
	if err := h.delivery.Serve(w, r, result); err != nil {
		h.logger.Error("Ошибка выдачи результата",
			slog.String("path", result.Path),
			slog.String("error", err.Error()),
		)
		errors.InternalError(w, "Ошибка выдачи результата")
	}
}
