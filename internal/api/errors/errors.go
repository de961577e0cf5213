// Пакет errors — конструкторы стандартных ошибок docgate.
// Единый формат: {"error": {"code": "...", "message": "..."}}.
// Все HTTP-ответы с ошибками должны использовать WriteError.
package errors //nolint:revive // TODO: переименовать пакет errors, конфликт со stdlib

import (
	"encoding/json"
	stderrors "errors"
	"net/http"

	"github.com/bigkaa/docgate/internal/domain/model"
)

// Коды ошибок API.
const (
	CodeValidationError   = "VALIDATION_ERROR"
	CodeNotFound          = "NOT_FOUND"
	CodeUnauthorized      = "UNAUTHORIZED"
	CodeForbidden         = "FORBIDDEN"
	CodeFileTooLarge      = "FILE_TOO_LARGE"
	CodeInvalidFileType   = "INVALID_FILE_TYPE"
	CodeMimeMismatch      = "MIME_MISMATCH"
	CodeEngineUnavailable = "ENGINE_UNAVAILABLE"
	CodeConversionFailed  = "CONVERSION_FAILED"
	CodePackagingFailed   = "PACKAGING_FAILED"
	CodeInternalError     = "INTERNAL_ERROR"
)

// errorBody — структура тела ответа ошибки.
type errorBody struct {
	Error errorDetail `json:"error"`
}

// errorDetail — детали ошибки.
type errorDetail struct {
	Code    string `json:"code"`
	Message string `json:"message"`
}

// WriteError записывает ответ ошибки в стандартном формате.
// statusCode — HTTP статус-код, code — машиночитаемый код, message — описание.
func WriteError(w http.ResponseWriter, statusCode int, code, message string) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(statusCode)
	_ = json.NewEncoder(w).Encode(errorBody{
		Error: errorDetail{
			Code:    code,
			Message: message,
		},
	})
}

// kindStatus — отображение видов ошибок обработки в HTTP.
var kindStatus = map[model.ErrorKind]struct {
	status int
	code   string
}{
	model.KindInvalidFileType:   {http.StatusBadRequest, CodeInvalidFileType},
	model.KindMimeMismatch:      {http.StatusBadRequest, CodeMimeMismatch},
	model.KindEngineUnavailable: {http.StatusServiceUnavailable, CodeEngineUnavailable},
	model.KindConversionFailed:  {http.StatusInternalServerError, CodeConversionFailed},
	model.KindPackagingFailed:   {http.StatusInternalServerError, CodePackagingFailed},
}

// Status возвращает HTTP-статус и код для ошибки обработки.
// Ошибки вне таксономии — 500 INTERNAL_ERROR, превышение лимита тела — 413.
func Status(err error) (int, string) {
	var tooLarge *http.MaxBytesError
	if stderrors.As(err, &tooLarge) {
		return http.StatusRequestEntityTooLarge, CodeFileTooLarge
	}
	if m, ok := kindStatus[model.KindOf(err)]; ok {
		return m.status, m.code
	}
	return http.StatusInternalServerError, CodeInternalError
}

// FromError записывает ответ для ошибки обработки. Клиентские ошибки (4xx)
// возвращают сообщение как есть, серверные — обобщённое, без деталей движка.
func FromError(w http.ResponseWriter, err error) {
	status, code := Status(err)
	message := err.Error()
	var e *model.Error
	if stderrors.As(err, &e) && e.Message != "" {
		message = e.Message
	}
	switch {
	case status == http.StatusRequestEntityTooLarge:
		message = "Файл превышает допустимый размер"
	case status >= http.StatusInternalServerError && code == CodeInternalError:
		message = "Внутренняя ошибка сервера"
	case status >= http.StatusInternalServerError:
		message = serverMessage(code)
	}
	WriteError(w, status, code, message)
}

func serverMessage(code string) string {
	switch code {
	case CodeEngineUnavailable:
		return "Движок конвертации недоступен"
	case CodePackagingFailed:
		return "Ошибка упаковки результата"
	default:
		return "Ошибка конвертации"
	}
}

// --- Конструкторы для типичных ошибок ---

// ValidationError — 400 некорректные входные данные.
func ValidationError(w http.ResponseWriter, message string) {
	WriteError(w, http.StatusBadRequest, CodeValidationError, message)
}

// NotFound — 404 ресурс не найден.
func NotFound(w http.ResponseWriter, message string) {
	WriteError(w, http.StatusNotFound, CodeNotFound, message)
}

// Unauthorized — 401 требуется аутентификация.
func Unauthorized(w http.ResponseWriter, message string) {
	WriteError(w, http.StatusUnauthorized, CodeUnauthorized, message)
}

// Forbidden — 403 недостаточно прав.
func Forbidden(w http.ResponseWriter, message string) {
	WriteError(w, http.StatusForbidden, CodeForbidden, message)
}

// FileTooLarge — 413 файл превышает лимит.
func FileTooLarge(w http.ResponseWriter, message string) {
	WriteError(w, http.StatusRequestEntityTooLarge, CodeFileTooLarge, message)
}

// InternalError — 500 внутренняя ошибка.
func InternalError(w http.ResponseWriter, message string) {
	WriteError(w, http.StatusInternalServerError, CodeInternalError, message)
}
