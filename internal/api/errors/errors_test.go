package errors //nolint:revive

import (
	"encoding/json"
	"fmt"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/bigkaa/docgate/internal/domain/model"
)

func TestStatus(t *testing.T) {
	tests := []struct {
		name   string
		err    error
		status int
		code   string
	}{
		{"invalid file type", model.NewError(model.KindInvalidFileType, nil, "x"), 400, CodeInvalidFileType},
		{"mime mismatch", model.NewError(model.KindMimeMismatch, nil, "x"), 400, CodeMimeMismatch},
		{"engine unavailable", model.NewError(model.KindEngineUnavailable, nil, "x"), 503, CodeEngineUnavailable},
		{"conversion failed", model.NewError(model.KindConversionFailed, nil, "x"), 500, CodeConversionFailed},
		{"packaging failed", model.NewError(model.KindPackagingFailed, nil, "x"), 500, CodePackagingFailed},
		{"wrapped kind", fmt.Errorf("обёртка: %w", model.NewError(model.KindMimeMismatch, nil, "x")), 400, CodeMimeMismatch},
		{"too large", fmt.Errorf("сохранение: %w", &http.MaxBytesError{Limit: 10}), 413, CodeFileTooLarge},
		{"plain error", fmt.Errorf("диск"), 500, CodeInternalError},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			status, code := Status(tt.err)
			if status != tt.status || code != tt.code {
				t.Errorf("ожидалось %d %s, получено %d %s", tt.status, tt.code, status, code)
			}
		})
	}
}

func TestFromError_HidesEngineDetails(t *testing.T) {
	w := httptest.NewRecorder()
	err := model.NewError(model.KindConversionFailed, fmt.Errorf("stderr: segfault at /opt/engine"), "движок завершился с ошибкой")
	FromError(w, err)

	if w.Code != http.StatusInternalServerError {
		t.Fatalf("ожидался 500, получено %d", w.Code)
	}
	var body errorBody
	if err := json.NewDecoder(w.Body).Decode(&body); err != nil {
		t.Fatalf("Ошибка декодирования: %v", err)
	}
	if body.Error.Code != CodeConversionFailed {
		t.Errorf("code: ожидалось %s, получено %s", CodeConversionFailed, body.Error.Code)
	}
	if body.Error.Message != "Ошибка конвертации" {
		t.Errorf("сообщение содержит детали движка: %q", body.Error.Message)
	}
}

func TestFromError_ClientMessage(t *testing.T) {
	w := httptest.NewRecorder()
	FromError(w, model.NewError(model.KindInvalidFileType, nil, "расширение .txt не поддерживается"))

	var body errorBody
	_ = json.NewDecoder(w.Body).Decode(&body)
	if w.Code != http.StatusBadRequest || body.Error.Message != "расширение .txt не поддерживается" {
		t.Errorf("неожиданный ответ: %d %+v", w.Code, body)
	}
	if ct := w.Header().Get("Content-Type"); ct != "application/json" {
		t.Errorf("Content-Type: %s", ct)
	}
}
